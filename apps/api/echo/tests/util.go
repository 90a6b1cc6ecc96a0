package tests

import (
	"bytes"
	"encoding/json"
	"log"
	"net/http"
	"net/http/httptest"
	"os"
	"reflect"
	"testing"

	"github.com/stretchr/testify/assert"

	. "github.com/tmalinga/vikundi/apps/api/echo"
	"github.com/tmalinga/vikundi/core/group"
	"github.com/tmalinga/vikundi/core/notification"
	"github.com/tmalinga/vikundi/core/session"
	"github.com/tmalinga/vikundi/core/stats"
	"github.com/tmalinga/vikundi/core/user"
	emailsvc "github.com/tmalinga/vikundi/services/email"
	logsvc "github.com/tmalinga/vikundi/services/logger"
	inmemdb "github.com/tmalinga/vikundi/storage/database/inmem"
	testutil "github.com/tmalinga/vikundi/tests"
)

var errMissingToken = httpErr{Error: "missing or malformed jwt"}

// app bundles the server under test with its repositories for seeding.
type app struct {
	server   *Server
	userRepo user.Repository
	grpRepo  group.Repository
	sessRepo session.Repository
	subject  group.Subject
}

func setup(t *testing.T) app {
	t.Helper()

	conf := testutil.NewConfig()

	db := inmemdb.NewDB()
	userRepo := inmemdb.NewUserRepository(db)
	grpRepo := inmemdb.NewGroupRepository(db)
	sessRepo := inmemdb.NewSessionRepository(db)
	notifRepo := inmemdb.NewNotificationRepository(db)
	subject := db.AddSubject(group.Subject{Name: "Mathematics"})

	logger := logsvc.NewRollbarLogger(log.New(os.Stdout, "TEST : ", log.LstdFlags), conf)
	logger.Enable(false)
	mailSvc := emailsvc.NewConsoleServiceMock(conf)

	usrSvc := user.NewService(userRepo, mailSvc, conf)
	grpSvc := group.NewService(grpRepo)
	notifSvc := notification.NewService(notifRepo)
	sessSvc := session.NewService(sessRepo, grpSvc, usrSvc, mailSvc, notifSvc)
	statsSvc := stats.NewService(stats.Datastore{
		Users:    userRepo,
		Groups:   grpRepo,
		Sessions: sessRepo,
	})

	validate, translator := testutil.NewValidator()
	user.InitTokenGen(conf)

	server := NewServer("", ServerDeps{
		Conf:       conf,
		Logger:     logger,
		UserSvc:    usrSvc,
		GroupSvc:   grpSvc,
		SessionSvc: sessSvc,
		NotifSvc:   notifSvc,
		StatsSvc:   statsSvc,
		Validate:   validate,
		Translator: translator,
	})

	return app{
		server:   server,
		userRepo: userRepo,
		grpRepo:  grpRepo,
		sessRepo: sessRepo,
		subject:  subject,
	}
}

type httpErr struct {
	Error string `json:"error"`
}

type httpTest struct {
	name     string
	method   string
	path     string
	body     []byte
	token    string
	wantCode int
	wantData []byte
	extra    interface{}
}

func newAuthRequest(method, path, token string, data ...[]byte) (*http.Request, *httptest.ResponseRecorder) {
	var body bytes.Buffer
	if len(data) > 0 {
		body.Write(data[0])
	}
	req := httptest.NewRequest(method, path, &body)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	return req, rec
}

func newRequest(method, path string, data ...[]byte) (*http.Request, *httptest.ResponseRecorder) {
	return newAuthRequest(method, path, "", data...)
}

func getToken(t *testing.T, usr user.User) string {
	t.Helper()

	claims := GetUserClaims(usr)
	token, err := GenerateToken(claims)
	if err != nil {
		t.Fatalf("getToken(): %v", err)
	}
	return token
}

func marchallObj(t *testing.T, obj interface{}) []byte {
	t.Helper()

	data, err := json.Marshal(obj)
	if err != nil {
		t.Fatalf("marchallObj(): %v", err)
	}
	return data
}

func jsonBytesEqual(t *testing.T, b1, b2 []byte) (bool, error) {
	var j1, j2 interface{}
	if err := json.Unmarshal(b1, &j1); err != nil {
		return false, err
	}
	if err := json.Unmarshal(b2, &j2); err != nil {
		return false, err
	}
	if reflect.DeepEqual(j1, j2) {
		return true, nil
	}
	if j1 == nil || j2 == nil {
		return false, nil
	}
	return assert.ElementsMatch(t, j1, j2), nil
}

func checkCodeAndData(t *testing.T, tt httpTest, rec *httptest.ResponseRecorder) {
	t.Helper()

	if rec.Code != tt.wantCode {
		t.Errorf("failed! code = %v; wantCode %v", rec.Code, tt.wantCode)
	}
	ok, err := jsonBytesEqual(t, rec.Body.Bytes(), tt.wantData)
	if err != nil {
		t.Errorf("jsonBytesEqual() failed to compare; err %v", err)
	}
	if !ok {
		t.Errorf("failed! data = %v; wantData %v", rec.Body.String(), string(tt.wantData))
	}
}
