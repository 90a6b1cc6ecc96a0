package testutil

import (
	"context"
	"testing"
	"time"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/volatiletech/null/v8"

	"github.com/tmalinga/vikundi/core"
	"github.com/tmalinga/vikundi/core/group"
	"github.com/tmalinga/vikundi/core/session"
	"github.com/tmalinga/vikundi/core/user"
)

// NewConfig returns a config suitable for tests; no env files are read.
func NewConfig() *core.Config {
	return &core.Config{
		Debug:                     false, // debug error handler rewrites response bodies
		TestMode:                  true,
		Env:                       "TEST",
		AppName:                   "Vikundi",
		SecretKey:                 "secret-test-key",
		FrontendBaseURL:           "http://localhost:3000",
		DefaultFromName:           "Vikundi",
		DefaultFromAddr:           "noreply@vikundi.test",
		PasswordResetTimeoutDelta: 3 * 24 * time.Hour,
		Server: core.ServerConfig{
			JWTExpirationDelta:        7 * 24 * time.Hour,
			JWTRefreshExpirationDelta: 4 * 24 * time.Hour,
		},
	}
}

// NewValidator builds the validator and translator the way main does.
func NewValidator() (*validator.Validate, ut.Translator) {
	_en := en.New()
	uni := ut.New(_en, _en)
	translator, _ := uni.GetTranslator("en")

	validate := validator.New()
	core.InitValidators(validate, translator)
	user.InitValidators(validate, translator)
	return validate, translator
}

func CreateUser(
	t *testing.T,
	repo user.Repository,
	name, uname, email, pwd string,
	roles []string,
	isActive bool,
	createdAt ...time.Time,
) user.User {
	t.Helper()

	tstamp := time.Now().UTC()
	if len(createdAt) > 0 {
		tstamp = createdAt[0].UTC()
	}
	usr := user.User{
		Name:      name,
		Username:  uname,
		Email:     email,
		Roles:     roles,
		IsActive:  &isActive,
		CreatedAt: tstamp,
		UpdatedAt: tstamp,
	}
	if pwd != "" {
		if err := usr.SetPassword(pwd); err != nil {
			t.Fatalf("CreateUser(): %v", err)
		}
	}
	usr, err := repo.CreateUser(context.Background(), usr)
	if err != nil {
		t.Fatalf("CreateUser(): %v", err)
	}
	return usr
}

func CreateGroup(
	t *testing.T,
	repo group.Repository,
	name string,
	subjectID, createdBy, maxMembers int,
) group.Group {
	t.Helper()

	now := time.Now().UTC()
	grp, err := repo.CreateGroup(context.Background(), group.Group{
		Name:       name,
		SubjectID:  subjectID,
		CreatedBy:  createdBy,
		MaxMembers: maxMembers,
		IsActive:   true,
		CreatedAt:  now,
		UpdatedAt:  now,
	})
	if err != nil {
		t.Fatalf("CreateGroup(): %v", err)
	}
	return grp
}

func CreateMembership(
	t *testing.T,
	repo group.Repository,
	userID, groupID int,
	role string,
	joinedAt ...time.Time,
) group.Membership {
	t.Helper()

	tstamp := time.Now().UTC()
	if len(joinedAt) > 0 {
		tstamp = joinedAt[0].UTC()
	}
	mbr, err := repo.CreateMembership(context.Background(), group.Membership{
		UserID:   userID,
		GroupID:  groupID,
		Role:     role,
		JoinedAt: tstamp,
	})
	if err != nil {
		t.Fatalf("CreateMembership(): %v", err)
	}
	return mbr
}

// CreateSession schedules a session on the given day; start and end are
// `HH:MM` clock times, either may be empty.
func CreateSession(
	t *testing.T,
	repo session.Repository,
	groupID, createdBy int,
	title, date, start, end string,
) session.Session {
	t.Helper()

	day, err := session.ParseDate(date)
	if err != nil {
		t.Fatalf("CreateSession(): %v", err)
	}
	now := time.Now().UTC()
	sess := session.Session{
		GroupID:   groupID,
		Title:     title,
		Date:      day,
		Status:    session.StatusScheduled,
		CreatedBy: createdBy,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if start != "" {
		st, err := session.ParseClock(start)
		if err != nil {
			t.Fatalf("CreateSession(): %v", err)
		}
		sess.StartTime = null.TimeFrom(st)
	}
	if end != "" {
		et, err := session.ParseClock(end)
		if err != nil {
			t.Fatalf("CreateSession(): %v", err)
		}
		sess.EndTime = null.TimeFrom(et)
	}

	sess, err = repo.CreateSession(context.Background(), sess)
	if err != nil {
		t.Fatalf("CreateSession(): %v", err)
	}
	return sess
}
