package tests

import (
	"encoding/json"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tmalinga/vikundi/core/group"
	"github.com/tmalinga/vikundi/core/session"
	"github.com/tmalinga/vikundi/core/user"
	emailsvc "github.com/tmalinga/vikundi/services/email"
	testutil "github.com/tmalinga/vikundi/tests"
)

func TestSessionCreate(t *testing.T) {
	a := setup(t)
	alice := testutil.CreateUser(t, a.userRepo, "Alice", "alice", "alice@test.test", "", []string{user.RoleStudent}, true)
	bob := testutil.CreateUser(t, a.userRepo, "Bob", "bob", "bob@test.test", "", []string{user.RoleStudent}, true)
	carol := testutil.CreateUser(t, a.userRepo, "Carol", "carol", "carol@test.test", "", []string{user.RoleStudent}, true)

	grp := testutil.CreateGroup(t, a.grpRepo, "Calculus Crew", a.subject.ID, alice.ID, 10)
	testutil.CreateMembership(t, a.grpRepo, alice.ID, grp.ID, group.RoleAdmin)
	testutil.CreateMembership(t, a.grpRepo, bob.ID, grp.ID, group.RoleMember)

	path := fmt.Sprintf("/v1/groups/%d/sessions", grp.ID)
	body := []byte(`{"title": "Limits", "date": "2024-06-03", "start_time": "09:00", "end_time": "11:00"}`)

	// members only
	req, rec := newAuthRequest(http.MethodPost, path, getToken(t, carol), body)
	a.server.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	emailsvc.SentMessages = nil
	req, rec = newAuthRequest(http.MethodPost, path, getToken(t, bob), body)
	a.server.ServeHTTP(rec, req)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var sess session.Session
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &sess))
	assert.Equal(t, session.StatusScheduled, sess.Status)
	assert.Equal(t, bob.ID, sess.CreatedBy)

	// both members got a reminder
	assert.Len(t, emailsvc.SentMessages, 2)

	// a bad date is a validation error
	body = []byte(`{"title": "Limits", "date": "03/06/2024"}`)
	req, rec = newAuthRequest(http.MethodPost, path, getToken(t, bob), body)
	a.server.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSessionUpdateAndDelete(t *testing.T) {
	a := setup(t)
	alice := testutil.CreateUser(t, a.userRepo, "Alice", "alice", "alice@test.test", "", []string{user.RoleStudent}, true)
	bob := testutil.CreateUser(t, a.userRepo, "Bob", "bob", "bob@test.test", "", []string{user.RoleStudent}, true)
	carol := testutil.CreateUser(t, a.userRepo, "Carol", "carol", "carol@test.test", "", []string{user.RoleStudent}, true)

	grp := testutil.CreateGroup(t, a.grpRepo, "Calculus Crew", a.subject.ID, alice.ID, 10)
	testutil.CreateMembership(t, a.grpRepo, alice.ID, grp.ID, group.RoleAdmin)
	testutil.CreateMembership(t, a.grpRepo, bob.ID, grp.ID, group.RoleMember)
	testutil.CreateMembership(t, a.grpRepo, carol.ID, grp.ID, group.RoleMember)

	sess := testutil.CreateSession(t, a.sessRepo, grp.ID, bob.ID, "Limits", "2024-06-03", "09:00", "11:00")
	path := fmt.Sprintf("/v1/sessions/%d", sess.ID)

	// plain members cannot edit someone else's session
	req, rec := newAuthRequest(http.MethodPut, path, getToken(t, carol), []byte(`{"status": "cancelled"}`))
	a.server.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	// the creator can
	req, rec = newAuthRequest(http.MethodPut, path, getToken(t, bob), []byte(`{"status": "completed"}`))
	a.server.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &sess))
	assert.Equal(t, session.StatusCompleted, sess.Status)

	// so can the group admin
	req, rec = newAuthRequest(http.MethodDelete, path, getToken(t, alice))
	a.server.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	req, rec = newAuthRequest(http.MethodGet, path, getToken(t, bob))
	a.server.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestSessionQuery(t *testing.T) {
	a := setup(t)
	alice := testutil.CreateUser(t, a.userRepo, "Alice", "alice", "alice@test.test", "", []string{user.RoleStudent}, true)

	grp := testutil.CreateGroup(t, a.grpRepo, "Calculus Crew", a.subject.ID, alice.ID, 10)
	testutil.CreateMembership(t, a.grpRepo, alice.ID, grp.ID, group.RoleAdmin)

	testutil.CreateSession(t, a.sessRepo, grp.ID, alice.ID, "Limits", "2024-06-03", "09:00", "11:00")
	testutil.CreateSession(t, a.sessRepo, grp.ID, alice.ID, "Derivatives", "2024-06-10", "09:00", "10:00")
	testutil.CreateSession(t, a.sessRepo, grp.ID, alice.ID, "Integrals", "2024-07-01", "", "")

	path := fmt.Sprintf("/v1/groups/%d/sessions?from=2024-06-01&to=2024-06-30", grp.ID)
	req, rec := newAuthRequest(http.MethodGet, path, getToken(t, alice))
	a.server.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var sessions []session.Session
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &sessions))
	require.Len(t, sessions, 2)
	assert.Equal(t, "Limits", sessions[0].Title)
	assert.Equal(t, "Derivatives", sessions[1].Title)
}
