package tests

import (
	"encoding/json"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tmalinga/vikundi/core/group"
	"github.com/tmalinga/vikundi/core/notification"
	"github.com/tmalinga/vikundi/core/user"
	testutil "github.com/tmalinga/vikundi/tests"
)

func TestNotifications(t *testing.T) {
	a := setup(t)
	alice := testutil.CreateUser(t, a.userRepo, "Alice", "alice", "alice@test.test", "", []string{user.RoleStudent}, true)
	bob := testutil.CreateUser(t, a.userRepo, "Bob", "bob", "bob@test.test", "", []string{user.RoleStudent}, true)
	carol := testutil.CreateUser(t, a.userRepo, "Carol", "carol", "carol@test.test", "", []string{user.RoleStudent}, true)

	grp := testutil.CreateGroup(t, a.grpRepo, "Calculus Crew", a.subject.ID, alice.ID, 10)
	testutil.CreateMembership(t, a.grpRepo, alice.ID, grp.ID, group.RoleAdmin)
	testutil.CreateMembership(t, a.grpRepo, bob.ID, grp.ID, group.RoleMember)

	// scheduling a session records a reminder for every member
	path := fmt.Sprintf("/v1/groups/%d/sessions", grp.ID)
	body := []byte(`{"title": "Limits", "date": "2024-06-03", "start_time": "09:00", "end_time": "11:00"}`)
	req, rec := newAuthRequest(http.MethodPost, path, getToken(t, bob), body)
	a.server.ServeHTTP(rec, req)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	req, rec = newAuthRequest(http.MethodGet, "/v1/notifications", getToken(t, alice))
	a.server.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var notifs []notification.Notification
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &notifs))
	require.Len(t, notifs, 1)
	assert.Equal(t, notification.TypeSessionReminder, notifs[0].Type)
	assert.Equal(t, alice.ID, notifs[0].RecipientID)
	assert.Equal(t, "Upcoming Session: Limits", notifs[0].Title)
	assert.False(t, notifs[0].IsRead)

	// non-members got nothing
	req, rec = newAuthRequest(http.MethodGet, "/v1/notifications", getToken(t, carol))
	a.server.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &notifs))
	assert.Empty(t, notifs)

	// no token
	req, rec = newRequest(http.MethodGet, "/v1/notifications")
	a.server.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestNotificationMarkRead(t *testing.T) {
	a := setup(t)
	alice := testutil.CreateUser(t, a.userRepo, "Alice", "alice", "alice@test.test", "", []string{user.RoleStudent}, true)
	bob := testutil.CreateUser(t, a.userRepo, "Bob", "bob", "bob@test.test", "", []string{user.RoleStudent}, true)

	grp := testutil.CreateGroup(t, a.grpRepo, "Calculus Crew", a.subject.ID, alice.ID, 10)
	testutil.CreateMembership(t, a.grpRepo, alice.ID, grp.ID, group.RoleAdmin)
	testutil.CreateMembership(t, a.grpRepo, bob.ID, grp.ID, group.RoleMember)

	path := fmt.Sprintf("/v1/groups/%d/sessions", grp.ID)
	body := []byte(`{"title": "Limits", "date": "2024-06-03"}`)
	req, rec := newAuthRequest(http.MethodPost, path, getToken(t, alice), body)
	a.server.ServeHTTP(rec, req)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	req, rec = newAuthRequest(http.MethodGet, "/v1/notifications", getToken(t, alice))
	a.server.ServeHTTP(rec, req)
	var notifs []notification.Notification
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &notifs))
	require.Len(t, notifs, 1)

	// marking another user's notification is a 404
	req, rec = newAuthRequest(http.MethodPut, fmt.Sprintf("/v1/notifications/%d/read", notifs[0].ID), getToken(t, bob))
	a.server.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	req, rec = newAuthRequest(http.MethodPut, fmt.Sprintf("/v1/notifications/%d/read", notifs[0].ID), getToken(t, alice))
	a.server.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var n notification.Notification
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &n))
	assert.True(t, n.IsRead)

	// mark-read is idempotent
	req, rec = newAuthRequest(http.MethodPut, fmt.Sprintf("/v1/notifications/%d/read", notifs[0].ID), getToken(t, alice))
	a.server.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)

	req, rec = newAuthRequest(http.MethodGet, "/v1/notifications", getToken(t, alice))
	a.server.ServeHTTP(rec, req)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &notifs))
	require.Len(t, notifs, 1)
	assert.True(t, notifs[0].IsRead)

	// unknown and malformed ids
	req, rec = newAuthRequest(http.MethodPut, "/v1/notifications/999/read", getToken(t, alice))
	a.server.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	req, rec = newAuthRequest(http.MethodPut, "/v1/notifications/abc/read", getToken(t, alice))
	a.server.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
