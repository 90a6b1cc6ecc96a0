package tests

import (
	"encoding/json"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tmalinga/vikundi/core/group"
	"github.com/tmalinga/vikundi/core/user"
	testutil "github.com/tmalinga/vikundi/tests"
)

func TestGroupCreate(t *testing.T) {
	a := setup(t)
	alice := testutil.CreateUser(t, a.userRepo, "Alice", "alice", "alice@test.test", "", []string{user.RoleStudent}, true)

	body := []byte(fmt.Sprintf(`{"name": "Calculus Crew", "description": "limits and beyond", "subject_id": %d}`, a.subject.ID))
	req, rec := newAuthRequest(http.MethodPost, "/v1/groups", getToken(t, alice), body)
	a.server.ServeHTTP(rec, req)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var grp group.Group
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &grp))
	assert.Equal(t, 10, grp.MaxMembers) // default capacity
	assert.Equal(t, 1, grp.MemberCount)

	// the creator is the group's admin
	mbr, err := a.grpRepo.GetMembership(req.Context(), alice.ID, grp.ID)
	require.NoError(t, err)
	assert.Equal(t, group.RoleAdmin, mbr.Role)

	// unknown subject is a validation error
	body = []byte(`{"name": "Ghost Group", "description": "nope", "subject_id": 999}`)
	req, rec = newAuthRequest(http.MethodPost, "/v1/groups", getToken(t, alice), body)
	a.server.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGroupJoinAndLeave(t *testing.T) {
	a := setup(t)
	alice := testutil.CreateUser(t, a.userRepo, "Alice", "alice", "alice@test.test", "", []string{user.RoleStudent}, true)
	bob := testutil.CreateUser(t, a.userRepo, "Bob", "bob", "bob@test.test", "", []string{user.RoleStudent}, true)
	carol := testutil.CreateUser(t, a.userRepo, "Carol", "carol", "carol@test.test", "", []string{user.RoleStudent}, true)

	grp := testutil.CreateGroup(t, a.grpRepo, "Tiny Group", a.subject.ID, alice.ID, 2)
	testutil.CreateMembership(t, a.grpRepo, alice.ID, grp.ID, group.RoleAdmin)

	join := fmt.Sprintf("/v1/groups/%d/join", grp.ID)
	leave := fmt.Sprintf("/v1/groups/%d/leave", grp.ID)

	req, rec := newAuthRequest(http.MethodPost, join, getToken(t, bob))
	a.server.ServeHTTP(rec, req)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	// joining twice
	req, rec = newAuthRequest(http.MethodPost, join, getToken(t, bob))
	a.server.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	// the group is now at capacity
	req, rec = newAuthRequest(http.MethodPost, join, getToken(t, carol))
	a.server.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "full")

	// the sole admin cannot leave
	req, rec = newAuthRequest(http.MethodPost, leave, getToken(t, alice))
	a.server.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	req, rec = newAuthRequest(http.MethodPost, leave, getToken(t, bob))
	a.server.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	// non-members cannot leave
	req, rec = newAuthRequest(http.MethodPost, leave, getToken(t, carol))
	a.server.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestGroupUpdatePermissions(t *testing.T) {
	a := setup(t)
	alice := testutil.CreateUser(t, a.userRepo, "Alice", "alice", "alice@test.test", "", []string{user.RoleStudent}, true)
	bob := testutil.CreateUser(t, a.userRepo, "Bob", "bob", "bob@test.test", "", []string{user.RoleStudent}, true)

	grp := testutil.CreateGroup(t, a.grpRepo, "Calculus Crew", a.subject.ID, alice.ID, 10)
	testutil.CreateMembership(t, a.grpRepo, alice.ID, grp.ID, group.RoleAdmin)
	testutil.CreateMembership(t, a.grpRepo, bob.ID, grp.ID, group.RoleMember)

	path := fmt.Sprintf("/v1/groups/%d", grp.ID)
	body := []byte(`{"name": "Calculus Crew v2"}`)

	req, rec := newAuthRequest(http.MethodPut, path, getToken(t, bob), body)
	a.server.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	req, rec = newAuthRequest(http.MethodPut, path, getToken(t, alice), body)
	a.server.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var updated group.Group
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &updated))
	assert.Equal(t, "Calculus Crew v2", updated.Name)
}

func TestGroupMemberManagement(t *testing.T) {
	a := setup(t)
	alice := testutil.CreateUser(t, a.userRepo, "Alice", "alice", "alice@test.test", "", []string{user.RoleStudent}, true)
	bob := testutil.CreateUser(t, a.userRepo, "Bob", "bob", "bob@test.test", "", []string{user.RoleStudent}, true)
	carol := testutil.CreateUser(t, a.userRepo, "Carol", "carol", "carol@test.test", "", []string{user.RoleStudent}, true)

	grp := testutil.CreateGroup(t, a.grpRepo, "Calculus Crew", a.subject.ID, alice.ID, 10)
	adminMbr := testutil.CreateMembership(t, a.grpRepo, alice.ID, grp.ID, group.RoleAdmin)
	testutil.CreateMembership(t, a.grpRepo, bob.ID, grp.ID, group.RoleModerator)
	carolMbr := testutil.CreateMembership(t, a.grpRepo, carol.ID, grp.ID, group.RoleMember)

	// moderators cannot change roles
	path := fmt.Sprintf("/v1/groups/%d/members/%d/role", grp.ID, carolMbr.ID)
	req, rec := newAuthRequest(http.MethodPut, path, getToken(t, bob), []byte(`{"role": "moderator"}`))
	a.server.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	// group admins can
	req, rec = newAuthRequest(http.MethodPut, path, getToken(t, alice), []byte(`{"role": "moderator"}`))
	a.server.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var mbr group.Membership
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &mbr))
	assert.Equal(t, group.RoleModerator, mbr.Role)

	// demoting the sole admin is rejected
	path = fmt.Sprintf("/v1/groups/%d/members/%d/role", grp.ID, adminMbr.ID)
	req, rec = newAuthRequest(http.MethodPut, path, getToken(t, alice), []byte(`{"role": "member"}`))
	a.server.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	// moderators cannot remove other moderators
	path = fmt.Sprintf("/v1/groups/%d/members/%d", grp.ID, carolMbr.ID)
	req, rec = newAuthRequest(http.MethodDelete, path, getToken(t, bob))
	a.server.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	// demote carol back, then the moderator may remove her
	req, rec = newAuthRequest(http.MethodPut, path+"/role", getToken(t, alice), []byte(`{"role": "member"}`))
	a.server.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	req, rec = newAuthRequest(http.MethodDelete, path, getToken(t, bob))
	a.server.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	// a membership of another group is not reachable through this group
	other := testutil.CreateGroup(t, a.grpRepo, "Other Group", a.subject.ID, bob.ID, 10)
	otherMbr := testutil.CreateMembership(t, a.grpRepo, bob.ID, other.ID, group.RoleAdmin)
	path = fmt.Sprintf("/v1/groups/%d/members/%d", grp.ID, otherMbr.ID)
	req, rec = newAuthRequest(http.MethodDelete, path, getToken(t, alice))
	a.server.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestGroupComments(t *testing.T) {
	a := setup(t)
	alice := testutil.CreateUser(t, a.userRepo, "Alice", "alice", "alice@test.test", "", []string{user.RoleStudent}, true)
	bob := testutil.CreateUser(t, a.userRepo, "Bob", "bob", "bob@test.test", "", []string{user.RoleStudent}, true)

	grp := testutil.CreateGroup(t, a.grpRepo, "Calculus Crew", a.subject.ID, alice.ID, 10)
	testutil.CreateMembership(t, a.grpRepo, alice.ID, grp.ID, group.RoleAdmin)
	testutil.CreateMembership(t, a.grpRepo, bob.ID, grp.ID, group.RoleMember)

	base := fmt.Sprintf("/v1/groups/%d/comments", grp.ID)

	req, rec := newAuthRequest(http.MethodPost, base, getToken(t, alice), []byte(`{"content": "see you monday"}`))
	a.server.ServeHTTP(rec, req)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var cmt group.Comment
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &cmt))
	assert.False(t, cmt.IsEdited)

	// replies reference the parent
	reply := []byte(fmt.Sprintf(`{"content": "works for me", "parent_id": %d}`, cmt.ID))
	req, rec = newAuthRequest(http.MethodPost, base, getToken(t, bob), reply)
	a.server.ServeHTTP(rec, req)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var rep group.Comment
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &rep))
	assert.Equal(t, cmt.ID, rep.ParentID.Int)

	// only the author may edit
	path := fmt.Sprintf("%s/%d", base, cmt.ID)
	req, rec = newAuthRequest(http.MethodPut, path, getToken(t, bob), []byte(`{"content": "hijacked"}`))
	a.server.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	req, rec = newAuthRequest(http.MethodPut, path, getToken(t, alice), []byte(`{"content": "see you tuesday"}`))
	a.server.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &cmt))
	assert.True(t, cmt.IsEdited)
	assert.Equal(t, "see you tuesday", cmt.Content)

	// admins may delete others' comments
	path = fmt.Sprintf("%s/%d", base, rep.ID)
	req, rec = newAuthRequest(http.MethodDelete, path, getToken(t, alice))
	a.server.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNoContent, rec.Code)
}

func TestGroupMaterials(t *testing.T) {
	a := setup(t)
	alice := testutil.CreateUser(t, a.userRepo, "Alice", "alice", "alice@test.test", "", []string{user.RoleStudent}, true)
	bob := testutil.CreateUser(t, a.userRepo, "Bob", "bob", "bob@test.test", "", []string{user.RoleStudent}, true)
	carol := testutil.CreateUser(t, a.userRepo, "Carol", "carol", "carol@test.test", "", []string{user.RoleStudent}, true)

	grp := testutil.CreateGroup(t, a.grpRepo, "Calculus Crew", a.subject.ID, alice.ID, 10)
	testutil.CreateMembership(t, a.grpRepo, alice.ID, grp.ID, group.RoleAdmin)
	testutil.CreateMembership(t, a.grpRepo, bob.ID, grp.ID, group.RoleMember)

	base := fmt.Sprintf("/v1/groups/%d/materials", grp.ID)
	body := []byte(`{"title": "Lecture notes", "link": "https://notes.test/calc.pdf"}`)

	// members only
	req, rec := newAuthRequest(http.MethodPost, base, getToken(t, carol), body)
	a.server.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	req, rec = newAuthRequest(http.MethodPost, base, getToken(t, bob), body)
	a.server.ServeHTTP(rec, req)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var mat group.Material
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &mat))
	assert.Equal(t, bob.ID, mat.UploadedBy)

	// one of link or file is required
	req, rec = newAuthRequest(http.MethodPost, base, getToken(t, bob), []byte(`{"title": "Empty"}`))
	a.server.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	// plain members cannot touch someone else's material
	path := fmt.Sprintf("/v1/materials/%d", mat.ID)
	req, rec = newAuthRequest(http.MethodDelete, path, getToken(t, carol))
	a.server.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	// the uploader can edit it
	req, rec = newAuthRequest(http.MethodPut, path, getToken(t, bob), []byte(`{"title": "Lecture notes v2"}`))
	a.server.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &mat))
	assert.Equal(t, "Lecture notes v2", mat.Title)

	// group admins can delete it
	req, rec = newAuthRequest(http.MethodDelete, path, getToken(t, alice))
	a.server.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNoContent, rec.Code)
}
