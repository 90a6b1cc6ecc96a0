package tests

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tmalinga/vikundi/core/group"
	"github.com/tmalinga/vikundi/core/stats"
	"github.com/tmalinga/vikundi/core/user"
	testutil "github.com/tmalinga/vikundi/tests"
)

const statsWindow = "from=2024-06-03&to=2024-06-10"

// seedStats creates a group with two members and four June 2024 sessions:
// a 2h one, a 45min one, a negative-duration one and one without times.
func seedStats(t *testing.T, a app) (admin, alice, bob, carol user.User, grp group.Group) {
	t.Helper()

	admin = testutil.CreateUser(t, a.userRepo, "Admin", "admin", "admin@test.test", "", []string{user.RoleAdmin}, true)
	alice = testutil.CreateUser(t, a.userRepo, "Alice", "alice", "alice@test.test", "", []string{user.RoleStudent}, true)
	bob = testutil.CreateUser(t, a.userRepo, "Bob", "bob", "bob@test.test", "", []string{user.RoleStudent}, true)
	carol = testutil.CreateUser(t, a.userRepo, "Carol", "carol", "carol@test.test", "", []string{user.RoleStudent}, true)

	grp = testutil.CreateGroup(t, a.grpRepo, "Calculus Crew", a.subject.ID, alice.ID, 10)
	testutil.CreateMembership(t, a.grpRepo, alice.ID, grp.ID, group.RoleAdmin)
	testutil.CreateMembership(t, a.grpRepo, bob.ID, grp.ID, group.RoleMember)

	testutil.CreateSession(t, a.sessRepo, grp.ID, alice.ID, "Limits", "2024-06-03", "09:00", "11:00")
	testutil.CreateSession(t, a.sessRepo, grp.ID, bob.ID, "Derivatives", "2024-06-04", "14:20", "15:05")
	testutil.CreateSession(t, a.sessRepo, grp.ID, alice.ID, "Late night", "2024-06-05", "09:00", "08:00")
	testutil.CreateSession(t, a.sessRepo, grp.ID, bob.ID, "Review", "2024-06-08", "", "")
	return admin, alice, bob, carol, grp
}

func TestStatsAccess(t *testing.T) {
	a := setup(t)
	admin, alice, _, carol, grp := seedStats(t, a)

	forbidden := marchallObj(t, httpErr{Error: "permission denied"})
	notFound := marchallObj(t, httpErr{Error: "not found"})

	tts := []httpTest{
		{
			name:     "site stats requires a token",
			method:   http.MethodGet,
			path:     "/v1/stats",
			wantCode: http.StatusUnauthorized,
			wantData: marchallObj(t, errMissingToken),
		},
		{
			name:     "site stats is admin only",
			method:   http.MethodGet,
			path:     "/v1/stats",
			token:    getToken(t, alice),
			wantCode: http.StatusForbidden,
			wantData: forbidden,
		},
		{
			name:     "site export is admin only",
			method:   http.MethodGet,
			path:     "/v1/stats/export",
			token:    getToken(t, alice),
			wantCode: http.StatusForbidden,
			wantData: forbidden,
		},
		{
			name:     "group stats rejects non-members",
			method:   http.MethodGet,
			path:     fmt.Sprintf("/v1/groups/%d/stats", grp.ID),
			token:    getToken(t, carol),
			wantCode: http.StatusForbidden,
			wantData: forbidden,
		},
		{
			name:     "group stats on unknown group",
			method:   http.MethodGet,
			path:     "/v1/groups/999/stats",
			token:    getToken(t, alice),
			wantCode: http.StatusNotFound,
			wantData: notFound,
		},
		{
			name:     "group stats on malformed group id",
			method:   http.MethodGet,
			path:     "/v1/groups/abc/stats",
			token:    getToken(t, alice),
			wantCode: http.StatusNotFound,
			wantData: notFound,
		},
	}

	for _, tt := range tts {
		t.Run(tt.name, func(t *testing.T) {
			req, rec := newAuthRequest(tt.method, tt.path, tt.token)
			a.server.ServeHTTP(rec, req)
			checkCodeAndData(t, tt, rec)
		})
	}

	// site admins see any group's stats without a membership
	req, rec := newAuthRequest(http.MethodGet, fmt.Sprintf("/v1/groups/%d/stats", grp.ID), getToken(t, admin))
	a.server.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestGroupDashboard(t *testing.T) {
	a := setup(t)
	_, alice, _, _, grp := seedStats(t, a)

	path := fmt.Sprintf("/v1/groups/%d/stats?%s", grp.ID, statsWindow)
	req, rec := newAuthRequest(http.MethodGet, path, getToken(t, alice))
	a.server.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var dash stats.Dashboard
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &dash))

	assert.Equal(t, 4, dash.Totals.Sessions)
	assert.Equal(t, 2, dash.Totals.Members)
	assert.Equal(t, 0, dash.Totals.Materials)
	assert.Equal(t, 0, dash.Totals.Comments)
	assert.Equal(t, 2.75, dash.Totals.StudyHours)

	assert.Len(t, dash.WeekLabels, 12)
	assert.Len(t, dash.WeekCounts, 12)
	assert.Len(t, dash.MonthLabels, 6)

	// only the 2h and 45min sessions have a measurable duration
	var histTotal int
	for _, c := range dash.HistCounts {
		histTotal += c
	}
	assert.Equal(t, 2, histTotal)
	assert.Len(t, dash.Scatter, 2)

	require.NotEmpty(t, dash.TopMembers)
	assert.Equal(t, "alice", dash.TopMembers[0].Username)
	assert.Equal(t, 2.0, dash.TopMembers[0].Hours)
}

func TestSiteDashboard_groupParamFallsBack(t *testing.T) {
	a := setup(t)
	admin, _, _, _, _ := seedStats(t, a)

	// an unknown group id silently degrades to the site-wide scope
	req, rec := newAuthRequest(http.MethodGet, "/v1/stats?group=999&"+statsWindow, getToken(t, admin))
	a.server.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var dash stats.Dashboard
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &dash))
	assert.Equal(t, 4, dash.Totals.Members) // all users, not group members
	assert.Equal(t, 4, dash.Totals.Sessions)
}

func TestGroupSessionsExport(t *testing.T) {
	a := setup(t)
	_, alice, _, _, grp := seedStats(t, a)

	path := fmt.Sprintf("/v1/groups/%d/stats/export?%s", grp.ID, statsWindow)
	req, rec := newAuthRequest(http.MethodGet, path, getToken(t, alice))
	a.server.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	assert.Contains(t, rec.Header().Get("Content-Type"), "text/csv")
	wantName := fmt.Sprintf("sessions_group_%d_2024-06-03_2024-06-10.csv", grp.ID)
	assert.Contains(t, rec.Header().Get("Content-Disposition"), wantName)

	want := strings.Join([]string{
		"date,start_time,end_time,duration_hours,title,created_by,is_online,location,meeting_link,status",
		"2024-06-03,09:00,11:00,2.00,Limits,alice,no,,,scheduled",
		"2024-06-04,14:20,15:05,0.75,Derivatives,bob,no,,,scheduled",
		"2024-06-05,09:00,08:00,0.00,Late night,alice,no,,,scheduled",
		"2024-06-08,,,,Review,bob,no,,,scheduled",
	}, "\n") + "\n"
	assert.Equal(t, want, rec.Body.String())
}

func TestSiteSessionsExport_hasGroupColumn(t *testing.T) {
	a := setup(t)
	admin, _, _, _, _ := seedStats(t, a)

	req, rec := newAuthRequest(http.MethodGet, "/v1/stats/export?"+statsWindow, getToken(t, admin))
	a.server.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	lines := strings.Split(strings.TrimSpace(rec.Body.String()), "\n")
	require.Len(t, lines, 5)
	assert.Equal(t, "date,start_time,end_time,duration_hours,title,created_by,group,is_online,location,meeting_link,status", lines[0])
	assert.Equal(t, "2024-06-03,09:00,11:00,2.00,Limits,alice,Calculus Crew,no,,,scheduled", lines[1])
}

func TestTopContributorsExport(t *testing.T) {
	a := setup(t)
	_, alice, _, _, grp := seedStats(t, a)

	path := fmt.Sprintf("/v1/groups/%d/stats/export-top?%s", grp.ID, statsWindow)
	req, rec := newAuthRequest(http.MethodGet, path, getToken(t, alice))
	a.server.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	wantName := fmt.Sprintf("top_members_group_%d_2024-06-03_2024-06-10.csv", grp.ID)
	assert.Contains(t, rec.Header().Get("Content-Disposition"), wantName)

	want := "user,sessions,hours\nalice,2,2.00\nbob,2,0.75\n"
	assert.Equal(t, want, rec.Body.String())
}

func TestSiteTopContributorsExportRequiresGroup(t *testing.T) {
	a := setup(t)
	admin, _, _, _, grp := seedStats(t, a)
	token := getToken(t, admin)

	badParam := marchallObj(t, httpErr{Error: "a valid group parameter is required"})
	tts := []httpTest{
		{
			name:     "no group param",
			method:   http.MethodGet,
			path:     "/v1/stats/export-top?" + statsWindow,
			token:    token,
			wantCode: http.StatusBadRequest,
			wantData: badParam,
		},
		{
			name:     "unparseable group param",
			method:   http.MethodGet,
			path:     "/v1/stats/export-top?group=notanint&" + statsWindow,
			token:    token,
			wantCode: http.StatusBadRequest,
			wantData: badParam,
		},
		{
			name:     "unknown group",
			method:   http.MethodGet,
			path:     "/v1/stats/export-top?group=999&" + statsWindow,
			token:    token,
			wantCode: http.StatusNotFound,
			wantData: marchallObj(t, httpErr{Error: "not found"}),
		},
	}
	for _, tt := range tts {
		t.Run(tt.name, func(t *testing.T) {
			req, rec := newAuthRequest(tt.method, tt.path, tt.token)
			a.server.ServeHTTP(rec, req)
			checkCodeAndData(t, tt, rec)
		})
	}

	path := fmt.Sprintf("/v1/stats/export-top?group=%d&%s", grp.ID, statsWindow)
	req, rec := newAuthRequest(http.MethodGet, path, token)
	a.server.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	wantName := fmt.Sprintf("top_members_group_%d_2024-06-03_2024-06-10.csv", grp.ID)
	assert.Contains(t, rec.Header().Get("Content-Disposition"), wantName)
	assert.Equal(t, "user,sessions,hours\nalice,2,2.00\nbob,2,0.75\n", rec.Body.String())
}

func TestMyStats(t *testing.T) {
	a := setup(t)
	_, alice, _, carol, _ := seedStats(t, a)

	path := "/v1/my-stats?" + statsWindow
	req, rec := newAuthRequest(http.MethodGet, path, getToken(t, alice))
	a.server.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var ms stats.MemberStats
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &ms))
	assert.Equal(t, 1, ms.GroupsJoined)
	assert.Equal(t, 2, ms.SessionsCreated)
	assert.Equal(t, 4, ms.SessionsAttended)
	assert.Equal(t, 2.75, ms.StudyHours)
	assert.Equal(t, "2024-06-03_2024-06-10", ms.Window.String())

	// a user with no memberships gets an all-zero report, not an error
	req, rec = newAuthRequest(http.MethodGet, path, getToken(t, carol))
	a.server.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &ms))
	assert.Equal(t, stats.MemberStats{Window: ms.Window}, ms)

	// no token
	req, rec = newAuthRequest(http.MethodGet, path, "")
	a.server.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}
