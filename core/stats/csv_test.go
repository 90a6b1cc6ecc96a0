package stats

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/volatiletech/null/v8"

	"github.com/tmalinga/vikundi/core/group"
	"github.com/tmalinga/vikundi/core/session"
)

func TestSessionsFilename(t *testing.T) {
	win := Window{Start: date("2024-03-18"), End: date("2024-06-10")}

	site := SiteScope(Datastore{})
	grp := GroupScope(Datastore{}, group.Group{ID: 7})

	if got := SessionsFilename(site, win); got != "sessions_global_2024-03-18_2024-06-10.csv" {
		t.Errorf("SessionsFilename(site) = %q", got)
	}
	if got := SessionsFilename(grp, win); got != "sessions_group_7_2024-03-18_2024-06-10.csv" {
		t.Errorf("SessionsFilename(group) = %q", got)
	}
	if got := TopContributorsFilename(grp, win); got != "top_members_group_7_2024-03-18_2024-06-10.csv" {
		t.Errorf("TopContributorsFilename(group) = %q", got)
	}
}

func TestWriteSessionsCSV(t *testing.T) {
	s1 := mkSession("alice", "2024-06-01", "09:00", "10:30")
	s1.Title = "Algebra review"
	s1.GroupName = "Math Club"
	s1.IsOnline = true
	s1.MeetingLink = null.StringFrom("https://meet.example.com/abc")
	s1.Status = session.StatusCompleted

	s2 := mkSession("bob", "2024-06-02", "14:00", "")
	s2.Title = "Open study"
	s2.GroupName = "Math Club"
	s2.Location = "Library room 2"
	s2.Status = session.StatusScheduled

	s3 := mkSession("carol", "2024-06-03", "09:00", "08:00")
	s3.Title = "Late night"
	s3.GroupName = "Math Club"
	s3.Status = session.StatusCancelled

	t.Run("group export", func(t *testing.T) {
		var buf strings.Builder
		require.NoError(t, WriteSessionsCSV(&buf, []session.Session{s1, s2, s3}, false))

		lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
		require.Len(t, lines, 4)
		assert.Equal(t, "date,start_time,end_time,duration_hours,title,created_by,is_online,location,meeting_link,status", lines[0])
		assert.Equal(t, "2024-06-01,09:00,10:30,1.50,Algebra review,alice,yes,,https://meet.example.com/abc,completed", lines[1])
		// missing end time leaves the duration blank
		assert.Equal(t, "2024-06-02,14:00,,,Open study,bob,no,Library room 2,,scheduled", lines[2])
		// both times present but non-positive renders 0.00
		assert.Equal(t, "2024-06-03,09:00,08:00,0.00,Late night,carol,no,,,cancelled", lines[3])
	})

	t.Run("site export has group column", func(t *testing.T) {
		var buf strings.Builder
		require.NoError(t, WriteSessionsCSV(&buf, []session.Session{s1}, true))

		lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
		require.Len(t, lines, 2)
		assert.Equal(t, "date,start_time,end_time,duration_hours,title,created_by,group,is_online,location,meeting_link,status", lines[0])
		assert.Equal(t, "2024-06-01,09:00,10:30,1.50,Algebra review,alice,Math Club,yes,,https://meet.example.com/abc,completed", lines[1])
	})

	t.Run("empty", func(t *testing.T) {
		var buf strings.Builder
		require.NoError(t, WriteSessionsCSV(&buf, nil, false))
		assert.Equal(t, "date,start_time,end_time,duration_hours,title,created_by,is_online,location,meeting_link,status\n", buf.String())
	})
}

func TestWriteTopContributorsCSV(t *testing.T) {
	rows := []ContributorRow{
		{Username: "carol", Sessions: 2, Hours: 4},
		{Username: "alice", Sessions: 1, Hours: 2.5},
	}

	var buf strings.Builder
	require.NoError(t, WriteTopContributorsCSV(&buf, rows))

	want := "user,sessions,hours\n" +
		"carol,2,4.00\n" +
		"alice,1,2.50\n"
	assert.Equal(t, want, buf.String())
}
