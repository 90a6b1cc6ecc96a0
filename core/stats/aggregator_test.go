package stats

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/volatiletech/null/v8"

	"github.com/tmalinga/vikundi/core/session"
)

func mkSession(creator, day, start, end string) session.Session {
	s := session.Session{
		Date:        date(day),
		CreatorName: creator,
		Status:      session.StatusScheduled,
	}
	if start != "" {
		t, err := time.Parse("15:04", start)
		if err != nil {
			panic(err)
		}
		s.StartTime = null.TimeFrom(t)
	}
	if end != "" {
		t, err := time.Parse("15:04", end)
		if err != nil {
			panic(err)
		}
		s.EndTime = null.TimeFrom(t)
	}
	return s
}

func TestStudyHours(t *testing.T) {
	win := Window{Start: date("2024-05-13"), End: date("2024-06-10")}

	sessions := []session.Session{
		mkSession("alice", "2024-06-01", "09:00", "11:00"), // 2h
		mkSession("alice", "2024-06-02", "10:00", "10:45"), // 0.75h
		mkSession("bob", "2024-06-03", "09:00", "08:00"),   // negative, excluded
		mkSession("bob", "2024-06-04", "09:00", "09:00"),   // zero, excluded
		mkSession("bob", "2024-06-05", "", ""),             // no times, excluded
		mkSession("eve", "2024-01-01", "09:00", "12:00"),   // outside window
	}

	if got := StudyHours(sessions, win); got != 2.75 {
		t.Errorf("StudyHours() = %v; want 2.75", got)
	}
}

func TestWeeklySeries(t *testing.T) {
	end := date("2024-06-10") // a Monday

	sessions := []session.Session{
		mkSession("alice", "2024-06-10", "09:00", "10:30"), // current week
		mkSession("alice", "2024-06-12", "14:00", "15:00"), // current week
		mkSession("bob", "2024-06-05", "09:00", "11:00"),   // previous week
		mkSession("bob", "2024-03-25", "09:00", "10:00"),   // first bucket
		mkSession("eve", "2024-03-24", "09:00", "10:00"),   // before series, dropped
		mkSession("eve", "2024-06-17", "09:00", "10:00"),   // after last bucket, dropped
		mkSession("eve", "2024-06-13", "", ""),             // counted, no hours
	}

	buckets := WeeklySeries(sessions, end)
	if len(buckets) != 12 {
		t.Fatalf("got %d buckets; want 12", len(buckets))
	}

	if got := buckets[0].WeekStart.Format("2006-01-02"); got != "2024-03-25" {
		t.Errorf("first bucket = %s; want 2024-03-25", got)
	}
	if got := buckets[11].WeekStart.Format("2006-01-02"); got != "2024-06-10" {
		t.Errorf("last bucket = %s; want 2024-06-10", got)
	}
	if buckets[0].Label != "25 Mar" {
		t.Errorf("label = %q; want %q", buckets[0].Label, "25 Mar")
	}

	last := buckets[11]
	if last.Count != 3 || last.Hours != 2.5 {
		t.Errorf("current week = %d sessions / %v hours; want 3 / 2.5", last.Count, last.Hours)
	}
	prev := buckets[10]
	if prev.Count != 1 || prev.Hours != 2 {
		t.Errorf("previous week = %d sessions / %v hours; want 1 / 2", prev.Count, prev.Hours)
	}
	if buckets[0].Count != 1 {
		t.Errorf("first bucket count = %d; want 1", buckets[0].Count)
	}
}

func TestWeeklySeries_alwaysTwelveBuckets(t *testing.T) {
	for _, day := range []string{"2024-06-10", "2024-06-11", "2024-06-16", "2024-01-01", "2023-12-31"} {
		if got := len(WeeklySeries(nil, date(day))); got != 12 {
			t.Errorf("WeeklySeries(end=%s) returned %d buckets; want 12", day, got)
		}
	}
}

func TestHistogram(t *testing.T) {
	win := Window{Start: date("2024-05-13"), End: date("2024-06-10")}

	sessions := []session.Session{
		mkSession("a", "2024-06-01", "09:00", "09:20"), // 0.33h  -> 0-0.5h
		mkSession("a", "2024-06-01", "09:00", "09:30"), // 0.5h   -> 0.5-1h (half-open)
		mkSession("a", "2024-06-01", "09:00", "10:00"), // 1h     -> 1-1.5h
		mkSession("a", "2024-06-01", "09:00", "10:45"), // 1.75h  -> 1.5-2h
		mkSession("a", "2024-06-01", "09:00", "11:30"), // 2.5h   -> 2-3h
		mkSession("a", "2024-06-01", "09:00", "12:30"), // 3.5h   -> 3-4h
		mkSession("a", "2024-06-01", "08:00", "13:00"), // 5h     -> 4-6h
		mkSession("a", "2024-06-01", "08:00", "14:00"), // 6h     -> 6h+
		mkSession("a", "2024-06-01", "08:00", "20:00"), // 12h    -> 6h+
		mkSession("a", "2024-06-01", "09:00", "09:00"), // zero, excluded
		mkSession("a", "2024-06-01", "09:00", "08:00"), // negative, excluded
		mkSession("a", "2024-06-01", "", ""),           // no times, excluded
		mkSession("a", "2024-04-01", "09:00", "10:00"), // outside window
	}

	bins := Histogram(sessions, win)
	if len(bins) != 8 {
		t.Fatalf("got %d bins; want 8", len(bins))
	}

	wantLabels := []string{"0-0.5h", "0.5-1h", "1-1.5h", "1.5-2h", "2-3h", "3-4h", "4-6h", "6h+"}
	wantCounts := []int{1, 1, 1, 1, 1, 1, 1, 2}
	for i, bin := range bins {
		if bin.Label != wantLabels[i] {
			t.Errorf("bin %d label = %q; want %q", i, bin.Label, wantLabels[i])
		}
		if bin.Count != wantCounts[i] {
			t.Errorf("bin %q count = %d; want %d", bin.Label, bin.Count, wantCounts[i])
		}
	}

	// every qualifying session lands in exactly one bin
	var total, qualifying int
	for _, bin := range bins {
		total += bin.Count
	}
	for _, s := range sessions {
		if _, ok := s.Duration(); ok && win.Contains(s.Date) {
			qualifying++
		}
	}
	if total != qualifying {
		t.Errorf("bin counts sum to %d; want %d qualifying sessions", total, qualifying)
	}
}

func TestScatter(t *testing.T) {
	win := Window{Start: date("2024-05-13"), End: date("2024-06-10")}

	sessions := []session.Session{
		mkSession("a", "2024-06-01", "09:30", "11:00"), // x=9.5 y=1.5
		mkSession("a", "2024-06-02", "14:20", "15:00"), // x=14.33 y=0.67
		mkSession("a", "2024-06-03", "09:00", "08:00"), // negative, excluded
		mkSession("a", "2024-06-04", "", ""),           // no times, excluded
	}

	points := Scatter(sessions, win)
	want := []ScatterPoint{
		{StartHour: 9.5, Hours: 1.5},
		{StartHour: 14.33, Hours: 0.67},
	}
	assert.Equal(t, want, points)
}

func TestMembersPerMonth(t *testing.T) {
	end := date("2024-06-10")

	joins := []time.Time{
		date("2024-06-01"),
		date("2024-06-30"),
		date("2024-05-15"),
		date("2024-01-01"),
		date("2023-12-31"), // before series, dropped
		date("2024-07-01"), // after series, dropped
	}

	buckets := MembersPerMonth(joins, end)
	if len(buckets) != 6 {
		t.Fatalf("got %d buckets; want 6", len(buckets))
	}
	if buckets[0].Label != "Jan 2024" || buckets[5].Label != "Jun 2024" {
		t.Errorf("labels = %q .. %q; want Jan 2024 .. Jun 2024", buckets[0].Label, buckets[5].Label)
	}

	wantCounts := []int{1, 0, 0, 0, 1, 2}
	for i, b := range buckets {
		if b.Count != wantCounts[i] {
			t.Errorf("bucket %q count = %d; want %d", b.Label, b.Count, wantCounts[i])
		}
	}
}

func TestTopContributors(t *testing.T) {
	win := Window{Start: date("2024-05-13"), End: date("2024-06-10")}

	sessions := []session.Session{
		mkSession("carol", "2024-06-01", "09:00", "12:00"), // 3h
		mkSession("carol", "2024-06-02", "09:00", "10:00"), // 1h
		mkSession("bob", "2024-06-03", "09:00", "11:00"),   // 2h
		mkSession("alice", "2024-06-04", "09:00", "11:00"), // 2h
		mkSession("dave", "2024-06-05", "09:00", "08:00"),  // negative: counts, no hours
		mkSession("eve", "2024-01-01", "09:00", "12:00"),   // outside window
	}

	rows := TopContributors(sessions, win, 0)
	want := []ContributorRow{
		{Username: "carol", Sessions: 2, Hours: 4},
		{Username: "alice", Sessions: 1, Hours: 2}, // alphabetical tie-break
		{Username: "bob", Sessions: 1, Hours: 2},
		{Username: "dave", Sessions: 1, Hours: 0},
	}
	assert.Equal(t, want, rows)
}

func TestTopContributors_limit(t *testing.T) {
	win := Window{Start: date("2024-05-13"), End: date("2024-06-10")}

	var sessions []session.Session
	for _, name := range []string{"a", "b", "c", "d", "e", "f", "g"} {
		sessions = append(sessions, mkSession(name, "2024-06-01", "09:00", "10:00"))
	}

	if got := len(TopContributors(sessions, win, 5)); got != 5 {
		t.Errorf("limited list has %d rows; want 5", got)
	}
	if got := len(TopContributors(sessions, win, 0)); got != 7 {
		t.Errorf("full list has %d rows; want 7", got)
	}
}

func TestTopContributors_countTieBreak(t *testing.T) {
	win := Window{Start: date("2024-05-13"), End: date("2024-06-10")}

	// same hours, different session counts: more sessions ranks higher
	sessions := []session.Session{
		mkSession("solo", "2024-06-01", "09:00", "11:00"),  // 2h / 1 session
		mkSession("split", "2024-06-02", "09:00", "10:00"), // 2h / 2 sessions
		mkSession("split", "2024-06-03", "09:00", "10:00"),
	}

	rows := TopContributors(sessions, win, 0)
	if rows[0].Username != "split" || rows[1].Username != "solo" {
		t.Errorf("order = %s, %s; want split, solo", rows[0].Username, rows[1].Username)
	}
}

func TestNegativeDurationSession(t *testing.T) {
	// start 09:00, end 08:00: counts toward totals, contributes no hours,
	// excluded from histogram and scatter
	win := Window{Start: date("2024-05-13"), End: date("2024-06-10")}
	sessions := []session.Session{mkSession("a", "2024-06-01", "09:00", "08:00")}

	if got := StudyHours(sessions, win); got != 0 {
		t.Errorf("StudyHours() = %v; want 0", got)
	}
	for _, bin := range Histogram(sessions, win) {
		if bin.Count != 0 {
			t.Errorf("bin %q count = %d; want 0", bin.Label, bin.Count)
		}
	}
	if points := Scatter(sessions, win); len(points) != 0 {
		t.Errorf("Scatter() returned %d points; want 0", len(points))
	}
	rows := TopContributors(sessions, win, 0)
	if len(rows) != 1 || rows[0].Sessions != 1 || rows[0].Hours != 0 {
		t.Errorf("TopContributors() = %+v; want 1 session with 0 hours", rows)
	}
}
