package stats

import (
	"context"
	"sort"
	"time"

	"github.com/pkg/errors"

	"github.com/tmalinga/vikundi/core"
	"github.com/tmalinga/vikundi/core/group"
	"github.com/tmalinga/vikundi/core/session"
)

// series widths
const (
	weeklyBuckets  = 12
	monthlyBuckets = 6
	topMembersCap  = 5
)

// histogram bin lower bounds in hours; the last bin is unbounded.
var (
	histogramEdges  = []float64{0, 0.5, 1, 1.5, 2, 3, 4, 6}
	histogramLabels = []string{"0-0.5h", "0.5-1h", "1-1.5h", "1.5-2h", "2-3h", "3-4h", "4-6h", "6h+"}
)

type (
	// Totals carries the dashboard's scalar numbers. All counts are all-time
	// within scope; StudyHours alone is window-bound. The original dashboard
	// behaves this way and downstream charts rely on it, so it stays.
	Totals struct {
		Sessions   int     `json:"total_sessions"`
		Materials  int     `json:"total_materials"`
		Comments   int     `json:"total_comments"`
		Members    int     `json:"total_members"`
		StudyHours float64 `json:"total_study_hours"`
	}

	// WeeklyBucket is a Monday-aligned 7-day period of the weekly series.
	WeeklyBucket struct {
		WeekStart time.Time `json:"week_start"`
		Label     string    `json:"label"`
		Count     int       `json:"count"`
		Hours     float64   `json:"hours"`
	}

	// HistogramBin counts sessions whose duration falls in [Lower, Upper);
	// the last bin has no upper bound.
	HistogramBin struct {
		Lower float64 `json:"lower_hours"`
		Upper float64 `json:"upper_hours,omitempty"`
		Label string  `json:"label"`
		Count int     `json:"count"`
	}

	// ScatterPoint plots one session: start time of day vs. duration.
	ScatterPoint struct {
		StartHour float64 `json:"x"`
		Hours     float64 `json:"y"`
	}

	// MonthBucket is one calendar month of the new-members series.
	MonthBucket struct {
		MonthStart time.Time `json:"month_start"`
		Label      string    `json:"label"`
		Count      int       `json:"count"`
	}

	// ContributorRow ranks a session creator by aggregate hours.
	ContributorRow struct {
		Username string  `json:"username"`
		Sessions int     `json:"sessions"`
		Hours    float64 `json:"hours"`
	}

	// Dashboard is the payload consumed by the charting frontend.
	Dashboard struct {
		Totals      Totals           `json:"totals"`
		WeekLabels  []string         `json:"week_labels"`
		WeekCounts  []int            `json:"week_counts"`
		WeekHours   []float64        `json:"week_hours"`
		MonthLabels []string         `json:"month_labels"`
		MonthCounts []int            `json:"month_counts"`
		HistLabels  []string         `json:"histogram_labels"`
		HistCounts  []int            `json:"histogram_counts"`
		Scatter     []ScatterPoint   `json:"scatter"`
		TopMembers  []ContributorRow `json:"top_members"`
		Window      Window           `json:"window"`
	}
)

// Service aggregates session records into the dashboard series and the export
// row sets. It only ever reads; every invocation works on a snapshot fetched
// once, so concurrent requests need no coordination.
type Service struct {
	ds Datastore
}

func NewService(ds Datastore) *Service {
	return &Service{ds: ds}
}

func (svc *Service) ResolveScope(ctx context.Context, rawGroupID string) Scope {
	return ResolveScope(ctx, svc.ds, rawGroupID)
}

func (svc *Service) GroupScope(grp group.Group) Scope {
	return GroupScope(svc.ds, grp)
}

// Dashboard computes the scalar totals and all chart series for a scope and
// window in one pass over the scope's session snapshot.
func (svc *Service) Dashboard(ctx context.Context, scope Scope, win Window) (Dashboard, error) {
	sessions, err := scope.sessions(ctx)
	if err != nil {
		return Dashboard{}, errors.Wrap(err, "fetching sessions")
	}

	totals, err := svc.totals(ctx, scope, sessions, win)
	if err != nil {
		return Dashboard{}, err
	}

	joins, err := scope.joinDates(ctx)
	if err != nil {
		return Dashboard{}, errors.Wrap(err, "fetching join dates")
	}

	weekly := WeeklySeries(sessions, win.End)
	months := MembersPerMonth(joins, win.End)
	hist := Histogram(sessions, win)

	dash := Dashboard{
		Totals:      totals,
		WeekLabels:  make([]string, 0, len(weekly)),
		WeekCounts:  make([]int, 0, len(weekly)),
		WeekHours:   make([]float64, 0, len(weekly)),
		MonthLabels: make([]string, 0, len(months)),
		MonthCounts: make([]int, 0, len(months)),
		HistLabels:  make([]string, 0, len(hist)),
		HistCounts:  make([]int, 0, len(hist)),
		Scatter:     Scatter(sessions, win),
		TopMembers:  TopContributors(sessions, win, topMembersCap),
		Window:      win,
	}
	for _, b := range weekly {
		dash.WeekLabels = append(dash.WeekLabels, b.Label)
		dash.WeekCounts = append(dash.WeekCounts, b.Count)
		dash.WeekHours = append(dash.WeekHours, b.Hours)
	}
	for _, m := range months {
		dash.MonthLabels = append(dash.MonthLabels, m.Label)
		dash.MonthCounts = append(dash.MonthCounts, m.Count)
	}
	for _, b := range hist {
		dash.HistLabels = append(dash.HistLabels, b.Label)
		dash.HistCounts = append(dash.HistCounts, b.Count)
	}
	return dash, nil
}

// Totals computes the scalar totals for a scope and window.
func (svc *Service) Totals(ctx context.Context, scope Scope, win Window) (Totals, error) {
	sessions, err := scope.sessions(ctx)
	if err != nil {
		return Totals{}, errors.Wrap(err, "fetching sessions")
	}
	return svc.totals(ctx, scope, sessions, win)
}

func (svc *Service) totals(ctx context.Context, scope Scope, sessions []session.Session, win Window) (Totals, error) {
	sessionCount, err := scope.sessionCount(ctx)
	if err != nil {
		return Totals{}, errors.Wrap(err, "counting sessions")
	}
	materialCount, err := scope.materialCount(ctx)
	if err != nil {
		return Totals{}, errors.Wrap(err, "counting materials")
	}
	commentCount, err := scope.commentCount(ctx)
	if err != nil {
		return Totals{}, errors.Wrap(err, "counting comments")
	}
	memberCount, err := scope.memberCount(ctx)
	if err != nil {
		return Totals{}, errors.Wrap(err, "counting members")
	}

	return Totals{
		Sessions:   sessionCount,
		Materials:  materialCount,
		Comments:   commentCount,
		Members:    memberCount,
		StudyHours: StudyHours(sessions, win),
	}, nil
}

// Sessions returns the scope's sessions within the window, ordered by
// (date, start time) ascending, ready for export.
func (svc *Service) Sessions(ctx context.Context, scope Scope, win Window) ([]session.Session, error) {
	all, err := scope.sessions(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "fetching sessions")
	}

	sessions := make([]session.Session, 0, len(all))
	for _, s := range all {
		if win.Contains(s.Date) {
			sessions = append(sessions, s)
		}
	}
	sort.SliceStable(sessions, func(i, j int) bool {
		if !sessions[i].Date.Equal(sessions[j].Date) {
			return sessions[i].Date.Before(sessions[j].Date)
		}
		return startClock(sessions[i]).Before(startClock(sessions[j]))
	})
	return sessions, nil
}

// TopContributors returns the full ranked contributor list for a scope and window.
func (svc *Service) TopContributors(ctx context.Context, scope Scope, win Window) ([]ContributorRow, error) {
	sessions, err := scope.sessions(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "fetching sessions")
	}
	return TopContributors(sessions, win, 0), nil
}

// MemberStats is one user's personal report. GroupsJoined is all-time; the
// session numbers and hours are window-bound. Attended means scheduled in one
// of the user's groups, there is no per-session attendance record.
type MemberStats struct {
	GroupsJoined     int     `json:"groups_joined"`
	SessionsCreated  int     `json:"sessions_created"`
	SessionsAttended int     `json:"sessions_attended"`
	StudyHours       float64 `json:"study_hours"`
	Window           Window  `json:"window"`
}

// MemberStats computes the personal report for one user over a window.
func (svc *Service) MemberStats(ctx context.Context, userID int, win Window) (MemberStats, error) {
	memberships, err := svc.ds.Groups.QueryUserMemberships(ctx, userID)
	if err != nil {
		return MemberStats{}, errors.Wrap(err, "fetching memberships")
	}
	groupIDs := make(map[int]bool, len(memberships))
	for _, m := range memberships {
		groupIDs[m.GroupID] = true
	}

	all, err := svc.ds.Sessions.FilterSessions(ctx, &session.QueryFilter{}, nil)
	if err != nil {
		return MemberStats{}, errors.Wrap(err, "fetching sessions")
	}

	ms := MemberStats{GroupsJoined: len(memberships), Window: win}
	attended := make([]session.Session, 0)
	for _, s := range all {
		if !win.Contains(s.Date) {
			continue
		}
		if s.CreatedBy == userID {
			ms.SessionsCreated++
		}
		if groupIDs[s.GroupID] {
			attended = append(attended, s)
		}
	}
	ms.SessionsAttended = len(attended)
	ms.StudyHours = StudyHours(attended, win)
	return ms, nil
}

// StudyHours sums positive session durations within the window, in hours
// rounded to 2 decimals.
func StudyHours(sessions []session.Session, win Window) float64 {
	var total float64
	for _, s := range sessions {
		if !win.Contains(s.Date) {
			continue
		}
		if d, ok := s.Duration(); ok {
			total += d.Hours()
		}
	}
	return core.Round2(total)
}

// WeeklySeries buckets sessions into a fixed 12-week trailing series ending
// at the Monday-aligned week containing end. The window start never narrows
// the series; it is always exactly 12 buckets.
func WeeklySeries(sessions []session.Session, end time.Time) []WeeklyBucket {
	lastWeek := MondayOf(end)
	firstWeek := lastWeek.AddDate(0, 0, -7*(weeklyBuckets-1))

	buckets := make([]WeeklyBucket, weeklyBuckets)
	for i := range buckets {
		ws := firstWeek.AddDate(0, 0, 7*i)
		buckets[i] = WeeklyBucket{WeekStart: ws, Label: ws.Format("2 Jan")}
	}

	for _, s := range sessions {
		week := MondayOf(s.Date)
		if week.Before(firstWeek) || week.After(lastWeek) {
			continue
		}
		idx := int(week.Sub(firstWeek).Hours() / (24 * 7))
		buckets[idx].Count++
		if h, ok := s.DurationHours(); ok {
			buckets[idx].Hours += h
		}
	}
	for i := range buckets {
		buckets[i].Hours = core.Round2(buckets[i].Hours)
	}
	return buckets
}

// Histogram bins sessions with a measurable duration into fixed hour ranges.
// Each qualifying session lands in exactly one half-open [lower, upper) bin.
func Histogram(sessions []session.Session, win Window) []HistogramBin {
	bins := make([]HistogramBin, len(histogramEdges))
	for i, lower := range histogramEdges {
		bins[i] = HistogramBin{Lower: lower, Label: histogramLabels[i]}
		if i < len(histogramEdges)-1 {
			bins[i].Upper = histogramEdges[i+1]
		}
	}

	for _, s := range sessions {
		if !win.Contains(s.Date) {
			continue
		}
		d, ok := s.Duration()
		if !ok {
			continue
		}
		h := d.Hours()
		for i := len(bins) - 1; i >= 0; i-- {
			if h >= bins[i].Lower {
				bins[i].Count++
				break
			}
		}
	}
	return bins
}

// Scatter plots each qualifying session's start time of day against its duration.
func Scatter(sessions []session.Session, win Window) []ScatterPoint {
	points := make([]ScatterPoint, 0, len(sessions))
	for _, s := range sessions {
		if !win.Contains(s.Date) {
			continue
		}
		h, ok := s.DurationHours()
		if !ok {
			continue
		}
		x, ok := s.StartHour()
		if !ok {
			continue
		}
		points = append(points, ScatterPoint{StartHour: x, Hours: h})
	}
	return points
}

// MembersPerMonth counts joins per calendar month over the 6 trailing months
// ending at the month containing end.
func MembersPerMonth(joins []time.Time, end time.Time) []MonthBucket {
	lastMonth := MonthOf(end)
	firstMonth := lastMonth.AddDate(0, -(monthlyBuckets - 1), 0)

	buckets := make([]MonthBucket, monthlyBuckets)
	for i := range buckets {
		ms := firstMonth.AddDate(0, i, 0)
		buckets[i] = MonthBucket{MonthStart: ms, Label: ms.Format("Jan 2006")}
	}

	for _, joined := range joins {
		month := MonthOf(joined)
		if month.Before(firstMonth) || month.After(lastMonth) {
			continue
		}
		idx := (month.Year()-firstMonth.Year())*12 + int(month.Month()) - int(firstMonth.Month())
		buckets[idx].Count++
	}
	return buckets
}

// TopContributors ranks session creators within the window by total hours
// (per-session hours rounded to 2 decimals before summing), then session
// count, then username. A limit of 0 returns the full list.
func TopContributors(sessions []session.Session, win Window, limit int) []ContributorRow {
	byUser := make(map[string]*ContributorRow)
	for _, s := range sessions {
		if !win.Contains(s.Date) {
			continue
		}
		row, ok := byUser[s.CreatorName]
		if !ok {
			row = &ContributorRow{Username: s.CreatorName}
			byUser[s.CreatorName] = row
		}
		row.Sessions++
		if h, ok := s.DurationHours(); ok {
			row.Hours += h
		}
	}

	rows := make([]ContributorRow, 0, len(byUser))
	for _, row := range byUser {
		row.Hours = core.Round2(row.Hours)
		rows = append(rows, *row)
	}
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].Hours != rows[j].Hours {
			return rows[i].Hours > rows[j].Hours
		}
		if rows[i].Sessions != rows[j].Sessions {
			return rows[i].Sessions > rows[j].Sessions
		}
		return rows[i].Username < rows[j].Username
	})

	if limit > 0 && len(rows) > limit {
		rows = rows[:limit]
	}
	return rows
}

func startClock(s session.Session) time.Time {
	if !s.StartTime.Valid {
		return time.Time{}
	}
	t := s.StartTime.Time
	return time.Date(1, time.January, 1, t.Hour(), t.Minute(), 0, 0, time.UTC)
}
