package session

import (
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/volatiletech/null/v8"

	"github.com/tmalinga/vikundi/core"
)

// Session statuses
const (
	StatusScheduled  = "scheduled"
	StatusInProgress = "in_progress"
	StatusCompleted  = "completed"
	StatusCancelled  = "cancelled"
)

var Statuses = []string{StatusScheduled, StatusInProgress, StatusCompleted, StatusCancelled}

type Session struct {
	ID          int         `json:"id"`
	GroupID     int         `json:"group_id"`
	GroupName   string      `json:"group_name"`
	Title       string      `json:"title"`
	Description string      `json:"description"`
	Date        time.Time   `json:"date"`       // date only, UTC midnight
	StartTime   null.Time   `json:"start_time"` // clock time; date part is ignored
	EndTime     null.Time   `json:"end_time"`   // clock time; date part is ignored
	Location    string      `json:"location"`
	IsOnline    bool        `json:"is_online"`
	MeetingLink null.String `json:"meeting_link"`
	Status      string      `json:"status"`
	CreatedBy   int         `json:"created_by"`
	CreatorName string      `json:"created_by_username"`
	CreatedAt   time.Time   `json:"created_at"` // UTC
	UpdatedAt   time.Time   `json:"updated_at"` // UTC
}

// Duration returns the session length. ok is false when either time is
// missing or the length is not positive; such sessions have no measurable
// duration and are left out of hour-based aggregates.
func (s Session) Duration() (time.Duration, bool) {
	if !s.StartTime.Valid || !s.EndTime.Valid {
		return 0, false
	}
	d := clockOf(s.EndTime.Time).Sub(clockOf(s.StartTime.Time))
	if d <= 0 {
		return 0, false
	}
	return d, true
}

// DurationHours returns the session length in hours, rounded to 2 decimals.
func (s Session) DurationHours() (float64, bool) {
	d, ok := s.Duration()
	if !ok {
		return 0, false
	}
	return core.Round2(d.Hours()), true
}

// StartHour returns the start time as a decimal hour (e.g. 9.5 for 09:30),
// rounded to 2 decimals.
func (s Session) StartHour() (float64, bool) {
	if !s.StartTime.Valid {
		return 0, false
	}
	t := s.StartTime.Time
	return core.Round2(float64(t.Hour()) + float64(t.Minute())/60), true
}

// clockOf strips the date part, keeping only the time of day.
func clockOf(t time.Time) time.Time {
	return time.Date(0, time.January, 1, t.Hour(), t.Minute(), t.Second(), 0, time.UTC)
}

// NewSession contains information needed to schedule a new Session.
type NewSession struct {
	Title       string `json:"title" validate:"required,max=200"`
	Description string `json:"description"`
	Date        string `json:"date" validate:"required,datetime=2006-01-02"`
	StartTime   string `json:"start_time" validate:"omitempty,datetime=15:04"`
	EndTime     string `json:"end_time" validate:"omitempty,datetime=15:04"`
	Location    string `json:"location"`
	IsOnline    bool   `json:"is_online"`
	MeetingLink string `json:"meeting_link" validate:"omitempty,url"`
}

func (ns *NewSession) Validate(validate *validator.Validate) error {
	ns.Title = core.CleanString(ns.Title)
	ns.Location = core.CleanString(ns.Location)
	ns.MeetingLink = core.CleanString(ns.MeetingLink)
	return validate.Struct(ns)
}

// UpdateSession defines what information may be provided to modify an existing Session.
type UpdateSession struct {
	Title       string  `json:"title" validate:"omitempty,max=200"`
	Description *string `json:"description"`
	Date        string  `json:"date" validate:"omitempty,datetime=2006-01-02"`
	StartTime   *string `json:"start_time" validate:"omitempty"`
	EndTime     *string `json:"end_time" validate:"omitempty"`
	Location    *string `json:"location"`
	IsOnline    *bool   `json:"is_online"`
	MeetingLink *string `json:"meeting_link"`
	Status      string  `json:"status" validate:"omitempty,oneof=scheduled in_progress completed cancelled"`
}

func (us *UpdateSession) Validate(validate *validator.Validate) error {
	us.Title = core.CleanString(us.Title)
	return validate.Struct(us)
}

// QueryFilter filters sessions by group and/or date range; zero values are ignored.
type QueryFilter struct {
	GroupID  int
	DateFrom time.Time
	DateTo   time.Time
	Status   string
}

func (qf *QueryFilter) IsEmpty() bool {
	return qf.GroupID == 0 && qf.DateFrom.IsZero() && qf.DateTo.IsZero() && qf.Status == ""
}

// ParseDate parses an ISO `YYYY-MM-DD` date into a UTC midnight time.
func ParseDate(s string) (time.Time, error) {
	return time.Parse("2006-01-02", s)
}

// ParseClock parses an `HH:MM` clock time.
func ParseClock(s string) (time.Time, error) {
	return time.Parse("15:04", s)
}
