package stats

import (
	"encoding/json"
	"fmt"
	"time"
)

// MaxWindowWeeks caps explicit from/to windows; presets never exceed it.
const MaxWindowWeeks = 26

const dateLayout = "2006-01-02"

var presetWeeks = map[string]int{
	"4w":  4,
	"8w":  8,
	"12w": 12,
	"26w": 26,
}

// Window is a closed [Start, End] date interval governing which sessions
// count toward hour-based aggregates. Both bounds are UTC midnights.
type Window struct {
	Start time.Time `json:"start_date"`
	End   time.Time `json:"end_date"`
}

func (w Window) Contains(date time.Time) bool {
	d := DateOf(date)
	return !d.Before(w.Start) && !d.After(w.End)
}

func (w Window) String() string {
	return w.Start.Format(dateLayout) + "_" + w.End.Format(dateLayout)
}

func (w Window) MarshalJSON() ([]byte, error) {
	return []byte(fmt.Sprintf(`{"start_date":%q,"end_date":%q}`,
		w.Start.Format(dateLayout), w.End.Format(dateLayout))), nil
}

func (w *Window) UnmarshalJSON(data []byte) error {
	var raw struct {
		Start string `json:"start_date"`
		End   string `json:"end_date"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	start, err := time.Parse(dateLayout, raw.Start)
	if err != nil {
		return err
	}
	end, err := time.Parse(dateLayout, raw.End)
	if err != nil {
		return err
	}
	w.Start, w.End = start, end
	return nil
}

// ResolveWindow turns raw request parameters into a validated Window.
//
// A recognized preset ends at today and spans its named number of weeks; it
// takes precedence over from/to. Otherwise from/to override the default
// trailing 12 weeks where they parse as ISO dates; malformed values are
// ignored, never surfaced. Reversed bounds are swapped and explicit spans are
// clamped to MaxWindowWeeks. The result is always non-empty with Start <= End.
func ResolveWindow(from, to, preset string, today time.Time) Window {
	today = DateOf(today)

	if weeks, ok := presetWeeks[preset]; ok {
		return Window{Start: today.AddDate(0, 0, -7*weeks), End: today}
	}

	start := today.AddDate(0, 0, -7*12)
	end := today
	if d, err := time.Parse(dateLayout, from); err == nil {
		start = d
	}
	if d, err := time.Parse(dateLayout, to); err == nil {
		end = d
	}

	if start.After(end) {
		start, end = end, start
	}
	if end.Sub(start) > MaxWindowWeeks*7*24*time.Hour {
		start = end.AddDate(0, 0, -7*MaxWindowWeeks)
	}
	return Window{Start: start, End: end}
}

// DateOf truncates a time to its UTC calendar date.
func DateOf(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// MondayOf returns the Monday-aligned start of the week containing t.
func MondayOf(t time.Time) time.Time {
	t = DateOf(t)
	wd := int(t.Weekday())
	if wd == 0 { // Sunday
		wd = 7
	}
	return t.AddDate(0, 0, 1-wd)
}

// MonthOf returns the first day of the calendar month containing t.
func MonthOf(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
}
