package stats

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"

	"github.com/pkg/errors"

	"github.com/tmalinga/vikundi/core/session"
)

// SessionsFilename names the session export: sessions_<scope>_<start>_<end>.csv
func SessionsFilename(scope Scope, win Window) string {
	return fmt.Sprintf("sessions_%s_%s.csv", scope.Label(), win)
}

// TopContributorsFilename names the top members export.
func TopContributorsFilename(scope Scope, win Window) string {
	return fmt.Sprintf("top_members_%s_%s.csv", scope.Label(), win)
}

// WriteSessionsCSV renders sessions (already windowed and ordered by date,
// start time) as CSV. The group column only appears in site-wide exports.
func WriteSessionsCSV(w io.Writer, sessions []session.Session, includeGroup bool) error {
	cw := csv.NewWriter(w)

	header := []string{"date", "start_time", "end_time", "duration_hours", "title", "created_by"}
	if includeGroup {
		header = append(header, "group")
	}
	header = append(header, "is_online", "location", "meeting_link", "status")
	if err := cw.Write(header); err != nil {
		return errors.Wrap(err, "writing csv header")
	}

	for _, s := range sessions {
		var start, end, duration string
		if s.StartTime.Valid {
			start = s.StartTime.Time.Format("15:04")
		}
		if s.EndTime.Valid {
			end = s.EndTime.Time.Format("15:04")
		}
		// blank unless both times are present
		if s.StartTime.Valid && s.EndTime.Valid {
			if h, ok := s.DurationHours(); ok {
				duration = strconv.FormatFloat(h, 'f', 2, 64)
			} else {
				duration = "0.00"
			}
		}
		isOnline := "no"
		if s.IsOnline {
			isOnline = "yes"
		}

		row := []string{s.Date.Format(dateLayout), start, end, duration, s.Title, s.CreatorName}
		if includeGroup {
			row = append(row, s.GroupName)
		}
		row = append(row, isOnline, s.Location, s.MeetingLink.String, s.Status)
		if err := cw.Write(row); err != nil {
			return errors.Wrap(err, "writing csv row")
		}
	}

	cw.Flush()
	return errors.Wrap(cw.Error(), "flushing csv")
}

// WriteTopContributorsCSV renders the full ranked contributor list as CSV.
func WriteTopContributorsCSV(w io.Writer, rows []ContributorRow) error {
	cw := csv.NewWriter(w)

	if err := cw.Write([]string{"user", "sessions", "hours"}); err != nil {
		return errors.Wrap(err, "writing csv header")
	}
	for _, row := range rows {
		rec := []string{row.Username, strconv.Itoa(row.Sessions), strconv.FormatFloat(row.Hours, 'f', 2, 64)}
		if err := cw.Write(rec); err != nil {
			return errors.Wrap(err, "writing csv row")
		}
	}

	cw.Flush()
	return errors.Wrap(cw.Error(), "flushing csv")
}
