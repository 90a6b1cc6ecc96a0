package sqlxrepos

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/tmalinga/vikundi/core"
	"github.com/tmalinga/vikundi/core/session"
)

// clock maps a psql "time" column to a wall-clock time of day; the pq driver
// hands these over as raw text.
type clock struct {
	null.Time
}

func (c *clock) Scan(value interface{}) error {
	switch v := value.(type) {
	case nil:
		c.Time = null.Time{}
		return nil
	case time.Time:
		c.Time = null.TimeFrom(v)
		return nil
	case []byte:
		return c.parse(string(v))
	case string:
		return c.parse(v)
	}
	return errors.Errorf("unsupported time of day value %T", value)
}

func (c *clock) parse(s string) error {
	for _, layout := range []string{"15:04:05", "15:04"} {
		if t, err := time.Parse(layout, s); err == nil {
			c.Time = null.TimeFrom(t)
			return nil
		}
	}
	return errors.Errorf("malformed time of day %q", s)
}

func (c clock) Value() (driver.Value, error) {
	if !c.Valid {
		return nil, nil
	}
	return c.Time.Time.Format("15:04:05"), nil
}

const sessionColumns = `s.id, s.group_id, g.name AS group_name, s.title, s.description, s.date,
	s.start_time, s.end_time, s.location, s.is_online, s.meeting_link, s.status,
	s.created_by, u.username AS creator_name, s.created_at, s.updated_at`

const sessionFrom = `FROM session s
	JOIN "group" g ON g.id = s.group_id
	JOIN "user" u ON u.id = s.created_by`

type sessionRow struct {
	ID          int         `db:"id"`
	GroupID     int         `db:"group_id"`
	GroupName   string      `db:"group_name"`
	Title       string      `db:"title"`
	Description string      `db:"description"`
	Date        time.Time   `db:"date"`
	StartTime   clock       `db:"start_time"`
	EndTime     clock       `db:"end_time"`
	Location    string      `db:"location"`
	IsOnline    bool        `db:"is_online"`
	MeetingLink null.String `db:"meeting_link"`
	Status      string      `db:"status"`
	CreatedBy   int         `db:"created_by"`
	CreatorName string      `db:"creator_name"`
	CreatedAt   time.Time   `db:"created_at"`
	UpdatedAt   time.Time   `db:"updated_at"`
}

func (r sessionRow) unpack() session.Session {
	return session.Session{
		ID:          r.ID,
		GroupID:     r.GroupID,
		GroupName:   r.GroupName,
		Title:       r.Title,
		Description: r.Description,
		Date:        r.Date,
		StartTime:   r.StartTime.Time,
		EndTime:     r.EndTime.Time,
		Location:    r.Location,
		IsOnline:    r.IsOnline,
		MeetingLink: r.MeetingLink,
		Status:      r.Status,
		CreatedBy:   r.CreatedBy,
		CreatorName: r.CreatorName,
		CreatedAt:   r.CreatedAt,
		UpdatedAt:   r.UpdatedAt,
	}
}

type sessionRepository struct {
	db *sqlx.DB
}

var _ session.Repository = (*sessionRepository)(nil) // interface compliance check

func NewSessionRepository(db *sqlx.DB) *sessionRepository {
	return &sessionRepository{db: db}
}

func (repo *sessionRepository) trapNoRowsErr(err error, msg string) error {
	if err == sql.ErrNoRows {
		return session.ErrNotFound
	}
	return errors.Wrap(err, msg)
}

func (repo *sessionRepository) CreateSession(ctx context.Context, sess session.Session) (session.Session, error) {
	query := `INSERT INTO session (group_id, title, description, date, start_time, end_time, location, is_online, meeting_link, status, created_by, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		RETURNING id`
	err := repo.db.GetContext(
		ctx, &sess.ID, query,
		sess.GroupID, sess.Title, sess.Description, sess.Date,
		clock{sess.StartTime}, clock{sess.EndTime},
		sess.Location, sess.IsOnline, sess.MeetingLink, sess.Status,
		sess.CreatedBy, sess.CreatedAt, sess.UpdatedAt,
	)
	if err != nil {
		return session.Session{}, errors.Wrap(err, "inserting session")
	}
	return repo.GetSessionByID(ctx, sess.ID)
}

func (repo *sessionRepository) GetSessionByID(ctx context.Context, id int) (session.Session, error) {
	var r sessionRow
	query := fmt.Sprintf(`SELECT %s %s WHERE s.id = $1`, sessionColumns, sessionFrom)
	if err := repo.db.GetContext(ctx, &r, query, id); err != nil {
		return session.Session{}, repo.trapNoRowsErr(err, "getting session")
	}
	return r.unpack(), nil
}

func (repo *sessionRepository) FilterSessions(ctx context.Context, filter *session.QueryFilter, ordering []core.DBOrdering) ([]session.Session, error) {
	var (
		conds []string
		args  []interface{}
	)
	arg := func(v interface{}) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if filter != nil {
		if filter.GroupID != 0 {
			conds = append(conds, "s.group_id = "+arg(filter.GroupID))
		}
		if !filter.DateFrom.IsZero() {
			conds = append(conds, "s.date >= "+arg(filter.DateFrom))
		}
		if !filter.DateTo.IsZero() {
			conds = append(conds, "s.date <= "+arg(filter.DateTo))
		}
		if filter.Status != "" {
			conds = append(conds, "s.status = "+arg(filter.Status))
		}
	}

	query := fmt.Sprintf(`SELECT %s %s`, sessionColumns, sessionFrom)
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	query += " ORDER BY " + orderBy(ordering, "s.date, s.start_time")

	var rows []sessionRow
	if err := repo.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, errors.Wrap(err, "filtering sessions")
	}
	sessions := make([]session.Session, 0, len(rows))
	for _, r := range rows {
		sessions = append(sessions, r.unpack())
	}
	return sessions, nil
}

func (repo *sessionRepository) CountSessions(ctx context.Context, groupID ...int) (int, error) {
	query := `SELECT count(*) FROM session`
	args := make([]interface{}, 0, 1)
	if len(groupID) > 0 {
		query += ` WHERE group_id = $1`
		args = append(args, groupID[0])
	}
	var count int
	if err := repo.db.GetContext(ctx, &count, query, args...); err != nil {
		return 0, errors.Wrap(err, "counting sessions")
	}
	return count, nil
}

// UpdateSession only saves set fields; empty strings and zero dates keep the stored value.
func (repo *sessionRepository) UpdateSession(ctx context.Context, sess session.Session) (session.Session, error) {
	query := `UPDATE session SET
		title = COALESCE(NULLIF($2, ''), title),
		description = COALESCE(NULLIF($3, ''), description),
		date = COALESCE($4, date),
		start_time = COALESCE($5, start_time),
		end_time = COALESCE($6, end_time),
		location = COALESCE(NULLIF($7, ''), location),
		is_online = $8,
		meeting_link = COALESCE($9, meeting_link),
		status = COALESCE(NULLIF($10, ''), status),
		updated_at = $11
		WHERE id = $1
		RETURNING id`
	err := repo.db.GetContext(
		ctx, &sess.ID, query,
		sess.ID, sess.Title, sess.Description,
		null.NewTime(sess.Date, !sess.Date.IsZero()),
		clock{sess.StartTime}, clock{sess.EndTime},
		sess.Location, sess.IsOnline, sess.MeetingLink, sess.Status, sess.UpdatedAt,
	)
	if err != nil {
		return session.Session{}, repo.trapNoRowsErr(err, "updating session")
	}
	return repo.GetSessionByID(ctx, sess.ID)
}

func (repo *sessionRepository) DeleteSession(ctx context.Context, id int) error {
	_, err := repo.db.ExecContext(ctx, `DELETE FROM session WHERE id = $1`, id)
	return errors.Wrap(err, "deleting session")
}
