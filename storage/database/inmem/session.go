package inmemdb

import (
	"context"
	"sort"

	"github.com/tmalinga/vikundi/core"
	"github.com/tmalinga/vikundi/core/session"
)

type sessionRepository struct {
	db *DB
}

var _ session.Repository = (*sessionRepository)(nil) // interface compliance check

func NewSessionRepository(db *DB) *sessionRepository {
	return &sessionRepository{db: db}
}

// annotate fills the joined group and creator names; the caller holds a read lock.
func (repo *sessionRepository) annotate(sess session.Session) session.Session {
	if grp, ok := repo.db.groups[sess.GroupID]; ok {
		sess.GroupName = grp.Name
	}
	if usr, ok := repo.db.users[sess.CreatedBy]; ok {
		sess.CreatorName = usr.Username
	}
	return sess
}

func (repo *sessionRepository) CreateSession(ctx context.Context, sess session.Session) (session.Session, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	sess.ID = repo.db.nextPK()
	repo.db.sessions[sess.ID] = &sess
	return repo.annotate(sess), nil
}

func (repo *sessionRepository) GetSessionByID(ctx context.Context, id int) (session.Session, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	if sess, ok := repo.db.sessions[id]; ok {
		return repo.annotate(*sess), nil
	}
	return session.Session{}, session.ErrNotFound
}

func (repo *sessionRepository) FilterSessions(ctx context.Context, filter *session.QueryFilter, ordering []core.DBOrdering) ([]session.Session, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	sessions := make([]session.Session, 0)
	for _, sess := range repo.db.sessions {
		if filter != nil && !matchSession(*sess, filter) {
			continue
		}
		sessions = append(sessions, repo.annotate(*sess))
	}
	sort.Slice(sessions, func(i, j int) bool {
		if !sessions[i].Date.Equal(sessions[j].Date) {
			return sessions[i].Date.Before(sessions[j].Date)
		}
		return sessions[i].ID < sessions[j].ID
	})
	return sessions, nil
}

func matchSession(sess session.Session, filter *session.QueryFilter) bool {
	if filter.GroupID != 0 && sess.GroupID != filter.GroupID {
		return false
	}
	if !filter.DateFrom.IsZero() && sess.Date.Before(filter.DateFrom) {
		return false
	}
	if !filter.DateTo.IsZero() && sess.Date.After(filter.DateTo) {
		return false
	}
	if filter.Status != "" && sess.Status != filter.Status {
		return false
	}
	return true
}

func (repo *sessionRepository) CountSessions(ctx context.Context, groupID ...int) (int, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	if len(groupID) == 0 {
		return len(repo.db.sessions), nil
	}
	var count int
	for _, sess := range repo.db.sessions {
		if sess.GroupID == groupID[0] {
			count++
		}
	}
	return count, nil
}

func (repo *sessionRepository) UpdateSession(ctx context.Context, sess session.Session) (session.Session, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	// only save set fields
	orig, ok := repo.db.sessions[sess.ID]
	if !ok {
		return session.Session{}, session.ErrNotFound
	}
	if sess.Title != "" {
		orig.Title = sess.Title
	}
	if sess.Description != "" {
		orig.Description = sess.Description
	}
	if !sess.Date.IsZero() {
		orig.Date = sess.Date
	}
	if sess.StartTime.Valid {
		orig.StartTime = sess.StartTime
	}
	if sess.EndTime.Valid {
		orig.EndTime = sess.EndTime
	}
	if sess.Location != "" {
		orig.Location = sess.Location
	}
	orig.IsOnline = sess.IsOnline
	if sess.MeetingLink.Valid {
		orig.MeetingLink = sess.MeetingLink
	}
	if sess.Status != "" {
		orig.Status = sess.Status
	}
	orig.UpdatedAt = sess.UpdatedAt
	return repo.annotate(*orig), nil
}

func (repo *sessionRepository) DeleteSession(ctx context.Context, id int) error {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()
	delete(repo.db.sessions, id)
	return nil
}
