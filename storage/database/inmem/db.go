// Package inmemdb provides map-backed repositories for tests and local
// development. Semantics mirror the psql implementations.
package inmemdb

import (
	"sync"

	"github.com/tmalinga/vikundi/core/group"
	"github.com/tmalinga/vikundi/core/notification"
	"github.com/tmalinga/vikundi/core/session"
	"github.com/tmalinga/vikundi/core/user"
)

type DB struct {
	mutex sync.RWMutex
	pk    int

	users         map[int]*user.User
	subjects      map[int]*group.Subject
	groups        map[int]*group.Group
	memberships   map[int]*group.Membership
	materials     map[int]*group.Material
	comments      map[int]*group.Comment
	sessions      map[int]*session.Session
	notifications map[int]*notification.Notification
}

func NewDB() *DB {
	return &DB{
		users:         make(map[int]*user.User),
		subjects:      make(map[int]*group.Subject),
		groups:        make(map[int]*group.Group),
		memberships:   make(map[int]*group.Membership),
		materials:     make(map[int]*group.Material),
		comments:      make(map[int]*group.Comment),
		sessions:      make(map[int]*session.Session),
		notifications: make(map[int]*notification.Notification),
	}
}

// nextPK issues table-agnostic sequential IDs; the caller holds the write lock.
func (db *DB) nextPK() int {
	db.pk++
	return db.pk
}

// AddSubject seeds a subject; subjects have no service-level create operation.
func (db *DB) AddSubject(subj group.Subject) group.Subject {
	db.mutex.Lock()
	defer db.mutex.Unlock()
	if subj.ID == 0 {
		subj.ID = db.nextPK()
	}
	db.subjects[subj.ID] = &subj
	return subj
}
