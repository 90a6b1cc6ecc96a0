package session

import (
	"context"
	"fmt"
	"net/mail"
	"time"

	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/tmalinga/vikundi/core"
	"github.com/tmalinga/vikundi/core/group"
	"github.com/tmalinga/vikundi/core/notification"
	"github.com/tmalinga/vikundi/core/user"
)

var (
	// errors
	ErrNotFound = errors.New("session not found")
)

type (
	Repository interface {
		CreateSession(ctx context.Context, sess Session) (Session, error)
		GetSessionByID(ctx context.Context, id int) (Session, error)
		// FilterSessions applies AND operation on available QueryFilter fields;
		// an empty filter returns all sessions. Results carry the group name and
		// creator username.
		FilterSessions(ctx context.Context, filter *QueryFilter, ordering []core.DBOrdering) ([]Session, error)
		CountSessions(ctx context.Context, groupID ...int) (int, error)
		UpdateSession(ctx context.Context, sess Session) (Session, error)
		DeleteSession(ctx context.Context, id int) error
	}

	// MemberSource lists the users to notify about a group's sessions.
	MemberSource interface {
		QueryMemberships(groupID int) ([]group.Membership, error)
	}

	// UserSource resolves member user records for notifications.
	UserSource interface {
		GetByID(id int) (user.User, error)
	}

	// NotificationSink persists the in-app counterpart of reminder emails.
	NotificationSink interface {
		Create(n notification.Notification) (notification.Notification, error)
	}

	Service struct {
		ctx     context.Context
		repo    Repository
		members MemberSource
		users   UserSource
		mailSvc core.EmailService
		notifs  NotificationSink
	}
)

func NewService(repo Repository, members MemberSource, users UserSource, mailSvc core.EmailService, notifs NotificationSink) *Service {
	return &Service{
		ctx:     context.Background(),
		repo:    repo,
		members: members,
		users:   users,
		mailSvc: mailSvc,
		notifs:  notifs,
	}
}

// Create schedules a Session and notifies group members by email.
func (svc *Service) Create(groupID, createdBy int, ns NewSession) (Session, error) {
	date, err := ParseDate(ns.Date)
	if err != nil {
		return Session{}, core.NewValidationError(err, core.FieldError{Field: "date", Error: "invalid date"})
	}

	now := time.Now().UTC()
	sess := Session{
		GroupID:     groupID,
		Title:       ns.Title,
		Description: ns.Description,
		Date:        date,
		Location:    ns.Location,
		IsOnline:    ns.IsOnline,
		MeetingLink: null.NewString(ns.MeetingLink, ns.MeetingLink != ""),
		Status:      StatusScheduled,
		CreatedBy:   createdBy,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if ns.StartTime != "" {
		t, err := ParseClock(ns.StartTime)
		if err != nil {
			return Session{}, core.NewValidationError(err, core.FieldError{Field: "start_time", Error: "invalid time"})
		}
		sess.StartTime = null.TimeFrom(t)
	}
	if ns.EndTime != "" {
		t, err := ParseClock(ns.EndTime)
		if err != nil {
			return Session{}, core.NewValidationError(err, core.FieldError{Field: "end_time", Error: "invalid time"})
		}
		sess.EndTime = null.TimeFrom(t)
	}

	sess, err = svc.repo.CreateSession(svc.ctx, sess)
	if err != nil {
		return Session{}, errors.Wrap(err, "creating session")
	}

	svc.sendReminders(sess)
	return sess, nil
}

func (svc *Service) GetByID(id int) (Session, error) {
	return svc.repo.GetSessionByID(svc.ctx, id)
}

func (svc *Service) Query(filter *QueryFilter, ordering []core.DBOrdering) ([]Session, error) {
	return svc.repo.FilterSessions(svc.ctx, filter, ordering)
}

func (svc *Service) Update(id int, us UpdateSession) (Session, error) {
	sess, err := svc.repo.GetSessionByID(svc.ctx, id)
	if err != nil {
		return Session{}, err
	}

	if us.Title != "" {
		sess.Title = us.Title
	}
	if us.Description != nil {
		sess.Description = *us.Description
	}
	if us.Date != "" {
		date, err := ParseDate(us.Date)
		if err != nil {
			return Session{}, core.NewValidationError(err, core.FieldError{Field: "date", Error: "invalid date"})
		}
		sess.Date = date
	}
	if us.StartTime != nil {
		sess.StartTime = null.Time{}
		if *us.StartTime != "" {
			t, err := ParseClock(*us.StartTime)
			if err != nil {
				return Session{}, core.NewValidationError(err, core.FieldError{Field: "start_time", Error: "invalid time"})
			}
			sess.StartTime = null.TimeFrom(t)
		}
	}
	if us.EndTime != nil {
		sess.EndTime = null.Time{}
		if *us.EndTime != "" {
			t, err := ParseClock(*us.EndTime)
			if err != nil {
				return Session{}, core.NewValidationError(err, core.FieldError{Field: "end_time", Error: "invalid time"})
			}
			sess.EndTime = null.TimeFrom(t)
		}
	}
	if us.Location != nil {
		sess.Location = *us.Location
	}
	if us.IsOnline != nil {
		sess.IsOnline = *us.IsOnline
	}
	if us.MeetingLink != nil {
		sess.MeetingLink = null.NewString(*us.MeetingLink, *us.MeetingLink != "")
	}
	if us.Status != "" {
		sess.Status = us.Status
	}
	sess.UpdatedAt = time.Now().UTC()

	sess, err = svc.repo.UpdateSession(svc.ctx, sess)
	return sess, errors.Wrap(err, "updating session")
}

func (svc *Service) Delete(id int) error {
	return errors.Wrap(svc.repo.DeleteSession(svc.ctx, id), "deleting session")
}

// sendReminders records an in-app notification and emails every group member
// about an upcoming session. Notification failures never fail the request.
func (svc *Service) sendReminders(sess Session) {
	memberships, err := svc.members.QueryMemberships(sess.GroupID)
	if err != nil {
		return
	}

	when := sess.Date.Format("Mon, 2 Jan 2006")
	if sess.StartTime.Valid {
		when += " at " + sess.StartTime.Time.Format("15:04")
	}

	msgs := make([]*core.EmailMessage, 0, len(memberships))
	for _, m := range memberships {
		if svc.notifs != nil {
			svc.notifs.Create(notification.Notification{
				RecipientID: m.UserID,
				Type:        notification.TypeSessionReminder,
				GroupID:     sess.GroupID,
				Title:       fmt.Sprintf("Upcoming Session: %s", sess.Title),
				Message:     fmt.Sprintf("Your study session %q is scheduled for %s.", sess.Title, when),
				RelatedLink: fmt.Sprintf("/groups/%d/sessions/%d", sess.GroupID, sess.ID),
			})
		}

		usr, err := svc.users.GetByID(m.UserID)
		if err != nil || usr.Email == "" {
			continue
		}
		msgs = append(msgs, &core.EmailMessage{
			To:      []mail.Address{{Name: usr.Name, Address: usr.Email}},
			Subject: fmt.Sprintf("Upcoming Session: %s", sess.Title),
			TextContent: fmt.Sprintf(
				"Hi %s,\n\nYour study session %q is scheduled for %s.", usr.Name, sess.Title, when),
		})
	}
	svc.mailSvc.SendMessages(msgs...)
}
