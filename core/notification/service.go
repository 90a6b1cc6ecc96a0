package notification

import (
	"context"
	"time"

	"github.com/pkg/errors"
)

var ErrNotFound = errors.New("notification not found")

type (
	Repository interface {
		CreateNotification(ctx context.Context, n Notification) (Notification, error)
		GetNotificationByID(ctx context.Context, id int) (Notification, error)
		// QueryUserNotifications returns the recipient's notifications,
		// newest first.
		QueryUserNotifications(ctx context.Context, recipientID int) ([]Notification, error)
		UpdateNotification(ctx context.Context, n Notification) (Notification, error)
	}

	Service struct {
		ctx  context.Context
		repo Repository
	}
)

func NewService(repo Repository) *Service {
	return &Service{
		ctx:  context.Background(),
		repo: repo,
	}
}

func (svc *Service) Create(n Notification) (Notification, error) {
	n.CreatedAt = time.Now().UTC()
	return svc.repo.CreateNotification(svc.ctx, n)
}

func (svc *Service) QueryForUser(recipientID int) ([]Notification, error) {
	return svc.repo.QueryUserNotifications(svc.ctx, recipientID)
}

// MarkRead flags a notification as read. Another user's notification is
// indistinguishable from a missing one.
func (svc *Service) MarkRead(id, recipientID int) (Notification, error) {
	n, err := svc.repo.GetNotificationByID(svc.ctx, id)
	if err != nil {
		return Notification{}, err
	}
	if n.RecipientID != recipientID {
		return Notification{}, ErrNotFound
	}
	if n.IsRead {
		return n, nil
	}
	n.IsRead = true
	return svc.repo.UpdateNotification(svc.ctx, n)
}
