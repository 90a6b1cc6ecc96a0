package sqlxrepos

import (
	"context"
	"database/sql"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/tmalinga/vikundi/core/notification"
)

const notificationColumns = `id, recipient_id, notification_type, group_id, title, message, related_link, is_read, created_at`

type notificationRow struct {
	ID          int       `db:"id"`
	RecipientID int       `db:"recipient_id"`
	Type        string    `db:"notification_type"`
	GroupID     int       `db:"group_id"`
	Title       string    `db:"title"`
	Message     string    `db:"message"`
	RelatedLink string    `db:"related_link"`
	IsRead      bool      `db:"is_read"`
	CreatedAt   time.Time `db:"created_at"`
}

func (r notificationRow) unpack() notification.Notification {
	return notification.Notification{
		ID:          r.ID,
		RecipientID: r.RecipientID,
		Type:        r.Type,
		GroupID:     r.GroupID,
		Title:       r.Title,
		Message:     r.Message,
		RelatedLink: r.RelatedLink,
		IsRead:      r.IsRead,
		CreatedAt:   r.CreatedAt,
	}
}

type notificationRepository struct {
	db *sqlx.DB
}

var _ notification.Repository = (*notificationRepository)(nil) // interface compliance check

func NewNotificationRepository(db *sqlx.DB) *notificationRepository {
	return &notificationRepository{db: db}
}

func (repo *notificationRepository) trapNoRowsErr(err error, msg string) error {
	if err == sql.ErrNoRows {
		return notification.ErrNotFound
	}
	return errors.Wrap(err, msg)
}

func (repo *notificationRepository) CreateNotification(ctx context.Context, n notification.Notification) (notification.Notification, error) {
	query := `INSERT INTO notification (recipient_id, notification_type, group_id, title, message, related_link, is_read, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id`
	err := repo.db.GetContext(
		ctx, &n.ID, query,
		n.RecipientID, n.Type, n.GroupID, n.Title, n.Message, n.RelatedLink, n.IsRead, n.CreatedAt,
	)
	if err != nil {
		return notification.Notification{}, errors.Wrap(err, "inserting notification")
	}
	return n, nil
}

func (repo *notificationRepository) GetNotificationByID(ctx context.Context, id int) (notification.Notification, error) {
	query := `SELECT ` + notificationColumns + ` FROM notification WHERE id = $1`
	var row notificationRow
	if err := repo.db.GetContext(ctx, &row, query, id); err != nil {
		return notification.Notification{}, repo.trapNoRowsErr(err, "getting notification")
	}
	return row.unpack(), nil
}

func (repo *notificationRepository) QueryUserNotifications(ctx context.Context, recipientID int) ([]notification.Notification, error) {
	query := `SELECT ` + notificationColumns + ` FROM notification
		WHERE recipient_id = $1 ORDER BY created_at DESC, id DESC`
	var rows []notificationRow
	if err := repo.db.SelectContext(ctx, &rows, query, recipientID); err != nil {
		return nil, errors.Wrap(err, "querying notifications")
	}
	notifs := make([]notification.Notification, 0, len(rows))
	for _, r := range rows {
		notifs = append(notifs, r.unpack())
	}
	return notifs, nil
}

func (repo *notificationRepository) UpdateNotification(ctx context.Context, n notification.Notification) (notification.Notification, error) {
	query := `UPDATE notification SET is_read = $1 WHERE id = $2 RETURNING id`
	var id int
	if err := repo.db.GetContext(ctx, &id, query, n.IsRead, n.ID); err != nil {
		return notification.Notification{}, repo.trapNoRowsErr(err, "updating notification")
	}
	return n, nil
}
