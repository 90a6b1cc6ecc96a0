package notification

import "time"

const (
	TypeSessionReminder = "session_reminder"
	TypeNewMaterial     = "new_material"
	TypeNewComment      = "new_comment"
	TypeGroupUpdate     = "group_update"
)

var Types = []string{TypeSessionReminder, TypeNewMaterial, TypeNewComment, TypeGroupUpdate}

// Notification is a persisted in-app message for one user; the email sent
// alongside it is fire-and-forget, this row is the durable record.
type Notification struct {
	ID          int       `json:"id"`
	RecipientID int       `json:"recipient_id"`
	Type        string    `json:"notification_type"`
	GroupID     int       `json:"group_id"`
	Title       string    `json:"title"`
	Message     string    `json:"message"`
	RelatedLink string    `json:"related_link"`
	IsRead      bool      `json:"is_read"`
	CreatedAt   time.Time `json:"created_at"` // UTC
}
