package models

import "time"

// NotificationType categorizes user-facing notifications.
type NotificationType string

const (
	NotificationDocument NotificationType = "DOCUMENT"
	NotificationRequest  NotificationType = "REQUEST"
	NotificationStage    NotificationType = "STAGE"
	NotificationGeneral  NotificationType = "GENERAL"
)

// Notification is a per-user row created as a side effect of review and
// stage transitions, always within the triggering transaction. Only is_read
// is mutable, and only by the owning user.
type Notification struct {
	ID        string           `db:"id" json:"id"`
	UserID    string           `db:"user_id" json:"user_id"`
	Title     string           `db:"title" json:"title"`
	Body      string           `db:"body" json:"body"`
	Type      NotificationType `db:"type" json:"type"`
	Link      string           `db:"link" json:"link"`
	IsRead    bool             `db:"is_read" json:"is_read"`
	CreatedAt time.Time        `db:"created_at" json:"created_at"`
}

// NotificationFilter constrains listing queries.
type NotificationFilter struct {
	UserID     string
	UnreadOnly bool
	Page       int
	PageSize   int
}
