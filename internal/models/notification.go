package models

import "time"

// NotificationCategory groups outbound notifications.
type NotificationCategory string

const (
	NotificationAttendance NotificationCategory = "attendance"
	NotificationGeneral    NotificationCategory = "general"
)

// Notification is an outbound message persisted for a recipient. Delivery is
// fire-and-forget; the engine owns neither retries beyond the dispatch queue
// nor read receipts from downstream channels.
type Notification struct {
	ID          string               `db:"id" json:"id"`
	RecipientID string               `db:"recipient_id" json:"recipient_id"`
	Category    NotificationCategory `db:"category" json:"category"`
	Title       string               `db:"title" json:"title"`
	Body        string               `db:"body" json:"body"`
	RelatedType *string              `db:"related_type" json:"related_type,omitempty"`
	RelatedID   *string              `db:"related_id" json:"related_id,omitempty"`
	IsRead      bool                 `db:"is_read" json:"is_read"`
	ReadAt      *time.Time           `db:"read_at" json:"read_at,omitempty"`
	CreatedAt   time.Time            `db:"created_at" json:"created_at"`
}

// StaffMember is the slice of the external user directory the engine needs:
// enough identity to route notifications and resolve reviewer names.
type StaffMember struct {
	ID       string  `db:"id" json:"id"`
	FullName string  `db:"full_name" json:"full_name"`
	Role     string  `db:"role" json:"role"`
	SchoolID *string `db:"school_id" json:"school_id,omitempty"`
}
