package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/attendance-engine/internal/models"
)

const notificationColumns = `id, recipient_id, category, title, body, related_type, related_id, is_read, read_at, created_at`

// NotificationRepository persists outbound notifications and resolves
// recipients from the staff directory slice the engine mirrors.
type NotificationRepository struct {
	db *sqlx.DB
}

// NewNotificationRepository constructs the repository.
func NewNotificationRepository(db *sqlx.DB) *NotificationRepository {
	return &NotificationRepository{db: db}
}

// Create inserts a notification row.
func (r *NotificationRepository) Create(ctx context.Context, n *models.Notification) error {
	if n.ID == "" {
		n.ID = uuid.NewString()
	}
	if n.CreatedAt.IsZero() {
		n.CreatedAt = time.Now().UTC()
	}
	query := `INSERT INTO notifications (id, recipient_id, category, title, body, related_type, related_id, is_read, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, FALSE, $8)`
	if _, err := r.db.ExecContext(ctx, query, n.ID, n.RecipientID, n.Category, n.Title, n.Body, n.RelatedType, n.RelatedID, n.CreatedAt); err != nil {
		return fmt.Errorf("create notification: %w", err)
	}
	return nil
}

// ListForRecipient returns a recipient's notifications, newest first.
func (r *NotificationRepository) ListForRecipient(ctx context.Context, recipientID string, unreadOnly bool) ([]models.Notification, error) {
	query := fmt.Sprintf("SELECT %s FROM notifications WHERE recipient_id = $1", notificationColumns)
	if unreadOnly {
		query += " AND is_read = FALSE"
	}
	query += " ORDER BY created_at DESC"
	var notifications []models.Notification
	if err := r.db.SelectContext(ctx, &notifications, query, recipientID); err != nil {
		return nil, fmt.Errorf("list notifications: %w", err)
	}
	return notifications, nil
}

// MarkRead flags a notification as read.
func (r *NotificationRepository) MarkRead(ctx context.Context, id string) error {
	query := `UPDATE notifications SET is_read = TRUE, read_at = $2 WHERE id = $1 AND is_read = FALSE`
	if _, err := r.db.ExecContext(ctx, query, id, time.Now().UTC()); err != nil {
		return fmt.Errorf("mark notification read: %w", err)
	}
	return nil
}

// FindStaff resolves one staff member by id.
func (r *NotificationRepository) FindStaff(ctx context.Context, id string) (*models.StaffMember, error) {
	query := `SELECT id, full_name, role, school_id FROM staff WHERE id = $1`
	var member models.StaffMember
	if err := r.db.GetContext(ctx, &member, query, id); err != nil {
		return nil, err
	}
	return &member, nil
}

// DelegationStaffForTeacher returns every delegation-role staff member in the
// same school as the teacher, for planned-absence fan-out.
func (r *NotificationRepository) DelegationStaffForTeacher(ctx context.Context, teacherID string) ([]models.StaffMember, error) {
	query := `SELECT s.id, s.full_name, s.role, s.school_id
FROM staff s
JOIN staff t ON t.school_id = s.school_id
WHERE t.id = $1 AND s.role = 'delegation'`
	var members []models.StaffMember
	if err := r.db.SelectContext(ctx, &members, query, teacherID); err != nil {
		return nil, fmt.Errorf("list delegation staff: %w", err)
	}
	return members, nil
}
