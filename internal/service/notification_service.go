package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/noah-isme/attendance-engine/internal/models"
	"github.com/noah-isme/attendance-engine/pkg/jobs"
)

// Notifier is the outbound notification sink. Delivery is fire-and-forget:
// callers get no delivery guarantee and no error for downstream failures.
type Notifier interface {
	Notify(ctx context.Context, recipientID string, category models.NotificationCategory, title, body, relatedType, relatedID string)
}

type notificationRepository interface {
	Create(ctx context.Context, n *models.Notification) error
	ListForRecipient(ctx context.Context, recipientID string, unreadOnly bool) ([]models.Notification, error)
	MarkRead(ctx context.Context, id string) error
}

// NotificationService persists notifications and hands them to the dispatch
// queue. Queue failures are logged, never surfaced to the triggering call.
type NotificationService struct {
	repo   notificationRepository
	queue  *jobs.Queue
	logger *zap.Logger
}

// NewNotificationService constructs the service and its dispatch queue.
func NewNotificationService(repo notificationRepository, queueCfg jobs.QueueConfig, logger *zap.Logger) *NotificationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	svc := &NotificationService{repo: repo, logger: logger}
	queueCfg.Logger = logger
	svc.queue = jobs.NewQueue("notifications", svc.deliver, queueCfg)
	return svc
}

// Start begins dispatch workers.
func (s *NotificationService) Start(ctx context.Context) {
	s.queue.Start(ctx)
}

// Stop drains the dispatch workers.
func (s *NotificationService) Stop() {
	s.queue.Stop()
}

// Notify persists the notification and enqueues its dispatch.
func (s *NotificationService) Notify(ctx context.Context, recipientID string, category models.NotificationCategory, title, body, relatedType, relatedID string) {
	n := &models.Notification{
		ID:          uuid.NewString(),
		RecipientID: recipientID,
		Category:    category,
		Title:       title,
		Body:        body,
		CreatedAt:   time.Now().UTC(),
	}
	if relatedType != "" {
		n.RelatedType = &relatedType
	}
	if relatedID != "" {
		n.RelatedID = &relatedID
	}

	if err := s.repo.Create(ctx, n); err != nil {
		s.logger.Error("failed to persist notification",
			zap.String("recipient_id", recipientID),
			zap.String("title", title),
			zap.Error(err))
		return
	}

	job := jobs.Job{ID: n.ID, Type: "notification.dispatch", Payload: n}
	if err := s.queue.Enqueue(job); err != nil {
		s.logger.Warn("notification dispatch not enqueued",
			zap.String("notification_id", n.ID),
			zap.Error(err))
	}
}

// ListForRecipient returns a recipient's notifications.
func (s *NotificationService) ListForRecipient(ctx context.Context, recipientID string, unreadOnly bool) ([]models.Notification, error) {
	return s.repo.ListForRecipient(ctx, recipientID, unreadOnly)
}

// MarkRead flags a notification as read.
func (s *NotificationService) MarkRead(ctx context.Context, id string) error {
	return s.repo.MarkRead(ctx, id)
}

// deliver hands one notification to the downstream channel. The engine owns
// no transport of its own; the structured log line is the handoff point.
func (s *NotificationService) deliver(ctx context.Context, job jobs.Job) error {
	n, ok := job.Payload.(*models.Notification)
	if !ok {
		return fmt.Errorf("unexpected payload type for job %s", job.ID)
	}
	s.logger.Info("notification dispatched",
		zap.String("notification_id", n.ID),
		zap.String("recipient_id", n.RecipientID),
		zap.String("category", string(n.Category)),
		zap.String("title", n.Title))
	return nil
}
