// Package notify delivers user notifications.
//
// Every notification is an in-app record first. Delivery to the
// realtime bus and email dispatch are both best-effort layers on top:
// losing either never loses the record.
package notify

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/shelfd/shelfd/internal/logger"
	"github.com/shelfd/shelfd/pkg/models"
	"github.com/shelfd/shelfd/pkg/realtime"
)

// Store is the slice of the metadata store the service needs.
type Store interface {
	CreateNotification(ctx context.Context, notification *models.Notification) (string, error)
	ListNotifications(ctx context.Context, userID string, unreadOnly bool, limit int) ([]*models.Notification, error)
	CountUnreadNotifications(ctx context.Context, userID string) (int64, error)
	MarkNotificationRead(ctx context.Context, id, userID string, now time.Time) error
	MarkAllNotificationsRead(ctx context.Context, userID string, now time.Time) (int64, error)
	MarkNotificationEmailSent(ctx context.Context, id string, now time.Time) error
	DeleteNotification(ctx context.Context, id, userID string) error
}

// Mailer sends notification emails. A nil mailer disables email
// dispatch entirely.
type Mailer interface {
	Send(ctx context.Context, userID, subject, body string) error
}

// Service creates and manages notifications.
type Service struct {
	store  Store
	bus    *realtime.Bus
	mailer Mailer
}

// NewService wires the notification service. bus and mailer may be nil.
func NewService(store Store, bus *realtime.Bus, mailer Mailer) *Service {
	return &Service{store: store, bus: bus, mailer: mailer}
}

// Notification is the creation request.
type Notification struct {
	UserID     string
	Kind       string
	Title      string
	Message    string
	LibraryID  string
	TargetType string
	TargetID   string
	Email      bool
}

// Notify stores the record, pushes it onto the user's realtime channel
// and optionally dispatches an email. Only the store write can fail.
func (s *Service) Notify(ctx context.Context, n Notification) (*models.Notification, error) {
	record := &models.Notification{
		ID:         uuid.NewString(),
		UserID:     n.UserID,
		Kind:       n.Kind,
		Title:      n.Title,
		Message:    n.Message,
		TargetType: n.TargetType,
		TargetID:   n.TargetID,
	}
	if n.LibraryID != "" {
		record.LibraryID = &n.LibraryID
	}

	if _, err := s.store.CreateNotification(ctx, record); err != nil {
		return nil, err
	}

	if s.bus != nil {
		s.bus.Publish(realtime.UserChannel(n.UserID), "notification", record)
	}

	if n.Email && s.mailer != nil {
		if err := s.mailer.Send(ctx, n.UserID, n.Title, n.Message); err != nil {
			logger.WarnCtx(ctx, "notification email failed", "notification_id", record.ID, "error", err)
		} else if err := s.store.MarkNotificationEmailSent(ctx, record.ID, time.Now().UTC()); err != nil {
			logger.WarnCtx(ctx, "failed to mark email sent", "notification_id", record.ID, "error", err)
		}
	}

	return record, nil
}

// List returns a user's notifications, newest first.
func (s *Service) List(ctx context.Context, userID string, unreadOnly bool, limit int) ([]*models.Notification, error) {
	return s.store.ListNotifications(ctx, userID, unreadOnly, limit)
}

// CountUnread returns the user's unread count.
func (s *Service) CountUnread(ctx context.Context, userID string) (int64, error) {
	return s.store.CountUnreadNotifications(ctx, userID)
}

// MarkRead marks one notification read for its owner.
func (s *Service) MarkRead(ctx context.Context, id, userID string) error {
	return s.store.MarkNotificationRead(ctx, id, userID, time.Now().UTC())
}

// MarkAllRead marks every unread notification read and returns the
// count.
func (s *Service) MarkAllRead(ctx context.Context, userID string) (int64, error) {
	return s.store.MarkAllNotificationsRead(ctx, userID, time.Now().UTC())
}

// Delete removes a notification owned by the user.
func (s *Service) Delete(ctx context.Context, id, userID string) error {
	return s.store.DeleteNotification(ctx, id, userID)
}
