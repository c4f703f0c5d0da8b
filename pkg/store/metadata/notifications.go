package metadata

import (
	"context"
	"time"

	"github.com/shelfd/shelfd/pkg/models"
)

// ============================================
// NOTIFICATION OPERATIONS
// ============================================

// CreateNotification inserts one notification record.
func (s *GORMStore) CreateNotification(ctx context.Context, notification *models.Notification) (string, error) {
	notification.CreatedAt = time.Now()
	return createWithID(s.db, ctx, notification, func(n *models.Notification, id string) { n.ID = id }, notification.ID, models.ErrNotificationNotFound)
}

// ListNotifications returns a user's notifications newest first, capped at
// limit (0 means 50). unreadOnly filters out read records.
func (s *GORMStore) ListNotifications(ctx context.Context, userID string, unreadOnly bool, limit int) ([]*models.Notification, error) {
	if limit <= 0 {
		limit = 50
	}
	q := s.db.WithContext(ctx).Where("user_id = ?", userID)
	if unreadOnly {
		q = q.Where("is_read = ?", false)
	}

	var notifications []*models.Notification
	err := q.Order("created_at DESC").Limit(limit).Find(&notifications).Error
	if err != nil {
		return nil, err
	}
	return notifications, nil
}

// CountUnreadNotifications returns a user's unread notification count.
func (s *GORMStore) CountUnreadNotifications(ctx context.Context, userID string) (int64, error) {
	var count int64
	err := s.db.WithContext(ctx).
		Model(&models.Notification{}).
		Where("user_id = ? AND is_read = ?", userID, false).
		Count(&count).Error
	return count, err
}

// MarkNotificationRead marks one of the user's notifications read. The user
// scope prevents cross-user marking.
func (s *GORMStore) MarkNotificationRead(ctx context.Context, id, userID string, now time.Time) error {
	result := s.db.WithContext(ctx).
		Model(&models.Notification{}).
		Where("id = ? AND user_id = ? AND is_read = ?", id, userID, false).
		Updates(map[string]any{"is_read": true, "read_at": now})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return models.ErrNotificationNotFound
	}
	return nil
}

// MarkAllNotificationsRead marks all of a user's unread notifications read
// and returns how many were affected.
func (s *GORMStore) MarkAllNotificationsRead(ctx context.Context, userID string, now time.Time) (int64, error) {
	result := s.db.WithContext(ctx).
		Model(&models.Notification{}).
		Where("user_id = ? AND is_read = ?", userID, false).
		Updates(map[string]any{"is_read": true, "read_at": now})
	return result.RowsAffected, result.Error
}

// MarkNotificationEmailSent stamps the email dispatch time.
func (s *GORMStore) MarkNotificationEmailSent(ctx context.Context, id string, now time.Time) error {
	result := s.db.WithContext(ctx).
		Model(&models.Notification{}).
		Where("id = ?", id).
		Update("email_sent_at", now)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return models.ErrNotificationNotFound
	}
	return nil
}

// DeleteNotification removes one of the user's notifications.
func (s *GORMStore) DeleteNotification(ctx context.Context, id, userID string) error {
	result := s.db.WithContext(ctx).
		Where("id = ? AND user_id = ?", id, userID).
		Delete(&models.Notification{})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return models.ErrNotificationNotFound
	}
	return nil
}
