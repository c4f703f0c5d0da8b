package metadata

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/shelfd/shelfd/pkg/models"
)

// ============================================
// AUDIT LOG OPERATIONS
// ============================================
//
// The audit log is append-only. Rows are inserted and queried; there is no
// update or delete path.

// AppendAuditEvent inserts one audit event. The ID and timestamp are filled
// if empty.
func (s *GORMStore) AppendAuditEvent(ctx context.Context, event *models.AuditEvent) error {
	if event.ID == "" {
		event.ID = uuid.New().String()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}
	return s.db.WithContext(ctx).Create(event).Error
}

// ListAuditEventsByCorrelation returns all events for one correlation id in
// timestamp-ascending order, reconstructing a request's full trail.
func (s *GORMStore) ListAuditEventsByCorrelation(ctx context.Context, correlationID string) ([]*models.AuditEvent, error) {
	var events []*models.AuditEvent
	err := s.db.WithContext(ctx).
		Where("correlation_id = ?", correlationID).
		Order("timestamp ASC").
		Find(&events).Error
	if err != nil {
		return nil, err
	}
	return events, nil
}

// ListAuditEventsByLibrary returns a library's events newest first, capped
// at limit (0 means 100).
func (s *GORMStore) ListAuditEventsByLibrary(ctx context.Context, libraryID string, limit int) ([]*models.AuditEvent, error) {
	if limit <= 0 {
		limit = 100
	}
	var events []*models.AuditEvent
	err := s.db.WithContext(ctx).
		Where("library_id = ?", libraryID).
		Order("timestamp DESC").
		Limit(limit).
		Find(&events).Error
	if err != nil {
		return nil, err
	}
	return events, nil
}

// ListAuditEventsByActor returns an actor's events newest first, capped at
// limit (0 means 100).
func (s *GORMStore) ListAuditEventsByActor(ctx context.Context, actorID string, limit int) ([]*models.AuditEvent, error) {
	if limit <= 0 {
		limit = 100
	}
	var events []*models.AuditEvent
	err := s.db.WithContext(ctx).
		Where("actor_id = ?", actorID).
		Order("timestamp DESC").
		Limit(limit).
		Find(&events).Error
	if err != nil {
		return nil, err
	}
	return events, nil
}

// ListAuditEventsByTarget returns the events touching one entity, newest
// first, capped at limit (0 means 100).
func (s *GORMStore) ListAuditEventsByTarget(ctx context.Context, targetType, targetID string, limit int) ([]*models.AuditEvent, error) {
	if limit <= 0 {
		limit = 100
	}
	var events []*models.AuditEvent
	err := s.db.WithContext(ctx).
		Where("target_type = ? AND target_id = ?", targetType, targetID).
		Order("timestamp DESC").
		Limit(limit).
		Find(&events).Error
	if err != nil {
		return nil, err
	}
	return events, nil
}
