// Package audit records and queries the append-only audit trail.
//
// Events are never updated or deleted. The recorder fills actor and
// correlation fields from the request context, so call sites only name
// the action and its target. Recording is best-effort: a failed insert
// is logged and never fails the operation that produced it.
package audit

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/shelfd/shelfd/internal/logger"
	"github.com/shelfd/shelfd/pkg/models"
)

// Actor types.
const (
	ActorUser   = "user"
	ActorAI     = "ai"
	ActorSystem = "system"
)

// Common actions. Handlers may record others; these cover the core
// lifecycle.
const (
	ActionLibraryCreated   = "library.created"
	ActionLibraryUpdated   = "library.updated"
	ActionLibraryDeleted   = "library.deleted"
	ActionDirectoryCreated = "directory.created"
	ActionDirectoryRenamed = "directory.renamed"
	ActionDirectoryMoved   = "directory.moved"
	ActionDirectoryDeleted = "directory.deleted"
	ActionFileUploaded     = "file.uploaded"
	ActionFileRenamed      = "file.renamed"
	ActionFileMoved        = "file.moved"
	ActionFileDeleted      = "file.deleted"
	ActionFileDownloaded   = "file.downloaded"
	ActionTrashRestored    = "trash.restored"
	ActionTrashPurged      = "trash.purged"
	ActionShareCreated     = "share.created"
	ActionShareAccessed    = "share.accessed"
	ActionShareRevoked     = "share.revoked"
	ActionAgentToolCalled  = "agent.tool_called"
)

// Store is the slice of the metadata store the recorder needs.
type Store interface {
	AppendAuditEvent(ctx context.Context, event *models.AuditEvent) error
	ListAuditEventsByCorrelation(ctx context.Context, correlationID string) ([]*models.AuditEvent, error)
	ListAuditEventsByLibrary(ctx context.Context, libraryID string, limit int) ([]*models.AuditEvent, error)
	ListAuditEventsByActor(ctx context.Context, actorID string, limit int) ([]*models.AuditEvent, error)
	ListAuditEventsByTarget(ctx context.Context, targetType, targetID string, limit int) ([]*models.AuditEvent, error)
}

// Recorder writes audit events.
type Recorder struct {
	store Store
}

// NewRecorder creates a recorder over the metadata store.
func NewRecorder(store Store) *Recorder {
	return &Recorder{store: store}
}

// Entry describes one auditable action. Zero actor fields are filled
// from the request context.
type Entry struct {
	ActorType  string
	ActorID    string
	ActorName  string
	Action     string
	TargetType string
	TargetID   string
	LibraryID  string
	Details    map[string]any
}

// Record appends the entry to the audit log. Failures are logged and
// swallowed so auditing never breaks the audited operation.
func (r *Recorder) Record(ctx context.Context, entry Entry) {
	event := &models.AuditEvent{
		ID:         uuid.NewString(),
		Timestamp:  time.Now().UTC(),
		ActorType:  entry.ActorType,
		ActorID:    entry.ActorID,
		ActorName:  entry.ActorName,
		Action:     entry.Action,
		TargetType: entry.TargetType,
		TargetID:   entry.TargetID,
	}
	if entry.LibraryID != "" {
		event.LibraryID = &entry.LibraryID
	}
	if err := event.SetDetails(entry.Details); err != nil {
		logger.WarnCtx(ctx, "failed to encode audit details", "action", entry.Action, "error", err)
	}

	if lc := logger.FromContext(ctx); lc != nil {
		event.CorrelationID = lc.CorrelationID
		event.IPAddress = lc.ClientIP
		if event.ActorID == "" {
			event.ActorID = lc.ActorID
		}
		if event.ActorType == "" {
			event.ActorType = lc.ActorType
		}
	}
	if event.ActorType == "" {
		event.ActorType = ActorSystem
	}
	if event.ActorID == "" {
		event.ActorID = "system"
	}

	if err := r.store.AppendAuditEvent(ctx, event); err != nil {
		logger.ErrorCtx(ctx, "failed to append audit event",
			"action", entry.Action,
			"target_type", entry.TargetType,
			"target_id", entry.TargetID,
			"error", err)
	}
}

// ByCorrelation returns the events of one request, oldest first.
func (r *Recorder) ByCorrelation(ctx context.Context, correlationID string) ([]*models.AuditEvent, error) {
	return r.store.ListAuditEventsByCorrelation(ctx, correlationID)
}

// ByLibrary returns a library's most recent events.
func (r *Recorder) ByLibrary(ctx context.Context, libraryID string, limit int) ([]*models.AuditEvent, error) {
	return r.store.ListAuditEventsByLibrary(ctx, libraryID, limit)
}

// ByActor returns an actor's most recent events.
func (r *Recorder) ByActor(ctx context.Context, actorID string, limit int) ([]*models.AuditEvent, error) {
	return r.store.ListAuditEventsByActor(ctx, actorID, limit)
}

// ByTarget returns the most recent events touching one target.
func (r *Recorder) ByTarget(ctx context.Context, targetType, targetID string, limit int) ([]*models.AuditEvent, error) {
	return r.store.ListAuditEventsByTarget(ctx, targetType, targetID, limit)
}
