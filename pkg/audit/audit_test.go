package audit

import (
	"context"
	"errors"
	"testing"

	"github.com/shelfd/shelfd/internal/logger"
	"github.com/shelfd/shelfd/pkg/models"
)

type fakeStore struct {
	events []*models.AuditEvent
	fail   bool
}

func (f *fakeStore) AppendAuditEvent(_ context.Context, event *models.AuditEvent) error {
	if f.fail {
		return errors.New("db down")
	}
	f.events = append(f.events, event)
	return nil
}

func (f *fakeStore) ListAuditEventsByCorrelation(context.Context, string) ([]*models.AuditEvent, error) {
	return f.events, nil
}
func (f *fakeStore) ListAuditEventsByLibrary(context.Context, string, int) ([]*models.AuditEvent, error) {
	return f.events, nil
}
func (f *fakeStore) ListAuditEventsByActor(context.Context, string, int) ([]*models.AuditEvent, error) {
	return f.events, nil
}
func (f *fakeStore) ListAuditEventsByTarget(context.Context, string, string, int) ([]*models.AuditEvent, error) {
	return f.events, nil
}

func TestRecordFillsFromContext(t *testing.T) {
	store := &fakeStore{}
	rec := NewRecorder(store)

	lc := logger.NewLogContext("corr-123").WithActor("u-1", ActorUser)
	lc.ClientIP = "203.0.113.9"
	ctx := logger.WithContext(context.Background(), lc)

	rec.Record(ctx, Entry{
		Action:     ActionFileUploaded,
		TargetType: "file",
		TargetID:   "f-1",
		LibraryID:  "lib-1",
		Details:    map[string]any{"version": 2},
	})

	if len(store.events) != 1 {
		t.Fatalf("expected 1 event, got %d", len(store.events))
	}
	e := store.events[0]
	if e.CorrelationID != "corr-123" || e.ActorID != "u-1" || e.ActorType != ActorUser {
		t.Errorf("context fields not propagated: %+v", e)
	}
	if e.IPAddress != "203.0.113.9" {
		t.Errorf("expected client ip, got %q", e.IPAddress)
	}
	if e.LibraryID == nil || *e.LibraryID != "lib-1" {
		t.Errorf("library not set: %v", e.LibraryID)
	}
	details, err := e.GetDetails()
	if err != nil || details["version"] != float64(2) {
		t.Errorf("details roundtrip failed: %v %v", details, err)
	}
	if e.ID == "" || e.Timestamp.IsZero() {
		t.Error("expected generated id and timestamp")
	}
}

func TestRecordDefaultsToSystemActor(t *testing.T) {
	store := &fakeStore{}
	rec := NewRecorder(store)

	rec.Record(context.Background(), Entry{Action: ActionTrashPurged, TargetType: "file", TargetID: "f-1"})

	e := store.events[0]
	if e.ActorType != ActorSystem || e.ActorID != "system" {
		t.Errorf("expected system actor fallback, got %s/%s", e.ActorType, e.ActorID)
	}
}

func TestRecordSwallowsStoreFailure(t *testing.T) {
	rec := NewRecorder(&fakeStore{fail: true})

	// Must not panic or propagate.
	rec.Record(context.Background(), Entry{Action: ActionFileDeleted, TargetType: "file", TargetID: "f-1"})
}
