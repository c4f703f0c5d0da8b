package handlers

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/shelfd/shelfd/pkg/models"
)

// AuditQuerier is the read side of the audit trail. Implemented by
// *audit.Recorder.
type AuditQuerier interface {
	ByCorrelation(ctx context.Context, correlationID string) ([]*models.AuditEvent, error)
	ByLibrary(ctx context.Context, libraryID string, limit int) ([]*models.AuditEvent, error)
	ByActor(ctx context.Context, actorID string, limit int) ([]*models.AuditEvent, error)
	ByTarget(ctx context.Context, targetType, targetID string, limit int) ([]*models.AuditEvent, error)
}

// AuditHandler serves read-only audit log queries.
type AuditHandler struct {
	querier AuditQuerier
}

// NewAuditHandler creates an audit handler.
func NewAuditHandler(querier AuditQuerier) *AuditHandler {
	return &AuditHandler{querier: querier}
}

// ByCorrelation handles GET /v1/audit/correlations/{correlationID},
// returning one request's events oldest first.
func (h *AuditHandler) ByCorrelation(w http.ResponseWriter, r *http.Request) {
	events, err := h.querier.ByCorrelation(r.Context(), chi.URLParam(r, "correlationID"))
	if err != nil {
		WriteError(w, r, err)
		return
	}
	WriteJSONOK(w, map[string]any{"events": events})
}

// ByLibrary handles GET /v1/audit/libraries/{libraryID}.
func (h *AuditHandler) ByLibrary(w http.ResponseWriter, r *http.Request) {
	events, err := h.querier.ByLibrary(r.Context(), chi.URLParam(r, "libraryID"), limitParam(r, 100, 1000))
	if err != nil {
		WriteError(w, r, err)
		return
	}
	WriteJSONOK(w, map[string]any{"events": events})
}

// ByActor handles GET /v1/audit/actors/{auditActorID}.
func (h *AuditHandler) ByActor(w http.ResponseWriter, r *http.Request) {
	events, err := h.querier.ByActor(r.Context(), chi.URLParam(r, "auditActorID"), limitParam(r, 100, 1000))
	if err != nil {
		WriteError(w, r, err)
		return
	}
	WriteJSONOK(w, map[string]any{"events": events})
}

// ByTarget handles GET /v1/audit/targets/{targetType}/{targetID}.
func (h *AuditHandler) ByTarget(w http.ResponseWriter, r *http.Request) {
	events, err := h.querier.ByTarget(r.Context(),
		chi.URLParam(r, "targetType"), chi.URLParam(r, "targetID"),
		limitParam(r, 100, 1000))
	if err != nil {
		WriteError(w, r, err)
		return
	}
	WriteJSONOK(w, map[string]any{"events": events})
}
