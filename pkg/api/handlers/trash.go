package handlers

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/shelfd/shelfd/pkg/library"
	"github.com/shelfd/shelfd/pkg/store/metadata"
)

// TrashService is the slice of the library service the handler needs.
// Implemented by *library.Service.
type TrashService interface {
	ListTrash(ctx context.Context, libraryID string) ([]*metadata.TrashItem, error)
	Restore(ctx context.Context, in library.RestoreInput) error
	PermanentDelete(ctx context.Context, itemType, itemID, actorID string) error
	EmptyTrash(ctx context.Context, libraryID, actorID string) (int, error)
}

// TrashHandler serves the trash endpoints.
type TrashHandler struct {
	svc TrashService
}

// NewTrashHandler creates a trash handler.
func NewTrashHandler(svc TrashService) *TrashHandler {
	return &TrashHandler{svc: svc}
}

// List handles GET /v1/libraries/{libraryID}/trash. Only items still
// inside the retention window are returned.
func (h *TrashHandler) List(w http.ResponseWriter, r *http.Request) {
	items, err := h.svc.ListTrash(r.Context(), chi.URLParam(r, "libraryID"))
	if err != nil {
		WriteError(w, r, err)
		return
	}
	WriteJSONOK(w, map[string]any{"items": items})
}

type restoreRequest struct {
	ItemType    string `json:"item_type"`
	ItemID      string `json:"item_id"`
	ToOriginal  bool   `json:"to_original"`
	NewParentID string `json:"new_parent_id"`
}

// Restore handles POST /v1/libraries/{libraryID}/trash/restore.
func (h *TrashHandler) Restore(w http.ResponseWriter, r *http.Request) {
	var req restoreRequest
	if !decodeJSONBody(w, r, &req) {
		return
	}
	if req.ItemType != library.TrashItemFile && req.ItemType != library.TrashItemDirectory {
		BadRequest(w, "item_type must be file or directory")
		return
	}

	err := h.svc.Restore(r.Context(), library.RestoreInput{
		ItemType:    req.ItemType,
		ItemID:      req.ItemID,
		ActorID:     actorID(r),
		ToOriginal:  req.ToOriginal,
		NewParentID: optionalID(req.NewParentID),
	})
	if err != nil {
		WriteError(w, r, err)
		return
	}
	WriteNoContent(w)
}

// PermanentDelete handles DELETE /v1/libraries/{libraryID}/trash/{itemType}/{itemID}.
// This destroys the blobs; there is no undo.
func (h *TrashHandler) PermanentDelete(w http.ResponseWriter, r *http.Request) {
	itemType := chi.URLParam(r, "itemType")
	if itemType != library.TrashItemFile && itemType != library.TrashItemDirectory {
		BadRequest(w, "item type must be file or directory")
		return
	}

	if err := h.svc.PermanentDelete(r.Context(), itemType, chi.URLParam(r, "itemID"), actorID(r)); err != nil {
		WriteError(w, r, err)
		return
	}
	WriteNoContent(w)
}

// Empty handles DELETE /v1/libraries/{libraryID}/trash and purges
// every trashed item in the library.
func (h *TrashHandler) Empty(w http.ResponseWriter, r *http.Request) {
	purged, err := h.svc.EmptyTrash(r.Context(), chi.URLParam(r, "libraryID"), actorID(r))
	if err != nil {
		WriteError(w, r, err)
		return
	}
	WriteJSONOK(w, map[string]int{"purged": purged})
}
