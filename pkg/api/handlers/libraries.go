package handlers

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/shelfd/shelfd/pkg/library"
	"github.com/shelfd/shelfd/pkg/models"
)

// LibraryService is the slice of the library service the handler needs.
// Implemented by *library.Service.
type LibraryService interface {
	CreateLibrary(ctx context.Context, in library.CreateLibraryInput) (*models.Library, error)
	GetLibrary(ctx context.Context, id string) (*models.Library, error)
	ListLibraries(ctx context.Context) ([]*models.Library, error)
	ListLibrariesByOwner(ctx context.Context, ownerID string) ([]*models.Library, error)
	UpdateLibrary(ctx context.Context, id string, actor library.Actor, in library.UpdateLibraryInput) (*models.Library, error)
	DeleteLibrary(ctx context.Context, id string, actor library.Actor) error
}

// LibraryHandler serves the library CRUD endpoints.
type LibraryHandler struct {
	svc LibraryService
}

// NewLibraryHandler creates a library handler.
func NewLibraryHandler(svc LibraryService) *LibraryHandler {
	return &LibraryHandler{svc: svc}
}

type createLibraryRequest struct {
	Name             string `json:"name"`
	Description      string `json:"description"`
	MCPWriteEnabled  bool   `json:"mcp_write_enabled"`
	MaxFileSizeBytes *int64 `json:"max_file_size_bytes"`
}

// Create handles POST /v1/libraries.
func (h *LibraryHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createLibraryRequest
	if !decodeJSONBody(w, r, &req) {
		return
	}
	if req.Name == "" {
		BadRequest(w, "name is required")
		return
	}

	lib, err := h.svc.CreateLibrary(r.Context(), library.CreateLibraryInput{
		Name:             req.Name,
		Description:      req.Description,
		OwnerID:          actorID(r),
		MCPWriteEnabled:  req.MCPWriteEnabled,
		MaxFileSizeBytes: req.MaxFileSizeBytes,
	})
	if err != nil {
		WriteError(w, r, err)
		return
	}
	WriteJSONCreated(w, lib)
}

// List handles GET /v1/libraries. With ?mine=true only the caller's
// libraries are returned.
func (h *LibraryHandler) List(w http.ResponseWriter, r *http.Request) {
	var (
		libs []*models.Library
		err  error
	)
	if r.URL.Query().Get("mine") == "true" {
		libs, err = h.svc.ListLibrariesByOwner(r.Context(), actorID(r))
	} else {
		libs, err = h.svc.ListLibraries(r.Context())
	}
	if err != nil {
		WriteError(w, r, err)
		return
	}
	WriteJSONOK(w, map[string]any{"libraries": libs})
}

// Get handles GET /v1/libraries/{libraryID}.
func (h *LibraryHandler) Get(w http.ResponseWriter, r *http.Request) {
	lib, err := h.svc.GetLibrary(r.Context(), chi.URLParam(r, "libraryID"))
	if err != nil {
		WriteError(w, r, err)
		return
	}
	WriteJSONOK(w, lib)
}

type updateLibraryRequest struct {
	Name             *string `json:"name"`
	Description      *string `json:"description"`
	MCPWriteEnabled  *bool   `json:"mcp_write_enabled"`
	MaxFileSizeBytes *int64  `json:"max_file_size_bytes"`
}

// Update handles PATCH /v1/libraries/{libraryID}. Only the owner or
// an admin may update; the service enforces that.
func (h *LibraryHandler) Update(w http.ResponseWriter, r *http.Request) {
	var req updateLibraryRequest
	if !decodeJSONBody(w, r, &req) {
		return
	}

	lib, err := h.svc.UpdateLibrary(r.Context(), chi.URLParam(r, "libraryID"), callerActor(r), library.UpdateLibraryInput{
		Name:             req.Name,
		Description:      req.Description,
		MCPWriteEnabled:  req.MCPWriteEnabled,
		MaxFileSizeBytes: req.MaxFileSizeBytes,
	})
	if err != nil {
		WriteError(w, r, err)
		return
	}
	WriteJSONOK(w, lib)
}

// Delete handles DELETE /v1/libraries/{libraryID}. The library is
// soft-deleted; blobs survive until a permanent trash purge.
func (h *LibraryHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.DeleteLibrary(r.Context(), chi.URLParam(r, "libraryID"), callerActor(r)); err != nil {
		WriteError(w, r, err)
		return
	}
	WriteNoContent(w)
}
