package handlers

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/shelfd/shelfd/pkg/library"
	"github.com/shelfd/shelfd/pkg/models"
)

// DirectoryService is the slice of the library service the handler
// needs. Implemented by *library.Service.
type DirectoryService interface {
	CreateDirectory(ctx context.Context, in library.CreateDirectoryInput) (*models.Directory, error)
	GetDirectory(ctx context.Context, id string) (*models.Directory, error)
	ListDirectories(ctx context.Context, libraryID string, parentID *string) ([]*models.Directory, error)
	RenameDirectory(ctx context.Context, id, newName, actorID string) (*models.Directory, error)
	MoveDirectory(ctx context.Context, id string, newParentID *string, actorID string) (*models.Directory, error)
	DeleteDirectory(ctx context.Context, id, actorID string) error
}

// DirectoryHandler serves the directory tree endpoints.
type DirectoryHandler struct {
	svc DirectoryService
}

// NewDirectoryHandler creates a directory handler.
func NewDirectoryHandler(svc DirectoryService) *DirectoryHandler {
	return &DirectoryHandler{svc: svc}
}

type createDirectoryRequest struct {
	Name     string `json:"name"`
	ParentID string `json:"parent_id"`
}

// Create handles POST /v1/libraries/{libraryID}/directories. An empty
// parent_id creates the directory at the library root.
func (h *DirectoryHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createDirectoryRequest
	if !decodeJSONBody(w, r, &req) {
		return
	}
	if req.Name == "" {
		BadRequest(w, "name is required")
		return
	}

	dir, err := h.svc.CreateDirectory(r.Context(), library.CreateDirectoryInput{
		LibraryID: chi.URLParam(r, "libraryID"),
		ParentID:  optionalID(req.ParentID),
		Name:      req.Name,
		ActorID:   actorID(r),
	})
	if err != nil {
		WriteError(w, r, err)
		return
	}
	WriteJSONCreated(w, dir)
}

// List handles GET /v1/libraries/{libraryID}/directories. The
// ?parent_id query scopes to one parent; absent it lists the root.
func (h *DirectoryHandler) List(w http.ResponseWriter, r *http.Request) {
	dirs, err := h.svc.ListDirectories(r.Context(),
		chi.URLParam(r, "libraryID"),
		optionalID(r.URL.Query().Get("parent_id")))
	if err != nil {
		WriteError(w, r, err)
		return
	}
	WriteJSONOK(w, map[string]any{"directories": dirs})
}

// Get handles GET /v1/directories/{directoryID}.
func (h *DirectoryHandler) Get(w http.ResponseWriter, r *http.Request) {
	dir, err := h.svc.GetDirectory(r.Context(), chi.URLParam(r, "directoryID"))
	if err != nil {
		WriteError(w, r, err)
		return
	}
	WriteJSONOK(w, dir)
}

type renameRequest struct {
	Name string `json:"name"`
}

// Rename handles PATCH /v1/directories/{directoryID}. Renames cascade
// path rewrites to every descendant; storage keys stay untouched.
func (h *DirectoryHandler) Rename(w http.ResponseWriter, r *http.Request) {
	var req renameRequest
	if !decodeJSONBody(w, r, &req) {
		return
	}
	if req.Name == "" {
		BadRequest(w, "name is required")
		return
	}

	dir, err := h.svc.RenameDirectory(r.Context(), chi.URLParam(r, "directoryID"), req.Name, actorID(r))
	if err != nil {
		WriteError(w, r, err)
		return
	}
	WriteJSONOK(w, dir)
}

type moveDirectoryRequest struct {
	NewParentID string `json:"new_parent_id"`
}

// Move handles POST /v1/directories/{directoryID}/move. An empty
// new_parent_id moves to the library root.
func (h *DirectoryHandler) Move(w http.ResponseWriter, r *http.Request) {
	var req moveDirectoryRequest
	if !decodeJSONBody(w, r, &req) {
		return
	}

	dir, err := h.svc.MoveDirectory(r.Context(), chi.URLParam(r, "directoryID"),
		optionalID(req.NewParentID), actorID(r))
	if err != nil {
		WriteError(w, r, err)
		return
	}
	WriteJSONOK(w, dir)
}

// Delete handles DELETE /v1/directories/{directoryID}. The subtree
// moves to the trash.
func (h *DirectoryHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.DeleteDirectory(r.Context(), chi.URLParam(r, "directoryID"), actorID(r)); err != nil {
		WriteError(w, r, err)
		return
	}
	WriteNoContent(w)
}
