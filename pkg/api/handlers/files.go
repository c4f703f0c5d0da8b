package handlers

import (
	"context"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/shelfd/shelfd/pkg/models"
)

// FileService is the slice of the library service the handler needs.
// Implemented by *library.Service.
type FileService interface {
	GetFile(ctx context.Context, id string) (*models.File, error)
	ListFiles(ctx context.Context, libraryID string, directoryID *string) ([]*models.File, error)
	SearchFiles(ctx context.Context, libraryID, query string) ([]*models.File, error)
	RenameFile(ctx context.Context, id, newFilename, actorID string) (*models.File, error)
	MoveFile(ctx context.Context, id string, newDirectoryID *string, actorID string) (*models.File, error)
	DeleteFile(ctx context.Context, id, actorID string) error
	ListFileVersions(ctx context.Context, fileID string) ([]*models.FileVersion, error)
	DownloadURL(ctx context.Context, fileID, actorID string) (string, error)
	VersionDownloadURL(ctx context.Context, fileID string, versionNumber int) (string, error)
}

// FileHandler serves the file endpoints.
type FileHandler struct {
	svc FileService
}

// NewFileHandler creates a file handler.
func NewFileHandler(svc FileService) *FileHandler {
	return &FileHandler{svc: svc}
}

// List handles GET /v1/libraries/{libraryID}/files. The ?directory_id
// query scopes to one directory; absent it lists the root.
func (h *FileHandler) List(w http.ResponseWriter, r *http.Request) {
	files, err := h.svc.ListFiles(r.Context(),
		chi.URLParam(r, "libraryID"),
		optionalID(r.URL.Query().Get("directory_id")))
	if err != nil {
		WriteError(w, r, err)
		return
	}
	WriteJSONOK(w, map[string]any{"files": files})
}

// Search handles GET /v1/libraries/{libraryID}/files/search?q=.
// This is the plain name match; semantic search lives on the agent
// surface.
func (h *FileHandler) Search(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query().Get("q")
	if query == "" {
		BadRequest(w, "q is required")
		return
	}

	files, err := h.svc.SearchFiles(r.Context(), chi.URLParam(r, "libraryID"), query)
	if err != nil {
		WriteError(w, r, err)
		return
	}
	WriteJSONOK(w, map[string]any{"files": files})
}

// Get handles GET /v1/files/{fileID}.
func (h *FileHandler) Get(w http.ResponseWriter, r *http.Request) {
	file, err := h.svc.GetFile(r.Context(), chi.URLParam(r, "fileID"))
	if err != nil {
		WriteError(w, r, err)
		return
	}
	WriteJSONOK(w, file)
}

// Rename handles PATCH /v1/files/{fileID}. Renaming never rewrites the
// stored blob; the storage key keeps the upload-time name.
func (h *FileHandler) Rename(w http.ResponseWriter, r *http.Request) {
	var req renameRequest
	if !decodeJSONBody(w, r, &req) {
		return
	}

	file, err := h.svc.RenameFile(r.Context(), chi.URLParam(r, "fileID"), req.Name, actorID(r))
	if err != nil {
		WriteError(w, r, err)
		return
	}
	WriteJSONOK(w, file)
}

type moveFileRequest struct {
	NewDirectoryID string `json:"new_directory_id"`
}

// Move handles POST /v1/files/{fileID}/move. An empty new_directory_id
// moves the file to the library root.
func (h *FileHandler) Move(w http.ResponseWriter, r *http.Request) {
	var req moveFileRequest
	if !decodeJSONBody(w, r, &req) {
		return
	}

	file, err := h.svc.MoveFile(r.Context(), chi.URLParam(r, "fileID"),
		optionalID(req.NewDirectoryID), actorID(r))
	if err != nil {
		WriteError(w, r, err)
		return
	}
	WriteJSONOK(w, file)
}

// Delete handles DELETE /v1/files/{fileID}. The file moves to the
// trash.
func (h *FileHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.DeleteFile(r.Context(), chi.URLParam(r, "fileID"), actorID(r)); err != nil {
		WriteError(w, r, err)
		return
	}
	WriteNoContent(w)
}

// Versions handles GET /v1/files/{fileID}/versions, newest first.
func (h *FileHandler) Versions(w http.ResponseWriter, r *http.Request) {
	versions, err := h.svc.ListFileVersions(r.Context(), chi.URLParam(r, "fileID"))
	if err != nil {
		WriteError(w, r, err)
		return
	}
	WriteJSONOK(w, map[string]any{"versions": versions})
}

// Download handles GET /v1/files/{fileID}/download. The response
// carries a presigned URL; the bytes never stream through the API.
// ?redirect=true answers 302 to the presigned URL instead, for
// browser-initiated downloads.
func (h *FileHandler) Download(w http.ResponseWriter, r *http.Request) {
	url, err := h.svc.DownloadURL(r.Context(), chi.URLParam(r, "fileID"), actorID(r))
	if err != nil {
		WriteError(w, r, err)
		return
	}
	if r.URL.Query().Get("redirect") == "true" {
		http.Redirect(w, r, url, http.StatusFound)
		return
	}
	WriteJSONOK(w, map[string]string{"url": url})
}

// DownloadVersion handles GET /v1/files/{fileID}/versions/{version}/download.
func (h *FileHandler) DownloadVersion(w http.ResponseWriter, r *http.Request) {
	version, err := strconv.Atoi(chi.URLParam(r, "version"))
	if err != nil || version < 1 {
		BadRequest(w, "version must be a positive integer")
		return
	}

	url, err := h.svc.VersionDownloadURL(r.Context(), chi.URLParam(r, "fileID"), version)
	if err != nil {
		WriteError(w, r, err)
		return
	}
	WriteJSONOK(w, map[string]string{"url": url})
}
