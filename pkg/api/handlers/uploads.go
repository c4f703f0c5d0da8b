package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/shelfd/shelfd/pkg/library"
	"github.com/shelfd/shelfd/pkg/models"
)

// maxPartBytes bounds one uploaded part. The service chunks at 8 MiB;
// the slack tolerates larger configured chunk sizes.
const maxPartBytes = 64 << 20

// UploadService is the slice of the library service the handler needs.
// Implemented by *library.Service.
type UploadService interface {
	InitUpload(ctx context.Context, in library.InitUploadInput) (*library.InitUploadResult, error)
	UploadPart(ctx context.Context, uploadID string, partNumber int, data []byte) error
	CompleteUpload(ctx context.Context, uploadID, clientSHA256 string) (*models.File, error)
	AbortUpload(ctx context.Context, uploadID string) error
}

// UploadHandler drives the upload state machine over HTTP.
type UploadHandler struct {
	svc UploadService
}

// NewUploadHandler creates an upload handler.
func NewUploadHandler(svc UploadService) *UploadHandler {
	return &UploadHandler{svc: svc}
}

type initUploadRequest struct {
	DirectoryID string `json:"directory_id"`
	Filename    string `json:"filename"`
	ContentType string `json:"content_type"`
	SizeBytes   int64  `json:"size_bytes"`
	OnDuplicate string `json:"on_duplicate"`
}

// Init handles POST /v1/libraries/{libraryID}/uploads.
//
// Under the ask duplicate policy a name collision answers 409 with the
// existing file and a proposed rename, so the client can resubmit with
// the overwrite or rename policy.
func (h *UploadHandler) Init(w http.ResponseWriter, r *http.Request) {
	var req initUploadRequest
	if !decodeJSONBody(w, r, &req) {
		return
	}

	res, err := h.svc.InitUpload(r.Context(), library.InitUploadInput{
		LibraryID:   chi.URLParam(r, "libraryID"),
		DirectoryID: optionalID(req.DirectoryID),
		Filename:    req.Filename,
		ContentType: req.ContentType,
		SizeBytes:   req.SizeBytes,
		OnDuplicate: req.OnDuplicate,
		ActorID:     actorID(r),
	})
	if errors.Is(err, library.ErrDuplicateConflict) && res != nil {
		WriteJSON(w, http.StatusConflict, res)
		return
	}
	if err != nil {
		WriteError(w, r, err)
		return
	}
	WriteJSONCreated(w, res)
}

// Part handles PUT /v1/uploads/{uploadID}/parts/{partNumber} with the
// raw part bytes as the body.
func (h *UploadHandler) Part(w http.ResponseWriter, r *http.Request) {
	partNumber, err := strconv.Atoi(chi.URLParam(r, "partNumber"))
	if err != nil {
		BadRequest(w, "part number must be an integer")
		return
	}

	data, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxPartBytes))
	if err != nil {
		WriteProblem(w, http.StatusRequestEntityTooLarge, "Payload Too Large", "part exceeds the maximum part size")
		return
	}

	if err := h.svc.UploadPart(r.Context(), chi.URLParam(r, "uploadID"), partNumber, data); err != nil {
		WriteError(w, r, err)
		return
	}
	WriteNoContent(w)
}

type completeUploadRequest struct {
	ChecksumSHA256 string `json:"checksum_sha256"`
}

// Complete handles POST /v1/uploads/{uploadID}/complete and returns
// the committed file. The body is optional; clients that stream-hash
// may send {"checksum_sha256": ...} to have the value verified (or,
// for multipart uploads, recorded).
func (h *UploadHandler) Complete(w http.ResponseWriter, r *http.Request) {
	var req completeUploadRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		BadRequest(w, "malformed request body")
		return
	}

	file, err := h.svc.CompleteUpload(r.Context(), chi.URLParam(r, "uploadID"), req.ChecksumSHA256)
	if err != nil {
		WriteError(w, r, err)
		return
	}
	WriteJSONCreated(w, file)
}

// Abort handles DELETE /v1/uploads/{uploadID}. Aborting an unknown or
// already-aborted upload succeeds.
func (h *UploadHandler) Abort(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.AbortUpload(r.Context(), chi.URLParam(r, "uploadID")); err != nil {
		WriteError(w, r, err)
		return
	}
	WriteNoContent(w)
}
