// Package handlers provides HTTP handlers for the shelfd REST API.
package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/shelfd/shelfd/internal/logger"
	"github.com/shelfd/shelfd/pkg/library"
	"github.com/shelfd/shelfd/pkg/models"
)

// Problem represents an RFC 7807 "problem details" response.
// https://tools.ietf.org/html/rfc7807
type Problem struct {
	// Type is a URI reference that identifies the problem type.
	// If not set, defaults to "about:blank".
	Type string `json:"type,omitempty"`

	// Title is a short, human-readable summary of the problem type.
	Title string `json:"title"`

	// Status is the HTTP status code for this occurrence of the problem.
	Status int `json:"status"`

	// Detail is a human-readable explanation specific to this occurrence.
	Detail string `json:"detail,omitempty"`
}

// ContentTypeProblemJSON is the Content-Type for RFC 7807 problem responses.
const ContentTypeProblemJSON = "application/problem+json"

// WriteProblem writes an RFC 7807 problem response.
func WriteProblem(w http.ResponseWriter, status int, title, detail string) {
	problem := &Problem{
		Type:   "about:blank",
		Title:  title,
		Status: status,
		Detail: detail,
	}

	w.Header().Set("Content-Type", ContentTypeProblemJSON)
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(problem)
}

// Common problem helper functions for standard HTTP errors.

// BadRequest writes a 400 Bad Request problem response.
func BadRequest(w http.ResponseWriter, detail string) {
	WriteProblem(w, http.StatusBadRequest, "Bad Request", detail)
}

// Unauthorized writes a 401 Unauthorized problem response.
func Unauthorized(w http.ResponseWriter, detail string) {
	WriteProblem(w, http.StatusUnauthorized, "Unauthorized", detail)
}

// Forbidden writes a 403 Forbidden problem response.
func Forbidden(w http.ResponseWriter, detail string) {
	WriteProblem(w, http.StatusForbidden, "Forbidden", detail)
}

// NotFound writes a 404 Not Found problem response.
func NotFound(w http.ResponseWriter, detail string) {
	WriteProblem(w, http.StatusNotFound, "Not Found", detail)
}

// Conflict writes a 409 Conflict problem response.
func Conflict(w http.ResponseWriter, detail string) {
	WriteProblem(w, http.StatusConflict, "Conflict", detail)
}

// Gone writes a 410 Gone problem response.
func Gone(w http.ResponseWriter, detail string) {
	WriteProblem(w, http.StatusGone, "Gone", detail)
}

// InternalServerError writes a 500 Internal Server Error problem response.
func InternalServerError(w http.ResponseWriter, detail string) {
	WriteProblem(w, http.StatusInternalServerError, "Internal Server Error", detail)
}

// WriteError maps a service error onto the right problem response.
// Domain sentinels translate to their HTTP status; anything unmapped is
// a 500 with the detail withheld from the client.
func WriteError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, models.ErrLibraryNotFound),
		errors.Is(err, models.ErrDirectoryNotFound),
		errors.Is(err, models.ErrFileNotFound),
		errors.Is(err, models.ErrVersionNotFound),
		errors.Is(err, models.ErrUploadNotFound),
		errors.Is(err, models.ErrShareLinkNotFound),
		errors.Is(err, models.ErrNotificationNotFound),
		errors.Is(err, models.ErrNotInTrash):
		NotFound(w, err.Error())
	case errors.Is(err, models.ErrDuplicateLibrary),
		errors.Is(err, models.ErrDuplicateDirectory),
		errors.Is(err, models.ErrDuplicateFilename),
		errors.Is(err, library.ErrDuplicateConflict):
		Conflict(w, err.Error())
	case errors.Is(err, models.ErrAccessDenied),
		errors.Is(err, models.ErrShareLinkRevoked):
		Forbidden(w, err.Error())
	case errors.Is(err, models.ErrSharePassword):
		Unauthorized(w, err.Error())
	case errors.Is(err, models.ErrFileTooLarge):
		WriteProblem(w, http.StatusRequestEntityTooLarge, "Payload Too Large", err.Error())
	case errors.Is(err, models.ErrTrashItemExpired),
		errors.Is(err, models.ErrShareLinkExpired),
		errors.Is(err, models.ErrShareLinkConsumed):
		Gone(w, err.Error())
	case errors.Is(err, models.ErrInvalidMoveTarget),
		errors.Is(err, models.ErrInvalidPartNumber),
		errors.Is(err, models.ErrChecksumMismatch),
		errors.Is(err, library.ErrInvalidFilename):
		BadRequest(w, err.Error())
	default:
		logger.ErrorCtx(r.Context(), "request failed",
			"method", r.Method,
			"path", r.URL.Path,
			"error", err,
		)
		InternalServerError(w, "An unexpected error occurred")
	}
}

// WriteJSON writes a JSON response with the given status code.
func WriteJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// WriteJSONOK writes a 200 OK JSON response.
func WriteJSONOK(w http.ResponseWriter, data any) {
	WriteJSON(w, http.StatusOK, data)
}

// WriteJSONCreated writes a 201 Created JSON response.
func WriteJSONCreated(w http.ResponseWriter, data any) {
	WriteJSON(w, http.StatusCreated, data)
}

// WriteNoContent writes a 204 No Content response.
func WriteNoContent(w http.ResponseWriter) {
	w.WriteHeader(http.StatusNoContent)
}
