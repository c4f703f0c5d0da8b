package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/shelfd/shelfd/pkg/library"
	"github.com/shelfd/shelfd/pkg/models"
)

func TestWriteErrorMapping(t *testing.T) {
	tests := []struct {
		err    error
		status int
	}{
		{models.ErrLibraryNotFound, http.StatusNotFound},
		{models.ErrDirectoryNotFound, http.StatusNotFound},
		{models.ErrFileNotFound, http.StatusNotFound},
		{models.ErrVersionNotFound, http.StatusNotFound},
		{models.ErrUploadNotFound, http.StatusNotFound},
		{models.ErrShareLinkNotFound, http.StatusNotFound},
		{models.ErrNotificationNotFound, http.StatusNotFound},
		{models.ErrNotInTrash, http.StatusNotFound},
		{models.ErrDuplicateLibrary, http.StatusConflict},
		{models.ErrDuplicateDirectory, http.StatusConflict},
		{models.ErrDuplicateFilename, http.StatusConflict},
		{library.ErrDuplicateConflict, http.StatusConflict},
		{models.ErrAccessDenied, http.StatusForbidden},
		{models.ErrShareLinkRevoked, http.StatusForbidden},
		{models.ErrSharePassword, http.StatusUnauthorized},
		{models.ErrFileTooLarge, http.StatusRequestEntityTooLarge},
		{models.ErrTrashItemExpired, http.StatusGone},
		{models.ErrShareLinkExpired, http.StatusGone},
		{models.ErrShareLinkConsumed, http.StatusGone},
		{models.ErrInvalidMoveTarget, http.StatusBadRequest},
		{models.ErrInvalidPartNumber, http.StatusBadRequest},
		{library.ErrInvalidFilename, http.StatusBadRequest},
		{errors.New("driver exploded"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.err.Error(), func(t *testing.T) {
			rec := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodGet, "/test", nil)

			WriteError(rec, req, tt.err)

			if rec.Code != tt.status {
				t.Errorf("status = %d, want %d", rec.Code, tt.status)
			}
			if ct := rec.Header().Get("Content-Type"); ct != ContentTypeProblemJSON {
				t.Errorf("content type = %q", ct)
			}

			var problem Problem
			if err := json.NewDecoder(rec.Body).Decode(&problem); err != nil {
				t.Fatalf("invalid problem body: %v", err)
			}
			if problem.Status != tt.status {
				t.Errorf("problem status = %d, want %d", problem.Status, tt.status)
			}
		})
	}
}

func TestWriteErrorWrappedSentinel(t *testing.T) {
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/test", nil)

	WriteError(rec, req, fmt.Errorf("loading library lib-1: %w", models.ErrLibraryNotFound))

	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rec.Code)
	}
}

func TestWriteErrorHidesInternalDetail(t *testing.T) {
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/test", nil)

	WriteError(rec, req, errors.New("pq: connection refused at 10.0.0.5"))

	var problem Problem
	if err := json.NewDecoder(rec.Body).Decode(&problem); err != nil {
		t.Fatal(err)
	}
	if problem.Detail == "" || problem.Detail == "pq: connection refused at 10.0.0.5" {
		t.Errorf("internal error detail must be generic, got %q", problem.Detail)
	}
}
