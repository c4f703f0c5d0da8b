package handlers

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/shelfd/shelfd/pkg/models"
)

// NotificationService is the slice of the notify service the handler
// needs. Implemented by *notify.Service.
type NotificationService interface {
	List(ctx context.Context, userID string, unreadOnly bool, limit int) ([]*models.Notification, error)
	CountUnread(ctx context.Context, userID string) (int64, error)
	MarkRead(ctx context.Context, id, userID string) error
	MarkAllRead(ctx context.Context, userID string) (int64, error)
	Delete(ctx context.Context, id, userID string) error
}

// NotificationHandler serves the caller's notification feed.
type NotificationHandler struct {
	svc NotificationService
}

// NewNotificationHandler creates a notification handler.
func NewNotificationHandler(svc NotificationService) *NotificationHandler {
	return &NotificationHandler{svc: svc}
}

// List handles GET /v1/notifications with ?unread=true and ?limit=.
func (h *NotificationHandler) List(w http.ResponseWriter, r *http.Request) {
	notifications, err := h.svc.List(r.Context(), actorID(r),
		r.URL.Query().Get("unread") == "true",
		limitParam(r, 50, 200))
	if err != nil {
		WriteError(w, r, err)
		return
	}
	WriteJSONOK(w, map[string]any{"notifications": notifications})
}

// CountUnread handles GET /v1/notifications/count.
func (h *NotificationHandler) CountUnread(w http.ResponseWriter, r *http.Request) {
	count, err := h.svc.CountUnread(r.Context(), actorID(r))
	if err != nil {
		WriteError(w, r, err)
		return
	}
	WriteJSONOK(w, map[string]int64{"unread": count})
}

// MarkRead handles POST /v1/notifications/{notificationID}/read.
func (h *NotificationHandler) MarkRead(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.MarkRead(r.Context(), chi.URLParam(r, "notificationID"), actorID(r)); err != nil {
		WriteError(w, r, err)
		return
	}
	WriteNoContent(w)
}

// MarkAllRead handles POST /v1/notifications/read-all.
func (h *NotificationHandler) MarkAllRead(w http.ResponseWriter, r *http.Request) {
	marked, err := h.svc.MarkAllRead(r.Context(), actorID(r))
	if err != nil {
		WriteError(w, r, err)
		return
	}
	WriteJSONOK(w, map[string]int64{"marked": marked})
}

// Delete handles DELETE /v1/notifications/{notificationID}.
func (h *NotificationHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.Delete(r.Context(), chi.URLParam(r, "notificationID"), actorID(r)); err != nil {
		WriteError(w, r, err)
		return
	}
	WriteNoContent(w)
}
