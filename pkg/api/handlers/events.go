package handlers

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/shelfd/shelfd/internal/logger"
	"github.com/shelfd/shelfd/pkg/realtime"
)

// EventsHandler streams realtime events over SSE.
type EventsHandler struct {
	bus       *realtime.Bus
	heartbeat time.Duration
}

// NewEventsHandler creates an events handler. A zero heartbeat
// defaults to 30 seconds.
func NewEventsHandler(bus *realtime.Bus, heartbeat time.Duration) *EventsHandler {
	if heartbeat <= 0 {
		heartbeat = 30 * time.Second
	}
	return &EventsHandler{bus: bus, heartbeat: heartbeat}
}

// Library handles GET /v1/libraries/{libraryID}/events and streams the
// library channel: uploads, renames, moves, deletes, restores.
func (h *EventsHandler) Library(w http.ResponseWriter, r *http.Request) {
	libraryID := chi.URLParam(r, "libraryID")
	h.stream(w, r, realtime.LibraryChannel(libraryID))
}

// User handles GET /v1/events and streams the caller's personal
// channel, which carries notifications.
func (h *EventsHandler) User(w http.ResponseWriter, r *http.Request) {
	h.stream(w, r, realtime.UserChannel(actorID(r)))
}

func (h *EventsHandler) stream(w http.ResponseWriter, r *http.Request, channel string) {
	sub := h.bus.Subscribe(channel)
	defer h.bus.Unsubscribe(sub)

	if err := realtime.ServeSSE(r.Context(), w, sub, h.heartbeat); err != nil {
		logger.DebugCtx(r.Context(), "event stream ended", "channel", channel, "error", err)
	}
}
