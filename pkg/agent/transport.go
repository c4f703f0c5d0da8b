package agent

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/shelfd/shelfd/internal/logger"
	"github.com/shelfd/shelfd/pkg/models"
	"github.com/shelfd/shelfd/pkg/realtime"
)

// AgentIDHeader identifies the calling agent. Absent means anonymous.
const AgentIDHeader = "X-Agent-ID"

// AgentChannel names the realtime channel carrying an agent's framed
// RPC results.
func AgentChannel(agentID string) string {
	return "agent:" + agentID
}

// Transport serves the tool surface over HTTP: a plain call endpoint
// and an SSE channel for framed RPC.
type Transport struct {
	dispatcher *Dispatcher
	bus        *realtime.Bus
	heartbeat  time.Duration
}

// NewTransport wires the transport over a dispatcher and the realtime
// bus.
func NewTransport(d *Dispatcher, bus *realtime.Bus) *Transport {
	return &Transport{dispatcher: d, bus: bus, heartbeat: 30 * time.Second}
}

// Routes mounts the transport endpoints.
func (t *Transport) Routes() chi.Router {
	r := chi.NewRouter()
	r.Get("/tools", t.handleListTools)
	r.Post("/tools/{tool}", t.handleCall)
	r.Get("/events", t.handleEvents)
	r.Post("/rpc", t.handleRPC)
	return r
}

func agentID(r *http.Request) string {
	if id := r.Header.Get(AgentIDHeader); id != "" {
		return id
	}
	return AnonymousAgent
}

func (t *Transport) handleListTools(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"tools": t.dispatcher.Tools()})
}

// handleCall is the plain request/response transport: tool name in the
// path, JSON arguments in the body, result in the response.
func (t *Transport) handleCall(w http.ResponseWriter, r *http.Request) {
	tool := chi.URLParam(r, "tool")

	var args json.RawMessage
	if err := json.NewDecoder(r.Body).Decode(&args); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": "request body must be a JSON object"})
		return
	}

	result, err := t.dispatcher.Call(r.Context(), agentID(r), tool, args)
	if err != nil {
		writeCallError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"result": result})
}

// rpcFrame is one framed call submitted against the SSE channel.
type rpcFrame struct {
	ID        string          `json:"id"`
	Tool      string          `json:"tool"`
	Arguments json.RawMessage `json:"arguments"`
}

// handleRPC accepts a framed call and publishes its result as a
// `tool_result` event on the agent's SSE channel.
func (t *Transport) handleRPC(w http.ResponseWriter, r *http.Request) {
	var frame rpcFrame
	if err := json.NewDecoder(r.Body).Decode(&frame); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": "invalid rpc frame"})
		return
	}
	if frame.Tool == "" {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": "tool is required"})
		return
	}

	id := agentID(r)
	result, err := t.dispatcher.Call(r.Context(), id, frame.Tool, frame.Arguments)

	payload := map[string]any{"id": frame.ID, "tool": frame.Tool}
	if err != nil {
		payload["error"] = err.Error()
	} else {
		payload["result"] = result
	}
	t.bus.Publish(AgentChannel(id), "tool_result", payload)

	// Rate-limit rejections surface on the submit path too, so clients
	// can back off without waiting for the event.
	var rle *RateLimitError
	if errors.As(err, &rle) {
		w.Header().Set("Retry-After", strconv.Itoa(int(rle.RetryAfter.Seconds())+1))
		writeJSON(w, http.StatusTooManyRequests, map[string]any{"error": err.Error(), "remaining": rle.Remaining})
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]any{"id": frame.ID})
}

// handleEvents is the server-sent transport: connected event on open,
// heartbeats, then framed tool results.
func (t *Transport) handleEvents(w http.ResponseWriter, r *http.Request) {
	id := agentID(r)
	sub := t.bus.Subscribe(AgentChannel(id))
	defer t.bus.Unsubscribe(sub)

	if err := realtime.ServeSSE(r.Context(), w, sub, t.heartbeat); err != nil {
		logger.DebugCtx(r.Context(), "agent event stream ended", "agent_id", id, "error", err)
	}
}

func writeCallError(w http.ResponseWriter, err error) {
	var rle *RateLimitError
	switch {
	case errors.As(err, &rle):
		w.Header().Set("Retry-After", strconv.Itoa(int(rle.RetryAfter.Seconds())+1))
		writeJSON(w, http.StatusTooManyRequests, map[string]any{"error": err.Error(), "remaining": rle.Remaining})
	case errors.Is(err, ErrUnknownTool):
		writeJSON(w, http.StatusNotFound, map[string]any{"error": err.Error()})
	case errors.Is(err, models.ErrAccessDenied):
		writeJSON(w, http.StatusForbidden, map[string]any{"error": err.Error()})
	case errors.Is(err, models.ErrLibraryNotFound), errors.Is(err, models.ErrFileNotFound), errors.Is(err, models.ErrDirectoryNotFound):
		writeJSON(w, http.StatusNotFound, map[string]any{"error": err.Error()})
	default:
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": err.Error()})
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
