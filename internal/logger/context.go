package logger

import (
	"context"
	"time"
)

// contextKey is a private type for context keys to avoid collisions
type contextKey struct{}

// logContextKey is the key for LogContext in context.Context
var logContextKey = contextKey{}

// LogContext holds request-scoped logging context.
//
// It travels with the request context from the HTTP pipeline down into
// services and adapters, so every log line carries the correlation id and
// the acting identity without each call site threading them manually.
type LogContext struct {
	CorrelationID string    // Per-request correlation id
	TraceID       string    // OpenTelemetry trace ID
	SpanID        string    // OpenTelemetry span ID
	ActorID       string    // User or agent UUID
	ActorType     string    // user, ai, system
	AgentID       string    // X-Agent-ID when the caller is a tool agent
	LibraryID     string    // Library scope, when known
	ClientIP      string    // Client IP address (without port)
	StartTime     time.Time // For duration calculation
}

// WithContext returns a new context with the given LogContext
func WithContext(ctx context.Context, lc *LogContext) context.Context {
	return context.WithValue(ctx, logContextKey, lc)
}

// FromContext retrieves the LogContext from context, or nil if not present
func FromContext(ctx context.Context) *LogContext {
	if ctx == nil {
		return nil
	}
	lc, _ := ctx.Value(logContextKey).(*LogContext)
	return lc
}

// NewLogContext creates a new LogContext with the given correlation id.
func NewLogContext(correlationID string) *LogContext {
	return &LogContext{
		CorrelationID: correlationID,
		StartTime:     time.Now(),
	}
}

// Clone creates a copy of the LogContext
func (lc *LogContext) Clone() *LogContext {
	if lc == nil {
		return nil
	}
	cp := *lc
	return &cp
}

// WithActor returns a copy with the acting identity set.
func (lc *LogContext) WithActor(actorID, actorType string) *LogContext {
	clone := lc.Clone()
	if clone != nil {
		clone.ActorID = actorID
		clone.ActorType = actorType
	}
	return clone
}

// WithLibrary returns a copy with the library scope set.
func (lc *LogContext) WithLibrary(libraryID string) *LogContext {
	clone := lc.Clone()
	if clone != nil {
		clone.LibraryID = libraryID
	}
	return clone
}

// WithTrace returns a copy with trace info set
func (lc *LogContext) WithTrace(traceID, spanID string) *LogContext {
	clone := lc.Clone()
	if clone != nil {
		clone.TraceID = traceID
		clone.SpanID = spanID
	}
	return clone
}

// DurationMs returns the duration since StartTime in milliseconds
func (lc *LogContext) DurationMs() float64 {
	if lc == nil || lc.StartTime.IsZero() {
		return 0
	}
	return float64(time.Since(lc.StartTime).Microseconds()) / 1000.0
}
