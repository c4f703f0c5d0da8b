package logger

import "log/slog"

// Standard field keys for structured logging. Use these consistently across
// components so logs can be aggregated and queried by correlation id, actor,
// and library.
const (
	// Request correlation
	KeyCorrelationID = "correlation_id" // Per-request correlation id (header or minted)
	KeyTraceID       = "trace_id"       // OpenTelemetry trace ID
	KeySpanID        = "span_id"        // OpenTelemetry span ID
	KeyRequestID     = "request_id"     // chi middleware request id

	// Actor identification
	KeyActorID   = "actor_id"   // User/agent UUID
	KeyActorType = "actor_type" // user, ai, system
	KeyAgentID   = "agent_id"   // X-Agent-ID of a tool caller
	KeyClientIP  = "client_ip"  // Client IP address

	// Namespace entities
	KeyLibraryID   = "library_id"
	KeyDirectoryID = "directory_id"
	KeyFileID      = "file_id"
	KeyPath        = "path"
	KeyFilename    = "filename"
	KeyVersion     = "version"
	KeyUploadID    = "upload_id"
	KeySize        = "size"

	// Object storage
	KeyBucket  = "bucket"
	KeyKey     = "key"
	KeyAttempt = "attempt"

	// Indexing
	KeyChunks    = "chunks"
	KeyLanguage  = "language"
	KeyStrategy  = "strategy"
	KeyDocID     = "doc_id"
	KeyJobID     = "job_id"
	KeyCollection = "collection"

	// Operation metadata
	KeyOperation  = "operation"
	KeyDurationMs = "duration_ms"
	KeyError      = "error"
	KeyChannel    = "channel"
	KeyTool       = "tool"
)

// Err returns a slog.Attr for an error, or the zero Attr for nil.
func Err(err error) slog.Attr {
	if err == nil {
		return slog.Attr{}
	}
	return slog.String(KeyError, err.Error())
}

// CorrelationID returns a slog.Attr for a correlation id.
func CorrelationID(id string) slog.Attr {
	return slog.String(KeyCorrelationID, id)
}

// LibraryID returns a slog.Attr for a library id.
func LibraryID(id string) slog.Attr {
	return slog.String(KeyLibraryID, id)
}

// FileID returns a slog.Attr for a file id.
func FileID(id string) slog.Attr {
	return slog.String(KeyFileID, id)
}

// Path returns a slog.Attr for a namespace path.
func Path(p string) slog.Attr {
	return slog.String(KeyPath, p)
}

// Bucket returns a slog.Attr for a bucket name.
func Bucket(name string) slog.Attr {
	return slog.String(KeyBucket, name)
}

// Key returns a slog.Attr for an object key.
func Key(k string) slog.Attr {
	return slog.String(KeyKey, k)
}

// Operation returns a slog.Attr for a sub-operation name.
func Operation(op string) slog.Attr {
	return slog.String(KeyOperation, op)
}

// DurationMs returns a slog.Attr for a duration in milliseconds.
func DurationMs(ms float64) slog.Attr {
	return slog.Float64(KeyDurationMs, ms)
}
