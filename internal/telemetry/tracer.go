package telemetry

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// Common attribute keys. The correlation id is attached to every span so
// traces can be joined against log lines and audit events.
const (
	AttrCorrelationID = "shelfd.correlation_id"

	// Actor attributes
	AttrActorID   = "actor.id"
	AttrActorType = "actor.type"
	AttrAgentID   = "agent.id"

	// Namespace attributes
	AttrLibraryID   = "library.id"
	AttrDirectoryID = "directory.id"
	AttrFileID      = "file.id"
	AttrPath        = "fs.path"
	AttrFilename    = "fs.filename"
	AttrVersion     = "file.version"
	AttrSize        = "fs.size"
	AttrUploadID    = "upload.id"

	// Object storage attributes
	AttrBucket = "storage.bucket"
	AttrKey    = "storage.key"

	// Indexing attributes
	AttrDocID      = "index.doc_id"
	AttrChunks     = "index.chunks"
	AttrLanguage   = "index.language"
	AttrStrategy   = "index.strategy"
	AttrCollection = "vector.collection"
	AttrTopK       = "vector.top_k"

	// Agent tool attributes
	AttrTool = "tool.name"
)

// Span name prefixes per component.
const (
	SpanLibrary  = "library"
	SpanStorage  = "storage"
	SpanMetadata = "metadata"
	SpanIndex    = "index"
	SpanVector   = "vector"
	SpanShare    = "share"
	SpanAgent    = "agent"
)

// StartStorageSpan starts a span for an object-store operation.
func StartStorageSpan(ctx context.Context, op, bucket, key string) (context.Context, trace.Span) {
	return StartSpan(ctx, SpanStorage+"."+op,
		trace.WithAttributes(
			attribute.String(AttrBucket, bucket),
			attribute.String(AttrKey, key),
		),
	)
}

// StartLibrarySpan starts a span for a namespace-engine operation.
func StartLibrarySpan(ctx context.Context, op, libraryID string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	all := append([]attribute.KeyValue{attribute.String(AttrLibraryID, libraryID)}, attrs...)
	return StartSpan(ctx, SpanLibrary+"."+op, trace.WithAttributes(all...))
}

// StartIndexSpan starts a span for an indexing-pipeline stage.
func StartIndexSpan(ctx context.Context, op, docID string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	all := append([]attribute.KeyValue{attribute.String(AttrDocID, docID)}, attrs...)
	return StartSpan(ctx, SpanIndex+"."+op, trace.WithAttributes(all...))
}

// StartVectorSpan starts a span for a vector-store operation.
func StartVectorSpan(ctx context.Context, op, libraryID string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	all := append([]attribute.KeyValue{attribute.String(AttrLibraryID, libraryID)}, attrs...)
	return StartSpan(ctx, SpanVector+"."+op, trace.WithAttributes(all...))
}

// StartToolSpan starts a span for an agent tool invocation, carrying the
// agent id and correlation id.
func StartToolSpan(ctx context.Context, tool, agentID, correlationID string) (context.Context, trace.Span) {
	return StartSpan(ctx, SpanAgent+"."+tool,
		trace.WithAttributes(
			attribute.String(AttrTool, tool),
			attribute.String(AttrAgentID, agentID),
			attribute.String(AttrCorrelationID, correlationID),
		),
	)
}

// WithCorrelation sets the correlation id attribute on the current span.
func WithCorrelation(ctx context.Context, correlationID string) {
	if correlationID == "" {
		return
	}
	trace.SpanFromContext(ctx).SetAttributes(attribute.String(AttrCorrelationID, correlationID))
}
