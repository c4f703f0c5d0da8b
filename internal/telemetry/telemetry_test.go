package telemetry

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/codes"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.False(t, cfg.Enabled)
	assert.Equal(t, "shelfd", cfg.ServiceName)
	assert.Equal(t, "dev", cfg.ServiceVersion)
	assert.Equal(t, "localhost:4317", cfg.Endpoint)
	assert.True(t, cfg.Insecure)
	assert.Equal(t, 1.0, cfg.SampleRate)
}

func TestInitDisabled(t *testing.T) {
	ctx := context.Background()
	cfg := DefaultConfig()
	cfg.Enabled = false

	shutdown, err := Init(ctx, cfg)
	require.NoError(t, err)
	require.NotNil(t, shutdown)

	assert.NoError(t, shutdown(ctx))
	assert.False(t, IsEnabled())
}

func TestTracerReturnsNoOp(t *testing.T) {
	tracer = nil
	enabled = false

	tr := Tracer()
	require.NotNil(t, tr)
}

func TestSpanHelpers(t *testing.T) {
	ctx := context.Background()

	t.Run("storage span", func(t *testing.T) {
		newCtx, span := StartStorageSpan(ctx, "upload_file", "shelf-abc", "lib/report.pdf_v1")
		require.NotNil(t, newCtx)
		require.NotNil(t, span)
		span.End()
	})

	t.Run("vector span", func(t *testing.T) {
		_, span := StartVectorSpan(ctx, "query", "lib-1")
		require.NotNil(t, span)
		span.End()
	})

	t.Run("tool span", func(t *testing.T) {
		_, span := StartToolSpan(ctx, "vector.query", "agent-7", "corr-1")
		require.NotNil(t, span)
		span.End()
	})
}

func TestRecordError(t *testing.T) {
	ctx, span := StartSpan(context.Background(), "test.op")
	defer span.End()

	// No-op spans must tolerate all of these.
	RecordError(ctx, errors.New("backend unavailable"))
	RecordError(ctx, nil)
	SetStatus(ctx, codes.Error, "failed")
	WithCorrelation(ctx, "corr-9")
	WithCorrelation(ctx, "")
}

func TestTraceIDsEmptyWithoutSampler(t *testing.T) {
	ctx := context.Background()
	assert.Empty(t, TraceID(ctx))
	assert.Empty(t, SpanID(ctx))
}
