package observability_test

import (
	"bytes"
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/Sumatoshi-tech/ordmap/pkg/observability"
)

func filteredSpanAttrs(t *testing.T, logger *slog.Logger, attrs ...attribute.KeyValue) map[string]any {
	t.Helper()

	exporter := tracetest.NewInMemoryExporter()
	filter := observability.NewAttributeFilter(sdktrace.NewSimpleSpanProcessor(exporter), logger)
	tp := sdktrace.NewTracerProvider(
		sdktrace.WithSpanProcessor(filter),
		sdktrace.WithSampler(sdktrace.AlwaysSample()),
	)

	t.Cleanup(func() { require.NoError(t, tp.Shutdown(context.Background())) })

	_, span := tp.Tracer("test").Start(context.Background(), "op")
	span.SetAttributes(attrs...)
	span.End()

	spans := exporter.GetSpans()
	require.Len(t, spans, 1)

	result := make(map[string]any, len(spans[0].Attributes))
	for _, kv := range spans[0].Attributes {
		result[string(kv.Key)] = kv.Value.AsInterface()
	}

	return result
}

func TestAttributeFilter_AllowsKnownKeys(t *testing.T) {
	t.Parallel()

	attrs := filteredSpanAttrs(t, nil,
		attribute.String("error.type", "capacity"),
		attribute.Int("tree.len", 100),
		attribute.String("workload.order", "shuffled"),
		attribute.String("snapshot.codec", "json"),
		attribute.Bool("error", true),
	)

	assert.Equal(t, "capacity", attrs["error.type"])
	assert.Equal(t, int64(100), attrs["tree.len"])
	assert.Equal(t, "shuffled", attrs["workload.order"])
	assert.Equal(t, "json", attrs["snapshot.codec"])
	assert.Equal(t, true, attrs["error"])
}

func TestAttributeFilter_DropsMapContents(t *testing.T) {
	t.Parallel()

	attrs := filteredSpanAttrs(t, nil,
		attribute.Int("tree.key", 42),
		attribute.String("tree.value", "secret"),
		attribute.String("user.id", "12345"),
		attribute.Int("tree.height", 7),
	)

	assert.NotContains(t, attrs, "tree.key")
	assert.NotContains(t, attrs, "tree.value")
	assert.NotContains(t, attrs, "user.id")
	assert.Equal(t, int64(7), attrs["tree.height"])
}

func TestAttributeFilter_WarnsWhenLogging(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer

	logger := slog.New(slog.NewTextHandler(&buf, nil))

	filteredSpanAttrs(t, logger, attribute.String("unknown.key", "x"))

	assert.Contains(t, buf.String(), "attribute blocked by filter")
	assert.Contains(t, buf.String(), "unknown.key")
}
