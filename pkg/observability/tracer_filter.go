package observability

import (
	"context"

	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/embedded"
	nooptrace "go.opentelemetry.io/otel/trace/noop"
)

// Span names emitted by the ordmap command.
const (
	// SpanRun covers a whole workload run.
	SpanRun = "ordmap.run"
	// SpanPhase covers one workload phase (insert, remove, restore).
	SpanPhase = "ordmap.phase"
	// SpanStep covers a single map mutation. Hot path.
	SpanStep = "ordmap.tree.step"
	// SpanVerify covers one full invariant check. Hot path.
	SpanVerify = "ordmap.tree.verify"
	// SpanSnapshot covers saving or loading a snapshot file.
	SpanSnapshot = "ordmap.snapshot"
)

// filteringTracerProvider wraps a real TracerProvider and replaces hot-path
// spans with no-op spans so a million-step workload does not export a
// million spans.
type filteringTracerProvider struct {
	embedded.TracerProvider

	delegate trace.TracerProvider
	noop     trace.TracerProvider
	suppress map[string]bool
}

// NewFilteringTracerProvider wraps delegate so that per-step and per-verify
// spans are dropped while run, phase and snapshot spans are kept.
func NewFilteringTracerProvider(delegate trace.TracerProvider) trace.TracerProvider {
	return &filteringTracerProvider{
		delegate: delegate,
		noop:     nooptrace.NewTracerProvider(),
		suppress: map[string]bool{
			SpanStep:   true,
			SpanVerify: true,
		},
	}
}

// Tracer returns a tracer that drops the suppressed span names.
func (f *filteringTracerProvider) Tracer(name string, opts ...trace.TracerOption) trace.Tracer {
	return &filteringTracer{
		delegate: f.delegate.Tracer(name, opts...),
		noop:     f.noop.Tracer(name, opts...),
		suppress: f.suppress,
	}
}

// filteringTracer wraps a real Tracer and returns noop spans for
// suppressed span names while delegating everything else.
type filteringTracer struct {
	embedded.Tracer

	delegate trace.Tracer
	noop     trace.Tracer
	suppress map[string]bool
}

// Start creates a span, returning a noop span for suppressed names.
func (f *filteringTracer) Start(ctx context.Context, name string, opts ...trace.SpanStartOption) (context.Context, trace.Span) {
	if f.suppress[name] {
		return f.noop.Start(ctx, name, opts...)
	}

	return f.delegate.Start(ctx, name, opts...)
}
