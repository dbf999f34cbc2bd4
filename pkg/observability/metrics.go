package observability

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/Sumatoshi-tech/ordmap/pkg/rbtree"
)

// Metric names exported by TreeMetrics.
const (
	MetricOpsTotal       = "ordmap.tree.ops.total"
	MetricOpDuration     = "ordmap.tree.op.duration.seconds"
	MetricRotationsTotal = "ordmap.tree.rotations.total"
	MetricFixupsTotal    = "ordmap.tree.fixups.total"
	MetricVerifyFailures = "ordmap.tree.verify.failures.total"
	MetricSize           = "ordmap.tree.size"
	MetricHeight         = "ordmap.tree.height"
)

// Operation names.
const (
	OpInsert  = "insert"
	OpReplace = "replace"
	OpRemove  = "remove"
	OpFind    = "find"
	OpVerify  = "verify"
	OpRestore = "restore"
)

// Operation outcomes.
const (
	OutcomeOK        = "ok"
	OutcomeDuplicate = "duplicate"
	OutcomeMissing   = "missing"
	OutcomeError     = "error"
)

const (
	attrOp      = "op"
	attrOutcome = "outcome"
	attrPhase   = "phase"
	attrCase    = "case"
)

// opBucketBoundaries covers 100ns to 10ms; a single tree step is
// logarithmic in the map size and rarely leaves this range.
var opBucketBoundaries = []float64{1e-7, 5e-7, 1e-6, 5e-6, 1e-5, 5e-5, 1e-4, 5e-4, 1e-3, 1e-2}

// TreeGauges reports the current shape of the observed map.
type TreeGauges interface {
	Len() int
	Height() int
}

// TreeMetrics holds the OTel instruments describing map activity.
type TreeMetrics struct {
	opsTotal       metric.Int64Counter
	opDuration     metric.Float64Histogram
	rotations      metric.Int64Counter
	fixups         metric.Int64Counter
	verifyFailures metric.Int64Counter
	registration   metric.Registration
}

// NewTreeMetrics creates the tree instruments from the given meter. When
// gauges is non-nil its size and height are observed at every collection.
func NewTreeMetrics(mt metric.Meter, gauges TreeGauges) (*TreeMetrics, error) {
	b := newMetricBuilder(mt)

	tm := &TreeMetrics{
		opsTotal:       b.counter(MetricOpsTotal, "Map operations by kind and outcome", "{operation}"),
		opDuration:     b.histogram(MetricOpDuration, "Map operation latency", "s", opBucketBoundaries...),
		rotations:      b.counter(MetricRotationsTotal, "Single tree rotations", "{rotation}"),
		fixups:         b.counter(MetricFixupsTotal, "Rebalancing cases applied after insert and remove", "{case}"),
		verifyFailures: b.counter(MetricVerifyFailures, "Invariant checks that found a violation", "{check}"),
	}

	size := b.gauge(MetricSize, "Number of entries in the map", "{entry}")
	height := b.gauge(MetricHeight, "Nodes on the longest root-to-leaf path", "{node}")

	if b.err != nil {
		return nil, b.err
	}

	if gauges == nil {
		return tm, nil
	}

	reg, err := mt.RegisterCallback(func(_ context.Context, obs metric.Observer) error {
		obs.ObserveInt64(size, int64(gauges.Len()))
		obs.ObserveInt64(height, int64(gauges.Height()))

		return nil
	}, size, height)
	if err != nil {
		return nil, fmt.Errorf("register tree gauges: %w", err)
	}

	tm.registration = reg

	return tm, nil
}

// RecordOp records one completed map operation.
func (tm *TreeMetrics) RecordOp(ctx context.Context, op, outcome string, duration time.Duration) {
	tm.opsTotal.Add(ctx, 1, metric.WithAttributes(
		attribute.String(attrOp, op),
		attribute.String(attrOutcome, outcome),
	))
	tm.opDuration.Record(ctx, duration.Seconds(), metric.WithAttributes(attribute.String(attrOp, op)))
}

// RecordStats adds a rebalancing counter delta, typically
// tree.Stats().Sub(previous).
func (tm *TreeMetrics) RecordStats(ctx context.Context, delta rbtree.Stats) {
	if delta.Rotations > 0 {
		tm.rotations.Add(ctx, int64(delta.Rotations))
	}

	cases := []struct {
		phase, name string
		count       uint64
	}{
		{OpInsert, "red_uncle", delta.InsertRedUncle},
		{OpInsert, "inner_child", delta.InsertInnerChild},
		{OpInsert, "outer_child", delta.InsertOuterChild},
		{OpRemove, "red_sibling", delta.DeleteRedSibling},
		{OpRemove, "black_nephews", delta.DeleteBlackNephews},
		{OpRemove, "near_nephew_red", delta.DeleteNearNephewRed},
		{OpRemove, "far_nephew_red", delta.DeleteFarNephewRed},
	}

	for _, fixup := range cases {
		if fixup.count == 0 {
			continue
		}

		tm.fixups.Add(ctx, int64(fixup.count), metric.WithAttributes(
			attribute.String(attrPhase, fixup.phase),
			attribute.String(attrCase, fixup.name),
		))
	}
}

// RecordVerifyFailure counts an invariant check that returned an error.
func (tm *TreeMetrics) RecordVerifyFailure(ctx context.Context) {
	tm.verifyFailures.Add(ctx, 1)
}

// Close stops observing the tree gauges.
func (tm *TreeMetrics) Close() error {
	if tm.registration == nil {
		return nil
	}

	err := tm.registration.Unregister()
	if err != nil {
		return fmt.Errorf("unregister tree gauges: %w", err)
	}

	return nil
}
