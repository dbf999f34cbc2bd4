package commands

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/Sumatoshi-tech/ordmap/pkg/config"
	"github.com/Sumatoshi-tech/ordmap/pkg/observability"
	"github.com/Sumatoshi-tech/ordmap/pkg/rbtree"
)

// ErrVerifyFailed is returned when the map breaks an invariant during a command.
var ErrVerifyFailed = errors.New("tree verification failed")

const (
	readHeaderTimeout = 5 * time.Second
	serverStopTimeout = 5 * time.Second
)

// RunCommand holds the flag overrides of the run command.
type RunCommand struct {
	opts *rootOptions

	keys        int
	seed        int64
	order       string
	removeRatio float64
	verifyEvery int
	shards      int
	metricsAddr string
	linger      time.Duration
}

// workloadResult counts what happened during a run.
type workloadResult struct {
	inserted   int
	duplicates int
	rejected   int
	removed    int
	missing    int
	verifies   int
	elapsed    time.Duration
}

// NewRunCommand creates the workload command.
func NewRunCommand(opts *rootOptions) *cobra.Command {
	rc := &RunCommand{opts: opts}

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run an insert/remove workload and report statistics",
		Long: `Insert workload.keys keys in the configured order, remove a share of them
in shuffled order, verify the red-black invariants and print statistics.
Flags override the configuration file and ORDMAP_* environment variables.`,
		Args: cobra.NoArgs,
		RunE: rc.run,
	}

	cmd.Flags().IntVarP(&rc.keys, "keys", "n", 0, "Number of keys to insert (0 = config)")
	cmd.Flags().Int64Var(&rc.seed, "seed", 0, "Shuffle seed (0 = config)")
	cmd.Flags().StringVar(&rc.order, "order", "", "Key order: sequential, reverse, shuffled (empty = config)")
	cmd.Flags().Float64Var(&rc.removeRatio, "remove-ratio", -1, "Share of keys to remove, 0..1 (negative = config)")
	cmd.Flags().IntVar(&rc.verifyEvery, "verify-every", -1, "Verify after every N mutations (negative = config, 0 = only at the end)")
	cmd.Flags().IntVar(&rc.shards, "shards", 0, "Spread keys over N concurrently driven maps (0 = config)")
	cmd.Flags().StringVar(&rc.metricsAddr, "metrics-addr", "", "Serve /metrics, /healthz and /readyz on this address")
	cmd.Flags().DurationVar(&rc.linger, "linger", 0, "Keep the metrics endpoint up this long after the workload")

	return cmd
}

func (rc *RunCommand) applyOverrides(cfg *config.Config) error {
	if rc.keys > 0 {
		cfg.Workload.Keys = rc.keys
	}

	if rc.seed != 0 {
		cfg.Workload.Seed = rc.seed
	}

	if rc.order != "" {
		cfg.Workload.Order = rc.order
	}

	if rc.removeRatio >= 0 {
		cfg.Workload.RemoveRatio = rc.removeRatio
	}

	if rc.verifyEvery >= 0 {
		cfg.Workload.VerifyEvery = rc.verifyEvery
	}

	if rc.shards > 0 {
		cfg.Workload.Shards = rc.shards
	}

	if rc.metricsAddr != "" {
		cfg.Metrics.Addr = rc.metricsAddr
	}

	if rc.linger > 0 {
		cfg.Metrics.Linger = rc.linger
	}

	return cfg.Validate()
}

func (rc *RunCommand) run(cmd *cobra.Command, _ []string) (err error) {
	ctx := cmd.Context()

	sess, err := newSession(ctx, cmd, rc.opts, observability.ModeServe)
	if err != nil {
		return err
	}

	defer func() { err = sess.close(ctx, err) }()

	err = rc.applyOverrides(sess.cfg)
	if err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	target, err := sess.newTarget()
	if err != nil {
		return err
	}

	meter := sess.providers.Meter

	if addr := sess.cfg.Metrics.Addr; addr != "" {
		handler, mp, promErr := observability.PrometheusProvider()
		if promErr != nil {
			return promErr
		}

		defer func() { err = errors.Join(err, mp.Shutdown(context.WithoutCancel(ctx))) }()

		stop, srvErr := serveMetrics(ctx, sess, addr, handler, target)
		if srvErr != nil {
			return srvErr
		}

		defer stop()

		meter = mp.Meter(observability.InstrumentationName)
	}

	metrics, err := observability.NewTreeMetrics(meter, target)
	if err != nil {
		return err
	}

	defer func() { err = errors.Join(err, metrics.Close()) }()

	runner := &workloadRunner{
		sess:    sess,
		target:  target,
		metrics: metrics,
		tracer:  sess.providers.Tracer,
	}

	result, err := runner.execute(ctx, sess.cfg.Workload)
	if err != nil {
		return err
	}

	stats := target.Stats()
	metrics.RecordStats(ctx, stats)

	sess.printf("%s\n%s\n%s\n",
		renderStats("Workload", result.rows(sess.cfg.Workload)),
		renderStats("Shape", target.shape()),
		renderStats("Rebalancing", rebalanceRows(stats)))

	if linger := sess.cfg.Metrics.Linger; linger > 0 && sess.cfg.Metrics.Addr != "" {
		sess.logger.InfoContext(ctx, "workload done, metrics endpoint stays up", "linger", linger)

		select {
		case <-ctx.Done():
		case <-time.After(linger):
		}
	}

	return nil
}

func (result workloadResult) rows(workload config.WorkloadConfig) []statRow {
	ops := result.inserted + result.duplicates + result.rejected + result.removed + result.missing
	rate := "-"

	if secs := result.elapsed.Seconds(); secs > 0 {
		rate = humanize.CommafWithDigits(float64(ops)/secs, 0) + " ops/s"
	}

	return []statRow{
		{"order", workload.Order},
		{"seed", strconv.FormatInt(workload.Seed, 10)},
		{"shards", strconv.Itoa(workload.Shards)},
		{"inserted", humanize.Comma(int64(result.inserted))},
		{"duplicates", humanize.Comma(int64(result.duplicates))},
		{"rejected (capacity)", humanize.Comma(int64(result.rejected))},
		{"removed", humanize.Comma(int64(result.removed))},
		{"verifications", humanize.Comma(int64(result.verifies))},
		{"elapsed", result.elapsed.Round(time.Microsecond).String()},
		{"throughput", rate},
	}
}

// serveMetrics starts the scrape and health endpoints and returns a function
// that stops them.
func serveMetrics(
	ctx context.Context,
	sess *session,
	addr string,
	metricsHandler http.Handler,
	target workloadTarget,
) (func(), error) {
	listener, err := (&net.ListenConfig{}).Listen(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("listen on %s: %w", addr, err)
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", metricsHandler)
	mux.Handle("/healthz", observability.HealthHandler())
	mux.Handle("/readyz", observability.ReadyHandler(func(context.Context) error {
		return target.Verify()
	}))

	server := &http.Server{
		Handler:           observability.HTTPMiddleware(sess.providers.Tracer, mux),
		ReadHeaderTimeout: readHeaderTimeout,
	}

	go func() {
		serveErr := server.Serve(listener)
		if serveErr != nil && !errors.Is(serveErr, http.ErrServerClosed) {
			sess.logger.Error("metrics endpoint failed", "error", serveErr)
		}
	}()

	sess.logger.InfoContext(ctx, "metrics endpoint listening", "addr", listener.Addr().String())

	return func() {
		stopCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), serverStopTimeout)
		defer cancel()

		shutdownErr := server.Shutdown(stopCtx)
		if shutdownErr != nil {
			sess.logger.Warn("metrics endpoint shutdown", "error", shutdownErr)
		}
	}, nil
}

// workloadRunner drives a workload against a shared map. Each shard is
// driven by its own goroutine; mu guards the counters.
type workloadRunner struct {
	sess    *session
	target  workloadTarget
	metrics *observability.TreeMetrics
	tracer  trace.Tracer

	mu       sync.Mutex
	steps    int
	result   workloadResult
	warnFull sync.Once
}

func (wr *workloadRunner) execute(ctx context.Context, workload config.WorkloadConfig) (workloadResult, error) {
	ctx, span := wr.tracer.Start(ctx, observability.SpanRun, trace.WithAttributes(
		attribute.Int("workload.keys", workload.Keys),
		attribute.String("workload.order", workload.Order),
		attribute.Int64("workload.seed", workload.Seed),
		attribute.Int("workload.shards", workload.Shards),
	))
	defer span.End()

	started := time.Now()
	keys := workloadKeys(workload)

	wr.sess.logger.InfoContext(ctx, "workload started",
		"keys", workload.Keys, "order", workload.Order, "seed", workload.Seed, "shards", workload.Shards)

	err := wr.phase(ctx, observability.OpInsert, keys, workload.VerifyEvery, wr.insert)
	if err == nil {
		toRemove := removalKeys(keys, workload.RemoveRatio, newRand(workload.Seed+1))
		err = wr.phase(ctx, observability.OpRemove, toRemove, workload.VerifyEvery, wr.remove)
	}

	if err == nil {
		err = wr.verify(ctx)
	}

	wr.result.elapsed = time.Since(started)

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())

		return wr.result, err
	}

	wr.sess.logger.InfoContext(ctx, "workload finished",
		"len", wr.target.Len(), "elapsed", wr.result.elapsed, "rejected", wr.result.rejected)

	return wr.result, nil
}

func (wr *workloadRunner) phase(
	ctx context.Context,
	name string,
	keys []int,
	verifyEvery int,
	step func(ctx context.Context, key int) error,
) error {
	ctx, span := wr.tracer.Start(ctx, observability.SpanPhase, trace.WithAttributes(
		attribute.String("workload.phase", name),
		attribute.Int("workload.steps", len(keys)),
	))
	defer span.End()

	parts := wr.target.partition(keys)
	errs := make([]error, len(parts))

	wg := sync.WaitGroup{}
	wg.Add(len(parts))

	for idx, part := range parts {
		go func() {
			defer wg.Done()

			errs[idx] = wr.drive(ctx, part, verifyEvery, step)
		}()
	}

	wg.Wait()

	err := errors.Join(errs...)
	if err != nil {
		span.RecordError(err)
	}

	return err
}

// drive applies step to keys in order, verifying every verifyEvery steps
// counted across all goroutines.
func (wr *workloadRunner) drive(
	ctx context.Context,
	keys []int,
	verifyEvery int,
	step func(ctx context.Context, key int) error,
) error {
	for _, key := range keys {
		err := step(ctx, key)
		if err != nil {
			return err
		}

		if wr.countStep(verifyEvery) {
			err = wr.verify(ctx)
			if err != nil {
				return err
			}
		}
	}

	return nil
}

func (wr *workloadRunner) countStep(verifyEvery int) bool {
	wr.mu.Lock()
	defer wr.mu.Unlock()

	wr.steps++

	return verifyEvery > 0 && wr.steps%verifyEvery == 0
}

func (wr *workloadRunner) count(field *int) {
	wr.mu.Lock()
	*field++
	wr.mu.Unlock()
}

func (wr *workloadRunner) stepCount() int {
	wr.mu.Lock()
	defer wr.mu.Unlock()

	return wr.steps
}

func (wr *workloadRunner) insert(ctx context.Context, key int) error {
	_, span := wr.tracer.Start(ctx, observability.SpanStep, trace.WithAttributes(attribute.String("tree.op", observability.OpInsert)))
	defer span.End()

	started := time.Now()
	inserted, err := wr.target.Insert(key, valueFor(key))
	elapsed := time.Since(started)

	switch {
	case errors.Is(err, rbtree.ErrCapacityExceeded):
		wr.count(&wr.result.rejected)
		wr.metrics.RecordOp(ctx, observability.OpInsert, observability.OutcomeError, elapsed)

		wr.warnFull.Do(func() {
			wr.sess.logger.WarnContext(ctx, "node capacity reached, further inserts are rejected",
				"len", wr.target.Len(), "error", err)
		})

		return nil
	case err != nil:
		return fmt.Errorf("insert %d: %w", key, err)
	case inserted:
		wr.count(&wr.result.inserted)
		wr.metrics.RecordOp(ctx, observability.OpInsert, observability.OutcomeOK, elapsed)
	default:
		wr.count(&wr.result.duplicates)
		wr.metrics.RecordOp(ctx, observability.OpInsert, observability.OutcomeDuplicate, elapsed)
	}

	return nil
}

func (wr *workloadRunner) remove(ctx context.Context, key int) error {
	_, span := wr.tracer.Start(ctx, observability.SpanStep, trace.WithAttributes(attribute.String("tree.op", observability.OpRemove)))
	defer span.End()

	started := time.Now()
	removed := wr.target.Remove(key)
	elapsed := time.Since(started)

	if removed {
		wr.count(&wr.result.removed)
		wr.metrics.RecordOp(ctx, observability.OpRemove, observability.OutcomeOK, elapsed)
	} else {
		wr.count(&wr.result.missing)
		wr.metrics.RecordOp(ctx, observability.OpRemove, observability.OutcomeMissing, elapsed)
	}

	return nil
}

func (wr *workloadRunner) verify(ctx context.Context) error {
	ctx, span := wr.tracer.Start(ctx, observability.SpanVerify)
	defer span.End()

	started := time.Now()
	err := wr.target.Verify()
	wr.count(&wr.result.verifies)

	if err != nil {
		steps := wr.stepCount()

		wr.metrics.RecordOp(ctx, observability.OpVerify, observability.OutcomeError, time.Since(started))
		wr.metrics.RecordVerifyFailure(ctx)
		wr.sess.logger.ErrorContext(ctx, "invariant violated", "step", steps, slog.Any("error", err))
		span.SetStatus(codes.Error, err.Error())

		return fmt.Errorf("%w after %d steps: %w", ErrVerifyFailed, steps, err)
	}

	wr.metrics.RecordOp(ctx, observability.OpVerify, observability.OutcomeOK, time.Since(started))

	return nil
}
