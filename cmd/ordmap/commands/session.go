package commands

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/Sumatoshi-tech/ordmap/pkg/config"
	"github.com/Sumatoshi-tech/ordmap/pkg/observability"
	"github.com/Sumatoshi-tech/ordmap/pkg/rbtree"
	"github.com/Sumatoshi-tech/ordmap/pkg/version"
)

// session bundles what every command needs: settings, telemetry and output.
type session struct {
	cfg       *config.Config
	providers observability.Providers
	logger    *slog.Logger
	out       io.Writer
	quiet     bool
}

func newSession(ctx context.Context, cmd *cobra.Command, opts *rootOptions, mode observability.AppMode) (*session, error) {
	cfg, err := config.LoadConfig(opts.configPath)
	if err != nil {
		return nil, err
	}

	level, err := cfg.Logging.SlogLevel()
	if err != nil {
		return nil, err
	}

	switch {
	case opts.quiet:
		level = slog.LevelError
	case opts.verbose:
		level = slog.LevelDebug
	}

	obsCfg := observability.DefaultConfig()
	obsCfg.ServiceVersion = version.Version
	obsCfg.Mode = mode
	obsCfg.LogLevel = level
	obsCfg.LogJSON = cfg.Logging.JSON
	obsCfg.LogOutput = cmd.ErrOrStderr()
	obsCfg.OTLPEndpoint = cfg.Metrics.OTLPEndpoint
	obsCfg.OTLPHeaders = observability.ParseOTLPHeaders(cfg.Metrics.OTLPHeaders)
	obsCfg.OTLPInsecure = cfg.Metrics.OTLPInsecure
	obsCfg.SampleRatio = cfg.Metrics.SampleRatio
	obsCfg.TraceVerbose = cfg.Metrics.TraceVerbose

	providers, err := observability.Init(ctx, obsCfg)
	if err != nil {
		return nil, fmt.Errorf("init observability: %w", err)
	}

	return &session{
		cfg:       cfg,
		providers: providers,
		logger:    providers.Logger.With(slog.String("command", cmd.Name())),
		out:       cmd.OutOrStdout(),
		quiet:     opts.quiet,
	}, nil
}

// close flushes telemetry. The first error wins over the shutdown error.
func (s *session) close(ctx context.Context, err error) error {
	shutdownErr := s.providers.Shutdown(ctx)
	if err != nil {
		return err
	}

	if shutdownErr != nil {
		return fmt.Errorf("shutdown observability: %w", shutdownErr)
	}

	return nil
}

// newMap builds an empty map bounded by the tree settings.
func (s *session) newMap() (*rbtree.Map[int, string], error) {
	limit, err := s.cfg.Tree.CapacityLimit()
	if err != nil {
		return nil, err
	}

	return rbtree.NewOrdered[int, string](rbtree.WithCapacityLimit(limit)), nil
}

// printf writes to the command output unless --quiet is set.
func (s *session) printf(format string, args ...any) {
	if s.quiet {
		return
	}

	fmt.Fprintf(s.out, format, args...)
}
