package commands

import (
	"fmt"
	"os"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/Sumatoshi-tech/ordmap/pkg/config"
	"github.com/Sumatoshi-tech/ordmap/pkg/observability"
	"github.com/Sumatoshi-tech/ordmap/pkg/persist"
	"github.com/Sumatoshi-tech/ordmap/pkg/rbtree"
)

// mapSnapshot is the persisted state of the CLI's map.
type mapSnapshot = rbtree.Snapshot[int, string]

// snapshotFlags override the snapshot section of the configuration.
type snapshotFlags struct {
	dir         string
	name        string
	codec       string
	compression string
}

func (sf *snapshotFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&sf.dir, "dir", "d", "", "Snapshot directory (empty = config)")
	cmd.Flags().StringVar(&sf.name, "name", "", "Snapshot file base name (empty = config)")
	cmd.Flags().StringVar(&sf.codec, "codec", "", "Snapshot codec: json, gob, yaml (empty = config)")
	cmd.Flags().StringVar(&sf.compression, "compression", "", "Snapshot compression: none, lz4, zstd (empty = config)")
}

// persister resolves the flags against the configuration.
func (sf *snapshotFlags) persister(cfg *config.SnapshotConfig) (*persist.Persister[mapSnapshot], error) {
	if sf.dir != "" {
		cfg.Directory = sf.dir
	}

	if sf.name != "" {
		cfg.Name = sf.name
	}

	if sf.codec != "" {
		cfg.Codec = sf.codec
	}

	if sf.compression != "" {
		cfg.Compression = sf.compression
	}

	codec, err := cfg.NewCodec()
	if err != nil {
		return nil, err
	}

	return persist.NewPersister[mapSnapshot](cfg.Name, codec), nil
}

func snapshotSpan(sess *session, cmd *cobra.Command, cfg config.SnapshotConfig, op string) (trace.Span, func(error)) {
	_, span := sess.providers.Tracer.Start(cmd.Context(), observability.SpanSnapshot, trace.WithAttributes(
		attribute.String("snapshot.op", op),
		attribute.String("snapshot.codec", cfg.Codec),
		attribute.String("snapshot.compression", cfg.Compression),
	))

	return span, func(err error) {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}

		span.End()
	}
}

// NewSnapshotCommand creates the command that saves a map to disk.
func NewSnapshotCommand(opts *rootOptions) *cobra.Command {
	flags := &snapshotFlags{}

	cmd := &cobra.Command{
		Use:   "snapshot [keys...]",
		Short: "Save a map to disk through the configured codec",
		Long: `Insert the given keys (or the configured workload keys) and write the map's
ordered entries to <dir>/<name><ext>, where the extension follows the codec.`,
		RunE: func(cmd *cobra.Command, args []string) (err error) {
			ctx := cmd.Context()

			sess, err := newSession(ctx, cmd, opts, observability.ModeCLI)
			if err != nil {
				return err
			}

			defer func() { err = sess.close(ctx, err) }()

			persister, err := flags.persister(&sess.cfg.Snapshot)
			if err != nil {
				return err
			}

			tree, err := buildMap(sess, args)
			if err != nil {
				return err
			}

			span, end := snapshotSpan(sess, cmd, sess.cfg.Snapshot, "save")
			span.SetAttributes(attribute.Int("tree.len", tree.Len()))

			state := tree.Snapshot()
			err = persister.Save(sess.cfg.Snapshot.Directory, &state)

			end(err)

			if err != nil {
				return fmt.Errorf("save snapshot: %w", err)
			}

			path := persister.Path(sess.cfg.Snapshot.Directory)

			info, err := os.Stat(path)
			if err != nil {
				return fmt.Errorf("stat snapshot: %w", err)
			}

			sess.logger.InfoContext(ctx, "snapshot saved", "path", path, "entries", tree.Len())
			sess.printf("saved %s entries to %s (%s)\n",
				humanize.Comma(int64(tree.Len())), path, humanize.Bytes(uint64(info.Size()))) //nolint:gosec // file sizes are non-negative

			return nil
		},
	}

	flags.register(cmd)

	return cmd
}

// NewRestoreCommand creates the command that rebuilds a map from disk.
func NewRestoreCommand(opts *rootOptions) *cobra.Command {
	var (
		flags = &snapshotFlags{}
		dump  bool
	)

	cmd := &cobra.Command{
		Use:   "restore",
		Short: "Load a snapshot, rebuild the map and verify it",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) (err error) {
			ctx := cmd.Context()

			sess, err := newSession(ctx, cmd, opts, observability.ModeCLI)
			if err != nil {
				return err
			}

			defer func() { err = sess.close(ctx, err) }()

			persister, err := flags.persister(&sess.cfg.Snapshot)
			if err != nil {
				return err
			}

			tree, err := sess.newMap()
			if err != nil {
				return err
			}

			_, end := snapshotSpan(sess, cmd, sess.cfg.Snapshot, "load")

			state, err := persister.Load(sess.cfg.Snapshot.Directory)
			if err == nil {
				err = tree.Restore(*state)
			}

			end(err)

			if err != nil {
				return fmt.Errorf("restore snapshot: %w", err)
			}

			err = tree.Verify()
			sess.printf("%s\n", verdict(err, "restore %s", persister.Path(sess.cfg.Snapshot.Directory)))

			if err != nil {
				return fmt.Errorf("%w: %w", ErrVerifyFailed, err)
			}

			if dump {
				sess.printf("%s\n", renderNodes(tree))
			} else {
				sess.printf("%s\n", renderStats("Restored map", shapeRows(tree)))
			}

			return nil
		},
	}

	flags.register(cmd)
	cmd.Flags().BoolVar(&dump, "dump", false, "Print the node layout instead of the summary")

	return cmd
}
