package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Sumatoshi-tech/ordmap/pkg/observability"
	"github.com/Sumatoshi-tech/ordmap/pkg/rbtree"
)

// NewCheckCommand creates the command that verifies every step of an
// insert-all then remove-all sequence.
func NewCheckCommand(opts *rootOptions) *cobra.Command {
	var shuffled bool

	cmd := &cobra.Command{
		Use:   "check [keys...]",
		Short: "Insert then remove keys, verifying the tree after every step",
		Long: `Insert the given keys (or the configured workload keys) one at a time and
remove them all again, running the full invariant check after each step.
Removal follows insertion order unless --shuffle is set.`,
		RunE: func(cmd *cobra.Command, args []string) (err error) {
			ctx := cmd.Context()

			sess, err := newSession(ctx, cmd, opts, observability.ModeCLI)
			if err != nil {
				return err
			}

			defer func() { err = sess.close(ctx, err) }()

			keys, err := parseKeys(args)
			if err != nil {
				return err
			}

			if len(keys) == 0 {
				keys = workloadKeys(sess.cfg.Workload)
			}

			tree, err := sess.newMap()
			if err != nil {
				return err
			}

			removal := append([]int(nil), keys...)
			if shuffled {
				shuffle(removal, newRand(sess.cfg.Workload.Seed))
			}

			checker := &stepChecker{sess: sess, tree: tree, verbose: opts.verbose}

			err = checker.insertAll(keys)
			if err != nil {
				return err
			}

			return checker.removeAll(removal)
		},
	}

	cmd.Flags().BoolVar(&shuffled, "shuffle", false, "Remove keys in shuffled order (seeded by workload.seed)")

	return cmd
}

// stepChecker applies mutations one by one and verifies after each.
type stepChecker struct {
	sess    *session
	tree    *rbtree.Map[int, string]
	verbose bool
}

func (sc *stepChecker) insertAll(keys []int) error {
	for _, key := range keys {
		_, err := sc.tree.Insert(key, valueFor(key))
		if err != nil {
			return fmt.Errorf("insert %d: %w", key, err)
		}

		err = sc.step("insert %d", key)
		if err != nil {
			return err
		}
	}

	sc.sess.printf("%s\n", verdict(nil, "insert %d keys (len %d, height %d, black-height %d)",
		len(keys), sc.tree.Len(), sc.tree.Height(), sc.tree.BlackHeight()))

	return nil
}

func (sc *stepChecker) removeAll(keys []int) error {
	for _, key := range keys {
		sc.tree.Remove(key)

		err := sc.step("remove %d", key)
		if err != nil {
			return err
		}
	}

	if sc.tree.Len() != 0 {
		err := fmt.Errorf("%w: %d entries left", rbtree.ErrSizeMismatch, sc.tree.Len())
		sc.sess.printf("%s\n", verdict(err, "remove %d keys", len(keys)))

		return fmt.Errorf("%w: %w", ErrVerifyFailed, err)
	}

	sc.sess.printf("%s\n", verdict(nil, "remove %d keys", len(keys)))

	return nil
}

func (sc *stepChecker) step(format string, key int) error {
	err := sc.tree.Verify()
	if err != nil {
		sc.sess.printf("%s\n", verdict(err, format, key))

		return fmt.Errorf("%w: %w", ErrVerifyFailed, err)
	}

	if sc.verbose {
		sc.sess.printf("%s\n", verdict(nil, format, key))
	}

	return nil
}
