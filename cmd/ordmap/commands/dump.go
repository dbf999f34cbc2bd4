package commands

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Sumatoshi-tech/ordmap/pkg/observability"
	"github.com/Sumatoshi-tech/ordmap/pkg/persist"
	"github.com/Sumatoshi-tech/ordmap/pkg/rbtree"
)

// ErrUnknownFormat is returned for an unsupported --format value.
var ErrUnknownFormat = errors.New("unknown output format")

const formatTable = "table"

// dumpNode is the serialized form of one node in json or yaml dumps.
type dumpNode struct {
	Depth  int    `json:"depth"            yaml:"depth"`
	Key    int    `json:"key"              yaml:"key"`
	Value  string `json:"value"            yaml:"value"`
	Color  string `json:"color"            yaml:"color"`
	Parent *int   `json:"parent,omitempty" yaml:"parent,omitempty"`
	Left   *int   `json:"left,omitempty"   yaml:"left,omitempty"`
	Right  *int   `json:"right,omitempty"  yaml:"right,omitempty"`
}

// NewDumpCommand creates the command printing a map's node layout.
func NewDumpCommand(opts *rootOptions) *cobra.Command {
	var (
		remove []int
		format string
	)

	cmd := &cobra.Command{
		Use:   "dump [keys...]",
		Short: "Print the breadth-first node layout of a map",
		Long: `Insert the given keys (or the configured workload keys), optionally remove
some of them, and print every node level by level with its color and links.`,
		RunE: func(cmd *cobra.Command, args []string) (err error) {
			ctx := cmd.Context()

			sess, err := newSession(ctx, cmd, opts, observability.ModeCLI)
			if err != nil {
				return err
			}

			defer func() { err = sess.close(ctx, err) }()

			tree, err := buildMap(sess, args)
			if err != nil {
				return err
			}

			for _, key := range remove {
				if !tree.Remove(key) {
					sess.logger.WarnContext(ctx, "key to remove is absent", "key", key)
				}
			}

			return writeDump(sess, tree, format)
		},
	}

	cmd.Flags().IntSliceVarP(&remove, "remove", "r", nil, "Keys to remove after inserting")
	cmd.Flags().StringVarP(&format, "format", "f", formatTable, "Output format: table, json, yaml")

	return cmd
}

// buildMap inserts the keys given as arguments, or the workload keys when
// there are none.
func buildMap(sess *session, args []string) (*rbtree.Map[int, string], error) {
	keys, err := parseKeys(args)
	if err != nil {
		return nil, err
	}

	if len(keys) == 0 {
		keys = workloadKeys(sess.cfg.Workload)
	}

	tree, err := sess.newMap()
	if err != nil {
		return nil, err
	}

	for _, key := range keys {
		_, err = tree.Insert(key, valueFor(key))
		if err != nil {
			return nil, fmt.Errorf("insert %d: %w", key, err)
		}
	}

	return tree, nil
}

func writeDump(sess *session, tree *rbtree.Map[int, string], format string) error {
	if format == formatTable {
		sess.printf("%s\n", renderNodes(tree))

		return nil
	}

	codec, err := persist.CodecByName(format, persist.CompressionNone)
	if err != nil || format == persist.CodecGob {
		return fmt.Errorf("%w: %q", ErrUnknownFormat, format)
	}

	nodes := make([]dumpNode, 0, tree.Len())

	for info := range tree.Nodes() {
		node := dumpNode{
			Depth: info.Depth,
			Key:   info.Key,
			Value: info.Value,
			Color: info.Color.String(),
		}

		if info.HasParent {
			node.Parent = &info.Parent
		}

		if info.HasLeft {
			node.Left = &info.Left
		}

		if info.HasRight {
			node.Right = &info.Right
		}

		nodes = append(nodes, node)
	}

	if sess.quiet {
		return nil
	}

	err = codec.Encode(sess.out, nodes)
	if err != nil {
		return fmt.Errorf("write dump: %w", err)
	}

	return nil
}
