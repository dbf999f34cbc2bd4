package commands

import (
	"fmt"
	"strconv"

	"github.com/dustin/go-humanize"
	"github.com/fatih/color"
	"github.com/jedib0t/go-pretty/v6/table"

	"github.com/Sumatoshi-tech/ordmap/pkg/rbtree"
)

var (
	redNode   = color.New(color.FgRed, color.Bold)
	blackNode = color.New(color.FgHiBlack, color.Bold)
	passText  = color.New(color.FgGreen)
	failText  = color.New(color.FgRed)
)

// colorName renders a node color in its own color.
func colorName(c rbtree.Color) string {
	if c == rbtree.Red {
		return redNode.Sprint(c.String())
	}

	return blackNode.Sprint(c.String())
}

func optionalKey(key int, present bool) string {
	if !present {
		return "-"
	}

	return strconv.Itoa(key)
}

// renderNodes lists the nodes breadth-first, one row per node.
func renderNodes(tree *rbtree.Map[int, string]) string {
	tbl := table.NewWriter()
	tbl.SetStyle(table.StyleLight)
	tbl.AppendHeader(table.Row{"Depth", "Key", "Value", "Color", "Parent", "Left", "Right"})

	for info := range tree.Nodes() {
		tbl.AppendRow(table.Row{
			info.Depth,
			info.Key,
			info.Value,
			colorName(info.Color),
			optionalKey(info.Parent, info.HasParent),
			optionalKey(info.Left, info.HasLeft),
			optionalKey(info.Right, info.HasRight),
		})
	}

	tbl.AppendFooter(table.Row{
		"",
		humanize.Comma(int64(tree.Len())) + " entries",
		"",
		fmt.Sprintf("black-height %d", tree.BlackHeight()),
		"",
		"",
		fmt.Sprintf("height %d", tree.Height()),
	})

	return tbl.Render()
}

// statRow is one line of a two-column summary table.
type statRow struct {
	name  string
	value string
}

func renderStats(title string, rows []statRow) string {
	tbl := table.NewWriter()
	tbl.SetStyle(table.StyleLight)
	tbl.SetTitle(title)
	tbl.AppendHeader(table.Row{"Metric", "Value"})

	for _, row := range rows {
		tbl.AppendRow(table.Row{row.name, row.value})
	}

	return tbl.Render()
}

// shapeRows describes the current shape of a map.
func shapeRows(tree *rbtree.Map[int, string]) []statRow {
	rows := []statRow{
		{"entries", humanize.Comma(int64(tree.Len()))},
		{"height", strconv.Itoa(tree.Height())},
		{"black-height", strconv.Itoa(tree.BlackHeight())},
	}

	if minKey, _, ok := tree.Min(); ok {
		maxKey, _, _ := tree.Max()
		rows = append(rows, statRow{"key range", fmt.Sprintf("%d .. %d", minKey, maxKey)})
	}

	alloc := tree.Allocator()
	rows = append(rows,
		statRow{"arena slots", humanize.Comma(int64(alloc.Size()))},
		statRow{"free slots", humanize.Comma(int64(alloc.Free()))},
	)

	return rows
}

// rebalanceRows describes the rebalancing work recorded in stats.
func rebalanceRows(stats rbtree.Stats) []statRow {
	count := func(n uint64) string { return humanize.Comma(int64(n)) } //nolint:gosec // counters stay far below MaxInt64

	return []statRow{
		{"inserts", count(stats.Inserts)},
		{"removes", count(stats.Removes)},
		{"rotations", count(stats.Rotations)},
		{"insert: red uncle", count(stats.InsertRedUncle)},
		{"insert: inner grandchild", count(stats.InsertInnerChild)},
		{"insert: outer grandchild", count(stats.InsertOuterChild)},
		{"remove: red sibling", count(stats.DeleteRedSibling)},
		{"remove: black nephews", count(stats.DeleteBlackNephews)},
		{"remove: near nephew red", count(stats.DeleteNearNephewRed)},
		{"remove: far nephew red", count(stats.DeleteFarNephewRed)},
	}
}

// verdict renders a colored PASS or FAIL line.
func verdict(err error, format string, args ...any) string {
	subject := fmt.Sprintf(format, args...)
	if err != nil {
		return failText.Sprintf("FAIL %s: %v", subject, err)
	}

	return passText.Sprintf("PASS %s", subject)
}
