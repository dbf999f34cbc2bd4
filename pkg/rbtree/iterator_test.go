package rbtree_test

import (
	"slices"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sumatoshi-tech/ordmap/pkg/rbtree"
)

func newStringMap(t *testing.T, keys ...int) *rbtree.Map[int, string] {
	t.Helper()

	tree := rbtree.NewOrdered[int, string]()

	for _, key := range keys {
		_, err := tree.Insert(key, strconv.Itoa(key))
		require.NoError(t, err)
	}

	return tree
}

func TestAllAndBackward(t *testing.T) {
	t.Parallel()

	tree := newStringMap(t, 0, 2, 4, 6, 8)

	var forward []string
	for key, value := range tree.All() {
		assert.Equal(t, strconv.Itoa(key), value)
		forward = append(forward, value)
	}

	assert.Equal(t, []string{"0", "2", "4", "6", "8"}, forward)

	var backward []string
	for _, value := range tree.Backward() {
		backward = append(backward, value)
	}

	assert.Equal(t, []string{"8", "6", "4", "2", "0"}, backward)
	assert.Equal(t, []string{"0", "2", "4", "6", "8"}, slices.Collect(tree.Values()))
}

func TestIterationIsRestartable(t *testing.T) {
	t.Parallel()

	tree := newStringMap(t, 3, 1, 2)
	keys := tree.Keys()

	assert.Equal(t, []int{1, 2, 3}, slices.Collect(keys))
	assert.Equal(t, []int{1, 2, 3}, slices.Collect(keys))
}

func TestIterationStopsEarly(t *testing.T) {
	t.Parallel()

	tree := newStringMap(t, 1, 2, 3, 4, 5)

	var seen []int

	for key := range tree.Keys() {
		if key == 3 {
			break
		}

		seen = append(seen, key)
	}

	assert.Equal(t, []int{1, 2}, seen)
}

func TestAscend(t *testing.T) {
	t.Parallel()

	tree := newStringMap(t, 0, 2, 4, 6, 8)

	ascend := func(from int) []int {
		keys := []int{}
		for key := range tree.Ascend(from) {
			keys = append(keys, key)
		}

		return keys
	}

	assert.Equal(t, []int{4, 6, 8}, ascend(3))
	assert.Equal(t, []int{4, 6, 8}, ascend(4))
	assert.Equal(t, []int{8}, ascend(8))
	assert.Empty(t, ascend(9))
	assert.Equal(t, []int{0, 2, 4, 6, 8}, ascend(-1))
}

func TestMinMax(t *testing.T) {
	t.Parallel()

	empty := rbtree.NewOrdered[int, string]()
	_, _, found := empty.Min()
	assert.False(t, found)
	_, _, found = empty.Max()
	assert.False(t, found)

	tree := newStringMap(t, 5, 10, 15)

	key, value, found := tree.Min()
	assert.True(t, found)
	assert.Equal(t, 5, key)
	assert.Equal(t, "5", value)

	key, value, found = tree.Max()
	assert.True(t, found)
	assert.Equal(t, 15, key)
	assert.Equal(t, "15", value)
}

func TestNodesBreadthFirst(t *testing.T) {
	t.Parallel()

	tree := newStringMap(t, 10, 5, 15, 3)
	nodes := slices.Collect(tree.Nodes())
	require.Len(t, nodes, 4)

	root := nodes[0]
	assert.Equal(t, 10, root.Key)
	assert.Equal(t, rbtree.Black, root.Color)
	assert.False(t, root.HasParent)
	assert.True(t, root.HasLeft)
	assert.True(t, root.HasRight)
	assert.Equal(t, 5, root.Left)
	assert.Equal(t, 15, root.Right)
	assert.Equal(t, 0, root.Depth)

	leaf := nodes[3]
	assert.Equal(t, 3, leaf.Key)
	assert.Equal(t, "3", leaf.Value)
	assert.Equal(t, rbtree.Red, leaf.Color)
	assert.Equal(t, 10, nodes[1].Parent)
	assert.Equal(t, 5, leaf.Parent)
	assert.False(t, leaf.HasLeft)
	assert.False(t, leaf.HasRight)
	assert.Equal(t, 2, leaf.Depth)

	assert.Equal(t, 3, tree.Height())
	assert.Equal(t, 2, tree.BlackHeight())
	assert.Empty(t, slices.Collect(rbtree.NewOrdered[int, string]().Nodes()))
}

func TestColorString(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "red", rbtree.Red.String())
	assert.Equal(t, "black", rbtree.Black.String())
}
