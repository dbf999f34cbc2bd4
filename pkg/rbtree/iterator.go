package rbtree

import (
	"iter"
)

// Iteration follows the same invalidation rule as C++ std::map<>: mutating
// the map while a sequence is being consumed is not supported. Every
// sequence restarts from scratch when ranged over again.

// NodeInfo describes one node as seen by the breadth-first Nodes walk.
type NodeInfo[K, V any] struct {
	Key   K
	Value V
	Color Color
	Depth int

	Parent, Left, Right          K
	HasParent, HasLeft, HasRight bool
}

// All returns the entries in ascending key order.
func (tree *Map[K, V]) All() iter.Seq2[K, V] {
	return func(yield func(K, V) bool) {
		if tree.root == 0 {
			return
		}

		alloc := tree.storage()

		for nodeIdx := minNode(tree.root, alloc); nodeIdx != 0; nodeIdx = doNext(nodeIdx, alloc) {
			if !yield(alloc[nodeIdx].key, alloc[nodeIdx].value) {
				return
			}
		}
	}
}

// Backward returns the entries in descending key order.
func (tree *Map[K, V]) Backward() iter.Seq2[K, V] {
	return func(yield func(K, V) bool) {
		if tree.root == 0 {
			return
		}

		alloc := tree.storage()

		for nodeIdx := maxNode(tree.root, alloc); nodeIdx != 0; nodeIdx = doPrev(nodeIdx, alloc) {
			if !yield(alloc[nodeIdx].key, alloc[nodeIdx].value) {
				return
			}
		}
	}
}

// Ascend returns the entries whose key is >= from, in ascending order.
func (tree *Map[K, V]) Ascend(from K) iter.Seq2[K, V] {
	return func(yield func(K, V) bool) {
		alloc := tree.storage()

		for nodeIdx := tree.findGE(from); nodeIdx != 0; nodeIdx = doNext(nodeIdx, alloc) {
			if !yield(alloc[nodeIdx].key, alloc[nodeIdx].value) {
				return
			}
		}
	}
}

// Keys returns the keys in ascending order.
func (tree *Map[K, V]) Keys() iter.Seq[K] {
	return func(yield func(K) bool) {
		for key := range tree.All() {
			if !yield(key) {
				return
			}
		}
	}
}

// Values returns the values in ascending key order.
func (tree *Map[K, V]) Values() iter.Seq[V] {
	return func(yield func(V) bool) {
		for _, value := range tree.All() {
			if !yield(value) {
				return
			}
		}
	}
}

// Min returns the smallest entry. ok is false on an empty map.
func (tree *Map[K, V]) Min() (key K, value V, ok bool) {
	if tree.root == 0 {
		return key, value, false
	}

	alloc := tree.storage()
	nodeIdx := minNode(tree.root, alloc)

	return alloc[nodeIdx].key, alloc[nodeIdx].value, true
}

// Max returns the largest entry. ok is false on an empty map.
func (tree *Map[K, V]) Max() (key K, value V, ok bool) {
	if tree.root == 0 {
		return key, value, false
	}

	alloc := tree.storage()
	nodeIdx := maxNode(tree.root, alloc)

	return alloc[nodeIdx].key, alloc[nodeIdx].value, true
}

// Nodes walks the tree breadth-first, level by level, left to right.
func (tree *Map[K, V]) Nodes() iter.Seq[NodeInfo[K, V]] {
	return func(yield func(NodeInfo[K, V]) bool) {
		if tree.root == 0 {
			return
		}

		type queued struct {
			nodeIdx uint32
			depth   int
		}

		alloc := tree.storage()
		queue := []queued{{nodeIdx: tree.root}}

		for len(queue) > 0 {
			item := queue[0]
			queue = queue[1:]

			nd := &alloc[item.nodeIdx]
			info := NodeInfo[K, V]{
				Key:   nd.key,
				Value: nd.value,
				Color: nd.color,
				Depth: item.depth,
			}

			if nd.parent != 0 {
				info.Parent, info.HasParent = alloc[nd.parent].key, true
			}

			if nd.left != 0 {
				info.Left, info.HasLeft = alloc[nd.left].key, true
				queue = append(queue, queued{nodeIdx: nd.left, depth: item.depth + 1})
			}

			if nd.right != 0 {
				info.Right, info.HasRight = alloc[nd.right].key, true
				queue = append(queue, queued{nodeIdx: nd.right, depth: item.depth + 1})
			}

			if !yield(info) {
				return
			}
		}
	}
}

// Height returns the number of nodes on the longest root-to-leaf path.
func (tree *Map[K, V]) Height() int {
	height := 0

	for info := range tree.Nodes() {
		height = max(height, info.Depth+1)
	}

	return height
}

// BlackHeight returns the number of black nodes on the path from the root to
// its leftmost null leaf, the root included. It is 0 for an empty map.
func (tree *Map[K, V]) BlackHeight() int {
	alloc := tree.storage()
	height := 0

	for nodeIdx := tree.root; nodeIdx != 0; nodeIdx = alloc[nodeIdx].left {
		if alloc[nodeIdx].color == black {
			height++
		}
	}

	return height
}

// findGE returns the smallest node whose key is >= key, or 0.
func (tree *Map[K, V]) findGE(key K) uint32 {
	alloc := tree.storage()
	nodeIdx := tree.root
	candidate := uint32(0)

	for nodeIdx != 0 {
		comp := tree.compare(key, alloc[nodeIdx].key)

		switch {
		case comp == 0:
			return nodeIdx
		case comp < 0:
			candidate = nodeIdx
			nodeIdx = alloc[nodeIdx].left
		default:
			nodeIdx = alloc[nodeIdx].right
		}
	}

	return candidate
}

// Return the minimum node that's larger than N. Return 0 if no such
// node is found.
func doNext[K, V any](nodeIdx uint32, alloc []node[K, V]) uint32 {
	if alloc[nodeIdx].right != 0 {
		return minNode(alloc[nodeIdx].right, alloc)
	}

	for {
		parentIdx := alloc[nodeIdx].parent
		if parentIdx == 0 {
			return 0
		}

		if isLeftChild(nodeIdx, alloc) {
			return parentIdx
		}

		nodeIdx = parentIdx
	}
}

// Return the maximum node that's smaller than N. Return 0 if no
// such node is found.
func doPrev[K, V any](nodeIdx uint32, alloc []node[K, V]) uint32 {
	if alloc[nodeIdx].left != 0 {
		return maxNode(alloc[nodeIdx].left, alloc)
	}

	for {
		parentIdx := alloc[nodeIdx].parent
		if parentIdx == 0 {
			return 0
		}

		if !isLeftChild(nodeIdx, alloc) {
			return parentIdx
		}

		nodeIdx = parentIdx
	}
}
