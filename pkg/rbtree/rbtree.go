// Package rbtree provides an ordered map backed by a red-black tree whose
// nodes live in an arena allocator and are addressed by uint32 handles.
//
// A Map is not safe for concurrent use. Wrap it in Synced, or guard every
// call with a single lock, when it is shared between goroutines.
package rbtree

import (
	"cmp"
)

// Color is the color of a tree node.
type Color bool

const (
	// Red marks a node that does not count towards black-height.
	Red Color = false
	// Black marks a node that counts towards black-height. Null children are black.
	Black Color = true

	red   = Red
	black = Black
)

// String returns "red" or "black".
func (c Color) String() string {
	if c == Black {
		return "black"
	}

	return "red"
}

// Stats holds cumulative counters of the rebalancing work done by a Map.
type Stats struct {
	Inserts uint64
	Removes uint64

	// Rotations counts every single left or right rotation.
	Rotations uint64

	// Insert fix-up cases.
	InsertRedUncle   uint64
	InsertInnerChild uint64
	InsertOuterChild uint64

	// Delete fix-up cases.
	DeleteRedSibling    uint64
	DeleteBlackNephews  uint64
	DeleteNearNephewRed uint64
	DeleteFarNephewRed  uint64
}

// Sub returns the counter deltas between s and an earlier snapshot.
func (s Stats) Sub(earlier Stats) Stats {
	return Stats{
		Inserts:             s.Inserts - earlier.Inserts,
		Removes:             s.Removes - earlier.Removes,
		Rotations:           s.Rotations - earlier.Rotations,
		InsertRedUncle:      s.InsertRedUncle - earlier.InsertRedUncle,
		InsertInnerChild:    s.InsertInnerChild - earlier.InsertInnerChild,
		InsertOuterChild:    s.InsertOuterChild - earlier.InsertOuterChild,
		DeleteRedSibling:    s.DeleteRedSibling - earlier.DeleteRedSibling,
		DeleteBlackNephews:  s.DeleteBlackNephews - earlier.DeleteBlackNephews,
		DeleteNearNephewRed: s.DeleteNearNephewRed - earlier.DeleteNearNephewRed,
		DeleteFarNephewRed:  s.DeleteFarNephewRed - earlier.DeleteFarNephewRed,
	}
}

func (s Stats) add(other Stats) Stats {
	return Stats{
		Inserts:             s.Inserts + other.Inserts,
		Removes:             s.Removes + other.Removes,
		Rotations:           s.Rotations + other.Rotations,
		InsertRedUncle:      s.InsertRedUncle + other.InsertRedUncle,
		InsertInnerChild:    s.InsertInnerChild + other.InsertInnerChild,
		InsertOuterChild:    s.InsertOuterChild + other.InsertOuterChild,
		DeleteRedSibling:    s.DeleteRedSibling + other.DeleteRedSibling,
		DeleteBlackNephews:  s.DeleteBlackNephews + other.DeleteBlackNephews,
		DeleteNearNephewRed: s.DeleteNearNephewRed + other.DeleteNearNephewRed,
		DeleteFarNephewRed:  s.DeleteFarNephewRed + other.DeleteFarNephewRed,
	}
}

// Map is an ordered key/value map implemented as a red-black tree.
//
// Inserting a key that is already present keeps the stored value; use
// Replace to overwrite it.
type Map[K, V any] struct {
	// Nodes allocator.
	allocator *Allocator[K, V]

	// Three-way key comparator.
	compare func(a, b K) int

	// Root of the tree.
	root uint32

	// Number of nodes under root, including the root.
	count int

	stats Stats
}

// New creates an empty Map ordered by compare, which must return a negative
// number when a < b, zero when a and b are equivalent and a positive number
// when a > b.
func New[K, V any](compare func(a, b K) int, opts ...AllocatorOption) *Map[K, V] {
	return NewWithAllocator(NewAllocator[K, V](opts...), compare)
}

// NewOrdered creates an empty Map for naturally ordered keys.
func NewOrdered[K cmp.Ordered, V any](opts ...AllocatorOption) *Map[K, V] {
	return New[K, V](cmp.Compare[K], opts...)
}

// NewWithAllocator creates an empty Map whose nodes live in allocator.
// Several maps may share one allocator.
func NewWithAllocator[K, V any](allocator *Allocator[K, V], compare func(a, b K) int) *Map[K, V] {
	if compare == nil {
		panic("rbtree: nil comparator")
	}

	return &Map[K, V]{allocator: allocator, compare: compare}
}

func (tree *Map[K, V]) storage() []node[K, V] {
	return tree.allocator.storage
}

// Allocator returns the bound nodes allocator.
func (tree *Map[K, V]) Allocator() *Allocator[K, V] {
	return tree.allocator
}

// Len returns the number of elements in the map.
func (tree *Map[K, V]) Len() int {
	return tree.count
}

// Stats returns the cumulative rebalancing counters.
func (tree *Map[K, V]) Stats() Stats {
	return tree.stats
}

// Find returns the value stored under key and whether it was found.
func (tree *Map[K, V]) Find(key K) (V, bool) {
	nodeIdx, _, _ := tree.locate(key)
	if nodeIdx == 0 {
		var zero V

		return zero, false
	}

	return tree.storage()[nodeIdx].value, true
}

// Contains reports whether key is present.
func (tree *Map[K, V]) Contains(key K) bool {
	nodeIdx, _, _ := tree.locate(key)

	return nodeIdx != 0
}

// Insert adds key with value. If key is already present nothing changes and
// false is returned. ErrCapacityExceeded is returned, with the map left
// untouched, when the allocator cannot provide another node.
func (tree *Map[K, V]) Insert(key K, value V) (bool, error) {
	found, parent, slot := tree.locate(key)
	if found != 0 {
		return false, nil
	}

	nodeIdx, err := tree.allocator.malloc()
	if err != nil {
		return false, err
	}

	// malloc may have grown the arena, so the slice is fetched afterwards.
	alloc := tree.storage()
	alloc[nodeIdx].key = key
	alloc[nodeIdx].value = value
	alloc[nodeIdx].parent = parent
	alloc[nodeIdx].color = red

	switch {
	case parent == 0:
		tree.root = nodeIdx
	case slot == leftSlot:
		alloc[parent].left = nodeIdx
	default:
		alloc[parent].right = nodeIdx
	}

	tree.count++
	tree.stats.Inserts++
	tree.insertFixup(nodeIdx)

	return true, nil
}

// Replace overwrites the value stored under key. The node keeps its place and
// color. Returns false if key is absent.
func (tree *Map[K, V]) Replace(key K, value V) bool {
	nodeIdx, _, _ := tree.locate(key)
	if nodeIdx == 0 {
		return false
	}

	tree.storage()[nodeIdx].value = value

	return true
}

// Remove deletes key. Returns false, and does nothing, if key is absent.
func (tree *Map[K, V]) Remove(key K) bool {
	nodeIdx, _, _ := tree.locate(key)
	if nodeIdx == 0 {
		return false
	}

	tree.deleteNode(nodeIdx)

	return true
}

// Clear removes every node and hands it back to the allocator.
func (tree *Map[K, V]) Clear() {
	if tree.root == 0 {
		return
	}

	alloc := tree.storage()
	stack := []uint32{tree.root}

	for len(stack) > 0 {
		nodeIdx := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		if alloc[nodeIdx].left != 0 {
			stack = append(stack, alloc[nodeIdx].left)
		}

		if alloc[nodeIdx].right != 0 {
			stack = append(stack, alloc[nodeIdx].right)
		}

		tree.allocator.free(nodeIdx)
	}

	tree.root = 0
	tree.count = 0
}

// CloneDeep copies the map into a fresh allocator with the same capacity
// limit. Shape and colors are preserved; handles are compacted.
func (tree *Map[K, V]) CloneDeep() *Map[K, V] {
	allocator := NewAllocator[K, V](WithCapacityLimit(tree.allocator.capacityLimit))
	clone := NewWithAllocator(allocator, tree.compare)
	clone.stats = tree.stats

	if tree.root == 0 {
		return clone
	}

	type pending struct {
		origin, parent uint32
		slot           childSlot
	}

	origin := tree.storage()
	queue := []pending{{origin: tree.root}}

	for len(queue) > 0 {
		item := queue[0]
		queue = queue[1:]

		nodeIdx, err := allocator.malloc()
		// The source already holds this many nodes under the same limit.
		doAssert(err == nil)

		copied := &allocator.storage[nodeIdx]
		copied.key = origin[item.origin].key
		copied.value = origin[item.origin].value
		copied.color = origin[item.origin].color
		copied.parent = item.parent

		switch {
		case item.parent == 0:
			clone.root = nodeIdx
		case item.slot == leftSlot:
			allocator.storage[item.parent].left = nodeIdx
		default:
			allocator.storage[item.parent].right = nodeIdx
		}

		if left := origin[item.origin].left; left != 0 {
			queue = append(queue, pending{origin: left, parent: nodeIdx, slot: leftSlot})
		}

		if right := origin[item.origin].right; right != 0 {
			queue = append(queue, pending{origin: right, parent: nodeIdx, slot: rightSlot})
		}
	}

	clone.count = tree.count

	return clone
}

func doAssert(condition bool) {
	if !condition {
		panic("rbtree internal assertion failed")
	}
}

type childSlot uint8

const (
	leftSlot childSlot = iota
	rightSlot
)

type node[K, V any] struct {
	key                 K
	value               V
	parent, left, right uint32
	color               Color
	live                bool
}

// Internal node attribute accessors.
func getColor[K, V any](nodeIdx uint32, alloc []node[K, V]) Color {
	if nodeIdx == 0 {
		return black
	}

	return alloc[nodeIdx].color
}

func isLeftChild[K, V any](nodeIdx uint32, alloc []node[K, V]) bool {
	return nodeIdx == alloc[alloc[nodeIdx].parent].left
}

// locate walks from the root towards key. It returns the matching node, or 0
// together with the parent and the child slot a new node for key would take.
func (tree *Map[K, V]) locate(key K) (uint32, uint32, childSlot) {
	alloc := tree.storage()
	nodeIdx := tree.root
	parent := uint32(0)
	slot := leftSlot

	for nodeIdx != 0 {
		comp := tree.compare(key, alloc[nodeIdx].key)

		switch {
		case comp < 0:
			parent, slot = nodeIdx, leftSlot
			nodeIdx = alloc[nodeIdx].left
		case comp > 0:
			parent, slot = nodeIdx, rightSlot
			nodeIdx = alloc[nodeIdx].right
		default:
			return nodeIdx, alloc[nodeIdx].parent, slot
		}
	}

	return 0, parent, slot
}

// insertFixup repairs a red-red edge created by linking the red leaf nodeIdx.
func (tree *Map[K, V]) insertFixup(nodeIdx uint32) {
	alloc := tree.storage()

	for getColor(alloc[nodeIdx].parent, alloc) == red {
		parent := alloc[nodeIdx].parent
		// A red parent is never the root, so the grandparent exists.
		grandparent := alloc[parent].parent
		doAssert(grandparent != 0)

		parentIsLeft := alloc[grandparent].left == parent

		uncle := alloc[grandparent].left
		if parentIsLeft {
			uncle = alloc[grandparent].right
		}

		// Case 1: red uncle. Push the violation two levels up.
		if getColor(uncle, alloc) == red {
			alloc[parent].color = black
			alloc[uncle].color = black
			alloc[grandparent].color = red
			tree.stats.InsertRedUncle++
			nodeIdx = grandparent

			continue
		}

		// Case 2: inner grandchild. Rotate it into the outer position.
		if parentIsLeft != isLeftChild(nodeIdx, alloc) {
			if parentIsLeft {
				tree.rotateLeft(parent)
			} else {
				tree.rotateRight(parent)
			}

			tree.stats.InsertInnerChild++
			nodeIdx = parent
			parent = alloc[nodeIdx].parent
		}

		// Case 3: outer grandchild.
		alloc[parent].color = black
		alloc[grandparent].color = red
		tree.stats.InsertOuterChild++

		if parentIsLeft {
			tree.rotateRight(grandparent)
		} else {
			tree.rotateLeft(grandparent)
		}
	}

	alloc[tree.root].color = black
}

// deleteNode unlinks nodeIdx, rebalances and frees it. A node with two
// children is replaced by its in-order predecessor.
func (tree *Map[K, V]) deleteNode(nodeIdx uint32) {
	alloc := tree.storage()
	removedColor := alloc[nodeIdx].color

	var start, fixupParent uint32

	switch {
	case alloc[nodeIdx].left == 0:
		start = alloc[nodeIdx].right
		fixupParent = alloc[nodeIdx].parent
		tree.transplant(nodeIdx, start)
	case alloc[nodeIdx].right == 0:
		start = alloc[nodeIdx].left
		fixupParent = alloc[nodeIdx].parent
		tree.transplant(nodeIdx, start)
	default:
		start, fixupParent, removedColor = tree.spliceInPredecessor(nodeIdx)
	}

	if removedColor == black {
		tree.deleteFixup(start, fixupParent)
	}

	tree.allocator.free(nodeIdx)
	tree.count--
	tree.stats.Removes++
}

// spliceInPredecessor moves the maximum of target's left subtree into
// target's place. It returns the fix-up start node and parent, both relative
// to the predecessor's original position, and the predecessor's old color.
func (tree *Map[K, V]) spliceInPredecessor(target uint32) (uint32, uint32, Color) {
	alloc := tree.storage()
	pred := maxNode(alloc[target].left, alloc)
	removedColor := alloc[pred].color
	start := alloc[pred].left
	fixupParent := pred

	if pred != alloc[target].left {
		fixupParent = alloc[pred].parent
		tree.transplant(pred, start)
		alloc[pred].left = alloc[target].left
		alloc[alloc[pred].left].parent = pred
	}

	tree.transplant(target, pred)
	alloc[pred].right = alloc[target].right
	alloc[alloc[pred].right].parent = pred
	alloc[pred].color = alloc[target].color

	return start, fixupParent, removedColor
}

// transplant puts replacement where target hangs. Colors are untouched.
func (tree *Map[K, V]) transplant(target, replacement uint32) {
	alloc := tree.storage()
	parent := alloc[target].parent

	switch {
	case parent == 0:
		tree.root = replacement
	case alloc[parent].left == target:
		alloc[parent].left = replacement
	default:
		alloc[parent].right = replacement
	}

	if replacement != 0 {
		alloc[replacement].parent = parent
	}
}

// deleteFixup restores black-height after a black node left the path through
// nodeIdx. nodeIdx may be 0, so its parent is carried explicitly.
func (tree *Map[K, V]) deleteFixup(nodeIdx, parent uint32) {
	alloc := tree.storage()

	for nodeIdx != tree.root && getColor(nodeIdx, alloc) == black {
		doAssert(parent != 0)

		isLeft := alloc[parent].left == nodeIdx

		sibling := alloc[parent].left
		if isLeft {
			sibling = alloc[parent].right
		}

		// Case 1: red sibling. Rotate it above parent to get a black one.
		if getColor(sibling, alloc) == red {
			alloc[sibling].color = black
			alloc[parent].color = red
			tree.stats.DeleteRedSibling++

			if isLeft {
				tree.rotateLeft(parent)
				sibling = alloc[parent].right
			} else {
				tree.rotateRight(parent)
				sibling = alloc[parent].left
			}
		}

		// The sibling subtree carries at least the missing black.
		doAssert(sibling != 0)

		near, far := alloc[sibling].right, alloc[sibling].left
		if isLeft {
			near, far = alloc[sibling].left, alloc[sibling].right
		}

		// Case 2: both nephews black. Move the deficit up.
		if getColor(near, alloc) == black && getColor(far, alloc) == black {
			alloc[sibling].color = red
			tree.stats.DeleteBlackNephews++
			nodeIdx = parent
			parent = alloc[nodeIdx].parent

			continue
		}

		// Case 3: near nephew red, far nephew black.
		if getColor(far, alloc) == black {
			alloc[near].color = black
			alloc[sibling].color = red
			tree.stats.DeleteNearNephewRed++

			if isLeft {
				tree.rotateRight(sibling)
				sibling = alloc[parent].right
				far = alloc[sibling].right
			} else {
				tree.rotateLeft(sibling)
				sibling = alloc[parent].left
				far = alloc[sibling].left
			}
		}

		// Case 4: far nephew red. Terminal.
		alloc[sibling].color = alloc[parent].color
		alloc[parent].color = black
		alloc[far].color = black
		tree.stats.DeleteFarNephewRed++

		if isLeft {
			tree.rotateLeft(parent)
		} else {
			tree.rotateRight(parent)
		}

		nodeIdx = tree.root
		parent = 0
	}

	if nodeIdx != 0 {
		alloc[nodeIdx].color = black
	}
}

func minNode[K, V any](nodeIdx uint32, alloc []node[K, V]) uint32 {
	for alloc[nodeIdx].left != 0 {
		nodeIdx = alloc[nodeIdx].left
	}

	return nodeIdx
}

func maxNode[K, V any](nodeIdx uint32, alloc []node[K, V]) uint32 {
	for alloc[nodeIdx].right != 0 {
		nodeIdx = alloc[nodeIdx].right
	}

	return nodeIdx
}

// rotate performs a tree rotation around pivot. Left rotation promotes the
// right child, right rotation promotes the left child.
//
// Left rotation:
//
//	  X              Y
//	A   Y    =>    X   C
//	  B C        A B
//
// Right rotation:
//
//	    Y            X
//	  X   C  =>    A   Y
//	A B              B C
//
//nolint:dupword // ASCII art diagrams contain intentional repeated letters.
func (tree *Map[K, V]) rotate(pivot uint32, isLeft bool) {
	alloc := tree.storage()

	child := alloc[pivot].left
	if isLeft {
		child = alloc[pivot].right
	}

	if child == 0 {
		panic("rbtree: rotation around a node without the promoted child")
	}

	// Move the inner subtree.
	var inner uint32
	if isLeft {
		inner = alloc[child].left
		alloc[pivot].right = inner
	} else {
		inner = alloc[child].right
		alloc[pivot].left = inner
	}

	if inner != 0 {
		alloc[inner].parent = pivot
	}

	// Hang child where pivot was.
	parent := alloc[pivot].parent
	alloc[child].parent = parent

	switch {
	case parent == 0:
		tree.root = child
	case alloc[parent].left == pivot:
		alloc[parent].left = child
	default:
		alloc[parent].right = child
	}

	if isLeft {
		alloc[child].left = pivot
	} else {
		alloc[child].right = pivot
	}

	alloc[pivot].parent = child
	tree.stats.Rotations++
}

func (tree *Map[K, V]) rotateLeft(nodeIdx uint32) {
	tree.rotate(nodeIdx, true)
}

func (tree *Map[K, V]) rotateRight(nodeIdx uint32) {
	tree.rotate(nodeIdx, false)
}
