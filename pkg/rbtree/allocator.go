package rbtree

import (
	"errors"
	"fmt"
	"math"
)

// ErrCapacityExceeded is returned when the allocator cannot hand out another node.
var ErrCapacityExceeded = errors.New("rbtree: node capacity exceeded")

// maxHandle is the largest node handle the arena can address.
// [math.MaxUint32] stays reserved so handle arithmetic never wraps.
const maxHandle = math.MaxUint32 - 1

// AllocatorOption configures an Allocator.
type AllocatorOption func(*allocatorOptions)

type allocatorOptions struct {
	capacityLimit int
}

// WithCapacityLimit caps the number of live nodes the allocator may hold.
// Zero or negative means "limited only by the handle width".
func WithCapacityLimit(limit int) AllocatorOption {
	return func(opts *allocatorOptions) {
		opts.capacityLimit = limit
	}
}

// Allocator is the node arena behind a Map. Nodes are addressed by uint32
// handles; handle 0 is the null sentinel and is never handed out.
type Allocator[K, V any] struct {
	storage       []node[K, V]
	gaps          []uint32
	capacityLimit int
}

// NewAllocator creates a new allocator for Map nodes.
func NewAllocator[K, V any](opts ...AllocatorOption) *Allocator[K, V] {
	options := allocatorOptions{}

	for _, opt := range opts {
		opt(&options)
	}

	return &Allocator[K, V]{
		storage:       []node[K, V]{},
		gaps:          []uint32{},
		capacityLimit: options.capacityLimit,
	}
}

// Size returns the number of allocated slots, including the sentinel and gaps.
func (allocator *Allocator[K, V]) Size() int {
	return len(allocator.storage)
}

// Used returns the number of occupied slots, including the sentinel.
func (allocator *Allocator[K, V]) Used() int {
	return len(allocator.storage) - len(allocator.gaps)
}

// Free returns the number of released slots waiting for reuse.
func (allocator *Allocator[K, V]) Free() int {
	return len(allocator.gaps)
}

// Live returns the number of nodes currently in use by trees.
func (allocator *Allocator[K, V]) Live() int {
	if len(allocator.storage) == 0 {
		return 0
	}

	return allocator.Used() - 1
}

// CapacityLimit returns the configured live node limit, 0 if unlimited.
func (allocator *Allocator[K, V]) CapacityLimit() int {
	return allocator.capacityLimit
}

// Clone copies the allocator slot by slot. Handles stay valid in the copy.
func (allocator *Allocator[K, V]) Clone() *Allocator[K, V] {
	clone := &Allocator[K, V]{
		storage:       make([]node[K, V], len(allocator.storage), cap(allocator.storage)),
		gaps:          make([]uint32, len(allocator.gaps)),
		capacityLimit: allocator.capacityLimit,
	}

	copy(clone.storage, allocator.storage)
	copy(clone.gaps, allocator.gaps)

	return clone
}

// Reset drops every slot. Trees bound to the allocator must be cleared first.
func (allocator *Allocator[K, V]) Reset() {
	allocator.storage = allocator.storage[:0]
	allocator.gaps = allocator.gaps[:0]
}

func (allocator *Allocator[K, V]) malloc() (uint32, error) {
	if allocator.capacityLimit > 0 && allocator.Live() >= allocator.capacityLimit {
		return 0, fmt.Errorf("%w: limit %d", ErrCapacityExceeded, allocator.capacityLimit)
	}

	if gapCount := len(allocator.gaps); gapCount > 0 {
		handle := allocator.gaps[gapCount-1]
		allocator.gaps = allocator.gaps[:gapCount-1]
		allocator.storage[handle].live = true

		return handle, nil
	}

	if len(allocator.storage) == 0 {
		// Zero is reserved.
		allocator.storage = append(allocator.storage, node[K, V]{color: black})
	}

	nodeLen := len(allocator.storage)
	if uint64(nodeLen) > maxHandle {
		return 0, fmt.Errorf("%w: handle space of %d nodes is full", ErrCapacityExceeded, uint64(maxHandle))
	}

	allocator.storage = append(allocator.storage, node[K, V]{live: true})

	return uint32(nodeLen), nil
}

func (allocator *Allocator[K, V]) free(handle uint32) {
	if handle == 0 {
		panic("rbtree: node #0 is special and cannot be deallocated")
	}

	doAssert(int(handle) < len(allocator.storage))
	doAssert(allocator.storage[handle].live)

	allocator.storage[handle] = node[K, V]{}
	allocator.gaps = append(allocator.gaps, handle)
}
