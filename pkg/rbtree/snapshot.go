package rbtree

import (
	"errors"
	"fmt"
)

// ErrUnsortedSnapshot is returned by Restore when entries are not strictly ascending.
var ErrUnsortedSnapshot = errors.New("snapshot entries are not strictly ascending")

// Entry is a single key/value pair of a Snapshot.
type Entry[K, V any] struct {
	Key   K `json:"key"   yaml:"key"`
	Value V `json:"value" yaml:"value"`
}

// Snapshot is a detached, ordered copy of a map's contents.
type Snapshot[K, V any] struct {
	Entries []Entry[K, V] `json:"entries" yaml:"entries"`
}

// Snapshot copies the entries in ascending key order.
func (tree *Map[K, V]) Snapshot() Snapshot[K, V] {
	entries := make([]Entry[K, V], 0, tree.count)

	for key, value := range tree.All() {
		entries = append(entries, Entry[K, V]{Key: key, Value: value})
	}

	return Snapshot[K, V]{Entries: entries}
}

// Restore replaces the map's contents with the snapshot. The entries are
// validated before the map is touched. If the allocator runs out of nodes
// half way, the map is left empty and the error is returned.
func (tree *Map[K, V]) Restore(snapshot Snapshot[K, V]) error {
	for idx := 1; idx < len(snapshot.Entries); idx++ {
		if tree.compare(snapshot.Entries[idx-1].Key, snapshot.Entries[idx].Key) >= 0 {
			return fmt.Errorf("%w: entry %d", ErrUnsortedSnapshot, idx)
		}
	}

	tree.Clear()

	for idx, entry := range snapshot.Entries {
		_, err := tree.Insert(entry.Key, entry.Value)
		if err != nil {
			tree.Clear()

			return fmt.Errorf("restore entry %d: %w", idx, err)
		}
	}

	return nil
}
