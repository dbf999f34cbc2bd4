package rbtree

import (
	"sync"
)

// Synced guards a Map with a single RWMutex so it can be shared between
// goroutines. Lookups share the lock, mutations hold it exclusively.
type Synced[K, V any] struct {
	mu   sync.RWMutex
	tree *Map[K, V]
}

// NewSynced wraps tree. The caller must not use tree directly afterwards.
func NewSynced[K, V any](tree *Map[K, V]) *Synced[K, V] {
	return &Synced[K, V]{tree: tree}
}

// Insert calls Map.Insert under the write lock.
func (s *Synced[K, V]) Insert(key K, value V) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.tree.Insert(key, value)
}

// Replace calls Map.Replace under the write lock.
func (s *Synced[K, V]) Replace(key K, value V) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.tree.Replace(key, value)
}

// Remove calls Map.Remove under the write lock.
func (s *Synced[K, V]) Remove(key K) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.tree.Remove(key)
}

// Clear calls Map.Clear under the write lock.
func (s *Synced[K, V]) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.tree.Clear()
}

// Find calls Map.Find under the read lock.
func (s *Synced[K, V]) Find(key K) (V, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.tree.Find(key)
}

// Len calls Map.Len under the read lock.
func (s *Synced[K, V]) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.tree.Len()
}

// Height calls Map.Height under the read lock.
func (s *Synced[K, V]) Height() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.tree.Height()
}

// Stats calls Map.Stats under the read lock.
func (s *Synced[K, V]) Stats() Stats {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.tree.Stats()
}

// Snapshot calls Map.Snapshot under the read lock.
func (s *Synced[K, V]) Snapshot() Snapshot[K, V] {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.tree.Snapshot()
}

// Verify calls Map.Verify under the read lock.
func (s *Synced[K, V]) Verify() error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.tree.Verify()
}

// Update runs fn with exclusive access to the underlying map, for batches
// that must not interleave with other writers.
func (s *Synced[K, V]) Update(fn func(tree *Map[K, V]) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return fn(s.tree)
}
