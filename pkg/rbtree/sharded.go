package rbtree

import (
	"errors"
	"fmt"
	"iter"
	"sync"
)

// Sharded spreads keys over several independently locked maps so that
// writers touching different shards do not contend. Point operations go to
// the shard picked by the hash function; ordered reads merge all shards.
type Sharded[K, V any] struct {
	shards  []*Synced[K, V]
	hash    func(K) uint32
	compare func(a, b K) int
}

// NewSharded creates shardCount maps ordered by compare. Keys are routed by
// hash, which must be deterministic. Options apply to every shard, so a
// capacity limit is per shard.
func NewSharded[K, V any](shardCount int, hash func(K) uint32, compare func(a, b K) int,
	opts ...AllocatorOption,
) *Sharded[K, V] {
	if shardCount <= 0 {
		shardCount = 1
	}

	shards := make([]*Synced[K, V], shardCount)

	for idx := range shardCount {
		shards[idx] = NewSynced(New[K, V](compare, opts...))
	}

	return &Sharded[K, V]{shards: shards, hash: hash, compare: compare}
}

// ShardIndex returns the position of the shard owning key.
func (sharded *Sharded[K, V]) ShardIndex(key K) int {
	return int(sharded.hash(key) % uint32(len(sharded.shards))) //nolint:gosec // shard count is small
}

// Shard returns the shard owning key.
func (sharded *Sharded[K, V]) Shard(key K) *Synced[K, V] {
	return sharded.shards[sharded.ShardIndex(key)]
}

// Shards returns all underlying maps.
func (sharded *Sharded[K, V]) Shards() []*Synced[K, V] {
	return sharded.shards
}

// Insert adds key to its shard. See Map.Insert.
func (sharded *Sharded[K, V]) Insert(key K, value V) (bool, error) {
	return sharded.Shard(key).Insert(key, value)
}

// Replace overwrites the value of key in its shard. See Map.Replace.
func (sharded *Sharded[K, V]) Replace(key K, value V) bool {
	return sharded.Shard(key).Replace(key, value)
}

// Remove deletes key from its shard.
func (sharded *Sharded[K, V]) Remove(key K) bool {
	return sharded.Shard(key).Remove(key)
}

// Find looks key up in its shard.
func (sharded *Sharded[K, V]) Find(key K) (V, bool) {
	return sharded.Shard(key).Find(key)
}

// Len sums the shard lengths. Concurrent writers make the result approximate.
func (sharded *Sharded[K, V]) Len() int {
	total := 0

	for _, shard := range sharded.shards {
		total += shard.Len()
	}

	return total
}

// Height returns the height of the tallest shard.
func (sharded *Sharded[K, V]) Height() int {
	height := 0

	for _, shard := range sharded.shards {
		height = max(height, shard.Height())
	}

	return height
}

// Stats adds up the counters of every shard.
func (sharded *Sharded[K, V]) Stats() Stats {
	var total Stats

	for _, shard := range sharded.shards {
		total = total.add(shard.Stats())
	}

	return total
}

// Verify checks all shards in parallel and joins their violations.
func (sharded *Sharded[K, V]) Verify() error {
	errs := make([]error, len(sharded.shards))

	wg := sync.WaitGroup{}
	wg.Add(len(sharded.shards))

	for idx, shard := range sharded.shards {
		go func() {
			defer wg.Done()

			if err := shard.Verify(); err != nil {
				errs[idx] = fmt.Errorf("shard %d: %w", idx, err)
			}
		}()
	}

	wg.Wait()

	return errors.Join(errs...)
}

// Snapshot merges the shard snapshots into one ascending snapshot. Each
// shard is copied under its own read lock; the result is not atomic across
// shards.
func (sharded *Sharded[K, V]) Snapshot() Snapshot[K, V] {
	var entries []Entry[K, V]

	for key, value := range sharded.All() {
		entries = append(entries, Entry[K, V]{Key: key, Value: value})
	}

	return Snapshot[K, V]{Entries: entries}
}

// All returns the entries of every shard in ascending key order.
func (sharded *Sharded[K, V]) All() iter.Seq2[K, V] {
	return func(yield func(K, V) bool) {
		parts := make([][]Entry[K, V], len(sharded.shards))
		for idx, shard := range sharded.shards {
			parts[idx] = shard.Snapshot().Entries
		}

		for {
			best := -1

			for idx, part := range parts {
				if len(part) == 0 {
					continue
				}

				if best < 0 || sharded.compare(part[0].Key, parts[best][0].Key) < 0 {
					best = idx
				}
			}

			if best < 0 {
				return
			}

			head := parts[best][0]
			parts[best] = parts[best][1:]

			if !yield(head.Key, head.Value) {
				return
			}
		}
	}
}
