package rbtree_test

import (
	"cmp"
	"hash/fnv"
	"slices"
	"strconv"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sumatoshi-tech/ordmap/pkg/rbtree"
)

func hashInt(key int) uint32 {
	hasher := fnv.New32a()
	hasher.Write([]byte(strconv.Itoa(key)))

	return hasher.Sum32()
}

func TestShardedOrderedMerge(t *testing.T) {
	t.Parallel()

	sharded := rbtree.NewSharded[int, string](4, hashInt, cmp.Compare[int])

	keys := []int{42, 7, 19, 3, 88, 61, 25, 14, 70, 1}
	for _, key := range keys {
		inserted, err := sharded.Insert(key, strconv.Itoa(key))
		require.NoError(t, err)
		assert.True(t, inserted)
	}

	assert.Equal(t, len(keys), sharded.Len())

	var got []int
	for key, value := range sharded.All() {
		got = append(got, key)
		assert.Equal(t, strconv.Itoa(key), value)
	}

	want := slices.Clone(keys)
	slices.Sort(want)
	assert.Equal(t, want, got)

	snapshot := sharded.Snapshot()
	require.Len(t, snapshot.Entries, len(keys))
	assert.Equal(t, 1, snapshot.Entries[0].Key)
	assert.Equal(t, 88, snapshot.Entries[len(keys)-1].Key)

	require.NoError(t, sharded.Verify())

	tallest := 0
	for idx, shard := range sharded.Shards() {
		tallest = max(tallest, shard.Height())

		for _, entry := range shard.Snapshot().Entries {
			assert.Equal(t, idx, sharded.ShardIndex(entry.Key))
		}
	}

	assert.Equal(t, tallest, sharded.Height())
}

func TestShardedPointOperations(t *testing.T) {
	t.Parallel()

	sharded := rbtree.NewSharded[int, string](3, hashInt, cmp.Compare[int])

	_, err := sharded.Insert(5, "five")
	require.NoError(t, err)

	inserted, err := sharded.Insert(5, "other")
	require.NoError(t, err)
	assert.False(t, inserted)

	value, found := sharded.Find(5)
	assert.True(t, found)
	assert.Equal(t, "five", value)

	assert.True(t, sharded.Replace(5, "FIVE"))
	assert.False(t, sharded.Replace(6, "six"))
	value, _ = sharded.Find(5)
	assert.Equal(t, "FIVE", value)

	assert.True(t, sharded.Remove(5))
	assert.False(t, sharded.Remove(5))

	_, found = sharded.Find(5)
	assert.False(t, found)
	assert.Equal(t, 0, sharded.Len())
}

func TestShardedDefaultsToOneShard(t *testing.T) {
	t.Parallel()

	sharded := rbtree.NewSharded[int, int](0, hashInt, cmp.Compare[int])
	assert.Len(t, sharded.Shards(), 1)
}

func TestShardedPerShardCapacity(t *testing.T) {
	t.Parallel()

	sharded := rbtree.NewSharded[int, int](1, hashInt, cmp.Compare[int], rbtree.WithCapacityLimit(2))

	for key := range 2 {
		_, err := sharded.Insert(key, key)
		require.NoError(t, err)
	}

	_, err := sharded.Insert(2, 2)
	require.ErrorIs(t, err, rbtree.ErrCapacityExceeded)
}

func TestShardedConcurrentWriters(t *testing.T) {
	t.Parallel()

	const (
		workers   = 8
		perWorker = 200
	)

	sharded := rbtree.NewSharded[int, int](4, hashInt, cmp.Compare[int])

	var wg sync.WaitGroup

	wg.Add(workers)

	for worker := range workers {
		go func() {
			defer wg.Done()

			for idx := range perWorker {
				_, err := sharded.Insert(worker*perWorker+idx, idx)
				assert.NoError(t, err)
			}
		}()
	}

	wg.Wait()

	assert.Equal(t, workers*perWorker, sharded.Len())
	assert.Equal(t, uint64(workers*perWorker), sharded.Stats().Inserts)
	require.NoError(t, sharded.Verify())

	previous := -1
	for key := range sharded.All() {
		assert.Greater(t, key, previous)
		previous = key
	}
}
