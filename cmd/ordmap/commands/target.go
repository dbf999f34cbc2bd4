package commands

import (
	"cmp"
	"encoding/binary"
	"fmt"
	"strconv"

	"github.com/cespare/xxhash/v2"
	"github.com/dustin/go-humanize"

	"github.com/Sumatoshi-tech/ordmap/pkg/rbtree"
)

// workloadTarget is the map a workload mutates: one synced map, or several
// shards driven concurrently.
type workloadTarget interface {
	Insert(key int, value string) (bool, error)
	Remove(key int) bool
	Len() int
	Height() int
	Stats() rbtree.Stats
	Verify() error

	// partition splits keys into one ordered batch per goroutine.
	partition(keys []int) [][]int
	shape() []statRow
}

// newTarget builds the workload map described by the settings.
func (s *session) newTarget() (workloadTarget, error) {
	shards := s.cfg.Workload.Shards
	if shards <= 1 {
		tree, err := s.newMap()
		if err != nil {
			return nil, err
		}

		return syncedTarget{rbtree.NewSynced(tree)}, nil
	}

	limit, err := s.cfg.Tree.CapacityLimit()
	if err != nil {
		return nil, err
	}

	if limit > 0 {
		limit = (limit + shards - 1) / shards
	}

	sharded := rbtree.NewSharded[int, string](shards, hashKey, cmp.Compare[int], rbtree.WithCapacityLimit(limit))

	return shardedTarget{sharded}, nil
}

// hashKey routes an int key to a shard.
func hashKey(key int) uint32 {
	var buf [8]byte

	binary.LittleEndian.PutUint64(buf[:], uint64(key)) //nolint:gosec // bit pattern only

	return uint32(xxhash.Sum64(buf[:])) //nolint:gosec // truncation is intended
}

type syncedTarget struct {
	*rbtree.Synced[int, string]
}

func (syncedTarget) partition(keys []int) [][]int {
	return [][]int{keys}
}

func (target syncedTarget) shape() []statRow {
	var rows []statRow

	_ = target.Update(func(tree *rbtree.Map[int, string]) error {
		rows = shapeRows(tree)

		return nil
	})

	return rows
}

type shardedTarget struct {
	*rbtree.Sharded[int, string]
}

func (target shardedTarget) partition(keys []int) [][]int {
	parts := make([][]int, len(target.Shards()))

	for _, key := range keys {
		idx := target.ShardIndex(key)
		parts[idx] = append(parts[idx], key)
	}

	return parts
}

func (target shardedTarget) shape() []statRow {
	rows := []statRow{
		{"entries", humanize.Comma(int64(target.Len()))},
		{"tallest shard", strconv.Itoa(target.Height())},
	}

	for idx, shard := range target.Shards() {
		rows = append(rows, statRow{
			"shard " + strconv.Itoa(idx),
			fmt.Sprintf("%s entries, height %d", humanize.Comma(int64(shard.Len())), shard.Height()),
		})
	}

	return rows
}
