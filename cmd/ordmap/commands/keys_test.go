package commands

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sumatoshi-tech/ordmap/pkg/config"
)

func TestParseKeys(t *testing.T) {
	t.Parallel()

	keys, err := parseKeys([]string{"10", "-5", "0"})
	require.NoError(t, err)
	assert.Equal(t, []int{10, -5, 0}, keys)

	_, err = parseKeys([]string{"1", "two"})
	require.ErrorIs(t, err, ErrInvalidKey)

	keys, err = parseKeys(nil)
	require.NoError(t, err)
	assert.Empty(t, keys)
}

func TestWorkloadKeys_Orders(t *testing.T) {
	t.Parallel()

	sequential := workloadKeys(config.WorkloadConfig{Keys: 5, Order: config.OrderSequential})
	assert.Equal(t, []int{1, 2, 3, 4, 5}, sequential)

	reverse := workloadKeys(config.WorkloadConfig{Keys: 5, Order: config.OrderReverse})
	assert.Equal(t, []int{5, 4, 3, 2, 1}, reverse)

	shuffled := workloadKeys(config.WorkloadConfig{Keys: 50, Order: config.OrderShuffled, Seed: 3})
	assert.ElementsMatch(t, workloadKeys(config.WorkloadConfig{Keys: 50, Order: config.OrderSequential}), shuffled)
	assert.Equal(t, shuffled, workloadKeys(config.WorkloadConfig{Keys: 50, Order: config.OrderShuffled, Seed: 3}))
	assert.NotEqual(t, shuffled, workloadKeys(config.WorkloadConfig{Keys: 50, Order: config.OrderShuffled, Seed: 4}))
}

func TestRemovalKeys(t *testing.T) {
	t.Parallel()

	keys := []int{1, 2, 3, 4, 5, 6, 7, 8, 9, 10}

	picked := removalKeys(keys, 0.3, newRand(1))
	assert.Len(t, picked, 3)
	assert.Subset(t, keys, picked)
	assert.Equal(t, []int{1, 2, 3, 4, 5, 6, 7, 8, 9, 10}, keys, "input must not be reordered")

	assert.Empty(t, removalKeys(keys, 0, newRand(1)))
	assert.Len(t, removalKeys(keys, 1, newRand(1)), len(keys))
}

func TestValueFor(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "v42", valueFor(42))
	assert.Equal(t, "v-1", valueFor(-1))
}
