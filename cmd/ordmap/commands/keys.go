package commands

import (
	"errors"
	"fmt"
	"math/rand/v2"
	"strconv"

	"github.com/Sumatoshi-tech/ordmap/pkg/config"
)

// ErrInvalidKey is returned when a command-line key is not an integer.
var ErrInvalidKey = errors.New("invalid key")

// parseKeys converts command-line arguments into integer keys.
func parseKeys(args []string) ([]int, error) {
	keys := make([]int, 0, len(args))

	for _, arg := range args {
		key, err := strconv.Atoi(arg)
		if err != nil {
			return nil, fmt.Errorf("%w: %q", ErrInvalidKey, arg)
		}

		keys = append(keys, key)
	}

	return keys, nil
}

// newRand returns the deterministic generator of a workload seed.
func newRand(seed int64) *rand.Rand {
	return rand.New(rand.NewPCG(uint64(seed), uint64(seed)>>1|1)) //nolint:gosec // workload shuffling, not security
}

// workloadKeys returns the keys 1..Keys in the configured order.
func workloadKeys(workload config.WorkloadConfig) []int {
	keys := make([]int, workload.Keys)

	for idx := range keys {
		keys[idx] = idx + 1
	}

	switch workload.Order {
	case config.OrderReverse:
		for left, right := 0, len(keys)-1; left < right; left, right = left+1, right-1 {
			keys[left], keys[right] = keys[right], keys[left]
		}
	case config.OrderShuffled:
		shuffle(keys, newRand(workload.Seed))
	}

	return keys
}

// removalKeys picks ratio*len(keys) of keys in a shuffled order.
func removalKeys(keys []int, ratio float64, rng *rand.Rand) []int {
	picked := append([]int(nil), keys...)
	shuffle(picked, rng)

	return picked[:int(float64(len(picked))*ratio)]
}

func shuffle(keys []int, rng *rand.Rand) {
	rng.Shuffle(len(keys), func(i, j int) {
		keys[i], keys[j] = keys[j], keys[i]
	})
}

// valueFor derives the stored value of a generated key.
func valueFor(key int) string {
	return "v" + strconv.Itoa(key)
}
