// Package testutils holds helpers shared by the model-based tests across the zone packages.
package testutils

import (
	"cmp"
	"fmt"
	"hash/fnv"
	"maps"
	"math/rand/v2"
	"os"
	"slices"
	"strconv"
	"testing"
	"time"
)

var Seed uint64 //nolint:gochecknoglobals // intentionally global for test reproducibility

func init() { //nolint:gochecknoinits // seed must be fixed before any test runs
	Seed = uint64(time.Now().UnixNano()) //nolint:gosec // it's ok
	if envSeed := os.Getenv("TEST_SEED"); envSeed != "" {
		if parsed, err := strconv.ParseUint(envSeed, 0, 64); err == nil {
			Seed = parsed
		}
	}
	fmt.Printf("to reproduce: TEST_SEED=0x%x\n", Seed) //nolint:forbidigo // just for testing
}

// NewRand returns a PRNG for t. The stream depends on Seed and the test name, so a failing test
// replays on its own under the same TEST_SEED.
func NewRand(t *testing.T) *rand.Rand {
	t.Helper()
	h := fnv.New64a()
	_, _ = h.Write([]byte(t.Name()))
	t.Logf("rand stream for %s: TEST_SEED=0x%x", t.Name(), Seed)
	return rand.New(rand.NewPCG(Seed, h.Sum64())) //nolint:gosec // weak RNG is fine for tests
}

// RandKey returns a random key of m. Keys are sorted first so that map iteration order does not
// leak into the pick. Panics if m is empty.
func RandKey[K cmp.Ordered, V any](r *rand.Rand, m map[K]V) K {
	keys := slices.Sorted(maps.Keys(m))
	return keys[r.IntN(len(keys))]
}

// Weighted is an operation of a model-based test together with how often it is picked.
type Weighted[T any] struct {
	Op     T
	Weight int
}

// Pick returns a random operation, each chosen in proportion to its weight.
func Pick[T any](r *rand.Rand, ops []Weighted[T]) T {
	var total int
	for _, o := range ops {
		total += o.Weight
	}

	n := r.IntN(total)
	for _, o := range ops {
		if n < o.Weight {
			return o.Op
		}
		n -= o.Weight
	}
	panic("unreachable")
}

// RandRange returns a uniformly distributed value in [lo, hi).
func RandRange(r *rand.Rand, lo, hi float64) float64 {
	return lo + r.Float64()*(hi-lo)
}
