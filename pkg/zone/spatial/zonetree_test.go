package spatial_test

import (
	"slices"
	"testing"

	"github.com/argus-labs/zone-engine/pkg/testutils"
	"github.com/argus-labs/zone-engine/pkg/zone/spatial"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTree(t *testing.T) *spatial.ZoneTree {
	t.Helper()
	opts := spatial.DefaultOptions()
	opts.LeafCapacity = 4
	opts.Extent = 1024
	tree, err := spatial.New(opts)
	require.NoError(t, err)
	return tree
}

func TestNew_InvalidOptions(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		mutate func(*spatial.Options)
	}{
		{"zero fill factor", func(o *spatial.Options) { o.FillFactor = 0 }},
		{"fill factor above one", func(o *spatial.Options) { o.FillFactor = 1.5 }},
		{"zero index capacity", func(o *spatial.Options) { o.IndexCapacity = 0 }},
		{"zero leaf capacity", func(o *spatial.Options) { o.LeafCapacity = 0 }},
		{"negative horizon", func(o *spatial.Options) { o.Horizon = -1 }},
		{"zero extent", func(o *spatial.Options) { o.Extent = 0 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			opts := spatial.DefaultOptions()
			tt.mutate(&opts)
			_, err := spatial.New(opts)
			require.Error(t, err)
		})
	}
}

func TestZoneTree_InsertQueryRemove(t *testing.T) {
	t.Parallel()
	tree := newTree(t)

	require.NoError(t, tree.InsertRegion(1, 0, 0, 100, 100))
	require.NoError(t, tree.InsertRegion(2, 50, 50, 100, 100))
	require.NoError(t, tree.InsertRegion(3, -500, -500, 10, 10))

	got, err := tree.RegionsAt(75, 75)
	require.NoError(t, err)
	assert.Equal(t, []spatial.Key{1, 2}, got)

	got, err = tree.RegionsAt(-495, -495)
	require.NoError(t, err)
	assert.Equal(t, []spatial.Key{3}, got)

	err = tree.InsertRegion(1, 0, 0, 1, 1)
	require.ErrorIs(t, err, spatial.ErrDuplicateKey)

	require.NoError(t, tree.RemoveRegion(1))
	got, err = tree.RegionsAt(75, 75)
	require.NoError(t, err)
	assert.Equal(t, []spatial.Key{2}, got)

	require.ErrorIs(t, tree.RemoveRegion(1), spatial.ErrKeyNotFound)
	assert.Equal(t, 2, tree.Len())
}

func TestZoneTree_RegionOutsideExtent(t *testing.T) {
	t.Parallel()
	tree := newTree(t)

	require.NoError(t, tree.InsertRegion(9, 5000, 5000, 20, 20))
	got, err := tree.RegionsAt(5010, 5010)
	require.NoError(t, err)
	assert.Equal(t, []spatial.Key{9}, got)
}

func TestZoneTree_RegionsNearUsesHorizon(t *testing.T) {
	t.Parallel()
	tree := newTree(t)

	require.NoError(t, tree.InsertRegion(1, 200, 0, 10, 10))
	require.NoError(t, tree.InsertRegion(2, 100, 0, 10, 10))

	got, err := tree.RegionsNear(0, 0)
	require.NoError(t, err)
	assert.Equal(t, []spatial.Key{2}, got)
}

func TestZoneTree_Shutdown(t *testing.T) {
	t.Parallel()
	tree := newTree(t)
	require.NoError(t, tree.InsertRegion(1, 0, 0, 10, 10))

	require.NoError(t, tree.Shutdown())

	_, err := tree.RegionsAt(1, 1)
	require.ErrorIs(t, err, spatial.ErrShutdown)
	_, err = tree.RegionsIn(spatial.Rect{Width: 5, Height: 5})
	require.ErrorIs(t, err, spatial.ErrShutdown)
	_, _, err = tree.Region(1)
	require.ErrorIs(t, err, spatial.ErrShutdown)
	require.ErrorIs(t, tree.InsertRegion(2, 0, 0, 1, 1), spatial.ErrShutdown)
	require.ErrorIs(t, tree.RemoveRegion(1), spatial.ErrShutdown)
	require.ErrorIs(t, tree.Shutdown(), spatial.ErrShutdown)
	assert.Equal(t, 0, tree.Len())
}

func TestZoneTree_RejectsNegativeDimensions(t *testing.T) {
	t.Parallel()
	tree := newTree(t)
	require.ErrorIs(t, tree.InsertRegion(1, 0, 0, -1, 5), spatial.ErrInvalidRegion)
}

type treeOp uint8

const (
	opInsert treeOp = iota
	opRemove
	opQuery
)

// TestZoneTree_ModelFuzz checks the tree against a brute-force scan through enough inserts and
// removals to force repeated splits and collapses.
func TestZoneTree_ModelFuzz(t *testing.T) {
	t.Parallel()

	const opsMax = 5_000
	prng := testutils.NewRand(t)
	tree := newTree(t)
	model := make(map[spatial.Key]spatial.Rect)
	nextKey := spatial.Key(1)

	randRect := func() spatial.Rect {
		size := testutils.RandRange(prng, 1, 200)
		return spatial.Rect{
			X:      testutils.RandRange(prng, -1100, 1000),
			Z:      testutils.RandRange(prng, -1100, 1000),
			Width:  size,
			Height: testutils.RandRange(prng, 1, 200),
		}
	}

	ops := []testutils.Weighted[treeOp]{
		{Op: opInsert, Weight: 50},
		{Op: opRemove, Weight: 30},
		{Op: opQuery, Weight: 20},
	}
	for range opsMax {
		switch testutils.Pick(prng, ops) {
		case opInsert:
			r := randRect()
			require.NoError(t, tree.InsertRegion(nextKey, r.X, r.Z, r.Width, r.Height))
			model[nextKey] = r
			nextKey++
		case opRemove:
			if len(model) == 0 {
				continue
			}
			k := testutils.RandKey(prng, model)
			require.NoError(t, tree.RemoveRegion(k))
			delete(model, k)
		case opQuery:
			x := testutils.RandRange(prng, -1100, 1100)
			z := testutils.RandRange(prng, -1100, 1100)
			got, err := tree.RegionsAt(x, z)
			require.NoError(t, err)

			var want []spatial.Key
			for k, r := range model {
				if r.ContainsPoint(x, z) {
					want = append(want, k)
				}
			}
			slices.Sort(want)
			assert.Equal(t, want, got)
		}
	}

	assert.Equal(t, len(model), tree.Len())
	for k, want := range model {
		got, ok, err := tree.Region(k)
		require.NoError(t, err)
		require.True(t, ok)
		assert.Equal(t, want, got)
	}
}
