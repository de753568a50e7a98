package persistence_test

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/argus-labs/zone-engine/pkg/persistence"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newSQLStore(t *testing.T) persistence.Store {
	t.Helper()
	s, err := persistence.OpenSQLStore(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func newRedisStore(t *testing.T) persistence.Store {
	t.Helper()
	mr := miniredis.RunT(t)
	s, err := persistence.NewRedisStore(context.Background(), persistence.RedisOptions{Address: mr.Addr()})
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestStores(t *testing.T) {
	t.Parallel()

	backends := []struct {
		name string
		open func(*testing.T) persistence.Store
	}{
		{"sqlite", newSQLStore},
		{"redis", newRedisStore},
	}
	for _, b := range backends {
		t.Run(b.name, func(t *testing.T) {
			t.Parallel()
			t.Run("global tick", func(t *testing.T) { testGlobalTick(t, b.open(t)) })
			t.Run("paged zone load", func(t *testing.T) { testPagedZoneLoad(t, b.open(t)) })
			t.Run("save replaces", func(t *testing.T) { testSaveReplaces(t, b.open(t)) })
			t.Run("item attributes", func(t *testing.T) { testItemAttributes(t, b.open(t)) })
		})
	}
}

func testGlobalTick(t *testing.T, s persistence.Store) {
	ctx := context.Background()

	tick, err := s.LoadGlobalTick(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(0), tick)

	require.NoError(t, s.SaveGlobalTick(ctx, 86_400_000))
	tick, err = s.LoadGlobalTick(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(86_400_000), tick)
}

func testPagedZoneLoad(t *testing.T, s persistence.Store) {
	ctx := context.Background()

	ids := []uint64{2533274790395904, 7, 300, 42, 9}
	for _, id := range ids {
		require.NoError(t, s.SaveObject(ctx, persistence.Record{ID: id, ZoneID: 5, Kind: "item", X: 1.5}))
	}
	require.NoError(t, s.SaveObject(ctx, persistence.Record{ID: 8, ZoneID: 6, Kind: "item"}))

	n, err := s.CountZoneObjects(ctx, 5)
	require.NoError(t, err)
	assert.Equal(t, len(ids), n)

	var got []uint64
	after := uint64(0)
	for {
		page, err := s.LoadZoneObjects(ctx, 5, after, 2)
		require.NoError(t, err)
		if len(page) == 0 {
			break
		}
		assert.LessOrEqual(t, len(page), 2)
		for _, rec := range page {
			assert.Equal(t, uint32(5), rec.ZoneID)
			assert.InDelta(t, 1.5, rec.X, 1e-6)
			got = append(got, rec.ID)
		}
		after = page[len(page)-1].ID
	}
	assert.Equal(t, []uint64{7, 9, 42, 300, 2533274790395904}, got)

	require.NoError(t, s.DeleteObject(ctx, 5, 42))
	n, err = s.CountZoneObjects(ctx, 5)
	require.NoError(t, err)
	assert.Equal(t, len(ids)-1, n)
}

func testSaveReplaces(t *testing.T, s persistence.Store) {
	ctx := context.Background()

	require.NoError(t, s.SaveObject(ctx, persistence.Record{ID: 1, ZoneID: 1, Kind: "player", Body: []byte{1}}))
	require.NoError(t, s.SaveObject(ctx, persistence.Record{ID: 1, ZoneID: 1, Kind: "player", ParentID: 77, Body: []byte{2}}))

	page, err := s.LoadZoneObjects(ctx, 1, 0, 10)
	require.NoError(t, err)
	require.Len(t, page, 1)
	assert.Equal(t, uint64(77), page[0].ParentID)
	assert.Equal(t, []byte{2}, page[0].Body)
}

func testItemAttributes(t *testing.T, s persistence.Store) {
	ctx := context.Background()

	require.NoError(t, s.SaveItemAttribute(ctx, 10, "status", "busy"))
	require.NoError(t, s.SaveItemAttribute(ctx, 10, "status", "ready"))
	require.NoError(t, s.SaveItemAttribute(ctx, 10, "timer", "0"))

	attrs, err := s.LoadItemAttributes(ctx, 10)
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"status": "ready", "timer": "0"}, attrs)
}
