package entity_test

import (
	"testing"

	"github.com/argus-labs/zone-engine/pkg/testutils"
	"github.com/argus-labs/zone-engine/pkg/zone/entity"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func player(id entity.ID, acc entity.AccountID) *entity.Entity {
	return &entity.Entity{ID: id, Body: &entity.Player{AccountID: acc}}
}

func TestRegistry_RegisterLookupUnregister(t *testing.T) {
	t.Parallel()
	r := entity.NewRegistry()

	e := &entity.Entity{ID: 42, Position: entity.Vec3{X: 1, Y: 2, Z: 3}, Body: &entity.Creature{}}
	require.NoError(t, r.Register(e))

	got, ok := r.Lookup(42)
	require.True(t, ok)
	assert.Same(t, e, got)
	assert.True(t, r.Exists(e))

	removed, ok := r.Unregister(42)
	require.True(t, ok)
	assert.Same(t, e, removed)

	_, ok = r.Lookup(42)
	assert.False(t, ok)
	assert.False(t, r.Exists(e))

	_, ok = r.Unregister(42)
	assert.False(t, ok, "second unregister is a no-op")
}

func TestRegistry_LookupNeverRegistered(t *testing.T) {
	t.Parallel()
	r := entity.NewRegistry()

	_, ok := r.Lookup(7)
	assert.False(t, ok)
	_, _, ok = entity.Get[*entity.Player](r, 7)
	assert.False(t, ok)
}

func TestRegistry_RejectsDuplicateIdentifier(t *testing.T) {
	t.Parallel()
	r := entity.NewRegistry()

	first := &entity.Entity{ID: 1, Body: &entity.Item{Template: "a"}}
	require.NoError(t, r.Register(first))

	err := r.Register(&entity.Entity{ID: 1, Body: &entity.Item{Template: "b"}})
	require.ErrorIs(t, err, entity.ErrDuplicateIdentifier)

	got, _ := r.Lookup(1)
	assert.Same(t, first, got, "existing entry must not be overwritten")
}

func TestRegistry_RejectsInvalid(t *testing.T) {
	t.Parallel()
	r := entity.NewRegistry()

	require.ErrorIs(t, r.Register(nil), entity.ErrInvalidEntity)
	require.ErrorIs(t, r.Register(&entity.Entity{ID: 0, Body: &entity.Item{}}), entity.ErrInvalidEntity)
	require.ErrorIs(t, r.Register(&entity.Entity{ID: 3}), entity.ErrInvalidEntity)
}

func TestRegistry_ParentCycle(t *testing.T) {
	t.Parallel()
	r := entity.NewRegistry()

	require.ErrorIs(t, r.Register(&entity.Entity{ID: 5, ParentID: 5, Body: &entity.Container{}}), entity.ErrParentCycle)

	require.NoError(t, r.Register(&entity.Entity{ID: 1, ParentID: 2, Body: &entity.Container{}}))
	require.NoError(t, r.Register(&entity.Entity{ID: 2, ParentID: 3, Body: &entity.Container{}}))
	require.ErrorIs(t, r.Register(&entity.Entity{ID: 3, ParentID: 1, Body: &entity.Container{}}), entity.ErrParentCycle)

	require.NoError(t, r.Register(&entity.Entity{ID: 3, Body: &entity.Container{}}))
	require.ErrorIs(t, r.Reparent(3, 1), entity.ErrParentCycle)
}

func TestRegistry_AccountView(t *testing.T) {
	t.Parallel()
	r := entity.NewRegistry()

	require.NoError(t, r.Register(player(10, 100)))
	require.NoError(t, r.Register(player(11, 101)))
	require.ErrorIs(t, r.Register(player(12, 100)), entity.ErrDuplicateAccount)
	_, ok := r.Lookup(12)
	assert.False(t, ok)

	got, ok := r.PlayerByAccount(101)
	require.True(t, ok)
	assert.Equal(t, entity.ID(11), got.ID)
	assert.Equal(t, []entity.AccountID{100, 101}, r.Accounts())

	r.Unregister(10)
	assert.Equal(t, []entity.AccountID{101}, r.Accounts())

	assert.True(t, r.RemoveAccount(101))
	assert.False(t, r.RemoveAccount(101))
	_, ok = r.Lookup(11)
	assert.True(t, ok, "removing the account view keeps the entity")
}

func TestRegistry_StructuresAndChildren(t *testing.T) {
	t.Parallel()
	r := entity.NewRegistry()

	require.NoError(t, r.Register(&entity.Entity{ID: 1000, Body: &entity.Building{}}))
	require.NoError(t, r.Register(&entity.Entity{ID: 10, ParentID: 1000, Body: &entity.Cell{}}))
	require.NoError(t, r.Register(&entity.Entity{ID: 11, ParentID: 1000, Body: &entity.Cell{Index: 1}}))
	require.NoError(t, r.Register(&entity.Entity{ID: 50, ParentID: 10, Body: &entity.Item{}}))

	assert.Equal(t, []entity.ID{10, 11, 1000}, r.Structures())
	assert.Equal(t, []entity.ID{10, 11}, r.Children(1000))
	assert.Equal(t, []entity.ID{50}, r.Children(10))

	require.NoError(t, r.Reparent(50, 11))
	assert.Empty(t, r.Children(10))
	assert.Equal(t, []entity.ID{50}, r.Children(11))

	r.Unregister(10)
	assert.Equal(t, []entity.ID{11, 1000}, r.Structures())
	assert.Equal(t, 1, r.CountKind(entity.KindCell))

	r.Clear()
	assert.Equal(t, 0, r.Len())
	assert.Empty(t, r.Structures())
}

type registryOp uint8

const (
	opRegister registryOp = iota
	opUnregister
	opLookup
)

// TestRegistry_ModelFuzz drives the registry and a plain map with the same random operations and
// checks that the primary map and the kind/account views never disagree with the model.
func TestRegistry_ModelFuzz(t *testing.T) {
	t.Parallel()

	const (
		opsMax = 10_000
		idMax  = 500
	)
	prng := testutils.NewRand(t)
	r := entity.NewRegistry()
	model := make(map[entity.ID]*entity.Entity)

	ops := []testutils.Weighted[registryOp]{
		{Op: opRegister, Weight: 45},
		{Op: opUnregister, Weight: 30},
		{Op: opLookup, Weight: 25},
	}
	for range opsMax {
		id := entity.ID(prng.IntN(idMax) + 1)
		switch testutils.Pick(prng, ops) {
		case opRegister:
			var e *entity.Entity
			if prng.IntN(2) == 0 {
				e = player(id, entity.AccountID(id))
			} else {
				e = &entity.Entity{ID: id, Body: &entity.Item{}}
			}
			err := r.Register(e)
			if _, exists := model[id]; exists {
				require.ErrorIs(t, err, entity.ErrDuplicateIdentifier)
				continue
			}
			require.NoError(t, err)
			model[id] = e
		case opUnregister:
			got, ok := r.Unregister(id)
			want, exists := model[id]
			require.Equal(t, exists, ok)
			if exists {
				assert.Same(t, want, got)
				delete(model, id)
			}
		case opLookup:
			got, ok := r.Lookup(id)
			want, exists := model[id]
			require.Equal(t, exists, ok)
			if exists {
				assert.Same(t, want, got)
			}
		}
	}

	require.Equal(t, len(model), r.Len())
	players := 0
	for id, e := range model {
		assert.True(t, r.Exists(e), "entity %d", id)
		if e.Kind() == entity.KindPlayer {
			players++
			got, ok := r.PlayerByAccount(entity.AccountID(id))
			require.True(t, ok)
			assert.Same(t, e, got)
		}
	}
	assert.Len(t, r.Accounts(), players)
	assert.Equal(t, players, r.CountKind(entity.KindPlayer))
	assert.Equal(t, len(model)-players, r.CountKind(entity.KindItem))
}
