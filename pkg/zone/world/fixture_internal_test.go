package world

import (
	"context"
	"testing"
	"time"

	"github.com/argus-labs/zone-engine/pkg/messaging"
	"github.com/argus-labs/zone-engine/pkg/persistence"
	"github.com/argus-labs/zone-engine/pkg/zone/entity"
	"github.com/argus-labs/zone-engine/pkg/zone/stage"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

const testZone uint32 = 5

type fixtureConfig struct {
	seed []*entity.Entity
	tick uint64
	opts func(*Options)
	deps func(*Deps)
	wrap func(persistence.Store) persistence.Store
}

// fixture drives a World on the test goroutine with a manual clock. Storage is an in-memory SQLite
// store behind a running dispatcher, and every notification is recorded.
type fixture struct {
	t     *testing.T
	w     *World
	now   uint64
	rec   *messaging.Recorder
	store persistence.Store
}

func newFixture(t *testing.T, cfg fixtureConfig) *fixture {
	t.Helper()
	ctx := context.Background()

	sql, err := persistence.OpenSQLStore(":memory:")
	require.NoError(t, err)
	for _, e := range cfg.seed {
		require.NoError(t, sql.SaveObject(ctx, recordFor(t, e)))
	}
	if cfg.tick > 0 {
		require.NoError(t, sql.SaveGlobalTick(ctx, cfg.tick))
	}
	var store persistence.Store = sql
	if cfg.wrap != nil {
		store = cfg.wrap(store)
	}

	logger := zerolog.Nop()
	db := persistence.NewDispatcher(store, persistence.DispatcherOptions{Workers: 2, Logger: logger})
	done := make(chan error, 1)
	go func() { done <- db.Run(ctx) }()
	t.Cleanup(func() {
		db.Close()
		require.NoError(t, <-done)
		require.NoError(t, store.Close())
	})

	f := &fixture{t: t, rec: &messaging.Recorder{}, store: store}
	opts := DefaultOptions()
	opts.ZoneID = testZone
	if cfg.opts != nil {
		cfg.opts(&opts)
	}
	deps := Deps{
		Dispatcher: db,
		Notifier:   f.rec,
		Logger:     &logger,
		Clock:      func() uint64 { return f.now },
	}
	if cfg.deps != nil {
		cfg.deps(&deps)
	}

	f.w, err = New(ctx, opts, deps)
	require.NoError(t, err)
	return f
}

// newRunning returns a fixture whose world finished loading at time 0.
func newRunning(t *testing.T, cfg fixtureConfig) *fixture {
	t.Helper()
	f := newFixture(t, cfg)
	require.NoError(t, f.w.Start())
	f.settle(func() bool { return f.w.Stage() == stage.Running })
	return f
}

func recordFor(t *testing.T, e *entity.Entity) persistence.Record {
	t.Helper()
	body, err := entity.EncodeBody(e.Body)
	require.NoError(t, err)
	return persistence.Record{
		ID:       uint64(e.ID),
		ZoneID:   testZone,
		ParentID: uint64(e.ParentID),
		Kind:     e.Kind().String(),
		X:        e.Position.X,
		Y:        e.Position.Y,
		Z:        e.Position.Z,
		Body:     body,
	}
}

// settle processes without advancing the clock until cond holds, so that async storage work can
// come back.
func (f *fixture) settle(cond func() bool) {
	f.t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for !cond() {
		require.NoError(f.t, f.w.Process())
		if time.Now().After(deadline) {
			require.FailNow(f.t, "condition not reached")
		}
		time.Sleep(time.Millisecond)
	}
}

func (f *fixture) advance(ms uint64) {
	f.t.Helper()
	f.now += ms
	require.NoError(f.t, f.w.Process())
}

func (f *fixture) seconds(n int) {
	f.t.Helper()
	for range n {
		f.advance(second)
	}
}

func (f *fixture) add(e *entity.Entity) *entity.Entity {
	f.t.Helper()
	require.NoError(f.t, f.w.AddObject(e))
	return e
}

func player(id entity.ID, acc entity.AccountID) *entity.Entity {
	return &entity.Entity{ID: id, Body: &entity.Player{AccountID: acc, InventoryID: id + 1}}
}

func inventory(owner entity.ID) *entity.Entity {
	return &entity.Entity{ID: owner + 1, ParentID: owner, Body: &entity.Container{Capacity: 80}}
}

func creature(id entity.ID) *entity.Entity {
	return &entity.Entity{ID: id, Body: &entity.Creature{}}
}
