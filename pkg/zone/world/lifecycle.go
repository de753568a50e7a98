package world

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/argus-labs/zone-engine/pkg/persistence"
	"github.com/argus-labs/zone-engine/pkg/zone/entity"
	"github.com/argus-labs/zone-engine/pkg/zone/scheduler"
	"github.com/argus-labs/zone-engine/pkg/zone/stage"
	"github.com/rotisserie/eris"
)

// Query contexts carried by async persistence jobs and handed back with their completion.
type (
	countQuery  struct{}
	pageQuery   struct{ afterID uint64 }
	logoutQuery struct{ playerID entity.ID }
	saveQuery   struct{ what string }
)

var _ persistence.CompletionHandler = (*World)(nil)

// Start issues the asynchronous bulk load of the zone. Completions arrive through Process; the
// zone switches to Running once every expected object has been handled.
func (w *World) Start() error {
	if !w.stage.Is(stage.StartUp) {
		return eris.Wrapf(stage.ErrWrongStage, "cannot start while %s", w.stage.Current())
	}
	w.loadDeadline = w.clock() + uint64(w.opts.LoadTimeout.Milliseconds())

	zone := w.opts.ZoneID
	err := w.db.SubmitAsync(w, countQuery{}, func(ctx context.Context, s persistence.Store) (any, error) {
		return s.CountZoneObjects(ctx, zone)
	})
	if err != nil {
		return eris.Wrap(err, "failed to request the zone object count")
	}
	if err := w.requestPage(0); err != nil {
		return err
	}
	w.log.Info().Dur("timeout", w.opts.LoadTimeout).Msg("Zone load started")
	return nil
}

func (w *World) requestPage(afterID uint64) error {
	zone, limit := w.opts.ZoneID, w.opts.LoadPageSize
	err := w.db.SubmitAsync(w, pageQuery{afterID: afterID}, func(ctx context.Context, s persistence.Store) (any, error) {
		return s.LoadZoneObjects(ctx, zone, afterID, limit)
	})
	if err != nil {
		return eris.Wrapf(err, "failed to request zone objects after %d", afterID)
	}
	return nil
}

// HandleCompletion receives the results of the world's async persistence jobs.
func (w *World) HandleCompletion(c persistence.Completion) {
	switch q := c.Context.(type) {
	case countQuery:
		if c.Err != nil {
			w.log.Error().Err(c.Err).Str("trace_id", c.TraceID).Msg("Failed to count zone objects")
			return
		}
		w.expected = c.Result.(int) //nolint:errcheck // CountZoneObjects returns int
		w.countKnown = true
		w.log.Info().Int("expected", w.expected).Msg("Zone object count received")
		w.checkLoadComplete()

	case pageQuery:
		if c.Err != nil {
			w.log.Error().Err(c.Err).Str("trace_id", c.TraceID).Uint64("after_id", q.afterID).
				Msg("Failed to load zone objects")
			return
		}
		w.handlePage(c.Result.([]persistence.Record)) //nolint:errcheck // LoadZoneObjects result

	case logoutQuery:
		if c.Err != nil {
			w.log.Warn().Err(c.Err).Str("trace_id", c.TraceID).Stringer("player_id", q.playerID).
				Msg("Failed to save player on logout")
		}
		w.DestroyObject(q.playerID)

	case saveQuery:
		if c.Err != nil {
			w.log.Warn().Err(c.Err).Str("trace_id", c.TraceID).Str("what", q.what).Msg("Save failed")
		}

	default:
		w.log.Warn().Str("context", fmt.Sprintf("%T", c.Context)).Msg("Unexpected persistence completion")
	}
}

func (w *World) handlePage(records []persistence.Record) {
	for _, rec := range records {
		e, err := entityFromRecord(rec)
		if err != nil {
			w.log.Warn().Err(err).Uint64("object_id", rec.ID).Msg("Skipping undecodable zone object")
			w.objectLoaded()
			continue
		}
		w.HandleObjectReady(e)
	}
	if len(records) == w.opts.LoadPageSize {
		if err := w.requestPage(records[len(records)-1].ID); err != nil {
			w.log.Error().Err(err).Msg("Failed to continue the zone load")
		}
	}
}

// HandleObjectReady adds an object that finished loading. While the zone starts up it also counts
// toward the expected total. Rejected objects still count, so a bad record cannot stall startup.
func (w *World) HandleObjectReady(e *entity.Entity) {
	if err := w.AddObject(e); err != nil {
		w.log.Warn().Err(err).Stringer("object_id", e.ID).Msg("Rejected loaded object")
	}
	w.objectLoaded()
}

func (w *World) objectLoaded() {
	if !w.stage.Is(stage.StartUp) {
		return
	}
	w.loaded++
	w.checkLoadComplete()
}

func (w *World) checkLoadComplete() {
	if !w.countKnown || w.loaded < w.expected {
		return
	}
	w.handleLoadComplete()
}

// handleLoadComplete runs exactly once, on the StartUp to Running transition. No periodic
// subsystem task exists before it.
func (w *World) handleLoadComplete() {
	if err := w.stage.Transition(stage.StartUp, stage.Running); err != nil {
		w.log.Warn().Err(err).Msg("Load completed outside of startup")
		return
	}

	for _, s := range w.worldScr {
		if err := w.scripts.Run(s); err != nil {
			w.log.Warn().Err(err).Str("script", s.Name).Msg("World script failed to start")
		}
	}

	if err := w.armSubsystemTasks(); err != nil {
		w.fatal = err
		w.log.Error().Err(err).Msg("Failed to arm subsystem tasks")
		return
	}
	w.log.Info().Int("objects", w.registry.Len()).Msg("World load complete")
}

func (w *World) armSubsystemTasks() error {
	type decl struct {
		family   family
		op       scheduler.Op
		priority uint8
		period   uint64
	}
	decls := []decl{
		{famSubsystem, opDisconnectSweep, 1, second},
		{famSubsystem, opRegions, 2, regionPeriod},
		{famSubsystem, opCraftTools, 3, second},
		{famSubsystem, opPlayerSave, 4, playerSavePeriod},
		{famSubsystem, opObjectTimers, 5, objectTimerPeriod},
		{famSubsystem, opGroupMissions, 5, w.opts.GroupMissionUpdateTime},
		{famSubsystem, opGlobalTick, 7, second},
		{famSubsystem, opShuttles, 7, second},
		{famSubsystem, opServerTime, 9, w.opts.ServerTimeInterval * second},
		{famNpcManager, opNpcDormant, 5, npcDormantPeriod},
		{famNpcManager, opNpcReady, 5, npcReadyPeriod},
		{famNpcManager, opNpcActive, 5, npcActivePeriod},
		{famAdmin, opAdminRequests, 5, adminPeriod},
	}
	for _, d := range decls {
		if _, err := w.armSubsystem(d.family, d.op, d.priority, d.period); err != nil {
			return err
		}
	}
	return nil
}

// Process runs one simulation cycle: it delivers finished storage jobs, then lets every scheduler
// family run its due tasks in a fixed order. An error means the zone cannot continue.
func (w *World) Process() error {
	switch w.stage.Current() {
	case stage.Failed:
		return w.fatal
	case stage.ShuttingDown, stage.ShutDown:
		return eris.Wrapf(ErrNotRunning, "zone is %s", w.stage.Current())
	case stage.StartUp, stage.Running:
	}

	start := time.Now()
	w.db.Deliver()
	if w.fatal != nil {
		return w.fatal
	}

	now := w.clock()
	if w.stage.Is(stage.StartUp) && w.loadDeadline > 0 && now >= w.loadDeadline {
		return w.failLoad()
	}

	for f := range familyCount {
		w.families[f].Process(now)
	}

	w.metrics.Timing("world.process", start)
	w.metrics.Gauge("world.entities", float64(w.registry.Len()))
	return nil
}

// failLoad refuses a partial start.
func (w *World) failLoad() error {
	if err := w.stage.Transition(stage.StartUp, stage.Failed); err != nil {
		return err
	}
	w.fatal = eris.Wrapf(ErrPartialLoadTimeout, "loaded %d of %d objects after %s (count known: %t)",
		w.loaded, w.expected, w.opts.LoadTimeout, w.countKnown)
	w.log.Error().Err(w.fatal).Msg("Zone load timed out")
	return w.fatal
}

// Shutdown tears the zone down in dependency order. Each step runs even if an earlier one failed;
// the failures are joined into the returned error. Afterwards region queries report
// spatial.ErrShutdown.
func (w *World) Shutdown(_ context.Context) error {
	prev := w.stage.Swap(stage.ShuttingDown)
	if prev == stage.ShutDown || prev == stage.ShuttingDown {
		w.stage.Swap(prev)
		return nil
	}
	defer w.stage.Swap(stage.ShutDown)

	var errs []error
	step := func(name string, fn func() error) {
		if err := runStep(name, fn); err != nil {
			w.log.Error().Err(err).Str("step", name).Msg("Shutdown step failed")
			errs = append(errs, err)
		}
	}

	// Queued, not awaited: the dispatcher runs pending jobs before it stops.
	if prev == stage.Running {
		w.saveGlobalTick()
	}

	step("scripts", func() error {
		for _, s := range w.worldScr {
			w.scripts.Remove(s)
		}
		w.scripts.RemoveAll()
		return nil
	})

	// The account view shrinks as players are destroyed, so walk a snapshot.
	step("players", func() error {
		for _, acc := range w.registry.Accounts() {
			if e, ok := w.registry.PlayerByAccount(acc); ok {
				w.DestroyObject(e.ID)
			}
		}
		return nil
	})

	// Entity teardown may cancel its own tasks, so the schedulers go only after the players, and
	// the subsystem family goes last.
	step("schedulers", func() error {
		for f := range familyCount {
			if f != famSubsystem {
				w.families[f].Close()
			}
		}
		w.families[famSubsystem].Close()
		clear(w.tasks)
		clear(w.owners)
		clear(w.buffs)
		return nil
	})

	step("auxiliary sets", func() error {
		clear(w.playersToRemove)
		clear(w.busyCraftTools)
		clear(w.activeRegions)
		w.creatureDeletion.Clear()
		w.playerRevive.Clear()
		w.conversations.Clear()
		clear(w.conversationNPC)
		for _, bucket := range w.npcTiers {
			clear(bucket)
		}
		w.adminRequests.Clear()
		return nil
	})

	// The tutorial container is removed by hand: the generic sweep cannot guarantee its contents
	// are gone before it.
	step("tutorial container", func() error {
		id := w.opts.TutorialContainerID
		if _, _, ok := entity.Get[*entity.Container](w.registry, id); !ok {
			return nil
		}
		w.DestroyObject(id)
		w.log.Info().Stringer("container_id", id).Msg("Removed tutorial container")
		return nil
	})

	// Structures leave the primary map before the bulk clear so that no structure outlives, or is
	// outlived by, the entities nested in it.
	step("structures", func() error {
		for _, id := range w.registry.Structures() {
			w.registry.Unregister(id)
		}
		return nil
	})

	step("region index", func() error {
		return w.regions.Shutdown()
	})

	step("registry", func() error {
		w.registry.Clear()
		return nil
	})

	w.log.Info().Int("failed_steps", len(errs)).Msg("World shut down")
	return errors.Join(errs...)
}

func runStep(name string, fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = eris.Errorf("shutdown step %q panicked: %v", name, r)
		}
	}()
	if stepErr := fn(); stepErr != nil {
		return eris.Wrapf(stepErr, "shutdown step %q", name)
	}
	return nil
}
