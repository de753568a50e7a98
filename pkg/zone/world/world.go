// Package world is the simulation core of a zone. It owns the entity registry, the region index and
// the scheduler families, and it hosts the periodic handlers those schedulers run.
//
// Everything in this package runs on the simulation goroutine: the one that calls Process. Storage
// results reach it through the persistence dispatcher's mailbox, which Process drains first.
package world

import (
	"context"
	"time"

	"github.com/argus-labs/zone-engine/pkg/messaging"
	"github.com/argus-labs/zone-engine/pkg/persistence"
	"github.com/argus-labs/zone-engine/pkg/script"
	"github.com/argus-labs/zone-engine/pkg/telemetry"
	"github.com/argus-labs/zone-engine/pkg/zone/entity"
	"github.com/argus-labs/zone-engine/pkg/zone/scheduler"
	"github.com/argus-labs/zone-engine/pkg/zone/spatial"
	"github.com/argus-labs/zone-engine/pkg/zone/stage"
	"github.com/rotisserie/eris"
	"github.com/rs/zerolog"
)

// Deps are the collaborators of a World. Dispatcher is required; the rest have defaults.
type Deps struct {
	Dispatcher *persistence.Dispatcher
	Notifier   messaging.Notifier
	Scripts    *script.Engine
	Metrics    *telemetry.Metrics
	Logger     *zerolog.Logger

	// Clock returns the simulation time in milliseconds. Defaults to time since New.
	Clock func() uint64

	NPCs     NPCHandler
	Admin    AdminHandler
	Commands CommandProcessor

	// WorldScripts run once the load completes.
	WorldScripts []*script.Script
}

type World struct {
	opts Options
	log  zerolog.Logger

	// Collaborators
	db       *persistence.Dispatcher
	notifier messaging.Notifier
	scripts  *script.Engine
	metrics  *telemetry.Metrics
	clock    func() uint64
	npcs     NPCHandler
	admin    AdminHandler
	commands CommandProcessor

	// Core modules
	stage    *stage.Manager
	registry *entity.Registry
	regions  *spatial.ZoneTree
	families [familyCount]*scheduler.Scheduler
	tasks    map[entity.ID]map[taskRef]struct{}
	owners   map[taskRef]entity.ID
	buffs    map[scheduler.Handle]*Buff
	worldScr []*script.Script

	// Startup load
	expected     int
	countKnown   bool
	loaded       int
	loadDeadline uint64
	fatal        error

	// Auxiliary sets, all keyed by entity identifier
	playersToRemove  map[entity.ID]struct{}
	busyCraftTools   map[entity.ID]struct{}
	activeRegions    map[entity.ID]struct{}
	creatureDeletion *scheduler.PendingTimers[entity.ID]
	playerRevive     *scheduler.PendingTimers[entity.ID]
	conversations    *scheduler.PendingTimers[entity.ID]
	conversationNPC  map[entity.ID]entity.ID
	npcTiers         [npcTierCount]map[entity.ID]struct{}
	adminRequests    *scheduler.PendingTimers[uint64]

	// Clocks
	globalTick uint64
	serverTime uint64

	nextNonPersistent entity.ID
}

const npcTierCount = int(NPCActive) + 1

// New builds a World in the StartUp stage. It performs the only blocking storage read of the zone,
// the global tick, before anything else can observe the world. Failing to build the region index or
// a scheduler family is fatal.
func New(ctx context.Context, opts Options, deps Deps) (*World, error) {
	if err := opts.validate(); err != nil {
		return nil, err
	}
	if deps.Dispatcher == nil {
		return nil, eris.Wrap(ErrMissingDep, "persistence dispatcher")
	}

	log := telemetry.GetGlobalLogger("world")
	if deps.Logger != nil {
		log = *deps.Logger
	}
	if deps.Notifier == nil {
		deps.Notifier = messaging.NewLogNotifier(log)
	}
	if deps.Scripts == nil {
		deps.Scripts = script.NewEngine(log)
	}
	if deps.Metrics == nil {
		deps.Metrics = telemetry.NopMetrics()
	}
	if deps.Clock == nil {
		start := time.Now()
		deps.Clock = func() uint64 { return uint64(time.Since(start).Milliseconds()) }
	}
	if deps.NPCs == nil {
		deps.NPCs = nopNPCHandler{}
	}
	if deps.Admin == nil {
		deps.Admin = nopAdminHandler{}
	}
	if deps.Commands == nil {
		deps.Commands = nopCommandProcessor{}
	}

	regions, err := spatial.New(opts.Spatial)
	if err != nil {
		return nil, eris.Wrap(err, "failed to initialize the region index")
	}

	w := &World{
		opts:     opts,
		log:      log.With().Uint32("zone_id", opts.ZoneID).Logger(),
		db:       deps.Dispatcher,
		notifier: deps.Notifier,
		scripts:  deps.Scripts,
		metrics:  deps.Metrics,
		clock:    deps.Clock,
		npcs:     deps.NPCs,
		admin:    deps.Admin,
		commands: deps.Commands,
		worldScr: deps.WorldScripts,

		stage:    stage.NewManager(),
		registry: entity.NewRegistry(),
		regions:  regions,
		tasks:    make(map[entity.ID]map[taskRef]struct{}),
		owners:   make(map[taskRef]entity.ID),
		buffs:    make(map[scheduler.Handle]*Buff),

		playersToRemove:  make(map[entity.ID]struct{}),
		busyCraftTools:   make(map[entity.ID]struct{}),
		activeRegions:    make(map[entity.ID]struct{}),
		creatureDeletion: scheduler.NewPendingTimers[entity.ID](),
		playerRevive:     scheduler.NewPendingTimers[entity.ID](),
		conversations:    scheduler.NewPendingTimers[entity.ID](),
		conversationNPC:  make(map[entity.ID]entity.ID),
		adminRequests:    scheduler.NewPendingTimers[uint64](),

		nextNonPersistent: firstNonPersistentID,
	}
	for i := range w.npcTiers {
		w.npcTiers[i] = make(map[entity.ID]struct{})
	}

	for f := range familyCount {
		s, err := scheduler.New(scheduler.Options{
			Name:     f.String(),
			Executor: w.executorFor(f),
			Clock:    w.clock,
			Metrics:  w.metrics,
		})
		if err != nil {
			return nil, eris.Wrapf(err, "failed to create the %s scheduler", f)
		}
		w.families[f] = s
	}

	tick, err := w.db.SubmitSync(ctx, func(ctx context.Context, s persistence.Store) (any, error) {
		return s.LoadGlobalTick(ctx)
	})
	if err != nil {
		return nil, eris.Wrap(err, "failed to load the global tick")
	}
	w.globalTick = tick.(uint64) //nolint:errcheck // LoadGlobalTick returns uint64

	w.scripts.RegisterFunction("systemMessage", func(text string) bool {
		w.ZoneSystemMessage(text)
		return true
	})

	w.log.Info().Uint64("global_tick", w.globalTick).Msg("World created")
	return w, nil
}

func (w *World) Stage() stage.Stage           { return w.stage.Current() }
func (w *World) Registry() *entity.Registry   { return w.registry }
func (w *World) GlobalTick() uint64           { return w.globalTick }
func (w *World) ServerTime() uint64           { return w.serverTime }
func (w *World) ZoneID() uint32               { return w.opts.ZoneID }
func (w *World) Logger() *zerolog.Logger      { return &w.log }
func (w *World) Notifier() messaging.Notifier { return w.notifier }

// GetObjectByID resolves id through the registry.
func (w *World) GetObjectByID(id entity.ID) (*entity.Entity, bool) {
	return w.registry.Lookup(id)
}

// ExistObject reports whether e is still the live entity under its identifier.
func (w *World) ExistObject(e *entity.Entity) bool {
	return w.registry.Exists(e)
}

// AddObject registers e. Regions are indexed spatially as well, so that a region is in the index
// exactly when it is in the registry.
func (w *World) AddObject(e *entity.Entity) error {
	if err := w.registry.Register(e); err != nil {
		return err
	}

	switch b := e.Body.(type) {
	case *entity.Region:
		err := w.regions.InsertRegion(spatial.Key(e.ID), float64(e.Position.X), float64(e.Position.Z),
			b.Width, b.Height)
		if err != nil {
			w.registry.Unregister(e.ID)
			return eris.Wrapf(err, "failed to index region %d", e.ID)
		}
		if b.Active {
			w.activeRegions[e.ID] = struct{}{}
		}
	case *entity.Shuttle:
		if b.LandingDuration < shuttleBoardingLead {
			b.LandingDuration = w.opts.ShuttleLandingTime
		}
	case *entity.CraftingTool:
		// A stored LastUpdate comes from another process's clock.
		b.LastUpdate = w.clock()
		if b.RemainingMs > 0 {
			w.busyCraftTools[e.ID] = struct{}{}
		}
	case *entity.Player:
		w.log.Info().Stringer("player_id", e.ID).Int("players", len(w.registry.Accounts())).
			Msg("Player entered")
		w.scripts.Emit(script.EventPlayerEntered, w.playerVars(e, b))
	}
	return nil
}

// DestroyObject removes id and everything it contains, contents first. Every task armed for a
// removed entity is cancelled and it is dropped from every auxiliary set. It reports whether id
// was registered.
func (w *World) DestroyObject(id entity.ID) bool {
	if _, ok := w.registry.Lookup(id); !ok {
		return false
	}
	for _, victim := range w.containmentOrder(id) {
		w.destroyOne(victim)
	}
	return true
}

// containmentOrder lists id and all its transitive contents so that every entity comes after its
// contents. The visited set keeps a corrupted parent chain from looping.
func (w *World) containmentOrder(id entity.ID) []entity.ID {
	type frame struct {
		id       entity.ID
		expanded bool
	}
	visited := map[entity.ID]struct{}{id: {}}
	stack := []frame{{id: id}}
	var order []entity.ID

	for len(stack) > 0 {
		top := &stack[len(stack)-1]
		if top.expanded {
			order = append(order, top.id)
			stack = stack[:len(stack)-1]
			continue
		}
		top.expanded = true
		for _, child := range w.registry.Children(top.id) {
			if _, seen := visited[child]; seen {
				continue
			}
			visited[child] = struct{}{}
			stack = append(stack, frame{id: child})
		}
	}
	return order
}

func (w *World) destroyOne(id entity.ID) {
	e, ok := w.registry.Lookup(id)
	if !ok {
		return
	}

	w.disarmAll(id)
	delete(w.playersToRemove, id)
	delete(w.busyCraftTools, id)
	delete(w.activeRegions, id)
	w.creatureDeletion.Cancel(id)
	w.playerRevive.Cancel(id)
	w.conversations.Cancel(id)
	delete(w.conversationNPC, id)
	for _, bucket := range w.npcTiers {
		delete(bucket, id)
	}

	switch b := e.Body.(type) {
	case *entity.Region:
		if err := w.regions.RemoveRegion(spatial.Key(id)); err != nil {
			w.log.Warn().Err(err).Stringer("region_id", id).Msg("Failed to unindex region")
		}
	case *entity.Player:
		w.RemovePlayerFromAccountMap(id)
		w.scripts.Emit(script.EventPlayerLeft, w.playerVars(e, b))
	}

	w.registry.Unregister(id)
	w.notifier.Notify(messaging.ToEntity(uint64(id)), messaging.ObjectDestroyed{ObjectID: uint64(id)})
}

// RemovePlayerFromAccountMap drops a player from the account view used for zone broadcasts.
func (w *World) RemovePlayerFromAccountMap(id entity.ID) {
	e, p, ok := entity.Get[*entity.Player](w.registry, id)
	if !ok {
		w.log.Warn().Stringer("player_id", id).Msg("Cannot remove unknown player from the account map")
		return
	}
	if cur, found := w.registry.PlayerByAccount(p.AccountID); !found || cur != e {
		w.log.Warn().Uint64("account_id", uint64(p.AccountID)).Msg("Account not in the account map")
		return
	}
	w.registry.RemoveAccount(p.AccountID)
	w.log.Info().Stringer("player_id", id).Int("players", len(w.registry.Accounts())).Msg("Player left")
}

// NextNonPersistentID allocates an identifier for an object that is never stored.
func (w *World) NextNonPersistentID() entity.ID {
	for {
		id := w.nextNonPersistent
		w.nextNonPersistent++
		if _, taken := w.registry.Lookup(id); !taken {
			return id
		}
	}
}

// RegionsAt returns the regions containing the point (x, z). After shutdown it reports
// spatial.ErrShutdown.
func (w *World) RegionsAt(x, z float64) ([]entity.ID, error) {
	keys, err := w.regions.RegionsAt(x, z)
	if err != nil {
		return nil, err
	}
	return keysToIDs(keys), nil
}

// RegionsNear returns the regions within the configured horizon of (x, z).
func (w *World) RegionsNear(x, z float64) ([]entity.ID, error) {
	keys, err := w.regions.RegionsNear(x, z)
	if err != nil {
		return nil, err
	}
	return keysToIDs(keys), nil
}

func keysToIDs(keys []spatial.Key) []entity.ID {
	out := make([]entity.ID, len(keys))
	for i, k := range keys {
		out[i] = entity.ID(k)
	}
	return out
}

func (w *World) playerVars(e *entity.Entity, p *entity.Player) map[string]any {
	return map[string]any{
		"playerId":  uint64(e.ID),
		"accountId": uint64(p.AccountID),
		"tick":      w.globalTick,
	}
}
