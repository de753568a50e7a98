package world

import (
	"github.com/argus-labs/zone-engine/pkg/zone/entity"
	"github.com/argus-labs/zone-engine/pkg/zone/scheduler"
	"github.com/rotisserie/eris"
)

// family is one independent scheduler. Families are processed in declaration order.
type family uint8

const (
	famHamRegen family = iota
	famStomach
	famSubsystem
	famObjController
	famPlayer
	famEntertainer
	famBuff
	famMission
	famNpcManager
	famAdmin
	familyCount
)

var familyNames = [...]string{ //nolint:gochecknoglobals // lookup table
	famHamRegen:      "ham_regen",
	famStomach:       "stomach",
	famSubsystem:     "subsystem",
	famObjController: "obj_controller",
	famPlayer:        "player",
	famEntertainer:   "entertainer",
	famBuff:          "buff",
	famMission:       "mission",
	famNpcManager:    "npc_manager",
	famAdmin:         "admin",
}

func (f family) String() string {
	if f >= familyCount {
		return "unknown"
	}
	return familyNames[f]
}

// Operation tags. Subsystem operations target the zone itself (Target 0); the rest target the
// entity they were armed for.
const (
	opGlobalTick scheduler.Op = iota + 1
	opShuttles
	opServerTime
	opDisconnectSweep
	opRegions
	opCraftTools
	opPlayerSave
	opObjectTimers
	opGroupMissions
	opNpcDormant
	opNpcReady
	opNpcActive
	opAdminRequests

	opHamRegen
	opFood
	opDrink
	opCommands
	opLogout
	opPerformance
	opImageDesign
	opBuff
	opMission
)

// Periods in milliseconds.
const (
	second            = 1000
	regionPeriod      = 2000
	playerSavePeriod  = 120000
	objectTimerPeriod = 2000
	npcDormantPeriod  = 2500
	npcReadyPeriod    = 1000
	npcActivePeriod   = 250
	adminPeriod       = 5000
	commandPeriod     = 125
	missionPeriod     = 10000
)

type taskRef struct {
	family family
	handle scheduler.Handle
}

func (w *World) executorFor(f family) scheduler.Executor {
	return scheduler.ExecutorFunc(func(now uint64, h scheduler.Handle, t scheduler.Task) scheduler.Result {
		res := w.execute(now, h, t)
		if res == scheduler.Stop {
			w.untrack(taskRef{family: f, handle: h})
		}
		return res
	})
}

// execute resolves a task's operation tag. Entity-targeted operations resolve their target again on
// every run and stop once it is gone.
func (w *World) execute(now uint64, h scheduler.Handle, t scheduler.Task) scheduler.Result {
	switch t.Op {
	case opGlobalTick:
		w.globalTick += second
		return scheduler.Continue
	case opShuttles:
		w.handleShuttleUpdate()
		return scheduler.Continue
	case opServerTime:
		w.handleServerTimeUpdate()
		return scheduler.Continue
	case opDisconnectSweep:
		w.handleDisconnectUpdate()
		return scheduler.Continue
	case opRegions:
		w.handleRegionUpdate(now)
		return scheduler.Continue
	case opCraftTools:
		w.handleCraftToolTimers(now)
		return scheduler.Continue
	case opPlayerSave:
		w.handlePlayerSaveTimers()
		return scheduler.Continue
	case opObjectTimers:
		w.handleGeneralObjectTimers(now)
		return scheduler.Continue
	case opGroupMissions:
		w.handleGroupMissionTimers()
		return scheduler.Continue
	case opNpcDormant:
		w.handleNpcTier(NPCDormant)
		return scheduler.Continue
	case opNpcReady:
		w.handleNpcTier(NPCReady)
		return scheduler.Continue
	case opNpcActive:
		w.handleNpcTier(NPCActive)
		return scheduler.Continue
	case opAdminRequests:
		w.handleAdminRequests(now)
		return scheduler.Continue
	}

	target := entity.ID(t.Target)
	e, ok := w.registry.Lookup(target)
	if !ok {
		w.log.Debug().Err(eris.Wrapf(ErrUnresolvedReference, "task %d", h)).Stringer("target", target).
			Uint16("op", uint16(t.Op)).Msg("Task target is gone, stopping")
		if t.Op == opBuff {
			delete(w.buffs, h)
		}
		return scheduler.Stop
	}

	switch t.Op {
	case opHamRegen:
		return w.regenerateHam(e)
	case opFood:
		return w.digest(e, true)
	case opDrink:
		return w.digest(e, false)
	case opCommands:
		if w.commands.ProcessCommands(target) {
			return scheduler.Continue
		}
		return scheduler.Stop
	case opLogout:
		return w.logoutTick(e)
	case opPerformance:
		return w.performanceTick(e)
	case opImageDesign:
		w.notifyImageDesignTimeout(e)
		return scheduler.Stop
	case opBuff:
		return w.buffTick(e, h, t)
	case opMission:
		return w.checkMission(e, now)
	default:
		w.log.Error().Uint16("op", uint16(t.Op)).Msg("Unknown task operation")
		return scheduler.Stop
	}
}

// arm schedules an entity-targeted task and remembers it so that DestroyObject can cancel it.
func (w *World) arm(f family, target entity.ID, op scheduler.Op, prio uint8, period uint64) (scheduler.Handle, error) {
	if _, ok := w.registry.Lookup(target); !ok {
		return 0, eris.Wrapf(ErrUnresolvedReference, "cannot schedule entity %d", target)
	}
	h, err := w.families[f].AddTask(scheduler.Task{
		Target:   uint64(target),
		Op:       op,
		Priority: prio,
		Period:   period,
	})
	if err != nil {
		return 0, err
	}
	ref := taskRef{family: f, handle: h}
	set, ok := w.tasks[target]
	if !ok {
		set = make(map[taskRef]struct{})
		w.tasks[target] = set
	}
	set[ref] = struct{}{}
	w.owners[ref] = target
	return h, nil
}

// armSubsystem schedules a zone-wide task. Failing to arm one is fatal for the zone.
func (w *World) armSubsystem(f family, op scheduler.Op, priority uint8, period uint64) (scheduler.Handle, error) {
	h, err := w.families[f].AddTask(scheduler.Task{Op: op, Priority: priority, Period: period})
	if err != nil {
		return 0, eris.Wrapf(err, "failed to arm %s task %d", f, op)
	}
	return h, nil
}

func (w *World) disarm(f family, h scheduler.Handle) {
	w.families[f].RemoveTask(h)
	w.untrack(taskRef{family: f, handle: h})
	if f == famBuff {
		delete(w.buffs, h)
	}
}

func (w *World) untrack(ref taskRef) {
	owner, ok := w.owners[ref]
	if !ok {
		return
	}
	delete(w.owners, ref)
	if set := w.tasks[owner]; set != nil {
		delete(set, ref)
		if len(set) == 0 {
			delete(w.tasks, owner)
		}
	}
}

// disarmAll cancels every task armed for id.
func (w *World) disarmAll(id entity.ID) {
	for ref := range w.tasks[id] {
		w.disarm(ref.family, ref.handle)
	}
}

// disarmFamily cancels the tasks armed for id in one family.
func (w *World) disarmFamily(id entity.ID, f family) {
	for ref := range w.tasks[id] {
		if ref.family == f {
			w.disarm(ref.family, ref.handle)
		}
	}
}

// TasksOf returns how many tasks are armed for id.
func (w *World) TasksOf(id entity.ID) int {
	return len(w.tasks[id])
}

// AddCreatureHamToProcess regenerates a creature's health every second until it is full.
func (w *World) AddCreatureHamToProcess(id entity.ID) (scheduler.Handle, error) {
	return w.arm(famHamRegen, id, opHamRegen, 1, second)
}

func (w *World) RemoveCreatureHamToProcess(h scheduler.Handle) {
	w.disarm(famHamRegen, h)
}

func (w *World) CheckHamTask(h scheduler.Handle) bool {
	return w.families[famHamRegen].CheckTask(h)
}

// AddCreatureFoodToProcess digests a creature's food at its own interval.
func (w *World) AddCreatureFoodToProcess(id entity.ID) (scheduler.Handle, error) {
	c, err := w.creature(id)
	if err != nil {
		return 0, err
	}
	return w.arm(famStomach, id, opFood, 1, max(c.Stomach.FoodInterval, 1))
}

func (w *World) AddCreatureDrinkToProcess(id entity.ID) (scheduler.Handle, error) {
	c, err := w.creature(id)
	if err != nil {
		return 0, err
	}
	return w.arm(famStomach, id, opDrink, 1, max(c.Stomach.DrinkInterval, 1))
}

func (w *World) RemoveCreatureStomachToProcess(h scheduler.Handle) {
	w.disarm(famStomach, h)
}

func (w *World) CheckStomachTask(h scheduler.Handle) bool {
	return w.families[famStomach].CheckTask(h)
}

// AddObjControllerToProcess drains an entity's command queue every 125ms while commands remain.
// Players that are link-dead or being destroyed are refused.
func (w *World) AddObjControllerToProcess(id entity.ID) (scheduler.Handle, error) {
	if e, ok := w.registry.Lookup(id); ok {
		if p, isPlayer := entity.As[*entity.Player](e); isPlayer &&
			(p.Conn == entity.ConnLinkDead || p.Conn == entity.ConnDestroying) {
			return 0, eris.Wrapf(ErrTaskRefused, "player %d in connection state %d", id, p.Conn)
		}
	}
	return w.arm(famObjController, id, opCommands, 1, commandPeriod)
}

func (w *World) RemoveObjControllerToProcess(h scheduler.Handle) {
	w.disarm(famObjController, h)
}

// AddPlayerLogoutToProcess starts a logout countdown of seconds.
func (w *World) AddPlayerLogoutToProcess(id entity.ID, seconds int32) (scheduler.Handle, error) {
	_, p, ok := entity.Get[*entity.Player](w.registry, id)
	if !ok {
		return 0, eris.Wrapf(ErrUnresolvedReference, "player %d", id)
	}
	p.LogoutCountdown = seconds
	return w.arm(famPlayer, id, opLogout, 1, second)
}

func (w *World) RemovePlayerLogoutToProcess(h scheduler.Handle) {
	w.disarm(famPlayer, h)
}

// AddEntertainerToProcess runs a performance tick every tick milliseconds while the creature
// performs.
func (w *World) AddEntertainerToProcess(id entity.ID, tick uint64) (scheduler.Handle, error) {
	return w.arm(famEntertainer, id, opPerformance, 1, tick)
}

// AddImageDesignerToProcess times out an image design session after tick milliseconds.
func (w *World) AddImageDesignerToProcess(id entity.ID, tick uint64) (scheduler.Handle, error) {
	return w.arm(famEntertainer, id, opImageDesign, 1, tick)
}

func (w *World) RemoveEntertainerToProcess(h scheduler.Handle) {
	w.disarm(famEntertainer, h)
}

// AddMissionToProcess checks a mission for expiry every ten seconds.
func (w *World) AddMissionToProcess(id entity.ID) (scheduler.Handle, error) {
	return w.arm(famMission, id, opMission, 1, missionPeriod)
}

func (w *World) RemoveMissionFromProcess(h scheduler.Handle) {
	w.disarm(famMission, h)
}

func (w *World) CheckForMissionProcess(h scheduler.Handle) bool {
	return w.families[famMission].CheckTask(h)
}

func (w *World) creature(id entity.ID) (*entity.Creature, error) {
	e, ok := w.registry.Lookup(id)
	if !ok {
		return nil, eris.Wrapf(ErrUnresolvedReference, "creature %d", id)
	}
	c, ok := entity.CreatureOf(e)
	if !ok {
		return nil, eris.Wrapf(ErrTaskRefused, "entity %d is a %s", id, e.Kind())
	}
	return c, nil
}
