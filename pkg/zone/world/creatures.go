package world

import (
	"github.com/argus-labs/zone-engine/pkg/messaging"
	"github.com/argus-labs/zone-engine/pkg/zone/entity"
	"github.com/argus-labs/zone-engine/pkg/zone/scheduler"
	"github.com/rotisserie/eris"
)

// Buff is a timed effect on a creature. It ticks every TickLength milliseconds until Remaining runs
// out; the last tick is shortened to end exactly on time.
type Buff struct {
	Name       string
	TickLength uint64
	Remaining  uint64
}

func (w *World) regenerateHam(e *entity.Entity) scheduler.Result {
	c, ok := entity.CreatureOf(e)
	if !ok {
		return scheduler.Stop
	}
	v := &c.Vitals
	if c.Dead {
		return scheduler.Continue
	}
	if v.Health >= v.MaxHealth {
		return scheduler.Stop
	}
	v.Health = min(v.Health+max(v.RegenRate, 1), v.MaxHealth)
	w.notifier.Notify(messaging.ToEntity(uint64(e.ID)), messaging.HamUpdate{Health: v.Health, MaxHealth: v.MaxHealth})
	if v.Health == v.MaxHealth {
		return scheduler.Stop
	}
	return scheduler.Continue
}

// digest empties one point of food or drink. The task stops once that side of the stomach is empty.
func (w *World) digest(e *entity.Entity, food bool) scheduler.Result {
	c, ok := entity.CreatureOf(e)
	if !ok {
		return scheduler.Stop
	}
	level := &c.Stomach.Drink
	if food {
		level = &c.Stomach.Food
	}
	if *level <= 0 {
		*level = 0
		return scheduler.Stop
	}
	*level--
	w.notifier.Notify(messaging.ToEntity(uint64(e.ID)),
		messaging.StomachUpdate{Food: c.Stomach.Food, Drink: c.Stomach.Drink})
	if *level == 0 {
		return scheduler.Stop
	}
	return scheduler.Continue
}

func (w *World) logoutTick(e *entity.Entity) scheduler.Result {
	p, ok := entity.As[*entity.Player](e)
	if !ok {
		return scheduler.Stop
	}
	p.LogoutCountdown--
	w.notifier.Notify(messaging.ToEntity(uint64(e.ID)), messaging.LogoutCountdown{Remaining: max(p.LogoutCountdown, 0)})
	if p.LogoutCountdown > 0 {
		return scheduler.Continue
	}
	w.logoutPlayer(e.ID, p)
	return scheduler.Stop
}

func (w *World) performanceTick(e *entity.Entity) scheduler.Result {
	c, ok := entity.CreatureOf(e)
	if !ok || !c.Performing {
		return scheduler.Stop
	}
	w.notifier.Notify(messaging.ToEntity(uint64(e.ID)), messaging.PerformanceTick{PerformerID: uint64(e.ID)})
	return scheduler.Continue
}

func (w *World) notifyImageDesignTimeout(e *entity.Entity) {
	w.notifier.Notify(messaging.ToEntity(uint64(e.ID)), messaging.ImageDesignTimeout{DesignerID: uint64(e.ID)})
}

func (w *World) checkMission(e *entity.Entity, now uint64) scheduler.Result {
	m, ok := entity.As[*entity.Mission](e)
	if !ok {
		return scheduler.Stop
	}
	if m.ExpiresAt == 0 || now < m.ExpiresAt {
		return scheduler.Continue
	}
	if m.OwnerID != 0 {
		w.notifier.Notify(messaging.ToEntity(uint64(m.OwnerID)), messaging.MissionExpired{MissionID: uint64(e.ID)})
	}
	w.DestroyObject(e.ID)
	return scheduler.Stop
}

// AddBuffToProcess starts a buff on a creature. The scheduler keeps its own copy of b.
func (w *World) AddBuffToProcess(id entity.ID, b Buff) (scheduler.Handle, error) {
	if b.TickLength == 0 || b.Remaining == 0 {
		return 0, eris.Wrapf(ErrInvalidBuff, "buff %q", b.Name)
	}
	h, err := w.arm(famBuff, id, opBuff, 1, min(b.TickLength, b.Remaining))
	if err != nil {
		return 0, err
	}
	w.buffs[h] = &b
	return h, nil
}

func (w *World) RemoveBuffToProcess(h scheduler.Handle) {
	w.disarm(famBuff, h)
}

// BuffRemaining returns how long the buff behind h still runs.
func (w *World) BuffRemaining(h scheduler.Handle) (uint64, bool) {
	b, ok := w.buffs[h]
	if !ok {
		return 0, false
	}
	return b.Remaining, true
}

func (w *World) buffTick(e *entity.Entity, h scheduler.Handle, t scheduler.Task) scheduler.Result {
	b, ok := w.buffs[h]
	if !ok {
		return scheduler.Stop
	}
	b.Remaining -= min(t.Period, b.Remaining)
	scope := messaging.ToEntity(uint64(e.ID))
	if b.Remaining == 0 {
		delete(w.buffs, h)
		w.notifier.Notify(scope, messaging.BuffExpired{Buff: b.Name})
		return scheduler.Stop
	}
	ticksLeft := (b.Remaining + b.TickLength - 1) / b.TickLength
	w.notifier.Notify(scope, messaging.BuffTick{Buff: b.Name, TicksLeft: uint32(ticksLeft)}) //nolint:gosec // small
	return scheduler.ContinueAfter(min(b.TickLength, b.Remaining))
}
