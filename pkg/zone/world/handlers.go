package world

import (
	"maps"
	"slices"
	"strconv"

	"github.com/argus-labs/zone-engine/pkg/messaging"
	"github.com/argus-labs/zone-engine/pkg/zone/entity"
)

const (
	craftToolStatusReady = "@crafting:tool_status_ready"
	attrCraftToolStatus  = "craft_tool_status"
	attrCraftToolTime    = "craft_tool_time"
	msgPrototypeReady    = "prototype_transferred"
)

func sortedIDs(set map[entity.ID]struct{}) []entity.ID {
	return slices.Sorted(maps.Keys(set))
}

// handleDisconnectUpdate counts down link-dead players and logs out those whose time ran out.
func (w *World) handleDisconnectUpdate() {
	for _, id := range sortedIDs(w.playersToRemove) {
		_, p, ok := entity.Get[*entity.Player](w.registry, id)
		if !ok {
			delete(w.playersToRemove, id)
			continue
		}
		p.DisconnectTimer--
		if p.DisconnectTimer > 0 || !p.LinkDead {
			continue
		}
		delete(w.playersToRemove, id)
		w.logoutPlayer(id, p)
	}
}

// logoutPlayer starts the removal of a player: it stops command processing, leaves the group and
// saves the player. The player is destroyed when the save completes.
func (w *World) logoutPlayer(id entity.ID, p *entity.Player) {
	p.LinkDead = false
	p.Conn = entity.ConnDestroying
	w.disarmFamily(id, famObjController)
	w.removeFromGroup(id, p)

	e, _ := w.registry.Lookup(id)
	if err := w.saveObject(e, logoutQuery{playerID: id}); err != nil {
		w.log.Warn().Err(err).Stringer("player_id", id).Msg("Failed to queue logout save, removing player unsaved")
		w.DestroyObject(id)
	}
}

func (w *World) removeFromGroup(id entity.ID, p *entity.Player) {
	if p.GroupID == 0 {
		return
	}
	if _, g, ok := entity.Get[*entity.Group](w.registry, p.GroupID); ok {
		g.Members = slices.DeleteFunc(g.Members, func(m entity.ID) bool { return m == id })
	}
	p.GroupID = 0
}

// handleRegionUpdate destroys active regions whose lifetime ran out, such as expired camps.
func (w *World) handleRegionUpdate(now uint64) {
	var expired []entity.ID
	for _, id := range sortedIDs(w.activeRegions) {
		_, r, ok := entity.Get[*entity.Region](w.registry, id)
		if !ok {
			delete(w.activeRegions, id)
			continue
		}
		if r.ExpiresAt != 0 && r.ExpiresAt <= now {
			expired = append(expired, id)
		}
	}
	for _, id := range expired {
		delete(w.activeRegions, id)
		w.DestroyObject(id)
	}
}

// handleCraftToolTimers advances busy crafting tools. A finished tool hands its prototype to the
// owner's inventory and reports ready.
func (w *World) handleCraftToolTimers(now uint64) {
	for _, id := range sortedIDs(w.busyCraftTools) {
		tool, t, ok := entity.Get[*entity.CraftingTool](w.registry, id)
		if !ok {
			w.log.Debug().Stringer("tool_id", id).Msg("Busy crafting tool is gone")
			delete(w.busyCraftTools, id)
			continue
		}
		owner, p, ok := w.craftToolOwner(tool)
		if !ok {
			continue
		}

		elapsed := uint64(second)
		if t.LastUpdate != 0 && now > t.LastUpdate {
			elapsed = now - t.LastUpdate
		}
		t.RemainingMs -= int64(elapsed)
		t.LastUpdate = now
		scope := messaging.ToEntity(uint64(owner))

		if t.RemainingMs > 0 {
			w.notifier.Notify(scope, messaging.TimerUpdate{ToolID: uint64(id), RemainingMs: t.RemainingMs})
			w.saveItemAttribute(id, attrCraftToolTime, strconv.FormatInt(t.RemainingMs/second, 10))
			continue
		}

		t.RemainingMs = 0
		if t.PendingItem != nil {
			if !w.transferPrototype(owner, p, t) {
				continue
			}
		}
		w.notifier.Notify(scope, messaging.TimerUpdate{ToolID: uint64(id), RemainingMs: 0})
		delete(w.busyCraftTools, id)
		t.Status = craftToolStatusReady
		w.saveItemAttribute(id, attrCraftToolStatus, craftToolStatusReady)
		w.saveItemAttribute(id, attrCraftToolTime, "0")
	}
}

// craftToolOwner resolves the player holding a tool through the inventory it sits in.
func (w *World) craftToolOwner(tool *entity.Entity) (entity.ID, *entity.Player, bool) {
	inv, ok := w.registry.Lookup(tool.ParentID)
	if !ok {
		return 0, nil, false
	}
	if p, isPlayer := entity.As[*entity.Player](inv); isPlayer {
		return inv.ID, p, true
	}
	owner, p, ok := entity.Get[*entity.Player](w.registry, inv.ParentID)
	if !ok {
		return 0, nil, false
	}
	return owner.ID, p, true
}

func (w *World) transferPrototype(owner entity.ID, p *entity.Player, t *entity.CraftingTool) bool {
	if _, ok := w.registry.Lookup(p.InventoryID); !ok {
		return false
	}
	item := &entity.Entity{ID: t.PendingItemID, ParentID: p.InventoryID, Body: t.PendingItem}
	if err := w.AddObject(item); err != nil {
		w.log.Warn().Err(err).Stringer("item_id", item.ID).Msg("Failed to add crafted prototype")
		return false
	}
	scope := messaging.ToEntity(uint64(owner))
	w.notifier.Notify(scope, messaging.ObjectCreated{
		ObjectID: uint64(item.ID),
		ParentID: uint64(item.ParentID),
		Kind:     item.Kind().String(),
	})
	w.notifier.Notify(scope, messaging.SystemMessage{Text: msgPrototypeReady})
	t.PendingItem = nil
	t.PendingItemID = 0
	return true
}

// handleServerTimeUpdate advances the zone clock and sends it to every connected player.
func (w *World) handleServerTimeUpdate() {
	w.serverTime += w.opts.ServerTimeInterval + w.opts.ServerTimeSpeed
	w.forEachConnected(func(id entity.ID) {
		w.notifier.Notify(messaging.ToEntity(uint64(id)), messaging.ServerTime{Time: w.serverTime})
	})
}

// handlePlayerSaveTimers stores every player and the global tick.
func (w *World) handlePlayerSaveTimers() {
	for _, acc := range w.registry.Accounts() {
		e, ok := w.registry.PlayerByAccount(acc)
		if !ok {
			continue
		}
		if err := w.saveObject(e, saveQuery{what: "player " + e.ID.String()}); err != nil {
			w.log.Warn().Err(err).Stringer("player_id", e.ID).Msg("Failed to queue player save")
		}
	}
	w.saveGlobalTick()
}

// handleGeneralObjectTimers runs due creature deletions, player revive prompts and NPC conversation
// timeouts.
func (w *World) handleGeneralObjectTimers(now uint64) {
	for _, id := range w.creatureDeletion.Expired(now) {
		w.creatureDeletion.Cancel(id)
		w.DestroyObject(id)
	}
	for _, id := range w.playerRevive.Expired(now) {
		w.playerRevive.Cancel(id)
		if _, ok := w.registry.Lookup(id); ok {
			w.notifier.Notify(messaging.ToEntity(uint64(id)), messaging.RevivePrompt{PlayerID: uint64(id)})
		}
	}
	for _, id := range w.conversations.Expired(now) {
		w.conversations.Cancel(id)
		npc := w.conversationNPC[id]
		delete(w.conversationNPC, id)
		if _, ok := w.registry.Lookup(id); ok {
			w.notifier.Notify(messaging.ToEntity(uint64(id)), messaging.ConversationEnded{NPCID: uint64(npc)})
		}
	}
}

// handleGroupMissionTimers sends every group its mission waypoint update.
func (w *World) handleGroupMissionTimers() {
	for _, id := range w.registry.OfKind(entity.KindGroup) {
		_, g, ok := entity.Get[*entity.Group](w.registry, id)
		if !ok {
			continue
		}
		members := make([]uint64, len(g.Members))
		for i, m := range g.Members {
			members[i] = uint64(m)
		}
		ev := messaging.GroupMissionUpdate{GroupID: uint64(id), Members: members}
		for _, m := range g.Members {
			w.notifier.Notify(messaging.ToEntity(uint64(m)), ev)
		}
	}
}

// handleNpcTier visits one activation bucket. NPCs that are gone leave the bucket; the handler
// decides whether an NPC moves to another one.
func (w *World) handleNpcTier(tier NPCTier) {
	bucket := w.npcTiers[tier]
	for _, id := range sortedIDs(bucket) {
		if _, ok := w.registry.Lookup(id); !ok {
			delete(bucket, id)
			continue
		}
		next := w.npcs.UpdateNPC(id, tier)
		if next == tier || int(next) >= npcTierCount {
			continue
		}
		delete(bucket, id)
		w.npcTiers[next][id] = struct{}{}
		w.notifier.Notify(messaging.ToEntity(uint64(id)), messaging.NPCActivation{NPCID: uint64(id), Tier: next.String()})
	}
}

// handleAdminRequests runs every due admin request. A handler asking to wait re-arms the request;
// otherwise it is dropped.
func (w *World) handleAdminRequests(now uint64) {
	for _, id := range w.adminRequests.Expired(now) {
		due, _ := w.adminRequests.Due(id)
		wait := w.admin.HandleAdminRequest(id, now-due)
		if wait == 0 {
			w.adminRequests.Cancel(id)
			w.log.Debug().Uint64("request_id", id).Msg("Removed expired admin request handler")
			continue
		}
		w.adminRequests.Reset(id, now+wait)
	}
}

func (w *World) forEachConnected(fn func(id entity.ID)) {
	for _, acc := range w.registry.Accounts() {
		e, ok := w.registry.PlayerByAccount(acc)
		if !ok {
			continue
		}
		if p, _ := entity.As[*entity.Player](e); p != nil && p.Conn == entity.ConnConnected {
			fn(e.ID)
		}
	}
}
