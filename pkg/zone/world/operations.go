package world

import (
	"github.com/argus-labs/zone-engine/pkg/messaging"
	"github.com/argus-labs/zone-engine/pkg/zone/entity"
	"github.com/argus-labs/zone-engine/pkg/zone/inbound"
	"github.com/rotisserie/eris"
)

// ZoneSystemMessage sends text to every connected player of the zone.
func (w *World) ZoneSystemMessage(text string) {
	w.forEachConnected(func(id entity.ID) {
		w.notifier.Notify(messaging.ToEntity(uint64(id)), messaging.SystemMessage{Text: text})
	})
}

// UpdateWeather broadcasts new weather to the whole zone.
func (w *World) UpdateWeather(weather uint32, cloudX, cloudZ float32) {
	w.notifier.Notify(messaging.Broadcast(), messaging.WeatherUpdate{Weather: weather, CloudX: cloudX, CloudZ: cloudZ})
}

// AddPlayerToDisconnectedList marks a player link-dead. The disconnect sweep logs it out once
// DisconnectTimeout sweeps pass without a reconnect.
func (w *World) AddPlayerToDisconnectedList(id entity.ID) error {
	_, p, ok := entity.Get[*entity.Player](w.registry, id)
	if !ok {
		return eris.Wrapf(ErrUnresolvedReference, "player %d", id)
	}
	p.LinkDead = true
	p.Conn = entity.ConnLinkDead
	p.DisconnectTimer = w.opts.DisconnectTimeout
	w.disarmFamily(id, famObjController)
	w.playersToRemove[id] = struct{}{}
	return nil
}

// RemovePlayerFromDisconnectedList handles a reconnect before the timeout.
func (w *World) RemovePlayerFromDisconnectedList(id entity.ID) {
	if _, ok := w.playersToRemove[id]; !ok {
		return
	}
	delete(w.playersToRemove, id)
	if _, p, ok := entity.Get[*entity.Player](w.registry, id); ok {
		p.LinkDead = false
		p.Conn = entity.ConnConnected
	}
}

// AddBusyCraftTool starts the countdown of a crafting tool that holds a running job.
func (w *World) AddBusyCraftTool(id entity.ID) error {
	_, t, ok := entity.Get[*entity.CraftingTool](w.registry, id)
	if !ok {
		return eris.Wrapf(ErrUnresolvedReference, "crafting tool %d", id)
	}
	t.LastUpdate = w.clock()
	w.busyCraftTools[id] = struct{}{}
	return nil
}

func (w *World) RemoveBusyCraftTool(id entity.ID) {
	delete(w.busyCraftTools, id)
}

// AddActiveRegion puts a region on the periodic region update.
func (w *World) AddActiveRegion(id entity.ID) error {
	_, r, ok := entity.Get[*entity.Region](w.registry, id)
	if !ok {
		return eris.Wrapf(ErrUnresolvedReference, "region %d", id)
	}
	r.Active = true
	w.activeRegions[id] = struct{}{}
	return nil
}

func (w *World) RemoveActiveRegion(id entity.ID) {
	delete(w.activeRegions, id)
}

// AddCreatureObjectForTimedDeletion destroys a creature after delay milliseconds. An earlier
// pending deletion wins.
func (w *World) AddCreatureObjectForTimedDeletion(id entity.ID, delay uint64) bool {
	return w.creatureDeletion.Schedule(id, w.clock()+delay)
}

// CreatureDeletionDue returns when a creature is due for deletion.
func (w *World) CreatureDeletionDue(id entity.ID) (uint64, bool) {
	return w.creatureDeletion.Due(id)
}

// AddPlayerObjectForTimedRevive prompts a dead player to revive after delay milliseconds.
func (w *World) AddPlayerObjectForTimedRevive(id entity.ID, delay uint64) bool {
	return w.playerRevive.Schedule(id, w.clock()+delay)
}

func (w *World) RemovePlayerObjectForTimedRevive(id entity.ID) {
	w.playerRevive.Cancel(id)
}

// AddNpcConversation ends a player's conversation with npc after timeout milliseconds unless it
// is refreshed first.
func (w *World) AddNpcConversation(player, npc entity.ID, timeout uint64) {
	w.conversations.Reset(player, w.clock()+timeout)
	w.conversationNPC[player] = npc
}

func (w *World) RemoveNpcConversation(player entity.ID) {
	w.conversations.Cancel(player)
	delete(w.conversationNPC, player)
}

// AddNPC places an NPC in an activation bucket, moving it out of any other.
func (w *World) AddNPC(id entity.ID, tier NPCTier) error {
	if int(tier) >= npcTierCount {
		return eris.Wrapf(ErrInvalidOption, "npc tier %d", tier)
	}
	if _, ok := w.registry.Lookup(id); !ok {
		return eris.Wrapf(ErrUnresolvedReference, "npc %d", id)
	}
	for _, bucket := range w.npcTiers {
		delete(bucket, id)
	}
	w.npcTiers[tier][id] = struct{}{}
	return nil
}

// NPCTierOf returns the bucket an NPC is in.
func (w *World) NPCTierOf(id entity.ID) (NPCTier, bool) {
	for tier, bucket := range w.npcTiers {
		if _, ok := bucket[id]; ok {
			return NPCTier(tier), true //nolint:gosec // bounded by npcTierCount
		}
	}
	return 0, false
}

// AddAdminRequest schedules an admin request after delay milliseconds. A request that is already
// pending keeps its time.
func (w *World) AddAdminRequest(id uint64, delay uint64) bool {
	if _, pending := w.adminRequests.Due(id); pending {
		return false
	}
	w.log.Info().Uint64("request_id", id).Uint64("delay_ms", delay).Msg("Adding admin request")
	w.adminRequests.Reset(id, w.clock()+delay)
	return true
}

func (w *World) CancelAdminRequest(id uint64) bool {
	return w.adminRequests.Cancel(id)
}

// AdminRequestDue returns when an admin request runs next.
func (w *World) AdminRequestDue(id uint64) (uint64, bool) {
	return w.adminRequests.Due(id)
}

// HandleCharacterMatch parses a character-match request. Malformed requests are logged and dropped.
func (w *World) HandleCharacterMatch(player entity.ID, arg string) (inbound.CharacterMatchQuery, bool) {
	q, err := inbound.ParseCharacterMatch(arg)
	if err != nil {
		w.log.Warn().Err(err).Stringer("player_id", player).Msg("Dropping character match request")
		return inbound.CharacterMatchQuery{}, false
	}
	return q, true
}

// SetSpokenLanguage changes the language a player speaks. Malformed requests are logged and dropped.
func (w *World) SetSpokenLanguage(player entity.ID, arg string) bool {
	lang, err := inbound.ParseSpokenLanguage(arg)
	if err != nil {
		w.log.Warn().Err(err).Stringer("player_id", player).Msg("Dropping spoken language request")
		return false
	}
	_, p, ok := entity.Get[*entity.Player](w.registry, player)
	if !ok {
		w.log.Warn().Err(eris.Wrapf(ErrUnresolvedReference, "player %d", player)).Msg("Dropping spoken language request")
		return false
	}
	p.SpokenLanguage = lang
	return true
}
