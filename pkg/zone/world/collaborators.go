package world

import (
	"github.com/argus-labs/zone-engine/pkg/zone/entity"
)

// NPCTier is the activation bucket of an NPC. Each bucket is visited at its own rate.
type NPCTier uint8

const (
	NPCDormant NPCTier = iota
	NPCReady
	NPCActive
)

func (t NPCTier) String() string {
	switch t {
	case NPCDormant:
		return "dormant"
	case NPCReady:
		return "ready"
	case NPCActive:
		return "active"
	default:
		return "unknown"
	}
}

// NPCHandler runs NPC behaviour. UpdateNPC is called once per visit of the NPC's bucket and
// returns the bucket the NPC belongs in afterwards.
type NPCHandler interface {
	UpdateNPC(id entity.ID, tier NPCTier) NPCTier
}

// AdminHandler executes deferred administrative requests. lateness is how long past its due time
// the request runs. A non-zero wait re-arms the request that many milliseconds from now.
type AdminHandler interface {
	HandleAdminRequest(id uint64, lateness uint64) (wait uint64)
}

// CommandProcessor drains queued client commands of an entity. It reports whether commands remain.
type CommandProcessor interface {
	ProcessCommands(id entity.ID) bool
}

type nopNPCHandler struct{}

func (nopNPCHandler) UpdateNPC(_ entity.ID, tier NPCTier) NPCTier { return tier }

type nopAdminHandler struct{}

func (nopAdminHandler) HandleAdminRequest(uint64, uint64) uint64 { return 0 }

type nopCommandProcessor struct{}

func (nopCommandProcessor) ProcessCommands(entity.ID) bool { return false }
