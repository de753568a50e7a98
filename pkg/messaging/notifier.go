// Package messaging is the one-way notification sink of a zone. The zone never waits for a reply.
package messaging

import "strconv"

// Event is a notification payload. Name becomes the last token of the published subject.
type Event interface {
	Name() string
}

type ScopeKind uint8

const (
	ScopeEntity ScopeKind = iota // Delivered to one entity's client and observers
	ScopeZone                    // Delivered to every connected client of the zone
)

// Scope selects who a notification is for.
type Scope struct {
	Kind     ScopeKind
	EntityID uint64
}

// ToEntity scopes a notification to one entity.
func ToEntity(id uint64) Scope {
	return Scope{Kind: ScopeEntity, EntityID: id}
}

// Broadcast scopes a notification to the whole zone.
func Broadcast() Scope {
	return Scope{Kind: ScopeZone}
}

// Subject returns the NATS subject suffix for a scope and event.
func (s Scope) Subject(event string) string {
	if s.Kind == ScopeZone {
		return "zone." + event
	}
	return "entity." + strconv.FormatUint(s.EntityID, 10) + "." + event
}

// Notifier delivers notifications. Implementations must not block the caller.
type Notifier interface {
	Notify(scope Scope, event Event)
}
