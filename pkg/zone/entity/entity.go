// Package entity defines the simulated objects of a zone and the registry that owns them.
package entity

import (
	"math"
	"strconv"
)

// ID is the globally unique 64-bit identifier of an entity. Zero means "none", and as a parent
// identifier it means the open world.
type ID uint64

func (id ID) String() string { return strconv.FormatUint(uint64(id), 10) }

// AccountID identifies the account a player entity is logged in with.
type AccountID uint64

// Vec3 is a position in the coordinate context of the entity's parent.
type Vec3 struct {
	X, Y, Z float32
}

// Distance returns the straight-line distance between two positions.
func (v Vec3) Distance(o Vec3) float64 {
	dx := float64(v.X - o.X)
	dy := float64(v.Y - o.Y)
	dz := float64(v.Z - o.Z)
	return math.Sqrt(dx*dx + dy*dy + dz*dz)
}

// Entity is any simulated object. Only the Registry holds *Entity across ticks; everything else
// keeps the ID and resolves it again before use.
type Entity struct {
	ID       ID
	ParentID ID
	Position Vec3
	Body     Body
}

// Kind returns the tag of the entity's body.
func (e *Entity) Kind() Kind {
	if e.Body == nil {
		return KindUndefined
	}
	return e.Body.Kind()
}

// InOpenWorld reports whether the entity has no parent.
func (e *Entity) InOpenWorld() bool {
	return e.ParentID == 0
}

// As returns the entity's body as B when the entity is of that kind.
func As[B Body](e *Entity) (B, bool) {
	var zero B
	if e == nil || e.Body == nil {
		return zero, false
	}
	b, ok := e.Body.(B)
	return b, ok
}

// CreatureOf returns the creature part of a player or creature entity.
func CreatureOf(e *Entity) (*Creature, bool) {
	if e == nil {
		return nil, false
	}
	switch b := e.Body.(type) {
	case *Creature:
		return b, true
	case *Player:
		return &b.Creature, true
	default:
		return nil, false
	}
}
