package world

import "github.com/argus-labs/zone-engine/pkg/zone/entity"

// InRange reports whether two entities are within threshold of each other. Interiors are separate
// coordinate contexts: entities are only comparable when they share a parent, or when both sit in
// cells of the same structure. The open world and an interior never see each other.
func (w *World) InRange(a, b entity.ID, threshold float64) bool {
	ea, ok := w.registry.Lookup(a)
	if !ok {
		return false
	}
	return w.InRangeOf(ea.Position, ea.ParentID, b, threshold)
}

// InRangeOf is InRange for a position that need not belong to a registered entity.
func (w *World) InRangeOf(pos entity.Vec3, parent entity.ID, b entity.ID, threshold float64) bool {
	eb, ok := w.registry.Lookup(b)
	if !ok {
		return false
	}

	switch {
	case parent == eb.ParentID:
		return pos.Distance(eb.Position) <= threshold
	case parent == 0 || eb.ParentID == 0:
		return false
	}

	cellA, _, okA := entity.Get[*entity.Cell](w.registry, parent)
	cellB, _, okB := entity.Get[*entity.Cell](w.registry, eb.ParentID)
	if !okA || !okB || cellA.ParentID != cellB.ParentID {
		return false
	}
	return pos.Distance(eb.Position) <= threshold
}
