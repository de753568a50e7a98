package entity

import (
	"maps"
	"slices"

	"github.com/rotisserie/eris"
)

// Registry owns every live entity of a zone, plus derived views kept in step with the primary map:
// players by account, entities by kind, and contents by container. It is only touched from the
// simulation goroutine and is not synchronized.
type Registry struct {
	entities map[ID]*Entity
	accounts map[AccountID]ID
	kinds    [kindCount]map[ID]struct{}
	children map[ID]map[ID]struct{}
}

func NewRegistry() *Registry {
	r := &Registry{}
	r.Clear()
	return r
}

// Register inserts e. An identifier already present is rejected, never overwritten.
func (r *Registry) Register(e *Entity) error {
	if e == nil || e.ID == 0 || e.Body == nil {
		return eris.Wrap(ErrInvalidEntity, "entity needs an id and a body")
	}
	if _, ok := r.entities[e.ID]; ok {
		return eris.Wrapf(ErrDuplicateIdentifier, "entity %d", e.ID)
	}
	if r.wouldCycle(e.ID, e.ParentID) {
		return eris.Wrapf(ErrParentCycle, "entity %d under parent %d", e.ID, e.ParentID)
	}
	if p, ok := e.Body.(*Player); ok {
		if owner, taken := r.accounts[p.AccountID]; taken {
			return eris.Wrapf(ErrDuplicateAccount, "account %d held by entity %d", p.AccountID, owner)
		}
		r.accounts[p.AccountID] = e.ID
	}

	r.entities[e.ID] = e
	r.kinds[e.Kind()][e.ID] = struct{}{}
	r.link(e.ID, e.ParentID)
	return nil
}

// Unregister removes id from the primary map and every view. Absent identifiers are a no-op.
func (r *Registry) Unregister(id ID) (*Entity, bool) {
	e, ok := r.entities[id]
	if !ok {
		return nil, false
	}
	delete(r.entities, id)
	delete(r.kinds[e.Kind()], id)
	r.unlink(id, e.ParentID)
	if p, ok := e.Body.(*Player); ok && r.accounts[p.AccountID] == id {
		delete(r.accounts, p.AccountID)
	}
	return e, true
}

// Lookup resolves id. A miss is an ordinary outcome, not an error.
func (r *Registry) Lookup(id ID) (*Entity, bool) {
	e, ok := r.entities[id]
	return e, ok
}

// Exists reports whether e is the entity currently registered under its identifier.
func (r *Registry) Exists(e *Entity) bool {
	if e == nil {
		return false
	}
	cur, ok := r.entities[e.ID]
	return ok && cur == e
}

// Get resolves id and returns its body as B.
func Get[B Body](r *Registry, id ID) (*Entity, B, bool) {
	e, ok := r.Lookup(id)
	if !ok {
		var zero B
		return nil, zero, false
	}
	b, ok := As[B](e)
	return e, b, ok
}

// PlayerByAccount resolves the player logged in with acc.
func (r *Registry) PlayerByAccount(acc AccountID) (*Entity, bool) {
	id, ok := r.accounts[acc]
	if !ok {
		return nil, false
	}
	return r.Lookup(id)
}

// RemoveAccount drops acc from the account view without touching the player entity.
func (r *Registry) RemoveAccount(acc AccountID) bool {
	if _, ok := r.accounts[acc]; !ok {
		return false
	}
	delete(r.accounts, acc)
	return true
}

// Accounts returns a sorted snapshot of the account view.
func (r *Registry) Accounts() []AccountID {
	return slices.Sorted(maps.Keys(r.accounts))
}

// OfKind returns a sorted snapshot of the identifiers of every entity of kind k.
func (r *Registry) OfKind(k Kind) []ID {
	if k >= kindCount {
		return nil
	}
	return slices.Sorted(maps.Keys(r.kinds[k]))
}

// CountKind returns the number of registered entities of kind k.
func (r *Registry) CountKind(k Kind) int {
	if k >= kindCount {
		return 0
	}
	return len(r.kinds[k])
}

// Structures returns the buildings and cells, cells first so that contents unwind inside out.
func (r *Registry) Structures() []ID {
	return append(r.OfKind(KindCell), r.OfKind(KindBuilding)...)
}

// Children returns a sorted snapshot of the entities whose parent is id.
func (r *Registry) Children(id ID) []ID {
	return slices.Sorted(maps.Keys(r.children[id]))
}

// Reparent moves a registered entity under a new parent.
func (r *Registry) Reparent(id, parent ID) error {
	e, ok := r.entities[id]
	if !ok {
		return eris.Errorf("entity %d not registered", id)
	}
	if r.wouldCycle(id, parent) {
		return eris.Wrapf(ErrParentCycle, "entity %d under parent %d", id, parent)
	}
	r.unlink(id, e.ParentID)
	e.ParentID = parent
	r.link(id, parent)
	return nil
}

// Len returns the number of registered entities.
func (r *Registry) Len() int {
	return len(r.entities)
}

// Clear drops every entity and view.
func (r *Registry) Clear() {
	r.entities = make(map[ID]*Entity)
	r.accounts = make(map[AccountID]ID)
	r.children = make(map[ID]map[ID]struct{})
	for k := range r.kinds {
		r.kinds[k] = make(map[ID]struct{})
	}
}

func (r *Registry) link(id, parent ID) {
	if parent == 0 {
		return
	}
	set, ok := r.children[parent]
	if !ok {
		set = make(map[ID]struct{})
		r.children[parent] = set
	}
	set[id] = struct{}{}
}

func (r *Registry) unlink(id, parent ID) {
	set, ok := r.children[parent]
	if !ok {
		return
	}
	delete(set, id)
	if len(set) == 0 {
		delete(r.children, parent)
	}
}

// wouldCycle reports whether placing id under parent closes a loop in the parent chain. Parents
// that are not (yet) registered end the walk.
func (r *Registry) wouldCycle(id, parent ID) bool {
	seen := map[ID]struct{}{id: {}}
	for parent != 0 {
		if _, ok := seen[parent]; ok {
			return true
		}
		seen[parent] = struct{}{}
		p, ok := r.entities[parent]
		if !ok {
			return false
		}
		parent = p.ParentID
	}
	return false
}
