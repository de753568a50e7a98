package scheduler

import (
	"cmp"
	"maps"
	"slices"
)

// PendingTimers maps keys to an absolute due time for deferred one-shot work. Scheduling a key
// that is already pending keeps the earlier of the two times.
type PendingTimers[K cmp.Ordered] struct {
	due map[K]uint64
}

func NewPendingTimers[K cmp.Ordered]() *PendingTimers[K] {
	return &PendingTimers[K]{due: make(map[K]uint64)}
}

// Schedule sets k to fire at due unless it is already pending at or before due. It reports
// whether the stored time changed.
func (p *PendingTimers[K]) Schedule(k K, due uint64) bool {
	if cur, ok := p.due[k]; ok && cur <= due {
		return false
	}
	p.due[k] = due
	return true
}

// Reset sets k to fire at due regardless of any pending time.
func (p *PendingTimers[K]) Reset(k K, due uint64) {
	p.due[k] = due
}

// Cancel drops k and reports whether it was pending.
func (p *PendingTimers[K]) Cancel(k K) bool {
	if _, ok := p.due[k]; !ok {
		return false
	}
	delete(p.due, k)
	return true
}

// Due returns the pending time of k.
func (p *PendingTimers[K]) Due(k K) (uint64, bool) {
	d, ok := p.due[k]
	return d, ok
}

// Expired returns every key due at or before now, earliest first. Keys stay pending; callers
// cancel or reset them as they handle each one.
func (p *PendingTimers[K]) Expired(now uint64) []K {
	var out []K
	for k, d := range p.due {
		if d <= now {
			out = append(out, k)
		}
	}
	slices.SortFunc(out, func(a, b K) int {
		if c := cmp.Compare(p.due[a], p.due[b]); c != 0 {
			return c
		}
		return cmp.Compare(a, b)
	})
	return out
}

// Keys returns every pending key in ascending order.
func (p *PendingTimers[K]) Keys() []K {
	return slices.Sorted(maps.Keys(p.due))
}

func (p *PendingTimers[K]) Len() int {
	return len(p.due)
}

func (p *PendingTimers[K]) Clear() {
	clear(p.due)
}
