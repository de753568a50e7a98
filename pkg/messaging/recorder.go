package messaging

import "sync"

// Notification is one recorded Notify call.
type Notification struct {
	Scope Scope
	Event Event
}

// Recorder keeps every notification in memory.
type Recorder struct {
	mu  sync.Mutex
	all []Notification
}

var _ Notifier = (*Recorder)(nil)

func (r *Recorder) Notify(scope Scope, event Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.all = append(r.all, Notification{Scope: scope, Event: event})
}

// All returns a copy of every recorded notification in order.
func (r *Recorder) All() []Notification {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Notification, len(r.all))
	copy(out, r.all)
	return out
}

// Named returns the recorded notifications whose event is called name.
func (r *Recorder) Named(name string) []Notification {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Notification
	for _, n := range r.all {
		if n.Event.Name() == name {
			out = append(out, n)
		}
	}
	return out
}

func (r *Recorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.all = nil
}
