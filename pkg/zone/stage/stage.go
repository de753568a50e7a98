// Package stage tracks where a zone is in its lifecycle. The stage is written by the simulation
// goroutine and may be read from any goroutine.
package stage

import (
	"sync/atomic"

	"github.com/rotisserie/eris"
)

type Stage string

const (
	StartUp      Stage = "StartUp"      // Bulk load in progress, no periodic task armed
	Running      Stage = "Running"      // Every object loaded and periodic tasks armed
	ShuttingDown Stage = "ShuttingDown" // Teardown in progress
	ShutDown     Stage = "ShutDown"     // Teardown finished
	Failed       Stage = "Failed"       // Startup never completed; the zone must not run
)

var ErrWrongStage = eris.New("zone is not in the expected stage")

type Manager struct {
	current atomic.Value
}

func NewManager() *Manager {
	m := &Manager{}
	m.current.Store(StartUp)
	return m
}

func (m *Manager) Current() Stage {
	return m.current.Load().(Stage) //nolint:errcheck // only Stage values are stored
}

// CompareAndSwap moves to next only if the zone is in prev.
func (m *Manager) CompareAndSwap(prev, next Stage) bool {
	return m.current.CompareAndSwap(prev, next)
}

// Transition is CompareAndSwap that reports a mismatch as an error.
func (m *Manager) Transition(prev, next Stage) error {
	if !m.current.CompareAndSwap(prev, next) {
		return eris.Wrapf(ErrWrongStage, "cannot move from %s to %s while %s", prev, next, m.Current())
	}
	return nil
}

func (m *Manager) Swap(next Stage) Stage {
	return m.current.Swap(next).(Stage) //nolint:errcheck // only Stage values are stored
}

// Is reports whether the zone is currently in s.
func (m *Manager) Is(s Stage) bool {
	return m.Current() == s
}
