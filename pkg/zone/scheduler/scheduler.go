// Package scheduler implements the timed task engine. Each subsystem family gets its own
// Scheduler so that a burst in one family cannot hold up another.
package scheduler

import (
	"math"
	"time"

	"github.com/argus-labs/zone-engine/pkg/assert"
	"github.com/argus-labs/zone-engine/pkg/telemetry"
	"github.com/rotisserie/eris"
	"github.com/tidwall/btree"
)

var (
	ErrExhausted   = eris.New("scheduler cannot arm more tasks")
	ErrClosed      = eris.New("scheduler is closed")
	ErrZeroPeriod  = eris.New("task period must be positive")
	ErrNilExecutor = eris.New("scheduler needs an executor")
)

const defaultMaxTasks = 1 << 20

type Options struct {
	// Name is the family name, used as a metric tag.
	Name string
	// Executor runs every due task.
	Executor Executor
	// Clock returns the current time in milliseconds. New tasks are first due at Clock()+Period.
	Clock func() uint64
	// MaxTasks bounds the number of armed tasks. Zero means the default.
	MaxTasks int
	Metrics  *telemetry.Metrics
}

type entry struct {
	handle  Handle
	task    Task
	due     uint64
	removed bool
}

func entryLess(a, b *entry) bool {
	if a.due != b.due {
		return a.due < b.due
	}
	if a.task.Priority != b.task.Priority {
		return a.task.Priority < b.task.Priority
	}
	return a.handle < b.handle
}

// Scheduler is an ordered set of armed tasks keyed by (due time, priority, handle). It is driven
// by Process from the simulation goroutine and is not synchronized.
type Scheduler struct {
	name     string
	exec     Executor
	clock    func() uint64
	maxTasks int
	metrics  *telemetry.Metrics
	tags     []string

	queue   *btree.BTreeG[*entry]
	handles map[Handle]*entry
	running *entry
	last    Handle
	closed  bool
}

func New(opts Options) (*Scheduler, error) {
	if opts.Executor == nil {
		return nil, ErrNilExecutor
	}
	if opts.Clock == nil {
		return nil, eris.New("scheduler needs a clock")
	}
	if opts.MaxTasks <= 0 {
		opts.MaxTasks = defaultMaxTasks
	}
	if opts.Metrics == nil {
		opts.Metrics = telemetry.NopMetrics()
	}
	return &Scheduler{
		name:     opts.Name,
		exec:     opts.Executor,
		clock:    opts.Clock,
		maxTasks: opts.MaxTasks,
		metrics:  opts.Metrics,
		tags:     []string{"family:" + opts.Name},
		queue:    btree.NewBTreeGOptions(entryLess, btree.Options{NoLocks: true}),
		handles:  make(map[Handle]*entry),
	}, nil
}

// Name returns the family name.
func (s *Scheduler) Name() string { return s.name }

// AddTask arms t. Its first run is due one period from now.
func (s *Scheduler) AddTask(t Task) (Handle, error) {
	if s.closed {
		return 0, eris.Wrapf(ErrClosed, "scheduler %s", s.name)
	}
	if t.Period == 0 {
		return 0, eris.Wrapf(ErrZeroPeriod, "scheduler %s", s.name)
	}
	if len(s.handles) >= s.maxTasks || s.last == math.MaxUint64 {
		return 0, eris.Wrapf(ErrExhausted, "scheduler %s holds %d tasks", s.name, len(s.handles))
	}

	s.last++
	e := &entry{handle: s.last, task: t, due: s.clock() + t.Period}
	s.handles[e.handle] = e
	s.queue.Set(e)
	return e.handle, nil
}

// RemoveTask disarms h. Unknown or already removed handles are a no-op, and a task may remove
// itself while it runs.
func (s *Scheduler) RemoveTask(h Handle) {
	e, ok := s.handles[h]
	if !ok {
		return
	}
	delete(s.handles, h)
	if e == s.running {
		e.removed = true
		return
	}
	_, found := s.queue.Delete(e)
	assert.That(found, "armed task %d missing from the %s queue", h, s.name)
}

// CheckTask reports whether h is still armed.
func (s *Scheduler) CheckTask(h Handle) bool {
	e, ok := s.handles[h]
	return ok && !e.removed
}

// NextDue returns when h runs next.
func (s *Scheduler) NextDue(h Handle) (uint64, bool) {
	e, ok := s.handles[h]
	if !ok || e == s.running {
		return 0, false
	}
	return e.due, true
}

// Len returns the number of armed tasks.
func (s *Scheduler) Len() int {
	return len(s.handles)
}

// Process runs every task due at or before now, in (due, priority) order, and returns how many ran.
// A task that continues is re-armed at now+period, so a late pass runs each task once rather than
// once per missed period.
func (s *Scheduler) Process(now uint64) int {
	if s.closed {
		return 0
	}
	start := time.Now()
	ran := 0
	for {
		e, ok := s.queue.Min()
		if !ok || e.due > now {
			break
		}
		s.queue.Delete(e)

		s.running = e
		res := s.exec.Execute(now, e.handle, e.task)
		s.running = nil
		ran++

		if e.removed || s.closed {
			continue
		}
		if res.stop {
			delete(s.handles, e.handle)
			continue
		}
		if res.period > 0 {
			e.task.Period = res.period
		}
		e.due = now + e.task.Period
		s.queue.Set(e)
	}
	if ran > 0 {
		s.metrics.Timing("scheduler.process", start, s.tags...)
	}
	return ran
}

// Close disarms every task. Later adds fail with ErrClosed and removes are no-ops.
func (s *Scheduler) Close() {
	s.closed = true
	s.queue.Clear()
	clear(s.handles)
}

// Closed reports whether Close has been called.
func (s *Scheduler) Closed() bool {
	return s.closed
}
