package persistence

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

// Job is one unit of storage work.
type Job func(ctx context.Context, s Store) (any, error)

// Completion is the outcome of an async job, delivered back to its target on the simulation
// goroutine.
type Completion struct {
	Context any
	Result  any
	Err     error
	TraceID string
	target  CompletionHandler
}

// CompletionHandler receives completions from Dispatcher.Deliver.
type CompletionHandler interface {
	HandleCompletion(c Completion)
}

// CompletionFunc adapts a function to CompletionHandler.
type CompletionFunc func(c Completion)

func (f CompletionFunc) HandleCompletion(c Completion) { f(c) }

type job struct {
	run     Job
	target  CompletionHandler
	context any
	traceID string
}

type DispatcherOptions struct {
	Workers   int
	QueueSize int
	Logger    zerolog.Logger
}

// Dispatcher runs jobs on a pool of workers. Completions are parked in a mailbox until the
// simulation goroutine collects them with Deliver, so no completion ever runs concurrently with
// zone mutation.
type Dispatcher struct {
	store Store
	log   zerolog.Logger
	opts  DispatcherOptions

	submitMu sync.RWMutex
	jobs     chan job
	closed   bool

	mailboxMu sync.Mutex
	mailbox   []Completion
}

func NewDispatcher(store Store, opts DispatcherOptions) *Dispatcher {
	if opts.Workers <= 0 {
		opts.Workers = 4
	}
	if opts.QueueSize <= 0 {
		opts.QueueSize = 4096
	}
	return &Dispatcher{
		store:   store,
		log:     opts.Logger,
		opts:    opts,
		jobs:    make(chan job, opts.QueueSize),
		mailbox: make([]Completion, 0, 64),
	}
}

// Store returns the backend the dispatcher runs jobs against.
func (d *Dispatcher) Store() Store {
	return d.store
}

// Run executes queued jobs until Close is called and the queue is drained.
func (d *Dispatcher) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	for range d.opts.Workers {
		g.Go(func() error {
			for j := range d.jobs {
				d.execute(ctx, j)
			}
			return nil
		})
	}
	return g.Wait()
}

// SubmitAsync queues run and returns immediately. When target is non-nil the completion is handed
// to it, together with qctx, by a later Deliver.
func (d *Dispatcher) SubmitAsync(target CompletionHandler, qctx any, run Job) error {
	d.submitMu.RLock()
	defer d.submitMu.RUnlock()

	if d.closed {
		return ErrClosed
	}
	select {
	case d.jobs <- job{run: run, target: target, context: qctx, traceID: uuid.NewString()}:
		return nil
	default:
		return eris.Wrapf(ErrQueueFull, "queue holds %d jobs", len(d.jobs))
	}
}

// SubmitSync runs a job on the calling goroutine. It blocks, so it is reserved for startup reads
// that happen before the zone is observable.
func (d *Dispatcher) SubmitSync(ctx context.Context, run Job) (any, error) {
	return d.call(ctx, run)
}

// Deliver hands every parked completion to its target and returns how many were delivered.
func (d *Dispatcher) Deliver() int {
	d.mailboxMu.Lock()
	batch := d.mailbox
	d.mailbox = make([]Completion, 0, cap(batch))
	d.mailboxMu.Unlock()

	for _, c := range batch {
		c.target.HandleCompletion(c)
	}
	return len(batch)
}

// Pending returns the number of queued jobs plus undelivered completions.
func (d *Dispatcher) Pending() int {
	d.mailboxMu.Lock()
	defer d.mailboxMu.Unlock()
	return len(d.jobs) + len(d.mailbox)
}

// Close stops accepting jobs. Jobs already queued still run.
func (d *Dispatcher) Close() {
	d.submitMu.Lock()
	defer d.submitMu.Unlock()
	if d.closed {
		return
	}
	d.closed = true
	close(d.jobs)
}

func (d *Dispatcher) execute(ctx context.Context, j job) {
	result, err := d.call(ctx, j.run)
	if err != nil {
		d.log.Warn().Err(err).Str("trace_id", j.traceID).Msg("persistence job failed")
	}
	if j.target == nil {
		return
	}

	d.mailboxMu.Lock()
	d.mailbox = append(d.mailbox, Completion{
		Context: j.context,
		Result:  result,
		Err:     err,
		TraceID: j.traceID,
		target:  j.target,
	})
	d.mailboxMu.Unlock()
}

func (d *Dispatcher) call(ctx context.Context, run Job) (result any, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = eris.Wrap(fmt.Errorf("panic: %v", r), "persistence job panicked")
		}
	}()
	return run(ctx, d.store)
}
