package scheduler_test

import (
	"slices"
	"testing"

	"github.com/argus-labs/zone-engine/pkg/testutils"
	"github.com/argus-labs/zone-engine/pkg/zone/scheduler"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct{ now uint64 }

func (c *fakeClock) Now() uint64 { return c.now }

type run struct {
	at     uint64
	handle scheduler.Handle
	task   scheduler.Task
}

// recorder logs every run and answers with whatever decide returns.
type recorder struct {
	runs   []run
	decide func(now uint64, h scheduler.Handle, t scheduler.Task) scheduler.Result
}

func (r *recorder) Execute(now uint64, h scheduler.Handle, t scheduler.Task) scheduler.Result {
	r.runs = append(r.runs, run{at: now, handle: h, task: t})
	if r.decide != nil {
		return r.decide(now, h, t)
	}
	return scheduler.Continue
}

func newScheduler(t *testing.T, exec scheduler.Executor, clock *fakeClock) *scheduler.Scheduler {
	t.Helper()
	s, err := scheduler.New(scheduler.Options{Name: "test", Executor: exec, Clock: clock.Now})
	require.NoError(t, err)
	return s
}

func TestScheduler_FirstDueIsNowPlusPeriod(t *testing.T) {
	t.Parallel()
	clock := &fakeClock{now: 500}
	rec := &recorder{}
	s := newScheduler(t, rec, clock)

	h, err := s.AddTask(scheduler.Task{Period: 1000})
	require.NoError(t, err)
	due, ok := s.NextDue(h)
	require.True(t, ok)
	assert.Equal(t, uint64(1500), due)

	assert.Equal(t, 0, s.Process(1499))
	assert.Equal(t, 1, s.Process(1500))
}

func TestScheduler_RearmsFromExecutionTime(t *testing.T) {
	t.Parallel()
	clock := &fakeClock{}
	rec := &recorder{}
	s := newScheduler(t, rec, clock)

	h, err := s.AddTask(scheduler.Task{Period: 100})
	require.NoError(t, err)

	// Processed 450ms late: the task runs once, not five times, and is next due at 550+100.
	assert.Equal(t, 1, s.Process(550))
	due, ok := s.NextDue(h)
	require.True(t, ok)
	assert.Equal(t, uint64(650), due)

	assert.Equal(t, 0, s.Process(649))
	assert.Equal(t, 1, s.Process(650))
	assert.Len(t, rec.runs, 2)
}

func TestScheduler_PriorityOrderWithinPass(t *testing.T) {
	t.Parallel()
	clock := &fakeClock{}
	rec := &recorder{}
	s := newScheduler(t, rec, clock)

	for _, p := range []uint8{9, 1, 5, 7, 2} {
		_, err := s.AddTask(scheduler.Task{Priority: p, Period: 1000, Arg: uint64(p)})
		require.NoError(t, err)
	}
	s.Process(1000)

	var order []uint64
	for _, r := range rec.runs {
		order = append(order, r.task.Arg)
	}
	assert.Equal(t, []uint64{1, 2, 5, 7, 9}, order)
}

func TestScheduler_EarlierDueBeatsPriority(t *testing.T) {
	t.Parallel()
	clock := &fakeClock{}
	rec := &recorder{}
	s := newScheduler(t, rec, clock)

	_, err := s.AddTask(scheduler.Task{Priority: 9, Period: 100, Arg: 1})
	require.NoError(t, err)
	_, err = s.AddTask(scheduler.Task{Priority: 0, Period: 200, Arg: 2})
	require.NoError(t, err)

	s.Process(200)
	require.Len(t, rec.runs, 2)
	assert.Equal(t, uint64(1), rec.runs[0].task.Arg)
}

func TestScheduler_StopDisarms(t *testing.T) {
	t.Parallel()
	clock := &fakeClock{}
	rec := &recorder{decide: func(uint64, scheduler.Handle, scheduler.Task) scheduler.Result {
		return scheduler.Stop
	}}
	s := newScheduler(t, rec, clock)

	h, err := s.AddTask(scheduler.Task{Period: 10})
	require.NoError(t, err)
	require.True(t, s.CheckTask(h))

	s.Process(10)
	assert.False(t, s.CheckTask(h))
	assert.Equal(t, 0, s.Len())
	assert.Equal(t, 0, s.Process(1_000))
}

func TestScheduler_ContinueAfterChangesPeriod(t *testing.T) {
	t.Parallel()
	clock := &fakeClock{}
	rec := &recorder{decide: func(now uint64, _ scheduler.Handle, _ scheduler.Task) scheduler.Result {
		if now == 100 {
			return scheduler.ContinueAfter(300)
		}
		return scheduler.Continue
	}}
	s := newScheduler(t, rec, clock)

	h, err := s.AddTask(scheduler.Task{Period: 100})
	require.NoError(t, err)

	s.Process(100)
	due, _ := s.NextDue(h)
	assert.Equal(t, uint64(400), due)

	s.Process(400)
	due, _ = s.NextDue(h)
	assert.Equal(t, uint64(700), due, "the returned period sticks")
}

func TestScheduler_RemoveTaskIdempotent(t *testing.T) {
	t.Parallel()
	clock := &fakeClock{}
	rec := &recorder{}
	s := newScheduler(t, rec, clock)

	h, err := s.AddTask(scheduler.Task{Period: 10})
	require.NoError(t, err)

	s.RemoveTask(h)
	s.RemoveTask(h)
	s.RemoveTask(scheduler.Handle(9999))
	assert.False(t, s.CheckTask(h))
	assert.Equal(t, 0, s.Process(100))
	assert.Empty(t, rec.runs)
}

func TestScheduler_SelfCancellation(t *testing.T) {
	t.Parallel()
	clock := &fakeClock{}
	var s *scheduler.Scheduler
	rec := &recorder{}
	rec.decide = func(_ uint64, h scheduler.Handle, _ scheduler.Task) scheduler.Result {
		s.RemoveTask(h)
		s.RemoveTask(h)
		assert.False(t, s.CheckTask(h))
		return scheduler.Continue
	}
	s = newScheduler(t, rec, clock)

	h, err := s.AddTask(scheduler.Task{Period: 10})
	require.NoError(t, err)

	s.Process(10)
	assert.False(t, s.CheckTask(h))
	assert.Equal(t, 0, s.Len())
	assert.Equal(t, 0, s.Process(100), "a self-cancelled task is not re-armed even if it returns Continue")
}

func TestScheduler_CancelOtherTaskDuringPass(t *testing.T) {
	t.Parallel()
	clock := &fakeClock{}
	var (
		s      *scheduler.Scheduler
		victim scheduler.Handle
	)
	rec := &recorder{}
	rec.decide = func(_ uint64, h scheduler.Handle, _ scheduler.Task) scheduler.Result {
		if h != victim {
			s.RemoveTask(victim)
		}
		return scheduler.Continue
	}
	s = newScheduler(t, rec, clock)

	_, err := s.AddTask(scheduler.Task{Priority: 0, Period: 10})
	require.NoError(t, err)
	victim, err = s.AddTask(scheduler.Task{Priority: 1, Period: 10})
	require.NoError(t, err)

	s.Process(10)
	assert.Len(t, rec.runs, 1)
	assert.False(t, s.CheckTask(victim))
}

func TestScheduler_TaskAddedDuringPassWaitsForNextPeriod(t *testing.T) {
	t.Parallel()
	clock := &fakeClock{}
	var s *scheduler.Scheduler
	rec := &recorder{}
	rec.decide = func(now uint64, _ scheduler.Handle, task scheduler.Task) scheduler.Result {
		if task.Arg == 0 {
			clock.now = now
			_, err := s.AddTask(scheduler.Task{Period: 50, Arg: 1})
			assert.NoError(t, err)
			return scheduler.Stop
		}
		return scheduler.Continue
	}
	s = newScheduler(t, rec, clock)

	_, err := s.AddTask(scheduler.Task{Period: 10})
	require.NoError(t, err)
	assert.Equal(t, 1, s.Process(10))
	assert.Equal(t, 1, s.Process(60))
}

func TestScheduler_Exhaustion(t *testing.T) {
	t.Parallel()
	clock := &fakeClock{}
	s, err := scheduler.New(scheduler.Options{Name: "tiny", Executor: &recorder{}, Clock: clock.Now, MaxTasks: 2})
	require.NoError(t, err)

	_, err = s.AddTask(scheduler.Task{Period: 1})
	require.NoError(t, err)
	h, err := s.AddTask(scheduler.Task{Period: 1})
	require.NoError(t, err)
	_, err = s.AddTask(scheduler.Task{Period: 1})
	require.ErrorIs(t, err, scheduler.ErrExhausted)

	s.RemoveTask(h)
	_, err = s.AddTask(scheduler.Task{Period: 1})
	require.NoError(t, err)
}

func TestScheduler_RejectsZeroPeriod(t *testing.T) {
	t.Parallel()
	s := newScheduler(t, &recorder{}, &fakeClock{})
	_, err := s.AddTask(scheduler.Task{})
	require.ErrorIs(t, err, scheduler.ErrZeroPeriod)
}

func TestScheduler_Close(t *testing.T) {
	t.Parallel()
	clock := &fakeClock{}
	rec := &recorder{}
	s := newScheduler(t, rec, clock)

	h, err := s.AddTask(scheduler.Task{Period: 10})
	require.NoError(t, err)

	s.Close()
	assert.True(t, s.Closed())
	assert.False(t, s.CheckTask(h))
	s.RemoveTask(h)
	assert.Equal(t, 0, s.Process(100))
	_, err = s.AddTask(scheduler.Task{Period: 10})
	require.ErrorIs(t, err, scheduler.ErrClosed)
}

type schedOp uint8

const (
	opAdd schedOp = iota
	opRemove
	opProcess
)

type modelTask struct {
	due      uint64
	priority uint8
	period   uint64
}

// TestScheduler_ModelFuzz compares execution order against a sorted-slice model while tasks are
// added, removed, and processed at random, often late.
func TestScheduler_ModelFuzz(t *testing.T) {
	t.Parallel()

	const opsMax = 5_000
	prng := testutils.NewRand(t)
	clock := &fakeClock{}
	rec := &recorder{}
	s := newScheduler(t, rec, clock)
	model := make(map[scheduler.Handle]*modelTask)

	ops := []testutils.Weighted[schedOp]{
		{Op: opAdd, Weight: 40},
		{Op: opRemove, Weight: 20},
		{Op: opProcess, Weight: 40},
	}
	for range opsMax {
		switch testutils.Pick(prng, ops) {
		case opAdd:
			task := scheduler.Task{Priority: uint8(prng.IntN(10)), Period: uint64(prng.IntN(500) + 1)}
			h, err := s.AddTask(task)
			require.NoError(t, err)
			model[h] = &modelTask{due: clock.now + task.Period, priority: task.Priority, period: task.Period}
		case opRemove:
			if len(model) == 0 {
				continue
			}
			h := testutils.RandKey(prng, model)
			s.RemoveTask(h)
			delete(model, h)
		case opProcess:
			clock.now += uint64(prng.IntN(1_000))
			now := clock.now

			want := []scheduler.Handle{}
			for h, m := range model {
				if m.due <= now {
					want = append(want, h)
				}
			}
			slices.SortFunc(want, func(a, b scheduler.Handle) int {
				ma, mb := model[a], model[b]
				switch {
				case ma.due != mb.due:
					return int(int64(ma.due) - int64(mb.due))
				case ma.priority != mb.priority:
					return int(ma.priority) - int(mb.priority)
				default:
					return int(int64(a) - int64(b))
				}
			})

			rec.runs = rec.runs[:0]
			require.Equal(t, len(want), s.Process(now))
			got := make([]scheduler.Handle, 0, len(rec.runs))
			for _, r := range rec.runs {
				got = append(got, r.handle)
			}
			require.Equal(t, want, got)
			for _, h := range want {
				model[h].due = now + model[h].period
			}
		}
	}
	assert.Equal(t, len(model), s.Len())
}
