package scheduler

// Handle identifies an armed task within one scheduler. Handles are never reused, and zero is
// never issued.
type Handle uint64

// Op tags what a task does. The executor owning the scheduler gives the tags meaning.
type Op uint16

// Task is a periodic unit of work. It names its target by identifier instead of holding a
// reference, so the executor must resolve Target again on every run.
type Task struct {
	Target   uint64
	Op       Op
	Arg      uint64
	Priority uint8  // lower runs first among tasks due in the same pass
	Period   uint64 // milliseconds
}

// Result is what a task run tells the scheduler to do next.
type Result struct {
	stop   bool
	period uint64
}

var (
	// Continue re-arms the task one period after the current pass.
	Continue = Result{} //nolint:gochecknoglobals // sentinel value
	// Stop disarms the task.
	Stop = Result{stop: true} //nolint:gochecknoglobals // sentinel value
)

// ContinueAfter re-arms the task after period milliseconds instead of its configured period. The
// new period sticks for later runs.
func ContinueAfter(period uint64) Result {
	return Result{period: period}
}

// Executor runs due tasks.
type Executor interface {
	Execute(now uint64, h Handle, t Task) Result
}

// ExecutorFunc adapts a function to Executor.
type ExecutorFunc func(now uint64, h Handle, t Task) Result

func (f ExecutorFunc) Execute(now uint64, h Handle, t Task) Result {
	return f(now, h, t)
}
