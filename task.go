package automation

import "time"

// TaskStatus is the terminal-state machine a Task moves through during one
// workflow execution: Pending -> Running -> {Completed, Failed, Skipped, Cancelled}.
type TaskStatus string

const (
	TaskPending   TaskStatus = "pending"
	TaskRunning   TaskStatus = "running"
	TaskCompleted TaskStatus = "completed"
	TaskFailed    TaskStatus = "failed"
	TaskSkipped   TaskStatus = "skipped"
	TaskCancelled TaskStatus = "cancelled"
)

// Task is one unit of work in a Workflow. Action names a registered
// Executor; Params may hold literals or "$name" context references resolved
// at dispatch time. The mutable fields below are owned by the scheduler for
// the lifetime of one ExecuteWorkflow call.
type Task struct {
	ID           string
	Name         string
	Action       string
	Params       map[string]any
	Dependencies []string
	Condition    *Condition
	MaxRetries   int
	Timeout      time.Duration

	Status     TaskStatus
	Result     any
	Err        string
	StartedAt  time.Time
	EndedAt    time.Time
	RetryCount int
}

// DefaultMaxRetries and DefaultTaskTimeout are the retry budget and
// per-attempt timeout every NewTask starts with, matching the engine's
// documented defaults; Retries and WithTimeout override them.
const (
	DefaultMaxRetries = 3
	DefaultTaskTimeout = 60 * time.Second
)

// NewTask constructs a Task with default retry budget and timeout. Params
// may be nil; dependencies are added separately via DependsOn or supplied
// directly by setting Dependencies.
func NewTask(id, name, action string, params map[string]any) *Task {
	if params == nil {
		params = map[string]any{}
	}
	return &Task{
		ID:         id,
		Name:       name,
		Action:     action,
		Params:     params,
		Status:     TaskPending,
		MaxRetries: DefaultMaxRetries,
		Timeout:    DefaultTaskTimeout,
	}
}

// DependsOn appends ids to the task's dependency list and returns the task,
// for chained construction.
func (t *Task) DependsOn(ids ...string) *Task {
	t.Dependencies = append(t.Dependencies, ids...)
	return t
}

// When attaches a gating Condition and returns the task.
func (t *Task) When(c Condition) *Task {
	t.Condition = &c
	return t
}

// Retries overrides the retry budget and returns the task.
func (t *Task) Retries(n int) *Task {
	t.MaxRetries = n
	return t
}

// WithTimeout overrides the per-attempt timeout and returns the task.
func (t *Task) WithTimeout(d time.Duration) *Task {
	t.Timeout = d
	return t
}

// snapshot returns a value copy of the task's public state, safe to hand to
// a callback or include in a WorkflowResult without aliasing scheduler state.
func (t *Task) snapshot() Task {
	cp := *t
	cp.Params = make(map[string]any, len(t.Params))
	for k, v := range t.Params {
		cp.Params[k] = v
	}
	cp.Dependencies = append([]string(nil), t.Dependencies...)
	return cp
}
