// Package automation is the execution core for declarative workflows: a
// DAG scheduler, a sandboxed code executor, a permission decision point, and
// a transactional rollback log.
//
// A Workflow is a fixed set of Tasks wired together by dependencies. Each
// Task names an action key that must be bound to an Executor via
// RegisterExecutor before the workflow runs. ExecuteWorkflow computes
// topological layers, dispatches each layer's tasks concurrently up to a
// configurable ceiling, and threads task results through a shared Context.
//
//	wf := automation.NewWorkflow("deploy")
//	wf.RegisterExecutor("shell", shellExecutor)
//	wf.AddTask(automation.NewTask("t1", "build", "shell", map[string]any{"cmd": "go build"}))
//	result, err := wf.ExecuteWorkflow(ctx, automation.NewContext(nil))
//
// Effectful actions dispatched by a workflow are expected to be gated
// through a permission.Manager and, where they mutate local state, recorded
// through a rollback.Manager before they run. Code execution actions run
// inside sandbox.Executor rather than directly on the host.
package automation
