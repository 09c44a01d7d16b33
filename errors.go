package automation

import "fmt"

// ValidationError reports a workflow that failed validation before any task
// ran: a cycle in the dependency graph, a reference to an unregistered
// executor, or a malformed condition.
type ValidationError struct {
	Workflow string
	Reason   string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("workflow %s: %s", e.Workflow, e.Reason)
}

// PermissionDeniedError reports that an action was gated by the permission
// manager and denied, either by rule or by prompt.
type PermissionDeniedError struct {
	Action string
	Risk   string
	RuleID string // empty when the denial came from defaults, a prompt, or the final scope check
}

func (e *PermissionDeniedError) Error() string {
	if e.RuleID != "" {
		return fmt.Sprintf("action %q denied by rule %s (risk %s)", e.Action, e.RuleID, e.Risk)
	}
	return fmt.Sprintf("action %q denied (risk %s)", e.Action, e.Risk)
}

// SandboxError reports that a sandboxed execution could not even start.
// Timeouts, kills, and non-zero exits are not returned as errors — they are
// carried in ExecutionResult's status instead.
type SandboxError struct {
	Status string // "setup" for preparation failures; "killed" for a container wait failure
	Detail string
}

func (e *SandboxError) Error() string {
	return fmt.Sprintf("sandbox %s: %s", e.Status, e.Detail)
}

// RollbackError wraps a single rollback-point inverse-operation failure.
// Rollback always logs and swallows these; the type exists so a logger
// sink can inspect a swallowed failure with errors.As. Commit and Rollback
// also return it for transaction-level failures (an unknown transaction id,
// or a transaction already rolled back), with PointID holding the
// transaction id.
type RollbackError struct {
	PointID string
	Kind    string
	Cause   error
}

func (e *RollbackError) Error() string {
	return fmt.Sprintf("rollback point %s (%s): %v", e.PointID, e.Kind, e.Cause)
}

func (e *RollbackError) Unwrap() error { return e.Cause }
