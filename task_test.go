package automation

import (
	"testing"
	"time"
)

func TestNewTaskAppliesDefaults(t *testing.T) {
	task := NewTask("t1", "build", "shell", nil)
	if task.MaxRetries != DefaultMaxRetries {
		t.Fatalf("MaxRetries = %d, want %d", task.MaxRetries, DefaultMaxRetries)
	}
	if task.Timeout != DefaultTaskTimeout {
		t.Fatalf("Timeout = %s, want %s", task.Timeout, DefaultTaskTimeout)
	}
	if task.Params == nil {
		t.Fatal("Params should default to an empty map, not nil")
	}
	if task.Status != TaskPending {
		t.Fatalf("Status = %s, want pending", task.Status)
	}
}

func TestTaskDependsOnAppends(t *testing.T) {
	task := NewTask("t2", "deploy", "shell", nil).DependsOn("t1").DependsOn("t0")
	if len(task.Dependencies) != 2 || task.Dependencies[0] != "t1" || task.Dependencies[1] != "t0" {
		t.Fatalf("Dependencies = %v, want [t1 t0]", task.Dependencies)
	}
}

func TestTaskRetriesAndTimeoutOverride(t *testing.T) {
	task := NewTask("t3", "flaky", "shell", nil).Retries(7).WithTimeout(5 * time.Second)
	if task.MaxRetries != 7 {
		t.Fatalf("MaxRetries = %d, want 7", task.MaxRetries)
	}
	if task.Timeout != 5*time.Second {
		t.Fatalf("Timeout = %s, want 5s", task.Timeout)
	}
}

func TestTaskWhenAttachesCondition(t *testing.T) {
	task := NewTask("t4", "gated", "shell", nil).When(Condition{Operator: OpAlways})
	if task.Condition == nil || task.Condition.Operator != OpAlways {
		t.Fatal("When should attach the given condition")
	}
}

func TestTaskSnapshotIsIndependentCopy(t *testing.T) {
	task := NewTask("t5", "snap", "shell", map[string]any{"a": 1}).DependsOn("t0")
	snap := task.snapshot()

	task.Params["a"] = 2
	task.Dependencies[0] = "mutated"

	if snap.Params["a"] != 1 {
		t.Fatalf("snapshot params aliased live task: got %v, want 1", snap.Params["a"])
	}
	if snap.Dependencies[0] != "t0" {
		t.Fatalf("snapshot dependencies aliased live task: got %v, want t0", snap.Dependencies[0])
	}
}
