package automation

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func echoExecutor(value any) Executor {
	return func(ctx context.Context, params map[string]any) (any, error) {
		return value, nil
	}
}

func failingExecutor(err error) Executor {
	return func(ctx context.Context, params map[string]any) (any, error) {
		return nil, err
	}
}

func TestExecuteWorkflowRunsLayeredDAGInOrder(t *testing.T) {
	wf := NewWorkflow("pipeline")
	var mu sync.Mutex
	var order []string
	record := func(name string) Executor {
		return func(ctx context.Context, params map[string]any) (any, error) {
			mu.Lock()
			order = append(order, name)
			mu.Unlock()
			return name, nil
		}
	}
	wf.RegisterExecutor("build", record("build"))
	wf.RegisterExecutor("test", record("test"))
	wf.RegisterExecutor("deploy", record("deploy"))

	wf.AddTask(NewTask("build", "build", "build", nil))
	wf.AddTask(NewTask("test", "test", "test", nil).DependsOn("build"))
	wf.AddTask(NewTask("deploy", "deploy", "deploy", nil).DependsOn("test"))

	result, err := wf.ExecuteWorkflow(context.Background(), NewContext(nil))
	if err != nil {
		t.Fatalf("ExecuteWorkflow: %v", err)
	}
	if len(order) != 3 || order[0] != "build" || order[1] != "test" || order[2] != "deploy" {
		t.Fatalf("execution order = %v, want [build test deploy]", order)
	}
	for _, task := range result.Tasks {
		if task.Status != TaskCompleted {
			t.Fatalf("task %s status = %s, want completed", task.ID, task.Status)
		}
	}
}

func TestExecuteWorkflowResolvesContextReferenceBetweenTasks(t *testing.T) {
	wf := NewWorkflow("chain")
	wf.RegisterExecutor("produce", echoExecutor("hello"))
	wf.RegisterExecutor("consume", func(ctx context.Context, params map[string]any) (any, error) {
		return params["input"], nil
	})
	wf.AddTask(NewTask("p", "produce", "produce", nil))
	wf.AddTask(NewTask("c", "consume", "consume", map[string]any{"input": "$task_p_result"}).DependsOn("p"))

	result, err := wf.ExecuteWorkflow(context.Background(), NewContext(nil))
	if err != nil {
		t.Fatalf("ExecuteWorkflow: %v", err)
	}
	var consumeResult any
	for _, task := range result.Tasks {
		if task.ID == "c" {
			consumeResult = task.Result
		}
	}
	if consumeResult != "hello" {
		t.Fatalf("consume task result = %v, want hello", consumeResult)
	}
}

func TestExecuteWorkflowRetriesThenFailsAfterExhaustingBudget(t *testing.T) {
	wf := NewWorkflow("flaky")
	var attempts int32
	wf.RegisterExecutor("flaky", func(ctx context.Context, params map[string]any) (any, error) {
		atomic.AddInt32(&attempts, 1)
		return nil, errors.New("transient failure")
	})
	task := NewTask("t", "flaky", "flaky", nil).Retries(2).WithTimeout(time.Second)
	wf.AddTask(task)

	result, err := wf.ExecuteWorkflow(context.Background(), NewContext(nil))
	if err != nil {
		t.Fatalf("ExecuteWorkflow: %v", err)
	}
	if attempts != 3 {
		t.Fatalf("attempts = %d, want 3 (1 initial + 2 retries)", attempts)
	}
	if result.Tasks[0].Status != TaskFailed {
		t.Fatalf("status = %s, want failed", result.Tasks[0].Status)
	}
	if result.Tasks[0].RetryCount != 2 {
		t.Fatalf("RetryCount = %d, want 2", result.Tasks[0].RetryCount)
	}
}

func TestExecuteWorkflowSkipsTaskWhenConditionFalse(t *testing.T) {
	wf := NewWorkflow("gated")
	var ran bool
	wf.RegisterExecutor("noop", func(ctx context.Context, params map[string]any) (any, error) {
		ran = true
		return nil, nil
	})
	task := NewTask("t", "gated", "noop", nil).When(Condition{Operator: OpEqual, Left: "a", Right: "b"})
	wf.AddTask(task)

	result, err := wf.ExecuteWorkflow(context.Background(), NewContext(nil))
	if err != nil {
		t.Fatalf("ExecuteWorkflow: %v", err)
	}
	if ran {
		t.Fatal("executor should not have run when condition evaluates false")
	}
	if result.Tasks[0].Status != TaskSkipped {
		t.Fatalf("status = %s, want skipped", result.Tasks[0].Status)
	}
}

func TestExecuteWorkflowDetectsCycle(t *testing.T) {
	wf := NewWorkflow("cyclic")
	wf.RegisterExecutor("noop", echoExecutor(nil))
	wf.AddTask(NewTask("a", "a", "noop", nil).DependsOn("b"))
	wf.AddTask(NewTask("b", "b", "noop", nil).DependsOn("a"))

	_, err := wf.ExecuteWorkflow(context.Background(), NewContext(nil))
	if err == nil {
		t.Fatal("expected a ValidationError for a cyclic dependency graph")
	}
	var verr *ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("error = %v (%T), want *ValidationError", err, err)
	}
}

func TestExecuteWorkflowRejectsUnregisteredAction(t *testing.T) {
	wf := NewWorkflow("unbound")
	wf.AddTask(NewTask("a", "a", "ghost_action", nil))

	_, err := wf.ExecuteWorkflow(context.Background(), NewContext(nil))
	if err == nil {
		t.Fatal("expected a ValidationError for an unregistered action reference")
	}
	var verr *ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("error = %v (%T), want *ValidationError", err, err)
	}
}

func TestExecuteWorkflowUnknownDependencyIsValidationError(t *testing.T) {
	wf := NewWorkflow("danglingdep")
	wf.RegisterExecutor("noop", echoExecutor(nil))
	wf.AddTask(NewTask("a", "a", "noop", nil).DependsOn("ghost"))

	_, err := wf.ExecuteWorkflow(context.Background(), NewContext(nil))
	if err == nil {
		t.Fatal("expected a ValidationError for a reference to an unknown task id")
	}
}

func TestCancelWorkflowStopsPendingLayers(t *testing.T) {
	wf := NewWorkflow("cancelable")
	started := make(chan struct{})
	wf.RegisterExecutor("block", func(ctx context.Context, params map[string]any) (any, error) {
		close(started)
		<-ctx.Done()
		return nil, ctx.Err()
	})
	wf.RegisterExecutor("noop", echoExecutor(nil))

	blocker := NewTask("blocker", "blocker", "block", nil).WithTimeout(5 * time.Second)
	follower := NewTask("follower", "follower", "noop", nil).DependsOn("blocker")
	wf.AddTask(blocker)
	wf.AddTask(follower)

	var result WorkflowResult
	var err error
	done := make(chan struct{})
	go func() {
		result, err = wf.ExecuteWorkflow(context.Background(), NewContext(nil))
		close(done)
	}()

	<-started
	wf.CancelWorkflow()
	<-done

	if err != nil {
		t.Fatalf("ExecuteWorkflow: %v", err)
	}
	var blockerStatus TaskStatus
	for _, task := range result.Tasks {
		if task.ID == "blocker" {
			blockerStatus = task.Status
		}
	}
	if blockerStatus != TaskCancelled && blockerStatus != TaskFailed {
		t.Fatalf("blocker status = %s, want cancelled or failed after CancelWorkflow", blockerStatus)
	}
}

func TestExecuteWorkflowInvokesLifecycleCallbacks(t *testing.T) {
	var started, completed, failed int32
	var wfDone int32
	wf := NewWorkflow("lifecycle",
		OnTaskStart(func(Task) { atomic.AddInt32(&started, 1) }),
		OnTaskComplete(func(Task) { atomic.AddInt32(&completed, 1) }),
		OnTaskFailed(func(Task) { atomic.AddInt32(&failed, 1) }),
		OnWorkflowComplete(func(WorkflowResult) { atomic.AddInt32(&wfDone, 1) }),
	)
	wf.RegisterExecutor("ok", echoExecutor("done"))
	wf.RegisterExecutor("bad", failingExecutor(errors.New("nope")))
	wf.AddTask(NewTask("ok", "ok", "ok", nil))
	wf.AddTask(NewTask("bad", "bad", "bad", nil).Retries(0).WithTimeout(time.Second))

	_, err := wf.ExecuteWorkflow(context.Background(), NewContext(nil))
	if err != nil {
		t.Fatalf("ExecuteWorkflow: %v", err)
	}
	if started != 2 {
		t.Fatalf("started callback count = %d, want 2", started)
	}
	if completed != 1 {
		t.Fatalf("completed callback count = %d, want 1", completed)
	}
	if failed != 1 {
		t.Fatalf("failed callback count = %d, want 1", failed)
	}
	if wfDone != 1 {
		t.Fatalf("workflow-complete callback count = %d, want 1", wfDone)
	}
}

func TestExecuteWorkflowPanickingCallbackDoesNotCrash(t *testing.T) {
	wf := NewWorkflow("paniccallback", OnTaskComplete(func(Task) { panic("boom") }))
	wf.RegisterExecutor("ok", echoExecutor("done"))
	wf.AddTask(NewTask("ok", "ok", "ok", nil))

	result, err := wf.ExecuteWorkflow(context.Background(), NewContext(nil))
	if err != nil {
		t.Fatalf("ExecuteWorkflow: %v", err)
	}
	if result.Tasks[0].Status != TaskCompleted {
		t.Fatalf("status = %s, want completed despite callback panic", result.Tasks[0].Status)
	}
}

func TestExecuteWorkflowResetsStateAcrossRuns(t *testing.T) {
	wf := NewWorkflow("rerun")
	wf.RegisterExecutor("ok", echoExecutor("done"))
	task := NewTask("t", "t", "ok", nil)
	wf.AddTask(task)

	first, err := wf.ExecuteWorkflow(context.Background(), NewContext(nil))
	if err != nil {
		t.Fatalf("first ExecuteWorkflow: %v", err)
	}
	second, err := wf.ExecuteWorkflow(context.Background(), NewContext(nil))
	if err != nil {
		t.Fatalf("second ExecuteWorkflow: %v", err)
	}
	if first.Tasks[0].Status != TaskCompleted || second.Tasks[0].Status != TaskCompleted {
		t.Fatal("expected both runs to complete independently")
	}
}

func TestMaxParallelTasksBoundsConcurrency(t *testing.T) {
	wf := NewWorkflow("bounded", MaxParallelTasks(2))
	var running int32
	var maxObserved int32
	release := make(chan struct{})
	wf.RegisterExecutor("slow", func(ctx context.Context, params map[string]any) (any, error) {
		n := atomic.AddInt32(&running, 1)
		for {
			cur := atomic.LoadInt32(&maxObserved)
			if n <= cur || atomic.CompareAndSwapInt32(&maxObserved, cur, n) {
				break
			}
		}
		<-release
		atomic.AddInt32(&running, -1)
		return nil, nil
	})
	for i := 0; i < 5; i++ {
		wf.AddTask(NewTask(string(rune('a'+i)), "t", "slow", nil).WithTimeout(5 * time.Second))
	}

	done := make(chan struct{})
	go func() {
		wf.ExecuteWorkflow(context.Background(), NewContext(nil))
		close(done)
	}()

	time.Sleep(50 * time.Millisecond)
	close(release)
	<-done

	if maxObserved > 2 {
		t.Fatalf("observed concurrency = %d, want <= 2", maxObserved)
	}
}
