package automation

import (
	"testing"
	"time"
)

func TestFromDefinitionPreservesCallerSuppliedIDs(t *testing.T) {
	def := WorkflowDefinition{
		Name: "deploy",
		Tasks: []TaskDefinition{
			{ID: "build", Name: "build", Action: "shell"},
			{ID: "test", Name: "test", Action: "shell", Dependencies: []string{"build"}},
		},
	}
	wf, err := FromDefinition(def)
	if err != nil {
		t.Fatalf("FromDefinition: %v", err)
	}
	if wf.ID() == "" {
		t.Fatal("expected workflow to have a generated id")
	}
	if len(wf.tasks) != 2 || wf.tasks[0].ID != "build" || wf.tasks[1].ID != "test" {
		t.Fatal("expected caller-supplied task ids build and test to be preserved")
	}
}

func TestFromDefinitionGeneratesMissingIDs(t *testing.T) {
	def := WorkflowDefinition{
		Name: "anon",
		Tasks: []TaskDefinition{
			{Name: "first", Action: "noop"},
		},
	}
	wf, err := FromDefinition(def)
	if err != nil {
		t.Fatalf("FromDefinition: %v", err)
	}
	if wf == nil {
		t.Fatal("expected non-nil workflow")
	}
	if len(wf.tasks) != 1 || wf.tasks[0].ID == "" {
		t.Fatal("expected an engine-generated id for a task without one")
	}
}

func TestFromDefinitionResolvesCallerIDDependencies(t *testing.T) {
	def := WorkflowDefinition{
		Name: "chain",
		Tasks: []TaskDefinition{
			{ID: "a", Name: "a", Action: "noop"},
			{ID: "b", Name: "b", Action: "noop", Dependencies: []string{"a"}},
		},
	}
	wf, err := FromDefinition(def)
	if err != nil {
		t.Fatalf("FromDefinition: %v", err)
	}
	if wf == nil {
		t.Fatal("expected non-nil workflow")
	}
	if deps := wf.tasks[1].Dependencies; len(deps) != 1 || deps[0] != "a" {
		t.Fatalf("dependencies of b = %v, want [a]", deps)
	}
}

func TestFromDefinitionRejectsUnknownDependency(t *testing.T) {
	def := WorkflowDefinition{
		Name: "broken",
		Tasks: []TaskDefinition{
			{ID: "a", Name: "a", Action: "noop", Dependencies: []string{"ghost"}},
		},
	}
	_, err := FromDefinition(def)
	if err == nil {
		t.Fatal("expected ValidationError for unknown dependency")
	}
}

func TestFromDefinitionRejectsUnknownConditionOperator(t *testing.T) {
	def := WorkflowDefinition{
		Name: "badcond",
		Tasks: []TaskDefinition{
			{ID: "a", Name: "a", Action: "noop", Condition: &ConditionDefinition{Operator: "bogus"}},
		},
	}
	_, err := FromDefinition(def)
	if err == nil {
		t.Fatal("expected ValidationError for unknown condition operator")
	}
}

func TestFromDefinitionAppliesOverrides(t *testing.T) {
	retries := 9
	timeout := 120
	def := WorkflowDefinition{
		Name: "overrides",
		Tasks: []TaskDefinition{
			{ID: "a", Name: "a", Action: "noop", MaxRetries: &retries, TimeoutSecs: &timeout},
		},
	}
	wf, err := FromDefinition(def)
	if err != nil {
		t.Fatalf("FromDefinition: %v", err)
	}
	if wf == nil {
		t.Fatal("expected non-nil workflow")
	}
	if wf.tasks[0].MaxRetries != 9 || wf.tasks[0].Timeout != 120*time.Second {
		t.Fatalf("overrides = %d retries, %s timeout, want 9 and 2m0s", wf.tasks[0].MaxRetries, wf.tasks[0].Timeout)
	}
}

func TestParseWorkflowDefinitionRoundTrip(t *testing.T) {
	raw := []byte(`{"name":"demo","tasks":[{"name":"t","action":"noop"}]}`)
	def, err := ParseWorkflowDefinition(raw)
	if err != nil {
		t.Fatalf("ParseWorkflowDefinition: %v", err)
	}
	if def.Name != "demo" || len(def.Tasks) != 1 {
		t.Fatalf("def = %+v, want name=demo with one task", def)
	}
}

func TestParseWorkflowDefinitionRejectsMalformedJSON(t *testing.T) {
	_, err := ParseWorkflowDefinition([]byte(`{not json`))
	if err == nil {
		t.Fatal("expected parse error for malformed JSON")
	}
}
