package automation

import (
	"encoding/json"
	"fmt"
	"time"
)

// ConditionDefinition is the JSON-equivalent ingestion form of a Condition.
type ConditionDefinition struct {
	Operator string `json:"operator"`
	Left     any    `json:"left"`
	Right    any    `json:"right,omitempty"`
}

// TaskDefinition is the JSON-equivalent ingestion form of a Task. ID is
// optional; when omitted the engine generates one. Dependencies name
// caller-supplied ids, so a task without an ID cannot be named as a
// dependency.
type TaskDefinition struct {
	ID           string                `json:"id,omitempty"`
	Name         string                `json:"name"`
	Action       string                `json:"action"`
	Params       map[string]any        `json:"params,omitempty"`
	Dependencies []string              `json:"dependencies,omitempty"`
	Condition    *ConditionDefinition  `json:"condition,omitempty"`
	MaxRetries   *int                  `json:"max_retries,omitempty"`
	TimeoutSecs  *int                  `json:"timeout,omitempty"`
}

// WorkflowDefinition is the JSON-equivalent ingestion form of a Workflow,
// matching the documented external interface exactly.
type WorkflowDefinition struct {
	Name        string           `json:"name"`
	Description string           `json:"description,omitempty"`
	Tasks       []TaskDefinition `json:"tasks"`
}

// ParseWorkflowDefinition unmarshals raw JSON into a WorkflowDefinition.
func ParseWorkflowDefinition(raw []byte) (WorkflowDefinition, error) {
	var def WorkflowDefinition
	if err := json.Unmarshal(raw, &def); err != nil {
		return WorkflowDefinition{}, fmt.Errorf("parse workflow definition: %w", err)
	}
	return def, nil
}

var conditionOperators = map[string]ConditionOperator{
	"eq":       OpEqual,
	"ne":       OpNotEqual,
	"gt":       OpGreater,
	"lt":       OpLess,
	"contains": OpContains,
	"always":   OpAlways,
}

// FromDefinition builds a *Workflow from a WorkflowDefinition. Caller-
// supplied task ids are preserved when present; tasks that omit an id
// receive an engine-generated one. Each dependency reference must be a
// caller-supplied id of another task in def; positional references are not
// supported, and an unknown reference is a ValidationError.
func FromDefinition(def WorkflowDefinition, opts ...WorkflowOption) (*Workflow, error) {
	wf := NewWorkflow(def.Name, opts...)

	ids := make([]string, len(def.Tasks))
	seen := make(map[string]string, len(def.Tasks)) // caller-supplied id -> resolved id
	for i, td := range def.Tasks {
		id := td.ID
		if id == "" {
			id = NewID()
		}
		ids[i] = id
		if td.ID != "" {
			seen[td.ID] = id
		}
	}

	for i, td := range def.Tasks {
		task := NewTask(ids[i], td.Name, td.Action, td.Params)
		for _, dep := range td.Dependencies {
			resolved, ok := seen[dep]
			if !ok {
				return nil, &ValidationError{Workflow: def.Name, Reason: fmt.Sprintf("task %s depends on unknown id %q", ids[i], dep)}
			}
			task.Dependencies = append(task.Dependencies, resolved)
		}
		if td.Condition != nil {
			op, ok := conditionOperators[td.Condition.Operator]
			if !ok {
				return nil, &ValidationError{Workflow: def.Name, Reason: fmt.Sprintf("task %s has unknown condition operator %q", ids[i], td.Condition.Operator)}
			}
			task.Condition = &Condition{Operator: op, Left: td.Condition.Left, Right: td.Condition.Right}
		}
		if td.MaxRetries != nil {
			task.MaxRetries = *td.MaxRetries
		}
		if td.TimeoutSecs != nil {
			task.Timeout = time.Duration(*td.TimeoutSecs) * time.Second
		}
		wf.AddTask(task)
	}
	return wf, nil
}
