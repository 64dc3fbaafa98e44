package company

import (
	"encoding/json"
	"fmt"

	"github.com/sojinmm/lux-sub007/pkg/signal"
)

// TaskSignalName is the schema name agents must accept to take part in
// company task distribution
const TaskSignalName = "task.signal"

// TaskSignalVersion is the current task signal schema version
const TaskSignalVersion = "1.0.0"

// TaskSignalType classifies a task signal
type TaskSignalType string

const (
	TaskSignalAssignment   TaskSignalType = "assignment"
	TaskSignalStatusUpdate TaskSignalType = "status_update"
	TaskSignalCompletion   TaskSignalType = "completion"
	TaskSignalFailure      TaskSignalType = "failure"
	TaskSignalCancellation TaskSignalType = "cancellation"
)

// TaskContext carries execution context into an assignment
type TaskContext struct {
	Tools       []string `json:"tools,omitempty"`
	Constraints []string `json:"constraints,omitempty"`
	References  []string `json:"references,omitempty"`
}

// TaskSignalMetadata mirrors the metadata block of a task signal
type TaskSignalMetadata struct {
	StartedAtMs   int64 `json:"started_at,omitempty"`
	CompletedAtMs int64 `json:"completed_at,omitempty"`
	DurationMs    int64 `json:"duration,omitempty"`
	Attempt       int   `json:"attempt,omitempty"`
}

// TaskSignal is the typed view of a task signal payload
type TaskSignal struct {
	Type        TaskSignalType      `json:"type"`
	TaskID      string              `json:"task_id"`
	ObjectiveID string              `json:"objective_id"`
	Title       string              `json:"title"`
	Description string              `json:"description,omitempty"`
	Context     *TaskContext        `json:"context,omitempty"`
	Status      TaskStatus          `json:"status,omitempty"`
	Progress    float64             `json:"progress,omitempty"`
	Result      *TaskResult         `json:"result,omitempty"`
	Metadata    *TaskSignalMetadata `json:"metadata,omitempty"`
}

// taskSignalDefinition is the structural schema for task signals.
// Unknown top-level fields are rejected.
func taskSignalDefinition() map[string]any {
	return map[string]any{
		"type":                 "object",
		"required":             []any{"type", "task_id", "objective_id", "title"},
		"additionalProperties": false,
		"properties": map[string]any{
			"type": map[string]any{
				"type": "string",
				"enum": []any{"assignment", "status_update", "completion", "failure", "cancellation"},
			},
			"task_id":      map[string]any{"type": "string"},
			"objective_id": map[string]any{"type": "string"},
			"title":        map[string]any{"type": "string"},
			"description":  map[string]any{"type": "string"},
			"context": map[string]any{
				"type": "object",
				"properties": map[string]any{
					"tools":       map[string]any{"type": "array", "items": map[string]any{"type": "string"}},
					"constraints": map[string]any{"type": "array", "items": map[string]any{"type": "string"}},
					"references":  map[string]any{"type": "array", "items": map[string]any{"type": "string"}},
				},
			},
			"status": map[string]any{
				"type": "string",
				"enum": []any{"pending", "in_progress", "completed", "failed"},
			},
			"progress": map[string]any{
				"type":    "number",
				"minimum": 0,
				"maximum": 100,
			},
			"result": map[string]any{
				"type":     "object",
				"required": []any{"success"},
				"properties": map[string]any{
					"success":   map[string]any{"type": "boolean"},
					"output":    map[string]any{},
					"error":     map[string]any{"type": []any{"string", "null"}},
					"artifacts": map[string]any{"type": "array", "items": map[string]any{"type": "string"}},
				},
			},
			"metadata": map[string]any{
				"type": "object",
				"properties": map[string]any{
					"started_at":   map[string]any{"type": "number"},
					"completed_at": map[string]any{"type": "number"},
					"duration":     map[string]any{"type": "number"},
					"attempt":      map[string]any{"type": "integer"},
				},
			},
		},
	}
}

// refineTaskSignal enforces cross-field rules structural validation
// cannot express: the status must agree with the signal type.
func refineTaskSignal(payload map[string]any) error {
	sigType, _ := payload["type"].(string)
	status, hasStatus := payload["status"].(string)
	if !hasStatus {
		return nil
	}

	switch TaskSignalType(sigType) {
	case TaskSignalCompletion:
		if status != string(TaskStatusCompleted) {
			return fmt.Errorf("completion signal carries status %q, want %q", status, TaskStatusCompleted)
		}
	case TaskSignalFailure:
		if status != string(TaskStatusFailed) {
			return fmt.Errorf("failure signal carries status %q, want %q", status, TaskStatusFailed)
		}
	case TaskSignalAssignment:
		if TaskStatus(status).Terminal() {
			return fmt.Errorf("assignment signal carries terminal status %q", status)
		}
	}

	return nil
}

// RegisterTaskSchema registers the task signal schema with a registry
func RegisterTaskSchema(reg *signal.Registry) error {
	return reg.Register(signal.Schema{
		Name:       TaskSignalName,
		Version:    TaskSignalVersion,
		Definition: taskSignalDefinition(),
		Refine:     refineTaskSignal,
	})
}

// Payload converts the typed view into a schema-shaped payload map
func (ts TaskSignal) Payload() (map[string]any, error) {
	raw, err := json.Marshal(ts)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal task signal: %w", err)
	}

	var payload map[string]any
	if err := json.Unmarshal(raw, &payload); err != nil {
		return nil, fmt.Errorf("failed to build task signal payload: %w", err)
	}

	return payload, nil
}

// Signal wraps the typed view into a signal envelope
func (ts TaskSignal) Signal(sender, recipient string) (signal.Signal, error) {
	payload, err := ts.Payload()
	if err != nil {
		return signal.Signal{}, err
	}
	return signal.New(TaskSignalName, payload, sender, signal.WithRecipient(recipient))
}

// ParseTaskSignal decodes a task signal payload into its typed view
func ParseTaskSignal(sig signal.Signal) (TaskSignal, error) {
	if sig.SchemaID != TaskSignalName {
		return TaskSignal{}, fmt.Errorf("signal %s has schema %s, want %s", sig.ID, sig.SchemaID, TaskSignalName)
	}

	raw, err := json.Marshal(sig.Payload)
	if err != nil {
		return TaskSignal{}, fmt.Errorf("failed to marshal payload: %w", err)
	}

	var ts TaskSignal
	if err := json.Unmarshal(raw, &ts); err != nil {
		return TaskSignal{}, fmt.Errorf("failed to parse task signal: %w", err)
	}

	return ts, nil
}

// NewAssignment builds the assignment view for a task
func NewAssignment(task *Task, taskCtx *TaskContext) TaskSignal {
	return TaskSignal{
		Type:        TaskSignalAssignment,
		TaskID:      task.ID,
		ObjectiveID: task.ObjectiveID,
		Title:       task.Title,
		Description: task.Description,
		Context:     taskCtx,
		Status:      TaskStatusInProgress,
		Metadata: &TaskSignalMetadata{
			StartedAtMs: task.Metadata.StartedAtMs,
			Attempt:     task.Metadata.Attempt,
		},
	}
}

// NewCompletion builds the completion view for a task
func NewCompletion(taskID, objectiveID, title string, result TaskResult, meta *TaskSignalMetadata) TaskSignal {
	return TaskSignal{
		Type:        TaskSignalCompletion,
		TaskID:      taskID,
		ObjectiveID: objectiveID,
		Title:       title,
		Status:      TaskStatusCompleted,
		Progress:    100,
		Result:      &result,
		Metadata:    meta,
	}
}

// NewFailure builds the failure view for a task
func NewFailure(taskID, objectiveID, title string, result TaskResult, meta *TaskSignalMetadata) TaskSignal {
	return TaskSignal{
		Type:        TaskSignalFailure,
		TaskID:      taskID,
		ObjectiveID: objectiveID,
		Title:       title,
		Status:      TaskStatusFailed,
		Result:      &result,
		Metadata:    meta,
	}
}

// NewCancellation builds the cancellation view for a task
func NewCancellation(taskID, objectiveID, title string) TaskSignal {
	return TaskSignal{
		Type:        TaskSignalCancellation,
		TaskID:      taskID,
		ObjectiveID: objectiveID,
		Title:       title,
	}
}
