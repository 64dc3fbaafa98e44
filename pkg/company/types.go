package company

import "errors"

// Errors surfaced by the hub and coordinator
var (
	ErrDuplicateID        = errors.New("company id already registered")
	ErrCompanyNotFound    = errors.New("company not found")
	ErrObjectiveNotFound  = errors.New("objective not found")
	ErrTaskNotFound       = errors.New("task not found")
	ErrNoEligibleRole     = errors.New("no eligible role for task")
	ErrTimeout            = errors.New("objective wait timed out")
	ErrCoordinatorStopped = errors.New("coordinator is stopped")
)

// Role is a named position inside a company. Agent references the
// identity of the agent runner bound to the role.
type Role struct {
	ID           string   `json:"id"`
	Name         string   `json:"name"`
	Goal         string   `json:"goal,omitempty"`
	Capabilities []string `json:"capabilities"`
	Agent        string   `json:"agent,omitempty"`
}

// Objective is a high-level goal decomposed into ordered steps
type Objective struct {
	ID              string   `json:"id"`
	Description     string   `json:"description"`
	SuccessCriteria []string `json:"success_criteria,omitempty"`
	Steps           []string `json:"steps"`
}

// Company is a named group of one coordinating role (CEO) and member
// roles pursuing shared objectives. The hub owns the canonical record;
// coordinators hold transient views.
type Company struct {
	ID         string      `json:"id"`
	Name       string      `json:"name"`
	Mission    string      `json:"mission,omitempty"`
	CEO        Role        `json:"ceo"`
	Roles      []Role      `json:"roles"`
	Objectives []Objective `json:"objectives"`
}

// FindObjective returns the objective with the given id
func (c Company) FindObjective(id string) (Objective, bool) {
	for _, obj := range c.Objectives {
		if obj.ID == id {
			return obj, true
		}
	}
	return Objective{}, false
}

// TaskStatus tracks a task through its state machine
type TaskStatus string

const (
	TaskStatusPending    TaskStatus = "pending"
	TaskStatusInProgress TaskStatus = "in_progress"
	TaskStatusCompleted  TaskStatus = "completed"
	TaskStatusFailed     TaskStatus = "failed"
)

// Terminal reports whether the status admits no further transitions
func (s TaskStatus) Terminal() bool {
	return s == TaskStatusCompleted || s == TaskStatusFailed
}

// TaskResult is the outcome reported for a task
type TaskResult struct {
	Success   bool     `json:"success"`
	Output    any      `json:"output,omitempty"`
	Error     string   `json:"error,omitempty"`
	Artifacts []string `json:"artifacts,omitempty"`
}

// TaskMetadata carries timestamps and the attempt counter
type TaskMetadata struct {
	CreatedAtMs   int64 `json:"created_at_ms"`
	StartedAtMs   int64 `json:"started_at_ms,omitempty"`
	CompletedAtMs int64 `json:"completed_at_ms,omitempty"`
	DurationMs    int64 `json:"duration_ms,omitempty"`
	Attempt       int   `json:"attempt"`
}

// Task is the unit of delegated work derived from one objective step
type Task struct {
	ID                   string       `json:"id"`
	ObjectiveID          string       `json:"objective_id"`
	Title                string       `json:"title"`
	Description          string       `json:"description,omitempty"`
	RequiredCapabilities []string     `json:"required_capabilities"`
	Status               TaskStatus   `json:"status"`
	Progress             float64      `json:"progress,omitempty"`
	AssignedRole         string       `json:"assigned_role,omitempty"`
	Result               *TaskResult  `json:"result,omitempty"`
	Metadata             TaskMetadata `json:"metadata"`
}

// ObjectiveStatus aggregates the statuses of an objective's tasks
type ObjectiveStatus string

const (
	ObjectiveStatusPending   ObjectiveStatus = "pending"
	ObjectiveStatusRunning   ObjectiveStatus = "running"
	ObjectiveStatusCompleted ObjectiveStatus = "completed"
	ObjectiveStatusFailed    ObjectiveStatus = "failed"
)

// Plan tracks one in-flight objective execution
type Plan struct {
	ID          string           `json:"id"`
	ObjectiveID string           `json:"objective_id"`
	Status      ObjectiveStatus  `json:"status"`
	Tasks       map[string]*Task `json:"tasks"`
	TaskOrder   []string         `json:"task_order"`
	StartedAtMs int64            `json:"started_at_ms"`
	Reason      string           `json:"reason,omitempty"`
}

// ObjectiveOutcome is delivered to callers awaiting objective
// completion. Partial results from completed tasks are preserved on
// failure.
type ObjectiveOutcome struct {
	ObjectiveID    string                `json:"objective_id"`
	Status         ObjectiveStatus       `json:"status"`
	Results        map[string]TaskResult `json:"results"`
	FailingTaskIDs []string              `json:"failing_task_ids,omitempty"`
	Reason         string                `json:"reason,omitempty"`
}
