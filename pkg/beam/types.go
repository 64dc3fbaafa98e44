package beam

import "context"

// StepStatus tracks a step through execution
type StepStatus string

const (
	StepStatusPending   StepStatus = "pending"
	StepStatusRunning   StepStatus = "running"
	StepStatusCompleted StepStatus = "completed"
	StepStatusFailed    StepStatus = "failed"
)

// Step is one capability invocation inside a beam. OnSuccess and
// OnFailure name the next step by ID; an empty OnSuccess falls through
// to the next step in declaration order, an empty OnFailure aborts the
// beam.
type Step struct {
	ID         string         `json:"id"`
	Capability string         `json:"capability"`
	Input      map[string]any `json:"input,omitempty"`
	OnSuccess  string         `json:"on_success,omitempty"`
	OnFailure  string         `json:"on_failure,omitempty"`
}

// Beam is a named, possibly branching sequence of capability invocations
type Beam struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Steps []Step `json:"steps"`
}

// StepRecord is one entry of an execution log
type StepRecord struct {
	ID            string     `json:"id"`
	Status        StepStatus `json:"status"`
	Output        any        `json:"output,omitempty"`
	Error         string     `json:"error,omitempty"`
	StartedAtMs   int64      `json:"started_at_ms"`
	CompletedAtMs int64      `json:"completed_at_ms"`
}

// ExecutionLog is the ordered list of step records produced by one run
type ExecutionLog []StepRecord

// Executor runs a beam and returns its output together with the
// execution log. The log is returned on failure too, covering every
// step attempted before the error.
type Executor interface {
	ExecuteBeam(ctx context.Context, b Beam, input map[string]any) (map[string]any, ExecutionLog, error)
}
