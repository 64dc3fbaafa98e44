package company

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/sojinmm/lux-sub007/pkg/capability"
	"github.com/sojinmm/lux-sub007/pkg/runner"
	"github.com/sojinmm/lux-sub007/pkg/signal"
)

// memberTaskKey is the agent-context key holding the member's record of
// terminal task statuses. Cancellations arriving after a task finished
// are dropped by consulting this record.
const memberTaskKey = "finished_tasks"

const defaultTaskTimeout = 2 * time.Minute

// SignalSink receives the signals a member emits back toward its
// coordinator.
type SignalSink func(sig signal.Signal) error

// MemberConfig binds one agent runner to a role inside a company.
type MemberConfig struct {
	Runner        *runner.Runner
	CoordinatorID string

	// Handler executes individual capability invocations for assigned
	// tasks.
	Handler capability.Handler

	// Inferencer maps a task description to the capabilities to
	// execute. Defaults to the keyword inferencer.
	Inferencer capability.Inferencer

	Sink SignalSink

	// TaskTimeout bounds the execution of one assignment. Defaults to
	// two minutes.
	TaskTimeout time.Duration

	Logger zerolog.Logger
}

func (cfg MemberConfig) validate() error {
	if cfg.Runner == nil {
		return fmt.Errorf("%w: runner is required", runner.ErrInvalidConfig)
	}
	if cfg.Handler == nil {
		return fmt.Errorf("%w: capability handler is required", runner.ErrInvalidConfig)
	}
	if cfg.Sink == nil {
		return fmt.Errorf("%w: signal sink is required", runner.ErrInvalidConfig)
	}
	return nil
}

// BindRole registers the task-signal handler on the member's runner.
// Assignments are executed through the capability handler and the
// outcome is reported back through the sink as a completion or failure
// signal. Cancellations for tasks the member already finished are
// ignored.
func BindRole(cfg MemberConfig) error {
	if err := cfg.validate(); err != nil {
		return err
	}
	if cfg.Inferencer == nil {
		cfg.Inferencer = capability.NewKeywordInferencer(capability.DefaultKeywordTable(), "")
	}
	if cfg.TaskTimeout <= 0 {
		cfg.TaskTimeout = defaultTaskTimeout
	}
	return cfg.Runner.RegisterHandler(TaskSignalName, func(state runner.AgentState, sig signal.Signal) (runner.HandlerResult, error) {
		ts, err := ParseTaskSignal(sig)
		if err != nil {
			return runner.HandlerResult{}, err
		}
		switch ts.Type {
		case TaskSignalAssignment:
			return handleAssignment(cfg, state, ts)
		case TaskSignalCancellation:
			return handleCancellation(cfg, state, ts)
		default:
			// Upward signal types are not addressed to members.
			return runner.HandlerResult{}, nil
		}
	})
}

func handleAssignment(cfg MemberConfig, state runner.AgentState, ts TaskSignal) (runner.HandlerResult, error) {
	// An assignment racing behind a cancellation must not execute. Only
	// the cancelled record blocks here: retries re-assign a task the
	// member already recorded as failed.
	if finishedStatus(state, ts.TaskID) == "cancelled" {
		cfg.Logger.Debug().
			Str("agent_id", state.ID).
			Str("task_id", ts.TaskID).
			Msg("Ignoring assignment for cancelled task")
		return runner.HandlerResult{}, nil
	}

	started := time.Now()
	result := executeTask(cfg, state, ts)

	meta := &TaskSignalMetadata{
		StartedAtMs:   started.UnixMilli(),
		CompletedAtMs: time.Now().UnixMilli(),
		DurationMs:    time.Since(started).Milliseconds(),
	}
	if ts.Metadata != nil {
		meta.Attempt = ts.Metadata.Attempt
	}

	taskResult := TaskResult{
		Success:   result.Success,
		Output:    result.Output,
		Error:     result.Error,
		Artifacts: result.Artifacts,
	}

	var report TaskSignal
	status := TaskStatusCompleted
	if result.Success {
		report = NewCompletion(ts.TaskID, ts.ObjectiveID, ts.Title, taskResult, meta)
	} else {
		status = TaskStatusFailed
		report = NewFailure(ts.TaskID, ts.ObjectiveID, ts.Title, taskResult, meta)
	}

	out, err := report.Signal(state.ID, cfg.CoordinatorID)
	if err != nil {
		return runner.HandlerResult{}, fmt.Errorf("build task report: %w", err)
	}
	if err := cfg.Sink(out); err != nil {
		return runner.HandlerResult{}, fmt.Errorf("report task %s: %w", ts.TaskID, err)
	}

	cfg.Logger.Debug().
		Str("agent_id", state.ID).
		Str("task_id", ts.TaskID).
		Bool("success", result.Success).
		Msg("Task report sent")

	return runner.HandlerResult{
		Updates: map[string]any{
			memberTaskKey: recordFinished(state, ts.TaskID, status),
		},
	}, nil
}

func handleCancellation(cfg MemberConfig, state runner.AgentState, ts TaskSignal) (runner.HandlerResult, error) {
	if finishedStatus(state, ts.TaskID) != "" {
		cfg.Logger.Debug().
			Str("agent_id", state.ID).
			Str("task_id", ts.TaskID).
			Msg("Ignoring cancellation for finished task")
		return runner.HandlerResult{}, nil
	}
	return runner.HandlerResult{
		Updates: map[string]any{
			memberTaskKey: recordFinished(state, ts.TaskID, "cancelled"),
		},
	}, nil
}

// executeTask runs each capability the task calls for, in order,
// stopping at the first failure. Outputs are keyed by capability.
func executeTask(cfg MemberConfig, state runner.AgentState, ts TaskSignal) capability.Result {
	caps := cfg.Inferencer.InferCapabilities(taskText(ts))

	execCtx := capability.Context{
		AgentID: state.ID,
		TaskID:  ts.TaskID,
	}
	input := map[string]any{
		"task_id":     ts.TaskID,
		"title":       ts.Title,
		"description": ts.Description,
	}
	if ts.Context != nil {
		execCtx.Tools = ts.Context.Tools
		execCtx.Constraints = ts.Context.Constraints
		execCtx.References = ts.Context.References
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.TaskTimeout)
	defer cancel()

	outputs := make(map[string]any, len(caps))
	artifacts := make([]string, 0)
	for _, name := range caps {
		res, err := cfg.Handler.Execute(ctx, name, input, execCtx)
		if err != nil {
			return capability.Result{
				Success: false,
				Output:  outputs,
				Error:   fmt.Sprintf("capability %s: %v", name, err),
			}
		}
		if !res.Success {
			msg := res.Error
			if msg == "" {
				msg = fmt.Sprintf("capability %s failed", name)
			}
			return capability.Result{
				Success:   false,
				Output:    outputs,
				Error:     msg,
				Artifacts: artifacts,
			}
		}
		if res.Output != nil {
			outputs[name] = res.Output
		}
		artifacts = append(artifacts, res.Artifacts...)
	}
	return capability.Result{
		Success:   true,
		Output:    outputs,
		Artifacts: artifacts,
	}
}

func taskText(ts TaskSignal) string {
	if ts.Description != "" {
		return ts.Description
	}
	return ts.Title
}

// finishedStatus returns the recorded terminal status of a task, or ""
// when the member never finished it.
func finishedStatus(state runner.AgentState, taskID string) string {
	rec, ok := state.Context[memberTaskKey].(map[string]any)
	if !ok {
		return ""
	}
	status, _ := rec[taskID].(string)
	return status
}

func recordFinished(state runner.AgentState, taskID string, status TaskStatus) map[string]any {
	rec, ok := state.Context[memberTaskKey].(map[string]any)
	if !ok {
		rec = make(map[string]any)
	}
	rec[taskID] = string(status)
	return rec
}
