package company

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sojinmm/lux-sub007/pkg/capability"
	"github.com/sojinmm/lux-sub007/pkg/runner"
	"github.com/sojinmm/lux-sub007/pkg/signal"
)

// recordingHandler scripts capability executions for member tests.
type recordingHandler struct {
	mu      sync.Mutex
	calls   []string
	results map[string]capability.Result
	errs    map[string]error
}

func (h *recordingHandler) Execute(_ context.Context, name string, _ map[string]any, _ capability.Context) (capability.Result, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.calls = append(h.calls, name)
	if err, ok := h.errs[name]; ok {
		return capability.Result{}, err
	}
	if res, ok := h.results[name]; ok {
		return res, nil
	}
	return capability.Result{Success: true, Output: "ok: " + name}, nil
}

func (h *recordingHandler) callNames() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]string{}, h.calls...)
}

type memberFixture struct {
	runner  *runner.Runner
	handler *recordingHandler
	reports chan signal.Signal
}

func newMemberFixture(t *testing.T, handler *recordingHandler) *memberFixture {
	t.Helper()
	reg := taskRegistry(t)

	r, err := runner.Start(runner.Config{
		ID:             "agent-researcher",
		Registry:       reg,
		AcceptsSignals: []string{TaskSignalName},
	})
	require.NoError(t, err)
	t.Cleanup(r.Stop)

	f := &memberFixture{
		runner:  r,
		handler: handler,
		reports: make(chan signal.Signal, 8),
	}

	require.NoError(t, BindRole(MemberConfig{
		Runner:        r,
		CoordinatorID: "coordinator:acme",
		Handler:       handler,
		Sink: func(sig signal.Signal) error {
			f.reports <- sig
			return nil
		},
		Logger: zerolog.Nop(),
	}))

	return f
}

func (f *memberFixture) deliver(t *testing.T, ts TaskSignal) {
	t.Helper()
	sig, err := ts.Signal("coordinator:acme", f.runner.ID())
	require.NoError(t, err)
	require.NoError(t, f.runner.Deliver(sig))
}

func (f *memberFixture) nextReport(t *testing.T) TaskSignal {
	t.Helper()
	select {
	case sig := <-f.reports:
		ts, err := ParseTaskSignal(sig)
		require.NoError(t, err)
		return ts
	case <-time.After(2 * time.Second):
		t.Fatal("member never reported")
		return TaskSignal{}
	}
}

func (f *memberFixture) waitFinished(t *testing.T, taskID, want string) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		state, err := f.runner.Snapshot()
		require.NoError(t, err)
		if rec, ok := state.Context[memberTaskKey].(map[string]any); ok {
			if status, _ := rec[taskID].(string); status == want {
				return
			}
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("task %s never recorded as %s", taskID, want)
}

func assignment(taskID, title string, attempt int) TaskSignal {
	return NewAssignment(&Task{
		ID:          taskID,
		ObjectiveID: "obj-1",
		Title:       title,
		Description: title,
		Metadata:    TaskMetadata{StartedAtMs: time.Now().UnixMilli(), Attempt: attempt},
	}, nil)
}

func TestBindRole(t *testing.T) {
	t.Run("requires runner, handler and sink", func(t *testing.T) {
		sink := SignalSink(func(signal.Signal) error { return nil })
		h := &recordingHandler{}

		assert.Error(t, BindRole(MemberConfig{Handler: h, Sink: sink}))

		reg := taskRegistry(t)
		r, err := runner.Start(runner.Config{ID: "a1", Registry: reg, AcceptsSignals: []string{TaskSignalName}})
		require.NoError(t, err)
		defer r.Stop()

		assert.Error(t, BindRole(MemberConfig{Runner: r, Sink: sink}))
		assert.Error(t, BindRole(MemberConfig{Runner: r, Handler: h}))
	})
}

func TestMemberAssignment(t *testing.T) {
	t.Run("executes and reports completion", func(t *testing.T) {
		h := &recordingHandler{results: map[string]capability.Result{
			"research": {Success: true, Output: "findings", Artifacts: []string{"notes.md"}},
		}}
		f := newMemberFixture(t, h)

		f.deliver(t, assignment("t-1", "research the market", 2))

		report := f.nextReport(t)
		assert.Equal(t, TaskSignalCompletion, report.Type)
		assert.Equal(t, "t-1", report.TaskID)
		require.NotNil(t, report.Result)
		assert.True(t, report.Result.Success)
		assert.Equal(t, []string{"notes.md"}, report.Result.Artifacts)

		// Outputs are keyed by the capability that produced them.
		out, ok := report.Result.Output.(map[string]any)
		require.True(t, ok)
		assert.Equal(t, "findings", out["research"])

		require.NotNil(t, report.Metadata)
		assert.Equal(t, 2, report.Metadata.Attempt)

		assert.Equal(t, []string{"research"}, h.callNames())
		f.waitFinished(t, "t-1", string(TaskStatusCompleted))
	})

	t.Run("executes every inferred capability in order", func(t *testing.T) {
		h := &recordingHandler{}
		f := newMemberFixture(t, h)

		f.deliver(t, assignment("t-2", "research the launch and draft the brief", 1))

		report := f.nextReport(t)
		assert.Equal(t, TaskSignalCompletion, report.Type)
		assert.Equal(t, []string{"research", "writing"}, h.callNames())
	})

	t.Run("reports failure from an unsuccessful capability", func(t *testing.T) {
		h := &recordingHandler{results: map[string]capability.Result{
			"research": {Success: false, Error: "no sources found"},
		}}
		f := newMemberFixture(t, h)

		f.deliver(t, assignment("t-3", "research the launch and draft the brief", 1))

		report := f.nextReport(t)
		assert.Equal(t, TaskSignalFailure, report.Type)
		require.NotNil(t, report.Result)
		assert.Equal(t, "no sources found", report.Result.Error)

		// Execution stops at the first failure.
		assert.Equal(t, []string{"research"}, h.callNames())
		f.waitFinished(t, "t-3", string(TaskStatusFailed))
	})

	t.Run("reports failure from a handler error", func(t *testing.T) {
		h := &recordingHandler{errs: map[string]error{
			"research": fmt.Errorf("provider unreachable"),
		}}
		f := newMemberFixture(t, h)

		f.deliver(t, assignment("t-4", "research the market", 1))

		report := f.nextReport(t)
		assert.Equal(t, TaskSignalFailure, report.Type)
		assert.Contains(t, report.Result.Error, "provider unreachable")
	})
}

func TestMemberCancellation(t *testing.T) {
	t.Run("records cancellation of an unfinished task", func(t *testing.T) {
		f := newMemberFixture(t, &recordingHandler{})

		f.deliver(t, NewCancellation("t-9", "obj-1", "research the market"))
		f.waitFinished(t, "t-9", "cancelled")

		// Nothing is reported back for a cancellation.
		select {
		case <-f.reports:
			t.Fatal("unexpected report for cancellation")
		case <-time.After(50 * time.Millisecond):
		}
	})

	t.Run("ignores assignment after cancellation", func(t *testing.T) {
		h := &recordingHandler{}
		f := newMemberFixture(t, h)

		f.deliver(t, NewCancellation("t-5", "obj-1", "research the market"))
		f.waitFinished(t, "t-5", "cancelled")

		f.deliver(t, assignment("t-5", "research the market", 1))

		// The cancelled task never executes or reports.
		select {
		case <-f.reports:
			t.Fatal("unexpected report for cancelled task")
		case <-time.After(50 * time.Millisecond):
		}
		assert.Empty(t, h.callNames())
	})

	t.Run("re-assignment after failure still executes", func(t *testing.T) {
		h := &recordingHandler{results: map[string]capability.Result{
			"research": {Success: false, Error: "no sources found"},
		}}
		f := newMemberFixture(t, h)

		f.deliver(t, assignment("t-6", "research the market", 1))
		require.Equal(t, TaskSignalFailure, f.nextReport(t).Type)
		f.waitFinished(t, "t-6", string(TaskStatusFailed))

		f.deliver(t, assignment("t-6", "research the market", 2))
		assert.Equal(t, TaskSignalFailure, f.nextReport(t).Type)
		assert.Len(t, h.callNames(), 2)
	})

	t.Run("ignores cancellation after completion", func(t *testing.T) {
		f := newMemberFixture(t, &recordingHandler{})

		f.deliver(t, assignment("t-1", "research the market", 1))
		f.nextReport(t)
		f.waitFinished(t, "t-1", string(TaskStatusCompleted))

		f.deliver(t, NewCancellation("t-1", "obj-1", "research the market"))

		// The recorded status never flips to cancelled.
		time.Sleep(50 * time.Millisecond)
		f.waitFinished(t, "t-1", string(TaskStatusCompleted))
	})
}
