package runner

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sojinmm/lux-sub007/pkg/beam"
)

func testBeam(id string) beam.Beam {
	return beam.Beam{
		ID:    id,
		Name:  id,
		Steps: []beam.Step{{ID: "only", Capability: "general"}},
	}
}

// countingExecutor records every beam execution it receives.
type countingExecutor struct {
	mu     sync.Mutex
	calls  []string
	inputs []map[string]any
	err    error
}

func (ce *countingExecutor) ExecuteBeam(_ context.Context, b beam.Beam, input map[string]any) (map[string]any, beam.ExecutionLog, error) {
	ce.mu.Lock()
	defer ce.mu.Unlock()
	ce.calls = append(ce.calls, b.ID)
	ce.inputs = append(ce.inputs, input)
	if ce.err != nil {
		return nil, beam.ExecutionLog{}, ce.err
	}
	return map[string]any{}, beam.ExecutionLog{}, nil
}

func (ce *countingExecutor) count() int {
	ce.mu.Lock()
	defer ce.mu.Unlock()
	return len(ce.calls)
}

// offlineRunner builds a runner without starting its loop, for direct
// checkSchedules calls with synthetic clock values.
func offlineRunner(exec beamExecutor, entries ...*scheduleEntry) *Runner {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	return &Runner{
		state:     AgentState{ID: "a1", Context: map[string]any{}},
		schedules: entries,
		executor:  exec,
		logger:    zerolog.Nop(),
		ctx:       ctx,
	}
}

func mustEntry(t *testing.T, id, expr string, opts ScheduleOptions) *scheduleEntry {
	t.Helper()
	entry, err := newScheduleEntry(testBeam(id), expr, opts)
	require.NoError(t, err)
	return entry
}

func TestMatchesMinute(t *testing.T) {
	tests := []struct {
		name  string
		expr  string
		now   time.Time
		wants bool
	}{
		{"every minute always matches", "* * * * *", time.Date(2026, 3, 14, 9, 26, 30, 0, time.UTC), true},
		{"exact minute matches", "30 9 * * *", time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC), true},
		{"mid-minute tick still matches", "30 9 * * *", time.Date(2026, 3, 14, 9, 30, 45, 0, time.UTC), true},
		{"wrong minute", "30 9 * * *", time.Date(2026, 3, 14, 9, 31, 0, 0, time.UTC), false},
		{"wrong hour", "30 9 * * *", time.Date(2026, 3, 14, 10, 30, 0, 0, time.UTC), false},
		{"day of week constraint", "0 12 * * 1", time.Date(2026, 3, 16, 12, 0, 5, 0, time.UTC), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			entry := mustEntry(t, "b1", tt.expr, ScheduleOptions{})
			assert.Equal(t, tt.wants, entry.matchesMinute(tt.now))
		})
	}
}

func TestCheckSchedules(t *testing.T) {
	base := time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC)

	t.Run("fires once per matching minute", func(t *testing.T) {
		exec := &countingExecutor{}
		r := offlineRunner(exec, mustEntry(t, "b1", "* * * * *", ScheduleOptions{}))

		r.checkSchedules(base)
		r.checkSchedules(base.Add(15 * time.Second))
		r.checkSchedules(base.Add(45 * time.Second))
		assert.Equal(t, 1, exec.count())

		r.checkSchedules(base.Add(time.Minute))
		assert.Equal(t, 2, exec.count())
	})

	t.Run("passes agent and beam ids as input", func(t *testing.T) {
		exec := &countingExecutor{}
		r := offlineRunner(exec, mustEntry(t, "b1", "* * * * *", ScheduleOptions{}))

		r.checkSchedules(base)
		require.Len(t, exec.inputs, 1)
		assert.Equal(t, "a1", exec.inputs[0]["agent_id"])
		assert.Equal(t, "b1", exec.inputs[0]["beam_id"])
	})

	t.Run("non-matching entry stays idle", func(t *testing.T) {
		exec := &countingExecutor{}
		r := offlineRunner(exec, mustEntry(t, "b1", "0 0 1 1 *", ScheduleOptions{}))

		r.checkSchedules(base)
		assert.Zero(t, exec.count())
		assert.Len(t, r.schedules, 1)
	})

	t.Run("one-shot entry removed after firing", func(t *testing.T) {
		exec := &countingExecutor{}
		r := offlineRunner(exec,
			mustEntry(t, "once", "* * * * *", ScheduleOptions{OneShot: true}),
			mustEntry(t, "forever", "* * * * *", ScheduleOptions{}),
		)

		r.checkSchedules(base)
		assert.Equal(t, 2, exec.count())
		require.Len(t, r.schedules, 1)
		assert.Equal(t, "forever", r.schedules[0].beam.ID)

		r.checkSchedules(base.Add(time.Minute))
		assert.Equal(t, []string{"once", "forever", "forever"}, exec.calls)
	})

	t.Run("failed execution stays scheduled", func(t *testing.T) {
		exec := &countingExecutor{err: fmt.Errorf("capability offline")}
		r := offlineRunner(exec, mustEntry(t, "b1", "* * * * *", ScheduleOptions{}))

		r.checkSchedules(base)
		require.Len(t, r.schedules, 1)

		r.checkSchedules(base.Add(time.Minute))
		assert.Equal(t, 2, exec.count())
	})

	t.Run("removed entry never fires", func(t *testing.T) {
		exec := &countingExecutor{}
		r := offlineRunner(exec, mustEntry(t, "b1", "* * * * *", ScheduleOptions{}))

		r.removeSchedule("b1")
		r.checkSchedules(base)
		r.checkSchedules(base.Add(time.Minute))

		assert.Zero(t, exec.count())
		assert.Empty(t, r.schedules)
	})

	t.Run("no executor is a safe no-op", func(t *testing.T) {
		r := offlineRunner(nil, mustEntry(t, "b1", "* * * * *", ScheduleOptions{}))
		r.checkSchedules(base)
		assert.Len(t, r.schedules, 1)
	})
}

func TestScheduleUnschedule(t *testing.T) {
	reg := newTestRegistry(t)

	t.Run("rejects invalid cron", func(t *testing.T) {
		r, err := Start(Config{ID: "a1", Registry: reg})
		require.NoError(t, err)
		defer r.Stop()

		err = r.Schedule(testBeam("b1"), "every tuesday", ScheduleOptions{})
		assert.ErrorIs(t, err, ErrInvalidCron)
	})

	t.Run("rejects six-field expressions", func(t *testing.T) {
		r, err := Start(Config{ID: "a1", Registry: reg})
		require.NoError(t, err)
		defer r.Stop()

		err = r.Schedule(testBeam("b1"), "0 * * * * *", ScheduleOptions{})
		assert.ErrorIs(t, err, ErrInvalidCron)
	})

	t.Run("rejects beam without id", func(t *testing.T) {
		r, err := Start(Config{ID: "a1", Registry: reg})
		require.NoError(t, err)
		defer r.Stop()

		assert.Error(t, r.Schedule(beam.Beam{}, "* * * * *", ScheduleOptions{}))
	})

	t.Run("scheduled beam executes on tick", func(t *testing.T) {
		exec := &countingExecutor{}
		rec := &eventRecorder{}
		r, err := Start(Config{
			ID:                "a1",
			Registry:          reg,
			Executor:          exec,
			SchedulerInterval: 10 * time.Millisecond,
			OnEvent:           rec.record,
		})
		require.NoError(t, err)
		defer r.Stop()

		require.NoError(t, r.Schedule(testBeam("b1"), "* * * * *", ScheduleOptions{}))

		evt := rec.waitFor(t, EventBeamExecuted)
		assert.Equal(t, "b1", evt.BeamID)

		// Ticks keep coming but the fired minute is deduplicated. A
		// minute boundary may roll over mid-test, allowing one more.
		time.Sleep(50 * time.Millisecond)
		assert.LessOrEqual(t, exec.count(), 2)
	})

	t.Run("unschedule is idempotent", func(t *testing.T) {
		exec := &countingExecutor{}
		r, err := Start(Config{
			ID:                "a1",
			Registry:          reg,
			Executor:          exec,
			SchedulerInterval: time.Hour,
		})
		require.NoError(t, err)
		defer r.Stop()

		require.NoError(t, r.Schedule(testBeam("b1"), "* * * * *", ScheduleOptions{}))
		require.NoError(t, r.Unschedule("b1"))
		require.NoError(t, r.Unschedule("b1")) // idempotent

		state, err := r.Snapshot()
		require.NoError(t, err)
		assert.Equal(t, "a1", state.ID)
	})

	t.Run("failed beam surfaces event", func(t *testing.T) {
		exec := &countingExecutor{err: fmt.Errorf("step timed out")}
		rec := &eventRecorder{}
		r, err := Start(Config{
			ID:                "a1",
			Registry:          reg,
			Executor:          exec,
			SchedulerInterval: 10 * time.Millisecond,
			OnEvent:           rec.record,
		})
		require.NoError(t, err)
		defer r.Stop()

		require.NoError(t, r.Schedule(testBeam("b1"), "* * * * *", ScheduleOptions{}))

		evt := rec.waitFor(t, EventBeamFailed)
		assert.Contains(t, evt.Err, "step timed out")
	})
}
