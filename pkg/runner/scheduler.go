package runner

import (
	"fmt"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/sojinmm/lux-sub007/internal/observability"
	"github.com/sojinmm/lux-sub007/pkg/beam"
)

type beamExecutor = beam.Executor

// cronParser accepts standard 5-field cron expressions
var cronParser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)

// scheduleEntry is one scheduled beam with its parsed cron expression.
// lastFired holds the minute of the most recent execution so an entry
// fires at most once per matching minute regardless of tick frequency.
type scheduleEntry struct {
	beam      beam.Beam
	expr      string
	sched     cron.Schedule
	oneShot   bool
	lastFired time.Time
}

func newScheduleEntry(b beam.Beam, cronExpr string, opts ScheduleOptions) (*scheduleEntry, error) {
	if b.ID == "" {
		return nil, fmt.Errorf("beam id is required")
	}

	sched, err := cronParser.Parse(cronExpr)
	if err != nil {
		return nil, fmt.Errorf("%w: %q: %v", ErrInvalidCron, cronExpr, err)
	}

	return &scheduleEntry{
		beam:    b,
		expr:    cronExpr,
		sched:   sched,
		oneShot: opts.OneShot,
	}, nil
}

// matchesMinute reports whether the schedule fires within the minute
// containing now
func (e *scheduleEntry) matchesMinute(now time.Time) bool {
	minute := now.Truncate(time.Minute)
	return e.sched.Next(minute.Add(-time.Second)).Equal(minute)
}

// Schedule adds a beam to the agent's schedule. The cron expression
// must parse to a valid 5-field schedule or the call fails without
// mutating state.
func (r *Runner) Schedule(b beam.Beam, cronExpr string, opts ScheduleOptions) error {
	entry, err := newScheduleEntry(b, cronExpr, opts)
	if err != nil {
		return err
	}

	return r.sendControl(addScheduleMsg{entry: entry})
}

// Unschedule removes a beam from the agent's schedule. Idempotent:
// removing an unknown beam is a no-op. Takes effect before the next
// tick check.
func (r *Runner) Unschedule(beamID string) error {
	return r.sendControl(removeScheduleMsg{beamID: beamID})
}

func (r *Runner) addSchedule(entry *scheduleEntry) {
	// Re-scheduling an existing beam replaces its entry
	for i, existing := range r.schedules {
		if existing.beam.ID == entry.beam.ID {
			r.schedules[i] = entry
			return
		}
	}
	r.schedules = append(r.schedules, entry)

	r.logger.Debug().
		Str("beamId", entry.beam.ID).
		Str("cron", entry.expr).
		Bool("oneShot", entry.oneShot).
		Msg("Beam scheduled")
}

func (r *Runner) removeSchedule(beamID string) {
	for i, entry := range r.schedules {
		if entry.beam.ID == beamID {
			r.schedules = append(r.schedules[:i], r.schedules[i+1:]...)
			r.logger.Debug().Str("beamId", beamID).Msg("Beam unscheduled")
			return
		}
	}
}

// checkSchedules runs every entry whose cron expression matches the
// current tick. A single ticker re-evaluates all schedules, bounding
// resource usage regardless of how many beams an agent carries.
func (r *Runner) checkSchedules(now time.Time) {
	minute := now.Truncate(time.Minute)

	fired := r.schedules[:0]
	for _, entry := range r.schedules {
		if !entry.matchesMinute(now) || entry.lastFired.Equal(minute) {
			fired = append(fired, entry)
			continue
		}

		entry.lastFired = minute
		r.executeBeam(entry)

		if !entry.oneShot {
			fired = append(fired, entry)
		}
	}
	r.schedules = fired
}

// executeBeam invokes the beam executor collaborator. Failures are
// logged and surfaced through events; the entry stays scheduled and
// retries on its next matching tick.
func (r *Runner) executeBeam(entry *scheduleEntry) {
	if r.executor == nil {
		r.logger.Warn().
			Str("beamId", entry.beam.ID).
			Msg("No beam executor configured, skipping scheduled beam")
		return
	}

	start := time.Now()
	output, execLog, err := r.executor.ExecuteBeam(r.ctx, entry.beam, map[string]any{
		"agent_id": r.state.ID,
		"beam_id":  entry.beam.ID,
	})
	duration := time.Since(start)

	observability.RecordBeamExecution(r.state.ID, duration, err == nil)

	if err != nil {
		r.logger.Error().
			Str("beamId", entry.beam.ID).
			Int("stepsLogged", len(execLog)).
			Err(err).
			Msg("Scheduled beam failed")
		r.emit(Event{Kind: EventBeamFailed, AgentID: r.state.ID, BeamID: entry.beam.ID, Err: err.Error()})
		return
	}

	r.logger.Info().
		Str("beamId", entry.beam.ID).
		Int("steps", len(execLog)).
		Int("outputs", len(output)).
		Dur("duration", duration).
		Msg("Scheduled beam completed")
	r.emit(Event{Kind: EventBeamExecuted, AgentID: r.state.ID, BeamID: entry.beam.ID})
}
