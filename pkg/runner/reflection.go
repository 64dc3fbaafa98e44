package runner

import (
	"context"
	"fmt"
	"time"

	"github.com/sojinmm/lux-sub007/internal/observability"
)

// runReflection invokes the reflection collaborator with a copy of the
// agent's working context. Any failure leaves the prior context and
// reflection state untouched except for the recorded error.
func (r *Runner) runReflection() {
	if r.reflector == nil {
		r.logger.Debug().Msg("No reflection service configured, skipping reflection")
		return
	}

	start := time.Now()
	updated, err := safeReflect(r.ctx, r.reflector, deepCopyContext(r.state.Context))
	duration := time.Since(start)

	observability.RecordReflection(r.state.ID, duration, err == nil)

	if err != nil {
		r.state.Reflection.LastError = err.Error()
		r.logger.Error().Err(err).Msg("Reflection pass failed, prior context retained")
		r.emit(Event{Kind: EventReflectionFailed, AgentID: r.state.ID, Err: err.Error()})
		return
	}

	if updated == nil {
		updated = map[string]any{}
	}

	r.state.Context = updated
	r.state.Reflection = ReflectionState{
		LastRunAtMs: time.Now().UnixMilli(),
		RunCount:    r.state.Reflection.RunCount + 1,
	}

	r.logger.Info().
		Int("contextKeys", len(updated)).
		Dur("duration", duration).
		Msg("Reflection pass completed")
	r.emit(Event{Kind: EventReflectionCompleted, AgentID: r.state.ID})
}

// safeReflect guards against panicking reflection implementations
func safeReflect(ctx context.Context, svc ReflectionService, agentCtx map[string]any) (updated map[string]any, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("reflection crashed: %v", rec)
		}
	}()

	return svc.Reflect(ctx, agentCtx)
}
