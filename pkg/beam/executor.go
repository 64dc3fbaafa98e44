package beam

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/sojinmm/lux-sub007/pkg/capability"
)

// maxTraversals bounds execution of cyclic branch graphs
const maxTraversals = 100

// Engine is the default beam executor. It walks a beam's step graph,
// invoking each step's capability through a single handler.
type Engine struct {
	handler capability.Handler
	logger  zerolog.Logger
}

// NewEngine creates a beam execution engine
func NewEngine(handler capability.Handler, logger zerolog.Logger) (*Engine, error) {
	if handler == nil {
		return nil, fmt.Errorf("capability handler is required")
	}

	return &Engine{
		handler: handler,
		logger:  logger,
	}, nil
}

// ExecuteBeam runs a beam from its first step, following OnSuccess and
// OnFailure branches. Step outputs accumulate into the returned map
// keyed by step ID.
func (e *Engine) ExecuteBeam(ctx context.Context, b Beam, input map[string]any) (map[string]any, ExecutionLog, error) {
	if len(b.Steps) == 0 {
		return map[string]any{}, ExecutionLog{}, nil
	}

	index := make(map[string]int, len(b.Steps))
	for i, step := range b.Steps {
		if step.ID == "" {
			return nil, ExecutionLog{}, fmt.Errorf("beam %s: step %d has no ID", b.ID, i)
		}
		if _, dup := index[step.ID]; dup {
			return nil, ExecutionLog{}, fmt.Errorf("beam %s: duplicate step ID %s", b.ID, step.ID)
		}
		index[step.ID] = i
	}

	log := ExecutionLog{}
	outputs := map[string]any{}
	pos := 0

	for traversals := 0; traversals < maxTraversals; traversals++ {
		step := b.Steps[pos]

		select {
		case <-ctx.Done():
			return outputs, log, ctx.Err()
		default:
		}

		record := StepRecord{
			ID:          step.ID,
			Status:      StepStatusRunning,
			StartedAtMs: time.Now().UnixMilli(),
		}

		stepInput := mergeInput(input, step.Input)
		result, err := e.invoke(ctx, step, stepInput)

		record.CompletedAtMs = time.Now().UnixMilli()

		if err != nil || !result.Success {
			record.Status = StepStatusFailed
			record.Error = stepError(result, err)
			log = append(log, record)

			e.logger.Warn().
				Str("beamId", b.ID).
				Str("stepId", step.ID).
				Str("error", record.Error).
				Msg("Beam step failed")

			if step.OnFailure == "" {
				return outputs, log, fmt.Errorf("beam %s: step %s failed: %s", b.ID, step.ID, record.Error)
			}

			next, ok := index[step.OnFailure]
			if !ok {
				return outputs, log, fmt.Errorf("beam %s: step %s references unknown failure step %s", b.ID, step.ID, step.OnFailure)
			}
			pos = next
			continue
		}

		record.Status = StepStatusCompleted
		record.Output = result.Output
		log = append(log, record)
		outputs[step.ID] = result.Output

		if step.OnSuccess != "" {
			next, ok := index[step.OnSuccess]
			if !ok {
				return outputs, log, fmt.Errorf("beam %s: step %s references unknown success step %s", b.ID, step.ID, step.OnSuccess)
			}
			pos = next
			continue
		}

		// Fall through to the next declared step
		pos = index[step.ID] + 1
		if pos >= len(b.Steps) {
			return outputs, log, nil
		}
	}

	return outputs, log, fmt.Errorf("beam %s: exceeded %d step traversals", b.ID, maxTraversals)
}

// invoke runs one step's capability, converting panics into errors so a
// misbehaving handler cannot take down the caller
func (e *Engine) invoke(ctx context.Context, step Step, input map[string]any) (result capability.Result, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("capability %s panicked: %v", step.Capability, r)
		}
	}()

	return e.handler.Execute(ctx, step.Capability, input, capability.Context{})
}

func mergeInput(base, stepInput map[string]any) map[string]any {
	merged := make(map[string]any, len(base)+len(stepInput))
	for k, v := range base {
		merged[k] = v
	}
	for k, v := range stepInput {
		merged[k] = v
	}
	return merged
}

func stepError(result capability.Result, err error) string {
	if err != nil {
		return err.Error()
	}
	if result.Error != "" {
		return result.Error
	}
	return "capability reported failure"
}
