package runner

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"github.com/sojinmm/lux-sub007/pkg/beam"
	"github.com/sojinmm/lux-sub007/pkg/capability"
	"github.com/sojinmm/lux-sub007/pkg/signal"
)

// Sentinel errors surfaced at the runner's call boundary
var (
	ErrInvalidConfig  = errors.New("invalid agent config")
	ErrUnknownSchema  = errors.New("unknown schema")
	ErrSchemaMismatch = errors.New("schema not accepted by agent")
	ErrMailboxFull    = errors.New("agent mailbox is full")
	ErrRunnerStopped  = errors.New("agent runner is stopped")
	ErrInvalidCron    = errors.New("invalid cron expression")
)

// ReflectionService updates an agent's working context, typically
// through an LLM completion call. Implementations must treat the input
// as read-only; a failed pass returns an error and the runner keeps the
// prior context.
type ReflectionService interface {
	Reflect(ctx context.Context, agentCtx map[string]any) (map[string]any, error)
}

// ReflectionState tracks the outcome of reflection passes
type ReflectionState struct {
	LastRunAtMs int64  `json:"last_run_at_ms,omitempty"`
	RunCount    int    `json:"run_count"`
	LastError   string `json:"last_error,omitempty"`
}

// AgentState is a read-only snapshot of one agent's runtime state
type AgentState struct {
	ID             string          `json:"id"`
	Name           string          `json:"name,omitempty"`
	Capabilities   capability.Set  `json:"capabilities"`
	AcceptsSignals []string        `json:"accepts_signals"`
	LLMConfig      map[string]any  `json:"llm_config,omitempty"`
	Context        map[string]any  `json:"context"`
	Reflection     ReflectionState `json:"reflection"`
}

// HandlerResult carries the state updates a signal handler produced.
// Updates are merged into the agent's working context by the owning
// runner; handlers never mutate state directly.
type HandlerResult struct {
	Updates map[string]any
}

// SignalHandler processes one signal against a snapshot of agent state
type SignalHandler func(state AgentState, sig signal.Signal) (HandlerResult, error)

// EventKind classifies runner events
type EventKind string

const (
	EventSignalProcessed     EventKind = "signal_processed"
	EventSignalDropped       EventKind = "signal_dropped"
	EventHandlerError        EventKind = "handler_error"
	EventBeamExecuted        EventKind = "beam_executed"
	EventBeamFailed          EventKind = "beam_failed"
	EventReflectionCompleted EventKind = "reflection_completed"
	EventReflectionFailed    EventKind = "reflection_failed"
)

// Event is surfaced through the OnEvent callback for observability
type Event struct {
	Kind     EventKind `json:"kind"`
	AgentID  string    `json:"agent_id"`
	SchemaID string    `json:"schema_id,omitempty"`
	SignalID string    `json:"signal_id,omitempty"`
	BeamID   string    `json:"beam_id,omitempty"`
	Err      string    `json:"error,omitempty"`
}

// ScheduleOptions configures one scheduled beam entry
type ScheduleOptions struct {
	OneShot bool `json:"one_shot,omitempty"`
}

// ScheduledBeam seeds a schedule entry at start time
type ScheduledBeam struct {
	Beam     beam.Beam       `json:"beam"`
	CronExpr string          `json:"cron_expr"`
	Options  ScheduleOptions `json:"options"`
}

// Config seeds an agent runner. Registry and ID are required; every
// other collaborator is optional and the matching feature is disabled
// when absent.
type Config struct {
	ID             string
	Name           string
	Capabilities   []string
	AcceptsSignals []string
	LLMConfig      map[string]any
	Context        map[string]any
	ScheduledBeams []ScheduledBeam

	// SchedulerInterval is the tick period for schedule evaluation;
	// zero disables scheduled beams.
	SchedulerInterval time.Duration

	// ReflectionInterval is the period between reflection passes; zero
	// disables periodic reflection (TriggerReflection still works).
	ReflectionInterval time.Duration

	MailboxSize int

	Registry  *signal.Registry
	Executor  beam.Executor
	Reflector ReflectionService
	Handlers  map[string]SignalHandler

	Logger  zerolog.Logger
	OnEvent func(Event)
}
