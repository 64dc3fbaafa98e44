package runner

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/sojinmm/lux-sub007/internal/observability"
	"github.com/sojinmm/lux-sub007/pkg/signal"
)

const defaultMailboxSize = 256

// Runner is the long-lived process owning one agent's state. All state
// mutation happens on the runner's own goroutine: signals, control
// messages, schedule ticks and reflection ticks are processed one at a
// time, so no two handlers for the same agent ever run concurrently.
type Runner struct {
	state     AgentState
	accepts   map[string]struct{}
	handlers  map[string]SignalHandler
	schedules []*scheduleEntry

	registry  *signal.Registry
	executor  beamExecutor
	reflector ReflectionService

	inbox   chan signal.Signal
	control chan controlMsg

	schedulerInterval  time.Duration
	reflectionInterval time.Duration

	logger  zerolog.Logger
	onEvent func(Event)

	ctx      context.Context
	cancel   context.CancelFunc
	stopped  atomic.Bool
	stopOnce sync.Once
	done     chan struct{}
}

type controlMsg interface{ isControl() }

type addScheduleMsg struct {
	entry *scheduleEntry
}

type removeScheduleMsg struct {
	beamID string
}

type registerHandlerMsg struct {
	schemaID string
	handler  SignalHandler
}

type reflectMsg struct{}

type snapshotMsg struct {
	reply chan AgentState
}

func (addScheduleMsg) isControl()     {}
func (removeScheduleMsg) isControl()  {}
func (registerHandlerMsg) isControl() {}
func (reflectMsg) isControl()         {}
func (snapshotMsg) isControl()        {}

// Start spawns the process owning one agent's full state
func Start(cfg Config) (*Runner, error) {
	observability.EnsureRegistered()

	if cfg.ID == "" {
		return nil, fmt.Errorf("%w: agent id is required", ErrInvalidConfig)
	}
	if cfg.Registry == nil {
		return nil, fmt.Errorf("%w: schema registry is required", ErrInvalidConfig)
	}

	mailboxSize := cfg.MailboxSize
	if mailboxSize <= 0 {
		mailboxSize = defaultMailboxSize
	}

	accepts := make(map[string]struct{}, len(cfg.AcceptsSignals))
	for _, name := range cfg.AcceptsSignals {
		accepts[name] = struct{}{}
	}

	handlers := make(map[string]SignalHandler, len(cfg.Handlers))
	for name, h := range cfg.Handlers {
		handlers[name] = h
	}

	schedules := make([]*scheduleEntry, 0, len(cfg.ScheduledBeams))
	for _, sb := range cfg.ScheduledBeams {
		entry, err := newScheduleEntry(sb.Beam, sb.CronExpr, sb.Options)
		if err != nil {
			return nil, fmt.Errorf("%w: beam %s: %v", ErrInvalidConfig, sb.Beam.ID, err)
		}
		schedules = append(schedules, entry)
	}

	ctx, cancel := context.WithCancel(context.Background())

	r := &Runner{
		state: AgentState{
			ID:             cfg.ID,
			Name:           cfg.Name,
			Capabilities:   newCapabilitySet(cfg.Capabilities),
			AcceptsSignals: append([]string{}, cfg.AcceptsSignals...),
			LLMConfig:      deepCopyContext(cfg.LLMConfig),
			Context:        deepCopyContext(cfg.Context),
		},
		accepts:            accepts,
		handlers:           handlers,
		schedules:          schedules,
		registry:           cfg.Registry,
		executor:           cfg.Executor,
		reflector:          cfg.Reflector,
		inbox:              make(chan signal.Signal, mailboxSize),
		control:            make(chan controlMsg, 64),
		schedulerInterval:  cfg.SchedulerInterval,
		reflectionInterval: cfg.ReflectionInterval,
		logger:             cfg.Logger.With().Str("agentId", cfg.ID).Logger(),
		onEvent:            cfg.OnEvent,
		ctx:                ctx,
		cancel:             cancel,
		done:               make(chan struct{}),
	}

	if r.state.Context == nil {
		r.state.Context = map[string]any{}
	}

	go r.loop()

	r.logger.Info().
		Int("mailboxSize", mailboxSize).
		Int("scheduledBeams", len(schedules)).
		Msg("Agent runner started")

	return r, nil
}

// ID returns the agent identity
func (r *Runner) ID() string {
	return r.state.ID
}

// Deliver enqueues a signal for asynchronous processing. The call never
// blocks: a full mailbox is reported as an error, not waited on.
func (r *Runner) Deliver(sig signal.Signal) error {
	if r.stopped.Load() {
		return ErrRunnerStopped
	}

	if !r.registry.Has(sig.SchemaID) {
		return fmt.Errorf("%w: %s", ErrUnknownSchema, sig.SchemaID)
	}

	if _, ok := r.accepts[sig.SchemaID]; !ok {
		return fmt.Errorf("%w: %s does not accept %s", ErrSchemaMismatch, r.state.ID, sig.SchemaID)
	}

	select {
	case r.inbox <- sig:
		observability.RecordSignalDelivered(r.state.ID, sig.SchemaID, len(r.inbox))
		return nil
	default:
		return fmt.Errorf("%w: %s", ErrMailboxFull, r.state.ID)
	}
}

// RegisterHandler routes signals of the given schema to a handler
func (r *Runner) RegisterHandler(schemaID string, handler SignalHandler) error {
	if handler == nil {
		return fmt.Errorf("handler is required")
	}
	return r.sendControl(registerHandlerMsg{schemaID: schemaID, handler: handler})
}

// TriggerReflection forces an out-of-band reflection pass. The pass
// runs on the runner's own timeline; failures never crash the runner.
func (r *Runner) TriggerReflection() error {
	return r.sendControl(reflectMsg{})
}

// Snapshot returns a consistent read-only copy of the agent's state
func (r *Runner) Snapshot() (AgentState, error) {
	reply := make(chan AgentState, 1)
	if err := r.sendControl(snapshotMsg{reply: reply}); err != nil {
		return AgentState{}, err
	}

	select {
	case state := <-reply:
		return state, nil
	case <-r.ctx.Done():
		return AgentState{}, ErrRunnerStopped
	}
}

// Stop terminates the runner. Signals still queued are discarded.
func (r *Runner) Stop() {
	r.stopOnce.Do(func() {
		r.stopped.Store(true)
		r.cancel()
		<-r.done
		r.logger.Info().Msg("Agent runner stopped")
	})
}

func (r *Runner) sendControl(msg controlMsg) error {
	if r.stopped.Load() {
		return ErrRunnerStopped
	}

	select {
	case r.control <- msg:
		return nil
	case <-r.ctx.Done():
		return ErrRunnerStopped
	}
}

// loop is the single consumer of the mailbox and control channel
func (r *Runner) loop() {
	defer close(r.done)

	var tickC, reflectC <-chan time.Time

	if r.schedulerInterval > 0 {
		ticker := time.NewTicker(r.schedulerInterval)
		defer ticker.Stop()
		tickC = ticker.C
	}

	if r.reflectionInterval > 0 {
		ticker := time.NewTicker(r.reflectionInterval)
		defer ticker.Stop()
		reflectC = ticker.C
	}

	for {
		select {
		case <-r.ctx.Done():
			return
		case sig := <-r.inbox:
			r.processSignal(sig)
		case msg := <-r.control:
			r.handleControl(msg)
		case now := <-tickC:
			r.checkSchedules(now)
		case <-reflectC:
			r.runReflection()
		}
	}
}

func (r *Runner) handleControl(msg controlMsg) {
	switch m := msg.(type) {
	case addScheduleMsg:
		r.addSchedule(m.entry)
	case removeScheduleMsg:
		r.removeSchedule(m.beamID)
	case registerHandlerMsg:
		r.handlers[m.schemaID] = m.handler
	case reflectMsg:
		r.runReflection()
	case snapshotMsg:
		m.reply <- r.snapshotState()
	}
}

// processSignal validates, routes and applies one mailbox entry
func (r *Runner) processSignal(sig signal.Signal) {
	if err := r.registry.ValidateSignal(sig); err != nil {
		r.logger.Warn().
			Str("signalId", sig.ID).
			Str("schemaId", sig.SchemaID).
			Err(err).
			Msg("Dropping invalid signal")
		observability.RecordSignalProcessed(r.state.ID, "invalid")
		r.emit(Event{Kind: EventSignalDropped, AgentID: r.state.ID, SchemaID: sig.SchemaID, SignalID: sig.ID, Err: err.Error()})
		return
	}

	handler, ok := r.handlers[sig.SchemaID]
	if !ok {
		// Accepted but unhandled schemas are a no-op, not an error
		r.logger.Debug().
			Str("signalId", sig.ID).
			Str("schemaId", sig.SchemaID).
			Msg("No handler registered for signal")
		observability.RecordSignalProcessed(r.state.ID, "ignored")
		return
	}

	result, err := invokeHandler(handler, r.snapshotState(), sig)
	if err != nil {
		r.logger.Error().
			Str("signalId", sig.ID).
			Str("schemaId", sig.SchemaID).
			Err(err).
			Msg("Signal handler failed")
		observability.RecordSignalProcessed(r.state.ID, "handler_error")
		r.emit(Event{Kind: EventHandlerError, AgentID: r.state.ID, SchemaID: sig.SchemaID, SignalID: sig.ID, Err: err.Error()})
		return
	}

	for k, v := range result.Updates {
		r.state.Context[k] = v
	}

	observability.RecordSignalProcessed(r.state.ID, "ok")
	r.emit(Event{Kind: EventSignalProcessed, AgentID: r.state.ID, SchemaID: sig.SchemaID, SignalID: sig.ID})
}

// invokeHandler runs a handler, converting panics into errors so a
// crashing handler never takes the runner down
func invokeHandler(handler SignalHandler, state AgentState, sig signal.Signal) (result HandlerResult, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("handler crashed: %v", rec)
		}
	}()

	return handler(state, sig)
}

func (r *Runner) snapshotState() AgentState {
	snap := r.state
	snap.AcceptsSignals = append([]string{}, r.state.AcceptsSignals...)
	snap.Capabilities = copyCapabilitySet(r.state.Capabilities)
	snap.LLMConfig = deepCopyContext(r.state.LLMConfig)
	snap.Context = deepCopyContext(r.state.Context)
	return snap
}

func (r *Runner) emit(evt Event) {
	if r.onEvent != nil {
		r.onEvent(evt)
	}
}
