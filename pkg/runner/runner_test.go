package runner

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sojinmm/lux-sub007/pkg/signal"
)

const testSchema = "note.created"

func newTestRegistry(t *testing.T) *signal.Registry {
	t.Helper()
	reg := signal.NewRegistry()
	err := reg.Register(signal.Schema{
		Name:    testSchema,
		Version: "1.0.0",
		Definition: map[string]any{
			"type":                 "object",
			"additionalProperties": false,
			"required":             []any{"text"},
			"properties": map[string]any{
				"text": map[string]any{"type": "string"},
				"seq":  map[string]any{"type": "integer"},
			},
		},
	})
	require.NoError(t, err)
	return reg
}

func noteSignal(t *testing.T, seq int) signal.Signal {
	t.Helper()
	sig, err := signal.New(testSchema, map[string]any{"text": "hello", "seq": seq}, "tester")
	require.NoError(t, err)
	return sig
}

// eventRecorder captures runner events for assertions.
type eventRecorder struct {
	mu     sync.Mutex
	events []Event
}

func (er *eventRecorder) record(evt Event) {
	er.mu.Lock()
	defer er.mu.Unlock()
	er.events = append(er.events, evt)
}

func (er *eventRecorder) kinds() []EventKind {
	er.mu.Lock()
	defer er.mu.Unlock()
	kinds := make([]EventKind, len(er.events))
	for i, evt := range er.events {
		kinds[i] = evt.Kind
	}
	return kinds
}

func (er *eventRecorder) waitFor(t *testing.T, kind EventKind) Event {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		er.mu.Lock()
		for _, evt := range er.events {
			if evt.Kind == kind {
				er.mu.Unlock()
				return evt
			}
		}
		er.mu.Unlock()
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("event %s never observed", kind)
	return Event{}
}

func TestStart(t *testing.T) {
	reg := newTestRegistry(t)

	t.Run("requires id", func(t *testing.T) {
		_, err := Start(Config{Registry: reg})
		assert.ErrorIs(t, err, ErrInvalidConfig)
	})

	t.Run("requires registry", func(t *testing.T) {
		_, err := Start(Config{ID: "a1"})
		assert.ErrorIs(t, err, ErrInvalidConfig)
	})

	t.Run("rejects invalid seeded cron", func(t *testing.T) {
		_, err := Start(Config{
			ID:       "a1",
			Registry: reg,
			ScheduledBeams: []ScheduledBeam{
				{Beam: testBeam("b1"), CronExpr: "bogus"},
			},
		})
		assert.ErrorIs(t, err, ErrInvalidConfig)
	})

	t.Run("starts and stops", func(t *testing.T) {
		r, err := Start(Config{ID: "a1", Registry: reg})
		require.NoError(t, err)
		assert.Equal(t, "a1", r.ID())
		r.Stop()
		r.Stop() // idempotent
	})
}

func TestDeliver(t *testing.T) {
	reg := newTestRegistry(t)

	t.Run("unknown schema", func(t *testing.T) {
		r, err := Start(Config{ID: "a1", Registry: reg, AcceptsSignals: []string{testSchema}})
		require.NoError(t, err)
		defer r.Stop()

		sig, err := signal.New("ghost.schema", nil, "tester")
		require.NoError(t, err)
		assert.ErrorIs(t, r.Deliver(sig), ErrUnknownSchema)
	})

	t.Run("schema not accepted", func(t *testing.T) {
		r, err := Start(Config{ID: "a1", Registry: reg})
		require.NoError(t, err)
		defer r.Stop()

		assert.ErrorIs(t, r.Deliver(noteSignal(t, 1)), ErrSchemaMismatch)
	})

	t.Run("stopped runner", func(t *testing.T) {
		r, err := Start(Config{ID: "a1", Registry: reg, AcceptsSignals: []string{testSchema}})
		require.NoError(t, err)
		r.Stop()

		assert.ErrorIs(t, r.Deliver(noteSignal(t, 1)), ErrRunnerStopped)
	})

	t.Run("full mailbox", func(t *testing.T) {
		gate := make(chan struct{})
		started := make(chan struct{})

		handlers := map[string]SignalHandler{
			testSchema: func(AgentState, signal.Signal) (HandlerResult, error) {
				close(started)
				<-gate
				return HandlerResult{}, nil
			},
		}
		r, err := Start(Config{
			ID:             "a1",
			Registry:       reg,
			AcceptsSignals: []string{testSchema},
			MailboxSize:    1,
			Handlers:       handlers,
		})
		require.NoError(t, err)
		defer r.Stop()
		defer close(gate)

		// First signal occupies the loop, second fills the mailbox.
		require.NoError(t, r.Deliver(noteSignal(t, 1)))
		<-started
		require.NoError(t, r.Deliver(noteSignal(t, 2)))

		err = r.Deliver(noteSignal(t, 3))
		assert.ErrorIs(t, err, ErrMailboxFull)
	})
}

func TestSignalProcessing(t *testing.T) {
	reg := newTestRegistry(t)

	t.Run("signals processed in delivery order", func(t *testing.T) {
		var mu sync.Mutex
		var seen []int
		done := make(chan struct{})

		const total = 25
		handlers := map[string]SignalHandler{
			testSchema: func(_ AgentState, sig signal.Signal) (HandlerResult, error) {
				mu.Lock()
				defer mu.Unlock()
				seq := sig.Payload["seq"].(int)
				seen = append(seen, seq)
				if len(seen) == total {
					close(done)
				}
				return HandlerResult{}, nil
			},
		}
		r, err := Start(Config{ID: "a1", Registry: reg, AcceptsSignals: []string{testSchema}, Handlers: handlers})
		require.NoError(t, err)
		defer r.Stop()

		for i := 0; i < total; i++ {
			require.NoError(t, r.Deliver(noteSignal(t, i)))
		}

		select {
		case <-done:
		case <-time.After(2 * time.Second):
			t.Fatal("signals not processed in time")
		}

		mu.Lock()
		defer mu.Unlock()
		for i, seq := range seen {
			assert.Equal(t, i, seq)
		}
	})

	t.Run("handler updates merge into context", func(t *testing.T) {
		rec := &eventRecorder{}
		handlers := map[string]SignalHandler{
			testSchema: func(_ AgentState, sig signal.Signal) (HandlerResult, error) {
				return HandlerResult{Updates: map[string]any{"last_text": sig.Payload["text"]}}, nil
			},
		}
		r, err := Start(Config{
			ID:             "a1",
			Registry:       reg,
			AcceptsSignals: []string{testSchema},
			Handlers:       handlers,
			Context:        map[string]any{"existing": true},
			OnEvent:        rec.record,
		})
		require.NoError(t, err)
		defer r.Stop()

		require.NoError(t, r.Deliver(noteSignal(t, 1)))
		rec.waitFor(t, EventSignalProcessed)

		state, err := r.Snapshot()
		require.NoError(t, err)
		assert.Equal(t, "hello", state.Context["last_text"])
		assert.Equal(t, true, state.Context["existing"])
	})

	t.Run("invalid payload dropped without handler call", func(t *testing.T) {
		rec := &eventRecorder{}
		called := false
		handlers := map[string]SignalHandler{
			testSchema: func(AgentState, signal.Signal) (HandlerResult, error) {
				called = true
				return HandlerResult{}, nil
			},
		}
		r, err := Start(Config{ID: "a1", Registry: reg, AcceptsSignals: []string{testSchema}, Handlers: handlers, OnEvent: rec.record})
		require.NoError(t, err)
		defer r.Stop()

		bad, err := signal.New(testSchema, map[string]any{"seq": 1}, "tester")
		require.NoError(t, err)
		require.NoError(t, r.Deliver(bad))

		evt := rec.waitFor(t, EventSignalDropped)
		assert.Equal(t, testSchema, evt.SchemaID)
		assert.False(t, called)
	})

	t.Run("handler crash is isolated", func(t *testing.T) {
		rec := &eventRecorder{}
		var processed int
		var mu sync.Mutex
		handlers := map[string]SignalHandler{
			testSchema: func(_ AgentState, sig signal.Signal) (HandlerResult, error) {
				if sig.Payload["seq"].(int) == 0 {
					panic("boom")
				}
				mu.Lock()
				processed++
				mu.Unlock()
				return HandlerResult{}, nil
			},
		}
		r, err := Start(Config{ID: "a1", Registry: reg, AcceptsSignals: []string{testSchema}, Handlers: handlers, OnEvent: rec.record})
		require.NoError(t, err)
		defer r.Stop()

		require.NoError(t, r.Deliver(noteSignal(t, 0)))
		require.NoError(t, r.Deliver(noteSignal(t, 1)))

		evt := rec.waitFor(t, EventHandlerError)
		assert.Contains(t, evt.Err, "handler crashed")
		rec.waitFor(t, EventSignalProcessed)

		mu.Lock()
		defer mu.Unlock()
		assert.Equal(t, 1, processed)
	})

	t.Run("handler error leaves context untouched", func(t *testing.T) {
		rec := &eventRecorder{}
		handlers := map[string]SignalHandler{
			testSchema: func(AgentState, signal.Signal) (HandlerResult, error) {
				return HandlerResult{Updates: map[string]any{"should": "not apply"}}, fmt.Errorf("rejected")
			},
		}
		r, err := Start(Config{ID: "a1", Registry: reg, AcceptsSignals: []string{testSchema}, Handlers: handlers, OnEvent: rec.record})
		require.NoError(t, err)
		defer r.Stop()

		require.NoError(t, r.Deliver(noteSignal(t, 1)))
		rec.waitFor(t, EventHandlerError)

		state, err := r.Snapshot()
		require.NoError(t, err)
		assert.NotContains(t, state.Context, "should")
	})
}

func TestRegisterHandler(t *testing.T) {
	reg := newTestRegistry(t)
	rec := &eventRecorder{}

	r, err := Start(Config{ID: "a1", Registry: reg, AcceptsSignals: []string{testSchema}, OnEvent: rec.record})
	require.NoError(t, err)
	defer r.Stop()

	assert.Error(t, r.RegisterHandler(testSchema, nil))

	require.NoError(t, r.RegisterHandler(testSchema, func(AgentState, signal.Signal) (HandlerResult, error) {
		return HandlerResult{Updates: map[string]any{"handled": true}}, nil
	}))

	require.NoError(t, r.Deliver(noteSignal(t, 1)))
	rec.waitFor(t, EventSignalProcessed)

	state, err := r.Snapshot()
	require.NoError(t, err)
	assert.Equal(t, true, state.Context["handled"])
}

func TestSnapshot(t *testing.T) {
	reg := newTestRegistry(t)

	r, err := Start(Config{
		ID:           "a1",
		Name:         "Agent One",
		Capabilities: []string{"research"},
		Registry:     reg,
		Context:      map[string]any{"nested": map[string]any{"k": "v"}},
	})
	require.NoError(t, err)
	defer r.Stop()

	state, err := r.Snapshot()
	require.NoError(t, err)
	assert.Equal(t, "Agent One", state.Name)
	assert.True(t, state.Capabilities.Contains("research"))

	// Mutating the snapshot must not leak into the runner.
	state.Context["nested"].(map[string]any)["k"] = "mutated"
	state.Capabilities.Add("hacking")

	again, err := r.Snapshot()
	require.NoError(t, err)
	assert.Equal(t, "v", again.Context["nested"].(map[string]any)["k"])
	assert.False(t, again.Capabilities.Contains("hacking"))
}
