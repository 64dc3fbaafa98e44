// Package runner hosts the per-agent execution process: a mailbox-driven
// signal dispatcher with cron-scheduled beam execution and periodic
// reflection.
//
// Invariants:
// - Agent state is owned exclusively by its runner goroutine; all
//   mutation flows through enqueued messages processed one at a time.
// - Signals delivered to the same agent are processed in enqueue order.
// - Handler, beam and reflection failures are caught at the runner
//   boundary and never terminate the runner.
//
// Usage:
//
//	r, _ := runner.Start(runner.Config{
//		ID:             "researcher",
//		AcceptsSignals: []string{"task.signal"},
//		Registry:       registry,
//	})
//	_ = r.Deliver(sig)
//	state, _ := r.Snapshot()
//	r.Stop()
package runner
