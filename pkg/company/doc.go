// Package company models organizations of agents: a hub that registers
// and persists company definitions, and a coordinator that drives
// objectives through capability-matched task delegation.
//
// The coordinator decomposes an objective's steps into tasks, assigns
// each task to the least-loaded role whose capability set covers the
// task's requirements, and tracks attempts. Failed attempts are retried
// with exponential backoff up to a configured bound; tasks no role can
// serve fail after a pending timeout. Members bound through BindRole
// execute assignments and report completion or failure back through
// task signals.
//
// Invariants:
// - Plan and task state is owned by the coordinator's event loop; all
//   external input arrives as posted events.
// - A terminal task never changes status again; late signals for it
//   are ignored.
// - An objective completes only when every task completed; a single
//   terminally failed task fails the plan.
//
// Usage:
//
//	hub, _ := company.NewHub(company.HubConfig{Store: store})
//	id, _ := hub.Register(corp)
//	coord, _ := company.NewCoordinator(company.CoordinatorConfig{
//		Company:    corp,
//		Dispatcher: directory,
//	})
//	outcome, err := coord.RunObjective(ctx, "obj-1", 30*time.Second)
package company
