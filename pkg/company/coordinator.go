package company

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/sojinmm/lux-sub007/internal/observability"
	"github.com/sojinmm/lux-sub007/pkg/capability"
	"github.com/sojinmm/lux-sub007/pkg/signal"
)

const (
	defaultMaxAttempts      = 3
	defaultRetryBackoff     = time.Second
	defaultPendingTimeout   = 30 * time.Second
	defaultObjectiveTimeout = 5 * time.Minute
)

// Dispatcher delivers a signal to the agent bound to a role. The
// coordinator never talks to runners directly.
type Dispatcher interface {
	Dispatch(agentID string, sig signal.Signal) error
}

// CoordinatorConfig configures a company coordinator
type CoordinatorConfig struct {
	Company    Company
	Dispatcher Dispatcher

	// Inferencer derives task capabilities from objective steps;
	// defaults to the keyword inferencer.
	Inferencer capability.Inferencer

	// Registry, when set, validates inbound task signals before they
	// reach the event loop.
	Registry *signal.Registry

	// MaxAttempts bounds assignment attempts per task (default 3).
	MaxAttempts int

	// RetryBackoff is the base of the exponential backoff between
	// attempts: backoff = RetryBackoff << (attempt-1). Default 1s.
	RetryBackoff time.Duration

	// PendingTimeout bounds how long a task with no eligible role may
	// stay pending before it is surfaced as NoEligibleRole (default 30s).
	PendingTimeout time.Duration

	Logger zerolog.Logger
}

// Coordinator drives objective execution for one company: it decomposes
// objectives into tasks, assigns tasks to capable roles, tracks status
// via signals and retries or reports failures. One event at a time is
// processed per company; different companies progress independently.
type Coordinator struct {
	company    Company
	dispatcher Dispatcher
	inferencer capability.Inferencer
	registry   *signal.Registry

	maxAttempts    int
	retryBackoff   time.Duration
	pendingTimeout time.Duration
	sender         string

	events   chan coordEvent
	plans    map[string]*Plan
	inflight map[string]int
	waiters  map[string][]chan ObjectiveOutcome

	logger   zerolog.Logger
	ctx      context.Context
	cancel   context.CancelFunc
	stopped  atomic.Bool
	stopOnce sync.Once
	done     chan struct{}
}

type coordEvent interface{ isCoordEvent() }

type startObjectiveEvent struct {
	objectiveID string
	waiter      chan ObjectiveOutcome
	errReply    chan error
}

type taskSignalEvent struct {
	ts TaskSignal
}

type retryTaskEvent struct {
	objectiveID string
	taskID      string
}

type pendingTimeoutEvent struct {
	objectiveID string
	taskID      string
	attempt     int
}

type cancelTaskEvent struct {
	objectiveID string
	taskID      string
}

type outcomeQueryEvent struct {
	objectiveID string
	reply       chan ObjectiveOutcome
}

func (startObjectiveEvent) isCoordEvent() {}
func (taskSignalEvent) isCoordEvent()     {}
func (retryTaskEvent) isCoordEvent()      {}
func (pendingTimeoutEvent) isCoordEvent() {}
func (cancelTaskEvent) isCoordEvent()     {}
func (outcomeQueryEvent) isCoordEvent()   {}

// NewCoordinator creates and starts a coordinator for one company
func NewCoordinator(cfg CoordinatorConfig) (*Coordinator, error) {
	observability.EnsureRegistered()

	if cfg.Company.ID == "" {
		return nil, fmt.Errorf("company id is required")
	}
	if cfg.Dispatcher == nil {
		return nil, fmt.Errorf("dispatcher is required")
	}

	inferencer := cfg.Inferencer
	if inferencer == nil {
		inferencer = capability.NewKeywordInferencer(capability.DefaultKeywordTable(), "")
	}

	maxAttempts := cfg.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = defaultMaxAttempts
	}

	retryBackoff := cfg.RetryBackoff
	if retryBackoff <= 0 {
		retryBackoff = defaultRetryBackoff
	}

	pendingTimeout := cfg.PendingTimeout
	if pendingTimeout <= 0 {
		pendingTimeout = defaultPendingTimeout
	}

	ctx, cancel := context.WithCancel(context.Background())

	c := &Coordinator{
		company:        cfg.Company,
		dispatcher:     cfg.Dispatcher,
		inferencer:     inferencer,
		registry:       cfg.Registry,
		maxAttempts:    maxAttempts,
		retryBackoff:   retryBackoff,
		pendingTimeout: pendingTimeout,
		sender:         fmt.Sprintf("coordinator:%s", cfg.Company.ID),
		events:         make(chan coordEvent, 128),
		plans:          make(map[string]*Plan),
		inflight:       make(map[string]int),
		waiters:        make(map[string][]chan ObjectiveOutcome),
		logger:         cfg.Logger.With().Str("companyId", cfg.Company.ID).Logger(),
		ctx:            ctx,
		cancel:         cancel,
		done:           make(chan struct{}),
	}

	go c.loop()

	c.logger.Info().
		Str("company", cfg.Company.Name).
		Int("roles", len(cfg.Company.Roles)).
		Msg("Coordinator started")

	return c, nil
}

// RunObjective decomposes the named objective, drives its tasks to
// completion and blocks until the objective finishes or the timeout
// elapses. A zero timeout uses the default. On timeout the partial
// outcome gathered so far is returned alongside ErrTimeout.
func (c *Coordinator) RunObjective(ctx context.Context, objectiveID string, timeout time.Duration) (ObjectiveOutcome, error) {
	if timeout <= 0 {
		timeout = defaultObjectiveTimeout
	}

	waiter := make(chan ObjectiveOutcome, 1)
	errReply := make(chan error, 1)

	if err := c.post(startObjectiveEvent{objectiveID: objectiveID, waiter: waiter, errReply: errReply}); err != nil {
		return ObjectiveOutcome{}, err
	}

	select {
	case err := <-errReply:
		if err != nil {
			return ObjectiveOutcome{}, err
		}
	case <-c.ctx.Done():
		return ObjectiveOutcome{}, ErrCoordinatorStopped
	case <-ctx.Done():
		return ObjectiveOutcome{}, ctx.Err()
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case outcome := <-waiter:
		return outcome, nil
	case <-c.ctx.Done():
		return ObjectiveOutcome{}, ErrCoordinatorStopped
	case <-ctx.Done():
		return ObjectiveOutcome{}, ctx.Err()
	case <-timer.C:
		outcome, _ := c.Outcome(objectiveID)
		return outcome, fmt.Errorf("%w: objective %s", ErrTimeout, objectiveID)
	}
}

// HandleSignal ingests a status/completion/failure signal referencing a
// task. It is the coordinator's inbound half of the signal protocol;
// member agents report results through it.
func (c *Coordinator) HandleSignal(sig signal.Signal) error {
	if c.registry != nil {
		if err := c.registry.ValidateSignal(sig); err != nil {
			return fmt.Errorf("rejecting task signal %s: %w", sig.ID, err)
		}
	}

	ts, err := ParseTaskSignal(sig)
	if err != nil {
		return err
	}

	switch ts.Type {
	case TaskSignalStatusUpdate, TaskSignalCompletion, TaskSignalFailure:
		return c.post(taskSignalEvent{ts: ts})
	default:
		return fmt.Errorf("coordinator does not accept %s signals", ts.Type)
	}
}

// Owns reports whether the coordinator's company defines the objective.
func (c *Coordinator) Owns(objectiveID string) bool {
	_, ok := c.company.FindObjective(objectiveID)
	return ok
}

// CancelTask cancels a pending or in-flight task assignment
func (c *Coordinator) CancelTask(objectiveID, taskID string) error {
	return c.post(cancelTaskEvent{objectiveID: objectiveID, taskID: taskID})
}

// Outcome returns the current aggregate outcome for an objective
func (c *Coordinator) Outcome(objectiveID string) (ObjectiveOutcome, error) {
	reply := make(chan ObjectiveOutcome, 1)
	if err := c.post(outcomeQueryEvent{objectiveID: objectiveID, reply: reply}); err != nil {
		return ObjectiveOutcome{}, err
	}

	select {
	case outcome := <-reply:
		if outcome.ObjectiveID == "" {
			return ObjectiveOutcome{}, fmt.Errorf("%w: %s", ErrObjectiveNotFound, objectiveID)
		}
		return outcome, nil
	case <-c.ctx.Done():
		return ObjectiveOutcome{}, ErrCoordinatorStopped
	}
}

// Stop terminates the coordinator loop. Outstanding waiters are
// released with ErrCoordinatorStopped.
func (c *Coordinator) Stop() {
	c.stopOnce.Do(func() {
		c.stopped.Store(true)
		c.cancel()
		<-c.done
		c.logger.Info().Msg("Coordinator stopped")
	})
}

func (c *Coordinator) post(evt coordEvent) error {
	if c.stopped.Load() {
		return ErrCoordinatorStopped
	}

	select {
	case c.events <- evt:
		return nil
	case <-c.ctx.Done():
		return ErrCoordinatorStopped
	}
}

// loop serializes all task-transition events for this company
func (c *Coordinator) loop() {
	defer close(c.done)

	for {
		select {
		case <-c.ctx.Done():
			return
		case evt := <-c.events:
			c.handleEvent(evt)
		}
	}
}

func (c *Coordinator) handleEvent(evt coordEvent) {
	switch e := evt.(type) {
	case startObjectiveEvent:
		c.startObjective(e)
	case taskSignalEvent:
		c.applyTaskSignal(e.ts)
	case retryTaskEvent:
		c.retryTask(e.objectiveID, e.taskID)
	case pendingTimeoutEvent:
		c.expirePendingTask(e.objectiveID, e.taskID, e.attempt)
	case cancelTaskEvent:
		c.cancelTask(e.objectiveID, e.taskID)
	case outcomeQueryEvent:
		plan, ok := c.plans[e.objectiveID]
		if !ok {
			e.reply <- ObjectiveOutcome{}
			return
		}
		e.reply <- c.outcomeFor(plan)
	}
}

// startObjective decomposes the objective into tasks and dispatches the
// first round of assignments
func (c *Coordinator) startObjective(e startObjectiveEvent) {
	obj, ok := c.company.FindObjective(e.objectiveID)
	if !ok {
		e.errReply <- fmt.Errorf("%w: %s", ErrObjectiveNotFound, e.objectiveID)
		return
	}
	e.errReply <- nil

	if plan, exists := c.plans[e.objectiveID]; exists {
		// Join the in-flight execution, or answer immediately when done
		if plan.Status == ObjectiveStatusCompleted || plan.Status == ObjectiveStatusFailed {
			e.waiter <- c.outcomeFor(plan)
			return
		}
		c.waiters[e.objectiveID] = append(c.waiters[e.objectiveID], e.waiter)
		return
	}

	plan := &Plan{
		ID:          uuid.New().String(),
		ObjectiveID: obj.ID,
		Status:      ObjectiveStatusRunning,
		Tasks:       make(map[string]*Task),
		StartedAtMs: time.Now().UnixMilli(),
	}

	now := time.Now().UnixMilli()
	for _, step := range obj.Steps {
		task := &Task{
			ID:                   uuid.New().String(),
			ObjectiveID:          obj.ID,
			Title:                step,
			Description:          step,
			RequiredCapabilities: c.inferencer.InferCapabilities(step),
			Status:               TaskStatusPending,
			Metadata:             TaskMetadata{CreatedAtMs: now},
		}
		plan.Tasks[task.ID] = task
		plan.TaskOrder = append(plan.TaskOrder, task.ID)
	}

	c.plans[obj.ID] = plan
	c.waiters[obj.ID] = append(c.waiters[obj.ID], e.waiter)
	observability.SetObjectivesRunning(c.company.ID, c.runningPlans())

	c.logger.Info().
		Str("objectiveId", obj.ID).
		Int("tasks", len(plan.Tasks)).
		Msg("Objective decomposed")

	// An objective with zero tasks completes immediately
	if len(plan.Tasks) == 0 {
		c.completePlan(plan)
		return
	}

	for _, taskID := range plan.TaskOrder {
		c.assignTask(plan, plan.Tasks[taskID])
	}
}

// assignTask finds an eligible role and emits an assignment signal.
// With no eligible role the task stays pending until the pending
// timeout surfaces it as NoEligibleRole.
func (c *Coordinator) assignTask(plan *Plan, task *Task) {
	if plan.Status != ObjectiveStatusRunning {
		return
	}

	role, ok := c.selectRole(task.RequiredCapabilities)
	if !ok {
		c.logger.Warn().
			Str("taskId", task.ID).
			Strs("required", task.RequiredCapabilities).
			Dur("timeout", c.pendingTimeout).
			Msg("No eligible role for task, waiting for timeout")

		objectiveID, taskID, attempt := plan.ObjectiveID, task.ID, task.Metadata.Attempt
		time.AfterFunc(c.pendingTimeout, func() {
			_ = c.post(pendingTimeoutEvent{objectiveID: objectiveID, taskID: taskID, attempt: attempt})
		})
		return
	}

	task.Status = TaskStatusInProgress
	task.AssignedRole = role.ID
	task.Metadata.StartedAtMs = time.Now().UnixMilli()
	task.Metadata.Attempt++
	c.inflight[role.ID]++

	observability.RecordTaskAssignment(c.company.ID, role.ID)
	if task.Metadata.Attempt > 1 {
		observability.RecordTaskRetry(c.company.ID)
	}

	taskCtx := &TaskContext{}
	if role.Goal != "" {
		taskCtx.Constraints = []string{role.Goal}
	}
	sig, err := NewAssignment(task, taskCtx).Signal(c.sender, role.Agent)
	if err == nil {
		err = c.dispatcher.Dispatch(role.Agent, sig)
	}
	if err != nil {
		c.logger.Error().
			Str("taskId", task.ID).
			Str("roleId", role.ID).
			Err(err).
			Msg("Failed to dispatch assignment")
		c.releaseRole(task)
		c.failAttempt(plan, task, fmt.Sprintf("dispatch failed: %v", err), nil)
		return
	}

	c.logger.Info().
		Str("taskId", task.ID).
		Str("roleId", role.ID).
		Int("attempt", task.Metadata.Attempt).
		Msg("Task assigned")
}

// selectRole picks the eligible role with the smallest in-flight task
// count, breaking ties by declaration order in the company's role list
func (c *Coordinator) selectRole(required []string) (Role, bool) {
	var best Role
	bestLoad := -1

	for _, role := range c.company.Roles {
		if !capability.NewSet(role.Capabilities...).ContainsAll(required) {
			continue
		}
		load := c.inflight[role.ID]
		if bestLoad < 0 || load < bestLoad {
			best = role
			bestLoad = load
		}
	}

	return best, bestLoad >= 0
}

// applyTaskSignal updates task state from an inbound signal
func (c *Coordinator) applyTaskSignal(ts TaskSignal) {
	plan, ok := c.plans[ts.ObjectiveID]
	if !ok {
		c.logger.Warn().Str("objectiveId", ts.ObjectiveID).Msg("Signal references unknown objective")
		return
	}

	task, ok := plan.Tasks[ts.TaskID]
	if !ok {
		c.logger.Warn().Str("taskId", ts.TaskID).Msg("Signal references unknown task")
		return
	}

	// Terminal tasks ignore late or duplicate signals
	if task.Status.Terminal() {
		c.logger.Debug().Str("taskId", task.ID).Msg("Ignoring signal for terminal task")
		return
	}

	switch ts.Type {
	case TaskSignalStatusUpdate:
		task.Progress = ts.Progress
		if ts.Status != "" && !ts.Status.Terminal() {
			task.Status = ts.Status
		}

	case TaskSignalCompletion:
		c.releaseRole(task)
		task.Status = TaskStatusCompleted
		task.Progress = 100
		task.Result = completionResult(ts)
		finishTaskMetadata(task)

		observability.RecordTaskCompletion(c.company.ID, string(TaskStatusCompleted))
		c.logger.Info().Str("taskId", task.ID).Msg("Task completed")
		c.checkPlanCompletion(plan)

	case TaskSignalFailure:
		reason := "task failed"
		if ts.Result != nil && ts.Result.Error != "" {
			reason = ts.Result.Error
		}
		c.releaseRole(task)
		c.failAttempt(plan, task, reason, ts.Result)
	}
}

// failAttempt retries a failed task until attempts are exhausted, then
// marks it terminally failed and propagates objective failure
func (c *Coordinator) failAttempt(plan *Plan, task *Task, reason string, result *TaskResult) {
	if task.Metadata.Attempt < c.maxAttempts {
		backoff := c.retryBackoff << (task.Metadata.Attempt - 1)
		task.Status = TaskStatusPending
		task.AssignedRole = ""

		c.logger.Warn().
			Str("taskId", task.ID).
			Str("reason", reason).
			Int("attempt", task.Metadata.Attempt).
			Dur("backoff", backoff).
			Msg("Task attempt failed, retrying")

		objectiveID, taskID := plan.ObjectiveID, task.ID
		time.AfterFunc(backoff, func() {
			_ = c.post(retryTaskEvent{objectiveID: objectiveID, taskID: taskID})
		})
		return
	}

	task.Status = TaskStatusFailed
	if result != nil {
		task.Result = result
	} else {
		task.Result = &TaskResult{Success: false, Error: reason}
	}
	finishTaskMetadata(task)

	observability.RecordTaskCompletion(c.company.ID, string(TaskStatusFailed))
	c.logger.Error().
		Str("taskId", task.ID).
		Str("reason", reason).
		Int("attempts", task.Metadata.Attempt).
		Msg("Task failed terminally")

	c.failPlan(plan, fmt.Sprintf("task %s failed after %d attempts: %s", task.ID, task.Metadata.Attempt, reason))
}

func (c *Coordinator) retryTask(objectiveID, taskID string) {
	plan, ok := c.plans[objectiveID]
	if !ok || plan.Status != ObjectiveStatusRunning {
		return
	}

	task, ok := plan.Tasks[taskID]
	if !ok || task.Status != TaskStatusPending {
		return
	}

	c.assignTask(plan, task)
}

// expirePendingTask surfaces a task that found no eligible role before
// the pending timeout. The attempt stamp drops timers armed for an
// earlier attempt of a task that has since been assigned or retried.
func (c *Coordinator) expirePendingTask(objectiveID, taskID string, attempt int) {
	plan, ok := c.plans[objectiveID]
	if !ok || plan.Status != ObjectiveStatusRunning {
		return
	}

	task, ok := plan.Tasks[taskID]
	if !ok || task.Status != TaskStatusPending || task.Metadata.Attempt != attempt {
		return
	}

	task.Status = TaskStatusFailed
	task.Result = &TaskResult{
		Success: false,
		Error:   fmt.Sprintf("%v: required capabilities %v", ErrNoEligibleRole, task.RequiredCapabilities),
	}
	finishTaskMetadata(task)

	observability.RecordTaskCompletion(c.company.ID, string(TaskStatusFailed))
	c.logger.Error().
		Str("taskId", task.ID).
		Strs("required", task.RequiredCapabilities).
		Msg("No eligible role found before timeout")

	c.failPlan(plan, fmt.Sprintf("%v: task %s requires %v", ErrNoEligibleRole, task.ID, task.RequiredCapabilities))
}

// cancelTask cancels a pending or in-flight assignment. Cancelling a
// terminal task is a no-op.
func (c *Coordinator) cancelTask(objectiveID, taskID string) {
	plan, ok := c.plans[objectiveID]
	if !ok {
		return
	}

	task, ok := plan.Tasks[taskID]
	if !ok || task.Status.Terminal() {
		return
	}

	if task.AssignedRole != "" {
		if role, ok := c.roleByID(task.AssignedRole); ok && role.Agent != "" {
			sig, err := NewCancellation(task.ID, task.ObjectiveID, task.Title).Signal(c.sender, role.Agent)
			if err == nil {
				err = c.dispatcher.Dispatch(role.Agent, sig)
			}
			if err != nil {
				c.logger.Warn().Str("taskId", task.ID).Err(err).Msg("Failed to dispatch cancellation")
			}
		}
		c.releaseRole(task)
	}

	task.Status = TaskStatusFailed
	task.Result = &TaskResult{Success: false, Error: "cancelled"}
	finishTaskMetadata(task)

	observability.RecordTaskCompletion(c.company.ID, string(TaskStatusFailed))
	c.logger.Info().Str("taskId", task.ID).Msg("Task cancelled")

	c.failPlan(plan, fmt.Sprintf("task %s cancelled", task.ID))
}

// checkPlanCompletion completes the plan when every task is completed
func (c *Coordinator) checkPlanCompletion(plan *Plan) {
	for _, task := range plan.Tasks {
		if task.Status != TaskStatusCompleted {
			return
		}
	}
	c.completePlan(plan)
}

func (c *Coordinator) completePlan(plan *Plan) {
	plan.Status = ObjectiveStatusCompleted
	observability.SetObjectivesRunning(c.company.ID, c.runningPlans())
	observability.RecordObjectiveFinished(c.company.ID, string(ObjectiveStatusCompleted))

	c.logger.Info().Str("objectiveId", plan.ObjectiveID).Msg("Objective completed")

	c.notifyUpward(plan, TaskSignalCompletion)
	c.notifyWaiters(plan)
}

// failPlan marks the objective failed and stops dispatching further
// tasks for it. Completed results are preserved in the outcome.
func (c *Coordinator) failPlan(plan *Plan, reason string) {
	if plan.Status != ObjectiveStatusRunning {
		return
	}

	plan.Status = ObjectiveStatusFailed
	plan.Reason = reason
	observability.SetObjectivesRunning(c.company.ID, c.runningPlans())
	observability.RecordObjectiveFinished(c.company.ID, string(ObjectiveStatusFailed))

	c.logger.Error().
		Str("objectiveId", plan.ObjectiveID).
		Str("reason", reason).
		Msg("Objective failed")

	c.notifyUpward(plan, TaskSignalFailure)
	c.notifyWaiters(plan)
}

// notifyUpward reports the objective outcome to the CEO's bound agent.
// The plan id stands in as the task id for objective-level signals.
func (c *Coordinator) notifyUpward(plan *Plan, sigType TaskSignalType) {
	if c.company.CEO.Agent == "" {
		return
	}

	ts := TaskSignal{
		Type:        sigType,
		TaskID:      plan.ID,
		ObjectiveID: plan.ObjectiveID,
		Title:       fmt.Sprintf("Objective %s", plan.ObjectiveID),
		Description: plan.Reason,
	}
	switch sigType {
	case TaskSignalCompletion:
		ts.Status = TaskStatusCompleted
		ts.Progress = 100
		ts.Result = &TaskResult{Success: true}
	case TaskSignalFailure:
		ts.Status = TaskStatusFailed
		ts.Result = &TaskResult{Success: false, Error: plan.Reason}
	}

	sig, err := ts.Signal(c.sender, c.company.CEO.Agent)
	if err == nil {
		err = c.dispatcher.Dispatch(c.company.CEO.Agent, sig)
	}
	if err != nil {
		c.logger.Warn().
			Str("objectiveId", plan.ObjectiveID).
			Err(err).
			Msg("Failed to notify CEO agent")
	}
}

func (c *Coordinator) notifyWaiters(plan *Plan) {
	outcome := c.outcomeFor(plan)
	for _, waiter := range c.waiters[plan.ObjectiveID] {
		waiter <- outcome
	}
	delete(c.waiters, plan.ObjectiveID)
}

func (c *Coordinator) outcomeFor(plan *Plan) ObjectiveOutcome {
	outcome := ObjectiveOutcome{
		ObjectiveID: plan.ObjectiveID,
		Status:      plan.Status,
		Results:     make(map[string]TaskResult),
		Reason:      plan.Reason,
	}

	for _, taskID := range plan.TaskOrder {
		task := plan.Tasks[taskID]
		if task.Result != nil && task.Status == TaskStatusCompleted {
			outcome.Results[task.ID] = *task.Result
		}
		if task.Status == TaskStatusFailed {
			outcome.FailingTaskIDs = append(outcome.FailingTaskIDs, task.ID)
		}
	}

	return outcome
}

func (c *Coordinator) releaseRole(task *Task) {
	if task.AssignedRole == "" {
		return
	}
	if c.inflight[task.AssignedRole] > 0 {
		c.inflight[task.AssignedRole]--
	}
}

func (c *Coordinator) roleByID(id string) (Role, bool) {
	for _, role := range c.company.Roles {
		if role.ID == id {
			return role, true
		}
	}
	return Role{}, false
}

func (c *Coordinator) runningPlans() int {
	count := 0
	for _, plan := range c.plans {
		if plan.Status == ObjectiveStatusRunning {
			count++
		}
	}
	return count
}

func completionResult(ts TaskSignal) *TaskResult {
	if ts.Result != nil {
		return ts.Result
	}
	return &TaskResult{Success: true}
}

func finishTaskMetadata(task *Task) {
	now := time.Now().UnixMilli()
	task.Metadata.CompletedAtMs = now
	if task.Metadata.StartedAtMs > 0 {
		task.Metadata.DurationMs = now - task.Metadata.StartedAtMs
	}
}
