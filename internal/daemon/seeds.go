package daemon

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sojinmm/lux-sub007/internal/config"
	"github.com/sojinmm/lux-sub007/pkg/beam"
	"github.com/sojinmm/lux-sub007/pkg/capability"
	"github.com/sojinmm/lux-sub007/pkg/company"
	"github.com/sojinmm/lux-sub007/pkg/llm"
	"github.com/sojinmm/lux-sub007/pkg/runner"
	sig "github.com/sojinmm/lux-sub007/pkg/signal"
)

const defaultSchedulerInterval = 15 * time.Second

// startRunners builds one runner per configured agent, including its
// beam executor, reflection service and scheduled beams, then binds the
// runner into the directory.
func (d *Daemon) startRunners() error {
	factory := &llm.Factory{}

	for _, agentCfg := range d.config.Agents {
		handler, reflector, err := d.buildLLMServices(factory, agentCfg)
		if err != nil {
			return fmt.Errorf("agent %s: %w", agentCfg.ID, err)
		}

		runCfg := runner.Config{
			ID:             agentCfg.ID,
			Name:           agentCfg.Name,
			Capabilities:   agentCfg.Capabilities,
			AcceptsSignals: agentCfg.AcceptsSignals,
			MailboxSize:    agentCfg.MailboxSize,
			Registry:       d.registry,
			Reflector:      reflector,
			Logger:         d.runnerLogger(agentCfg.ID),
		}

		if len(agentCfg.Beams) > 0 {
			engine, err := beam.NewEngine(handler, d.runnerLogger(agentCfg.ID))
			if err != nil {
				return fmt.Errorf("agent %s: beam engine: %w", agentCfg.ID, err)
			}
			runCfg.Executor = engine
			runCfg.ScheduledBeams = scheduledBeamsFromConfig(agentCfg.Beams)
			runCfg.SchedulerInterval = defaultSchedulerInterval
			if agentCfg.SchedulerIntervalMs > 0 {
				runCfg.SchedulerInterval = time.Duration(agentCfg.SchedulerIntervalMs) * time.Millisecond
			}
		}
		if reflector != nil && agentCfg.ReflectionIntervalMs > 0 {
			runCfg.ReflectionInterval = time.Duration(agentCfg.ReflectionIntervalMs) * time.Millisecond
		}

		r, err := runner.Start(runCfg)
		if err != nil {
			return fmt.Errorf("agent %s: %w", agentCfg.ID, err)
		}
		d.runners[agentCfg.ID] = r
		d.directory.Add(r)

		// Members report back through the coordinator of whichever
		// company assigned the task; route by sender identity.
		err = company.BindRole(company.MemberConfig{
			Runner:  r,
			Handler: handler,
			Sink:    d.routeToCoordinator,
			Logger:  d.runnerLogger(agentCfg.ID),
		})
		if err != nil {
			return fmt.Errorf("agent %s: bind role: %w", agentCfg.ID, err)
		}
	}
	return nil
}

// buildLLMServices resolves the agent's profile into a capability
// handler and reflection service. Agents without a profile fall back to
// the default profile for execution and run without reflection.
func (d *Daemon) buildLLMServices(factory *llm.Factory, agentCfg config.AgentConfig) (capability.Handler, runner.ReflectionService, error) {
	profileID := agentCfg.LLMProfile
	withReflection := profileID != ""
	if profileID == "" {
		profileID = d.config.LLM.Default
	}
	if profileID == "" {
		return staticHandler{}, nil, nil
	}

	profile, ok := d.config.LLM.Profile(profileID)
	if !ok {
		return nil, nil, fmt.Errorf("unknown llm profile %s", profileID)
	}
	llmCfg := llm.Config{
		Provider:    profile.Provider,
		APIKey:      profile.APIKey,
		Model:       profile.Model,
		Temperature: profile.Temperature,
		MaxTokens:   profile.MaxTokens,
	}
	provider, err := factory.NewProvider(llmCfg)
	if err != nil {
		return nil, nil, err
	}

	handler := llm.NewCapabilityHandler(provider, llmCfg, d.runnerLogger(agentCfg.ID))
	if !withReflection {
		return handler, nil, nil
	}
	reflector, err := llm.NewReflector(provider, llmCfg, d.runnerLogger(agentCfg.ID))
	if err != nil {
		return nil, nil, err
	}
	return handler, reflector, nil
}

// registerCompanies seeds configured companies into the hub. Companies
// already present in the store keep their stored definition.
func (d *Daemon) registerCompanies() error {
	for _, corpCfg := range d.config.Companies {
		corp := companyFromConfig(corpCfg)
		id, err := d.hub.Register(corp)
		if err != nil {
			if errors.Is(err, company.ErrDuplicateID) {
				d.logger.Zerolog().Debug().
					Str("company", corp.Name).
					Msg("Company already registered, keeping stored definition")
				continue
			}
			return fmt.Errorf("register company %s: %w", corp.Name, err)
		}
		d.logger.Zerolog().Info().
			Str("company_id", id).
			Str("company", corp.Name).
			Msg("Company registered")
	}
	return nil
}

// startCoordinators creates one coordinator per registered company.
func (d *Daemon) startCoordinators() error {
	backoff := time.Duration(d.config.Coordinator.RetryBackoffMs) * time.Millisecond
	pending := time.Duration(d.config.Coordinator.PendingTimeoutMs) * time.Millisecond

	for _, corp := range d.hub.List() {
		coord, err := company.NewCoordinator(company.CoordinatorConfig{
			Company:        corp,
			Dispatcher:     d.directory,
			Registry:       d.registry,
			MaxAttempts:    d.config.Coordinator.MaxAttempts,
			RetryBackoff:   backoff,
			PendingTimeout: pending,
			Logger:         d.logger.With().Str("company_id", corp.ID).Logger(),
		})
		if err != nil {
			return fmt.Errorf("coordinator for %s: %w", corp.Name, err)
		}
		d.coordinators[corp.ID] = coord
	}
	return nil
}

// routeToCoordinator forwards a member's report to the coordinator of
// the company that defines the task's objective.
func (d *Daemon) routeToCoordinator(s sig.Signal) error {
	ts, err := company.ParseTaskSignal(s)
	if err != nil {
		return err
	}

	d.mu.RLock()
	defer d.mu.RUnlock()
	for _, coord := range d.coordinators {
		if coord.Owns(ts.ObjectiveID) {
			return coord.HandleSignal(s)
		}
	}
	return company.ErrObjectiveNotFound
}

// staticHandler acknowledges capability executions without doing any
// work. It backs agents running without an LLM profile.
type staticHandler struct{}

func (staticHandler) Execute(_ context.Context, name string, _ map[string]any, _ capability.Context) (capability.Result, error) {
	return capability.Result{
		Success: true,
		Output:  map[string]any{"capability": name, "acknowledged": true},
	}, nil
}

func companyFromConfig(cfg config.CompanyConfig) company.Company {
	return company.Company{
		ID:         cfg.ID,
		Name:       cfg.Name,
		Mission:    cfg.Mission,
		CEO:        roleFromConfig(cfg.CEO),
		Roles:      rolesFromConfig(cfg.Roles),
		Objectives: objectivesFromConfig(cfg.Objectives),
	}
}

func roleFromConfig(cfg config.RoleConfig) company.Role {
	return company.Role{
		ID:           cfg.ID,
		Name:         cfg.Name,
		Goal:         cfg.Goal,
		Capabilities: cfg.Capabilities,
		Agent:        cfg.Agent,
	}
}

func rolesFromConfig(cfgs []config.RoleConfig) []company.Role {
	roles := make([]company.Role, len(cfgs))
	for i, cfg := range cfgs {
		roles[i] = roleFromConfig(cfg)
	}
	return roles
}

func objectivesFromConfig(cfgs []config.ObjectiveConfig) []company.Objective {
	objectives := make([]company.Objective, len(cfgs))
	for i, cfg := range cfgs {
		objectives[i] = company.Objective{
			ID:              cfg.ID,
			Description:     cfg.Description,
			SuccessCriteria: cfg.SuccessCriteria,
			Steps:           cfg.Steps,
		}
	}
	return objectives
}

func scheduledBeamsFromConfig(cfgs []config.ScheduledBeamConfig) []runner.ScheduledBeam {
	beams := make([]runner.ScheduledBeam, len(cfgs))
	for i, cfg := range cfgs {
		beams[i] = runner.ScheduledBeam{
			Beam:     beamFromConfig(cfg.Beam),
			CronExpr: cfg.Cron,
			Options:  runner.ScheduleOptions{OneShot: cfg.OneShot},
		}
	}
	return beams
}

func beamFromConfig(cfg config.BeamConfig) beam.Beam {
	steps := make([]beam.Step, len(cfg.Steps))
	for i, s := range cfg.Steps {
		steps[i] = beam.Step{
			ID:         s.ID,
			Capability: s.Capability,
			Input:      s.Input,
			OnSuccess:  s.OnSuccess,
			OnFailure:  s.OnFailure,
		}
	}
	return beam.Beam{ID: cfg.ID, Name: cfg.Name, Steps: steps}
}
