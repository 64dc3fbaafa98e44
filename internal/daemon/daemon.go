package daemon

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/sojinmm/lux-sub007/internal/config"
	"github.com/sojinmm/lux-sub007/internal/logger"
	"github.com/sojinmm/lux-sub007/internal/observability"
	"github.com/sojinmm/lux-sub007/pkg/company"
	"github.com/sojinmm/lux-sub007/pkg/runner"
	sig "github.com/sojinmm/lux-sub007/pkg/signal"
)

// Daemon wires the configured agents, companies and coordinators into
// one process.
type Daemon struct {
	config *config.Config
	logger *logger.Logger

	registry  *sig.Registry
	store     *company.SQLiteStore
	hub       *company.Hub
	directory *company.Directory

	runners      map[string]*runner.Runner
	coordinators map[string]*company.Coordinator

	metricsServer *http.Server

	startTime time.Time
	running   bool
	mu        sync.RWMutex
	wg        sync.WaitGroup
}

// Status reports the daemon's runtime state.
type Status struct {
	Running   bool
	StartTime time.Time
	Uptime    time.Duration

	Agents    int
	Companies int
}

// New builds a daemon from the config: schema registry, company store
// and hub, agent runners and one coordinator per company. Nothing is
// served until Start.
func New(cfg *config.Config, log *logger.Logger) (*Daemon, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	observability.EnsureRegistered()

	d := &Daemon{
		config:       cfg,
		logger:       log,
		registry:     sig.NewRegistry(),
		directory:    company.NewDirectory(),
		runners:      make(map[string]*runner.Runner),
		coordinators: make(map[string]*company.Coordinator),
	}

	if err := company.RegisterTaskSchema(d.registry); err != nil {
		return nil, fmt.Errorf("register task schema: %w", err)
	}
	log.Zerolog().Info().Msg("Signal schema registry initialized")

	store, err := company.NewSQLiteStore(cfg.Storage.Path, *log.Zerolog())
	if err != nil {
		return nil, fmt.Errorf("open company store: %w", err)
	}
	d.store = store
	log.Zerolog().Info().Str("path", cfg.Storage.Path).Msg("Company store opened")

	hub, err := company.NewHub(company.HubConfig{Store: store, Logger: *log.Zerolog()})
	if err != nil {
		store.Close()
		return nil, fmt.Errorf("create hub: %w", err)
	}
	d.hub = hub

	return d, nil
}

// Start brings up the metrics endpoint, the agent runners, the company
// roster and the coordinators.
func (d *Daemon) Start() error {
	d.mu.Lock()
	if d.running {
		d.mu.Unlock()
		return fmt.Errorf("daemon is already running")
	}
	d.running = true
	d.startTime = time.Now()
	d.mu.Unlock()

	log := d.logger.Zerolog()
	log.Info().Msg("Starting lux daemon")

	if d.config.Metrics.Enabled {
		if err := d.startMetricsServer(); err != nil {
			return err
		}
		log.Info().Str("listen", d.config.Metrics.Listen).Msg("Metrics endpoint started")
	}

	if err := d.startRunners(); err != nil {
		d.shutdown()
		return err
	}
	log.Info().Int("count", len(d.runners)).Msg("Agent runners started")

	if err := d.registerCompanies(); err != nil {
		d.shutdown()
		return err
	}

	if err := d.startCoordinators(); err != nil {
		d.shutdown()
		return err
	}
	log.Info().Int("count", len(d.coordinators)).Msg("Coordinators started")

	log.Info().Msg("Daemon started")
	return nil
}

// Stop shuts everything down in reverse dependency order.
func (d *Daemon) Stop() error {
	d.mu.Lock()
	if !d.running {
		d.mu.Unlock()
		return nil
	}
	d.running = false
	d.mu.Unlock()

	d.logger.Zerolog().Info().Msg("Stopping lux daemon")
	d.shutdown()
	d.wg.Wait()
	d.logger.Zerolog().Info().Msg("Daemon stopped")
	return nil
}

func (d *Daemon) shutdown() {
	d.mu.Lock()
	defer d.mu.Unlock()

	for id, coord := range d.coordinators {
		coord.Stop()
		delete(d.coordinators, id)
	}
	for id, r := range d.runners {
		r.Stop()
		d.directory.Remove(id)
		delete(d.runners, id)
	}
	if d.metricsServer != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := d.metricsServer.Shutdown(ctx); err != nil {
			d.logger.Zerolog().Warn().Err(err).Msg("Metrics server shutdown failed")
		}
		cancel()
		d.metricsServer = nil
	}
	if d.store != nil {
		if err := d.store.Close(); err != nil {
			d.logger.Zerolog().Warn().Err(err).Msg("Company store close failed")
		}
		d.store = nil
	}
}

// Status reports whether the daemon is running and for how long.
func (d *Daemon) Status() Status {
	d.mu.RLock()
	defer d.mu.RUnlock()

	status := Status{
		Running:   d.running,
		Agents:    len(d.runners),
		Companies: len(d.coordinators),
	}
	if d.running {
		status.StartTime = d.startTime
		status.Uptime = time.Since(d.startTime)
	}
	return status
}

// Wait blocks until SIGINT or SIGTERM, then stops the daemon.
func (d *Daemon) Wait() {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	s := <-sigChan
	d.logger.Zerolog().Info().Str("signal", s.String()).Msg("Received signal")

	if err := d.Stop(); err != nil {
		d.logger.Zerolog().Error().Err(err).Msg("Failed to stop daemon")
	}
}

// Hub returns the company hub.
func (d *Daemon) Hub() *company.Hub {
	return d.hub
}

// Directory returns the agent directory.
func (d *Daemon) Directory() *company.Directory {
	return d.directory
}

// Coordinator returns the coordinator for a registered company id.
func (d *Daemon) Coordinator(companyID string) (*company.Coordinator, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	c, ok := d.coordinators[companyID]
	return c, ok
}

// Runner returns the runner for an agent id.
func (d *Daemon) Runner(agentID string) (*runner.Runner, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	r, ok := d.runners[agentID]
	return r, ok
}

func (d *Daemon) startMetricsServer() error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", observability.MetricsHandler())

	d.metricsServer = &http.Server{
		Addr:              d.config.Metrics.Listen,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		if err := d.metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			d.logger.Zerolog().Error().Err(err).Msg("Metrics server failed")
		}
	}()
	return nil
}

func (d *Daemon) runnerLogger(agentID string) zerolog.Logger {
	return d.logger.With().Str("agent_id", agentID).Logger()
}
