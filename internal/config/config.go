package config

import (
	"encoding/json"

	"github.com/sojinmm/lux-sub007/internal/logger"
)

// Config is the root daemon configuration.
type Config struct {
	// DataDir holds the daemon's state: company store, logs, pid file.
	DataDir string `json:"data_dir" mapstructure:"data_dir"`

	Logging logger.Config `json:"logging" mapstructure:"logging"`
	Metrics MetricsConfig `json:"metrics" mapstructure:"metrics"`
	Storage StorageConfig `json:"storage" mapstructure:"storage"`

	LLM LLMConfig `json:"llm" mapstructure:"llm"`

	Agents      []AgentConfig     `json:"agents" mapstructure:"agents"`
	Companies   []CompanyConfig   `json:"companies" mapstructure:"companies"`
	Coordinator CoordinatorConfig `json:"coordinator" mapstructure:"coordinator"`
}

// MetricsConfig controls the Prometheus endpoint.
type MetricsConfig struct {
	Enabled bool   `json:"enabled" mapstructure:"enabled"`
	Listen  string `json:"listen" mapstructure:"listen"`
}

// StorageConfig locates the company store.
type StorageConfig struct {
	Path string `json:"path" mapstructure:"path"`
}

// LLMConfig holds provider profiles for reflection.
type LLMConfig struct {
	Profiles []LLMProfile `json:"profiles" mapstructure:"profiles"`
	Default  string       `json:"default,omitempty" mapstructure:"default"`
}

// LLMProfile is one provider credential set.
type LLMProfile struct {
	ID          string  `json:"id" mapstructure:"id"`
	Provider    string  `json:"provider" mapstructure:"provider"` // anthropic, openai
	APIKey      string  `json:"api_key" mapstructure:"api_key"`
	Model       string  `json:"model" mapstructure:"model"`
	Temperature float64 `json:"temperature,omitempty" mapstructure:"temperature"`
	MaxTokens   int     `json:"max_tokens,omitempty" mapstructure:"max_tokens"`
}

// Profile returns the profile with the given id.
func (c LLMConfig) Profile(id string) (LLMProfile, bool) {
	for _, p := range c.Profiles {
		if p.ID == id {
			return p, true
		}
	}
	return LLMProfile{}, false
}

// AgentConfig seeds one agent runner.
type AgentConfig struct {
	ID             string   `json:"id" mapstructure:"id"`
	Name           string   `json:"name" mapstructure:"name"`
	Capabilities   []string `json:"capabilities" mapstructure:"capabilities"`
	AcceptsSignals []string `json:"accepts_signals" mapstructure:"accepts_signals"`

	// LLMProfile selects the profile driving this agent's reflection;
	// empty disables reflection.
	LLMProfile string `json:"llm_profile,omitempty" mapstructure:"llm_profile"`

	MailboxSize          int `json:"mailbox_size,omitempty" mapstructure:"mailbox_size"`
	SchedulerIntervalMs  int `json:"scheduler_interval_ms,omitempty" mapstructure:"scheduler_interval_ms"`
	ReflectionIntervalMs int `json:"reflection_interval_ms,omitempty" mapstructure:"reflection_interval_ms"`

	Beams []ScheduledBeamConfig `json:"beams,omitempty" mapstructure:"beams"`
}

// ScheduledBeamConfig seeds one cron-scheduled beam on an agent.
type ScheduledBeamConfig struct {
	Beam    BeamConfig `json:"beam" mapstructure:"beam"`
	Cron    string     `json:"cron" mapstructure:"cron"`
	OneShot bool       `json:"one_shot,omitempty" mapstructure:"one_shot"`
}

// BeamConfig describes a beam's step graph.
type BeamConfig struct {
	ID    string           `json:"id" mapstructure:"id"`
	Name  string           `json:"name,omitempty" mapstructure:"name"`
	Steps []BeamStepConfig `json:"steps" mapstructure:"steps"`
}

// BeamStepConfig is one step of a beam.
type BeamStepConfig struct {
	ID         string         `json:"id" mapstructure:"id"`
	Capability string         `json:"capability" mapstructure:"capability"`
	Input      map[string]any `json:"input,omitempty" mapstructure:"input"`
	OnSuccess  string         `json:"on_success,omitempty" mapstructure:"on_success"`
	OnFailure  string         `json:"on_failure,omitempty" mapstructure:"on_failure"`
}

// CompanyConfig seeds one company definition.
type CompanyConfig struct {
	ID         string            `json:"id,omitempty" mapstructure:"id"`
	Name       string            `json:"name" mapstructure:"name"`
	Mission    string            `json:"mission,omitempty" mapstructure:"mission"`
	CEO        RoleConfig        `json:"ceo" mapstructure:"ceo"`
	Roles      []RoleConfig      `json:"roles" mapstructure:"roles"`
	Objectives []ObjectiveConfig `json:"objectives,omitempty" mapstructure:"objectives"`
}

// RoleConfig is one role inside a company.
type RoleConfig struct {
	ID           string   `json:"id" mapstructure:"id"`
	Name         string   `json:"name" mapstructure:"name"`
	Goal         string   `json:"goal,omitempty" mapstructure:"goal"`
	Capabilities []string `json:"capabilities" mapstructure:"capabilities"`
	Agent        string   `json:"agent,omitempty" mapstructure:"agent"`
}

// ObjectiveConfig is one objective of a company.
type ObjectiveConfig struct {
	ID              string   `json:"id" mapstructure:"id"`
	Description     string   `json:"description" mapstructure:"description"`
	SuccessCriteria []string `json:"success_criteria,omitempty" mapstructure:"success_criteria"`
	Steps           []string `json:"steps" mapstructure:"steps"`
}

// CoordinatorConfig tunes task delegation.
type CoordinatorConfig struct {
	MaxAttempts      int `json:"max_attempts,omitempty" mapstructure:"max_attempts"`
	RetryBackoffMs   int `json:"retry_backoff_ms,omitempty" mapstructure:"retry_backoff_ms"`
	PendingTimeoutMs int `json:"pending_timeout_ms,omitempty" mapstructure:"pending_timeout_ms"`
}

// DefaultConfig returns a config with default values.
func DefaultConfig() *Config {
	return &Config{
		Logging: logger.DefaultConfig(),
		Metrics: MetricsConfig{
			Enabled: false,
			Listen:  "127.0.0.1:9464",
		},
		Coordinator: CoordinatorConfig{
			MaxAttempts:      3,
			RetryBackoffMs:   1000,
			PendingTimeoutMs: 30000,
		},
	}
}

// String returns an indented JSON rendering of the config.
func (c *Config) String() string {
	data, _ := json.MarshalIndent(c, "", "  ")
	return string(data)
}
