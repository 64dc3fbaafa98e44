package config

import (
	"fmt"
	"strings"

	"github.com/robfig/cron/v3"
)

var cronParser = cron.NewParser(
	cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow,
)

// Validate checks the configuration for internal consistency: profile
// references resolve, agent ids are unique, cron expressions parse and
// company roles point at configured agents.
func (c *Config) Validate() error {
	for i, p := range c.LLM.Profiles {
		if p.ID == "" {
			return fmt.Errorf("llm profile %d: id is required", i)
		}
		if err := validateProvider(p.Provider); err != nil {
			return fmt.Errorf("llm profile %s: %w", p.ID, err)
		}
		if err := validateAPIKey(p.APIKey, p.Provider); err != nil {
			return fmt.Errorf("llm profile %s: %w", p.ID, err)
		}
	}
	if c.LLM.Default != "" {
		if _, ok := c.LLM.Profile(c.LLM.Default); !ok {
			return fmt.Errorf("llm default profile %s is not defined", c.LLM.Default)
		}
	}

	agents := make(map[string]struct{}, len(c.Agents))
	for i, agent := range c.Agents {
		if agent.ID == "" {
			return fmt.Errorf("agent %d: id is required", i)
		}
		if _, dup := agents[agent.ID]; dup {
			return fmt.Errorf("agent %s: duplicate id", agent.ID)
		}
		agents[agent.ID] = struct{}{}

		if agent.LLMProfile != "" {
			if _, ok := c.LLM.Profile(agent.LLMProfile); !ok {
				return fmt.Errorf("agent %s: unknown llm profile %s", agent.ID, agent.LLMProfile)
			}
		}
		for _, sb := range agent.Beams {
			if sb.Beam.ID == "" {
				return fmt.Errorf("agent %s: beam id is required", agent.ID)
			}
			if _, err := cronParser.Parse(sb.Cron); err != nil {
				return fmt.Errorf("agent %s: beam %s: invalid cron expression %q: %w",
					agent.ID, sb.Beam.ID, sb.Cron, err)
			}
		}
	}

	for i, corp := range c.Companies {
		if corp.Name == "" {
			return fmt.Errorf("company %d: name is required", i)
		}
		if len(corp.Roles) == 0 {
			return fmt.Errorf("company %s: at least one role is required", corp.Name)
		}
		roles := append([]RoleConfig{corp.CEO}, corp.Roles...)
		for _, role := range roles {
			if role.Agent == "" {
				continue
			}
			if _, ok := agents[role.Agent]; !ok {
				return fmt.Errorf("company %s: role %s references unknown agent %s",
					corp.Name, role.ID, role.Agent)
			}
		}
	}

	if c.Coordinator.MaxAttempts < 0 {
		return fmt.Errorf("coordinator: max_attempts must be >= 0")
	}
	if c.Coordinator.RetryBackoffMs < 0 {
		return fmt.Errorf("coordinator: retry_backoff_ms must be >= 0")
	}
	if c.Coordinator.PendingTimeoutMs < 0 {
		return fmt.Errorf("coordinator: pending_timeout_ms must be >= 0")
	}

	if c.Metrics.Enabled && c.Metrics.Listen == "" {
		return fmt.Errorf("metrics: listen address is required when enabled")
	}

	return nil
}

func validateProvider(provider string) error {
	switch provider {
	case "anthropic", "openai":
		return nil
	case "":
		return fmt.Errorf("provider is required")
	default:
		return fmt.Errorf("invalid provider %s (must be anthropic or openai)", provider)
	}
}

func validateAPIKey(key, provider string) error {
	if key == "" {
		return fmt.Errorf("api_key is required")
	}
	switch provider {
	case "anthropic":
		if !strings.HasPrefix(key, "sk-ant-") {
			return fmt.Errorf("invalid anthropic api key format (expected sk-ant- prefix)")
		}
	case "openai":
		if !strings.HasPrefix(key, "sk-") {
			return fmt.Errorf("invalid openai api key format (expected sk- prefix)")
		}
	}
	return nil
}

// ValidLogLevels lists the accepted logging levels.
var ValidLogLevels = []string{"debug", "info", "warn", "error"}

// ValidateLogLevel reports whether level is one of the accepted levels.
func ValidateLogLevel(level string) error {
	for _, valid := range ValidLogLevels {
		if level == valid {
			return nil
		}
	}
	return fmt.Errorf("invalid log level: %s (must be one of: %s)",
		level, strings.Join(ValidLogLevels, ", "))
}
