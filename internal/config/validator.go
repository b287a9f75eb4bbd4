package config

import (
	"fmt"
	"strings"
)

// Validator validates configuration values
type Validator struct{}

// NewValidator creates a new validator
func NewValidator() *Validator {
	return &Validator{}
}

// ValidateAPIKey validates an API key format
func (v *Validator) ValidateAPIKey(key string, provider string) error {
	if key == "" {
		return fmt.Errorf("%s API key cannot be empty", provider)
	}

	switch provider {
	case "anthropic":
		if !strings.HasPrefix(key, "sk-ant-") {
			return fmt.Errorf("invalid Anthropic API key format (should start with sk-ant-)")
		}
	case "openai":
		if !strings.HasPrefix(key, "sk-") {
			return fmt.Errorf("invalid OpenAI API key format (should start with sk-)")
		}
	}

	return nil
}

// ValidateProvider validates a provider name
func (v *Validator) ValidateProvider(provider string) error {
	switch provider {
	case "anthropic", "openai":
		return nil
	default:
		return fmt.Errorf("unsupported provider: %s", provider)
	}
}

// ValidateAgent validates agent loop settings
func (v *Validator) ValidateAgent(cfg AgentConfig) error {
	if cfg.Model == "" {
		return fmt.Errorf("model cannot be empty")
	}
	if cfg.Temperature < 0 || cfg.Temperature > 1 {
		return fmt.Errorf("temperature must be between 0 and 1")
	}
	if cfg.MaxTokens < 0 {
		return fmt.Errorf("max tokens cannot be negative")
	}
	if cfg.MaxRetries < 0 {
		return fmt.Errorf("max retries cannot be negative")
	}
	if cfg.JitterFactor < 0 || cfg.JitterFactor > 1 {
		return fmt.Errorf("jitter factor must be between 0 and 1")
	}
	if cfg.MaxIterations <= 0 {
		return fmt.Errorf("max iterations must be positive")
	}
	if cfg.MaxParallelTools <= 0 {
		return fmt.Errorf("max parallel tools must be positive")
	}
	if cfg.BaseDelayMs < 0 || cfg.MaxDelayMs < 0 {
		return fmt.Errorf("backoff delays cannot be negative")
	}
	if cfg.MaxDelayMs > 0 && cfg.BaseDelayMs > cfg.MaxDelayMs {
		return fmt.Errorf("base delay cannot exceed max delay")
	}
	return nil
}

// ValidateContext validates context window settings
func (v *Validator) ValidateContext(cfg ContextConfig) error {
	if cfg.TokenBudget <= 0 {
		return fmt.Errorf("token budget must be positive")
	}
	if cfg.ReserveTokens < 0 {
		return fmt.Errorf("reserve tokens cannot be negative")
	}
	if cfg.ReserveTokens >= cfg.TokenBudget {
		return fmt.Errorf("reserve tokens must be smaller than the token budget")
	}
	switch cfg.TruncationPolicy {
	case "", "drop-oldest", "summarize":
	default:
		return fmt.Errorf("unknown truncation policy: %s", cfg.TruncationPolicy)
	}
	return nil
}

// ValidateSession validates session persistence settings
func (v *Validator) ValidateSession(cfg SessionConfig) error {
	if cfg.MaxSessions < 0 {
		return fmt.Errorf("max sessions cannot be negative")
	}
	return nil
}

// Validate validates the whole configuration
func (v *Validator) Validate(cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("config cannot be nil")
	}
	if err := v.ValidateAgent(cfg.Agent); err != nil {
		return fmt.Errorf("agent: %w", err)
	}
	if err := v.ValidateContext(cfg.Context); err != nil {
		return fmt.Errorf("context: %w", err)
	}
	if err := v.ValidateSession(cfg.Session); err != nil {
		return fmt.Errorf("session: %w", err)
	}
	for _, profile := range cfg.AI.Profiles {
		if err := v.ValidateProvider(profile.Provider); err != nil {
			return fmt.Errorf("ai profile %s: %w", profile.ID, err)
		}
	}
	return nil
}
