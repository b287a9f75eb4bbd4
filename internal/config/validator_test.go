package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidator_ValidateAPIKey(t *testing.T) {
	v := NewValidator()

	tests := []struct {
		name      string
		key       string
		provider  string
		shouldErr bool
	}{
		{"valid anthropic", "sk-ant-abc123", "anthropic", false},
		{"valid openai", "sk-abc123", "openai", false},
		{"empty key", "", "anthropic", true},
		{"wrong anthropic prefix", "sk-abc123", "anthropic", true},
		{"wrong openai prefix", "key-abc123", "openai", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := v.ValidateAPIKey(tt.key, tt.provider)
			if tt.shouldErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestValidator_ValidateAgent(t *testing.T) {
	v := NewValidator()
	base := DefaultConfig().Agent

	assert.NoError(t, v.ValidateAgent(base))

	tests := []struct {
		name   string
		mutate func(*AgentConfig)
	}{
		{"empty model", func(c *AgentConfig) { c.Model = "" }},
		{"temperature too high", func(c *AgentConfig) { c.Temperature = 1.5 }},
		{"negative retries", func(c *AgentConfig) { c.MaxRetries = -1 }},
		{"jitter out of range", func(c *AgentConfig) { c.JitterFactor = 2 }},
		{"zero iterations", func(c *AgentConfig) { c.MaxIterations = 0 }},
		{"zero parallel tools", func(c *AgentConfig) { c.MaxParallelTools = 0 }},
		{"base delay above max", func(c *AgentConfig) { c.BaseDelayMs = 60000 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := base
			tt.mutate(&cfg)
			assert.Error(t, v.ValidateAgent(cfg))
		})
	}
}

func TestValidator_ValidateContext(t *testing.T) {
	v := NewValidator()

	assert.NoError(t, v.ValidateContext(ContextConfig{TokenBudget: 1000, ReserveTokens: 100}))
	assert.NoError(t, v.ValidateContext(ContextConfig{TokenBudget: 1000, TruncationPolicy: "summarize"}))
	assert.Error(t, v.ValidateContext(ContextConfig{TokenBudget: 0}))
	assert.Error(t, v.ValidateContext(ContextConfig{TokenBudget: 100, ReserveTokens: 100}))
	assert.Error(t, v.ValidateContext(ContextConfig{TokenBudget: 1000, TruncationPolicy: "middle-out"}))
}

func TestValidator_ValidateProvider(t *testing.T) {
	v := NewValidator()
	assert.NoError(t, v.ValidateProvider("anthropic"))
	assert.NoError(t, v.ValidateProvider("openai"))
	assert.Error(t, v.ValidateProvider("gemini"))
}
