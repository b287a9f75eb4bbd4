package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.Equal(t, 3, cfg.Agent.MaxRetries)
	assert.Equal(t, 1000, cfg.Agent.BaseDelayMs)
	assert.Equal(t, 30000, cfg.Agent.MaxDelayMs)
	assert.Equal(t, 0.25, cfg.Agent.JitterFactor)
	assert.Equal(t, 16, cfg.Agent.MaxIterations)
	assert.Equal(t, 4, cfg.Agent.MaxParallelTools)
	assert.True(t, cfg.Agent.AutoSave)

	assert.Equal(t, 100000, cfg.Context.TokenBudget)
	assert.Equal(t, 8000, cfg.Context.ReserveTokens)
	assert.Equal(t, "drop-oldest", cfg.Context.TruncationPolicy)

	assert.Equal(t, 50, cfg.Session.MaxSessions)
	assert.Equal(t, []string{"*"}, cfg.Tools.Policy.Allow)
}

func TestDefaultConfigIsValid(t *testing.T) {
	v := NewValidator()
	assert.NoError(t, v.Validate(DefaultConfig()))
}
