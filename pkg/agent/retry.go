package agent

import (
	"math/rand"
	"time"

	"github.com/harun/veda/internal/config"
)

// RetryPolicy controls retries of transient model-call failures.
type RetryPolicy struct {
	MaxRetries   int
	BaseDelay    time.Duration
	MaxDelay     time.Duration
	JitterFactor float64 // fraction in [0, 1)
}

// DefaultRetryPolicy returns the policy used when none is configured.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxRetries:   3,
		BaseDelay:    time.Second,
		MaxDelay:     30 * time.Second,
		JitterFactor: 0.25,
	}
}

// RetryPolicyFromConfig builds a RetryPolicy from agent configuration,
// filling in defaults for unset values.
func RetryPolicyFromConfig(cfg config.AgentConfig) RetryPolicy {
	policy := DefaultRetryPolicy()
	if cfg.MaxRetries > 0 {
		policy.MaxRetries = cfg.MaxRetries
	}
	if cfg.BaseDelayMs > 0 {
		policy.BaseDelay = time.Duration(cfg.BaseDelayMs) * time.Millisecond
	}
	if cfg.MaxDelayMs > 0 {
		policy.MaxDelay = time.Duration(cfg.MaxDelayMs) * time.Millisecond
	}
	if cfg.JitterFactor > 0 {
		policy.JitterFactor = cfg.JitterFactor
	}
	return policy
}

// Delay returns the backoff before retrying the given zero-based
// attempt: min(MaxDelay, BaseDelay * 2^attempt) scaled by a random
// factor in [1-j, 1+j].
func (p RetryPolicy) Delay(attempt int) time.Duration {
	delay := p.BaseDelay
	for i := 0; i < attempt && delay < p.MaxDelay; i++ {
		delay *= 2
	}
	if delay > p.MaxDelay {
		delay = p.MaxDelay
	}

	if p.JitterFactor > 0 {
		scale := 1 + p.JitterFactor*(2*rand.Float64()-1)
		delay = time.Duration(float64(delay) * scale)
	}

	return delay
}
