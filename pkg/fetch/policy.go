package fetch

import (
	"time"
)

// RetryPolicy defines the attempt budget and backoff curve for transcript
// fetches. The policy is stateless; the attempt count lives on the
// transcript aggregate.
type RetryPolicy struct {
	MaxAttempts    int           `yaml:"max_attempts"`
	InitialBackoff time.Duration `yaml:"initial_backoff"`
	MaxBackoff     time.Duration `yaml:"max_backoff"`
	BackoffFactor  float64       `yaml:"backoff_factor"`
}

// DefaultRetryPolicy returns the default fetch retry policy.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts:    3,
		InitialBackoff: 2 * time.Second,
		MaxBackoff:     2 * time.Minute,
		BackoffFactor:  2.0,
	}
}

// ShouldRetry reports whether another attempt fits the budget given how
// many attempts have already been spent.
func (p RetryPolicy) ShouldRetry(attempts int) bool {
	return attempts < p.MaxAttempts
}

// CalculateBackoff returns the pause before the given attempt number
// (1-based). The first attempt has no backoff.
func (p RetryPolicy) CalculateBackoff(attempt int) time.Duration {
	if attempt <= 1 {
		return 0
	}

	backoff := p.InitialBackoff
	for i := 2; i < attempt; i++ {
		backoff = time.Duration(float64(backoff) * p.BackoffFactor)
		if backoff > p.MaxBackoff {
			return p.MaxBackoff
		}
	}
	if backoff > p.MaxBackoff {
		return p.MaxBackoff
	}
	return backoff
}
