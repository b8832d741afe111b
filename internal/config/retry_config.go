package config

import (
	"time"

	"github.com/fairyhunter13/ai-interview-evaluator/internal/domain"
)

// GetRetryPolicy returns the retry policy for model answer evaluation.
// In test environments delays are shortened for fast test execution.
func (c Config) GetRetryPolicy() domain.RetryPolicy {
	p := domain.RetryPolicy{
		MaxRetries:   c.RetryMaxRetries,
		InitialDelay: c.RetryInitialDelay,
		MaxDelay:     c.RetryMaxDelay,
		Multiplier:   c.RetryMultiplier,
	}
	if p.MaxRetries <= 0 {
		p.MaxRetries = domain.DefaultRetryPolicy().MaxRetries
	}
	if p.Multiplier < 1 {
		p.Multiplier = 2.0
	}
	if c.IsTest() {
		p.InitialDelay = 10 * time.Millisecond
		p.MaxDelay = 100 * time.Millisecond
	}
	return p
}
