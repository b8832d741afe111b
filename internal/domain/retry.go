// Package domain defines the retry policy used for model calls.
package domain

import "time"

// RetryPolicy defines how many times a semantically invalid model answer is retried
// and how long to wait between attempts.
type RetryPolicy struct {
	// MaxRetries is the total number of attempts
	MaxRetries int
	// InitialDelay is the delay before the second attempt
	InitialDelay time.Duration
	// MaxDelay caps the delay between attempts
	MaxDelay time.Duration
	// Multiplier is the exponential backoff multiplier
	Multiplier float64
}

// DefaultRetryPolicy waits 2s, 4s, 8s... between attempts.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxRetries:   3,
		InitialDelay: 2 * time.Second,
		MaxDelay:     30 * time.Second,
		Multiplier:   2.0,
	}
}
