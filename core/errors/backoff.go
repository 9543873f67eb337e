package errors

import (
	"math"
	"math/rand"
	"time"
)

// BackoffPolicy controls the exponential backoff between retry attempts.
type BackoffPolicy struct {
	// InitialDelay is the starting backoff duration.
	InitialDelay time.Duration `yaml:"initial_delay"`

	// MaxDelay caps the backoff.
	MaxDelay time.Duration `yaml:"max_delay"`

	// Multiplier is the backoff multiplier (default 2.0).
	Multiplier float64 `yaml:"multiplier"`

	// JitterPercent is the jitter fraction applied to each delay
	// (default 0.1 for ±10%).
	JitterPercent float64 `yaml:"jitter_percent"`
}

// DefaultBackoffPolicy returns the policy used for provider retries.
func DefaultBackoffPolicy() BackoffPolicy {
	return BackoffPolicy{
		InitialDelay:  500 * time.Millisecond,
		MaxDelay:      30 * time.Second,
		Multiplier:    2.0,
		JitterPercent: 0.1,
	}
}

// Delay computes the backoff for a zero-based attempt number.
// Formula: initial * multiplier^attempt, capped at MaxDelay, with jitter.
func (p BackoffPolicy) Delay(attempt int) time.Duration {
	multiplier := p.Multiplier
	if multiplier <= 0 {
		multiplier = 2.0
	}

	delay := time.Duration(float64(p.InitialDelay) * math.Pow(multiplier, float64(attempt)))
	if p.MaxDelay > 0 && delay > p.MaxDelay {
		delay = p.MaxDelay
	}

	return addJitter(delay, p.JitterPercent)
}

// addJitter applies a random offset of ±jitterPercent to prevent
// synchronized retries across concurrent turns.
func addJitter(delay time.Duration, jitterPercent float64) time.Duration {
	if jitterPercent <= 0 {
		return delay
	}

	jitterRange := float64(delay) * jitterPercent
	offset := (rand.Float64()*2 - 1) * jitterRange
	jittered := time.Duration(float64(delay) + offset)

	if jittered < time.Millisecond {
		return time.Millisecond
	}
	return jittered
}
