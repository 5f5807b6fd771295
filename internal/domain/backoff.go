package domain

import (
	"fmt"
	"time"
)

type BackoffPolicy struct {
	Initial     time.Duration
	Max         time.Duration
	Multiplier  float64
	MaxAttempts int
}

func DefaultBackoffPolicy() BackoffPolicy {
	return BackoffPolicy{
		Initial:     2 * time.Second,
		Max:         5 * time.Minute,
		Multiplier:  2,
		MaxAttempts: 12,
	}
}

func (p BackoffPolicy) Validate() error {
	if p.Initial <= 0 {
		return fmt.Errorf("backoff initial delay must be positive")
	}
	if p.Max < p.Initial {
		return fmt.Errorf("backoff max delay %s is below initial delay %s", p.Max, p.Initial)
	}
	if p.Multiplier < 1 {
		return fmt.Errorf("backoff multiplier must be at least 1")
	}
	if p.MaxAttempts < 0 {
		return fmt.Errorf("backoff max attempts must not be negative")
	}

	return nil
}

// Delay returns the wait before reconnect attempt n (1-based).
func (p BackoffPolicy) Delay(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}

	delay := float64(p.Initial)
	for i := 1; i < attempt; i++ {
		delay *= p.Multiplier
		if delay >= float64(p.Max) {
			return p.Max
		}
	}

	return time.Duration(delay)
}

// Exhausted reports whether attempt n is past the ceiling. Zero MaxAttempts
// retries forever.
func (p BackoffPolicy) Exhausted(attempt int) bool {
	return p.MaxAttempts > 0 && attempt > p.MaxAttempts
}
