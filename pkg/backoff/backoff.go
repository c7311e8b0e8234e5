package backoff

import (
	"math/rand"
	"time"
)

const (
	_defaultBase = 2 * time.Second
	_defaultMax  = 5 * time.Minute
)

// Policy is a capped exponential backoff: Base * 2^(attempt-1), never above Max.
type Policy struct {
	Base time.Duration
	Max  time.Duration

	// Jitter spreads the delay uniformly over [delay/2, delay].
	Jitter bool
}

func New(base, maxDelay time.Duration, jitter bool) Policy {
	if base <= 0 {
		base = _defaultBase
	}
	if maxDelay <= 0 {
		maxDelay = _defaultMax
	}
	if maxDelay < base {
		maxDelay = base
	}

	return Policy{Base: base, Max: maxDelay, Jitter: jitter}
}

// Delay returns the wait before retry number attempt (1-based).
func (p Policy) Delay(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}

	delay := p.Base
	for i := 1; i < attempt && delay < p.Max; i++ {
		delay *= 2
	}
	if delay > p.Max {
		delay = p.Max
	}

	if p.Jitter {
		half := delay / 2
		delay = half + time.Duration(rand.Int63n(int64(half)+1)) //nolint:gosec // scheduling jitter
	}

	return delay
}

// Next is the not-before time of retry number attempt.
func (p Policy) Next(now time.Time, attempt int) time.Time {
	return now.Add(p.Delay(attempt))
}
