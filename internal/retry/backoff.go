// Package retry provides exponential backoff and a delayed re-delivery scheduler.
package retry

import "time"

// Policy computes exponential backoff: Base * 2^attempt, capped at Max.
type Policy struct {
	Base time.Duration
	Max  time.Duration
}

// DefaultPolicy yields min(2^attempt, 60) seconds.
var DefaultPolicy = Policy{Base: time.Second, Max: 60 * time.Second}

// Delay returns the wait before the given retry attempt (1 for the first retry).
func (p Policy) Delay(attempt int) time.Duration {
	base, limit := p.Base, p.Max
	if base <= 0 {
		base = DefaultPolicy.Base
	}
	if limit <= 0 {
		limit = DefaultPolicy.Max
	}
	d := base
	for i := 0; i < attempt && d < limit; i++ {
		d *= 2
	}
	return min(d, limit)
}

// Backoff is DefaultPolicy.Delay with a custom cap.
func Backoff(attempt int, limit time.Duration) time.Duration {
	return Policy{Base: DefaultPolicy.Base, Max: limit}.Delay(attempt)
}
