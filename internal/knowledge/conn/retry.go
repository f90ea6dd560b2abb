package conn

import "time"

// RetryPolicy describes the reconnect backoff schedule. It is a plain value
// so the schedule can be unit-tested without a driver or real sleeps.
type RetryPolicy struct {
	MaxAttempts int
	BaseDelay   time.Duration
	Multiplier  float64
	MaxDelay    time.Duration
}

func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts: 5,
		BaseDelay:   time.Second,
		Multiplier:  2.0,
		MaxDelay:    30 * time.Second,
	}
}

// DelayFor returns the backoff before retry attempt n (0-based): base
// delay doubled (or whatever the multiplier says) per consecutive failure,
// capped at MaxDelay. The sequence is non-decreasing.
func (p RetryPolicy) DelayFor(attempt int) time.Duration {
	if attempt < 0 {
		attempt = 0
	}
	d := p.BaseDelay
	if d <= 0 {
		d = time.Second
	}
	mult := p.Multiplier
	if mult < 1 {
		mult = 2.0
	}
	for i := 0; i < attempt; i++ {
		d = time.Duration(float64(d) * mult)
		if p.MaxDelay > 0 && d >= p.MaxDelay {
			return p.MaxDelay
		}
	}
	if p.MaxDelay > 0 && d > p.MaxDelay {
		d = p.MaxDelay
	}
	return d
}
