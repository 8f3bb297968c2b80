package resilience

import (
	"context"
	"time"
)

// RetryPolicy bounds attempts of one call site. Backoff starts at
// InitialBackoff and is multiplied after every failed attempt up to MaxBackoff.
type RetryPolicy struct {
	MaxAttempts    int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
	Multiplier     float64
}

// TimeoutPolicy bounds a single attempt. Zero means no per-attempt deadline.
type TimeoutPolicy struct {
	Duration time.Duration
}

func (p TimeoutPolicy) Apply(ctx context.Context) (context.Context, context.CancelFunc) {
	if p.Duration <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, p.Duration)
}

type BreakerPolicy struct {
	Enabled          bool
	MinRequests      uint32
	FailureRatio     float64
	OpenTimeout      time.Duration
	HalfOpenMaxCalls uint32
}

type Config struct {
	Retry   RetryPolicy
	Timeout TimeoutPolicy
	Breaker BreakerPolicy
}

func DefaultConfig() Config {
	return Config{
		Retry: RetryPolicy{
			MaxAttempts:    3,
			InitialBackoff: 4 * time.Second,
			MaxBackoff:     10 * time.Second,
			Multiplier:     2.0,
		},
		Timeout: TimeoutPolicy{Duration: 10 * time.Second},
		Breaker: BreakerPolicy{
			Enabled:          true,
			MinRequests:      10,
			FailureRatio:     0.5,
			OpenTimeout:      30 * time.Second,
			HalfOpenMaxCalls: 2,
		},
	}
}

func (c Config) normalize() Config {
	out := c
	def := DefaultConfig()

	if out.Retry.MaxAttempts <= 0 {
		out.Retry.MaxAttempts = def.Retry.MaxAttempts
	}
	if out.Retry.InitialBackoff < 0 {
		out.Retry.InitialBackoff = 0
	}
	if out.Retry.MaxBackoff < out.Retry.InitialBackoff {
		out.Retry.MaxBackoff = out.Retry.InitialBackoff
	}
	if out.Retry.Multiplier < 1.0 {
		out.Retry.Multiplier = def.Retry.Multiplier
	}
	if out.Timeout.Duration < 0 {
		out.Timeout.Duration = 0
	}

	if out.Breaker.MinRequests == 0 {
		out.Breaker.MinRequests = def.Breaker.MinRequests
	}
	if out.Breaker.FailureRatio <= 0 || out.Breaker.FailureRatio > 1 {
		out.Breaker.FailureRatio = def.Breaker.FailureRatio
	}
	if out.Breaker.OpenTimeout <= 0 {
		out.Breaker.OpenTimeout = def.Breaker.OpenTimeout
	}
	if out.Breaker.HalfOpenMaxCalls == 0 {
		out.Breaker.HalfOpenMaxCalls = def.Breaker.HalfOpenMaxCalls
	}

	return out
}

// Budget is the wall time needed to run every attempt to its timeout,
// backoff waits included. Zero when attempts are not time-bounded.
func (c Config) Budget() time.Duration {
	c = c.normalize()
	if c.Timeout.Duration == 0 {
		return 0
	}
	budget := time.Duration(c.Retry.MaxAttempts) * c.Timeout.Duration
	for _, wait := range c.Retry.backoffSchedule() {
		budget += wait
	}
	return budget
}

// backoffSchedule returns the waits between attempts.
func (p RetryPolicy) backoffSchedule() []time.Duration {
	if p.MaxAttempts <= 1 {
		return nil
	}
	out := make([]time.Duration, 0, p.MaxAttempts-1)
	backoff := p.InitialBackoff
	for i := 1; i < p.MaxAttempts; i++ {
		out = append(out, min(backoff, p.MaxBackoff))
		backoff = time.Duration(float64(backoff) * p.Multiplier)
	}
	return out
}
