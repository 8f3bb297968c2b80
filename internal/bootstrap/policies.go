package bootstrap

import (
	"time"

	"github.com/kirillkom/pixers-assistant/internal/config"
	"github.com/kirillkom/pixers-assistant/internal/infrastructure/resilience"
)

// embedPolicy is the embedding provider retry schedule: 3 attempts with
// exponential backoff 4s, 8s capped at 10s by default.
func embedPolicy(cfg config.Config) resilience.Config {
	policy := resilience.DefaultConfig()
	policy.Retry = resilience.RetryPolicy{
		MaxAttempts:    cfg.EmbedRetryAttempts,
		InitialBackoff: cfg.EmbedRetryInitialBackoff,
		MaxBackoff:     cfg.EmbedRetryMaxBackoff,
		Multiplier:     cfg.EmbedRetryMultiplier,
	}
	policy.Timeout = resilience.TimeoutPolicy{Duration: cfg.EmbedTimeout}
	policy.Breaker.Enabled = cfg.CircuitBreakerEnabled
	return policy
}

// llmPolicy retries a generation once.
func llmPolicy(cfg config.Config) resilience.Config {
	policy := resilience.DefaultConfig()
	policy.Retry = resilience.RetryPolicy{
		MaxAttempts:    2,
		InitialBackoff: time.Second,
		MaxBackoff:     time.Second,
		Multiplier:     1,
	}
	policy.Timeout = resilience.TimeoutPolicy{Duration: cfg.LLMTimeout}
	policy.Breaker.Enabled = cfg.CircuitBreakerEnabled
	return policy
}

// indexWritePolicy retries a whole upsert batch with the embedding schedule.
func indexWritePolicy(cfg config.Config) resilience.Config {
	policy := embedPolicy(cfg)
	policy.Timeout = resilience.TimeoutPolicy{Duration: cfg.IndexWriteTimeout}
	return policy
}

func queuePolicy(cfg config.Config) resilience.Config {
	policy := resilience.DefaultConfig()
	policy.Retry.InitialBackoff = 200 * time.Millisecond
	policy.Retry.MaxBackoff = 2 * time.Second
	policy.Timeout = resilience.TimeoutPolicy{Duration: 5 * time.Second}
	policy.Breaker.Enabled = cfg.CircuitBreakerEnabled
	return policy
}
