package resilience

import "time"

// Dependency names an outbound system that gets its own executor and breakers.
type Dependency string

const (
	DependencyOllama Dependency = "ollama"
	DependencyQdrant Dependency = "qdrant"
	DependencyNATS   Dependency = "nats"
)

type Config struct {
	RetryMaxAttempts    int
	RetryInitialBackoff time.Duration
	RetryMaxBackoff     time.Duration
	RetryMultiplier     float64

	BreakerEnabled          bool
	BreakerMinRequests      uint32
	BreakerFailureRatio     float64
	BreakerOpenTimeout      time.Duration
	BreakerHalfOpenMaxCalls uint32
}

func DefaultConfig() Config {
	return Config{
		RetryMaxAttempts:    3,
		RetryInitialBackoff: 100 * time.Millisecond,
		RetryMaxBackoff:     400 * time.Millisecond,
		RetryMultiplier:     2.0,

		BreakerEnabled:          true,
		BreakerMinRequests:      10,
		BreakerFailureRatio:     0.5,
		BreakerOpenTimeout:      30 * time.Second,
		BreakerHalfOpenMaxCalls: 2,
	}
}

// ConfigFor returns the executor settings for one dependency. Generation calls
// override the attempt count per request, so the Ollama profile only governs
// embeddings and the breaker.
func ConfigFor(dep Dependency, breakerEnabled bool) Config {
	cfg := DefaultConfig()
	cfg.BreakerEnabled = breakerEnabled
	switch dep {
	case DependencyOllama:
		cfg.RetryMaxAttempts = 2
		cfg.RetryInitialBackoff = 500 * time.Millisecond
		cfg.RetryMaxBackoff = 2 * time.Second
		cfg.BreakerMinRequests = 5
		cfg.BreakerOpenTimeout = time.Minute
	case DependencyQdrant:
		cfg.RetryMaxBackoff = time.Second
	case DependencyNATS:
		cfg.RetryMaxAttempts = 5
		cfg.RetryInitialBackoff = 200 * time.Millisecond
		cfg.RetryMaxBackoff = 2 * time.Second
	}
	return cfg
}

func (c Config) normalize() Config {
	def := DefaultConfig()
	out := c

	out.RetryMaxAttempts = positiveOr(out.RetryMaxAttempts, def.RetryMaxAttempts)
	out.RetryInitialBackoff = positiveOr(out.RetryInitialBackoff, def.RetryInitialBackoff)
	out.RetryMaxBackoff = max(positiveOr(out.RetryMaxBackoff, def.RetryMaxBackoff), out.RetryInitialBackoff)
	if out.RetryMultiplier < 1.0 {
		out.RetryMultiplier = def.RetryMultiplier
	}

	out.BreakerMinRequests = positiveOr(out.BreakerMinRequests, def.BreakerMinRequests)
	if out.BreakerFailureRatio <= 0 || out.BreakerFailureRatio > 1 {
		out.BreakerFailureRatio = def.BreakerFailureRatio
	}
	out.BreakerOpenTimeout = positiveOr(out.BreakerOpenTimeout, def.BreakerOpenTimeout)
	out.BreakerHalfOpenMaxCalls = positiveOr(out.BreakerHalfOpenMaxCalls, def.BreakerHalfOpenMaxCalls)
	return out
}

func positiveOr[T int | uint32 | time.Duration](v, fallback T) T {
	if v <= 0 {
		return fallback
	}
	return v
}
