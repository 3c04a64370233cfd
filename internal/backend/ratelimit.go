package backend

import "golang.org/x/time/rate"

// RateLimitConfig configures the optional outbound limiter guarding the
// Backend Data Client, independent of and upstream from the circuit breaker
// and retry policy (§9 Design Notes: "retry decides whether to call again,
// circuit decides whether to call at all" — rate limiting decides how often
// a call may even be attempted).
type RateLimitConfig struct {
	// RequestsPerSecond is the sustained outbound rate; zero or negative
	// disables rate limiting entirely.
	RequestsPerSecond float64
	// Burst is the largest number of requests admitted instantaneously.
	// Defaults to 1 when RequestsPerSecond is set but Burst is not.
	Burst int
}

// newLimiter returns nil when cfg disables rate limiting, so Client.Get can
// treat a nil *rate.Limiter as "unlimited" with a single nil check.
func newLimiter(cfg RateLimitConfig) *rate.Limiter {
	if cfg.RequestsPerSecond <= 0 {
		return nil
	}
	burst := cfg.Burst
	if burst <= 0 {
		burst = 1
	}
	return rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), burst)
}
