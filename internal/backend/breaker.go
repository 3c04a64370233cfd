package backend

import (
	"sync"
	"time"
)

// CircuitState is one of the three states in §4.1's breaker: CLOSED (normal),
// OPEN (fail fast), HALF_OPEN (single probe).
type CircuitState int

const (
	CircuitClosed CircuitState = iota
	CircuitOpen
	CircuitHalfOpen
)

func (s CircuitState) String() string {
	switch s {
	case CircuitClosed:
		return "closed"
	case CircuitOpen:
		return "open"
	case CircuitHalfOpen:
		return "half_open"
	default:
		return "unknown"
	}
}

// BreakerConfig configures failure/reset thresholds.
type BreakerConfig struct {
	// FailureThreshold is the number of consecutive failures before the
	// breaker opens. §4.1: 5.
	FailureThreshold int
	// ResetTimeout is how long the breaker stays open before allowing a
	// single half-open probe. §4.1: 60s.
	ResetTimeout time.Duration
}

// Breaker is a process-wide circuit breaker guarding every outbound Backend
// Data Client call, deliberately orthogonal to Retrier (§9 Design Notes:
// "retry decides whether to call again, circuit decides whether to call at
// all").
type Breaker struct {
	cfg BreakerConfig

	mu              sync.Mutex
	state           CircuitState
	consecutiveFail int
	openedAt        time.Time
	probeInFlight   bool
}

// NewBreaker constructs a Breaker in the CLOSED state.
func NewBreaker(cfg BreakerConfig) *Breaker {
	if cfg.FailureThreshold <= 0 {
		cfg.FailureThreshold = 5
	}
	if cfg.ResetTimeout <= 0 {
		cfg.ResetTimeout = 60 * time.Second
	}
	return &Breaker{cfg: cfg, state: CircuitClosed}
}

// ErrCircuitOpen is returned by Allow when the breaker is rejecting calls.
type ErrCircuitOpen struct{}

func (ErrCircuitOpen) Error() string { return "backend: circuit open" }

// Allow reports whether the caller may proceed with an outbound call. When it
// returns true for a HALF_OPEN probe, the caller must call Report with the
// probe's outcome.
func (b *Breaker) Allow() (bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case CircuitClosed:
		return true, nil
	case CircuitOpen:
		if time.Since(b.openedAt) < b.cfg.ResetTimeout {
			return false, ErrCircuitOpen{}
		}
		b.state = CircuitHalfOpen
		b.probeInFlight = true
		return true, nil
	case CircuitHalfOpen:
		if b.probeInFlight {
			return false, ErrCircuitOpen{}
		}
		b.probeInFlight = true
		return true, nil
	default:
		return false, ErrCircuitOpen{}
	}
}

// Report records the outcome of a call that Allow permitted.
func (b *Breaker) Report(success bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.state == CircuitHalfOpen {
		b.probeInFlight = false
		if success {
			b.state = CircuitClosed
			b.consecutiveFail = 0
		} else {
			b.state = CircuitOpen
			b.openedAt = time.Now()
		}
		return
	}

	if success {
		b.consecutiveFail = 0
		return
	}
	b.consecutiveFail++
	if b.consecutiveFail >= b.cfg.FailureThreshold {
		b.state = CircuitOpen
		b.openedAt = time.Now()
	}
}

// State returns the current circuit state; primarily for telemetry/tests.
func (b *Breaker) State() CircuitState {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}
