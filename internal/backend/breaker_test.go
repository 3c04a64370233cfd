package backend

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBreakerOpensAfterThreshold(t *testing.T) {
	b := NewBreaker(BreakerConfig{FailureThreshold: 5, ResetTimeout: time.Hour})
	for i := 0; i < 4; i++ {
		allowed, err := b.Allow()
		require.True(t, allowed)
		require.NoError(t, err)
		b.Report(false)
	}
	assert.Equal(t, CircuitClosed, b.State())

	allowed, err := b.Allow()
	require.True(t, allowed)
	require.NoError(t, err)
	b.Report(false)
	assert.Equal(t, CircuitOpen, b.State())

	allowed, err = b.Allow()
	assert.False(t, allowed)
	assert.Error(t, err)
}

// TestBreakerScenarioF mirrors §8 Scenario F: five failures open the
// breaker, the sixth call is rejected, after the reset timeout a probe is
// allowed, and success closes the breaker again.
func TestBreakerScenarioF(t *testing.T) {
	b := NewBreaker(BreakerConfig{FailureThreshold: 5, ResetTimeout: 10 * time.Millisecond})
	for i := 0; i < 5; i++ {
		allowed, _ := b.Allow()
		require.True(t, allowed)
		b.Report(false)
	}
	require.Equal(t, CircuitOpen, b.State())

	allowed, err := b.Allow()
	assert.False(t, allowed)
	assert.Error(t, err)

	time.Sleep(15 * time.Millisecond)

	allowed, err = b.Allow()
	require.True(t, allowed)
	require.NoError(t, err)
	assert.Equal(t, CircuitHalfOpen, b.State())
	b.Report(true)
	assert.Equal(t, CircuitClosed, b.State())

	allowed, err = b.Allow()
	assert.True(t, allowed)
	assert.NoError(t, err)
}

func TestBreakerHalfOpenRejectsConcurrentProbe(t *testing.T) {
	b := NewBreaker(BreakerConfig{FailureThreshold: 1, ResetTimeout: time.Millisecond})
	allowed, _ := b.Allow()
	require.True(t, allowed)
	b.Report(false)
	require.Equal(t, CircuitOpen, b.State())

	time.Sleep(2 * time.Millisecond)
	allowed, err := b.Allow()
	require.True(t, allowed)
	require.NoError(t, err)
	require.Equal(t, CircuitHalfOpen, b.State())

	allowed, err = b.Allow()
	assert.False(t, allowed)
	assert.Error(t, err)
}

func TestBreakerFailedProbeReopens(t *testing.T) {
	b := NewBreaker(BreakerConfig{FailureThreshold: 1, ResetTimeout: time.Millisecond})
	allowed, _ := b.Allow()
	require.True(t, allowed)
	b.Report(false)
	time.Sleep(2 * time.Millisecond)

	allowed, _ = b.Allow()
	require.True(t, allowed)
	b.Report(false)
	assert.Equal(t, CircuitOpen, b.State())
}
