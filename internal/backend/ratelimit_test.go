package backend

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewLimiterDisabledByDefault(t *testing.T) {
	assert.Nil(t, newLimiter(RateLimitConfig{}))
	assert.Nil(t, newLimiter(RateLimitConfig{RequestsPerSecond: -1}))
}

func TestNewLimiterDefaultsBurstToOne(t *testing.T) {
	l := newLimiter(RateLimitConfig{RequestsPerSecond: 5})
	if assert.NotNil(t, l) {
		assert.Equal(t, 1, l.Burst())
	}
}

func TestNewLimiterHonorsExplicitBurst(t *testing.T) {
	l := newLimiter(RateLimitConfig{RequestsPerSecond: 5, Burst: 10})
	if assert.NotNil(t, l) {
		assert.Equal(t, 10, l.Burst())
	}
}
