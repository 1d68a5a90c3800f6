package analyzer

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCircuitBreaker_TripsOnConsecutiveFailures(t *testing.T) {
	cb := NewCircuitBreaker(CircuitBreakerConfig{
		ConsecutiveFailureThreshold: 3,
		WindowSize:                  20,
		FailureRateThreshold:        0.9,
		OpenTimeout:                 time.Minute,
	})

	require.True(t, cb.Allow())
	cb.RecordFailure()
	require.True(t, cb.Allow())
	cb.RecordFailure()
	require.True(t, cb.Allow())
	cb.RecordFailure()

	assert.False(t, cb.Allow())
	assert.True(t, cb.IsOpen())
}

func TestCircuitBreaker_HalfOpenProbeRecovers(t *testing.T) {
	cb := NewCircuitBreaker(CircuitBreakerConfig{
		ConsecutiveFailureThreshold: 1,
		WindowSize:                  20,
		FailureRateThreshold:        0.9,
		OpenTimeout:                 time.Millisecond,
	})

	cb.Allow()
	cb.RecordFailure()
	require.True(t, cb.IsOpen())

	time.Sleep(2 * time.Millisecond)

	require.True(t, cb.Allow(), "half-open probe should be allowed once timeout elapses")
	assert.False(t, cb.Allow(), "a second concurrent call must not get another probe slot")

	cb.RecordSuccess()
	assert.False(t, cb.IsOpen())
	assert.True(t, cb.Allow())
}

func TestCircuitBreaker_HalfOpenFailureReopens(t *testing.T) {
	cb := NewCircuitBreaker(CircuitBreakerConfig{
		ConsecutiveFailureThreshold: 1,
		WindowSize:                  20,
		FailureRateThreshold:        0.9,
		OpenTimeout:                 time.Millisecond,
	})

	cb.Allow()
	cb.RecordFailure()
	time.Sleep(2 * time.Millisecond)
	require.True(t, cb.Allow())

	cb.RecordFailure()
	assert.True(t, cb.IsOpen())
}

func TestCircuitBreaker_FailureRateTripsBeforeConsecutiveThreshold(t *testing.T) {
	cb := NewCircuitBreaker(CircuitBreakerConfig{
		ConsecutiveFailureThreshold: 100,
		WindowSize:                  4,
		FailureRateThreshold:        0.5,
		OpenTimeout:                 time.Minute,
	})

	cb.Allow()
	cb.RecordSuccess()
	cb.Allow()
	cb.RecordFailure()
	cb.Allow()
	cb.RecordSuccess()
	cb.Allow()
	cb.RecordFailure()

	assert.True(t, cb.IsOpen(), "2/4 failures meets the 50% rate threshold")
}
