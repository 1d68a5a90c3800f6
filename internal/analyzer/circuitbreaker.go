package analyzer

import (
	"sync"
	"time"
)

// state is the circuit breaker's current disposition, adapted from the
// corpus's generic CircuitBreaker: closed lets calls through, open rejects
// them outright, half-open lets exactly one probe through to test recovery.
type state int

const (
	stateClosed state = iota
	stateOpen
	stateHalfOpen
)

// CircuitBreaker guards calls to the external analyzer. It trips open
// after either a run of consecutive failures or a failure rate over a
// sliding window of recent outcomes, then allows one half-open probe
// after openTimeout elapses.
type CircuitBreaker struct {
	mu sync.Mutex

	consecutiveThreshold int
	windowSize           int
	failureRateThreshold float64
	openTimeout          time.Duration

	state               state
	consecutiveFailures int
	outcomes            []bool // true = success, ring buffer of last windowSize calls
	openedAt            time.Time
	halfOpenInFlight    bool
}

// CircuitBreakerConfig tunes a CircuitBreaker.
type CircuitBreakerConfig struct {
	ConsecutiveFailureThreshold int
	WindowSize                  int
	FailureRateThreshold        float64
	OpenTimeout                 time.Duration
}

// DefaultCircuitBreakerConfig is a conservative starting point: trip after
// 5 consecutive failures or a 50% failure rate over the last 20 calls,
// probe again after 30 seconds.
func DefaultCircuitBreakerConfig() CircuitBreakerConfig {
	return CircuitBreakerConfig{
		ConsecutiveFailureThreshold: 5,
		WindowSize:                  20,
		FailureRateThreshold:        0.5,
		OpenTimeout:                 30 * time.Second,
	}
}

// NewCircuitBreaker builds a CircuitBreaker in the Closed state.
func NewCircuitBreaker(cfg CircuitBreakerConfig) *CircuitBreaker {
	return &CircuitBreaker{
		consecutiveThreshold: cfg.ConsecutiveFailureThreshold,
		windowSize:           cfg.WindowSize,
		failureRateThreshold: cfg.FailureRateThreshold,
		openTimeout:          cfg.OpenTimeout,
		state:                stateClosed,
	}
}

// Allow reports whether a call may proceed now. A true result when the
// breaker is half-open reserves the single in-flight probe slot; the
// caller must call RecordSuccess or RecordFailure exactly once afterward.
func (b *CircuitBreaker) Allow() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case stateClosed:
		return true
	case stateOpen:
		if time.Since(b.openedAt) >= b.openTimeout {
			b.state = stateHalfOpen
			b.halfOpenInFlight = true
			return true
		}
		return false
	case stateHalfOpen:
		if b.halfOpenInFlight {
			return false
		}
		b.halfOpenInFlight = true
		return true
	default:
		return false
	}
}

// RecordSuccess reports a successful call. A successful half-open probe
// closes the breaker and clears history; a successful closed-state call
// resets the consecutive-failure streak.
func (b *CircuitBreaker) RecordSuccess() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.consecutiveFailures = 0
	b.recordOutcome(true)

	if b.state == stateHalfOpen {
		b.state = stateClosed
		b.outcomes = nil
		b.halfOpenInFlight = false
	}
}

// RecordFailure reports a failed call. A failed half-open probe reopens
// the breaker immediately; a failed closed-state call may trip it open.
func (b *CircuitBreaker) RecordFailure() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.consecutiveFailures++
	b.recordOutcome(false)

	if b.state == stateHalfOpen {
		b.trip()
		return
	}

	if b.consecutiveFailures >= b.consecutiveThreshold || b.failureRate() >= b.failureRateThreshold {
		b.trip()
	}
}

func (b *CircuitBreaker) trip() {
	b.state = stateOpen
	b.openedAt = time.Now()
	b.halfOpenInFlight = false
}

func (b *CircuitBreaker) recordOutcome(success bool) {
	b.outcomes = append(b.outcomes, success)
	if len(b.outcomes) > b.windowSize {
		b.outcomes = b.outcomes[len(b.outcomes)-b.windowSize:]
	}
}

func (b *CircuitBreaker) failureRate() float64 {
	if len(b.outcomes) < b.windowSize {
		return 0 // don't judge rate until the window has filled
	}
	failures := 0
	for _, ok := range b.outcomes {
		if !ok {
			failures++
		}
	}
	return float64(failures) / float64(len(b.outcomes))
}

// IsOpen reports the breaker's current state for metrics/diagnostics.
func (b *CircuitBreaker) IsOpen() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state == stateOpen
}
