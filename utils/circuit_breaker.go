// ABOUTME: This file implements a circuit breaker guarding the backend RPC endpoint
// ABOUTME: Closed passes requests, open fast-fails them, half-open probes recovery

package utils

import (
	"errors"
	"log/slog"
	"sync"
	"time"
)

// CircuitState represents the current state of the circuit breaker
type CircuitState int

const (
	StateClosed CircuitState = iota
	StateOpen
	StateHalfOpen
)

func (s CircuitState) String() string {
	switch s {
	case StateClosed:
		return "CLOSED"
	case StateOpen:
		return "OPEN"
	case StateHalfOpen:
		return "HALF_OPEN"
	default:
		return "UNKNOWN"
	}
}

// ErrCircuitBreakerOpen is returned when the breaker rejects a request
var ErrCircuitBreakerOpen = errors.New("circuit breaker is open")

// CircuitBreakerConfig holds the breaker thresholds
type CircuitBreakerConfig struct {
	FailureThreshold int           // Consecutive failures before opening
	SuccessThreshold int           // Half-open successes before closing
	ResetTimeout     time.Duration // Open duration before probing
	MaxProbes        int           // Concurrent requests allowed while half-open
}

// DefaultCircuitBreakerConfig returns the defaults used by the RPC gateway
func DefaultCircuitBreakerConfig() *CircuitBreakerConfig {
	return &CircuitBreakerConfig{
		FailureThreshold: 5,
		SuccessThreshold: 3,
		ResetTimeout:     60 * time.Second,
		MaxProbes:        2,
	}
}

// CircuitBreakerStats holds counters for monitoring
type CircuitBreakerStats struct {
	State            CircuitState `json:"state"`
	FailureCount     int          `json:"failure_count"`
	SuccessCount     int          `json:"success_count"`
	LastFailureTime  time.Time    `json:"last_failure_time"`
	LastSuccessTime  time.Time    `json:"last_success_time"`
	TotalRejections  int64        `json:"total_rejections"`
	StateTransitions int64        `json:"state_transitions"`
}

// CircuitBreaker tracks backend health from classified call outcomes. Allow
// hands out the current state generation and the outcome calls take it back;
// an outcome from before the last state change is discarded, so a slow call
// admitted while closed cannot consume a half-open probe slot. Only transient
// failures count against the threshold, since terminal rejections say nothing
// about backend availability.
type CircuitBreaker struct {
	config *CircuitBreakerConfig
	logger *slog.Logger

	mu              sync.Mutex
	state           CircuitState
	generation      uint64
	failureCount    int
	successCount    int
	probesInFlight  int
	lastFailureTime time.Time
	lastSuccessTime time.Time
	nextProbeAt     time.Time

	totalRejections  int64
	stateTransitions int64
}

// NewCircuitBreaker creates a breaker in the closed state
func NewCircuitBreaker(config *CircuitBreakerConfig, logger *slog.Logger) *CircuitBreaker {
	if config == nil {
		config = DefaultCircuitBreakerConfig()
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &CircuitBreaker{
		config: config,
		logger: logger,
		state:  StateClosed,
	}
}

// Allow reports whether a request may proceed right now. The returned
// generation must be handed back to RecordSuccess, RecordFailure, or Release.
func (cb *CircuitBreaker) Allow() (uint64, bool) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.state {
	case StateClosed:
		return cb.generation, true
	case StateOpen:
		if time.Now().After(cb.nextProbeAt) {
			cb.setState(StateHalfOpen)
			cb.probesInFlight++
			return cb.generation, true
		}
		cb.totalRejections++
		return cb.generation, false
	case StateHalfOpen:
		if cb.probesInFlight < cb.config.MaxProbes {
			cb.probesInFlight++
			return cb.generation, true
		}
		cb.totalRejections++
		return cb.generation, false
	default:
		return cb.generation, false
	}
}

// RecordSuccess notes a successful call. Outcomes admitted before the last
// state change are discarded.
func (cb *CircuitBreaker) RecordSuccess(generation uint64) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if generation != cb.generation {
		return
	}

	cb.lastSuccessTime = time.Now()

	switch cb.state {
	case StateClosed:
		cb.failureCount = 0
	case StateHalfOpen:
		cb.successCount++
		cb.probesInFlight--
		if cb.successCount >= cb.config.SuccessThreshold {
			cb.logger.Info("Circuit breaker closing after successful probes",
				"success_count", cb.successCount)
			cb.setState(StateClosed)
		}
	}
}

// RecordFailure notes a transient call failure. Outcomes admitted before the
// last state change are discarded.
func (cb *CircuitBreaker) RecordFailure(generation uint64) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if generation != cb.generation {
		return
	}

	cb.lastFailureTime = time.Now()

	switch cb.state {
	case StateClosed:
		cb.failureCount++
		if cb.failureCount >= cb.config.FailureThreshold {
			cb.logger.Warn("Circuit breaker opening",
				"failure_count", cb.failureCount,
				"threshold", cb.config.FailureThreshold)
			cb.setState(StateOpen)
		}
	case StateHalfOpen:
		// One failed probe re-opens the circuit
		cb.probesInFlight--
		cb.logger.Warn("Circuit breaker re-opening from half-open")
		cb.setState(StateOpen)
	}
}

// Release gives back an admission that produced no call outcome, such as a
// failure before the request reached the transport.
func (cb *CircuitBreaker) Release(generation uint64) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if generation != cb.generation {
		return
	}
	if cb.state == StateHalfOpen {
		cb.probesInFlight--
	}
}

// State returns the current breaker state
func (cb *CircuitBreaker) State() CircuitState {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.state
}

// Stats returns current counters for monitoring
func (cb *CircuitBreaker) Stats() CircuitBreakerStats {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	return CircuitBreakerStats{
		State:            cb.state,
		FailureCount:     cb.failureCount,
		SuccessCount:     cb.successCount,
		LastFailureTime:  cb.lastFailureTime,
		LastSuccessTime:  cb.lastSuccessTime,
		TotalRejections:  cb.totalRejections,
		StateTransitions: cb.stateTransitions,
	}
}

// Reset returns the breaker to the closed state
func (cb *CircuitBreaker) Reset() {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.setState(StateClosed)
}

// setState must be called with the mutex held. Bumping the generation
// invalidates every admission handed out before the transition.
func (cb *CircuitBreaker) setState(newState CircuitState) {
	oldState := cb.state
	cb.state = newState
	cb.generation++
	cb.stateTransitions++

	switch newState {
	case StateClosed:
		cb.failureCount = 0
		cb.successCount = 0
		cb.probesInFlight = 0
	case StateOpen:
		cb.nextProbeAt = time.Now().Add(cb.config.ResetTimeout)
		cb.successCount = 0
		cb.probesInFlight = 0
	case StateHalfOpen:
		cb.successCount = 0
		cb.probesInFlight = 0
	}

	cb.logger.Info("Circuit breaker state transition",
		"from", oldState.String(),
		"to", newState.String())
}
