//go:generate mockgen -source=gateway.go -destination=../mocks/gateway_mock.go -package=mocks GatewayDriver,TokenSource

// ABOUTME: This file implements the generic RPC gateway with classified retry and backoff
// ABOUTME: Handles 401-triggered refresh-and-replay, rate limiting, and the circuit breaker

package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff/v5"
	"golang.org/x/time/rate"

	"sync-bridge/driver"
	"sync-bridge/models"
	"sync-bridge/utils"
)

// RetryConfig defines retry behavior for gateway calls
type RetryConfig struct {
	MaxRetries   int
	InitialDelay time.Duration
	MaxDelay     time.Duration
	Multiplier   float64
}

// DefaultRetryConfig returns the gateway retry defaults
func DefaultRetryConfig() *RetryConfig {
	return &RetryConfig{
		MaxRetries:   3,
		InitialDelay: 1000 * time.Millisecond,
		MaxDelay:     30 * time.Second,
		Multiplier:   2.0,
	}
}

// GatewayDriver is the transport surface the gateway dispatches through
type GatewayDriver interface {
	Call(ctx context.Context, token, procedure string, args []interface{}, kwargs map[string]interface{}) (json.RawMessage, error)
	CallPrivileged(ctx context.Context, identity *models.ServiceIdentity, procedure string, args []interface{}, kwargs map[string]interface{}) (json.RawMessage, error)
}

// TokenSource supplies credentials; the session manager implements it
type TokenSource interface {
	EnsureValidToken(ctx context.Context) (string, error)
	Refresh(ctx context.Context) (*models.AuthSession, error)
	EnsureServiceIdentity(ctx context.Context) (*models.ServiceIdentity, error)
	ClearServiceIdentity(ctx context.Context) error
}

// GatewayMetrics is a point-in-time snapshot of gateway call outcomes
type GatewayMetrics struct {
	TotalCalls        int64         `json:"total_calls"`
	SuccessfulCalls   int64         `json:"successful_calls"`
	RetriedAttempts   int64         `json:"retried_attempts"`
	RefreshReplays    int64         `json:"refresh_replays"`
	TerminalFailures  int64         `json:"terminal_failures"`
	RetryExhausted    int64         `json:"retry_exhausted"`
	CircuitRejections int64         `json:"circuit_rejections"`
	LastCallDuration  time.Duration `json:"last_call_duration"`
}

// gatewayCounters backs GatewayMetrics; atomics because calls dispatch
// concurrently
type gatewayCounters struct {
	totalCalls        atomic.Int64
	successfulCalls   atomic.Int64
	retriedAttempts   atomic.Int64
	refreshReplays    atomic.Int64
	terminalFailures  atomic.Int64
	retryExhausted    atomic.Int64
	circuitRejections atomic.Int64
	lastCallNanos     atomic.Int64
}

// RPCGateway is the single call surface business code uses to reach the
// backend. Every result is either a raw payload or one of the classified
// driver errors, never a bare transport error.
type RPCGateway struct {
	sessions TokenSource
	rpc      GatewayDriver
	logger   *slog.Logger

	retryConfig *RetryConfig
	callTimeout time.Duration
	limiter     *rate.Limiter
	breaker     *utils.CircuitBreaker
	sleep       func(context.Context, time.Duration) error

	monitor  *utils.Monitor
	counters gatewayCounters
}

// NewRPCGateway creates a gateway with default timeout, retry, rate limit and
// breaker settings
func NewRPCGateway(sessions TokenSource, rpc GatewayDriver, logger *slog.Logger) *RPCGateway {
	if logger == nil {
		logger = slog.Default()
	}

	return &RPCGateway{
		sessions:    sessions,
		rpc:         rpc,
		logger:      logger,
		retryConfig: DefaultRetryConfig(),
		callTimeout: 30 * time.Second,
		limiter:     rate.NewLimiter(rate.Limit(20), 40),
		breaker:     utils.NewCircuitBreaker(nil, logger),
		sleep:       sleepContext,
	}
}

// SetRetryConfig replaces the retry configuration
func (g *RPCGateway) SetRetryConfig(config RetryConfig) {
	g.retryConfig = &config
}

// SetCallTimeout replaces the per-attempt timeout
func (g *RPCGateway) SetCallTimeout(timeout time.Duration) {
	g.callTimeout = timeout
}

// SetRateLimit replaces the client-side rate limiter settings
func (g *RPCGateway) SetRateLimit(limit rate.Limit, burst int) {
	g.limiter = rate.NewLimiter(limit, burst)
}

// SetSleepFunc replaces the backoff delay function (useful for testing)
func (g *RPCGateway) SetSleepFunc(sleep func(context.Context, time.Duration) error) {
	g.sleep = sleep
}

// SetMonitor attaches a monitor that observes every dispatched call
func (g *RPCGateway) SetMonitor(monitor *utils.Monitor) {
	g.monitor = monitor
}

// Breaker exposes the circuit breaker for monitoring
func (g *RPCGateway) Breaker() *utils.CircuitBreaker {
	return g.breaker
}

// Metrics returns a snapshot of the gateway counters
func (g *RPCGateway) Metrics() GatewayMetrics {
	return GatewayMetrics{
		TotalCalls:        g.counters.totalCalls.Load(),
		SuccessfulCalls:   g.counters.successfulCalls.Load(),
		RetriedAttempts:   g.counters.retriedAttempts.Load(),
		RefreshReplays:    g.counters.refreshReplays.Load(),
		TerminalFailures:  g.counters.terminalFailures.Load(),
		RetryExhausted:    g.counters.retryExhausted.Load(),
		CircuitRejections: g.counters.circuitRejections.Load(),
		LastCallDuration:  time.Duration(g.counters.lastCallNanos.Load()),
	}
}

// Call dispatches a procedure with the end-user token
func (g *RPCGateway) Call(ctx context.Context, procedure string, args map[string]interface{}) (json.RawMessage, error) {
	return g.call(ctx, procedure, args, false)
}

// CallPrivileged dispatches a procedure with the elevated service identity
func (g *RPCGateway) CallPrivileged(ctx context.Context, procedure string, args map[string]interface{}) (json.RawMessage, error) {
	return g.call(ctx, procedure, args, true)
}

func (g *RPCGateway) call(ctx context.Context, procedure string, args map[string]interface{}, privileged bool) (json.RawMessage, error) {
	startTime := time.Now()
	g.counters.totalCalls.Add(1)

	result, err := g.dispatch(ctx, procedure, args, privileged)

	duration := time.Since(startTime)
	g.counters.lastCallNanos.Store(int64(duration))
	if g.monitor != nil {
		status := 0
		var drvErr *driver.Error
		if errors.As(err, &drvErr) {
			status = drvErr.Status
		}
		g.monitor.LogRPCCall(ctx, procedure, status, duration, err)
	}

	return result, err
}

// dispatch runs the classified retry loop:
//   - terminal outcomes return immediately
//   - an expired token triggers exactly one credential refresh and one replay,
//     without consuming the retry budget
//   - transient outcomes back off exponentially until MaxRetries attempts
//     have failed, then surface as a network (or timeout) error wrapping the
//     last cause
func (g *RPCGateway) dispatch(ctx context.Context, procedure string, args map[string]interface{}, privileged bool) (json.RawMessage, error) {
	if err := g.limiter.Wait(ctx); err != nil {
		return nil, driver.ClassifyTransportError(procedure, err)
	}

	bo := g.newBackOff()
	refreshed := false
	attempt := 0
	var lastErr error

	for attempt < g.retryConfig.MaxRetries {
		result, err := g.attempt(ctx, procedure, args, privileged)
		if err == nil {
			g.counters.successfulCalls.Add(1)
			return result, nil
		}

		if driver.IsAuthExpired(err) {
			if refreshed {
				g.counters.terminalFailures.Add(1)
				return nil, driver.NewAuthError(procedure, 0, "still unauthorized after credential refresh")
			}
			refreshed = true
			g.counters.refreshReplays.Add(1)

			g.logger.Info("Access rejected, refreshing credentials before replay",
				"procedure", procedure,
				"privileged", privileged)

			if refreshErr := g.refreshCredentials(ctx, privileged); refreshErr != nil {
				g.counters.terminalFailures.Add(1)
				return nil, refreshErr
			}
			// Replay once with fresh credentials, not charged to the budget
			continue
		}

		if !driver.IsRetryable(err) {
			g.counters.terminalFailures.Add(1)
			g.logger.Warn("RPC call failed terminally",
				"procedure", procedure,
				"kind", string(driver.KindOf(err)),
				"error", err)
			return nil, err
		}

		lastErr = err
		attempt++
		g.counters.retriedAttempts.Add(1)

		delay := bo.NextBackOff()
		g.logger.Warn("RPC attempt failed, backing off",
			"procedure", procedure,
			"attempt", attempt,
			"max_attempts", g.retryConfig.MaxRetries,
			"delay", delay,
			"error", err)

		if sleepErr := g.sleep(ctx, delay); sleepErr != nil {
			return nil, driver.ClassifyTransportError(procedure, sleepErr)
		}
	}

	g.counters.retryExhausted.Add(1)

	if driver.KindOf(lastErr) == driver.ErrorKindTimeout {
		return nil, driver.NewTimeoutError(procedure, fmt.Errorf("all %d attempts timed out: %w", g.retryConfig.MaxRetries, lastErr))
	}
	return nil, driver.NewNetworkError(procedure, fmt.Errorf("all %d attempts failed: %w", g.retryConfig.MaxRetries, lastErr))
}

// attempt issues one transport call under the breaker and per-attempt
// timeout. The outcome is charged to the generation that admitted the call;
// a credential failure gives the admission back without judging backend
// health.
func (g *RPCGateway) attempt(ctx context.Context, procedure string, args map[string]interface{}, privileged bool) (json.RawMessage, error) {
	generation, ok := g.breaker.Allow()
	if !ok {
		g.counters.circuitRejections.Add(1)
		return nil, driver.NewNetworkError(procedure, utils.ErrCircuitBreakerOpen)
	}

	attemptCtx, cancel := context.WithTimeout(ctx, g.callTimeout)
	defer cancel()

	if privileged {
		identity, err := g.sessions.EnsureServiceIdentity(ctx)
		if err != nil {
			g.breaker.Release(generation)
			return nil, err
		}
		result, err := g.rpc.CallPrivileged(attemptCtx, identity, procedure, nil, args)
		g.recordOutcome(generation, err)
		return result, err
	}

	token, err := g.sessions.EnsureValidToken(ctx)
	if err != nil {
		g.breaker.Release(generation)
		return nil, err
	}
	result, err := g.rpc.Call(attemptCtx, token, procedure, nil, args)
	g.recordOutcome(generation, err)
	return result, err
}

// recordOutcome charges a transport result to the breaker. Only transient
// failures count against it; a terminal response still proves the backend
// answered.
func (g *RPCGateway) recordOutcome(generation uint64, err error) {
	if err != nil && driver.IsRetryable(err) {
		g.breaker.RecordFailure(generation)
		return
	}
	g.breaker.RecordSuccess(generation)
}

// refreshCredentials reacquires whichever credential the call path uses.
// Concurrent callers hitting the same expiry collapse into one refresh via
// the session manager's single-flight group.
func (g *RPCGateway) refreshCredentials(ctx context.Context, privileged bool) error {
	if privileged {
		if err := g.sessions.ClearServiceIdentity(ctx); err != nil {
			return fmt.Errorf("failed to discard rejected service identity: %w", err)
		}
		_, err := g.sessions.EnsureServiceIdentity(ctx)
		return err
	}

	_, err := g.sessions.Refresh(ctx)
	return err
}

// newBackOff builds the delay schedule InitialDelay * Multiplier^n, capped at
// MaxDelay. Randomization is disabled so retry timing stays predictable.
func (g *RPCGateway) newBackOff() *backoff.ExponentialBackOff {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = g.retryConfig.InitialDelay
	bo.MaxInterval = g.retryConfig.MaxDelay
	bo.Multiplier = g.retryConfig.Multiplier
	bo.RandomizationFactor = 0
	bo.Reset()
	return bo
}
