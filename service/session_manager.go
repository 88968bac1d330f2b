//go:generate mockgen -source=session_manager.go -destination=../mocks/session_driver_mock.go -package=mocks SessionDriver

// ABOUTME: This file implements end-user session and service identity lifecycle management
// ABOUTME: Handles token refresh with single-flight protection and expiry-buffer strategy

package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/sync/singleflight"

	"sync-bridge/driver"
	"sync-bridge/models"
	"sync-bridge/repository"
	"sync-bridge/utils"
)

// Session errors surfaced to callers
var (
	ErrNotAuthenticated = fmt.Errorf("no authenticated session available")
)

const (
	refreshFlightKey  = "session_refresh"
	identityFlightKey = "identity_login"

	// Fallback lifetime when neither the response nor the token carries one
	defaultSessionLifetime = 1 * time.Hour
)

// SessionDriver is the transport surface the session manager needs.
// It is the token-free layer, so no call here routes back through the gateway.
type SessionDriver interface {
	AuthenticateUser(ctx context.Context, login, password string) (*driver.SessionResult, error)
	RefreshSession(ctx context.Context, refreshToken string) (*driver.SessionResult, error)
	Logout(ctx context.Context, token string) error
	AuthenticateService(ctx context.Context, principalID, secret string) (string, error)
	Realm() string
}

// Credentials carries an end-user login attempt
type Credentials struct {
	Login    string
	Password string
}

// ServiceCredentials seeds the elevated service identity before its first login
type ServiceCredentials struct {
	PrincipalID string
	Secret      string
}

// SessionMetrics is a point-in-time snapshot of session lifecycle operations
type SessionMetrics struct {
	TotalRefreshAttempts int64         `json:"total_refresh_attempts"`
	SuccessfulRefreshes  int64         `json:"successful_refreshes"`
	FailedRefreshes      int64         `json:"failed_refresh_count"`
	NonRetryableFailures int64         `json:"non_retryable_failures"`
	SingleFlightHits     int64         `json:"singleflight_hits"`
	LastRefreshTime      time.Time     `json:"last_refresh_time"`
	LastRefreshDuration  time.Duration `json:"last_refresh_duration"`
}

// sessionCounters backs SessionMetrics; atomics because refreshes run from
// concurrent callers. Times are stored as nanoseconds.
type sessionCounters struct {
	totalRefreshAttempts atomic.Int64
	successfulRefreshes  atomic.Int64
	failedRefreshes      atomic.Int64
	nonRetryableFailures atomic.Int64
	singleFlightHits     atomic.Int64
	lastRefreshUnixNanos atomic.Int64
	lastRefreshNanos     atomic.Int64
}

// SessionManager owns the AuthSession and the elevated ServiceIdentity.
// All session writes in the process go through this type.
type SessionManager struct {
	sessionRepo  repository.SessionRepository
	identityRepo repository.IdentityRepository
	rpc          SessionDriver
	serviceCreds ServiceCredentials
	logger       *slog.Logger

	refreshBuffer    time.Duration
	maxRetryAttempts int
	sleep            func(context.Context, time.Duration) error

	// Single-flight groups collapse concurrent refreshes and identity logins
	flights *singleflight.Group

	monitor  *utils.Monitor
	counters sessionCounters
}

// NewSessionManager creates a session manager with the default 300s refresh buffer
func NewSessionManager(
	sessionRepo repository.SessionRepository,
	identityRepo repository.IdentityRepository,
	rpc SessionDriver,
	serviceCreds ServiceCredentials,
	logger *slog.Logger,
) *SessionManager {
	return NewSessionManagerWithBuffer(sessionRepo, identityRepo, rpc, serviceCreds, logger, 300*time.Second)
}

// NewSessionManagerWithBuffer creates a session manager with a custom refresh buffer
func NewSessionManagerWithBuffer(
	sessionRepo repository.SessionRepository,
	identityRepo repository.IdentityRepository,
	rpc SessionDriver,
	serviceCreds ServiceCredentials,
	logger *slog.Logger,
	refreshBuffer time.Duration,
) *SessionManager {
	if logger == nil {
		logger = slog.Default()
	}

	return &SessionManager{
		sessionRepo:      sessionRepo,
		identityRepo:     identityRepo,
		rpc:              rpc,
		serviceCreds:     serviceCreds,
		logger:           logger,
		refreshBuffer:    refreshBuffer,
		maxRetryAttempts: 3,
		sleep:            sleepContext,
		flights:          &singleflight.Group{},
	}
}

// SetSleepFunc replaces the retry delay function (useful for testing)
func (s *SessionManager) SetSleepFunc(sleep func(context.Context, time.Duration) error) {
	s.sleep = sleep
}

// SetMonitor attaches a monitor that observes refresh executions
func (s *SessionManager) SetMonitor(monitor *utils.Monitor) {
	s.monitor = monitor
}

// EnsureValidToken returns a non-expired access token, refreshing first when
// the current one expires within the configured buffer.
func (s *SessionManager) EnsureValidToken(ctx context.Context) (string, error) {
	session, err := s.loadSession(ctx)
	if err != nil {
		return "", err
	}

	if session.NeedsRefresh(s.refreshBuffer) {
		s.logger.Info("Session token needs refresh",
			"expires_at", session.ExpiresAt,
			"time_until_expiry", session.TimeUntilExpiry(),
			"refresh_buffer", s.refreshBuffer)

		session, err = s.Refresh(ctx)
		if err != nil {
			return "", err
		}
	}

	return session.AccessToken, nil
}

// Refresh exchanges the refresh token for a new token pair. Single-flight:
// concurrent callers attach to the in-flight refresh and share its outcome.
// On failure the session is cleared and every waiter receives the same error.
func (s *SessionManager) Refresh(ctx context.Context) (*models.AuthSession, error) {
	startTime := time.Now()
	s.counters.totalRefreshAttempts.Add(1)

	result, err, shared := s.flights.Do(refreshFlightKey, func() (interface{}, error) {
		// Another flight may have refreshed while this caller queued
		current, loadErr := s.loadSession(ctx)
		if loadErr == nil && !current.NeedsRefresh(s.refreshBuffer) {
			s.logger.Info("Session was already refreshed by another operation")
			return current, nil
		}
		if loadErr != nil {
			return nil, loadErr
		}

		refreshed, refreshErr := s.performRefresh(ctx, current)
		if s.monitor != nil {
			s.monitor.LogTokenRefresh(ctx, time.Since(startTime), refreshErr)
		}
		if refreshErr != nil {
			s.counters.failedRefreshes.Add(1)

			// Irrecoverable refresh ends the session for every waiter
			if clearErr := s.sessionRepo.ClearSession(ctx); clearErr != nil {
				s.logger.Error("Failed to clear session after refresh failure", "error", clearErr)
			}
			return nil, refreshErr
		}

		s.counters.successfulRefreshes.Add(1)
		return refreshed, nil
	})

	duration := time.Since(startTime)
	s.counters.lastRefreshUnixNanos.Store(startTime.UnixNano())
	s.counters.lastRefreshNanos.Store(int64(duration))

	if shared {
		s.counters.singleFlightHits.Add(1)
		s.logger.Debug("Refresh result shared from concurrent operation", "duration", duration)
	}

	if err != nil {
		s.logger.Error("Session refresh failed", "error", err, "duration", duration)
		return nil, err
	}

	return result.(*models.AuthSession), nil
}

// performRefresh runs the refresh RPC with bounded retries on transient
// failures. Terminal failures are surfaced untried.
func (s *SessionManager) performRefresh(ctx context.Context, session *models.AuthSession) (*models.AuthSession, error) {
	if session.RefreshToken == "" {
		return nil, driver.NewAuthError("auth.refresh", 0, "no refresh token held")
	}

	var lastErr error
	for attempt := 1; attempt <= s.maxRetryAttempts; attempt++ {
		result, err := s.rpc.RefreshSession(ctx, session.RefreshToken)
		if err == nil {
			refreshed := s.sessionFromResult(result, session)
			if saveErr := s.sessionRepo.SaveSession(ctx, refreshed); saveErr != nil {
				// The backend accepted the exchange; losing the new pair
				// locally would strand the caller, so surface it.
				return nil, fmt.Errorf("refreshed session could not be persisted: %w", saveErr)
			}

			s.logger.Info("Session refresh successful",
				"attempt", attempt,
				"expires_at", refreshed.ExpiresAt,
				"refresh_token_rotated", result.RefreshToken != "" && result.RefreshToken != session.RefreshToken)
			return refreshed, nil
		}

		lastErr = err
		s.logger.Warn("Session refresh attempt failed",
			"attempt", attempt,
			"max_attempts", s.maxRetryAttempts,
			"error", err)

		if !driver.IsRetryable(err) {
			s.counters.nonRetryableFailures.Add(1)
			return nil, driver.NewAuthError("auth.refresh", 0, fmt.Sprintf("refresh rejected: %v", err))
		}

		if attempt < s.maxRetryAttempts {
			backoffDuration := time.Duration(attempt) * 2 * time.Second
			if sleepErr := s.sleep(ctx, backoffDuration); sleepErr != nil {
				return nil, sleepErr
			}
		}
	}

	return nil, driver.NewAuthError("auth.refresh", 0,
		fmt.Sprintf("refresh failed after %d attempts: %v", s.maxRetryAttempts, lastErr))
}

// Authenticate verifies end-user credentials and opens a fresh session.
// This never touches the elevated service identity.
func (s *SessionManager) Authenticate(ctx context.Context, creds Credentials) (*models.AuthSession, error) {
	if creds.Login == "" || creds.Password == "" {
		return nil, driver.NewValidationError("auth.login", 0, "login and password are required")
	}

	result, err := s.rpc.AuthenticateUser(ctx, creds.Login, creds.Password)
	if err != nil {
		s.logger.Warn("User authentication failed", "login", creds.Login, "error", err)
		return nil, err
	}

	session := s.sessionFromResult(result, nil)
	if err := s.sessionRepo.SaveSession(ctx, session); err != nil {
		return nil, fmt.Errorf("authenticated session could not be persisted: %w", err)
	}

	s.logger.Info("User authenticated",
		"login", creds.Login,
		"expires_at", session.ExpiresAt)
	return session, nil
}

// Logout ends the session. The remote notification is best-effort; local
// state is cleared regardless of the remote outcome.
func (s *SessionManager) Logout(ctx context.Context) error {
	session, err := s.sessionRepo.GetSession(ctx)
	if err == nil && session.IsAuthenticated() {
		if remoteErr := s.rpc.Logout(ctx, session.AccessToken); remoteErr != nil {
			s.logger.Warn("Remote logout failed, clearing local session anyway", "error", remoteErr)
		}
	}

	if err := s.sessionRepo.ClearSession(ctx); err != nil {
		return fmt.Errorf("failed to clear session: %w", err)
	}
	if err := s.identityRepo.ClearIdentity(ctx); err != nil {
		s.logger.Warn("Failed to clear service identity on logout", "error", err)
	}

	s.logger.Info("Session logged out")
	return nil
}

// EnsureServiceIdentity returns the elevated identity, performing the lazy
// first login when none is stored. Single-flight like Refresh.
func (s *SessionManager) EnsureServiceIdentity(ctx context.Context) (*models.ServiceIdentity, error) {
	identity, err := s.identityRepo.GetIdentity(ctx)
	if err == nil && identity.IsComplete() {
		return identity, nil
	}
	if err != nil && !errors.Is(err, repository.ErrIdentityNotFound) {
		return nil, err
	}

	result, err, _ := s.flights.Do(identityFlightKey, func() (interface{}, error) {
		// Another flight may have logged in while this caller queued
		current, loadErr := s.identityRepo.GetIdentity(ctx)
		if loadErr == nil && current.IsComplete() {
			return current, nil
		}

		if s.serviceCreds.PrincipalID == "" || s.serviceCreds.Secret == "" {
			return nil, driver.NewAuthError("common.login", 0, "service credentials are not configured")
		}

		principalID, authErr := s.rpc.AuthenticateService(ctx, s.serviceCreds.PrincipalID, s.serviceCreds.Secret)
		if authErr != nil {
			s.logger.Error("Service identity authentication failed", "error", authErr)
			return nil, authErr
		}

		created := models.NewServiceIdentity(principalID, s.serviceCreds.Secret, s.rpc.Realm())
		if saveErr := s.identityRepo.SaveIdentity(ctx, created); saveErr != nil {
			return nil, fmt.Errorf("service identity could not be persisted: %w", saveErr)
		}

		s.logger.Info("Service identity established",
			"principal_id", principalID,
			"realm", created.Realm)
		return created, nil
	})
	if err != nil {
		return nil, err
	}

	return result.(*models.ServiceIdentity), nil
}

// ClearServiceIdentity removes the stored elevated identity
func (s *SessionManager) ClearServiceIdentity(ctx context.Context) error {
	return s.identityRepo.ClearIdentity(ctx)
}

// Metrics returns a snapshot of the session lifecycle counters
func (s *SessionManager) Metrics() SessionMetrics {
	var lastRefresh time.Time
	if n := s.counters.lastRefreshUnixNanos.Load(); n != 0 {
		lastRefresh = time.Unix(0, n)
	}
	return SessionMetrics{
		TotalRefreshAttempts: s.counters.totalRefreshAttempts.Load(),
		SuccessfulRefreshes:  s.counters.successfulRefreshes.Load(),
		FailedRefreshes:      s.counters.failedRefreshes.Load(),
		NonRetryableFailures: s.counters.nonRetryableFailures.Load(),
		SingleFlightHits:     s.counters.singleFlightHits.Load(),
		LastRefreshTime:      lastRefresh,
		LastRefreshDuration:  time.Duration(s.counters.lastRefreshNanos.Load()),
	}
}

// SessionStatus reports the current session state for observers
type SessionStatus struct {
	Exists        bool          `json:"exists"`
	Authenticated bool          `json:"authenticated"`
	IsExpired     bool          `json:"is_expired"`
	NeedsRefresh  bool          `json:"needs_refresh"`
	ExpiresAt     time.Time     `json:"expires_at,omitempty"`
	TimeToExpiry  time.Duration `json:"time_to_expiry,omitempty"`
}

// Status returns the current session state without triggering a refresh
func (s *SessionManager) Status(ctx context.Context) *SessionStatus {
	session, err := s.sessionRepo.GetSession(ctx)
	if err != nil {
		return &SessionStatus{}
	}

	return &SessionStatus{
		Exists:        true,
		Authenticated: session.IsAuthenticated(),
		IsExpired:     session.IsExpired(),
		NeedsRefresh:  session.NeedsRefresh(s.refreshBuffer),
		ExpiresAt:     session.ExpiresAt,
		TimeToExpiry:  session.TimeUntilExpiry(),
	}
}

func (s *SessionManager) loadSession(ctx context.Context) (*models.AuthSession, error) {
	session, err := s.sessionRepo.GetSession(ctx)
	if err != nil {
		if errors.Is(err, repository.ErrSessionNotFound) {
			return nil, ErrNotAuthenticated
		}
		return nil, fmt.Errorf("session storage access failed: %w", err)
	}
	if !session.IsAuthenticated() {
		return nil, ErrNotAuthenticated
	}
	return session, nil
}

// sessionFromResult builds the stored session from a login or refresh payload.
// Expiry comes from expires_in when present, then the token's own exp claim,
// then a conservative default.
func (s *SessionManager) sessionFromResult(result *driver.SessionResult, previous *models.AuthSession) *models.AuthSession {
	expiresAt := s.resolveExpiry(result)

	if previous != nil {
		updated := *previous
		updated.UpdateFromRefresh(result.AccessToken, result.RefreshToken, expiresAt)
		if result.User != nil {
			updated.User = result.User
		}
		return &updated
	}

	return models.NewAuthSession(result.AccessToken, result.RefreshToken, expiresAt, result.User)
}

func (s *SessionManager) resolveExpiry(result *driver.SessionResult) time.Time {
	if result.ExpiresIn > 0 {
		return time.Now().Add(time.Duration(result.ExpiresIn) * time.Second)
	}

	// The backend sometimes omits expires_in; the access token is a JWT whose
	// exp claim is authoritative enough for scheduling. Signature checking
	// stays the backend's job.
	claims := jwt.RegisteredClaims{}
	parser := jwt.NewParser()
	if _, _, err := parser.ParseUnverified(result.AccessToken, &claims); err == nil && claims.ExpiresAt != nil {
		return claims.ExpiresAt.Time
	}

	s.logger.Warn("Session lifetime not provided, using default",
		"default_lifetime", defaultSessionLifetime)
	return time.Now().Add(defaultSessionLifetime)
}

// sleepContext waits for d or until ctx is done
func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
