//go:generate mockgen -source=bootstrap.go -destination=../mocks/bootstrap_mock.go -package=mocks BootstrapDriver,IdentityProvider,Synchronizer

// ABOUTME: This file implements the one-shot startup sequence for the bridge
// ABOUTME: Memoizes initialization so concurrent callers share a single run

package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"sync-bridge/driver"
	"sync-bridge/models"
)

const initFlightKey = "bootstrap_initialize"

// Bootstrap step names carried by StepError
const (
	StepConnectivityProbe    = "connectivity_probe"
	StepServiceAuth          = "service_authentication"
	StepCapabilityValidation = "capability_validation"
	StepStartSync            = "start_sync"
)

// StepError reports which bootstrap step failed and why
type StepError struct {
	Step string
	Err  error
}

func (e *StepError) Error() string {
	return fmt.Sprintf("bootstrap step %s failed: %v", e.Step, e.Err)
}

func (e *StepError) Unwrap() error {
	return e.Err
}

// BootstrapDriver is the transport surface the sequencer probes through
type BootstrapDriver interface {
	Ping(ctx context.Context) (*driver.VersionInfo, error)
	ListCapabilities(ctx context.Context, identity *models.ServiceIdentity) ([]string, error)
}

// IdentityProvider establishes the elevated service identity; the session
// manager implements it
type IdentityProvider interface {
	EnsureServiceIdentity(ctx context.Context) (*models.ServiceIdentity, error)
}

// Synchronizer is the sync coordinator surface the sequencer drives
type Synchronizer interface {
	StartPeriodic(interval time.Duration)
	Stop()
	ClearSyncState(ctx context.Context) error
	ForceSyncEntity(ctx context.Context, entityType string) (*models.SyncStatus, error)
}

// BootstrapConfig declares what the bridge needs from the backend at startup
type BootstrapConfig struct {
	// RequiredEntityTypes must all be reachable or initialization fails
	RequiredEntityTypes []string

	// OptionalEntityTypes produce a warning when missing
	OptionalEntityTypes []string

	// WarmEntityTypes are pulled once after startup to prime the cache
	WarmEntityTypes []string

	// SyncInterval is the periodic sync cadence
	SyncInterval time.Duration
}

// Bootstrap runs the startup sequence exactly once: probe the backend,
// establish the service identity, validate capabilities, start the periodic
// sync loop, and warm the cache. Concurrent Initialize calls attach to the
// same in-flight run and receive the same outcome.
type Bootstrap struct {
	rpc         BootstrapDriver
	sessions    IdentityProvider
	coordinator Synchronizer
	config      BootstrapConfig
	logger      *slog.Logger

	mu          sync.Mutex
	initialized bool
	flight      *singleflight.Group
}

// NewBootstrap creates a bootstrap sequencer
func NewBootstrap(rpc BootstrapDriver, sessions IdentityProvider, coordinator Synchronizer, config BootstrapConfig, logger *slog.Logger) *Bootstrap {
	if logger == nil {
		logger = slog.Default()
	}
	if config.SyncInterval <= 0 {
		config.SyncInterval = defaultSyncInterval
	}

	return &Bootstrap{
		rpc:         rpc,
		sessions:    sessions,
		coordinator: coordinator,
		config:      config,
		logger:      logger,
		flight:      &singleflight.Group{},
	}
}

// IsInitialized reports whether a full startup sequence has completed
func (b *Bootstrap) IsInitialized() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.initialized
}

// Initialize runs the startup sequence, or attaches to the run already in
// flight. Once a run has succeeded, subsequent calls return immediately. A
// failed step aborts the rest of the sequence and surfaces as a StepError;
// the next Initialize call starts the sequence over.
func (b *Bootstrap) Initialize(ctx context.Context) error {
	b.mu.Lock()
	if b.initialized {
		b.mu.Unlock()
		return nil
	}
	b.mu.Unlock()

	_, err, _ := b.flight.Do(initFlightKey, func() (interface{}, error) {
		b.mu.Lock()
		if b.initialized {
			b.mu.Unlock()
			return nil, nil
		}
		b.mu.Unlock()

		if err := b.runSequence(ctx); err != nil {
			return nil, err
		}

		b.mu.Lock()
		b.initialized = true
		b.mu.Unlock()
		return nil, nil
	})

	return err
}

// Reinitialize stops the sync loop, wipes cursors and cached records, and
// runs the startup sequence again. The auth session is left alone.
func (b *Bootstrap) Reinitialize(ctx context.Context) error {
	b.logger.Info("Reinitializing bridge")

	b.coordinator.Stop()
	if err := b.coordinator.ClearSyncState(ctx); err != nil {
		return fmt.Errorf("failed to reset sync state: %w", err)
	}

	b.mu.Lock()
	b.initialized = false
	b.mu.Unlock()

	return b.Initialize(ctx)
}

func (b *Bootstrap) runSequence(ctx context.Context) error {
	b.logger.Info("Bootstrap starting",
		"required_entity_types", b.config.RequiredEntityTypes,
		"sync_interval", b.config.SyncInterval)

	version, err := b.rpc.Ping(ctx)
	if err != nil {
		return &StepError{Step: StepConnectivityProbe, Err: err}
	}
	b.logger.Info("Backend reachable", "server_version", version.ServerVersion)

	identity, err := b.sessions.EnsureServiceIdentity(ctx)
	if err != nil {
		return &StepError{Step: StepServiceAuth, Err: err}
	}
	b.logger.Info("Service identity established", "principal_id", identity.PrincipalID)

	if err := b.validateCapabilities(ctx, identity); err != nil {
		return err
	}

	b.coordinator.StartPeriodic(b.config.SyncInterval)

	b.warmCache(ctx)

	b.logger.Info("Bootstrap complete")
	return nil
}

// validateCapabilities confirms the entity types the app depends on are
// served by the backend. Missing required types abort startup; missing
// optional types only warn.
func (b *Bootstrap) validateCapabilities(ctx context.Context, identity *models.ServiceIdentity) error {
	entityTypes, err := b.rpc.ListCapabilities(ctx, identity)
	if err != nil {
		return &StepError{Step: StepCapabilityValidation, Err: err}
	}

	available := make(map[string]bool, len(entityTypes))
	for _, entityType := range entityTypes {
		available[entityType] = true
	}

	var missing []string
	for _, required := range b.config.RequiredEntityTypes {
		if !available[required] {
			missing = append(missing, required)
		}
	}
	if len(missing) > 0 {
		return &StepError{
			Step: StepCapabilityValidation,
			Err:  fmt.Errorf("required entity types unavailable: %s", strings.Join(missing, ", ")),
		}
	}

	for _, optional := range b.config.OptionalEntityTypes {
		if !available[optional] {
			b.logger.Warn("Optional entity type unavailable", "entity_type", optional)
		}
	}

	b.logger.Info("Capabilities validated",
		"available", len(entityTypes),
		"required", len(b.config.RequiredEntityTypes))
	return nil
}

// warmCache pulls reference entities once so first reads hit the local
// cache. Failures are logged and never abort startup.
func (b *Bootstrap) warmCache(ctx context.Context) {
	for _, entityType := range b.config.WarmEntityTypes {
		if _, err := b.coordinator.ForceSyncEntity(ctx, entityType); err != nil {
			b.logger.Warn("Cache warm failed for entity type",
				"entity_type", entityType,
				"error", err)
			continue
		}
		b.logger.Debug("Cache warmed", "entity_type", entityType)
	}
}
