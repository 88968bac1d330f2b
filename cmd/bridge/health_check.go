// ABOUTME: This file provides health check functionality for the sync bridge daemon
// ABOUTME: Probes the status file a running instance maintains and reports freshness

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"time"

	"sync-bridge/config"
	"sync-bridge/models"
	"sync-bridge/service"
)

// minStatusAge is the floor for the staleness threshold so slow passes do not
// flap the health check
const minStatusAge = 2 * time.Minute

// HealthChecker inspects the status file written by a running bridge
type HealthChecker struct {
	statusPath string
	maxAge     time.Duration
	logger     *slog.Logger
	readFile   func(string) ([]byte, error)
	now        func() time.Time
}

// NewHealthChecker creates a health checker for the given status file
func NewHealthChecker(statusPath string, maxAge time.Duration) *HealthChecker {
	if maxAge < minStatusAge {
		maxAge = minStatusAge
	}
	return &HealthChecker{
		statusPath: statusPath,
		maxAge:     maxAge,
		logger:     slog.Default(),
		readFile:   os.ReadFile,
		now:        time.Now,
	}
}

// Check reports the bridge's health based on the persisted sync status
func (hc *HealthChecker) Check() map[string]interface{} {
	result := map[string]interface{}{
		"status":    "healthy",
		"timestamp": hc.now().UTC().Format(time.RFC3339),
		"version":   getServiceVersion(),
	}

	errors := []string{}

	data, err := hc.readFile(hc.statusPath)
	if err != nil {
		errors = append(errors, fmt.Sprintf("status file unreadable: %v", err))
		result["status"] = "degraded"
		result["error_details"] = errors
		return result
	}

	var status models.SyncStatus
	if err := json.Unmarshal(data, &status); err != nil {
		errors = append(errors, fmt.Sprintf("status file malformed: %v", err))
		result["status"] = "degraded"
		result["error_details"] = errors
		return result
	}

	age := hc.now().Sub(status.LastSyncAt)
	result["last_sync_at"] = status.LastSyncAt.UTC().Format(time.RFC3339)
	result["status_age_seconds"] = int(age.Seconds())
	result["last_outcome"] = string(status.Outcome)

	if age > hc.maxAge {
		errors = append(errors, fmt.Sprintf("last sync %s ago exceeds %s", age.Round(time.Second), hc.maxAge))
	}
	if !status.Succeeded() {
		errors = append(errors, fmt.Sprintf("last sync failed: %s", status.ErrorDetail))
	}

	if len(errors) > 0 {
		result["status"] = "degraded"
		result["error_details"] = errors
	}

	return result
}

// performHealthCheckWithOutput runs the health check, prints JSON, and exits
// non-zero unless healthy
func performHealthCheckWithOutput() {
	cfg, err := config.LoadConfig()
	statusPath := "sync-bridge.db.status"
	maxAge := minStatusAge
	if err == nil {
		statusPath = statusFilePath(cfg.Store.Path)
		maxAge = 4 * cfg.Sync.Interval
	}

	checker := NewHealthChecker(statusPath, maxAge)
	result := checker.Check()

	output, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		fmt.Printf(`{"status": "error", "error": "failed to marshal health check result: %v"}`, err)
		os.Exit(1)
	}

	fmt.Println(string(output))

	if status, ok := result["status"]; ok && status != "healthy" {
		os.Exit(1)
	}
}

func getServiceVersion() string {
	version := os.Getenv("SERVICE_VERSION")
	if version == "" {
		version = "unknown"
	}
	return version
}

// statusFilePath derives the health status file location from the store path
func statusFilePath(storePath string) string {
	return storePath + ".status"
}

// statusFileLoop mirrors the persisted sync status into a plain file so the
// health check can probe it without opening the locked store
func statusFileLoop(ctx context.Context, coordinator *service.SyncCoordinator, path string, interval time.Duration, logger *slog.Logger) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			status, err := coordinator.Status(ctx)
			if err != nil {
				continue
			}
			if err := writeStatusFile(path, status); err != nil {
				logger.Warn("Failed to write status file", "path", path, "error", err)
			}
		}
	}
}

// writeStatusFile atomically replaces the status file
func writeStatusFile(path string, status *models.SyncStatus) error {
	data, err := json.Marshal(status)
	if err != nil {
		return err
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}
