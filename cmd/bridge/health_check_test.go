// ABOUTME: Tests for the status-file health check probed by deploy tooling
// ABOUTME: Covers freshness thresholds, failure outcomes, and unreadable status files

package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sync-bridge/models"
)

var checkerNow = time.Date(2026, 8, 25, 12, 0, 0, 0, time.UTC)

func newTestChecker(status *models.SyncStatus, readErr error) *HealthChecker {
	checker := NewHealthChecker("ignored.status", 2*time.Minute)
	checker.now = func() time.Time { return checkerNow }
	checker.readFile = func(string) ([]byte, error) {
		if readErr != nil {
			return nil, readErr
		}
		data, err := json.Marshal(status)
		if err != nil {
			panic(err)
		}
		return data, nil
	}
	return checker
}

func TestHealthChecker_HealthyStatus(t *testing.T) {
	t.Setenv("SERVICE_VERSION", "1.2.3")

	checker := newTestChecker(&models.SyncStatus{
		LastSyncAt: checkerNow.Add(-time.Minute),
		Outcome:    models.SyncOutcomeSuccess,
	}, nil)

	result := checker.Check()

	assert.Equal(t, "healthy", result["status"])
	assert.Equal(t, "1.2.3", result["version"])
	assert.Equal(t, "success", result["last_outcome"])
	assert.Equal(t, 60, result["status_age_seconds"])
	assert.Contains(t, result, "timestamp")
	assert.NotContains(t, result, "error_details")
}

func TestHealthChecker_StaleStatusIsDegraded(t *testing.T) {
	checker := newTestChecker(&models.SyncStatus{
		LastSyncAt: checkerNow.Add(-10 * time.Minute),
		Outcome:    models.SyncOutcomeSuccess,
	}, nil)

	result := checker.Check()

	assert.Equal(t, "degraded", result["status"])
	details := result["error_details"].([]string)
	require.Len(t, details, 1)
	assert.Contains(t, details[0], "exceeds")
}

func TestHealthChecker_FailedOutcomeIsDegraded(t *testing.T) {
	checker := newTestChecker(&models.SyncStatus{
		LastSyncAt:  checkerNow.Add(-30 * time.Second),
		Outcome:     models.SyncOutcomeError,
		ErrorDetail: "partner: transport failure",
	}, nil)

	result := checker.Check()

	assert.Equal(t, "degraded", result["status"])
	details := result["error_details"].([]string)
	require.Len(t, details, 1)
	assert.Contains(t, details[0], "last sync failed: partner: transport failure")
}

func TestHealthChecker_UnreadableStatusFile(t *testing.T) {
	checker := newTestChecker(nil, fmt.Errorf("open: no such file"))

	result := checker.Check()

	assert.Equal(t, "degraded", result["status"])
	details := result["error_details"].([]string)
	require.Len(t, details, 1)
	assert.Contains(t, details[0], "status file unreadable")
}

func TestHealthChecker_MalformedStatusFile(t *testing.T) {
	checker := NewHealthChecker("ignored.status", 2*time.Minute)
	checker.now = func() time.Time { return checkerNow }
	checker.readFile = func(string) ([]byte, error) {
		return []byte("not json at all"), nil
	}

	result := checker.Check()

	assert.Equal(t, "degraded", result["status"])
	details := result["error_details"].([]string)
	require.Len(t, details, 1)
	assert.Contains(t, details[0], "status file malformed")
}

func TestNewHealthChecker_EnforcesMinimumAge(t *testing.T) {
	checker := NewHealthChecker("x.status", time.Second)
	assert.Equal(t, minStatusAge, checker.maxAge)

	checker = NewHealthChecker("x.status", 10*time.Minute)
	assert.Equal(t, 10*time.Minute, checker.maxAge)
}

func TestStatusFilePath(t *testing.T) {
	assert.Equal(t, "/var/lib/bridge/state.db.status", statusFilePath("/var/lib/bridge/state.db"))
}

func TestWriteStatusFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.db.status")

	status := models.NewSyncStatus(models.SyncOutcomeSuccess, "", models.SyncStats{RecordsPulled: 3})
	require.NoError(t, writeStatusFile(path, status))

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	var read models.SyncStatus
	require.NoError(t, json.Unmarshal(data, &read))
	assert.Equal(t, models.SyncOutcomeSuccess, read.Outcome)
	assert.Equal(t, 3, read.Stats.RecordsPulled)

	// The temp file used for the atomic swap must not linger
	_, err = os.Stat(path + ".tmp")
	assert.True(t, os.IsNotExist(err))

	// A second write replaces the previous contents
	require.NoError(t, writeStatusFile(path, models.NewSyncStatus(models.SyncOutcomeError, "boom", models.SyncStats{})))
	data, err = os.ReadFile(path)
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(data, &read))
	assert.Equal(t, models.SyncOutcomeError, read.Outcome)
}
