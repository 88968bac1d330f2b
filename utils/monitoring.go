// ABOUTME: This file implements in-process metrics collection with structured log output
// ABOUTME: Counters accumulate in memory and are exposed as a read-only snapshot

package utils

import (
	"context"
	"log/slog"
	"sort"
	"strconv"
	"sync"
	"time"
)

// MetricType represents the type of metric being recorded
type MetricType string

const (
	MetricTypeCounter   MetricType = "counter"
	MetricTypeHistogram MetricType = "histogram"
	MetricTypeGauge     MetricType = "gauge"
)

// Metric represents a single monitoring metric
type Metric struct {
	Name      string            `json:"name"`
	Type      MetricType        `json:"type"`
	Value     float64           `json:"value"`
	Labels    map[string]string `json:"labels"`
	Timestamp time.Time         `json:"timestamp"`
}

// MonitoringConfig holds configuration for monitoring
type MonitoringConfig struct {
	EnableMetrics     bool          `json:"enable_metrics"`
	MetricsBatchSize  int           `json:"metrics_batch_size"`
	FlushInterval     time.Duration `json:"flush_interval"`
	RetentionDuration time.Duration `json:"retention_duration"`
}

// DefaultMonitoringConfig returns default monitoring configuration
func DefaultMonitoringConfig() *MonitoringConfig {
	return &MonitoringConfig{
		EnableMetrics:     true,
		MetricsBatchSize:  100,
		FlushInterval:     30 * time.Second,
		RetentionDuration: 24 * time.Hour,
	}
}

// Monitor handles structured logging and metrics collection for the bridge
type Monitor struct {
	config  *MonitoringConfig
	logger  *slog.Logger
	metrics map[string]*Metric
	mu      sync.RWMutex

	metricsChan chan *Metric
	done        chan struct{}
}

// NewMonitor creates a new monitoring instance
func NewMonitor(config *MonitoringConfig, logger *slog.Logger) *Monitor {
	if config == nil {
		config = DefaultMonitoringConfig()
	}
	if logger == nil {
		logger = slog.Default()
	}

	monitor := &Monitor{
		config:      config,
		logger:      logger,
		metrics:     make(map[string]*Metric),
		metricsChan: make(chan *Metric, config.MetricsBatchSize),
		done:        make(chan struct{}),
	}

	if config.EnableMetrics {
		go monitor.processMetrics()
	}

	return monitor
}

// LogRPCCall logs an RPC dispatch with its classified outcome
func (m *Monitor) LogRPCCall(ctx context.Context, procedure string, status int, duration time.Duration, err error) {
	attributes := []any{
		"procedure", procedure,
		"duration_ms", duration.Milliseconds(),
		"success", err == nil,
	}
	if status > 0 {
		attributes = append(attributes, "status_code", status)
	}

	if err != nil {
		attributes = append(attributes, "error", err.Error())
		m.logger.ErrorContext(ctx, "RPC call failed", attributes...)
	} else {
		m.logger.InfoContext(ctx, "RPC call completed", attributes...)
	}

	if m.config.EnableMetrics {
		outcome := "success"
		if err != nil {
			outcome = "failure"
		}
		labels := map[string]string{
			"procedure": procedure,
			"outcome":   outcome,
		}
		m.RecordCounter("rpc_calls_total", 1, labels)
		m.RecordHistogram("rpc_call_duration_seconds", duration.Seconds(), labels)
		if status > 0 {
			m.RecordCounter("rpc_response_status_total", 1, map[string]string{
				"procedure":   procedure,
				"status_code": strconv.Itoa(status),
			})
		}
	}
}

// LogTokenRefresh logs session refresh events
func (m *Monitor) LogTokenRefresh(ctx context.Context, duration time.Duration, err error) {
	attributes := []any{
		"success", err == nil,
		"duration_ms", duration.Milliseconds(),
	}

	if err != nil {
		attributes = append(attributes, "error", err.Error())
		m.logger.ErrorContext(ctx, "Token refresh failed", attributes...)
	} else {
		m.logger.InfoContext(ctx, "Token refresh completed", attributes...)
	}

	if m.config.EnableMetrics {
		status := "success"
		if err != nil {
			status = "failure"
		}
		m.RecordCounter("token_refresh_total", 1, map[string]string{
			"status": status,
		})
		m.RecordHistogram("token_refresh_duration_seconds", duration.Seconds(), map[string]string{
			"status": status,
		})
	}
}

// LogQueueDrain logs one drain pass over the offline mutation queue
func (m *Monitor) LogQueueDrain(ctx context.Context, applied, retained, dropped int, duration time.Duration) {
	m.logger.InfoContext(ctx, "Queue drain completed",
		"applied", applied,
		"retained", retained,
		"dropped", dropped,
		"duration_ms", duration.Milliseconds())

	if m.config.EnableMetrics {
		m.RecordCounter("queue_operations_applied_total", float64(applied), nil)
		m.RecordCounter("queue_operations_retained_total", float64(retained), nil)
		m.RecordCounter("queue_operations_dropped_total", float64(dropped), nil)
		m.RecordHistogram("queue_drain_duration_seconds", duration.Seconds(), nil)
	}
}

// LogSyncPass logs one reconciliation pass of the sync coordinator
func (m *Monitor) LogSyncPass(ctx context.Context, outcome string, pulled, conflicts int, duration time.Duration) {
	m.logger.InfoContext(ctx, "Sync pass completed",
		"outcome", outcome,
		"records_pulled", pulled,
		"conflicts", conflicts,
		"duration_ms", duration.Milliseconds())

	if m.config.EnableMetrics {
		labels := map[string]string{"outcome": outcome}
		m.RecordCounter("sync_passes_total", 1, labels)
		m.RecordCounter("sync_records_pulled_total", float64(pulled), nil)
		m.RecordCounter("sync_conflicts_total", float64(conflicts), nil)
		m.RecordHistogram("sync_pass_duration_seconds", duration.Seconds(), labels)
	}
}

// RecordCounter records a counter metric
func (m *Monitor) RecordCounter(name string, value float64, labels map[string]string) {
	if !m.config.EnableMetrics {
		return
	}
	m.submit(&Metric{
		Name:      name,
		Type:      MetricTypeCounter,
		Value:     value,
		Labels:    labels,
		Timestamp: time.Now(),
	})
}

// RecordHistogram records a histogram metric
func (m *Monitor) RecordHistogram(name string, value float64, labels map[string]string) {
	if !m.config.EnableMetrics {
		return
	}
	m.submit(&Metric{
		Name:      name,
		Type:      MetricTypeHistogram,
		Value:     value,
		Labels:    labels,
		Timestamp: time.Now(),
	})
}

// RecordGauge records a gauge metric
func (m *Monitor) RecordGauge(name string, value float64, labels map[string]string) {
	if !m.config.EnableMetrics {
		return
	}
	m.submit(&Metric{
		Name:      name,
		Type:      MetricTypeGauge,
		Value:     value,
		Labels:    labels,
		Timestamp: time.Now(),
	})
}

func (m *Monitor) submit(metric *Metric) {
	select {
	case m.metricsChan <- metric:
	default:
		m.logger.Warn("Metrics channel full, dropping metric", "name", metric.Name)
	}
}

// GetMetrics returns the current metrics snapshot
func (m *Monitor) GetMetrics() map[string]*Metric {
	m.mu.RLock()
	defer m.mu.RUnlock()

	snapshot := make(map[string]*Metric)
	for k, v := range m.metrics {
		snapshot[k] = v
	}
	return snapshot
}

// processMetrics handles async metric processing
func (m *Monitor) processMetrics() {
	ticker := time.NewTicker(m.config.FlushInterval)
	defer ticker.Stop()

	for {
		select {
		case metric := <-m.metricsChan:
			m.storeMetric(metric)
		case <-ticker.C:
			m.flushOldMetrics()
		case <-m.done:
			return
		}
	}
}

// storeMetric stores a metric in memory, accumulating counters
func (m *Monitor) storeMetric(metric *Metric) {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := m.generateMetricKey(metric)

	if existing, exists := m.metrics[key]; exists && metric.Type == MetricTypeCounter {
		existing.Value += metric.Value
		existing.Timestamp = metric.Timestamp
	} else {
		m.metrics[key] = metric
	}
}

// generateMetricKey generates a unique key for a metric. Label keys are
// sorted so the same label set always aggregates under the same entry.
func (m *Monitor) generateMetricKey(metric *Metric) string {
	key := metric.Name + ":" + string(metric.Type)

	labelKeys := make([]string, 0, len(metric.Labels))
	for k := range metric.Labels {
		labelKeys = append(labelKeys, k)
	}
	sort.Strings(labelKeys)

	for _, k := range labelKeys {
		key += ":" + k + "=" + metric.Labels[k]
	}
	return key
}

// flushOldMetrics removes metrics older than the retention duration
func (m *Monitor) flushOldMetrics() {
	m.mu.Lock()
	defer m.mu.Unlock()

	cutoff := time.Now().Add(-m.config.RetentionDuration)
	for key, metric := range m.metrics {
		if metric.Timestamp.Before(cutoff) {
			delete(m.metrics, key)
		}
	}
}

// Close shuts down the monitor
func (m *Monitor) Close() {
	close(m.done)
}

// HealthCheck reports the monitoring system's own state
func (m *Monitor) HealthCheck() map[string]interface{} {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return map[string]interface{}{
		"status":             "healthy",
		"metrics_enabled":    m.config.EnableMetrics,
		"metrics_count":      len(m.metrics),
		"queue_length":       len(m.metricsChan),
		"queue_capacity":     cap(m.metricsChan),
		"flush_interval":     m.config.FlushInterval.String(),
		"retention_duration": m.config.RetentionDuration.String(),
	}
}
