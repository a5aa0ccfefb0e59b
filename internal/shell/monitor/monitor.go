// Package monitor contains the background health monitor. It polls the
// container runtime for each watched container, classifies the result with
// the pure functions in core/monitoring, and fans notifications out to the
// configured notifiers.
package monitor

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/maestro-sh/maestro/internal/core/domain"
	"github.com/maestro-sh/maestro/internal/core/monitoring"
	"github.com/maestro-sh/maestro/internal/shell/docker"
)

// Config configures the health monitor.
type Config struct {
	// CheckInterval is the time between poll cycles.
	// Default: 30 seconds.
	CheckInterval time.Duration

	// NotificationInterval is the minimum time between two notifications
	// for the same container. Default: 5 minutes.
	NotificationInterval time.Duration

	// NotificationsEnabled globally enables or disables notifications.
	NotificationsEnabled bool

	// NotifyOnWarning re-notifies on a steady warning status.
	NotifyOnWarning bool

	// NotifyOnCritical re-notifies on a steady unhealthy status.
	NotifyOnCritical bool
}

// DefaultConfig returns the default monitor configuration.
func DefaultConfig() Config {
	return Config{
		CheckInterval:        30 * time.Second,
		NotificationInterval: 5 * time.Minute,
		NotificationsEnabled: true,
		NotifyOnCritical:     true,
	}
}

// Monitor periodically checks the health of watched containers.
// All exported methods are safe for concurrent use; a single mutex guards
// the watch list, the record maps and the notification timestamps.
type Monitor struct {
	docker     docker.Client
	thresholds domain.Thresholds
	config     Config
	notifiers  []Notifier
	logger     *slog.Logger

	mu         sync.Mutex
	order      []string // watched container IDs, insertion order
	watched    map[string]struct{}
	current    map[string]*domain.HealthRecord
	previous   map[string]*domain.HealthRecord
	lastNotify map[string]time.Time

	// Lifecycle management
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New creates a new health monitor.
func New(client docker.Client, thresholds domain.Thresholds, config Config, logger *slog.Logger) *Monitor {
	if config.CheckInterval == 0 {
		config.CheckInterval = 30 * time.Second
	}
	if config.NotificationInterval == 0 {
		config.NotificationInterval = 5 * time.Minute
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &Monitor{
		docker:     client,
		thresholds: thresholds,
		config:     config,
		logger:     logger.With("component", "monitor"),
		watched:    make(map[string]struct{}),
		current:    make(map[string]*domain.HealthRecord),
		previous:   make(map[string]*domain.HealthRecord),
		lastNotify: make(map[string]time.Time),
	}
}

// AddNotifier registers a notification sink. Not safe to call after Start.
func (m *Monitor) AddNotifier(n Notifier) {
	m.notifiers = append(m.notifiers, n)
}

// =============================================================================
// Watch List
// =============================================================================

// Add puts a container under watch. Adding an already-watched container is a
// no-op; its history is kept.
func (m *Monitor) Add(containerID string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.watched[containerID]; ok {
		return
	}
	m.watched[containerID] = struct{}{}
	m.order = append(m.order, containerID)
}

// RemoveContainer stops watching a container and drops its history.
func (m *Monitor) RemoveContainer(containerID string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.watched[containerID]; !ok {
		return
	}
	delete(m.watched, containerID)
	delete(m.current, containerID)
	delete(m.previous, containerID)
	delete(m.lastNotify, containerID)
	for i, id := range m.order {
		if id == containerID {
			m.order = append(m.order[:i], m.order[i+1:]...)
			break
		}
	}
}

// Watching returns the watched container IDs in the order they were added.
func (m *Monitor) Watching() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.order...)
}

// Current returns the latest health record for a container, or nil if it has
// never been checked.
func (m *Monitor) Current(containerID string) *domain.HealthRecord {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.current[containerID]
}

// Previous returns the record that preceded the current one, or nil.
func (m *Monitor) Previous(containerID string) *domain.HealthRecord {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.previous[containerID]
}

// =============================================================================
// Checking
// =============================================================================

// Check runs a single health check for one container and records the result.
// A check never fails: runtime errors classify the container as Unknown with
// the error in the message.
func (m *Monitor) Check(ctx context.Context, containerID string) domain.HealthRecord {
	record := m.observe(ctx, containerID)
	m.record(record)
	return record
}

// observe gathers runtime state and classifies it, without touching the
// record maps.
func (m *Monitor) observe(ctx context.Context, containerID string) domain.HealthRecord {
	record := domain.HealthRecord{
		ContainerID: containerID,
		Status:      domain.HealthUnknown,
		CheckedAt:   time.Now(),
	}

	info, err := m.docker.InspectContainer(ctx, containerID)
	if err != nil {
		record.Message = fmt.Sprintf("inspect failed: %v", err)
		return record
	}

	// A container that is not running has no metrics worth fetching.
	if info.State != "running" {
		record.Message = fmt.Sprintf("container is %s", info.State)
		return record
	}

	stats, err := m.docker.ContainerStats(ctx, containerID)
	if err != nil {
		record.Message = fmt.Sprintf("stats unavailable: %v", err)
		return record
	}

	snapshot := domain.MetricSnapshot{
		CPUPercent:    stats.CPUPercent,
		MemoryPercent: stats.MemoryPercent,
		RestartCount:  info.RestartCount,
		NetRxBytes:    stats.NetworkRxBytes,
		NetTxBytes:    stats.NetworkTxBytes,
	}

	record.Stats = snapshot
	record.Status, record.Message = monitoring.Classify(info.Health, snapshot, m.thresholds)
	return record
}

// record shifts the current record into the previous slot, stores the new
// one, and fires notifications when warranted.
func (m *Monitor) record(rec domain.HealthRecord) {
	m.mu.Lock()

	prevStatus := domain.HealthUnknown
	if prev := m.current[rec.ContainerID]; prev != nil {
		m.previous[rec.ContainerID] = prev
		prevStatus = prev.Status
	}
	m.current[rec.ContainerID] = &rec

	policy := monitoring.NotifyPolicy{
		Enabled:    m.config.NotificationsEnabled,
		OnWarning:  m.config.NotifyOnWarning,
		OnCritical: m.config.NotifyOnCritical,
	}
	notify := monitoring.ShouldNotify(policy, rec.Status, prevStatus)
	if notify {
		last, seen := m.lastNotify[rec.ContainerID]
		if seen && time.Since(last) < m.config.NotificationInterval {
			notify = false
		}
	}
	if notify {
		m.lastNotify[rec.ContainerID] = time.Now()
	}

	m.mu.Unlock()

	if notify {
		for _, n := range m.notifiers {
			n.Notify(rec, prevStatus)
		}
	}
}

// =============================================================================
// Worker Lifecycle
// =============================================================================

// Start begins the monitor background goroutine.
func (m *Monitor) Start() {
	m.ctx, m.cancel = context.WithCancel(context.Background())

	m.wg.Add(1)
	go m.run()

	m.logger.Info("health monitor started",
		"check_interval", m.config.CheckInterval,
		"notifications_enabled", m.config.NotificationsEnabled,
	)
}

// Stop gracefully stops the monitor. It waits for an in-progress cycle to
// complete.
func (m *Monitor) Stop() {
	if m.cancel != nil {
		m.cancel()
	}
	m.wg.Wait()
	m.logger.Info("health monitor stopped")
}

// run is the main loop that checks all watched containers periodically.
func (m *Monitor) run() {
	defer m.wg.Done()

	// Run immediately on start
	m.runCycle()

	ticker := time.NewTicker(m.config.CheckInterval)
	defer ticker.Stop()

	for {
		select {
		case <-m.ctx.Done():
			return
		case <-ticker.C:
			m.runCycle()
		}
	}
}

// runCycle executes a single check cycle across the watch list.
func (m *Monitor) runCycle() {
	ctx, cancel := context.WithTimeout(m.ctx, m.config.CheckInterval)
	defer cancel()

	ids := m.Watching()
	if len(ids) == 0 {
		return
	}

	m.logger.Debug("starting health check cycle", "container_count", len(ids))

	for _, id := range ids {
		if ctx.Err() != nil {
			return
		}
		rec := m.Check(ctx, id)
		if rec.Status == domain.HealthUnhealthy {
			m.logger.Warn("container unhealthy", "container_id", id, "message", rec.Message)
		}
	}

	m.logger.Debug("completed health check cycle", "container_count", len(ids))
}
