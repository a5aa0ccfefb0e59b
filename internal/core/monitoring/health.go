// Package monitoring provides pure functions for container health
// classification. It contains no I/O; the shell monitor feeds it runtime
// state and metric snapshots.
package monitoring

import (
	"fmt"
	"strings"

	"github.com/maestro-sh/maestro/internal/core/domain"
)

// Docker health-probe states as reported by the engine.
const (
	ProbeHealthy   = "healthy"
	ProbeUnhealthy = "unhealthy"
	ProbeStarting  = "starting"
)

// =============================================================================
// Health Classification (Pure Functions)
// =============================================================================

// Classify determines the health status of a running container from the
// engine's own health-probe result (empty when the container has no probe)
// and a metric snapshot, evaluated against the given thresholds.
//
// Severity is decided by the first match in decreasing order:
// probe-unhealthy, metric-critical, probe-starting, metric-warning, healthy.
// The message, however, lists every triggered condition so an operator sees
// the full picture, not only the condition that won.
func Classify(probe string, stats domain.MetricSnapshot, th domain.Thresholds) (domain.HealthStatus, string) {
	var critical, warnings []string

	if probe == ProbeUnhealthy {
		critical = append(critical, "health probe failing")
	}
	if stats.CPUPercent >= th.CPUCritical {
		critical = append(critical, fmt.Sprintf("cpu %.1f%% >= critical %.1f%%", stats.CPUPercent, th.CPUCritical))
	} else if stats.CPUPercent >= th.CPUWarning {
		warnings = append(warnings, fmt.Sprintf("cpu %.1f%% >= warning %.1f%%", stats.CPUPercent, th.CPUWarning))
	}
	if stats.MemoryPercent >= th.MemoryCritical {
		critical = append(critical, fmt.Sprintf("memory %.1f%% >= critical %.1f%%", stats.MemoryPercent, th.MemoryCritical))
	} else if stats.MemoryPercent >= th.MemoryWarning {
		warnings = append(warnings, fmt.Sprintf("memory %.1f%% >= warning %.1f%%", stats.MemoryPercent, th.MemoryWarning))
	}
	if stats.RestartCount >= th.RestartThreshold {
		warnings = append(warnings, fmt.Sprintf("restart count %d >= threshold %d", stats.RestartCount, th.RestartThreshold))
	}

	triggered := append(append([]string(nil), critical...), warnings...)

	switch {
	case len(critical) > 0:
		return domain.HealthUnhealthy, strings.Join(triggered, "; ")
	case probe == ProbeStarting:
		return domain.HealthStarting, strings.Join(append([]string{"health probe starting"}, warnings...), "; ")
	case len(warnings) > 0:
		return domain.HealthWarning, strings.Join(triggered, "; ")
	default:
		return domain.HealthHealthy, "all checks passed"
	}
}

// =============================================================================
// Notification Policy (Pure Functions)
// =============================================================================

// NotifyPolicy captures the monitor's notification switches.
type NotifyPolicy struct {
	Enabled    bool
	OnWarning  bool
	OnCritical bool
}

// ShouldNotify reports whether a status observation warrants a notification,
// before interval throttling is applied. A change of status always
// qualifies; steady Warning or Unhealthy states qualify only when their
// respective switches are on.
func ShouldNotify(policy NotifyPolicy, current, previous domain.HealthStatus) bool {
	if !policy.Enabled {
		return false
	}
	if current != previous {
		return true
	}
	if current == domain.HealthWarning && policy.OnWarning {
		return true
	}
	if current == domain.HealthUnhealthy && policy.OnCritical {
		return true
	}
	return false
}
