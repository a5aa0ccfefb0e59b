package monitoring

import (
	"testing"

	"github.com/maestro-sh/maestro/internal/core/domain"
	"github.com/stretchr/testify/assert"
)

// =============================================================================
// Classify Tests
// =============================================================================

func TestClassify_AllClear(t *testing.T) {
	status, msg := Classify("", domain.MetricSnapshot{
		CPUPercent:    10,
		MemoryPercent: 20,
		RestartCount:  0,
	}, domain.DefaultThresholds())

	assert.Equal(t, domain.HealthHealthy, status)
	assert.Equal(t, "all checks passed", msg)
}

func TestClassify_ProbeUnhealthy(t *testing.T) {
	status, msg := Classify(ProbeUnhealthy, domain.MetricSnapshot{}, domain.DefaultThresholds())

	assert.Equal(t, domain.HealthUnhealthy, status)
	assert.Contains(t, msg, "health probe failing")
}

func TestClassify_CPUCritical_IgnoresMemory(t *testing.T) {
	// CPU above critical alone is enough, whatever memory says.
	status, _ := Classify("", domain.MetricSnapshot{
		CPUPercent:    95,
		MemoryPercent: 5,
	}, domain.DefaultThresholds())

	assert.Equal(t, domain.HealthUnhealthy, status)
}

func TestClassify_MemoryCritical(t *testing.T) {
	status, msg := Classify("", domain.MetricSnapshot{
		MemoryPercent: 92,
	}, domain.DefaultThresholds())

	assert.Equal(t, domain.HealthUnhealthy, status)
	assert.Contains(t, msg, "memory 92.0%")
}

func TestClassify_CriticalBeatsProbeStarting(t *testing.T) {
	status, _ := Classify(ProbeStarting, domain.MetricSnapshot{
		CPUPercent: 99,
	}, domain.DefaultThresholds())

	assert.Equal(t, domain.HealthUnhealthy, status)
}

func TestClassify_ProbeStarting(t *testing.T) {
	status, msg := Classify(ProbeStarting, domain.MetricSnapshot{}, domain.DefaultThresholds())

	assert.Equal(t, domain.HealthStarting, status)
	assert.Contains(t, msg, "health probe starting")
}

func TestClassify_Warning(t *testing.T) {
	tests := []struct {
		name  string
		stats domain.MetricSnapshot
	}{
		{"cpu warning", domain.MetricSnapshot{CPUPercent: 75}},
		{"memory warning", domain.MetricSnapshot{MemoryPercent: 80}},
		{"restart threshold", domain.MetricSnapshot{RestartCount: 3}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, _ := Classify("", tt.stats, domain.DefaultThresholds())
			assert.Equal(t, domain.HealthWarning, status)
		})
	}
}

func TestClassify_MessageListsEveryCondition(t *testing.T) {
	_, msg := Classify(ProbeUnhealthy, domain.MetricSnapshot{
		CPUPercent:    95,
		MemoryPercent: 75,
		RestartCount:  5,
	}, domain.DefaultThresholds())

	// Most severe condition wins the status, but the message carries all
	// four triggered conditions for operator diagnosis.
	assert.Contains(t, msg, "health probe failing")
	assert.Contains(t, msg, "cpu 95.0%")
	assert.Contains(t, msg, "memory 75.0%")
	assert.Contains(t, msg, "restart count 5")
}

func TestClassify_BelowRestartThreshold(t *testing.T) {
	status, _ := Classify("", domain.MetricSnapshot{RestartCount: 2}, domain.DefaultThresholds())
	assert.Equal(t, domain.HealthHealthy, status)
}

// =============================================================================
// ShouldNotify Tests
// =============================================================================

func TestShouldNotify(t *testing.T) {
	all := NotifyPolicy{Enabled: true, OnWarning: true, OnCritical: true}

	tests := []struct {
		name     string
		policy   NotifyPolicy
		current  domain.HealthStatus
		previous domain.HealthStatus
		expected bool
	}{
		{"disabled suppresses everything", NotifyPolicy{}, domain.HealthUnhealthy, domain.HealthHealthy, false},
		{"status change", all, domain.HealthWarning, domain.HealthHealthy, true},
		{"steady healthy", all, domain.HealthHealthy, domain.HealthHealthy, false},
		{"steady warning with switch on", all, domain.HealthWarning, domain.HealthWarning, true},
		{"steady warning with switch off", NotifyPolicy{Enabled: true, OnCritical: true}, domain.HealthWarning, domain.HealthWarning, false},
		{"steady unhealthy with switch on", all, domain.HealthUnhealthy, domain.HealthUnhealthy, true},
		{"steady unhealthy with switch off", NotifyPolicy{Enabled: true, OnWarning: true}, domain.HealthUnhealthy, domain.HealthUnhealthy, false},
		{"recovery is a change", all, domain.HealthHealthy, domain.HealthUnhealthy, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, ShouldNotify(tt.policy, tt.current, tt.previous))
		})
	}
}
