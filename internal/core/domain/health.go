package domain

import "time"

// =============================================================================
// Health Types
// =============================================================================

// HealthStatus represents the classified health of a container. There is no
// terminal state: a monitored container cycles through these continuously.
type HealthStatus string

const (
	HealthUnknown   HealthStatus = "unknown"
	HealthStarting  HealthStatus = "starting"
	HealthHealthy   HealthStatus = "healthy"
	HealthWarning   HealthStatus = "warning"
	HealthUnhealthy HealthStatus = "unhealthy"
)

// MetricSnapshot holds the resource metrics a health classification is
// based on.
type MetricSnapshot struct {
	CPUPercent    float64 `json:"cpu_percent"`
	MemoryPercent float64 `json:"memory_percent"`
	RestartCount  int     `json:"restart_count"`
	NetRxBytes    int64   `json:"net_rx_bytes,omitempty"`
	NetTxBytes    int64   `json:"net_tx_bytes,omitempty"`
}

// HealthRecord is one health snapshot of one container. The monitor keeps
// exactly one current record and at most one previous record per container.
type HealthRecord struct {
	ContainerID string         `json:"container_id"`
	Status      HealthStatus   `json:"status"`
	Message     string         `json:"message,omitempty"`
	Stats       MetricSnapshot `json:"stats"`
	CheckedAt   time.Time      `json:"checked_at"`
}

// =============================================================================
// Thresholds
// =============================================================================

// Thresholds are the resource levels at which a running container is
// classified as warning or unhealthy. Percent values compare against CPU and
// memory utilization; RestartThreshold compares against the restart count.
type Thresholds struct {
	CPUWarning       float64 `json:"cpu_warning" mapstructure:"cpu_warning"`
	CPUCritical      float64 `json:"cpu_critical" mapstructure:"cpu_critical"`
	MemoryWarning    float64 `json:"memory_warning" mapstructure:"memory_warning"`
	MemoryCritical   float64 `json:"memory_critical" mapstructure:"memory_critical"`
	RestartThreshold int     `json:"restart_threshold" mapstructure:"restart_threshold"`
}

// DefaultThresholds returns the default classification thresholds.
func DefaultThresholds() Thresholds {
	return Thresholds{
		CPUWarning:       70,
		CPUCritical:      90,
		MemoryWarning:    70,
		MemoryCritical:   90,
		RestartThreshold: 3,
	}
}
