// Package docker provides the container runtime client for Maestro, backed
// by a Docker-Engine-API-compatible daemon.
package docker

import (
	"context"
	"time"
)

// =============================================================================
// Container Types
// =============================================================================

// ContainerSpec defines the specification for creating a container.
type ContainerSpec struct {
	Name          string
	Image         string
	Command       []string
	Env           map[string]string
	Labels        map[string]string
	Ports         []PortBinding
	Volumes       []VolumeMount
	Networks      []string
	RestartPolicy string // "no", "always", "on-failure", "unless-stopped"
	Resources     ResourceLimits
}

// PortBinding defines a port mapping.
type PortBinding struct {
	ContainerPort int
	HostPort      int    // 0 for auto-assign
	Protocol      string // "tcp" or "udp"
}

// VolumeMount defines a volume mount.
type VolumeMount struct {
	Source   string // Volume name or host path
	Target   string // Container path
	ReadOnly bool
}

// ResourceLimits defines resource constraints.
type ResourceLimits struct {
	CPULimit    float64 // CPU cores
	MemoryLimit int64   // Bytes
}

// =============================================================================
// Container Info
// =============================================================================

// ContainerInfo contains information about a container.
type ContainerInfo struct {
	ID           string
	Name         string
	Image        string
	State        string // "running", "exited", "created", etc.
	Health       string // "healthy", "unhealthy", "starting", "" when no probe
	RestartCount int
	CreatedAt    time.Time
	StartedAt    *time.Time
	Labels       map[string]string
	ExitCode     int
}

// ContainerStats represents a one-shot resource usage snapshot.
type ContainerStats struct {
	CPUPercent     float64
	MemoryPercent  float64
	NetworkRxBytes int64
	NetworkTxBytes int64
}

// =============================================================================
// Network Types
// =============================================================================

// NetworkSpec defines the specification for creating a network.
type NetworkSpec struct {
	Name   string
	Driver string // defaults to "bridge"
	Labels map[string]string
}

// =============================================================================
// Options
// =============================================================================

// ListOptions defines options for listing containers.
type ListOptions struct {
	All     bool              // Include stopped containers
	Filters map[string]string // e.g., {"label": "sh.maestro.deployment=xyz"}
}

// =============================================================================
// Client Interface
// =============================================================================

// Client defines the container runtime interface the orchestrator consumes.
// Implementations must tolerate concurrent calls for different containers.
type Client interface {
	// Container operations
	CreateContainer(ctx context.Context, spec ContainerSpec) (containerID string, err error)
	StartContainer(ctx context.Context, containerID string) error
	StopContainer(ctx context.Context, containerID string, timeout *time.Duration) error
	RemoveContainer(ctx context.Context, containerID string, force bool) error
	InspectContainer(ctx context.Context, containerID string) (*ContainerInfo, error)
	ListContainers(ctx context.Context, opts ListOptions) ([]ContainerInfo, error)
	ContainerStats(ctx context.Context, containerID string) (*ContainerStats, error)

	// Network operations
	CreateNetwork(ctx context.Context, spec NetworkSpec) (networkID string, err error)
	RemoveNetwork(ctx context.Context, networkID string) error

	// Lifecycle
	Ping(ctx context.Context) error
	Close() error
}

// =============================================================================
// Label Constants
// =============================================================================

// Label keys used to identify Maestro-managed runtime objects.
const (
	LabelManaged    = "sh.maestro.managed"
	LabelStrategy   = "sh.maestro.strategy"
	LabelDeployment = "sh.maestro.deployment"
	LabelContainer  = "sh.maestro.container"
)
