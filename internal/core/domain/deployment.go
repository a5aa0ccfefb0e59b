package domain

import (
	"time"

	"github.com/google/uuid"
)

// =============================================================================
// Deployment Status
// =============================================================================

// DeploymentStatus is the aggregate status of a deployment. It is always a
// pure function of the per-container statuses.
type DeploymentStatus string

const (
	StatusPending DeploymentStatus = "pending"
	StatusRunning DeploymentStatus = "running"
	StatusPartial DeploymentStatus = "partial"
	StatusFailed  DeploymentStatus = "failed"
	StatusStopped DeploymentStatus = "stopped"
)

// =============================================================================
// Per-Container States
// =============================================================================

// ContainerDeployState tracks a single container through the deployment
// state machine: Pending → Creating → Started → (AwaitingHealthy →) Ready,
// or Failed at any create/start step.
type ContainerDeployState string

const (
	ContainerPending         ContainerDeployState = "pending"
	ContainerCreating        ContainerDeployState = "creating"
	ContainerStarted         ContainerDeployState = "started"
	ContainerAwaitingHealthy ContainerDeployState = "awaiting_healthy"
	ContainerReady           ContainerDeployState = "ready"
	ContainerFailed          ContainerDeployState = "failed"
	ContainerStopped         ContainerDeployState = "stopped"
	ContainerRemoved         ContainerDeployState = "removed"
)

// ContainerState is the recorded outcome for one container of a deployment.
type ContainerState struct {
	Name        string               `json:"name"`
	ContainerID string               `json:"container_id,omitempty"`
	Status      ContainerDeployState `json:"status"`
	Error       string               `json:"error,omitempty"`
}

// =============================================================================
// Deployment Record
// =============================================================================

// Deployment is one live, named instantiation of a strategy.
type Deployment struct {
	ID           string            `json:"id"`
	Name         string            `json:"name"`
	StrategyName string            `json:"strategy_name"`
	NetworkName  string            `json:"network_name,omitempty"`
	Status       DeploymentStatus  `json:"status"`
	Containers   []ContainerState  `json:"containers,omitempty"`
	Errors       map[string]string `json:"errors,omitempty"`
	CreatedAt    time.Time         `json:"created_at"`
	UpdatedAt    time.Time         `json:"updated_at"`
}

// NewDeployment creates a pending deployment record for a strategy.
func NewDeployment(name, strategyName string) *Deployment {
	now := time.Now().UTC()
	return &Deployment{
		ID:           uuid.New().String(),
		Name:         name,
		StrategyName: strategyName,
		Status:       StatusPending,
		Errors:       make(map[string]string),
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}

// =============================================================================
// Status Aggregation (Pure Functions)
// =============================================================================

// AggregateStatus derives the deployment status from per-container deploy
// outcomes: Running when every container is Ready, Failed when nothing made
// it, Partial for a mix.
func AggregateStatus(containers []ContainerState) DeploymentStatus {
	if len(containers) == 0 {
		return StatusPending
	}

	ready, failed := 0, 0
	for _, c := range containers {
		switch c.Status {
		case ContainerReady:
			ready++
		case ContainerFailed:
			failed++
		}
	}

	switch {
	case ready == len(containers):
		return StatusRunning
	case failed == len(containers):
		return StatusFailed
	case failed > 0:
		return StatusPartial
	default:
		return StatusPending
	}
}

// AggregateFromRuntime derives the deployment status from the raw runtime
// statuses of its containers, as reported by the container engine
// ("running", "exited", ...). Used by inspect and list, which never consult
// stored state.
func AggregateFromRuntime(statuses []string) DeploymentStatus {
	if len(statuses) == 0 {
		return StatusStopped
	}

	running := 0
	for _, s := range statuses {
		if s == "running" {
			running++
		}
	}

	switch running {
	case len(statuses):
		return StatusRunning
	case 0:
		return StatusStopped
	default:
		return StatusPartial
	}
}
