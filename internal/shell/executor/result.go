package executor

import (
	"github.com/maestro-sh/maestro/internal/core/domain"
)

// =============================================================================
// Result Types
// =============================================================================

// ContainerResult is the outcome for one container of a deployment operation.
type ContainerResult struct {
	Name        string                      `json:"name"`
	ContainerID string                      `json:"container_id,omitempty"`
	Status      domain.ContainerDeployState `json:"status"`
	State       string                      `json:"state,omitempty"` // raw runtime state, set by inspect/list
	Error       string                      `json:"error,omitempty"`
}

// Result is the serializable outcome of a deployment operation. Expected
// runtime failures live inside it; they are never raised to the caller.
type Result struct {
	Deployment string                      `json:"deployment"`
	Strategy   string                      `json:"strategy,omitempty"`
	Network    string                      `json:"network,omitempty"`
	Status     domain.DeploymentStatus     `json:"status"`
	Containers map[string]*ContainerResult `json:"containers,omitempty"`
	Errors     map[string]string           `json:"errors,omitempty"`
}

func newResult(deployment, strategy string) *Result {
	return &Result{
		Deployment: deployment,
		Strategy:   strategy,
		Status:     domain.StatusPending,
		Containers: make(map[string]*ContainerResult),
		Errors:     make(map[string]string),
	}
}

// container returns the tracked result for name, creating it on first use.
func (r *Result) container(name string) *ContainerResult {
	c, ok := r.Containers[name]
	if !ok {
		c = &ContainerResult{Name: name, Status: domain.ContainerPending}
		r.Containers[name] = c
	}
	return c
}

// fail records a container failure in both the per-container result and the
// error map.
func (r *Result) fail(name, message string) {
	c := r.container(name)
	c.Status = domain.ContainerFailed
	c.Error = message
	r.Errors[name] = message
}

// states flattens the per-container results for aggregation.
func (r *Result) states() []domain.ContainerState {
	out := make([]domain.ContainerState, 0, len(r.Containers))
	for _, c := range r.Containers {
		out = append(out, domain.ContainerState{
			Name:        c.Name,
			ContainerID: c.ContainerID,
			Status:      c.Status,
			Error:       c.Error,
		})
	}
	return out
}

// aggregate recomputes the deployment status from the per-container results.
func (r *Result) aggregate() {
	r.Status = domain.AggregateStatus(r.states())
}
