// Package executor drives deployments: it turns a strategy into running
// containers, gates dependents on the health of their dependencies, rolls
// back on critical failures, and aggregates per-container outcomes.
package executor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/maestro-sh/maestro/internal/core/domain"
	"github.com/maestro-sh/maestro/internal/core/graph"
	"github.com/maestro-sh/maestro/internal/core/resources"
	"github.com/maestro-sh/maestro/internal/shell/docker"
)

// ErrDeploymentNotFound is returned when no runtime container carries the
// requested deployment label.
var ErrDeploymentNotFound = errors.New("deployment not found")

// HealthChecker is the executor's view of the health monitor: a single
// on-demand check used for health-gated dependencies.
type HealthChecker interface {
	Check(ctx context.Context, containerID string) domain.HealthRecord
}

// Config configures the executor's timeouts.
type Config struct {
	// StartTimeout bounds each create and start call.
	// Default: 30 seconds.
	StartTimeout time.Duration

	// StopTimeout is the grace period given to a container on stop.
	// Default: 10 seconds.
	StopTimeout time.Duration

	// HealthGateTimeout bounds the wait for a health-gated dependency.
	// Default: 60 seconds.
	HealthGateTimeout time.Duration

	// HealthGatePollInterval is the poll cadence during a health gate.
	// Default: 1 second.
	HealthGatePollInterval time.Duration
}

// DefaultConfig returns the default executor configuration.
func DefaultConfig() Config {
	return Config{
		StartTimeout:           30 * time.Second,
		StopTimeout:            10 * time.Second,
		HealthGateTimeout:      60 * time.Second,
		HealthGatePollInterval: time.Second,
	}
}

// Executor is the deployment state machine. Deploy, Stop and Remove run
// synchronously on the caller's goroutine and never return before the
// operation is fully resolved.
type Executor struct {
	docker docker.Client
	health HealthChecker
	config Config
	logger *slog.Logger
}

// New creates a deployment executor.
func New(client docker.Client, health HealthChecker, config Config, logger *slog.Logger) *Executor {
	if config.StartTimeout == 0 {
		config.StartTimeout = 30 * time.Second
	}
	if config.StopTimeout == 0 {
		config.StopTimeout = 10 * time.Second
	}
	if config.HealthGateTimeout == 0 {
		config.HealthGateTimeout = 60 * time.Second
	}
	if config.HealthGatePollInterval == 0 {
		config.HealthGatePollInterval = time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &Executor{
		docker: client,
		health: health,
		config: config,
		logger: logger.With("component", "executor"),
	}
}

type createdContainer struct {
	name string
	id   string
}

// =============================================================================
// Deploy
// =============================================================================

// Deploy instantiates a strategy as a named deployment. Runtime failures are
// recorded per container in the result; a cycle in the dependency graph
// fails the deployment before any runtime call is made.
func (e *Executor) Deploy(ctx context.Context, strategy *domain.Strategy, deploymentName string, envOverrides map[string]map[string]string, networkName string) *Result {
	result := newResult(deploymentName, strategy.Name)
	logger := e.logger.With("deployment", deploymentName, "strategy", strategy.Name)

	order, err := graph.Resolve(strategy.ContainerNames(), strategy.DependencyNames())
	if err != nil {
		logger.Error("dependency resolution failed", "error", err)
		result.Status = domain.StatusFailed
		result.Errors["strategy"] = err.Error()
		return result
	}
	for _, name := range order {
		result.container(name)
	}

	if networkName == "" {
		networkName = deploymentName + "-net"
	}
	networkName = e.ensureNetwork(ctx, deploymentName, networkName, logger)
	result.Network = networkName

	var created []createdContainer

	for _, name := range order {
		spec, _ := strategy.Container(name)

		if !e.awaitDependencies(ctx, strategy, name, result, logger) {
			continue
		}

		res := result.container(name)
		res.Status = domain.ContainerCreating

		runtimeSpec := buildRuntimeSpec(strategy, spec, deploymentName, networkName, envOverrides[name])

		opCtx, cancel := context.WithTimeout(ctx, e.config.StartTimeout)
		id, err := e.docker.CreateContainer(opCtx, runtimeSpec)
		cancel()
		if err != nil {
			logger.Error("create failed", "container", name, "error", err)
			result.fail(name, err.Error())
			if spec.Critical {
				e.failCritical(ctx, result, name, created, logger)
				return result
			}
			continue
		}
		res.ContainerID = id
		created = append(created, createdContainer{name: name, id: id})

		opCtx, cancel = context.WithTimeout(ctx, e.config.StartTimeout)
		err = e.docker.StartContainer(opCtx, id)
		cancel()
		if err != nil {
			logger.Error("start failed", "container", name, "error", err)
			result.fail(name, err.Error())
			if spec.Critical {
				e.failCritical(ctx, result, name, created, logger)
				return result
			}
			continue
		}

		res.Status = domain.ContainerStarted
		logger.Info("container started", "container", name, "container_id", id)
	}

	// Containers nobody health-gated on go straight from Started to Ready.
	for _, c := range result.Containers {
		if c.Status == domain.ContainerStarted || c.Status == domain.ContainerAwaitingHealthy {
			c.Status = domain.ContainerReady
		}
	}
	result.aggregate()
	return result
}

// ensureNetwork creates the shared deployment network. Creation is
// best-effort: on failure the containers simply join the default network.
func (e *Executor) ensureNetwork(ctx context.Context, deploymentName, networkName string, logger *slog.Logger) string {
	_, err := e.docker.CreateNetwork(ctx, docker.NetworkSpec{
		Name: networkName,
		Labels: map[string]string{
			docker.LabelManaged:    "true",
			docker.LabelDeployment: deploymentName,
		},
	})
	if err != nil && !errors.Is(err, docker.ErrNetworkAlreadyExists) {
		logger.Warn("network create failed, using default network", "network", networkName, "error", err)
		return ""
	}
	return networkName
}

// awaitDependencies enforces the container's dependency edges before it is
// created. It reports false when the container must be skipped, in which
// case the failure has been recorded.
func (e *Executor) awaitDependencies(ctx context.Context, strategy *domain.Strategy, name string, result *Result, logger *slog.Logger) bool {
	for _, dep := range strategy.DependenciesOf(name) {
		depRes := result.container(dep.On)

		switch depRes.Status {
		case domain.ContainerFailed, domain.ContainerPending, domain.ContainerRemoved:
			if dep.Required {
				result.fail(name, fmt.Sprintf("required dependency %q is not running", dep.On))
				return false
			}
			logger.Warn("dependency not running, proceeding", "container", name, "dependency", dep.On)
			continue
		}

		if dep.Condition != domain.ConditionHealthy {
			continue
		}

		if e.awaitHealthy(ctx, depRes) {
			continue
		}
		if dep.Required {
			result.fail(name, fmt.Sprintf("required dependency %q did not become healthy within %s", dep.On, e.config.HealthGateTimeout))
			return false
		}
		logger.Warn("health gate timed out, proceeding", "container", name, "dependency", dep.On)
	}
	return true
}

// awaitHealthy polls the health monitor until the dependency reports healthy
// or the gate timeout elapses. The dependency holds the AwaitingHealthy
// state for the duration of the wait; it ends up Ready either way, since it
// did start.
func (e *Executor) awaitHealthy(ctx context.Context, dep *ContainerResult) bool {
	dep.Status = domain.ContainerAwaitingHealthy
	defer func() { dep.Status = domain.ContainerReady }()

	deadline := time.After(e.config.HealthGateTimeout)
	ticker := time.NewTicker(e.config.HealthGatePollInterval)
	defer ticker.Stop()

	for {
		if rec := e.health.Check(ctx, dep.ContainerID); rec.Status == domain.HealthHealthy {
			return true
		}
		select {
		case <-ctx.Done():
			return false
		case <-deadline:
			return false
		case <-ticker.C:
		}
	}
}

// failCritical handles a failed critical container: every container created
// earlier in this attempt is rolled back in reverse creation order, rollback
// errors are collected, and the deployment is marked Failed.
func (e *Executor) failCritical(ctx context.Context, result *Result, name string, created []createdContainer, logger *slog.Logger) {
	logger.Error("critical container failed, rolling back", "container", name)

	for i := len(created) - 1; i >= 0; i-- {
		c := created[i]
		timeout := e.config.StopTimeout

		if err := e.docker.StopContainer(ctx, c.id, &timeout); err != nil && !errors.Is(err, docker.ErrContainerNotRunning) {
			result.Errors["rollback:"+c.name] = err.Error()
		}
		if err := e.docker.RemoveContainer(ctx, c.id, true); err != nil {
			result.Errors["rollback:"+c.name] = err.Error()
			continue
		}
		result.container(c.name).Status = domain.ContainerRemoved
	}

	result.Status = domain.StatusFailed
	result.Errors["critical"] = fmt.Sprintf("critical container %q failed: deployment rolled back", name)
}

// buildRuntimeSpec translates a strategy container spec into a runtime spec:
// env override merge, policy-derived resource limits, identifying labels.
func buildRuntimeSpec(strategy *domain.Strategy, spec domain.ContainerSpec, deploymentName, networkName string, envOverride map[string]string) docker.ContainerSpec {
	env := make(map[string]string, len(spec.Env)+len(envOverride))
	for k, v := range spec.Env {
		env[k] = v
	}
	for k, v := range envOverride {
		env[k] = v
	}

	var limits docker.ResourceLimits
	effective := strategy.Policy.EffectiveLimits(spec.Name)
	if v, ok := effective["cpus"]; ok {
		if cpus, ok := resources.ParseCPUs(v); ok {
			limits.CPULimit = cpus
		}
	}
	if v, ok := effective["memory"]; ok {
		if b, ok := resources.ParseBytes(v); ok {
			limits.MemoryLimit = b
		}
	}

	ports := make([]docker.PortBinding, 0, len(spec.Ports))
	for _, p := range spec.Ports {
		ports = append(ports, docker.PortBinding{
			ContainerPort: p.ContainerPort,
			HostPort:      p.HostPort,
			Protocol:      p.Protocol,
		})
	}

	volumes := make([]docker.VolumeMount, 0, len(spec.Volumes))
	for _, v := range spec.Volumes {
		volumes = append(volumes, docker.VolumeMount{
			Source:   v.Source,
			Target:   v.Target,
			ReadOnly: v.ReadOnly,
		})
	}

	rs := docker.ContainerSpec{
		Name:    deploymentName + "-" + spec.Name,
		Image:   spec.Image,
		Command: spec.Command,
		Env:     env,
		Labels: map[string]string{
			docker.LabelManaged:    "true",
			docker.LabelStrategy:   strategy.Name,
			docker.LabelDeployment: deploymentName,
			docker.LabelContainer:  spec.Name,
		},
		Ports:         ports,
		Volumes:       volumes,
		RestartPolicy: strategy.RestartPolicy,
		Resources:     limits,
	}
	if networkName != "" {
		rs.Networks = []string{networkName}
	}
	return rs
}

// =============================================================================
// Stop / Remove
// =============================================================================

// Stop stops every container of a deployment in reverse creation order.
// Containers are left in place; errors are collected per container.
func (e *Executor) Stop(ctx context.Context, deploymentName string, timeout time.Duration) (*Result, error) {
	infos, err := e.discover(ctx, deploymentName)
	if err != nil {
		return nil, err
	}
	if len(infos) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrDeploymentNotFound, deploymentName)
	}
	if timeout == 0 {
		timeout = e.config.StopTimeout
	}

	result := newResult(deploymentName, strategyLabel(infos))
	failed := 0

	for i := len(infos) - 1; i >= 0; i-- {
		info := infos[i]
		name := containerLabel(info)
		res := result.container(name)
		res.ContainerID = info.ID

		err := e.docker.StopContainer(ctx, info.ID, &timeout)
		if err != nil && !errors.Is(err, docker.ErrContainerNotRunning) {
			result.fail(name, err.Error())
			failed++
			continue
		}
		res.Status = domain.ContainerStopped
	}

	result.Status = aggregateOutcome(len(infos), failed, domain.StatusStopped)
	return result, nil
}

// Remove stops (unless force) and removes every container of a deployment in
// reverse creation order, then removes the deployment network best-effort.
func (e *Executor) Remove(ctx context.Context, deploymentName string, force bool) (*Result, error) {
	infos, err := e.discover(ctx, deploymentName)
	if err != nil {
		return nil, err
	}
	if len(infos) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrDeploymentNotFound, deploymentName)
	}

	result := newResult(deploymentName, strategyLabel(infos))
	failed := 0

	for i := len(infos) - 1; i >= 0; i-- {
		info := infos[i]
		name := containerLabel(info)
		res := result.container(name)
		res.ContainerID = info.ID

		if !force {
			timeout := e.config.StopTimeout
			if err := e.docker.StopContainer(ctx, info.ID, &timeout); err != nil && !errors.Is(err, docker.ErrContainerNotRunning) {
				e.logger.Warn("stop before remove failed", "container", name, "error", err)
			}
		}

		if err := e.docker.RemoveContainer(ctx, info.ID, force); err != nil {
			result.fail(name, err.Error())
			failed++
			continue
		}
		res.Status = domain.ContainerRemoved
	}

	// The shared network is only removable once its containers are gone.
	if err := e.docker.RemoveNetwork(ctx, deploymentName+"-net"); err != nil && !errors.Is(err, docker.ErrNetworkNotFound) {
		e.logger.Debug("network remove failed", "deployment", deploymentName, "error", err)
	}

	result.Status = aggregateOutcome(len(infos), failed, domain.StatusStopped)
	return result, nil
}

// =============================================================================
// Inspect / List
// =============================================================================

// Inspect reports a deployment's status derived purely from the current
// runtime state of its containers.
func (e *Executor) Inspect(ctx context.Context, deploymentName string) (*Result, error) {
	infos, err := e.discover(ctx, deploymentName)
	if err != nil {
		return nil, err
	}
	if len(infos) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrDeploymentNotFound, deploymentName)
	}
	return resultFromRuntime(deploymentName, infos), nil
}

// List reports every managed deployment, sorted by name.
func (e *Executor) List(ctx context.Context) ([]*Result, error) {
	infos, err := e.docker.ListContainers(ctx, docker.ListOptions{
		All:     true,
		Filters: map[string]string{"label": docker.LabelManaged + "=true"},
	})
	if err != nil {
		return nil, err
	}

	byDeployment := make(map[string][]docker.ContainerInfo)
	for _, info := range infos {
		dep := info.Labels[docker.LabelDeployment]
		if dep == "" {
			continue
		}
		byDeployment[dep] = append(byDeployment[dep], info)
	}

	names := make([]string, 0, len(byDeployment))
	for name := range byDeployment {
		names = append(names, name)
	}
	sort.Strings(names)

	results := make([]*Result, 0, len(names))
	for _, name := range names {
		results = append(results, resultFromRuntime(name, byDeployment[name]))
	}
	return results, nil
}

// =============================================================================
// Helpers
// =============================================================================

// discover finds a deployment's containers by label, oldest first, so that
// index order matches creation order.
func (e *Executor) discover(ctx context.Context, deploymentName string) ([]docker.ContainerInfo, error) {
	infos, err := e.docker.ListContainers(ctx, docker.ListOptions{
		All:     true,
		Filters: map[string]string{"label": docker.LabelDeployment + "=" + deploymentName},
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(infos, func(i, j int) bool {
		return infos[i].CreatedAt.Before(infos[j].CreatedAt)
	})
	return infos, nil
}

func resultFromRuntime(deploymentName string, infos []docker.ContainerInfo) *Result {
	result := newResult(deploymentName, strategyLabel(infos))

	statuses := make([]string, 0, len(infos))
	for _, info := range infos {
		name := containerLabel(info)
		res := result.container(name)
		res.ContainerID = info.ID
		res.State = info.State
		if info.State == "running" {
			res.Status = domain.ContainerReady
		} else {
			res.Status = domain.ContainerStopped
		}
		statuses = append(statuses, info.State)
	}

	result.Status = domain.AggregateFromRuntime(statuses)
	return result
}

func aggregateOutcome(total, failed int, success domain.DeploymentStatus) domain.DeploymentStatus {
	switch {
	case failed == 0:
		return success
	case failed == total:
		return domain.StatusFailed
	default:
		return domain.StatusPartial
	}
}

func strategyLabel(infos []docker.ContainerInfo) string {
	for _, info := range infos {
		if s := info.Labels[docker.LabelStrategy]; s != "" {
			return s
		}
	}
	return ""
}

func containerLabel(info docker.ContainerInfo) string {
	if name := info.Labels[docker.LabelContainer]; name != "" {
		return name
	}
	return info.Name
}
