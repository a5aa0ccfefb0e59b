// Package domain contains the core domain types for Maestro.
package domain

import (
	"errors"
	"fmt"

	"github.com/maestro-sh/maestro/internal/core/graph"
	"github.com/maestro-sh/maestro/internal/core/resources"
)

// =============================================================================
// Configuration Errors
// =============================================================================

var (
	// ErrEmptyContainerName is returned when a container spec has no name.
	ErrEmptyContainerName = errors.New("container name must not be empty")

	// ErrDuplicateContainer is returned when a container name already exists
	// in the strategy.
	ErrDuplicateContainer = errors.New("duplicate container name")

	// ErrUnknownContainer is returned when a dependency references a container
	// that is not part of the strategy.
	ErrUnknownContainer = errors.New("unknown container")

	// ErrDependencyCycle is returned when adding a dependency would create a
	// cycle in the dependency graph.
	ErrDependencyCycle = errors.New("dependency would create a cycle")
)

// =============================================================================
// Container Spec
// =============================================================================

// PortMapping represents a port mapping.
type PortMapping struct {
	ContainerPort int    `json:"container_port" yaml:"container_port"`
	HostPort      int    `json:"host_port" yaml:"host_port"`
	Protocol      string `json:"protocol,omitempty" yaml:"protocol,omitempty"` // tcp, udp
}

// VolumeMount represents a volume mount.
type VolumeMount struct {
	Source   string `json:"source" yaml:"source"`
	Target   string `json:"target" yaml:"target"`
	ReadOnly bool   `json:"read_only,omitempty" yaml:"read_only,omitempty"`
}

// ContainerSpec is one container's desired configuration within a strategy.
type ContainerSpec struct {
	Name     string            `json:"name" yaml:"name"`
	Image    string            `json:"image" yaml:"image"`
	Command  []string          `json:"command,omitempty" yaml:"command,omitempty"`
	Ports    []PortMapping     `json:"ports,omitempty" yaml:"ports,omitempty"`
	Volumes  []VolumeMount     `json:"volumes,omitempty" yaml:"volumes,omitempty"`
	Env      map[string]string `json:"env,omitempty" yaml:"env,omitempty"`
	Critical bool              `json:"critical,omitempty" yaml:"critical,omitempty"`
}

// =============================================================================
// Dependencies
// =============================================================================

// DependencyCondition describes what state a dependency must reach before the
// dependent container is created.
type DependencyCondition string

const (
	// ConditionStarted gates only on the dependency having been started.
	ConditionStarted DependencyCondition = "started"

	// ConditionHealthy gates the dependent on the dependency reporting
	// healthy via the health monitor.
	ConditionHealthy DependencyCondition = "healthy"
)

// Dependency is one edge in a strategy's dependency graph.
type Dependency struct {
	On        string              `json:"on" yaml:"on"`
	Condition DependencyCondition `json:"condition,omitempty" yaml:"condition,omitempty"`
	Required  bool                `json:"required,omitempty" yaml:"required,omitempty"`
}

// =============================================================================
// Strategy
// =============================================================================

// Strategy is a named, reusable multi-container deployment definition.
// The Containers slice is the declaration order, which the resolver uses as
// the deterministic tie-break when computing startup order.
type Strategy struct {
	Name          string                  `json:"name" yaml:"name"`
	Containers    []ContainerSpec         `json:"containers" yaml:"containers"`
	Dependencies  map[string][]Dependency `json:"dependencies,omitempty" yaml:"dependencies,omitempty"`
	Policy        resources.Policy        `json:"policy" yaml:"policy"`
	RestartPolicy string                  `json:"restart_policy,omitempty" yaml:"restart_policy,omitempty"`
}

// NewStrategy creates an empty strategy.
func NewStrategy(name string) *Strategy {
	return &Strategy{
		Name:         name,
		Dependencies: make(map[string][]Dependency),
		Policy:       resources.NewPolicy(),
	}
}

// ContainerNames returns the container names in declaration order.
func (s *Strategy) ContainerNames() []string {
	names := make([]string, 0, len(s.Containers))
	for _, c := range s.Containers {
		names = append(names, c.Name)
	}
	return names
}

// Container returns the spec for the named container.
func (s *Strategy) Container(name string) (ContainerSpec, bool) {
	for _, c := range s.Containers {
		if c.Name == name {
			return c, true
		}
	}
	return ContainerSpec{}, false
}

// HasContainer reports whether the strategy defines the named container.
func (s *Strategy) HasContainer(name string) bool {
	_, ok := s.Container(name)
	return ok
}

// AddContainer adds a container spec to the strategy.
// Names must be non-empty and unique within the strategy.
func (s *Strategy) AddContainer(spec ContainerSpec) error {
	if spec.Name == "" {
		return ErrEmptyContainerName
	}
	if s.HasContainer(spec.Name) {
		return fmt.Errorf("%w: %s", ErrDuplicateContainer, spec.Name)
	}
	s.Containers = append(s.Containers, spec)
	return nil
}

// RemoveContainer removes a container and cascades its removal out of the
// dependency graph: both its own edges and any edges pointing at it.
func (s *Strategy) RemoveContainer(name string) error {
	idx := -1
	for i, c := range s.Containers {
		if c.Name == name {
			idx = i
			break
		}
	}
	if idx < 0 {
		return fmt.Errorf("%w: %s", ErrUnknownContainer, name)
	}
	s.Containers = append(s.Containers[:idx], s.Containers[idx+1:]...)

	delete(s.Dependencies, name)
	for from, deps := range s.Dependencies {
		kept := deps[:0]
		for _, d := range deps {
			if d.On != name {
				kept = append(kept, d)
			}
		}
		if len(kept) == 0 {
			delete(s.Dependencies, from)
		} else {
			s.Dependencies[from] = kept
		}
	}
	return nil
}

// AddDependency records that container depends on dep. Both containers must
// exist in the strategy and the new edge must not close a cycle; the edge is
// validated before it is committed.
func (s *Strategy) AddDependency(container string, dep Dependency) error {
	if !s.HasContainer(container) {
		return fmt.Errorf("%w: %s", ErrUnknownContainer, container)
	}
	if !s.HasContainer(dep.On) {
		return fmt.Errorf("%w: %s", ErrUnknownContainer, dep.On)
	}
	if dep.Condition == "" {
		dep.Condition = ConditionStarted
	}
	if graph.WouldCreateCycle(s.DependencyNames(), container, dep.On) {
		return fmt.Errorf("%w: %s -> %s", ErrDependencyCycle, container, dep.On)
	}
	if s.Dependencies == nil {
		s.Dependencies = make(map[string][]Dependency)
	}
	for i, existing := range s.Dependencies[container] {
		if existing.On == dep.On {
			s.Dependencies[container][i] = dep
			return nil
		}
	}
	s.Dependencies[container] = append(s.Dependencies[container], dep)
	return nil
}

// DependencyNames flattens the dependency graph to name → dependency names,
// the shape the graph resolver consumes.
func (s *Strategy) DependencyNames() map[string][]string {
	out := make(map[string][]string, len(s.Dependencies))
	for from, deps := range s.Dependencies {
		names := make([]string, 0, len(deps))
		for _, d := range deps {
			names = append(names, d.On)
		}
		out[from] = names
	}
	return out
}

// DependenciesOf returns the dependency edges declared by the named container.
func (s *Strategy) DependenciesOf(name string) []Dependency {
	return s.Dependencies[name]
}

// Validate checks the whole strategy definition: unique non-empty names,
// every dependency edge referencing a known container, and an acyclic graph.
func (s *Strategy) Validate() error {
	seen := make(map[string]struct{}, len(s.Containers))
	for _, c := range s.Containers {
		if c.Name == "" {
			return ErrEmptyContainerName
		}
		if _, dup := seen[c.Name]; dup {
			return fmt.Errorf("%w: %s", ErrDuplicateContainer, c.Name)
		}
		seen[c.Name] = struct{}{}
	}
	for from, deps := range s.Dependencies {
		if _, ok := seen[from]; !ok {
			return fmt.Errorf("%w: %s", ErrUnknownContainer, from)
		}
		for _, d := range deps {
			if _, ok := seen[d.On]; !ok {
				return fmt.Errorf("%w: %s", ErrUnknownContainer, d.On)
			}
		}
	}
	if _, err := graph.Resolve(s.ContainerNames(), s.DependencyNames()); err != nil {
		return err
	}
	return nil
}
