package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// =============================================================================
// Strategy Mutation Tests
// =============================================================================

func TestAddContainer(t *testing.T) {
	s := NewStrategy("stack")

	require.NoError(t, s.AddContainer(ContainerSpec{Name: "db", Image: "postgres:16"}))
	require.NoError(t, s.AddContainer(ContainerSpec{Name: "web", Image: "nginx:latest"}))

	assert.Equal(t, []string{"db", "web"}, s.ContainerNames())
}

func TestAddContainer_EmptyName(t *testing.T) {
	s := NewStrategy("stack")
	err := s.AddContainer(ContainerSpec{Image: "nginx"})
	assert.ErrorIs(t, err, ErrEmptyContainerName)
}

func TestAddContainer_DuplicateName(t *testing.T) {
	s := NewStrategy("stack")
	require.NoError(t, s.AddContainer(ContainerSpec{Name: "db", Image: "postgres:16"}))

	err := s.AddContainer(ContainerSpec{Name: "db", Image: "mysql:8"})
	assert.ErrorIs(t, err, ErrDuplicateContainer)
	assert.Len(t, s.Containers, 1, "rejected container must not be added")
}

func TestAddDependency(t *testing.T) {
	s := NewStrategy("stack")
	require.NoError(t, s.AddContainer(ContainerSpec{Name: "db"}))
	require.NoError(t, s.AddContainer(ContainerSpec{Name: "web"}))

	err := s.AddDependency("web", Dependency{On: "db", Condition: ConditionHealthy, Required: true})
	require.NoError(t, err)

	deps := s.DependenciesOf("web")
	require.Len(t, deps, 1)
	assert.Equal(t, "db", deps[0].On)
	assert.Equal(t, ConditionHealthy, deps[0].Condition)
	assert.True(t, deps[0].Required)
}

func TestAddDependency_DefaultsToStarted(t *testing.T) {
	s := NewStrategy("stack")
	require.NoError(t, s.AddContainer(ContainerSpec{Name: "db"}))
	require.NoError(t, s.AddContainer(ContainerSpec{Name: "web"}))

	require.NoError(t, s.AddDependency("web", Dependency{On: "db"}))
	assert.Equal(t, ConditionStarted, s.DependenciesOf("web")[0].Condition)
}

func TestAddDependency_UnknownContainer(t *testing.T) {
	s := NewStrategy("stack")
	require.NoError(t, s.AddContainer(ContainerSpec{Name: "web"}))

	assert.ErrorIs(t, s.AddDependency("web", Dependency{On: "db"}), ErrUnknownContainer)
	assert.ErrorIs(t, s.AddDependency("ghost", Dependency{On: "web"}), ErrUnknownContainer)
}

func TestAddDependency_RejectsCycle(t *testing.T) {
	s := NewStrategy("stack")
	require.NoError(t, s.AddContainer(ContainerSpec{Name: "a"}))
	require.NoError(t, s.AddContainer(ContainerSpec{Name: "b"}))
	require.NoError(t, s.AddDependency("b", Dependency{On: "a"}))

	// a → b would close the loop; rejected before commit.
	err := s.AddDependency("a", Dependency{On: "b"})
	assert.ErrorIs(t, err, ErrDependencyCycle)
	assert.Empty(t, s.DependenciesOf("a"))
}

func TestAddDependency_RejectsSelf(t *testing.T) {
	s := NewStrategy("stack")
	require.NoError(t, s.AddContainer(ContainerSpec{Name: "a"}))
	assert.ErrorIs(t, s.AddDependency("a", Dependency{On: "a"}), ErrDependencyCycle)
}

func TestAddDependency_ReplacesExistingEdge(t *testing.T) {
	s := NewStrategy("stack")
	require.NoError(t, s.AddContainer(ContainerSpec{Name: "db"}))
	require.NoError(t, s.AddContainer(ContainerSpec{Name: "web"}))

	require.NoError(t, s.AddDependency("web", Dependency{On: "db"}))
	require.NoError(t, s.AddDependency("web", Dependency{On: "db", Condition: ConditionHealthy}))

	deps := s.DependenciesOf("web")
	require.Len(t, deps, 1)
	assert.Equal(t, ConditionHealthy, deps[0].Condition)
}

func TestRemoveContainer(t *testing.T) {
	s := NewStrategy("stack")
	require.NoError(t, s.AddContainer(ContainerSpec{Name: "db"}))
	require.NoError(t, s.AddContainer(ContainerSpec{Name: "web"}))
	require.NoError(t, s.AddContainer(ContainerSpec{Name: "worker"}))
	require.NoError(t, s.AddDependency("web", Dependency{On: "db"}))
	require.NoError(t, s.AddDependency("worker", Dependency{On: "db"}))

	require.NoError(t, s.RemoveContainer("db"))

	assert.Equal(t, []string{"web", "worker"}, s.ContainerNames())
	assert.Empty(t, s.DependenciesOf("web"), "edges pointing at a removed container are cascaded away")
	assert.Empty(t, s.DependenciesOf("worker"))

	assert.ErrorIs(t, s.RemoveContainer("db"), ErrUnknownContainer)
}

// =============================================================================
// Validate Tests
// =============================================================================

func TestValidate_OK(t *testing.T) {
	s := NewStrategy("stack")
	require.NoError(t, s.AddContainer(ContainerSpec{Name: "db", Critical: true}))
	require.NoError(t, s.AddContainer(ContainerSpec{Name: "web"}))
	require.NoError(t, s.AddDependency("web", Dependency{On: "db", Condition: ConditionHealthy}))

	assert.NoError(t, s.Validate())
}

func TestValidate_CatchesHandBuiltCycle(t *testing.T) {
	// A strategy decoded from a file bypasses AddDependency's edge check,
	// so Validate has to catch the cycle itself.
	s := &Strategy{
		Name: "stack",
		Containers: []ContainerSpec{
			{Name: "a"}, {Name: "b"},
		},
		Dependencies: map[string][]Dependency{
			"a": {{On: "b"}},
			"b": {{On: "a"}},
		},
	}
	assert.Error(t, s.Validate())
}

func TestValidate_UnknownReference(t *testing.T) {
	s := &Strategy{
		Name:       "stack",
		Containers: []ContainerSpec{{Name: "web"}},
		Dependencies: map[string][]Dependency{
			"web": {{On: "db"}},
		},
	}
	assert.ErrorIs(t, s.Validate(), ErrUnknownContainer)
}

func TestValidate_DuplicateNames(t *testing.T) {
	s := &Strategy{
		Name:       "stack",
		Containers: []ContainerSpec{{Name: "web"}, {Name: "web"}},
	}
	assert.ErrorIs(t, s.Validate(), ErrDuplicateContainer)
}
