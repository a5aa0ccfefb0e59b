// Package graph resolves container dependency graphs into startup order.
// It is pure computation with no I/O.
package graph

import (
	"fmt"
	"strings"
)

// =============================================================================
// Cycle Error
// =============================================================================

// CycleError is returned when the dependency graph contains a cycle.
// Remaining lists, in declaration order, the containers that could not be
// scheduled because they sit on or behind the cycle.
type CycleError struct {
	Remaining []string
}

func (e *CycleError) Error() string {
	return fmt.Sprintf("dependency cycle detected among: %s", strings.Join(e.Remaining, ", "))
}

// =============================================================================
// Startup Order Resolution
// =============================================================================

// Resolve computes a dependency-correct startup order using Kahn's algorithm.
//
// order is the declaration order of the containers and doubles as the
// deterministic tie-break: among currently-eligible containers (in-degree
// zero) the one declared first is always scheduled first, so the result is
// stable across runs regardless of map iteration order.
//
// Dependencies pointing at names absent from order are ignored rather than
// counted, so a dangling reference cannot deadlock resolution; strategy
// validation rejects those edges before they get here.
//
// If any containers remain unscheduled after the queue drains, the graph
// contains a cycle and Resolve fails with *CycleError naming them. They are
// never silently appended to the result.
func Resolve(order []string, deps map[string][]string) ([]string, error) {
	if len(order) == 0 {
		return nil, nil
	}

	known := make(map[string]struct{}, len(order))
	for _, name := range order {
		known[name] = struct{}{}
	}

	inDegree := make(map[string]int, len(order))
	dependents := make(map[string][]string)
	for _, name := range order {
		count := 0
		for _, dep := range deps[name] {
			if _, ok := known[dep]; !ok {
				continue
			}
			count++
			dependents[dep] = append(dependents[dep], name)
		}
		inDegree[name] = count
	}

	result := make([]string, 0, len(order))
	scheduled := make(map[string]struct{}, len(order))

	for len(result) < len(order) {
		// Pick the first declared container whose dependencies are all met.
		next := ""
		for _, name := range order {
			if _, done := scheduled[name]; done {
				continue
			}
			if inDegree[name] == 0 {
				next = name
				break
			}
		}
		if next == "" {
			break
		}

		result = append(result, next)
		scheduled[next] = struct{}{}
		for _, dep := range dependents[next] {
			inDegree[dep]--
		}
	}

	if len(result) < len(order) {
		var remaining []string
		for _, name := range order {
			if _, done := scheduled[name]; !done {
				remaining = append(remaining, name)
			}
		}
		return nil, &CycleError{Remaining: remaining}
	}

	return result, nil
}

// =============================================================================
// Edge Validation
// =============================================================================

// WouldCreateCycle reports whether adding the edge "container depends on
// newDep" would close a cycle. It walks the existing graph from newDep and
// checks whether container is reachable; a self-dependency is always a cycle.
func WouldCreateCycle(deps map[string][]string, container, newDep string) bool {
	if container == newDep {
		return true
	}

	visited := make(map[string]struct{})
	stack := []string{newDep}
	for len(stack) > 0 {
		current := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		if current == container {
			return true
		}
		if _, seen := visited[current]; seen {
			continue
		}
		visited[current] = struct{}{}

		stack = append(stack, deps[current]...)
	}
	return false
}
