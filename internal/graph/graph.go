package graph

import (
	"sort"
)

// Graph is an immutable, validated task graph.
//
// All accessors return copies; a Graph never changes after Build and is
// safe for concurrent use without locking.
type Graph struct {
	specs      []TaskSpec          // insertion order from the plan
	index      map[string]int      // task ID -> position in specs
	phases     []int               // distinct phase indices, ascending
	byPhase    map[int][]int       // phase -> positions in specs
	dependents map[string][]string // task ID -> dependent task IDs, sorted
}

// Build validates the given specs and constructs a Graph from them.
// It fails with the first error-severity finding: duplicate or missing
// IDs, dangling or self dependencies, phase-ordering violations, and
// dependency cycles all reject the graph before any run is created.
func Build(specs []TaskSpec) (*Graph, error) {
	result := Validate(specs)
	if result.HasErrors() {
		return nil, result.AsError()
	}

	g := &Graph{
		specs:      make([]TaskSpec, len(specs)),
		index:      make(map[string]int, len(specs)),
		byPhase:    make(map[int][]int),
		dependents: make(map[string][]string),
	}

	for i, spec := range specs {
		// Maps are cloned on the way in so later mutation of the
		// caller's specs cannot reach into the graph.
		g.specs[i] = spec.clone()
		g.index[spec.ID] = i
		g.byPhase[spec.Phase] = append(g.byPhase[spec.Phase], i)

		for depID := range spec.DependsOn {
			g.dependents[depID] = append(g.dependents[depID], spec.ID)
		}
	}

	for phase := range g.byPhase {
		g.phases = append(g.phases, phase)
	}
	sort.Ints(g.phases)

	for depID := range g.dependents {
		sort.Strings(g.dependents[depID])
	}

	return g, nil
}

// Len returns the number of tasks in the graph.
func (g *Graph) Len() int {
	return len(g.specs)
}

// Task returns the spec for the given task ID. The returned spec's maps
// are cloned on the way out; mutating them cannot reach into the graph.
func (g *Graph) Task(id string) (TaskSpec, bool) {
	i, ok := g.index[id]
	if !ok {
		return TaskSpec{}, false
	}
	return g.specs[i].clone(), true
}

// HasTask returns true if the graph contains the given task ID.
func (g *Graph) HasTask(id string) bool {
	_, ok := g.index[id]
	return ok
}

// Tasks returns all task specs in plan order.
func (g *Graph) Tasks() []TaskSpec {
	out := make([]TaskSpec, len(g.specs))
	for i := range g.specs {
		out[i] = g.specs[i].clone()
	}
	return out
}

// TaskIDs returns all task IDs in plan order.
func (g *Graph) TaskIDs() []string {
	out := make([]string, len(g.specs))
	for i := range g.specs {
		out[i] = g.specs[i].ID
	}
	return out
}

// Phases returns the distinct phase indices in ascending order.
// Phases with no tasks do not appear.
func (g *Graph) Phases() []int {
	out := make([]int, len(g.phases))
	copy(out, g.phases)
	return out
}

// PhaseCount returns the number of distinct phases in the graph.
func (g *Graph) PhaseCount() int {
	return len(g.phases)
}

// TasksInPhase returns the specs of all tasks in the given phase, in plan
// order. Returns nil for a phase with no tasks.
func (g *Graph) TasksInPhase(phase int) []TaskSpec {
	positions, ok := g.byPhase[phase]
	if !ok {
		return nil
	}
	out := make([]TaskSpec, len(positions))
	for i, pos := range positions {
		out[i] = g.specs[pos].clone()
	}
	return out
}

// DependenciesOf returns the dependency edges of the given task as a map
// from dependency ID to edge kind. Returns nil for unknown tasks or tasks
// with no dependencies.
func (g *Graph) DependenciesOf(id string) map[string]DepKind {
	i, ok := g.index[id]
	if !ok {
		return nil
	}
	deps := g.specs[i].DependsOn
	if len(deps) == 0 {
		return nil
	}
	out := make(map[string]DepKind, len(deps))
	for depID, kind := range deps {
		out[depID] = kind
	}
	return out
}

// DependentsOf returns the IDs of all tasks that depend on the given
// task, sorted. Returns nil when no task depends on it.
func (g *Graph) DependentsOf(id string) []string {
	deps, ok := g.dependents[id]
	if !ok {
		return nil
	}
	out := make([]string, len(deps))
	copy(out, deps)
	return out
}

// TransitiveDependents returns the set of all tasks that directly or
// indirectly depend on the given task through edges of any kind.
func (g *Graph) TransitiveDependents(id string) map[string]bool {
	out := make(map[string]bool)

	var walk func(string)
	walk = func(current string) {
		for _, dep := range g.dependents[current] {
			if !out[dep] {
				out[dep] = true
				walk(dep)
			}
		}
	}
	walk(id)

	return out
}
