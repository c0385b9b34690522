package graph

import (
	"testing"
	"time"
)

func buildTestGraph(t *testing.T) *Graph {
	t.Helper()
	g, err := Build([]TaskSpec{
		{ID: "fetch", Name: "Fetch", Phase: 0, Executor: "shell",
			Args: map[string]string{"command": "git fetch"}},
		{ID: "compile", Name: "Compile", Phase: 0, Executor: "shell",
			DependsOn: map[string]DepKind{"fetch": DepRequired}},
		{ID: "test", Name: "Test", Phase: 1, Executor: "shell",
			DependsOn: map[string]DepKind{"compile": DepRequired}},
		{ID: "lint", Name: "Lint", Phase: 1, Executor: "shell",
			DependsOn: map[string]DepKind{"compile": DepOptional}},
		{ID: "report", Name: "Report", Phase: 2, Executor: "shell",
			DependsOn: map[string]DepKind{"test": DepRequired, "lint": DepOptional}},
	})
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	return g
}

func TestBuild_ValidGraph(t *testing.T) {
	g := buildTestGraph(t)

	if g.Len() != 5 {
		t.Errorf("Len() = %d, expected 5", g.Len())
	}
	if g.PhaseCount() != 3 {
		t.Errorf("PhaseCount() = %d, expected 3", g.PhaseCount())
	}
}

func TestBuild_RejectsCycle(t *testing.T) {
	_, err := Build([]TaskSpec{
		{ID: "a", Name: "A", Phase: 0, Executor: "shell",
			DependsOn: map[string]DepKind{"b": DepRequired}},
		{ID: "b", Name: "B", Phase: 0, Executor: "shell",
			DependsOn: map[string]DepKind{"a": DepRequired}},
	})
	if err == nil {
		t.Fatal("Expected error for cyclic graph")
	}
}

func TestBuild_RejectsEmpty(t *testing.T) {
	_, err := Build(nil)
	if err == nil {
		t.Fatal("Expected error for empty spec list")
	}
}

func TestBuild_RejectsDanglingDependency(t *testing.T) {
	_, err := Build([]TaskSpec{
		{ID: "a", Name: "A", Phase: 0, Executor: "shell",
			DependsOn: map[string]DepKind{"missing": DepRequired}},
	})
	if err == nil {
		t.Fatal("Expected error for dangling dependency")
	}
}

func TestGraph_Task(t *testing.T) {
	g := buildTestGraph(t)

	task, ok := g.Task("compile")
	if !ok {
		t.Fatal("Expected to find task compile")
	}
	if task.Name != "Compile" {
		t.Errorf("Name = %q, expected Compile", task.Name)
	}
	if task.Phase != 0 {
		t.Errorf("Phase = %d, expected 0", task.Phase)
	}

	if _, ok := g.Task("missing"); ok {
		t.Error("Expected Task to report missing for unknown ID")
	}
}

func TestGraph_TasksInPhase(t *testing.T) {
	g := buildTestGraph(t)

	phase0 := g.TasksInPhase(0)
	if len(phase0) != 2 {
		t.Fatalf("Expected 2 tasks in phase 0, got %d", len(phase0))
	}
	// Plan order is preserved
	if phase0[0].ID != "fetch" || phase0[1].ID != "compile" {
		t.Errorf("Phase 0 order = [%s, %s], expected [fetch, compile]", phase0[0].ID, phase0[1].ID)
	}

	phase1 := g.TasksInPhase(1)
	if len(phase1) != 2 {
		t.Errorf("Expected 2 tasks in phase 1, got %d", len(phase1))
	}

	if tasks := g.TasksInPhase(9); tasks != nil {
		t.Errorf("Expected nil for empty phase, got %v", tasks)
	}
}

func TestGraph_Phases(t *testing.T) {
	g, err := Build([]TaskSpec{
		{ID: "a", Name: "A", Phase: 2, Executor: "shell"},
		{ID: "b", Name: "B", Phase: 0, Executor: "shell"},
		{ID: "c", Name: "C", Phase: 5, Executor: "shell"},
	})
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}

	phases := g.Phases()
	expected := []int{0, 2, 5}
	if len(phases) != len(expected) {
		t.Fatalf("Phases() = %v, expected %v", phases, expected)
	}
	for i := range expected {
		if phases[i] != expected[i] {
			t.Errorf("Phases()[%d] = %d, expected %d", i, phases[i], expected[i])
		}
	}
	if g.PhaseCount() != 3 {
		t.Errorf("PhaseCount() = %d, expected 3", g.PhaseCount())
	}
}

func TestGraph_DependenciesOf(t *testing.T) {
	g := buildTestGraph(t)

	deps := g.DependenciesOf("report")
	if len(deps) != 2 {
		t.Fatalf("Expected 2 dependencies, got %d", len(deps))
	}
	if deps["test"] != DepRequired {
		t.Errorf("Expected required dependency on test, got %s", deps["test"])
	}
	if deps["lint"] != DepOptional {
		t.Errorf("Expected optional dependency on lint, got %s", deps["lint"])
	}

	if deps := g.DependenciesOf("fetch"); deps != nil {
		t.Errorf("Expected nil for task without dependencies, got %v", deps)
	}
	if deps := g.DependenciesOf("missing"); deps != nil {
		t.Errorf("Expected nil for unknown task, got %v", deps)
	}
}

func TestGraph_DependentsOf(t *testing.T) {
	g := buildTestGraph(t)

	dependents := g.DependentsOf("compile")
	if len(dependents) != 2 {
		t.Fatalf("Expected 2 dependents, got %v", dependents)
	}
	// Sorted order
	if dependents[0] != "lint" || dependents[1] != "test" {
		t.Errorf("DependentsOf(compile) = %v, expected [lint test]", dependents)
	}

	if deps := g.DependentsOf("report"); deps != nil {
		t.Errorf("Expected nil for leaf task, got %v", deps)
	}
}

func TestGraph_TransitiveDependents(t *testing.T) {
	g := buildTestGraph(t)

	all := g.TransitiveDependents("fetch")
	for _, id := range []string{"compile", "test", "lint", "report"} {
		if !all[id] {
			t.Errorf("Expected %s in transitive dependents of fetch", id)
		}
	}
	if all["fetch"] {
		t.Error("A task should not be its own transitive dependent")
	}

	if got := g.TransitiveDependents("report"); len(got) != 0 {
		t.Errorf("Expected no transitive dependents for leaf, got %v", got)
	}
}

func TestGraph_ImmutableAgainstCallerMutation(t *testing.T) {
	specs := []TaskSpec{
		{ID: "a", Name: "A", Phase: 0, Executor: "shell",
			Args: map[string]string{"command": "true"}},
		{ID: "b", Name: "B", Phase: 0, Executor: "shell",
			DependsOn: map[string]DepKind{"a": DepRequired}},
	}

	g, err := Build(specs)
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}

	// Mutating the caller's maps must not reach the graph.
	specs[0].Args["command"] = "false"
	specs[1].DependsOn["a"] = DepOptional

	task, _ := g.Task("a")
	if task.Args["command"] != "true" {
		t.Error("Graph Args were mutated through caller's map")
	}
	deps := g.DependenciesOf("b")
	if deps["a"] != DepRequired {
		t.Error("Graph DependsOn was mutated through caller's map")
	}
}

func TestGraph_AccessorCopiesAreIndependent(t *testing.T) {
	g := buildTestGraph(t)

	deps := g.DependenciesOf("report")
	deps["test"] = DepOptional

	again := g.DependenciesOf("report")
	if again["test"] != DepRequired {
		t.Error("Mutating a returned map leaked into the graph")
	}

	task, _ := g.Task("fetch")
	task.Args["command"] = "mutated"

	fresh, _ := g.Task("fetch")
	if fresh.Args["command"] != "git fetch" {
		t.Errorf("Task().Args mutation leaked into the graph: command = %q", fresh.Args["command"])
	}

	report, _ := g.Task("report")
	report.DependsOn["lint"] = DepRequired
	if kind := g.DependenciesOf("report")["lint"]; kind != DepOptional {
		t.Errorf("Task().DependsOn mutation leaked into the graph: lint edge = %q", kind)
	}

	for _, spec := range g.TasksInPhase(2) {
		spec.DependsOn["test"] = DepOptional
	}
	if kind := g.DependenciesOf("report")["test"]; kind != DepRequired {
		t.Errorf("TasksInPhase() mutation leaked into the graph: test edge = %q", kind)
	}

	for _, spec := range g.Tasks() {
		if spec.Args != nil {
			spec.Args["command"] = "mutated"
		}
	}
	if fetch, _ := g.Task("fetch"); fetch.Args["command"] != "git fetch" {
		t.Errorf("Tasks() mutation leaked into the graph: command = %q", fetch.Args["command"])
	}
}

func TestTaskSpec_Helpers(t *testing.T) {
	spec := TaskSpec{
		ID:   "t",
		Name: "",
		DependsOn: map[string]DepKind{
			"a": DepRequired,
			"b": DepOptional,
			"c": DepRequired,
		},
		Timeout: 5 * time.Second,
	}

	if spec.DisplayName() != "t" {
		t.Errorf("DisplayName() = %q, expected t", spec.DisplayName())
	}
	spec.Name = "Named"
	if spec.DisplayName() != "Named" {
		t.Errorf("DisplayName() = %q, expected Named", spec.DisplayName())
	}

	if !spec.HasDependencies() {
		t.Error("HasDependencies() should be true")
	}

	required := spec.RequiredDependencies()
	if len(required) != 2 {
		t.Errorf("RequiredDependencies() = %v, expected 2 entries", required)
	}
	optional := spec.OptionalDependencies()
	if len(optional) != 1 || optional[0] != "b" {
		t.Errorf("OptionalDependencies() = %v, expected [b]", optional)
	}
}

func TestDepKind(t *testing.T) {
	if !DepRequired.IsValid() || !DepOptional.IsValid() {
		t.Error("Built-in kinds should be valid")
	}
	if DepKind("maybe").IsValid() {
		t.Error("Unknown kind should be invalid")
	}
	if DepRequired.String() != "required" {
		t.Errorf("String() = %q, expected required", DepRequired.String())
	}
}
