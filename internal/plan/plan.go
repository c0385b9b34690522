// Package plan loads run definitions from YAML or JSON documents and
// normalizes them into the task specs that the graph package validates.
//
// A plan file declares the tasks of a run (with their phases, dependencies,
// and executor bindings), the checkpoint gates between phases, and optional
// defaults that apply to every task that does not override them. Parsing is
// deliberately lenient: the plan layer only rejects problems that would be
// lost in translation to a task graph (duplicate dependency references,
// malformed gates); everything structural about tasks and dependencies is
// left to graph validation, which is the single place those checks happen.
package plan

import (
	"encoding/json"
	"fmt"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/gantryhq/gantry/internal/errors"
	"github.com/gantryhq/gantry/internal/graph"
)

// Plan is a parsed run definition.
type Plan struct {
	// Name identifies the plan in logs and run listings. When empty, Load
	// derives it from the file name.
	Name string `yaml:"name,omitempty" json:"name,omitempty"`
	// Defaults apply to every task that does not set the field itself.
	Defaults Defaults `yaml:"defaults,omitempty" json:"defaults,omitempty"`
	// Tasks are the units of work in this plan.
	Tasks []TaskEntry `yaml:"tasks" json:"tasks"`
	// Gates are checkpoint gates that hold the run between phases.
	Gates []GateEntry `yaml:"gates,omitempty" json:"gates,omitempty"`
}

// Defaults holds plan-wide fallback values for per-task fields.
type Defaults struct {
	// Executor names the executor used by tasks that do not set one.
	Executor string `yaml:"executor,omitempty" json:"executor,omitempty"`
	// Timeout bounds task execution for tasks that do not set one.
	Timeout Duration `yaml:"timeout,omitempty" json:"timeout,omitempty"`
	// MaxRetries is the retry budget for tasks that do not set one.
	MaxRetries int `yaml:"max_retries,omitempty" json:"max_retries,omitempty"`
	// Fatal marks every task fatal unless the task overrides it.
	Fatal bool `yaml:"fatal,omitempty" json:"fatal,omitempty"`
}

// TaskEntry is one task as written in a plan document.
//
// Pointer fields distinguish "not set" from an explicit zero value so that
// plan defaults only fill genuinely absent fields.
type TaskEntry struct {
	// ID uniquely identifies the task within the plan.
	ID string `yaml:"id" json:"id"`
	// Name is a human-readable label (optional; falls back to ID).
	Name string `yaml:"name,omitempty" json:"name,omitempty"`
	// Phase is the zero-based phase this task runs in.
	Phase int `yaml:"phase" json:"phase"`
	// Needs lists dependencies on other tasks, each either a bare task ID
	// (required) or a mapping with an explicit kind.
	Needs []Need `yaml:"needs,omitempty" json:"needs,omitempty"`
	// Executor names the registered executor that runs this task.
	Executor string `yaml:"executor,omitempty" json:"executor,omitempty"`
	// Args are passed through to the executor untouched.
	Args map[string]string `yaml:"args,omitempty" json:"args,omitempty"`
	// Fatal marks this task's failure as run-fatal.
	Fatal *bool `yaml:"fatal,omitempty" json:"fatal,omitempty"`
	// ContentType describes the artifact this task produces.
	ContentType string `yaml:"content_type,omitempty" json:"content_type,omitempty"`
	// Timeout bounds a single execution attempt.
	Timeout Duration `yaml:"timeout,omitempty" json:"timeout,omitempty"`
	// MaxRetries is the number of additional attempts after a failure.
	MaxRetries *int `yaml:"max_retries,omitempty" json:"max_retries,omitempty"`
}

// Need is a dependency reference inside a task's needs list.
//
// Plan documents may write a need as a bare string, which is shorthand for a
// required dependency:
//
//	needs:
//	  - compile
//	  - id: lint
//	    kind: optional
type Need struct {
	// ID is the depended-on task's ID.
	ID string `yaml:"id" json:"id"`
	// Kind is "required" or "optional"; empty means required.
	Kind string `yaml:"kind,omitempty" json:"kind,omitempty"`
}

// UnmarshalYAML accepts either a bare task ID or a mapping with id and kind.
func (n *Need) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind == yaml.ScalarNode {
		return value.Decode(&n.ID)
	}
	type needWire Need
	var wire needWire
	if err := value.Decode(&wire); err != nil {
		return err
	}
	*n = Need(wire)
	return nil
}

// UnmarshalJSON accepts either a bare task ID or an object with id and kind.
func (n *Need) UnmarshalJSON(data []byte) error {
	if len(data) > 0 && data[0] == '"' {
		return json.Unmarshal(data, &n.ID)
	}
	type needWire Need
	var wire needWire
	if err := json.Unmarshal(data, &wire); err != nil {
		return err
	}
	*n = Need(wire)
	return nil
}

// depKind maps the written kind onto the graph's dependency kinds. Unknown
// kinds pass through unchanged so graph validation can report them.
func (n Need) depKind() graph.DepKind {
	switch n.Kind {
	case "", string(graph.DepRequired):
		return graph.DepRequired
	case string(graph.DepOptional):
		return graph.DepOptional
	default:
		return graph.DepKind(n.Kind)
	}
}

// GateEntry declares a checkpoint gate that holds the run after a phase
// completes until the gate is approved, rejected, or timed out.
type GateEntry struct {
	// ID identifies the gate in control operations. Defaults to
	// "phase-<after_phase>" when empty.
	ID string `yaml:"id,omitempty" json:"id,omitempty"`
	// AfterPhase is the phase whose completion this gate guards.
	AfterPhase int `yaml:"after_phase" json:"after_phase"`
	// AutoApprove resolves the gate immediately without waiting.
	AutoApprove bool `yaml:"auto_approve,omitempty" json:"auto_approve,omitempty"`
	// Timeout rejects the gate if no decision arrives in time. Zero means
	// wait indefinitely.
	Timeout Duration `yaml:"timeout,omitempty" json:"timeout,omitempty"`
}

// Duration wraps time.Duration so plan documents can write durations as
// strings such as "90s" or "5m" in both YAML and JSON.
type Duration time.Duration

// Std returns the wrapped time.Duration.
func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

// String returns the duration in time.Duration notation.
func (d Duration) String() string {
	return time.Duration(d).String()
}

// UnmarshalYAML decodes a duration string such as "30s".
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var raw string
	if err := value.Decode(&raw); err != nil {
		return fmt.Errorf("duration must be a string like \"30s\": %w", err)
	}
	return d.parse(raw)
}

// UnmarshalJSON decodes a duration string such as "30s".
func (d *Duration) UnmarshalJSON(data []byte) error {
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("duration must be a string like \"30s\": %w", err)
	}
	return d.parse(raw)
}

func (d *Duration) parse(raw string) error {
	parsed, err := time.ParseDuration(raw)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", raw, err)
	}
	*d = Duration(parsed)
	return nil
}

// MarshalYAML encodes the duration as a string.
func (d Duration) MarshalYAML() (interface{}, error) {
	return time.Duration(d).String(), nil
}

// MarshalJSON encodes the duration as a string.
func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(time.Duration(d).String())
}

// Normalize applies plan defaults to tasks and fills derived fields such as
// gate IDs. Parse calls it automatically; call it directly only for plans
// constructed in code.
func (p *Plan) Normalize() {
	for i := range p.Tasks {
		t := &p.Tasks[i]
		if t.Executor == "" {
			t.Executor = p.Defaults.Executor
		}
		if t.Timeout == 0 {
			t.Timeout = p.Defaults.Timeout
		}
		if t.MaxRetries == nil {
			retries := p.Defaults.MaxRetries
			t.MaxRetries = &retries
		}
		if t.Fatal == nil {
			fatal := p.Defaults.Fatal
			t.Fatal = &fatal
		}
	}
	for i := range p.Gates {
		g := &p.Gates[i]
		if g.ID == "" {
			g.ID = fmt.Sprintf("phase-%d", g.AfterPhase)
		}
	}
}

// Validate checks the plan for problems that would be lost in translation to
// a task graph. Task-level structure (missing IDs, dangling dependencies,
// cycles, phase ordering) is the graph package's responsibility and is not
// re-checked here.
//
// Validate expects a normalized plan; Parse normalizes before validating.
func (p *Plan) Validate() error {
	for _, t := range p.Tasks {
		seen := make(map[string]bool, len(t.Needs))
		for _, n := range t.Needs {
			if seen[n.ID] {
				return errors.NewValidationError(
					fmt.Sprintf("task %q lists dependency %q more than once", t.ID, n.ID)).
					WithField("needs").
					WithValue(t.ID)
			}
			seen[n.ID] = true
		}
	}

	taskPhases := make(map[int]bool, len(p.Tasks))
	for _, t := range p.Tasks {
		taskPhases[t.Phase] = true
	}

	gateIDs := make(map[string]bool, len(p.Gates))
	gatePhases := make(map[int]string, len(p.Gates))
	for _, g := range p.Gates {
		if g.AfterPhase < 0 {
			return errors.NewValidationError(
				fmt.Sprintf("gate %q guards negative phase %d", g.ID, g.AfterPhase)).
				WithField("after_phase").
				WithValue(g.ID)
		}
		// Gates bind to phases that actually run; one guarding a phase
		// no task declares would never be evaluated.
		if !taskPhases[g.AfterPhase] {
			return errors.NewValidationError(
				fmt.Sprintf("gate %q guards phase %d, but no task runs in that phase", g.ID, g.AfterPhase)).
				WithField("after_phase").
				WithValue(g.ID)
		}
		if g.Timeout < 0 {
			return errors.NewValidationError(
				fmt.Sprintf("gate %q has negative timeout %s", g.ID, g.Timeout)).
				WithField("timeout").
				WithValue(g.ID)
		}
		if gateIDs[g.ID] {
			return errors.NewValidationError(
				fmt.Sprintf("duplicate gate %q", g.ID)).
				WithField("gates").
				WithValue(g.ID)
		}
		gateIDs[g.ID] = true

		// One gate per phase boundary; a second would never be evaluated.
		if other, ok := gatePhases[g.AfterPhase]; ok {
			return errors.NewValidationError(
				fmt.Sprintf("gates %q and %q both guard phase %d", other, g.ID, g.AfterPhase)).
				WithField("after_phase").
				WithValue(g.ID)
		}
		gatePhases[g.AfterPhase] = g.ID
	}
	return nil
}

// TaskSpecs converts the plan's tasks into graph task specs. The plan must
// be normalized first; Parse returns normalized plans.
func (p *Plan) TaskSpecs() []graph.TaskSpec {
	specs := make([]graph.TaskSpec, 0, len(p.Tasks))
	for _, t := range p.Tasks {
		spec := graph.TaskSpec{
			ID:          t.ID,
			Name:        t.Name,
			Phase:       t.Phase,
			Executor:    t.Executor,
			ContentType: t.ContentType,
			Timeout:     t.Timeout.Std(),
		}
		if t.Fatal != nil {
			spec.Fatal = *t.Fatal
		}
		if t.MaxRetries != nil {
			spec.MaxRetries = *t.MaxRetries
		}
		if len(t.Args) > 0 {
			spec.Args = make(map[string]string, len(t.Args))
			for k, v := range t.Args {
				spec.Args[k] = v
			}
		}
		if len(t.Needs) > 0 {
			spec.DependsOn = make(map[string]graph.DepKind, len(t.Needs))
			for _, n := range t.Needs {
				spec.DependsOn[n.ID] = n.depKind()
			}
		}
		specs = append(specs, spec)
	}
	return specs
}

// GateForPhase returns the gate guarding the given phase, if any.
func (p *Plan) GateForPhase(phase int) (GateEntry, bool) {
	for _, g := range p.Gates {
		if g.AfterPhase == phase {
			return g, true
		}
	}
	return GateEntry{}, false
}

// GateByID returns the gate with the given ID, if any.
func (p *Plan) GateByID(id string) (GateEntry, bool) {
	for _, g := range p.Gates {
		if g.ID == id {
			return g, true
		}
	}
	return GateEntry{}, false
}
