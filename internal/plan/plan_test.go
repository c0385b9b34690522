package plan

import (
	"encoding/json"
	"testing"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/gantryhq/gantry/internal/graph"
)

const samplePlanYAML = `
name: release-build
defaults:
  executor: shell
  timeout: 90s
  max_retries: 1
tasks:
  - id: fetch
    phase: 0
    args:
      command: "curl -O https://example.com/src.tar.gz"
  - id: compile
    name: Compile sources
    phase: 1
    needs:
      - fetch
    fatal: true
    timeout: 10m
    content_type: application/gzip
  - id: lint
    phase: 1
    needs:
      - id: fetch
        kind: required
    max_retries: 0
  - id: report
    phase: 2
    executor: noop
    needs:
      - compile
      - id: lint
        kind: optional
gates:
  - after_phase: 1
    timeout: 30m
  - id: final-review
    after_phase: 2
    auto_approve: true
`

func TestParseYAMLPlan(t *testing.T) {
	p, err := Parse([]byte(samplePlanYAML), FormatYAML)
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}

	if p.Name != "release-build" {
		t.Errorf("Name = %q, want %q", p.Name, "release-build")
	}
	if len(p.Tasks) != 4 {
		t.Fatalf("len(Tasks) = %d, want 4", len(p.Tasks))
	}
	if len(p.Gates) != 2 {
		t.Fatalf("len(Gates) = %d, want 2", len(p.Gates))
	}

	t.Run("defaults fill unset fields", func(t *testing.T) {
		fetch := p.Tasks[0]
		if fetch.Executor != "shell" {
			t.Errorf("fetch.Executor = %q, want %q", fetch.Executor, "shell")
		}
		if fetch.Timeout.Std() != 90*time.Second {
			t.Errorf("fetch.Timeout = %v, want 90s", fetch.Timeout.Std())
		}
		if fetch.MaxRetries == nil || *fetch.MaxRetries != 1 {
			t.Errorf("fetch.MaxRetries = %v, want 1", fetch.MaxRetries)
		}
		if fetch.Fatal == nil || *fetch.Fatal {
			t.Errorf("fetch.Fatal = %v, want false", fetch.Fatal)
		}
	})

	t.Run("explicit fields override defaults", func(t *testing.T) {
		compile := p.Tasks[1]
		if compile.Timeout.Std() != 10*time.Minute {
			t.Errorf("compile.Timeout = %v, want 10m", compile.Timeout.Std())
		}
		if compile.Fatal == nil || !*compile.Fatal {
			t.Errorf("compile.Fatal = %v, want true", compile.Fatal)
		}

		// An explicit zero must survive a non-zero default.
		lint := p.Tasks[2]
		if lint.MaxRetries == nil || *lint.MaxRetries != 0 {
			t.Errorf("lint.MaxRetries = %v, want 0", lint.MaxRetries)
		}

		report := p.Tasks[3]
		if report.Executor != "noop" {
			t.Errorf("report.Executor = %q, want %q", report.Executor, "noop")
		}
	})

	t.Run("gate IDs default from phase", func(t *testing.T) {
		if p.Gates[0].ID != "phase-1" {
			t.Errorf("Gates[0].ID = %q, want %q", p.Gates[0].ID, "phase-1")
		}
		if p.Gates[0].Timeout.Std() != 30*time.Minute {
			t.Errorf("Gates[0].Timeout = %v, want 30m", p.Gates[0].Timeout.Std())
		}
		if p.Gates[1].ID != "final-review" {
			t.Errorf("Gates[1].ID = %q, want %q", p.Gates[1].ID, "final-review")
		}
		if !p.Gates[1].AutoApprove {
			t.Error("Gates[1].AutoApprove = false, want true")
		}
	})
}

func TestParseJSONPlan(t *testing.T) {
	doc := `{
		"name": "nightly",
		"defaults": {"executor": "shell", "timeout": "5m"},
		"tasks": [
			{"id": "build", "phase": 0},
			{"id": "test", "phase": 1, "needs": ["build", {"id": "build-docs", "kind": "optional"}]},
			{"id": "build-docs", "phase": 0, "executor": "noop"}
		],
		"gates": [{"after_phase": 1, "timeout": "1h"}]
	}`

	p, err := Parse([]byte(doc), FormatJSON)
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}

	if p.Name != "nightly" {
		t.Errorf("Name = %q, want %q", p.Name, "nightly")
	}
	if got := p.Tasks[0].Timeout.Std(); got != 5*time.Minute {
		t.Errorf("build.Timeout = %v, want 5m", got)
	}

	test := p.Tasks[1]
	if len(test.Needs) != 2 {
		t.Fatalf("len(test.Needs) = %d, want 2", len(test.Needs))
	}
	if test.Needs[0].ID != "build" || test.Needs[0].Kind != "" {
		t.Errorf("Needs[0] = %+v, want bare required need on build", test.Needs[0])
	}
	if test.Needs[1].ID != "build-docs" || test.Needs[1].Kind != "optional" {
		t.Errorf("Needs[1] = %+v, want optional need on build-docs", test.Needs[1])
	}
}

func TestNeedUnmarshalYAML(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		wantID   string
		wantKind string
	}{
		{
			name:     "bare string is a required need",
			input:    `compile`,
			wantID:   "compile",
			wantKind: "",
		},
		{
			name:     "quoted string",
			input:    `"compile"`,
			wantID:   "compile",
			wantKind: "",
		},
		{
			name: "mapping with explicit kind",
			input: `id: lint
kind: optional`,
			wantID:   "lint",
			wantKind: "optional",
		},
		{
			name:     "mapping without kind",
			input:    `id: lint`,
			wantID:   "lint",
			wantKind: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var n Need
			if err := yaml.Unmarshal([]byte(tt.input), &n); err != nil {
				t.Fatalf("Unmarshal(%q) error = %v", tt.input, err)
			}
			if n.ID != tt.wantID {
				t.Errorf("ID = %q, want %q", n.ID, tt.wantID)
			}
			if n.Kind != tt.wantKind {
				t.Errorf("Kind = %q, want %q", n.Kind, tt.wantKind)
			}
		})
	}
}

func TestNeedUnmarshalJSON(t *testing.T) {
	var n Need
	if err := json.Unmarshal([]byte(`"compile"`), &n); err != nil {
		t.Fatalf("Unmarshal(string) error = %v", err)
	}
	if n.ID != "compile" || n.Kind != "" {
		t.Errorf("got %+v, want bare required need on compile", n)
	}

	if err := json.Unmarshal([]byte(`{"id":"lint","kind":"optional"}`), &n); err != nil {
		t.Fatalf("Unmarshal(object) error = %v", err)
	}
	if n.ID != "lint" || n.Kind != "optional" {
		t.Errorf("got %+v, want optional need on lint", n)
	}
}

func TestDurationUnmarshal(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    time.Duration
		wantErr bool
	}{
		{name: "seconds", input: `90s`, want: 90 * time.Second},
		{name: "minutes", input: `5m`, want: 5 * time.Minute},
		{name: "compound", input: `1h30m`, want: 90 * time.Minute},
		{name: "not a duration", input: `soon`, wantErr: true},
		{name: "bare number has no unit", input: `"90"`, wantErr: true},
		{name: "yaml integer is rejected", input: `90`, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var d Duration
			err := yaml.Unmarshal([]byte(tt.input), &d)
			if (err != nil) != tt.wantErr {
				t.Fatalf("Unmarshal(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
			if !tt.wantErr && d.Std() != tt.want {
				t.Errorf("Unmarshal(%q) = %v, want %v", tt.input, d.Std(), tt.want)
			}
		})
	}
}

func TestDurationMarshalRoundTrip(t *testing.T) {
	d := Duration(90 * time.Second)

	out, err := json.Marshal(d)
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}
	if string(out) != `"1m30s"` {
		t.Errorf("Marshal() = %s, want %q", out, `"1m30s"`)
	}

	var back Duration
	if err := json.Unmarshal(out, &back); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}
	if back != d {
		t.Errorf("round trip = %v, want %v", back.Std(), d.Std())
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		plan    Plan
		wantErr bool
	}{
		{
			name: "valid plan",
			plan: Plan{
				Tasks: []TaskEntry{
					{ID: "a", Phase: 0},
					{ID: "b", Phase: 1, Needs: []Need{{ID: "a"}}},
				},
				Gates: []GateEntry{{ID: "phase-0", AfterPhase: 0}},
			},
		},
		{
			name: "duplicate need in one task",
			plan: Plan{
				Tasks: []TaskEntry{
					{ID: "a", Phase: 0},
					{ID: "b", Phase: 1, Needs: []Need{{ID: "a"}, {ID: "a", Kind: "optional"}}},
				},
			},
			wantErr: true,
		},
		{
			name: "gate on negative phase",
			plan: Plan{
				Tasks: []TaskEntry{{ID: "a", Phase: 0}},
				Gates: []GateEntry{{ID: "bad", AfterPhase: -1}},
			},
			wantErr: true,
		},
		{
			name: "gate with negative timeout",
			plan: Plan{
				Tasks: []TaskEntry{{ID: "a", Phase: 0}},
				Gates: []GateEntry{{ID: "bad", AfterPhase: 0, Timeout: Duration(-time.Second)}},
			},
			wantErr: true,
		},
		{
			name: "duplicate gate ID",
			plan: Plan{
				Tasks: []TaskEntry{
					{ID: "a", Phase: 0},
					{ID: "b", Phase: 1},
				},
				Gates: []GateEntry{
					{ID: "review", AfterPhase: 0},
					{ID: "review", AfterPhase: 1},
				},
			},
			wantErr: true,
		},
		{
			name: "gate on phase no task declares",
			plan: Plan{
				Tasks: []TaskEntry{{ID: "a", Phase: 0}},
				Gates: []GateEntry{{ID: "review", AfterPhase: 5}},
			},
			wantErr: true,
		},
		{
			name: "two gates guarding one phase",
			plan: Plan{
				Tasks: []TaskEntry{{ID: "a", Phase: 0}},
				Gates: []GateEntry{
					{ID: "first", AfterPhase: 0},
					{ID: "second", AfterPhase: 0},
				},
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.plan.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestNormalizeAppliesDefaults(t *testing.T) {
	explicitRetries := 5
	explicitFatal := false
	p := Plan{
		Defaults: Defaults{
			Executor:   "shell",
			Timeout:    Duration(time.Minute),
			MaxRetries: 2,
			Fatal:      true,
		},
		Tasks: []TaskEntry{
			{ID: "plain", Phase: 0},
			{
				ID:         "custom",
				Phase:      0,
				Executor:   "noop",
				Timeout:    Duration(time.Hour),
				MaxRetries: &explicitRetries,
				Fatal:      &explicitFatal,
			},
		},
	}

	p.Normalize()

	plain := p.Tasks[0]
	if plain.Executor != "shell" {
		t.Errorf("plain.Executor = %q, want %q", plain.Executor, "shell")
	}
	if plain.Timeout.Std() != time.Minute {
		t.Errorf("plain.Timeout = %v, want 1m", plain.Timeout.Std())
	}
	if plain.MaxRetries == nil || *plain.MaxRetries != 2 {
		t.Errorf("plain.MaxRetries = %v, want 2", plain.MaxRetries)
	}
	if plain.Fatal == nil || !*plain.Fatal {
		t.Errorf("plain.Fatal = %v, want true", plain.Fatal)
	}

	custom := p.Tasks[1]
	if custom.Executor != "noop" {
		t.Errorf("custom.Executor = %q, want %q", custom.Executor, "noop")
	}
	if custom.Timeout.Std() != time.Hour {
		t.Errorf("custom.Timeout = %v, want 1h", custom.Timeout.Std())
	}
	if *custom.MaxRetries != 5 {
		t.Errorf("custom.MaxRetries = %d, want 5", *custom.MaxRetries)
	}
	if *custom.Fatal {
		t.Error("custom.Fatal = true, want explicit false to survive normalization")
	}
}

func TestTaskSpecs(t *testing.T) {
	p, err := Parse([]byte(samplePlanYAML), FormatYAML)
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}

	specs := p.TaskSpecs()
	if len(specs) != 4 {
		t.Fatalf("len(specs) = %d, want 4", len(specs))
	}

	byID := make(map[string]graph.TaskSpec, len(specs))
	for _, s := range specs {
		byID[s.ID] = s
	}

	report := byID["report"]
	if report.DependsOn["compile"] != graph.DepRequired {
		t.Errorf("report depends on compile as %q, want required", report.DependsOn["compile"])
	}
	if report.DependsOn["lint"] != graph.DepOptional {
		t.Errorf("report depends on lint as %q, want optional", report.DependsOn["lint"])
	}

	compile := byID["compile"]
	if !compile.Fatal {
		t.Error("compile.Fatal = false, want true")
	}
	if compile.Timeout != 10*time.Minute {
		t.Errorf("compile.Timeout = %v, want 10m", compile.Timeout)
	}
	if compile.ContentType != "application/gzip" {
		t.Errorf("compile.ContentType = %q, want application/gzip", compile.ContentType)
	}

	// The resulting specs must pass graph validation end to end.
	if _, err := graph.Build(specs); err != nil {
		t.Errorf("Build(TaskSpecs()) error = %v", err)
	}
}

func TestTaskSpecsCopiesArgs(t *testing.T) {
	p := Plan{
		Tasks: []TaskEntry{
			{ID: "a", Phase: 0, Executor: "shell", Args: map[string]string{"command": "true"}},
		},
	}
	p.Normalize()

	specs := p.TaskSpecs()
	p.Tasks[0].Args["command"] = "false"

	if specs[0].Args["command"] != "true" {
		t.Errorf("spec args = %q, mutating the plan reached the spec", specs[0].Args["command"])
	}
}

func TestTaskSpecsUnknownKindPassesThrough(t *testing.T) {
	p := Plan{
		Tasks: []TaskEntry{
			{ID: "a", Phase: 0, Executor: "noop"},
			{ID: "b", Phase: 0, Executor: "noop", Needs: []Need{{ID: "a", Kind: "sometimes"}}},
		},
	}
	p.Normalize()

	specs := p.TaskSpecs()
	var b graph.TaskSpec
	for _, s := range specs {
		if s.ID == "b" {
			b = s
		}
	}
	if string(b.DependsOn["a"]) != "sometimes" {
		t.Errorf("unknown kind = %q, want passed through for graph validation", b.DependsOn["a"])
	}

	// Graph validation is where the bad kind gets reported.
	if _, err := graph.Build(specs); err == nil {
		t.Error("Build() error = nil, want invalid dependency kind error")
	}
}

func TestGateLookups(t *testing.T) {
	p, err := Parse([]byte(samplePlanYAML), FormatYAML)
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}

	g, ok := p.GateForPhase(1)
	if !ok {
		t.Fatal("GateForPhase(1) = not found")
	}
	if g.ID != "phase-1" {
		t.Errorf("GateForPhase(1).ID = %q, want %q", g.ID, "phase-1")
	}

	if _, ok := p.GateForPhase(0); ok {
		t.Error("GateForPhase(0) found a gate, want none")
	}

	g, ok = p.GateByID("final-review")
	if !ok {
		t.Fatal("GateByID(final-review) = not found")
	}
	if g.AfterPhase != 2 {
		t.Errorf("final-review.AfterPhase = %d, want 2", g.AfterPhase)
	}

	if _, ok := p.GateByID("missing"); ok {
		t.Error("GateByID(missing) found a gate, want none")
	}
}
