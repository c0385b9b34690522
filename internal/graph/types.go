// Package graph defines the immutable task graph that a run executes.
//
// A graph is built from a list of task specs, validated once, and never
// mutated afterwards. The engine assumes any graph it receives has passed
// validation; this package is the only place structural checks happen.
package graph

import "time"

// -----------------------------------------------------------------------------
// Dependency Kinds
// -----------------------------------------------------------------------------

// DepKind classifies a dependency edge between two tasks.
type DepKind string

const (
	// DepRequired means the dependency must succeed before the dependent
	// task can become ready. If the dependency fails or is skipped, the
	// dependent is skipped.
	DepRequired DepKind = "required"

	// DepOptional means the dependent task waits for the dependency to
	// reach a terminal status but runs regardless of the outcome. A failed
	// or skipped optional dependency surfaces as a missing input.
	DepOptional DepKind = "optional"
)

// String returns the string representation of the dependency kind.
func (k DepKind) String() string {
	return string(k)
}

// IsValid returns true if this is a recognized dependency kind.
func (k DepKind) IsValid() bool {
	switch k {
	case DepRequired, DepOptional:
		return true
	default:
		return false
	}
}

// -----------------------------------------------------------------------------
// Task Spec
// -----------------------------------------------------------------------------

// TaskSpec describes a single task in a run definition.
//
// Tasks are grouped into phases that execute strictly in ascending order.
// Dependency edges may point at tasks in the same or an earlier phase,
// never a later one. Within a phase, tasks with no unresolved dependencies
// run concurrently.
type TaskSpec struct {
	// ID uniquely identifies this task within the graph.
	ID string `json:"id"`

	// Name is a short human-readable label shown in status output.
	// Optional; the ID is used when empty.
	Name string `json:"name,omitempty"`

	// Phase is the zero-based index of the phase this task belongs to.
	Phase int `json:"phase"`

	// DependsOn maps dependency task IDs to the kind of edge.
	// A nil or empty map means the task has no dependencies.
	DependsOn map[string]DepKind `json:"depends_on,omitempty"`

	// Fatal marks a task whose failure aborts the entire run instead of
	// degrading it.
	Fatal bool `json:"fatal"`

	// Executor names the registered executor that runs this task.
	Executor string `json:"executor"`

	// Args carries executor-specific parameters (for example the command
	// line for the shell executor).
	Args map[string]string `json:"args,omitempty"`

	// ContentType tags the artifact this task produces.
	ContentType string `json:"content_type,omitempty"`

	// Timeout bounds a single execution attempt. Zero means no limit.
	Timeout time.Duration `json:"timeout,omitempty"`

	// MaxRetries is the number of additional attempts after a failed
	// execution before the task is classified as failed.
	MaxRetries int `json:"max_retries,omitempty"`
}

// DisplayName returns the task name, falling back to the ID.
func (t *TaskSpec) DisplayName() string {
	if t.Name != "" {
		return t.Name
	}
	return t.ID
}

// HasDependencies returns true if this task depends on other tasks.
func (t *TaskSpec) HasDependencies() bool {
	return len(t.DependsOn) > 0
}

// RequiredDependencies returns the IDs of all required dependencies.
// Order is unspecified.
func (t *TaskSpec) RequiredDependencies() []string {
	var ids []string
	for id, kind := range t.DependsOn {
		if kind == DepRequired {
			ids = append(ids, id)
		}
	}
	return ids
}

// OptionalDependencies returns the IDs of all optional dependencies.
// Order is unspecified.
func (t *TaskSpec) OptionalDependencies() []string {
	var ids []string
	for id, kind := range t.DependsOn {
		if kind == DepOptional {
			ids = append(ids, id)
		}
	}
	return ids
}

// clone returns a copy of the spec whose DependsOn and Args maps do not
// alias the original's.
func (t TaskSpec) clone() TaskSpec {
	if t.DependsOn != nil {
		deps := make(map[string]DepKind, len(t.DependsOn))
		for id, kind := range t.DependsOn {
			deps[id] = kind
		}
		t.DependsOn = deps
	}
	if t.Args != nil {
		args := make(map[string]string, len(t.Args))
		for k, v := range t.Args {
			args[k] = v
		}
		t.Args = args
	}
	return t
}

// -----------------------------------------------------------------------------
// Validation Types
// -----------------------------------------------------------------------------

// ValidationSeverity indicates how serious a validation finding is.
type ValidationSeverity string

const (
	// SeverityError marks findings that make the graph unusable.
	SeverityError ValidationSeverity = "error"

	// SeverityWarning marks findings worth surfacing but not fatal.
	SeverityWarning ValidationSeverity = "warning"
)

// String returns the string representation of the severity.
func (s ValidationSeverity) String() string {
	return string(s)
}

// MessageKind identifies the specific check a validation message came from.
type MessageKind string

const (
	KindEmptyGraph    MessageKind = "empty-graph"
	KindMissingID     MessageKind = "missing-id"
	KindBadID         MessageKind = "bad-id"
	KindDuplicateID   MessageKind = "duplicate-id"
	KindNegativePhase MessageKind = "negative-phase"
	KindBadDepKind    MessageKind = "bad-dependency-kind"
	KindSelfDep       MessageKind = "self-dependency"
	KindDanglingDep   MessageKind = "dangling-dependency"
	KindPhaseOrder    MessageKind = "phase-order"
	KindCycle         MessageKind = "cycle"
	KindMissingExec   MessageKind = "missing-executor"
	KindBadTimeout    MessageKind = "bad-timeout"
	KindBadRetries    MessageKind = "bad-retries"
	KindMissingName   MessageKind = "missing-name"
	KindPhaseGap      MessageKind = "phase-gap"
)

// ValidationMessage describes a single finding from graph validation.
type ValidationMessage struct {
	// Severity is error or warning.
	Severity ValidationSeverity `json:"severity"`

	// Kind identifies the check that produced this message.
	Kind MessageKind `json:"kind"`

	// Message is the human-readable description of the finding.
	Message string `json:"message"`

	// TaskID is the task the finding applies to, if any.
	TaskID string `json:"task_id,omitempty"`

	// Field names the spec field involved, if any.
	Field string `json:"field,omitempty"`

	// RelatedIDs lists other tasks involved (for example a cycle path).
	RelatedIDs []string `json:"related_ids,omitempty"`

	// Suggestion describes how to fix the finding.
	Suggestion string `json:"suggestion,omitempty"`
}

// IsError returns true if this message has error severity.
func (m *ValidationMessage) IsError() bool {
	return m.Severity == SeverityError
}

// IsWarning returns true if this message has warning severity.
func (m *ValidationMessage) IsWarning() bool {
	return m.Severity == SeverityWarning
}

// ValidationResult aggregates all findings from validating a set of specs.
type ValidationResult struct {
	// IsValid is true when no error-severity findings were produced.
	IsValid bool `json:"is_valid"`

	// Messages lists all findings in detection order.
	Messages []ValidationMessage `json:"messages"`

	// ErrorCount is the number of error-severity findings.
	ErrorCount int `json:"error_count"`

	// WarningCount is the number of warning-severity findings.
	WarningCount int `json:"warning_count"`
}

// HasErrors returns true if any error-severity findings exist.
func (v *ValidationResult) HasErrors() bool {
	return v.ErrorCount > 0
}

// HasWarnings returns true if any warning-severity findings exist.
func (v *ValidationResult) HasWarnings() bool {
	return v.WarningCount > 0
}

// MessagesForTask returns all findings that apply to the given task.
func (v *ValidationResult) MessagesForTask(taskID string) []ValidationMessage {
	var out []ValidationMessage
	for _, m := range v.Messages {
		if m.TaskID == taskID {
			out = append(out, m)
		}
	}
	return out
}

// add records a finding and updates the counters.
func (v *ValidationResult) add(m ValidationMessage) {
	v.Messages = append(v.Messages, m)
	switch m.Severity {
	case SeverityError:
		v.ErrorCount++
		v.IsValid = false
	case SeverityWarning:
		v.WarningCount++
	}
}
