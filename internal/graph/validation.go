package graph

import (
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/gantryhq/gantry/internal/errors"
)

// Task IDs end up in file names (artifact documents, shell input files),
// so the allowed alphabet is restricted to path-safe characters.
var idPattern = regexp.MustCompile(`^[a-zA-Z0-9][a-zA-Z0-9._-]*$`)

// Validate performs comprehensive validation of a list of task specs.
// It checks for structural issues, dependency problems, and phase-ordering
// violations, and returns a ValidationResult containing all findings.
//
// Build uses the same checks but fails fast on the first error; Validate
// is the advisory pass used by the validate command to report everything
// at once.
func Validate(specs []TaskSpec) *ValidationResult {
	result := &ValidationResult{
		IsValid:  true,
		Messages: make([]ValidationMessage, 0),
	}

	if len(specs) == 0 {
		result.add(ValidationMessage{
			Severity:   SeverityError,
			Kind:       KindEmptyGraph,
			Message:    "graph has no tasks",
			Suggestion: "add at least one task to the plan",
		})
		return result
	}

	// First pass: IDs and per-task fields.
	byID := make(map[string]*TaskSpec, len(specs))
	for i := range specs {
		task := &specs[i]

		if strings.TrimSpace(task.ID) == "" {
			result.add(ValidationMessage{
				Severity:   SeverityError,
				Kind:       KindMissingID,
				Message:    fmt.Sprintf("task at position %d has no id", i),
				Field:      "id",
				Suggestion: "give every task a unique id",
			})
			continue
		}

		if !idPattern.MatchString(task.ID) {
			result.add(ValidationMessage{
				Severity:   SeverityError,
				Kind:       KindBadID,
				Message:    fmt.Sprintf("task id %q contains characters outside [a-zA-Z0-9._-]", task.ID),
				TaskID:     task.ID,
				Field:      "id",
				Suggestion: "use letters, digits, dots, underscores and hyphens",
			})
			continue
		}

		if _, dup := byID[task.ID]; dup {
			result.add(ValidationMessage{
				Severity:   SeverityError,
				Kind:       KindDuplicateID,
				Message:    fmt.Sprintf("duplicate task id %q", task.ID),
				TaskID:     task.ID,
				Field:      "id",
				Suggestion: "rename one of the tasks",
			})
			continue
		}
		byID[task.ID] = task

		if task.Phase < 0 {
			result.add(ValidationMessage{
				Severity:   SeverityError,
				Kind:       KindNegativePhase,
				Message:    fmt.Sprintf("task %q has negative phase %d", task.ID, task.Phase),
				TaskID:     task.ID,
				Field:      "phase",
				Suggestion: "phases are zero-based and non-negative",
			})
		}

		if strings.TrimSpace(task.Executor) == "" {
			result.add(ValidationMessage{
				Severity:   SeverityError,
				Kind:       KindMissingExec,
				Message:    fmt.Sprintf("task %q names no executor", task.ID),
				TaskID:     task.ID,
				Field:      "executor",
				Suggestion: "set an executor or a plan-level default",
			})
		}

		if task.Timeout < 0 {
			result.add(ValidationMessage{
				Severity:   SeverityError,
				Kind:       KindBadTimeout,
				Message:    fmt.Sprintf("task %q has negative timeout", task.ID),
				TaskID:     task.ID,
				Field:      "timeout",
				Suggestion: "use zero for no limit",
			})
		}

		if task.MaxRetries < 0 {
			result.add(ValidationMessage{
				Severity:   SeverityError,
				Kind:       KindBadRetries,
				Message:    fmt.Sprintf("task %q has negative max_retries", task.ID),
				TaskID:     task.ID,
				Field:      "max_retries",
				Suggestion: "use zero for no retries",
			})
		}

		if strings.TrimSpace(task.Name) == "" {
			result.add(ValidationMessage{
				Severity:   SeverityWarning,
				Kind:       KindMissingName,
				Message:    fmt.Sprintf("task %q has no name", task.ID),
				TaskID:     task.ID,
				Field:      "name",
				Suggestion: "add a short human-readable name",
			})
		}
	}

	// Second pass: dependency edges. Requires the full ID set.
	for i := range specs {
		task := &specs[i]
		if task.ID == "" {
			continue
		}

		for depID, kind := range task.DependsOn {
			if !kind.IsValid() {
				result.add(ValidationMessage{
					Severity:   SeverityError,
					Kind:       KindBadDepKind,
					Message:    fmt.Sprintf("task %q has unknown dependency kind %q on %q", task.ID, kind, depID),
					TaskID:     task.ID,
					Field:      "depends_on",
					RelatedIDs: []string{depID},
					Suggestion: `use "required" or "optional"`,
				})
			}

			if depID == task.ID {
				result.add(ValidationMessage{
					Severity:   SeverityError,
					Kind:       KindSelfDep,
					Message:    fmt.Sprintf("task %q depends on itself", task.ID),
					TaskID:     task.ID,
					Field:      "depends_on",
					RelatedIDs: []string{task.ID},
					Suggestion: "remove the self-dependency",
				})
				continue
			}

			dep, ok := byID[depID]
			if !ok {
				result.add(ValidationMessage{
					Severity:   SeverityError,
					Kind:       KindDanglingDep,
					Message:    fmt.Sprintf("task %q depends on unknown task %q", task.ID, depID),
					TaskID:     task.ID,
					Field:      "depends_on",
					RelatedIDs: []string{depID},
					Suggestion: fmt.Sprintf("remove %q from dependencies or add a task with that id", depID),
				})
				continue
			}

			if dep.Phase > task.Phase {
				result.add(ValidationMessage{
					Severity:   SeverityError,
					Kind:       KindPhaseOrder,
					Message:    fmt.Sprintf("task %q (phase %d) depends on %q in later phase %d", task.ID, task.Phase, depID, dep.Phase),
					TaskID:     task.ID,
					Field:      "depends_on",
					RelatedIDs: []string{depID},
					Suggestion: "dependencies must live in the same or an earlier phase",
				})
			}
		}
	}

	// Cycle detection only makes sense once edges resolve.
	if result.ErrorCount == 0 {
		if cycle := DetectCycle(specs); cycle != nil {
			result.add(ValidationMessage{
				Severity:   SeverityError,
				Kind:       KindCycle,
				Message:    fmt.Sprintf("dependency cycle detected: %s", strings.Join(cycle, " -> ")),
				RelatedIDs: cycle,
				Suggestion: "remove one of the dependencies to break the cycle",
			})
		}
	}

	// Phase gaps are harmless but usually indicate a typo in the plan.
	seen := make(map[int]bool)
	maxPhase := 0
	for i := range specs {
		if specs[i].Phase >= 0 {
			seen[specs[i].Phase] = true
			if specs[i].Phase > maxPhase {
				maxPhase = specs[i].Phase
			}
		}
	}
	var gaps []int
	for p := 0; p < maxPhase; p++ {
		if !seen[p] {
			gaps = append(gaps, p)
		}
	}
	if len(gaps) > 0 {
		parts := make([]string, len(gaps))
		for i, p := range gaps {
			parts[i] = fmt.Sprintf("%d", p)
		}
		result.add(ValidationMessage{
			Severity:   SeverityWarning,
			Kind:       KindPhaseGap,
			Message:    fmt.Sprintf("no tasks in phase(s) %s", strings.Join(parts, ", ")),
			Field:      "phase",
			Suggestion: "check the phase indices in the plan",
		})
	}

	return result
}

// DetectCycle detects a dependency cycle among the given specs.
// Returns the task IDs forming the cycle if found, nil otherwise.
// The returned path starts and ends with the same task ID.
func DetectCycle(specs []TaskSpec) []string {
	byID := make(map[string]*TaskSpec, len(specs))
	for i := range specs {
		byID[specs[i].ID] = &specs[i]
	}

	visited := make(map[string]bool)
	recStack := make(map[string]bool)
	parent := make(map[string]string)

	var dfs func(taskID string) []string
	dfs = func(taskID string) []string {
		visited[taskID] = true
		recStack[taskID] = true

		task := byID[taskID]
		if task == nil {
			recStack[taskID] = false
			return nil
		}

		// Iterate dependencies in sorted order so the reported cycle is
		// deterministic for a given graph.
		depIDs := make([]string, 0, len(task.DependsOn))
		for depID := range task.DependsOn {
			depIDs = append(depIDs, depID)
		}
		sort.Strings(depIDs)

		for _, depID := range depIDs {
			if !visited[depID] {
				parent[depID] = taskID
				if cycle := dfs(depID); cycle != nil {
					return cycle
				}
			} else if recStack[depID] {
				// Found a cycle - reconstruct it from the parent chain
				cycle := []string{depID}
				current := taskID
				for current != depID {
					cycle = append([]string{current}, cycle...)
					current = parent[current]
				}
				cycle = append([]string{depID}, cycle...)
				return cycle
			}
		}

		recStack[taskID] = false
		return nil
	}

	for i := range specs {
		if !visited[specs[i].ID] {
			if cycle := dfs(specs[i].ID); cycle != nil {
				return cycle
			}
		}
	}

	return nil
}

// AsError converts the first error-severity finding into a typed error.
// Returns nil when the result has no errors.
func (v *ValidationResult) AsError() error {
	for i := range v.Messages {
		m := &v.Messages[i]
		if !m.IsError() {
			continue
		}
		switch m.Kind {
		case KindCycle:
			return errors.Wrap(errors.ErrDependencyCycle, m.Message)
		case KindPhaseOrder:
			return errors.Wrap(errors.ErrPhaseOrder, m.Message)
		default:
			err := errors.NewValidationError(m.Message)
			if m.Field != "" {
				err = err.WithField(m.Field)
			}
			if m.TaskID != "" {
				err = err.WithValue(m.TaskID)
			}
			return err
		}
	}
	return nil
}
