// Package errors provides centralized error definitions and error handling utilities
// for the Gantry codebase. It defines domain-specific errors, semantic error types,
// error constructors with context wrapping, and error classification helpers.
//
// # Error Types
//
// The package provides two categories of errors:
//
// Domain-specific errors represent errors from specific subsystems:
//   - ExecutionError: an executor returned a failure for a task
//   - DependencyUnmetError: a task cannot run because an upstream task failed or
//     was skipped; used internally to drive cascading skips
//   - GateRejectedError: a checkpoint gate was explicitly rejected
//   - GateTimeoutError: a checkpoint gate timed out waiting for a decision
//
// Semantic errors represent common error conditions:
//   - NotFoundError: resource not found
//   - AlreadyExistsError: resource already exists (write-once violations)
//   - ValidationError: invalid input or state
//   - TimeoutError: operation timed out
//
// # Usage
//
// Creating errors:
//
//	// Domain-specific error
//	err := errors.NewExecutionError("executor returned failure", cause).WithTaskID("fetch-data")
//
//	// Semantic error
//	err := errors.NewNotFoundError("artifact", "run-1/fetch-data")
//
// Checking errors:
//
//	// Check for specific sentinel errors
//	if errors.Is(err, errors.ErrRunNotFound) { ... }
//
//	// Check for error types
//	var execErr *errors.ExecutionError
//	if errors.As(err, &execErr) { ... }
//
//	// Use classification helpers
//	if errors.IsRetryable(err) { ... }
//	if errors.IsUserFacing(err) { ... }
//
// # Error Classification
//
// Errors can be classified by severity and behavior:
//   - Retryable: transient errors that may succeed on retry
//   - UserFacing: errors safe to display to users (vs internal errors)
//   - Severity: Debug, Info, Warning, Error, Critical
package errors

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Re-export standard library functions for convenience.
// This allows callers to import only this package for all error handling.
var (
	Is     = errors.Is
	As     = errors.As
	Unwrap = errors.Unwrap
	New    = errors.New
	Join   = errors.Join
)

// Severity represents the severity level of an error.
type Severity int

const (
	// SeverityDebug is for errors that are useful for debugging but not critical.
	SeverityDebug Severity = iota
	// SeverityInfo is for informational errors that don't indicate a problem.
	SeverityInfo
	// SeverityWarning is for errors that might indicate a problem but aren't critical.
	SeverityWarning
	// SeverityError is for errors that indicate a real problem.
	SeverityError
	// SeverityCritical is for errors that require immediate attention.
	SeverityCritical
)

// String returns the string representation of the severity level.
func (s Severity) String() string {
	switch s {
	case SeverityDebug:
		return "debug"
	case SeverityInfo:
		return "info"
	case SeverityWarning:
		return "warning"
	case SeverityError:
		return "error"
	case SeverityCritical:
		return "critical"
	default:
		return "unknown"
	}
}

// -----------------------------------------------------------------------------
// Sentinel Errors
// -----------------------------------------------------------------------------

// Run-related sentinel errors
var (
	// ErrRunNotFound indicates that a run could not be found.
	ErrRunNotFound = New("run not found")
	// ErrRunFinished indicates that a run has already reached a terminal status.
	ErrRunFinished = New("run already finished")
	// ErrRunLocked indicates that a run is owned by another live process.
	ErrRunLocked = New("run is locked by another process")
	// ErrRunCorrupted indicates that persisted run state could not be decoded.
	ErrRunCorrupted = New("run state corrupted")
	// ErrRunNotLive indicates that no live orchestrator owns the run.
	ErrRunNotLive = New("no live orchestrator owns this run")
)

// Graph-related sentinel errors
var (
	// ErrTaskNotFound indicates that a task could not be found.
	ErrTaskNotFound = New("task not found")
	// ErrDependencyCycle indicates a circular dependency between tasks.
	ErrDependencyCycle = New("dependency cycle detected")
	// ErrPhaseOrder indicates a dependency pointing into an earlier phase.
	ErrPhaseOrder = New("dependency crosses into an earlier phase")
	// ErrInvalidTransition indicates a disallowed task status transition.
	ErrInvalidTransition = New("invalid status transition")
)

// Gate-related sentinel errors
var (
	// ErrGateNotFound indicates that a checkpoint gate could not be found.
	ErrGateNotFound = New("gate not found")
	// ErrGateNotPending indicates a decision on a gate that is not awaiting one.
	ErrGateNotPending = New("gate is not awaiting a decision")
	// ErrGateResolved indicates that a gate has already been resolved.
	ErrGateResolved = New("gate already resolved")
)

// Executor-related sentinel errors
var (
	// ErrUnknownExecutor indicates an executor reference with no registration.
	ErrUnknownExecutor = New("unknown executor")
	// ErrExecutorExists indicates a duplicate executor registration.
	ErrExecutorExists = New("executor already registered")
)

// General sentinel errors
var (
	// ErrTimeout indicates that an operation timed out.
	ErrTimeout = New("operation timed out")
	// ErrCanceled indicates that an operation was canceled.
	ErrCanceled = New("operation canceled")
	// ErrInvalidInput indicates that input validation failed.
	ErrInvalidInput = New("invalid input")
	// ErrStoreClosed indicates an operation on a closed artifact store.
	ErrStoreClosed = New("artifact store is closed")
)

// -----------------------------------------------------------------------------
// Base Error Interface
// -----------------------------------------------------------------------------

// GantryError is the base interface for all Gantry errors.
// It extends the standard error interface with additional methods for
// error handling and classification.
type GantryError interface {
	error

	// Unwrap returns the underlying error, if any.
	Unwrap() error

	// Is reports whether this error matches the target error.
	// This is used by errors.Is() for error comparison.
	Is(target error) bool

	// Severity returns the severity level of this error.
	Severity() Severity

	// IsRetryable returns true if the error is transient and the operation
	// may succeed on retry.
	IsRetryable() bool

	// IsUserFacing returns true if the error message is safe to display
	// to end users.
	IsUserFacing() bool
}

// -----------------------------------------------------------------------------
// Base Error Implementation
// -----------------------------------------------------------------------------

// baseError provides common functionality for all error types.
type baseError struct {
	message    string
	cause      error
	severity   Severity
	retryable  bool
	userFacing bool
}

// Error returns the error message.
func (e *baseError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %v", e.message, e.cause)
	}
	return e.message
}

// Unwrap returns the underlying error.
func (e *baseError) Unwrap() error {
	return e.cause
}

// Is checks if this error matches the target.
func (e *baseError) Is(target error) bool {
	if e.cause != nil {
		return errors.Is(e.cause, target)
	}
	return false
}

// Severity returns the error severity.
func (e *baseError) Severity() Severity {
	return e.severity
}

// IsRetryable returns whether the error is retryable.
func (e *baseError) IsRetryable() bool {
	return e.retryable
}

// IsUserFacing returns whether the error is safe to show users.
func (e *baseError) IsUserFacing() bool {
	return e.userFacing
}

// -----------------------------------------------------------------------------
// Domain-Specific Errors
// -----------------------------------------------------------------------------

// ExecutionError represents a task executor returning a failure.
// FailurePolicy turns an ExecutionError into a fatal or non-fatal outcome
// based on the owning task's spec; the error itself is classification-neutral.
//
// Example:
//
//	err := errors.NewExecutionError("executor returned failure", cause)
//	err = err.WithTaskID("fetch-data").WithPhase(1).WithAttempts(3)
type ExecutionError struct {
	baseError
	TaskID   string
	Phase    int
	Attempts int
}

// NewExecutionError creates a new ExecutionError.
func NewExecutionError(message string, cause error) *ExecutionError {
	return &ExecutionError{
		baseError: baseError{
			message:    message,
			cause:      cause,
			severity:   SeverityError,
			retryable:  false,
			userFacing: true,
		},
		Phase: -1, // -1 indicates not set
	}
}

// WithTaskID adds the failing task's ID to the error context.
func (e *ExecutionError) WithTaskID(id string) *ExecutionError {
	e.TaskID = id
	return e
}

// WithPhase adds the owning phase index to the error context.
func (e *ExecutionError) WithPhase(phase int) *ExecutionError {
	e.Phase = phase
	return e
}

// WithAttempts records how many execution attempts were made.
func (e *ExecutionError) WithAttempts(n int) *ExecutionError {
	e.Attempts = n
	return e
}

// WithRetryable sets whether the error is retryable.
func (e *ExecutionError) WithRetryable(r bool) *ExecutionError {
	e.retryable = r
	return e
}

// WithSeverity sets the error severity.
func (e *ExecutionError) WithSeverity(s Severity) *ExecutionError {
	e.severity = s
	return e
}

// Error returns the formatted error message.
func (e *ExecutionError) Error() string {
	var parts []string
	if e.TaskID != "" {
		parts = append(parts, fmt.Sprintf("task=%s", e.TaskID))
	}
	if e.Phase >= 0 {
		parts = append(parts, fmt.Sprintf("phase=%d", e.Phase))
	}
	if e.Attempts > 1 {
		parts = append(parts, fmt.Sprintf("attempts=%d", e.Attempts))
	}

	prefix := "execution error"
	if len(parts) > 0 {
		prefix = fmt.Sprintf("execution error [%s]", strings.Join(parts, ", "))
	}

	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", prefix, e.message, e.cause)
	}
	return fmt.Sprintf("%s: %s", prefix, e.message)
}

// Is checks if this error matches the target.
func (e *ExecutionError) Is(target error) bool {
	if _, ok := target.(*ExecutionError); ok {
		return true
	}
	return e.baseError.Is(target)
}

// DependencyUnmetError marks a task whose required dependency failed or was
// skipped. It never surfaces as the failure of the task itself; the scheduler
// records the task as skipped and names the originating ancestor as the cause.
//
// Example:
//
//	err := errors.NewDependencyUnmetError("render-report", "fetch-data")
type DependencyUnmetError struct {
	baseError
	TaskID       string
	DependencyID string
}

// NewDependencyUnmetError creates a new DependencyUnmetError for taskID whose
// required dependency dependencyID did not succeed.
func NewDependencyUnmetError(taskID, dependencyID string) *DependencyUnmetError {
	return &DependencyUnmetError{
		baseError: baseError{
			message:    fmt.Sprintf("required dependency %q did not succeed", dependencyID),
			severity:   SeverityInfo,
			retryable:  false,
			userFacing: false,
		},
		TaskID:       taskID,
		DependencyID: dependencyID,
	}
}

// WithCause adds a cause to the error.
func (e *DependencyUnmetError) WithCause(cause error) *DependencyUnmetError {
	e.cause = cause
	return e
}

// Error returns the formatted error message.
func (e *DependencyUnmetError) Error() string {
	base := fmt.Sprintf("dependency unmet [task=%s]: %s", e.TaskID, e.message)
	if e.cause != nil {
		return fmt.Sprintf("%s: %v", base, e.cause)
	}
	return base
}

// Is checks if this error matches the target.
func (e *DependencyUnmetError) Is(target error) bool {
	if _, ok := target.(*DependencyUnmetError); ok {
		return true
	}
	return e.baseError.Is(target)
}

// GateRejectedError represents an explicit rejection of a checkpoint gate.
// It is terminal for the owning run.
//
// Example:
//
//	err := errors.NewGateRejectedError("phase-1", "reviewer").WithComment("outline too thin")
type GateRejectedError struct {
	baseError
	GateID  string
	By      string
	Comment string
}

// NewGateRejectedError creates a new GateRejectedError.
func NewGateRejectedError(gateID, by string) *GateRejectedError {
	return &GateRejectedError{
		baseError: baseError{
			message:    "checkpoint rejected",
			severity:   SeverityError,
			retryable:  false,
			userFacing: true,
		},
		GateID: gateID,
		By:     by,
	}
}

// WithComment attaches the reviewer's comment to the error context.
func (e *GateRejectedError) WithComment(comment string) *GateRejectedError {
	e.Comment = comment
	return e
}

// Error returns the formatted error message.
func (e *GateRejectedError) Error() string {
	var parts []string
	if e.GateID != "" {
		parts = append(parts, fmt.Sprintf("gate=%s", e.GateID))
	}
	if e.By != "" {
		parts = append(parts, fmt.Sprintf("by=%s", e.By))
	}

	prefix := "gate rejected"
	if len(parts) > 0 {
		prefix = fmt.Sprintf("gate rejected [%s]", strings.Join(parts, ", "))
	}

	if e.Comment != "" {
		return fmt.Sprintf("%s: %s", prefix, e.Comment)
	}
	return prefix
}

// Is checks if this error matches the target.
func (e *GateRejectedError) Is(target error) bool {
	if _, ok := target.(*GateRejectedError); ok {
		return true
	}
	return e.baseError.Is(target)
}

// GateTimeoutError represents a checkpoint gate expiring without a decision.
// It is treated identically to a rejection: terminal for the owning run.
//
// Example:
//
//	err := errors.NewGateTimeoutError("phase-1", 30*time.Minute)
type GateTimeoutError struct {
	baseError
	GateID  string
	Timeout time.Duration
}

// NewGateTimeoutError creates a new GateTimeoutError.
func NewGateTimeoutError(gateID string, timeout time.Duration) *GateTimeoutError {
	return &GateTimeoutError{
		baseError: baseError{
			message:    "checkpoint timed out",
			severity:   SeverityError,
			retryable:  false,
			userFacing: true,
		},
		GateID:  gateID,
		Timeout: timeout,
	}
}

// Error returns the formatted error message.
func (e *GateTimeoutError) Error() string {
	if e.GateID != "" {
		return fmt.Sprintf("gate timed out [gate=%s]: no decision within %s", e.GateID, e.Timeout)
	}
	return fmt.Sprintf("gate timed out: no decision within %s", e.Timeout)
}

// Is checks if this error matches the target.
func (e *GateTimeoutError) Is(target error) bool {
	if _, ok := target.(*GateTimeoutError); ok {
		return true
	}
	if errors.Is(target, ErrTimeout) {
		return true
	}
	return e.baseError.Is(target)
}

// -----------------------------------------------------------------------------
// Semantic Errors
// -----------------------------------------------------------------------------

// NotFoundError represents a resource that could not be found.
//
// Example:
//
//	err := errors.NewNotFoundError("artifact", "run-1/fetch-data")
//	fmt.Println(err) // "artifact 'run-1/fetch-data' not found"
type NotFoundError struct {
	baseError
	Resource string
	Key      string
}

// NewNotFoundError creates a new NotFoundError.
func NewNotFoundError(resource, key string) *NotFoundError {
	return &NotFoundError{
		baseError: baseError{
			message:    fmt.Sprintf("%s '%s' not found", resource, key),
			severity:   SeverityWarning,
			retryable:  false,
			userFacing: true,
		},
		Resource: resource,
		Key:      key,
	}
}

// WithCause adds a cause to the error.
func (e *NotFoundError) WithCause(cause error) *NotFoundError {
	e.cause = cause
	return e
}

// Error returns the formatted error message.
func (e *NotFoundError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s '%s' not found: %v", e.Resource, e.Key, e.cause)
	}
	return fmt.Sprintf("%s '%s' not found", e.Resource, e.Key)
}

// Is checks if this error matches the target.
func (e *NotFoundError) Is(target error) bool {
	if _, ok := target.(*NotFoundError); ok {
		return true
	}
	return e.baseError.Is(target)
}

// AlreadyExistsError represents a resource that already exists. The artifact
// store returns it when a second write targets an existing (run, task) key.
//
// Example:
//
//	err := errors.NewAlreadyExistsError("artifact", "run-1/fetch-data")
//	fmt.Println(err) // "artifact 'run-1/fetch-data' already exists"
type AlreadyExistsError struct {
	baseError
	Resource string
	Key      string
}

// NewAlreadyExistsError creates a new AlreadyExistsError.
func NewAlreadyExistsError(resource, key string) *AlreadyExistsError {
	return &AlreadyExistsError{
		baseError: baseError{
			message:    fmt.Sprintf("%s '%s' already exists", resource, key),
			severity:   SeverityWarning,
			retryable:  false,
			userFacing: true,
		},
		Resource: resource,
		Key:      key,
	}
}

// WithCause adds a cause to the error.
func (e *AlreadyExistsError) WithCause(cause error) *AlreadyExistsError {
	e.cause = cause
	return e
}

// Error returns the formatted error message.
func (e *AlreadyExistsError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s '%s' already exists: %v", e.Resource, e.Key, e.cause)
	}
	return fmt.Sprintf("%s '%s' already exists", e.Resource, e.Key)
}

// Is checks if this error matches the target.
func (e *AlreadyExistsError) Is(target error) bool {
	if _, ok := target.(*AlreadyExistsError); ok {
		return true
	}
	return e.baseError.Is(target)
}

// ValidationError represents invalid input or state. Graph construction
// returns it for cycles, dangling references, duplicate task IDs, and
// phase-ordering violations; no run is created when one is raised.
//
// Example:
//
//	err := errors.NewValidationError("task phase must not be negative")
//	err = err.WithField("phase").WithValue(-2)
type ValidationError struct {
	baseError
	Field string
	Value any
}

// NewValidationError creates a new ValidationError.
func NewValidationError(message string) *ValidationError {
	return &ValidationError{
		baseError: baseError{
			message:    message,
			severity:   SeverityWarning,
			retryable:  false,
			userFacing: true,
		},
	}
}

// WithField adds a field name to the error context.
func (e *ValidationError) WithField(field string) *ValidationError {
	e.Field = field
	return e
}

// WithValue adds the invalid value to the error context.
func (e *ValidationError) WithValue(value any) *ValidationError {
	e.Value = value
	return e
}

// WithCause adds a cause to the error.
func (e *ValidationError) WithCause(cause error) *ValidationError {
	e.cause = cause
	return e
}

// Error returns the formatted error message.
func (e *ValidationError) Error() string {
	var parts []string
	if e.Field != "" {
		parts = append(parts, fmt.Sprintf("field=%s", e.Field))
	}
	if e.Value != nil {
		parts = append(parts, fmt.Sprintf("value=%v", e.Value))
	}

	prefix := "validation error"
	if len(parts) > 0 {
		prefix = fmt.Sprintf("validation error [%s]", strings.Join(parts, ", "))
	}

	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", prefix, e.message, e.cause)
	}
	return fmt.Sprintf("%s: %s", prefix, e.message)
}

// Is checks if this error matches the target.
func (e *ValidationError) Is(target error) bool {
	if _, ok := target.(*ValidationError); ok {
		return true
	}
	if errors.Is(target, ErrInvalidInput) {
		return true
	}
	return e.baseError.Is(target)
}

// TimeoutError represents an operation that timed out. Task executions that
// exceed their configured per-task timeout fail with one, wrapped in an
// ExecutionError before classification.
//
// Example:
//
//	err := errors.NewTimeoutError("executing task fetch-data", 2*time.Minute)
//	fmt.Println(err) // "timeout error: executing task fetch-data (timeout: 2m0s)"
type TimeoutError struct {
	baseError
	Operation string
	Duration  time.Duration
}

// NewTimeoutError creates a new TimeoutError.
func NewTimeoutError(operation string, duration time.Duration) *TimeoutError {
	return &TimeoutError{
		baseError: baseError{
			message:    operation,
			severity:   SeverityWarning,
			retryable:  true, // Timeouts are generally retryable
			userFacing: true,
		},
		Operation: operation,
		Duration:  duration,
	}
}

// WithCause adds a cause to the error.
func (e *TimeoutError) WithCause(cause error) *TimeoutError {
	e.cause = cause
	return e
}

// WithRetryable sets whether the error is retryable (default true for timeouts).
func (e *TimeoutError) WithRetryable(r bool) *TimeoutError {
	e.retryable = r
	return e
}

// Error returns the formatted error message.
func (e *TimeoutError) Error() string {
	base := fmt.Sprintf("timeout error: %s (timeout: %s)", e.Operation, e.Duration)
	if e.cause != nil {
		return fmt.Sprintf("%s: %v", base, e.cause)
	}
	return base
}

// Is checks if this error matches the target.
func (e *TimeoutError) Is(target error) bool {
	if _, ok := target.(*TimeoutError); ok {
		return true
	}
	if errors.Is(target, ErrTimeout) {
		return true
	}
	return e.baseError.Is(target)
}

// -----------------------------------------------------------------------------
// Error Classification Helpers
// -----------------------------------------------------------------------------

// IsRetryable returns true if the error represents a transient condition
// that may succeed on retry. This checks for:
//   - Errors implementing GantryError with IsRetryable() returning true
//   - TimeoutError instances
//   - Errors wrapping ErrTimeout
//
// Example:
//
//	if errors.IsRetryable(err) {
//	    time.Sleep(backoff)
//	    return retry(operation)
//	}
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}

	// Check if error implements GantryError
	var gerr GantryError
	if As(err, &gerr) {
		return gerr.IsRetryable()
	}

	// Check for known retryable sentinel errors
	if Is(err, ErrTimeout) {
		return true
	}

	return false
}

// IsUserFacing returns true if the error message is safe to display to end users.
// This checks for:
//   - Errors implementing GantryError with IsUserFacing() returning true
//   - Semantic errors (NotFoundError, AlreadyExistsError, ValidationError, TimeoutError)
//
// Example:
//
//	if errors.IsUserFacing(err) {
//	    displayToUser(err.Error())
//	} else {
//	    displayToUser("An internal error occurred")
//	    log.Error("internal error", "err", err)
//	}
func IsUserFacing(err error) bool {
	if err == nil {
		return false
	}

	// Check if error implements GantryError
	var gerr GantryError
	if As(err, &gerr) {
		return gerr.IsUserFacing()
	}

	// Semantic errors are always user-facing
	var notFound *NotFoundError
	var alreadyExists *AlreadyExistsError
	var validation *ValidationError
	var timeout *TimeoutError

	if As(err, &notFound) || As(err, &alreadyExists) ||
		As(err, &validation) || As(err, &timeout) {
		return true
	}

	return false
}

// GetSeverity returns the severity level of the error.
// Returns SeverityError for errors that don't implement GantryError.
//
// Example:
//
//	switch errors.GetSeverity(err) {
//	case errors.SeverityCritical:
//	    alertOnCall(err)
//	case errors.SeverityError:
//	    log.Error("error occurred", "err", err)
//	case errors.SeverityWarning:
//	    log.Warn("warning", "err", err)
//	}
func GetSeverity(err error) Severity {
	if err == nil {
		return SeverityDebug
	}

	// Check if error implements GantryError
	var gerr GantryError
	if As(err, &gerr) {
		return gerr.Severity()
	}

	// Default to Error severity for unknown errors
	return SeverityError
}

// IsDomainError returns true if the error is a domain-specific error
// (ExecutionError, DependencyUnmetError, GateRejectedError, or GateTimeoutError).
func IsDomainError(err error) bool {
	if err == nil {
		return false
	}

	var execErr *ExecutionError
	var depErr *DependencyUnmetError
	var rejErr *GateRejectedError
	var toErr *GateTimeoutError

	return As(err, &execErr) || As(err, &depErr) ||
		As(err, &rejErr) || As(err, &toErr)
}

// IsSemanticError returns true if the error is a semantic error
// (NotFoundError, AlreadyExistsError, ValidationError, or TimeoutError).
func IsSemanticError(err error) bool {
	if err == nil {
		return false
	}

	var notFound *NotFoundError
	var alreadyExists *AlreadyExistsError
	var validation *ValidationError
	var timeout *TimeoutError

	return As(err, &notFound) || As(err, &alreadyExists) ||
		As(err, &validation) || As(err, &timeout)
}

// IsGateTerminal returns true if the error is a gate resolution that is
// terminal for a run (rejection or timeout).
func IsGateTerminal(err error) bool {
	if err == nil {
		return false
	}

	var rejErr *GateRejectedError
	var toErr *GateTimeoutError

	return As(err, &rejErr) || As(err, &toErr)
}

// -----------------------------------------------------------------------------
// Convenience Constructors
// -----------------------------------------------------------------------------

// Wrap wraps an error with additional context message.
// Unlike fmt.Errorf with %w, this preserves the GantryError interface.
//
// Example:
//
//	err := errors.Wrap(baseErr, "failed to persist artifact")
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}

// Wrapf wraps an error with a formatted context message.
//
// Example:
//
//	err := errors.Wrapf(baseErr, "failed to load run %s", runID)
func Wrapf(err error, format string, args ...any) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), err)
}
