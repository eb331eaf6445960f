// Package errors provides centralized error definitions and error handling utilities
// for the foundry engine. It defines pipeline sentinels, domain error types,
// semantic error types, and classification helpers.
//
// # Error Types
//
// Domain-specific errors carry pipeline context:
//   - PhaseError: a phase runner or concept-step action failed
//   - CouncilError: a council run could not produce a verdict
//
// Semantic errors represent common error conditions:
//   - NotFoundError: resource not found
//   - ValidationError: invalid input or state, rejected before any mutation
//   - TimeoutError: the council deadline elapsed
//
// # Usage
//
//	err := errors.NewValidationError("phase is not awaiting review").
//	    WithField("sub_state").WithValue("working").WithCause(errors.ErrNotInReview)
//
//	if errors.Is(err, errors.ErrNotInReview) { ... }
//	if errors.IsValidation(err) { ... }
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

// Pipeline sentinel errors
var (
	// ErrProjectNotFound indicates that a project could not be found.
	ErrProjectNotFound = New("project not found")
	// ErrAlreadyStarted indicates the pipeline has already moved past its first phase.
	ErrAlreadyStarted = New("pipeline already started")
	// ErrNotStarted indicates an operation needs a pipeline that does not exist yet.
	ErrNotStarted = New("pipeline not started")
	// ErrNotInReview indicates a review action on a phase that is not awaiting review.
	ErrNotInReview = New("phase is not awaiting review")
	// ErrFeedbackRequired indicates a rejection without feedback.
	ErrFeedbackRequired = New("feedback is required to reject")
	// ErrInvalidStep indicates an unknown or out-of-order step.
	ErrInvalidStep = New("invalid step")
	// ErrInvalidPhase indicates an unknown phase name.
	ErrInvalidPhase = New("invalid phase")
	// ErrInvalidAction indicates an unknown review action.
	ErrInvalidAction = New("invalid review action")
	// ErrWrongPhase indicates an operation that is only valid in another phase.
	ErrWrongPhase = New("operation not valid in current phase")
	// ErrTerminal indicates the pipeline reached the live phase.
	ErrTerminal = New("pipeline is live")
)

// Council sentinel errors
var (
	// ErrNoPanel indicates a council run was requested without a panel.
	ErrNoPanel = New("council panel is empty")
	// ErrNoEvaluations indicates every agent in a run failed.
	ErrNoEvaluations = New("no agent evaluations completed")
	// ErrNarrativeFailed indicates the synthesis narrative call failed.
	ErrNarrativeFailed = New("narrative synthesis failed")
	// ErrStaleRun indicates a write from a council run that has been replaced.
	ErrStaleRun = New("council run superseded")
)

// General sentinel errors
var (
	// ErrTimeout indicates that an operation timed out.
	ErrTimeout = New("operation timed out")
	// ErrInvalidInput indicates that input validation failed.
	ErrInvalidInput = New("invalid input")
)

// -----------------------------------------------------------------------------
// Base Error Interface
// -----------------------------------------------------------------------------

// FoundryError is the base interface for all foundry errors.
type FoundryError interface {
	error

	// Unwrap returns the underlying error, if any.
	Unwrap() error

	// Severity returns the severity level of this error.
	Severity() Severity

	// IsRetryable returns true if the error is transient and the operation
	// may succeed on retry.
	IsRetryable() bool

	// IsUserFacing returns true if the error message is safe to display
	// to end users.
	IsUserFacing() bool
}

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

func (e *baseError) format(prefix string, parts []string) string {
	if len(parts) > 0 {
		prefix = fmt.Sprintf("%s [%s]", prefix, strings.Join(parts, ", "))
	}
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", prefix, e.message, e.cause)
	}
	return fmt.Sprintf("%s: %s", prefix, e.message)
}

// -----------------------------------------------------------------------------
// Domain-Specific Errors
// -----------------------------------------------------------------------------

// PhaseError represents a failure inside a phase runner or a concept-step
// action. The pipeline renders it into the phase's feedback instead of
// returning it to the caller.
//
// Example:
//
//	err := errors.NewPhaseError("spec runner failed", cause).WithProject("p1").WithPhase("spec")
//	fmt.Println(err) // "phase error [project=p1, phase=spec]: spec runner failed: ..."
type PhaseError struct {
	baseError
	ProjectID string
	Phase     string
	Step      string
}

// NewPhaseError creates a new PhaseError.
func NewPhaseError(message string, cause error) *PhaseError {
	return &PhaseError{
		baseError: baseError{
			message:    message,
			cause:      cause,
			severity:   SeverityError,
			retryable:  true,
			userFacing: true,
		},
	}
}

// WithProject adds a project ID to the error context.
func (e *PhaseError) WithProject(id string) *PhaseError {
	e.ProjectID = id
	return e
}

// WithPhase adds a phase name to the error context.
func (e *PhaseError) WithPhase(phase string) *PhaseError {
	e.Phase = phase
	return e
}

// WithStep adds a step name to the error context.
func (e *PhaseError) WithStep(step string) *PhaseError {
	e.Step = step
	return e
}

// Error returns the formatted error message.
func (e *PhaseError) Error() string {
	var parts []string
	if e.ProjectID != "" {
		parts = append(parts, fmt.Sprintf("project=%s", e.ProjectID))
	}
	if e.Phase != "" {
		parts = append(parts, fmt.Sprintf("phase=%s", e.Phase))
	}
	if e.Step != "" {
		parts = append(parts, fmt.Sprintf("step=%s", e.Step))
	}
	return e.format("phase error", parts)
}

// CouncilError represents a council run that ended without a verdict.
//
// Example:
//
//	err := errors.NewCouncilError("synthesis skipped", errors.ErrNoEvaluations).WithRunID("r1")
type CouncilError struct {
	baseError
	ProjectID string
	RunID     string
	Agent     string
}

// NewCouncilError creates a new CouncilError.
func NewCouncilError(message string, cause error) *CouncilError {
	return &CouncilError{
		baseError: baseError{
			message:    message,
			cause:      cause,
			severity:   SeverityError,
			retryable:  true,
			userFacing: true,
		},
	}
}

// WithProject adds a project ID to the error context.
func (e *CouncilError) WithProject(id string) *CouncilError {
	e.ProjectID = id
	return e
}

// WithRunID adds a council run ID to the error context.
func (e *CouncilError) WithRunID(id string) *CouncilError {
	e.RunID = id
	return e
}

// WithAgent adds an agent name to the error context.
func (e *CouncilError) WithAgent(name string) *CouncilError {
	e.Agent = name
	return e
}

// Error returns the formatted error message.
func (e *CouncilError) Error() string {
	var parts []string
	if e.ProjectID != "" {
		parts = append(parts, fmt.Sprintf("project=%s", e.ProjectID))
	}
	if e.RunID != "" {
		parts = append(parts, fmt.Sprintf("run=%s", e.RunID))
	}
	if e.Agent != "" {
		parts = append(parts, fmt.Sprintf("agent=%s", e.Agent))
	}
	return e.format("council error", parts)
}

// -----------------------------------------------------------------------------
// Semantic Errors
// -----------------------------------------------------------------------------

// NotFoundError represents a resource that could not be found.
//
// Example:
//
//	err := errors.NewNotFoundError("project", "abc123")
//	fmt.Println(err) // "project 'abc123' not found"
type NotFoundError struct {
	baseError
	ResourceType string
	ResourceID   string
}

// NewNotFoundError creates a new NotFoundError.
func NewNotFoundError(resourceType, resourceID string) *NotFoundError {
	return &NotFoundError{
		baseError: baseError{
			message:    fmt.Sprintf("%s '%s' not found", resourceType, resourceID),
			severity:   SeverityWarning,
			userFacing: true,
		},
		ResourceType: resourceType,
		ResourceID:   resourceID,
	}
}

// NewProjectNotFound returns the NotFoundError used by every project store.
func NewProjectNotFound(id string) *NotFoundError {
	return NewNotFoundError("project", id).WithCause(ErrProjectNotFound)
}

// WithCause adds a cause to the error.
func (e *NotFoundError) WithCause(cause error) *NotFoundError {
	e.cause = cause
	return e
}

// Error returns the formatted error message.
func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s '%s' not found", e.ResourceType, e.ResourceID)
}

// ValidationError represents invalid input or state. Operations that return
// it have not mutated anything.
//
// Example:
//
//	err := errors.NewValidationError("feedback is required").WithField("feedback")
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
	return e.format("validation error", parts)
}

// Is lets every ValidationError match ErrInvalidInput.
func (e *ValidationError) Is(target error) bool {
	return target == ErrInvalidInput
}

// TimeoutError represents an operation that timed out.
//
// Example:
//
//	err := errors.NewTimeoutError("council deadline", 10*time.Minute)
//	fmt.Println(err) // "timeout error: council deadline (timeout: 10m0s)"
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
			retryable:  true,
			userFacing: true,
		},
		Operation: operation,
		Duration:  duration,
	}
}

// Error returns the formatted error message.
func (e *TimeoutError) Error() string {
	return fmt.Sprintf("timeout error: %s (timeout: %s)", e.Operation, e.Duration)
}

// Is lets every TimeoutError match ErrTimeout.
func (e *TimeoutError) Is(target error) bool {
	return target == ErrTimeout
}

// -----------------------------------------------------------------------------
// Error Classification Helpers
// -----------------------------------------------------------------------------

// IsValidation reports whether err is a synchronous validation rejection.
func IsValidation(err error) bool {
	var v *ValidationError
	return As(err, &v)
}

// IsNotFound reports whether err is a NotFoundError.
func IsNotFound(err error) bool {
	var nf *NotFoundError
	return As(err, &nf)
}

// IsRetryable returns true if the error represents a transient condition
// that may succeed on retry.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	var fe FoundryError
	if As(err, &fe) {
		return fe.IsRetryable()
	}
	return Is(err, ErrTimeout)
}

// IsUserFacing returns true if the error message is safe to display to end users.
func IsUserFacing(err error) bool {
	if err == nil {
		return false
	}
	var fe FoundryError
	if As(err, &fe) {
		return fe.IsUserFacing()
	}
	return false
}

// GetSeverity returns the severity level of the error.
// Returns SeverityError for errors that don't implement FoundryError.
func GetSeverity(err error) Severity {
	if err == nil {
		return SeverityDebug
	}
	var fe FoundryError
	if As(err, &fe) {
		return fe.Severity()
	}
	return SeverityError
}

// Render turns any error into the single line stored in a phase's feedback.
func Render(err error) string {
	if err == nil {
		return ""
	}
	var pe *PhaseError
	if As(err, &pe) {
		return pe.baseError.Error()
	}
	var ce *CouncilError
	if As(err, &ce) {
		return ce.baseError.Error()
	}
	return strings.TrimSpace(err.Error())
}
