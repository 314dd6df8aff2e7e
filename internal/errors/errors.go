// Package errors provides centralized error definitions and error handling
// utilities for the Parley codebase. It defines domain-specific errors,
// semantic error types, error constructors with context wrapping, and the
// local-runtime error taxonomy used by the provider dispatcher.
//
// # Error Types
//
// Domain-specific errors represent errors from specific subsystems:
//   - DispatchError: errors resolving an agent reply (cloud or local)
//   - RuntimeError: errors reported by the local inference runtime,
//     classified by a RuntimeCondition
//   - ActionError: errors executing a suggested action
//
// Semantic errors represent common error conditions:
//   - NotFoundError: resource not found
//   - ValidationError: invalid input or state
//
// # Usage
//
// Creating errors:
//
//	err := errors.NewDispatchError("provider call failed", cause).WithAgentID("gpt")
//	err := errors.NewRuntimeError(404, cause)
//
// Checking errors:
//
//	if errors.Is(err, errors.ErrMissingCredential) { ... }
//
//	var runtimeErr *errors.RuntimeError
//	if errors.As(err, &runtimeErr) { guidance := runtimeErr.Guidance() }
package errors

import (
	"errors"
	"fmt"
	"strings"
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

// -----------------------------------------------------------------------------
// Sentinel Errors
// -----------------------------------------------------------------------------

// Dispatch-related sentinel errors
var (
	// ErrMissingCredential indicates no credential is stored for the agent's provider.
	ErrMissingCredential = New("no credential stored for provider")
	// ErrEmptyPrompt indicates the prompt was empty after trimming.
	ErrEmptyPrompt = New("prompt is empty")
	// ErrUnknownProvider indicates the named provider is not registered.
	ErrUnknownProvider = New("unknown provider")
	// ErrRuntimeUnreachable indicates the local runtime failed its readiness check.
	ErrRuntimeUnreachable = New("local runtime unreachable")
	// ErrAgentInactive indicates a dispatch was attempted against an inactive agent.
	ErrAgentInactive = New("agent is not active")
)

// Action-related sentinel errors
var (
	// ErrActionNotFound indicates the action id is not in the registry.
	ErrActionNotFound = New("action not found")
	// ErrActionTerminal indicates the action is in a terminal state and cannot transition.
	ErrActionTerminal = New("action already in terminal state")
	// ErrActionNotPending indicates a transition required the action to be pending.
	ErrActionNotPending = New("action is not pending")
	// ErrPathNotAllowed indicates an action payload path failed the allowlist check.
	ErrPathNotAllowed = New("path not permitted by allowlist")
)

// Scheduling-related sentinel errors
var (
	// ErrAlreadyScheduled indicates a message already has an in-flight resolution.
	ErrAlreadyScheduled = New("message resolution already in flight")
	// ErrScopeCanceled indicates the owning conversation scope was torn down.
	ErrScopeCanceled = New("conversation scope canceled")
)

// General sentinel errors
var (
	// ErrInvalidInput indicates that input validation failed.
	ErrInvalidInput = New("invalid input")
	// ErrUnknownStrategy indicates the strategy id is not in the registry.
	ErrUnknownStrategy = New("unknown coordination strategy")
)

// -----------------------------------------------------------------------------
// Local Runtime Taxonomy
// -----------------------------------------------------------------------------

// RuntimeCondition classifies a local-runtime failure into one of the named
// conditions of the error taxonomy. Every condition maps to an actionable
// user-facing guidance string.
type RuntimeCondition string

const (
	// ConditionAuthRejected means the runtime rejected the configured credential.
	ConditionAuthRejected RuntimeCondition = "auth-rejected"
	// ConditionNoActiveModel means no local model is activated.
	ConditionNoActiveModel RuntimeCondition = "no-active-model"
	// ConditionOperationInProgress means a conflicting download or activation is running.
	ConditionOperationInProgress RuntimeCondition = "operation-in-progress"
	// ConditionServiceUnavailable means the runtime service is not reachable or not ready.
	ConditionServiceUnavailable RuntimeCondition = "service-unavailable"
	// ConditionInternalError means the runtime reported an internal failure.
	ConditionInternalError RuntimeCondition = "internal-error"
	// ConditionUnknown covers any status not covered by the named conditions.
	ConditionUnknown RuntimeCondition = "unknown"
)

// ClassifyRuntimeStatus maps an HTTP-style runtime status code to a condition.
func ClassifyRuntimeStatus(status int) RuntimeCondition {
	switch status {
	case 401, 403:
		return ConditionAuthRejected
	case 404:
		return ConditionNoActiveModel
	case 409:
		return ConditionOperationInProgress
	case 503:
		return ConditionServiceUnavailable
	case 500:
		return ConditionInternalError
	default:
		return ConditionUnknown
	}
}

// RuntimeError represents a failure reported by the local inference runtime.
// It carries the raw status and the classified condition, and produces an
// actionable user-facing guidance message. Runtime errors are never fatal to
// the conversation: the dispatcher converts them into fallback resolutions.
type RuntimeError struct {
	Status    int
	Condition RuntimeCondition
	cause     error
}

// NewRuntimeError creates a RuntimeError, classifying the status code.
func NewRuntimeError(status int, cause error) *RuntimeError {
	return &RuntimeError{
		Status:    status,
		Condition: ClassifyRuntimeStatus(status),
		cause:     cause,
	}
}

// Guidance returns the actionable user-facing message for this condition.
func (e *RuntimeError) Guidance() string {
	switch e.Condition {
	case ConditionAuthRejected:
		return "the runtime rejected the request: check your configured token"
	case ConditionNoActiveModel:
		return "no model is loaded: activate a local model first"
	case ConditionOperationInProgress:
		return "the runtime is busy: wait for the current download or activation to finish"
	case ConditionServiceUnavailable:
		return "the runtime did not respond: confirm the service is running"
	case ConditionInternalError:
		return "the runtime hit an internal error: inspect service logs"
	default:
		return fmt.Sprintf("runtime returned an error (status %d)", e.Status)
	}
}

// Error returns the formatted error message.
func (e *RuntimeError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("runtime error [status=%d, condition=%s]: %v", e.Status, e.Condition, e.cause)
	}
	return fmt.Sprintf("runtime error [status=%d, condition=%s]", e.Status, e.Condition)
}

// Unwrap returns the underlying error.
func (e *RuntimeError) Unwrap() error { return e.cause }

// Is checks if this error matches the target.
func (e *RuntimeError) Is(target error) bool {
	if _, ok := target.(*RuntimeError); ok {
		return true
	}
	if e.cause != nil {
		return errors.Is(e.cause, target)
	}
	return false
}

// IsRetryable reports whether the condition is transient.
func (e *RuntimeError) IsRetryable() bool {
	return e.Condition == ConditionOperationInProgress || e.Condition == ConditionServiceUnavailable
}

// -----------------------------------------------------------------------------
// Domain-Specific Errors
// -----------------------------------------------------------------------------

// DispatchError represents a failure resolving an agent reply.
//
// Example:
//
//	err := errors.NewDispatchError("provider call failed", cause).
//		WithAgentID("gpt").WithProvider("openai")
type DispatchError struct {
	AgentID  string
	Provider string
	message  string
	cause    error
}

// NewDispatchError creates a new DispatchError.
func NewDispatchError(message string, cause error) *DispatchError {
	return &DispatchError{message: message, cause: cause}
}

// WithAgentID adds the agent id to the error context.
func (e *DispatchError) WithAgentID(id string) *DispatchError {
	e.AgentID = id
	return e
}

// WithProvider adds the provider name to the error context.
func (e *DispatchError) WithProvider(provider string) *DispatchError {
	e.Provider = provider
	return e
}

// Error returns the formatted error message.
func (e *DispatchError) Error() string {
	var parts []string
	if e.AgentID != "" {
		parts = append(parts, fmt.Sprintf("agent=%s", e.AgentID))
	}
	if e.Provider != "" {
		parts = append(parts, fmt.Sprintf("provider=%s", e.Provider))
	}

	prefix := "dispatch error"
	if len(parts) > 0 {
		prefix = fmt.Sprintf("dispatch error [%s]", strings.Join(parts, ", "))
	}

	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", prefix, e.message, e.cause)
	}
	return fmt.Sprintf("%s: %s", prefix, e.message)
}

// Unwrap returns the underlying error.
func (e *DispatchError) Unwrap() error { return e.cause }

// Is checks if this error matches the target.
func (e *DispatchError) Is(target error) bool {
	if _, ok := target.(*DispatchError); ok {
		return true
	}
	if e.cause != nil {
		return errors.Is(e.cause, target)
	}
	return false
}

// ActionError represents a failure executing a suggested action. Action
// execution failures are scoped to the single action and never affect the
// owning message.
type ActionError struct {
	ActionID string
	Kind     string
	message  string
	cause    error
}

// NewActionError creates a new ActionError.
func NewActionError(message string, cause error) *ActionError {
	return &ActionError{message: message, cause: cause}
}

// WithActionID adds the action id to the error context.
func (e *ActionError) WithActionID(id string) *ActionError {
	e.ActionID = id
	return e
}

// WithKind adds the action kind to the error context.
func (e *ActionError) WithKind(kind string) *ActionError {
	e.Kind = kind
	return e
}

// Error returns the formatted error message.
func (e *ActionError) Error() string {
	var parts []string
	if e.ActionID != "" {
		parts = append(parts, fmt.Sprintf("action=%s", e.ActionID))
	}
	if e.Kind != "" {
		parts = append(parts, fmt.Sprintf("kind=%s", e.Kind))
	}

	prefix := "action error"
	if len(parts) > 0 {
		prefix = fmt.Sprintf("action error [%s]", strings.Join(parts, ", "))
	}

	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", prefix, e.message, e.cause)
	}
	return fmt.Sprintf("%s: %s", prefix, e.message)
}

// Unwrap returns the underlying error.
func (e *ActionError) Unwrap() error { return e.cause }

// Is checks if this error matches the target.
func (e *ActionError) Is(target error) bool {
	if _, ok := target.(*ActionError); ok {
		return true
	}
	if e.cause != nil {
		return errors.Is(e.cause, target)
	}
	return false
}

// -----------------------------------------------------------------------------
// Semantic Errors
// -----------------------------------------------------------------------------

// NotFoundError represents a resource that could not be found.
//
// Example:
//
//	err := errors.NewNotFoundError("agent", "gpt")
//	fmt.Println(err) // "agent 'gpt' not found"
type NotFoundError struct {
	ResourceType string
	ResourceID   string
	cause        error
}

// NewNotFoundError creates a new NotFoundError.
func NewNotFoundError(resourceType, resourceID string) *NotFoundError {
	return &NotFoundError{ResourceType: resourceType, ResourceID: resourceID}
}

// WithCause adds a cause to the error.
func (e *NotFoundError) WithCause(cause error) *NotFoundError {
	e.cause = cause
	return e
}

// Error returns the formatted error message.
func (e *NotFoundError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s '%s' not found: %v", e.ResourceType, e.ResourceID, e.cause)
	}
	return fmt.Sprintf("%s '%s' not found", e.ResourceType, e.ResourceID)
}

// Unwrap returns the underlying error.
func (e *NotFoundError) Unwrap() error { return e.cause }

// Is checks if this error matches the target.
func (e *NotFoundError) Is(target error) bool {
	if _, ok := target.(*NotFoundError); ok {
		return true
	}
	if e.cause != nil {
		return errors.Is(e.cause, target)
	}
	return false
}

// ValidationError represents invalid input or state.
type ValidationError struct {
	Field   string
	message string
	cause   error
}

// NewValidationError creates a new ValidationError.
func NewValidationError(message string) *ValidationError {
	return &ValidationError{message: message}
}

// WithField adds a field name to the error context.
func (e *ValidationError) WithField(field string) *ValidationError {
	e.Field = field
	return e
}

// WithCause adds a cause to the error.
func (e *ValidationError) WithCause(cause error) *ValidationError {
	e.cause = cause
	return e
}

// Error returns the formatted error message.
func (e *ValidationError) Error() string {
	prefix := "validation error"
	if e.Field != "" {
		prefix = fmt.Sprintf("validation error [field=%s]", e.Field)
	}
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", prefix, e.message, e.cause)
	}
	return fmt.Sprintf("%s: %s", prefix, e.message)
}

// Unwrap returns the underlying error.
func (e *ValidationError) Unwrap() error { return e.cause }

// Is checks if this error matches the target.
func (e *ValidationError) Is(target error) bool {
	if _, ok := target.(*ValidationError); ok {
		return true
	}
	if errors.Is(target, ErrInvalidInput) {
		return true
	}
	if e.cause != nil {
		return errors.Is(e.cause, target)
	}
	return false
}

// -----------------------------------------------------------------------------
// Classification Helpers
// -----------------------------------------------------------------------------

// IsRetryable returns true if the error represents a transient condition
// that may succeed on retry.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	var runtimeErr *RuntimeError
	if As(err, &runtimeErr) {
		return runtimeErr.IsRetryable()
	}
	return false
}

// IsUserFacing returns true if the error message is safe to display to end
// users. Dispatch, runtime, action, and semantic errors are all user-facing;
// anything else is considered internal.
func IsUserFacing(err error) bool {
	if err == nil {
		return false
	}

	var dispatchErr *DispatchError
	var runtimeErr *RuntimeError
	var actionErr *ActionError
	var notFound *NotFoundError
	var validation *ValidationError

	return As(err, &dispatchErr) || As(err, &runtimeErr) || As(err, &actionErr) ||
		As(err, &notFound) || As(err, &validation)
}

// -----------------------------------------------------------------------------
// Convenience Constructors
// -----------------------------------------------------------------------------

// Wrap wraps an error with additional context message.
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}

// Wrapf wraps an error with a formatted context message.
func Wrapf(err error, format string, args ...any) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), err)
}
