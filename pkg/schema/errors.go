package schema

import "fmt"

// Error codes for structured error reporting.
const (
	ErrCodeValidation    = "VALIDATION_ERROR"
	ErrCodeDiscovery     = "DISCOVERY_ERROR"
	ErrCodeAnalysis      = "ANALYSIS_ERROR"
	ErrCodeNotFound      = "NOT_FOUND"
	ErrCodeConflict      = "CONFLICT"
	ErrCodeExecution     = "EXECUTION_ERROR"
	ErrCodeResolution    = "RESOLUTION_ERROR"
	ErrCodeCircuitOpen   = "CIRCUIT_OPEN"
	ErrCodeInterpolation = "INTERPOLATION_ERROR"
	ErrCodeStore         = "STORE_ERROR"
	ErrCodeWrite         = "WRITE_ERROR"
	ErrCodeTimeout       = "TIMEOUT_ERROR"
)

// ActisError is the structured error type for all actis operations.
type ActisError struct {
	Code    string         `json:"code"`
	Message string         `json:"message"`
	Details map[string]any `json:"details,omitempty"`
	Action  string         `json:"action,omitempty"`
	Cause   error          `json:"-"`
}

func (e *ActisError) Error() string {
	if e.Action != "" {
		return fmt.Sprintf("[%s] action %s: %s", e.Code, e.Action, e.Message)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

func (e *ActisError) Unwrap() error {
	return e.Cause
}

// IsRetryable reports whether the error code indicates a transient failure.
// Only resolution-side transport failures are considered retryable; local
// validation, lookup and execution errors are deterministic.
func (e *ActisError) IsRetryable() bool {
	switch e.Code {
	case ErrCodeResolution, ErrCodeTimeout:
		return true
	default:
		return false
	}
}

// NewError creates a new ActisError.
func NewError(code, message string) *ActisError {
	return &ActisError{Code: code, Message: message}
}

// NewErrorf creates a new ActisError with a formatted message.
func NewErrorf(code, format string, args ...any) *ActisError {
	return &ActisError{Code: code, Message: fmt.Sprintf(format, args...)}
}

// WithAction attaches an action name to the error.
func (e *ActisError) WithAction(name string) *ActisError {
	e.Action = name
	return e
}

// WithCause attaches an underlying cause.
func (e *ActisError) WithCause(err error) *ActisError {
	e.Cause = err
	return e
}

// WithDetails attaches key-value details.
func (e *ActisError) WithDetails(details map[string]any) *ActisError {
	e.Details = details
	return e
}
