package engine

import (
	"errors"
	"fmt"
)

// ErrorClass classifies an engine error for control-flow decisions.
type ErrorClass string

const (
	// ErrorClassExpected indicates a normal negative outcome that callers
	// should treat as a branch, not a defect. Example: a path lookup that
	// finds nothing.
	ErrorClassExpected ErrorClass = "expected"

	// ErrorClassRecoverable indicates a failure the recovery executor may
	// be able to repair, such as a non-optimal solver termination.
	ErrorClassRecoverable ErrorClass = "recoverable"

	// ErrorClassFatal indicates a non-recoverable failure.
	ErrorClassFatal ErrorClass = "fatal"
)

// EngineError represents a classified error with context.
// nolint:revive // EngineError is intentionally named to distinguish from standard errors
type EngineError struct {
	// Class is the error classification for recovery logic.
	Class ErrorClass `json:"class"`

	// Message is the human-readable error message.
	Message string `json:"message"`

	// Code is an error code for programmatic handling.
	Code string `json:"code,omitempty"`

	// Stage is the pipeline stage active when the error occurred, if any.
	Stage Stage `json:"stage,omitempty"`

	// Unit is the unit identifier that caused the error, if applicable.
	Unit string `json:"unit,omitempty"`

	// Err is the underlying error. External-tool error text is carried
	// here verbatim so operators see the original detail.
	Err error `json:"-"`

	// Details contains additional context-specific information.
	Details map[string]interface{} `json:"details,omitempty"`
}

// Error implements the error interface.
func (e *EngineError) Error() string {
	if e.Unit != "" {
		return fmt.Sprintf("[%s] %s (unit=%s): %s", e.Class, e.Message, e.Unit, e.unwrapMessage())
	}
	if e.Stage != "" {
		return fmt.Sprintf("[%s] %s (stage=%s): %s", e.Class, e.Message, e.Stage, e.unwrapMessage())
	}
	return fmt.Sprintf("[%s] %s: %s", e.Class, e.Message, e.unwrapMessage())
}

// Unwrap returns the underlying error for error chain inspection.
func (e *EngineError) Unwrap() error {
	return e.Err
}

func (e *EngineError) unwrapMessage() string {
	if e.Err != nil {
		return e.Err.Error()
	}
	return ""
}

// Is implements error equality checking for errors.Is.
func (e *EngineError) Is(target error) bool {
	t, ok := target.(*EngineError)
	if !ok {
		return false
	}
	return e.Class == t.Class && e.Code == t.Code
}

// WithStage adds stage context to an error.
func (e *EngineError) WithStage(stage Stage) *EngineError {
	e.Stage = stage
	return e
}

// WithUnit adds unit context to an error.
func (e *EngineError) WithUnit(unit string) *EngineError {
	e.Unit = unit
	return e
}

// WithDetail adds a detail field to the error context.
func (e *EngineError) WithDetail(key string, value interface{}) *EngineError {
	if e.Details == nil {
		e.Details = make(map[string]interface{})
	}
	e.Details[key] = value
	return e
}

// NewExpectedError creates a new expected-outcome error.
func NewExpectedError(message string, err error) *EngineError {
	return &EngineError{Class: ErrorClassExpected, Message: message, Err: err}
}

// NewRecoverableError creates a new recoverable error.
func NewRecoverableError(message string, err error) *EngineError {
	return &EngineError{Class: ErrorClassRecoverable, Message: message, Err: err}
}

// NewFatalError creates a new fatal error.
func NewFatalError(message string, err error) *EngineError {
	return &EngineError{Class: ErrorClassFatal, Message: message, Err: err}
}

// WithCode adds an error code to an error.
func (e *EngineError) WithCode(code string) *EngineError {
	e.Code = code
	return e
}

// IsExpected returns true if the error is an expected negative outcome.
func IsExpected(err error) bool {
	var e *EngineError
	if errors.As(err, &e) {
		return e.Class == ErrorClassExpected
	}
	return false
}

// IsRecoverable returns true if the recovery executor may repair the failure.
func IsRecoverable(err error) bool {
	var e *EngineError
	if errors.As(err, &e) {
		return e.Class == ErrorClassRecoverable
	}
	return false
}

// IsFatal returns true if the error is classified as fatal.
func IsFatal(err error) bool {
	var e *EngineError
	if errors.As(err, &e) {
		return e.Class == ErrorClassFatal
	}
	return false
}

// Error codes.
const (
	ErrCodePathNotFound      = "PATH_NOT_FOUND"
	ErrCodePathAmbiguous     = "PATH_AMBIGUOUS"
	ErrCodePathSyntax        = "PATH_SYNTAX"
	ErrCodeModelBuild        = "MODEL_BUILD"
	ErrCodeCycleDetected     = "CYCLE_DETECTED"
	ErrCodeUnderspecified    = "UNDERSPECIFIED"
	ErrCodeOverspecified     = "OVERSPECIFIED"
	ErrCodeStageFailure      = "STAGE_FAILURE"
	ErrCodeSolverNonOptimal  = "SOLVER_NON_OPTIMAL"
	ErrCodeRecoveryExhausted = "RECOVERY_EXHAUSTED"
	ErrCodeInternal          = "INTERNAL_ERROR"
)
