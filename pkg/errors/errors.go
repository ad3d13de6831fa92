package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// Error represents a typed domain error with HTTP awareness.
type Error struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Status  int    `json:"status"`
	Err     error  `json:"-"`
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

// Unwrap returns the wrapped error.
func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// New creates a new Error instance.
func New(code string, status int, message string) *Error {
	return &Error{Code: code, Status: status, Message: message}
}

// Wrap attaches context to an existing error.
func Wrap(err error, code string, status int, message string) *Error {
	return &Error{Code: code, Status: status, Message: message, Err: err}
}

// Generic errors shared across handlers and services.
var (
	ErrNotFound     = New("NOT_FOUND", http.StatusNotFound, "resource not found")
	ErrForbidden    = New("FORBIDDEN", http.StatusForbidden, "forbidden")
	ErrUnauthorized = New("UNAUTHORIZED", http.StatusUnauthorized, "unauthorized")
	ErrConflict     = New("CONFLICT", http.StatusConflict, "conflict")
	ErrValidation   = New("VALIDATION_ERROR", http.StatusBadRequest, "validation failed")
	ErrInternal     = New("INTERNAL_ERROR", http.StatusInternalServerError, "internal server error")
	ErrTransient    = New("TRANSIENT_STORAGE_ERROR", http.StatusServiceUnavailable, "storage temporarily unavailable")
)

// Workflow errors raised by the submission/approval pipeline. Each carries a
// distinct code so clients can present the corrective action for that failure,
// both for direct calls and for conflicts surfaced during queue replay.
var (
	ErrAssignmentNotAvailable  = New("ASSIGNMENT_NOT_AVAILABLE", http.StatusConflict, "assignment is not available for this operation")
	ErrExactDuplicate          = New("EXACT_DUPLICATE", http.StatusConflict, "an open submission already exists for this assignment and work date")
	ErrDuplicateConflict       = New("DUPLICATE_CONFLICT", http.StatusConflict, "another worker has an open submission for this assignment and work date")
	ErrAlreadyDecided          = New("ALREADY_DECIDED", http.StatusConflict, "submission has already been decided")
	ErrMissingRejectionReason  = New("MISSING_REJECTION_REASON", http.StatusBadRequest, "a rejection requires a reason")
	ErrMissingOverrideReason   = New("MISSING_OVERRIDE_REASON", http.StatusBadRequest, "an override total requires an override reason")
	ErrInvalidQuantity         = New("INVALID_QUANTITY", http.StatusBadRequest, "quantity must not be negative")
	ErrQuantityRequired        = New("QUANTITY_REQUIRED", http.StatusBadRequest, "per-unit pricing requires a completed quantity")
	ErrSafetyChecksIncomplete  = New("SAFETY_CHECKS_INCOMPLETE", http.StatusBadRequest, "safety checks must be completed before submitting work")
	ErrAssignmentLocked        = New("ASSIGNMENT_LOCKED", http.StatusConflict, "assignment is locked")
	ErrSubmissionNotPending    = New("SUBMISSION_NOT_PENDING", http.StatusConflict, "submission is no longer pending")
	ErrMutationAlreadySynced   = New("MUTATION_ALREADY_SYNCED", http.StatusConflict, "mutation has already been synced")
	ErrMutationConflict        = New("MUTATION_CONFLICT", http.StatusConflict, "mutation failed replay validation")
	ErrUnsupportedMutationKind = New("UNSUPPORTED_MUTATION_KIND", http.StatusBadRequest, "unsupported mutation kind")
)

// FromError normalises any error into an *Error.
func FromError(err error) *Error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	return Wrap(err, ErrInternal.Code, ErrInternal.Status, ErrInternal.Message)
}

// Clone returns a copy of the error allowing for message overrides.
func Clone(err *Error, message string) *Error {
	if err == nil {
		return nil
	}
	clone := *err
	if message != "" {
		clone.Message = message
	}
	return &clone
}

// HasCode reports whether err carries the same code as target. Clones and
// wraps of a predefined error keep its code, so replay bookkeeping compares
// codes rather than pointer identity.
func HasCode(err error, target *Error) bool {
	if err == nil || target == nil {
		return false
	}
	var e *Error
	if !errors.As(err, &e) {
		return false
	}
	return e.Code == target.Code
}

// IsStateConflict reports whether the error belongs to the state-conflict
// taxonomy: illegal transition, duplicate, or re-decision. State conflicts are
// never auto-retried since replaying them reproduces the same failure.
func IsStateConflict(err error) bool {
	for _, target := range []*Error{
		ErrAssignmentNotAvailable,
		ErrExactDuplicate,
		ErrDuplicateConflict,
		ErrAlreadyDecided,
		ErrAssignmentLocked,
		ErrSubmissionNotPending,
		ErrConflict,
	} {
		if HasCode(err, target) {
			return true
		}
	}
	return false
}

// IsTransient reports whether the error is a transient storage failure safe to
// retry a bounded number of times.
func IsTransient(err error) bool {
	return HasCode(err, ErrTransient)
}
