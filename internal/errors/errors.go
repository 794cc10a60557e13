package errors

import (
	stderrors "errors"
	"fmt"
)

// ErrorCode represents a noteboard error code.
type ErrorCode string

const (
	ErrValidation     ErrorCode = "VALIDATION"      // 400
	ErrInvalidRequest ErrorCode = "INVALID_REQUEST" // 400
	ErrAuth           ErrorCode = "AUTH"            // 401
	ErrNotFound       ErrorCode = "NOT_FOUND"       // 404
	ErrConflict       ErrorCode = "CONFLICT"        // 409
	ErrDecode         ErrorCode = "DECODE"          // 422
	ErrCancelled      ErrorCode = "CANCELLED"       // 499
	ErrStorage        ErrorCode = "STORAGE"         // 500 (local persistence, always fatal)
	ErrInternal       ErrorCode = "INTERNAL"        // 500
	ErrNetwork        ErrorCode = "NETWORK"         // 502
)

// NoteError represents a structured error with code, status, and details.
type NoteError struct {
	Code    ErrorCode
	Status  int
	Message string
	Details map[string]any
	Cause   error
}

// Error implements the error interface.
func (e *NoteError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause, if any.
func (e *NoteError) Unwrap() error {
	return e.Cause
}

// NewValidation creates a 400 error for input rejected before any persistence or remote call.
func NewValidation(msg string) *NoteError {
	return &NoteError{
		Code:    ErrValidation,
		Status:  400,
		Message: msg,
	}
}

// NewInvalidRequest creates a 400 error for invalid request parameters.
func NewInvalidRequest(msg string) *NoteError {
	return &NoteError{
		Code:    ErrInvalidRequest,
		Status:  400,
		Message: msg,
	}
}

// NewAuth creates a 401 error for a missing, expired or denied credential.
func NewAuth(msg string, cause error) *NoteError {
	return &NoteError{
		Code:    ErrAuth,
		Status:  401,
		Message: msg,
		Cause:   cause,
	}
}

// NewNotFound creates a 404 error for when a note or folder cannot be found.
func NewNotFound(kind, identifier string) *NoteError {
	return &NoteError{
		Code:    ErrNotFound,
		Status:  404,
		Message: fmt.Sprintf("%s not found: %s", kind, identifier),
		Details: map[string]any{"kind": kind, "identifier": identifier},
	}
}

// NewConflict creates a 409 error for general conflicts.
func NewConflict(msg string) *NoteError {
	return &NoteError{
		Code:    ErrConflict,
		Status:  409,
		Message: msg,
	}
}

// NewDecode creates a 422 error for a remote body that does not follow the note format.
func NewDecode(name string, cause error) *NoteError {
	msg := fmt.Sprintf("cannot decode remote file %q", name)
	if cause != nil {
		msg = fmt.Sprintf("%s: %v", msg, cause)
	}
	return &NoteError{
		Code:    ErrDecode,
		Status:  422,
		Message: msg,
		Details: map[string]any{"name": name},
		Cause:   cause,
	}
}

// NewCancelled creates a 499 error for an operation abandoned through its context.
func NewCancelled(operation string) *NoteError {
	return &NoteError{
		Code:    ErrCancelled,
		Status:  499,
		Message: fmt.Sprintf("%s cancelled", operation),
		Details: map[string]any{"operation": operation},
	}
}

// NewStorage creates a 500 error for a failed local write or read.
// The in-memory state and the store may disagree after this error, so it is never swallowed.
func NewStorage(err error) *NoteError {
	msg := "local storage error"
	if err != nil {
		msg = err.Error()
	}
	return &NoteError{
		Code:    ErrStorage,
		Status:  500,
		Message: msg,
		Cause:   err,
	}
}

// NewInternal creates a 500 error for unexpected internal errors.
func NewInternal(err error) *NoteError {
	msg := "internal error"
	if err != nil {
		msg = err.Error()
	}
	return &NoteError{
		Code:    ErrInternal,
		Status:  500,
		Message: msg,
		Cause:   err,
	}
}

// NewNetwork creates a 502 error for a failed remote call.
func NewNetwork(operation string, err error) *NoteError {
	msg := fmt.Sprintf("%s failed", operation)
	if err != nil {
		msg = fmt.Sprintf("%s failed: %v", operation, err)
	}
	return &NoteError{
		Code:    ErrNetwork,
		Status:  502,
		Message: msg,
		Details: map[string]any{"operation": operation},
		Cause:   err,
	}
}

// Is checks if an error is (or wraps) a NoteError with the given code.
func Is(err error, code ErrorCode) bool {
	var nErr *NoteError
	if stderrors.As(err, &nErr) {
		return nErr.Code == code
	}
	return false
}

// CodeOf returns the code of the first NoteError in err's chain, or ErrInternal.
func CodeOf(err error) ErrorCode {
	var nErr *NoteError
	if stderrors.As(err, &nErr) {
		return nErr.Code
	}
	return ErrInternal
}
