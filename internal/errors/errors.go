// Package errors provides error types and handling for keyforge.
// It classifies provisioning failures into the buckets the provisioner
// acts on: fatal, fatal with rollback, degraded and operator abort.
package errors

import (
	"errors"
	"fmt"
)

// Class is the handling bucket of a provisioning failure.
type Class int

const (
	// ClassUnknown is returned for errors that are not an AppError.
	ClassUnknown Class = iota
	// ClassFatalImmediate stops the run; nothing exists to compensate.
	ClassFatalImmediate
	// ClassFatalWithRollback stops the run and deletes the created project.
	ClassFatalWithRollback
	// ClassDegraded is logged and reported but the run continues.
	ClassDegraded
	// ClassBenignAbort is an operator interrupt: stop without rollback, not an error.
	ClassBenignAbort
)

func (c Class) String() string {
	switch c {
	case ClassFatalImmediate:
		return "fatal"
	case ClassFatalWithRollback:
		return "fatal-with-rollback"
	case ClassDegraded:
		return "degraded"
	case ClassBenignAbort:
		return "aborted"
	default:
		return "unknown"
	}
}

// AppError represents a provisioning error with its handling class.
type AppError struct {
	// Code is an error code string for programmatic handling
	Code string
	// Message is a user-friendly error message
	Message string
	// Class decides how the provisioner reacts
	Class Class
	// Cause is the underlying error (for error wrapping)
	Cause error
}

// Error implements the error interface.
func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

// Unwrap returns the underlying error for error unwrapping.
func (e *AppError) Unwrap() error {
	return e.Cause
}

// Is allows errors.Is to work with AppError.
func (e *AppError) Is(target error) bool {
	if t, ok := target.(*AppError); ok {
		return e.Code != "" && e.Code == t.Code
	}
	return false
}

// Predefined error codes.
const (
	ErrCodeInvalidProjectID   = "INVALID_PROJECT_ID"
	ErrCodeProjectCreate      = "PROJECT_CREATE_FAILED"
	ErrCodeNoBillingAccount   = "NO_BILLING_ACCOUNT"
	ErrCodeBillingUnavailable = "BILLING_LINK_UNRECOVERABLE"
	ErrCodeServiceActivation  = "SERVICE_ACTIVATION_FAILED"
	ErrCodeAPIKey             = "API_KEY_FAILED"
	ErrCodeServiceAccount     = "SERVICE_ACCOUNT_FAILED"
	ErrCodeRoleBinding        = "ROLE_BINDING_FAILED"
	ErrCodeArchive            = "ARCHIVE_FAILED"
	ErrCodeRollback           = "ROLLBACK_FAILED"
	ErrCodeAborted            = "ABORTED"
)

// New creates an AppError of the given class.
func New(class Class, code, message string, cause error) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Class:   class,
		Cause:   cause,
	}
}

// Convenience constructors for common errors

// ErrInvalidProjectID is returned when a generated or supplied project id is rejected locally.
func ErrInvalidProjectID(message string, cause error) *AppError {
	return New(ClassFatalImmediate, ErrCodeInvalidProjectID, message, cause)
}

// ErrProjectCreate is returned when the project could not be created.
func ErrProjectCreate(message string, cause error) *AppError {
	return New(ClassFatalImmediate, ErrCodeProjectCreate, message, cause)
}

// ErrNoBillingAccount is returned when no usable billing account could be
// resolved. Resolution happens before the project is created.
func ErrNoBillingAccount(message string, cause error) *AppError {
	return New(ClassFatalImmediate, ErrCodeNoBillingAccount, message, cause)
}

// ErrBillingUnrecoverable is returned when linking failed after the recovery cycle.
func ErrBillingUnrecoverable(message string, cause error) *AppError {
	return New(ClassFatalWithRollback, ErrCodeBillingUnavailable, message, cause)
}

// ErrServiceActivation reports services that could not be enabled.
func ErrServiceActivation(message string, cause error) *AppError {
	return New(ClassDegraded, ErrCodeServiceActivation, message, cause)
}

// ErrAPIKey reports a failed API key branch.
func ErrAPIKey(message string, cause error) *AppError {
	return New(ClassDegraded, ErrCodeAPIKey, message, cause)
}

// ErrServiceAccount reports a failed service-account branch.
func ErrServiceAccount(message string, cause error) *AppError {
	return New(ClassDegraded, ErrCodeServiceAccount, message, cause)
}

// ErrRoleBinding reports a single failed role binding.
func ErrRoleBinding(message string, cause error) *AppError {
	return New(ClassDegraded, ErrCodeRoleBinding, message, cause)
}

// ErrArchive reports an archival failure. Earlier steps are kept.
func ErrArchive(message string, cause error) *AppError {
	return New(ClassDegraded, ErrCodeArchive, message, cause)
}

// ErrRollback reports that the compensating delete itself failed.
func ErrRollback(message string, cause error) *AppError {
	return New(ClassFatalImmediate, ErrCodeRollback, message, cause)
}

// ErrAborted marks an operator interrupt.
func ErrAborted(message string, cause error) *AppError {
	return New(ClassBenignAbort, ErrCodeAborted, message, cause)
}

// GetClass extracts the handling class from an error.
// Returns ClassUnknown if the error is not an AppError.
func GetClass(err error) Class {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Class
	}
	return ClassUnknown
}

// GetErrorCode extracts the error code from an error.
// Returns empty string if the error is not an AppError.
func GetErrorCode(err error) string {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return ""
}

// GetErrorMessage extracts a user-friendly message from an error.
func GetErrorMessage(err error) string {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Message
	}
	return err.Error()
}

// GetErrorDetails extracts detailed error information including the underlying cause.
// Returns the underlying error message if available, otherwise returns the main error message.
func GetErrorDetails(err error) string {
	var appErr *AppError
	if errors.As(err, &appErr) {
		if appErr.Cause != nil {
			return appErr.Cause.Error()
		}
		return appErr.Message
	}
	return err.Error()
}
