package errors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAppError_Error(t *testing.T) {
	tests := []struct {
		name     string
		err      *AppError
		expected string
	}{
		{
			name: "error with cause",
			err: &AppError{
				Code:    ErrCodeProjectCreate,
				Message: "failed to create project",
				Class:   ClassFatalImmediate,
				Cause:   errors.New("already exists"),
			},
			expected: "failed to create project: already exists",
		},
		{
			name: "error without cause",
			err: &AppError{
				Code:    ErrCodeAborted,
				Message: "run aborted",
				Class:   ClassBenignAbort,
			},
			expected: "run aborted",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.err.Error())
		})
	}
}

func TestAppError_Unwrap(t *testing.T) {
	cause := errors.New("underlying error")
	err := ErrAPIKey("api key branch failed", cause)

	assert.Equal(t, cause, err.Unwrap())
	assert.ErrorIs(t, err, cause)
}

func TestAppError_Is(t *testing.T) {
	tests := []struct {
		name     string
		err      *AppError
		target   error
		expected bool
	}{
		{
			name:     "same error code matches",
			err:      ErrBillingUnrecoverable("link failed", nil),
			target:   &AppError{Code: ErrCodeBillingUnavailable},
			expected: true,
		},
		{
			name:     "different error code does not match",
			err:      ErrBillingUnrecoverable("link failed", nil),
			target:   &AppError{Code: ErrCodeProjectCreate},
			expected: false,
		},
		{
			name:     "empty code never matches",
			err:      &AppError{Message: "no code"},
			target:   &AppError{},
			expected: false,
		},
		{
			name:     "non AppError target",
			err:      ErrAborted("stop", nil),
			target:   errors.New("stop"),
			expected: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.err.Is(tt.target))
		})
	}
}

func TestConstructorsAssignClass(t *testing.T) {
	tests := []struct {
		name  string
		err   *AppError
		class Class
		code  string
	}{
		{"invalid id", ErrInvalidProjectID("bad", nil), ClassFatalImmediate, ErrCodeInvalidProjectID},
		{"create", ErrProjectCreate("bad", nil), ClassFatalImmediate, ErrCodeProjectCreate},
		{"no billing account", ErrNoBillingAccount("bad", nil), ClassFatalImmediate, ErrCodeNoBillingAccount},
		{"billing", ErrBillingUnrecoverable("bad", nil), ClassFatalWithRollback, ErrCodeBillingUnavailable},
		{"services", ErrServiceActivation("bad", nil), ClassDegraded, ErrCodeServiceActivation},
		{"api key", ErrAPIKey("bad", nil), ClassDegraded, ErrCodeAPIKey},
		{"service account", ErrServiceAccount("bad", nil), ClassDegraded, ErrCodeServiceAccount},
		{"role", ErrRoleBinding("bad", nil), ClassDegraded, ErrCodeRoleBinding},
		{"archive", ErrArchive("bad", nil), ClassDegraded, ErrCodeArchive},
		{"rollback", ErrRollback("bad", nil), ClassFatalImmediate, ErrCodeRollback},
		{"aborted", ErrAborted("bad", nil), ClassBenignAbort, ErrCodeAborted},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.class, tt.err.Class)
			assert.Equal(t, tt.code, tt.err.Code)
		})
	}
}

func TestGetHelpers(t *testing.T) {
	cause := errors.New("permission denied")
	wrapped := fmt.Errorf("step: %w", ErrServiceAccount("service account branch failed", cause))

	assert.Equal(t, ClassDegraded, GetClass(wrapped))
	assert.Equal(t, ErrCodeServiceAccount, GetErrorCode(wrapped))
	assert.Equal(t, "service account branch failed", GetErrorMessage(wrapped))
	assert.Equal(t, "permission denied", GetErrorDetails(wrapped))

	plain := errors.New("plain")
	assert.Equal(t, ClassUnknown, GetClass(plain))
	assert.Empty(t, GetErrorCode(plain))
	assert.Equal(t, "plain", GetErrorMessage(plain))
	assert.Equal(t, "plain", GetErrorDetails(plain))

	noCause := ErrArchive("archive failed", nil)
	assert.Equal(t, "archive failed", GetErrorDetails(noCause))
}

func TestClassString(t *testing.T) {
	assert.Equal(t, "fatal", ClassFatalImmediate.String())
	assert.Equal(t, "fatal-with-rollback", ClassFatalWithRollback.String())
	assert.Equal(t, "degraded", ClassDegraded.String())
	assert.Equal(t, "aborted", ClassBenignAbort.String())
	assert.Equal(t, "unknown", ClassUnknown.String())
}
