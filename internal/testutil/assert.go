package testutil

import (
	stderrors "errors"
	"testing"

	"github.com/stretchr/testify/assert"

	appErrors "github.com/runvoy/keyforge/internal/errors"
)

// AssertErrorType checks if the error is of a specific type using errors.Is.
func AssertErrorType(t *testing.T, err, target error) bool {
	t.Helper()
	if !stderrors.Is(err, target) {
		return assert.Fail(t, "Error type mismatch", "Expected %v in chain, got %v", target, err)
	}
	return true
}

// AssertAppErrorCode checks if the error has a specific error code.
func AssertAppErrorCode(t *testing.T, err error, expectedCode string) bool {
	t.Helper()
	code := appErrors.GetErrorCode(err)
	if code != expectedCode {
		return assert.Fail(t, "Error code mismatch", "Expected error code %q, got %q", expectedCode, code)
	}
	return true
}

// AssertAppErrorClass checks how the error would be handled by a run.
func AssertAppErrorClass(t *testing.T, err error, expected appErrors.Class) bool {
	t.Helper()
	class := appErrors.GetClass(err)
	if class != expected {
		return assert.Fail(t, "Error class mismatch", "Expected class %s, got %s", expected, class)
	}
	return true
}
