package controlplane

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"google.golang.org/api/googleapi"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

var (
	// ErrNotFound indicates the resource does not exist.
	ErrNotFound = errors.New("not found")
	// ErrAlreadyExists indicates the resource already exists.
	ErrAlreadyExists = errors.New("already exists")
	// ErrQuotaExceeded indicates a quota, such as the projects-per-billing-account
	// cap, is exhausted.
	ErrQuotaExceeded = errors.New("quota exceeded")
	// ErrInvalidArgument indicates a malformed request, such as an invalid project id.
	ErrInvalidArgument = errors.New("invalid argument")
	// ErrPermissionDenied indicates the caller lacks permission.
	ErrPermissionDenied = errors.New("permission denied")
)

var sentinels = []error{ErrNotFound, ErrAlreadyExists, ErrQuotaExceeded, ErrInvalidArgument, ErrPermissionDenied}

var quotaReasons = []string{"quota", "ratelimitexceeded", "resource_exhausted"}

// Classify annotates err with the matching sentinel so callers can use
// errors.Is. Errors that match no sentinel, or already carry one, are
// returned unchanged.
func Classify(err error) error {
	if err == nil {
		return nil
	}
	for _, sentinel := range sentinels {
		if errors.Is(err, sentinel) {
			return err
		}
	}

	if sentinel := sentinelFor(err); sentinel != nil {
		return fmt.Errorf("%w: %w", sentinel, err)
	}
	return err
}

// IsQuotaExceeded reports whether err is a quota-class failure.
func IsQuotaExceeded(err error) bool {
	return errors.Is(Classify(err), ErrQuotaExceeded)
}

// IsNotFound reports whether err means the resource does not exist.
func IsNotFound(err error) bool {
	return errors.Is(Classify(err), ErrNotFound)
}

// IsAlreadyExists reports whether err means the resource already exists.
func IsAlreadyExists(err error) bool {
	return errors.Is(Classify(err), ErrAlreadyExists)
}

func sentinelFor(err error) error {
	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		return fromHTTP(apiErr)
	}

	if st, ok := status.FromError(err); ok && st.Code() != codes.Unknown && st.Code() != codes.OK {
		return fromGRPC(st.Code(), st.Message())
	}

	return nil
}

func fromHTTP(apiErr *googleapi.Error) error {
	quota := mentionsQuota(apiErr.Message) || mentionsQuota(apiErr.Body)
	for _, item := range apiErr.Errors {
		quota = quota || mentionsQuota(item.Reason) || mentionsQuota(item.Message)
	}

	switch apiErr.Code {
	case http.StatusTooManyRequests:
		return ErrQuotaExceeded
	case http.StatusBadRequest, http.StatusForbidden:
		if quota {
			return ErrQuotaExceeded
		}
		if apiErr.Code == http.StatusForbidden {
			return ErrPermissionDenied
		}
		return ErrInvalidArgument
	case http.StatusNotFound:
		return ErrNotFound
	case http.StatusConflict:
		return ErrAlreadyExists
	}
	return nil
}

func fromGRPC(code codes.Code, message string) error {
	//nolint:exhaustive // only the codes keyforge branches on
	switch code {
	case codes.ResourceExhausted:
		return ErrQuotaExceeded
	case codes.FailedPrecondition, codes.PermissionDenied:
		if mentionsQuota(message) {
			return ErrQuotaExceeded
		}
		if code == codes.PermissionDenied {
			return ErrPermissionDenied
		}
	case codes.InvalidArgument:
		return ErrInvalidArgument
	case codes.NotFound:
		return ErrNotFound
	case codes.AlreadyExists:
		return ErrAlreadyExists
	}
	return nil
}

func mentionsQuota(s string) bool {
	s = strings.ToLower(s)
	for _, reason := range quotaReasons {
		if strings.Contains(s, reason) {
			return true
		}
	}
	return false
}
