package controlplane

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"google.golang.org/api/googleapi"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want error
	}{
		{
			name: "http not found",
			err:  &googleapi.Error{Code: http.StatusNotFound, Message: "project not found"},
			want: ErrNotFound,
		},
		{
			name: "http conflict",
			err:  &googleapi.Error{Code: http.StatusConflict, Message: "requested entity already exists"},
			want: ErrAlreadyExists,
		},
		{
			name: "http too many requests",
			err:  &googleapi.Error{Code: http.StatusTooManyRequests},
			want: ErrQuotaExceeded,
		},
		{
			name: "http billing quota precondition",
			err: &googleapi.Error{
				Code:    http.StatusBadRequest,
				Message: "Precondition check failed.",
				Body:    "Cloud billing quota exceeded: https://support.google.com/code/contact/billing_quota_increase",
			},
			want: ErrQuotaExceeded,
		},
		{
			name: "http quota reason",
			err: &googleapi.Error{
				Code:   http.StatusForbidden,
				Errors: []googleapi.ErrorItem{{Reason: "quotaExceeded"}},
			},
			want: ErrQuotaExceeded,
		},
		{
			name: "http bad request",
			err:  &googleapi.Error{Code: http.StatusBadRequest, Message: "invalid project id"},
			want: ErrInvalidArgument,
		},
		{
			name: "http forbidden",
			err:  &googleapi.Error{Code: http.StatusForbidden, Message: "caller does not have permission"},
			want: ErrPermissionDenied,
		},
		{
			name: "wrapped http error",
			err:  fmt.Errorf("link billing: %w", &googleapi.Error{Code: http.StatusNotFound}),
			want: ErrNotFound,
		},
		{
			name: "grpc already exists",
			err:  status.Error(codes.AlreadyExists, "project id already in use"),
			want: ErrAlreadyExists,
		},
		{
			name: "grpc invalid argument",
			err:  status.Error(codes.InvalidArgument, "bad id"),
			want: ErrInvalidArgument,
		},
		{
			name: "grpc resource exhausted",
			err:  status.Error(codes.ResourceExhausted, "too many projects"),
			want: ErrQuotaExceeded,
		},
		{
			name: "grpc failed precondition mentioning quota",
			err:  status.Error(codes.FailedPrecondition, "Project creation quota exceeded"),
			want: ErrQuotaExceeded,
		},
		{
			name: "grpc permission denied",
			err:  status.Error(codes.PermissionDenied, "denied"),
			want: ErrPermissionDenied,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Classify(tt.err)

			assert.ErrorIs(t, got, tt.want)
			assert.ErrorIs(t, got, tt.err)
		})
	}
}

func TestClassify_Unclassified(t *testing.T) {
	plain := errors.New("connection reset")
	grpcInternal := status.Error(codes.Internal, "boom")
	httpServer := &googleapi.Error{Code: http.StatusInternalServerError}

	assert.Nil(t, Classify(nil))
	assert.Same(t, plain, Classify(plain))
	assert.Equal(t, grpcInternal, Classify(grpcInternal))
	assert.Equal(t, error(httpServer), Classify(httpServer))
}

func TestClassify_AlreadyClassified(t *testing.T) {
	err := fmt.Errorf("link: %w", ErrQuotaExceeded)

	assert.Same(t, err, Classify(err))
}

func TestPredicates(t *testing.T) {
	assert.True(t, IsQuotaExceeded(&googleapi.Error{Code: http.StatusTooManyRequests}))
	assert.False(t, IsQuotaExceeded(&googleapi.Error{Code: http.StatusBadRequest}))
	assert.True(t, IsNotFound(status.Error(codes.NotFound, "gone")))
	assert.True(t, IsAlreadyExists(fmt.Errorf("create: %w", ErrAlreadyExists)))
	assert.False(t, IsNotFound(errors.New("other")))
}
