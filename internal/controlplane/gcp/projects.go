package gcp

import (
	"context"
	"errors"
	"fmt"
	"strings"

	resourcemanager "cloud.google.com/go/resourcemanager/apiv3"
	"cloud.google.com/go/resourcemanager/apiv3/resourcemanagerpb"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/runvoy/keyforge/internal/constants"
)

type defaultProjectsClient struct {
	client *resourcemanager.ProjectsClient
}

func (c *defaultProjectsClient) CreateProject(ctx context.Context, projectID string) error {
	ctx, cancel := context.WithTimeout(ctx, constants.ProjectOperationTimeout)
	defer cancel()

	req := &resourcemanagerpb.CreateProjectRequest{
		Project: &resourcemanagerpb.Project{
			ProjectId:   projectID,
			DisplayName: projectID,
		},
	}

	op, err := c.client.CreateProject(ctx, req)
	if err != nil {
		return wrapError("create project", err)
	}

	if _, err := op.Wait(ctx); err != nil {
		return wrapError("wait for project creation", err)
	}
	return nil
}

func (c *defaultProjectsClient) DeleteProject(ctx context.Context, projectID string) error {
	ctx, cancel := context.WithTimeout(ctx, constants.ProjectOperationTimeout)
	defer cancel()

	op, err := c.client.DeleteProject(ctx, &resourcemanagerpb.DeleteProjectRequest{Name: "projects/" + projectID})
	if isMissingProject(err) {
		return nil
	}
	if err != nil {
		return wrapError("delete project", err)
	}

	if _, err := op.Wait(ctx); err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return fmt.Errorf("timeout waiting for project deletion: %w", err)
		}
		return wrapError("wait for project deletion", err)
	}
	return nil
}

func (c *defaultProjectsClient) ProjectExists(ctx context.Context, projectID string) (bool, error) {
	_, err := c.client.GetProject(ctx, &resourcemanagerpb.GetProjectRequest{Name: "projects/" + projectID})
	if isMissingProject(err) {
		return false, nil
	}
	if err != nil {
		return false, wrapError("get project", err)
	}
	return true, nil
}

// isMissingProject also matches the permission error Resource Manager returns
// for projects the caller cannot see because they do not exist.
func isMissingProject(err error) bool {
	if err == nil {
		return false
	}
	//nolint:exhaustive // only handling NotFound and PermissionDenied specifically
	switch status.Code(err) {
	case codes.NotFound:
		return true
	case codes.PermissionDenied:
		return strings.Contains(err.Error(), "or it may not exist")
	}
	return false
}
