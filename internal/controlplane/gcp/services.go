package gcp

import (
	"context"
	"errors"
	"path"

	"google.golang.org/api/serviceusage/v1"

	"github.com/runvoy/keyforge/internal/constants"
	"github.com/runvoy/keyforge/internal/controlplane"
)

type defaultServiceUsageClient struct {
	service *serviceusage.Service
}

func (c *defaultServiceUsageClient) ListServices(
	ctx context.Context,
	projectID, filter string,
) ([]controlplane.ServiceState, error) {
	var states []controlplane.ServiceState

	call := c.service.Services.List("projects/" + projectID).Context(ctx)
	if filter != "" {
		call = call.Filter(filter)
	}
	err := call.Pages(ctx, func(resp *serviceusage.ListServicesResponse) error {
		for _, svc := range resp.Services {
			states = append(states, controlplane.ServiceState{
				Name:    serviceName(svc),
				Enabled: svc.State == constants.ServiceStateEnabled,
			})
		}
		return nil
	})
	if err != nil {
		return nil, wrapError("list services", err)
	}
	return states, nil
}

func (c *defaultServiceUsageClient) ServiceEnabled(ctx context.Context, projectID, service string) (bool, error) {
	svc, err := c.service.Services.Get(serviceResource(projectID, service)).Context(ctx).Do()
	if err != nil {
		return false, wrapError("get service", err)
	}
	return svc.State == constants.ServiceStateEnabled, nil
}

func (c *defaultServiceUsageClient) EnableService(ctx context.Context, projectID, service string) error {
	ctx, cancel := context.WithTimeout(ctx, constants.ServiceUsageOperationTimeout)
	defer cancel()

	op, err := c.service.Services.Enable(serviceResource(projectID, service), &serviceusage.EnableServiceRequest{}).
		Context(ctx).
		Do()
	if err != nil {
		return wrapError("enable service "+service, err)
	}

	if op.Done {
		return operationError(op)
	}
	return wrapError("wait for service enablement", c.waitForOperation(ctx, op.Name))
}

func (c *defaultServiceUsageClient) waitForOperation(ctx context.Context, name string) error {
	return pollOperation(ctx, constants.OperationPollInterval, func(ctx context.Context) (bool, error) {
		op, err := c.service.Operations.Get(name).Context(ctx).Do()
		if err != nil {
			return false, wrapError("poll service usage operation", err)
		}
		if !op.Done {
			return false, nil
		}
		return true, operationError(op)
	})
}

func operationError(op *serviceusage.Operation) error {
	if op.Error != nil {
		return errors.New("operation error: " + op.Error.Message)
	}
	return nil
}

func serviceResource(projectID, service string) string {
	return "projects/" + projectID + "/services/" + service
}

func serviceName(svc *serviceusage.GoogleApiServiceusageV1Service) string {
	if svc.Config != nil && svc.Config.Name != "" {
		return svc.Config.Name
	}
	return path.Base(svc.Name)
}
