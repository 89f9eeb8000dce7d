// Package gcp implements controlplane.Client on top of the Google Cloud APIs.
package gcp

import (
	"context"
	"fmt"
	"time"

	resourcemanager "cloud.google.com/go/resourcemanager/apiv3"
	"google.golang.org/api/apikeys/v2"
	"google.golang.org/api/cloudbilling/v1"
	"google.golang.org/api/cloudresourcemanager/v3"
	"google.golang.org/api/iam/v1"
	"google.golang.org/api/option"
	"google.golang.org/api/serviceusage/v1"

	"github.com/runvoy/keyforge/internal/controlplane"
)

// Options configures authentication for every API client.
type Options struct {
	// CredentialsFile points to a service account or authorized user JSON
	// file. Application Default Credentials are used when empty.
	CredentialsFile string
	// QuotaProject is billed for API usage when set.
	QuotaProject string
}

// Client talks to Resource Manager, Service Usage, Cloud Billing, IAM and
// API Keys. It is safe for concurrent use.
type Client struct {
	*defaultProjectsClient
	*defaultServiceUsageClient
	*defaultBillingClient
	*defaultIAMClient
	*defaultAPIKeysClient
}

var _ controlplane.Client = (*Client)(nil)

// New builds a Client with one underlying service per API.
func New(ctx context.Context, opts Options) (*Client, error) {
	clientOpts := opts.clientOptions()

	projectsClient, err := resourcemanager.NewProjectsClient(ctx, clientOpts...)
	if err != nil {
		return nil, fmt.Errorf("create projects client: %w", err)
	}

	serviceUsageSvc, err := serviceusage.NewService(ctx, clientOpts...)
	if err != nil {
		return nil, fmt.Errorf("create service usage service: %w", err)
	}

	billingSvc, err := cloudbilling.NewService(ctx, clientOpts...)
	if err != nil {
		return nil, fmt.Errorf("create cloud billing service: %w", err)
	}

	iamSvc, err := iam.NewService(ctx, clientOpts...)
	if err != nil {
		return nil, fmt.Errorf("create iam service: %w", err)
	}

	rmSvc, err := cloudresourcemanager.NewService(ctx, clientOpts...)
	if err != nil {
		return nil, fmt.Errorf("create resource manager service: %w", err)
	}

	apiKeysSvc, err := apikeys.NewService(ctx, clientOpts...)
	if err != nil {
		return nil, fmt.Errorf("create api keys service: %w", err)
	}

	return &Client{
		defaultProjectsClient:     &defaultProjectsClient{client: projectsClient},
		defaultServiceUsageClient: &defaultServiceUsageClient{service: serviceUsageSvc},
		defaultBillingClient:      &defaultBillingClient{service: billingSvc},
		defaultIAMClient: &defaultIAMClient{
			iamService:      iamSvc,
			resourceManager: rmSvc,
		},
		defaultAPIKeysClient: &defaultAPIKeysClient{service: apiKeysSvc},
	}, nil
}

// Close releases the gRPC connection held by the projects client.
func (c *Client) Close() error {
	return c.defaultProjectsClient.client.Close()
}

func (o Options) clientOptions() []option.ClientOption {
	var opts []option.ClientOption
	if o.CredentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(o.CredentialsFile))
	}
	if o.QuotaProject != "" {
		opts = append(opts, option.WithQuotaProject(o.QuotaProject))
	}
	return opts
}

func wrapError(action string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", action, controlplane.Classify(err))
}

// pollOperation calls get every interval until it reports done or ctx ends.
func pollOperation(ctx context.Context, interval time.Duration, get func(ctx context.Context) (bool, error)) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		done, err := get(ctx)
		if err != nil || done {
			return err
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}
