// Package controlplane defines the contract keyforge needs from the cloud
// control plane: projects, service enablement, billing links, IAM and API keys.
//
// Implementations live in sub-packages: gcp talks to Google Cloud, memory is an
// in-process fake used by tests and dry runs. Every implementation reports
// failures classified with the sentinel errors in this package so callers can
// branch with errors.Is.
package controlplane

import (
	"context"
	"regexp"
	"strings"
)

// BillingAccount is a pre-existing billing account discovered by listing.
type BillingAccount struct {
	ID          string
	DisplayName string
	Open        bool
}

// ServiceState is the enablement status of one service on one project.
type ServiceState struct {
	Name    string
	Enabled bool
}

// ProjectClient manages project lifecycle.
type ProjectClient interface {
	// CreateProject fails with ErrAlreadyExists or ErrInvalidArgument.
	CreateProject(ctx context.Context, projectID string) error
	// DeleteProject treats a missing project as success.
	DeleteProject(ctx context.Context, projectID string) error
	ProjectExists(ctx context.Context, projectID string) (bool, error)
}

// ServiceClient manages API enablement on a project.
type ServiceClient interface {
	ListServices(ctx context.Context, projectID, filter string) ([]ServiceState, error)
	ServiceEnabled(ctx context.Context, projectID, service string) (bool, error)
	// EnableService is a no-op when the service is already enabled.
	EnableService(ctx context.Context, projectID, service string) error
}

// BillingClient manages billing links.
type BillingClient interface {
	ListOpenBillingAccounts(ctx context.Context) ([]BillingAccount, error)
	// ListLinkedProjects returns a point-in-time snapshot of the project ids
	// linked to account.
	ListLinkedProjects(ctx context.Context, accountID string) ([]string, error)
	// LinkBilling fails with ErrQuotaExceeded when the account cannot take
	// another project.
	LinkBilling(ctx context.Context, projectID, accountID string) error
	UnlinkBilling(ctx context.Context, projectID string) error
}

// IAMClient manages service accounts, their keys and project role bindings.
type IAMClient interface {
	ServiceAccountExists(ctx context.Context, projectID, email string) (bool, error)
	// CreateServiceAccount returns the email of the created account.
	CreateServiceAccount(ctx context.Context, projectID, accountID, displayName string) (string, error)
	// BindRole adds member to role on the project policy if not already bound.
	BindRole(ctx context.Context, projectID, member, role string) error
	// CreateServiceAccountKey returns the decoded JSON key file.
	CreateServiceAccountKey(ctx context.Context, projectID, email string) ([]byte, error)
	// ListServiceAccountKeys returns the ids of the user-managed keys of email.
	ListServiceAccountKeys(ctx context.Context, projectID, email string) ([]string, error)
	// DeleteServiceAccountKey treats a missing key as success.
	DeleteServiceAccountKey(ctx context.Context, projectID, email, keyID string) error
}

// APIKeyClient creates API keys.
type APIKeyClient interface {
	// CreateAPIKey returns the structured payload describing the created key,
	// including its secret value. The key id is APIKeyID(displayName), so
	// repeating the call returns the key created by the first one.
	CreateAPIKey(ctx context.Context, projectID, displayName, targetService string) ([]byte, error)
}

const defaultAPIKeyID = "keyforge-api-key"

var invalidKeyIDChars = regexp.MustCompile(`[^a-z0-9]+`)

// APIKeyID derives the key id used for an API key from its display name.
// The result matches [a-z]([a-z0-9-]{0,61}[a-z0-9])?.
func APIKeyID(displayName string) string {
	id := invalidKeyIDChars.ReplaceAllString(strings.ToLower(displayName), "-")
	id = strings.TrimLeft(id, "-0123456789")
	if len(id) > 63 {
		id = id[:63]
	}
	id = strings.TrimRight(id, "-")
	if id == "" {
		return defaultAPIKeyID
	}
	return id
}

// Client is the full control plane.
type Client interface {
	ProjectClient
	ServiceClient
	BillingClient
	IAMClient
	APIKeyClient
}
