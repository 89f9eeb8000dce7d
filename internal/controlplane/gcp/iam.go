package gcp

import (
	"context"
	"encoding/base64"
	"fmt"
	"path"
	"slices"

	"google.golang.org/api/cloudresourcemanager/v3"
	"google.golang.org/api/iam/v1"

	"github.com/runvoy/keyforge/internal/constants"
	"github.com/runvoy/keyforge/internal/controlplane"
	"github.com/runvoy/keyforge/internal/retry"
)

const (
	keyTypeCredentialsFile = "TYPE_GOOGLE_CREDENTIALS_FILE"
	keyAlgorithmRSA2048    = "KEY_ALG_RSA_2048"
	keyTypeUserManaged     = "USER_MANAGED"
)

type defaultIAMClient struct {
	iamService      *iam.Service
	resourceManager *cloudresourcemanager.Service
}

func (c *defaultIAMClient) ServiceAccountExists(ctx context.Context, projectID, email string) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, constants.IAMTimeout)
	defer cancel()

	_, err := c.iamService.Projects.ServiceAccounts.Get(serviceAccountResource(projectID, email)).Context(ctx).Do()
	if controlplane.IsNotFound(err) {
		return false, nil
	}
	return err == nil, wrapError("get service account", err)
}

func (c *defaultIAMClient) CreateServiceAccount(
	ctx context.Context,
	projectID, accountID, displayName string,
) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, constants.IAMTimeout)
	defer cancel()

	req := &iam.CreateServiceAccountRequest{
		AccountId: accountID,
		ServiceAccount: &iam.ServiceAccount{
			DisplayName: displayName,
		},
	}

	sa, err := c.iamService.Projects.ServiceAccounts.Create("projects/"+projectID, req).
		Context(ctx).
		Do()
	if err != nil {
		return "", wrapError("create service account", err)
	}
	return sa.Email, nil
}

func (c *defaultIAMClient) BindRole(ctx context.Context, projectID, member, role string) error {
	ctx, cancel := context.WithTimeout(ctx, constants.IAMTimeout)
	defer cancel()

	resource := "projects/" + projectID
	policy, err := c.resourceManager.Projects.GetIamPolicy(resource, &cloudresourcemanager.GetIamPolicyRequest{}).
		Context(ctx).
		Do()
	if err != nil {
		return wrapError("get project iam policy", err)
	}

	if bindingExists(policy.Bindings, role, member) {
		return nil
	}
	policy.Bindings = append(policy.Bindings, &cloudresourcemanager.Binding{
		Role:    role,
		Members: []string{member},
	})

	_, err = c.resourceManager.Projects.SetIamPolicy(
		resource,
		&cloudresourcemanager.SetIamPolicyRequest{Policy: policy},
	).Context(ctx).Do()
	return wrapError("set project iam policy", err)
}

func (c *defaultIAMClient) CreateServiceAccountKey(ctx context.Context, projectID, email string) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, constants.IAMTimeout)
	defer cancel()

	req := &iam.CreateServiceAccountKeyRequest{
		PrivateKeyType: keyTypeCredentialsFile,
		KeyAlgorithm:   keyAlgorithmRSA2048,
	}

	key, err := c.iamService.Projects.ServiceAccounts.Keys.Create(serviceAccountResource(projectID, email), req).
		Context(ctx).
		Do()
	if err != nil {
		return nil, wrapError("create service account key", err)
	}

	// The key exists from here on; another attempt would create a second one.
	data, err := base64.StdEncoding.DecodeString(key.PrivateKeyData)
	if err != nil {
		return nil, retry.Fatal(fmt.Errorf("decode service account key: %w", err))
	}
	return data, nil
}

func (c *defaultIAMClient) ListServiceAccountKeys(ctx context.Context, projectID, email string) ([]string, error) {
	ctx, cancel := context.WithTimeout(ctx, constants.IAMTimeout)
	defer cancel()

	resp, err := c.iamService.Projects.ServiceAccounts.Keys.List(serviceAccountResource(projectID, email)).
		KeyTypes(keyTypeUserManaged).
		Context(ctx).
		Do()
	if err != nil {
		return nil, wrapError("list service account keys", err)
	}

	ids := make([]string, 0, len(resp.Keys))
	for _, k := range resp.Keys {
		ids = append(ids, path.Base(k.Name))
	}
	return ids, nil
}

func (c *defaultIAMClient) DeleteServiceAccountKey(ctx context.Context, projectID, email, keyID string) error {
	ctx, cancel := context.WithTimeout(ctx, constants.IAMTimeout)
	defer cancel()

	name := serviceAccountResource(projectID, email) + "/keys/" + keyID
	_, err := c.iamService.Projects.ServiceAccounts.Keys.Delete(name).Context(ctx).Do()
	if controlplane.IsNotFound(err) {
		return nil
	}
	return wrapError("delete service account key", err)
}

func serviceAccountResource(projectID, email string) string {
	return fmt.Sprintf("projects/%s/serviceAccounts/%s", projectID, email)
}

func bindingExists(bindings []*cloudresourcemanager.Binding, role, member string) bool {
	for _, b := range bindings {
		if b.Role == role && slices.Contains(b.Members, member) {
			return true
		}
	}
	return false
}
