package gcp

import (
	"context"
	"strings"

	"google.golang.org/api/cloudbilling/v1"

	"github.com/runvoy/keyforge/internal/constants"
	"github.com/runvoy/keyforge/internal/controlplane"
)

const billingAccountPrefix = "billingAccounts/"

type defaultBillingClient struct {
	service *cloudbilling.APIService
}

func (c *defaultBillingClient) ListOpenBillingAccounts(ctx context.Context) ([]controlplane.BillingAccount, error) {
	ctx, cancel := context.WithTimeout(ctx, constants.BillingTimeout)
	defer cancel()

	var accounts []controlplane.BillingAccount
	err := c.service.BillingAccounts.List().
		Filter(constants.OpenBillingAccountsFilter).
		Pages(ctx, func(resp *cloudbilling.ListBillingAccountsResponse) error {
			for _, acct := range resp.BillingAccounts {
				if !acct.Open {
					continue
				}
				accounts = append(accounts, controlplane.BillingAccount{
					ID:          strings.TrimPrefix(acct.Name, billingAccountPrefix),
					DisplayName: acct.DisplayName,
					Open:        acct.Open,
				})
			}
			return nil
		})
	if err != nil {
		return nil, wrapError("list billing accounts", err)
	}
	return accounts, nil
}

func (c *defaultBillingClient) ListLinkedProjects(ctx context.Context, accountID string) ([]string, error) {
	ctx, cancel := context.WithTimeout(ctx, constants.BillingTimeout)
	defer cancel()

	var projects []string
	err := c.service.BillingAccounts.Projects.List(billingAccountPrefix+accountID).
		Pages(ctx, func(resp *cloudbilling.ListProjectBillingInfoResponse) error {
			for _, info := range resp.ProjectBillingInfo {
				if info.BillingEnabled {
					projects = append(projects, info.ProjectId)
				}
			}
			return nil
		})
	if err != nil {
		return nil, wrapError("list linked projects", err)
	}
	return projects, nil
}

func (c *defaultBillingClient) LinkBilling(ctx context.Context, projectID, accountID string) error {
	return c.updateBillingInfo(ctx, projectID, &cloudbilling.ProjectBillingInfo{
		BillingAccountName: billingAccountPrefix + accountID,
	})
}

func (c *defaultBillingClient) UnlinkBilling(ctx context.Context, projectID string) error {
	// An empty account name detaches billing; it must be sent explicitly.
	return c.updateBillingInfo(ctx, projectID, &cloudbilling.ProjectBillingInfo{
		BillingAccountName: "",
		ForceSendFields:    []string{"BillingAccountName"},
	})
}

func (c *defaultBillingClient) updateBillingInfo(
	ctx context.Context,
	projectID string,
	info *cloudbilling.ProjectBillingInfo,
) error {
	ctx, cancel := context.WithTimeout(ctx, constants.BillingTimeout)
	defer cancel()

	action := "link billing"
	if info.BillingAccountName == "" {
		action = "unlink billing"
	}

	_, err := c.service.Projects.UpdateBillingInfo("projects/"+projectID, info).Context(ctx).Do()
	return wrapError(action, err)
}
