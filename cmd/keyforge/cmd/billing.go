package cmd

import (
	"context"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/runvoy/keyforge/internal/controlplane"
	"github.com/runvoy/keyforge/internal/controlplane/gcp"
)

var billingCmd = &cobra.Command{
	Use:   "billing",
	Short: "Inspect billing accounts",
}

var billingAccountsCmd = &cobra.Command{
	Use:   "accounts",
	Short: "List open billing accounts",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return withBillingService(cmd, func(ctx context.Context, s *BillingService) error {
			return s.ListAccounts(ctx)
		})
	},
}

var billingLinkedCmd = &cobra.Command{
	Use:   "linked <billing-account-id>",
	Short: "List projects linked to a billing account",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withBillingService(cmd, func(ctx context.Context, s *BillingService) error {
			return s.ListLinked(ctx, args[0])
		})
	},
}

func init() {
	billingCmd.AddCommand(billingAccountsCmd)
	billingCmd.AddCommand(billingLinkedCmd)
	rootCmd.AddCommand(billingCmd)
}

func withBillingService(cmd *cobra.Command, fn func(context.Context, *BillingService) error) error {
	cfg, err := getConfigFromContext(cmd)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	client, err := gcp.New(cmd.Context(), gcp.Options{
		CredentialsFile: cfg.CredentialsFile,
		QuotaProject:    cfg.QuotaProject,
	})
	if err != nil {
		return err
	}
	defer func() { _ = client.Close() }()

	return fn(cmd.Context(), NewBillingService(client, NewOutputWrapper()))
}

// BillingService handles billing inspection logic.
type BillingService struct {
	client controlplane.BillingClient
	output OutputInterface
}

// NewBillingService creates a new BillingService with the provided dependencies.
func NewBillingService(client controlplane.BillingClient, outputter OutputInterface) *BillingService {
	return &BillingService{
		client: client,
		output: outputter,
	}
}

// ListAccounts prints the open billing accounts in the order the first one
// would be auto-selected.
func (s *BillingService) ListAccounts(ctx context.Context) error {
	accounts, err := s.client.ListOpenBillingAccounts(ctx)
	if err != nil {
		return fmt.Errorf("failed to list billing accounts: %w", err)
	}
	if len(accounts) == 0 {
		s.output.Warningf("No open billing accounts found")
		return nil
	}

	rows := make([][]string, 0, len(accounts))
	for _, acct := range accounts {
		rows = append(rows, []string{acct.ID, acct.DisplayName, strconv.FormatBool(acct.Open)})
	}
	s.output.Table([]string{"Account ID", "Name", "Open"}, rows)
	s.output.Blank()
	s.output.Successf("Found %d open billing account(s)", len(accounts))
	return nil
}

// ListLinked prints the projects currently linked to accountID.
func (s *BillingService) ListLinked(ctx context.Context, accountID string) error {
	projects, err := s.client.ListLinkedProjects(ctx, accountID)
	if err != nil {
		return fmt.Errorf("failed to list linked projects: %w", err)
	}
	if len(projects) == 0 {
		s.output.Infof("No projects linked to %s", s.output.Bold(accountID))
		return nil
	}

	s.output.List(projects)
	s.output.Blank()
	s.output.Successf("%d project(s) linked to %s", len(projects), s.output.Bold(accountID))
	return nil
}
