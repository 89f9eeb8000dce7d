package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"github.com/runvoy/keyforge/internal/config"
	"github.com/runvoy/keyforge/internal/constants"
	"github.com/runvoy/keyforge/internal/controlplane"
	"github.com/runvoy/keyforge/internal/controlplane/gcp"
	"github.com/runvoy/keyforge/internal/controlplane/memory"
	appErrors "github.com/runvoy/keyforge/internal/errors"
	"github.com/runvoy/keyforge/internal/output"
	"github.com/runvoy/keyforge/internal/prompt"
	"github.com/runvoy/keyforge/internal/provisioner"
	"github.com/runvoy/keyforge/internal/retry"
)

// dryRunAccount is the billing account the in-memory control plane offers
// when none is configured.
const dryRunAccount = "000000-000000-000000"

var provisionFlags struct {
	prefix         string
	billingAccount string
	services       []string
	roles          []string
	maxAttempts    int
	backoffStep    time.Duration
	backoffJitter  time.Duration
	keyDir         string
	archiveDir     string
	assumeYes      bool
	sequential     bool
	dryRun         bool
}

var provisionCmd = &cobra.Command{
	Use:   "provision",
	Short: "Provision a new project with billing, services and credentials",
	Long: `Create a new Google Cloud project, link it to a billing account, enable the
configured services, then create an API key and a service account key.

When the billing account is at its project cap, projects linked to it are
unlinked (after confirmation) and the link is retried once. If billing still
cannot be linked the new project is deleted.`,
	Example: fmt.Sprintf(`  - %[1]s provision
  - %[1]s provision --prefix team-ml --billing-account 0123AB-CDEF01-234567
  - %[1]s provision --service aiplatform.googleapis.com --service iam.googleapis.com
  - %[1]s provision --dry-run`, constants.ProjectName),
	Args: cobra.NoArgs,
	RunE: provisionRun,
}

func init() {
	flags := provisionCmd.Flags()
	flags.StringVar(&provisionFlags.prefix, "prefix", "", "Project id prefix")
	flags.StringVar(&provisionFlags.billingAccount, "billing-account", "",
		"Billing account id, or \"auto\" for the first open account")
	flags.StringSliceVar(&provisionFlags.services, "service", nil, "Service to enable (repeatable, replaces the configured list)")
	flags.StringSliceVar(&provisionFlags.roles, "role", nil, "Role to bind to the service account (repeatable)")
	flags.IntVar(&provisionFlags.maxAttempts, "max-attempts", 0, "Attempts per remote call")
	flags.DurationVar(&provisionFlags.backoffStep, "backoff-step", 0, "Backoff step, multiplied by the attempt number")
	flags.DurationVar(&provisionFlags.backoffJitter, "backoff-jitter", 0, "Maximum random delay added to each backoff")
	flags.StringVar(&provisionFlags.keyDir, "key-dir", "", "Directory receiving service account key files")
	flags.StringVar(&provisionFlags.archiveDir, "archive-dir", "", "Directory receiving one result directory per run")
	flags.BoolVarP(&provisionFlags.assumeYes, "yes", "y", false, "Unlink projects from a full billing account without asking")
	flags.BoolVar(&provisionFlags.sequential, "sequential", false, "Create the two credentials one after the other")
	flags.BoolVar(&provisionFlags.dryRun, "dry-run", false, "Run against an in-memory control plane; nothing is created")
	rootCmd.AddCommand(provisionCmd)
}

func provisionRun(cmd *cobra.Command, _ []string) error {
	cfg, err := getConfigFromContext(cmd)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	applyProvisionFlags(cmd, cfg)
	if err = cfg.Validate(); err != nil {
		return err
	}

	ctx := cmd.Context()
	log := slog.Default()
	fs := afero.NewOsFs()

	var client controlplane.Client
	if provisionFlags.dryRun {
		output.Warningf("Dry run: using an in-memory control plane and file system")
		client = newDryRunControlPlane(cfg)
		fs = afero.NewMemMapFs()
	} else {
		gcpClient, gcpErr := gcp.New(ctx, gcp.Options{
			CredentialsFile: cfg.CredentialsFile,
			QuotaProject:    cfg.QuotaProject,
		})
		if gcpErr != nil {
			return gcpErr
		}
		defer func() {
			if closeErr := gcpClient.Close(); closeErr != nil {
				log.Warn("failed to close control plane clients", "error", closeErr)
			}
		}()
		client = gcpClient
	}

	executor := retry.New(cfg.MaxAttempts, retry.Linear(cfg.BackoffStep, cfg.BackoffJitter))
	p := provisioner.New(provisioner.ConfigFrom(cfg), client, executor, fs, prompt.New(cfg.AssumeYes), log)

	service := NewProvisionService(p, NewOutputWrapper())
	return service.Provision(ctx)
}

func applyProvisionFlags(cmd *cobra.Command, cfg *config.Config) {
	flags := cmd.Flags()
	if flags.Changed("prefix") {
		cfg.Prefix = strings.ToLower(strings.TrimSpace(provisionFlags.prefix))
	}
	if flags.Changed("billing-account") {
		cfg.BillingAccount = strings.TrimPrefix(strings.TrimSpace(provisionFlags.billingAccount), "billingAccounts/")
	}
	if flags.Changed("service") {
		cfg.Services = provisionFlags.services
	}
	if flags.Changed("role") {
		cfg.Roles = provisionFlags.roles
	}
	if flags.Changed("max-attempts") {
		cfg.MaxAttempts = provisionFlags.maxAttempts
	}
	if flags.Changed("backoff-step") {
		cfg.BackoffStep = provisionFlags.backoffStep
	}
	if flags.Changed("backoff-jitter") {
		cfg.BackoffJitter = provisionFlags.backoffJitter
	}
	if flags.Changed("key-dir") {
		cfg.KeyDir = provisionFlags.keyDir
	}
	if flags.Changed("archive-dir") {
		cfg.ArchiveDir = provisionFlags.archiveDir
	}
	if flags.Changed("yes") {
		cfg.AssumeYes = provisionFlags.assumeYes
	}
	if flags.Changed("sequential") {
		cfg.ParallelCredentials = !provisionFlags.sequential
	}
}

func newDryRunControlPlane(cfg *config.Config) *memory.ControlPlane {
	account := dryRunAccount
	if !cfg.AutoSelectBillingAccount() {
		account = cfg.BillingAccount
	}
	cp := memory.New()
	cp.AddBillingAccount(controlplane.BillingAccount{ID: account, DisplayName: "Dry run", Open: true}, 0)
	return cp
}

// Runner runs one provisioning run.
type Runner interface {
	Run(ctx context.Context) (*provisioner.Summary, error)
}

// ProvisionService runs a provisioning run and reports its summary.
type ProvisionService struct {
	runner Runner
	output OutputInterface
}

// NewProvisionService creates a new ProvisionService with the provided dependencies.
func NewProvisionService(runner Runner, outputter OutputInterface) *ProvisionService {
	return &ProvisionService{
		runner: runner,
		output: outputter,
	}
}

// Provision runs the provisioner and prints the summary. An operator abort
// is reported but is not an error.
func (s *ProvisionService) Provision(ctx context.Context) error {
	s.output.Infof("Provisioning a new project")
	summary, err := s.runner.Run(ctx)
	if summary != nil {
		s.DisplaySummary(summary)
	}

	switch {
	case appErrors.GetClass(err) == appErrors.ClassBenignAbort:
		s.output.Warningf("Run aborted by operator; nothing was rolled back")
		return nil
	case err != nil:
		message := appErrors.GetErrorMessage(err)
		s.output.Errorf("Provisioning failed: %s", message)
		if details := appErrors.GetErrorDetails(err); details != message {
			s.output.KeyValue("Cause", s.output.Gray(details))
		}
		return err
	case summary != nil && len(summary.Degraded()) > 0:
		s.output.Warningf("Project %s provisioned with %d degraded item(s)", summary.ProjectID, len(summary.Degraded()))
	case summary != nil:
		s.output.Successf("Project %s provisioned", s.output.Bold(summary.ProjectID))
	}
	return nil
}

// DisplaySummary prints the step outcomes and every section of the summary.
func (s *ProvisionService) DisplaySummary(summary *provisioner.Summary) {
	s.output.Header("Provisioning summary")
	s.displaySteps(summary)

	s.output.Blank()
	s.output.KeyValueBold("Project", summary.ProjectID)
	s.output.KeyValue("State", s.output.StatusBadge(string(summary.State)))
	s.output.KeyValue("Elapsed", output.Duration(summary.Elapsed))
	if summary.BillingAccount != "" {
		s.output.KeyValue("Billing account", summary.BillingAccount)
	}
	s.output.KeyValue("Billing", billingStatus(summary))

	if len(summary.Services.Results) > 0 {
		s.output.Subheader("Services")
		rows := make([][]string, 0, len(summary.Services.Results))
		for _, res := range summary.Services.Results {
			rows = append(rows, []string{res.Service, string(res.Status), res.Error})
		}
		s.output.Table([]string{"Service", "Status", "Error"}, rows)
	}

	s.output.Subheader("Credentials")
	creds := summary.Credentials
	switch {
	case creds.APIKey != nil:
		s.output.KeyValue("API key", output.Mask(creds.APIKey.Value))
	case creds.APIKeyErr != nil:
		s.output.KeyValue("API key", s.output.StatusBadge("failed"))
	}
	switch {
	case creds.ServiceAccount != nil:
		s.output.KeyValue("Service account", creds.ServiceAccount.ServiceAccountEmail)
		s.output.KeyValue("Key file", creds.ServiceAccount.FilePath)
	case creds.ServiceAccountErr != nil:
		s.output.KeyValue("Service account key", s.output.StatusBadge("failed"))
	}
	if len(creds.Bindings) > 0 {
		s.output.KeyValue("Roles bound", strconv.Itoa(len(creds.Bindings)-creds.BindingFailures())+"/"+strconv.Itoa(len(creds.Bindings)))
	}
	if summary.ArchiveDir != "" {
		s.output.KeyValue("Archive", summary.ArchiveDir)
	}

	if degraded := summary.Degraded(); len(degraded) > 0 {
		s.output.Blank()
		s.output.Warningf("Degraded items:")
		items := make([]string, 0, len(degraded))
		for _, d := range degraded {
			items = append(items, d.Item+": "+d.Error)
		}
		s.output.List(items)
	}

	if sa := creds.ServiceAccount; sa != nil {
		s.output.Blank()
		s.output.Box("Service account key for " + sa.ServiceAccountEmail + "\n" + sa.FilePath)
	}
	s.output.Blank()
}

type stepOutcome int

const (
	stepPending stepOutcome = iota
	stepDone
	stepDegraded
	stepFailed
)

type runStep struct {
	message string
	outcome stepOutcome
}

func reachedStep(reached, degraded bool) stepOutcome {
	switch {
	case reached && degraded:
		return stepDegraded
	case reached:
		return stepDone
	default:
		return stepPending
	}
}

// runSteps maps a summary onto the five steps of a run.
func runSteps(summary *provisioner.Summary) []runStep {
	creds := summary.Credentials
	services := summary.Services

	credsStep := reachedStep(summary.Reached.AtLeast(provisioner.StateCredentialed),
		creds.APIKeyErr != nil || creds.ServiceAccountErr != nil || creds.BindingFailures() > 0)
	if credsStep == stepPending && (creds.APIKeyErr != nil || creds.ServiceAccountErr != nil) {
		credsStep = stepFailed
	}
	archiveStep := reachedStep(summary.ArchiveDir != "", summary.Archive.Err != nil || len(summary.Archive.Failed) > 0)
	if archiveStep == stepPending && summary.Archive.Err != nil {
		archiveStep = stepFailed
	}

	return []runStep{
		{
			message: "Create project " + summary.ProjectID,
			outcome: reachedStep(summary.Reached.AtLeast(provisioner.StateCreated), false),
		},
		{
			message: "Link billing: " + billingStatus(summary),
			outcome: reachedStep(summary.Reached.AtLeast(provisioner.StateBillingLinked), len(summary.Billing.UnlinkFailures) > 0),
		},
		{
			message: fmt.Sprintf("Enable services: %d enabled, %d already enabled, %d failed",
				services.Enabled(), services.Skipped(), services.Failures()),
			outcome: reachedStep(summary.Reached.AtLeast(provisioner.StateServicesEnabled), services.Failures() > 0),
		},
		{
			message: fmt.Sprintf("Create credentials: %d of 2 produced", len(creds.Credentials())),
			outcome: credsStep,
		},
		{
			message: "Archive results",
			outcome: archiveStep,
		},
	}
}

// displaySteps prints one line per step. The first pending step of a run
// that stopped is the one that failed or was interrupted.
func (s *ProvisionService) displaySteps(summary *provisioner.Summary) {
	steps := runSteps(summary)
	stopped := summary.Aborted || summary.State == provisioner.StateFailed || summary.State == provisioner.StateRolledBack
	for i, st := range steps {
		n := i + 1
		switch st.outcome {
		case stepDone:
			s.output.StepSuccess(n, len(steps), st.message)
			continue
		case stepDegraded:
			s.output.StepWarning(n, len(steps), st.message)
			continue
		case stepFailed:
			s.output.StepError(n, len(steps), st.message)
			continue
		}

		switch {
		case stopped && summary.Aborted:
			s.output.StepWarning(n, len(steps), st.message+" (aborted)")
		case stopped:
			s.output.StepError(n, len(steps), st.message)
		default:
			s.output.Step(n, len(steps), s.output.Gray(st.message+" (skipped)"))
		}
		stopped = false
	}
}

func billingStatus(summary *provisioner.Summary) string {
	b := summary.Billing
	switch {
	case b.Linked && b.Recovered:
		return fmt.Sprintf("linked after unlinking %d project(s)", len(b.Unlinked))
	case b.Linked:
		return "linked"
	case summary.State == provisioner.StateRolledBack:
		return "not linked, project deleted"
	default:
		return "not linked"
	}
}
