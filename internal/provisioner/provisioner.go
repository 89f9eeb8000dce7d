// Package provisioner runs one provisioning run end to end: create a project,
// link billing, enable services, produce credentials and archive them.
package provisioner

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/afero"

	"github.com/runvoy/keyforge/internal/activation"
	"github.com/runvoy/keyforge/internal/archive"
	"github.com/runvoy/keyforge/internal/billing"
	"github.com/runvoy/keyforge/internal/config"
	"github.com/runvoy/keyforge/internal/controlplane"
	"github.com/runvoy/keyforge/internal/credentials"
	appErrors "github.com/runvoy/keyforge/internal/errors"
	"github.com/runvoy/keyforge/internal/logger"
	"github.com/runvoy/keyforge/internal/prompt"
	"github.com/runvoy/keyforge/internal/retry"
)

// Config is everything a run needs to know up front.
type Config struct {
	Prefix           string
	BillingAccount   string
	Services         []string
	ConvergencePause time.Duration
	Credentials      credentials.Config
	// ArchiveDir receives one directory per run. Archival is skipped when empty.
	ArchiveDir string
}

// ConfigFrom maps the loaded configuration onto a run Config.
func ConfigFrom(cfg *config.Config) Config {
	return Config{
		Prefix:           cfg.Prefix,
		BillingAccount:   cfg.BillingAccount,
		Services:         cfg.Services,
		ConvergencePause: cfg.ConvergencePause,
		Credentials: credentials.Config{
			ServiceAccountName:  cfg.ServiceAccountName,
			Roles:               cfg.Roles,
			APIKeyDisplayName:   cfg.APIKeyDisplayName,
			APIKeyTargetService: cfg.APIKeyTargetService,
			KeyDir:              cfg.KeyDir,
			Parallel:            cfg.ParallelCredentials,
		},
		ArchiveDir: cfg.ArchiveDir,
	}
}

// Provisioner composes the components of a run. One Provisioner can serve
// several sequential runs.
type Provisioner struct {
	cfg       Config
	client    controlplane.Client
	executor  *retry.Executor
	linker    *billing.Linker
	activator *activation.Manager
	extractor *credentials.Extractor
	archiver  *archive.Archiver
	suffix    SuffixFunc
	now       func() time.Time
	logger    *slog.Logger
}

// New wires a Provisioner. A nil confirmer unlinks without asking.
func New(
	cfg Config,
	client controlplane.Client,
	executor *retry.Executor,
	fs afero.Fs,
	confirmer prompt.Confirmer,
	log *slog.Logger,
) *Provisioner {
	if log == nil {
		log = logger.Discard()
	}

	linkerOpts := []billing.Option{
		billing.WithConvergencePause(cfg.ConvergencePause),
		billing.WithLogger(log),
	}
	if confirmer != nil {
		linkerOpts = append(linkerOpts, billing.WithConfirmer(confirmer))
	}
	if executor != nil && executor.Sleep != nil {
		linkerOpts = append(linkerOpts, billing.WithSleep(executor.Sleep))
	}

	p := &Provisioner{
		cfg:       cfg,
		client:    client,
		executor:  executor,
		linker:    billing.NewLinker(client, executor, linkerOpts...),
		activator: activation.NewManager(client, executor, log),
		extractor: credentials.NewExtractor(client, executor, fs, nil, cfg.Credentials, log),
		suffix:    RandomSuffix,
		now:       time.Now,
		logger:    log,
	}
	if cfg.ArchiveDir != "" {
		p.archiver = archive.New(fs, cfg.ArchiveDir, log)
	}
	return p
}

// Run performs one provisioning run. The Summary is always populated.
// Degraded items are reported in the Summary with a nil error. An operator
// abort sets Summary.Aborted and returns an error of class
// appErrors.ClassBenignAbort.
func (p *Provisioner) Run(ctx context.Context) (*Summary, error) {
	start := p.now()
	runID := uuid.NewString()
	ctx = logger.WithRunID(ctx, runID)
	summary := &Summary{RunID: runID, State: StateRequested, Reached: StateRequested}
	defer func() {
		summary.Elapsed = p.now().Sub(start)
	}()

	id, err := GenerateProjectID(p.cfg.Prefix, p.suffix)
	if err != nil {
		summary.State = StateFailed
		return summary, err
	}
	record := NewProjectRecord(id, start)
	summary.ProjectID = id
	summary.CreatedAt = start

	ctx = logger.WithProjectID(ctx, id)
	log := logger.DeriveRunLogger(ctx, p.logger)
	log.Info("provisioning run started")

	account, err := p.linker.ResolveAccount(ctx, p.cfg.BillingAccount)
	if err != nil {
		return p.stop(log, summary, record, err)
	}
	summary.BillingAccount = account

	if err := p.createProject(ctx, id); err != nil {
		return p.stop(log, summary, record, err)
	}
	p.advance(log, summary, record, StateCreated)

	summary.Billing, err = p.linker.Link(ctx, id, account)
	if retry.IsAborted(err) {
		return p.stop(log, summary, record, err)
	}
	if err != nil {
		return p.rollback(ctx, log, summary, record, err)
	}
	p.advance(log, summary, record, StateBillingLinked)

	summary.Services, err = p.activator.EnableAll(ctx, id, p.cfg.Services)
	if err != nil {
		return p.stop(log, summary, record, err)
	}
	if n := summary.Services.Failures(); n > 0 {
		log.Warn("some services could not be enabled", "failed", n)
	}
	p.advance(log, summary, record, StateServicesEnabled)

	summary.Credentials, err = p.extractor.ExtractAll(ctx, id)
	if err != nil {
		return p.stop(log, summary, record, err)
	}
	if len(summary.Credentials.Credentials()) > 0 {
		p.advance(log, summary, record, StateCredentialed)
	} else {
		log.Warn("no credential could be produced")
	}

	p.archive(summary, start)
	log.Info("provisioning run finished", "state", summary.State, "degraded", len(summary.Degraded()))
	return summary, nil
}

// createProject refuses an id that is already taken, then retries creation.
// An already-exists answer counts as success only after an earlier attempt
// failed, since that attempt may have gone through. On the first attempt it
// means somebody else owns the id.
func (p *Provisioner) createProject(ctx context.Context, id string) error {
	exists, err := retry.Do(ctx, p.executor, func(ctx context.Context) (bool, error) {
		return p.client.ProjectExists(ctx, id)
	})
	if retry.IsAborted(err) {
		return err
	}
	if err != nil {
		return appErrors.ErrProjectCreate("failed to check project "+id, err)
	}
	if exists {
		return appErrors.ErrProjectCreate("project id "+id+" is already taken", controlplane.ErrAlreadyExists)
	}

	failedBefore := false
	err = p.executor.Run(ctx, func(ctx context.Context) error {
		err := p.client.CreateProject(ctx, id)
		switch {
		case controlplane.IsAlreadyExists(err) && failedBefore:
			return nil
		case controlplane.IsAlreadyExists(err):
			return retry.Fatal(err)
		case err != nil:
			failedBefore = true
		}
		return err
	})
	if err != nil && !retry.IsAborted(err) {
		return appErrors.ErrProjectCreate("failed to create project "+id, err)
	}
	return err
}

func (p *Provisioner) advance(log *slog.Logger, summary *Summary, record *ProjectRecord, to State) {
	if err := record.Transition(to); err != nil {
		log.Error("invalid state transition", "error", err)
		return
	}
	summary.State = record.State
	if to.AtLeast(StateRequested) {
		summary.Reached = to
	}
	log.Debug("project state changed", "state", record.State)
}

// stop ends the run without compensation: either the operator aborted or
// nothing exists yet that could be rolled back.
func (p *Provisioner) stop(log *slog.Logger, summary *Summary, record *ProjectRecord, err error) (*Summary, error) {
	if retry.IsAborted(err) {
		summary.Aborted = true
		log.Warn("provisioning run aborted by operator", "state", record.State)
		return summary, appErrors.ErrAborted("provisioning run aborted in state "+string(record.State), err)
	}
	p.advance(log, summary, record, StateFailed)
	log.Error("provisioning run failed", "error", err, "class", appErrors.GetClass(err))
	return summary, err
}

// rollback deletes the created project.
func (p *Provisioner) rollback(
	ctx context.Context,
	log *slog.Logger,
	summary *Summary,
	record *ProjectRecord,
	cause error,
) (*Summary, error) {
	log.Error("billing could not be linked, rolling back project", "error", cause)

	err := p.executor.Run(ctx, func(ctx context.Context) error {
		return p.client.DeleteProject(ctx, record.ID)
	})
	if retry.IsAborted(err) {
		return p.stop(log, summary, record, err)
	}
	if err != nil {
		p.advance(log, summary, record, StateFailed)
		log.Error("rollback failed, project must be deleted manually", "error", err)
		return summary, errors.Join(cause, appErrors.ErrRollback("failed to delete project "+record.ID, err))
	}

	p.advance(log, summary, record, StateRolledBack)
	log.Info("project rolled back")
	return summary, cause
}

func (p *Provisioner) archive(summary *Summary, runAt time.Time) {
	if p.archiver == nil {
		return
	}

	keyArtifact := archive.Artifact{Name: "service-account-key"}
	if sa := summary.Credentials.ServiceAccount; sa != nil {
		keyArtifact.Path = sa.FilePath
	}
	req := archive.Request{
		ProjectID: summary.ProjectID,
		RunAt:     runAt,
		Artifacts: []archive.Artifact{keyArtifact},
	}
	if key := summary.Credentials.APIKey; key != nil {
		req.APIKey = key.Value
	}
	summary.Elapsed = p.now().Sub(runAt)
	req.Manifest = summary.Manifest()

	summary.Archive = p.archiver.Archive(req)
	summary.ArchiveDir = summary.Archive.Dir
	if sa := summary.Credentials.ServiceAccount; sa != nil {
		moved := *sa
		moved.FilePath = summary.Archive.PathOf(keyArtifact)
		summary.Credentials.ServiceAccount = &moved
	}
}
