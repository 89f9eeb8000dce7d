// Package activation enables APIs on a project, checking state before acting
// so repeated runs issue no redundant enable calls.
package activation

import (
	"context"
	"log/slog"

	"github.com/runvoy/keyforge/internal/constants"
	"github.com/runvoy/keyforge/internal/controlplane"
	appErrors "github.com/runvoy/keyforge/internal/errors"
	"github.com/runvoy/keyforge/internal/logger"
	"github.com/runvoy/keyforge/internal/retry"
)

// Status is the outcome for one service.
type Status string

// Statuses reported per service.
const (
	StatusSkipped Status = "skipped"
	StatusEnabled Status = "enabled"
	StatusFailed  Status = "failed"
)

// ServiceResult is the outcome of activating one service.
type ServiceResult struct {
	Service string `yaml:"service"`
	Status  Status `yaml:"status"`
	Err     error  `yaml:"-"`
	Error   string `yaml:"error,omitempty"`
}

// Report lists every requested service in input order, without duplicates.
type Report struct {
	Results []ServiceResult `yaml:"results"`
}

// Failures returns the number of services that could not be enabled.
func (r Report) Failures() int {
	return r.count(StatusFailed)
}

// Enabled returns the number of services enabled by this run.
func (r Report) Enabled() int {
	return r.count(StatusEnabled)
}

// Skipped returns the number of services that were already enabled.
func (r Report) Skipped() int {
	return r.count(StatusSkipped)
}

func (r Report) count(status Status) int {
	n := 0
	for _, res := range r.Results {
		if res.Status == status {
			n++
		}
	}
	return n
}

// Manager enables services through the retry executor.
type Manager struct {
	client   controlplane.ServiceClient
	executor *retry.Executor
	logger   *slog.Logger
}

// NewManager creates a Manager. A nil logger discards output.
func NewManager(client controlplane.ServiceClient, executor *retry.Executor, log *slog.Logger) *Manager {
	if log == nil {
		log = logger.Discard()
	}
	return &Manager{client: client, executor: executor, logger: log}
}

// EnableAll attempts every service and returns after the last one regardless
// of earlier failures. The returned error is non-nil only when the operator
// aborted the run; the partial report is still returned.
func (m *Manager) EnableAll(ctx context.Context, projectID string, services []string) (Report, error) {
	log := logger.DeriveRunLogger(ctx, m.logger)
	report := Report{}

	snapshot, haveSnapshot := m.snapshot(ctx, log, projectID)

	seen := make(map[string]bool, len(services))
	for _, svc := range services {
		if seen[svc] {
			continue
		}
		seen[svc] = true

		result, err := m.enableOne(ctx, log, projectID, svc, snapshot, haveSnapshot)
		if err != nil {
			return report, err
		}
		report.Results = append(report.Results, result)
	}

	log.Info("service activation finished",
		"enabled", report.Enabled(),
		"skipped", report.Skipped(),
		"failed", report.Failures())

	return report, nil
}

// snapshot lists enabled services once. Listing is an optimisation; when it
// fails, each service is checked individually.
func (m *Manager) snapshot(ctx context.Context, log *slog.Logger, projectID string) (map[string]bool, bool) {
	states, err := retry.Do(ctx, m.executor, func(ctx context.Context) ([]controlplane.ServiceState, error) {
		return m.client.ListServices(ctx, projectID, constants.EnabledServicesFilter)
	})
	if err != nil {
		log.Debug("listing enabled services failed, checking individually", "error", err)
		return nil, false
	}

	enabled := make(map[string]bool, len(states))
	for _, s := range states {
		if s.Enabled {
			enabled[s.Name] = true
		}
	}
	return enabled, true
}

func (m *Manager) enableOne(
	ctx context.Context,
	log *slog.Logger,
	projectID, svc string,
	snapshot map[string]bool,
	haveSnapshot bool,
) (ServiceResult, error) {
	enabled := snapshot[svc]
	if !haveSnapshot {
		var err error
		enabled, err = retry.Do(ctx, m.executor, func(ctx context.Context) (bool, error) {
			return m.client.ServiceEnabled(ctx, projectID, svc)
		})
		if retry.IsAborted(err) {
			return ServiceResult{}, err
		}
		if err != nil {
			// Unknown state; enabling is safe either way.
			log.Debug("service state check failed", "service", svc, "error", err)
		}
	}

	if enabled {
		log.Debug("service already enabled", "service", svc)
		return ServiceResult{Service: svc, Status: StatusSkipped}, nil
	}

	err := m.executor.Run(ctx, func(ctx context.Context) error {
		return m.client.EnableService(ctx, projectID, svc)
	})
	if retry.IsAborted(err) {
		return ServiceResult{}, err
	}
	if err != nil {
		log.Warn("failed to enable service", "service", svc, "error", err)
		return ServiceResult{
			Service: svc,
			Status:  StatusFailed,
			Err:     appErrors.ErrServiceActivation("failed to enable "+svc, err),
			Error:   err.Error(),
		}, nil
	}

	log.Info("service enabled", "service", svc)
	return ServiceResult{Service: svc, Status: StatusEnabled}, nil
}
