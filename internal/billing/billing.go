// Package billing links a project to a billing account and, when the account
// is at its project cap, runs a single unlink-and-retry recovery cycle.
package billing

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"

	"github.com/runvoy/keyforge/internal/constants"
	"github.com/runvoy/keyforge/internal/controlplane"
	appErrors "github.com/runvoy/keyforge/internal/errors"
	"github.com/runvoy/keyforge/internal/logger"
	"github.com/runvoy/keyforge/internal/prompt"
	"github.com/runvoy/keyforge/internal/retry"
)

// Result describes how a link attempt ended.
type Result struct {
	AccountID string `yaml:"account_id"`
	Linked    bool   `yaml:"linked"`
	// Recovered is true when the recovery cycle ran, whether or not the
	// retried link succeeded.
	Recovered      bool     `yaml:"recovered"`
	Unlinked       []string `yaml:"unlinked,omitempty"`
	UnlinkFailures []string `yaml:"unlink_failures,omitempty"`
}

// Linker runs the link protocol. It holds no per-run state and can be reused.
type Linker struct {
	client    controlplane.BillingClient
	executor  *retry.Executor
	confirmer prompt.Confirmer
	pause     time.Duration
	sleep     retry.SleepFunc
	logger    *slog.Logger
}

// Option configures a Linker.
type Option func(*Linker)

// WithConfirmer asks c before unlinking other projects.
func WithConfirmer(c prompt.Confirmer) Option {
	return func(l *Linker) {
		l.confirmer = c
	}
}

// WithConvergencePause sets the pause between unlinking and re-linking.
func WithConvergencePause(d time.Duration) Option {
	return func(l *Linker) {
		l.pause = d
	}
}

// WithSleep replaces the pause implementation; tests use it to avoid waiting.
func WithSleep(sleep retry.SleepFunc) Option {
	return func(l *Linker) {
		l.sleep = sleep
	}
}

// WithLogger sets the logger.
func WithLogger(log *slog.Logger) Option {
	return func(l *Linker) {
		l.logger = log
	}
}

// NewLinker creates a Linker. Without WithConfirmer, projects are unlinked
// without asking.
func NewLinker(client controlplane.BillingClient, executor *retry.Executor, opts ...Option) *Linker {
	l := &Linker{
		client:    client,
		executor:  executor,
		confirmer: prompt.Static{Answer: true},
		pause:     constants.DefaultConvergencePause,
		sleep:     retry.Sleep,
		logger:    logger.Discard(),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// ResolveAccount returns configured unless it is empty or "auto", in which
// case the first open billing account is selected.
func (l *Linker) ResolveAccount(ctx context.Context, configured string) (string, error) {
	configured = strings.TrimPrefix(strings.TrimSpace(configured), "billingAccounts/")
	if configured != "" && !strings.EqualFold(configured, constants.AutoBillingAccount) {
		return configured, nil
	}

	accounts, err := retry.Do(ctx, l.executor, l.client.ListOpenBillingAccounts)
	if retry.IsAborted(err) {
		return "", err
	}
	if err != nil {
		return "", appErrors.ErrNoBillingAccount("failed to list billing accounts", err)
	}

	for _, acct := range accounts {
		if acct.Open {
			logger.DeriveRunLogger(ctx, l.logger).Info("selected billing account",
				"account", acct.ID, "display_name", acct.DisplayName)
			return acct.ID, nil
		}
	}
	return "", appErrors.ErrNoBillingAccount("no open billing account found", nil)
}

// Link links projectID to accountID. Only a quota-class rejection starts the
// recovery cycle, and at most one cycle runs. Failures are returned as
// fatal-with-rollback AppErrors; an operator interrupt as retry.ErrAborted.
func (l *Linker) Link(ctx context.Context, projectID, accountID string) (Result, error) {
	log := logger.DeriveRunLogger(ctx, l.logger).With("account", accountID)
	result := Result{AccountID: accountID}

	linkErr := l.link(ctx, projectID, accountID)
	if linkErr == nil {
		result.Linked = true
		log.Info("billing linked")
		return result, nil
	}
	if retry.IsAborted(linkErr) {
		return result, linkErr
	}
	if !errors.Is(linkErr, controlplane.ErrQuotaExceeded) {
		return result, appErrors.ErrBillingUnrecoverable("billing link failed", linkErr)
	}

	log.Warn("billing account is at its project cap, starting recovery", "error", linkErr)
	return l.recover(ctx, log, projectID, accountID, result, linkErr)
}

func (l *Linker) recover(
	ctx context.Context,
	log *slog.Logger,
	projectID, accountID string,
	result Result,
	linkErr error,
) (Result, error) {
	linked, err := retry.Do(ctx, l.executor, func(ctx context.Context) ([]string, error) {
		return l.client.ListLinkedProjects(ctx, accountID)
	})
	if retry.IsAborted(err) {
		return result, err
	}
	if err != nil {
		return result, appErrors.ErrBillingUnrecoverable("failed to list projects linked to the billing account", err)
	}

	candidates := slices.DeleteFunc(slices.Clone(linked), func(id string) bool { return id == projectID })
	if len(candidates) == 0 {
		return result, appErrors.ErrBillingUnrecoverable("billing quota exhausted and no linked projects to unlink", linkErr)
	}

	confirmed, err := l.confirmer.Confirm(ctx,
		fmt.Sprintf("Unlink %d project(s) from billing account %s?", len(candidates), accountID),
		strings.Join(candidates, "\n"))
	if retry.IsBenign(err) {
		return result, retry.Abort(err)
	}
	if err != nil {
		return result, appErrors.ErrBillingUnrecoverable("unlink confirmation failed", err)
	}
	if !confirmed {
		return result, appErrors.ErrBillingUnrecoverable("operator declined to unlink projects", linkErr)
	}

	result.Recovered = true
	for _, id := range candidates {
		err := l.executor.Run(ctx, func(ctx context.Context) error {
			return l.client.UnlinkBilling(ctx, id)
		})
		if retry.IsAborted(err) {
			return result, err
		}
		if err != nil {
			log.Warn("failed to unlink project", "linked_project", id, "error", err)
			result.UnlinkFailures = append(result.UnlinkFailures, id)
			continue
		}
		log.Info("unlinked project", "linked_project", id)
		result.Unlinked = append(result.Unlinked, id)
	}

	log.Debug("waiting for billing to converge", "pause", l.pause)
	if err := l.sleep(ctx, l.pause); err != nil {
		if retry.IsBenign(err) {
			return result, retry.Abort(err)
		}
		return result, appErrors.ErrBillingUnrecoverable("interrupted while waiting for billing to converge", err)
	}

	if err := l.link(ctx, projectID, accountID); err != nil {
		if retry.IsAborted(err) {
			return result, err
		}
		return result, appErrors.ErrBillingUnrecoverable(
			fmt.Sprintf("billing link failed after unlinking %d project(s)", len(result.Unlinked)), err)
	}

	result.Linked = true
	log.Info("billing linked after recovery", "unlinked", len(result.Unlinked))
	return result, nil
}

func (l *Linker) link(ctx context.Context, projectID, accountID string) error {
	return l.executor.Run(ctx, func(ctx context.Context) error {
		return l.client.LinkBilling(ctx, projectID, accountID)
	})
}
