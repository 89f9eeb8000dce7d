package billing

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/runvoy/keyforge/internal/controlplane"
	"github.com/runvoy/keyforge/internal/controlplane/memory"
	appErrors "github.com/runvoy/keyforge/internal/errors"
	"github.com/runvoy/keyforge/internal/prompt"
	"github.com/runvoy/keyforge/internal/retry"
)

const (
	account = "0123AB-CDEF01-234567"
	project = "kf-billing01"
)

type recordingSleep struct {
	pauses []time.Duration
}

func (r *recordingSleep) sleep(_ context.Context, d time.Duration) error {
	r.pauses = append(r.pauses, d)
	return nil
}

type countingConfirmer struct {
	answer bool
	err    error
	asked  int
}

func (c *countingConfirmer) Confirm(context.Context, string, string) (bool, error) {
	c.asked++
	return c.answer, c.err
}

func newFixture(linkCap int, linked ...string) *memory.ControlPlane {
	cp := memory.New()
	cp.AddBillingAccount(controlplane.BillingAccount{ID: account, DisplayName: "Primary", Open: true}, linkCap)
	for _, id := range linked {
		cp.SeedProject(id, account)
	}
	cp.SeedProject(project, "")
	return cp
}

func newLinker(cp *memory.ControlPlane, opts ...Option) (*Linker, *recordingSleep) {
	sleeper := &recordingSleep{}
	executor := &retry.Executor{MaxAttempts: 2, Backoff: retry.NoBackoff, Sleep: sleeper.sleep}
	opts = append([]Option{WithSleep(sleeper.sleep), WithConvergencePause(5 * time.Second)}, opts...)
	return NewLinker(cp, executor, opts...), sleeper
}

func TestLink_Success(t *testing.T) {
	cp := newFixture(3)
	linker, sleeper := newLinker(cp)

	result, err := linker.Link(context.Background(), project, account)

	require.NoError(t, err)
	assert.True(t, result.Linked)
	assert.False(t, result.Recovered)
	assert.Equal(t, account, cp.BillingAccountOf(project))
	assert.Empty(t, cp.Calls(memory.OpListLinkedProjects), "no pre-check on the happy path")
	assert.Empty(t, sleeper.pauses)
}

func TestLink_RecoversAtCap(t *testing.T) {
	cp := newFixture(3, "old-project-1", "old-project-2", "old-project-3")
	confirmer := &countingConfirmer{answer: true}
	linker, sleeper := newLinker(cp, WithConfirmer(confirmer))

	result, err := linker.Link(context.Background(), project, account)

	require.NoError(t, err)
	assert.True(t, result.Linked)
	assert.True(t, result.Recovered)
	assert.Equal(t, []string{"old-project-1", "old-project-2", "old-project-3"}, result.Unlinked)
	assert.Empty(t, result.UnlinkFailures)
	assert.Equal(t, 1, confirmer.asked)
	assert.Len(t, cp.Calls(memory.OpListLinkedProjects), 1, "exactly one recovery cycle")
	assert.Contains(t, sleeper.pauses, 5*time.Second)
	assert.Equal(t, account, cp.BillingAccountOf(project))
}

func TestLink_UnlinkFailuresAreTolerated(t *testing.T) {
	cp := newFixture(2, "foreign-project", "owned-project")
	cp.Inject(memory.Failure{Op: memory.OpUnlinkBilling, Target: "foreign-project", Err: controlplane.ErrPermissionDenied})
	linker, _ := newLinker(cp)

	result, err := linker.Link(context.Background(), project, account)

	require.NoError(t, err)
	assert.True(t, result.Linked)
	assert.Equal(t, []string{"owned-project"}, result.Unlinked)
	assert.Equal(t, []string{"foreign-project"}, result.UnlinkFailures)
}

func TestLink_AtMostOneRecoveryCycle(t *testing.T) {
	cp := newFixture(3, "old-project-1", "old-project-2", "old-project-3")
	// Every link is rejected, so the retried link fails as well.
	cp.Inject(memory.Failure{Op: memory.OpLinkBilling, Err: controlplane.ErrQuotaExceeded})
	linker, _ := newLinker(cp)

	result, err := linker.Link(context.Background(), project, account)

	require.Error(t, err)
	assert.Equal(t, appErrors.ErrCodeBillingUnavailable, appErrors.GetErrorCode(err))
	assert.Equal(t, appErrors.ClassFatalWithRollback, appErrors.GetClass(err))
	assert.True(t, result.Recovered)
	assert.False(t, result.Linked)
	assert.Len(t, cp.Calls(memory.OpListLinkedProjects), 1)
	assert.Len(t, cp.Calls(memory.OpUnlinkBilling), 3)
	// Two attempts for the initial link and two for the single retry.
	assert.Len(t, cp.Calls(memory.OpLinkBilling), 4)
}

func TestLink_NothingToUnlink(t *testing.T) {
	cp := newFixture(0)
	cp.Inject(memory.Failure{Op: memory.OpLinkBilling, Err: controlplane.ErrQuotaExceeded})
	confirmer := &countingConfirmer{answer: true}
	linker, _ := newLinker(cp, WithConfirmer(confirmer))

	result, err := linker.Link(context.Background(), project, account)

	require.Error(t, err)
	assert.Equal(t, appErrors.ClassFatalWithRollback, appErrors.GetClass(err))
	assert.ErrorIs(t, err, controlplane.ErrQuotaExceeded)
	assert.False(t, result.Recovered)
	assert.Zero(t, confirmer.asked)
	assert.Empty(t, cp.Calls(memory.OpUnlinkBilling))
}

func TestLink_SkipsProjectBeingProvisioned(t *testing.T) {
	cp := newFixture(0)
	cp.SeedProject(project, account)
	cp.Inject(memory.Failure{Op: memory.OpLinkBilling, Err: controlplane.ErrQuotaExceeded})
	linker, _ := newLinker(cp)

	_, err := linker.Link(context.Background(), project, account)

	require.Error(t, err)
	assert.Empty(t, cp.Calls(memory.OpUnlinkBilling))
}

func TestLink_NonQuotaFailureSkipsRecovery(t *testing.T) {
	cp := newFixture(3, "old-project-1")
	cp.Inject(memory.Failure{Op: memory.OpLinkBilling, Err: controlplane.ErrPermissionDenied})
	linker, _ := newLinker(cp)

	result, err := linker.Link(context.Background(), project, account)

	require.Error(t, err)
	assert.Equal(t, appErrors.ErrCodeBillingUnavailable, appErrors.GetErrorCode(err))
	assert.False(t, result.Recovered)
	assert.Empty(t, cp.Calls(memory.OpListLinkedProjects))
}

func TestLink_OperatorDeclines(t *testing.T) {
	cp := newFixture(1, "old-project-1")
	linker, _ := newLinker(cp, WithConfirmer(prompt.Static{Answer: false}))

	result, err := linker.Link(context.Background(), project, account)

	require.Error(t, err)
	assert.Equal(t, appErrors.ClassFatalWithRollback, appErrors.GetClass(err))
	assert.False(t, result.Recovered)
	assert.Empty(t, cp.Calls(memory.OpUnlinkBilling))
	assert.Equal(t, account, cp.BillingAccountOf("old-project-1"))
}

func TestLink_InterruptedConfirmationAborts(t *testing.T) {
	cp := newFixture(1, "old-project-1")
	linker, _ := newLinker(cp, WithConfirmer(&countingConfirmer{err: retry.ErrInterrupted}))

	_, err := linker.Link(context.Background(), project, account)

	require.Error(t, err)
	assert.True(t, retry.IsAborted(err))
	assert.Equal(t, appErrors.ClassUnknown, appErrors.GetClass(err))
}

func TestLink_AbortDuringUnlink(t *testing.T) {
	cp := newFixture(2, "old-project-1", "old-project-2")
	cp.Inject(memory.Failure{Op: memory.OpUnlinkBilling, Target: "old-project-1", Err: retry.ErrInterrupted})
	linker, _ := newLinker(cp)

	_, err := linker.Link(context.Background(), project, account)

	require.Error(t, err)
	assert.True(t, retry.IsAborted(err))
	assert.Equal(t, []string{"old-project-1"}, cp.Calls(memory.OpUnlinkBilling))
}

func TestResolveAccount(t *testing.T) {
	cp := memory.New()
	cp.AddBillingAccount(controlplane.BillingAccount{ID: "CLOSED-000000-000000", Open: false}, 0)
	cp.AddBillingAccount(controlplane.BillingAccount{ID: account, Open: true}, 0)
	cp.AddBillingAccount(controlplane.BillingAccount{ID: "SECOND-000000-000000", Open: true}, 0)
	linker, _ := newLinker(cp)

	tests := []struct {
		name       string
		configured string
		want       string
	}{
		{"auto selects first open", "auto", account},
		{"empty selects first open", "", account},
		{"explicit is kept", "EXPLIC-IT0000-000000", "EXPLIC-IT0000-000000"},
		{"resource name prefix is stripped", "billingAccounts/EXPLIC-IT0000-000000", "EXPLIC-IT0000-000000"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := linker.ResolveAccount(context.Background(), tt.configured)

			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestResolveAccount_NoneOpen(t *testing.T) {
	linker, _ := newLinker(memory.New())

	_, err := linker.ResolveAccount(context.Background(), "auto")

	require.Error(t, err)
	assert.Equal(t, appErrors.ErrCodeNoBillingAccount, appErrors.GetErrorCode(err))
}

func TestResolveAccount_ListFails(t *testing.T) {
	cp := memory.New()
	boom := errors.New("billing api unavailable")
	cp.Inject(memory.Failure{Op: memory.OpListBillingAccounts, Err: boom})
	linker, _ := newLinker(cp)

	_, err := linker.ResolveAccount(context.Background(), "")

	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
	assert.Len(t, cp.Calls(memory.OpListBillingAccounts), 2)
}
