// Package testutil provides shared testing utilities and helpers.
package testutil

import (
	"context"
	"fmt"
	"time"

	"github.com/runvoy/keyforge/internal/controlplane"
	"github.com/runvoy/keyforge/internal/controlplane/memory"
	"github.com/runvoy/keyforge/internal/retry"
)

// BillingAccountID is the open account registered by the builders below.
const BillingAccountID = "0123AB-CDEF01-234567"

// NoSleep returns immediately unless ctx is done.
func NoSleep(ctx context.Context, _ time.Duration) error {
	return ctx.Err()
}

// Executor returns an executor that retries without waiting.
func Executor(maxAttempts int) *retry.Executor {
	return &retry.Executor{MaxAttempts: maxAttempts, Backoff: retry.NoBackoff, Sleep: NoSleep}
}

// ControlPlaneBuilder provides a fluent interface for building in-memory
// control planes.
type ControlPlaneBuilder struct {
	cp *memory.ControlPlane
}

// NewControlPlane starts a control plane with one open, uncapped account.
func NewControlPlane() *ControlPlaneBuilder {
	return NewControlPlaneWithCap(0)
}

// NewControlPlaneWithCap starts a control plane whose open account accepts
// at most linkCap projects.
func NewControlPlaneWithCap(linkCap int) *ControlPlaneBuilder {
	cp := memory.New()
	cp.AddBillingAccount(controlplane.BillingAccount{
		ID:          BillingAccountID,
		DisplayName: "Primary",
		Open:        true,
	}, linkCap)
	return &ControlPlaneBuilder{cp: cp}
}

// WithLinkedProjects seeds n projects linked to the account.
func (b *ControlPlaneBuilder) WithLinkedProjects(n int) *ControlPlaneBuilder {
	for i := 1; i <= n; i++ {
		b.cp.SeedProject(fmt.Sprintf("old-project-%d", i), BillingAccountID)
	}
	return b
}

// WithFailure injects f.
func (b *ControlPlaneBuilder) WithFailure(f memory.Failure) *ControlPlaneBuilder {
	b.cp.Inject(f)
	return b
}

// Build returns the control plane.
func (b *ControlPlaneBuilder) Build() *memory.ControlPlane {
	return b.cp
}
