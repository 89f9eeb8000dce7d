// Package logger provides structured logging utilities for keyforge.
// It includes run-scoped logging and log level management.
package logger

import (
	"context"
	"log/slog"

	"github.com/runvoy/keyforge/internal/constants"
)

type contextKey string

const (
	runIDContextKey     contextKey = "runID"
	projectIDContextKey contextKey = "projectID"
)

// WithRunID stores the provisioning run ID in the context.
func WithRunID(ctx context.Context, runID string) context.Context {
	return context.WithValue(ctx, runIDContextKey, runID)
}

// GetRunID extracts the provisioning run ID from the context.
func GetRunID(ctx context.Context) string {
	if runID, ok := ctx.Value(runIDContextKey).(string); ok {
		return runID
	}
	return ""
}

// WithProjectID stores the project being provisioned in the context.
func WithProjectID(ctx context.Context, projectID string) context.Context {
	return context.WithValue(ctx, projectIDContextKey, projectID)
}

// GetProjectID extracts the project being provisioned from the context.
func GetProjectID(ctx context.Context) string {
	if projectID, ok := ctx.Value(projectIDContextKey).(string); ok {
		return projectID
	}
	return ""
}

// DeriveRunLogger returns a logger enriched with the run-scoped fields
// available in the provided context.
func DeriveRunLogger(ctx context.Context, base *slog.Logger) *slog.Logger {
	if base == nil {
		base = slog.Default()
	}

	if runID := GetRunID(ctx); runID != "" {
		base = base.With(constants.RunIDLogField, runID)
	}
	if projectID := GetProjectID(ctx); projectID != "" {
		base = base.With(constants.ProjectIDLogField, projectID)
	}

	return base
}

// Discard returns a logger that drops every record. Used when a component is
// constructed without one.
func Discard() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}
