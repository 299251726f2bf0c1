// Package store provides the run and install ledger interface and SQLite implementation.
package store

import (
	"context"

	"github.com/rcliao/autocoder/internal/model"
)

// FileName is the ledger database name inside the logs directory.
const FileName = "history.db"

// ListRunsParams holds parameters for listing runs.
type ListRunsParams struct {
	Project string
	Limit   int
}

// ListInstallsParams holds parameters for listing install results.
type ListInstallsParams struct {
	Kind   string
	Failed bool
	Limit  int
}

// Store defines the ledger interface.
type Store interface {
	// RecordRun stores a finished run summary. Assigns RunID if empty.
	RecordRun(ctx context.Context, s *model.Summary) error

	// ListRuns lists run summaries, newest first.
	ListRuns(ctx context.Context, p ListRunsParams) ([]model.Summary, error)

	// RecordInstall stores one provisioning target result. Assigns ID if empty.
	RecordInstall(ctx context.Context, r *model.InstallResult) error

	// ListInstalls lists install results, newest first.
	ListInstalls(ctx context.Context, p ListInstallsParams) ([]model.InstallResult, error)

	// Close closes the store.
	Close() error
}
