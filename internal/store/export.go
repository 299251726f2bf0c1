package store

import (
	"context"

	"github.com/rcliao/autocoder/internal/model"
)

// Export is the full ledger contents.
type Export struct {
	Runs     []model.Summary       `json:"runs"`
	Installs []model.InstallResult `json:"installs"`
}

// ExportAll returns every run and install result, oldest first.
func (s *SQLiteStore) ExportAll(ctx context.Context) (*Export, error) {
	out := &Export{}

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, project, model, batch_limit, processed, succeeded, failed, cancelled, started_at, finished_at
		 FROM runs ORDER BY started_at, id`)
	if err != nil {
		return nil, err
	}
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			rows.Close()
			return nil, err
		}
		out.Runs = append(out.Runs, r)
	}
	rows.Close()

	rows, err = s.db.QueryContext(ctx,
		`SELECT id, kind, target, status, error, created_at FROM install_results ORDER BY created_at, id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		r, err := scanInstall(rows)
		if err != nil {
			return nil, err
		}
		out.Installs = append(out.Installs, r)
	}
	return out, rows.Err()
}
