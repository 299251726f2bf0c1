package store

import (
	"context"
	"os"
)

// Stats holds ledger statistics.
type Stats struct {
	DBPath         string         `json:"db_path"`
	DBSizeBytes    int64          `json:"db_size_bytes"`
	TotalRuns      int            `json:"total_runs"`
	FilesProcessed int            `json:"files_processed"`
	FilesSucceeded int            `json:"files_succeeded"`
	FilesFailed    int            `json:"files_failed"`
	Installs       int            `json:"installs"`
	InstallsFailed int            `json:"installs_failed"`
	Projects       []ProjectStats `json:"projects"`
}

// ProjectStats holds per-project counts.
type ProjectStats struct {
	Project   string `json:"project"`
	Runs      int    `json:"runs"`
	Processed int    `json:"processed"`
	Failed    int    `json:"failed"`
}

// Stats returns ledger statistics.
func (s *SQLiteStore) Stats(ctx context.Context, dbPath string) (*Stats, error) {
	st := &Stats{DBPath: dbPath}

	if info, err := os.Stat(dbPath); err == nil {
		st.DBSizeBytes = info.Size()
	}

	s.db.QueryRowContext(ctx, `SELECT COUNT(*), COALESCE(SUM(processed), 0), COALESCE(SUM(succeeded), 0), COALESCE(SUM(failed), 0) FROM runs`).
		Scan(&st.TotalRuns, &st.FilesProcessed, &st.FilesSucceeded, &st.FilesFailed)
	s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM install_results`).Scan(&st.Installs)
	s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM install_results WHERE status = 'failed'`).Scan(&st.InstallsFailed)

	rows, err := s.db.QueryContext(ctx, `
		SELECT project, COUNT(*) AS cnt, SUM(processed), SUM(failed)
		FROM runs GROUP BY project ORDER BY cnt DESC, project`)
	if err != nil {
		return st, err
	}
	defer rows.Close()

	for rows.Next() {
		var p ProjectStats
		if err := rows.Scan(&p.Project, &p.Runs, &p.Processed, &p.Failed); err != nil {
			return st, err
		}
		st.Projects = append(st.Projects, p)
	}

	return st, rows.Err()
}
