package model

import "time"

// Result is the outcome of analyzing a single file.
type Result struct {
	Path       string    `json:"path"`
	Excerpt    string    `json:"-"`
	Suggestion string    `json:"suggestion,omitempty"`
	Display    string    `json:"display,omitempty"`
	Err        error     `json:"-"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
}

// OK reports whether the analysis produced a suggestion.
func (r Result) OK() bool { return r.Err == nil }

// Summary counts the tasks of one analyze run.
type Summary struct {
	RunID      string    `json:"run_id"`
	Project    string    `json:"project"`
	Model      string    `json:"model"`
	Limit      int       `json:"limit"`
	Processed  int       `json:"processed"`
	Succeeded  int       `json:"succeeded"`
	Failed     int       `json:"failed"`
	Cancelled  bool      `json:"cancelled,omitempty"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
}

// Install result kinds.
const (
	InstallRuntime     = "runtime"
	InstallModel       = "model"
	InstallEnvironment = "environment"
	InstallPackage     = "package"
)

// Install result statuses.
const (
	StatusPresent   = "present"
	StatusInstalled = "installed"
	StatusFailed    = "failed"
	StatusSkipped   = "skipped"
)

// InstallResult records the outcome for one provisioning target.
type InstallResult struct {
	ID        string    `json:"id,omitempty"`
	Kind      string    `json:"kind"`
	Target    string    `json:"target"`
	Status    string    `json:"status"`
	Error     string    `json:"error,omitempty"`
	CreatedAt time.Time `json:"created_at"`

	Err error `json:"-"`
}
