// Package model defines the core autocoder data types.
package model

import (
	"encoding/json"
	"fmt"
	"time"
)

// Path roles stored in Config.Paths.
const (
	PathBaseDir   = "base_dir"
	PathModels    = "models"
	PathProjects  = "projects"
	PathLogs      = "logs"
	PathChromaDB  = "chroma_db"
	PathSWEAgent  = "swe_agent"
	PathTabbyData = "tabby_data"
)

// Model roles stored in Config.Models.
const (
	ModelPrimary   = "primary"
	ModelSecondary = "secondary"
)

// Inference backends selectable via Runtime.Backend.
const (
	BackendCLI    = "cli"
	BackendOllama = "ollama"
	BackendOpenAI = "openai"
)

// Config is the persisted configuration document written by setup and read by analyze.
type Config struct {
	Paths    map[string]string `json:"paths"`
	Models   map[string]string `json:"models"`
	Runtime  Runtime           `json:"runtime"`
	Analyzer Analyzer          `json:"analyzer"`

	// Source is the file the document was loaded from. Not persisted.
	Source string `json:"-"`
}

// Runtime selects how the local model is reached.
type Runtime struct {
	Backend   string `json:"backend,omitempty"`
	Command   string `json:"command,omitempty"`
	Host      string `json:"host,omitempty"`
	APIKeyEnv string `json:"api_key_env,omitempty"`
}

// Analyzer holds the batch limits and prompt settings.
type Analyzer struct {
	BatchLimit   int      `json:"batch_limit,omitempty"`
	ExcerptChars int      `json:"excerpt_chars,omitempty"`
	DisplayChars int      `json:"display_chars,omitempty"`
	Cooldown     Duration `json:"cooldown,omitempty"`
	Timeout      Duration `json:"timeout,omitempty"`
	Retries      int      `json:"retries,omitempty"`
	RetryBackoff Duration `json:"retry_backoff,omitempty"`
	Extensions   []string `json:"extensions,omitempty"`
	ExcludeDirs  []string `json:"exclude_dirs,omitempty"`
	FailOnError  bool     `json:"fail_on_error,omitempty"`
	Prompt       string   `json:"prompt,omitempty"`
}

// Path returns the configured location for a role, or "" if unset.
func (c *Config) Path(role string) string {
	if c == nil || c.Paths == nil {
		return ""
	}
	return c.Paths[role]
}

// Model returns the model identifier for a role, or "" if unset.
func (c *Config) Model(role string) string {
	if c == nil || c.Models == nil {
		return ""
	}
	return c.Models[role]
}

// Duration is a time.Duration that round-trips through JSON as a Go duration string ("2s").
// Plain numbers are accepted as seconds.
type Duration time.Duration

// Std returns the value as a time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(time.Duration(d).String())
}

func (d *Duration) UnmarshalJSON(b []byte) error {
	var v interface{}
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}
	switch x := v.(type) {
	case float64:
		*d = Duration(time.Duration(x * float64(time.Second)))
	case string:
		parsed, err := time.ParseDuration(x)
		if err != nil {
			return fmt.Errorf("invalid duration %q: %w", x, err)
		}
		*d = Duration(parsed)
	case nil:
		*d = 0
	default:
		return fmt.Errorf("invalid duration %s", string(b))
	}
	return nil
}
