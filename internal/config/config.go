// Package config loads, defaults, and persists the setup configuration document.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/rcliao/autocoder/internal/model"
)

// FileName is the configuration document name inside the base directory.
const FileName = "setup_config.json"

// Default model identifiers.
const (
	DefaultPrimaryModel   = "deepseek-coder:33b-instruct-q4_K_M"
	DefaultSecondaryModel = "deepseek-coder:6.7b-instruct"
)

// Analyzer defaults.
const (
	DefaultBatchLimit   = 5
	DefaultExcerptChars = 1000
	DefaultDisplayChars = 200
	DefaultCooldown     = 2 * time.Second
	DefaultTimeout      = 5 * time.Minute
	DefaultRetryBackoff = time.Second
)

// DefaultPrompt is a text/template rendered with .Language, .Path and .Excerpt.
const DefaultPrompt = "Briefly analyze this {{.Language}} code and suggest one improvement:\n{{.Excerpt}}"

// DefaultExtensions is the discovery filter used when none is configured.
var DefaultExtensions = []string{".py"}

// DefaultExcludeDirs are directory names never descended into.
var DefaultExcludeDirs = []string{".git", "venv", ".venv", "__pycache__", "node_modules"}

// subdirs maps each derived path role to its location under base_dir.
var subdirs = map[string][]string{
	model.PathModels:    {"models"},
	model.PathProjects:  {"projects"},
	model.PathLogs:      {"logs"},
	model.PathChromaDB:  {"data", "chroma_db"},
	model.PathSWEAgent:  {"tools", "SWE-agent"},
	model.PathTabbyData: {"data", "tabby"},
}

// requiredRoles are backfilled from base_dir when a loaded document omits them.
var requiredRoles = []string{model.PathModels, model.PathProjects, model.PathLogs}

// LoadError reports a missing or malformed configuration document.
type LoadError struct {
	Path string
	Err  error
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("load config %s: %v", e.Path, e.Err)
}

func (e *LoadError) Unwrap() error { return e.Err }

// WriteError reports a failure to persist the configuration or create its directories.
type WriteError struct {
	Path string
	Err  error
}

func (e *WriteError) Error() string {
	return fmt.Sprintf("write config %s: %v", e.Path, e.Err)
}

func (e *WriteError) Unwrap() error { return e.Err }

// PathFor returns the document location for a base directory.
func PathFor(baseDir string) string {
	return filepath.Join(baseDir, FileName)
}

// Default synthesizes the document for a fresh installation rooted at baseDir.
func Default(baseDir string) *model.Config {
	paths := map[string]string{model.PathBaseDir: baseDir}
	for role, parts := range subdirs {
		paths[role] = filepath.Join(append([]string{baseDir}, parts...)...)
	}
	cfg := &model.Config{
		Paths: paths,
		Models: map[string]string{
			model.ModelPrimary:   DefaultPrimaryModel,
			model.ModelSecondary: DefaultSecondaryModel,
		},
		Source: PathFor(baseDir),
	}
	applyRuntimeDefaults(&cfg.Runtime)
	applyAnalyzerDefaults(&cfg.Analyzer)
	return cfg
}

// Load reads the document at path and fills missing optional keys with defaults.
// The paths and models sections must be present.
func Load(path string) (*model.Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &LoadError{Path: path, Err: err}
	}
	cfg, err := Parse(data)
	if err != nil {
		return nil, &LoadError{Path: path, Err: err}
	}
	cfg.Source = path
	ApplyDefaults(cfg, filepath.Dir(path))
	return cfg, nil
}

// Parse decodes a document without applying defaults.
func Parse(data []byte) (*model.Config, error) {
	var cfg model.Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse json: %w", err)
	}
	if cfg.Paths == nil {
		return nil, errors.New(`missing "paths" section`)
	}
	if cfg.Models == nil {
		return nil, errors.New(`missing "models" section`)
	}
	return &cfg, nil
}

// ApplyDefaults substitutes documented defaults for every absent optional key.
// docDir stands in for base_dir when the document does not name one.
func ApplyDefaults(cfg *model.Config, docDir string) {
	if cfg.Paths == nil {
		cfg.Paths = map[string]string{}
	}
	base := cfg.Paths[model.PathBaseDir]
	if base == "" {
		base = docDir
		cfg.Paths[model.PathBaseDir] = base
	}
	for _, role := range requiredRoles {
		if cfg.Paths[role] == "" {
			cfg.Paths[role] = filepath.Join(append([]string{base}, subdirs[role]...)...)
		}
	}

	if cfg.Models == nil {
		cfg.Models = map[string]string{}
	}
	if cfg.Models[model.ModelPrimary] == "" {
		cfg.Models[model.ModelPrimary] = DefaultPrimaryModel
	}

	applyRuntimeDefaults(&cfg.Runtime)
	applyAnalyzerDefaults(&cfg.Analyzer)
}

func applyRuntimeDefaults(r *model.Runtime) {
	if r.Backend == "" {
		r.Backend = model.BackendCLI
	}
	if r.Command == "" {
		r.Command = "ollama"
	}
	if r.APIKeyEnv == "" {
		r.APIKeyEnv = "OPENAI_API_KEY"
	}
}

func applyAnalyzerDefaults(a *model.Analyzer) {
	if a.BatchLimit <= 0 {
		a.BatchLimit = DefaultBatchLimit
	}
	if a.ExcerptChars <= 0 {
		a.ExcerptChars = DefaultExcerptChars
	}
	if a.DisplayChars <= 0 {
		a.DisplayChars = DefaultDisplayChars
	}
	if a.Cooldown <= 0 {
		a.Cooldown = model.Duration(DefaultCooldown)
	}
	if a.Timeout <= 0 {
		a.Timeout = model.Duration(DefaultTimeout)
	}
	if a.Retries < 0 {
		a.Retries = 0
	}
	if a.RetryBackoff <= 0 {
		a.RetryBackoff = model.Duration(DefaultRetryBackoff)
	}
	if len(a.Extensions) == 0 {
		a.Extensions = append([]string(nil), DefaultExtensions...)
	}
	if a.ExcludeDirs == nil {
		a.ExcludeDirs = append([]string(nil), DefaultExcludeDirs...)
	}
	if a.Prompt == "" {
		a.Prompt = DefaultPrompt
	}
}

// Save writes the document as indented JSON.
func Save(cfg *model.Config, path string) error {
	b, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return &WriteError{Path: path, Err: err}
	}
	b = append(b, '\n')
	if err := os.WriteFile(path, b, 0o644); err != nil {
		return &WriteError{Path: path, Err: err}
	}
	return nil
}

// Exists reports whether a document is present at path.
func Exists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
