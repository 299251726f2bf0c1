// Package analyzer runs a bounded, sequential batch of files through the local model.
package analyzer

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"iter"
	"os"
	"path/filepath"
	"strings"
	"text/template"
	"time"

	"go.uber.org/zap"

	"github.com/rcliao/autocoder/internal/config"
	"github.com/rcliao/autocoder/internal/discover"
	"github.com/rcliao/autocoder/internal/excerpt"
	"github.com/rcliao/autocoder/internal/execx"
	"github.com/rcliao/autocoder/internal/inference"
	"github.com/rcliao/autocoder/internal/logging"
	"github.com/rcliao/autocoder/internal/model"
	"github.com/rcliao/autocoder/internal/runlog"
)

// Recorder persists run summaries.
type Recorder interface {
	RecordRun(ctx context.Context, s *model.Summary) error
}

// Options supplies the collaborators of an Analyzer. Zero values get defaults.
type Options struct {
	// Generator overrides the backend selected by the config.
	Generator inference.Generator
	// Runner executes the CLI backend. Defaults to execx.NewOSRunner.
	Runner execx.Runner
	// Recorder receives the run summary. Optional.
	Recorder Recorder
	// RunLog overrides the <logs>/analyzer.log sink.
	RunLog *runlog.Log
	// Out receives human-readable progress. Defaults to io.Discard.
	Out    io.Writer
	Logger *zap.Logger
	// Sleep waits between files and between retries. Defaults to a context-aware timer.
	Sleep func(ctx context.Context, d time.Duration) error
	Now   func() time.Time
}

// Analyzer holds everything one run needs.
type Analyzer struct {
	Config  *model.Config
	Project string
	Model   string
	Limits  model.Analyzer

	gen      inference.Generator
	prompt   *template.Template
	runLog   *runlog.Log
	recorder Recorder
	out      io.Writer
	log      *zap.Logger
	sleep    func(ctx context.Context, d time.Duration) error
	now      func() time.Time
}

// Initialize resolves the project root (projectPath overrides paths.projects), builds
// the inference backend, and opens the run log for appending.
func Initialize(cfg *model.Config, projectPath string, opts Options) (*Analyzer, error) {
	if cfg == nil {
		return nil, &config.LoadError{Path: "", Err: errors.New("no configuration")}
	}
	fail := func(format string, args ...interface{}) (*Analyzer, error) {
		return nil, &config.LoadError{Path: cfg.Source, Err: fmt.Errorf(format, args...)}
	}

	modelName := cfg.Model(model.ModelPrimary)
	if modelName == "" {
		return fail("missing models.%s", model.ModelPrimary)
	}
	logsDir := cfg.Path(model.PathLogs)
	if logsDir == "" {
		return fail("missing paths.%s", model.PathLogs)
	}
	if projectPath == "" {
		projectPath = cfg.Path(model.PathProjects)
	}
	if projectPath == "" {
		return fail("missing paths.%s", model.PathProjects)
	}
	project, err := filepath.Abs(projectPath)
	if err != nil {
		return fail("resolve project %q: %v", projectPath, err)
	}

	tmpl, err := template.New("prompt").Option("missingkey=error").Parse(cfg.Analyzer.Prompt)
	if err != nil {
		return fail("parse analyzer.prompt: %v", err)
	}
	// Parsing accepts unknown fields; only execution reports them.
	if err := tmpl.Execute(io.Discard, promptData{}); err != nil {
		return fail("analyzer.prompt: %v", err)
	}

	a := &Analyzer{
		Config:   cfg,
		Project:  project,
		Model:    modelName,
		Limits:   cfg.Analyzer,
		prompt:   tmpl,
		recorder: opts.Recorder,
		out:      opts.Out,
		log:      opts.Logger,
		sleep:    opts.Sleep,
		now:      opts.Now,
		gen:      opts.Generator,
		runLog:   opts.RunLog,
	}
	if a.out == nil {
		a.out = io.Discard
	}
	if a.log == nil {
		a.log = logging.New("analyzer")
	}
	if a.sleep == nil {
		a.sleep = sleepCtx
	}
	if a.now == nil {
		a.now = time.Now
	}
	if a.gen == nil {
		runner := opts.Runner
		if runner == nil {
			runner = execx.NewOSRunner()
		}
		if a.gen, err = inference.New(cfg, runner); err != nil {
			return fail("%v", err)
		}
	}
	if a.runLog == nil {
		if err := os.MkdirAll(logsDir, 0o755); err != nil {
			return nil, fmt.Errorf("create logs dir: %w", err)
		}
		a.runLog = runlog.Open(logsDir)
	}

	a.log.Info("Analyzer initialized",
		zap.String("project", project),
		zap.String("model", modelName),
		zap.String("models_dir", cfg.Path(model.PathModels)),
		zap.String("backend", cfg.Runtime.Backend))
	return a, nil
}

// Close releases the run log.
func (a *Analyzer) Close() error {
	return a.runLog.Close()
}

// Discover lazily yields candidate files under the project root in lexical order.
func (a *Analyzer) Discover(ctx context.Context) iter.Seq[string] {
	w := discover.New(a.Project, discover.Options{
		Extensions:  a.Limits.Extensions,
		ExcludeDirs: a.Limits.ExcludeDirs,
		OnError: func(path string, err error) {
			a.log.Warn("Skipping unreadable path", zap.String("path", path), zap.Error(err))
		},
	})
	return w.Files(ctx)
}

type promptData struct {
	Language string
	Path     string
	Excerpt  string
}

// AnalyzeOne reads a bounded excerpt of file, asks the model for a suggestion, and
// returns the result. Failures are carried in Result.Err, never returned.
func (a *Analyzer) AnalyzeOne(ctx context.Context, file string) model.Result {
	res := model.Result{Path: file, StartedAt: a.now()}

	text, err := excerpt.File(file, a.Limits.ExcerptChars)
	if err != nil {
		res.Err = &FileAccessError{File: file, Err: err}
		res.FinishedAt = a.now()
		return res
	}
	res.Excerpt = text

	var buf bytes.Buffer
	err = a.prompt.Execute(&buf, promptData{
		Language: Language(file),
		Path:     a.rel(file),
		Excerpt:  text,
	})
	if err != nil {
		res.Err = &InferenceError{File: file, Cause: fmt.Errorf("render prompt: %w", err)}
		res.FinishedAt = a.now()
		return res
	}

	out, err := a.generate(ctx, buf.String())
	if err != nil {
		res.Err = &InferenceError{File: file, Cause: err}
		res.FinishedAt = a.now()
		return res
	}
	res.Suggestion = out
	res.Display = excerpt.Truncate(strings.TrimSpace(out), a.Limits.DisplayChars)
	res.FinishedAt = a.now()
	return res
}

// generate calls the model with a per-call timeout, retrying with exponential backoff.
func (a *Analyzer) generate(ctx context.Context, prompt string) (string, error) {
	backoff := a.Limits.RetryBackoff.Std()
	var lastErr error
	for attempt := 0; attempt <= a.Limits.Retries; attempt++ {
		if attempt > 0 {
			a.log.Warn("Retrying inference", zap.Int("attempt", attempt+1), zap.Error(lastErr))
			if err := a.sleep(ctx, backoff); err != nil {
				return "", err
			}
			backoff *= 2
		}

		callCtx, cancel := context.WithTimeout(ctx, a.Limits.Timeout.Std())
		out, err := a.gen.Generate(callCtx, a.Model, prompt)
		cancel()
		if err == nil {
			return out, nil
		}
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		lastErr = err
	}
	return "", lastErr
}

// Run processes at most Limits.BatchLimit discovered files, one at a time, pausing
// Limits.Cooldown between them. Every finished file gets one run log entry whether
// it succeeded or not. Only cancellation of ctx is returned as an error; the summary
// is recorded either way.
func (a *Analyzer) Run(ctx context.Context) (model.Summary, error) {
	sum := model.Summary{
		Project:   a.Project,
		Model:     a.Model,
		Limit:     a.Limits.BatchLimit,
		StartedAt: a.now(),
	}
	a.log.Info("Run started", zap.String("project", a.Project), zap.Int("limit", sum.Limit))

	var runErr error
	for file := range a.Discover(ctx) {
		if sum.Processed > 0 {
			if err := a.sleep(ctx, a.Limits.Cooldown.Std()); err != nil {
				runErr = err
				break
			}
		}
		if err := ctx.Err(); err != nil {
			runErr = err
			break
		}

		rel := a.rel(file)
		fmt.Fprintf(a.out, "Analyzing: %s\n", rel)
		res := a.AnalyzeOne(ctx, file)
		if res.Err != nil && ctx.Err() != nil {
			runErr = ctx.Err()
			break
		}

		sum.Processed++
		if res.OK() {
			sum.Succeeded++
			fmt.Fprintf(a.out, "Suggestion: %s\n\n", res.Display)
			a.entry("Analyzed %s", rel)
		} else {
			sum.Failed++
			fmt.Fprintf(a.out, "Failed: %v\n\n", res.Err)
			a.log.Warn("Analysis failed", zap.String("file", rel), zap.Error(res.Err))
			a.entry("%s file=%s err=%v", Kind(res.Err), rel, res.Err)
		}

		if sum.Processed >= a.Limits.BatchLimit {
			break
		}
	}
	if runErr == nil {
		runErr = ctx.Err()
	}

	sum.Cancelled = runErr != nil
	sum.FinishedAt = a.now()

	if a.recorder != nil {
		if err := a.recorder.RecordRun(context.WithoutCancel(ctx), &sum); err != nil {
			a.log.Warn("Could not record run", zap.Error(err))
		}
	}
	a.log.Info("Run finished",
		zap.String("run_id", sum.RunID),
		zap.Int("processed", sum.Processed),
		zap.Int("succeeded", sum.Succeeded),
		zap.Int("failed", sum.Failed),
		zap.Bool("cancelled", sum.Cancelled))
	return sum, runErr
}

func (a *Analyzer) entry(format string, args ...interface{}) {
	if err := a.runLog.Entry(format, args...); err != nil {
		a.log.Warn("Could not write run log", zap.Error(err))
	}
}

func (a *Analyzer) rel(file string) string {
	rel, err := filepath.Rel(a.Project, file)
	if err != nil {
		return file
	}
	return filepath.ToSlash(rel)
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

var languages = map[string]string{
	".py":   "Python",
	".go":   "Go",
	".js":   "JavaScript",
	".ts":   "TypeScript",
	".rs":   "Rust",
	".java": "Java",
	".rb":   "Ruby",
	".c":    "C",
	".cpp":  "C++",
	".cs":   "C#",
	".php":  "PHP",
	".sh":   "shell",
}

// Language names the programming language of file for the prompt.
func Language(file string) string {
	ext := filepath.Ext(file)
	if l, ok := languages[strings.ToLower(ext)]; ok {
		return l
	}
	if ext == "" {
		return "source"
	}
	return strings.TrimPrefix(ext, ".")
}
