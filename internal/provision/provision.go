// Package provision prepares a local installation: directories, the configuration
// document, the model runtime and models, an isolated Python environment, and a launcher.
//
// Every step is idempotent. Installer steps are best-effort: each target is attempted
// independently and nothing is rolled back when a later target fails.
package provision

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sort"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/rcliao/autocoder/internal/config"
	"github.com/rcliao/autocoder/internal/execx"
	"github.com/rcliao/autocoder/internal/inference"
	"github.com/rcliao/autocoder/internal/logging"
	"github.com/rcliao/autocoder/internal/model"
)

// Provisioner runs the setup steps.
type Provisioner struct {
	runner    execx.Runner
	log       *zap.Logger
	goos      string
	newPuller func(cfg *model.Config, runner execx.Runner) (inference.Puller, error)
}

// Option customizes a Provisioner.
type Option func(*Provisioner)

// WithLogger sets the operational logger.
func WithLogger(l *zap.Logger) Option {
	return func(p *Provisioner) { p.log = l }
}

// WithGOOS overrides the target platform for installers and launchers.
func WithGOOS(goos string) Option {
	return func(p *Provisioner) { p.goos = goos }
}

// WithPuller overrides how model pullers are built.
func WithPuller(f func(cfg *model.Config, runner execx.Runner) (inference.Puller, error)) Option {
	return func(p *Provisioner) { p.newPuller = f }
}

// New creates a Provisioner that runs external tools through runner.
func New(runner execx.Runner, opts ...Option) *Provisioner {
	p := &Provisioner{
		runner:    runner,
		log:       logging.New("provision"),
		goos:      runtime.GOOS,
		newPuller: inference.NewPuller,
	}
	for _, o := range opts {
		o(p)
	}
	return p
}

// EnsureConfig returns the document under basePath, creating it with defaults if absent.
// An existing document is returned as loaded and never rewritten. Every configured
// directory is created in both cases.
func (p *Provisioner) EnsureConfig(basePath string) (*model.Config, error) {
	base, err := filepath.Abs(basePath)
	if err != nil {
		return nil, &config.WriteError{Path: basePath, Err: err}
	}
	path := config.PathFor(base)

	if config.Exists(path) {
		cfg, err := config.Load(path)
		if err != nil {
			return nil, err
		}
		p.log.Info("Using existing config", zap.String("path", path))
		if err := EnsureDirs(cfg); err != nil {
			return nil, err
		}
		return cfg, nil
	}

	cfg := config.Default(base)
	if err := EnsureDirs(cfg); err != nil {
		return nil, err
	}
	if err := config.Save(cfg, path); err != nil {
		return nil, err
	}
	p.log.Info("Created config", zap.String("path", path))
	return cfg, nil
}

// EnsureDirs creates every directory named in cfg.Paths. Existing directories are fine.
func EnsureDirs(cfg *model.Config) error {
	roles := make([]string, 0, len(cfg.Paths))
	for role := range cfg.Paths {
		roles = append(roles, role)
	}
	sort.Strings(roles)
	for _, role := range roles {
		dir := cfg.Paths[role]
		if dir == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return &config.WriteError{Path: dir, Err: err}
		}
	}
	return nil
}

// DependencyInstallError reports one failed installer target.
type DependencyInstallError struct {
	Kind   string
	Target string
	Cause  error
}

func (e *DependencyInstallError) Error() string {
	return fmt.Sprintf("install %s %s: %v", e.Kind, e.Target, e.Cause)
}

func (e *DependencyInstallError) Unwrap() error { return e.Cause }

// Report lists the outcome of every target a step attempted, in order.
type Report struct {
	Results []model.InstallResult
}

func (r *Report) add(kind, target, status string) {
	r.Results = append(r.Results, model.InstallResult{Kind: kind, Target: target, Status: status})
}

func (r *Report) fail(kind, target string, cause error) {
	err := &DependencyInstallError{Kind: kind, Target: target, Cause: cause}
	r.Results = append(r.Results, model.InstallResult{
		Kind: kind, Target: target, Status: model.StatusFailed, Error: cause.Error(), Err: err,
	})
}

func (r *Report) skip(kind, target, reason string) {
	r.Results = append(r.Results, model.InstallResult{
		Kind: kind, Target: target, Status: model.StatusSkipped, Error: reason,
	})
}

// Merge appends another report's results.
func (r *Report) Merge(o *Report) {
	if o != nil {
		r.Results = append(r.Results, o.Results...)
	}
}

// Failed counts failed targets.
func (r *Report) Failed() int {
	n := 0
	for _, res := range r.Results {
		if res.Status == model.StatusFailed {
			n++
		}
	}
	return n
}

// Err combines every per-target error, or returns nil if all targets succeeded.
func (r *Report) Err() error {
	var err error
	for _, res := range r.Results {
		if res.Err != nil {
			err = multierr.Append(err, res.Err)
		}
	}
	return err
}

// InstallDependencies makes sure the model runtime is installed, then pulls every
// configured model. A failed runtime install does not stop the pulls.
func (p *Provisioner) InstallDependencies(ctx context.Context, cfg *model.Config) *Report {
	rep := &Report{}
	m := p.manifest(cfg)

	command := cfg.Runtime.Command
	cli := inference.NewCLI(p.runner, command, cfg.Path(model.PathModels), cfg.Runtime.Host)
	if v, err := cli.Version(ctx); err == nil {
		p.log.Info("Runtime is installed", zap.String("command", command), zap.String("version", v))
		rep.add(model.InstallRuntime, command, model.StatusPresent)
	} else {
		installer := m.installer(p.goos)
		p.log.Info("Installing runtime", zap.Strings("installer", installer))
		if len(installer) == 0 {
			rep.fail(model.InstallRuntime, command, errors.New("no installer configured for "+p.goos))
		} else if _, err := p.runner.Run(ctx, execx.Command{Name: installer[0], Args: installer[1:]}); err != nil {
			p.log.Warn("Runtime install failed", zap.Error(err))
			rep.fail(model.InstallRuntime, command, err)
		} else {
			rep.add(model.InstallRuntime, command, model.StatusInstalled)
		}
	}

	models := modelIDs(cfg)
	puller, err := p.newPuller(cfg, p.runner)
	if err != nil {
		for _, id := range models {
			if errors.Is(err, inference.ErrPullUnsupported) {
				rep.skip(model.InstallModel, id, "backend "+cfg.Runtime.Backend+" manages its own models")
			} else {
				rep.fail(model.InstallModel, id, err)
			}
		}
		return rep
	}

	for _, id := range models {
		if ctx.Err() != nil {
			rep.fail(model.InstallModel, id, ctx.Err())
			continue
		}
		p.log.Info("Pulling model", zap.String("model", id))
		if err := puller.Pull(ctx, id); err != nil {
			p.log.Warn("Model pull failed", zap.String("model", id), zap.Error(err))
			rep.fail(model.InstallModel, id, err)
			continue
		}
		rep.add(model.InstallModel, id, model.StatusInstalled)
	}
	return rep
}

// modelIDs returns the distinct model identifiers ordered by role name.
func modelIDs(cfg *model.Config) []string {
	roles := make([]string, 0, len(cfg.Models))
	for role := range cfg.Models {
		roles = append(roles, role)
	}
	sort.Strings(roles)

	seen := map[string]bool{}
	var ids []string
	for _, role := range roles {
		id := cfg.Models[role]
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		ids = append(ids, id)
	}
	return ids
}
