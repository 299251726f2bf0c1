package provision

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/rcliao/autocoder/internal/execx"
	"github.com/rcliao/autocoder/internal/model"
)

// ManifestFile is the optional package manifest inside the base directory.
const ManifestFile = "packages.yaml"

// DefaultPackages are installed into the Python environment when no manifest overrides them.
var DefaultPackages = []string{
	"langchain", "chromadb", "sentence-transformers",
	"torch", "ollama", "requests", "schedule", "gitpython",
}

// Manifest overrides the installer defaults.
type Manifest struct {
	Packages         []string `yaml:"packages"`
	Python           string   `yaml:"python"`
	RuntimeInstaller []string `yaml:"runtime_installer"`
}

// LoadManifest reads <baseDir>/packages.yaml. A missing file yields an empty manifest.
func LoadManifest(baseDir string) (*Manifest, error) {
	data, err := os.ReadFile(filepath.Join(baseDir, ManifestFile))
	if errors.Is(err, os.ErrNotExist) {
		return &Manifest{}, nil
	}
	if err != nil {
		return nil, err
	}
	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parse %s: %w", ManifestFile, err)
	}
	return &m, nil
}

// PackageList returns the manifest packages, or DefaultPackages.
func (m *Manifest) PackageList() []string {
	if len(m.Packages) > 0 {
		return m.Packages
	}
	return DefaultPackages
}

func (m *Manifest) python(goos string) string {
	if m.Python != "" {
		return m.Python
	}
	if goos == "windows" {
		return "python"
	}
	return "python3"
}

func (m *Manifest) installer(goos string) []string {
	if len(m.RuntimeInstaller) > 0 {
		return m.RuntimeInstaller
	}
	switch goos {
	case "windows":
		return []string{"winget", "install", "Ollama.Ollama"}
	case "darwin":
		return []string{"brew", "install", "ollama"}
	default:
		// The only shell use: a fixed upstream script, never built from user input.
		return []string{"sh", "-c", "curl -fsSL https://ollama.com/install.sh | sh"}
	}
}

// manifest loads the manifest for cfg, falling back to defaults on error.
func (p *Provisioner) manifest(cfg *model.Config) *Manifest {
	m, err := LoadManifest(cfg.Path(model.PathBaseDir))
	if err != nil {
		p.log.Warn("Ignoring package manifest", zap.Error(err))
		return &Manifest{}
	}
	return m
}

// VenvDir is the isolated Python environment location.
func VenvDir(cfg *model.Config) string {
	return filepath.Join(cfg.Path(model.PathBaseDir), "venv")
}

func venvBin(venv, goos, name string) string {
	if goos == "windows" {
		return filepath.Join(venv, "Scripts", name+".exe")
	}
	return filepath.Join(venv, "bin", name)
}

// InstallRuntimePackages creates the Python environment if absent and installs each
// package into it in order. A nil list installs the manifest's packages. If the
// environment cannot be created every package is reported as skipped.
func (p *Provisioner) InstallRuntimePackages(ctx context.Context, cfg *model.Config, packages []string) *Report {
	rep := &Report{}
	m := p.manifest(cfg)
	if packages == nil {
		packages = m.PackageList()
	}

	venv := VenvDir(cfg)
	if info, err := os.Stat(venv); err == nil && info.IsDir() {
		rep.add(model.InstallEnvironment, venv, model.StatusPresent)
	} else {
		python := m.python(p.goos)
		p.log.Info("Creating Python environment", zap.String("path", venv), zap.String("python", python))
		_, err := p.runner.Run(ctx, execx.Command{Name: python, Args: []string{"-m", "venv", venv}})
		if err != nil {
			rep.fail(model.InstallEnvironment, venv, err)
			for _, pkg := range packages {
				rep.skip(model.InstallPackage, pkg, "python environment unavailable")
			}
			return rep
		}
		rep.add(model.InstallEnvironment, venv, model.StatusInstalled)
	}

	pip := venvBin(venv, p.goos, "pip")
	for _, pkg := range packages {
		if ctx.Err() != nil {
			rep.fail(model.InstallPackage, pkg, ctx.Err())
			continue
		}
		p.log.Info("Installing package", zap.String("package", pkg))
		if _, err := p.runner.Run(ctx, execx.Command{Name: pip, Args: []string{"install", pkg}}); err != nil {
			p.log.Warn("Package install failed", zap.String("package", pkg), zap.Error(err))
			rep.fail(model.InstallPackage, pkg, err)
			continue
		}
		rep.add(model.InstallPackage, pkg, model.StatusInstalled)
	}
	return rep
}
