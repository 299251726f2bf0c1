package provision

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/rcliao/autocoder/internal/config"
	"github.com/rcliao/autocoder/internal/execx/execxtest"
	"github.com/rcliao/autocoder/internal/model"
)

func listDirs(t *testing.T, root string) []string {
	t.Helper()
	var dirs []string
	filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err == nil && d.IsDir() {
			dirs = append(dirs, path)
		}
		return nil
	})
	sort.Strings(dirs)
	return dirs
}

func TestEnsureConfigFreshBase(t *testing.T) {
	base := filepath.Join(t.TempDir(), "x")
	p := New(execxtest.New())

	cfg, err := p.EnsureConfig(base)
	if err != nil {
		t.Fatalf("ensure: %v", err)
	}

	docPath := filepath.Join(base, "setup_config.json")
	if !config.Exists(docPath) {
		t.Fatalf("expected %s to exist", docPath)
	}
	if got := cfg.Path(model.PathProjects); got != filepath.Join(base, "projects") {
		t.Errorf("paths.projects = %q", got)
	}
	for role, dir := range cfg.Paths {
		info, err := os.Stat(dir)
		if err != nil || !info.IsDir() {
			t.Errorf("directory for %s (%s) not created: %v", role, dir, err)
		}
	}

	loaded, err := config.Load(docPath)
	if err != nil {
		t.Fatalf("load persisted: %v", err)
	}
	if loaded.Path(model.PathProjects) != filepath.Join(base, "projects") {
		t.Errorf("persisted paths.projects = %q", loaded.Path(model.PathProjects))
	}
}

func TestEnsureConfigIdempotent(t *testing.T) {
	base := t.TempDir()
	p := New(execxtest.New())

	if _, err := p.EnsureConfig(base); err != nil {
		t.Fatalf("first: %v", err)
	}
	first, _ := os.ReadFile(config.PathFor(base))
	dirsBefore := listDirs(t, base)

	if _, err := p.EnsureConfig(base); err != nil {
		t.Fatalf("second: %v", err)
	}
	second, _ := os.ReadFile(config.PathFor(base))

	if !bytes.Equal(first, second) {
		t.Errorf("config changed between runs:\n%s\n---\n%s", first, second)
	}
	if diff := cmp.Diff(dirsBefore, listDirs(t, base)); diff != "" {
		t.Errorf("directories changed (-before +after):\n%s", diff)
	}
}

func TestEnsureConfigKeepsExistingDocument(t *testing.T) {
	base := t.TempDir()
	doc := `{"paths": {"base_dir": "` + filepath.ToSlash(base) + `"}, "models": {"primary": "codellama:7b"}}`
	if err := os.WriteFile(config.PathFor(base), []byte(doc), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := New(execxtest.New()).EnsureConfig(base)
	if err != nil {
		t.Fatalf("ensure: %v", err)
	}
	if cfg.Model(model.ModelPrimary) != "codellama:7b" {
		t.Errorf("primary = %q", cfg.Model(model.ModelPrimary))
	}
	if _, ok := cfg.Models[model.ModelSecondary]; ok {
		t.Error("existing document should not be merged with defaults for optional models")
	}

	got, _ := os.ReadFile(config.PathFor(base))
	if string(got) != doc {
		t.Errorf("existing document was rewritten: %s", got)
	}
}

func TestEnsureConfigWriteError(t *testing.T) {
	blocker := filepath.Join(t.TempDir(), "file")
	if err := os.WriteFile(blocker, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}

	_, err := New(execxtest.New()).EnsureConfig(filepath.Join(blocker, "base"))
	var we *config.WriteError
	if !errors.As(err, &we) {
		t.Fatalf("expected *config.WriteError, got %v", err)
	}
}

func TestEnsureConfigMalformedExisting(t *testing.T) {
	base := t.TempDir()
	os.WriteFile(config.PathFor(base), []byte("{not json"), 0o644)

	_, err := New(execxtest.New()).EnsureConfig(base)
	var le *config.LoadError
	if !errors.As(err, &le) {
		t.Fatalf("expected *config.LoadError, got %v", err)
	}
}

func statuses(rep *Report) []string {
	var out []string
	for _, r := range rep.Results {
		out = append(out, r.Kind+":"+r.Target+":"+r.Status)
	}
	return out
}

func TestInstallDependenciesRuntimePresent(t *testing.T) {
	cfg := config.Default(t.TempDir())
	fake := execxtest.New().Reply("ollama --version", "ollama version is 0.11.10")

	rep := New(fake, WithGOOS("linux")).InstallDependencies(context.Background(), cfg)

	want := []string{
		"runtime:ollama:present",
		"model:" + config.DefaultPrimaryModel + ":installed",
		"model:" + config.DefaultSecondaryModel + ":installed",
	}
	if diff := cmp.Diff(want, statuses(rep)); diff != "" {
		t.Errorf("results (-want +got):\n%s", diff)
	}
	wantCalls := []string{
		"ollama --version",
		"ollama pull " + config.DefaultPrimaryModel,
		"ollama pull " + config.DefaultSecondaryModel,
	}
	if diff := cmp.Diff(wantCalls, fake.Lines()); diff != "" {
		t.Errorf("calls (-want +got):\n%s", diff)
	}
	if rep.Err() != nil {
		t.Errorf("expected no error, got %v", rep.Err())
	}
	for _, c := range fake.Calls() {
		if len(c.Env) == 0 || c.Env[0] != "OLLAMA_MODELS="+cfg.Path(model.PathModels) {
			t.Errorf("%s: env = %v", c, c.Env)
		}
	}
}

func TestInstallDependenciesBestEffort(t *testing.T) {
	cfg := config.Default(t.TempDir())
	fake := execxtest.New().
		Fail("ollama --version", 127, "not found").
		Fail("ollama pull "+config.DefaultPrimaryModel, 1, "pull failed")

	core, logs := observer.New(zap.InfoLevel)
	rep := New(fake, WithGOOS("windows"), WithLogger(zap.New(core))).InstallDependencies(context.Background(), cfg)

	want := []string{
		"runtime:ollama:installed",
		"model:" + config.DefaultPrimaryModel + ":failed",
		"model:" + config.DefaultSecondaryModel + ":installed",
	}
	if diff := cmp.Diff(want, statuses(rep)); diff != "" {
		t.Errorf("results (-want +got):\n%s", diff)
	}
	if fake.Lines()[1] != "winget install Ollama.Ollama" {
		t.Errorf("expected winget installer, got %q", fake.Lines()[1])
	}
	if rep.Failed() != 1 {
		t.Errorf("failed = %d", rep.Failed())
	}

	errs := multierr.Errors(rep.Err())
	if len(errs) != 1 {
		t.Fatalf("expected 1 error, got %v", errs)
	}
	var die *DependencyInstallError
	if !errors.As(errs[0], &die) || die.Target != config.DefaultPrimaryModel {
		t.Errorf("expected DependencyInstallError for primary, got %v", errs[0])
	}
	if logs.FilterMessage("Model pull failed").Len() != 1 {
		t.Errorf("expected a pull failure log entry")
	}
}

func TestInstallDependenciesRuntimeInstallFailsStillPulls(t *testing.T) {
	cfg := config.Default(t.TempDir())
	fake := execxtest.New().
		Fail("ollama --version", 127, "").
		Fail("sh -c", 1, "curl: could not resolve host")

	rep := New(fake, WithGOOS("linux")).InstallDependencies(context.Background(), cfg)

	want := []string{
		"runtime:ollama:failed",
		"model:" + config.DefaultPrimaryModel + ":installed",
		"model:" + config.DefaultSecondaryModel + ":installed",
	}
	if diff := cmp.Diff(want, statuses(rep)); diff != "" {
		t.Errorf("results (-want +got):\n%s", diff)
	}
}

func TestInstallDependenciesManifestInstaller(t *testing.T) {
	base := t.TempDir()
	cfg := config.Default(base)
	os.WriteFile(filepath.Join(base, ManifestFile), []byte("runtime_installer: [apt-get, install, -y, ollama]\n"), 0o644)
	fake := execxtest.New().Fail("ollama --version", 127, "")

	New(fake, WithGOOS("linux")).InstallDependencies(context.Background(), cfg)

	if got := fake.Lines()[1]; got != "apt-get install -y ollama" {
		t.Errorf("installer = %q", got)
	}
}

func TestInstallDependenciesDedupesModels(t *testing.T) {
	cfg := config.Default(t.TempDir())
	cfg.Models[model.ModelSecondary] = cfg.Models[model.ModelPrimary]
	fake := execxtest.New()

	rep := New(fake).InstallDependencies(context.Background(), cfg)
	if len(rep.Results) != 2 {
		t.Errorf("expected runtime + 1 model, got %v", statuses(rep))
	}
}

func TestInstallDependenciesOpenAIBackendSkipsPulls(t *testing.T) {
	cfg := config.Default(t.TempDir())
	cfg.Runtime.Backend = model.BackendOpenAI
	fake := execxtest.New()

	rep := New(fake).InstallDependencies(context.Background(), cfg)
	for _, r := range rep.Results[1:] {
		if r.Status != model.StatusSkipped {
			t.Errorf("%s: status = %s, want skipped", r.Target, r.Status)
		}
	}
	for _, line := range fake.Lines() {
		if strings.Contains(line, "pull") {
			t.Errorf("unexpected pull: %s", line)
		}
	}
}

func TestInstallRuntimePackages(t *testing.T) {
	base := t.TempDir()
	cfg := config.Default(base)
	fake := execxtest.New().Fail(filepath.Join(base, "venv", "bin", "pip")+" install torch", 1, "no matching distribution")

	rep := New(fake, WithGOOS("linux")).InstallRuntimePackages(context.Background(), cfg, []string{"requests", "torch", "gitpython"})

	venv := filepath.Join(base, "venv")
	want := []string{
		"environment:" + venv + ":installed",
		"package:requests:installed",
		"package:torch:failed",
		"package:gitpython:installed",
	}
	if diff := cmp.Diff(want, statuses(rep)); diff != "" {
		t.Errorf("results (-want +got):\n%s", diff)
	}
	if got := fake.Lines()[0]; got != "python3 -m venv "+venv {
		t.Errorf("venv command = %q", got)
	}
}

func TestInstallRuntimePackagesExistingVenv(t *testing.T) {
	base := t.TempDir()
	cfg := config.Default(base)
	os.MkdirAll(filepath.Join(base, "venv"), 0o755)
	fake := execxtest.New()

	rep := New(fake, WithGOOS("windows")).InstallRuntimePackages(context.Background(), cfg, nil)

	if rep.Results[0].Status != model.StatusPresent {
		t.Errorf("environment status = %s", rep.Results[0].Status)
	}
	if len(rep.Results) != 1+len(DefaultPackages) {
		t.Errorf("expected default packages, got %v", statuses(rep))
	}
	pip := filepath.Join(base, "venv", "Scripts", "pip.exe")
	for _, c := range fake.Calls() {
		if c.Name != pip {
			t.Errorf("unexpected command %s", c)
		}
	}
}

func TestInstallRuntimePackagesVenvFailure(t *testing.T) {
	cfg := config.Default(t.TempDir())
	fake := execxtest.New().Fail("python3 -m venv", 1, "No module named venv")

	rep := New(fake, WithGOOS("linux")).InstallRuntimePackages(context.Background(), cfg, []string{"a", "b"})

	if rep.Failed() != 1 {
		t.Errorf("failed = %d", rep.Failed())
	}
	for _, r := range rep.Results[1:] {
		if r.Status != model.StatusSkipped {
			t.Errorf("%s: status = %s", r.Target, r.Status)
		}
	}
	if len(fake.Calls()) != 1 {
		t.Errorf("expected only the venv command, got %v", fake.Lines())
	}
}

func TestManifestPackages(t *testing.T) {
	base := t.TempDir()
	os.WriteFile(filepath.Join(base, ManifestFile), []byte("packages:\n  - numpy\n  - pandas\npython: /opt/py/bin/python3\n"), 0o644)

	m, err := LoadManifest(base)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if diff := cmp.Diff([]string{"numpy", "pandas"}, m.PackageList()); diff != "" {
		t.Errorf("packages (-want +got):\n%s", diff)
	}
	if m.python("linux") != "/opt/py/bin/python3" {
		t.Errorf("python = %q", m.python("linux"))
	}

	empty, err := LoadManifest(t.TempDir())
	if err != nil {
		t.Fatalf("load missing: %v", err)
	}
	if diff := cmp.Diff(DefaultPackages, empty.PackageList()); diff != "" {
		t.Errorf("default packages (-want +got):\n%s", diff)
	}

	bad := t.TempDir()
	os.WriteFile(filepath.Join(bad, ManifestFile), []byte("packages: [unterminated"), 0o644)
	if _, err := LoadManifest(bad); err == nil {
		t.Error("expected parse error")
	}
}

func TestWriteLauncherUnix(t *testing.T) {
	base := t.TempDir()
	cfg := config.Default(base)

	path, err := New(execxtest.New(), WithGOOS("linux")).WriteLauncher(cfg, "/usr/local/bin/autocoder")
	if err != nil {
		t.Fatalf("write: %v", err)
	}
	if filepath.Base(path) != UnixLauncher {
		t.Errorf("name = %s", filepath.Base(path))
	}
	info, _ := os.Stat(path)
	if info.Mode().Perm()&0o100 == 0 {
		t.Errorf("launcher not executable: %v", info.Mode())
	}

	b, _ := os.ReadFile(path)
	content := string(b)
	for _, want := range []string{
		"#!/bin/sh",
		"export OLLAMA_MODELS='" + cfg.Path(model.PathModels) + "'",
		"export PYTHONPATH='" + base + "'",
		"exec '/usr/local/bin/autocoder' analyze --config '" + config.PathFor(base) + "'",
	} {
		if !strings.Contains(content, want) {
			t.Errorf("launcher missing %q:\n%s", want, content)
		}
	}
}

func TestWriteLauncherWindows(t *testing.T) {
	base := t.TempDir()
	cfg := config.Default(base)

	path, err := New(execxtest.New(), WithGOOS("windows")).WriteLauncher(cfg, `C:\tools\autocoder.exe`)
	if err != nil {
		t.Fatalf("write: %v", err)
	}
	if filepath.Base(path) != WindowsLauncher {
		t.Errorf("name = %s", filepath.Base(path))
	}
	b, _ := os.ReadFile(path)
	content := string(b)
	if !strings.Contains(content, "set OLLAMA_MODELS="+cfg.Path(model.PathModels)+"\r\n") {
		t.Errorf("expected CRLF models line:\n%q", content)
	}
	if !strings.Contains(content, `"C:\tools\autocoder.exe" analyze --config`) {
		t.Errorf("expected analyzer invocation:\n%s", content)
	}
}

func TestShellQuote(t *testing.T) {
	if got := shellQuote("it's"); got != `'it'\''s'` {
		t.Errorf("got %s", got)
	}
}

func TestDefaultInstallers(t *testing.T) {
	m := &Manifest{}
	tests := map[string][]string{
		"windows": {"winget", "install", "Ollama.Ollama"},
		"darwin":  {"brew", "install", "ollama"},
		"linux":   {"sh", "-c", "curl -fsSL https://ollama.com/install.sh | sh"},
	}
	for goos, want := range tests {
		if diff := cmp.Diff(want, m.installer(goos)); diff != "" {
			t.Errorf("%s installer (-want +got):\n%s", goos, diff)
		}
	}

	custom := &Manifest{RuntimeInstaller: []string{"/opt/get-ollama", "--quiet"}}
	if diff := cmp.Diff([]string{"/opt/get-ollama", "--quiet"}, custom.installer("linux")); diff != "" {
		t.Errorf("manifest installer (-want +got):\n%s", diff)
	}
}
