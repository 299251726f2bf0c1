package provision

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"text/template"

	"github.com/rcliao/autocoder/internal/model"
)

// Launcher file names per platform.
const (
	WindowsLauncher = "START_AI_CODING.bat"
	UnixLauncher    = "start_ai_coding.sh"
)

var batTemplate = template.Must(template.New("bat").Parse(`@echo off
echo Starting Autonomous Coding System...
echo =====================================

:: Set environment variables
set OLLAMA_MODELS={{.ModelsDir}}
set PYTHONPATH={{.BaseDir}}

:: Activate virtual environment
if exist "{{.Activate}}" call "{{.Activate}}"

:: Start the system
"{{.Exe}}" analyze --config "{{.ConfigPath}}" %*

pause
`))

var shTemplate = template.Must(template.New("sh").Funcs(template.FuncMap{"q": shellQuote}).Parse(`#!/bin/sh
echo "Starting Autonomous Coding System..."
echo "====================================="

export OLLAMA_MODELS={{q .ModelsDir}}
export PYTHONPATH={{q .BaseDir}}

if [ -f {{q .Activate}} ]; then
	. {{q .Activate}}
fi

exec {{q .Exe}} analyze --config {{q .ConfigPath}} "$@"
`))

type launcherData struct {
	BaseDir    string
	ModelsDir  string
	Activate   string
	Exe        string
	ConfigPath string
}

// WriteLauncher writes the platform launch script into the base directory and
// returns its path. exe is the analyzer binary the script starts.
func (p *Provisioner) WriteLauncher(cfg *model.Config, exe string) (string, error) {
	base := cfg.Path(model.PathBaseDir)
	venv := VenvDir(cfg)
	configPath := cfg.Source
	if configPath == "" {
		configPath = filepath.Join(base, "setup_config.json")
	}

	data := launcherData{
		BaseDir:    base,
		ModelsDir:  cfg.Path(model.PathModels),
		Exe:        exe,
		ConfigPath: configPath,
	}

	var buf bytes.Buffer
	var out []byte
	var name string
	var mode os.FileMode
	if p.goos == "windows" {
		data.Activate = filepath.Join(venv, "Scripts", "activate.bat")
		if err := batTemplate.Execute(&buf, data); err != nil {
			return "", fmt.Errorf("render launcher: %w", err)
		}
		name, mode = WindowsLauncher, 0o644
		out = []byte(strings.ReplaceAll(buf.String(), "\n", "\r\n"))
	} else {
		data.Activate = filepath.Join(venv, "bin", "activate")
		if err := shTemplate.Execute(&buf, data); err != nil {
			return "", fmt.Errorf("render launcher: %w", err)
		}
		name, mode = UnixLauncher, 0o755
		out = buf.Bytes()
	}

	path := filepath.Join(base, name)
	if err := os.WriteFile(path, out, mode); err != nil {
		return "", fmt.Errorf("write launcher: %w", err)
	}
	// WriteFile keeps the mode of an existing file.
	if err := os.Chmod(path, mode); err != nil {
		return "", fmt.Errorf("write launcher: %w", err)
	}
	return path, nil
}

// shellQuote single-quotes s for POSIX sh.
func shellQuote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}
