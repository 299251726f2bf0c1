package inference

import (
	"context"
	"strings"

	"github.com/rcliao/autocoder/internal/execx"
)

// CLI drives the ollama command-line tool. The prompt is passed as a single
// argument, never through a shell.
type CLI struct {
	runner    execx.Runner
	command   string
	modelsDir string
	host      string
}

// NewCLI creates a CLI backend. modelsDir and host are exported to the child
// process as OLLAMA_MODELS and OLLAMA_HOST when non-empty.
func NewCLI(runner execx.Runner, command, modelsDir, host string) *CLI {
	if command == "" {
		command = "ollama"
	}
	return &CLI{runner: runner, command: command, modelsDir: modelsDir, host: host}
}

func (c *CLI) env() []string {
	var env []string
	if c.modelsDir != "" {
		env = append(env, "OLLAMA_MODELS="+c.modelsDir)
	}
	if c.host != "" {
		env = append(env, "OLLAMA_HOST="+c.host)
	}
	return env
}

func (c *CLI) Generate(ctx context.Context, modelName, prompt string) (string, error) {
	out, err := c.runner.Run(ctx, execx.Command{
		Name: c.command,
		Args: []string{"run", modelName, prompt},
		Env:  c.env(),
	})
	if err != nil {
		return "", err
	}
	return string(out.Stdout), nil
}

func (c *CLI) Pull(ctx context.Context, modelName string) error {
	_, err := c.runner.Run(ctx, execx.Command{
		Name: c.command,
		Args: []string{"pull", modelName},
		Env:  c.env(),
	})
	return err
}

// Version probes the installed runtime. An error means it is absent or broken.
func (c *CLI) Version(ctx context.Context) (string, error) {
	out, err := c.runner.Run(ctx, execx.Command{
		Name: c.command,
		Args: []string{"--version"},
		Env:  c.env(),
	})
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(out.Stdout)), nil
}
