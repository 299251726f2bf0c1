// Package inference provides pluggable backends for the local text-generation model.
package inference

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/rcliao/autocoder/internal/execx"
	"github.com/rcliao/autocoder/internal/model"
)

// Generator produces text for a prompt using a named model.
type Generator interface {
	Generate(ctx context.Context, modelName, prompt string) (string, error)
}

// Puller makes a model available locally.
type Puller interface {
	Pull(ctx context.Context, modelName string) error
}

// ErrPullUnsupported is returned by NewPuller for backends that manage their own models.
var ErrPullUnsupported = errors.New("backend does not support pulling models")

// --- Factory ---

// New creates the Generator selected by cfg.Runtime.Backend.
// "cli" (default): ollama run via runner.
// "ollama": Ollama HTTP API at runtime.host, or $OLLAMA_HOST.
// "openai": OpenAI-compatible HTTP API at runtime.host; key read from $<runtime.api_key_env>.
func New(cfg *model.Config, runner execx.Runner) (Generator, error) {
	switch cfg.Runtime.Backend {
	case "", model.BackendCLI:
		return NewCLI(runner, cfg.Runtime.Command, cfg.Path(model.PathModels), cfg.Runtime.Host), nil
	case model.BackendOllama:
		return NewOllamaAPI(cfg.Runtime.Host)
	case model.BackendOpenAI:
		return NewOpenAI(cfg.Runtime.Host, os.Getenv(cfg.Runtime.APIKeyEnv)), nil
	default:
		return nil, fmt.Errorf("unknown inference backend %q", cfg.Runtime.Backend)
	}
}

// NewPuller creates the Puller matching cfg.Runtime.Backend.
func NewPuller(cfg *model.Config, runner execx.Runner) (Puller, error) {
	switch cfg.Runtime.Backend {
	case "", model.BackendCLI:
		return NewCLI(runner, cfg.Runtime.Command, cfg.Path(model.PathModels), cfg.Runtime.Host), nil
	case model.BackendOllama:
		return NewOllamaAPI(cfg.Runtime.Host)
	case model.BackendOpenAI:
		return nil, ErrPullUnsupported
	default:
		return nil, fmt.Errorf("unknown inference backend %q", cfg.Runtime.Backend)
	}
}
