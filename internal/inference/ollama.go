package inference

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	ollama "github.com/ollama/ollama/api"
)

// OllamaAPI talks to a running Ollama server over HTTP.
// The models directory is a server-side setting for this backend.
type OllamaAPI struct {
	client *ollama.Client
}

// NewOllamaAPI creates a client for host, or from $OLLAMA_HOST when host is empty.
func NewOllamaAPI(host string) (*OllamaAPI, error) {
	if host == "" {
		client, err := ollama.ClientFromEnvironment()
		if err != nil {
			return nil, fmt.Errorf("could not create ollama client: %w", err)
		}
		return &OllamaAPI{client: client}, nil
	}
	u, err := url.Parse(host)
	if err != nil {
		return nil, fmt.Errorf("invalid ollama host %q: %w", host, err)
	}
	return &OllamaAPI{client: ollama.NewClient(u, http.DefaultClient)}, nil
}

func (o *OllamaAPI) Generate(ctx context.Context, modelName, prompt string) (string, error) {
	stream := false
	req := &ollama.GenerateRequest{
		Model:  modelName,
		Prompt: prompt,
		Stream: &stream,
	}

	var b strings.Builder
	err := o.client.Generate(ctx, req, func(res ollama.GenerateResponse) error {
		b.WriteString(res.Response)
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("ollama generate failed: %w", err)
	}
	return b.String(), nil
}

func (o *OllamaAPI) Pull(ctx context.Context, modelName string) error {
	stream := false
	err := o.client.Pull(ctx, &ollama.PullRequest{Model: modelName, Stream: &stream}, func(ollama.ProgressResponse) error {
		return nil
	})
	if err != nil {
		return fmt.Errorf("ollama pull failed: %w", err)
	}
	return nil
}

// Version returns the server version.
func (o *OllamaAPI) Version(ctx context.Context) (string, error) {
	return o.client.Version(ctx)
}
