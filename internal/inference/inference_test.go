package inference

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/rcliao/autocoder/internal/execx"
	"github.com/rcliao/autocoder/internal/execx/execxtest"
	"github.com/rcliao/autocoder/internal/model"
)

func TestCLIGeneratePassesPromptAsSingleArg(t *testing.T) {
	fake := execxtest.New().Reply("ollama run", "use a context manager\n")
	cli := NewCLI(fake, "ollama", "/data/models", "")

	prompt := "Briefly analyze:\nprint(\"hi\"); rm -rf / `whoami`"
	got, err := cli.Generate(context.Background(), "deepseek-coder", prompt)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if got != "use a context manager\n" {
		t.Errorf("got %q", got)
	}

	calls := fake.Calls()
	if len(calls) != 1 {
		t.Fatalf("expected 1 call, got %d", len(calls))
	}
	want := execx.Command{
		Name: "ollama",
		Args: []string{"run", "deepseek-coder", prompt},
		Env:  []string{"OLLAMA_MODELS=/data/models"},
	}
	if diff := cmp.Diff(want, calls[0]); diff != "" {
		t.Errorf("command mismatch (-want +got):\n%s", diff)
	}
}

func TestCLIGenerateExitError(t *testing.T) {
	fake := execxtest.New().Fail("ollama run", 1, "model not found")
	cli := NewCLI(fake, "", "", "")

	_, err := cli.Generate(context.Background(), "missing", "p")
	var ee *execx.ExitError
	if !errors.As(err, &ee) {
		t.Fatalf("expected ExitError, got %v", err)
	}
}

func TestCLIPullAndVersion(t *testing.T) {
	fake := execxtest.New().Reply("ollama --version", "ollama version is 0.11.10\n")
	cli := NewCLI(fake, "ollama", "", "http://127.0.0.1:11434")

	v, err := cli.Version(context.Background())
	if err != nil {
		t.Fatalf("version: %v", err)
	}
	if v != "ollama version is 0.11.10" {
		t.Errorf("version = %q", v)
	}
	if err := cli.Pull(context.Background(), "m:latest"); err != nil {
		t.Fatalf("pull: %v", err)
	}

	want := []string{"ollama --version", "ollama pull m:latest"}
	if diff := cmp.Diff(want, fake.Lines()); diff != "" {
		t.Errorf("calls (-want +got):\n%s", diff)
	}
	for _, c := range fake.Calls() {
		if len(c.Env) != 1 || c.Env[0] != "OLLAMA_HOST=http://127.0.0.1:11434" {
			t.Errorf("env = %v", c.Env)
		}
	}
}

func TestOllamaAPIGenerate(t *testing.T) {
	var gotReq map[string]interface{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/generate":
			json.NewDecoder(r.Body).Decode(&gotReq)
			w.Header().Set("Content-Type", "application/json")
			w.Write([]byte(`{"model":"m","response":"rename the variable","done":true}`))
		case "/api/pull":
			w.Header().Set("Content-Type", "application/json")
			w.Write([]byte(`{"status":"success"}`))
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	o, err := NewOllamaAPI(srv.URL)
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	got, err := o.Generate(context.Background(), "m", "analyze this")
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if got != "rename the variable" {
		t.Errorf("got %q", got)
	}
	if gotReq["prompt"] != "analyze this" || gotReq["model"] != "m" {
		t.Errorf("request = %v", gotReq)
	}
	if err := o.Pull(context.Background(), "m"); err != nil {
		t.Errorf("pull: %v", err)
	}
}

func TestOllamaAPIGenerateServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte(`{"error":"model 'm' not found"}`))
	}))
	defer srv.Close()

	o, err := NewOllamaAPI(srv.URL)
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	if _, err := o.Generate(context.Background(), "m", "p"); err == nil {
		t.Fatal("expected error")
	}
}

func TestOpenAIGenerate(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/chat/completions") {
			http.NotFound(w, r)
			return
		}
		var req struct {
			Model    string `json:"model"`
			Messages []struct {
				Content string `json:"content"`
			} `json:"messages"`
		}
		json.NewDecoder(r.Body).Decode(&req)
		if req.Model != "qwen" || len(req.Messages) != 1 || req.Messages[0].Content != "p" {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"id":"1","object":"chat.completion","choices":[{"index":0,"message":{"role":"assistant","content":"add type hints"},"finish_reason":"stop"}]}`))
	}))
	defer srv.Close()

	o := NewOpenAI(srv.URL+"/v1", "")
	got, err := o.Generate(context.Background(), "qwen", "p")
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if got != "add type hints" {
		t.Errorf("got %q", got)
	}
}

func TestFactory(t *testing.T) {
	fake := execxtest.New()
	tests := []struct {
		backend    string
		wantGen    string
		wantPuller bool
		wantErr    bool
	}{
		{"", "*inference.CLI", true, false},
		{model.BackendCLI, "*inference.CLI", true, false},
		{model.BackendOllama, "*inference.OllamaAPI", true, false},
		{model.BackendOpenAI, "*inference.OpenAI", false, false},
		{"carrier-pigeon", "", false, true},
	}

	for _, tt := range tests {
		t.Run(tt.backend, func(t *testing.T) {
			cfg := &model.Config{Runtime: model.Runtime{Backend: tt.backend, Host: "http://localhost:11434"}}
			g, err := New(cfg, fake)
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("new: %v", err)
			}
			if got := typeName(g); got != tt.wantGen {
				t.Errorf("generator = %s, want %s", got, tt.wantGen)
			}

			p, err := NewPuller(cfg, fake)
			if tt.wantPuller {
				if err != nil || p == nil {
					t.Errorf("expected puller, got %v", err)
				}
			} else if !errors.Is(err, ErrPullUnsupported) {
				t.Errorf("expected ErrPullUnsupported, got %v", err)
			}
		})
	}
}

func typeName(v interface{}) string {
	switch v.(type) {
	case *CLI:
		return "*inference.CLI"
	case *OllamaAPI:
		return "*inference.OllamaAPI"
	case *OpenAI:
		return "*inference.OpenAI"
	}
	return "unknown"
}
