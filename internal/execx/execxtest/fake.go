// Package execxtest provides a scripted execx.Runner for tests.
package execxtest

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/rcliao/autocoder/internal/execx"
)

// Handler produces the result for a matching command.
type Handler func(cmd execx.Command) (execx.Output, error)

// Fake records every command and answers from registered handlers.
// Commands are matched by the longest registered prefix of "name arg0 arg1 ...".
type Fake struct {
	mu       sync.Mutex
	handlers map[string]Handler
	calls    []execx.Command
	missing  map[string]bool
}

// New returns an empty Fake. Unmatched commands succeed with no output.
func New() *Fake {
	return &Fake{handlers: map[string]Handler{}, missing: map[string]bool{}}
}

// On registers a handler for commands starting with prefix.
func (f *Fake) On(prefix string, h Handler) *Fake {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.handlers[prefix] = h
	return f
}

// Fail makes commands starting with prefix exit with the given code.
func (f *Fake) Fail(prefix string, code int, stderr string) *Fake {
	return f.On(prefix, func(cmd execx.Command) (execx.Output, error) {
		return execx.Output{Stderr: []byte(stderr)}, &execx.ExitError{Command: cmd.Name, Code: code, Stderr: stderr}
	})
}

// Reply makes commands starting with prefix print stdout.
func (f *Fake) Reply(prefix, stdout string) *Fake {
	return f.On(prefix, func(execx.Command) (execx.Output, error) {
		return execx.Output{Stdout: []byte(stdout)}, nil
	})
}

// Missing makes LookPath fail for name.
func (f *Fake) Missing(name string) *Fake {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.missing[name] = true
	return f
}

func (f *Fake) Run(ctx context.Context, cmd execx.Command) (execx.Output, error) {
	f.mu.Lock()
	f.calls = append(f.calls, cmd)
	line := cmd.String()
	var best string
	var h Handler
	for prefix, candidate := range f.handlers {
		if strings.HasPrefix(line, prefix) && len(prefix) >= len(best) {
			best, h = prefix, candidate
		}
	}
	f.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return execx.Output{}, err
	}
	if h == nil {
		return execx.Output{}, nil
	}
	return h(cmd)
}

func (f *Fake) LookPath(name string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.missing[name] {
		return "", errors.New("executable file not found in $PATH")
	}
	return "/usr/bin/" + name, nil
}

// Calls returns a copy of every command run so far.
func (f *Fake) Calls() []execx.Command {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]execx.Command(nil), f.calls...)
}

// Lines returns every command run so far as "name args..." strings.
func (f *Fake) Lines() []string {
	var out []string
	for _, c := range f.Calls() {
		out = append(out, c.String())
	}
	return out
}
