// Package execx runs external tools as argument vectors. Arguments are never
// interpreted by a shell unless the caller names one as the command.
package execx

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/rcliao/autocoder/internal/excerpt"
)

// WaitDelay bounds how long Run waits for output pipes after the process is
// killed, in case a descendant outside the process group still holds them.
const WaitDelay = 2 * time.Second

// maxStderr is the number of stderr runes kept in ExitError messages.
const maxStderr = 300

// Command describes one external invocation.
type Command struct {
	Name string
	Args []string
	// Env entries are appended to the parent environment.
	Env []string
	Dir string
}

func (c Command) String() string {
	return strings.Join(append([]string{c.Name}, c.Args...), " ")
}

// Output is what a finished command wrote.
type Output struct {
	Stdout []byte
	Stderr []byte
}

// Runner executes commands. Implementations must not interpret arguments.
type Runner interface {
	Run(ctx context.Context, cmd Command) (Output, error)
	LookPath(name string) (string, error)
}

// ExitError is returned when a command ran but exited non-zero.
type ExitError struct {
	Command string
	Code    int
	Stderr  string
}

func (e *ExitError) Error() string {
	msg := excerpt.Truncate(strings.TrimSpace(e.Stderr), maxStderr)
	if msg == "" {
		return fmt.Sprintf("%s: exit status %d", e.Command, e.Code)
	}
	return fmt.Sprintf("%s: exit status %d: %s", e.Command, e.Code, msg)
}

// OSRunner runs commands with os/exec.
type OSRunner struct{}

// NewOSRunner returns a Runner backed by os/exec.
func NewOSRunner() *OSRunner {
	return &OSRunner{}
}

func (r *OSRunner) Run(ctx context.Context, c Command) (Output, error) {
	cmd := exec.CommandContext(ctx, c.Name, c.Args...)
	cmd.Dir = c.Dir
	cmd.WaitDelay = WaitDelay
	killProcessGroup(cmd)
	if len(c.Env) > 0 {
		cmd.Env = append(os.Environ(), c.Env...)
	}

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	out := Output{Stdout: stdout.Bytes(), Stderr: stderr.Bytes()}
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return out, fmt.Errorf("%s: %w", c.Name, ctxErr)
		}
		var ee *exec.ExitError
		if errors.As(err, &ee) {
			return out, &ExitError{Command: c.Name, Code: ee.ExitCode(), Stderr: stderr.String()}
		}
		return out, fmt.Errorf("run %s: %w", c.Name, err)
	}
	return out, nil
}

func (r *OSRunner) LookPath(name string) (string, error) {
	return exec.LookPath(name)
}
