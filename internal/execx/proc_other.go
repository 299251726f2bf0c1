//go:build !unix

package execx

import "os/exec"

// killProcessGroup is a no-op here; CommandContext kills the direct child and
// WaitDelay bounds the wait for any descendants.
func killProcessGroup(cmd *exec.Cmd) {}
