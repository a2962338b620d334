// Package executil runs external helper programs for the plotting tools. The
// parent blocks until the child exits; an optional wall-clock timeout kills
// the child's whole process group on expiry. No retry happens here; callers
// decide whether to re-invoke.
package executil

import (
	"fmt"
	"os"
	"os/exec"
	"syscall"
	"time"
)

// ErrTimedOut is returned when the child was killed because the timeout
// expired.
var ErrTimedOut = fmt.Errorf("subprocess timed out")

// Run executes name with args, forwarding stdout/stderr. A zero timeout
// means wait forever.
func Run(timeout time.Duration, name string, args ...string) error {
	cmd := exec.Command(name, args...)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	// Own process group, so a timeout can signal the child and everything
	// it spawned.
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("starting %s: %w", name, err)
	}

	done := make(chan error, 1)
	go func() { done <- cmd.Wait() }()

	if timeout == 0 {
		if err := <-done; err != nil {
			return fmt.Errorf("%s failed: %w", name, err)
		}
		return nil
	}

	select {
	case err := <-done:
		if err != nil {
			return fmt.Errorf("%s failed: %w", name, err)
		}
		return nil
	case <-time.After(timeout):
		_ = syscall.Kill(-cmd.Process.Pid, syscall.SIGKILL)
		<-done
		return fmt.Errorf("%s: %w after %s", name, ErrTimedOut, timeout)
	}
}
