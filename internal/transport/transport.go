// Package transport runs scheduler reporting commands either on the local
// host or on a remote login node over OpenSSH. It carries raw text back to
// the parsing pipeline and classifies failures so callers can tell transient
// connectivity problems from hard errors.
package transport

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
)

type RunResult struct {
	Stdout   string
	Stderr   string
	ExitCode int
}

type Transport interface {
	Run(ctx context.Context, command string) (RunResult, error)
	Describe() string
}

// RunError is the typed failure for a command run, keeping enough context for
// diagnostics and retry classification without string matching at call sites.
type RunError struct {
	Command  string
	Target   string
	Stdout   string
	Stderr   string
	ExitCode int
	Timeout  bool
	Err      error
}

func (e *RunError) Error() string {
	base := fmt.Sprintf("command failed on %s", e.Target)
	if e.Timeout {
		base += " (timeout)"
	}
	if e.ExitCode != 0 {
		base += fmt.Sprintf(" [exit=%d]", e.ExitCode)
	}
	if s := strings.TrimSpace(e.Stderr); s != "" {
		base += ": " + s
	}
	if e.Err != nil {
		base += fmt.Sprintf(": %v", e.Err)
	}
	return base
}

func (e *RunError) Unwrap() error {
	return e.Err
}

// IsRetryable reports whether a failed run looks like a transient transport
// problem worth another pass, as opposed to a missing or broken scheduler
// command.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, io.EOF) {
		return true
	}

	var runErr *RunError
	if !errors.As(err, &runErr) {
		return false
	}
	if runErr.Timeout {
		return true
	}
	// OpenSSH reports connection-level failures with exit 255.
	if runErr.ExitCode == 255 {
		return true
	}

	stderr := strings.ToLower(runErr.Stderr)
	for _, signal := range []string{
		"connection reset",
		"connection refused",
		"connection closed",
		"connection timed out",
		"broken pipe",
		"timed out",
		"network is unreachable",
		"no route to host",
		"temporary failure",
	} {
		if strings.Contains(stderr, signal) {
			return true
		}
	}
	return false
}
