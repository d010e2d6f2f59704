package tools

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"path/filepath"
	"strings"
	"time"
)

// ErrExecTimeout is returned when a command outlives its timeout.
var ErrExecTimeout = errors.New("execution timed out")

// Terminal executes commands with deny checks, a timeout and capped output.
type Terminal struct {
	Denied         []string
	Timeout        time.Duration
	MaxOutputBytes int
}

// ExecSpec describes one command invocation.
type ExecSpec struct {
	Argv  []string
	Stdin string
	Dir   string
	// Env replaces the process environment entirely.
	Env []string
}

// ExecResult carries output and status code.
type ExecResult struct {
	Stdout    string
	Stderr    string
	ExitCode  int
	Truncated bool
}

// Exec runs spec.Argv if none of its programs is denied.
func (t *Terminal) Exec(ctx context.Context, spec ExecSpec) (ExecResult, error) {
	if len(spec.Argv) == 0 || spec.Argv[0] == "" {
		return ExecResult{}, fmt.Errorf("command is required")
	}
	if err := t.validateCommand(spec.Argv[0]); err != nil {
		return ExecResult{}, err
	}

	timeout := t.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	runCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := exec.CommandContext(runCtx, spec.Argv[0], spec.Argv[1:]...)
	cmd.Dir = spec.Dir
	cmd.Env = spec.Env
	if cmd.Env == nil {
		cmd.Env = []string{}
	}
	cmd.Stdin = strings.NewReader(spec.Stdin)
	cmd.WaitDelay = time.Second

	stdout := &cappedBuffer{limit: t.MaxOutputBytes}
	stderr := &cappedBuffer{limit: t.MaxOutputBytes}
	cmd.Stdout = stdout
	cmd.Stderr = stderr

	err := cmd.Run()

	res := ExecResult{
		Stdout:    stdout.String(),
		Stderr:    stderr.String(),
		Truncated: stdout.truncated || stderr.truncated,
		ExitCode: func() int {
			var exitErr *exec.ExitError
			if errors.As(err, &exitErr) {
				return exitErr.ExitCode()
			}
			if err != nil {
				return -1
			}
			return 0
		}(),
	}

	if errors.Is(runCtx.Err(), context.DeadlineExceeded) && ctx.Err() == nil {
		return res, fmt.Errorf("%w after %s", ErrExecTimeout, timeout)
	}
	if err != nil {
		return res, err
	}
	return res, nil
}

func (t *Terminal) validateCommand(cmd string) error {
	base := strings.ToLower(filepath.Base(cmd))
	for _, deny := range t.Denied {
		if base == strings.ToLower(deny) {
			return fmt.Errorf("command %q is denied", cmd)
		}
	}
	return nil
}

// cappedBuffer keeps the first limit bytes and discards the rest. limit <= 0 means unbounded.
type cappedBuffer struct {
	buf       bytes.Buffer
	limit     int
	truncated bool
}

func (c *cappedBuffer) Write(p []byte) (int, error) {
	if c.limit <= 0 {
		return c.buf.Write(p)
	}
	room := c.limit - c.buf.Len()
	if room <= 0 {
		c.truncated = c.truncated || len(p) > 0
		return len(p), nil
	}
	if len(p) > room {
		c.buf.Write(p[:room])
		c.truncated = true
		return len(p), nil
	}
	return c.buf.Write(p)
}

func (c *cappedBuffer) String() string { return c.buf.String() }

var _ io.Writer = (*cappedBuffer)(nil)
