package tools

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/24f2000010/TDS-PROJ2-T32025/internal/config"
)

// ErrSandboxDisabled is returned when code execution is switched off.
var ErrSandboxDisabled = errors.New("code execution disabled by configuration")

// CodeRunner executes model-authored source code.
type CodeRunner interface {
	Run(ctx context.Context, code string) (ExecResult, error)
}

// Sandbox runs code through the configured interpreter in a throwaway directory
// with a scrubbed environment. The optional wrapper (prlimit, bwrap, nsjail ...)
// is prepended to the interpreter command line.
type Sandbox struct {
	Terminal    *Terminal
	Interpreter []string
	Wrapper     []string
	BaseDir     string
	PassEnv     []string
	Enabled     bool
}

// NewSandbox builds the code runner from config.
func NewSandbox(cfg config.SandboxConfig) *Sandbox {
	return &Sandbox{
		Terminal: &Terminal{
			Denied:         dedupeStrings(cfg.DeniedCommands),
			Timeout:        time.Duration(cfg.TimeoutSeconds) * time.Second,
			MaxOutputBytes: cfg.MaxOutputBytes,
		},
		Interpreter: cfg.Interpreter,
		Wrapper:     cfg.Wrapper,
		BaseDir:     cfg.WorkingDir,
		PassEnv:     cfg.PassEnv,
		Enabled:     cfg.Enabled,
	}
}

// Run feeds code to the interpreter on stdin.
func (s *Sandbox) Run(ctx context.Context, code string) (ExecResult, error) {
	if s == nil || !s.Enabled {
		return ExecResult{}, ErrSandboxDisabled
	}
	if len(s.Interpreter) == 0 {
		return ExecResult{}, errors.New("no interpreter configured")
	}
	if err := s.Terminal.validateCommand(s.Interpreter[0]); err != nil {
		return ExecResult{}, err
	}

	dir, err := os.MkdirTemp(s.BaseDir, "quizagent-run-*")
	if err != nil {
		return ExecResult{}, fmt.Errorf("create work dir: %w", err)
	}
	defer os.RemoveAll(dir)

	argv := make([]string, 0, len(s.Wrapper)+len(s.Interpreter))
	argv = append(argv, s.Wrapper...)
	argv = append(argv, s.Interpreter...)

	return s.Terminal.Exec(ctx, ExecSpec{
		Argv:  argv,
		Stdin: code,
		Dir:   dir,
		Env:   s.environ(dir),
	})
}

func (s *Sandbox) environ(dir string) []string {
	env := []string{
		"HOME=" + dir,
		"TMPDIR=" + dir,
		"PYTHONDONTWRITEBYTECODE=1",
		"PYTHONIOENCODING=utf-8",
	}
	for _, name := range s.PassEnv {
		if v, ok := os.LookupEnv(name); ok {
			env = append(env, name+"="+v)
		}
	}
	return env
}

func dedupeStrings(values []string) []string {
	seen := make(map[string]struct{})
	out := make([]string, 0, len(values))
	for _, v := range values {
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}
