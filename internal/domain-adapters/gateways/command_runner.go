package gateways

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"sort"
	"time"

	"github.com/ochairo/ripbench/internal/domain/interfaces"
)

// CommandRunner handles execution of external tools
type CommandRunner struct {
	defaultTimeout time.Duration
	logger         interfaces.Logger
}

// NewCommandRunner creates a new command runner
func NewCommandRunner(logger interfaces.Logger) *CommandRunner {
	return &CommandRunner{
		defaultTimeout: 10 * time.Minute,
		logger:         interfaces.OrNoOp(logger),
	}
}

// CommandConfig contains configuration for executing one external tool
type CommandConfig struct {
	Path        string
	Args        []string
	Dir         string
	Env         map[string]string
	Timeout     time.Duration
	Description string
}

// ExecuteResult contains the result of command execution
type ExecuteResult struct {
	Success  bool
	ExitCode int
	Stdout   string
	Stderr   string
	Duration time.Duration
	TimedOut bool
	Error    error
}

// Run executes the command and waits for it. The process is killed when
// ctx is canceled or the timeout elapses.
func (r *CommandRunner) Run(ctx context.Context, config CommandConfig) *ExecuteResult {
	startTime := time.Now()
	result := &ExecuteResult{}

	timeout := config.Timeout
	if timeout == 0 {
		timeout = r.defaultTimeout
	}

	execCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	//nolint:gosec // G204: Tool path and arguments come from the bench configuration
	cmd := exec.CommandContext(execCtx, config.Path, config.Args...)
	// Children that inherit stdout must not keep Run blocked after a kill
	cmd.WaitDelay = 2 * time.Second

	if config.Dir != "" {
		cmd.Dir = config.Dir
	}

	env := os.Environ()
	keys := make([]string, 0, len(config.Env))
	for key := range config.Env {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	for _, key := range keys {
		env = append(env, fmt.Sprintf("%s=%s", key, config.Env[key]))
	}
	cmd.Env = env

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if config.Description != "" {
		r.logger.Debug("Executing command",
			interfaces.F("description", config.Description),
			interfaces.F("path", config.Path),
			interfaces.F("args", config.Args))
	}

	err := cmd.Run()
	result.Duration = time.Since(startTime)
	result.Stdout = stdout.String()
	result.Stderr = stderr.String()

	if err != nil {
		result.Error = err
		result.ExitCode = -1
		var exitErr *exec.ExitError
		switch {
		case errors.Is(execCtx.Err(), context.DeadlineExceeded) && ctx.Err() == nil:
			result.TimedOut = true
			result.Error = fmt.Errorf("command timeout after %v", timeout)
		case ctx.Err() != nil:
			result.Error = ctx.Err()
		case errors.As(err, &exitErr):
			result.ExitCode = exitErr.ExitCode()
		}
		return result
	}

	result.Success = true
	result.ExitCode = 0
	return result
}
