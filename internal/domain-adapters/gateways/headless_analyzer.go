package gateways

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/ochairo/ripbench/internal/domain/entities"
	"github.com/ochairo/ripbench/internal/domain/interfaces"
	"github.com/ochairo/ripbench/internal/domain/interfaces/gateways"
)

const (
	analyzerProject = "ripbench_proj"
	stderrTailBytes = 2048
)

// commandRunner is the subset of CommandRunner the analyzer needs
type commandRunner interface {
	Run(ctx context.Context, config CommandConfig) *ExecuteResult
}

// HeadlessAnalyzer runs the disassembler in headless mode with a
// post-analysis script that prints the function list
type HeadlessAnalyzer struct {
	runner        commandRunner
	config        entities.AnalyzerConfig
	logger        interfaces.Logger
	retryInterval time.Duration
}

// NewHeadlessAnalyzer creates an analyzer gateway
func NewHeadlessAnalyzer(runner commandRunner, config entities.AnalyzerConfig, logger interfaces.Logger) *HeadlessAnalyzer {
	return &HeadlessAnalyzer{
		runner:        runner,
		config:        config,
		logger:        interfaces.OrNoOp(logger),
		retryInterval: 2 * time.Second,
	}
}

// InvokeOptions configure one analyzer invocation
type InvokeOptions struct {
	Workspace  string
	NoAnalysis bool
}

// Invoke runs the analyzer against binaryPath and returns its raw output
func (a *HeadlessAnalyzer) Invoke(ctx context.Context, binaryPath string, opts InvokeOptions) (string, error) {
	result, err := a.invoke(ctx, binaryPath, opts)
	if err != nil {
		return "", err
	}
	return result.Stdout, nil
}

// Detect runs the analyzer and parses the reported function list.
// WallTime covers the successful attempt only.
func (a *HeadlessAnalyzer) Detect(ctx context.Context, binaryPath string, opts gateways.DetectOptions) (*entities.DetectionResult, error) {
	result, err := a.invoke(ctx, binaryPath, InvokeOptions{Workspace: opts.Workspace, NoAnalysis: opts.NoAnalysis})
	if err != nil {
		return nil, err
	}

	functions, warnings := ParseFunctionReport(result.Stdout)
	if len(warnings) > 0 {
		a.logger.Warn("Skipped lines in function report",
			interfaces.F("binary", filepath.Base(binaryPath)),
			interfaces.F("label", opts.Label),
			interfaces.F("count", len(warnings)),
			interfaces.F("first", warnings[0].String()))
	}

	return &entities.DetectionResult{
		Label:     opts.Label,
		Functions: functions,
		WallTime:  result.Duration,
	}, nil
}

func (a *HeadlessAnalyzer) invoke(ctx context.Context, binaryPath string, opts InvokeOptions) (*ExecuteResult, error) {
	absBinary, err := filepath.Abs(binaryPath)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve binary path: %w", err)
	}

	workspace := opts.Workspace
	if workspace == "" {
		workspace, err = os.MkdirTemp("", "ripbench-analyzer-")
		if err != nil {
			return nil, fmt.Errorf("failed to create workspace: %w", err)
		}
		//nolint:errcheck // Best-effort removal of a private temp dir
		defer os.RemoveAll(workspace)
	} else {
		if workspace, err = filepath.Abs(workspace); err != nil {
			return nil, fmt.Errorf("failed to resolve workspace: %w", err)
		}
		if err := os.MkdirAll(workspace, 0750); err != nil {
			return nil, fmt.Errorf("failed to create workspace: %w", err)
		}
	}

	var result *ExecuteResult
	operation := func() error {
		if err := CleanProjectArtifacts(workspace); err != nil {
			return backoff.Permanent(err)
		}
		//nolint:errcheck // Cleanup after the run is best-effort; the next run cleans again
		defer CleanProjectArtifacts(workspace)

		result = a.runner.Run(ctx, CommandConfig{
			Path:        a.config.Path,
			Args:        a.arguments(workspace, absBinary, opts.NoAnalysis),
			Dir:         workspace,
			Timeout:     a.config.Timeout,
			Description: "analyze " + filepath.Base(binaryPath),
		})
		if result.Success {
			return nil
		}

		invErr := &entities.AnalyzerInvocationError{
			Binary:   binaryPath,
			ExitCode: result.ExitCode,
			TimedOut: result.TimedOut,
			Timeout:  a.config.Timeout,
			Stderr:   tail(result.Stderr, stderrTailBytes),
			Err:      result.Error,
		}
		if result.TimedOut || ctx.Err() != nil {
			return backoff.Permanent(invErr)
		}
		a.logger.Warn("Analyzer run failed",
			interfaces.F("binary", filepath.Base(binaryPath)),
			interfaces.F("exit_code", result.ExitCode))
		return invErr
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = a.retryInterval
	b.MaxElapsedTime = 0
	policy := backoff.WithContext(backoff.WithMaxRetries(b, uint64(max(a.config.Retries, 0))), ctx)

	if err := backoff.Retry(operation, policy); err != nil {
		var invErr *entities.AnalyzerInvocationError
		if errors.As(err, &invErr) {
			return nil, invErr
		}
		return nil, fmt.Errorf("analyzer invocation failed: %w", err)
	}
	return result, nil
}

// arguments builds: <workspace> <project> -import <bin> -scriptPath <dir> -postScript <script> [-noanalysis]
func (a *HeadlessAnalyzer) arguments(workspace, binary string, noAnalysis bool) []string {
	args := []string{
		workspace, analyzerProject,
		"-import", binary,
		"-scriptPath", a.config.ScriptDir,
		"-postScript", a.config.PostScript,
	}
	if noAnalysis {
		args = append(args, "-noanalysis")
	}
	return append(args, a.config.ExtraArgs...)
}

// CleanProjectArtifacts removes analyzer project files (*.rep, *.gpr) left in workspace.
// Idempotent.
func CleanProjectArtifacts(workspace string) error {
	for _, pattern := range []string{"*.rep", "*.gpr"} {
		matches, err := filepath.Glob(filepath.Join(workspace, pattern))
		if err != nil {
			return fmt.Errorf("failed to list project artifacts: %w", err)
		}
		for _, path := range matches {
			if err := os.RemoveAll(path); err != nil {
				return fmt.Errorf("failed to remove %s: %w", path, err)
			}
		}
	}
	return nil
}

func tail(s string, n int) string {
	s = strings.TrimSpace(s)
	if len(s) <= n {
		return s
	}
	return s[len(s)-n:]
}
