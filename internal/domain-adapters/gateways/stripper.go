package gateways

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/ochairo/ripbench/internal/domain/entities"
	"github.com/ochairo/ripbench/internal/domain/interfaces"
)

// symbolInspector is the subset of binaryInspector the stripper needs
type symbolInspector interface {
	DetectFormat(path string) (entities.FileFormat, error)
	HasSymbols(path string) (bool, error)
}

// ToolStripper produces stripped copies with an external strip utility
type ToolStripper struct {
	runner    commandRunner
	path      string
	inspector symbolInspector
	logger    interfaces.Logger
}

// NewToolStripper creates a stripper. path defaults to "strip".
func NewToolStripper(runner commandRunner, path string, inspector symbolInspector, logger interfaces.Logger) *ToolStripper {
	if path == "" {
		path = "strip"
	}
	return &ToolStripper{
		runner:    runner,
		path:      path,
		inspector: inspector,
		logger:    interfaces.OrNoOp(logger),
	}
}

// Strip copies src to dst and strips the copy in place. ELF copies are
// checked for a leftover .symtab.
func (s *ToolStripper) Strip(ctx context.Context, src, dst string) error {
	if err := os.MkdirAll(filepath.Dir(dst), 0750); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}
	if err := copyExecutable(src, dst); err != nil {
		return err
	}

	result := s.runner.Run(ctx, CommandConfig{
		Path:        s.path,
		Args:        []string{dst},
		Description: "strip " + filepath.Base(src),
	})
	if !result.Success {
		return fmt.Errorf("strip failed (exit %d): %w\nStderr: %s", result.ExitCode, result.Error, result.Stderr)
	}

	if s.inspector == nil {
		return nil
	}
	format, err := s.inspector.DetectFormat(dst)
	if err != nil || format != entities.FormatELF {
		return nil //nolint:nilerr // Only ELF output is verified
	}
	hasSymbols, err := s.inspector.HasSymbols(dst)
	if err != nil {
		return fmt.Errorf("failed to inspect stripped binary: %w", err)
	}
	if hasSymbols {
		return fmt.Errorf("stripped binary %s still has a symbol table", dst)
	}

	s.logger.Debug("Stripped binary", interfaces.F("src", src), interfaces.F("dst", dst))
	return nil
}

func copyExecutable(src, dst string) error {
	//nolint:gosec // G304: Source is a corpus binary
	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("failed to open binary: %w", err)
	}
	//nolint:errcheck // Defer close on read-only file
	defer in.Close()

	//nolint:gosec // G302,G304: Stripped copy must stay executable
	out, err := os.OpenFile(dst, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0755)
	if err != nil {
		return fmt.Errorf("failed to create stripped copy: %w", err)
	}

	if _, err := io.Copy(out, in); err != nil {
		//nolint:errcheck // Already returning the copy error
		out.Close()
		return fmt.Errorf("failed to copy binary: %w", err)
	}
	if err := out.Close(); err != nil {
		return fmt.Errorf("failed to close stripped copy: %w", err)
	}
	return nil
}
