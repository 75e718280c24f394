// Package gateways defines interfaces for external tools.
package gateways

import (
	"context"

	"github.com/ochairo/ripbench/internal/domain/entities"
)

// DetectOptions configure one detector run
type DetectOptions struct {
	// Workspace is the scratch directory owned by the calling worker
	Workspace string
	// NoAnalysis disables the analyzer's extra analysis passes
	NoAnalysis bool
	// Label tags the resulting detection ("nonstripped", "stripped")
	Label string
}

// FunctionDetector recovers function entry points from a binary
type FunctionDetector interface {
	Detect(ctx context.Context, binaryPath string, opts DetectOptions) (*entities.DetectionResult, error)
}

// Stripper produces a symbol-stripped copy of a binary
type Stripper interface {
	Strip(ctx context.Context, src, dst string) error
}

// FileInspector reads container-level facts about a binary
type FileInspector interface {
	DetectFormat(path string) (entities.FileFormat, error)
}

// Hasher computes content hashes
type Hasher interface {
	HashFile(path string) (entities.ContentHash, error)
}
