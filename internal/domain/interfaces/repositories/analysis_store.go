// Package repositories defines interfaces for data access layers.
package repositories

import (
	"context"
	"iter"

	"github.com/ochairo/ripbench/internal/domain/entities"
)

// SaveRequest describes one artifact + tensor to persist
type SaveRequest struct {
	BinaryPath string
	Tensor     entities.Tensor
	Kind       entities.AnalysisKind
	Metadata   entities.ArtifactMetadata
	Overwrite  bool
	SaveBinary bool
}

// AnalysisStore defines the content-addressed store of binaries and their analysis tensors
type AnalysisStore interface {
	// Save persists the tensor and metadata for a binary, deduplicating by content hash
	Save(ctx context.Context, req SaveRequest) (*entities.AnalysisRecord, error)

	// Scan lazily enumerates every record; corrupt records are yielded as skips
	Scan(ctx context.Context) iter.Seq[entities.ScanResult]

	// Load returns the record stored for a hash
	Load(ctx context.Context, hash entities.ContentHash) (*entities.AnalysisRecord, error)

	// LoadTensor reads one analysis tensor of a record
	LoadTensor(ctx context.Context, record *entities.AnalysisRecord, kind entities.AnalysisKind) (*entities.DenseTensor, error)
}
