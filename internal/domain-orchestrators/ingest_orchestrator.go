package orchestrators

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"

	"github.com/ochairo/ripbench/internal/domain/entities"
	"github.com/ochairo/ripbench/internal/domain/interfaces"
	"github.com/ochairo/ripbench/internal/domain/interfaces/gateways"
	"github.com/ochairo/ripbench/internal/domain/interfaces/repositories"
)

// IngestRequest describes one binary and its analysis tensor
type IngestRequest struct {
	BinaryPath string
	Tensor     entities.Tensor
	Kind       entities.AnalysisKind
	Metadata   entities.ArtifactMetadata
	Overwrite  bool
	SaveBinary bool
}

// IngestResult contains the result of an ingest operation
type IngestResult struct {
	Record   *entities.AnalysisRecord
	Artifact entities.BinaryArtifact
}

// symbolChecker is implemented by inspectors that can tell a stripped binary apart
type symbolChecker interface {
	HasSymbols(path string) (bool, error)
}

// IngestOrchestrator adds binaries and their tensors to the analysis store
type IngestOrchestrator struct {
	store     repositories.AnalysisStore
	inspector gateways.FileInspector
	logger    interfaces.Logger
}

// NewIngestOrchestrator creates a new ingest orchestrator
func NewIngestOrchestrator(store repositories.AnalysisStore, inspector gateways.FileInspector, logger interfaces.Logger) *IngestOrchestrator {
	return &IngestOrchestrator{
		store:     store,
		inspector: inspector,
		logger:    interfaces.OrNoOp(logger),
	}
}

// Ingest detects the file format, completes the metadata and saves the record
func (o *IngestOrchestrator) Ingest(ctx context.Context, req IngestRequest) (*IngestResult, error) {
	format, err := o.inspector.DetectFormat(req.BinaryPath)
	if err != nil {
		return nil, fmt.Errorf("failed to inspect binary: %w", err)
	}

	meta := req.Metadata
	if meta.BinaryName == "" {
		meta.BinaryName = filepath.Base(req.BinaryPath)
	}
	if meta.FileType == "" {
		meta.FileType = string(format)
	}
	if meta.Optimization != "" {
		opt, err := entities.ParseOptLevel(meta.Optimization)
		if err != nil {
			return nil, err
		}
		meta.Optimization = string(opt)
	}
	if format == entities.FormatUnknown {
		o.logger.Warn("Unrecognized binary format", interfaces.F("binary", meta.BinaryName))
	}

	record, err := o.store.Save(ctx, repositories.SaveRequest{
		BinaryPath: req.BinaryPath,
		Tensor:     req.Tensor,
		Kind:       req.Kind,
		Metadata:   meta,
		Overwrite:  req.Overwrite,
		SaveBinary: req.SaveBinary,
	})
	if err != nil {
		var dup *entities.DuplicateArtifactError
		if errors.As(err, &dup) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to save %s: %w", meta.BinaryName, err)
	}

	artifact := entities.BinaryArtifact{
		Name:       meta.BinaryName,
		Path:       req.BinaryPath,
		Hash:       record.Hash(),
		Language:   meta.Language,
		Compiler:   meta.Compiler,
		FileFormat: format,
	}
	if opt, err := entities.ParseOptLevel(meta.Optimization); err == nil {
		artifact.Optimization = opt
	}
	if checker, ok := o.inspector.(symbolChecker); ok && format != entities.FormatUnknown {
		if hasSymbols, err := checker.HasSymbols(req.BinaryPath); err == nil {
			artifact.Stripped = !hasSymbols
		}
	}

	return &IngestResult{Record: record, Artifact: artifact}, nil
}
