// Package filestore implements the content-addressed analysis store on the
// local filesystem: one directory per binary, named <binaryName>_<hash>.
package filestore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"iter"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/ochairo/ripbench/internal/domain/entities"
	"github.com/ochairo/ripbench/internal/domain/interfaces"
	"github.com/ochairo/ripbench/internal/domain/interfaces/gateways"
	"github.com/ochairo/ripbench/internal/domain/interfaces/repositories"
	"github.com/ochairo/ripbench/internal/external-adapters/atomicfile"
	"github.com/ochairo/ripbench/internal/external-adapters/npz"
)

const (
	metadataFile = "info.json"
	tensorExt    = ".npz"
)

// ErrRecordNotFound is returned by Load when no directory carries the hash
var ErrRecordNotFound = errors.New("record not found")

// Store implements repositories.AnalysisStore rooted at a directory
type Store struct {
	root   string
	hasher gateways.Hasher
	logger interfaces.Logger
	mu     sync.Mutex
}

var _ repositories.AnalysisStore = (*Store)(nil)

// NewStore creates a store rooted at root
func NewStore(root string, hasher gateways.Hasher, logger interfaces.Logger) *Store {
	return &Store{
		root:   root,
		hasher: hasher,
		logger: interfaces.OrNoOp(logger),
	}
}

// Root returns the store root directory
func (s *Store) Root() string {
	return s.root
}

// Init creates the store root
func (s *Store) Init() error {
	if err := os.MkdirAll(s.root, 0750); err != nil {
		return fmt.Errorf("failed to create store root: %w", err)
	}
	return nil
}

// HashFile computes the content hash used to address a binary
func (s *Store) HashFile(path string) (entities.ContentHash, error) {
	return s.hasher.HashFile(path)
}

// Save persists a tensor and its metadata for a binary.
// The tensor is normalized before anything touches the disk.
func (s *Store) Save(ctx context.Context, req repositories.SaveRequest) (*entities.AnalysisRecord, error) {
	dense, err := req.Tensor.Normalize()
	if err != nil {
		return nil, err
	}
	if req.Kind == "" {
		return nil, fmt.Errorf("analysis kind is required")
	}
	if strings.ContainsAny(string(req.Kind), `/\`) {
		return nil, fmt.Errorf("invalid analysis kind: %q", req.Kind)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	hash, err := s.hasher.HashFile(req.BinaryPath)
	if err != nil {
		return nil, fmt.Errorf("failed to hash binary: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	existing, err := s.findByHash(hash)
	if err != nil {
		return nil, err
	}
	if existing != "" && !req.Overwrite {
		return nil, &entities.DuplicateArtifactError{Hash: hash, ExistingDir: existing}
	}

	meta := req.Metadata
	if meta.BinaryName == "" {
		meta.BinaryName = filepath.Base(req.BinaryPath)
	}
	if existing != "" {
		// The directory name is <binaryName>_<hash>; an overwrite keeps it
		kept := strings.TrimSuffix(filepath.Base(existing), "_"+hash.String())
		if kept != meta.BinaryName {
			s.logger.Warn("Overwrite keeps the stored binary name",
				interfaces.F("stored", kept),
				interfaces.F("requested", meta.BinaryName))
			meta.BinaryName = kept
		}
	}
	if strings.ContainsAny(meta.BinaryName, `/\`) {
		return nil, fmt.Errorf("invalid binary name: %q", meta.BinaryName)
	}
	meta.BinaryHash = hash.String()

	dir := existing
	created := false
	if dir == "" {
		dir = filepath.Join(s.root, fmt.Sprintf("%s_%s", meta.BinaryName, hash))
		if err := os.MkdirAll(dir, 0750); err != nil {
			return nil, fmt.Errorf("failed to create record directory: %w", err)
		}
		created = true
	}

	if err := s.writeRecord(dir, req, meta, dense); err != nil {
		if created {
			//nolint:errcheck // Best-effort removal of a half-written record
			os.RemoveAll(dir)
		}
		return nil, err
	}

	s.logger.Info("Saved analysis record",
		interfaces.F("binary", meta.BinaryName),
		interfaces.F("hash", hash.String()),
		interfaces.F("kind", string(req.Kind)),
		interfaces.F("overwrite", existing != ""))

	return s.loadRecord(dir)
}

// writeRecord writes info.json last so a failed write never pairs new
// metadata with old tensors
func (s *Store) writeRecord(dir string, req repositories.SaveRequest, meta entities.ArtifactMetadata, dense *entities.DenseTensor) error {
	if err := npz.WriteFile(filepath.Join(dir, string(req.Kind)+tensorExt), dense); err != nil {
		return fmt.Errorf("failed to write tensor: %w", err)
	}

	if req.SaveBinary {
		if err := copyBinary(req.BinaryPath, filepath.Join(dir, meta.BinaryName)); err != nil {
			return err
		}
	}

	data, err := json.MarshalIndent(meta, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode metadata: %w", err)
	}
	if err := atomicfile.WriteFile(filepath.Join(dir, metadataFile), data, 0600); err != nil {
		return fmt.Errorf("failed to write metadata: %w", err)
	}
	return nil
}

// Scan lazily enumerates records in directory-name order. A record whose
// metadata is missing or corrupt is yielded as a skip; the scan continues.
func (s *Store) Scan(ctx context.Context) iter.Seq[entities.ScanResult] {
	return func(yield func(entities.ScanResult) bool) {
		entries, err := os.ReadDir(s.root)
		if err != nil {
			yield(entities.ScanResult{Dir: s.root, Err: fmt.Errorf("failed to read store root: %w", err)})
			return
		}

		for _, entry := range entries {
			if err := ctx.Err(); err != nil {
				yield(entities.ScanResult{Dir: s.root, Err: err})
				return
			}
			if !entry.IsDir() {
				continue
			}

			dir := filepath.Join(s.root, entry.Name())
			record, err := s.loadRecord(dir)
			if err != nil {
				s.logger.Warn("Skipping store record", interfaces.F("dir", entry.Name()), interfaces.Err(err))
				if !yield(entities.ScanResult{Dir: dir, Err: err}) {
					return
				}
				continue
			}
			if !yield(entities.ScanResult{Dir: dir, Record: record}) {
				return
			}
		}
	}
}

// Load returns the record stored for a hash
func (s *Store) Load(_ context.Context, hash entities.ContentHash) (*entities.AnalysisRecord, error) {
	dir, err := s.findByHash(hash)
	if err != nil {
		return nil, err
	}
	if dir == "" {
		return nil, fmt.Errorf("%w: %s", ErrRecordNotFound, hash)
	}
	return s.loadRecord(dir)
}

// LoadTensor reads one analysis tensor of a record
func (s *Store) LoadTensor(_ context.Context, record *entities.AnalysisRecord, kind entities.AnalysisKind) (*entities.DenseTensor, error) {
	if !record.HasKind(kind) {
		return nil, fmt.Errorf("record %s has no %s tensor", filepath.Base(record.Dir), kind)
	}
	return npz.ReadFile(filepath.Join(record.Dir, string(kind)+tensorExt))
}

// Stats counts records per optimization level
func (s *Store) Stats(ctx context.Context) (entities.StoreStats, error) {
	stats := entities.StoreStats{ByOpt: make(map[entities.OptLevel]int)}
	for result := range s.Scan(ctx) {
		if result.Dir == s.root && result.Err != nil {
			return stats, result.Err
		}
		if result.Skipped() {
			stats.Skipped++
			continue
		}
		stats.Total++
		if opt, err := entities.ParseOptLevel(result.Record.Metadata.Optimization); err == nil {
			stats.ByOpt[opt]++
		} else {
			stats.Other++
		}
	}
	return stats, nil
}

// findByHash returns the record directory whose name ends in _<hash>, or ""
func (s *Store) findByHash(hash entities.ContentHash) (string, error) {
	entries, err := os.ReadDir(s.root)
	if err != nil {
		if os.IsNotExist(err) {
			return "", nil
		}
		return "", fmt.Errorf("failed to read store root: %w", err)
	}

	suffix := "_" + hash.String()
	for _, entry := range entries {
		if entry.IsDir() && strings.HasSuffix(entry.Name(), suffix) {
			return filepath.Join(s.root, entry.Name()), nil
		}
	}
	return "", nil
}

func (s *Store) loadRecord(dir string) (*entities.AnalysisRecord, error) {
	//nolint:gosec // G304: Path is inside the store root
	data, err := os.ReadFile(filepath.Join(dir, metadataFile))
	if err != nil {
		return nil, &entities.MalformedMetadataError{Dir: dir, Err: err}
	}

	var meta entities.ArtifactMetadata
	if err := json.Unmarshal(data, &meta); err != nil {
		return nil, &entities.MalformedMetadataError{Dir: dir, Err: err}
	}
	if err := meta.Validate(); err != nil {
		return nil, &entities.MalformedMetadataError{Dir: dir, Err: err}
	}
	if !strings.HasSuffix(filepath.Base(dir), "_"+meta.BinaryHash) {
		return nil, &entities.MalformedMetadataError{Dir: dir, Err: fmt.Errorf("binary_hash %s does not match directory name", meta.BinaryHash)}
	}

	kinds, err := listKinds(dir)
	if err != nil {
		return nil, &entities.MalformedMetadataError{Dir: dir, Err: err}
	}

	record := &entities.AnalysisRecord{Dir: dir, Metadata: meta, Kinds: kinds}
	if info, err := os.Stat(filepath.Join(dir, meta.BinaryName)); err == nil && info.Mode().IsRegular() {
		record.BinaryPath = filepath.Join(dir, meta.BinaryName)
	}
	return record, nil
}

func listKinds(dir string) ([]entities.AnalysisKind, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read record directory: %w", err)
	}
	kinds := make([]entities.AnalysisKind, 0)
	for _, entry := range entries {
		if !entry.IsDir() && strings.HasSuffix(entry.Name(), tensorExt) {
			kinds = append(kinds, entities.AnalysisKind(strings.TrimSuffix(entry.Name(), tensorExt)))
		}
	}
	sort.Slice(kinds, func(i, j int) bool { return kinds[i] < kinds[j] })
	return kinds, nil
}

func copyBinary(src, dst string) error {
	//nolint:gosec // G304: Source is the binary being stored
	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("failed to open binary: %w", err)
	}
	//nolint:errcheck // Defer close on read-only file
	defer in.Close()

	tmp, err := os.CreateTemp(filepath.Dir(dst), ".bin-*")
	if err != nil {
		return fmt.Errorf("failed to create binary copy: %w", err)
	}
	if _, err := io.Copy(tmp, in); err != nil {
		//nolint:errcheck // Already returning the copy error
		tmp.Close()
		//nolint:errcheck // Best-effort cleanup
		os.Remove(tmp.Name())
		return fmt.Errorf("failed to copy binary: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close binary copy: %w", err)
	}
	//nolint:gosec // G302: Stored binaries stay executable for the analyzer
	if err := os.Chmod(tmp.Name(), 0755); err != nil {
		return fmt.Errorf("failed to set binary permissions: %w", err)
	}
	if err := os.Rename(tmp.Name(), dst); err != nil {
		return fmt.Errorf("failed to place binary copy: %w", err)
	}
	return nil
}
