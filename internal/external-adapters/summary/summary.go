// Package summary stores the per-sweep summary document: a JSON object
// mapping binary name to its benchmark record. The document only grows;
// every append atomically replaces the file with one more key.
package summary

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/ochairo/ripbench/internal/domain/entities"
	"github.com/ochairo/ripbench/internal/domain/interfaces/repositories"
	"github.com/ochairo/ripbench/internal/external-adapters/atomicfile"
)

// ErrDuplicateRecord is returned when appending a binary already in the summary
var ErrDuplicateRecord = errors.New("binary already recorded in summary")

// File implements repositories.SummaryRepository
type File struct {
	path    string
	mu      sync.Mutex
	records map[string]*entities.BenchmarkRecord
}

var _ repositories.SummaryRepository = (*File)(nil)

// FileName returns the conventional summary name for an optimization level
func FileName(opt entities.OptLevel) string {
	return fmt.Sprintf("GHIDRA_RUN_%s.json", opt)
}

// Open loads the summary at path, or starts an empty one if it does not exist
func Open(path string) (*File, error) {
	records, err := load(path)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			return nil, err
		}
		records = make(map[string]*entities.BenchmarkRecord)
	}
	return &File{path: path, records: records}, nil
}

// Path returns the document path
func (f *File) Path() string {
	return f.path
}

// Has reports whether binary already has a record
func (f *File) Has(_ context.Context, binary string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.records[binary]
	return ok, nil
}

// Append adds one record and persists the document
func (f *File) Append(_ context.Context, record *entities.BenchmarkRecord) error {
	if record == nil || record.Name == "" {
		return fmt.Errorf("summary record needs a name")
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	if _, ok := f.records[record.Name]; ok {
		return fmt.Errorf("%w: %s", ErrDuplicateRecord, record.Name)
	}

	next := make(map[string]*entities.BenchmarkRecord, len(f.records)+1)
	for k, v := range f.records {
		next[k] = v
	}
	next[record.Name] = record

	data, err := json.MarshalIndent(next, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode summary: %w", err)
	}
	if err := atomicfile.WriteFile(f.path, data, 0600); err != nil {
		return fmt.Errorf("failed to write summary: %w", err)
	}

	f.records = next
	return nil
}

// Records returns all records in name order
func (f *File) Records(_ context.Context) ([]*entities.BenchmarkRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return sorted(f.records), nil
}

// Read loads a summary document and returns its records in name order
func Read(path string) ([]*entities.BenchmarkRecord, error) {
	records, err := load(path)
	if err != nil {
		return nil, err
	}
	return sorted(records), nil
}

// NextRevisionPath returns path if it is free, otherwise the first free
// <base>_revN<ext> beside it
func NextRevisionPath(path string) string {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return path
	}
	ext := filepath.Ext(path)
	base := strings.TrimSuffix(path, ext)
	for n := 1; ; n++ {
		candidate := fmt.Sprintf("%s_rev%d%s", base, n, ext)
		if _, err := os.Stat(candidate); os.IsNotExist(err) {
			return candidate
		}
	}
}

func load(path string) (map[string]*entities.BenchmarkRecord, error) {
	//nolint:gosec // G304: Summary path is user-provided
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read summary: %w", err)
	}

	records := make(map[string]*entities.BenchmarkRecord)
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("failed to parse summary %s: %w", path, err)
	}
	for name, rec := range records {
		if rec == nil {
			delete(records, name)
			continue
		}
		if rec.Name == "" {
			rec.Name = name
		}
	}
	return records, nil
}

func sorted(records map[string]*entities.BenchmarkRecord) []*entities.BenchmarkRecord {
	out := make([]*entities.BenchmarkRecord, 0, len(records))
	for _, rec := range records {
		out = append(out, rec)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}
