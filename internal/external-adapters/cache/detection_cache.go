// Package cache persists detection pairs per (binary, optimization level)
// so an interrupted sweep resumes without re-running the analyzer.
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/ochairo/ripbench/internal/domain/entities"
	"github.com/ochairo/ripbench/internal/domain/interfaces"
	"github.com/ochairo/ripbench/internal/domain/interfaces/repositories"
	"github.com/ochairo/ripbench/internal/external-adapters/atomicfile"
)

// FileCache implements repositories.DetectionCache with one JSON document per key:
// <dir>/<binary>_<OPT>.json, or <binary>_<OPT>_noanalysis.json for the variant
type FileCache struct {
	dir    string
	logger interfaces.Logger
}

var _ repositories.DetectionCache = (*FileCache)(nil)

// NewFileCache creates a cache rooted at dir
func NewFileCache(dir string, logger interfaces.Logger) *FileCache {
	return &FileCache{dir: dir, logger: interfaces.OrNoOp(logger)}
}

// Path returns the document path for a key
func (c *FileCache) Path(key repositories.CacheKey) string {
	name := fmt.Sprintf("%s_%s", key.Binary, key.Opt)
	if key.NoAnalysis {
		name += "_noanalysis"
	}
	return filepath.Join(c.dir, name+".json")
}

// Get returns the cached pair. A missing or unreadable document is a miss.
func (c *FileCache) Get(_ context.Context, key repositories.CacheKey) (*entities.DetectionPair, bool, error) {
	if err := validateKey(key); err != nil {
		return nil, false, err
	}

	path := c.Path(key)
	//nolint:gosec // G304: Path is derived from the cache dir and binary name
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("failed to read cache entry: %w", err)
	}

	var doc map[string]*entities.DetectionPair
	if err := json.Unmarshal(data, &doc); err != nil {
		c.logger.Warn("Ignoring corrupt cache entry", interfaces.F("path", path), interfaces.Err(err))
		return nil, false, nil
	}

	pair, ok := doc[key.Binary]
	if !ok || pair == nil {
		return nil, false, nil
	}
	return pair, true, nil
}

// Put atomically writes the pair for key
func (c *FileCache) Put(_ context.Context, key repositories.CacheKey, pair *entities.DetectionPair) error {
	if err := validateKey(key); err != nil {
		return err
	}
	if pair == nil {
		return fmt.Errorf("nil detection pair")
	}

	data, err := json.Marshal(map[string]*entities.DetectionPair{key.Binary: pair})
	if err != nil {
		return fmt.Errorf("failed to encode cache entry: %w", err)
	}
	if err := atomicfile.WriteFile(c.Path(key), data, 0600); err != nil {
		return fmt.Errorf("failed to write cache entry: %w", err)
	}
	return nil
}

func validateKey(key repositories.CacheKey) error {
	if key.Binary == "" || strings.ContainsAny(key.Binary, `/\`) {
		return fmt.Errorf("invalid cache key binary: %q", key.Binary)
	}
	if key.Opt == "" {
		return fmt.Errorf("cache key for %s has no optimization level", key.Binary)
	}
	return nil
}
