package gateways

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"

	"github.com/ochairo/ripbench/internal/domain/entities"
)

// formatDetector is the subset of the binary inspector the finder needs
type formatDetector interface {
	DetectFormat(path string) (entities.FileFormat, error)
}

// BinaryFinder locates compiled binaries in a directory tree
type BinaryFinder struct {
	inspector formatDetector
}

// NewBinaryFinder creates a new binary finder
func NewBinaryFinder(inspector formatDetector) *BinaryFinder {
	return &BinaryFinder{inspector: inspector}
}

// FindRecursive returns every regular file under dir with a recognized
// executable format, sorted by path. Hidden directories are not entered.
func (f *BinaryFinder) FindRecursive(dir string) ([]string, error) {
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		return nil, fmt.Errorf("binary directory does not exist: %s", dir)
	}

	var binaries []string
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if path != dir && d.Name()[0] == '.' {
				return filepath.SkipDir
			}
			return nil
		}
		if !d.Type().IsRegular() {
			return nil
		}

		format, err := f.inspector.DetectFormat(path)
		if err != nil {
			return fmt.Errorf("failed to inspect %s: %w", path, err)
		}
		if format != entities.FormatUnknown {
			binaries = append(binaries, path)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.Strings(binaries)
	return binaries, nil
}
