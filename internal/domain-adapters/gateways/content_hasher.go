package gateways

import (
	"crypto/md5" //nolint:gosec // G501: md5 addresses legacy stores, not used for security
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"hash"
	"io"
	"os"

	"github.com/cespare/xxhash/v2"

	"github.com/ochairo/ripbench/internal/domain/entities"
)

// hashBufferSize bounds memory use regardless of file size
const hashBufferSize = 64 * 1024

// contentHasher computes streaming content digests for store addressing
type contentHasher struct {
	algorithm entities.HashAlgorithm
}

// NewContentHasher creates a hasher for the given algorithm (sha256 when empty)
//
//nolint:revive // unexported-return: Intentionally returns concrete type for testability
func NewContentHasher(algorithm entities.HashAlgorithm) (*contentHasher, error) {
	if algorithm == "" {
		algorithm = entities.HashSHA256
	}
	h := &contentHasher{algorithm: algorithm}
	if _, err := h.newHash(); err != nil {
		return nil, err
	}
	return h, nil
}

// Algorithm returns the digest algorithm in use
func (h *contentHasher) Algorithm() entities.HashAlgorithm {
	return h.algorithm
}

func (h *contentHasher) newHash() (hash.Hash, error) {
	switch h.algorithm {
	case entities.HashSHA256:
		return sha256.New(), nil
	case entities.HashMD5:
		//nolint:gosec // G401: see import
		return md5.New(), nil
	case entities.HashXXH64:
		return xxhash.New(), nil
	default:
		return nil, fmt.Errorf("unsupported hash algorithm: %s", h.algorithm)
	}
}

// HashFile digests a file with a fixed-size buffer
func (h *contentHasher) HashFile(filePath string) (entities.ContentHash, error) {
	//nolint:gosec // G304: File path is user-provided for hashing
	f, err := os.Open(filePath)
	if err != nil {
		return "", fmt.Errorf("failed to open file: %w", err)
	}
	//nolint:errcheck // Defer close on read-only file
	defer f.Close()

	return h.HashReader(f)
}

// HashReader digests everything read from r
func (h *contentHasher) HashReader(r io.Reader) (entities.ContentHash, error) {
	digest, err := h.newHash()
	if err != nil {
		return "", err
	}

	buf := make([]byte, hashBufferSize)
	if _, err := io.CopyBuffer(digest, r, buf); err != nil {
		return "", fmt.Errorf("failed to hash file: %w", err)
	}

	return entities.ContentHash(hex.EncodeToString(digest.Sum(nil))), nil
}

// VerifyHash checks a file against an expected digest
func (h *contentHasher) VerifyHash(filePath string, expected entities.ContentHash) error {
	actual, err := h.HashFile(filePath)
	if err != nil {
		return err
	}

	if actual != expected {
		return fmt.Errorf("hash mismatch: expected %s, got %s", expected, actual)
	}

	return nil
}
