package repositories

import (
	"context"

	"github.com/ochairo/ripbench/internal/domain/entities"
)

// CacheKey identifies a cached detection pair
type CacheKey struct {
	Binary     string
	Opt        entities.OptLevel
	NoAnalysis bool
}

// DetectionCache persists detection pairs so a sweep can skip the analyzer on resume
type DetectionCache interface {
	// Get returns the cached pair and whether it was present
	Get(ctx context.Context, key CacheKey) (*entities.DetectionPair, bool, error)

	// Put stores a pair; the write is atomic
	Put(ctx context.Context, key CacheKey, pair *entities.DetectionPair) error
}
