// Package services defines interfaces for domain service contracts.
package services

import (
	"github.com/ochairo/ripbench/internal/domain/entities"
)

// BenchmarkService defines the diff engine and metrics aggregator.
// Pure business logic: no I/O.
type BenchmarkService interface {
	// Compare returns the observations unique to each side, keyed by address only
	Compare(a, b []entities.FunctionObservation) (uniqueToA, uniqueToB []entities.FunctionObservation)

	// Classify splits ground truth vs. recovered into TP / FN / FP
	Classify(groundTruth, recovered []entities.FunctionObservation) entities.Confusion

	// Score computes precision, recall and F1; zero denominators are undefined
	Score(counts entities.Counts) entities.Score

	// Aggregate micro-averages a sweep
	Aggregate(records []*entities.BenchmarkRecord) entities.SweepScore

	// BuildRecord turns detection pairs into a summary record
	BuildRecord(name string, pair *entities.DetectionPair, noAnalysis *entities.DetectionPair) *entities.BenchmarkRecord
}
