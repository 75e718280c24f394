// Package services implements domain business logic and use cases.
package services

import (
	"time"

	"github.com/ochairo/ripbench/internal/domain/entities"
	"github.com/ochairo/ripbench/internal/domain/interfaces/services"
)

// benchmarkService implements BenchmarkService with pure business logic
type benchmarkService struct{}

// NewBenchmarkService creates the diff engine / metrics aggregator
func NewBenchmarkService() services.BenchmarkService {
	return &benchmarkService{}
}

// Compare computes the address-keyed set difference of two detections.
// Names are ignored: the same address under two names is the same function.
// Output preserves input order and holds each address once.
func (s *benchmarkService) Compare(a, b []entities.FunctionObservation) (uniqueToA, uniqueToB []entities.FunctionObservation) {
	inA := addressSet(a)
	inB := addressSet(b)
	return subtract(a, inB), subtract(b, inA)
}

// Classify splits ground truth vs. recovered observations.
// TP = recovered ∩ groundTruth, FN = groundTruth − recovered, FP = recovered − groundTruth.
func (s *benchmarkService) Classify(groundTruth, recovered []entities.FunctionObservation) entities.Confusion {
	fn, fp := s.Compare(groundTruth, recovered)
	inTruth := addressSet(groundTruth)

	tp := make([]entities.FunctionObservation, 0)
	seen := make(map[entities.Address]struct{}, len(recovered))
	for _, obs := range recovered {
		if _, dup := seen[obs.Address]; dup {
			continue
		}
		seen[obs.Address] = struct{}{}
		if _, ok := inTruth[obs.Address]; ok {
			tp = append(tp, obs)
		}
	}

	return entities.Confusion{
		TruePositives:  tp,
		FalseNegatives: fn,
		FalsePositives: fp,
	}
}

// Score computes precision, recall and F1 from counts.
// Any zero denominator yields entities.Undefined instead of failing.
func (s *benchmarkService) Score(c entities.Counts) entities.Score {
	tp := float64(c.TruePositives)
	precision := entities.RatioOf(tp, tp+float64(c.FalsePositives))
	recall := entities.RatioOf(tp, tp+float64(c.FalseNegatives))

	f1 := entities.Undefined
	if precision.Defined && recall.Defined {
		f1 = entities.RatioOf(2*precision.Value*recall.Value, precision.Value+recall.Value)
	}

	return entities.Score{Precision: precision, Recall: recall, F1: f1}
}

// Aggregate micro-averages a sweep: counts are summed across binaries
// before any ratio is computed. The macro score (mean of per-binary
// ratios, undefined ratios excluded) is filled in for reference only.
func (s *benchmarkService) Aggregate(records []*entities.BenchmarkRecord) entities.SweepScore {
	out := entities.SweepScore{}
	var macroP, macroR, macroF meanAcc

	for _, rec := range records {
		if rec == nil {
			continue
		}
		out.Binaries++
		out.Counts = out.Counts.Add(rec.Counts())
		out.NonstrippedWallTime += secondsToDuration(rec.NonstrippedWallTime)
		out.StrippedWallTime += secondsToDuration(rec.StrippedWallTime)

		score := rec.Score()
		if !score.Defined() {
			out.UndefinedBinaries++
		}
		macroP.add(score.Precision)
		macroR.add(score.Recall)
		macroF.add(score.F1)
	}

	out.Micro = s.Score(out.Counts)
	out.Macro = entities.Score{
		Precision: macroP.mean(),
		Recall:    macroR.mean(),
		F1:        macroF.mean(),
	}
	return out
}

// AggregateNoAnalysis micro-averages the no-analysis variant of the records that carry one
func AggregateNoAnalysis(svc services.BenchmarkService, records []*entities.BenchmarkRecord) (entities.SweepScore, bool) {
	variants := make([]*entities.BenchmarkRecord, 0, len(records))
	for _, rec := range records {
		if rec != nil && rec.NoAnalysis != nil {
			variants = append(variants, &entities.BenchmarkRecord{Name: rec.Name, Outcome: *rec.NoAnalysis})
		}
	}
	if len(variants) == 0 {
		return entities.SweepScore{}, false
	}
	return svc.Aggregate(variants), true
}

// BuildRecord classifies the nonstripped detection as ground truth and the
// stripped detection as recovered, for the main pair and the optional
// no-analysis pair.
func (s *benchmarkService) BuildRecord(name string, pair *entities.DetectionPair, noAnalysis *entities.DetectionPair) *entities.BenchmarkRecord {
	rec := &entities.BenchmarkRecord{
		Name:    name,
		Outcome: s.outcome(pair),
	}
	if noAnalysis != nil {
		o := s.outcome(noAnalysis)
		rec.NoAnalysis = &o
	}
	return rec
}

func (s *benchmarkService) outcome(pair *entities.DetectionPair) entities.Outcome {
	confusion := s.Classify(pair.Nonstripped.Functions, pair.Stripped.Functions)
	score := s.Score(confusion.Counts())
	return entities.Outcome{
		TruePos:             confusion.TruePositives,
		FalseNeg:            confusion.FalseNegatives,
		FalsePos:            confusion.FalsePositives,
		Precision:           score.Precision,
		Recall:              score.Recall,
		F1:                  score.F1,
		NonstrippedWallTime: pair.Nonstripped.WallTime.Seconds(),
		StrippedWallTime:    pair.Stripped.WallTime.Seconds(),
	}
}

func addressSet(obs []entities.FunctionObservation) map[entities.Address]struct{} {
	set := make(map[entities.Address]struct{}, len(obs))
	for _, o := range obs {
		set[o.Address] = struct{}{}
	}
	return set
}

// subtract returns the observations of from whose address is not in exclude
func subtract(from []entities.FunctionObservation, exclude map[entities.Address]struct{}) []entities.FunctionObservation {
	out := make([]entities.FunctionObservation, 0)
	seen := make(map[entities.Address]struct{}, len(from))
	for _, o := range from {
		if _, dup := seen[o.Address]; dup {
			continue
		}
		seen[o.Address] = struct{}{}
		if _, ok := exclude[o.Address]; !ok {
			out = append(out, o)
		}
	}
	return out
}

type meanAcc struct {
	sum float64
	n   int
}

func (m *meanAcc) add(r entities.Ratio) {
	if !r.Defined {
		return
	}
	m.sum += r.Value
	m.n++
}

func (m *meanAcc) mean() entities.Ratio {
	return entities.RatioOf(m.sum, float64(m.n))
}

func secondsToDuration(s float64) time.Duration {
	return time.Duration(s * float64(time.Second))
}
