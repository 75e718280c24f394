package orchestrators

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/ochairo/ripbench/internal/domain/entities"
	"github.com/ochairo/ripbench/internal/domain/interfaces"
	"github.com/ochairo/ripbench/internal/domain/interfaces/gateways"
	"github.com/ochairo/ripbench/internal/domain/interfaces/repositories"
	"github.com/ochairo/ripbench/internal/domain/interfaces/services"
	benchsvc "github.com/ochairo/ripbench/internal/domain/services"
)

// Per-binary sweep outcomes
const (
	OutcomeComputed = "computed"
	OutcomeCached   = "cached"
	OutcomeSkipped  = "skipped"
	OutcomeFailed   = "failed"
)

// CorpusEntry is one binary to benchmark. Name keys the summary and the cache.
type CorpusEntry struct {
	Name string
	Path string
}

// SweepMetrics receives sweep progress
type SweepMetrics interface {
	BinaryDone(outcome string)
	AnalyzerRun(label string, d time.Duration)
	ObserveScore(score entities.SweepScore)
}

// SweepConfig holds configuration for the sweep orchestrator
type SweepConfig struct {
	Opt               entities.OptLevel
	Workers           int
	CompareNoAnalysis bool
	// UseCache reads cached detection pairs; entries are written either way
	UseCache   bool
	ScratchDir string
}

// SweepOrchestrator drives a resumable benchmark sweep over a corpus
type SweepOrchestrator struct {
	detector gateways.FunctionDetector
	stripper gateways.Stripper
	cache    repositories.DetectionCache
	summary  repositories.SummaryRepository
	bench    services.BenchmarkService
	metrics  SweepMetrics
	logger   interfaces.Logger
	config   SweepConfig

	appendMu sync.Mutex
}

// NewSweepOrchestrator creates a sweep orchestrator. cache and metrics may be nil.
func NewSweepOrchestrator(
	detector gateways.FunctionDetector,
	stripper gateways.Stripper,
	cache repositories.DetectionCache,
	summary repositories.SummaryRepository,
	bench services.BenchmarkService,
	metrics SweepMetrics,
	logger interfaces.Logger,
	config SweepConfig,
) *SweepOrchestrator {
	if config.Workers < 1 {
		config.Workers = 1
	}
	if metrics == nil {
		metrics = noopMetrics{}
	}
	return &SweepOrchestrator{
		detector: detector,
		stripper: stripper,
		cache:    cache,
		summary:  summary,
		bench:    bench,
		metrics:  metrics,
		logger:   interfaces.OrNoOp(logger),
		config:   config,
	}
}

// SweepFailure records one binary that could not be benchmarked
type SweepFailure struct {
	Name string
	Err  error
}

// SweepResult contains the result of a sweep
type SweepResult struct {
	RunID     string
	Processed int
	Cached    int
	Skipped   int
	Failed    int
	Failures  []SweepFailure
	Score     entities.SweepScore
	// NoAnalysisScore is nil unless some record carries the no-analysis variant
	NoAnalysisScore *entities.SweepScore
	Duration        time.Duration
}

// Run benchmarks every corpus entry not yet in the summary. Per-binary
// failures are counted and the sweep continues; cancellation stops it and
// leaves only fully completed records behind.
func (o *SweepOrchestrator) Run(ctx context.Context, corpus []CorpusEntry) (*SweepResult, error) {
	startTime := time.Now()
	result := &SweepResult{RunID: uuid.NewString()}
	log := o.logger.With(interfaces.F("run_id", result.RunID), interfaces.F("opt", string(o.config.Opt)))

	pending := make([]CorpusEntry, 0, len(corpus))
	for _, entry := range corpus {
		done, err := o.summary.Has(ctx, entry.Name)
		if err != nil {
			return nil, fmt.Errorf("failed to read summary: %w", err)
		}
		if done {
			result.Skipped++
			o.metrics.BinaryDone(OutcomeSkipped)
			continue
		}
		pending = append(pending, entry)
	}

	log.Info("Starting sweep",
		interfaces.F("corpus", len(corpus)),
		interfaces.F("pending", len(pending)),
		interfaces.F("resumed", result.Skipped),
		interfaces.F("workers", o.config.Workers))

	scratch, err := o.scratchRoot(result.RunID)
	if err != nil {
		return nil, err
	}
	//nolint:errcheck // Best-effort removal of per-run scratch space
	defer os.RemoveAll(scratch)

	var mu sync.Mutex
	jobs := make(chan CorpusEntry)
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		defer close(jobs)
		for _, entry := range pending {
			select {
			case jobs <- entry:
			case <-gctx.Done():
				return gctx.Err()
			}
		}
		return nil
	})

	for n := 0; n < o.config.Workers; n++ {
		workspace := filepath.Join(scratch, fmt.Sprintf("worker-%d", n))
		g.Go(func() error {
			if err := os.MkdirAll(workspace, 0750); err != nil {
				return fmt.Errorf("failed to create worker workspace: %w", err)
			}
			for entry := range jobs {
				outcome, err := o.benchmarkOne(gctx, workspace, entry)
				if gctx.Err() != nil {
					return gctx.Err()
				}

				mu.Lock()
				switch {
				case err != nil:
					result.Failed++
					result.Failures = append(result.Failures, SweepFailure{Name: entry.Name, Err: err})
				case outcome == OutcomeCached:
					result.Cached++
					result.Processed++
				default:
					result.Processed++
				}
				mu.Unlock()

				if err != nil {
					var fatal *summaryError
					if errors.As(err, &fatal) {
						return err
					}
					log.Error("Benchmark failed", interfaces.F("binary", entry.Name), interfaces.Err(err))
					o.metrics.BinaryDone(OutcomeFailed)
					continue
				}
				o.metrics.BinaryDone(outcome)
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		result.Duration = time.Since(startTime)
		return result, err
	}

	records, err := o.summary.Records(ctx)
	if err != nil {
		return result, fmt.Errorf("failed to read summary: %w", err)
	}
	result.Score = o.bench.Aggregate(records)
	if na, ok := benchsvc.AggregateNoAnalysis(o.bench, records); ok {
		result.NoAnalysisScore = &na
	}
	o.metrics.ObserveScore(result.Score)
	result.Duration = time.Since(startTime)

	log.Info("Sweep complete",
		interfaces.F("processed", result.Processed),
		interfaces.F("cached", result.Cached),
		interfaces.F("failed", result.Failed),
		interfaces.F("precision", result.Score.Micro.Precision.String()),
		interfaces.F("recall", result.Score.Micro.Recall.String()),
		interfaces.F("f1", result.Score.Micro.F1.String()))

	return result, nil
}

// summaryError marks an append failure, which stops the sweep
type summaryError struct {
	err error
}

func (e *summaryError) Error() string {
	return fmt.Sprintf("failed to append summary record: %v", e.err)
}

func (e *summaryError) Unwrap() error {
	return e.err
}

func (o *SweepOrchestrator) scratchRoot(runID string) (string, error) {
	base := o.config.ScratchDir
	if base == "" {
		base = os.TempDir()
	}
	root := filepath.Join(base, "ripbench-"+runID)
	if err := os.MkdirAll(root, 0750); err != nil {
		return "", fmt.Errorf("failed to create scratch directory: %w", err)
	}
	return root, nil
}

// benchmarkOne produces and appends the summary record of one binary
func (o *SweepOrchestrator) benchmarkOne(ctx context.Context, workspace string, entry CorpusEntry) (string, error) {
	var stripped string
	defer func() {
		if stripped != "" {
			//nolint:errcheck // Best-effort removal of the stripped copy
			os.Remove(stripped)
		}
	}()
	strip := func() (string, error) {
		if stripped != "" {
			return stripped, nil
		}
		dst := filepath.Join(workspace, "stripped", entry.Name)
		if err := o.stripper.Strip(ctx, entry.Path, dst); err != nil {
			return "", fmt.Errorf("failed to strip %s: %w", entry.Name, err)
		}
		stripped = dst
		return dst, nil
	}

	pair, cached, err := o.detectionPair(ctx, workspace, entry, false, strip)
	if err != nil {
		return "", err
	}

	var naPair *entities.DetectionPair
	if o.config.CompareNoAnalysis {
		var naCached bool
		naPair, naCached, err = o.detectionPair(ctx, workspace, entry, true, strip)
		if err != nil {
			return "", err
		}
		cached = cached && naCached
	}

	record := o.bench.BuildRecord(entry.Name, pair, naPair)

	o.appendMu.Lock()
	err = o.summary.Append(ctx, record)
	o.appendMu.Unlock()
	if err != nil {
		return "", &summaryError{err: err}
	}

	o.logger.Debug("Benchmarked binary",
		interfaces.F("binary", entry.Name),
		interfaces.F("cached", cached),
		interfaces.F("f1", record.F1.String()))

	if cached {
		return OutcomeCached, nil
	}
	return OutcomeComputed, nil
}

// detectionPair returns the cached pair for the binary, or runs the detector
// on the original and the stripped copy and caches the result
func (o *SweepOrchestrator) detectionPair(ctx context.Context, workspace string, entry CorpusEntry, noAnalysis bool, strip func() (string, error)) (*entities.DetectionPair, bool, error) {
	key := repositories.CacheKey{Binary: entry.Name, Opt: o.config.Opt, NoAnalysis: noAnalysis}

	if o.cache != nil && o.config.UseCache {
		pair, ok, err := o.cache.Get(ctx, key)
		if err != nil {
			return nil, false, fmt.Errorf("failed to read cache: %w", err)
		}
		if ok {
			return pair, true, nil
		}
	}

	strippedPath, err := strip()
	if err != nil {
		return nil, false, err
	}

	nonstripped, err := o.detect(ctx, workspace, entry.Path, entities.LabelNonstripped, noAnalysis)
	if err != nil {
		return nil, false, err
	}
	stripped, err := o.detect(ctx, workspace, strippedPath, entities.LabelStripped, noAnalysis)
	if err != nil {
		return nil, false, err
	}

	uniqueNonstripped, uniqueStripped := o.bench.Compare(nonstripped.Functions, stripped.Functions)
	pair := &entities.DetectionPair{
		Nonstripped:       *nonstripped,
		UniqueNonstripped: uniqueNonstripped,
		Stripped:          *stripped,
		UniqueStripped:    uniqueStripped,
	}

	if o.cache != nil {
		if err := o.cache.Put(ctx, key, pair); err != nil {
			return nil, false, fmt.Errorf("failed to write cache: %w", err)
		}
	}
	return pair, false, nil
}

func (o *SweepOrchestrator) detect(ctx context.Context, workspace, path, label string, noAnalysis bool) (*entities.DetectionResult, error) {
	result, err := o.detector.Detect(ctx, path, gateways.DetectOptions{
		Workspace:  workspace,
		NoAnalysis: noAnalysis,
		Label:      label,
	})
	if err != nil {
		return nil, fmt.Errorf("%s detection failed: %w", label, err)
	}
	result.Label = label
	o.metrics.AnalyzerRun(label, result.WallTime)
	return result, nil
}

// SelectCorpus lists the store records at the given optimization level whose
// binary was saved. Names are unique; the first record in scan order wins.
func SelectCorpus(ctx context.Context, store repositories.AnalysisStore, opt entities.OptLevel, logger interfaces.Logger) ([]CorpusEntry, error) {
	logger = interfaces.OrNoOp(logger)
	corpus := make([]CorpusEntry, 0)
	seen := make(map[string]string)

	for result := range store.Scan(ctx) {
		if result.Skipped() {
			var malformed *entities.MalformedMetadataError
			if errors.As(result.Err, &malformed) {
				continue
			}
			return nil, result.Err
		}

		record := result.Record
		if !opt.Matches(record.Metadata.Optimization) || record.BinaryPath == "" {
			continue
		}
		name := record.Metadata.BinaryName
		if first, dup := seen[name]; dup {
			logger.Warn("Duplicate binary name in corpus",
				interfaces.F("binary", name),
				interfaces.F("kept", filepath.Base(first)),
				interfaces.F("ignored", filepath.Base(record.Dir)))
			continue
		}
		seen[name] = record.Dir
		corpus = append(corpus, CorpusEntry{Name: name, Path: record.BinaryPath})
	}
	return corpus, nil
}

// CorpusFromPaths names each binary by its base name. Later duplicates are dropped.
func CorpusFromPaths(paths []string, logger interfaces.Logger) []CorpusEntry {
	logger = interfaces.OrNoOp(logger)
	corpus := make([]CorpusEntry, 0, len(paths))
	seen := make(map[string]string, len(paths))
	for _, path := range paths {
		name := filepath.Base(path)
		if first, dup := seen[name]; dup {
			logger.Warn("Duplicate binary name in corpus",
				interfaces.F("binary", name),
				interfaces.F("kept", first),
				interfaces.F("ignored", path))
			continue
		}
		seen[name] = path
		corpus = append(corpus, CorpusEntry{Name: name, Path: path})
	}
	return corpus
}

type noopMetrics struct{}

func (noopMetrics) BinaryDone(string)                 {}
func (noopMetrics) AnalyzerRun(string, time.Duration) {}
func (noopMetrics) ObserveScore(entities.SweepScore)  {}
