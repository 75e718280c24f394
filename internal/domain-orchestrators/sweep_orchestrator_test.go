package orchestrators

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"iter"
	"maps"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/ochairo/ripbench/internal/domain/entities"
	"github.com/ochairo/ripbench/internal/domain/interfaces/gateways"
	"github.com/ochairo/ripbench/internal/domain/interfaces/repositories"
	"github.com/ochairo/ripbench/internal/domain/services"
)

// Mock implementations for testing
type mockDetector struct {
	mu         sync.Mutex
	calls      int
	workspaces map[string]bool
	noAnalysis int
	failOn     string
	cancelOn   string
	cancel     context.CancelFunc
}

// functionsFor is deterministic: the stripped run finds every third
// function at the wrong address and misses none.
func functionsFor(name, label string) []entities.FunctionObservation {
	n := len(name) + 3
	out := make([]entities.FunctionObservation, 0, n)
	for i := 0; i < n; i++ {
		addr := entities.Address(0x1000 + 0x10*i)
		if label == entities.LabelStripped && i%3 == 0 {
			addr += 4
		}
		fname := fmt.Sprintf("%s_f%d", name, i)
		if label == entities.LabelStripped {
			fname = fmt.Sprintf("FUN_%08x", uint64(addr))
		}
		out = append(out, entities.Fn(fname, addr))
	}
	return out
}

func (m *mockDetector) Detect(ctx context.Context, binaryPath string, opts gateways.DetectOptions) (*entities.DetectionResult, error) {
	name := filepath.Base(binaryPath)

	m.mu.Lock()
	m.calls++
	if m.workspaces == nil {
		m.workspaces = make(map[string]bool)
	}
	m.workspaces[opts.Workspace] = true
	if opts.NoAnalysis {
		m.noAnalysis++
	}
	m.mu.Unlock()

	if name == m.cancelOn && m.cancel != nil {
		m.cancel()
		return nil, ctx.Err()
	}
	if name == m.failOn {
		return nil, &entities.AnalyzerInvocationError{Binary: binaryPath, ExitCode: 1}
	}

	wall := 2 * time.Second
	if opts.Label == entities.LabelStripped {
		wall = time.Second
	}
	return &entities.DetectionResult{
		Label:     opts.Label,
		Functions: functionsFor(name, opts.Label),
		WallTime:  wall,
	}, nil
}

type mockStripper struct {
	mu    sync.Mutex
	calls int
}

func (m *mockStripper) Strip(_ context.Context, _, dst string) error {
	m.mu.Lock()
	m.calls++
	m.mu.Unlock()
	if err := os.MkdirAll(filepath.Dir(dst), 0750); err != nil {
		return err
	}
	return os.WriteFile(dst, []byte("stripped"), 0600)
}

type mockSummary struct {
	mu      sync.Mutex
	records map[string]*entities.BenchmarkRecord
}

func newMockSummary() *mockSummary {
	return &mockSummary{records: make(map[string]*entities.BenchmarkRecord)}
}

func (m *mockSummary) Has(_ context.Context, binary string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.records[binary]
	return ok, nil
}

func (m *mockSummary) Append(_ context.Context, record *entities.BenchmarkRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.records[record.Name]; ok {
		return fmt.Errorf("duplicate record %s", record.Name)
	}
	m.records[record.Name] = record
	return nil
}

func (m *mockSummary) Records(_ context.Context) ([]*entities.BenchmarkRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*entities.BenchmarkRecord, 0, len(m.records))
	for _, name := range slices.Sorted(maps.Keys(m.records)) {
		out = append(out, m.records[name])
	}
	return out, nil
}

type mockCache struct {
	mu    sync.Mutex
	pairs map[repositories.CacheKey][]byte
}

func newMockCache() *mockCache {
	return &mockCache{pairs: make(map[repositories.CacheKey][]byte)}
}

// Pairs round trip through JSON like the file cache does
func (m *mockCache) Get(_ context.Context, key repositories.CacheKey) (*entities.DetectionPair, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	data, ok := m.pairs[key]
	if !ok {
		return nil, false, nil
	}
	var pair entities.DetectionPair
	if err := json.Unmarshal(data, &pair); err != nil {
		return nil, false, err
	}
	return &pair, true, nil
}

func (m *mockCache) Put(_ context.Context, key repositories.CacheKey, pair *entities.DetectionPair) error {
	data, err := json.Marshal(pair)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pairs[key] = data
	return nil
}

type mockMetrics struct {
	mu       sync.Mutex
	outcomes map[string]int
	runs     int
	score    *entities.SweepScore
}

func (m *mockMetrics) BinaryDone(outcome string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.outcomes == nil {
		m.outcomes = make(map[string]int)
	}
	m.outcomes[outcome]++
}

func (m *mockMetrics) AnalyzerRun(_ string, _ time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.runs++
}

func (m *mockMetrics) ObserveScore(score entities.SweepScore) {
	m.score = &score
}

func testCorpus(names ...string) []CorpusEntry {
	corpus := make([]CorpusEntry, 0, len(names))
	for _, name := range names {
		corpus = append(corpus, CorpusEntry{Name: name, Path: filepath.Join("/corpus", name)})
	}
	return corpus
}

type sweepFixture struct {
	detector *mockDetector
	stripper *mockStripper
	cache    *mockCache
	summary  *mockSummary
	metrics  *mockMetrics
}

func newSweepFixture() *sweepFixture {
	return &sweepFixture{
		detector: &mockDetector{},
		stripper: &mockStripper{},
		cache:    newMockCache(),
		summary:  newMockSummary(),
		metrics:  &mockMetrics{},
	}
}

func (f *sweepFixture) orchestrator(t *testing.T, config SweepConfig) *SweepOrchestrator {
	t.Helper()
	config.Opt = entities.OptO2
	config.ScratchDir = t.TempDir()
	return NewSweepOrchestrator(f.detector, f.stripper, f.cache, f.summary,
		services.NewBenchmarkService(), f.metrics, nil, config)
}

func summaryJSON(t *testing.T, s *mockSummary) string {
	t.Helper()
	records, _ := s.Records(context.Background())
	data, err := json.Marshal(records)
	if err != nil {
		t.Fatal(err)
	}
	return string(data)
}

func TestSweepOrchestrator_Run(t *testing.T) {
	f := newSweepFixture()
	o := f.orchestrator(t, SweepConfig{UseCache: true})

	result, err := o.Run(context.Background(), testCorpus("alpha", "beta", "gamma"))
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if result.Processed != 3 || result.Failed != 0 || result.Skipped != 0 || result.Cached != 0 {
		t.Errorf("Run() = %+v", result)
	}
	if result.RunID == "" {
		t.Error("RunID should be set")
	}
	if f.detector.calls != 6 || f.stripper.calls != 3 {
		t.Errorf("detector calls = %d, strip calls = %d", f.detector.calls, f.stripper.calls)
	}
	if len(f.cache.pairs) != 3 {
		t.Errorf("cache entries = %d, want 3", len(f.cache.pairs))
	}

	// alpha: 8 functions, 3 moved; beta: 7 functions, 3 moved; gamma: 8, 3 moved
	wantTP := (8 - 3) + (7 - 3) + (8 - 3)
	if result.Score.Counts.TruePositives != wantTP || result.Score.Counts.FalseNegatives != 9 || result.Score.Counts.FalsePositives != 9 {
		t.Errorf("Counts = %+v", result.Score.Counts)
	}
	if result.Score.NonstrippedWallTime != 6*time.Second || result.Score.StrippedWallTime != 3*time.Second {
		t.Errorf("wall times = %v / %v", result.Score.NonstrippedWallTime, result.Score.StrippedWallTime)
	}
	if result.NoAnalysisScore != nil {
		t.Error("NoAnalysisScore should be nil without the no-analysis variant")
	}

	if f.metrics.outcomes[OutcomeComputed] != 3 || f.metrics.runs != 6 || f.metrics.score == nil {
		t.Errorf("metrics = %+v", f.metrics)
	}
}

func TestSweepOrchestrator_ResumeProducesIdenticalSummary(t *testing.T) {
	corpus := testCorpus("a1", "b22", "c333", "d4444", "e55555")

	straight := newSweepFixture()
	if _, err := straight.orchestrator(t, SweepConfig{UseCache: true}).Run(context.Background(), corpus); err != nil {
		t.Fatalf("uninterrupted Run() error = %v", err)
	}

	interrupted := newSweepFixture()
	ctx, cancel := context.WithCancel(context.Background())
	interrupted.detector.cancelOn = "c333"
	interrupted.detector.cancel = cancel

	_, err := interrupted.orchestrator(t, SweepConfig{UseCache: true}).Run(ctx, corpus)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("interrupted Run() error = %v, want context.Canceled", err)
	}
	if len(interrupted.summary.records) != 2 {
		t.Fatalf("interrupted summary holds %d records, want 2", len(interrupted.summary.records))
	}
	if _, partial := interrupted.summary.records["c333"]; partial {
		t.Fatal("interrupted binary must not be recorded")
	}

	interrupted.detector = &mockDetector{}
	result, err := interrupted.orchestrator(t, SweepConfig{UseCache: true}).Run(context.Background(), corpus)
	if err != nil {
		t.Fatalf("resumed Run() error = %v", err)
	}
	if result.Skipped != 2 || result.Processed != 3 {
		t.Errorf("resumed Run() = %+v", result)
	}

	if got, want := summaryJSON(t, interrupted.summary), summaryJSON(t, straight.summary); got != want {
		t.Errorf("resumed summary differs\n got: %s\nwant: %s", got, want)
	}
}

func TestSweepOrchestrator_UsesCache(t *testing.T) {
	f := newSweepFixture()

	// Warm the cache with a first sweep, then sweep into a fresh summary
	if _, err := f.orchestrator(t, SweepConfig{UseCache: true}).Run(context.Background(), testCorpus("x", "y")); err != nil {
		t.Fatal(err)
	}
	first := summaryJSON(t, f.summary)

	f.summary = newMockSummary()
	f.detector = &mockDetector{}
	f.stripper = &mockStripper{}
	result, err := f.orchestrator(t, SweepConfig{UseCache: true}).Run(context.Background(), testCorpus("x", "y"))
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if result.Cached != 2 || f.detector.calls != 0 || f.stripper.calls != 0 {
		t.Errorf("cached = %d, detector calls = %d, strip calls = %d", result.Cached, f.detector.calls, f.stripper.calls)
	}
	if got := summaryJSON(t, f.summary); got != first {
		t.Errorf("summary rebuilt from cache differs\n got: %s\nwant: %s", got, first)
	}

	// With the cache disabled the detector runs again
	f.summary = newMockSummary()
	if _, err := f.orchestrator(t, SweepConfig{UseCache: false}).Run(context.Background(), testCorpus("x")); err != nil {
		t.Fatal(err)
	}
	if f.detector.calls != 2 {
		t.Errorf("detector calls = %d, want 2 with the cache disabled", f.detector.calls)
	}
}

func TestSweepOrchestrator_FailureContinues(t *testing.T) {
	f := newSweepFixture()
	f.detector.failOn = "bad"

	result, err := f.orchestrator(t, SweepConfig{}).Run(context.Background(), testCorpus("ok1", "bad", "ok2"))
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if result.Failed != 1 || result.Processed != 2 {
		t.Errorf("Run() = %+v", result)
	}
	if len(result.Failures) != 1 || result.Failures[0].Name != "bad" {
		t.Fatalf("Failures = %+v", result.Failures)
	}
	var invErr *entities.AnalyzerInvocationError
	if !errors.As(result.Failures[0].Err, &invErr) {
		t.Errorf("failure error = %v, want AnalyzerInvocationError", result.Failures[0].Err)
	}
	if _, ok := f.summary.records["bad"]; ok {
		t.Error("failed binary must not be recorded")
	}
	if f.metrics.outcomes[OutcomeFailed] != 1 {
		t.Errorf("failed metric = %d", f.metrics.outcomes[OutcomeFailed])
	}
}

func TestSweepOrchestrator_Workers(t *testing.T) {
	f := newSweepFixture()
	names := make([]string, 0, 12)
	for i := 0; i < 12; i++ {
		names = append(names, fmt.Sprintf("bin%02d", i))
	}

	result, err := f.orchestrator(t, SweepConfig{Workers: 4}).Run(context.Background(), testCorpus(names...))
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if result.Processed != 12 || len(f.summary.records) != 12 {
		t.Errorf("processed = %d, records = %d", result.Processed, len(f.summary.records))
	}

	for ws := range f.detector.workspaces {
		if !strings.HasPrefix(filepath.Base(ws), "worker-") {
			t.Errorf("workspace %s is not a worker workspace", ws)
		}
	}
	if len(f.detector.workspaces) > 4 {
		t.Errorf("%d workspaces used by 4 workers", len(f.detector.workspaces))
	}
}

func TestSweepOrchestrator_NoAnalysisVariant(t *testing.T) {
	f := newSweepFixture()

	result, err := f.orchestrator(t, SweepConfig{CompareNoAnalysis: true}).Run(context.Background(), testCorpus("n1", "n2"))
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if f.detector.noAnalysis != 4 {
		t.Errorf("no-analysis detector calls = %d, want 4", f.detector.noAnalysis)
	}
	if f.stripper.calls != 2 {
		t.Errorf("strip calls = %d, want one per binary", f.stripper.calls)
	}
	if result.NoAnalysisScore == nil || result.NoAnalysisScore.Binaries != 2 {
		t.Errorf("NoAnalysisScore = %+v", result.NoAnalysisScore)
	}
	for name, rec := range f.summary.records {
		if rec.NoAnalysis == nil {
			t.Errorf("record %s lacks the no-analysis outcome", name)
		}
	}
	if len(f.cache.pairs) != 4 {
		t.Errorf("cache entries = %d, want 4", len(f.cache.pairs))
	}
}

func TestSweepOrchestrator_ScratchRemoved(t *testing.T) {
	f := newSweepFixture()
	scratch := t.TempDir()
	o := NewSweepOrchestrator(f.detector, f.stripper, nil, f.summary,
		services.NewBenchmarkService(), nil, nil, SweepConfig{Opt: entities.OptO0, ScratchDir: scratch})

	if _, err := o.Run(context.Background(), testCorpus("s")); err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	entries, err := os.ReadDir(scratch)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 0 {
		t.Errorf("scratch left %d entries behind", len(entries))
	}
}

type mockStore struct {
	results []entities.ScanResult
}

func (m *mockStore) Save(_ context.Context, _ repositories.SaveRequest) (*entities.AnalysisRecord, error) {
	return nil, errors.New("not implemented")
}

func (m *mockStore) Scan(_ context.Context) iter.Seq[entities.ScanResult] {
	return func(yield func(entities.ScanResult) bool) {
		for _, r := range m.results {
			if !yield(r) {
				return
			}
		}
	}
}

func (m *mockStore) Load(_ context.Context, _ entities.ContentHash) (*entities.AnalysisRecord, error) {
	return nil, errors.New("not implemented")
}

func (m *mockStore) LoadTensor(_ context.Context, _ *entities.AnalysisRecord, _ entities.AnalysisKind) (*entities.DenseTensor, error) {
	return nil, errors.New("not implemented")
}

func storedRecord(name, opt, binaryPath string) entities.ScanResult {
	dir := "/store/" + name + "_abc"
	return entities.ScanResult{Dir: dir, Record: &entities.AnalysisRecord{
		Dir:        dir,
		Metadata:   entities.ArtifactMetadata{BinaryName: name, BinaryHash: "abc", Optimization: opt},
		BinaryPath: binaryPath,
	}}
}

func TestSelectCorpus(t *testing.T) {
	store := &mockStore{results: []entities.ScanResult{
		storedRecord("legacy", "3", "/store/legacy_abc/legacy"),
		storedRecord("modern", "O3", "/store/modern_abc/modern"),
		storedRecord("other", "O0", "/store/other_abc/other"),
		storedRecord("nocopy", "O3", ""),
		{Dir: "/store/broken", Err: &entities.MalformedMetadataError{Dir: "/store/broken", Err: errors.New("bad")}},
		storedRecord("modern", "O3", "/store/modern_def/modern"),
	}}

	corpus, err := SelectCorpus(context.Background(), store, entities.OptO3, nil)
	if err != nil {
		t.Fatalf("SelectCorpus() error = %v", err)
	}

	want := []CorpusEntry{
		{Name: "legacy", Path: "/store/legacy_abc/legacy"},
		{Name: "modern", Path: "/store/modern_abc/modern"},
	}
	if len(corpus) != len(want) {
		t.Fatalf("SelectCorpus() = %+v, want %+v", corpus, want)
	}
	for i := range want {
		if corpus[i] != want[i] {
			t.Errorf("corpus[%d] = %+v, want %+v", i, corpus[i], want[i])
		}
	}
}

func TestSelectCorpus_StoreError(t *testing.T) {
	store := &mockStore{results: []entities.ScanResult{{Dir: "/store", Err: errors.New("permission denied")}}}

	if _, err := SelectCorpus(context.Background(), store, entities.OptO3, nil); err == nil {
		t.Error("SelectCorpus() should fail when the store cannot be read")
	}
}

func TestCorpusFromPaths(t *testing.T) {
	corpus := CorpusFromPaths([]string{"/a/x", "/b/y", "/c/x"}, nil)

	want := []CorpusEntry{{Name: "x", Path: "/a/x"}, {Name: "y", Path: "/b/y"}}
	if len(corpus) != len(want) || corpus[0] != want[0] || corpus[1] != want[1] {
		t.Errorf("CorpusFromPaths() = %+v, want %+v", corpus, want)
	}
}
