package gateways

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/ochairo/ripbench/internal/domain/entities"
	"github.com/ochairo/ripbench/internal/domain/interfaces/gateways"
)

// writeFakeAnalyzer creates a shell script standing in for analyzeHeadless.
// It fails if a stale project exists, then leaves a fresh project behind.
func writeFakeAnalyzer(t *testing.T, body string) string {
	t.Helper()
	script := filepath.Join(t.TempDir(), "analyzeHeadless")
	content := `#!/bin/sh
ws="$1"
proj="$2"
if [ -e "$ws/$proj.rep" ] || [ -e "$ws/$proj.gpr" ]; then
  echo "stale project" >&2
  exit 3
fi
mkdir -p "$ws/$proj.rep"
touch "$ws/$proj.gpr"
` + body
	//nolint:gosec // G306: Test script must be executable
	if err := os.WriteFile(script, []byte(content), 0755); err != nil {
		t.Fatalf("Failed to write fake analyzer: %v", err)
	}
	return script
}

func newTestAnalyzer(path string, retries int) *HeadlessAnalyzer {
	a := NewHeadlessAnalyzer(NewCommandRunner(nil), entities.AnalyzerConfig{
		Path:       path,
		ScriptDir:  "/scripts",
		PostScript: "List_Function_and_Entry.py",
		Timeout:    5 * time.Second,
		Retries:    retries,
	}, nil)
	a.retryInterval = time.Millisecond
	return a
}

func TestHeadlessAnalyzer_Detect(t *testing.T) {
	script := writeFakeAnalyzer(t, `
echo "INFO  Starting"
echo "INFO  List_Function_and_Entry.py> BEGIN FUNCTION LIST (GhidraScript)"
echo "INFO  List_Function_and_Entry.py> (main, 0x1139) (GhidraScript)"
echo "INFO  List_Function_and_Entry.py> (_start, 0x1040) (GhidraScript)"
echo "INFO  List_Function_and_Entry.py> END FUNCTION LIST (GhidraScript)"
`)
	a := newTestAnalyzer(script, 0)
	workspace := t.TempDir()

	for i := 0; i < 2; i++ {
		result, err := a.Detect(context.Background(), "/bin/true", gateways.DetectOptions{
			Workspace: workspace,
			Label:     entities.LabelNonstripped,
		})
		if err != nil {
			t.Fatalf("Detect() run %d error = %v", i, err)
		}

		if result.Label != entities.LabelNonstripped {
			t.Errorf("Label = %q", result.Label)
		}
		if len(result.Functions) != 2 || result.Functions[0] != entities.Fn("main", 0x1139) {
			t.Errorf("Functions = %v", result.Functions)
		}
		if result.WallTime <= 0 {
			t.Errorf("WallTime = %v, want > 0", result.WallTime)
		}
	}

	if _, err := os.Stat(filepath.Join(workspace, analyzerProject+".rep")); !os.IsNotExist(err) {
		t.Error("project artifacts should be removed after the run")
	}
}

func TestHeadlessAnalyzer_Arguments(t *testing.T) {
	script := writeFakeAnalyzer(t, `
echo "BEGIN FUNCTION LIST"
echo "END FUNCTION LIST"
echo "ARGS: $*"
`)
	a := newTestAnalyzer(script, 0)
	workspace := t.TempDir()

	raw, err := a.Invoke(context.Background(), "/bin/true", InvokeOptions{Workspace: workspace, NoAnalysis: true})
	if err != nil {
		t.Fatalf("Invoke() error = %v", err)
	}

	want := "ARGS: " + workspace + " " + analyzerProject +
		" -import /bin/true -scriptPath /scripts -postScript List_Function_and_Entry.py -noanalysis"
	if !strings.Contains(raw, want) {
		t.Errorf("Invoke() output = %q, want %q", raw, want)
	}
}

func TestHeadlessAnalyzer_CleansStaleProject(t *testing.T) {
	script := writeFakeAnalyzer(t, `echo "BEGIN FUNCTION LIST"; echo "END FUNCTION LIST"`)
	a := newTestAnalyzer(script, 0)
	workspace := t.TempDir()

	// Leftovers from a crashed run
	if err := os.MkdirAll(filepath.Join(workspace, analyzerProject+".rep", "idata"), 0750); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(workspace, analyzerProject+".gpr"), nil, 0600); err != nil {
		t.Fatal(err)
	}

	if _, err := a.Invoke(context.Background(), "/bin/true", InvokeOptions{Workspace: workspace}); err != nil {
		t.Fatalf("Invoke() error = %v", err)
	}
}

func TestHeadlessAnalyzer_Failure(t *testing.T) {
	script := writeFakeAnalyzer(t, `echo "bad import" >&2; exit 7`)
	a := newTestAnalyzer(script, 0)
	workspace := t.TempDir()

	_, err := a.Invoke(context.Background(), "/bin/true", InvokeOptions{Workspace: workspace})

	var invErr *entities.AnalyzerInvocationError
	if !errors.As(err, &invErr) {
		t.Fatalf("Invoke() error = %v, want AnalyzerInvocationError", err)
	}
	if invErr.ExitCode != 7 || invErr.TimedOut {
		t.Errorf("AnalyzerInvocationError = %+v", invErr)
	}
	if !strings.Contains(invErr.Stderr, "bad import") {
		t.Errorf("Stderr = %q", invErr.Stderr)
	}
	if _, statErr := os.Stat(filepath.Join(workspace, analyzerProject+".gpr")); !os.IsNotExist(statErr) {
		t.Error("project artifacts should be removed after a failed run")
	}
}

func TestHeadlessAnalyzer_Timeout(t *testing.T) {
	script := writeFakeAnalyzer(t, `exec sleep 5`)
	a := newTestAnalyzer(script, 3)
	a.config.Timeout = 100 * time.Millisecond

	runner := &countingRunner{inner: NewCommandRunner(nil)}
	a.runner = runner

	_, err := a.Invoke(context.Background(), "/bin/true", InvokeOptions{Workspace: t.TempDir()})

	var invErr *entities.AnalyzerInvocationError
	if !errors.As(err, &invErr) || !invErr.TimedOut {
		t.Fatalf("Invoke() error = %v, want timed out AnalyzerInvocationError", err)
	}
	if runner.calls != 1 {
		t.Errorf("timeouts must not be retried, got %d calls", runner.calls)
	}
}

func TestHeadlessAnalyzer_RetriesTransientFailure(t *testing.T) {
	runner := &scriptedRunner{results: []*ExecuteResult{
		{ExitCode: 1, Error: errors.New("exit status 1")},
		{Success: true, Stdout: "BEGIN FUNCTION LIST\n(f, 0x10)\nEND FUNCTION LIST\n", Duration: time.Second},
	}}
	a := NewHeadlessAnalyzer(runner, entities.AnalyzerConfig{Path: "analyzeHeadless", Retries: 2}, nil)
	a.retryInterval = time.Millisecond

	result, err := a.Detect(context.Background(), "/bin/true", gateways.DetectOptions{Workspace: t.TempDir()})
	if err != nil {
		t.Fatalf("Detect() error = %v", err)
	}
	if runner.calls != 2 {
		t.Errorf("calls = %d, want 2", runner.calls)
	}
	if result.WallTime != time.Second || len(result.Functions) != 1 {
		t.Errorf("Detect() = %+v", result)
	}
}

func TestCleanProjectArtifacts_Idempotent(t *testing.T) {
	dir := t.TempDir()
	keep := filepath.Join(dir, "binary")
	if err := os.WriteFile(keep, []byte("x"), 0600); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "a.gpr"), nil, 0600); err != nil {
		t.Fatal(err)
	}

	for i := 0; i < 2; i++ {
		if err := CleanProjectArtifacts(dir); err != nil {
			t.Fatalf("CleanProjectArtifacts() run %d error = %v", i, err)
		}
	}

	if _, err := os.Stat(keep); err != nil {
		t.Error("unrelated files must be kept")
	}
	if _, err := os.Stat(filepath.Join(dir, "a.gpr")); !os.IsNotExist(err) {
		t.Error("a.gpr should be removed")
	}
}

type countingRunner struct {
	mu    sync.Mutex
	inner commandRunner
	calls int
}

func (r *countingRunner) Run(ctx context.Context, config CommandConfig) *ExecuteResult {
	r.mu.Lock()
	r.calls++
	r.mu.Unlock()
	return r.inner.Run(ctx, config)
}

type scriptedRunner struct {
	results []*ExecuteResult
	calls   int
}

func (r *scriptedRunner) Run(_ context.Context, _ CommandConfig) *ExecuteResult {
	res := r.results[r.calls]
	r.calls++
	return res
}
