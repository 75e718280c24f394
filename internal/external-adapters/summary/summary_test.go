package summary

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/ochairo/ripbench/internal/domain/entities"
)

func record(name string) *entities.BenchmarkRecord {
	return &entities.BenchmarkRecord{
		Name: name,
		Outcome: entities.Outcome{
			TruePos:   []entities.FunctionObservation{entities.Fn("f", 0x10)},
			FalseNeg:  []entities.FunctionObservation{},
			FalsePos:  []entities.FunctionObservation{},
			Precision: entities.RatioOf(1, 1),
			Recall:    entities.RatioOf(1, 1),
			F1:        entities.RatioOf(1, 1),
		},
	}
}

func TestFile_AppendAndReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), FileName(entities.OptO3))
	ctx := context.Background()

	f, err := Open(path)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	for _, name := range []string{"zeta", "alpha"} {
		if err := f.Append(ctx, record(name)); err != nil {
			t.Fatalf("Append(%s) error = %v", name, err)
		}
	}

	reopened, err := Open(path)
	if err != nil {
		t.Fatalf("Open() existing error = %v", err)
	}
	if ok, _ := reopened.Has(ctx, "zeta"); !ok {
		t.Error("Has(zeta) = false after reopen")
	}

	records, err := reopened.Records(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(records) != 2 || records[0].Name != "alpha" || records[1].Name != "zeta" {
		t.Errorf("Records() = %v", records)
	}
	if !records[0].Precision.Defined || records[0].Precision.Value != 1 {
		t.Errorf("precision = %v", records[0].Precision)
	}
}

func TestFile_RefusesReappend(t *testing.T) {
	f, err := Open(filepath.Join(t.TempDir(), "s.json"))
	if err != nil {
		t.Fatal(err)
	}
	ctx := context.Background()

	if err := f.Append(ctx, record("exa")); err != nil {
		t.Fatal(err)
	}
	if err := f.Append(ctx, record("exa")); !errors.Is(err, ErrDuplicateRecord) {
		t.Errorf("second Append() error = %v, want ErrDuplicateRecord", err)
	}
	if err := f.Append(ctx, &entities.BenchmarkRecord{}); err == nil {
		t.Error("Append() of an unnamed record should fail")
	}
}

func TestOpen_CorruptSummary(t *testing.T) {
	path := filepath.Join(t.TempDir(), "s.json")
	if err := os.WriteFile(path, []byte("[1,2"), 0600); err != nil {
		t.Fatal(err)
	}
	if _, err := Open(path); err == nil {
		t.Error("Open() should refuse a corrupt summary rather than overwrite it")
	}
}

func TestRead_NameFromKey(t *testing.T) {
	path := filepath.Join(t.TempDir(), "s.json")
	doc := `{"exa": {"true_pos": [["main","0x10"]], "false_neg": [], "false_pos": [], "precision": null, "recall": 1.0, "f1": null, "nonstripped_wall_time": 1.5, "stripped_wall_time": 2}}`
	if err := os.WriteFile(path, []byte(doc), 0600); err != nil {
		t.Fatal(err)
	}

	records, err := Read(path)
	if err != nil {
		t.Fatalf("Read() error = %v", err)
	}
	if len(records) != 1 || records[0].Name != "exa" {
		t.Fatalf("Read() = %v", records)
	}
	if records[0].Precision.Defined || !records[0].Recall.Defined {
		t.Errorf("ratios = %v / %v", records[0].Precision, records[0].Recall)
	}
	if records[0].TruePos[0] != entities.Fn("main", 0x10) {
		t.Errorf("TruePos = %v", records[0].TruePos)
	}
}

func TestNextRevisionPath(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "GHIDRA_RUN_O3.json")

	if got := NextRevisionPath(path); got != path {
		t.Errorf("NextRevisionPath() = %s, want %s", got, path)
	}

	for _, name := range []string{"GHIDRA_RUN_O3.json", "GHIDRA_RUN_O3_rev1.json"} {
		if err := os.WriteFile(filepath.Join(dir, name), []byte("{}"), 0600); err != nil {
			t.Fatal(err)
		}
	}

	want := filepath.Join(dir, "GHIDRA_RUN_O3_rev2.json")
	if got := NextRevisionPath(path); got != want {
		t.Errorf("NextRevisionPath() = %s, want %s", got, want)
	}
}
