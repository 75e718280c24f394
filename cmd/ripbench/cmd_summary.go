package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"

	"github.com/ochairo/ripbench/internal/domain/entities"
	"github.com/ochairo/ripbench/internal/domain/services"
	"github.com/ochairo/ripbench/internal/external-adapters/summary"
)

func runSummary(_ context.Context, args []string) {
	fs := flag.NewFlagSet("summary", flag.ExitOnError)
	var (
		namesFile = fs.String("names", "", "JSON array of binary names to restrict the aggregate to")
		showDiff  = fs.Bool("show-diff", false, "List missed and spurious functions per binary")
		perBinary = fs.Bool("per-binary", false, "Print one score line per binary")
	)

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, `Usage: ripbench summary <file> [options]

Micro-average a benchmark summary: confusion counts are summed across
binaries before precision, recall and F1 are computed.

Options:
`)
		fs.PrintDefaults()
		fmt.Fprintf(os.Stderr, `
Examples:
  ripbench summary GHIDRA_RUN_O3.json
  ripbench summary GHIDRA_RUN_O3.json --names test_split.json --show-diff
`)
	}

	positional := parseArgs(fs, args)
	if len(positional) != 1 {
		fmt.Fprintf(os.Stderr, "Error: a summary file is required\n\n")
		fs.Usage()
		os.Exit(1)
	}

	records, err := summary.Read(positional[0])
	if err != nil {
		fail(err)
	}

	if *namesFile != "" {
		names, err := readNames(*namesFile)
		if err != nil {
			fail(err)
		}
		records = filterRecords(records, names)
	}

	svc := services.NewBenchmarkService()
	printSweepScore("📊 "+positional[0], svc.Aggregate(records))
	if na, ok := services.AggregateNoAnalysis(svc, records); ok {
		fmt.Println()
		printSweepScore("📊 without extra analysis", na)
	}

	if *perBinary || *showDiff {
		fmt.Println()
		for _, rec := range records {
			c := rec.Counts()
			fmt.Printf("  %-32s tp=%-5d fp=%-5d fn=%-5d f1=%s\n",
				colorName(rec.Name), c.TruePositives, c.FalsePositives, c.FalseNegatives, colorRatio(rec.F1))
			if *showDiff {
				printFunctions("missed", rec.FalseNeg)
				printFunctions("spurious", rec.FalsePos)
			}
		}
	}
}

func readNames(path string) (map[string]bool, error) {
	//nolint:gosec // G304: Names file is user-provided
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read names file: %w", err)
	}
	var list []string
	if err := json.Unmarshal(data, &list); err != nil {
		return nil, fmt.Errorf("failed to parse names file: %w", err)
	}
	names := make(map[string]bool, len(list))
	for _, name := range list {
		names[name] = true
	}
	return names, nil
}

func filterRecords(records []*entities.BenchmarkRecord, names map[string]bool) []*entities.BenchmarkRecord {
	out := make([]*entities.BenchmarkRecord, 0, len(records))
	for _, rec := range records {
		if names[rec.Name] {
			out = append(out, rec)
		}
	}
	return out
}
