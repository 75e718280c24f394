package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/ochairo/ripbench/internal/domain/entities"
)

func runScan(ctx context.Context, args []string) {
	fs := flag.NewFlagSet("scan", flag.ExitOnError)
	opts := registerGlobalFlags(fs)
	optFilter := fs.String("opt", "", "Only list records at this optimization level")

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, `Usage: ripbench scan [options]

List every record in the store. Records with missing or corrupt metadata
are skipped and counted.

Options:
`)
		fs.PrintDefaults()
	}

	parseArgs(fs, args)

	var level entities.OptLevel
	if *optFilter != "" {
		parsed, err := entities.ParseOptLevel(*optFilter)
		if err != nil {
			fail(err)
		}
		level = parsed
	}

	a := mustApp(opts)
	store, err := a.store()
	if err != nil {
		fail(err)
	}

	listed, skipped := 0, 0
	for result := range store.Scan(ctx) {
		if result.Dir == store.Root() && result.Err != nil {
			fail(result.Err)
		}
		if result.Skipped() {
			skipped++
			fmt.Printf("  %s %s: %v\n", colorWarn("skip"), filepath.Base(result.Dir), result.Err)
			continue
		}

		meta := result.Record.Metadata
		if level != "" && !level.Matches(meta.Optimization) {
			continue
		}
		listed++

		kinds := make([]string, 0, len(result.Record.Kinds))
		for _, k := range result.Record.Kinds {
			kinds = append(kinds, string(k))
		}
		binary := "-"
		if result.Record.BinaryPath != "" {
			binary = "binary"
		}
		fmt.Printf("  %-32s %-4s %-28s %-6s %s\n",
			colorName(meta.BinaryName), meta.Optimization, meta.Target, binary, strings.Join(kinds, ","))
		fmt.Printf("  %-32s %s\n", "", colorAddr("%s", meta.BinaryHash))
	}

	fmt.Printf("\n%d records listed, %d skipped\n", listed, skipped)
}

func runStats(ctx context.Context, args []string) {
	fs := flag.NewFlagSet("stats", flag.ExitOnError)
	opts := registerGlobalFlags(fs)

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, `Usage: ripbench stats [options]

Count store records per optimization level.

Options:
`)
		fs.PrintDefaults()
	}

	parseArgs(fs, args)

	a := mustApp(opts)
	store, err := a.store()
	if err != nil {
		fail(err)
	}

	stats, err := store.Stats(ctx)
	if err != nil {
		fail(err)
	}

	fmt.Printf("%s %s\n\n", colorHeader("Store"), store.Root())
	for _, level := range entities.AllOptLevels {
		fmt.Printf("  %-6s %d\n", level, stats.ByOpt[level])
	}
	if stats.Other > 0 {
		fmt.Printf("  %-6s %d\n", "other", stats.Other)
	}
	fmt.Printf("\n  total  %d\n", stats.Total)
	if stats.Skipped > 0 {
		fmt.Printf("  %s %d records with unreadable metadata\n", colorWarn("skipped"), stats.Skipped)
	}
}
