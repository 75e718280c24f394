package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/ochairo/ripbench/internal/domain/entities"
	"github.com/ochairo/ripbench/internal/domain/interfaces/repositories"
)

func runLog(ctx context.Context, args []string) {
	fs := flag.NewFlagSet("log", flag.ExitOnError)
	opts := registerGlobalFlags(fs)
	var (
		noAnalysis = fs.Bool("noanalysis", false, "Show the no-extra-analysis variant")
		full       = fs.Bool("full", false, "Also list every detected function")
	)

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, `Usage: ripbench log <binary> <opt> [options]

Show the cached detections of one binary: what the unstripped and the
stripped runs found, and what is unique to each.

Options:
`)
		fs.PrintDefaults()
	}

	positional := parseArgs(fs, args)
	if len(positional) != 2 {
		fmt.Fprintf(os.Stderr, "Error: a binary name and an optimization level are required\n\n")
		fs.Usage()
		os.Exit(1)
	}

	level, err := entities.ParseOptLevel(positional[1])
	if err != nil {
		fail(err)
	}

	a := mustApp(opts)
	c := a.cache()
	key := repositories.CacheKey{Binary: positional[0], Opt: level, NoAnalysis: *noAnalysis}

	pair, ok, err := c.Get(ctx, key)
	if err != nil {
		fail(err)
	}
	if !ok {
		fail(fmt.Errorf("no cached detections at %s", c.Path(key)))
	}

	fmt.Printf("%s %s %s\n", colorHeader("Detections"), colorName(positional[0]), level)
	fmt.Printf("   nonstripped: %d functions in %v\n", len(pair.Nonstripped.Functions), pair.Nonstripped.WallTime)
	fmt.Printf("   stripped:    %d functions in %v\n\n", len(pair.Stripped.Functions), pair.Stripped.WallTime)

	printFunctions("only in nonstripped", pair.UniqueNonstripped)
	printFunctions("only in stripped", pair.UniqueStripped)

	if *full {
		fmt.Println()
		printFunctions(entities.LabelNonstripped, pair.Nonstripped.Functions)
		printFunctions(entities.LabelStripped, pair.Stripped.Functions)
	}
}
