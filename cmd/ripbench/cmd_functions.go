package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"

	"github.com/ochairo/ripbench/internal/domain-adapters/gateways"
	"github.com/ochairo/ripbench/internal/domain/entities"
	gatewayports "github.com/ochairo/ripbench/internal/domain/interfaces/gateways"
	"github.com/ochairo/ripbench/internal/domain/interfaces/repositories"
)

func runFunctions(ctx context.Context, args []string) {
	fs := flag.NewFlagSet("functions", flag.ExitOnError)
	opts := registerGlobalFlags(fs)
	var (
		optFlag    = fs.String("opt", "", "Optimization level, used with --cache")
		useCache   = fs.Bool("cache", false, "Print the cached detection when one exists")
		stripped   = fs.Bool("stripped", false, "Strip a copy of the binary before detection")
		noAnalysis = fs.Bool("noanalysis", false, "Disable the analyzer's extra analysis passes")
		raw        = fs.Bool("raw", false, "Print the raw analyzer output instead of the parsed list")
	)

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, `Usage: ripbench functions <binary> [options]

Run the headless analyzer on one binary and list the function entry points it reports.

Options:
`)
		fs.PrintDefaults()
		fmt.Fprintf(os.Stderr, `
Examples:
  ripbench functions ./hello
  ripbench functions ./hello --stripped --noanalysis
  ripbench functions hello --cache --opt O3
`)
	}

	positional := parseArgs(fs, args)
	if len(positional) != 1 {
		fmt.Fprintf(os.Stderr, "Error: exactly one binary is required\n\n")
		fs.Usage()
		os.Exit(1)
	}
	binary := positional[0]
	a := mustApp(opts)

	if *useCache {
		level, err := entities.ParseOptLevel(*optFlag)
		if err != nil {
			fail(fmt.Errorf("--cache needs a valid --opt: %w", err))
		}
		pair, ok, err := a.cache().Get(ctx, repositories.CacheKey{Binary: filepath.Base(binary), Opt: level, NoAnalysis: *noAnalysis})
		if err != nil {
			fail(err)
		}
		if ok {
			detection := pair.Nonstripped
			if *stripped {
				detection = pair.Stripped
			}
			fmt.Printf("%s %s (cached, %s)\n", colorHeader("Functions"), colorName(filepath.Base(binary)), level)
			printFunctions(detection.Label, detection.Functions)
			return
		}
		fmt.Printf("%s no cache entry, running the analyzer\n", colorWarn("note:"))
	}

	workspace, err := os.MkdirTemp("", "ripbench-functions-")
	if err != nil {
		fail(err)
	}
	//nolint:errcheck // Best-effort removal of a private temp dir
	defer os.RemoveAll(workspace)

	target := binary
	label := entities.LabelNonstripped
	if *stripped {
		target = filepath.Join(workspace, "stripped", filepath.Base(binary))
		if err := a.stripper().Strip(ctx, binary, target); err != nil {
			fail(err)
		}
		label = entities.LabelStripped
	}

	analyzer := a.analyzer()
	if *raw {
		out, err := analyzer.Invoke(ctx, target, gateways.InvokeOptions{Workspace: workspace, NoAnalysis: *noAnalysis})
		if err != nil {
			fail(err)
		}
		fmt.Print(out)
		return
	}

	result, err := analyzer.Detect(ctx, target, gatewayports.DetectOptions{
		Workspace:  workspace,
		NoAnalysis: *noAnalysis,
		Label:      label,
	})
	if err != nil {
		fail(err)
	}

	fmt.Printf("%s %s (%v)\n", colorHeader("Functions"), colorName(filepath.Base(binary)), result.WallTime)
	printFunctions(result.Label, result.Functions)
}
