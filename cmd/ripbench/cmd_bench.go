package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"path/filepath"

	"github.com/ochairo/ripbench/internal/domain-adapters/gateways"
	orchestrators "github.com/ochairo/ripbench/internal/domain-orchestrators"
	"github.com/ochairo/ripbench/internal/domain/entities"
	"github.com/ochairo/ripbench/internal/domain/services"
	"github.com/ochairo/ripbench/internal/external-adapters/gpg"
	"github.com/ochairo/ripbench/internal/external-adapters/metrics"
	"github.com/ochairo/ripbench/internal/external-adapters/summary"
)

const passphraseEnv = "RIPBENCH_KEY_PASSPHRASE"

func runBench(ctx context.Context, args []string) {
	fs := flag.NewFlagSet("bench", flag.ExitOnError)
	opts := registerGlobalFlags(fs)
	var (
		fresh       = fs.Bool("fresh", false, "Start a new summary revision instead of resuming")
		workers     = fs.Int("workers", 0, "Number of parallel analyzer workers (default from config)")
		noAnalysis  = fs.Bool("noanalysis", false, "Also benchmark the analyzer without extra analysis passes")
		noCache     = fs.Bool("no-cache", false, "Ignore cached detections (entries are still written)")
		metricsFile = fs.String("metrics", "", "Write prometheus metrics to this textfile")
		sign        = fs.Bool("sign", false, "Sign the summary with the configured key")
		scratch     = fs.String("scratch", "", "Scratch directory for analyzer workspaces")
		dir         = fs.String("dir", "", "Benchmark the binaries found under this directory instead of the store")
	)

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, `Usage: ripbench bench <opt> [options]

Benchmark function detection over every stored binary built at <opt>:
each binary is analyzed as built and after stripping, the unstripped
result is taken as ground truth, and the sweep is micro-averaged.

The sweep resumes: binaries already in the summary are skipped and
cached detections are reused.

Options:
`)
		fs.PrintDefaults()
		fmt.Fprintf(os.Stderr, `
Examples:
  ripbench bench O3
  ripbench bench O2 --workers 4 --noanalysis
  ripbench bench O0 --fresh --metrics /var/lib/node_exporter/ripbench.prom
  ripbench bench O2 --dir target/release
`)
	}

	positional := parseArgs(fs, args)
	if len(positional) != 1 {
		fmt.Fprintf(os.Stderr, "Error: an optimization level is required\n\n")
		fs.Usage()
		os.Exit(1)
	}

	level, err := entities.ParseOptLevel(positional[0])
	if err != nil {
		fail(err)
	}

	a := mustApp(opts)
	cfg := a.config
	if *workers > 0 {
		cfg.Sweep.Workers = *workers
	}
	if *noAnalysis {
		cfg.Sweep.CompareNoAnalysis = true
	}
	if *scratch != "" {
		cfg.Sweep.ScratchDir = *scratch
	}
	if *metricsFile != "" {
		cfg.Metrics.Textfile = *metricsFile
	}

	if err := executeBench(ctx, a, level, *dir, *fresh, !*noCache, *sign); err != nil {
		fail(err)
	}
}

func executeBench(ctx context.Context, a *app, level entities.OptLevel, dir string, fresh, useCache, sign bool) error {
	cfg := a.config

	corpus, err := selectCorpus(ctx, a, level, dir)
	if err != nil {
		return err
	}
	if len(corpus) == 0 {
		return fmt.Errorf("no binaries to benchmark at %s", level)
	}

	if err := os.MkdirAll(cfg.Sweep.SummaryDir, 0750); err != nil {
		return fmt.Errorf("failed to create summary directory: %w", err)
	}
	summaryPath := filepath.Join(cfg.Sweep.SummaryDir, summary.FileName(level))
	if fresh {
		summaryPath = summary.NextRevisionPath(summaryPath)
	}
	summaryFile, err := summary.Open(summaryPath)
	if err != nil {
		return err
	}

	sweepMetrics := metrics.NewSweepMetrics(level)
	orch := orchestrators.NewSweepOrchestrator(
		a.analyzer(),
		a.stripper(),
		a.cache(),
		summaryFile,
		services.NewBenchmarkService(),
		sweepMetrics,
		a.logger,
		orchestrators.SweepConfig{
			Opt:               level,
			Workers:           cfg.Sweep.Workers,
			CompareNoAnalysis: cfg.Sweep.CompareNoAnalysis,
			UseCache:          useCache,
			ScratchDir:        cfg.Sweep.ScratchDir,
		},
	)

	fmt.Printf("🔬 Benchmark %s: %d binaries -> %s\n\n", level, len(corpus), summaryPath)

	result, runErr := orch.Run(ctx, corpus)
	if result != nil {
		fmt.Printf("   Processed: %d (%d from cache)\n", result.Processed, result.Cached)
		fmt.Printf("   Resumed:   %d already in summary\n", result.Skipped)
		if result.Failed > 0 {
			fmt.Printf("   %s %d\n", colorBad("Failed:"), result.Failed)
			for _, f := range result.Failures {
				fmt.Printf("     %s: %v\n", f.Name, f.Err)
			}
		}
		fmt.Println()
	}
	if runErr != nil {
		if errors.Is(runErr, context.Canceled) {
			return fmt.Errorf("sweep interrupted; completed records are kept in %s", summaryPath)
		}
		return runErr
	}

	printSweepScore(fmt.Sprintf("📊 %s micro-averaged", level), result.Score)
	if result.NoAnalysisScore != nil {
		fmt.Println()
		printSweepScore(fmt.Sprintf("📊 %s without extra analysis", level), *result.NoAnalysisScore)
	}

	if cfg.Metrics.Textfile != "" {
		if err := sweepMetrics.WriteTextfile(cfg.Metrics.Textfile); err != nil {
			return err
		}
		fmt.Printf("\n   Metrics written to %s\n", cfg.Metrics.Textfile)
	}

	if sign {
		if cfg.Signing.KeyFile == "" {
			return fmt.Errorf("--sign needs signing.key_file in the config")
		}
		signer, err := gpg.NewSignerFromFile(cfg.Signing.KeyFile, []byte(os.Getenv(passphraseEnv)))
		if err != nil {
			return err
		}
		sigPath, err := signer.SignFile(summaryPath)
		if err != nil {
			return err
		}
		fmt.Printf("   🔐 Signature written to %s\n", sigPath)
	}
	return nil
}

func selectCorpus(ctx context.Context, a *app, level entities.OptLevel, dir string) ([]orchestrators.CorpusEntry, error) {
	if dir != "" {
		paths, err := gateways.NewBinaryFinder(gateways.NewBinaryInspector()).FindRecursive(dir)
		if err != nil {
			return nil, err
		}
		return orchestrators.CorpusFromPaths(paths, a.logger), nil
	}

	store, err := a.store()
	if err != nil {
		return nil, err
	}
	corpus, err := orchestrators.SelectCorpus(ctx, store, level, a.logger)
	if err != nil {
		return nil, fmt.Errorf("failed to select corpus: %w", err)
	}
	return corpus, nil
}
