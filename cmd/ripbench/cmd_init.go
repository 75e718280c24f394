package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/ochairo/ripbench/internal/external-adapters/yaml"
)

func runInit(_ context.Context, args []string) {
	fs := flag.NewFlagSet("init", flag.ExitOnError)
	opts := registerGlobalFlags(fs)

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, `Usage: ripbench init [options]

Write a default config file (unless one exists) and create the store root.

Options:
`)
		fs.PrintDefaults()
	}

	parseArgs(fs, args)

	repo := yaml.NewConfigRepository(opts.configPath)
	written, err := repo.WriteDefault()
	if err != nil {
		fail(err)
	}
	if written {
		fmt.Printf("Wrote default config to %s\n", repo.Path())
	} else {
		fmt.Printf("Using existing config %s\n", repo.Path())
	}

	a := mustApp(opts)
	store, err := a.store()
	if err != nil {
		fail(err)
	}
	if err := store.Init(); err != nil {
		fail(err)
	}
	fmt.Printf("%s Store ready at %s\n", colorGood("✓"), store.Root())
}
