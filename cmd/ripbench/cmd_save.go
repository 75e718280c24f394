package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"

	"github.com/ochairo/ripbench/internal/domain-adapters/gateways"
	orchestrators "github.com/ochairo/ripbench/internal/domain-orchestrators"
	"github.com/ochairo/ripbench/internal/domain/entities"
)

func runSave(ctx context.Context, args []string) {
	fs := flag.NewFlagSet("save", flag.ExitOnError)
	opts := registerGlobalFlags(fs)
	var (
		tensorPath = fs.String("tensor", "", "Tensor file (.npz, .csv or .jsonl)")
		kind       = fs.String("kind", string(entities.AnalysisOnehotPlusFuncLabels), "Analysis kind")
		opt        = fs.String("opt", "", "Optimization level (O0..O3, Os, Oz)")
		target     = fs.String("target", "", "Target triple")
		crate      = fs.String("crate", "", "Crate or package name")
		flags      = fs.String("flags", "", "Compiler flag list")
		command    = fs.String("compile-command", "", "Full compile command")
		language   = fs.String("language", "", "Source language")
		compiler   = fs.String("compiler", "", "Compiler name")
		overwrite  = fs.Bool("overwrite", false, "Replace an existing record with the same hash")
		noCopy     = fs.Bool("no-copy", false, "Do not copy the binary into the store")
	)

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, `Usage: ripbench save <binary> --tensor <file> [options]

Store a binary and one analysis tensor, addressed by the binary's content hash.
A .npz tensor is read as a dense array, a .csv file as a table with an
optional header row, and a .jsonl file as one JSON number array per line.

Options:
`)
		fs.PrintDefaults()
		fmt.Fprintf(os.Stderr, `
Examples:
  ripbench save target/release/hello --tensor hello.npz --opt O3
  ripbench save hello --tensor features.csv --kind onehot --overwrite
`)
	}

	positional := parseArgs(fs, args)
	if len(positional) != 1 || *tensorPath == "" {
		fmt.Fprintf(os.Stderr, "Error: a binary and --tensor are required\n\n")
		fs.Usage()
		os.Exit(1)
	}

	a := mustApp(opts)
	store, err := a.store()
	if err != nil {
		fail(err)
	}
	if err := store.Init(); err != nil {
		fail(err)
	}

	tensor, err := loadTensorFile(*tensorPath)
	if err != nil {
		fail(err)
	}

	ingest := orchestrators.NewIngestOrchestrator(store, gateways.NewBinaryInspector(), a.logger)
	result, err := ingest.Ingest(ctx, orchestrators.IngestRequest{
		BinaryPath: positional[0],
		Tensor:     tensor,
		Kind:       entities.AnalysisKind(*kind),
		Metadata: entities.ArtifactMetadata{
			Target:         *target,
			Optimization:   *opt,
			CrateName:      *crate,
			FlagList:       *flags,
			CompileCommand: *command,
			Language:       *language,
			Compiler:       *compiler,
		},
		Overwrite:  *overwrite,
		SaveBinary: !*noCopy,
	})
	if err != nil {
		var dup *entities.DuplicateArtifactError
		if errors.As(err, &dup) {
			fail(fmt.Errorf("%w; pass --overwrite to replace it", err))
		}
		fail(err)
	}

	artifact := result.Artifact
	fmt.Printf("%s Saved %s (%s, %s)\n", colorGood("✓"), colorName(artifact.Name), artifact.FileFormat, *kind)
	fmt.Printf("   hash: %s\n", colorAddr("%s", artifact.Hash))
	if artifact.Stripped {
		fmt.Printf("   %s binary has no symbol table; it cannot serve as ground truth\n", colorWarn("note:"))
	}
	fmt.Printf("   %s\n", result.Record.Dir)
}
