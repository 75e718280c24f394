package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	command := os.Args[1]

	// Dispatch to subcommand
	switch command {
	case "init":
		runInit(ctx, os.Args[2:])
	case "save":
		runSave(ctx, os.Args[2:])
	case "scan":
		runScan(ctx, os.Args[2:])
	case "stats":
		runStats(ctx, os.Args[2:])
	case "functions":
		runFunctions(ctx, os.Args[2:])
	case "bench":
		runBench(ctx, os.Args[2:])
	case "summary":
		runSummary(ctx, os.Args[2:])
	case "log":
		runLog(ctx, os.Args[2:])
	case "sign":
		runSign(ctx, os.Args[2:])
	case "verify":
		runVerify(ctx, os.Args[2:])
	case "keygen":
		runKeygen(ctx, os.Args[2:])
	case "help", "-h", "--help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", command)
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println(`ripbench - Function boundary detection benchmark over a binary store

Usage:
  ripbench <command> [options]

Commands:
  init        Create the store root and a default config file
  save        Add a binary and an analysis tensor to the store
  scan        List store records
  stats       Count store records per optimization level
  functions   Run the analyzer on one binary and list its functions
  bench       Benchmark stripped vs. unstripped detection over the store
  summary     Aggregate a benchmark summary
  log         Show the cached detections of one binary
  sign        Write a detached signature for a file
  verify      Verify a detached signature
  keygen      Generate a signing key pair

Use "ripbench <command> --help" for more information about a command.`)
}

// fail prints the error and exits
func fail(err error) {
	fmt.Fprintf(os.Stderr, "%s %v\n", colorBad("Error:"), err)
	os.Exit(1)
}
