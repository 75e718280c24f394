package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/fatih/color"

	"github.com/ochairo/ripbench/internal/domain-adapters/gateways"
	"github.com/ochairo/ripbench/internal/domain/entities"
	"github.com/ochairo/ripbench/internal/domain/interfaces"
	"github.com/ochairo/ripbench/internal/external-adapters/cache"
	"github.com/ochairo/ripbench/internal/external-adapters/filestore"
	"github.com/ochairo/ripbench/internal/external-adapters/logrus"
	"github.com/ochairo/ripbench/internal/external-adapters/yaml"
)

var (
	colorHeader = color.New(color.Bold).SprintFunc()
	colorName   = color.New(color.FgHiCyan).SprintFunc()
	colorAddr   = color.New(color.Faint).SprintfFunc()
	colorGood   = color.New(color.FgHiGreen).SprintFunc()
	colorWarn   = color.New(color.FgYellow).SprintFunc()
	colorBad    = color.New(color.Bold, color.FgHiRed).SprintFunc()
)

// globalOptions are accepted by every subcommand
type globalOptions struct {
	configPath string
	logLevel   string
	logFormat  string
	storeRoot  string
}

func registerGlobalFlags(fs *flag.FlagSet) *globalOptions {
	opts := &globalOptions{}
	fs.StringVar(&opts.configPath, "config", "", "Config file (default "+yaml.DefaultConfigPath()+")")
	fs.StringVar(&opts.logLevel, "log-level", "", "Override log level (debug, info, warn, error)")
	fs.StringVar(&opts.logFormat, "log-format", "", "Override log format (text, json)")
	fs.StringVar(&opts.storeRoot, "root", "", "Override store root directory")
	return opts
}

// app holds the resolved configuration and the shared adapters
type app struct {
	config *entities.BenchConfig
	logger interfaces.Logger
}

func newApp(opts *globalOptions) (*app, error) {
	cfg, err := yaml.NewConfigRepository(opts.configPath).Load()
	if err != nil {
		return nil, err
	}

	if opts.logLevel != "" {
		cfg.Logging.Level = opts.logLevel
	}
	if opts.logFormat != "" {
		cfg.Logging.Format = opts.logFormat
	}
	if opts.storeRoot != "" {
		cfg.Store.Root = opts.storeRoot
	}
	if err := yaml.Validate(cfg); err != nil {
		return nil, err
	}

	logger, err := logrus.New(os.Stderr, cfg.Logging.Level, cfg.Logging.Format)
	if err != nil {
		return nil, err
	}

	return &app{config: cfg, logger: logger}, nil
}

func (a *app) store() (*filestore.Store, error) {
	hasher, err := gateways.NewContentHasher(a.config.Store.HashAlgorithm)
	if err != nil {
		return nil, err
	}
	return filestore.NewStore(a.config.Store.Root, hasher, a.logger), nil
}

func (a *app) analyzer() *gateways.HeadlessAnalyzer {
	return gateways.NewHeadlessAnalyzer(gateways.NewCommandRunner(a.logger), a.config.Analyzer, a.logger)
}

func (a *app) stripper() *gateways.ToolStripper {
	return gateways.NewToolStripper(gateways.NewCommandRunner(a.logger), a.config.Strip.Path, gateways.NewBinaryInspector(), a.logger)
}

func (a *app) cache() *cache.FileCache {
	return cache.NewFileCache(a.config.Sweep.CacheDir, a.logger)
}

// parseArgs parses flags and exits on error. Flags may follow positional arguments.
func parseArgs(fs *flag.FlagSet, args []string) []string {
	var positional []string
	for {
		if err := fs.Parse(args); err != nil {
			fmt.Fprintf(os.Stderr, "Error parsing flags: %v\n", err)
			os.Exit(1)
		}
		args = fs.Args()
		if len(args) == 0 {
			return positional
		}
		positional = append(positional, args[0])
		args = args[1:]
	}
}

func mustApp(opts *globalOptions) *app {
	a, err := newApp(opts)
	if err != nil {
		fail(err)
	}
	return a
}
