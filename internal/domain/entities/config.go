package entities

import "time"

// BenchConfig is the resolved tool configuration
type BenchConfig struct {
	Store    StoreConfig
	Analyzer AnalyzerConfig
	Strip    StripConfig
	Sweep    SweepConfig
	Logging  LoggingConfig
	Metrics  MetricsConfig
	Signing  SigningConfig
}

// StoreConfig locates the content-addressed store
type StoreConfig struct {
	Root          string
	HashAlgorithm HashAlgorithm
}

// AnalyzerConfig describes how to launch the headless disassembler
type AnalyzerConfig struct {
	Path       string
	ScriptDir  string
	PostScript string
	Timeout    time.Duration
	Retries    int
	ExtraArgs  []string
}

// StripConfig names the stripping utility
type StripConfig struct {
	Path string
}

// SweepConfig controls the benchmark sweep
type SweepConfig struct {
	CacheDir          string
	SummaryDir        string
	Workers           int
	CompareNoAnalysis bool
	ScratchDir        string
}

// LoggingConfig selects log level and output format
type LoggingConfig struct {
	Level  string
	Format string // "text" or "json"
}

// MetricsConfig controls the prometheus textfile export
type MetricsConfig struct {
	Textfile string
}

// SigningConfig points at the OpenPGP key used to sign summaries
type SigningConfig struct {
	KeyFile string
}
