// Package yaml provides YAML-based configuration parsing and loading.
package yaml

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/ochairo/ripbench/internal/domain/entities"
	"gopkg.in/yaml.v3"
)

// yamlConfig represents the raw YAML structure
type yamlConfig struct {
	Store    yamlStore    `yaml:"store"`
	Analyzer yamlAnalyzer `yaml:"analyzer"`
	Strip    yamlStrip    `yaml:"strip"`
	Sweep    yamlSweep    `yaml:"sweep"`
	Logging  yamlLogging  `yaml:"logging"`
	Metrics  yamlMetrics  `yaml:"metrics"`
	Signing  yamlSigning  `yaml:"signing"`
}

type yamlStore struct {
	Root          string `yaml:"root"`
	HashAlgorithm string `yaml:"hash_algorithm"`
}

type yamlAnalyzer struct {
	Path           string   `yaml:"path"`
	ScriptDir      string   `yaml:"script_dir"`
	PostScript     string   `yaml:"post_script"`
	TimeoutSeconds int      `yaml:"timeout_seconds"`
	Retries        int      `yaml:"retries"`
	ExtraArgs      []string `yaml:"extra_args"`
}

type yamlStrip struct {
	Path string `yaml:"path"`
}

type yamlSweep struct {
	CacheDir          string `yaml:"cache_dir"`
	SummaryDir        string `yaml:"summary_dir"`
	Workers           int    `yaml:"workers"`
	CompareNoAnalysis bool   `yaml:"compare_noanalysis"`
	ScratchDir        string `yaml:"scratch_dir"`
}

type yamlLogging struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

type yamlMetrics struct {
	Textfile string `yaml:"textfile"`
}

type yamlSigning struct {
	KeyFile string `yaml:"key_file"`
}

// defaultYAML is the configuration used when no file is present.
// Also written by `ripbench init` as a starting point.
const defaultYAML = `store:
  root: ~/.ripbin/ripped_bins
  hash_algorithm: sha256
analyzer:
  path: ~/ghidra_10.3.3_PUBLIC/support/analyzeHeadless
  script_dir: ~/ghidra_scripts
  post_script: List_Function_and_Entry.py
  timeout_seconds: 600
  retries: 0
strip:
  path: strip
sweep:
  cache_dir: .ghidra_bench
  summary_dir: .
  workers: 1
  compare_noanalysis: false
  scratch_dir: ""
logging:
  level: info
  format: text
metrics:
  textfile: ""
signing:
  key_file: ""
`

// DefaultYAML returns the default configuration document
func DefaultYAML() []byte {
	return []byte(defaultYAML)
}

// ConfigParser parses YAML configuration files
type ConfigParser struct {
	homeDir string
}

// NewConfigParser creates a new YAML parser
func NewConfigParser() *ConfigParser {
	home, err := os.UserHomeDir()
	if err != nil {
		home = ""
	}
	return &ConfigParser{homeDir: home}
}

// ParseFile parses a YAML config file into a BenchConfig
func (p *ConfigParser) ParseFile(filePath string) (*entities.BenchConfig, error) {
	//nolint:gosec // G304: filePath is the user's configuration file
	data, err := os.ReadFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to read file %s: %w", filePath, err)
	}

	return p.Parse(data)
}

// Parse parses YAML bytes on top of the defaults. Keys absent from data keep
// their default values.
func (p *ConfigParser) Parse(data []byte) (*entities.BenchConfig, error) {
	var raw yamlConfig
	if err := yaml.Unmarshal([]byte(defaultYAML), &raw); err != nil {
		return nil, fmt.Errorf("failed to parse default config: %w", err)
	}
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	cfg := &entities.BenchConfig{
		Store: entities.StoreConfig{
			Root:          p.expand(raw.Store.Root),
			HashAlgorithm: entities.HashAlgorithm(strings.ToLower(raw.Store.HashAlgorithm)),
		},
		Analyzer: entities.AnalyzerConfig{
			Path:       p.expand(raw.Analyzer.Path),
			ScriptDir:  p.expand(raw.Analyzer.ScriptDir),
			PostScript: raw.Analyzer.PostScript,
			Timeout:    time.Duration(raw.Analyzer.TimeoutSeconds) * time.Second,
			Retries:    raw.Analyzer.Retries,
			ExtraArgs:  raw.Analyzer.ExtraArgs,
		},
		Strip: entities.StripConfig{Path: p.expand(raw.Strip.Path)},
		Sweep: entities.SweepConfig{
			CacheDir:          p.expand(raw.Sweep.CacheDir),
			SummaryDir:        p.expand(raw.Sweep.SummaryDir),
			Workers:           raw.Sweep.Workers,
			CompareNoAnalysis: raw.Sweep.CompareNoAnalysis,
			ScratchDir:        p.expand(raw.Sweep.ScratchDir),
		},
		Logging: entities.LoggingConfig{
			Level:  strings.ToLower(raw.Logging.Level),
			Format: strings.ToLower(raw.Logging.Format),
		},
		Metrics: entities.MetricsConfig{Textfile: p.expand(raw.Metrics.Textfile)},
		Signing: entities.SigningConfig{KeyFile: p.expand(raw.Signing.KeyFile)},
	}

	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks a resolved configuration
func Validate(cfg *entities.BenchConfig) error {
	if cfg.Store.Root == "" {
		return fmt.Errorf("store.root must be set")
	}
	switch cfg.Store.HashAlgorithm {
	case entities.HashSHA256, entities.HashMD5, entities.HashXXH64:
	default:
		return fmt.Errorf("store.hash_algorithm %q is not one of sha256, md5, xxh64", cfg.Store.HashAlgorithm)
	}
	if cfg.Analyzer.Timeout <= 0 {
		return fmt.Errorf("analyzer.timeout_seconds must be positive")
	}
	if cfg.Analyzer.Retries < 0 {
		return fmt.Errorf("analyzer.retries must not be negative")
	}
	if cfg.Sweep.Workers < 1 {
		return fmt.Errorf("sweep.workers must be at least 1")
	}
	switch cfg.Logging.Level {
	case "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("logging.level %q is not one of debug, info, warn, error", cfg.Logging.Level)
	}
	switch cfg.Logging.Format {
	case "text", "json":
	default:
		return fmt.Errorf("logging.format %q is not one of text, json", cfg.Logging.Format)
	}
	return nil
}

// expand resolves a leading ~ to the home directory
func (p *ConfigParser) expand(path string) string {
	if p.homeDir == "" {
		return path
	}
	if path == "~" {
		return p.homeDir
	}
	if strings.HasPrefix(path, "~/") {
		return filepath.Join(p.homeDir, path[2:])
	}
	return path
}
