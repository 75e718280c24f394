package yaml

import (
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/ochairo/ripbench/internal/domain/entities"
)

func TestConfigParser_Parse_Defaults(t *testing.T) {
	parser := &ConfigParser{homeDir: "/home/bench"}

	cfg, err := parser.Parse(nil)
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}

	if cfg.Store.Root != "/home/bench/.ripbin/ripped_bins" {
		t.Errorf("Store.Root = %v", cfg.Store.Root)
	}
	if cfg.Store.HashAlgorithm != entities.HashSHA256 {
		t.Errorf("HashAlgorithm = %v", cfg.Store.HashAlgorithm)
	}
	if cfg.Analyzer.Timeout != 600*time.Second {
		t.Errorf("Analyzer.Timeout = %v", cfg.Analyzer.Timeout)
	}
	if cfg.Analyzer.PostScript != "List_Function_and_Entry.py" {
		t.Errorf("Analyzer.PostScript = %v", cfg.Analyzer.PostScript)
	}
	if cfg.Sweep.Workers != 1 || cfg.Sweep.CacheDir != ".ghidra_bench" {
		t.Errorf("Sweep = %+v", cfg.Sweep)
	}
	if cfg.Logging.Level != "info" || cfg.Logging.Format != "text" {
		t.Errorf("Logging = %+v", cfg.Logging)
	}
}

func TestConfigParser_Parse_Overrides(t *testing.T) {
	parser := &ConfigParser{homeDir: "/home/bench"}
	yamlData := []byte(`store:
  root: /data/ripped
  hash_algorithm: XXH64
analyzer:
  timeout_seconds: 30
  retries: 2
  extra_args: ["-max-cpu", "2"]
sweep:
  workers: 8
  compare_noanalysis: true
  scratch_dir: ~/scratch
logging:
  format: json
signing:
  key_file: ~/.ripbench/key.asc
`)

	cfg, err := parser.Parse(yamlData)
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}

	if cfg.Store.Root != "/data/ripped" {
		t.Errorf("Store.Root = %v", cfg.Store.Root)
	}
	if cfg.Store.HashAlgorithm != entities.HashXXH64 {
		t.Errorf("HashAlgorithm = %v, want xxh64", cfg.Store.HashAlgorithm)
	}
	if cfg.Analyzer.Timeout != 30*time.Second || cfg.Analyzer.Retries != 2 {
		t.Errorf("Analyzer = %+v", cfg.Analyzer)
	}
	if len(cfg.Analyzer.ExtraArgs) != 2 {
		t.Errorf("ExtraArgs = %v", cfg.Analyzer.ExtraArgs)
	}
	// untouched keys keep their defaults
	if cfg.Analyzer.ScriptDir != filepath.Join("/home/bench", "ghidra_scripts") {
		t.Errorf("Analyzer.ScriptDir = %v", cfg.Analyzer.ScriptDir)
	}
	if cfg.Sweep.Workers != 8 || !cfg.Sweep.CompareNoAnalysis {
		t.Errorf("Sweep = %+v", cfg.Sweep)
	}
	if cfg.Sweep.ScratchDir != "/home/bench/scratch" {
		t.Errorf("Sweep.ScratchDir = %v", cfg.Sweep.ScratchDir)
	}
	if cfg.Logging.Format != "json" || cfg.Logging.Level != "info" {
		t.Errorf("Logging = %+v", cfg.Logging)
	}
	if cfg.Signing.KeyFile != "/home/bench/.ripbench/key.asc" {
		t.Errorf("Signing.KeyFile = %v", cfg.Signing.KeyFile)
	}
}

func TestConfigParser_Parse_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		yaml    string
		wantErr string
	}{
		{name: "bad hash", yaml: "store: {hash_algorithm: crc32}", wantErr: "hash_algorithm"},
		{name: "zero workers", yaml: "sweep: {workers: 0}", wantErr: "workers"},
		{name: "negative retries", yaml: "analyzer: {retries: -1}", wantErr: "retries"},
		{name: "zero timeout", yaml: "analyzer: {timeout_seconds: 0}", wantErr: "timeout"},
		{name: "bad level", yaml: "logging: {level: loud}", wantErr: "logging.level"},
		{name: "bad format", yaml: "logging: {format: xml}", wantErr: "logging.format"},
		{name: "empty root", yaml: "store: {root: \"\"}", wantErr: "store.root"},
		{name: "malformed", yaml: "store: [", wantErr: "failed to parse YAML"},
	}

	parser := &ConfigParser{}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := parser.Parse([]byte(tt.yaml))
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Parse() error = %v, want containing %q", err, tt.wantErr)
			}
		})
	}
}

func TestConfigParser_Expand(t *testing.T) {
	parser := &ConfigParser{homeDir: "/home/u"}

	tests := []struct {
		in   string
		want string
	}{
		{"~", "/home/u"},
		{"~/x/y", "/home/u/x/y"},
		{"/abs", "/abs"},
		{"rel/~", "rel/~"},
		{"~other/x", "~other/x"},
	}
	for _, tt := range tests {
		if got := parser.expand(tt.in); got != tt.want {
			t.Errorf("expand(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
