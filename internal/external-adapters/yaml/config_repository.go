package yaml

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/ochairo/ripbench/internal/domain/entities"
)

// ConfigRepository loads the tool configuration from a YAML file
type ConfigRepository struct {
	path   string
	parser *ConfigParser
}

// NewConfigRepository creates a repository for the config at path.
// An empty path selects DefaultConfigPath.
func NewConfigRepository(path string) *ConfigRepository {
	if path == "" {
		path = DefaultConfigPath()
	}
	return &ConfigRepository{
		path:   path,
		parser: NewConfigParser(),
	}
}

// DefaultConfigPath returns ~/.config/ripbench/config.yml
func DefaultConfigPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "ripbench.yml"
	}
	return filepath.Join(dir, "ripbench", "config.yml")
}

// Path returns the config file location
func (r *ConfigRepository) Path() string {
	return r.path
}

// Load reads the configuration. A missing file yields the defaults.
func (r *ConfigRepository) Load() (*entities.BenchConfig, error) {
	if _, err := os.Stat(r.path); os.IsNotExist(err) {
		return r.parser.Parse(nil)
	}
	return r.parser.ParseFile(r.path)
}

// WriteDefault writes the default configuration unless a file already exists
func (r *ConfigRepository) WriteDefault() (bool, error) {
	if _, err := os.Stat(r.path); err == nil {
		return false, nil
	}
	if err := os.MkdirAll(filepath.Dir(r.path), 0750); err != nil {
		return false, fmt.Errorf("failed to create config directory: %w", err)
	}
	if err := os.WriteFile(r.path, DefaultYAML(), 0600); err != nil {
		return false, fmt.Errorf("failed to write config: %w", err)
	}
	return true, nil
}
