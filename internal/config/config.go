// Package config loads the .codemaprc project configuration.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/phobologic/codemap/internal/discover"
	"github.com/phobologic/codemap/internal/lang"
)

// FileName is the configuration file looked up at the project root.
const FileName = ".codemaprc"

// Config holds all configuration for codemap.
type Config struct {
	Languages          []string    `yaml:"languages"`
	Include            []string    `yaml:"include"`
	Exclude            []string    `yaml:"exclude"`
	MaxDocLength       int         `yaml:"max_doc_length"`
	MaxSignatureLength int         `yaml:"max_signature_length"`
	MaxFileSize        int64       `yaml:"max_file_size"`
	SyntaxCheck        bool        `yaml:"syntax_check"`
	Workers            int         `yaml:"workers"` // 0 = GOMAXPROCS
	Watch              WatchConfig `yaml:"watch"`
}

// WatchConfig holds watch mode configuration.
type WatchConfig struct {
	Debounce time.Duration `yaml:"debounce"`
}

// Default returns the default configuration.
func Default() *Config {
	return &Config{
		Languages:          lang.Names(),
		Include:            []string{"**/*"},
		Exclude:            []string{"**/target/**", "**/.build/**", "**/.codemap/**"},
		MaxDocLength:       150,
		MaxSignatureLength: 100,
		MaxFileSize:        1_000_000,
		Watch: WatchConfig{
			Debounce: 500 * time.Millisecond,
		},
	}
}

// Load reads configuration from a YAML file. A missing file yields the
// defaults; keys absent from the file keep their default values.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return cfg, nil
		}
		return nil, fmt.Errorf("reading config: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// LoadFromDir loads the .codemaprc in dir.
func LoadFromDir(dir string) (*Config, error) {
	return Load(filepath.Join(dir, FileName))
}

// Save writes the configuration as YAML.
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

// Validate checks that every configured language is supported and that
// limits are sane.
func (c *Config) Validate() error {
	for _, name := range c.Languages {
		if _, err := lang.Get(name); err != nil {
			return err
		}
	}
	switch {
	case c.MaxDocLength < 0:
		return fmt.Errorf("max_doc_length must not be negative")
	case c.MaxSignatureLength < 0:
		return fmt.Errorf("max_signature_length must not be negative")
	case c.MaxFileSize < 0:
		return fmt.Errorf("max_file_size must not be negative")
	case c.Workers < 0:
		return fmt.Errorf("workers must not be negative")
	case c.Watch.Debounce < 0:
		return fmt.Errorf("watch.debounce must not be negative")
	}
	return nil
}

// DiscoverOptions returns the file selection settings for discover.
func (c *Config) DiscoverOptions() discover.Options {
	return discover.Options{
		Languages: c.Languages,
		Include:   c.Include,
		Exclude:   c.Exclude,
	}
}
