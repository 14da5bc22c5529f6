package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/dustin/go-humanize"
	"gopkg.in/yaml.v3"
)

// FileName is the name of the config file searched for by FindConfigFile.
const FileName = "imobax.yaml"

// Config is the top-level configuration
type Config struct {
	Restore  RestoreConfig  `yaml:"restore"`
	Manifest ManifestConfig `yaml:"manifest"`
	Log      LogConfig      `yaml:"log"`
}

// RestoreConfig holds restore settings. Command-line flags override them.
type RestoreConfig struct {
	Force          bool `yaml:"force"`
	IgnoreMissing  bool `yaml:"ignore_missing"`
	Workers        int  `yaml:"workers"`
	PreserveXattrs bool `yaml:"preserve_xattrs"`
	PreserveTimes  bool `yaml:"preserve_times"`
}

// ManifestConfig holds manifest decoding settings
type ManifestConfig struct {
	// MaxSize caps the size of a binary manifest, e.g. "512MiB".
	MaxSize string `yaml:"max_size"`
}

// LogConfig holds logging settings
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// DefaultConfig returns a config with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Restore: RestoreConfig{
			Force:          false,
			IgnoreMissing:  false,
			Workers:        1,
			PreserveXattrs: true,
			PreserveTimes:  true,
		},
		Manifest: ManifestConfig{
			MaxSize: "1GiB",
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Load reads a config file from the given path
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config file %s: %w", path, err)
	}

	return cfg, nil
}

// FindConfigFile searches for a config file in standard locations
func FindConfigFile() (string, error) {
	searchPaths := []string{FileName}

	if home, err := os.UserHomeDir(); err == nil {
		searchPaths = append(searchPaths,
			filepath.Join(home, ".config", "imobax", FileName),
		)
	}
	searchPaths = append(searchPaths, filepath.Join("/etc", "imobax", FileName))

	for _, path := range searchPaths {
		if _, err := os.Stat(path); err == nil {
			return path, nil
		}
	}

	return "", fmt.Errorf("no config file found (searched: %v)", searchPaths)
}

// Validate checks values that YAML decoding alone does not.
func (c *Config) Validate() error {
	if c.Restore.Workers < 1 {
		return fmt.Errorf("restore.workers must be at least 1, got %d", c.Restore.Workers)
	}
	if _, err := c.MaxManifestSize(); err != nil {
		return err
	}
	switch strings.ToLower(c.Log.Level) {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("log.level must be one of debug, info, warn, error; got %q", c.Log.Level)
	}
	switch strings.ToLower(c.Log.Format) {
	case "text", "json":
	default:
		return fmt.Errorf("log.format must be text or json; got %q", c.Log.Format)
	}
	return nil
}

// MaxManifestSize returns manifest.max_size in bytes.
func (c *Config) MaxManifestSize() (int64, error) {
	n, err := humanize.ParseBytes(c.Manifest.MaxSize)
	if err != nil {
		return 0, fmt.Errorf("manifest.max_size: %w", err)
	}
	if n == 0 || n > 1<<62 {
		return 0, fmt.Errorf("manifest.max_size out of range: %q", c.Manifest.MaxSize)
	}
	return int64(n), nil
}

// Marshal encodes c as YAML.
func (c *Config) Marshal() ([]byte, error) {
	data, err := yaml.Marshal(c)
	if err != nil {
		return nil, fmt.Errorf("marshaling config: %w", err)
	}
	return data, nil
}

// Write stores c at path. An existing file is only replaced if overwrite
// is set.
func (c *Config) Write(path string, overwrite bool) error {
	data, err := c.Marshal()
	if err != nil {
		return err
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("creating config directory: %w", err)
		}
	}

	flags := os.O_WRONLY | os.O_CREATE | os.O_TRUNC
	if !overwrite {
		flags |= os.O_EXCL
	}
	f, err := os.OpenFile(path, flags, 0o644)
	if err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		return fmt.Errorf("writing config file: %w", err)
	}
	return f.Close()
}
