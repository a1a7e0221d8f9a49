package camelshdf5

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config holds the exporter's file-naming and output options.
type Config struct {
	// Directory receives the produced files. Empty means the current
	// working directory.
	Directory string `yaml:"directory"`

	// FilePrefix is the templated first part of generated file names,
	// populated from the start document. Default "{uid}-".
	FilePrefix string `yaml:"file_prefix"`

	// NewFileEach gives every run a fresh file. When disabled, runs
	// append numbered entries to an existing file.
	NewFileEach bool `yaml:"new_file_each"`

	// NeXusView toggles the soft-linked NeXus-style instrument view.
	NeXusView bool `yaml:"nexus_view"`

	// CompressionLevel enables gzip (1-9) for numeric channel datasets.
	CompressionLevel int `yaml:"compression_level"`

	// LogLevel is consumed by the command-line tool (debug, info, warn,
	// error).
	LogLevel string `yaml:"log_level"`
}

// DefaultConfig returns the exporter defaults.
func DefaultConfig() Config {
	return Config{
		FilePrefix:  "{uid}-",
		NewFileEach: true,
		LogLevel:    "info",
	}
}

// LoadConfig reads a yaml configuration file on top of the defaults.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	data, err := os.ReadFile(path) //nolint:gosec // caller-supplied config path
	if err != nil {
		return cfg, wrapErr("read config", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, wrapErr("parse config", err)
	}
	if err := cfg.validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func (c Config) validate() error {
	if c.CompressionLevel < 0 || c.CompressionLevel > 9 {
		return fmt.Errorf("compression_level %d out of range 0-9", c.CompressionLevel)
	}
	return nil
}

// Options converts the configuration into serializer options.
func (c Config) Options() []Option {
	return []Option{
		WithFilePrefix(c.FilePrefix),
		WithNewFileEach(c.NewFileEach),
		WithNeXusView(c.NeXusView),
		WithCompression(c.CompressionLevel),
	}
}
