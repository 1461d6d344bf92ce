// Package config handles bimtool configuration loading and management.
package config

import (
	"errors"
	"fmt"
)

// Output formats understood by the dump command.
const (
	FormatYAML = "yaml"
	FormatJSON = "json"
)

// ErrInvalidConfig is returned by Validate.
var ErrInvalidConfig = errors.New("invalid config")

// Config holds all bimtool settings.
type Config struct {
	Import  ImportConfig  `yaml:"import"`
	Output  OutputConfig  `yaml:"output"`
	Logging LoggingConfig `yaml:"logging"`
}

// ImportConfig holds import pipeline settings.
type ImportConfig struct {
	Workers         int  `yaml:"workers"`           // Parallel element reconstruction, 0 or 1 is sequential
	Strict          bool `yaml:"strict"`            // Fail the import on any element anomaly
	AssignObjectIDs bool `yaml:"assign_object_ids"` // Use element Guids as object ids

	// RotationTolerance reports quaternions whose norm is further than this
	// from 1. Zero disables the check.
	RotationTolerance float64 `yaml:"rotation_tolerance"`
}

// OutputConfig holds serialisation settings for command output.
type OutputConfig struct {
	Format string `yaml:"format"` // yaml or json
	Indent int    `yaml:"indent"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level   string `yaml:"level"`
	LogFile string `yaml:"log_file"`
}

// Default returns a Config with sensible default values.
func Default() *Config {
	return &Config{
		Import: ImportConfig{
			Workers:         1,
			Strict:          false,
			AssignObjectIDs: true,

			RotationTolerance: 1e-6,
		},
		Output: OutputConfig{
			Format: FormatYAML,
			Indent: 2,
		},
		Logging: LoggingConfig{
			Level:   "info",
			LogFile: "",
		},
	}
}

// Validate reports settings that cannot be used.
func (c *Config) Validate() error {
	if c.Import.Workers < 0 {
		return fmt.Errorf("%w: import.workers must not be negative, got %d", ErrInvalidConfig, c.Import.Workers)
	}
	if c.Import.RotationTolerance < 0 {
		return fmt.Errorf("%w: import.rotation_tolerance must not be negative, got %g", ErrInvalidConfig, c.Import.RotationTolerance)
	}
	switch c.Output.Format {
	case FormatYAML, FormatJSON:
	default:
		return fmt.Errorf("%w: output.format must be %q or %q, got %q", ErrInvalidConfig, FormatYAML, FormatJSON, c.Output.Format)
	}
	if c.Output.Indent < 0 {
		return fmt.Errorf("%w: output.indent must not be negative, got %d", ErrInvalidConfig, c.Output.Indent)
	}
	return nil
}
