package config

import "flag"

// Flags holds command-line overrides. Zero values leave the config untouched.
type Flags struct {
	Config  string
	Debug   bool
	LogFile string
	Workers int
	Strict  bool
	Format  string

	RotationTolerance float64
}

// RegisterFlags defines the global flags on fs.
func RegisterFlags(fs *flag.FlagSet) *Flags {
	f := &Flags{}
	fs.StringVar(&f.Config, "config", "", "Path to config file")
	fs.BoolVar(&f.Debug, "debug", false, "Enable debug logging")
	fs.StringVar(&f.LogFile, "log-file", "", "Write logs to this file as well")
	return f
}

// RegisterImportFlags defines the import flags on fs.
func (f *Flags) RegisterImportFlags(fs *flag.FlagSet) {
	fs.IntVar(&f.Workers, "workers", 0, "Reconstruct elements with N workers")
	fs.BoolVar(&f.Strict, "strict", false, "Fail the import on any element anomaly")
	fs.Float64Var(&f.RotationTolerance, "rotation-tolerance", 0, "Report rotations whose norm differs from 1 by more than this")
}

// RegisterOutputFlags defines the output flags on fs.
func (f *Flags) RegisterOutputFlags(fs *flag.FlagSet) {
	fs.StringVar(&f.Format, "format", "", "Output format: yaml or json")
}

// ConfigPath returns the explicit config path if provided via --config flag.
func (f *Flags) ConfigPath() string {
	if f == nil {
		return ""
	}
	return f.Config
}

// apply applies CLI flag overrides to the config.
func (f *Flags) apply(cfg *Config) {
	if f == nil {
		return
	}
	if f.Debug {
		cfg.Logging.Level = "debug"
	}
	if f.LogFile != "" {
		cfg.Logging.LogFile = f.LogFile
	}
	if f.Workers > 0 {
		cfg.Import.Workers = f.Workers
	}
	if f.Strict {
		cfg.Import.Strict = true
	}
	if f.RotationTolerance > 0 {
		cfg.Import.RotationTolerance = f.RotationTolerance
	}
	if f.Format != "" {
		cfg.Output.Format = f.Format
	}
}
