// bimtool is a CLI utility for importing dotbim (.bim) models.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"
	"gopkg.in/yaml.v3"

	"github.com/Faultbox/bimport/internal/attributes"
	"github.com/Faultbox/bimport/internal/config"
	"github.com/Faultbox/bimport/internal/document"
	"github.com/Faultbox/bimport/internal/importer"
	"github.com/Faultbox/bimport/internal/logger"
	"github.com/Faultbox/bimport/pkg/formats"
)

// Exit codes.
const (
	exitOK      = 0
	exitFailure = 1
	exitCancel  = 2
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	if len(args) < 1 {
		printUsage(stderr)
		return exitFailure
	}

	command := args[0]
	args = args[1:]

	switch command {
	case "info":
		return cmdInfo(args, stdout, stderr)
	case "import":
		return cmdImport(args, stdout, stderr)
	case "attrs":
		return cmdAttrs(args, stdout, stderr)
	case "dump":
		return cmdDump(args, stdout, stderr)
	case "config":
		return cmdConfig(args, stdout, stderr)
	case "help", "-h", "--help":
		printUsage(stdout)
		return exitOK
	default:
		fmt.Fprintf(stderr, "Unknown command: %s\n", command)
		printUsage(stderr)
		return exitFailure
	}
}

func printUsage(w io.Writer) {
	fmt.Fprintln(w, `bimtool - dotbim model import utility

Usage:
  bimtool <command> [options] <file.bim>

Commands:
  info <file.bim>                          Show schema version, counts and file info
  import [-strict] [-workers N] <file.bim> Import the model and report anomalies
  attrs <file.bim> [guid]                  Print attribute sets, sorted by key
  dump [-format yaml|json] <file.bim>      Import the model and print the document
  config [-save] [-o path]                 Print the effective config, or write it

Global options:
  -config <path>    Config file (default ./bimtool.yaml, then the user config dir)
  -debug            Enable debug logging
  -log-file <path>  Also write logs to a rotated file

Import options:
  -rotation-tolerance <eps>  Report rotations whose norm differs from 1 by more than eps

Examples:
  bimtool info house.bim
  bimtool import -workers 4 house.bim
  bimtool attrs house.bim 76e051c1-1bd7-44fc-8e2e-db2b64055068
  bimtool dump -format json house.bim
  bimtool config -workers 4 -save`)
}

// setup parses the flags of one command, loads the config and starts logging.
func setup(name string, args []string, stderr io.Writer, register func(*config.Flags, *flag.FlagSet)) (*config.Config, *flag.FlagSet, error) {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(stderr)
	f := config.RegisterFlags(fs)
	if register != nil {
		register(f, fs)
	}
	if err := fs.Parse(args); err != nil {
		return nil, nil, err
	}

	cfg, err := config.Load(f)
	if err != nil {
		return nil, nil, err
	}
	if err := logger.Init(cfg.Logging.Level, cfg.Logging.LogFile); err != nil {
		return nil, nil, fmt.Errorf("init logger: %w", err)
	}
	return cfg, fs, nil
}

func importOptions(cfg *config.Config) importer.Options {
	return importer.Options{
		Workers:         cfg.Import.Workers,
		Strict:          cfg.Import.Strict,
		AssignObjectIDs: cfg.Import.AssignObjectIDs,

		RotationTolerance: cfg.Import.RotationTolerance,
	}
}

func cmdInfo(args []string, stdout, stderr io.Writer) int {
	_, fs, err := setup("info", args, stderr, nil)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return exitFailure
	}
	defer logger.Sync()

	if fs.NArg() < 1 {
		fmt.Fprintln(stderr, "Usage: bimtool info <file.bim>")
		return exitFailure
	}

	file, err := formats.LoadBIM(fs.Arg(0))
	if err != nil {
		logger.Error("load failed", zap.String("path", fs.Arg(0)), zap.Error(err))
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return exitFailure
	}

	var vertices, faces int
	for _, m := range file.Meshes {
		vertices += len(m.Vertices)
		faces += len(m.Faces)
	}

	fmt.Fprintf(stdout, "File:     %s\n", fs.Arg(0))
	fmt.Fprintf(stdout, "Schema:   %s\n", file.SchemaVersion)
	fmt.Fprintf(stdout, "Meshes:   %d (%d vertices, %d faces)\n", len(file.Meshes), vertices, faces)
	fmt.Fprintf(stdout, "Elements: %d\n", len(file.Elements))

	if len(file.Info) > 0 {
		fmt.Fprintln(stdout)
		fmt.Fprintln(stdout, "File info:")
		keys := maps.Keys(file.Info)
		slices.Sort(keys)
		for _, k := range keys {
			fmt.Fprintf(stdout, "  %s: %s\n", k, file.Info[k])
		}
	}
	return exitOK
}

func cmdImport(args []string, stdout, stderr io.Writer) int {
	cfg, fs, err := setup("import", args, stderr, (*config.Flags).RegisterImportFlags)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return exitFailure
	}
	defer logger.Sync()

	if fs.NArg() < 1 {
		fmt.Fprintln(stderr, "Usage: bimtool import [-strict] [-workers N] <file.bim>")
		return exitFailure
	}

	doc := document.New()
	report := runImport(fs.Arg(0), doc, cfg)

	fmt.Fprintln(stdout, report.Message)
	fmt.Fprintf(stdout, "Objects:   %d of %d elements\n", report.Added, report.Elements)
	fmt.Fprintf(stdout, "Anomalies: %d\n", len(report.Anomalies))
	for _, a := range report.Anomalies {
		fmt.Fprintf(stdout, "  %s\n", a.Error())
	}
	return exitCode(report.Outcome)
}

func cmdAttrs(args []string, stdout, stderr io.Writer) int {
	cfg, fs, err := setup("attrs", args, stderr, nil)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return exitFailure
	}
	defer logger.Sync()

	if fs.NArg() < 1 {
		fmt.Fprintln(stderr, "Usage: bimtool attrs <file.bim> [guid]")
		return exitFailure
	}

	file, err := formats.LoadBIM(fs.Arg(0))
	if err != nil {
		logger.Error("load failed", zap.String("path", fs.Arg(0)), zap.Error(err))
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return exitFailure
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	batch, err := importer.Build(ctx, file, importOptions(cfg))
	if err != nil {
		logger.Error("build failed", zap.String("path", fs.Arg(0)), zap.Error(err))
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return buildExitCode(err)
	}

	guid := strings.ToLower(fs.Arg(1))
	found := false
	for _, item := range batch.Items {
		if guid != "" && strings.ToLower(item.Element.GUID) != guid {
			continue
		}
		found = true
		printAttributes(stdout, item.Element.GUID, item.Attributes)
	}

	if guid != "" && !found {
		fmt.Fprintf(stderr, "No element with guid %s\n", fs.Arg(1))
		return exitFailure
	}
	return exitOK
}

func printAttributes(w io.Writer, guid string, set *attributes.Set) {
	fmt.Fprintf(w, "%s\n", guid)
	for _, key := range set.Keys() {
		value, _ := set.Get(key)
		fmt.Fprintf(w, "  %s = %s\n", key, value)
	}
}

func cmdDump(args []string, stdout, stderr io.Writer) int {
	cfg, fs, err := setup("dump", args, stderr, func(f *config.Flags, fs *flag.FlagSet) {
		f.RegisterImportFlags(fs)
		f.RegisterOutputFlags(fs)
	})
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return exitFailure
	}
	defer logger.Sync()

	if fs.NArg() < 1 {
		fmt.Fprintln(stderr, "Usage: bimtool dump [-format yaml|json] <file.bim>")
		return exitFailure
	}

	doc := document.New()
	report := runImport(fs.Arg(0), doc, cfg)
	if report.Outcome != importer.Success {
		fmt.Fprintln(stderr, report.Message)
		return exitCode(report.Outcome)
	}

	if err := writeRecords(stdout, doc.Records(), cfg.Output); err != nil {
		logger.Error("write records failed", zap.String("format", cfg.Output.Format), zap.Error(err))
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return exitFailure
	}
	return exitOK
}

func cmdConfig(args []string, stdout, stderr io.Writer) int {
	var (
		save bool
		out  string
	)
	cfg, _, err := setup("config", args, stderr, func(f *config.Flags, fs *flag.FlagSet) {
		f.RegisterImportFlags(fs)
		f.RegisterOutputFlags(fs)
		fs.BoolVar(&save, "save", false, "Write the config to the user config dir")
		fs.StringVar(&out, "o", "", "Write the config to this path")
	})
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return exitFailure
	}
	defer logger.Sync()

	var path string
	switch {
	case out != "":
		path = out
		err = cfg.SaveTo(out)
	case save:
		path = filepath.Join(config.ConfigDir(), config.FileName)
		err = cfg.Save()
	default:
		data, err := yaml.Marshal(cfg)
		if err != nil {
			fmt.Fprintf(stderr, "Error: %v\n", err)
			return exitFailure
		}
		stdout.Write(data)
		return exitOK
	}

	if err != nil {
		logger.Error("save config failed", zap.String("path", path), zap.Error(err))
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return exitFailure
	}
	logger.Info("config saved", zap.String("path", path))
	fmt.Fprintf(stdout, "Config written to %s\n", path)
	return exitOK
}

// runImport imports path into doc. An interrupt cancels the import.
func runImport(path string, doc *document.Document, cfg *config.Config) importer.Report {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	logger.Debug("starting import",
		zap.String("path", path),
		zap.Int("workers", cfg.Import.Workers),
		zap.Bool("strict", cfg.Import.Strict))
	return importer.Import(ctx, path, doc, importOptions(cfg))
}

func writeRecords(w io.Writer, records []document.Record, out config.OutputConfig) error {
	switch out.Format {
	case config.FormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", strings.Repeat(" ", out.Indent))
		return enc.Encode(records)
	default:
		enc := yaml.NewEncoder(w)
		if out.Indent > 0 {
			enc.SetIndent(out.Indent)
		}
		if err := enc.Encode(records); err != nil {
			return err
		}
		return enc.Close()
	}
}

// buildExitCode maps a Build error to an exit code. Only an interrupted
// build counts as a cancel.
func buildExitCode(err error) int {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return exitCancel
	}
	return exitFailure
}

func exitCode(o importer.Outcome) int {
	switch o {
	case importer.Success:
		return exitOK
	case importer.Cancel:
		return exitCancel
	default:
		return exitFailure
	}
}
