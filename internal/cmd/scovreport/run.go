// Package scovreport implements the scovreport command, which turns
// counter dumps collected at runtime into coverage reports.
package scovreport

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/scriptcov/scriptcov/internal/cli"
	"github.com/scriptcov/scriptcov/internal/js/coverage"
	"github.com/scriptcov/scriptcov/internal/scovconfig"
	"github.com/scriptcov/scriptcov/internal/version"
)

// Exit codes
const (
	exitOK       = 0
	exitBelowMin = 1
	exitError    = 2
)

// Run executes scovreport with the given arguments.
// Returns exit code.
func Run(args []string) int {
	return RunWithIO(context.Background(), args, os.Stdin, os.Stdout, os.Stderr)
}

// RunWithIO allows custom IO for embedding/testing.
func RunWithIO(_ context.Context, args []string, _ io.Reader, stdout, stderr io.Writer) int {
	var (
		manifestFlag string
		formatFlag   string
		outputFlag   string
		minFlag      float64
		sourceFlag   string
		configFlag   string
		versionFlag  bool
		verboseFlag  bool
	)

	fs := flag.NewFlagSet("scovreport", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.StringVar(&manifestFlag, "manifest", "", "manifest written by scov (default scriptcov-manifest.json)")
	fs.StringVar(&formatFlag, "format", "", "report format: text, json, lcov, cobertura (default text)")
	fs.StringVar(&outputFlag, "o", "", "write report to file instead of stdout")
	fs.Float64Var(&minFlag, "min", 0, "minimum coverage percentage (exit 1 if below)")
	fs.StringVar(&sourceFlag, "source", "", "source directory for Cobertura output")
	fs.StringVar(&configFlag, "config", "", "config file (default: discover scriptcov.toml)")
	fs.BoolVar(&versionFlag, "version", false, "print version and exit")
	fs.BoolVar(&verboseFlag, "v", false, "verbose output")

	fs.Usage = func() {
		cli.Writeln(stderr, "Usage: scovreport [flags] <counter dump>...")
		cli.Writeln(stderr)
		cli.Writeln(stderr, "Reads one or more counter dumps captured from an instrumented run")
		cli.Writeln(stderr, "(JSON.stringify of the coverage namespace), joins them with the")
		cli.Writeln(stderr, "manifest scov wrote, and prints a coverage report.")
		cli.Writeln(stderr)
		cli.Writeln(stderr, "Flags:")
		fs.PrintDefaults()
		cli.Writeln(stderr)
		cli.Writeln(stderr, "Examples:")
		cli.Writeln(stderr, "  scovreport -manifest cov.json hits.json")
		cli.Writeln(stderr, "  scovreport -format lcov -o coverage.lcov hits1.json hits2.json")
		cli.Writeln(stderr, "  scovreport -min 80 hits.json       # Fail below 80% coverage")
	}

	if err := fs.Parse(args); err != nil {
		if err == flag.ErrHelp {
			return exitOK
		}
		return exitError
	}

	if versionFlag {
		cli.Writef(stdout, "scovreport %s\n", version.String())
		return exitOK
	}

	cfg, err := loadConfig(configFlag)
	if err != nil {
		cli.Writef(stderr, "scovreport: %v\n", err)
		return exitError
	}

	set := make(map[string]bool)
	fs.Visit(func(f *flag.Flag) { set[f.Name] = true })
	if !set["manifest"] {
		manifestFlag = cfg.Instrument.Manifest
	}
	if !set["format"] {
		formatFlag = cfg.Report.Format
	}
	if !set["min"] {
		minFlag = cfg.Report.FailUnder
	}
	if !set["o"] {
		outputFlag = cfg.Report.Output
	}

	dumps := fs.Args()
	if len(dumps) == 0 {
		fs.Usage()
		return exitError
	}

	manifest, err := coverage.LoadManifest(manifestFlag)
	if err != nil {
		cli.Writef(stderr, "scovreport: loading manifest: %v\n", err)
		return exitError
	}

	hits, err := readDumps(dumps)
	if err != nil {
		cli.Writef(stderr, "scovreport: %v\n", err)
		return exitError
	}

	report := coverage.BuildReport(manifest, hits)

	rep, err := coverage.NewReporter(formatFlag)
	if err != nil {
		cli.Writef(stderr, "scovreport: %v\n", err)
		return exitError
	}
	if cr, ok := rep.(*coverage.CoberturaReporter); ok && sourceFlag != "" {
		cr.SourceDir = sourceFlag
	}

	out := stdout
	if outputFlag != "" {
		f, err := os.Create(outputFlag)
		if err != nil {
			cli.Writef(stderr, "scovreport: creating output file: %v\n", err)
			return exitError
		}
		defer func() { _ = f.Close() }()
		out = f
	}

	if err := rep.Write(out, report); err != nil {
		cli.Writef(stderr, "scovreport: writing report: %v\n", err)
		return exitError
	}

	if minFlag > 0 {
		report.Compute()
		pct := report.Percentage()
		if pct < minFlag {
			cli.Writef(stderr, "scovreport: coverage %.1f%% is below minimum %.1f%%\n", pct, minFlag)
			return exitBelowMin
		}
		if verboseFlag {
			cli.Writef(stderr, "scovreport: coverage %.1f%% meets minimum %.1f%%\n", pct, minFlag)
		}
	}

	return exitOK
}

// readDumps merges counter dumps, summing hit counts per script and line.
func readDumps(paths []string) (map[string]map[int]int, error) {
	merged := make(map[string]map[int]int)
	for _, path := range paths {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading %s: %w", path, err)
		}
		hits, err := coverage.ParseHits(data)
		if err != nil {
			return nil, fmt.Errorf("parsing %s: %w", path, err)
		}
		for hash, lines := range hits {
			if merged[hash] == nil {
				merged[hash] = make(map[int]int)
			}
			for line, count := range lines {
				merged[hash][line] += count
			}
		}
	}
	return merged, nil
}

func loadConfig(path string) (*scovconfig.Config, error) {
	if path != "" {
		return scovconfig.LoadConfig(path)
	}
	cfg, _, err := scovconfig.DiscoverConfig("")
	return cfg, err
}
