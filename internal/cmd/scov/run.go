// Package scov implements the scov command, the JavaScript coverage
// instrumenter CLI.
package scov

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/pmezard/go-difflib/difflib"

	"github.com/scriptcov/scriptcov/internal/cli"
	"github.com/scriptcov/scriptcov/internal/js/coverage"
	"github.com/scriptcov/scriptcov/internal/js/instrument"
	"github.com/scriptcov/scriptcov/internal/scovconfig"
	"github.com/scriptcov/scriptcov/internal/version"
)

// Run executes scov with the given arguments.
// Returns exit code.
func Run(args []string) int {
	return RunWithIO(context.Background(), args, os.Stdin, os.Stdout, os.Stderr)
}

// RunWithIO allows custom IO for embedding/testing.
func RunWithIO(ctx context.Context, args []string, _ io.Reader, stdout, stderr io.Writer) int {
	var (
		varFlag       string
		ignoreFlag    string
		outputFlag    string
		dumpFlag      bool
		manifestFlag  string
		startLineFlag int
		diffFlag      bool
		watchFlag     bool
		configFlag    string
		versionFlag   bool
		verboseFlag   bool
	)

	fs := flag.NewFlagSet("scov", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.StringVar(&varFlag, "var", "", "coverage namespace variable (default "+instrument.DefaultVariable+")")
	fs.StringVar(&ignoreFlag, "ignore", "", "comma-separated patterns; matching sources pass through unchanged")
	fs.StringVar(&outputFlag, "o", "", "output directory (default: stdout, single input only)")
	fs.BoolVar(&dumpFlag, "dump", false, "also write -instrumented.js debug copies to the output directory")
	fs.StringVar(&manifestFlag, "manifest", "", "path of the records manifest to write")
	fs.IntVar(&startLineFlag, "start-line", 1, "line number of the first source line")
	fs.BoolVar(&diffFlag, "d", false, "print a unified diff of the rewrite instead of applying it")
	fs.BoolVar(&watchFlag, "watch", false, "re-instrument sources when they change (requires -o)")
	fs.StringVar(&configFlag, "config", "", "config file (default: discover scriptcov.toml)")
	fs.BoolVar(&versionFlag, "version", false, "print version and exit")
	fs.BoolVar(&verboseFlag, "v", false, "verbose output")

	fs.Usage = func() {
		cli.Writeln(stderr, "Usage: scov [flags] <file or directory>...")
		cli.Writeln(stderr)
		cli.Writeln(stderr, "Rewrites JavaScript sources so every executable line increments a")
		cli.Writeln(stderr, "counter in a global coverage namespace, and records which lines were")
		cli.Writeln(stderr, "instrumented in a manifest for scovreport.")
		cli.Writeln(stderr)
		cli.Writeln(stderr, "Flags:")
		fs.PrintDefaults()
		cli.Writeln(stderr)
		cli.Writeln(stderr, "Examples:")
		cli.Writeln(stderr, "  scov app.js                        # Instrumented source on stdout")
		cli.Writeln(stderr, "  scov -o build/ -manifest cov.json src/")
		cli.Writeln(stderr, "  scov -ignore 'vendor/.*' -o build/ src/")
		cli.Writeln(stderr, "  scov -watch -o build/ src/         # Re-instrument on change")
	}

	if err := fs.Parse(args); err != nil {
		if err == flag.ErrHelp {
			return cli.ExitOK
		}
		return cli.ExitError
	}

	if versionFlag {
		cli.Writef(stdout, "scov %s\n", version.String())
		return cli.ExitOK
	}

	cfg, err := loadConfig(configFlag)
	if err != nil {
		cli.Writef(stderr, "scov: %v\n", err)
		return cli.ExitError
	}

	// Flags given explicitly win over the config file.
	set := make(map[string]bool)
	fs.Visit(func(f *flag.Flag) { set[f.Name] = true })
	if !set["var"] {
		varFlag = cfg.Instrument.Variable
	}
	ignore := splitPatterns(ignoreFlag)
	if !set["ignore"] {
		ignore = cfg.Instrument.Ignore
	}
	if !set["o"] && cfg.Instrument.OutputDir != "" {
		outputFlag = cfg.Instrument.OutputDir
	}
	if !set["dump"] {
		dumpFlag = cfg.Instrument.Dump
	}
	if !set["manifest"] {
		manifestFlag = cfg.Instrument.Manifest
	}

	inputs, err := collectInputs(fs.Args())
	if err != nil {
		cli.Writef(stderr, "scov: %v\n", err)
		return cli.ExitError
	}
	if len(inputs) == 0 {
		fs.Usage()
		return cli.ExitError
	}
	if outputFlag == "" && len(inputs) > 1 && !diffFlag {
		cli.Writeln(stderr, "scov: -o is required with multiple inputs")
		return cli.ExitError
	}
	if watchFlag && outputFlag == "" {
		cli.Writeln(stderr, "scov: -watch requires -o")
		return cli.ExitError
	}
	if diffFlag {
		// Diff mode is a preview, nothing is written.
		manifestFlag = ""
	}

	if outputFlag != "" && !diffFlag {
		if err := os.MkdirAll(outputFlag, 0o755); err != nil {
			cli.Writef(stderr, "scov: creating output directory: %v\n", err)
			return cli.ExitError
		}
	}

	in, err := instrument.New(instrument.Options{
		Variable:  varFlag,
		Ignore:    ignore,
		OutputDir: outputFlag,
		Dump:      dumpFlag,
	})
	if err != nil {
		cli.Writef(stderr, "scov: %v\n", err)
		return cli.ExitError
	}

	r := &runner{
		in:        in,
		records:   make(map[string]*coverage.ScriptData),
		outputDir: outputFlag,
		startLine: startLineFlag,
		manifest:  manifestFlag,
		diff:      diffFlag,
		verbose:   verboseFlag,
		stdout:    stdout,
		stderr:    stderr,
	}

	failed := false
	for _, file := range inputs {
		if err := r.instrumentFile(file); err != nil {
			cli.Writef(stderr, "scov: %v\n", err)
			failed = true
		}
	}

	if err := r.writeManifest(); err != nil {
		cli.Writef(stderr, "scov: %v\n", err)
		failed = true
	}

	if failed {
		return cli.ExitError
	}

	if watchFlag {
		if err := r.watch(ctx, inputs); err != nil {
			cli.Writef(stderr, "scov: %v\n", err)
			return cli.ExitError
		}
	}

	return cli.ExitOK
}

// runner holds the state of one scov invocation. Records are keyed by
// source name so re-instrumenting a changed file replaces its entry
// instead of appending a duplicate.
type runner struct {
	in        *instrument.Instrumenter
	records   map[string]*coverage.ScriptData
	outputDir string
	startLine int
	manifest  string
	diff      bool
	verbose   bool
	stdout    io.Writer
	stderr    io.Writer
}

func (r *runner) instrumentFile(path string) error {
	source, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading %s: %w", path, err)
	}

	out, err := r.in.Instrument(string(source), path, r.startLine)
	var dumpErr *instrument.DumpError
	if err != nil && !errors.As(err, &dumpErr) {
		return err
	}
	if dumpErr != nil {
		cli.Writef(r.stderr, "scov: warning: %v\n", dumpErr)
	}

	if data := latestRecord(r.in, path); data != nil {
		r.records[path] = data
	} else if r.verbose {
		cli.Writef(r.stderr, "scov: skipping %s (ignored)\n", path)
	}

	if r.diff {
		if d := unifiedDiff(path, string(source), out); d != "" {
			cli.Write(r.stdout, d)
		}
		return nil
	}

	if r.outputDir == "" {
		cli.Write(r.stdout, out)
		return nil
	}

	dest := filepath.Join(r.outputDir, filepath.Base(path))
	if err := os.WriteFile(dest, []byte(out), 0o644); err != nil {
		return fmt.Errorf("writing %s: %w", dest, err)
	}
	if r.verbose {
		cli.Writef(r.stderr, "scov: %s -> %s\n", path, dest)
	}
	return nil
}

func (r *runner) writeManifest() error {
	if r.manifest == "" || len(r.records) == 0 {
		return nil
	}
	names := make([]string, 0, len(r.records))
	for name := range r.records {
		names = append(names, name)
	}
	sort.Strings(names)
	scripts := make([]*coverage.ScriptData, 0, len(names))
	for _, name := range names {
		scripts = append(scripts, r.records[name])
	}
	return coverage.WriteManifest(r.manifest, scripts)
}

func (r *runner) watch(ctx context.Context, inputs []string) error {
	w, err := instrument.NewWatcher()
	if err != nil {
		return err
	}
	defer func() { _ = w.Close() }()

	// Events carry absolute paths; map them back to the names the files
	// were instrumented under, so a rewrite replaces the existing record
	// instead of adding a second one for the same file.
	sources := make(map[string]string, len(inputs))
	for _, file := range inputs {
		abs, err := filepath.Abs(file)
		if err != nil {
			return err
		}
		sources[abs] = file
		if err := w.Add(file); err != nil {
			return err
		}
	}
	cli.Writef(r.stderr, "scov: watching %d file(s)\n", len(inputs))

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			file, known := sources[ev.File]
			if !known {
				file = ev.File
			}
			if r.verbose {
				cli.Writef(r.stderr, "scov: %s changed\n", file)
			}
			if err := r.instrumentFile(file); err != nil {
				cli.Writef(r.stderr, "scov: %v\n", err)
				continue
			}
			if err := r.writeManifest(); err != nil {
				cli.Writef(r.stderr, "scov: %v\n", err)
			}
		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			cli.Writef(r.stderr, "scov: watch error: %v\n", err)
		}
	}
}

// unifiedDiff returns a unified diff between the original and rewritten
// source, or "" when nothing changed.
func unifiedDiff(path, original, rewritten string) string {
	diff := difflib.UnifiedDiff{
		A:        difflib.SplitLines(original),
		B:        difflib.SplitLines(rewritten),
		FromFile: path,
		ToFile:   path + " (instrumented)",
		Context:  3,
	}
	text, _ := difflib.GetUnifiedDiffString(diff)
	return text
}

// latestRecord returns the most recent record for a source name, or nil if
// the source was ignored.
func latestRecord(in *instrument.Instrumenter, name string) *coverage.ScriptData {
	scripts := in.Scripts()
	for i := len(scripts) - 1; i >= 0; i-- {
		if scripts[i].SourceName == name {
			return scripts[i]
		}
	}
	return nil
}

func loadConfig(path string) (*scovconfig.Config, error) {
	if path != "" {
		return scovconfig.LoadConfig(path)
	}
	cfg, _, err := scovconfig.DiscoverConfig("")
	return cfg, err
}

// collectInputs expands directories into the .js files beneath them.
func collectInputs(args []string) ([]string, error) {
	var inputs []string
	for _, arg := range args {
		info, err := os.Stat(arg)
		if err != nil {
			return nil, err
		}
		if !info.IsDir() {
			inputs = append(inputs, arg)
			continue
		}
		err = filepath.WalkDir(arg, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if !d.IsDir() && strings.HasSuffix(path, ".js") {
				inputs = append(inputs, path)
			}
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("walking %s: %w", arg, err)
		}
	}
	return inputs, nil
}

func splitPatterns(s string) []string {
	if s == "" {
		return nil
	}
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
