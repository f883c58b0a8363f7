// Package instrument rewrites JavaScript sources so that every executable
// line increments a counter in a global coverage namespace when it runs.
//
// The instrumented text is self-initializing: a preamble declares the
// namespace if the host has not, creates a per-source sub-map keyed by the
// hashed source name, and zeroes one counter per executable line, so a
// source that never runs still reports all its lines as uncovered.
package instrument

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/t14raptor/go-fast/generator"
	"github.com/t14raptor/go-fast/parser"

	"github.com/scriptcov/scriptcov/internal/js/coverage"
)

// DefaultVariable is the coverage namespace used when none is configured.
const DefaultVariable = "__scriptcov__"

var identRe = regexp.MustCompile(`^[A-Za-z_$][A-Za-z0-9_$]*$`)

// Options configures an Instrumenter.
type Options struct {
	// Variable is the global coverage namespace variable. Must be a valid
	// JavaScript identifier. Defaults to DefaultVariable.
	Variable string

	// Ignore lists patterns for sources to pass through uninstrumented.
	Ignore []string

	// OutputDir is where instrumented copies are dumped when Dump is set.
	OutputDir string

	// Dump writes a copy of each instrumented source to OutputDir.
	Dump bool
}

// DumpError reports a failed write of an instrumented copy. The
// instrumented text itself is valid and is still returned alongside it.
type DumpError struct {
	Path string
	Err  error
}

func (e *DumpError) Error() string {
	return fmt.Sprintf("dumping instrumented copy to %s: %v", e.Path, e.Err)
}

func (e *DumpError) Unwrap() error { return e.Err }

// Instrumenter rewrites sources and accumulates their coverage records.
//
// An Instrumenter is not safe for concurrent use; the accumulated records
// are owned by the goroutine driving it.
type Instrumenter struct {
	varName   string
	ignore    *IgnoreList
	outputDir string
	dump      bool

	scripts []*coverage.ScriptData
}

// New creates an Instrumenter. Invalid ignore patterns and namespace
// variable names are rejected here, before any source is touched.
func New(opts Options) (*Instrumenter, error) {
	varName := opts.Variable
	if varName == "" {
		varName = DefaultVariable
	}
	if !identRe.MatchString(varName) {
		return nil, fmt.Errorf("coverage variable %q is not a valid identifier", varName)
	}

	ignore, err := NewIgnoreList(opts.Ignore)
	if err != nil {
		return nil, err
	}

	return &Instrumenter{
		varName:   varName,
		ignore:    ignore,
		outputDir: opts.OutputDir,
		dump:      opts.Dump,
	}, nil
}

// Variable returns the coverage namespace variable name.
func (in *Instrumenter) Variable() string { return in.varName }

// Scripts returns the records of every source instrumented so far, in
// submission order. Ignored sources have no record.
func (in *Instrumenter) Scripts() []*coverage.ScriptData { return in.scripts }

// Instrument rewrites source, identified by name, starting at startLine
// (1 for standalone files). Ignored sources are returned unchanged. A
// parse failure fails the whole source. When dumping is enabled and the
// dump write fails, the instrumented text is returned together with a
// *DumpError.
func (in *Instrumenter) Instrument(source, name string, startLine int) (string, error) {
	if in.ignore.ShouldIgnore(name) {
		return source, nil
	}
	if startLine < 1 {
		startLine = 1
	}

	data := coverage.NewScriptData(name)

	prog, err := parser.ParseFile(source)
	if err != nil {
		return "", fmt.Errorf("parsing %s: %w", name, err)
	}

	rw := newRewriter(data, source, in.varName, startLine)
	if err := rw.rewrite(prog); err != nil {
		return "", fmt.Errorf("instrumenting %s: %w", name, err)
	}

	in.scripts = append(in.scripts, data)

	var buf strings.Builder
	fmt.Fprintf(&buf, "var %s = %s || {};\n", in.varName, in.varName)
	fmt.Fprintf(&buf, "%s['%s'] = {};\n", in.varName, data.HashedName)
	for _, el := range data.ExecutableLines {
		fmt.Fprintf(&buf, "%s['%s'][%d] = 0;\n", in.varName, data.HashedName, el.Number)
	}
	buf.WriteString(generator.Generate(prog))

	instrumented := buf.String()

	if in.dump {
		if err := in.dumpCopy(name, instrumented); err != nil {
			return instrumented, err
		}
	}

	return instrumented, nil
}

func (in *Instrumenter) dumpCopy(name, text string) error {
	path := filepath.Join(in.outputDir, filepath.Base(name)+"-instrumented.js")
	if err := os.WriteFile(path, []byte(text), 0o644); err != nil {
		return &DumpError{Path: path, Err: err}
	}
	return nil
}
