// Package coverage provides line-coverage data structures for instrumented
// JavaScript sources.
//
// Instrumentation produces a ScriptData per source unit describing which
// lines carry counters; a host that executed the instrumented code reports
// hit counts back, which are merged into a Report for output.
package coverage

import (
	"sort"
	"sync"
)

// ExecutableLine is one instrumented line of a source unit.
type ExecutableLine struct {
	// Number is the 1-based line number in the original source.
	Number int `json:"number"`

	// Length is the statement length in characters. Statements inside a
	// switch case record the length of the governing case.
	Length int `json:"length"`
}

// ScriptData describes the instrumentation of a single source unit.
//
// ExecutableLines holds one entry per distinct instrumented line, in the
// order the rewriter discovered them. A ScriptData is owned by the
// goroutine driving instrumentation; it has no internal locking.
type ScriptData struct {
	// SourceName is the opaque identifier the source was submitted under
	// (URL, path, inline-script label).
	SourceName string `json:"source_name"`

	// HashedName is the deterministic hash of SourceName used as the
	// sub-map key in the runtime coverage namespace.
	HashedName string `json:"hashed_name"`

	// ExecutableLines lists instrumented lines in discovery order.
	ExecutableLines []ExecutableLine `json:"executable_lines"`

	lineIndex map[int]int // line number -> index into ExecutableLines
}

// NewScriptData creates a ScriptData for the named source.
func NewScriptData(sourceName string) *ScriptData {
	return &ScriptData{
		SourceName: sourceName,
		HashedName: HashSourceName(sourceName),
		lineIndex:  make(map[int]int),
	}
}

// AddExecutableLine records an instrumented line. Recording the same line
// again keeps its position but updates the length.
func (d *ScriptData) AddExecutableLine(line, length int) {
	if d.lineIndex == nil {
		d.lineIndex = make(map[int]int)
		for i, el := range d.ExecutableLines {
			d.lineIndex[el.Number] = i
		}
	}
	if i, ok := d.lineIndex[line]; ok {
		d.ExecutableLines[i].Length = length
		return
	}
	d.lineIndex[line] = len(d.ExecutableLines)
	d.ExecutableLines = append(d.ExecutableLines, ExecutableLine{Number: line, Length: length})
}

// HasLine reports whether the line was recorded as executable.
func (d *ScriptData) HasLine(line int) bool {
	if d.lineIndex != nil {
		_, ok := d.lineIndex[line]
		return ok
	}
	for _, el := range d.ExecutableLines {
		if el.Number == line {
			return true
		}
	}
	return false
}

// StatementCount returns the number of distinct instrumented lines.
func (d *ScriptData) StatementCount() int {
	return len(d.ExecutableLines)
}

// LineCoverage tracks execution counts for lines in a source unit.
type LineCoverage struct {
	// Hits maps line numbers (1-based) to execution counts.
	Hits map[int]int

	// TotalLines is the total number of executable lines.
	TotalLines int

	// CoveredLines is the number of lines executed at least once.
	CoveredLines int
}

// NewLineCoverage creates a new LineCoverage instance.
func NewLineCoverage() *LineCoverage {
	return &LineCoverage{
		Hits: make(map[int]int),
	}
}

// RecordHit adds count executions of the given line.
func (lc *LineCoverage) RecordHit(line, count int) {
	lc.Hits[line] += count
}

// Compute calculates TotalLines and CoveredLines from Hits.
func (lc *LineCoverage) Compute() {
	lc.TotalLines = len(lc.Hits)
	lc.CoveredLines = 0
	for _, count := range lc.Hits {
		if count > 0 {
			lc.CoveredLines++
		}
	}
}

// Percentage returns the coverage percentage (0-100).
func (lc *LineCoverage) Percentage() float64 {
	if lc.TotalLines == 0 {
		return 100.0 // No lines = 100% covered
	}
	return float64(lc.CoveredLines) / float64(lc.TotalLines) * 100.0
}

// Lines returns sorted list of all line numbers.
func (lc *LineCoverage) Lines() []int {
	lines := make([]int, 0, len(lc.Hits))
	for line := range lc.Hits {
		lines = append(lines, line)
	}
	sort.Ints(lines)
	return lines
}

// FileCoverage contains coverage data for a single source unit.
type FileCoverage struct {
	// Path is the source identifier (URL, path, inline-script label).
	Path string

	// Lines contains line-level coverage data.
	Lines *LineCoverage
}

// NewFileCoverage creates a new FileCoverage for the given path.
func NewFileCoverage(path string) *FileCoverage {
	return &FileCoverage{
		Path:  path,
		Lines: NewLineCoverage(),
	}
}

// Report contains aggregated coverage data for multiple source units.
type Report struct {
	mu sync.RWMutex

	// Files maps source identifiers to their coverage data.
	Files map[string]*FileCoverage

	// TotalLines is the sum of all executable lines.
	TotalLines int

	// CoveredLines is the sum of all covered lines.
	CoveredLines int
}

// NewReport creates a new empty coverage report.
func NewReport() *Report {
	return &Report{
		Files: make(map[string]*FileCoverage),
	}
}

// AddFile adds or returns existing file coverage.
func (r *Report) AddFile(path string) *FileCoverage {
	r.mu.Lock()
	defer r.mu.Unlock()

	if fc, ok := r.Files[path]; ok {
		return fc
	}

	fc := NewFileCoverage(path)
	r.Files[path] = fc
	return fc
}

// AddScript seeds the report with a script's executable lines at zero hits,
// so lines never reached by the host still show up as uncovered.
func (r *Report) AddScript(data *ScriptData) *FileCoverage {
	fc := r.AddFile(data.SourceName)
	for _, el := range data.ExecutableLines {
		if _, ok := fc.Lines.Hits[el.Number]; !ok {
			fc.Lines.Hits[el.Number] = 0
		}
	}
	return fc
}

// GetFile returns file coverage or nil if not found.
func (r *Report) GetFile(path string) *FileCoverage {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.Files[path]
}

// Compute calculates aggregate statistics.
func (r *Report) Compute() {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.TotalLines = 0
	r.CoveredLines = 0

	for _, fc := range r.Files {
		fc.Lines.Compute()
		r.TotalLines += fc.Lines.TotalLines
		r.CoveredLines += fc.Lines.CoveredLines
	}
}

// Percentage returns the overall coverage percentage.
func (r *Report) Percentage() float64 {
	if r.TotalLines == 0 {
		return 100.0
	}
	return float64(r.CoveredLines) / float64(r.TotalLines) * 100.0
}

// FilePaths returns sorted list of all source identifiers.
func (r *Report) FilePaths() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	paths := make([]string, 0, len(r.Files))
	for path := range r.Files {
		paths = append(paths, path)
	}
	sort.Strings(paths)
	return paths
}

// Merge combines another report into this one.
func (r *Report) Merge(other *Report) {
	r.mu.Lock()
	defer r.mu.Unlock()

	other.mu.RLock()
	defer other.mu.RUnlock()

	for path, otherFC := range other.Files {
		fc, ok := r.Files[path]
		if !ok {
			fc = NewFileCoverage(path)
			r.Files[path] = fc
		}

		for line, count := range otherFC.Lines.Hits {
			fc.Lines.Hits[line] += count
		}
	}
}
