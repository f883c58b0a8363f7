package coverage

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
)

func TestScriptData(t *testing.T) {
	t.Run("new", func(t *testing.T) {
		d := NewScriptData("app.js")

		if d.SourceName != "app.js" {
			t.Errorf("SourceName = %q, want app.js", d.SourceName)
		}
		if d.HashedName != HashSourceName("app.js") {
			t.Errorf("HashedName = %q, want hash of source name", d.HashedName)
		}
		if d.StatementCount() != 0 {
			t.Errorf("StatementCount = %d, want 0", d.StatementCount())
		}
	})

	t.Run("discovery order preserved", func(t *testing.T) {
		d := NewScriptData("app.js")
		d.AddExecutableLine(10, 20)
		d.AddExecutableLine(3, 15)
		d.AddExecutableLine(7, 8)

		want := []ExecutableLine{{10, 20}, {3, 15}, {7, 8}}
		if len(d.ExecutableLines) != len(want) {
			t.Fatalf("len(ExecutableLines) = %d, want %d", len(d.ExecutableLines), len(want))
		}
		for i, el := range want {
			if d.ExecutableLines[i] != el {
				t.Errorf("ExecutableLines[%d] = %v, want %v", i, d.ExecutableLines[i], el)
			}
		}
	})

	t.Run("duplicate line keeps position updates length", func(t *testing.T) {
		d := NewScriptData("app.js")
		d.AddExecutableLine(5, 10)
		d.AddExecutableLine(8, 4)
		d.AddExecutableLine(5, 30)

		if d.StatementCount() != 2 {
			t.Fatalf("StatementCount = %d, want 2", d.StatementCount())
		}
		if d.ExecutableLines[0] != (ExecutableLine{5, 30}) {
			t.Errorf("ExecutableLines[0] = %v, want {5 30}", d.ExecutableLines[0])
		}
	})

	t.Run("has line", func(t *testing.T) {
		d := NewScriptData("app.js")
		d.AddExecutableLine(5, 10)

		if !d.HasLine(5) {
			t.Error("HasLine(5) = false, want true")
		}
		if d.HasLine(6) {
			t.Error("HasLine(6) = true, want false")
		}
	})
}

func TestHashSourceName(t *testing.T) {
	a := HashSourceName("http://example.com/app.js")
	b := HashSourceName("http://example.com/other.js")

	if a == b {
		t.Error("distinct source names should hash differently")
	}
	if a != HashSourceName("http://example.com/app.js") {
		t.Error("hash should be deterministic")
	}
	if len(a) != 64 {
		t.Errorf("hash length = %d, want 64 hex chars", len(a))
	}
	if strings.ContainsAny(a, "'\\") {
		t.Errorf("hash %q must be safe inside a single-quoted JS literal", a)
	}
}

func TestLineCoverage(t *testing.T) {
	t.Run("empty", func(t *testing.T) {
		lc := NewLineCoverage()
		lc.Compute()

		if lc.TotalLines != 0 {
			t.Errorf("TotalLines = %d, want 0", lc.TotalLines)
		}
		if lc.CoveredLines != 0 {
			t.Errorf("CoveredLines = %d, want 0", lc.CoveredLines)
		}
		if lc.Percentage() != 100.0 {
			t.Errorf("Percentage = %f, want 100.0", lc.Percentage())
		}
	})

	t.Run("with hits", func(t *testing.T) {
		lc := NewLineCoverage()
		lc.RecordHit(1, 1)
		lc.RecordHit(1, 1)
		lc.RecordHit(2, 1)
		lc.Hits[3] = 0 // Line exists but not covered
		lc.Compute()

		if lc.TotalLines != 3 {
			t.Errorf("TotalLines = %d, want 3", lc.TotalLines)
		}
		if lc.CoveredLines != 2 {
			t.Errorf("CoveredLines = %d, want 2", lc.CoveredLines)
		}
		if lc.Hits[1] != 2 {
			t.Errorf("Hits[1] = %d, want 2", lc.Hits[1])
		}
	})

	t.Run("lines sorted", func(t *testing.T) {
		lc := NewLineCoverage()
		lc.RecordHit(10, 1)
		lc.RecordHit(5, 1)
		lc.RecordHit(15, 1)

		lines := lc.Lines()
		if len(lines) != 3 {
			t.Fatalf("len(Lines) = %d, want 3", len(lines))
		}
		if lines[0] != 5 || lines[1] != 10 || lines[2] != 15 {
			t.Errorf("Lines = %v, want [5 10 15]", lines)
		}
	})
}

func TestReport(t *testing.T) {
	t.Run("empty report", func(t *testing.T) {
		r := NewReport()
		r.Compute()

		if r.TotalLines != 0 {
			t.Errorf("TotalLines = %d, want 0", r.TotalLines)
		}
		if r.Percentage() != 100.0 {
			t.Errorf("Percentage = %f, want 100.0", r.Percentage())
		}
	})

	t.Run("add files", func(t *testing.T) {
		r := NewReport()

		fc1 := r.AddFile("a.js")
		fc1.Lines.RecordHit(1, 1)
		fc1.Lines.RecordHit(2, 1)

		fc2 := r.AddFile("b.js")
		fc2.Lines.RecordHit(1, 1)
		fc2.Lines.Hits[2] = 0

		r.Compute()

		if r.TotalLines != 4 {
			t.Errorf("TotalLines = %d, want 4", r.TotalLines)
		}
		if r.CoveredLines != 3 {
			t.Errorf("CoveredLines = %d, want 3", r.CoveredLines)
		}
	})

	t.Run("add script seeds zero hits", func(t *testing.T) {
		d := NewScriptData("app.js")
		d.AddExecutableLine(1, 10)
		d.AddExecutableLine(4, 20)

		r := NewReport()
		r.AddScript(d)
		r.Compute()

		if r.TotalLines != 2 {
			t.Errorf("TotalLines = %d, want 2", r.TotalLines)
		}
		if r.CoveredLines != 0 {
			t.Errorf("CoveredLines = %d, want 0", r.CoveredLines)
		}
	})

	t.Run("file paths sorted", func(t *testing.T) {
		r := NewReport()
		r.AddFile("z.js")
		r.AddFile("a.js")
		r.AddFile("m.js")

		paths := r.FilePaths()
		if len(paths) != 3 {
			t.Fatalf("len(FilePaths) = %d, want 3", len(paths))
		}
		if paths[0] != "a.js" || paths[1] != "m.js" || paths[2] != "z.js" {
			t.Errorf("FilePaths = %v, want [a.js m.js z.js]", paths)
		}
	})

	t.Run("merge", func(t *testing.T) {
		r1 := NewReport()
		fc1 := r1.AddFile("shared.js")
		fc1.Lines.RecordHit(1, 1)
		fc1.Lines.RecordHit(2, 1)
		r1.AddFile("only1.js")

		r2 := NewReport()
		fc2 := r2.AddFile("shared.js")
		fc2.Lines.RecordHit(2, 1)
		fc2.Lines.RecordHit(3, 1)
		r2.AddFile("only2.js")

		r1.Merge(r2)

		if len(r1.Files) != 3 {
			t.Errorf("len(Files) = %d, want 3", len(r1.Files))
		}

		shared := r1.GetFile("shared.js")
		if shared.Lines.Hits[1] != 1 {
			t.Errorf("shared Hits[1] = %d, want 1", shared.Lines.Hits[1])
		}
		if shared.Lines.Hits[2] != 2 {
			t.Errorf("shared Hits[2] = %d, want 2", shared.Lines.Hits[2])
		}
		if shared.Lines.Hits[3] != 1 {
			t.Errorf("shared Hits[3] = %d, want 1", shared.Lines.Hits[3])
		}
	})
}

func TestParseHits(t *testing.T) {
	hash := HashSourceName("app.js")
	dump := `{"` + hash + `": {"1": 3, "4": 0, "9": 12}}`

	hits, err := ParseHits([]byte(dump))
	if err != nil {
		t.Fatalf("ParseHits failed: %v", err)
	}

	m := hits[hash]
	if m == nil {
		t.Fatal("hash missing from parsed hits")
	}
	if m[1] != 3 || m[4] != 0 || m[9] != 12 {
		t.Errorf("hits = %v, want map[1:3 4:0 9:12]", m)
	}

	if _, err := ParseHits([]byte(`{"h": {"abc": 1}}`)); err == nil {
		t.Error("expected error for non-numeric line key")
	}
}

func TestBuildReport(t *testing.T) {
	d := NewScriptData("app.js")
	d.AddExecutableLine(1, 10)
	d.AddExecutableLine(4, 20)
	d.AddExecutableLine(9, 5)

	m := &Manifest{Scripts: []*ScriptData{d}}
	hits := map[string]map[int]int{
		d.HashedName: {1: 2, 9: 1, 99: 7}, // 99 was never instrumented
		"unknown":    {1: 5},
	}

	report := BuildReport(m, hits)
	report.Compute()

	fc := report.GetFile("app.js")
	if fc == nil {
		t.Fatal("app.js not in report")
	}
	if fc.Lines.Hits[1] != 2 {
		t.Errorf("Hits[1] = %d, want 2", fc.Lines.Hits[1])
	}
	if fc.Lines.Hits[4] != 0 {
		t.Errorf("Hits[4] = %d, want 0", fc.Lines.Hits[4])
	}
	if _, ok := fc.Lines.Hits[99]; ok {
		t.Error("line 99 should not appear in report")
	}
	if len(report.Files) != 1 {
		t.Errorf("len(Files) = %d, want 1 (unknown hash skipped)", len(report.Files))
	}
	if report.TotalLines != 3 || report.CoveredLines != 2 {
		t.Errorf("totals = %d/%d, want 2/3 covered", report.CoveredLines, report.TotalLines)
	}
}

func TestTextReporter(t *testing.T) {
	report := NewReport()
	fc := report.AddFile("test.js")
	fc.Lines.RecordHit(1, 1)
	fc.Lines.RecordHit(2, 1)
	fc.Lines.Hits[3] = 0

	var buf bytes.Buffer
	r := &TextReporter{Verbose: true, ShowMissing: true}
	if err := r.Write(&buf, report); err != nil {
		t.Fatalf("Write failed: %v", err)
	}

	output := buf.String()
	if !strings.Contains(output, "test.js") {
		t.Error("output should contain filename")
	}
	if !strings.Contains(output, "66.7%") {
		t.Errorf("output should contain coverage percentage, got: %s", output)
	}
	if !strings.Contains(output, "Missing: 3") {
		t.Error("output should contain missing lines")
	}
}

func TestJSONReporter(t *testing.T) {
	report := NewReport()
	fc := report.AddFile("test.js")
	fc.Lines.RecordHit(1, 1)
	fc.Lines.Hits[2] = 0

	var buf bytes.Buffer
	r := &JSONReporter{Pretty: true}
	if err := r.Write(&buf, report); err != nil {
		t.Fatalf("Write failed: %v", err)
	}

	var jr JSONReport
	if err := json.Unmarshal(buf.Bytes(), &jr); err != nil {
		t.Fatalf("JSON unmarshal failed: %v", err)
	}

	if jr.TotalLines != 2 {
		t.Errorf("TotalLines = %d, want 2", jr.TotalLines)
	}
	if jr.CoveredLines != 1 {
		t.Errorf("CoveredLines = %d, want 1", jr.CoveredLines)
	}
	if len(jr.Files) != 1 {
		t.Fatalf("len(Files) = %d, want 1", len(jr.Files))
	}
	if jr.Files[0].Path != "test.js" {
		t.Errorf("Files[0].Path = %q, want test.js", jr.Files[0].Path)
	}
}

func TestCoberturaReporter(t *testing.T) {
	report := NewReport()
	fc := report.AddFile("src/test.js")
	fc.Lines.RecordHit(1, 1)
	fc.Lines.RecordHit(2, 1)

	var buf bytes.Buffer
	r := &CoberturaReporter{SourceDir: "/workspace"}
	if err := r.Write(&buf, report); err != nil {
		t.Fatalf("Write failed: %v", err)
	}

	output := buf.String()
	if !strings.Contains(output, "<?xml version=") {
		t.Error("output should contain XML header")
	}
	if !strings.Contains(output, "<coverage") {
		t.Error("output should contain coverage element")
	}
	if !strings.Contains(output, "src/test.js") {
		t.Error("output should contain filename")
	}
}

func TestLCOVReporter(t *testing.T) {
	report := NewReport()
	fc := report.AddFile("test.js")
	fc.Lines.RecordHit(1, 1)
	fc.Lines.RecordHit(2, 1)
	fc.Lines.Hits[5] = 0

	var buf bytes.Buffer
	r := &LCOVReporter{}
	if err := r.Write(&buf, report); err != nil {
		t.Fatalf("Write failed: %v", err)
	}

	output := buf.String()
	if !strings.Contains(output, "SF:test.js") {
		t.Error("output should contain SF line")
	}
	if !strings.Contains(output, "DA:1,1") {
		t.Error("output should contain DA line")
	}
	if !strings.Contains(output, "DA:5,0") {
		t.Error("output should contain uncovered DA line")
	}
	if !strings.Contains(output, "LF:3") || !strings.Contains(output, "LH:2") {
		t.Error("output should contain LF/LH totals")
	}
	if !strings.Contains(output, "end_of_record") {
		t.Error("output should contain end_of_record")
	}
}

func TestNewReporter(t *testing.T) {
	for _, format := range []string{"text", "json", "lcov", "cobertura"} {
		if _, err := NewReporter(format); err != nil {
			t.Errorf("NewReporter(%q) failed: %v", format, err)
		}
	}
	if _, err := NewReporter("html"); err == nil {
		t.Error("expected error for unknown format")
	}
}

func TestFormatLineRanges(t *testing.T) {
	tests := []struct {
		lines []int
		want  string
	}{
		{nil, ""},
		{[]int{1}, "1"},
		{[]int{1, 2, 3}, "1-3"},
		{[]int{1, 3, 5}, "1, 3, 5"},
		{[]int{1, 2, 3, 10, 11, 20}, "1-3, 10-11, 20"},
	}

	for _, tt := range tests {
		got := formatLineRanges(tt.lines)
		if got != tt.want {
			t.Errorf("formatLineRanges(%v) = %q, want %q", tt.lines, got, tt.want)
		}
	}
}
