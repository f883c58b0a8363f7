package coverage

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/gofrs/flock"
)

// Manifest is the on-disk inventory of instrumented sources. It lets a
// reporting process, possibly in another OS process than the instrumenter,
// map runtime namespace hashes back to source names and executable lines.
type Manifest struct {
	GeneratedAt time.Time     `json:"generated_at"`
	Scripts     []*ScriptData `json:"scripts"`
}

// WriteManifest writes the instrumentation records to path as JSON.
// Writes are serialized across processes with a sidecar lock file.
func WriteManifest(path string, scripts []*ScriptData) error {
	return withFileLock(path, func() error {
		m := Manifest{
			GeneratedAt: time.Now().UTC(),
			Scripts:     scripts,
		}
		data, err := json.MarshalIndent(m, "", "  ")
		if err != nil {
			return fmt.Errorf("encoding manifest: %w", err)
		}
		if err := os.WriteFile(path, append(data, '\n'), 0o644); err != nil {
			return fmt.Errorf("writing manifest %s: %w", path, err)
		}
		return nil
	})
}

// LoadManifest reads an instrumentation records manifest from path.
func LoadManifest(path string) (*Manifest, error) {
	var m Manifest
	err := withFileLock(path, func() error {
		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("reading manifest %s: %w", path, err)
		}
		if err := json.Unmarshal(data, &m); err != nil {
			return fmt.Errorf("parsing manifest %s: %w", path, err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &m, nil
}

// ScriptByHash returns the script with the given hashed name, or nil.
func (m *Manifest) ScriptByHash(hash string) *ScriptData {
	for _, s := range m.Scripts {
		if s.HashedName == hash {
			return s
		}
	}
	return nil
}

func withFileLock(path string, fn func() error) error {
	fileLock := flock.New(path + ".lock")
	if err := fileLock.Lock(); err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	defer func() { _ = fileLock.Unlock() }()

	return fn()
}

// ParseHits parses a runtime counter dump, the JSON serialization of the
// coverage namespace object: {"<hash>": {"<line>": count, ...}, ...}.
func ParseHits(data []byte) (map[string]map[int]int, error) {
	var raw map[string]map[string]int
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parsing counter dump: %w", err)
	}

	hits := make(map[string]map[int]int, len(raw))
	for hash, lines := range raw {
		m := make(map[int]int, len(lines))
		for lineStr, count := range lines {
			line, err := strconv.Atoi(lineStr)
			if err != nil {
				return nil, fmt.Errorf("counter dump for %s: bad line key %q", hash, lineStr)
			}
			m[line] = count
		}
		hits[hash] = m
	}
	return hits, nil
}

// BuildReport merges manifest records with runtime hit counts into a
// Report. Every executable line from the manifest appears in the report;
// hashes in the dump with no manifest entry are skipped.
func BuildReport(m *Manifest, hits map[string]map[int]int) *Report {
	report := NewReport()
	for _, s := range m.Scripts {
		fc := report.AddScript(s)
		for line, count := range hits[s.HashedName] {
			if s.HasLine(line) {
				fc.Lines.RecordHit(line, count)
			}
		}
	}
	return report
}
