package instrument

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestWatcher_Basic(t *testing.T) {
	dir := t.TempDir()

	srcFile := filepath.Join(dir, "app.js")
	if err := os.WriteFile(srcFile, []byte("var x = 1;\n"), 0644); err != nil {
		t.Fatalf("failed to write source file: %v", err)
	}

	watcher, err := NewWatcher()
	if err != nil {
		t.Fatalf("NewWatcher failed: %v", err)
	}
	defer watcher.Close()

	if err := watcher.Add(srcFile); err != nil {
		t.Fatalf("Add failed: %v", err)
	}

	// Verify file is being watched
	watched := watcher.WatchedFiles()
	if len(watched) != 1 {
		t.Errorf("expected 1 watched file, got %d", len(watched))
	}

	// Adding the same file twice is a no-op
	if err := watcher.Add(srcFile); err != nil {
		t.Fatalf("second Add failed: %v", err)
	}
	if len(watcher.WatchedFiles()) != 1 {
		t.Errorf("expected 1 watched file after duplicate Add, got %d", len(watcher.WatchedFiles()))
	}
}

func TestWatcher_FileChange(t *testing.T) {
	dir := t.TempDir()

	srcFile := filepath.Join(dir, "app.js")
	if err := os.WriteFile(srcFile, []byte("var x = 1;\n"), 0644); err != nil {
		t.Fatalf("failed to write source file: %v", err)
	}

	watcher, err := NewWatcher()
	if err != nil {
		t.Fatalf("NewWatcher failed: %v", err)
	}
	defer watcher.Close()

	if err := watcher.Add(srcFile); err != nil {
		t.Fatalf("Add failed: %v", err)
	}

	// Small delay to ensure watcher is set up
	time.Sleep(50 * time.Millisecond)

	if err := os.WriteFile(srcFile, []byte("var x = 2;\n"), 0644); err != nil {
		t.Fatalf("failed to modify source file: %v", err)
	}

	// Wait for event with timeout
	select {
	case event := <-watcher.Events:
		absSrcFile, _ := filepath.Abs(srcFile)
		if event.File != absSrcFile {
			t.Errorf("expected file %q, got %q", absSrcFile, event.File)
		}
	case <-time.After(2 * time.Second):
		t.Error("timeout waiting for file change event")
	}
}

func TestWatcher_Remove(t *testing.T) {
	dir := t.TempDir()

	srcFile := filepath.Join(dir, "app.js")
	if err := os.WriteFile(srcFile, []byte("var x = 1;\n"), 0644); err != nil {
		t.Fatalf("failed to write source file: %v", err)
	}

	watcher, err := NewWatcher()
	if err != nil {
		t.Fatalf("NewWatcher failed: %v", err)
	}
	defer watcher.Close()

	if err := watcher.Add(srcFile); err != nil {
		t.Fatalf("Add failed: %v", err)
	}

	if err := watcher.Remove(srcFile); err != nil {
		t.Fatalf("Remove failed: %v", err)
	}

	// Verify file is no longer being watched
	watched := watcher.WatchedFiles()
	if len(watched) != 0 {
		t.Errorf("expected 0 watched files after remove, got %d", len(watched))
	}
}
