package server

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func waitForEvent(t *testing.T, events <-chan string) string {
	t.Helper()
	select {
	case path := <-events:
		return path
	case <-time.After(3 * time.Second):
		t.Fatal("timed out waiting for a config change event")
		return ""
	}
}

func TestConfigWatcherReportsWrites(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "orb.yaml")
	if err := os.WriteFile(path, []byte("tick_rate: 60\n"), 0o644); err != nil {
		t.Fatalf("failed to seed config: %v", err)
	}

	watcher, err := NewConfigWatcher(path)
	if err != nil {
		t.Fatalf("failed to start watcher: %v", err)
	}
	defer watcher.Close()

	if err := os.WriteFile(path, []byte("tick_rate: 30\n"), 0o644); err != nil {
		t.Fatalf("failed to rewrite config: %v", err)
	}

	if got := waitForEvent(t, watcher.Events); filepath.Clean(got) != filepath.Clean(path) {
		t.Fatalf("expected event for %s, got %s", path, got)
	}
}

func TestConfigWatcherIgnoresOtherFiles(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "orb.yaml")
	if err := os.WriteFile(path, []byte("tick_rate: 60\n"), 0o644); err != nil {
		t.Fatalf("failed to seed config: %v", err)
	}

	watcher, err := NewConfigWatcher(path)
	if err != nil {
		t.Fatalf("failed to start watcher: %v", err)
	}
	defer watcher.Close()

	other := filepath.Join(dir, "notes.txt")
	if err := os.WriteFile(other, []byte("scratch"), 0o644); err != nil {
		t.Fatalf("failed to write sibling file: %v", err)
	}

	select {
	case got := <-watcher.Events:
		t.Fatalf("expected no event for sibling file, got %s", got)
	case <-time.After(300 * time.Millisecond):
	}
}

func TestConfigWatcherCloseIsIdempotent(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "orb.yaml")
	if err := os.WriteFile(path, []byte("tick_rate: 60\n"), 0o644); err != nil {
		t.Fatalf("failed to seed config: %v", err)
	}

	watcher, err := NewConfigWatcher(path)
	if err != nil {
		t.Fatalf("failed to start watcher: %v", err)
	}
	if err := watcher.Close(); err != nil {
		t.Fatalf("first close failed: %v", err)
	}
	if err := watcher.Close(); err != nil {
		t.Fatalf("second close failed: %v", err)
	}

	if _, ok := <-watcher.Events; ok {
		t.Fatal("expected events channel to be closed")
	}
}
