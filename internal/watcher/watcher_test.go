// internal/watcher/watcher_test.go
package watcher

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestWatcher(t *testing.T) {
	t.Run("ReportsChangedSessionFile", func(t *testing.T) {
		tempDir, err := os.MkdirTemp("", "watcher_test")
		if err != nil {
			t.Fatal(err)
		}
		defer os.RemoveAll(tempDir)

		events := make(chan string, 10)
		w, err := New(tempDir, 50*time.Millisecond, func(path string) {
			events <- path
		})
		if err != nil {
			t.Fatalf("New failed: %v", err)
		}
		defer w.Close()

		if err := w.Start(); err != nil {
			t.Fatalf("Start failed: %v", err)
		}

		target := filepath.Join(tempDir, "session.jsonl")
		if err := os.WriteFile(target, []byte("{}\n"), 0644); err != nil {
			t.Fatal(err)
		}

		select {
		case path := <-events:
			if path != target {
				t.Errorf("Expected %s, got %s", target, path)
			}
		case <-time.After(2 * time.Second):
			t.Fatal("Timed out waiting for event")
		}
	})

	t.Run("DebouncesBursts", func(t *testing.T) {
		tempDir, err := os.MkdirTemp("", "watcher_test")
		if err != nil {
			t.Fatal(err)
		}
		defer os.RemoveAll(tempDir)

		events := make(chan string, 10)
		w, err := New(tempDir, 100*time.Millisecond, func(path string) {
			events <- path
		})
		if err != nil {
			t.Fatal(err)
		}
		defer w.Close()

		if err := w.Start(); err != nil {
			t.Fatal(err)
		}

		target := filepath.Join(tempDir, "burst.jsonl")
		for i := 0; i < 5; i++ {
			if err := os.WriteFile(target, []byte("{}\n"), 0644); err != nil {
				t.Fatal(err)
			}
			time.Sleep(10 * time.Millisecond)
		}

		select {
		case <-events:
		case <-time.After(2 * time.Second):
			t.Fatal("Timed out waiting for debounced event")
		}

		// The burst coalesces: no second event after the quiet window.
		select {
		case path := <-events:
			t.Errorf("Expected a single debounced event, got extra for %s", path)
		case <-time.After(300 * time.Millisecond):
		}
	})

	t.Run("IgnoresNonSessionFiles", func(t *testing.T) {
		tempDir, err := os.MkdirTemp("", "watcher_test")
		if err != nil {
			t.Fatal(err)
		}
		defer os.RemoveAll(tempDir)

		events := make(chan string, 10)
		w, err := New(tempDir, 50*time.Millisecond, func(path string) {
			events <- path
		})
		if err != nil {
			t.Fatal(err)
		}
		defer w.Close()

		if err := w.Start(); err != nil {
			t.Fatal(err)
		}

		if err := os.WriteFile(filepath.Join(tempDir, "notes.txt"), []byte("x"), 0644); err != nil {
			t.Fatal(err)
		}

		select {
		case path := <-events:
			t.Errorf("Expected no event for non-jsonl file, got %s", path)
		case <-time.After(300 * time.Millisecond):
		}
	})

	t.Run("CloseIsIdempotent", func(t *testing.T) {
		tempDir, err := os.MkdirTemp("", "watcher_test")
		if err != nil {
			t.Fatal(err)
		}
		defer os.RemoveAll(tempDir)

		w, err := New(tempDir, 50*time.Millisecond, func(string) {})
		if err != nil {
			t.Fatal(err)
		}
		if err := w.Start(); err != nil {
			t.Fatal(err)
		}
		if err := w.Close(); err != nil {
			t.Errorf("First close failed: %v", err)
		}
		if err := w.Close(); err != nil {
			t.Errorf("Second close failed: %v", err)
		}
		if err := w.Start(); err == nil {
			t.Error("Start after close should fail")
		}
	})
}
