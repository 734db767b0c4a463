// internal/transcript/projects_test.go
package transcript

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestProjectDirName(t *testing.T) {
	got := ProjectDirName("/home/user/myproject")
	want := "-home-user-myproject"
	if got != want {
		t.Errorf("Expected %q, got %q", want, got)
	}
}

func TestSources(t *testing.T) {
	claudeDir, err := os.MkdirTemp("", "transcript_test")
	if err != nil {
		t.Fatal(err)
	}
	defer os.RemoveAll(claudeDir)

	projectPath := "/home/user/proj"
	dir := ProjectDir(claudeDir, projectPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		t.Fatal(err)
	}

	t.Run("MissingDirYieldsNoSources", func(t *testing.T) {
		sources, err := Sources(claudeDir, "/home/user/other")
		if err != nil {
			t.Fatalf("Sources failed: %v", err)
		}
		if len(sources) != 0 {
			t.Errorf("Expected no sources, got %d", len(sources))
		}
	})

	t.Run("ListsJSONLOldestFirst", func(t *testing.T) {
		newer := filepath.Join(dir, "bbb.jsonl")
		older := filepath.Join(dir, "aaa.jsonl")
		ignored := filepath.Join(dir, "notes.txt")

		for _, path := range []string{newer, older, ignored} {
			if err := os.WriteFile(path, []byte("{}\n"), 0644); err != nil {
				t.Fatal(err)
			}
		}
		// Force distinct mtimes with the "newer" file second.
		base := time.Now().Add(-time.Hour)
		if err := os.Chtimes(older, base, base); err != nil {
			t.Fatal(err)
		}
		if err := os.Chtimes(newer, base.Add(time.Minute), base.Add(time.Minute)); err != nil {
			t.Fatal(err)
		}

		sources, err := Sources(claudeDir, projectPath)
		if err != nil {
			t.Fatalf("Sources failed: %v", err)
		}
		if len(sources) != 2 {
			t.Fatalf("Expected 2 sources, got %d", len(sources))
		}
		if sources[0].Name != "aaa.jsonl" || sources[1].Name != "bbb.jsonl" {
			t.Errorf("Expected oldest first, got %s then %s", sources[0].Name, sources[1].Name)
		}
	})
}
