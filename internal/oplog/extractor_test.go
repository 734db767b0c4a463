// internal/oplog/extractor_test.go
package oplog

import (
	"encoding/json"
	"testing"

	"retrace/internal/transcript"
)

func toolRecord(tool transcript.ToolUse) transcript.Record {
	return transcript.Record{
		Kind:      "assistant",
		Timestamp: "2026-01-02T10:00:00.000Z",
		Cwd:       "/home/user/proj",
		ToolUses:  []transcript.ToolUse{tool},
	}
}

func TestExtractor(t *testing.T) {
	e := NewExtractor("/home/user/proj")

	t.Run("Write", func(t *testing.T) {
		rec := toolRecord(transcript.ToolUse{
			ID:    "toolu_01",
			Name:  "Write",
			Input: json.RawMessage(`{"file_path":"/home/user/proj/src/a.go","content":"package a\n"}`),
		})

		ops, warnings := e.Extract("s1.jsonl", rec)
		if len(warnings) != 0 {
			t.Fatalf("Expected no warnings, got %v", warnings)
		}
		if len(ops) != 1 {
			t.Fatalf("Expected 1 operation, got %d", len(ops))
		}

		op := ops[0]
		if op.Kind != KindWrite {
			t.Errorf("Expected write kind, got %s", op.Kind)
		}
		if op.Path != "src/a.go" {
			t.Errorf("Expected project-relative path 'src/a.go', got %q", op.Path)
		}
		if op.Content != "package a\n" {
			t.Errorf("Unexpected content %q", op.Content)
		}
		if op.SourceID != "s1.jsonl" {
			t.Errorf("Unexpected source id %q", op.SourceID)
		}
	})

	t.Run("Edit", func(t *testing.T) {
		rec := toolRecord(transcript.ToolUse{
			ID:    "toolu_02",
			Name:  "Edit",
			Input: json.RawMessage(`{"file_path":"a.txt","old_string":"foo","new_string":"bar"}`),
		})

		ops, warnings := e.Extract("s1.jsonl", rec)
		if len(warnings) != 0 || len(ops) != 1 {
			t.Fatalf("Expected 1 operation, got %d ops, %d warnings", len(ops), len(warnings))
		}
		if ops[0].Kind != KindEdit {
			t.Errorf("Expected edit kind, got %s", ops[0].Kind)
		}
		if len(ops[0].Edits) != 1 || ops[0].Edits[0].Old != "foo" || ops[0].Edits[0].New != "bar" {
			t.Errorf("Unexpected edits %+v", ops[0].Edits)
		}
		// Relative path resolves against the record cwd.
		if ops[0].Path != "a.txt" {
			t.Errorf("Expected path 'a.txt', got %q", ops[0].Path)
		}
	})

	t.Run("MultiEditPreservesOrder", func(t *testing.T) {
		rec := toolRecord(transcript.ToolUse{
			ID:    "toolu_03",
			Name:  "MultiEdit",
			Input: json.RawMessage(`{"file_path":"/home/user/proj/a.txt","edits":[{"old_string":"x","new_string":"y"},{"old_string":"y","new_string":"z"}]}`),
		})

		ops, _ := e.Extract("s1.jsonl", rec)
		if len(ops) != 1 {
			t.Fatalf("Expected 1 operation, got %d", len(ops))
		}
		if len(ops[0].Edits) != 2 {
			t.Fatalf("Expected 2 edit pairs, got %d", len(ops[0].Edits))
		}
		if ops[0].Edits[0].Old != "x" || ops[0].Edits[1].Old != "y" {
			t.Errorf("Edit order not preserved: %+v", ops[0].Edits)
		}
	})

	t.Run("OutOfRootPathSkipped", func(t *testing.T) {
		rec := toolRecord(transcript.ToolUse{
			ID:    "toolu_04",
			Name:  "Write",
			Input: json.RawMessage(`{"file_path":"/home/user/other/b.txt","content":"x"}`),
		})

		ops, warnings := e.Extract("s1.jsonl", rec)
		if len(ops) != 0 {
			t.Errorf("Expected no operations, got %d", len(ops))
		}
		if len(warnings) != 1 {
			t.Fatalf("Expected 1 warning, got %d", len(warnings))
		}
	})

	t.Run("InvalidArgumentsWarned", func(t *testing.T) {
		rec := toolRecord(transcript.ToolUse{
			ID:    "toolu_05",
			Name:  "Edit",
			Input: json.RawMessage(`{"file_path":"a.txt"}`),
		})

		ops, warnings := e.Extract("s1.jsonl", rec)
		if len(ops) != 0 || len(warnings) != 1 {
			t.Errorf("Expected skip with warning, got %d ops, %d warnings", len(ops), len(warnings))
		}
	})

	t.Run("MissingPathWarned", func(t *testing.T) {
		rec := toolRecord(transcript.ToolUse{
			ID:    "toolu_06",
			Name:  "Write",
			Input: json.RawMessage(`{"content":"x"}`),
		})

		ops, warnings := e.Extract("s1.jsonl", rec)
		if len(ops) != 0 || len(warnings) != 1 {
			t.Errorf("Expected skip with warning, got %d ops, %d warnings", len(ops), len(warnings))
		}
	})

	t.Run("OtherToolsIgnored", func(t *testing.T) {
		rec := toolRecord(transcript.ToolUse{
			ID:    "toolu_07",
			Name:  "Bash",
			Input: json.RawMessage(`{"command":"ls"}`),
		})

		ops, warnings := e.Extract("s1.jsonl", rec)
		if len(ops) != 0 || len(warnings) != 0 {
			t.Errorf("Non-mutating tools should be silently ignored, got %d ops, %d warnings", len(ops), len(warnings))
		}
	})
}
