// internal/oplog/merger_test.go
package oplog

import (
	"errors"
	"testing"
	"time"
)

func TestMerge(t *testing.T) {
	base := time.Date(2026, 1, 2, 10, 0, 0, 0, time.UTC)

	t.Run("OrdersByTimestamp", func(t *testing.T) {
		sources := []SourceLog{
			{
				SourceID: "a.jsonl",
				ModTime:  base,
				Ops: []Operation{
					{ID: "op2", Timestamp: "2026-01-02T10:05:00.000Z", Path: "a.txt"},
				},
			},
			{
				SourceID: "b.jsonl",
				ModTime:  base.Add(time.Minute),
				Ops: []Operation{
					{ID: "op1", Timestamp: "2026-01-02T10:01:00.000Z", Path: "a.txt"},
				},
			},
		}

		log, err := Merge(sources)
		if err != nil {
			t.Fatalf("Merge failed: %v", err)
		}
		if log.Len() != 2 {
			t.Fatalf("Expected 2 operations, got %d", log.Len())
		}
		if log.Ops[0].ID != "op1" || log.Ops[1].ID != "op2" {
			t.Errorf("Expected op1 then op2, got %s then %s", log.Ops[0].ID, log.Ops[1].ID)
		}
	})

	t.Run("SameTimestampOrderedBySourceMtime", func(t *testing.T) {
		ts := "2026-01-02T10:00:00.000Z"
		sources := []SourceLog{
			{
				SourceID: "newer.jsonl",
				ModTime:  base.Add(time.Hour),
				Ops:      []Operation{{ID: "op-newer", Timestamp: ts}},
			},
			{
				SourceID: "older.jsonl",
				ModTime:  base,
				Ops:      []Operation{{ID: "op-older", Timestamp: ts}},
			},
		}

		log, err := Merge(sources)
		if err != nil {
			t.Fatalf("Merge failed: %v", err)
		}
		if log.Ops[0].ID != "op-older" {
			t.Errorf("Expected operation from source with earlier mtime first, got %s", log.Ops[0].ID)
		}
	})

	t.Run("InSourceOrderPreserved", func(t *testing.T) {
		ts := "2026-01-02T10:00:00.000Z"
		sources := []SourceLog{
			{
				SourceID: "a.jsonl",
				ModTime:  base,
				Ops: []Operation{
					{ID: "first", Timestamp: ts},
					{ID: "second", Timestamp: ts},
					{ID: "third", Timestamp: ts},
				},
			},
		}

		log, err := Merge(sources)
		if err != nil {
			t.Fatalf("Merge failed: %v", err)
		}
		for i, want := range []string{"first", "second", "third"} {
			if log.Ops[i].ID != want {
				t.Errorf("Position %d: expected %s, got %s", i, want, log.Ops[i].ID)
			}
		}
	})

	t.Run("DuplicateIDIsHardError", func(t *testing.T) {
		sources := []SourceLog{
			{
				SourceID: "a.jsonl",
				ModTime:  base,
				Ops:      []Operation{{ID: "op1", Timestamp: "2026-01-02T10:00:00.000Z"}},
			},
			{
				SourceID: "b.jsonl",
				ModTime:  base.Add(time.Minute),
				Ops:      []Operation{{ID: "op1", Timestamp: "2026-01-02T10:09:00.000Z"}},
			},
		}

		log, err := Merge(sources)
		if err == nil {
			t.Fatal("Expected duplicate id error, got nil")
		}
		if log != nil {
			t.Error("Expected no log on merge error")
		}

		var dup *DuplicateIDError
		if !errors.As(err, &dup) {
			t.Fatalf("Expected *DuplicateIDError, got %T", err)
		}
		if dup.ID != "op1" {
			t.Errorf("Expected conflicting id op1, got %s", dup.ID)
		}
		if dup.First.SourceID != "a.jsonl" || dup.Second.SourceID != "b.jsonl" {
			t.Errorf("Expected both conflicting operations attached, got %+v", dup)
		}
	})

	t.Run("EmptyInput", func(t *testing.T) {
		log, err := Merge(nil)
		if err != nil {
			t.Fatalf("Merge failed: %v", err)
		}
		if log.Len() != 0 {
			t.Errorf("Expected empty log, got %d operations", log.Len())
		}
	})
}
