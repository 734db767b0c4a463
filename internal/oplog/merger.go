// internal/oplog/merger.go
package oplog

import (
	"fmt"
	"sort"
	"time"
)

// SourceLog is one source's operations in their natural order, together
// with the source's own last-modified time. The mtime is the tie-breaker
// for operations from different sessions sharing a timestamp.
type SourceLog struct {
	SourceID string
	ModTime  time.Time
	Ops      []Operation
}

// DuplicateIDError reports the same operation id claimed by two sources.
// Two sources claiming one id is an upstream invariant violation, not a
// concurrency case to reconcile, so the merge fails instead of deduping.
type DuplicateIDError struct {
	ID     string
	First  Operation
	Second Operation
}

func (e *DuplicateIDError) Error() string {
	return fmt.Sprintf("duplicate operation id %s in sources %s and %s",
		e.ID, e.First.SourceID, e.Second.SourceID)
}

// mergeEntry carries the sort key alongside the operation during a merge.
type mergeEntry struct {
	op       Operation
	modTime  time.Time
	srcIndex int // position within the originating source
}

// Merge combines per-source operation sequences into one total order.
// Sort key: timestamp (lexicographic ISO-8601), then source mtime oldest
// first, then original position within the source. The sort is stable, so
// operations with identical keys retain their input order.
func Merge(sources []SourceLog) (*Log, error) {
	total := 0
	for _, src := range sources {
		total += len(src.Ops)
	}

	entries := make([]mergeEntry, 0, total)
	seen := make(map[string]Operation, total)

	for _, src := range sources {
		for i, op := range src.Ops {
			if first, dup := seen[op.ID]; dup {
				return nil, &DuplicateIDError{ID: op.ID, First: first, Second: op}
			}
			seen[op.ID] = op
			entries = append(entries, mergeEntry{op: op, modTime: src.ModTime, srcIndex: i})
		}
	}

	sort.SliceStable(entries, func(i, j int) bool {
		a, b := entries[i], entries[j]
		if a.op.Timestamp != b.op.Timestamp {
			return a.op.Timestamp < b.op.Timestamp
		}
		if !a.modTime.Equal(b.modTime) {
			return a.modTime.Before(b.modTime)
		}
		if a.op.SourceID == b.op.SourceID {
			return a.srcIndex < b.srcIndex
		}
		return false
	})

	log := &Log{Ops: make([]Operation, len(entries))}
	for i, entry := range entries {
		log.Ops[i] = entry.op
	}

	return log, nil
}
