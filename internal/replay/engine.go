// internal/replay/engine.go
package replay

import (
	"context"
	"fmt"
	"strings"

	"retrace/internal/checkpoint"
	"retrace/internal/oplog"
)

// ApplyWarning reports an edit pair whose old string was not found in the
// file's current text. The pair is a no-op; replay continues with the next
// pair and the next operation.
type ApplyWarning struct {
	OperationID string
	Path        string
	PairIndex   int
}

func (w ApplyWarning) String() string {
	return fmt.Sprintf("operation %s: %s: edit pair %d: old string not found", w.OperationID, w.Path, w.PairIndex)
}

// BootstrapNote records that a file's initial content was synthesized from
// the first edit's old string because no prior write was observed.
// Informational, not a warning: the file existed before the log started.
type BootstrapNote struct {
	OperationID string
	Path        string
}

// DuplicateIDError reports an operation id resurfacing from a different
// source than the one already folded. Colliding ids within one batch are
// caught by the merger; this covers collisions across batches, where the
// merger never sees the pair together.
type DuplicateIDError struct {
	OperationID string
	Folded      string // source of the existing revision
	Incoming    string
}

func (e *DuplicateIDError) Error() string {
	return fmt.Sprintf("operation id %s already folded from source %s, claimed again by source %s",
		e.OperationID, e.Folded, e.Incoming)
}

// Report summarizes one replay run.
type Report struct {
	Processed      int
	Skipped        int
	Bootstrapped   int
	BootstrapNotes []BootstrapNote
	ApplyWarnings  []ApplyWarning
	HeadRevisionID string

	// Created lists the revisions published by this run, in order, for
	// callers that persist them afterward.
	Created []*checkpoint.Revision
}

// Engine folds an operation log into a chain of revisions, one per
// operation. Folding is sequential: each revision depends on its
// predecessor, so a single replay is one logical unit of work.
type Engine struct {
	store *checkpoint.Store
}

// NewEngine creates a replay engine publishing into store.
func NewEngine(store *checkpoint.Store) *Engine {
	return &Engine{store: store}
}

// Replay folds log on top of the store's current head. Cancellation is
// honored between operations only; every revision published before the
// cancellation remains fully valid.
func (e *Engine) Replay(ctx context.Context, log *oplog.Log) (*Report, error) {
	files := checkpoint.NewFileMap()
	parentRevID := ""
	if head := e.store.Head(); head != nil {
		files = head.Files
		parentRevID = head.ID
	}
	return e.replay(ctx, parentRevID, files, log)
}

// ReplayFrom folds log on top of the revision recorded for parentOpID
// instead of the head, creating a divergent branch sharing that prefix.
func (e *Engine) ReplayFrom(ctx context.Context, parentOpID string, log *oplog.Log) (*Report, error) {
	parent, err := e.store.Get(parentOpID)
	if err != nil {
		return nil, err
	}
	return e.replay(ctx, parent.ID, parent.Files, log)
}

func (e *Engine) replay(ctx context.Context, parentRevID string, files *checkpoint.FileMap, log *oplog.Log) (*Report, error) {
	report := &Report{HeadRevisionID: parentRevID}

	for _, op := range log.Ops {
		if err := ctx.Err(); err != nil {
			return report, err
		}

		// An operation already folded by an earlier run keeps its existing
		// revision; re-ingesting the same source is idempotent. The same id
		// arriving from a different source is an id collision and must fail,
		// not pass as a benign re-scan.
		if existing, err := e.store.Get(op.ID); err == nil {
			if existing.SourceID != "" && op.SourceID != "" && existing.SourceID != op.SourceID {
				return report, &DuplicateIDError{
					OperationID: op.ID,
					Folded:      existing.SourceID,
					Incoming:    op.SourceID,
				}
			}
			files = existing.Files
			parentRevID = existing.ID
			report.Skipped++
			report.HeadRevisionID = existing.ID
			continue
		}

		next, outcome := applyOperation(files, op)
		if outcome.bootstrapped {
			report.Bootstrapped++
			report.BootstrapNotes = append(report.BootstrapNotes, BootstrapNote{OperationID: op.ID, Path: op.Path})
		}
		report.ApplyWarnings = append(report.ApplyWarnings, outcome.warnings...)

		rev, err := e.store.Create(parentRevID, op.ID, op.SourceID, next)
		if err != nil {
			return report, fmt.Errorf("publish revision for operation %s: %w", op.ID, err)
		}

		files = next
		parentRevID = rev.ID
		report.Processed++
		report.HeadRevisionID = rev.ID
		report.Created = append(report.Created, rev)
	}

	return report, nil
}

// applyOutcome carries the side notes of folding one operation.
type applyOutcome struct {
	bootstrapped bool
	warnings     []ApplyWarning
}

// applyOperation is the pure fold step: (prior file map, operation) to a
// new file map. The prior map is never modified.
func applyOperation(files *checkpoint.FileMap, op oplog.Operation) (*checkpoint.FileMap, applyOutcome) {
	var outcome applyOutcome

	var content string
	switch op.Kind {
	case oplog.KindWrite:
		content = op.Content

	case oplog.KindEdit, oplog.KindMultiEdit:
		if prev, ok := files.Get(op.Path); ok {
			content = prev.Content
		} else {
			// The file existed before the log started and we only ever
			// observed its edits: seed it with the first edit's old string.
			content = op.Edits[0].Old
			outcome.bootstrapped = true
		}

		for i, pair := range op.Edits {
			if !strings.Contains(content, pair.Old) {
				outcome.warnings = append(outcome.warnings, ApplyWarning{
					OperationID: op.ID,
					Path:        op.Path,
					PairIndex:   i,
				})
				continue
			}
			// First occurrence only, matching single-shot editor semantics.
			content = strings.Replace(content, pair.Old, pair.New, 1)
		}
	}

	return files.With(checkpoint.NewFileSnapshot(op.Path, content)), outcome
}
