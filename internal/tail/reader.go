// internal/tail/reader.go
package tail

import (
	"fmt"
	"os"

	"retrace/internal/oplog"
	"retrace/internal/transcript"
)

// State is the resumable position of a Reader within one source. Only the
// last seen operation id and the last known size need to survive a
// restart; the in-memory seen set is bounded to one source instance.
type State struct {
	LastSeenID    string `json:"last_seen_id"`
	LastKnownSize int64  `json:"last_known_size"`
}

// Reader incrementally extracts operations from a single live-growing
// source. Resumption is keyed by operation id, not byte offset, so log
// rotation or truncation never corrupts the resume point.
type Reader struct {
	path      string
	sourceID  string
	extractor *oplog.Extractor

	lastSeenID    string
	seenIDs       map[string]struct{}
	lastKnownSize int64

	pending *pendingAdvance
}

// pendingAdvance is the position advance computed by a Poll, held back
// until Commit confirms the emitted operations were consumed downstream.
type pendingAdvance struct {
	lastSeenID    string
	lastKnownSize int64
	ids           []string
}

// NewReader creates a reader over the source at path. sourceID names the
// source in extracted operations (typically the file name).
func NewReader(path, sourceID string, extractor *oplog.Extractor) *Reader {
	return &Reader{
		path:      path,
		sourceID:  sourceID,
		extractor: extractor,
		seenIDs:   make(map[string]struct{}),
	}
}

// State returns the reader's resumable position.
func (r *Reader) State() State {
	return State{LastSeenID: r.lastSeenID, LastKnownSize: r.lastKnownSize}
}

// Restore resets the reader to a previously saved position.
func (r *Reader) Restore(state State) {
	r.lastSeenID = state.LastSeenID
	r.lastKnownSize = state.LastKnownSize
	r.seenIDs = make(map[string]struct{})
	if state.LastSeenID != "" {
		r.seenIDs[state.LastSeenID] = struct{}{}
	}
}

// Poll re-reads the source and returns the operations that appeared since
// the previous committed poll. The position advance stays pending until
// Commit; an uncommitted poll is repeated in full by the next one, so a
// failed downstream run never loses operations. Once committed, an
// operation id is never emitted again on one instance, independent of
// rotation. A source shrinking below its last observed size is treated as
// a new source instance: the reader drops its resume point and re-extracts
// from the new content's beginning.
func (r *Reader) Poll() ([]oplog.Operation, []oplog.ExtractionWarning, error) {
	r.pending = nil

	info, err := os.Stat(r.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil, nil
		}
		return nil, nil, fmt.Errorf("stat source: %w", err)
	}

	// A shrinking source is a new source instance: drop the positional
	// resume point so the new content is scanned from its own beginning.
	// The seen set survives, a committed operation id is never emitted
	// twice on one instance no matter how the file was rewritten.
	resumeID := r.lastSeenID
	if info.Size() < r.lastKnownSize {
		resumeID = ""
	}

	records, decodeWarnings, err := transcript.DecodeFile(r.path)
	if err != nil {
		return nil, nil, err
	}

	var warnings []oplog.ExtractionWarning
	for _, dw := range decodeWarnings {
		warnings = append(warnings, oplog.ExtractionWarning{
			SourceID: r.sourceID,
			Reason:   "decode: " + dw.String(),
		})
	}

	var all []oplog.Operation
	for _, rec := range records {
		ops, extWarnings := r.extractor.Extract(r.sourceID, rec)
		all = append(all, ops...)
		warnings = append(warnings, extWarnings...)
	}

	// Skip everything up to and including the resume point, then emit what
	// the seen set has not recorded yet.
	start := 0
	if resumeID != "" {
		for i, op := range all {
			if op.ID == resumeID {
				start = i + 1
				break
			}
		}
	}

	batch := make(map[string]struct{})
	var fresh []oplog.Operation
	var freshIDs []string
	for _, op := range all[start:] {
		if _, seen := r.seenIDs[op.ID]; seen {
			continue
		}
		if _, seen := batch[op.ID]; seen {
			continue
		}
		batch[op.ID] = struct{}{}
		freshIDs = append(freshIDs, op.ID)
		fresh = append(fresh, op)
	}

	last := resumeID
	if len(fresh) > 0 {
		last = fresh[len(fresh)-1].ID
	}
	r.pending = &pendingAdvance{
		lastSeenID:    last,
		lastKnownSize: info.Size(),
		ids:           freshIDs,
	}

	return fresh, warnings, nil
}

// Commit makes the last poll's position advance permanent. A no-op when
// nothing is pending.
func (r *Reader) Commit() {
	if r.pending == nil {
		return
	}
	for _, id := range r.pending.ids {
		r.seenIDs[id] = struct{}{}
	}
	r.lastSeenID = r.pending.lastSeenID
	r.lastKnownSize = r.pending.lastKnownSize
	r.pending = nil
}
