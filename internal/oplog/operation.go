// internal/oplog/operation.go
package oplog

// Kind is the type of file mutation an operation performs.
type Kind string

const (
	KindWrite     Kind = "write"
	KindEdit      Kind = "edit"
	KindMultiEdit Kind = "multi_edit"
)

// EditPair is one old-string-to-new-string substitution.
type EditPair struct {
	Old string `json:"old_string"`
	New string `json:"new_string"`
}

// Operation is one recorded file-mutating tool invocation. Operations are
// immutable once extracted; the ID comes from the transcript and is never
// reissued within one log.
type Operation struct {
	ID        string     `json:"id"`
	SourceID  string     `json:"source_id"`
	Timestamp string     `json:"timestamp"` // ISO-8601; lexicographic order is chronological
	Kind      Kind       `json:"kind"`
	Path      string     `json:"path"` // project-relative, normalized
	Content   string     `json:"content,omitempty"`
	Edits     []EditPair `json:"edits,omitempty"`
}

// Log is the total chronological order of operations across all sources.
// It is built once per ingest and never re-sorted by queries.
type Log struct {
	Ops []Operation
}

// Len returns the number of operations in the log.
func (l *Log) Len() int {
	return len(l.Ops)
}
