// internal/tail/multi.go
package tail

import (
	"retrace/internal/oplog"
	"retrace/internal/transcript"
)

// MultiReader tracks every session file of one project, owning a Reader
// per source keyed by file name. Each poll discovers new sources, polls
// all of them, and hands the fresh operations to the merger so callers
// always see one total order.
type MultiReader struct {
	claudeDir   string
	projectPath string
	extractor   *oplog.Extractor
	readers     map[string]*Reader
}

// NewMultiReader creates a multi-source reader for the project rooted at
// projectPath, with transcripts under claudeDir.
func NewMultiReader(claudeDir, projectPath string, extractor *oplog.Extractor) *MultiReader {
	return &MultiReader{
		claudeDir:   claudeDir,
		projectPath: projectPath,
		extractor:   extractor,
		readers:     make(map[string]*Reader),
	}
}

// States returns the resumable position of every tracked source, keyed by
// source name.
func (m *MultiReader) States() map[string]State {
	states := make(map[string]State, len(m.readers))
	for name, reader := range m.readers {
		states[name] = reader.State()
	}
	return states
}

// Restore seeds the reader for a source with a previously saved position.
// The reader is created on the spot; the next poll resumes from the state
// instead of re-emitting the whole source.
func (m *MultiReader) Restore(sourceName, sourcePath string, state State) {
	reader := NewReader(sourcePath, sourceName, m.extractor)
	reader.Restore(state)
	m.readers[sourceName] = reader
}

// Poll polls every source and returns the new operations across all of
// them, merged into one total order, plus all extraction warnings. The
// readers' position advances stay pending until Commit, so a merge error
// here or a failed run downstream leaves every source resumable: the next
// poll re-emits the same operations.
func (m *MultiReader) Poll() (*oplog.Log, []oplog.ExtractionWarning, error) {
	sources, err := transcript.Sources(m.claudeDir, m.projectPath)
	if err != nil {
		return nil, nil, err
	}

	// Drop any advance staged by an earlier failed poll, including for
	// sources that have since disappeared and will not be re-polled below.
	for _, reader := range m.readers {
		reader.pending = nil
	}

	var sourceLogs []oplog.SourceLog
	var warnings []oplog.ExtractionWarning

	for _, src := range sources {
		reader, ok := m.readers[src.Name]
		if !ok {
			reader = NewReader(src.Path, src.Name, m.extractor)
			m.readers[src.Name] = reader
		}

		ops, extWarnings, err := reader.Poll()
		if err != nil {
			return nil, nil, err
		}
		warnings = append(warnings, extWarnings...)
		if len(ops) == 0 {
			continue
		}
		sourceLogs = append(sourceLogs, oplog.SourceLog{
			SourceID: src.Name,
			ModTime:  src.ModTime,
			Ops:      ops,
		})
	}

	log, err := oplog.Merge(sourceLogs)
	if err != nil {
		return nil, warnings, err
	}

	return log, warnings, nil
}

// Commit makes the position advance of every reader polled since the last
// commit permanent. Call only after the merged operations were durably
// consumed.
func (m *MultiReader) Commit() {
	for _, reader := range m.readers {
		reader.Commit()
	}
}
