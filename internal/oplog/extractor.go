// internal/oplog/extractor.go
package oplog

import (
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"

	"retrace/internal/transcript"
)

// ExtractionWarning reports a record that looked like a file mutation but
// could not be turned into an operation. Warnings are non-fatal; extraction
// never aborts for a single malformed record.
type ExtractionWarning struct {
	SourceID string
	ToolID   string
	Reason   string
}

func (w ExtractionWarning) String() string {
	return fmt.Sprintf("%s: tool %s: %s", w.SourceID, w.ToolID, w.Reason)
}

// Extractor turns decoded transcript records into operations, filtered to
// file mutations inside the project root.
type Extractor struct {
	root string // absolute, cleaned project root
}

// NewExtractor creates an extractor for the given project root. The root
// must be absolute; it is cleaned once here so per-record checks are cheap.
func NewExtractor(projectRoot string) *Extractor {
	return &Extractor{root: filepath.Clean(projectRoot)}
}

// writeInput matches the Write tool's arguments.
type writeInput struct {
	FilePath string `json:"file_path"`
	Content  string `json:"content"`
}

// editInput matches the Edit tool's arguments.
type editInput struct {
	FilePath  string `json:"file_path"`
	OldString string `json:"old_string"`
	NewString string `json:"new_string"`
}

// multiEditInput matches the MultiEdit tool's arguments.
type multiEditInput struct {
	FilePath string `json:"file_path"`
	Edits    []struct {
		OldString string `json:"old_string"`
		NewString string `json:"new_string"`
	} `json:"edits"`
}

// Extract returns the operations found in one record, plus warnings for
// tool calls that were mutations in name but unusable in shape. Records
// that are not assistant tool calls produce nothing and no warning.
func (e *Extractor) Extract(sourceID string, rec transcript.Record) ([]Operation, []ExtractionWarning) {
	if rec.Kind != "assistant" || len(rec.ToolUses) == 0 {
		return nil, nil
	}

	var ops []Operation
	var warnings []ExtractionWarning

	for _, tu := range rec.ToolUses {
		switch tu.Name {
		case "Write", "Edit", "MultiEdit":
		default:
			continue
		}

		op, err := e.extractTool(tu, rec)
		if err != nil {
			warnings = append(warnings, ExtractionWarning{
				SourceID: sourceID,
				ToolID:   tu.ID,
				Reason:   err.Error(),
			})
			continue
		}
		op.SourceID = sourceID
		ops = append(ops, op)
	}

	return ops, warnings
}

func (e *Extractor) extractTool(tu transcript.ToolUse, rec transcript.Record) (Operation, error) {
	op := Operation{
		ID:        tu.ID,
		Timestamp: rec.Timestamp,
	}
	if op.ID == "" {
		return Operation{}, fmt.Errorf("tool_use has no id")
	}

	var rawPath string

	switch tu.Name {
	case "Write":
		var in writeInput
		if err := json.Unmarshal(tu.Input, &in); err != nil {
			return Operation{}, fmt.Errorf("invalid Write arguments: %v", err)
		}
		rawPath = in.FilePath
		op.Kind = KindWrite
		op.Content = in.Content

	case "Edit":
		var in editInput
		if err := json.Unmarshal(tu.Input, &in); err != nil {
			return Operation{}, fmt.Errorf("invalid Edit arguments: %v", err)
		}
		if in.OldString == "" {
			return Operation{}, fmt.Errorf("Edit has empty old_string")
		}
		rawPath = in.FilePath
		op.Kind = KindEdit
		op.Edits = []EditPair{{Old: in.OldString, New: in.NewString}}

	case "MultiEdit":
		var in multiEditInput
		if err := json.Unmarshal(tu.Input, &in); err != nil {
			return Operation{}, fmt.Errorf("invalid MultiEdit arguments: %v", err)
		}
		if len(in.Edits) == 0 {
			return Operation{}, fmt.Errorf("MultiEdit has no edits")
		}
		rawPath = in.FilePath
		op.Kind = KindMultiEdit
		for _, pair := range in.Edits {
			if pair.OldString == "" {
				return Operation{}, fmt.Errorf("MultiEdit has empty old_string")
			}
			op.Edits = append(op.Edits, EditPair{Old: pair.OldString, New: pair.NewString})
		}
	}

	rel, err := e.relativize(rawPath, rec.Cwd)
	if err != nil {
		return Operation{}, err
	}
	op.Path = rel

	return op, nil
}

// relativize resolves a tool-supplied path to absolute form and returns it
// relative to the project root. Paths outside the root are rejected so
// shared-session files touching other projects stay out of the log.
func (e *Extractor) relativize(rawPath, cwd string) (string, error) {
	if rawPath == "" {
		return "", fmt.Errorf("no file path in tool arguments")
	}

	abs := rawPath
	if !filepath.IsAbs(abs) {
		base := cwd
		if base == "" {
			base = e.root
		}
		abs = filepath.Join(base, abs)
	}
	abs = filepath.Clean(abs)

	rel, err := filepath.Rel(e.root, abs)
	if err != nil {
		return "", fmt.Errorf("cannot relativize %s: %v", abs, err)
	}
	if rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("path %s is outside project root", abs)
	}

	return filepath.ToSlash(rel), nil
}
