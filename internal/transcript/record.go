// internal/transcript/record.go
package transcript

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"
)

// Record is one decoded line of a session JSONL file.
type Record struct {
	Kind      string
	UUID      string
	SessionID string
	Cwd       string
	Timestamp string
	ToolUses  []ToolUse
}

// ToolUse is one tool invocation found in an assistant record.
type ToolUse struct {
	ID    string
	Name  string
	Input json.RawMessage
}

// DecodeWarning reports a line that could not be decoded.
type DecodeWarning struct {
	Line   int
	Reason string
}

func (w DecodeWarning) String() string {
	return fmt.Sprintf("line %d: %s", w.Line, w.Reason)
}

// rawEntry mirrors the outer JSONL envelope written by the Claude CLI.
type rawEntry struct {
	Type      string          `json:"type"`
	UUID      string          `json:"uuid,omitempty"`
	SessionID string          `json:"sessionId,omitempty"`
	Cwd       string          `json:"cwd,omitempty"`
	Timestamp string          `json:"timestamp,omitempty"`
	Message   json.RawMessage `json:"message,omitempty"`
}

// contentBlock is one element of an assistant message's content array.
type contentBlock struct {
	Type  string          `json:"type"`
	ID    string          `json:"id,omitempty"`
	Name  string          `json:"name,omitempty"`
	Input json.RawMessage `json:"input,omitempty"`
}

// Decode reads a whole JSONL stream and returns one Record per
// decodable line. Malformed lines are skipped and reported as warnings;
// a decode problem on one line never aborts the rest of the stream.
func Decode(r io.Reader) ([]Record, []DecodeWarning, error) {
	scanner := bufio.NewScanner(r)
	// Session files routinely contain very long lines (full file contents
	// inside tool arguments), so give the scanner plenty of room.
	scanner.Buffer(make([]byte, 64*1024), 10*1024*1024)

	var records []Record
	var warnings []DecodeWarning
	lineNum := 0

	for scanner.Scan() {
		lineNum++
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		var raw rawEntry
		if err := json.Unmarshal(line, &raw); err != nil {
			warnings = append(warnings, DecodeWarning{Line: lineNum, Reason: fmt.Sprintf("invalid JSON: %v", err)})
			continue
		}

		rec := Record{
			Kind:      raw.Type,
			UUID:      raw.UUID,
			SessionID: raw.SessionID,
			Cwd:       raw.Cwd,
			Timestamp: raw.Timestamp,
		}

		// Only assistant messages carry tool_use blocks.
		if raw.Type == "assistant" && len(raw.Message) > 0 {
			var msg struct {
				Content []contentBlock `json:"content"`
			}
			if err := json.Unmarshal(raw.Message, &msg); err != nil {
				warnings = append(warnings, DecodeWarning{Line: lineNum, Reason: fmt.Sprintf("invalid assistant message: %v", err)})
			} else {
				for _, block := range msg.Content {
					if block.Type != "tool_use" {
						continue
					}
					rec.ToolUses = append(rec.ToolUses, ToolUse{
						ID:    block.ID,
						Name:  block.Name,
						Input: block.Input,
					})
				}
			}
		}

		records = append(records, rec)
	}

	if err := scanner.Err(); err != nil {
		return records, warnings, fmt.Errorf("scan transcript: %w", err)
	}

	return records, warnings, nil
}

// DecodeFile decodes one session JSONL file from disk.
func DecodeFile(path string) ([]Record, []DecodeWarning, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("open transcript: %w", err)
	}
	defer file.Close()

	return Decode(file)
}
