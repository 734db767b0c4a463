// internal/checkpoint/models.go
package checkpoint

import (
	"crypto/sha256"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// FileSnapshot is the content of one file at one point in the log.
// Snapshots are immutable and shared by pointer across revisions.
type FileSnapshot struct {
	Path    string `json:"path"`
	Content string `json:"content"`
	Hash    string `json:"hash"`
	Size    int64  `json:"size"`
}

// NewFileSnapshot builds a snapshot for path with content.
func NewFileSnapshot(path, content string) *FileSnapshot {
	return &FileSnapshot{
		Path:    path,
		Content: content,
		Hash:    CalculateHash(content),
		Size:    int64(len(content)),
	}
}

// Revision is the whole project state immediately after one operation.
// It is addressable by that operation's id and never mutated after
// publication.
type Revision struct {
	ID               string    `json:"id"`
	OperationID      string    `json:"operation_id"`
	SourceID         string    `json:"source_id,omitempty"`
	ParentRevisionID string    `json:"parent_revision_id,omitempty"`
	Timestamp        time.Time `json:"timestamp"`
	Files            *FileMap  `json:"-"`
}

// ChangeSet is the path-level difference between two revisions. Added and
// Removed are relative to the a-to-b direction as given by the caller.
type ChangeSet struct {
	Added   []string `json:"added"`
	Removed []string `json:"removed"`
	Changed []string `json:"changed"`
}

// Empty reports whether the change set contains no paths.
func (c *ChangeSet) Empty() bool {
	return len(c.Added) == 0 && len(c.Removed) == 0 && len(c.Changed) == 0
}

// GenerateID generates a new revision ID.
func GenerateID() string {
	return uuid.New().String()
}

// CalculateHash calculates SHA256 hash of content.
func CalculateHash(content string) string {
	h := sha256.Sum256([]byte(content))
	return fmt.Sprintf("%x", h)
}
