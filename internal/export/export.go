// internal/export/export.go
package export

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing/object"

	"retrace/internal/checkpoint"
)

// ToDirectory materializes a checked-out file map as real files under dir.
// Navigation never touches the working tree; this is the one optional step
// that does.
func ToDirectory(files *checkpoint.FileMap, dir string) (int, error) {
	written := 0
	for path, snap := range files.Snapshot() {
		target := filepath.Join(dir, filepath.FromSlash(path))
		if err := os.MkdirAll(filepath.Dir(target), 0755); err != nil {
			return written, fmt.Errorf("create dir for %s: %w", path, err)
		}
		if err := os.WriteFile(target, []byte(snap.Content), 0644); err != nil {
			return written, fmt.Errorf("write %s: %w", path, err)
		}
		written++
	}
	return written, nil
}

// ToGitRepo replays the store's main line into a fresh git repository at
// dir, one commit per revision, oldest first. The commit message carries
// the operation id so history stays checkpoint-addressable from git too.
func ToGitRepo(store *checkpoint.Store, dir string) (int, error) {
	head := store.Head()
	if head == nil {
		return 0, fmt.Errorf("nothing to export: store is empty")
	}

	// Collect the main line root-first.
	byID := make(map[string]*checkpoint.Revision)
	for _, rev := range store.Revisions() {
		byID[rev.ID] = rev
	}
	var line []*checkpoint.Revision
	for rev := head; rev != nil; rev = byID[rev.ParentRevisionID] {
		line = append(line, rev)
		if rev.ParentRevisionID == "" {
			break
		}
	}
	for i, j := 0, len(line)-1; i < j; i, j = i+1, j-1 {
		line[i], line[j] = line[j], line[i]
	}

	if err := os.MkdirAll(dir, 0755); err != nil {
		return 0, fmt.Errorf("create export dir: %w", err)
	}
	repo, err := git.PlainInit(dir, false)
	if err != nil {
		return 0, fmt.Errorf("init git repository: %w", err)
	}
	worktree, err := repo.Worktree()
	if err != nil {
		return 0, fmt.Errorf("get worktree: %w", err)
	}

	commits := 0
	for _, rev := range line {
		if _, err := ToDirectory(rev.Files, dir); err != nil {
			return commits, err
		}
		if _, err := worktree.Add("."); err != nil {
			return commits, fmt.Errorf("stage revision %s: %w", rev.ID, err)
		}

		msg := fmt.Sprintf("operation %s", rev.OperationID)
		_, err := worktree.Commit(msg, &git.CommitOptions{
			AllowEmptyCommits: true,
			Author: &object.Signature{
				Name:  "retrace",
				Email: "retrace@localhost",
				When:  rev.Timestamp,
			},
		})
		if err != nil {
			return commits, fmt.Errorf("commit revision %s: %w", rev.ID, err)
		}
		commits++
	}

	return commits, nil
}
