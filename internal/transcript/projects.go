// internal/transcript/projects.go
package transcript

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

// Source is one session JSONL file contributing operations to a project.
type Source struct {
	Path    string
	Name    string
	Size    int64
	ModTime time.Time
}

// ProjectDirName computes the directory name Claude uses for a project
// under ~/.claude/projects: the absolute path with / replaced by -.
func ProjectDirName(projectPath string) string {
	return strings.ReplaceAll(projectPath, "/", "-")
}

// ProjectDir returns the transcript directory for a project root.
func ProjectDir(claudeDir, projectPath string) string {
	return filepath.Join(claudeDir, "projects", ProjectDirName(projectPath))
}

// Sources lists the session files for a project, oldest mtime first.
// Source order by mtime is what stabilizes same-timestamp operations
// from different sessions during a merge.
func Sources(claudeDir, projectPath string) ([]Source, error) {
	dir := ProjectDir(claudeDir, projectPath)

	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read project dir: %w", err)
	}

	var sources []Source
	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".jsonl" {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		sources = append(sources, Source{
			Path:    filepath.Join(dir, entry.Name()),
			Name:    entry.Name(),
			Size:    info.Size(),
			ModTime: info.ModTime(),
		})
	}

	sort.Slice(sources, func(i, j int) bool {
		return sources[i].ModTime.Before(sources[j].ModTime)
	})

	return sources, nil
}
