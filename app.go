package main

import (
	"context"
	"fmt"
	"log"
	"path/filepath"
	"time"

	"retrace/internal/checkpoint"
	"retrace/internal/config"
	"retrace/internal/database"
	"retrace/internal/export"
	"retrace/internal/oplog"
	"retrace/internal/replay"
	"retrace/internal/tail"
	"retrace/internal/transcript"
	"retrace/internal/watcher"
)

// BuildReport summarizes one ingest or poll run.
type BuildReport struct {
	Processed          int
	Skipped            int
	Bootstrapped       int
	HeadRevisionID     string
	ExtractionWarnings []oplog.ExtractionWarning
	ApplyWarnings      []replay.ApplyWarning
	BootstrapNotes     []replay.BootstrapNote
}

// App wires the transcript readers, the replay engine, and the revision
// store for one project.
type App struct {
	cfg         *config.Config
	db          *database.Database
	projectPath string
	projectID   string

	store   *checkpoint.Store
	storage *checkpoint.Storage
	engine  *replay.Engine
	reader  *tail.MultiReader
}

// NewApp opens the project's revision store and resume state. projectPath
// must be the absolute project root.
func NewApp(cfg *config.Config, projectPath string) (*App, error) {
	projectPath = filepath.Clean(projectPath)
	projectID := transcript.ProjectDirName(projectPath)

	db, err := database.Open(cfg.DatabasePath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	store := checkpoint.NewStore()
	storage := checkpoint.NewStorage(cfg.StoreDir(projectID), cfg.Settings.CompressionLevel)
	if err := storage.Restore(store); err != nil {
		db.Close()
		return nil, fmt.Errorf("restore revisions: %w", err)
	}

	extractor := oplog.NewExtractor(projectPath)
	reader := tail.NewMultiReader(cfg.ClaudeDir, projectPath, extractor)

	// Seed the readers with the resume positions from the last run so a
	// poll picks up where the previous process stopped.
	states, err := db.TailStates(projectID)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("load tail state: %w", err)
	}
	transcriptDir := transcript.ProjectDir(cfg.ClaudeDir, projectPath)
	for _, st := range states {
		reader.Restore(st.Source, filepath.Join(transcriptDir, st.Source), tail.State{
			LastSeenID:    st.LastSeenID,
			LastKnownSize: st.LastKnownSize,
		})
	}

	return &App{
		cfg:         cfg,
		db:          db,
		projectPath: projectPath,
		projectID:   projectID,
		store:       store,
		storage:     storage,
		engine:      replay.NewEngine(store),
		reader:      reader,
	}, nil
}

// Close releases the app's database handle.
func (a *App) Close() error {
	return a.db.Close()
}

// Ingest runs Extract, Merge, and Replay once over every session file of
// the project. A merge error aborts the call before any revision is
// published.
func (a *App) Ingest(ctx context.Context) (*BuildReport, error) {
	return a.runOnce(ctx)
}

// Poll is the incremental variant of Ingest: only operations that appeared
// since the last run are folded.
func (a *App) Poll(ctx context.Context) (*BuildReport, error) {
	return a.runOnce(ctx)
}

func (a *App) runOnce(ctx context.Context) (*BuildReport, error) {
	opLog, extWarnings, err := a.reader.Poll()
	if err != nil {
		return nil, err
	}

	report, err := a.engine.Replay(ctx, opLog)
	if err != nil {
		return nil, err
	}

	// Publication order: revisions to disk first, reader positions after,
	// in memory and then in the database. A failure anywhere above leaves
	// the readers uncommitted, so the next run re-emits the same operations
	// and the engine folds whatever is still missing.
	for _, rev := range report.Created {
		if err := a.storage.Save(rev); err != nil {
			return nil, fmt.Errorf("persist revision %s: %w", rev.ID, err)
		}
	}
	a.reader.Commit()
	for source, st := range a.reader.States() {
		err := a.db.SaveTailState(a.projectID, database.TailState{
			Source:        source,
			LastSeenID:    st.LastSeenID,
			LastKnownSize: st.LastKnownSize,
		})
		if err != nil {
			return nil, err
		}
	}

	out := &BuildReport{
		Processed:          report.Processed,
		Skipped:            report.Skipped,
		Bootstrapped:       report.Bootstrapped,
		HeadRevisionID:     report.HeadRevisionID,
		ExtractionWarnings: extWarnings,
		ApplyWarnings:      report.ApplyWarnings,
		BootstrapNotes:     report.BootstrapNotes,
	}

	err = a.db.RecordIngest(database.IngestRecord{
		ProjectID:      a.projectID,
		HeadRevisionID: out.HeadRevisionID,
		Processed:      out.Processed,
		Skipped:        out.Skipped,
		Bootstrapped:   out.Bootstrapped,
		Warnings:       len(out.ExtractionWarnings) + len(out.ApplyWarnings),
	})
	if err != nil {
		log.Printf("[App] record ingest: %v", err)
	}

	return out, nil
}

// Checkout returns the file map of the revision created for operationID.
func (a *App) Checkout(operationID string) (*checkpoint.FileMap, error) {
	return a.store.Checkout(operationID)
}

// Diff compares the revisions for two operation ids.
func (a *App) Diff(opA, opB string) (*checkpoint.ChangeSet, error) {
	return a.store.Diff(opA, opB)
}

// Head returns the most recent revision, or nil when none exist.
func (a *App) Head() *checkpoint.Revision {
	return a.store.Head()
}

// Branches returns the leaf revision ids, main line first.
func (a *App) Branches() []string {
	return a.store.Branches()
}

// Revisions returns every published revision in creation order.
func (a *App) Revisions() []*checkpoint.Revision {
	return a.store.Revisions()
}

// ExportDirectory materializes the revision for operationID under dir.
func (a *App) ExportDirectory(operationID, dir string) (int, error) {
	files, err := a.store.Checkout(operationID)
	if err != nil {
		return 0, err
	}
	return export.ToDirectory(files, dir)
}

// ExportGit replays the main line into a fresh git repository at dir.
func (a *App) ExportGit(dir string) (int, error) {
	return export.ToGitRepo(a.store, dir)
}

// Follow polls on session-file changes (debounced) and on a steady
// interval, until ctx is canceled. Reports are handed to onReport.
func (a *App) Follow(ctx context.Context, onReport func(*BuildReport)) error {
	dir := transcript.ProjectDir(a.cfg.ClaudeDir, a.projectPath)

	kick := make(chan struct{}, 1)
	w, err := watcher.New(dir, a.cfg.Settings.Debounce, func(path string) {
		select {
		case kick <- struct{}{}:
		default:
		}
	})
	if err != nil {
		return err
	}
	defer w.Close()
	if err := w.Start(); err != nil {
		return err
	}

	ticker := time.NewTicker(a.cfg.Settings.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-kick:
		case <-ticker.C:
		}

		report, err := a.Poll(ctx)
		if err != nil {
			log.Printf("[App] poll: %v", err)
			continue
		}
		if report.Processed > 0 && onReport != nil {
			onReport(report)
		}
	}
}
