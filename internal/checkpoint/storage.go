// internal/checkpoint/storage.go
package checkpoint

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/klauspost/compress/zstd"
)

// Storage persists revisions on disk. File contents live in a
// content-addressable pool keyed by hash and compressed with zstd, so a
// file untouched across many revisions is stored exactly once; each
// revision keeps a metadata document referencing the pool.
type Storage struct {
	baseDir string
	mu      sync.Mutex
	nextSeq int
	encoder *zstd.Encoder
	decoder *zstd.Decoder
}

// fileRef points a path at a content-pool entry.
type fileRef struct {
	Path string `json:"path"`
	Hash string `json:"hash"`
	Size int64  `json:"size"`
}

// revisionMeta is the on-disk metadata document for one revision.
type revisionMeta struct {
	ID               string    `json:"id"`
	OperationID      string    `json:"operation_id"`
	SourceID         string    `json:"source_id,omitempty"`
	ParentRevisionID string    `json:"parent_revision_id,omitempty"`
	Timestamp        time.Time `json:"timestamp"`
	Seq              int       `json:"seq"`
	Files            []fileRef `json:"files"`
}

// NewStorage creates revision storage rooted at baseDir.
func NewStorage(baseDir string, compressionLevel int) *Storage {
	encoder, _ := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.EncoderLevelFromZstd(compressionLevel)))
	decoder, _ := zstd.NewReader(nil)

	return &Storage{
		baseDir: baseDir,
		encoder: encoder,
		decoder: decoder,
	}
}

func (s *Storage) revisionsDir() string {
	return filepath.Join(s.baseDir, "revisions")
}

func (s *Storage) contentPoolDir() string {
	return filepath.Join(s.baseDir, "content_pool")
}

// Save persists one revision: pool entries for any content not yet stored,
// then the metadata document. Metadata is written last so a crash mid-save
// never leaves a revision referencing missing content.
func (s *Storage) Save(rev *Revision) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	poolDir := s.contentPoolDir()
	if err := os.MkdirAll(poolDir, 0755); err != nil {
		return fmt.Errorf("create content pool: %w", err)
	}

	flat := rev.Files.Snapshot()
	refs := make([]fileRef, 0, len(flat))
	for _, snap := range flat {
		if err := s.saveContent(poolDir, snap); err != nil {
			return fmt.Errorf("save content for %s: %w", snap.Path, err)
		}
		refs = append(refs, fileRef{Path: snap.Path, Hash: snap.Hash, Size: snap.Size})
	}
	sort.Slice(refs, func(i, j int) bool { return refs[i].Path < refs[j].Path })

	meta := revisionMeta{
		ID:               rev.ID,
		OperationID:      rev.OperationID,
		SourceID:         rev.SourceID,
		ParentRevisionID: rev.ParentRevisionID,
		Timestamp:        rev.Timestamp,
		Seq:              s.nextSeq,
		Files:            refs,
	}
	s.nextSeq++

	revDir := filepath.Join(s.revisionsDir(), rev.ID)
	if err := os.MkdirAll(revDir, 0755); err != nil {
		return fmt.Errorf("create revision dir: %w", err)
	}

	metaJSON, err := json.MarshalIndent(meta, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal metadata: %w", err)
	}
	if err := os.WriteFile(filepath.Join(revDir, "metadata.json"), metaJSON, 0644); err != nil {
		return fmt.Errorf("write metadata: %w", err)
	}

	return nil
}

// saveContent writes one snapshot's content into the pool unless an entry
// with the same hash already exists.
func (s *Storage) saveContent(poolDir string, snap *FileSnapshot) error {
	contentFile := filepath.Join(poolDir, snap.Hash)
	if _, err := os.Stat(contentFile); err == nil {
		return nil
	} else if !os.IsNotExist(err) {
		return err
	}

	compressed := s.encoder.EncodeAll([]byte(snap.Content), nil)
	return os.WriteFile(contentFile, compressed, 0644)
}

// LoadAll reads every persisted revision in original creation order, with
// file maps rebuilt so that unchanged files are shared across revisions
// just as they were when first created.
func (s *Storage) LoadAll() ([]*Revision, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries, err := os.ReadDir(s.revisionsDir())
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read revisions dir: %w", err)
	}

	var metas []revisionMeta
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		metaPath := filepath.Join(s.revisionsDir(), entry.Name(), "metadata.json")
		metaJSON, err := os.ReadFile(metaPath)
		if err != nil {
			continue
		}
		var meta revisionMeta
		if json.Unmarshal(metaJSON, &meta) == nil {
			metas = append(metas, meta)
		}
	}

	sort.Slice(metas, func(i, j int) bool { return metas[i].Seq < metas[j].Seq })
	if len(metas) > 0 {
		s.nextSeq = metas[len(metas)-1].Seq + 1
	}

	byID := make(map[string]*Revision, len(metas))
	revisions := make([]*Revision, 0, len(metas))

	for _, meta := range metas {
		files := NewFileMap()
		var parentFiles *FileMap
		if parent, ok := byID[meta.ParentRevisionID]; ok {
			files = parent.Files
			parentFiles = parent.Files
		}

		for _, ref := range meta.Files {
			if parentFiles != nil {
				if prev, ok := parentFiles.Get(ref.Path); ok && prev.Hash == ref.Hash {
					continue // unchanged, already bound via the parent map
				}
			}
			content, err := s.loadContent(ref.Hash)
			if err != nil {
				return nil, fmt.Errorf("revision %s: load %s: %w", meta.ID, ref.Path, err)
			}
			files = files.With(NewFileSnapshot(ref.Path, content))
		}

		rev := &Revision{
			ID:               meta.ID,
			OperationID:      meta.OperationID,
			SourceID:         meta.SourceID,
			ParentRevisionID: meta.ParentRevisionID,
			Timestamp:        meta.Timestamp,
			Files:            files,
		}
		byID[rev.ID] = rev
		revisions = append(revisions, rev)
	}

	return revisions, nil
}

// loadContent reads and decompresses one pool entry.
func (s *Storage) loadContent(hash string) (string, error) {
	compressed, err := os.ReadFile(filepath.Join(s.contentPoolDir(), hash))
	if err != nil {
		return "", err
	}
	raw, err := s.decoder.DecodeAll(compressed, nil)
	if err != nil {
		return "", fmt.Errorf("decompress %s: %w", hash, err)
	}
	return string(raw), nil
}

// Restore loads all persisted revisions into store.
func (s *Storage) Restore(store *Store) error {
	revisions, err := s.LoadAll()
	if err != nil {
		return err
	}
	for _, rev := range revisions {
		if err := store.restore(rev); err != nil {
			return fmt.Errorf("restore revision %s: %w", rev.ID, err)
		}
	}
	return nil
}
