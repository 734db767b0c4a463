// internal/checkpoint/store.go
package checkpoint

import (
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"
)

// ErrNotFound is returned when an operation id was never logged.
var ErrNotFound = errors.New("checkpoint not found")

// Store holds published revisions and the operation-id index over them.
// Revisions are immutable once created, so any number of readers may query
// past revisions while a single writer appends new ones.
type Store struct {
	mu        sync.RWMutex
	revisions []*Revision
	byOp      map[string]*Revision // operation id -> revision
	byID      map[string]*Revision // revision id -> revision
	children  map[string]int       // parent revision id -> child count
}

// NewStore creates an empty revision store.
func NewStore() *Store {
	return &Store{
		byOp:     make(map[string]*Revision),
		byID:     make(map[string]*Revision),
		children: make(map[string]int),
	}
}

// Create publishes a new revision for operationID on top of parentRevID
// (empty for the first revision). sourceID names the source the operation
// came from and is kept for collision checks on later re-ingests. The
// revision is fully built before it becomes visible in the index, so a
// concurrent reader never observes a partially constructed revision.
func (s *Store) Create(parentRevID, operationID, sourceID string, files *FileMap) (*Revision, error) {
	rev := &Revision{
		ID:               GenerateID(),
		OperationID:      operationID,
		SourceID:         sourceID,
		ParentRevisionID: parentRevID,
		Timestamp:        time.Now(),
		Files:            files,
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.byOp[operationID]; exists {
		return nil, fmt.Errorf("revision for operation %s already exists", operationID)
	}
	if parentRevID != "" {
		if _, ok := s.byID[parentRevID]; !ok {
			return nil, fmt.Errorf("parent revision %s: %w", parentRevID, ErrNotFound)
		}
	}

	s.revisions = append(s.revisions, rev)
	s.byOp[operationID] = rev
	s.byID[rev.ID] = rev
	if parentRevID != "" {
		s.children[parentRevID]++
	}

	return rev, nil
}

// restore republishes an already-persisted revision, keeping its original
// id and timestamp. Used when rebuilding the store from disk.
func (s *Store) restore(rev *Revision) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.byOp[rev.OperationID]; exists {
		return fmt.Errorf("revision for operation %s already exists", rev.OperationID)
	}

	s.revisions = append(s.revisions, rev)
	s.byOp[rev.OperationID] = rev
	s.byID[rev.ID] = rev
	if rev.ParentRevisionID != "" {
		s.children[rev.ParentRevisionID]++
	}
	return nil
}

// Get returns the revision created for operationID.
func (s *Store) Get(operationID string) (*Revision, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rev, ok := s.byOp[operationID]
	if !ok {
		return nil, fmt.Errorf("operation %s: %w", operationID, ErrNotFound)
	}
	return rev, nil
}

// Checkout returns the exact file map produced when the revision for
// operationID was created.
func (s *Store) Checkout(operationID string) (*FileMap, error) {
	rev, err := s.Get(operationID)
	if err != nil {
		return nil, err
	}
	return rev.Files, nil
}

// Diff compares the revisions for two operation ids. Added and Removed are
// relative to the a-to-b direction; Changed is symmetric.
func (s *Store) Diff(opA, opB string) (*ChangeSet, error) {
	revA, err := s.Get(opA)
	if err != nil {
		return nil, err
	}
	revB, err := s.Get(opB)
	if err != nil {
		return nil, err
	}

	mapA := revA.Files.Snapshot()
	mapB := revB.Files.Snapshot()

	changes := &ChangeSet{}

	for path, snapA := range mapA {
		if snapB, ok := mapB[path]; ok {
			if snapA.Hash != snapB.Hash {
				changes.Changed = append(changes.Changed, path)
			}
		} else {
			changes.Removed = append(changes.Removed, path)
		}
	}
	for path := range mapB {
		if _, ok := mapA[path]; !ok {
			changes.Added = append(changes.Added, path)
		}
	}

	sort.Strings(changes.Added)
	sort.Strings(changes.Removed)
	sort.Strings(changes.Changed)

	return changes, nil
}

// Head returns the most recently created revision, or nil when the store
// is empty. The head is the main line; every other childless revision is a
// branch head.
func (s *Store) Head() *Revision {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if len(s.revisions) == 0 {
		return nil
	}
	return s.revisions[len(s.revisions)-1]
}

// Branches returns the ids of all leaf revisions, most recent first. The
// first entry is the main line head when the store is non-empty.
func (s *Store) Branches() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var heads []string
	for i := len(s.revisions) - 1; i >= 0; i-- {
		rev := s.revisions[i]
		if s.children[rev.ID] == 0 {
			heads = append(heads, rev.ID)
		}
	}
	return heads
}

// Revisions returns the revisions in creation order.
func (s *Store) Revisions() []*Revision {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*Revision, len(s.revisions))
	copy(out, s.revisions)
	return out
}

// Len returns the number of published revisions.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.revisions)
}
