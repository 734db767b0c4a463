// internal/checkpoint/filemap.go
package checkpoint

import "sort"

// maxLayerDepth bounds the parent chain a Get may walk before a layer is
// collapsed into a flat map.
const maxLayerDepth = 32

// FileMap is an immutable path-to-snapshot map with structural sharing.
// Rebinding one path allocates a single delta layer on top of the parent
// map instead of copying every entry, so a long revision chain costs
// O(changed paths), not O(project size) per revision. Layers are collapsed
// once the chain grows deep enough to keep lookups cheap.
type FileMap struct {
	parent *FileMap
	files  map[string]*FileSnapshot
	depth  int
}

// NewFileMap returns an empty file map.
func NewFileMap() *FileMap {
	return &FileMap{files: map[string]*FileSnapshot{}}
}

// Get returns the snapshot for path, if present.
func (m *FileMap) Get(path string) (*FileSnapshot, bool) {
	for cur := m; cur != nil; cur = cur.parent {
		if snap, ok := cur.files[path]; ok {
			return snap, true
		}
	}
	return nil, false
}

// With returns a new map equal to m with path rebound to snap. m itself is
// never modified.
func (m *FileMap) With(snap *FileSnapshot) *FileMap {
	next := &FileMap{
		parent: m,
		files:  map[string]*FileSnapshot{snap.Path: snap},
		depth:  m.depth + 1,
	}
	if next.depth >= maxLayerDepth {
		return next.compact()
	}
	return next
}

// compact flattens the layer chain into a single map.
func (m *FileMap) compact() *FileMap {
	return &FileMap{files: m.Snapshot()}
}

// Snapshot materializes the map as a plain map. The returned map is owned
// by the caller; the snapshots inside remain shared and must not be
// mutated.
func (m *FileMap) Snapshot() map[string]*FileSnapshot {
	// Walk root-first so newer layers overwrite older bindings.
	var layers []*FileMap
	for cur := m; cur != nil; cur = cur.parent {
		layers = append(layers, cur)
	}

	out := make(map[string]*FileSnapshot)
	for i := len(layers) - 1; i >= 0; i-- {
		for path, snap := range layers[i].files {
			out[path] = snap
		}
	}
	return out
}

// Paths returns every bound path, sorted.
func (m *FileMap) Paths() []string {
	flat := m.Snapshot()
	paths := make([]string, 0, len(flat))
	for path := range flat {
		paths = append(paths, path)
	}
	sort.Strings(paths)
	return paths
}

// Len returns the number of distinct paths in the map.
func (m *FileMap) Len() int {
	return len(m.Snapshot())
}
