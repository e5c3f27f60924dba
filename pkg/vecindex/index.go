// Package vecindex implements a persistent flat vector index keyed by
// externally assigned integer ids. Vectors are compared by squared Euclidean
// distance; callers store L2-normalized vectors so the ordering matches
// cosine distance.
package vecindex

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"sync"
)

// InvalidID is the empty-slot sentinel in search results. Search never
// produces it for a non-empty index; consumers skip it when present.
const InvalidID int64 = -1

var (
	// ErrDimensionMismatch is returned when a vector's width disagrees with
	// the index's configured dimension.
	ErrDimensionMismatch = errors.New("vector dimension mismatch")
	// ErrDuplicateID is returned when an id is already present in the index.
	ErrDuplicateID = errors.New("duplicate vector id")
)

// magic tags the index file so stale or foreign files fail fast on load.
var magic = [4]byte{'V', 'I', 'D', 'X'}

const fileVersion uint32 = 1

// Result is one nearest-neighbor hit.
type Result struct {
	ID       int64
	Distance float32
}

// Index is a flat, brute-force index persisted as a single file. Every
// successful mutation rewrites the file before returning, so a crash after a
// returned Add or Remove loses nothing.
type Index struct {
	mu      sync.RWMutex
	path    string
	dim     int
	ids     []int64
	vectors [][]float32
	present map[int64]struct{}
}

// Open loads the index at path, creating an empty one if the file does not
// exist. A stored dimension different from dim is a fatal configuration
// error.
func Open(path string, dim int) (*Index, error) {
	if dim <= 0 {
		return nil, fmt.Errorf("invalid index dimension %d", dim)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create index directory: %w", err)
	}

	idx := &Index{
		path:    path,
		dim:     dim,
		present: make(map[int64]struct{}),
	}

	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			if err := idx.save(); err != nil {
				return nil, fmt.Errorf("failed to create index file: %w", err)
			}
			return idx, nil
		}
		return nil, fmt.Errorf("failed to open index file: %w", err)
	}
	defer f.Close()

	if err := idx.load(f); err != nil {
		return nil, fmt.Errorf("failed to load index %s: %w", path, err)
	}
	return idx, nil
}

func (idx *Index) load(r io.Reader) error {
	var header struct {
		Magic   [4]byte
		Version uint32
		Dim     uint32
		Count   uint64
	}
	if err := binary.Read(r, binary.LittleEndian, &header); err != nil {
		return fmt.Errorf("failed to read header: %w", err)
	}
	if header.Magic != magic {
		return errors.New("not a vector index file")
	}
	if header.Version != fileVersion {
		return fmt.Errorf("unsupported index file version %d", header.Version)
	}
	if int(header.Dim) != idx.dim {
		return fmt.Errorf("%w: index file has dimension %d, configured %d",
			ErrDimensionMismatch, header.Dim, idx.dim)
	}

	idx.ids = make([]int64, 0, header.Count)
	idx.vectors = make([][]float32, 0, header.Count)
	for i := uint64(0); i < header.Count; i++ {
		var id int64
		if err := binary.Read(r, binary.LittleEndian, &id); err != nil {
			return fmt.Errorf("failed to read id %d: %w", i, err)
		}
		vec := make([]float32, idx.dim)
		if err := binary.Read(r, binary.LittleEndian, vec); err != nil {
			return fmt.Errorf("failed to read vector %d: %w", i, err)
		}
		idx.ids = append(idx.ids, id)
		idx.vectors = append(idx.vectors, vec)
		idx.present[id] = struct{}{}
	}
	return nil
}

// save writes the whole index to a temp file and renames it into place.
// Callers must hold the write lock.
func (idx *Index) save() error {
	dir := filepath.Dir(idx.path)
	tmp, err := os.CreateTemp(dir, ".vecindex-*")
	if err != nil {
		return fmt.Errorf("failed to create temp index file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	header := struct {
		Magic   [4]byte
		Version uint32
		Dim     uint32
		Count   uint64
	}{magic, fileVersion, uint32(idx.dim), uint64(len(idx.ids))}

	if err := binary.Write(tmp, binary.LittleEndian, &header); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write header: %w", err)
	}
	for i, id := range idx.ids {
		if err := binary.Write(tmp, binary.LittleEndian, id); err != nil {
			tmp.Close()
			return fmt.Errorf("failed to write id: %w", err)
		}
		if err := binary.Write(tmp, binary.LittleEndian, idx.vectors[i]); err != nil {
			tmp.Close()
			return fmt.Errorf("failed to write vector: %w", err)
		}
	}

	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to sync index file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close index file: %w", err)
	}
	if err := os.Rename(tmpName, idx.path); err != nil {
		return fmt.Errorf("failed to replace index file: %w", err)
	}
	return nil
}

// Add inserts vectors under the given ids and durably saves the index before
// returning. The insert is all-or-nothing: any dimension mismatch or
// duplicate id rejects the whole batch.
func (idx *Index) Add(ids []int64, vectors [][]float32) error {
	if len(ids) != len(vectors) {
		return fmt.Errorf("ids and vectors length mismatch: %d vs %d", len(ids), len(vectors))
	}
	if len(ids) == 0 {
		return nil
	}

	idx.mu.Lock()
	defer idx.mu.Unlock()

	seen := make(map[int64]struct{}, len(ids))
	for i, id := range ids {
		if len(vectors[i]) != idx.dim {
			return fmt.Errorf("%w: vector %d has dimension %d, index has %d",
				ErrDimensionMismatch, i, len(vectors[i]), idx.dim)
		}
		if _, ok := idx.present[id]; ok {
			return fmt.Errorf("%w: %d", ErrDuplicateID, id)
		}
		if _, ok := seen[id]; ok {
			return fmt.Errorf("%w: %d repeated in batch", ErrDuplicateID, id)
		}
		seen[id] = struct{}{}
	}

	for i, id := range ids {
		vec := make([]float32, idx.dim)
		copy(vec, vectors[i])
		idx.ids = append(idx.ids, id)
		idx.vectors = append(idx.vectors, vec)
		idx.present[id] = struct{}{}
	}

	if err := idx.save(); err != nil {
		// Roll back the in-memory state so memory and disk stay in step.
		n := len(idx.ids) - len(ids)
		for _, id := range ids {
			delete(idx.present, id)
		}
		idx.ids = idx.ids[:n]
		idx.vectors = idx.vectors[:n]
		return err
	}
	return nil
}

// Remove deletes the given ids if present and durably saves the index.
// Unknown ids are ignored.
func (idx *Index) Remove(ids []int64) error {
	if len(ids) == 0 {
		return nil
	}

	idx.mu.Lock()
	defer idx.mu.Unlock()

	drop := make(map[int64]struct{}, len(ids))
	removed := false
	for _, id := range ids {
		if _, ok := idx.present[id]; ok {
			drop[id] = struct{}{}
			removed = true
		}
	}
	if !removed {
		return nil
	}

	keptIDs := make([]int64, 0, len(idx.ids))
	keptVecs := make([][]float32, 0, len(idx.vectors))
	for i, id := range idx.ids {
		if _, ok := drop[id]; ok {
			continue
		}
		keptIDs = append(keptIDs, id)
		keptVecs = append(keptVecs, idx.vectors[i])
	}

	oldIDs, oldVecs := idx.ids, idx.vectors
	idx.ids, idx.vectors = keptIDs, keptVecs
	for id := range drop {
		delete(idx.present, id)
	}

	if err := idx.save(); err != nil {
		// Roll back the in-memory state so memory and disk stay in step.
		idx.ids, idx.vectors = oldIDs, oldVecs
		for id := range drop {
			idx.present[id] = struct{}{}
		}
		return err
	}
	return nil
}

// Search returns up to k hits ordered by ascending squared Euclidean
// distance. An empty index returns an empty result.
func (idx *Index) Search(query []float32, k int) ([]Result, error) {
	if len(query) != idx.dim {
		return nil, fmt.Errorf("%w: query has dimension %d, index has %d",
			ErrDimensionMismatch, len(query), idx.dim)
	}
	if k <= 0 {
		return []Result{}, nil
	}

	idx.mu.RLock()
	defer idx.mu.RUnlock()

	results := make([]Result, 0, len(idx.ids))
	for i, id := range idx.ids {
		results = append(results, Result{ID: id, Distance: squaredL2(query, idx.vectors[i])})
	}

	sort.Slice(results, func(a, b int) bool {
		if results[a].Distance != results[b].Distance {
			return results[a].Distance < results[b].Distance
		}
		// Tie-break on id so results are deterministic.
		return results[a].ID < results[b].ID
	})

	if k < len(results) {
		results = results[:k]
	}
	return results, nil
}

// Contains reports whether an id is present in the index.
func (idx *Index) Contains(id int64) bool {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	_, ok := idx.present[id]
	return ok
}

// Len reports the number of stored vectors.
func (idx *Index) Len() int {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return len(idx.ids)
}

// Dimension reports the configured vector width.
func (idx *Index) Dimension() int {
	return idx.dim
}

func squaredL2(a, b []float32) float32 {
	var sum float32
	for i := range a {
		d := a[i] - b[i]
		sum += d * d
	}
	return sum
}
