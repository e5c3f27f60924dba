package vecindex

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestIndex(t *testing.T, dim int) *Index {
	t.Helper()
	idx, err := Open(filepath.Join(t.TempDir(), "test.idx"), dim)
	require.NoError(t, err)
	return idx
}

func TestOpenCreatesEmptyIndex(t *testing.T) {
	path := filepath.Join(t.TempDir(), "fresh.idx")
	idx, err := Open(path, 4)
	require.NoError(t, err)
	assert.Equal(t, 0, idx.Len())
	assert.Equal(t, 4, idx.Dimension())

	// The file exists immediately so a crash before the first Add still
	// leaves a loadable index.
	_, err = os.Stat(path)
	assert.NoError(t, err)
}

func TestOpenCreatesMissingDirectory(t *testing.T) {
	// The default config points inside a data/ directory that a fresh
	// deployment does not have yet.
	path := filepath.Join(t.TempDir(), "data", "vectors.idx")
	idx, err := Open(path, 4)
	require.NoError(t, err)
	require.NoError(t, idx.Add([]int64{1}, [][]float32{{1, 0, 0, 0}}))

	reopened, err := Open(path, 4)
	require.NoError(t, err)
	assert.True(t, reopened.Contains(1))
}

func TestOpenRejectsInvalidDimension(t *testing.T) {
	_, err := Open(filepath.Join(t.TempDir(), "bad.idx"), 0)
	assert.Error(t, err)
}

func TestAddAndSearchOrdering(t *testing.T) {
	idx := newTestIndex(t, 2)

	require.NoError(t, idx.Add(
		[]int64{10, 20, 30},
		[][]float32{
			{1, 0},
			{0, 1},
			{0.9, 0.1},
		},
	))

	results, err := idx.Search([]float32{1, 0}, 3)
	require.NoError(t, err)
	require.Len(t, results, 3)

	assert.Equal(t, int64(10), results[0].ID)
	assert.Equal(t, int64(30), results[1].ID)
	assert.Equal(t, int64(20), results[2].ID)

	// Distances ascend.
	assert.LessOrEqual(t, results[0].Distance, results[1].Distance)
	assert.LessOrEqual(t, results[1].Distance, results[2].Distance)
	assert.Equal(t, float32(0), results[0].Distance)
}

func TestSearchTieBreaksOnID(t *testing.T) {
	idx := newTestIndex(t, 2)

	// Two identical vectors, inserted in reverse id order.
	require.NoError(t, idx.Add(
		[]int64{7, 3},
		[][]float32{{0, 1}, {0, 1}},
	))

	results, err := idx.Search([]float32{0, 1}, 2)
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, int64(3), results[0].ID)
	assert.Equal(t, int64(7), results[1].ID)
}

func TestSearchLimitsToK(t *testing.T) {
	idx := newTestIndex(t, 2)
	require.NoError(t, idx.Add(
		[]int64{1, 2, 3},
		[][]float32{{1, 0}, {0, 1}, {0.5, 0.5}},
	))

	results, err := idx.Search([]float32{1, 0}, 2)
	require.NoError(t, err)
	assert.Len(t, results, 2)

	results, err = idx.Search([]float32{1, 0}, 0)
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestSearchEmptyIndex(t *testing.T) {
	idx := newTestIndex(t, 3)
	results, err := idx.Search([]float32{1, 0, 0}, 5)
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestAddRejectsDimensionMismatch(t *testing.T) {
	idx := newTestIndex(t, 3)

	err := idx.Add([]int64{1}, [][]float32{{1, 0}})
	assert.ErrorIs(t, err, ErrDimensionMismatch)
	assert.Equal(t, 0, idx.Len())
}

func TestSearchRejectsDimensionMismatch(t *testing.T) {
	idx := newTestIndex(t, 3)
	_, err := idx.Search([]float32{1, 0}, 1)
	assert.ErrorIs(t, err, ErrDimensionMismatch)
}

func TestAddRejectsDuplicateIDs(t *testing.T) {
	idx := newTestIndex(t, 2)
	require.NoError(t, idx.Add([]int64{1}, [][]float32{{1, 0}}))

	err := idx.Add([]int64{1}, [][]float32{{0, 1}})
	assert.ErrorIs(t, err, ErrDuplicateID)

	// Repeats inside one batch are rejected too, and nothing from the batch
	// lands.
	err = idx.Add([]int64{2, 2}, [][]float32{{1, 0}, {0, 1}})
	assert.ErrorIs(t, err, ErrDuplicateID)
	assert.Equal(t, 1, idx.Len())
	assert.False(t, idx.Contains(2))
}

func TestAddIsAllOrNothing(t *testing.T) {
	idx := newTestIndex(t, 2)
	require.NoError(t, idx.Add([]int64{1}, [][]float32{{1, 0}}))

	// The second entry collides, so the valid first entry must not land.
	err := idx.Add([]int64{5, 1}, [][]float32{{0, 1}, {1, 1}})
	assert.ErrorIs(t, err, ErrDuplicateID)
	assert.False(t, idx.Contains(5))
	assert.Equal(t, 1, idx.Len())
}

func TestAddDoesNotAliasCallerVectors(t *testing.T) {
	idx := newTestIndex(t, 2)
	vec := []float32{1, 0}
	require.NoError(t, idx.Add([]int64{1}, [][]float32{vec}))

	vec[0] = 0
	vec[1] = 1

	results, err := idx.Search([]float32{1, 0}, 1)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, float32(0), results[0].Distance)
}

func TestRemove(t *testing.T) {
	idx := newTestIndex(t, 2)
	require.NoError(t, idx.Add(
		[]int64{1, 2, 3},
		[][]float32{{1, 0}, {0, 1}, {0.5, 0.5}},
	))

	require.NoError(t, idx.Remove([]int64{2, 99})) // unknown id is ignored
	assert.Equal(t, 2, idx.Len())
	assert.False(t, idx.Contains(2))
	assert.True(t, idx.Contains(1))
	assert.True(t, idx.Contains(3))

	results, err := idx.Search([]float32{0, 1}, 3)
	require.NoError(t, err)
	for _, r := range results {
		assert.NotEqual(t, int64(2), r.ID)
	}
}

func TestRemoveRollsBackOnSaveFailure(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "sub")
	idx, err := Open(filepath.Join(dir, "rollback.idx"), 2)
	require.NoError(t, err)
	require.NoError(t, idx.Add(
		[]int64{1, 2},
		[][]float32{{1, 0}, {0, 1}},
	))

	// Replace the index directory with a plain file so the rewrite fails.
	require.NoError(t, os.RemoveAll(dir))
	require.NoError(t, os.WriteFile(dir, []byte("in the way"), 0o600))

	err = idx.Remove([]int64{1})
	require.Error(t, err)

	// Memory still matches the last durable state.
	assert.Equal(t, 2, idx.Len())
	assert.True(t, idx.Contains(1))
	assert.True(t, idx.Contains(2))

	results, err := idx.Search([]float32{1, 0}, 1)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, int64(1), results[0].ID)
}

func TestPersistenceAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "persist.idx")

	idx, err := Open(path, 2)
	require.NoError(t, err)
	require.NoError(t, idx.Add(
		[]int64{1, 2},
		[][]float32{{1, 0}, {0, 1}},
	))
	require.NoError(t, idx.Remove([]int64{1}))

	reopened, err := Open(path, 2)
	require.NoError(t, err)
	assert.Equal(t, 1, reopened.Len())
	assert.True(t, reopened.Contains(2))
	assert.False(t, reopened.Contains(1))

	results, err := reopened.Search([]float32{0, 1}, 1)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, int64(2), results[0].ID)
	assert.Equal(t, float32(0), results[0].Distance)
}

func TestOpenRejectsDimensionChange(t *testing.T) {
	path := filepath.Join(t.TempDir(), "dim.idx")

	idx, err := Open(path, 2)
	require.NoError(t, err)
	require.NoError(t, idx.Add([]int64{1}, [][]float32{{1, 0}}))

	_, err = Open(path, 3)
	assert.ErrorIs(t, err, ErrDimensionMismatch)
}

func TestOpenRejectsForeignFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "foreign.idx")
	require.NoError(t, os.WriteFile(path, []byte("not an index"), 0o600))

	_, err := Open(path, 2)
	assert.Error(t, err)
}
