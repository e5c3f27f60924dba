package pipeline

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"

	"campus-rag-go/internal/config"
	"campus-rag-go/internal/extract"
	"campus-rag-go/internal/model"
	"campus-rag-go/pkg/tasks"
	"campus-rag-go/pkg/vecindex"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeFileStore struct {
	objects map[string][]byte
}

func (f *fakeFileStore) Put(_ context.Context, objectName string, data []byte) error {
	f.objects[objectName] = data
	return nil
}

func (f *fakeFileStore) Get(_ context.Context, objectName string) ([]byte, error) {
	data, ok := f.objects[objectName]
	if !ok {
		return nil, fmt.Errorf("object %s not found", objectName)
	}
	return data, nil
}

func (f *fakeFileStore) Remove(_ context.Context, objectName string) error {
	delete(f.objects, objectName)
	return nil
}

// fakeEmbedder emits one unit vector per input.
type fakeEmbedder struct {
	short bool // drop the last vector to simulate a count mismatch
}

func (f *fakeEmbedder) EmbedBatch(_ context.Context, texts []string) ([][]float32, error) {
	n := len(texts)
	if f.short && n > 0 {
		n--
	}
	out := make([][]float32, n)
	for i := range out {
		out[i] = []float32{1, 0}
	}
	return out, nil
}

func (f *fakeEmbedder) Dimension() int { return 2 }

// fakeChunkStore assigns sequential ids on insert, like the database does.
type fakeChunkStore struct {
	nextID    int64
	chunks    map[int64]*model.DocumentChunk
	vectorIDs []int64
}

func newFakeChunkStore() *fakeChunkStore {
	return &fakeChunkStore{nextID: 1, chunks: make(map[int64]*model.DocumentChunk)}
}

func (f *fakeChunkStore) BatchCreate(chunks []*model.DocumentChunk) error {
	for _, c := range chunks {
		c.ID = f.nextID
		f.nextID++
		f.chunks[c.ID] = c
	}
	return nil
}

func (f *fakeChunkStore) SetVectorIDs(ids []int64) error {
	f.vectorIDs = append(f.vectorIDs, ids...)
	return nil
}

func (f *fakeChunkStore) DeleteByDocumentID(documentID uint) error {
	for id, c := range f.chunks {
		if c.DocumentID == documentID {
			delete(f.chunks, id)
		}
	}
	return nil
}

func (f *fakeChunkStore) IDsByDocumentID(documentID uint) ([]int64, error) {
	var ids []int64
	for id, c := range f.chunks {
		if c.DocumentID == documentID {
			ids = append(ids, id)
		}
	}
	return ids, nil
}

func (f *fakeChunkStore) FindByIDs([]int64) ([]model.DocumentChunk, error) { return nil, nil }
func (f *fakeChunkStore) FilterIDs(*int, string) ([]int64, error) { return nil, nil }
func (f *fakeChunkStore) Count() (int64, error) { return int64(len(f.chunks)), nil }
func (f *fakeChunkStore) Sample(int) ([]model.DocumentChunk, error) { return nil, nil }

func newTestProcessor(t *testing.T, store *fakeFileStore, chunkStore *fakeChunkStore, embedder *fakeEmbedder) (*Processor, *vecindex.Index) {
	t.Helper()
	index, err := vecindex.Open(filepath.Join(t.TempDir(), "pipe.idx"), 2)
	require.NoError(t, err)
	extractor := extract.New(config.ExtractConfig{})
	return NewProcessor(store, extractor, embedder, index, chunkStore), index
}

func TestProcessIngestsDocument(t *testing.T) {
	store := &fakeFileStore{objects: map[string][]byte{
		"uploads/notes.txt": []byte("LIBRARY HOURS\nOpen from 8am.\nEXAM CELL\nContact the office."),
	}}
	chunkStore := newFakeChunkStore()
	processor, index := newTestProcessor(t, store, chunkStore, &fakeEmbedder{})

	err := processor.Process(context.Background(), tasks.IngestTask{
		DocumentID: 7,
		ObjectName: "uploads/notes.txt",
		FileName:   "notes.txt",
		FileType:   "txt",
	})
	require.NoError(t, err)

	ids, err := chunkStore.IDsByDocumentID(7)
	require.NoError(t, err)
	require.NotEmpty(t, ids)

	// Every chunk id is a live vector id.
	assert.Equal(t, len(ids), index.Len())
	for _, id := range ids {
		assert.True(t, index.Contains(id))
	}
	assert.ElementsMatch(t, ids, chunkStore.vectorIDs)
}

func TestProcessMissingObject(t *testing.T) {
	store := &fakeFileStore{objects: map[string][]byte{}}
	processor, _ := newTestProcessor(t, store, newFakeChunkStore(), &fakeEmbedder{})

	err := processor.Process(context.Background(), tasks.IngestTask{
		DocumentID: 1,
		ObjectName: "missing.txt",
		FileType:   "txt",
	})
	assert.Error(t, err)
}

func TestProcessInsufficientExtraction(t *testing.T) {
	store := &fakeFileStore{objects: map[string][]byte{
		"blob.bin": []byte{0x01, 0x02},
	}}
	chunkStore := newFakeChunkStore()
	processor, index := newTestProcessor(t, store, chunkStore, &fakeEmbedder{})

	err := processor.Process(context.Background(), tasks.IngestTask{
		DocumentID: 1,
		ObjectName: "blob.bin",
		FileType:   "bin",
	})
	assert.ErrorIs(t, err, ErrExtractionInsufficient)
	assert.Equal(t, 0, index.Len())
	assert.Empty(t, chunkStore.chunks)
}

func TestProcessSupersedesPreviousChunks(t *testing.T) {
	store := &fakeFileStore{objects: map[string][]byte{
		"doc.txt": []byte("First version of the document body with enough text to chunk."),
	}}
	chunkStore := newFakeChunkStore()
	processor, index := newTestProcessor(t, store, chunkStore, &fakeEmbedder{})

	task := tasks.IngestTask{DocumentID: 3, ObjectName: "doc.txt", FileName: "doc.txt", FileType: "txt"}
	require.NoError(t, processor.Process(context.Background(), task))

	firstIDs, err := chunkStore.IDsByDocumentID(3)
	require.NoError(t, err)
	require.NotEmpty(t, firstIDs)

	store.objects["doc.txt"] = []byte("Second version replacing the old content entirely, also long enough.")
	require.NoError(t, processor.Process(context.Background(), task))

	secondIDs, err := chunkStore.IDsByDocumentID(3)
	require.NoError(t, err)
	require.NotEmpty(t, secondIDs)

	// Old vectors are gone, new ones are live.
	for _, id := range firstIDs {
		assert.False(t, index.Contains(id))
	}
	for _, id := range secondIDs {
		assert.True(t, index.Contains(id))
	}
	assert.Equal(t, len(secondIDs), index.Len())
}

func TestProcessEmbeddingCountMismatch(t *testing.T) {
	store := &fakeFileStore{objects: map[string][]byte{
		"doc.txt": []byte("LINE ONE\nbody text one.\nLINE TWO\nbody text two."),
	}}
	chunkStore := newFakeChunkStore()
	processor, index := newTestProcessor(t, store, chunkStore, &fakeEmbedder{short: true})

	err := processor.Process(context.Background(), tasks.IngestTask{
		DocumentID: 5,
		ObjectName: "doc.txt",
		FileType:   "txt",
	})
	assert.Error(t, err)
	assert.Equal(t, 0, index.Len())
}
