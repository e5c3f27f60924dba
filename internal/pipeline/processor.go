// Package pipeline implements the document ingestion flow: fetch, extract,
// classify, chunk, persist, embed, index.
package pipeline

import (
	"context"
	"errors"
	"fmt"

	"campus-rag-go/internal/chunker"
	"campus-rag-go/internal/classifier"
	"campus-rag-go/internal/extract"
	"campus-rag-go/internal/model"
	"campus-rag-go/internal/repository"
	"campus-rag-go/pkg/embedding"
	"campus-rag-go/pkg/log"
	"campus-rag-go/pkg/storage"
	"campus-rag-go/pkg/tasks"
	"campus-rag-go/pkg/vecindex"
)

// ErrExtractionInsufficient means no usable text survived the extraction
// ladder. The document stays as metadata-only and is not indexed.
var ErrExtractionInsufficient = errors.New("no usable text extracted")

// Processor runs the ingestion pipeline for one document at a time. It is
// safe for concurrent use: chunk ids are assigned by the store and the
// vector index serializes its own mutation.
type Processor struct {
	fileStore storage.FileStore
	extractor *extract.Extractor
	embedder  embedding.Client
	index     *vecindex.Index
	chunkRepo repository.ChunkRepository
}

// NewProcessor wires the pipeline dependencies.
func NewProcessor(
	fileStore storage.FileStore,
	extractor *extract.Extractor,
	embedder embedding.Client,
	index *vecindex.Index,
	chunkRepo repository.ChunkRepository,
) *Processor {
	return &Processor{
		fileStore: fileStore,
		extractor: extractor,
		embedder:  embedder,
		index:     index,
		chunkRepo: chunkRepo,
	}
}

// Process ingests one document end to end. Chunk records commit before the
// vector write: a failure in between leaves unindexed chunks, which the next
// re-ingestion of the same document supersedes.
func (p *Processor) Process(ctx context.Context, task tasks.IngestTask) error {
	log.Infof("[pipeline] processing document %d (%s)", task.DocumentID, task.FileName)

	data, err := p.fileStore.Get(ctx, task.ObjectName)
	if err != nil {
		return fmt.Errorf("failed to fetch %s from object storage: %w", task.ObjectName, err)
	}
	if len(data) == 0 {
		return fmt.Errorf("object %s is empty", task.ObjectName)
	}

	text := p.extractor.Extract(ctx, data, task.FileType)
	if text == "" {
		log.Warnf("[pipeline] document %d yielded no text, keeping metadata only", task.DocumentID)
		return ErrExtractionInsufficient
	}

	docType := classifier.Classify(text)
	chunks := chunker.ForType(docType)(text)
	if len(chunks) == 0 {
		log.Warnf("[pipeline] %s chunker produced nothing for document %d, storing fallback chunk",
			docType, task.DocumentID)
		chunks = chunker.Fallback(text)
	}
	if len(chunks) == 0 {
		return ErrExtractionInsufficient
	}
	log.Infof("[pipeline] document %d classified as %s, %d chunks", task.DocumentID, docType, len(chunks))

	// Supersede any previous generation of chunks and vectors so an update
	// never leaves stale vector ids behind.
	oldIDs, err := p.chunkRepo.IDsByDocumentID(task.DocumentID)
	if err != nil {
		return fmt.Errorf("failed to list existing chunks: %w", err)
	}
	if len(oldIDs) > 0 {
		if err := p.index.Remove(oldIDs); err != nil {
			return fmt.Errorf("failed to remove superseded vectors: %w", err)
		}
		if err := p.chunkRepo.DeleteByDocumentID(task.DocumentID); err != nil {
			return fmt.Errorf("failed to delete superseded chunks: %w", err)
		}
	}

	records := make([]*model.DocumentChunk, 0, len(chunks))
	texts := make([]string, 0, len(chunks))
	for i, c := range chunks {
		records = append(records, &model.DocumentChunk{
			DocumentID:  task.DocumentID,
			ChunkText:   c.Text,
			ChunkIndex:  i,
			SubjectData: c.SubjectData,
		})
		texts = append(texts, c.Text)
	}

	// Chunks first: their assigned ids are the vector keys.
	if err := p.chunkRepo.BatchCreate(records); err != nil {
		return fmt.Errorf("failed to persist chunks: %w", err)
	}

	ids := make([]int64, 0, len(records))
	for _, r := range records {
		ids = append(ids, r.ID)
	}

	vectors, err := p.embedder.EmbedBatch(ctx, texts)
	if err != nil {
		return fmt.Errorf("failed to embed chunks: %w", err)
	}
	if len(vectors) == 0 {
		// An empty batch here is unexpected but not worth corrupting the
		// index over; skip indexing and leave the chunks recoverable.
		log.Warnf("[pipeline] empty embedding batch for document %d, skipping index write", task.DocumentID)
		return nil
	}
	if len(vectors) != len(ids) {
		return fmt.Errorf("embedding count %d does not match chunk count %d", len(vectors), len(ids))
	}

	if err := p.index.Add(ids, vectors); err != nil {
		return fmt.Errorf("failed to index vectors: %w", err)
	}

	if err := p.chunkRepo.SetVectorIDs(ids); err != nil {
		// Vector ids are an audit duplicate of chunk ids; log and move on.
		log.Warnf("[pipeline] failed to stamp vector ids for document %d: %v", task.DocumentID, err)
	}

	log.Infof("[pipeline] document %d ingested: %d chunks indexed", task.DocumentID, len(ids))
	return nil
}
