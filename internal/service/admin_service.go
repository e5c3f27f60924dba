package service

import (
	"context"
	"fmt"

	"campus-rag-go/internal/crawler"
	"campus-rag-go/internal/model"
	"campus-rag-go/internal/repository"
	"campus-rag-go/pkg/embedding"
	"campus-rag-go/pkg/vecindex"
)

// AdminService backs the admin dashboard: corpus stats, scrape source
// management, manual crawl triggers and retrieval debugging.
type AdminService interface {
	Stats() (*model.StatsResponse, error)

	CreateSource(req model.ScrapeSourceRequest) (*model.ScrapeSource, error)
	ListSources() ([]model.ScrapeSource, error)
	UpdateSource(id uint, req model.ScrapeSourceRequest) (*model.ScrapeSource, error)
	DeleteSource(id uint) error

	// TriggerCrawl runs one crawl pass synchronously and reports its outcome.
	TriggerCrawl(ctx context.Context) crawler.Stats

	// SampleChunks and DebugSearch exist for inspecting ingestion quality.
	SampleChunks(limit int) ([]model.DocumentChunk, error)
	DebugSearch(ctx context.Context, query string, topK int) ([]model.SearchHit, error)
}

type adminService struct {
	docRepo    repository.DocumentRepository
	chunkRepo  repository.ChunkRepository
	sourceRepo repository.ScrapeSourceRepository
	index      *vecindex.Index
	embedder   embedding.Client
	crawler    *crawler.Crawler
}

// NewAdminService creates an AdminService.
func NewAdminService(
	docRepo repository.DocumentRepository,
	chunkRepo repository.ChunkRepository,
	sourceRepo repository.ScrapeSourceRepository,
	index *vecindex.Index,
	embedder embedding.Client,
	crawlerInstance *crawler.Crawler,
) AdminService {
	return &adminService{
		docRepo:    docRepo,
		chunkRepo:  chunkRepo,
		sourceRepo: sourceRepo,
		index:      index,
		embedder:   embedder,
		crawler:    crawlerInstance,
	}
}

func (s *adminService) Stats() (*model.StatsResponse, error) {
	docs, err := s.docRepo.Count()
	if err != nil {
		return nil, fmt.Errorf("failed to count documents: %w", err)
	}
	chunks, err := s.chunkRepo.Count()
	if err != nil {
		return nil, fmt.Errorf("failed to count chunks: %w", err)
	}
	sources, err := s.sourceRepo.Count()
	if err != nil {
		return nil, fmt.Errorf("failed to count scrape sources: %w", err)
	}
	inactive, err := s.docRepo.CountInactive()
	if err != nil {
		return nil, fmt.Errorf("failed to count inactive documents: %w", err)
	}
	return &model.StatsResponse{
		Documents:    docs,
		Chunks:       chunks,
		Vectors:      s.index.Len(),
		Sources:      sources,
		InactiveDocs: inactive,
	}, nil
}

func (s *adminService) CreateSource(req model.ScrapeSourceRequest) (*model.ScrapeSource, error) {
	source := &model.ScrapeSource{
		Name:     req.Name,
		URL:      req.URL,
		IsActive: true,
	}
	if req.IsActive != nil {
		source.IsActive = *req.IsActive
	}
	if err := s.sourceRepo.Create(source); err != nil {
		return nil, fmt.Errorf("failed to create scrape source: %w", err)
	}
	return source, nil
}

func (s *adminService) ListSources() ([]model.ScrapeSource, error) {
	return s.sourceRepo.FindAll()
}

func (s *adminService) UpdateSource(id uint, req model.ScrapeSourceRequest) (*model.ScrapeSource, error) {
	source, err := s.sourceRepo.FindByID(id)
	if err != nil {
		return nil, err
	}
	source.Name = req.Name
	source.URL = req.URL
	if req.IsActive != nil {
		source.IsActive = *req.IsActive
	}
	if err := s.sourceRepo.Update(source); err != nil {
		return nil, fmt.Errorf("failed to update scrape source: %w", err)
	}
	return source, nil
}

func (s *adminService) DeleteSource(id uint) error {
	return s.sourceRepo.Delete(id)
}

func (s *adminService) TriggerCrawl(ctx context.Context) crawler.Stats {
	return s.crawler.RunOnce(ctx)
}

func (s *adminService) SampleChunks(limit int) ([]model.DocumentChunk, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	return s.chunkRepo.Sample(limit)
}

// DebugSearch runs a raw nearest-neighbor query with no metadata filtering
// or distance cutoff, exposing the distances the retrieval engine would see.
func (s *adminService) DebugSearch(ctx context.Context, query string, topK int) ([]model.SearchHit, error) {
	if topK <= 0 || topK > 50 {
		topK = 10
	}
	if s.index.Len() == 0 {
		return nil, nil
	}

	vectors, err := s.embedder.EmbedBatch(ctx, []string{query})
	if err != nil {
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}
	if len(vectors) == 0 {
		return nil, fmt.Errorf("embedder returned no vector")
	}

	results, err := s.index.Search(vectors[0], topK)
	if err != nil {
		return nil, fmt.Errorf("vector search failed: %w", err)
	}

	var ids []int64
	distances := make(map[int64]float32, len(results))
	for _, r := range results {
		if r.ID == vecindex.InvalidID {
			continue
		}
		ids = append(ids, r.ID)
		distances[r.ID] = r.Distance
	}

	chunks, err := s.chunkRepo.FindByIDs(ids)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve chunks: %w", err)
	}
	byID := make(map[int64]model.DocumentChunk, len(chunks))
	for _, chunk := range chunks {
		byID[chunk.ID] = chunk
	}

	var hits []model.SearchHit
	for _, id := range ids {
		chunk, ok := byID[id]
		if !ok {
			continue
		}
		hit := model.SearchHit{
			ChunkID:    chunk.ID,
			DocumentID: chunk.DocumentID,
			ChunkText:  chunk.ChunkText,
			Distance:   distances[id],
		}
		if chunk.Document != nil {
			hit.Filename = chunk.Document.Filename
		}
		hits = append(hits, hit)
	}
	return hits, nil
}
