// Package retrieval answers natural-language queries with ranked chunk ids.
package retrieval

import (
	"context"
	"fmt"
	"regexp"
	"strconv"

	"campus-rag-go/internal/repository"
	"campus-rag-go/pkg/embedding"
	"campus-rag-go/pkg/log"
	"campus-rag-go/pkg/vecindex"
)

const (
	// oversampleFactor widens the raw index search to leave room for
	// metadata filtering.
	oversampleFactor = 5
	// maxDistance is the similarity cutoff in squared Euclidean distance
	// over unit vectors (1.2 corresponds to cosine similarity 0.4).
	// Policy: the cutoff applies while walking candidates; it is waived
	// only as the final fallback when it would otherwise empty the result.
	maxDistance float32 = 1.2
)

var (
	semesterFilterRe = regexp.MustCompile(`(?i)\bsem(?:ester)?\s*(\d{1,2})\b`)
	subjectCodeRe    = regexp.MustCompile(`\b[A-Za-z]{2,6}\d{3,4}\b`)
)

// Engine performs filtered nearest-neighbor retrieval. Results are plain
// chunk ids in similarity-rank order, so callers can resolve them after the
// engine's store session is gone.
type Engine struct {
	embedder  embedding.Client
	index     *vecindex.Index
	chunkRepo repository.ChunkRepository
}

// NewEngine wires the retrieval dependencies.
func NewEngine(embedder embedding.Client, index *vecindex.Index, chunkRepo repository.ChunkRepository) *Engine {
	return &Engine{embedder: embedder, index: index, chunkRepo: chunkRepo}
}

// Search returns up to topK chunk ids ranked by ascending distance. An empty
// result is a normal "no relevant information" outcome, not an error.
func (e *Engine) Search(ctx context.Context, question string, topK int) ([]int64, error) {
	if topK <= 0 {
		topK = 5
	}
	if e.index.Len() == 0 {
		return nil, nil
	}

	allowSet := e.buildAllowSet(question)

	queryVectors, err := e.embedder.EmbedBatch(ctx, []string{question})
	if err != nil {
		return nil, fmt.Errorf("failed to embed question: %w", err)
	}
	if len(queryVectors) == 0 {
		return nil, fmt.Errorf("embedder returned no vector for question")
	}

	candidates, err := e.index.Search(queryVectors[0], topK*oversampleFactor)
	if err != nil {
		return nil, fmt.Errorf("vector search failed: %w", err)
	}

	// kept holds cutoff + allow-set survivors, unfiltered ignores the
	// allow-set, raw keeps every valid candidate regardless of distance.
	var kept, unfiltered, raw []int64

	for _, c := range candidates {
		if c.ID == vecindex.InvalidID {
			continue
		}
		raw = append(raw, c.ID)
		if c.Distance > maxDistance {
			continue
		}
		if len(unfiltered) < topK {
			unfiltered = append(unfiltered, c.ID)
		}
		if allowSet != nil {
			if _, ok := allowSet[c.ID]; !ok {
				continue
			}
		}
		if len(kept) < topK {
			kept = append(kept, c.ID)
		}
	}

	if len(kept) > 0 {
		return kept, nil
	}
	// An active allow-set that filtered everything out must not starve the
	// answer when unfiltered matches exist.
	if allowSet != nil && len(unfiltered) > 0 {
		log.Infof("[retrieval] metadata filter excluded all candidates, falling back to global results")
		return unfiltered, nil
	}
	if len(unfiltered) > 0 {
		return unfiltered, nil
	}
	// Everything was past the cutoff; waive it rather than return nothing
	// for a non-empty index.
	if len(raw) > topK {
		raw = raw[:topK]
	}
	return raw, nil
}

// buildAllowSet parses optional semester/subject filters out of the question
// and resolves them to a chunk id set. An unmatchable filter is treated as
// no filter at all.
func (e *Engine) buildAllowSet(question string) map[int64]struct{} {
	var semester *int
	if m := semesterFilterRe.FindStringSubmatch(question); m != nil {
		if n, err := strconv.Atoi(m[1]); err == nil {
			semester = &n
		}
	}
	subjectCode := subjectCodeRe.FindString(question)

	if semester == nil && subjectCode == "" {
		return nil
	}

	ids, err := e.chunkRepo.FilterIDs(semester, subjectCode)
	if err != nil {
		log.Warnf("[retrieval] metadata filter query failed, searching globally: %v", err)
		return nil
	}
	if len(ids) == 0 {
		// Overly specific query; abandon filtering for this call.
		return nil
	}

	allowSet := make(map[int64]struct{}, len(ids))
	for _, id := range ids {
		allowSet[id] = struct{}{}
	}
	return allowSet
}
