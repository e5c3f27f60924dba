// Package chunker splits extracted text into retrieval chunks using a
// strategy picked by document type.
package chunker

import (
	"strings"

	"campus-rag-go/internal/classifier"
)

// Chunk is one chunk record produced by a strategy. SubjectData carries the
// extracted per-subject marks for result documents, nil otherwise.
type Chunk struct {
	Text        string
	SubjectData *string
}

// Strategy turns text into an ordered chunk sequence. Strategies are
// deterministic and never fail; worst case is an empty sequence, which the
// ingestion pipeline covers with Fallback.
type Strategy func(text string) []Chunk

// ForType returns the strategy for a document type. The mapping is total:
// every type resolves to a strategy, General being the default.
func ForType(t classifier.DocType) Strategy {
	switch t {
	case classifier.Result:
		return ChunkResult
	case classifier.Syllabus:
		return ChunkSyllabus
	case classifier.Event:
		return ChunkEvent
	default:
		return ChunkGeneral
	}
}

// FallbackMaxLen bounds the single chunk produced when a strategy yields
// nothing.
const FallbackMaxLen = 1000

// Fallback stores a bounded prefix of the original text as one unstructured
// chunk. Returns an empty sequence only for blank text.
func Fallback(text string) []Chunk {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return nil
	}
	runes := []rune(trimmed)
	if len(runes) > FallbackMaxLen {
		runes = runes[:FallbackMaxLen]
	}
	return []Chunk{{Text: string(runes)}}
}

func splitLines(text string) []string {
	return strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n")
}

// isUpperHeading reports whether a line looks like an all-caps heading: it
// contains at least one letter and no lowercase letters.
func isUpperHeading(line string) bool {
	hasLetter := false
	for _, r := range line {
		if r >= 'a' && r <= 'z' {
			return false
		}
		if r >= 'A' && r <= 'Z' {
			hasLetter = true
		}
	}
	return hasLetter
}
