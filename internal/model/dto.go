package model

import "time"

// AskRequest is the chat question payload.
type AskRequest struct {
	Question string `json:"question" binding:"required"`
}

// AskResponse carries the generated answer and its document provenance.
type AskResponse struct {
	Question string   `json:"question"`
	Answer   string   `json:"answer"`
	Sources  []string `json:"sources"`
}

// SearchHit is one retrieval result resolved to text, for the search API.
type SearchHit struct {
	ChunkID    int64   `json:"chunkId"`
	DocumentID uint    `json:"documentId"`
	Filename   string  `json:"filename"`
	ChunkText  string  `json:"chunkText"`
	Distance   float32 `json:"distance"`
}

// ConversationEntry is one stored Q&A exchange.
type ConversationEntry struct {
	Question  string    `json:"question"`
	Answer    string    `json:"answer"`
	Sources   []string  `json:"sources"`
	CreatedAt time.Time `json:"createdAt"`
}

// ScrapeSourceRequest is the admin create/update payload for crawl targets.
type ScrapeSourceRequest struct {
	Name     string `json:"name" binding:"required"`
	URL      string `json:"url" binding:"required"`
	IsActive *bool  `json:"isActive"`
}

// StatsResponse is the admin dashboard summary.
type StatsResponse struct {
	Documents    int64 `json:"documents"`
	Chunks       int64 `json:"chunks"`
	Vectors      int   `json:"vectors"`
	Sources      int64 `json:"sources"`
	InactiveDocs int64 `json:"inactiveDocs"`
}
