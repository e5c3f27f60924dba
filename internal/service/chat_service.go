package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"campus-rag-go/internal/model"
	"campus-rag-go/internal/repository"
	"campus-rag-go/internal/retrieval"
	"campus-rag-go/pkg/llm"
	"campus-rag-go/pkg/log"
)

// askTopK is how many chunks feed the answer context.
const askTopK = 8

// noInfoAnswer is returned as a normal answer, not an error, when retrieval
// finds nothing usable.
const noInfoAnswer = "No relevant information found in uploaded documents."

// contextSeparator joins retrieved chunk texts in the prompt.
const contextSeparator = "\n\n---\n\n"

// ChatService answers questions over the ingested documents and keeps
// per-user conversation history.
type ChatService interface {
	Ask(ctx context.Context, userID uint, question string) (*model.AskResponse, error)
	// AskStream streams the answer fragments to the writer and records the
	// assembled answer in the history afterwards.
	AskStream(ctx context.Context, userID uint, question string, writer llm.MessageWriter) error
	History(ctx context.Context, userID uint, limit int) ([]model.ConversationEntry, error)
}

type chatService struct {
	engine           *retrieval.Engine
	chunkRepo        repository.ChunkRepository
	conversationRepo repository.ConversationRepository
	llmClient        llm.Client
}

// NewChatService creates a ChatService.
func NewChatService(
	engine *retrieval.Engine,
	chunkRepo repository.ChunkRepository,
	conversationRepo repository.ConversationRepository,
	llmClient llm.Client,
) ChatService {
	return &chatService{
		engine:           engine,
		chunkRepo:        chunkRepo,
		conversationRepo: conversationRepo,
		llmClient:        llmClient,
	}
}

// retrieveContext runs retrieval and resolves the hits to prompt context and
// source filenames, both in similarity-rank order.
func (s *chatService) retrieveContext(ctx context.Context, question string) (contextText string, sources []string, err error) {
	ids, err := s.engine.Search(ctx, question, askTopK)
	if err != nil {
		return "", nil, fmt.Errorf("retrieval failed: %w", err)
	}
	if len(ids) == 0 {
		return "", nil, nil
	}

	chunks, err := s.chunkRepo.FindByIDs(ids)
	if err != nil {
		return "", nil, fmt.Errorf("failed to resolve chunks: %w", err)
	}

	byID := make(map[int64]model.DocumentChunk, len(chunks))
	for _, chunk := range chunks {
		byID[chunk.ID] = chunk
	}

	var parts []string
	seenSource := make(map[string]struct{})
	for _, id := range ids {
		chunk, ok := byID[id]
		if !ok {
			// Indexed but no longer stored; a concurrent delete won the race.
			continue
		}
		parts = append(parts, chunk.ChunkText)
		if chunk.Document != nil {
			if _, dup := seenSource[chunk.Document.Filename]; !dup {
				seenSource[chunk.Document.Filename] = struct{}{}
				sources = append(sources, chunk.Document.Filename)
			}
		}
	}
	return strings.Join(parts, contextSeparator), sources, nil
}

func (s *chatService) recordExchange(ctx context.Context, userID uint, question, answer string, sources []string) {
	entry := model.ConversationEntry{
		Question:  question,
		Answer:    answer,
		Sources:   sources,
		CreatedAt: time.Now(),
	}
	if err := s.conversationRepo.Append(ctx, userID, entry); err != nil {
		log.Warnf("failed to record conversation for user %d: %v", userID, err)
	}
}

func (s *chatService) Ask(ctx context.Context, userID uint, question string) (*model.AskResponse, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return nil, fmt.Errorf("question is empty")
	}

	contextText, sources, err := s.retrieveContext(ctx, question)
	if err != nil {
		return nil, err
	}
	if contextText == "" {
		resp := &model.AskResponse{Question: question, Answer: noInfoAnswer}
		s.recordExchange(ctx, userID, question, noInfoAnswer, nil)
		return resp, nil
	}

	answer, err := s.llmClient.GenerateAnswer(ctx, question, contextText)
	if err != nil {
		return nil, fmt.Errorf("answer generation failed: %w", err)
	}

	s.recordExchange(ctx, userID, question, answer, sources)
	return &model.AskResponse{Question: question, Answer: answer, Sources: sources}, nil
}

// capturingWriter tees streamed fragments so the full answer can be stored
// in the conversation history.
type capturingWriter struct {
	inner llm.MessageWriter
	buf   strings.Builder
}

func (w *capturingWriter) WriteMessage(messageType int, data []byte) error {
	w.buf.Write(data)
	return w.inner.WriteMessage(messageType, data)
}

func (s *chatService) AskStream(ctx context.Context, userID uint, question string, writer llm.MessageWriter) error {
	question = strings.TrimSpace(question)
	if question == "" {
		return fmt.Errorf("question is empty")
	}

	contextText, sources, err := s.retrieveContext(ctx, question)
	if err != nil {
		return err
	}
	if contextText == "" {
		if err := writer.WriteMessage(1, []byte(noInfoAnswer)); err != nil {
			return err
		}
		s.recordExchange(ctx, userID, question, noInfoAnswer, nil)
		return nil
	}

	capture := &capturingWriter{inner: writer}
	if err := s.llmClient.StreamAnswer(ctx, question, contextText, capture); err != nil {
		return fmt.Errorf("answer streaming failed: %w", err)
	}

	s.recordExchange(ctx, userID, question, capture.buf.String(), sources)
	return nil
}

func (s *chatService) History(ctx context.Context, userID uint, limit int) ([]model.ConversationEntry, error) {
	return s.conversationRepo.Recent(ctx, userID, limit)
}
