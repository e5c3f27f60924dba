package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"campus-rag-go/internal/model"

	"github.com/go-redis/redis/v8"
)

// historyLimit caps the stored Q&A exchanges per user.
const historyLimit = 50

// historyTTL expires idle conversations.
const historyTTL = 7 * 24 * time.Hour

// ConversationRepository stores recent Q&A exchanges per user.
type ConversationRepository interface {
	Append(ctx context.Context, userID uint, entry model.ConversationEntry) error
	Recent(ctx context.Context, userID uint, limit int) ([]model.ConversationEntry, error)
}

type redisConversationRepository struct {
	redisClient *redis.Client
}

// NewConversationRepository creates a Redis-backed ConversationRepository.
func NewConversationRepository(redisClient *redis.Client) ConversationRepository {
	return &redisConversationRepository{redisClient: redisClient}
}

func historyKey(userID uint) string {
	return fmt.Sprintf("chat:history:%d", userID)
}

// Append pushes one exchange onto the user's history, trimming to the cap.
func (r *redisConversationRepository) Append(ctx context.Context, userID uint, entry model.ConversationEntry) error {
	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("failed to marshal conversation entry: %w", err)
	}

	key := historyKey(userID)
	pipe := r.redisClient.TxPipeline()
	pipe.LPush(ctx, key, data)
	pipe.LTrim(ctx, key, 0, historyLimit-1)
	pipe.Expire(ctx, key, historyTTL)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to store conversation entry: %w", err)
	}
	return nil
}

// Recent returns the newest entries first.
func (r *redisConversationRepository) Recent(ctx context.Context, userID uint, limit int) ([]model.ConversationEntry, error) {
	if limit <= 0 || limit > historyLimit {
		limit = historyLimit
	}

	items, err := r.redisClient.LRange(ctx, historyKey(userID), 0, int64(limit-1)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read conversation history: %w", err)
	}

	entries := make([]model.ConversationEntry, 0, len(items))
	for _, item := range items {
		var entry model.ConversationEntry
		if err := json.Unmarshal([]byte(item), &entry); err != nil {
			continue
		}
		entries = append(entries, entry)
	}
	return entries, nil
}
