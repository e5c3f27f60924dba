// Package kafka carries document ingestion tasks through a message queue.
package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"campus-rag-go/internal/config"
	"campus-rag-go/pkg/database"
	"campus-rag-go/pkg/log"
	"campus-rag-go/pkg/tasks"

	"github.com/segmentio/kafka-go"
)

// TaskProcessor is anything able to run an ingestion task. It decouples the
// consumer from the concrete pipeline implementation.
type TaskProcessor interface {
	Process(ctx context.Context, task tasks.IngestTask) error
}

// maxAttempts caps redelivery of a failing task before its offset is committed.
const maxAttempts = 3

// attemptStore tracks per-document retry counters. Backed by Redis in
// production.
type attemptStore interface {
	Incr(ctx context.Context, key string) (int64, error)
	Expire(ctx context.Context, key string, ttl time.Duration) error
	Del(ctx context.Context, key string) error
}

type redisAttempts struct{}

func (redisAttempts) Incr(ctx context.Context, key string) (int64, error) {
	return database.RDB.Incr(ctx, key).Result()
}

func (redisAttempts) Expire(ctx context.Context, key string, ttl time.Duration) error {
	return database.RDB.Expire(ctx, key, ttl).Err()
}

func (redisAttempts) Del(ctx context.Context, key string) error {
	return database.RDB.Del(ctx, key).Err()
}

var producer *kafka.Writer

// InitProducer initializes the ingest task producer.
func InitProducer(cfg config.KafkaConfig) {
	producer = &kafka.Writer{
		Addr:     kafka.TCP(cfg.Brokers),
		Topic:    cfg.Topic,
		Balancer: &kafka.LeastBytes{},
	}
	log.Info("Kafka producer initialized successfully")
}

// ProduceIngestTask enqueues one ingestion task.
func ProduceIngestTask(task tasks.IngestTask) error {
	taskBytes, err := json.Marshal(task)
	if err != nil {
		return err
	}

	return producer.WriteMessages(context.Background(),
		kafka.Message{Value: taskBytes},
	)
}

// StartConsumer runs the ingest consumer loop until the reader fails.
func StartConsumer(cfg config.KafkaConfig, processor TaskProcessor) {
	r := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  []string{cfg.Brokers},
		Topic:    cfg.Topic,
		GroupID:  "campus-rag-ingest",
		MinBytes: 10e3,
		MaxBytes: 10e6,
	})

	log.Infof("Kafka consumer started, listening on topic '%s'", cfg.Topic)

	for {
		m, err := r.FetchMessage(context.Background())
		if err != nil {
			log.Error("failed to fetch message from Kafka", err)
			break
		}

		var task tasks.IngestTask
		if err := json.Unmarshal(m.Value, &task); err != nil {
			log.Errorf("unparseable Kafka message: %v, value: %s", err, string(m.Value))
			// Malformed message, commit so it does not block the queue.
			if err := r.CommitMessages(context.Background(), m); err != nil {
				log.Errorf("failed to commit malformed message: %v", err)
			}
			continue
		}

		log.Infof("processing ingest task: documentID=%d, fileName=%s", task.DocumentID, task.FileName)
		if !handleTask(context.Background(), processor, redisAttempts{}, task) {
			continue
		}

		if err := r.CommitMessages(context.Background(), m); err != nil {
			log.Errorf("failed to commit message: %v", err)
		}
	}
}

// handleTask runs one ingestion task and reports whether its offset should be
// committed. Failures are counted per document; the counter is cleared both
// when the task is abandoned and when it eventually succeeds, so a later
// failure of the same document starts from zero.
func handleTask(ctx context.Context, processor TaskProcessor, store attemptStore, task tasks.IngestTask) bool {
	attemptsKey := fmt.Sprintf("ingest:attempts:%d", task.DocumentID)

	if err := processor.Process(ctx, task); err != nil {
		log.Errorf("ingest task failed: documentID=%d, error: %v", task.DocumentID, err)
		attempts, incErr := store.Incr(ctx, attemptsKey)
		if incErr == nil {
			_ = store.Expire(ctx, attemptsKey, 24*time.Hour)
		}
		if incErr != nil || attempts >= maxAttempts {
			log.Warnf("giving up on ingest task after %d attempts, documentID=%d", attempts, task.DocumentID)
			_ = store.Del(ctx, attemptsKey)
			return true
		}
		return false
	}

	_ = store.Del(ctx, attemptsKey)
	return true
}
