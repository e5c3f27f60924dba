package kafka

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"campus-rag-go/pkg/tasks"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memAttempts struct {
	counts map[string]int64
}

func newMemAttempts() *memAttempts {
	return &memAttempts{counts: make(map[string]int64)}
}

func (s *memAttempts) Incr(_ context.Context, key string) (int64, error) {
	s.counts[key]++
	return s.counts[key], nil
}

func (s *memAttempts) Expire(context.Context, string, time.Duration) error { return nil }

func (s *memAttempts) Del(_ context.Context, key string) error {
	delete(s.counts, key)
	return nil
}

type scriptedProcessor struct {
	failures int
	calls    int
}

func (p *scriptedProcessor) Process(context.Context, tasks.IngestTask) error {
	p.calls++
	if p.calls <= p.failures {
		return errors.New("extraction backend down")
	}
	return nil
}

func TestHandleTaskCommitsOnSuccess(t *testing.T) {
	store := newMemAttempts()
	commit := handleTask(context.Background(), &scriptedProcessor{}, store, tasks.IngestTask{DocumentID: 7})
	assert.True(t, commit)
	assert.Empty(t, store.counts)
}

func TestHandleTaskRetriesThenAbandons(t *testing.T) {
	store := newMemAttempts()
	processor := &scriptedProcessor{failures: 10}
	task := tasks.IngestTask{DocumentID: 7}
	key := fmt.Sprintf("ingest:attempts:%d", task.DocumentID)

	// First two failures leave the offset uncommitted for redelivery.
	for i := 1; i < maxAttempts; i++ {
		assert.False(t, handleTask(context.Background(), processor, store, task))
		assert.Equal(t, int64(i), store.counts[key])
	}

	// The final attempt gives up, commits, and clears the counter.
	assert.True(t, handleTask(context.Background(), processor, store, task))
	assert.Empty(t, store.counts)
}

func TestHandleTaskClearsCounterOnEventualSuccess(t *testing.T) {
	store := newMemAttempts()
	processor := &scriptedProcessor{failures: 1}
	task := tasks.IngestTask{DocumentID: 9}
	key := fmt.Sprintf("ingest:attempts:%d", task.DocumentID)

	require.False(t, handleTask(context.Background(), processor, store, task))
	require.Equal(t, int64(1), store.counts[key])

	// The redelivered task succeeds; a later failure of the same document
	// must start counting from zero again.
	assert.True(t, handleTask(context.Background(), processor, store, task))
	assert.Empty(t, store.counts)
}
