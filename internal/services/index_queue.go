package services

import (
	"context"
	"sync"
	"time"

	"threadline/internal/logger"
	"threadline/internal/models"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

type IndexAction string

const (
	IndexActionIndex  IndexAction = "index"
	IndexActionRemove IndexAction = "remove"
)

// IndexEvent asks the search indexer to (re)index or drop one comment.
type IndexEvent struct {
	ID        uuid.UUID   `json:"id"`
	Action    IndexAction `json:"action"`
	Key       string      `json:"key"`
	CommentID uint        `json:"comment_id"`
	At        time.Time   `json:"at"`
}

func NewIndexEvent(action IndexAction, c models.Comment) IndexEvent {
	return IndexEvent{
		ID:        uuid.New(),
		Action:    action,
		Key:       c.IndexKey(),
		CommentID: c.ID,
		At:        time.Now().UTC(),
	}
}

// IndexSignaler accepts index events without blocking the caller.
type IndexSignaler interface {
	Signal(evt IndexEvent)
}

type IndexPublisher interface {
	Publish(ctx context.Context, evt IndexEvent) error
}

const (
	indexBatchSize      = 50
	indexFlushInterval  = 500 * time.Millisecond
	indexPublishTimeout = 5 * time.Second
)

// IndexQueue buffers index events and hands them to a publisher from one
// background worker, in the order they were signalled.
type IndexQueue struct {
	queue     chan IndexEvent
	publisher IndexPublisher
	done      chan struct{}

	mu     sync.RWMutex
	closed bool
}

func NewIndexQueue(publisher IndexPublisher, size int) *IndexQueue {
	if size <= 0 {
		size = 1000
	}
	q := &IndexQueue{
		queue:     make(chan IndexEvent, size),
		publisher: publisher,
		done:      make(chan struct{}),
	}
	go q.worker()
	return q
}

// Signal enqueues evt. A full or closed queue drops the event with a log line.
func (q *IndexQueue) Signal(evt IndexEvent) {
	q.mu.RLock()
	defer q.mu.RUnlock()
	if q.closed {
		logger.Warn("Index queue closed, dropping event", zap.String("key", evt.Key), zap.String("action", string(evt.Action)))
		return
	}

	select {
	case q.queue <- evt:
	default:
		logger.Warn("Index queue full, dropping event", zap.String("key", evt.Key), zap.String("action", string(evt.Action)))
	}
}

// Close stops accepting events and waits for the backlog to drain or ctx to end.
func (q *IndexQueue) Close(ctx context.Context) error {
	q.mu.Lock()
	if !q.closed {
		q.closed = true
		close(q.queue)
	}
	q.mu.Unlock()

	select {
	case <-q.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (q *IndexQueue) worker() {
	defer close(q.done)

	batch := make([]IndexEvent, 0, indexBatchSize)
	ticker := time.NewTicker(indexFlushInterval)
	defer ticker.Stop()

	for {
		select {
		case evt, ok := <-q.queue:
			if !ok {
				q.flush(batch)
				return
			}
			batch = append(batch, evt)
			if len(batch) >= indexBatchSize {
				q.flush(batch)
				batch = batch[:0]
			}
		case <-ticker.C:
			if len(batch) > 0 {
				q.flush(batch)
				batch = batch[:0]
			}
		}
	}
}

func (q *IndexQueue) flush(batch []IndexEvent) {
	for _, evt := range batch {
		ctx, cancel := context.WithTimeout(context.Background(), indexPublishTimeout)
		err := q.publisher.Publish(ctx, evt)
		cancel()
		if err != nil {
			logger.Error("Failed to publish index event",
				zap.String("key", evt.Key),
				zap.String("action", string(evt.Action)),
				zap.Error(err))
		}
	}
}
