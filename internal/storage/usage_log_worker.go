package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"smartai_gateway/internal/models"
	"smartai_gateway/internal/queue"
	"smartai_gateway/internal/utils"
)

// UsageLogWriter persists usage logs. Implemented by UsageLogRepository.
type UsageLogWriter interface {
	Create(ctx context.Context, l *models.UsageLog) error
	CreateBatch(ctx context.Context, logs []*models.UsageLog) error
}

// UsageLogWorker drains the usage queue into the database in batches.
// A failed batch is retried row by row with exponential backoff, and rows
// that still fail are moved to the dead letter queue.
type UsageLogWorker struct {
	queue  queue.Queue
	dlq    queue.DeadLetterQueue
	repo   UsageLogWriter
	config *queue.Config
	logger *utils.Logger

	startOnce   sync.Once
	stopOnce    sync.Once
	started     chan struct{}
	stopChan    chan struct{}
	stoppedChan chan struct{}
}

func NewUsageLogWorker(q queue.Queue, dlq queue.DeadLetterQueue, repo UsageLogWriter, config *queue.Config) *UsageLogWorker {
	if config == nil {
		config = queue.DefaultConfig("usage")
	}

	return &UsageLogWorker{
		queue:       q,
		dlq:         dlq,
		repo:        repo,
		config:      config,
		logger:      utils.NewLogger("usage-worker"),
		started:     make(chan struct{}),
		stopChan:    make(chan struct{}),
		stoppedChan: make(chan struct{}),
	}
}

// Start launches the worker goroutine. Subsequent calls are no-ops.
func (w *UsageLogWorker) Start(ctx context.Context) {
	w.startOnce.Do(func() {
		close(w.started)
		go w.run(ctx)
	})
}

// Stop signals the worker, waits for it to flush what is already queued, and returns.
func (w *UsageLogWorker) Stop() error {
	w.stopOnce.Do(func() { close(w.stopChan) })

	select {
	case <-w.started:
		<-w.stoppedChan
	default:
	}
	return nil
}

// Enqueue assigns the log its id and timestamp and hands it to the queue
func (w *UsageLogWorker) Enqueue(ctx context.Context, l *models.UsageLog) error {
	prepareUsageLog(l)
	if err := w.queue.Enqueue(ctx, l); err != nil {
		return fmt.Errorf("failed to enqueue usage log: %w", err)
	}
	return nil
}

func (w *UsageLogWorker) run(ctx context.Context) {
	defer close(w.stoppedChan)

	for {
		select {
		case <-w.stopChan:
			w.drain(ctx)
			w.logger.Info("Usage worker stopped")
			return
		case <-ctx.Done():
			w.logger.Info("Usage worker context cancelled")
			return
		default:
			w.processBatch(ctx, w.config.BatchTimeout)
		}
	}
}

// drain flushes items still buffered at shutdown
func (w *UsageLogWorker) drain(ctx context.Context) {
	for {
		n, err := w.queue.Length(ctx)
		if err != nil || n == 0 {
			return
		}
		if w.processBatch(ctx, 10*time.Millisecond) == 0 {
			return
		}
	}
}

// processBatch handles one dequeue and returns how many items it saw
func (w *UsageLogWorker) processBatch(ctx context.Context, timeout time.Duration) int {
	items, err := w.queue.DequeueWithTimeout(ctx, w.config.BatchSize, timeout)
	if err != nil {
		w.logger.Error("Failed to dequeue usage logs", "error", err)
		sleepCtx(ctx, time.Second)
		return 0
	}

	if len(items) == 0 {
		return 0
	}

	logs := make([]*models.UsageLog, 0, len(items))
	for _, item := range items {
		l, err := decodeUsageLog(item)
		if err != nil {
			w.logger.Error("Failed to decode usage log", "error", err)
			continue
		}
		logs = append(logs, l)
	}

	if len(logs) == 0 {
		return len(items)
	}

	if err := w.repo.CreateBatch(ctx, logs); err != nil {
		w.logger.Warn("Batch insert failed, falling back to single inserts", "count", len(logs), "error", err)
		for _, l := range logs {
			if err := w.processItem(ctx, l); err != nil {
				w.logger.Error("Failed to persist usage log", "id", l.ID, "error", err)
			}
		}
		return len(items)
	}

	w.logger.Debug("Inserted usage batch", "count", len(logs))
	return len(items)
}

func (w *UsageLogWorker) processItem(ctx context.Context, l *models.UsageLog) error {
	var lastErr error
	for attempt := 0; attempt <= w.config.MaxRetries; attempt++ {
		if attempt > 0 {
			backoff := w.config.RetryBackoff * time.Duration(1<<uint(attempt-1))
			if !sleepCtx(ctx, backoff) {
				lastErr = ctx.Err()
				break
			}
		}

		if err := w.repo.Create(ctx, l); err != nil {
			lastErr = err
			continue
		}
		return nil
	}

	if w.dlq != nil {
		if err := w.dlq.Add(ctx, l, lastErr); err != nil {
			w.logger.Error("Failed to add to dead letter queue", "error", err)
		} else {
			w.logger.Warn("Usage log moved to DLQ", "id", l.ID, "error", lastErr)
		}
	}

	return fmt.Errorf("%w: %w", queue.ErrMaxRetriesExceeded, lastErr)
}

func decodeUsageLog(item any) (*models.UsageLog, error) {
	switch v := item.(type) {
	case *models.UsageLog:
		return v, nil
	case models.UsageLog:
		return &v, nil
	case json.RawMessage:
		var l models.UsageLog
		return &l, json.Unmarshal(v, &l)
	case []byte:
		var l models.UsageLog
		return &l, json.Unmarshal(v, &l)
	default:
		data, err := json.Marshal(item)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal item: %w", err)
		}
		var l models.UsageLog
		return &l, json.Unmarshal(data, &l)
	}
}

// sleepCtx waits for d or until ctx is done, reporting whether the full wait elapsed
func sleepCtx(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return true
	case <-ctx.Done():
		return false
	}
}

func (w *UsageLogWorker) QueueLength(ctx context.Context) (int, error) {
	return w.queue.Length(ctx)
}

func (w *UsageLogWorker) DeadLetterItems(ctx context.Context, maxItems int) ([]queue.DeadLetterItem, error) {
	if w.dlq == nil {
		return nil, fmt.Errorf("dead letter queue not configured")
	}
	return w.dlq.List(ctx, maxItems)
}

// RetryDeadLetterItem re-enqueues a dead letter entry and removes it from the DLQ
func (w *UsageLogWorker) RetryDeadLetterItem(ctx context.Context, id string) error {
	if w.dlq == nil {
		return fmt.Errorf("dead letter queue not configured")
	}

	items, err := w.dlq.List(ctx, 0)
	if err != nil {
		return fmt.Errorf("failed to list dead letter items: %w", err)
	}

	for _, dlItem := range items {
		if dlItem.ID != id {
			continue
		}
		if err := w.queue.Enqueue(ctx, dlItem.Item); err != nil {
			return fmt.Errorf("failed to re-enqueue item: %w", err)
		}
		if err := w.dlq.Remove(ctx, id); err != nil {
			return fmt.Errorf("failed to remove from DLQ: %w", err)
		}
		return nil
	}

	return queue.ErrItemNotFound
}
