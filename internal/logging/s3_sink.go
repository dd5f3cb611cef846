package logging

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"smartai_gateway/internal/queue"
	"smartai_gateway/internal/utils"
)

const (
	enqueueTimeout = 50 * time.Millisecond
	maxPollWait    = time.Second
)

// S3SinkConfig holds configuration for the S3-based sink
type S3SinkConfig struct {
	FlushSize     int           // Flush to S3 after this many records
	FlushInterval time.Duration // Flush to S3 after this duration
	S3Bucket      string
	S3Region      string
	S3Prefix      string
	PodName       string
}

// S3Sink buffers records in a queue and uploads them in batches. A Redis
// queue lets records survive a restart; a memory queue does not.
type S3Sink struct {
	queue         queue.Queue
	writer        BatchWriter
	flushSize     int
	flushInterval time.Duration
	logger        *utils.Logger

	dropped atomic.Int64
	written atomic.Int64

	stopOnce    sync.Once
	stopChan    chan struct{}
	stoppedChan chan struct{}
}

// NewS3Sink creates a sink that drains q into the configured bucket.
func NewS3Sink(ctx context.Context, cfg S3SinkConfig, q queue.Queue) (*S3Sink, error) {
	writer, err := NewS3Writer(ctx, cfg.S3Bucket, cfg.S3Region, cfg.S3Prefix, cfg.PodName)
	if err != nil {
		return nil, err
	}
	return newS3Sink(q, writer, cfg), nil
}

func newS3Sink(q queue.Queue, writer BatchWriter, cfg S3SinkConfig) *S3Sink {
	if cfg.FlushSize <= 0 {
		cfg.FlushSize = 1000
	}
	if cfg.FlushInterval <= 0 {
		cfg.FlushInterval = 5 * time.Minute
	}
	s := &S3Sink{
		queue:         q,
		writer:        writer,
		flushSize:     cfg.FlushSize,
		flushInterval: cfg.FlushInterval,
		logger:        utils.NewLogger("s3-sink"),
		stopChan:      make(chan struct{}),
		stoppedChan:   make(chan struct{}),
	}
	go s.run()
	return s
}

// Enqueue adds a record to the buffer. Records are dropped, with an error,
// when the buffer stays full.
func (s *S3Sink) Enqueue(rec *LogRecord) error {
	ctx, cancel := context.WithTimeout(context.Background(), enqueueTimeout)
	defer cancel()

	if err := s.queue.Enqueue(ctx, rec); err != nil {
		s.dropped.Add(1)
		return fmt.Errorf("failed to buffer log record: %w", err)
	}
	return nil
}

// Shutdown stops the background worker after a final flush
func (s *S3Sink) Shutdown(ctx context.Context) error {
	s.stopOnce.Do(func() { close(s.stopChan) })

	select {
	case <-s.stoppedChan:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("log sink shutdown: %w", ctx.Err())
	}
}

// Stats reports how many records were uploaded and how many were lost.
func (s *S3Sink) Stats() (written, dropped int64) {
	return s.written.Load(), s.dropped.Load()
}

func (s *S3Sink) run() {
	defer close(s.stoppedChan)

	ctx := context.Background()
	poll := min(s.flushInterval, maxPollWait)
	pending := make([]*LogRecord, 0, s.flushSize)
	lastFlush := time.Now()

	for {
		select {
		case <-s.stopChan:
			pending = append(pending, s.drainRemaining(ctx)...)
			for len(pending) > 0 {
				n := min(len(pending), s.flushSize)
				s.flush(ctx, pending[:n])
				pending = pending[n:]
			}
			return
		default:
		}

		items, err := s.queue.DequeueWithTimeout(ctx, s.flushSize-len(pending), poll)
		if err != nil {
			if errors.Is(err, queue.ErrQueueClosed) {
				s.flush(ctx, pending)
				return
			}
			s.logger.Error("Failed to dequeue log records", "error", err)
			time.Sleep(poll)
			continue
		}
		pending = append(pending, s.decode(items)...)

		if len(pending) >= s.flushSize || (len(pending) > 0 && time.Since(lastFlush) >= s.flushInterval) {
			s.flush(ctx, pending)
			pending = pending[:0]
			lastFlush = time.Now()
		}
	}
}

func (s *S3Sink) drainRemaining(ctx context.Context) []*LogRecord {
	var out []*LogRecord
	for {
		items, err := s.queue.DequeueWithTimeout(ctx, s.flushSize, 10*time.Millisecond)
		if err != nil || len(items) == 0 {
			return out
		}
		out = append(out, s.decode(items)...)
	}
}

func (s *S3Sink) flush(ctx context.Context, records []*LogRecord) {
	if len(records) == 0 {
		return
	}
	if _, err := s.writer.WriteBatch(ctx, records); err != nil {
		s.dropped.Add(int64(len(records)))
		s.logger.Error("Failed to write log batch", "count", len(records), "error", err)
		return
	}
	s.written.Add(int64(len(records)))
}

func (s *S3Sink) decode(items []any) []*LogRecord {
	out := make([]*LogRecord, 0, len(items))
	for _, item := range items {
		rec, err := decodeRecord(item)
		if err != nil {
			s.dropped.Add(1)
			s.logger.Warn("Skipping undecodable log record", "error", err)
			continue
		}
		out = append(out, rec)
	}
	return out
}

func decodeRecord(item any) (*LogRecord, error) {
	switch v := item.(type) {
	case *LogRecord:
		return v, nil
	case json.RawMessage:
		var rec LogRecord
		return &rec, json.Unmarshal(v, &rec)
	case []byte:
		var rec LogRecord
		return &rec, json.Unmarshal(v, &rec)
	default:
		return nil, fmt.Errorf("unexpected log item type %T", item)
	}
}
