package logging

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"smartai_gateway/internal/utils"
)

// ErrBufferFull is returned by FileSink.Enqueue when the record was dropped.
var ErrBufferFull = errors.New("log buffer full")

// ErrSinkClosed is returned after Shutdown.
var ErrSinkClosed = errors.New("log sink closed")

// FileSinkConfig controls local JSON Lines output.
type FileSinkConfig struct {
	FileTemplate  string        // e.g. "/var/log/smartai/audit-%s.jsonl"; %s receives a timestamp
	MaxSize       int64         // Rotate when the active file would exceed this many bytes
	MaxFiles      int           // Rotated files to keep
	BufferSize    int           // Records queued before Enqueue starts dropping
	FlushInterval time.Duration // Flush the write buffer this often
}

// FileSink writes records to size-rotated local files. It is used when no
// S3 bucket is configured.
type FileSink struct {
	cfg    FileSinkConfig
	logger *utils.Logger

	mu          sync.Mutex
	currentFile string
	file        *os.File
	writer      *bufio.Writer
	currentSize int64

	recCh  chan *LogRecord
	doneCh chan struct{}
	wg     sync.WaitGroup
	closed bool
}

// NewFileSink opens the first file and starts the writer goroutine.
func NewFileSink(cfg FileSinkConfig) (*FileSink, error) {
	if cfg.FileTemplate == "" {
		return nil, fmt.Errorf("file template is required")
	}
	if cfg.MaxSize <= 0 {
		cfg.MaxSize = 100 << 20
	}
	if cfg.MaxFiles <= 0 {
		cfg.MaxFiles = 10
	}
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = 1000
	}
	if cfg.FlushInterval <= 0 {
		cfg.FlushInterval = time.Second
	}

	s := &FileSink{
		cfg:    cfg,
		logger: utils.NewLogger("file-sink"),
		recCh:  make(chan *LogRecord, cfg.BufferSize),
		doneCh: make(chan struct{}),
	}
	if err := s.openFile(); err != nil {
		return nil, err
	}

	s.wg.Add(1)
	go s.run()
	return s, nil
}

// Enqueue never blocks; records are dropped when the buffer is full.
func (s *FileSink) Enqueue(rec *LogRecord) error {
	s.mu.Lock()
	closed := s.closed
	s.mu.Unlock()
	if closed {
		return ErrSinkClosed
	}

	select {
	case s.recCh <- rec:
		return nil
	default:
		return ErrBufferFull
	}
}

// Shutdown drains queued records, flushes and closes the active file.
func (s *FileSink) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.mu.Unlock()

	close(s.doneCh)

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("file sink shutdown: %w", ctx.Err())
	}
}

// CurrentFile returns the path of the file being written.
func (s *FileSink) CurrentFile() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.currentFile
}

func (s *FileSink) newFileName() string {
	return fmt.Sprintf(s.cfg.FileTemplate, time.Now().Format("20060102150405.000000000"))
}

func (s *FileSink) openFile() error {
	s.currentFile = s.newFileName()
	dir := filepath.Dir(s.currentFile)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create directory %s: %w", dir, err)
	}

	file, err := os.OpenFile(s.currentFile, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("failed to open log file: %w", err)
	}
	fi, err := file.Stat()
	if err != nil {
		file.Close()
		return err
	}
	s.currentSize = fi.Size()
	s.file = file
	s.writer = bufio.NewWriter(file)
	return nil
}

// rotateIfNeeded must be called with s.mu held.
func (s *FileSink) rotateIfNeeded(n int) error {
	if s.currentSize == 0 || s.currentSize+int64(n) < s.cfg.MaxSize {
		return nil
	}
	if err := s.writer.Flush(); err != nil {
		return err
	}
	if err := s.file.Close(); err != nil {
		return err
	}
	if err := s.openFile(); err != nil {
		return err
	}
	return s.cleanupOldFiles()
}

// cleanupOldFiles removes the oldest files beyond MaxFiles, counting the active one.
func (s *FileSink) cleanupOldFiles() error {
	matches, err := filepath.Glob(fmt.Sprintf(s.cfg.FileTemplate, "*"))
	if err != nil {
		return err
	}
	sort.Strings(matches)

	excess := len(matches) - s.cfg.MaxFiles
	for i := 0; i < excess; i++ {
		if matches[i] == s.currentFile {
			continue
		}
		_ = os.Remove(matches[i])
	}
	return nil
}

func (s *FileSink) run() {
	defer s.wg.Done()
	ticker := time.NewTicker(s.cfg.FlushInterval)
	defer ticker.Stop()

	for {
		select {
		case rec := <-s.recCh:
			s.write(rec)
		case <-ticker.C:
			s.mu.Lock()
			_ = s.writer.Flush()
			s.mu.Unlock()
		case <-s.doneCh:
			for {
				select {
				case rec := <-s.recCh:
					s.write(rec)
				default:
					s.mu.Lock()
					_ = s.writer.Flush()
					_ = s.file.Close()
					s.mu.Unlock()
					return
				}
			}
		}
	}
}

func (s *FileSink) write(rec *LogRecord) {
	data, err := json.Marshal(rec)
	if err != nil {
		s.logger.Error("Failed to encode record", "request_id", rec.RequestID, "error", err)
		return
	}
	data = append(data, '\n')

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.rotateIfNeeded(len(data)); err != nil {
		s.logger.Error("Failed to rotate log file", "file", s.currentFile, "error", err)
	}
	n, _ := s.writer.Write(data)
	s.currentSize += int64(n)
}
