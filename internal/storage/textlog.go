package storage

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"tokenWatch/internal/model"
)

// ErrClosed is returned by Record and Flush after Close.
var ErrClosed = errors.New("text log closed")

const timeLayout = "2006-01-02 15:04:05"

// TextLogConfig configures a TextLog.
type TextLogConfig struct {
	Path      string
	Location  *time.Location
	QueueSize int
	// Failures counts lines that could not be appended. Optional.
	Failures prometheus.Counter
}

type writeRequest struct {
	line  string
	flush chan struct{}
}

// TextLog appends one plain-text line per token record. Writes go through a
// bounded queue drained by a single goroutine, so lines land in Record order
// and a slow disk never stalls the caller until the queue is full.
type TextLog struct {
	path     string
	loc      *time.Location
	failures prometheus.Counter
	logger   *zap.Logger

	mu     sync.RWMutex
	closed bool
	queue  chan writeRequest
	done   chan struct{}
}

func NewTextLog(cfg TextLogConfig, logger *zap.Logger) *TextLog {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 1
	}
	loc := cfg.Location
	if loc == nil {
		loc = time.Local
	}

	s := &TextLog{
		path:     cfg.Path,
		loc:      loc,
		failures: cfg.Failures,
		logger:   logger,
		queue:    make(chan writeRequest, cfg.QueueSize),
		done:     make(chan struct{}),
	}
	go s.run()
	return s
}

// FormatLine renders a record as a single newline-terminated line.
func FormatLine(rec model.TokenRecord, loc *time.Location) string {
	return fmt.Sprintf("created_at: %s, contract: %s, name: %s, symbol: %s\n",
		rec.CreatedAt.In(loc).Format(timeLayout),
		rec.Address,
		rec.Name,
		rec.Symbol,
	)
}

// Record queues the record for appending. It blocks only while the queue is
// full. Append failures are logged by the writer and never returned here.
func (s *TextLog) Record(ctx context.Context, rec model.TokenRecord) error {
	return s.enqueue(ctx, writeRequest{line: FormatLine(rec, s.loc)})
}

// Flush waits until every record queued before the call has been written.
func (s *TextLog) Flush(ctx context.Context) error {
	done := make(chan struct{})
	if err := s.enqueue(ctx, writeRequest{flush: done}); err != nil {
		return err
	}
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close drains the queue and stops the writer.
func (s *TextLog) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	close(s.queue)
	s.mu.Unlock()

	<-s.done
	return nil
}

func (s *TextLog) enqueue(ctx context.Context, req writeRequest) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return ErrClosed
	}
	select {
	case s.queue <- req:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *TextLog) run() {
	defer close(s.done)
	for req := range s.queue {
		if req.flush != nil {
			close(req.flush)
			continue
		}
		if err := s.appendLine(req.line); err != nil {
			s.logger.Error("append token record failed", zap.String("path", s.path), zap.Error(err))
			if s.failures != nil {
				s.failures.Inc()
			}
			continue
		}
		s.logger.Debug("token record saved", zap.String("path", s.path))
	}
}

func (s *TextLog) appendLine(line string) error {
	dir := filepath.Dir(s.path)
	if dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create output dir: %w", err)
		}
	}

	file, err := os.OpenFile(s.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("open output file: %w", err)
	}
	if _, err := file.WriteString(line); err != nil {
		file.Close()
		return fmt.Errorf("write token record: %w", err)
	}
	if err := file.Close(); err != nil {
		return fmt.Errorf("close output file: %w", err)
	}
	return nil
}
