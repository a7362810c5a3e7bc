package audit

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
)

// FileSink appends formatted records to a text file. Each record is written
// with a single Write call under a mutex so concurrent exchanges never
// interleave.
type FileSink struct {
	mu   sync.Mutex
	file *os.File
}

// OpenFileSink opens (or creates) path for appending.
func OpenFileSink(path string) (*FileSink, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create audit directory %q: %w", dir, err)
		}
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o600)
	if err != nil {
		return nil, fmt.Errorf("open audit file %q: %w", path, err)
	}
	return &FileSink{file: f}, nil
}

// Write implements Sink.
func (s *FileSink) Write(_ context.Context, rec Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.file == nil {
		return os.ErrClosed
	}
	_, err := s.file.WriteString(Format(rec))
	return err
}

// Close closes the underlying file.
func (s *FileSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.file == nil {
		return nil
	}
	err := s.file.Close()
	s.file = nil
	return err
}

// LogSink writes records to the process log stream.
type LogSink struct {
	logger *slog.Logger
}

// NewLogSink creates a sink that emits one Info entry per record.
func NewLogSink(logger *slog.Logger) *LogSink {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogSink{logger: logger.With("component", "audit")}
}

// Write implements Sink.
func (s *LogSink) Write(ctx context.Context, rec Record) error {
	s.logger.InfoContext(ctx, Format(rec),
		"record_id", rec.ID,
		"channel", rec.Channel,
		"chat_id", rec.ConversationID,
		"from", rec.SenderID,
	)
	return nil
}
