// Package audit provides file-based audit persistence in JSON Lines format
// with size-based rotation and retention cleanup.
package audit

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync"

	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/opsgate/opsgate/internal/domain/audit"
)

// Config controls the audit file destination and rotation.
type Config struct {
	// Path is the audit log file. Empty writes to stdout without rotation.
	Path string
	// MaxSizeMB is the file size that triggers rotation.
	MaxSizeMB int
	// MaxBackups is how many rotated files to retain.
	MaxBackups int
	// MaxAgeDays is how many days to retain rotated files.
	MaxAgeDays int
	// Compress gzips rotated files.
	Compress bool
}

// DefaultConfig returns the stock rotation policy: 100 MB files, 10 backups,
// 30 day retention, compressed.
func DefaultConfig(path string) Config {
	return Config{
		Path:       path,
		MaxSizeMB:  100,
		MaxBackups: 10,
		MaxAgeDays: 30,
		Compress:   true,
	}
}

// FileStore implements audit.Store by appending JSON Lines to a rotating
// file. Writes go through a buffered writer; Flush drains it.
type FileStore struct {
	mu     sync.Mutex
	buf    *bufio.Writer
	sink   io.Closer
	logger *slog.Logger
	closed bool
}

// NewFileStore creates a file-backed audit store. With an empty path the
// store writes to stdout and rotation is disabled.
func NewFileStore(cfg Config, logger *slog.Logger) *FileStore {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Path == "" {
		return &FileStore{
			buf:    bufio.NewWriter(os.Stdout),
			logger: logger,
		}
	}
	sink := &lumberjack.Logger{
		Filename:   cfg.Path,
		MaxSize:    cfg.MaxSizeMB,
		MaxBackups: cfg.MaxBackups,
		MaxAge:     cfg.MaxAgeDays,
		Compress:   cfg.Compress,
	}
	return &FileStore{
		buf:    bufio.NewWriter(sink),
		sink:   sink,
		logger: logger,
	}
}

// Append serializes records as JSON Lines. The buffered writer keeps the
// caller off the disk in the common case.
func (s *FileStore) Append(ctx context.Context, records ...audit.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return fmt.Errorf("audit store closed")
	}
	enc := json.NewEncoder(s.buf)
	for _, r := range records {
		if err := enc.Encode(r); err != nil {
			return fmt.Errorf("encode audit record: %w", err)
		}
	}
	return nil
}

// Flush drains buffered records to the file.
func (s *FileStore) Flush(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	return s.buf.Flush()
}

// Close flushes and releases the file. Idempotent.
func (s *FileStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true

	if err := s.buf.Flush(); err != nil {
		s.logger.Warn("audit flush on close failed", "error", err)
	}
	if s.sink != nil {
		return s.sink.Close()
	}
	return nil
}

// Compile-time interface verification.
var _ audit.Store = (*FileStore)(nil)
