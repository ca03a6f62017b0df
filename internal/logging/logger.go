// Package logging opens the append-only log file. The terminal belongs to
// the editor, so diagnostics go to disk.
package logging

import (
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
)

// File is a *log.Logger backed by an open file.
type File struct {
	*log.Logger
	file *os.File
}

// Open creates (or reuses) the log file at path.
func Open(path string) (*File, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("logging: ensure log dir: %w", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("logging: open log file: %w", err)
	}
	return &File{Logger: log.New(f, "", log.LstdFlags), file: f}, nil
}

// Discard returns a logger that drops everything.
func Discard() *File {
	return &File{Logger: log.New(io.Discard, "", 0)}
}

// Close releases the file handle.
func (l *File) Close() error {
	if l == nil || l.file == nil {
		return nil
	}
	return l.file.Close()
}
