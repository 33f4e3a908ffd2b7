// Package sink stores generated documents.
package sink

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/matzehuels/cardpress/pkg/errors"
)

// Writer stores one generated document under a file name and returns where
// it went. Implementations are safe for concurrent use.
type Writer interface {
	Write(ctx context.Context, name string, data []byte) (string, error)
}

// FileWriter writes documents into a directory. Each file is written to a
// temporary name and renamed into place, so readers never see a partial PDF.
type FileWriter struct {
	Dir string
}

// NewFileWriter creates dir if needed.
func NewFileWriter(dir string) (*FileWriter, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidPath, err, "create output dir %s", dir)
	}
	return &FileWriter{Dir: dir}, nil
}

// Write implements Writer.
func (w *FileWriter) Write(ctx context.Context, name string, data []byte) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if err := errors.ValidateFilename(name); err != nil {
		return "", err
	}
	path := filepath.Join(w.Dir, name)

	tmp, err := os.CreateTemp(w.Dir, ".cardpress-*.tmp")
	if err != nil {
		return "", fmt.Errorf("create temp file: %w", err)
	}
	tmpPath := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return "", fmt.Errorf("write %s: %w", name, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return "", fmt.Errorf("close %s: %w", name, err)
	}
	if err := os.Chmod(tmpPath, 0o644); err != nil {
		os.Remove(tmpPath)
		return "", fmt.Errorf("chmod %s: %w", name, err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return "", fmt.Errorf("rename %s: %w", name, err)
	}
	return path, nil
}

// MemoryWriter keeps documents in memory. Used by tests and the render
// service.
type MemoryWriter struct {
	mu    sync.Mutex
	files map[string][]byte
}

// NewMemoryWriter creates an empty MemoryWriter.
func NewMemoryWriter() *MemoryWriter {
	return &MemoryWriter{files: make(map[string][]byte)}
}

// Write implements Writer. Writing an existing name replaces it.
func (w *MemoryWriter) Write(ctx context.Context, name string, data []byte) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	w.files[name] = append([]byte(nil), data...)
	return "mem://" + name, nil
}

// Get returns a stored document.
func (w *MemoryWriter) Get(name string) ([]byte, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	data, ok := w.files[name]
	return data, ok
}

// Names returns the stored names in sorted order.
func (w *MemoryWriter) Names() []string {
	w.mu.Lock()
	defer w.mu.Unlock()
	names := make([]string, 0, len(w.files))
	for n := range w.files {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

var (
	_ Writer = (*FileWriter)(nil)
	_ Writer = (*MemoryWriter)(nil)
)
