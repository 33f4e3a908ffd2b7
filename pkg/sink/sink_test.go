package sink

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/matzehuels/cardpress/pkg/errors"
)

func TestFileWriter(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "out")
	w, err := NewFileWriter(dir)
	if err != nil {
		t.Fatal(err)
	}
	ctx := context.Background()

	path, err := w.Write(ctx, "Priya Shah.pdf", []byte("%PDF-1.4"))
	if err != nil {
		t.Fatalf("Write: %v", err)
	}
	if path != filepath.Join(dir, "Priya Shah.pdf") {
		t.Errorf("path = %q", path)
	}
	data, err := os.ReadFile(path)
	if err != nil || string(data) != "%PDF-1.4" {
		t.Errorf("read back %q, %v", data, err)
	}

	if _, err := w.Write(ctx, "Priya Shah.pdf", []byte("v2")); err != nil {
		t.Fatalf("overwrite: %v", err)
	}
	if data, _ := os.ReadFile(path); string(data) != "v2" {
		t.Errorf("overwrite kept %q", data)
	}

	entries, _ := os.ReadDir(dir)
	if len(entries) != 1 {
		t.Errorf("temp files left behind: %v", entries)
	}
}

func TestFileWriterRejectsBadNames(t *testing.T) {
	w, err := NewFileWriter(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	for _, name := range []string{"", "../escape.pdf", "a/b.pdf", ".hidden.pdf"} {
		if _, err := w.Write(context.Background(), name, nil); !errors.Is(err, errors.ErrCodeInvalidPath) {
			t.Errorf("Write(%q) = %v, want INVALID_PATH", name, err)
		}
	}
}

func TestWritersHonorCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	fw, _ := NewFileWriter(t.TempDir())
	for _, w := range []Writer{fw, NewMemoryWriter()} {
		if _, err := w.Write(ctx, "a.pdf", nil); err == nil {
			t.Errorf("%T: expected context error", w)
		}
	}
}

func TestMemoryWriterConcurrent(t *testing.T) {
	w := NewMemoryWriter()
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, _ = w.Write(context.Background(), string(rune('a'+i))+".pdf", []byte{byte(i)})
		}(i)
	}
	wg.Wait()

	names := w.Names()
	if len(names) != 20 || names[0] != "a.pdf" {
		t.Errorf("Names = %v", names)
	}
	if data, ok := w.Get("c.pdf"); !ok || data[0] != 2 {
		t.Errorf("Get(c.pdf) = %v, %v", data, ok)
	}
}
