package cli

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/matzehuels/cardpress/pkg/cache"
)

func TestCacheDirDefault(t *testing.T) {
	t.Setenv("XDG_CACHE_HOME", "")

	dir, err := cacheDir()
	if err != nil {
		t.Fatalf("cacheDir() error: %v", err)
	}
	home, _ := os.UserHomeDir()
	if want := filepath.Join(home, ".cache", appName); dir != want {
		t.Errorf("cacheDir() = %q, want %q", dir, want)
	}
}

func TestCacheDirXDG(t *testing.T) {
	t.Setenv("XDG_CACHE_HOME", "/tmp/xdg")

	dir, err := cacheDir()
	if err != nil {
		t.Fatal(err)
	}
	if want := filepath.Join("/tmp/xdg", appName); dir != want {
		t.Errorf("cacheDir() = %q, want %q", dir, want)
	}
}

func TestCacheClearCommand(t *testing.T) {
	dir := t.TempDir()
	fc, err := cache.NewFileCache(dir)
	if err != nil {
		t.Fatal(err)
	}
	ctx := context.Background()
	for _, k := range []string{"a", "b", "c"} {
		if err := fc.Set(ctx, k, []byte(k), 0); err != nil {
			t.Fatal(err)
		}
	}

	var buf bytes.Buffer
	prev := out
	out = &buf
	defer func() { out = prev }()

	c := New(&bytes.Buffer{}, LogInfo)
	c.Settings.Cache.Dir = dir
	if err := c.cacheClearCommand().RunE(nil, nil); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(buf.String(), "Cleared 3 cached entries") {
		t.Errorf("output = %q", buf.String())
	}
	if _, hit, _ := fc.Get(ctx, "a"); hit {
		t.Error("entry survived clear")
	}

	buf.Reset()
	if err := c.cachePathCommand().RunE(nil, nil); err != nil {
		t.Fatal(err)
	}
	if strings.TrimSpace(buf.String()) != dir {
		t.Errorf("cache path = %q, want %q", buf.String(), dir)
	}
}
