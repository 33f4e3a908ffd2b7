package cli

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/matzehuels/cardpress/pkg/errors"
	"github.com/matzehuels/cardpress/pkg/pipeline"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadSettingsMissing(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cardpress.toml")

	s, err := LoadSettings(path, false)
	if err != nil {
		t.Fatalf("optional missing file: %v", err)
	}
	if s.DPI != pipeline.DefaultDPI || s.Cache.Backend != "file" {
		t.Errorf("defaults = %+v", s)
	}
	if _, err := LoadSettings(path, true); !errors.Is(err, errors.ErrCodeInvalidConfig) {
		t.Errorf("required missing file: %v", err)
	}
}

func TestLoadSettings(t *testing.T) {
	path := writeFile(t, "cardpress.toml", `
dpi = 200
workers = 4
renderer_policy = "fail"
builders = ["fpdf", "stream"]

[fonts]
dirs = ["/srv/fonts"]
fallbacks = ["Noto Sans", "Go"]

[fonts.files]
"Noto Sans Gujarati" = "/srv/fonts/NotoSansGujarati-Regular.ttf"

[cache]
backend = "redis"
prefix = "cardpress:staging:"
documents = true

[cache.redis]
addr = "localhost:6379"

[report.mongo]
uri = "mongodb://localhost:27017"
`)

	s, err := LoadSettings(path, true)
	if err != nil {
		t.Fatal(err)
	}
	if s.DPI != 200 || s.Workers != 4 || s.RendererPolicy != "fail" {
		t.Errorf("top level = %+v", s)
	}
	if s.PreviewDPI != pipeline.PreviewDPI {
		t.Errorf("preview dpi default lost: %d", s.PreviewDPI)
	}
	if len(s.Builders) != 2 || s.Builders[0] != "fpdf" {
		t.Errorf("builders = %v", s.Builders)
	}
	if s.Fonts.Files["Noto Sans Gujarati"] == "" || len(s.Fonts.Fallbacks) != 2 {
		t.Errorf("fonts = %+v", s.Fonts)
	}
	if s.Cache.Backend != "redis" || s.Cache.Redis.Addr != "localhost:6379" || s.Cache.Prefix != "cardpress:staging:" || !s.Cache.Documents {
		t.Errorf("cache = %+v", s.Cache)
	}
	if s.Report.Mongo.URI == "" {
		t.Error("mongo uri not read")
	}
	if !strings.Contains(s.String(), "renderer_policy = \"fail\"") {
		t.Errorf("String() = %s", s.String())
	}
}

func TestLoadSettingsInvalid(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    string
	}{
		{"bad backend", `[cache]` + "\n" + `backend = "memcached"`, "cache.backend"},
		{"redis without addr", `[cache]` + "\n" + `backend = "redis"`, "cache.redis.addr"},
		{"bad policy", `renderer_policy = "ignore"`, "renderer_policy"},
		{"dpi too high", `dpi = 5000`, "dpi must be"},
		{"syntax", `dpi = `, "parse settings"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadSettings(writeFile(t, "cardpress.toml", tt.content), true)
			if !errors.Is(err, errors.ErrCodeInvalidConfig) {
				t.Fatalf("err = %v, want INVALID_CONFIG", err)
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("err = %v, want mention of %q", err, tt.want)
			}
		})
	}
}
