package cli

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"github.com/BurntSushi/toml"

	"github.com/matzehuels/cardpress/pkg/cache"
	cperrors "github.com/matzehuels/cardpress/pkg/errors"
	"github.com/matzehuels/cardpress/pkg/pipeline"
	"github.com/matzehuels/cardpress/pkg/report"
)

// Settings are deployment settings read from cardpress.toml. Command flags
// override them.
type Settings struct {
	DPI            int      `toml:"dpi"`
	PreviewDPI     int      `toml:"preview_dpi"`
	Workers        int      `toml:"workers"`
	RendererPolicy string   `toml:"renderer_policy"`
	Builders       []string `toml:"builders"`

	Fonts struct {
		Dirs      []string          `toml:"dirs"`
		Files     map[string]string `toml:"files"`
		Fallbacks []string          `toml:"fallbacks"`
	} `toml:"fonts"`

	Cache struct {
		Backend   string             `toml:"backend"` // file, redis or none
		Dir       string             `toml:"dir"`
		Prefix    string             `toml:"prefix"`
		Documents bool               `toml:"documents"` // also cache finished guest PDFs
		Redis     cache.RedisOptions `toml:"redis"`
	} `toml:"cache"`

	Report struct {
		Dir   string              `toml:"dir"`
		Mongo report.MongoOptions `toml:"mongo"`
	} `toml:"report"`

	Serve struct {
		Addr string `toml:"addr"`
	} `toml:"serve"`
}

// DefaultSettings returns the settings used when no file is present.
func DefaultSettings() Settings {
	var s Settings
	s.DPI = pipeline.DefaultDPI
	s.PreviewDPI = pipeline.PreviewDPI
	s.RendererPolicy = string(pipeline.PolicyDegrade)
	s.Cache.Backend = "file"
	s.Serve.Addr = ":8080"
	return s
}

// LoadSettings reads path over DefaultSettings. A missing file is an error
// only when required.
func LoadSettings(path string, required bool) (Settings, error) {
	s := DefaultSettings()
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) && !required {
		return s, nil
	}
	if err != nil {
		return s, cperrors.Wrap(cperrors.ErrCodeInvalidConfig, err, "read settings %s", path)
	}
	if _, err := toml.Decode(string(data), &s); err != nil {
		return s, cperrors.Wrap(cperrors.ErrCodeInvalidConfig, err, "parse settings %s", path)
	}
	return s, s.validate()
}

func (s Settings) validate() error {
	var v cperrors.ValidationError
	switch s.Cache.Backend {
	case "file", "redis", "none":
	default:
		v.Add("cache.backend must be file, redis or none, got %q", s.Cache.Backend)
	}
	if s.Cache.Backend == "redis" && s.Cache.Redis.Addr == "" {
		v.Add("cache.redis.addr is required for the redis backend")
	}
	switch pipeline.RendererPolicy(s.RendererPolicy) {
	case pipeline.PolicyDegrade, pipeline.PolicyFail:
	default:
		v.Add("renderer_policy must be %q or %q, got %q", pipeline.PolicyDegrade, pipeline.PolicyFail, s.RendererPolicy)
	}
	if s.DPI < 1 || s.DPI > pipeline.MaxDPI {
		v.Add("dpi must be between 1 and %d, got %d", pipeline.MaxDPI, s.DPI)
	}
	if s.PreviewDPI < 1 || s.PreviewDPI > pipeline.MaxDPI {
		v.Add("preview_dpi must be between 1 and %d, got %d", pipeline.MaxDPI, s.PreviewDPI)
	}
	if s.Workers < 0 {
		v.Add("workers must be >= 0, got %d", s.Workers)
	}
	return v.Err()
}

// String renders the effective settings as TOML.
func (s Settings) String() string {
	var b strings.Builder
	if err := toml.NewEncoder(&b).Encode(s); err != nil {
		return fmt.Sprintf("<settings: %v>", err)
	}
	return b.String()
}
