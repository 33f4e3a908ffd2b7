package config

import (
	"bytes"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"

	"github.com/matzehuels/cardpress/pkg/errors"
)

// Format identifies a config serialization.
type Format string

const (
	FormatJSON Format = "json"
	FormatTOML Format = "toml"
)

// FormatFromPath picks the format from a file extension. Anything other than
// .toml is read as JSON.
func FormatFromPath(path string) Format {
	if strings.EqualFold(filepath.Ext(path), ".toml") {
		return FormatTOML
	}
	return FormatJSON
}

// Load reads, defaults and validates a config file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidConfig, err, "read config %s", path)
	}
	cfg, err := Parse(data, FormatFromPath(path))
	if err != nil {
		return nil, err
	}
	if cfg.BasePDFPath != "" && !filepath.IsAbs(cfg.BasePDFPath) {
		if _, err := os.Stat(cfg.BasePDFPath); err != nil {
			// relative to the config file when not found from the working directory
			cfg.BasePDFPath = filepath.Join(filepath.Dir(path), cfg.BasePDFPath)
		}
	}
	return cfg, nil
}

// Read decodes a config from r.
func Read(r io.Reader, format Format) (*Config, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidConfig, err, "read config")
	}
	return Parse(data, format)
}

// Parse decodes, defaults and validates a config document.
func Parse(data []byte, format Format) (*Config, error) {
	if format == FormatTOML {
		// TOML documents are normalized to JSON so both formats share the
		// defaulting and legacy-shape logic in Zone.UnmarshalJSON.
		var doc map[string]any
		if err := toml.Unmarshal(data, &doc); err != nil {
			return nil, errors.Wrap(errors.ErrCodeInvalidConfig, err, "parse toml config")
		}
		var err error
		if data, err = json.Marshal(doc); err != nil {
			return nil, errors.Wrap(errors.ErrCodeInvalidConfig, err, "normalize toml config")
		}
	}

	var cfg Config
	dec := json.NewDecoder(bytes.NewReader(data))
	if err := dec.Decode(&cfg); err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidConfig, err, "parse config")
	}
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// legacyStyle and legacyBehavior are the zone keys used before mask and text
// were split into their own objects.
type legacyStyle struct {
	FontFamily *string  `json:"font_family"`
	FontSize   *float64 `json:"font_size"`
	ColorHex   *string  `json:"color_hex"`
	Align      *Align   `json:"align"`
}

type legacyBehavior struct {
	MaskBackground *bool `json:"mask_background"`
}

// UnmarshalJSON decodes a zone on top of DefaultZone and upgrades the legacy
// style/behavior shape when neither mask nor text is present.
func (z *Zone) UnmarshalJSON(data []byte) error {
	type plain Zone
	p := plain(DefaultZone())
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}

	var keys map[string]json.RawMessage
	if err := json.Unmarshal(data, &keys); err != nil {
		return err
	}
	_, hasMask := keys["mask"]
	_, hasText := keys["text"]
	if !hasMask && !hasText {
		if raw, ok := keys["style"]; ok {
			var s legacyStyle
			if err := json.Unmarshal(raw, &s); err != nil {
				return err
			}
			if s.FontFamily != nil {
				p.Text.FontFamily = *s.FontFamily
			}
			if s.FontSize != nil {
				p.Text.FontSize = *s.FontSize
			}
			if s.ColorHex != nil {
				p.Text.ColorHex = *s.ColorHex
			}
			if s.Align != nil {
				p.Text.Align = *s.Align
			}
		}
		if raw, ok := keys["behavior"]; ok {
			var b legacyBehavior
			if err := json.Unmarshal(raw, &b); err != nil {
				return err
			}
			if b.MaskBackground != nil {
				p.Mask.Enabled = *b.MaskBackground
			}
		}
	}

	*z = Zone(p)
	return nil
}
