package config

import (
	"image/color"
	"strings"

	"github.com/lucasb-eyer/go-colorful"

	"github.com/matzehuels/cardpress/pkg/errors"
)

// ParseHex parses "#RGB" or "#RRGGBB" into an opaque color.
func ParseHex(s string) (color.NRGBA, error) {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "#") || (len(s) != 4 && len(s) != 7) {
		return color.NRGBA{}, errors.New(errors.ErrCodeInvalidConfig, "color %q must be #RGB or #RRGGBB", s)
	}
	c, err := colorful.Hex(strings.ToLower(s))
	if err != nil {
		return color.NRGBA{}, errors.Wrap(errors.ErrCodeInvalidConfig, err, "color %q", s)
	}
	r, g, b := c.RGB255()
	return color.NRGBA{R: r, G: g, B: b, A: 0xff}, nil
}

// FillColor returns the explicit mask color. ok is false when none is set.
func (m MaskConfig) FillColor() (c color.NRGBA, ok bool) {
	if m.ColorHex == "" {
		return color.NRGBA{}, false
	}
	c, err := ParseHex(m.ColorHex)
	if err != nil {
		return color.NRGBA{}, false
	}
	return c, true
}

// Color returns the text color, falling back to black on a malformed value.
// Validate rejects malformed values, so the fallback only matters for
// hand-built configs.
func (t TextStyle) Color() color.NRGBA {
	c, err := ParseHex(t.ColorHex)
	if err != nil {
		return color.NRGBA{A: 0xff}
	}
	return c
}
