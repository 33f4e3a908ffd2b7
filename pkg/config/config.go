// Package config defines the template configuration: the base document, the
// zones to personalize on it and the naming rules for generated outputs.
//
// A Config is loaded once per job (see Load), validated once, and then
// treated as read-only by every worker.
//
// Geometry is expressed in PDF points (1/72 inch) with the origin at the
// top-left corner of the page and y growing downwards.
package config

import (
	"math"
)

// Default values applied to fields omitted from a config document.
const (
	DefaultTemplateID       = "default"
	DefaultFilenameTemplate = "{name}.pdf"
	DefaultFontFamily       = "Noto Sans Gujarati"
	DefaultFontSize         = 12.0
	DefaultTextColor        = "#000000"
	DefaultPadding          = 2.0
)

// MaskMode selects how a zone's original content is erased.
type MaskMode string

const (
	MaskSolid      MaskMode = "solid"
	MaskAutoSample MaskMode = "auto_sample"
	MaskNone       MaskMode = "none"
)

// Valid reports whether m is one of the known mask modes.
func (m MaskMode) Valid() bool {
	switch m {
	case MaskSolid, MaskAutoSample, MaskNone:
		return true
	}
	return false
}

// Align is the horizontal placement of text inside a zone.
type Align string

const (
	AlignLeft   Align = "left"
	AlignCenter Align = "center"
	AlignRight  Align = "right"
)

// Valid reports whether a is a known alignment.
func (a Align) Valid() bool {
	switch a {
	case AlignLeft, AlignCenter, AlignRight:
		return true
	}
	return false
}

// VAlign is the vertical placement of text inside a zone. Middle centers the
// ink box on the zone's midpoint.
type VAlign string

const (
	VAlignTop    VAlign = "top"
	VAlignMiddle VAlign = "middle"
	VAlignBottom VAlign = "bottom"
)

// Valid reports whether v is a known vertical alignment.
func (v VAlign) Valid() bool {
	switch v {
	case VAlignTop, VAlignMiddle, VAlignBottom:
		return true
	}
	return false
}

// Rect is an axis-aligned rectangle in points.
type Rect struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Overlaps reports whether r and o share a region of positive area.
func (r Rect) Overlaps(o Rect) bool {
	return r.X < o.X+o.Width && o.X < r.X+r.Width &&
		r.Y < o.Y+o.Height && o.Y < r.Y+r.Height
}

func (r Rect) finite() bool {
	for _, v := range []float64{r.X, r.Y, r.Width, r.Height} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}

// MaskConfig controls erasure of the zone's original content.
type MaskConfig struct {
	Enabled  bool     `json:"enabled"`
	Mode     MaskMode `json:"mode"`
	ColorHex string   `json:"color_hex,omitempty"`
	Padding  float64  `json:"padding"`
}

// Active reports whether the mask paints anything.
func (m MaskConfig) Active() bool {
	return m.Enabled && m.Mode != MaskNone
}

// TextStyle controls how guest text is drawn into a zone.
type TextStyle struct {
	FontFamily string  `json:"font_family"`
	FontSize   float64 `json:"font_size"`
	ColorHex   string  `json:"color_hex"`
	Align      Align   `json:"align"`
	VAlign     VAlign  `json:"valign"`
}

// Zone is a rectangular region on one template page that receives guest text.
type Zone struct {
	ZoneID     string     `json:"zone_id"`
	PageNumber int        `json:"page_number"`
	Rect       Rect       `json:"rect"`
	Mask       MaskConfig `json:"mask"`
	Text       TextStyle  `json:"text"`
}

// PageIndex returns the 0-based page index of the zone.
func (z Zone) PageIndex() int {
	return z.PageNumber - 1
}

// DefaultZone returns a zone with every optional field at its default.
func DefaultZone() Zone {
	return Zone{
		PageNumber: 1,
		Mask: MaskConfig{
			Enabled: true,
			Mode:    MaskAutoSample,
			Padding: DefaultPadding,
		},
		Text: TextStyle{
			FontFamily: DefaultFontFamily,
			FontSize:   DefaultFontSize,
			ColorHex:   DefaultTextColor,
			Align:      AlignCenter,
			VAlign:     VAlignMiddle,
		},
	}
}

// Config is a complete template configuration.
type Config struct {
	TemplateID             string `json:"template_id"`
	BasePDFPath            string `json:"base_pdf_path"`
	Zones                  []Zone `json:"zones"`
	OutputNameColumn       string `json:"output_name_column,omitempty"`
	OutputFilenameTemplate string `json:"output_filename_template"`
}

// SetDefaults fills omitted top-level fields.
func (c *Config) SetDefaults() {
	if c.TemplateID == "" {
		c.TemplateID = DefaultTemplateID
	}
	if c.OutputFilenameTemplate == "" {
		c.OutputFilenameTemplate = DefaultFilenameTemplate
	}
}

// Zone returns the zone with the given id.
func (c *Config) Zone(id string) (Zone, bool) {
	for _, z := range c.Zones {
		if z.ZoneID == id {
			return z, true
		}
	}
	return Zone{}, false
}

// MaxPage returns the highest page number referenced by any zone.
func (c *Config) MaxPage() int {
	max := 0
	for _, z := range c.Zones {
		if z.PageNumber > max {
			max = z.PageNumber
		}
	}
	return max
}

// Overlap describes two zones whose rectangles intersect on the same page.
type Overlap struct {
	Page int
	A, B string
}

// Overlaps lists every pair of overlapping zones in config order. Zones are
// applied in list order, so the later zone of each pair wins.
func (c *Config) Overlaps() []Overlap {
	var out []Overlap
	for i := 0; i < len(c.Zones); i++ {
		for j := i + 1; j < len(c.Zones); j++ {
			a, b := c.Zones[i], c.Zones[j]
			if a.PageNumber == b.PageNumber && a.Rect.Overlaps(b.Rect) {
				out = append(out, Overlap{Page: a.PageNumber, A: a.ZoneID, B: b.ZoneID})
			}
		}
	}
	return out
}
