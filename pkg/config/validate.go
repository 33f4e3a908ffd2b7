package config

import (
	"math"
	"strings"

	"github.com/matzehuels/cardpress/pkg/errors"
)

// Validate checks every schema rule and reports all violations together as
// an INVALID_CONFIG error. It does not know the template's page count; page
// range is checked when the config is bound to a rasterized template.
func (c *Config) Validate() error {
	var v errors.ValidationError

	if err := errors.ValidateIdentifier("template_id", c.TemplateID); err != nil {
		v.Add("%s", errors.UserMessage(err))
	}
	if strings.TrimSpace(c.BasePDFPath) == "" {
		v.Add("base_pdf_path is required")
	}
	if strings.ContainsAny(c.OutputFilenameTemplate, "/\\") {
		v.Add("output_filename_template %q cannot contain path separators", c.OutputFilenameTemplate)
	}

	seen := make(map[string]bool, len(c.Zones))
	for i, z := range c.Zones {
		if err := errors.ValidateIdentifier("zone_id", z.ZoneID); err != nil {
			v.Add("zones[%d]: %s", i, errors.UserMessage(err))
			continue
		}
		if seen[z.ZoneID] {
			v.Add("zone %q: duplicate zone_id", z.ZoneID)
		}
		seen[z.ZoneID] = true
		validateZone(&v, z)
	}

	return v.Err()
}

func validateZone(v *errors.ValidationError, z Zone) {
	id := z.ZoneID
	if z.PageNumber < 1 {
		v.Add("zone %q: page_number must be >= 1, got %d", id, z.PageNumber)
	}
	if !z.Rect.finite() {
		v.Add("zone %q: rect must be finite", id)
	} else if z.Rect.Width < 0 || z.Rect.Height < 0 {
		v.Add("zone %q: rect width and height must be >= 0", id)
	}

	m := z.Mask
	switch {
	case m.Mode == "magic_erase":
		v.Add("zone %q: mask mode magic_erase is not supported (use auto_sample)", id)
	case !m.Mode.Valid():
		v.Add("zone %q: unknown mask mode %q", id, m.Mode)
	}
	if m.Padding < 0 || math.IsNaN(m.Padding) {
		v.Add("zone %q: mask padding must be >= 0", id)
	}
	if m.ColorHex != "" {
		if _, err := ParseHex(m.ColorHex); err != nil {
			v.Add("zone %q: mask %s", id, errors.UserMessage(err))
		}
	} else if m.Enabled && m.Mode == MaskSolid {
		v.Add("zone %q: solid mask requires color_hex", id)
	}

	t := z.Text
	if strings.TrimSpace(t.FontFamily) == "" {
		v.Add("zone %q: font_family is required", id)
	}
	if !(t.FontSize > 0) {
		v.Add("zone %q: font_size must be > 0", id)
	}
	if _, err := ParseHex(t.ColorHex); err != nil {
		v.Add("zone %q: text %s", id, errors.UserMessage(err))
	}
	if !t.Align.Valid() {
		v.Add("zone %q: unknown align %q", id, t.Align)
	}
	if !t.VAlign.Valid() {
		v.Add("zone %q: unknown valign %q", id, t.VAlign)
	}
}

// CheckPages verifies that every zone references an existing page of a
// template with pageCount pages.
func (c *Config) CheckPages(pageCount int) error {
	var v errors.ValidationError
	for _, z := range c.Zones {
		if z.PageNumber < 1 || z.PageNumber > pageCount {
			v.Add("zone %q: page_number %d out of range (template has %d pages)", z.ZoneID, z.PageNumber, pageCount)
		}
	}
	return v.Err()
}
