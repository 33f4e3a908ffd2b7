package pixel

import (
	"errors"
	"image"
	"io"
	"strings"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/cardpress/pkg/config"
	cperrors "github.com/matzehuels/cardpress/pkg/errors"
	"github.com/matzehuels/cardpress/pkg/raster"
	"github.com/matzehuels/cardpress/pkg/text"
)

// MinFontSize is the smallest size, in points, shrink-to-fit goes down to.
const MinFontSize = 8.0

// Placement records how a zone's text was laid out.
type Placement struct {
	ZoneID   string          `json:"zone_id"`
	SizePx   int             `json:"size_px"`
	Ink      image.Rectangle `json:"ink"` // page coordinates, before clipping
	Overflow bool            `json:"overflow,omitempty"`
	Renderer string          `json:"renderer,omitempty"`
}

// Compositor draws guest text into zones.
type Compositor struct {
	Shaper text.Shaper

	// Fallback, when set, is used for a zone after Shaper reports
	// text.ErrUnavailable. Without it the zone fails with
	// RENDERER_UNAVAILABLE.
	Fallback text.Shaper

	Logger *log.Logger
}

// NewCompositor creates a compositor. fallback may be nil.
func NewCompositor(shaper, fallback text.Shaper, logger *log.Logger) *Compositor {
	if logger == nil {
		logger = log.New(io.Discard)
	}
	return &Compositor{Shaper: shaper, Fallback: fallback, Logger: logger}
}

// SizeRange returns the starting and smallest pixel sizes for a font size in
// points: base = round(size*dpi/72), floor = round(MinFontSize*dpi/72) but
// never above base and never below 1.
func SizeRange(fontSize float64, dpi int) (base, floor int) {
	base = max(raster.ToPixels(fontSize, dpi), 1)
	floor = min(max(raster.ToPixels(MinFontSize, dpi), 1), base)
	return base, floor
}

// InnerRect is the area text may occupy: the zone rect shrunk by the mask
// padding. It may be empty.
func InnerRect(z config.Zone, dpi int) image.Rectangle {
	return raster.Grow(raster.ScaleRect(z.Rect, dpi), -raster.ToPixels(z.Mask.Padding, dpi))
}

// Composite draws value into z on page. Sizes are tried from base down to
// floor in one pixel steps; the first whose ink box fits the inner rect
// wins. If none fits the floor size is drawn and clipped. Blank values and
// zones without an inner area leave the page untouched.
func (c *Compositor) Composite(page *raster.Page, z config.Zone, value string) (Placement, error) {
	p := Placement{ZoneID: z.ZoneID}
	if strings.TrimSpace(value) == "" {
		return p, nil
	}
	inner := InnerRect(z, page.DPI)
	clip := inner.Intersect(page.Bounds())
	if inner.Empty() || clip.Empty() {
		c.Logger.Debug("zone has no drawable area", "zone", z.ZoneID)
		return p, nil
	}

	res, size, fits, err := c.fit(c.Shaper, z, value, inner, page.DPI)
	if errors.Is(err, text.ErrUnavailable) && c.Fallback != nil {
		c.Logger.Warn("renderer unavailable, drawing unshaped", "zone", z.ZoneID, "renderer", c.Shaper.Name(), "err", err)
		res, size, fits, err = c.fit(c.Fallback, z, value, inner, page.DPI)
	}
	if err != nil {
		if errors.Is(err, text.ErrUnavailable) {
			return p, cperrors.Wrap(cperrors.ErrCodeRendererUnavailable, err, "zone %q", z.ZoneID)
		}
		return p, cperrors.Wrap(cperrors.ErrCodeInternal, err, "zone %q", z.ZoneID)
	}

	p.SizePx = size
	p.Overflow = !fits
	p.Renderer = res.Renderer
	if res.Ink.Empty() {
		return p, nil
	}
	off := align(res.Ink, inner, z.Text.Align, z.Text.VAlign)
	p.Ink = res.Ink.Add(off)
	Blend(page.Image, res, off, clip)
	return p, nil
}

func (c *Compositor) fit(s text.Shaper, z config.Zone, value string, inner image.Rectangle, dpi int) (*text.Result, int, bool, error) {
	base, floor := SizeRange(z.Text.FontSize, dpi)
	req := text.Request{Text: value, Family: z.Text.FontFamily, Color: z.Text.Color()}

	var res *text.Result
	for size := base; size >= floor; size-- {
		req.SizePx = float64(size)
		r, err := s.Shape(req)
		if err != nil {
			return nil, 0, false, err
		}
		res = r
		if r.Ink.Dx() <= inner.Dx() && r.Ink.Dy() <= inner.Dy() {
			return r, size, true, nil
		}
	}
	return res, floor, false, nil
}

// align returns the offset that moves ink into inner. Horizontal placement
// uses the ink box, not the advance, so side bearings do not shift text.
func align(ink, inner image.Rectangle, h config.Align, v config.VAlign) image.Point {
	var x, y int
	switch h {
	case config.AlignLeft:
		x = inner.Min.X
	case config.AlignRight:
		x = inner.Max.X - ink.Dx()
	default:
		x = inner.Min.X + (inner.Dx()-ink.Dx())/2
	}
	switch v {
	case config.VAlignTop:
		y = inner.Min.Y
	case config.VAlignBottom:
		y = inner.Max.Y - ink.Dy()
	default:
		y = inner.Min.Y + (inner.Dy()-ink.Dy())/2
	}
	return image.Pt(x-ink.Min.X, y-ink.Min.Y)
}

// Blend composites res onto img, shifted by off and clipped to clip, with
// out = (src*a + dst*(255-a)) / 255 per channel, rounded.
func Blend(img *image.NRGBA, res *text.Result, off image.Point, clip image.Rectangle) {
	dst := res.Ink.Add(off).Intersect(clip).Intersect(img.Bounds())
	if dst.Empty() {
		return
	}
	src := [3]int{int(res.Color.R), int(res.Color.G), int(res.Color.B)}
	m := res.Mask
	for y := dst.Min.Y; y < dst.Max.Y; y++ {
		mi := m.PixOffset(dst.Min.X-off.X, y-off.Y)
		pi := img.PixOffset(dst.Min.X, y)
		for x := dst.Min.X; x < dst.Max.X; x, mi, pi = x+1, mi+1, pi+4 {
			a := int(m.Pix[mi])
			if a == 0 {
				continue
			}
			for ch := 0; ch < 3; ch++ {
				d := int(img.Pix[pi+ch])
				img.Pix[pi+ch] = uint8((src[ch]*a + d*(255-a) + 127) / 255)
			}
			img.Pix[pi+3] = 0xff
		}
	}
}
