package text

import (
	"image"
	"image/color"
	"image/draw"
	"math"

	"golang.org/x/image/font"
	"golang.org/x/image/font/sfnt"
	"golang.org/x/image/math/fixed"
	"golang.org/x/image/vector"

	"github.com/matzehuels/cardpress/pkg/fonts"
)

// canvas is the coverage raster one line is drawn into. It is sized from
// the line's advance and the fonts' vertical metrics plus a margin of one em
// on every side, so overhanging glyphs and stacked marks are never cut.
type canvas struct {
	mask   *image.Alpha
	origin image.Point
}

func newCanvas(advance float64, faces []*fonts.Face, size float64) *canvas {
	ascent, descent := lineMetrics(faces, size)
	margin := int(math.Ceil(size)) + 2
	w := int(math.Ceil(advance)) + 2*margin
	h := int(math.Ceil(ascent+descent)) + 2*margin
	return &canvas{
		mask:   image.NewAlpha(image.Rect(0, 0, w, h)),
		origin: image.Pt(margin, margin+int(math.Ceil(ascent))),
	}
}

// lineMetrics returns the largest ascent and descent among faces at size.
func lineMetrics(faces []*fonts.Face, size float64) (ascent, descent float64) {
	var buf sfnt.Buffer
	ppem := fixed.Int26_6(math.Round(size * 64))
	for _, f := range faces {
		m, err := f.SFNT.Metrics(&buf, ppem, font.HintingNone)
		if err != nil {
			continue
		}
		ascent = math.Max(ascent, float64(m.Ascent)/64)
		descent = math.Max(descent, float64(m.Descent)/64)
	}
	if ascent == 0 {
		ascent = size * 0.8
	}
	if descent == 0 {
		descent = size * 0.2
	}
	return ascent, descent
}

func (c *canvas) result(advance float64, col color.NRGBA, renderer string) *Result {
	return &Result{
		Mask:     c.mask,
		Ink:      InkBounds(c.mask),
		Origin:   c.origin,
		Advance:  advance,
		Color:    col,
		Renderer: renderer,
	}
}

// glyph draws glyph gid of face at size with its origin at (x, y), given in
// pixels relative to the canvas origin.
func (c *canvas) glyph(buf *sfnt.Buffer, face *fonts.Face, gid sfnt.GlyphIndex, size, x, y float64) error {
	ppem := fixed.Int26_6(math.Round(size * 64))
	segs, err := face.SFNT.LoadGlyph(buf, gid, ppem, nil)
	if err != nil {
		return err
	}
	c.outline(segs, float64(c.origin.X)+x, float64(c.origin.Y)+y)
	return nil
}

// outline rasterizes segs, which are relative to a glyph origin at (ox, oy).
// Each glyph gets its own rasterizer and is merged with draw.Over, so
// overlapping contours from different glyphs never cancel out.
func (c *canvas) outline(segs sfnt.Segments, ox, oy float64) {
	if len(segs) == 0 {
		return
	}
	bb := segs.Bounds()
	gr := image.Rect(
		int(math.Floor(ox+float64(bb.Min.X)/64)),
		int(math.Floor(oy+float64(bb.Min.Y)/64)),
		int(math.Ceil(ox+float64(bb.Max.X)/64)),
		int(math.Ceil(oy+float64(bb.Max.Y)/64)),
	)
	clip := gr.Intersect(c.mask.Bounds())
	if clip.Empty() {
		return
	}

	// shift from outline coordinates into the glyph raster
	dx := float32(ox) - float32(gr.Min.X)
	dy := float32(oy) - float32(gr.Min.Y)
	pt := func(p fixed.Point26_6) (float32, float32) {
		return float32(p.X)/64 + dx, float32(p.Y)/64 + dy
	}

	var z vector.Rasterizer
	z.Reset(gr.Dx(), gr.Dy())
	for _, seg := range segs {
		switch seg.Op {
		case sfnt.SegmentOpMoveTo:
			z.MoveTo(pt(seg.Args[0]))
		case sfnt.SegmentOpLineTo:
			z.LineTo(pt(seg.Args[0]))
		case sfnt.SegmentOpQuadTo:
			bx, by := pt(seg.Args[0])
			cx, cy := pt(seg.Args[1])
			z.QuadTo(bx, by, cx, cy)
		case sfnt.SegmentOpCubeTo:
			bx, by := pt(seg.Args[0])
			cx, cy := pt(seg.Args[1])
			dx2, dy2 := pt(seg.Args[2])
			z.CubeTo(bx, by, cx, cy, dx2, dy2)
		}
	}
	z.ClosePath()

	g := image.NewAlpha(image.Rect(0, 0, gr.Dx(), gr.Dy()))
	z.DrawOp = draw.Src
	z.Draw(g, g.Bounds(), image.Opaque, image.Point{})
	draw.Draw(c.mask, clip, g, clip.Min.Sub(gr.Min), draw.Over)
}
