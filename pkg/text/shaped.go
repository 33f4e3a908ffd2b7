package text

import (
	"bytes"
	"fmt"
	"sync"

	hbtt "github.com/benoitkugler/textlayout/fonts/truetype"
	hb "github.com/benoitkugler/textlayout/harfbuzz"
	"golang.org/x/image/font/sfnt"

	"github.com/matzehuels/cardpress/pkg/fonts"
)

// ShapedRenderer shapes text with HarfBuzz and rasterizes the resulting
// glyph outlines. Runes the requested family does not cover are shaped with
// the registry's fallback faces.
type ShapedRenderer struct {
	fonts *fonts.Registry

	mu    sync.Mutex
	faces map[string]*hbFace
}

// hbFace is a HarfBuzz font for one face. HarfBuzz fonts keep mutable
// shaping caches, so each is guarded by its own lock.
type hbFace struct {
	mu   sync.Mutex
	font *hb.Font
	err  error
}

// NewShapedRenderer creates a shaping renderer over reg.
func NewShapedRenderer(reg *fonts.Registry) *ShapedRenderer {
	return &ShapedRenderer{fonts: reg, faces: make(map[string]*hbFace)}
}

// Name implements Shaper.
func (s *ShapedRenderer) Name() string { return "shaped" }

// glyphPos is a shaped glyph positioned relative to the pen start.
type glyphPos struct {
	face *fonts.Face
	gid  sfnt.GlyphIndex
	x, y float64
}

// Shape implements Shaper.
func (s *ShapedRenderer) Shape(req Request) (*Result, error) {
	runes := []rune(Prepare(req.Text))
	chain := s.fonts.Chain(req.Family)

	var (
		glyphs []glyphPos
		pen    float64
		used   []*fonts.Face
	)
	for _, r := range itemize(runes, chain) {
		hf := s.hbFont(r.face)
		if hf.err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrUnavailable, r.face.Key(), hf.err)
		}
		info, pos, err := hf.shape(runes[r.start:r.end], segmentProps(r.script))
		if err != nil {
			return nil, err
		}
		scale := req.SizePx / float64(r.face.SFNT.UnitsPerEm())
		for i := range info {
			glyphs = append(glyphs, glyphPos{
				face: r.face,
				gid:  sfnt.GlyphIndex(info[i].Glyph),
				x:    pen + float64(pos[i].XOffset)*scale,
				y:    -float64(pos[i].YOffset) * scale,
			})
			pen += float64(pos[i].XAdvance) * scale
		}
		used = append(used, r.face)
	}

	if len(used) == 0 {
		used = chain[:1]
	}
	c := newCanvas(pen, used, req.SizePx)
	var buf sfnt.Buffer
	for _, g := range glyphs {
		if err := c.glyph(&buf, g.face, g.gid, req.SizePx, g.x, g.y); err != nil {
			return nil, fmt.Errorf("%w: glyph %d of %s: %v", ErrUnavailable, g.gid, g.face.Key(), err)
		}
	}
	return c.result(pen, req.Color, s.Name()), nil
}

func (s *ShapedRenderer) hbFont(face *fonts.Face) *hbFace {
	s.mu.Lock()
	defer s.mu.Unlock()
	if hf, ok := s.faces[face.Key()]; ok {
		return hf
	}
	hf := &hbFace{}
	parsed, err := hbtt.Parse(bytes.NewReader(face.Data), true)
	if err != nil {
		hf.err = err
	} else {
		hf.font = hb.NewFont(parsed)
	}
	s.faces[face.Key()] = hf
	return hf
}

// shape runs HarfBuzz over runes with explicit segment properties. Panics inside the shaper are reported as
// ErrUnavailable so one malformed font cannot take down a batch.
func (hf *hbFace) shape(runes []rune, props hb.SegmentProperties) (info []hb.GlyphInfo, pos []hb.GlyphPosition, err error) {
	hf.mu.Lock()
	defer hf.mu.Unlock()
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: shaper panicked: %v", ErrUnavailable, r)
		}
	}()

	buf := hb.NewBuffer()
	buf.Props = props
	buf.AddRunes(runes, 0, len(runes))
	buf.Shape(hf.font, nil)
	return buf.Info, buf.Pos, nil
}

var _ Shaper = (*ShapedRenderer)(nil)
