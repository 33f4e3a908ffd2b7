package text

import (
	"fmt"
	"image"

	"golang.org/x/image/font"
	"golang.org/x/image/font/opentype"
	"golang.org/x/image/math/fixed"

	"github.com/matzehuels/cardpress/pkg/fonts"
)

// SimpleRenderer draws code points in logical order with kerning but no
// shaping. Font fallback still applies per run.
type SimpleRenderer struct {
	fonts *fonts.Registry
}

// NewSimpleRenderer creates an unshaped renderer over reg.
func NewSimpleRenderer(reg *fonts.Registry) *SimpleRenderer {
	return &SimpleRenderer{fonts: reg}
}

// Name implements Shaper.
func (s *SimpleRenderer) Name() string { return "simple" }

// Shape implements Shaper.
func (s *SimpleRenderer) Shape(req Request) (*Result, error) {
	runes := []rune(Prepare(req.Text))
	runs := itemize(runes, s.fonts.Chain(req.Family))

	// opentype faces are not safe for concurrent use, so each call opens its own
	faces := make(map[*fonts.Face]font.Face)
	defer func() {
		for _, f := range faces {
			f.Close()
		}
	}()
	faceFor := func(f *fonts.Face) (font.Face, error) {
		if ff, ok := faces[f]; ok {
			return ff, nil
		}
		ff, err := opentype.NewFace(f.SFNT, &opentype.FaceOptions{
			Size:    req.SizePx,
			DPI:     72,
			Hinting: font.HintingNone,
		})
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrUnavailable, f.Key(), err)
		}
		faces[f] = ff
		return ff, nil
	}

	used := make([]*fonts.Face, 0, len(runs))
	var advance fixed.Int26_6
	for _, r := range runs {
		ff, err := faceFor(r.face)
		if err != nil {
			return nil, err
		}
		advance += font.MeasureString(ff, string(runes[r.start:r.end]))
		used = append(used, r.face)
	}
	if len(used) == 0 {
		used = append(used, fonts.Default())
	}

	c := newCanvas(float64(advance)/64, used, req.SizePx)
	d := &font.Drawer{
		Dst: c.mask,
		Src: image.Opaque,
		Dot: fixed.P(c.origin.X, c.origin.Y),
	}
	for _, r := range runs {
		d.Face = faces[r.face]
		d.DrawString(string(runes[r.start:r.end]))
	}
	return c.result(float64(advance)/64, req.Color, s.Name()), nil
}

var _ Shaper = (*SimpleRenderer)(nil)
