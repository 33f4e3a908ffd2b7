// Package text shapes and rasterizes a single line of guest text into an
// alpha coverage mask.
//
// Two renderers implement Shaper:
//
//   - ShapedRenderer runs HarfBuzz shaping (reordering, conjuncts, mark
//     positioning) with per-rune font fallback. Complex scripts such as
//     Gujarati render correctly only with this renderer.
//   - SimpleRenderer draws code points left to right with an opentype face.
//     It is always available and is used when shaping is not.
//
// Select probes the shaping engine once per process and picks a renderer.
// Under a strict policy a failed probe yields a Shaper that always reports
// ErrUnavailable instead of silently drawing unshaped text.
package text

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/color"
	"io"
	"sync"
	"unicode"

	hbtt "github.com/benoitkugler/textlayout/fonts/truetype"
	hb "github.com/benoitkugler/textlayout/harfbuzz"
	hblang "github.com/benoitkugler/textlayout/language"
	"github.com/charmbracelet/log"
	"golang.org/x/image/font/gofont/goregular"
	"golang.org/x/text/unicode/norm"

	"github.com/matzehuels/cardpress/pkg/fonts"
)

// ErrUnavailable is returned when a renderer cannot shape the request at all.
// Callers decide whether to fall back to another renderer or fail.
var ErrUnavailable = errors.New("text renderer unavailable")

// Request is one line of text to rasterize.
type Request struct {
	Text   string
	Family string
	SizePx float64 // em size in pixels
	Color  color.NRGBA
}

// Result is a rasterized line.
//
// Mask is a coverage raster whose origin is arbitrary; Ink is the tight box
// of non-zero coverage within Mask. An all-blank line has an empty Ink.
type Result struct {
	Mask     *image.Alpha
	Ink      image.Rectangle
	Origin   image.Point // pen start on the baseline, in Mask coordinates
	Advance  float64     // total advance in pixels
	Color    color.NRGBA
	Renderer string
}

// InkWidth returns the width of the ink box.
func (r *Result) InkWidth() int { return r.Ink.Dx() }

// InkHeight returns the height of the ink box.
func (r *Result) InkHeight() int { return r.Ink.Dy() }

// Shaper rasterizes a line of text. Implementations are safe for concurrent
// use.
type Shaper interface {
	Name() string
	Shape(req Request) (*Result, error)
}

// Prepare normalizes text to NFC, the form fonts and shaping tables expect.
func Prepare(s string) string {
	return norm.NFC.String(s)
}

// InkBounds returns the tight box of non-zero coverage in m.
func InkBounds(m *image.Alpha) image.Rectangle {
	b := m.Bounds()
	minX, minY, maxX, maxY := b.Max.X, b.Max.Y, b.Min.X, b.Min.Y
	for y := b.Min.Y; y < b.Max.Y; y++ {
		row := m.Pix[m.PixOffset(b.Min.X, y):m.PixOffset(b.Max.X, y)]
		for i, a := range row {
			if a == 0 {
				continue
			}
			x := b.Min.X + i
			if x < minX {
				minX = x
			}
			if x+1 > maxX {
				maxX = x + 1
			}
			if y < minY {
				minY = y
			}
			if y+1 > maxY {
				maxY = y + 1
			}
		}
	}
	if minX >= maxX || minY >= maxY {
		return image.Rectangle{}
	}
	return image.Rect(minX, minY, maxX, maxY)
}

// run is a maximal span of runes drawn with one face in one script.
type run struct {
	face       *fonts.Face
	script     hblang.Script
	start, end int
}

// itemize splits runes into runs, assigning each rune the first face in
// chain that covers it. A run also ends where the script changes; runes with
// no script of their own (spaces, digits, punctuation) join the current run.
// Combining marks, format characters and spaces stay in the current run so
// clusters are never split across fonts. Runes no face covers go to the
// primary face, which draws its .notdef glyph.
func itemize(runes []rune, chain []*fonts.Face) []run {
	var runs []run
	for i, r := range runes {
		script := scriptOf(r)
		var face *fonts.Face
		if len(runs) > 0 && attaches(r) {
			face = runs[len(runs)-1].face
			script = hblang.Common
		} else {
			face = chain[0]
			for _, f := range chain {
				if f.Covers(r) {
					face = f
					break
				}
			}
		}
		if n := len(runs); n > 0 && runs[n-1].face == face {
			cur := &runs[n-1]
			if script == hblang.Common || cur.script == hblang.Common || cur.script == script {
				if cur.script == hblang.Common {
					cur.script = script
				}
				cur.end = i + 1
				continue
			}
		}
		runs = append(runs, run{face: face, script: script, start: i, end: i + 1})
	}
	return runs
}

func attaches(r rune) bool {
	return unicode.In(r, unicode.Mn, unicode.Mc, unicode.Me, unicode.Cf) || unicode.IsSpace(r)
}

var (
	probeOnce sync.Once
	probeErr  error
)

// Probe reports whether HarfBuzz shaping works in this process. The check
// runs once; later calls return the cached outcome.
func Probe() error {
	probeOnce.Do(func() {
		probeErr = probe()
	})
	return probeErr
}

func probe() (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: shaping probe panicked: %v", ErrUnavailable, r)
		}
	}()
	face, err := hbtt.Parse(bytes.NewReader(goregular.TTF), true)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	buf := hb.NewBuffer()
	buf.Props = segmentProps(hblang.Latin)
	runes := []rune("Ag")
	buf.AddRunes(runes, 0, len(runes))
	buf.Shape(hb.NewFont(face), nil)
	if len(buf.Info) != len(runes) {
		return fmt.Errorf("%w: probe produced %d glyphs", ErrUnavailable, len(buf.Info))
	}
	return nil
}

// Select returns a ShapedRenderer when shaping is available. Otherwise it
// returns a SimpleRenderer, or, when strict is set, a Shaper whose every
// call fails with ErrUnavailable so callers can refuse to draw unshaped.
func Select(reg *fonts.Registry, logger *log.Logger, strict bool) Shaper {
	return selectFor(reg, logger, strict, Probe())
}

func selectFor(reg *fonts.Registry, logger *log.Logger, strict bool, unavailableErr error) Shaper {
	if logger == nil {
		logger = log.New(io.Discard)
	}
	switch {
	case unavailableErr == nil:
		return NewShapedRenderer(reg)
	case strict:
		logger.Warn("text shaping unavailable, zones with text will fail", "err", unavailableErr)
		return NewUnavailable(unavailableErr)
	default:
		logger.Warn("text shaping unavailable, complex scripts will render unshaped", "err", unavailableErr)
		return NewSimpleRenderer(reg)
	}
}

// Unavailable is a Shaper that fails every call. It stands in for a
// renderer that is required but broken.
type Unavailable struct {
	err error
}

// NewUnavailable returns a Shaper whose calls fail with err, wrapped in
// ErrUnavailable when it does not already match it.
func NewUnavailable(err error) *Unavailable {
	return &Unavailable{err: err}
}

// Name implements Shaper.
func (u *Unavailable) Name() string { return "unavailable" }

// Shape implements Shaper.
func (u *Unavailable) Shape(Request) (*Result, error) {
	if errors.Is(u.err, ErrUnavailable) {
		return nil, u.err
	}
	return nil, fmt.Errorf("%w: %v", ErrUnavailable, u.err)
}

var _ Shaper = (*Unavailable)(nil)
