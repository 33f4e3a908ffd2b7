package document

import (
	"bytes"
	"compress/zlib"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/disintegration/imaging"

	"github.com/matzehuels/cardpress/pkg/buildinfo"
	"github.com/matzehuels/cardpress/pkg/raster"
)

var pdfEscape = strings.NewReplacer(`\`, `\\`, "(", `\(`, ")", `\)`)

// Format is the compression used for page images.
type Format int

const (
	// JPEG stores pages with DCTDecode. Small, lossy.
	JPEG Format = iota
	// Flate stores raw RGB with FlateDecode. Lossless, larger.
	Flate
)

// DefaultJPEGQuality is the JPEG quality for page images.
const DefaultJPEGQuality = 92

// ImageStream writes a minimal PDF 1.4 file in which every page is a single
// full-page image XObject.
type ImageStream struct {
	Format  Format
	Quality int
}

// NewImageStream returns a JPEG writer at DefaultJPEGQuality.
func NewImageStream() *ImageStream {
	return &ImageStream{Format: JPEG, Quality: DefaultJPEGQuality}
}

// Name implements Builder.
func (s *ImageStream) Name() string {
	if s.Format == Flate {
		return "stream-flate"
	}
	return "stream"
}

// Build implements Builder.
func (s *ImageStream) Build(pages []*raster.Page) ([]byte, error) {
	if len(pages) == 0 {
		return nil, fmt.Errorf("no pages")
	}
	w := &pdfWriter{}
	w.header()

	// object layout: 1 catalog, 2 page tree, 3 info, then 3 per page
	const firstPage = 4
	kids := make([]string, len(pages))
	for i := range pages {
		kids[i] = fmt.Sprintf("%d 0 R", firstPage+3*i)
	}

	w.object(1, "<< /Type /Catalog /Pages 2 0 R >>")
	w.object(2, fmt.Sprintf("<< /Type /Pages /Kids [%s] /Count %d >>", strings.Join(kids, " "), len(pages)))
	w.object(3, fmt.Sprintf("<< /Producer (%s) >>", pdfEscape.Replace(buildinfo.Producer())))

	for i, p := range pages {
		pw, ph, err := pageSize(p)
		if err != nil {
			return nil, err
		}
		pageObj := firstPage + 3*i
		contentObj, imageObj := pageObj+1, pageObj+2

		w.object(pageObj, fmt.Sprintf(
			"<< /Type /Page /Parent 2 0 R /MediaBox [0 0 %s %s] /Resources << /XObject << /Im0 %d 0 R >> >> /Contents %d 0 R >>",
			num(pw), num(ph), imageObj, contentObj))

		content := fmt.Sprintf("q %s 0 0 %s 0 0 cm /Im0 Do Q", num(pw), num(ph))
		w.stream(contentObj, "", []byte(content))

		data, filter, err := s.encode(p)
		if err != nil {
			return nil, fmt.Errorf("page %d: %w", i+1, err)
		}
		dict := fmt.Sprintf("/Type /XObject /Subtype /Image /Width %d /Height %d /ColorSpace /DeviceRGB /BitsPerComponent 8 /Filter /%s",
			p.Width(), p.Height(), filter)
		w.stream(imageObj, dict, data)
	}

	w.trailer(1, 3)
	return w.buf.Bytes(), nil
}

func (s *ImageStream) encode(p *raster.Page) ([]byte, string, error) {
	var buf bytes.Buffer
	if s.Format == Flate {
		zw := zlib.NewWriter(&buf)
		img := p.Image
		rgb := make([]byte, 0, img.Rect.Dx()*3)
		for y := img.Rect.Min.Y; y < img.Rect.Max.Y; y++ {
			row := img.Pix[img.PixOffset(img.Rect.Min.X, y):img.PixOffset(img.Rect.Max.X, y)]
			rgb = rgb[:0]
			for x := 0; x < len(row); x += 4 {
				rgb = append(rgb, row[x], row[x+1], row[x+2])
			}
			if _, err := zw.Write(rgb); err != nil {
				return nil, "", err
			}
		}
		if err := zw.Close(); err != nil {
			return nil, "", err
		}
		return buf.Bytes(), "FlateDecode", nil
	}

	q := s.Quality
	if q <= 0 || q > 100 {
		q = DefaultJPEGQuality
	}
	if err := imaging.Encode(&buf, p.Image, imaging.JPEG, imaging.JPEGQuality(q)); err != nil {
		return nil, "", err
	}
	return buf.Bytes(), "DCTDecode", nil
}

// pdfWriter tracks byte offsets of numbered objects for the xref table.
type pdfWriter struct {
	buf     bytes.Buffer
	offsets map[int]int
}

func (w *pdfWriter) header() {
	w.offsets = make(map[int]int)
	w.buf.WriteString("%PDF-1.4\n%\xe2\xe3\xcf\xd3\n")
}

func (w *pdfWriter) object(n int, body string) {
	w.offsets[n] = w.buf.Len()
	fmt.Fprintf(&w.buf, "%d 0 obj\n%s\nendobj\n", n, body)
}

func (w *pdfWriter) stream(n int, dict string, data []byte) {
	w.offsets[n] = w.buf.Len()
	fmt.Fprintf(&w.buf, "%d 0 obj\n<< %s /Length %d >>\nstream\n", n, dict, len(data))
	w.buf.Write(data)
	w.buf.WriteString("\nendstream\nendobj\n")
}

func (w *pdfWriter) trailer(root, info int) {
	size := len(w.offsets) + 1
	xref := w.buf.Len()
	fmt.Fprintf(&w.buf, "xref\n0 %d\n0000000000 65535 f \n", size)
	for n := 1; n < size; n++ {
		fmt.Fprintf(&w.buf, "%010d 00000 n \n", w.offsets[n])
	}
	fmt.Fprintf(&w.buf, "trailer\n<< /Size %d /Root %d 0 R /Info %d 0 R >>\nstartxref\n%d\n%%%%EOF\n", size, root, info, xref)
}

// num formats a PDF real with at most four decimals.
func num(v float64) string {
	return strconv.FormatFloat(math.Round(v*1e4)/1e4, 'f', -1, 64)
}

var _ Builder = (*ImageStream)(nil)
