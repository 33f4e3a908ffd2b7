package document

import (
	"bytes"
	"fmt"

	"codeberg.org/go-pdf/fpdf"
	"github.com/disintegration/imaging"

	"github.com/matzehuels/cardpress/pkg/buildinfo"
	"github.com/matzehuels/cardpress/pkg/raster"
)

// FPDF lays pages out with go-pdf/fpdf. Each page gets its own format so
// mixed page sizes survive, and the raster is placed at the origin covering
// the whole page.
type FPDF struct {
	Quality int
}

// NewFPDF returns an fpdf builder at DefaultJPEGQuality.
func NewFPDF() *FPDF {
	return &FPDF{Quality: DefaultJPEGQuality}
}

// Name implements Builder.
func (f *FPDF) Name() string { return "fpdf" }

// Build implements Builder.
func (f *FPDF) Build(pages []*raster.Page) ([]byte, error) {
	if len(pages) == 0 {
		return nil, fmt.Errorf("no pages")
	}
	q := f.Quality
	if q <= 0 || q > 100 {
		q = DefaultJPEGQuality
	}

	w0, h0, err := pageSize(pages[0])
	if err != nil {
		return nil, err
	}
	pdf := fpdf.NewCustom(&fpdf.InitType{
		OrientationStr: "P",
		UnitStr:        "pt",
		Size:           fpdf.SizeType{Wd: w0, Ht: h0},
	})
	pdf.SetMargins(0, 0, 0)
	pdf.SetAutoPageBreak(false, 0)
	pdf.SetCreator(buildinfo.Producer(), true)

	for i, p := range pages {
		w, h, err := pageSize(p)
		if err != nil {
			return nil, err
		}
		var img bytes.Buffer
		if err := imaging.Encode(&img, p.Image, imaging.JPEG, imaging.JPEGQuality(q)); err != nil {
			return nil, fmt.Errorf("page %d: %w", i+1, err)
		}
		name := fmt.Sprintf("page-%d", i+1)
		opts := fpdf.ImageOptions{ImageType: "JPG"}

		pdf.AddPageFormat("P", fpdf.SizeType{Wd: w, Ht: h})
		pdf.RegisterImageOptionsReader(name, opts, &img)
		pdf.ImageOptions(name, 0, 0, w, h, false, opts, 0, "")
		if pdf.Err() {
			return nil, fmt.Errorf("page %d: %w", i+1, pdf.Error())
		}
	}

	var out bytes.Buffer
	if err := pdf.Output(&out); err != nil {
		return nil, err
	}
	return out.Bytes(), nil
}

var _ Builder = (*FPDF)(nil)
