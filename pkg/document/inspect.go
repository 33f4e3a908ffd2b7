package document

import (
	"bytes"
	"fmt"
	"regexp"
	"strconv"
)

// Box is a page size in points.
type Box struct {
	Width, Height float64
}

var (
	pageRE  = regexp.MustCompile(`/Type\s*/Page\b`)
	pagesRE = regexp.MustCompile(`/Type\s*/Pages\b`)
	boxRE   = regexp.MustCompile(`/MediaBox\s*\[\s*([-\d.]+)\s+([-\d.]+)\s+([-\d.]+)\s+([-\d.]+)\s*\]`)
)

// MediaBoxes returns the page sizes of a PDF written by one of this
// package's builders, in page order. Pages without their own MediaBox
// inherit the page tree's. It does not understand compressed object streams
// and is not a general PDF parser.
func MediaBoxes(pdf []byte) ([]Box, error) {
	var inherited *Box
	if loc := pagesRE.FindIndex(pdf); loc != nil {
		if b, ok := mediaBox(objectAt(pdf, loc[0])); ok {
			inherited = &b
		}
	}

	var boxes []Box
	for _, loc := range pageRE.FindAllIndex(pdf, -1) {
		b, ok := mediaBox(objectAt(pdf, loc[0]))
		switch {
		case ok:
			boxes = append(boxes, b)
		case inherited != nil:
			boxes = append(boxes, *inherited)
		default:
			return nil, fmt.Errorf("page %d has no MediaBox", len(boxes)+1)
		}
	}
	if len(boxes) == 0 {
		return nil, fmt.Errorf("no pages found")
	}
	return boxes, nil
}

// objectAt returns the body of the indirect object containing offset i.
func objectAt(data []byte, i int) []byte {
	start := bytes.LastIndex(data[:i], []byte(" obj"))
	if start < 0 {
		start = 0
	}
	end := bytes.Index(data[i:], []byte("endobj"))
	if end < 0 {
		return data[start:]
	}
	return data[start : i+end]
}

func mediaBox(obj []byte) (Box, bool) {
	m := boxRE.FindSubmatch(obj)
	if m == nil {
		return Box{}, false
	}
	var v [4]float64
	for i := range v {
		f, err := strconv.ParseFloat(string(m[i+1]), 64)
		if err != nil {
			return Box{}, false
		}
		v[i] = f
	}
	return Box{Width: v[2] - v[0], Height: v[3] - v[1]}, true
}
