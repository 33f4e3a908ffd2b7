package cache

import "fmt"

// Keyer builds cache keys. Keys embed a hash of every input that changes the
// cached value, so a changed template or option never hits a stale entry.
type Keyer interface {
	// RasterKey identifies the rasterized pages of a template document.
	RasterKey(docHash string, opts RasterKeyOpts) string

	// DocumentKey identifies one personalized output document.
	DocumentKey(templateHash string, opts DocumentKeyOpts) string
}

// RasterKeyOpts are the rasterization inputs besides the document bytes.
type RasterKeyOpts struct {
	DPI     int    `json:"dpi"`
	Backend string `json:"backend"`
}

// DocumentKeyOpts are the per-guest inputs of a personalized document.
type DocumentKeyOpts struct {
	ConfigHash string `json:"config_hash"`
	GuestHash  string `json:"guest_hash"`
	DPI        int    `json:"dpi"`
	Builder    string `json:"builder"`
}

// DefaultKeyer is the standard Keyer.
type DefaultKeyer struct{}

// NewDefaultKeyer returns the standard Keyer.
func NewDefaultKeyer() Keyer {
	return DefaultKeyer{}
}

// RasterKey implements Keyer.
func (DefaultKeyer) RasterKey(docHash string, opts RasterKeyOpts) string {
	return hashKey(fmt.Sprintf("raster:%s", docHash), opts)
}

// DocumentKey implements Keyer.
func (DefaultKeyer) DocumentKey(templateHash string, opts DocumentKeyOpts) string {
	return hashKey(fmt.Sprintf("document:%s", templateHash), opts)
}
