package cache

// ScopedKeyer wraps a Keyer with a prefix so several deployments can share
// one Redis instance without seeing each other's entries.
//
// Example usage:
//
//	keyer := NewScopedKeyer(NewDefaultKeyer(), "cardpress:staging:")
type ScopedKeyer struct {
	inner  Keyer
	prefix string
}

// NewScopedKeyer creates a keyer with a prefix.
// The prefix is prepended to all generated keys.
func NewScopedKeyer(inner Keyer, prefix string) Keyer {
	if inner == nil {
		inner = NewDefaultKeyer()
	}
	return &ScopedKeyer{
		inner:  inner,
		prefix: prefix,
	}
}

// RasterKey generates a prefixed raster key.
func (k *ScopedKeyer) RasterKey(docHash string, opts RasterKeyOpts) string {
	return k.prefix + k.inner.RasterKey(docHash, opts)
}

// DocumentKey generates a prefixed document key.
func (k *ScopedKeyer) DocumentKey(templateHash string, opts DocumentKeyOpts) string {
	return k.prefix + k.inner.DocumentKey(templateHash, opts)
}
