// Package fonts resolves font family names to parsed font files.
//
// Lookup order for a family:
//  1. files registered explicitly with Register
//  2. files in directories added with AddDir, matched by normalized name
//  3. system font directories, via go-findfont
//  4. the embedded Go fonts ("Go", "Go Bold", "Go Mono")
//
// The embedded Go Regular face is always available and closes every
// fallback chain, so text can be drawn even on a machine without fonts.
package fonts

import (
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"unicode"

	"github.com/charmbracelet/log"
	"github.com/flopp/go-findfont"
	"golang.org/x/image/font/gofont/gobold"
	"golang.org/x/image/font/gofont/gomono"
	"golang.org/x/image/font/gofont/goregular"
	"golang.org/x/image/font/sfnt"

	"github.com/matzehuels/cardpress/pkg/errors"
)

// DefaultFamily is the family of the embedded fallback face.
const DefaultFamily = "Go"

// Face is a parsed font file.
type Face struct {
	Family string
	Path   string // empty for embedded faces
	Data   []byte
	SFNT   *sfnt.Font
}

// Covers reports whether the face has a glyph for r.
func (f *Face) Covers(r rune) bool {
	var buf sfnt.Buffer
	gid, err := f.SFNT.GlyphIndex(&buf, r)
	return err == nil && gid != 0
}

// Key identifies the face's source file.
func (f *Face) Key() string {
	if f.Path != "" {
		return f.Path
	}
	return "embedded:" + normalize(f.Family)
}

// embedded holds the bundled faces other than the default, by normalized
// family name.
var embedded = map[string][]byte{
	"gobold": gobold.TTF,
	"gomono": gomono.TTF,
}

var (
	defaultFace     *Face
	defaultFaceOnce sync.Once
)

// Default returns the embedded Go Regular face.
func Default() *Face {
	defaultFaceOnce.Do(func() {
		f, err := sfnt.Parse(goregular.TTF)
		if err != nil {
			panic("fonts: embedded Go Regular does not parse: " + err.Error())
		}
		defaultFace = &Face{Family: DefaultFamily, Data: goregular.TTF, SFNT: f}
	})
	return defaultFace
}

// Registry resolves and caches faces. It is safe for concurrent use.
type Registry struct {
	mu        sync.Mutex
	files     map[string]string // normalized family -> path
	dirs      []string
	fallbacks []string
	faces     map[string]*Face // path or embedded key -> parsed face
	system    bool
	logger    *log.Logger
}

// NewRegistry creates a registry. System font lookup is enabled.
func NewRegistry(logger *log.Logger) *Registry {
	if logger == nil {
		logger = log.New(io.Discard)
	}
	return &Registry{
		files:  make(map[string]string),
		faces:  make(map[string]*Face),
		system: true,
		logger: logger,
	}
}

// Register maps a family name to a font file.
func (r *Registry) Register(family, path string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.files[normalize(family)] = path
}

// AddDir adds a directory searched before system fonts.
func (r *Registry) AddDir(dir string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.dirs = append(r.dirs, dir)
}

// SetFallbacks sets the families tried, in order, for runes the requested
// family cannot render.
func (r *Registry) SetFallbacks(families ...string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.fallbacks = append([]string(nil), families...)
}

// SetSystemLookup enables or disables searching system font directories.
func (r *Registry) SetSystemLookup(enabled bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.system = enabled
}

// Resolve returns the face for family or a FONT_NOT_FOUND error.
func (r *Registry) Resolve(family string) (*Face, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.resolveLocked(family)
}

// Chain returns the faces to try for family, in order: the family itself
// when it resolves, the configured fallbacks that resolve, and finally the
// embedded default. Duplicates are removed. The chain is never empty.
func (r *Registry) Chain(family string) []*Face {
	r.mu.Lock()
	defer r.mu.Unlock()

	var chain []*Face
	seen := make(map[string]bool)
	add := func(f *Face) {
		if f != nil && !seen[f.Key()] {
			seen[f.Key()] = true
			chain = append(chain, f)
		}
	}

	if f, err := r.resolveLocked(family); err == nil {
		add(f)
	}
	for _, fb := range r.fallbacks {
		if f, err := r.resolveLocked(fb); err == nil {
			add(f)
		}
	}
	add(Default())
	return chain
}

func (r *Registry) resolveLocked(family string) (*Face, error) {
	key := normalize(family)
	if key == "" {
		return nil, errors.New(errors.ErrCodeFontNotFound, "empty font family")
	}

	if path, ok := r.files[key]; ok {
		return r.loadLocked(family, path)
	}
	for _, dir := range r.dirs {
		if path := findInDir(dir, key); path != "" {
			return r.loadLocked(family, path)
		}
	}
	if r.system {
		for _, cand := range candidates(family) {
			if path, err := findfont.Find(cand); err == nil && matches(path, key) {
				return r.loadLocked(family, path)
			}
		}
	}
	if key == "go" || key == "goregular" {
		return Default(), nil
	}
	if data, ok := embedded[key]; ok {
		if f, ok := r.faces["embedded:"+key]; ok {
			return f, nil
		}
		sf, err := sfnt.Parse(data)
		if err != nil {
			return nil, errors.Wrap(errors.ErrCodeFontNotFound, err, "parse embedded font %s", family)
		}
		f := &Face{Family: family, Data: data, SFNT: sf}
		r.faces["embedded:"+key] = f
		return f, nil
	}
	return nil, errors.New(errors.ErrCodeFontNotFound, "font family %q not found", family)
}

func (r *Registry) loadLocked(family, path string) (*Face, error) {
	if f, ok := r.faces[path]; ok {
		return f, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeFontNotFound, err, "read font %s", path)
	}
	sf, err := sfnt.Parse(data)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeFontNotFound, err, "parse font %s", path)
	}
	f := &Face{Family: family, Path: path, Data: data, SFNT: sf}
	r.faces[path] = f
	r.logger.Debug("loaded font", "family", family, "path", path)
	return f, nil
}

// List returns the font files visible to the registry: registered files,
// files in added directories and system fonts (when enabled).
func (r *Registry) List() []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	set := make(map[string]bool)
	for _, p := range r.files {
		set[p] = true
	}
	for _, dir := range r.dirs {
		for _, p := range fontFiles(dir) {
			set[p] = true
		}
	}
	if r.system {
		for _, p := range findfont.List() {
			if isFontFile(p) {
				set[p] = true
			}
		}
	}
	out := make([]string, 0, len(set))
	for p := range set {
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}

// normalize lowercases a family or file name and drops everything but
// letters and digits, so "Noto Sans Gujarati" matches
// "NotoSansGujarati-Regular.ttf".
func normalize(s string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(s) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// fileKey normalizes a font file name, dropping the extension and a
// trailing "regular" style.
func fileKey(path string) string {
	base := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	return strings.TrimSuffix(normalize(base), "regular")
}

func matches(path, key string) bool {
	return fileKey(path) == strings.TrimSuffix(key, "regular")
}

func candidates(family string) []string {
	compact := strings.ReplaceAll(family, " ", "")
	return []string{
		compact + "-Regular.ttf",
		compact + ".ttf",
		compact + "-Regular.otf",
		compact + ".otf",
		family + ".ttf",
	}
}

func isFontFile(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".ttf", ".otf":
		return true
	}
	return false
}

func fontFiles(dir string) []string {
	var out []string
	_ = filepath.WalkDir(dir, func(path string, d os.DirEntry, err error) error {
		if err == nil && !d.IsDir() && isFontFile(path) {
			out = append(out, path)
		}
		return nil
	})
	return out
}

func findInDir(dir, key string) string {
	for _, p := range fontFiles(dir) {
		if matches(p, key) {
			return p
		}
	}
	return ""
}
