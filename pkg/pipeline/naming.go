package pipeline

import (
	"fmt"
	"strconv"
	"strings"
	"unicode"

	"github.com/matzehuels/cardpress/pkg/config"
)

// nameHeaders are column names tried, in order, when neither the config
// nor the mapping identifies the guest's name.
var nameHeaders = []string{"નામ", "name", "full name", "fullname", "guest name", "guest_name"}

// ResolveNames computes the output file name of every guest, in order.
// Collisions are resolved here, before any guest is processed, so names do
// not depend on scheduling.
func ResolveNames(cfg *config.Config, guests []Guest, m Mapping) []string {
	tpl := cfg.OutputFilenameTemplate
	if tpl == "" {
		tpl = config.DefaultFilenameTemplate
	}

	names := make([]string, len(guests))
	used := make(map[string]bool, len(guests))
	for i, g := range guests {
		name := FileName(tpl, displayName(cfg, g, m, i), i)
		if used[strings.ToLower(name)] {
			name = uniqueName(name, i, used)
		}
		used[strings.ToLower(name)] = true
		names[i] = name
	}
	return names
}

// MaxStemBytes caps the part of a file name before ".pdf". It leaves room
// for collision suffixes within the 255 byte limit of common filesystems.
const MaxStemBytes = 200

// FileName expands {name} and {index} in tpl and enforces a .pdf suffix.
// Stems longer than MaxStemBytes are cut on a rune boundary.
func FileName(tpl, name string, index int) string {
	out := strings.ReplaceAll(tpl, "{name}", name)
	out = strings.ReplaceAll(out, "{index}", strconv.Itoa(index+1))
	out = strings.TrimSpace(out)
	ext := ".pdf"
	if strings.HasSuffix(strings.ToLower(out), ext) {
		ext = out[len(out)-len(ext):]
		out = out[:len(out)-len(ext)]
	}
	out = strings.TrimSpace(truncate(out, MaxStemBytes))
	if out == "" {
		return fmt.Sprintf("guest_%d.pdf", index+1)
	}
	return out + ext
}

// truncate returns the longest prefix of s that is at most n bytes and ends
// on a rune boundary.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	cut := 0
	for i := range s {
		if i > n {
			break
		}
		cut = i
	}
	return s[:cut]
}

// uniqueName appends _<ordinal> to the stem, then a counter if that is
// taken as well.
func uniqueName(name string, index int, used map[string]bool) string {
	stem := name[:len(name)-len(".pdf")]
	cand := fmt.Sprintf("%s_%d.pdf", stem, index+1)
	for n := 2; used[strings.ToLower(cand)]; n++ {
		cand = fmt.Sprintf("%s_%d_%d.pdf", stem, index+1, n)
	}
	return cand
}

// displayName picks the guest's name:
//  1. the configured output_name_column
//  2. a field mapped to a zone whose id contains "name"
//  3. a column whose header looks like a name
//  4. guest_<ordinal>
//
// The result is sanitized; an empty result falls through to the next rule.
func displayName(cfg *config.Config, g Guest, m Mapping, index int) string {
	if col := strings.TrimSpace(cfg.OutputNameColumn); col != "" {
		if v := Sanitize(g.Value(col)); v != "" {
			return v
		}
	}
	for _, f := range m.Fields() {
		for _, id := range m[f] {
			if strings.Contains(strings.ToLower(id), "name") {
				if v := Sanitize(g.Value(f)); v != "" {
					return v
				}
			}
		}
	}
	fields := g.Fields()
	for _, h := range nameHeaders {
		for _, f := range fields {
			if strings.ToLower(strings.TrimSpace(f)) == h {
				if v := Sanitize(g.Value(f)); v != "" {
					return v
				}
			}
		}
	}
	for _, f := range fields {
		if strings.Contains(strings.ToLower(f), "name") || strings.Contains(f, "નામ") {
			if v := Sanitize(g.Value(f)); v != "" {
				return v
			}
		}
	}
	return fmt.Sprintf("guest_%d", index+1)
}

// Sanitize keeps letters, marks, digits, spaces, '_' and '-', collapses runs
// of whitespace and trims the result.
func Sanitize(s string) string {
	var b strings.Builder
	space := false
	for _, r := range s {
		switch {
		case unicode.IsSpace(r):
			space = true
			continue
		case r == '_' || r == '-' || unicode.In(r, unicode.L, unicode.M, unicode.N):
		default:
			continue
		}
		if space && b.Len() > 0 {
			b.WriteByte(' ')
		}
		space = false
		b.WriteRune(r)
	}
	return b.String()
}
