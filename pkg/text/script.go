package text

import (
	hb "github.com/benoitkugler/textlayout/harfbuzz"
	hblang "github.com/benoitkugler/textlayout/language"
)

// scriptOf returns the script of r, or hblang.Common for runes that take the
// script of their neighbours (punctuation, digits, spaces, combining marks).
func scriptOf(r rune) hblang.Script {
	switch s := hblang.LookupScript(r); s {
	case hblang.Inherited, hblang.Unknown:
		return hblang.Common
	default:
		return s
	}
}

// segmentProps returns the HarfBuzz segment properties for a run in script.
// A run with no script of its own is shaped as Latin.
func segmentProps(script hblang.Script) hb.SegmentProperties {
	if script == hblang.Common {
		script = hblang.Latin
	}
	return hb.SegmentProperties{
		Script:    script,
		Direction: horizontalDirection(script),
		Language:  scriptLanguage(script),
	}
}

// horizontalDirection is the writing direction of script set horizontally.
func horizontalDirection(script hblang.Script) hb.Direction {
	switch script {
	case hblang.Arabic, hblang.Hebrew, hblang.Syriac, hblang.Thaana, hblang.Nko,
		hblang.Samaritan, hblang.Mandaic, hblang.Adlam, hblang.Hanifi_Rohingya:
		return hb.RightToLeft
	}
	return hb.LeftToRight
}

// scriptLanguage picks the language whose OpenType features a script is
// shaped with. Guest data carries no language tag, so the main language of
// the script is assumed.
func scriptLanguage(script hblang.Script) hblang.Language {
	var tag string
	switch script {
	case hblang.Latin:
		tag = "en"
	case hblang.Devanagari:
		tag = "hi"
	case hblang.Gujarati:
		tag = "gu"
	case hblang.Bengali:
		tag = "bn"
	case hblang.Gurmukhi:
		tag = "pa"
	case hblang.Tamil:
		tag = "ta"
	case hblang.Telugu:
		tag = "te"
	case hblang.Kannada:
		tag = "kn"
	case hblang.Malayalam:
		tag = "ml"
	case hblang.Oriya:
		tag = "or"
	case hblang.Arabic:
		tag = "ar"
	case hblang.Hebrew:
		tag = "he"
	default:
		tag = "und"
	}
	return hblang.NewLanguage(tag)
}
