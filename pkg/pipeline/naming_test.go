package pipeline

import (
	"reflect"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/matzehuels/cardpress/pkg/config"
	"github.com/matzehuels/cardpress/pkg/errors"
)

func TestResolveNames(t *testing.T) {
	zone := nameZone("guest_name", 1, config.Rect{Width: 10, Height: 10})
	city := nameZone("city", 1, config.Rect{Y: 20, Width: 10, Height: 10})

	tests := []struct {
		name   string
		column string
		tpl    string
		guests []Guest
		m      Mapping
		want   []string
	}{
		{
			name:   "mapped name zone",
			guests: []Guest{{"Guest": "Priya Shah"}, {"Guest": "Ravi"}},
			m:      Mapping{"Guest": {"guest_name"}},
			want:   []string{"Priya Shah.pdf", "Ravi.pdf"},
		},
		{
			name:   "configured column wins",
			column: "Nickname",
			guests: []Guest{{"Guest": "Priya Shah", "Nickname": "Pri"}},
			m:      Mapping{"Guest": {"guest_name"}},
			want:   []string{"Pri.pdf"},
		},
		{
			name:   "gujarati header",
			guests: []Guest{{"નામ": "પ્રિયા", "Town": "Surat"}},
			m:      Mapping{"Town": {"city"}},
			want:   []string{"પ્રિયા.pdf"},
		},
		{
			name:   "header containing name",
			guests: []Guest{{"First Name": "Asha", "Town": "Surat"}},
			m:      Mapping{"Town": {"city"}},
			want:   []string{"Asha.pdf"},
		},
		{
			name:   "fallback to ordinal",
			guests: []Guest{{"Town": "Surat"}, {"Town": "Vapi"}},
			m:      Mapping{"Town": {"city"}},
			want:   []string{"guest_1.pdf", "guest_2.pdf"},
		},
		{
			name:   "collisions are case insensitive",
			guests: []Guest{{"Name": "Asha"}, {"Name": "ASHA"}, {"Name": "Asha"}},
			m:      Mapping{"Name": {"guest_name"}},
			want:   []string{"Asha.pdf", "ASHA_2.pdf", "Asha_3.pdf"},
		},
		{
			name:   "suffix collides with a real name",
			guests: []Guest{{"Name": "Asha_2"}, {"Name": "Asha"}, {"Name": "Asha"}},
			m:      Mapping{"Name": {"guest_name"}},
			want:   []string{"Asha_2.pdf", "Asha.pdf", "Asha_3.pdf"},
		},
		{
			name:   "ordinal suffix taken",
			guests: []Guest{{"Name": "Asha"}, {"Name": "Asha_2"}, {"Name": "Asha"}, {"Name": "Asha_2"}},
			m:      Mapping{"Name": {"guest_name"}},
			want:   []string{"Asha.pdf", "Asha_2.pdf", "Asha_3.pdf", "Asha_2_4.pdf"},
		},
		{
			name:   "filename template",
			tpl:    "{index}-{name}",
			guests: []Guest{{"Name": "Asha"}, {"Name": "Ravi"}},
			m:      Mapping{"Name": {"guest_name"}},
			want:   []string{"1-Asha.pdf", "2-Ravi.pdf"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testConfig(zone, city)
			cfg.OutputNameColumn = tt.column
			if tt.tpl != "" {
				cfg.OutputFilenameTemplate = tt.tpl
			}
			if got := ResolveNames(cfg, tt.guests, tt.m); !reflect.DeepEqual(got, tt.want) {
				t.Errorf("ResolveNames = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestResolveNamesLongNames(t *testing.T) {
	zone := nameZone("guest_name", 1, config.Rect{Width: 10, Height: 10})
	long := strings.Repeat("શ્રી ", 30)

	tests := []struct {
		name   string
		tpl    string
		guests []Guest
	}{
		{"single", "", []Guest{{"Name": long}}},
		{"collisions", "", []Guest{{"Name": long}, {"Name": long}, {"Name": long + "x"}}},
		{"latin", "", []Guest{{"Name": strings.Repeat("a", 400)}}},
		{"template", "{index}-{name}.PDF", []Guest{{"Name": long}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testConfig(zone)
			if tt.tpl != "" {
				cfg.OutputFilenameTemplate = tt.tpl
			}
			names := ResolveNames(cfg, tt.guests, Mapping{"Name": {"guest_name"}})
			seen := map[string]bool{}
			for _, n := range names {
				if err := errors.ValidateFilename(n); err != nil {
					t.Errorf("%q (%d bytes): %v", n, len(n), err)
				}
				if !utf8.ValidString(n) {
					t.Errorf("%q is not valid UTF-8", n)
				}
				if ext := strings.ToLower(n[len(n)-4:]); ext != ".pdf" {
					t.Errorf("%q lost its .pdf suffix", n)
				}
				if seen[strings.ToLower(n)] {
					t.Errorf("duplicate name %q", n)
				}
				seen[strings.ToLower(n)] = true
			}
		})
	}
}

func TestSanitize(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"Priya Shah", "Priya Shah"},
		{"  Ravi \t Patel ", "Ravi Patel"},
		{"A/B\\C:D*?", "ABCD"},
		{"Mr. & Mrs. Desai", "Mr Mrs Desai"},
		{"પ્રિયા શાહ", "પ્રિયા શાહ"},
		{"first_last-2", "first_last-2"},
		{"../../etc", "etc"},
		{"!!!", ""},
	}
	for _, tt := range tests {
		if got := Sanitize(tt.in); got != tt.want {
			t.Errorf("Sanitize(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestFileName(t *testing.T) {
	tests := []struct {
		tpl, name string
		index     int
		want      string
	}{
		{"{name}.pdf", "Asha", 0, "Asha.pdf"},
		{"{name}", "Asha", 0, "Asha.pdf"},
		{"{name}.PDF", "Asha", 0, "Asha.PDF"},
		{"card_{index}", "Asha", 4, "card_5.pdf"},
		{"{name}", "", 2, "guest_3.pdf"},
		{"{name}", strings.Repeat("ab", 150), 0, strings.Repeat("ab", 100) + ".pdf"},
		{"{name}.pdf", strings.Repeat("é", 150), 0, strings.Repeat("é", 100) + ".pdf"},
		{"{name}", strings.Repeat("x", 199) + "é", 0, strings.Repeat("x", 199) + ".pdf"},
	}
	for _, tt := range tests {
		if got := FileName(tt.tpl, tt.name, tt.index); got != tt.want {
			t.Errorf("FileName(%q, %q, %d) = %q, want %q", tt.tpl, tt.name, tt.index, got, tt.want)
		}
	}
}
