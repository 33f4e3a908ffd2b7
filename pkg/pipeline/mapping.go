package pipeline

import (
	"encoding/csv"
	"encoding/json"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/matzehuels/cardpress/pkg/config"
	"github.com/matzehuels/cardpress/pkg/errors"
	"github.com/matzehuels/cardpress/pkg/text"
)

// Guest is one row of guest data: field name to value.
type Guest map[string]string

// Value returns the trimmed, NFC-normalized value of field, or "" when the
// field is missing.
func (g Guest) Value(field string) string {
	return strings.TrimSpace(text.Prepare(g[field]))
}

// Fields returns the guest's field names in sorted order.
func (g Guest) Fields() []string {
	keys := make([]string, 0, len(g))
	for k := range g {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// ZoneIDs is the target of one mapping entry. In JSON it may be a single
// zone id or a list of them.
type ZoneIDs []string

// UnmarshalJSON accepts "zone" as well as ["zone", "other"].
func (z *ZoneIDs) UnmarshalJSON(data []byte) error {
	var one string
	if err := json.Unmarshal(data, &one); err == nil {
		*z = ZoneIDs{one}
		return nil
	}
	var many []string
	if err := json.Unmarshal(data, &many); err != nil {
		return errors.New(errors.ErrCodeInvalidInput, "mapping target must be a zone id or a list of zone ids")
	}
	*z = many
	return nil
}

// Mapping routes guest fields to zones.
type Mapping map[string]ZoneIDs

// Fields returns the mapped field names in sorted order.
func (m Mapping) Fields() []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// FieldFor returns the first field, in sorted order, mapped to zoneID.
func (m Mapping) FieldFor(zoneID string) (string, bool) {
	for _, f := range m.Fields() {
		for _, id := range m[f] {
			if id == zoneID {
				return f, true
			}
		}
	}
	return "", false
}

// Unknown returns mapped zone ids that cfg does not define, sorted.
func (m Mapping) Unknown(cfg *config.Config) []string {
	set := make(map[string]bool)
	for _, ids := range m {
		for _, id := range ids {
			if _, ok := cfg.Zone(id); !ok {
				set[id] = true
			}
		}
	}
	out := make([]string, 0, len(set))
	for id := range set {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// ParseMapping decodes a JSON mapping.
func ParseMapping(data []byte) (Mapping, error) {
	var m Mapping
	if err := json.Unmarshal(data, &m); err != nil {
		if errors.GetCode(err) != "" {
			return nil, err
		}
		return nil, errors.Wrap(errors.ErrCodeInvalidInput, err, "parse mapping")
	}
	return m, nil
}

// LoadMapping reads a JSON mapping file.
func LoadMapping(path string) (Mapping, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidInput, err, "read mapping %s", path)
	}
	return ParseMapping(data)
}

// IdentityMapping maps every zone to the guest field of the same name.
func IdentityMapping(cfg *config.Config) Mapping {
	m := make(Mapping, len(cfg.Zones))
	for _, z := range cfg.Zones {
		m[z.ZoneID] = ZoneIDs{z.ZoneID}
	}
	return m
}

// LoadGuestsCSV reads guests from CSV. The first row names the fields;
// short rows leave the missing fields out, a UTF-8 byte order mark is
// dropped.
func LoadGuestsCSV(r io.Reader) ([]Guest, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err == io.EOF {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidInput, err, "read csv header")
	}
	for i, h := range header {
		header[i] = strings.TrimSpace(strings.TrimPrefix(h, "\ufeff"))
	}

	var guests []Guest
	for {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, errors.Wrap(errors.ErrCodeInvalidInput, err, "read csv row %d", len(guests)+2)
		}
		g := make(Guest, len(header))
		for i, v := range rec {
			if i < len(header) && header[i] != "" {
				g[header[i]] = v
			}
		}
		guests = append(guests, g)
	}
	return guests, nil
}

// LoadGuestsFile reads a CSV guest file.
func LoadGuestsFile(path string) ([]Guest, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidInput, err, "open guests %s", path)
	}
	defer f.Close()
	return LoadGuestsCSV(f)
}
