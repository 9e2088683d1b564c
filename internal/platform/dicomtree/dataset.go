// Package dicomtree decodes the DICOM tag tree served by Orthanc's
// /instances/{id}/tags endpoint into an immutable, tag-addressed dataset.
package dicomtree

import (
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/suyashkumar/dicom/pkg/tag"
)

// Element types reported by Orthanc.
const (
	TypeString   = "String"
	TypeSequence = "Sequence"
	TypeNull     = "Null"
	TypeTooLong  = "TooLong"
)

// Element is a single tag entry. A String element carries a scalar value,
// a Sequence element carries nested item datasets.
type Element struct {
	Name  string
	Type  string
	value string
	items []Dataset
}

// Value returns the scalar value of the element.
func (e Element) Value() string { return e.value }

// Items returns the nested datasets of a sequence element.
func (e Element) Items() []Dataset { return e.items }

// IsSequence reports whether the element holds nested items.
func (e Element) IsSequence() bool { return e.Type == TypeSequence }

// Text builds a string element.
func Text(v string) Element {
	return Element{Type: TypeString, value: v}
}

// Sequence builds a sequence element from the given items.
func Sequence(items ...Dataset) Element {
	return Element{Type: TypeSequence, items: items}
}

// Dataset is a read-only mapping from tag to element. The zero value is an
// empty dataset and every lookup on it reports "missing".
type Dataset struct {
	elems map[tag.Tag]Element
}

// New builds a dataset from a tag map. The map is copied.
func New(elems map[tag.Tag]Element) Dataset {
	ds := Dataset{elems: make(map[tag.Tag]Element, len(elems))}
	for t, e := range elems {
		if e.Name == "" {
			e.Name = keyword(t)
		}
		ds.elems[t] = e
	}
	return ds
}

// Len returns the number of top-level elements.
func (d Dataset) Len() int { return len(d.elems) }

// Get returns the element for t.
func (d Dataset) Get(t tag.Tag) (Element, bool) {
	e, ok := d.elems[t]
	return e, ok
}

// Has reports whether t is present.
func (d Dataset) Has(t tag.Tag) bool {
	_, ok := d.elems[t]
	return ok
}

// Tags returns the present tags in ascending order.
func (d Dataset) Tags() []tag.Tag {
	out := make([]tag.Tag, 0, len(d.elems))
	for t := range d.elems {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Group != out[j].Group {
			return out[i].Group < out[j].Group
		}
		return out[i].Element < out[j].Element
	})
	return out
}

// String returns the trimmed scalar value of t, or "" when absent or not a
// string element.
func (d Dataset) String(t tag.Tag) string {
	e, ok := d.elems[t]
	if !ok || e.Type == TypeSequence {
		return ""
	}
	return strings.TrimSpace(e.value)
}

// Items returns the items of sequence t, or nil.
func (d Dataset) Items(t tag.Tag) []Dataset {
	e, ok := d.elems[t]
	if !ok || e.Type != TypeSequence {
		return nil
	}
	return e.items
}

// First returns the first item of sequence t.
func (d Dataset) First(t tag.Tag) (Dataset, bool) {
	items := d.Items(t)
	if len(items) == 0 {
		return Dataset{}, false
	}
	return items[0], true
}

// Float parses the first value of a possibly multi-valued (backslash
// separated) numeric element.
func (d Dataset) Float(t tag.Tag) (float64, bool) {
	s := d.String(t)
	if s == "" {
		return 0, false
	}
	if i := strings.IndexByte(s, '\\'); i >= 0 {
		s = s[:i]
	}
	f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0, false
	}
	return f, true
}

// Floats parses every value of a multi-valued numeric element. Values that do
// not parse are skipped.
func (d Dataset) Floats(t tag.Tag) []float64 {
	s := d.String(t)
	if s == "" {
		return nil
	}
	parts := strings.Split(s, "\\")
	out := make([]float64, 0, len(parts))
	for _, p := range parts {
		f, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			continue
		}
		out = append(out, f)
	}
	return out
}

// Int parses the first value of t as an integer.
func (d Dataset) Int(t tag.Tag) (int, bool) {
	s := d.String(t)
	if s == "" {
		return 0, false
	}
	if i := strings.IndexByte(s, '\\'); i >= 0 {
		s = s[:i]
	}
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return 0, false
	}
	return n, true
}

// ParseKey parses an Orthanc tag key of the form "gggg,eeee". Hex digits are
// accepted in either case.
func ParseKey(key string) (tag.Tag, error) {
	key = strings.TrimSpace(key)
	key = strings.TrimPrefix(key, "(")
	key = strings.TrimSuffix(key, ")")
	group, elem, ok := strings.Cut(key, ",")
	if !ok {
		return tag.Tag{}, fmt.Errorf("invalid tag key %q", key)
	}
	g, err := strconv.ParseUint(strings.TrimSpace(group), 16, 16)
	if err != nil {
		return tag.Tag{}, fmt.Errorf("invalid tag group in %q: %w", key, err)
	}
	e, err := strconv.ParseUint(strings.TrimSpace(elem), 16, 16)
	if err != nil {
		return tag.Tag{}, fmt.Errorf("invalid tag element in %q: %w", key, err)
	}
	return tag.Tag{Group: uint16(g), Element: uint16(e)}, nil
}

// Key formats t the way Orthanc does.
func Key(t tag.Tag) string {
	return fmt.Sprintf("%04x,%04x", t.Group, t.Element)
}

type rawElement struct {
	Name  string          `json:"Name"`
	Type  string          `json:"Type"`
	Value json.RawMessage `json:"Value"`
}

// UnmarshalJSON decodes the Orthanc tag-tree format. Entries whose key is not
// a tag or whose value cannot be decoded are skipped.
func (d *Dataset) UnmarshalJSON(data []byte) error {
	var raw map[string]rawElement
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("decode tag tree: %w", err)
	}
	d.elems = make(map[tag.Tag]Element, len(raw))
	for key, r := range raw {
		t, err := ParseKey(key)
		if err != nil {
			continue
		}
		e, ok := decodeElement(r)
		if !ok {
			continue
		}
		d.elems[t] = e
	}
	return nil
}

func decodeElement(r rawElement) (Element, bool) {
	e := Element{Name: r.Name, Type: r.Type}
	v := strings.TrimSpace(string(r.Value))
	if e.Type == "" {
		switch {
		case strings.HasPrefix(v, "["):
			e.Type = TypeSequence
		case strings.HasPrefix(v, "\""):
			e.Type = TypeString
		default:
			e.Type = TypeNull
		}
	}

	switch e.Type {
	case TypeSequence:
		if v == "" || v == "null" {
			return e, true
		}
		if err := json.Unmarshal(r.Value, &e.items); err != nil {
			return Element{}, false
		}
	case TypeString:
		if v == "" || v == "null" {
			return e, true
		}
		if err := json.Unmarshal(r.Value, &e.value); err != nil {
			// Some Orthanc builds emit bare numbers for numeric VRs.
			e.value = v
		}
	}
	return e, true
}

// MarshalJSON encodes the dataset back into the Orthanc tag-tree format.
func (d Dataset) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(d.elems))
	for t, e := range d.elems {
		entry := map[string]any{"Name": e.Name, "Type": e.Type}
		switch e.Type {
		case TypeSequence:
			items := e.items
			if items == nil {
				items = []Dataset{}
			}
			entry["Value"] = items
		case TypeString:
			entry["Value"] = e.value
		default:
			entry["Value"] = nil
		}
		out[Key(t)] = entry
	}
	return json.Marshal(out)
}

func keyword(t tag.Tag) string {
	info, err := tag.Find(t)
	if err != nil {
		return ""
	}
	return info.Name
}
