package dicomtree

import (
	"encoding/json"
	"testing"

	"github.com/suyashkumar/dicom/pkg/tag"
)

const orthancSample = `{
	"0008,0060": {"Name": "Modality", "Type": "String", "Value": "SR"},
	"0040,a730": {
		"Name": "ContentSequence",
		"Type": "Sequence",
		"Value": [
			{
				"0040,A040": {"Name": "ValueType", "Type": "String", "Value": "NUM"},
				"0040,a300": {
					"Name": "MeasuredValueSequence",
					"Type": "Sequence",
					"Value": [
						{"0040,a30a": {"Name": "NumericValue", "Type": "String", "Value": "4.2\\5.0"}}
					]
				}
			}
		]
	},
	"0070,0022": {"Name": "GraphicData", "Type": "String", "Value": "10\\20\\x\\30.5"},
	"0008,1030": {"Name": "StudyDescription", "Type": "Null", "Value": null},
	"not-a-tag": {"Name": "Junk", "Type": "String", "Value": "ignored"}
}`

func decodeSample(t *testing.T) Dataset {
	t.Helper()
	var ds Dataset
	if err := json.Unmarshal([]byte(orthancSample), &ds); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	return ds
}

func TestParseKey(t *testing.T) {
	tests := []struct {
		in      string
		want    tag.Tag
		wantErr bool
	}{
		{"0040,A730", tag.Tag{Group: 0x0040, Element: 0xA730}, false},
		{"0040,a730", tag.Tag{Group: 0x0040, Element: 0xA730}, false},
		{"(0008,0060)", tag.Tag{Group: 0x0008, Element: 0x0060}, false},
		{"00400a730", tag.Tag{}, true},
		{"zzzz,0001", tag.Tag{}, true},
	}
	for _, tt := range tests {
		got, err := ParseKey(tt.in)
		if tt.wantErr {
			if err == nil {
				t.Errorf("ParseKey(%q): expected error", tt.in)
			}
			continue
		}
		if err != nil {
			t.Errorf("ParseKey(%q): unexpected error: %v", tt.in, err)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseKey(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestDataset_UnmarshalOrthanc(t *testing.T) {
	ds := decodeSample(t)

	if ds.Len() != 4 {
		t.Fatalf("expected 4 elements, got %d", ds.Len())
	}
	if got := ds.String(Modality); got != "SR" {
		t.Errorf("expected modality SR, got %q", got)
	}
	if ds.Has(StudyDescription) == false {
		t.Error("expected null element to be present")
	}
	if got := ds.String(StudyDescription); got != "" {
		t.Errorf("expected empty study description, got %q", got)
	}

	items := ds.Items(ContentSequence)
	if len(items) != 1 {
		t.Fatalf("expected 1 content item, got %d", len(items))
	}
	if got := items[0].String(ValueType); got != "NUM" {
		t.Errorf("expected NUM, got %q", got)
	}
	mv, ok := items[0].First(MeasuredValueSequence)
	if !ok {
		t.Fatal("expected measured value item")
	}
	v, ok := mv.Float(NumericValue)
	if !ok || v != 4.2 {
		t.Errorf("expected first value 4.2, got %v (%v)", v, ok)
	}
}

func TestDataset_Floats(t *testing.T) {
	ds := decodeSample(t)
	got := ds.Floats(GraphicData)
	want := []float64{10, 20, 30.5}
	if len(got) != len(want) {
		t.Fatalf("expected %d points, got %d", len(want), len(got))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("point %d: expected %v, got %v", i, want[i], got[i])
		}
	}
}

func TestDataset_MissingLookups(t *testing.T) {
	var ds Dataset
	if ds.Has(Modality) {
		t.Error("zero dataset should have no elements")
	}
	if _, ok := ds.First(ContentSequence); ok {
		t.Error("expected no first item")
	}
	if _, ok := ds.Float(NumericValue); ok {
		t.Error("expected missing float")
	}
	if ds.Items(ContentSequence) != nil {
		t.Error("expected nil items")
	}
	if ds.String(ContentSequence) != "" {
		t.Error("expected empty string")
	}
}

func TestDataset_StringOnSequenceIsEmpty(t *testing.T) {
	ds := New(map[tag.Tag]Element{
		ContentSequence: Sequence(New(nil)),
	})
	if got := ds.String(ContentSequence); got != "" {
		t.Errorf("expected empty string for sequence, got %q", got)
	}
	if _, ok := ds.Int(ContentSequence); ok {
		t.Error("expected no int for sequence")
	}
}

func TestDataset_Int(t *testing.T) {
	ds := New(map[tag.Tag]Element{
		PhysicalUnitsXDirection: Text(" 3 "),
		PhysicalUnitsYDirection: Text("abc"),
	})
	if n, ok := ds.Int(PhysicalUnitsXDirection); !ok || n != 3 {
		t.Errorf("expected 3, got %d (%v)", n, ok)
	}
	if _, ok := ds.Int(PhysicalUnitsYDirection); ok {
		t.Error("expected parse failure")
	}
}

func TestDataset_RoundTripKeepsSequences(t *testing.T) {
	ds := decodeSample(t)
	b, err := json.Marshal(ds)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var back Dataset
	if err := json.Unmarshal(b, &back); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(back.Items(ContentSequence)) != 1 {
		t.Error("expected content sequence to survive encoding")
	}
}
