package measurement

import "testing"

func TestLooksLikeMeasurement(t *testing.T) {
	tests := []struct {
		text string
		want bool
	}{
		{"BPD: 32.5mm", true},
		{"Liver length 14.2 cm", true},
		{"EF 55%", true},
		{"length: 4", true},
		{"Diameter=7", true},
		{"crl 45", true},
		{"Mass 5 x 3", true},
		{"Mass 5×3", true},
		{"GA 12 weeks", true},
		{"patient fasted", false},
		{"", false},
		{"no numbers here at all", false},
	}
	for _, tt := range tests {
		if got := LooksLikeMeasurement(tt.text); got != tt.want {
			t.Errorf("LooksLikeMeasurement(%q) = %v, want %v", tt.text, got, tt.want)
		}
	}
}

func TestIdentifyMeasurementName(t *testing.T) {
	tests := []struct {
		text string
		want string
	}{
		{"Liver length 14.2 cm", "Liver"},
		{"RIGHT KIDNEY 10 cm", "Kidney"},
		{"BPD 32 mm", "Biparietal Diameter"},
		{"Thyroid right lobe 4 cm", "Thyroid"},
		{"isthmus 3 mm", "Isthmus"},
		{"something 12 mm", "Measurement"},
	}
	for _, tt := range tests {
		if got := IdentifyMeasurementName(tt.text); got != tt.want {
			t.Errorf("IdentifyMeasurementName(%q) = %q, want %q", tt.text, got, tt.want)
		}
	}
}

func TestParseMeasurementText(t *testing.T) {
	m, ok := ParseMeasurementText("Liver length 14.2 cm")
	if !ok {
		t.Fatal("expected a measurement")
	}
	if m.Name != "Liver" {
		t.Errorf("expected name Liver, got %q", m.Name)
	}
	if v, _ := m.Value.Float(); v != 14.2 {
		t.Errorf("expected 14.2, got %v", v)
	}
	if m.Unit != "cm" {
		t.Errorf("expected cm, got %q", m.Unit)
	}
	if m.Type != TypeParsed || m.RawText != "Liver length 14.2 cm" {
		t.Errorf("unexpected type/raw %q/%q", m.Type, m.RawText)
	}
}

func TestParseMeasurementText_Units(t *testing.T) {
	tests := []struct {
		text string
		unit string
		val  float64
	}{
		{"Bladder 250 ml", "ml", 250},
		{"Area 3.2 CM2", "cm²", 3.2},
		{"Volume 12 cm3", "cm³", 12},
		{"PSV 45 cm/s", "cm/s", 45},
		{"EF 60%", "%", 60},
		{"EFW 1200 g", "g", 1200},
		{"GA 20 wk", "weeks", 20},
		{"Aorta 2.1 mm", "mm", 2.1},
	}
	for _, tt := range tests {
		m, ok := ParseMeasurementText(tt.text)
		if !ok {
			t.Errorf("%q: expected a measurement", tt.text)
			continue
		}
		if m.Unit != tt.unit {
			t.Errorf("%q: expected unit %q, got %q", tt.text, tt.unit, m.Unit)
		}
		if v, _ := m.Value.Float(); v != tt.val {
			t.Errorf("%q: expected %v, got %v", tt.text, tt.val, v)
		}
	}
}

func TestParseMeasurementText_NoPair(t *testing.T) {
	if _, ok := ParseMeasurementText("length: 4"); ok {
		t.Error("expected no measurement without a unit")
	}
}

func TestParseAllMeasurementsFromText_Dimensions(t *testing.T) {
	got := ParseAllMeasurementsFromText("Mass measures 5.2 x 3.1 x 2.8 cm")

	var dims []Measurement
	for _, m := range got {
		if m.Type == TypeDimensions {
			dims = append(dims, m)
		}
	}
	if len(dims) != 1 {
		t.Fatalf("expected 1 dimensions entry, got %d", len(dims))
	}
	d := dims[0]
	if d.Value.String() != "5.2 × 3.1 × 2.8" {
		t.Errorf("unexpected value %q", d.Value.String())
	}
	if d.Dimensions == nil || d.Dimensions.Length != 5.2 || d.Dimensions.Width != 3.1 {
		t.Fatalf("unexpected dimensions %+v", d.Dimensions)
	}
	if d.Dimensions.Depth == nil || *d.Dimensions.Depth != 2.8 {
		t.Errorf("expected depth 2.8, got %v", d.Dimensions.Depth)
	}
	if d.Unit != "cm" || d.Source != SourceParsedText {
		t.Errorf("unexpected unit/source %q/%q", d.Unit, d.Source)
	}
	if d.Name != "Measurement Dimensions" {
		t.Errorf("unexpected name %q", d.Name)
	}
}

func TestParseAllMeasurementsFromText_TwoDimensional(t *testing.T) {
	got := ParseAllMeasurementsFromText("Thyroid nodule 12 x 8 mm")
	var found bool
	for _, m := range got {
		if m.Type != TypeDimensions {
			continue
		}
		found = true
		if m.Value.String() != "12 × 8" {
			t.Errorf("unexpected value %q", m.Value.String())
		}
		if m.Dimensions.Depth != nil {
			t.Errorf("expected nil depth, got %v", *m.Dimensions.Depth)
		}
		if m.Name != "Thyroid Dimensions" {
			t.Errorf("unexpected name %q", m.Name)
		}
	}
	if !found {
		t.Fatal("expected a dimensions entry")
	}
}

func TestParseAllMeasurementsFromText_Lines(t *testing.T) {
	got := ParseAllMeasurementsFromText("Liver 14 cm; Spleen 11 cm\nfasting, Aorta 2 cm")

	var names []string
	for _, m := range got {
		if m.Type == TypeParsed {
			names = append(names, m.Name)
			if m.Source != SourceParsedText {
				t.Errorf("expected parsed_text source, got %q", m.Source)
			}
		}
	}
	want := []string{"Liver", "Spleen", "Aorta"}
	if len(names) != len(want) {
		t.Fatalf("expected %v, got %v", want, names)
	}
	for i := range want {
		if names[i] != want[i] {
			t.Errorf("index %d: expected %q, got %q", i, want[i], names[i])
		}
	}
}

func TestParseAllMeasurementsFromText_Nothing(t *testing.T) {
	if got := ParseAllMeasurementsFromText("routine abdominal study"); len(got) != 0 {
		t.Errorf("expected nothing, got %d", len(got))
	}
}
