package measurement

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
)

// Measurement types.
const (
	TypeNumeric    = "numeric"
	TypeText       = "text"
	TypeParsed     = "parsed"
	TypeDimensions = "dimensions"
	TypeGraphic    = "graphic"
)

// Measurement sources.
const (
	SourceStructuredReport  = "structured_report"
	SourceGraphicAnnotation = "graphic_annotation"
	SourceImageComments     = "image_comments"
	SourceSeriesDescription = "series_description"
	SourceParsedText        = "parsed_text"
	SourceRegionCalibration = "us_region_calibration"
)

// Clinical categories.
const (
	CategoryObstetric = "obstetric"
	CategoryAbdominal = "abdominal"
	CategoryThyroid   = "thyroid"
	CategoryCardiac   = "cardiac"
	CategoryVascular  = "vascular"
	CategoryGeneric   = "generic"
)

// ConceptName is the decoded first entry of a Concept Name Code Sequence.
type ConceptName struct {
	Code    string `json:"code,omitempty"`
	Meaning string `json:"meaning"`
	Scheme  string `json:"scheme,omitempty"`
}

// UnknownConcept is used when an item carries no concept name.
var UnknownConcept = ConceptName{Meaning: "Unknown"}

// Value holds either a number or a string. The zero value encodes as null.
type Value struct {
	num   float64
	str   string
	isNum bool
	isStr bool
}

// Number returns a numeric value.
func Number(f float64) Value { return Value{num: f, isNum: true} }

// Text returns a string value.
func Text(s string) Value { return Value{str: s, isStr: true} }

// Float returns the numeric value and whether the value is numeric.
func (v Value) Float() (float64, bool) { return v.num, v.isNum }

// IsZero reports whether no value is set.
func (v Value) IsZero() bool { return !v.isNum && !v.isStr }

func (v Value) String() string {
	switch {
	case v.isNum:
		return strconv.FormatFloat(v.num, 'f', -1, 64)
	case v.isStr:
		return v.str
	}
	return ""
}

func (v Value) MarshalJSON() ([]byte, error) {
	switch {
	case v.isNum:
		return json.Marshal(v.num)
	case v.isStr:
		return json.Marshal(v.str)
	}
	return []byte("null"), nil
}

func (v *Value) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*v = Value{}
		return nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*v = Text(s)
		return nil
	}
	var f float64
	if err := json.Unmarshal(data, &f); err != nil {
		return fmt.Errorf("measurement value must be a number or string: %w", err)
	}
	*v = Number(f)
	return nil
}

// Dimensions is the decoded extent of an "a x b [x c]" text mention.
type Dimensions struct {
	Length float64  `json:"length"`
	Width  float64  `json:"width"`
	Depth  *float64 `json:"depth"`
}

// Measurement is one extracted value with its provenance.
type Measurement struct {
	Type          string      `json:"type"`
	Name          string      `json:"name,omitempty"`
	Value         Value       `json:"value"`
	Unit          string      `json:"unit,omitempty"`
	UnitCode      string      `json:"unitCode,omitempty"`
	Code          string      `json:"code,omitempty"`
	CodingScheme  string      `json:"codingScheme,omitempty"`
	Category      string      `json:"category,omitempty"`
	ParentConcept string      `json:"parentConcept,omitempty"`
	Source        string      `json:"source,omitempty"`
	RawText       string      `json:"rawText,omitempty"`
	GraphicType   string      `json:"graphicType,omitempty"`
	Points        []float64   `json:"points,omitempty"`
	Dimensions    *Dimensions `json:"dimensions,omitempty"`
}

// RegionCalibration is one decoded ultrasound region.
type RegionCalibration struct {
	PhysicalUnitsX string  `json:"physicalUnitsX"`
	PhysicalUnitsY string  `json:"physicalUnitsY"`
	PixelSpacingX  float64 `json:"pixelSpacingX"`
	PixelSpacingY  float64 `json:"pixelSpacingY"`
	Source         string  `json:"source"`
}

// Metadata is the descriptive summary of an instance.
type Metadata struct {
	Modality            string `json:"modality"`
	StudyDescription    string `json:"studyDescription"`
	SeriesDescription   string `json:"seriesDescription"`
	Manufacturer        string `json:"manufacturer"`
	Model               string `json:"model"`
	StationName         string `json:"stationName"`
	BodyPart            string `json:"bodyPart"`
	AcquisitionDateTime string `json:"acquisitionDateTime"`
}

// Sources holds the per-source raw results of one extraction.
type Sources struct {
	StructuredReport   []Measurement       `json:"structured_report"`
	GraphicAnnotations []Measurement       `json:"graphic_annotations"`
	RegionCalibration  []RegionCalibration `json:"region_calibration"`
	TextAnnotations    []Measurement       `json:"text_annotations"`
	ParsedOverlay      []Measurement       `json:"parsed_overlay"`
	Metadata           *Metadata           `json:"metadata"`
}

// NewSources returns a Sources value whose lists encode as empty arrays.
func NewSources() Sources {
	return Sources{
		StructuredReport:   []Measurement{},
		GraphicAnnotations: []Measurement{},
		RegionCalibration:  []RegionCalibration{},
		TextAnnotations:    []Measurement{},
		ParsedOverlay:      []Measurement{},
	}
}

// Result is the outcome of extracting a single instance.
type Result struct {
	Success      bool                     `json:"success"`
	Error        string                   `json:"error,omitempty"`
	InstanceID   string                   `json:"instanceId"`
	Modality     string                   `json:"modality"`
	Measurements []Measurement            `json:"measurements"`
	Raw          Sources                  `json:"raw"`
	Categories   map[string][]Measurement `json:"categories"`
}

// Failure builds an unsuccessful result.
func Failure(instanceID string, err error) *Result {
	return &Result{Success: false, Error: err.Error(), InstanceID: instanceID}
}

type failureJSON struct {
	Success    bool   `json:"success"`
	Error      string `json:"error"`
	InstanceID string `json:"instanceId"`
}

// MarshalJSON emits the short error shape for failed results.
func (r Result) MarshalJSON() ([]byte, error) {
	if !r.Success {
		return json.Marshal(failureJSON{Error: r.Error, InstanceID: r.InstanceID})
	}
	type plain Result
	p := plain(r)
	if p.Measurements == nil {
		p.Measurements = []Measurement{}
	}
	if p.Categories == nil {
		p.Categories = map[string][]Measurement{}
	}
	return json.Marshal(p)
}

// BatchResult is the outcome of a multi-instance extraction keyed by
// instance id.
type BatchResult struct {
	Success bool               `json:"success"`
	Results map[string]*Result `json:"results"`
}

// ExtractionRecord is an archived successful extraction.
type ExtractionRecord struct {
	ID               uuid.UUID `db:"id" json:"id"`
	InstanceID       string    `db:"instance_id" json:"instanceId"`
	StudyID          string    `db:"study_id" json:"studyId,omitempty"`
	Modality         string    `db:"modality" json:"modality"`
	MeasurementCount int       `db:"measurement_count" json:"measurementCount"`
	Result           *Result   `db:"result" json:"result"`
	CreatedAt        time.Time `db:"created_at" json:"createdAt"`
}

// NewExtractionRecord builds an archive record for a successful result.
func NewExtractionRecord(r *Result, studyID string) *ExtractionRecord {
	return &ExtractionRecord{
		ID:               uuid.New(),
		InstanceID:       r.InstanceID,
		StudyID:          studyID,
		Modality:         r.Modality,
		MeasurementCount: len(r.Measurements),
		Result:           r,
		CreatedAt:        time.Now().UTC(),
	}
}
