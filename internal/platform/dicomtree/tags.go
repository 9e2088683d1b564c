package dicomtree

import "github.com/suyashkumar/dicom/pkg/tag"

// Identification and descriptive attributes.
var (
	Modality              = tag.Modality
	SOPClassUID           = tag.SOPClassUID
	StudyDate             = tag.StudyDate
	StudyDescription      = tag.StudyDescription
	SeriesDescription     = tag.SeriesDescription
	StationName           = tag.StationName
	Manufacturer          = tag.Tag{Group: 0x0008, Element: 0x0070}
	ManufacturerModelName = tag.Tag{Group: 0x0008, Element: 0x1090}
	AcquisitionDateTime   = tag.Tag{Group: 0x0008, Element: 0x002A}
	BodyPartExamined      = tag.Tag{Group: 0x0018, Element: 0x0015}
	ImageComments         = tag.Tag{Group: 0x0020, Element: 0x4000}
)

// Code sequence item attributes.
var (
	CodeValue              = tag.Tag{Group: 0x0008, Element: 0x0100}
	CodingSchemeDesignator = tag.Tag{Group: 0x0008, Element: 0x0102}
	CodeMeaning            = tag.Tag{Group: 0x0008, Element: 0x0104}
)

// Structured report content tree.
var (
	ContentSequence              = tag.Tag{Group: 0x0040, Element: 0xA730}
	ValueType                    = tag.Tag{Group: 0x0040, Element: 0xA040}
	ConceptNameCodeSequence      = tag.Tag{Group: 0x0040, Element: 0xA043}
	MeasuredValueSequence        = tag.Tag{Group: 0x0040, Element: 0xA300}
	NumericValue                 = tag.Tag{Group: 0x0040, Element: 0xA30A}
	MeasurementUnitsCodeSequence = tag.Tag{Group: 0x0040, Element: 0x08EA}
	TextValue                    = tag.Tag{Group: 0x0040, Element: 0xA160}
)

// Ultrasound region calibration.
var (
	SequenceOfUltrasoundRegions = tag.Tag{Group: 0x0018, Element: 0x6011}
	PhysicalUnitsXDirection     = tag.Tag{Group: 0x0018, Element: 0x6024}
	PhysicalUnitsYDirection     = tag.Tag{Group: 0x0018, Element: 0x6026}
	PhysicalDeltaX              = tag.Tag{Group: 0x0018, Element: 0x602C}
	PhysicalDeltaY              = tag.Tag{Group: 0x0018, Element: 0x602E}
)

// Presentation state graphic annotations.
var (
	GraphicAnnotationSequence = tag.Tag{Group: 0x0070, Element: 0x0001}
	UnformattedTextValue      = tag.Tag{Group: 0x0070, Element: 0x0006}
	TextObjectSequence        = tag.Tag{Group: 0x0070, Element: 0x0008}
	GraphicObjectSequence     = tag.Tag{Group: 0x0070, Element: 0x0009}
	GraphicData               = tag.Tag{Group: 0x0070, Element: 0x0022}
	GraphicType               = tag.Tag{Group: 0x0070, Element: 0x0023}
)
