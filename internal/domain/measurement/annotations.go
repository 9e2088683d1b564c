package measurement

import (
	"fmt"

	"github.com/suyashkumar/dicom/pkg/tag"

	"github.com/kingprasham/dicom-c-sub004/internal/platform/dicomtree"
)

// OverlayFields are the simplified-tag fields scanned for free-text
// measurements.
var OverlayFields = []string{
	"ImageComments",
	"SeriesDescription",
	"StudyDescription",
	"ContentDescription",
	"AnnotationComment",
}

// ExtractGraphicAnnotations reads graphic and text objects from the Graphic
// Annotation Sequence. Graphic objects are reported as drawn; text objects
// are kept only when they parse as a measurement.
func ExtractGraphicAnnotations(ds dicomtree.Dataset) []Measurement {
	var out []Measurement
	n := 0
	for _, ann := range ds.Items(dicomtree.GraphicAnnotationSequence) {
		for _, g := range ann.Items(dicomtree.GraphicObjectSequence) {
			gt := g.String(dicomtree.GraphicType)
			points := g.Floats(dicomtree.GraphicData)
			if gt == "" || len(points) == 0 {
				continue
			}
			n++
			out = append(out, Measurement{
				Type:        TypeGraphic,
				Name:        fmt.Sprintf("Graphic Annotation %d (%s)", n, gt),
				GraphicType: gt,
				Points:      points,
				Source:      SourceGraphicAnnotation,
			})
		}
		for _, t := range ann.Items(dicomtree.TextObjectSequence) {
			if m, ok := parseAnnotationText(t.String(dicomtree.UnformattedTextValue), SourceGraphicAnnotation); ok {
				out = append(out, m)
			}
		}
	}
	return out
}

// ExtractTextAnnotations screens the Image Comments and Series Description
// tags independently.
func ExtractTextAnnotations(ds dicomtree.Dataset) []Measurement {
	fields := []struct {
		tag    tag.Tag
		source string
	}{
		{dicomtree.ImageComments, SourceImageComments},
		{dicomtree.SeriesDescription, SourceSeriesDescription},
	}
	var out []Measurement
	for _, f := range fields {
		if m, ok := parseAnnotationText(ds.String(f.tag), f.source); ok {
			out = append(out, m)
		}
	}
	return out
}

// ExtractRegionCalibration decodes each ultrasound region's physical units
// and pixel spacing.
func ExtractRegionCalibration(ds dicomtree.Dataset) []RegionCalibration {
	regions := ds.Items(dicomtree.SequenceOfUltrasoundRegions)
	out := make([]RegionCalibration, 0, len(regions))
	for _, r := range regions {
		dx, _ := r.Float(dicomtree.PhysicalDeltaX)
		dy, _ := r.Float(dicomtree.PhysicalDeltaY)
		out = append(out, RegionCalibration{
			PhysicalUnitsX: PhysicalUnitsLabel(unitsCode(r, dicomtree.PhysicalUnitsXDirection)),
			PhysicalUnitsY: PhysicalUnitsLabel(unitsCode(r, dicomtree.PhysicalUnitsYDirection)),
			PixelSpacingX:  dx,
			PixelSpacingY:  dy,
			Source:         SourceRegionCalibration,
		})
	}
	return out
}

// unitsCode returns 0 for an absent code and -1 for one that does not parse.
func unitsCode(ds dicomtree.Dataset, t tag.Tag) int {
	if ds.String(t) == "" {
		return 0
	}
	n, ok := ds.Int(t)
	if !ok {
		return -1
	}
	return n
}

// ExtractMetadata summarises the descriptive tags of an instance.
func ExtractMetadata(ds dicomtree.Dataset) *Metadata {
	md := &Metadata{
		Modality:            ds.String(dicomtree.Modality),
		StudyDescription:    ds.String(dicomtree.StudyDescription),
		SeriesDescription:   ds.String(dicomtree.SeriesDescription),
		Manufacturer:        ds.String(dicomtree.Manufacturer),
		Model:               ds.String(dicomtree.ManufacturerModelName),
		StationName:         ds.String(dicomtree.StationName),
		BodyPart:            ds.String(dicomtree.BodyPartExamined),
		AcquisitionDateTime: ds.String(dicomtree.AcquisitionDateTime),
	}
	if md.Modality == "" {
		md.Modality = "Unknown"
	}
	if md.AcquisitionDateTime == "" {
		md.AcquisitionDateTime = ds.String(dicomtree.StudyDate)
	}
	return md
}

// ParseOverlayText mines the free-text simplified tags of an instance.
func ParseOverlayText(simplified map[string]string) []Measurement {
	var out []Measurement
	for _, field := range OverlayFields {
		text, ok := simplified[field]
		if !ok || text == "" {
			continue
		}
		out = append(out, ParseAllMeasurementsFromText(text)...)
	}
	return out
}
