package measurement

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

var measurementPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)\d+\.?\d*\s*(cm/s|cm2|cm²|cm3|cm³|cm|mm|ml|m/s|m|cc|%|kg|g|weeks|wk|days|d)`),
	regexp.MustCompile(`(?i)\b(length|width|height|diameter|volume|area|thickness|size|dimension)\s*[:=]?\s*\d`),
	regexp.MustCompile(`(?i)\b(BPD|HC|AC|FL|CRL|EFW|LV|RV|LA|RA|IVS|LVPW)\s*[:=]?\s*\d`),
	regexp.MustCompile(`\d+\s*[xX×]\s*\d+`),
}

// Longer unit tokens come first so "ml" is not read as "m".
var valueUnitPattern = regexp.MustCompile(`(?i)(\d+\.?\d*)\s*(cm/s|cm2|cm²|cm3|cm³|cm|mm|ml|m/s|m|cc|%|kg|g|weeks|wk|days|d)`)

var dimensionPattern = regexp.MustCompile(`(?i)(\d+\.?\d*)\s*[xX×]\s*(\d+\.?\d*)(?:\s*[xX×]\s*(\d+\.?\d*))?\s*(cm|mm)`)

var lineSplit = regexp.MustCompile(`[,;\n\r]+`)

// LooksLikeMeasurement reports whether text appears to mention a measurement.
func LooksLikeMeasurement(text string) bool {
	if text == "" {
		return false
	}
	for _, p := range measurementPatterns {
		if p.MatchString(text) {
			return true
		}
	}
	return false
}

// IdentifyMeasurementName resolves a clinical name from free text by keyword
// substring match. It returns "Measurement" when nothing matches.
func IdentifyMeasurementName(text string) string {
	lower := strings.ToLower(text)
	for _, k := range keywords {
		if strings.Contains(lower, k.match) {
			return k.name
		}
	}
	return "Measurement"
}

// ParseMeasurementText extracts the first value/unit pair from text. It
// returns false when the text holds no such pair.
func ParseMeasurementText(text string) (Measurement, bool) {
	m := valueUnitPattern.FindStringSubmatch(text)
	if m == nil {
		return Measurement{}, false
	}
	v, err := strconv.ParseFloat(m[1], 64)
	if err != nil {
		return Measurement{}, false
	}
	return Measurement{
		Type:    TypeParsed,
		Name:    IdentifyMeasurementName(text),
		Value:   Number(v),
		Unit:    normalizeUnit(m[2]),
		RawText: text,
	}, true
}

// ParseAllMeasurementsFromText parses every delimited line of text that looks
// like a measurement, then scans the whole text for "a x b [x c] unit"
// dimension mentions.
func ParseAllMeasurementsFromText(text string) []Measurement {
	var out []Measurement
	for _, line := range lineSplit.Split(text, -1) {
		line = strings.TrimSpace(line)
		if !LooksLikeMeasurement(line) {
			continue
		}
		if m, ok := ParseMeasurementText(line); ok {
			m.Source = SourceParsedText
			out = append(out, m)
		}
	}

	matches := dimensionPattern.FindAllStringSubmatch(text, -1)
	if len(matches) == 0 {
		return out
	}
	name := IdentifyMeasurementName(text) + " Dimensions"
	for _, match := range matches {
		length, err := strconv.ParseFloat(match[1], 64)
		if err != nil {
			continue
		}
		width, err := strconv.ParseFloat(match[2], 64)
		if err != nil {
			continue
		}
		dims := &Dimensions{Length: length, Width: width}
		value := fmt.Sprintf("%s × %s", match[1], match[2])
		if match[3] != "" {
			if depth, err := strconv.ParseFloat(match[3], 64); err == nil {
				dims.Depth = &depth
				value = fmt.Sprintf("%s × %s × %s", match[1], match[2], match[3])
			}
		}
		out = append(out, Measurement{
			Type:       TypeDimensions,
			Name:       name,
			Value:      Text(value),
			Unit:       normalizeUnit(match[4]),
			Dimensions: dims,
			Source:     SourceParsedText,
		})
	}
	return out
}

// parseAnnotationText screens a single annotation string and parses it,
// tagging the result with source.
func parseAnnotationText(text, source string) (Measurement, bool) {
	if text == "" || !LooksLikeMeasurement(text) {
		return Measurement{}, false
	}
	m, ok := ParseMeasurementText(text)
	if !ok {
		return Measurement{}, false
	}
	m.Source = source
	return m, true
}

func normalizeUnit(u string) string {
	u = strings.ToLower(u)
	if display, ok := unitCodes[u]; ok {
		return display
	}
	return u
}
