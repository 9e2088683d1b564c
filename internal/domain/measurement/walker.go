package measurement

import (
	"github.com/kingprasham/dicom-c-sub004/internal/platform/dicomtree"
)

// MaxContentDepth bounds recursion into nested Content Sequences.
const MaxContentDepth = 32

// SR content item value types.
const (
	valueTypeNum       = "NUM"
	valueTypeText      = "TEXT"
	valueTypeContainer = "CONTAINER"
	valueTypeInclude   = "INCLUDE"
)

// ExtractFromContentSequence walks the Content Sequence of ds and returns the
// numeric and measurement-like text items it holds. Nested containers are
// walked up to MaxContentDepth levels.
func ExtractFromContentSequence(ds dicomtree.Dataset, parent *ConceptName) []Measurement {
	w := contentWalker{maxDepth: MaxContentDepth}
	return w.walk(ds, parent, 0)
}

type contentWalker struct {
	maxDepth int
}

func (w contentWalker) walk(ds dicomtree.Dataset, parent *ConceptName, depth int) []Measurement {
	if depth >= w.maxDepth {
		return nil
	}
	var out []Measurement
	for _, item := range ds.Items(dicomtree.ContentSequence) {
		concept := DecodeConceptName(item)
		switch item.String(dicomtree.ValueType) {
		case valueTypeNum:
			if m, ok := numericMeasurement(item, concept, parent); ok {
				out = append(out, m)
			}
		case valueTypeText:
			text := item.String(dicomtree.TextValue)
			if !LooksLikeMeasurement(text) {
				continue
			}
			m := Measurement{
				Type:   TypeText,
				Name:   concept.Meaning,
				Value:  Text(text),
				Code:   concept.Code,
				Source: SourceStructuredReport,
			}
			if parent != nil {
				m.ParentConcept = parent.Meaning
			}
			out = append(out, m)
		case valueTypeContainer, valueTypeInclude:
			c := concept
			out = append(out, w.walk(item, &c, depth+1)...)
		}
	}
	return out
}

// DecodeConceptName reads the first Concept Name Code Sequence item of ds.
func DecodeConceptName(ds dicomtree.Dataset) ConceptName {
	code, ok := ds.First(dicomtree.ConceptNameCodeSequence)
	if !ok {
		return UnknownConcept
	}
	c := ConceptName{
		Code:    code.String(dicomtree.CodeValue),
		Meaning: code.String(dicomtree.CodeMeaning),
		Scheme:  code.String(dicomtree.CodingSchemeDesignator),
	}
	if c.Meaning == "" {
		c.Meaning = UnknownConcept.Meaning
	}
	return c
}

func numericMeasurement(item dicomtree.Dataset, concept ConceptName, parent *ConceptName) (Measurement, bool) {
	mv, ok := item.First(dicomtree.MeasuredValueSequence)
	if !ok {
		return Measurement{}, false
	}
	value, ok := mv.Float(dicomtree.NumericValue)
	if !ok {
		return Measurement{}, false
	}

	var unit, unitCode string
	if units, ok := mv.First(dicomtree.MeasurementUnitsCodeSequence); ok {
		unitCode = units.String(dicomtree.CodeValue)
		if display, ok := DisplayUnit(unitCode); ok {
			unit = display
		} else if meaning := units.String(dicomtree.CodeMeaning); meaning != "" {
			unit = meaning
		} else {
			unit = unitCode
		}
	}

	m := Measurement{
		Type:         TypeNumeric,
		Name:         concept.Meaning,
		Value:        Number(value),
		Unit:         unit,
		UnitCode:     unitCode,
		Code:         concept.Code,
		CodingScheme: concept.Scheme,
		Category:     CategoryGeneric,
		Source:       SourceStructuredReport,
	}
	if info, ok := LookupCode(concept.Code); ok {
		m.Name = info.Name
		m.Category = info.Category
	}
	if parent != nil {
		m.ParentConcept = parent.Meaning
	}
	return m, true
}
