package measurement

import "strings"

// Consolidate merges the measurement sources in priority order, keeping the
// first measurement seen for each lowercase name. Distinct structures that
// share a generic name collapse into one entry.
func Consolidate(s Sources) []Measurement {
	seen := make(map[string]struct{})
	out := make([]Measurement, 0)
	for _, src := range [][]Measurement{
		s.StructuredReport,
		s.GraphicAnnotations,
		s.TextAnnotations,
		s.ParsedOverlay,
	} {
		for _, m := range src {
			key := strings.ToLower(m.Name)
			if key == "" {
				key = "unknown"
			}
			if _, ok := seen[key]; ok {
				continue
			}
			seen[key] = struct{}{}
			out = append(out, m)
		}
	}
	return out
}

// Categorize buckets measurements by clinical category. Unknown or missing
// categories go to generic and empty buckets are omitted.
func Categorize(ms []Measurement) map[string][]Measurement {
	out := make(map[string][]Measurement)
	for _, m := range ms {
		cat := m.Category
		if _, ok := knownCategories[cat]; !ok {
			cat = CategoryGeneric
		}
		out[cat] = append(out[cat], m)
	}
	return out
}
