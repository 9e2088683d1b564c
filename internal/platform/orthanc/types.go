package orthanc

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// ErrNotFound is matched by a StatusError carrying a 404.
var ErrNotFound = errors.New("orthanc: resource not found")

// ErrInvalidID is returned for resource ids that cannot name a single path
// segment.
var ErrInvalidID = errors.New("orthanc: invalid resource id")

// ValidID reports whether id is safe to place in a resource path. Orthanc ids
// are hex groups joined by dashes, but any id without separators or dot
// segments is accepted.
func ValidID(id string) bool {
	if id == "" || id == "." || len(id) > 128 {
		return false
	}
	return !strings.Contains(id, "..") && !strings.ContainsAny(id, "/\\?#%")
}

// StatusError is returned for any non-200 Orthanc response.
type StatusError struct {
	StatusCode int
	URL        string
	Body       string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("orthanc returned status %d for %s", e.StatusCode, e.URL)
	}
	return fmt.Sprintf("orthanc returned status %d for %s: %s", e.StatusCode, e.URL, e.Body)
}

// Is lets errors.Is(err, ErrNotFound) match 404 responses.
func (e *StatusError) Is(target error) bool {
	return target == ErrNotFound && e.StatusCode == 404
}

// SeriesInfo holds the fields of /series/{id} used by the related-report
// lookup.
type SeriesInfo struct {
	ID        string
	Modality  string
	Instances []string
}

type seriesResponse struct {
	ID            string            `json:"ID"`
	MainDicomTags map[string]string `json:"MainDicomTags"`
	Instances     []string          `json:"Instances"`
}

func (s seriesResponse) info() *SeriesInfo {
	return &SeriesInfo{
		ID:        s.ID,
		Modality:  s.MainDicomTags["Modality"],
		Instances: s.Instances,
	}
}

// SystemInfo is the subset of /system reported by health checks.
type SystemInfo struct {
	Name       string `json:"Name"`
	Version    string `json:"Version"`
	DicomAet   string `json:"DicomAet"`
	APIVersion int    `json:"ApiVersion"`
}

// seriesIDs decodes /studies/{id}/series, which is either a list of series
// objects or a bare list of ids depending on the expand option.
func seriesIDs(data []byte) ([]string, error) {
	var ids []string
	if err := json.Unmarshal(data, &ids); err == nil {
		return ids, nil
	}
	var objs []struct {
		ID string `json:"ID"`
	}
	if err := json.Unmarshal(data, &objs); err != nil {
		return nil, fmt.Errorf("decode series list: %w", err)
	}
	ids = make([]string, 0, len(objs))
	for _, o := range objs {
		if o.ID != "" {
			ids = append(ids, o.ID)
		}
	}
	return ids, nil
}

// simplifiedStrings keeps the string-valued entries of a simplified tag
// object. Sequences and nulls are dropped.
func simplifiedStrings(data []byte) (map[string]string, error) {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("decode simplified tags: %w", err)
	}
	out := make(map[string]string, len(raw))
	for k, v := range raw {
		var s string
		if err := json.Unmarshal(v, &s); err != nil {
			continue
		}
		out[k] = s
	}
	return out, nil
}
