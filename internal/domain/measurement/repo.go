package measurement

import (
	"context"
	"errors"

	"github.com/kingprasham/dicom-c-sub004/internal/platform/dicomtree"
	"github.com/kingprasham/dicom-c-sub004/internal/platform/orthanc"
)

// ErrNoRepository is returned by history lookups when no archive is
// configured.
var ErrNoRepository = errors.New("extraction archive is not configured")

// TagSource provides the imaging-server lookups the extractor needs.
type TagSource interface {
	InstanceTags(ctx context.Context, instanceID string) (dicomtree.Dataset, error)
	SimplifiedTags(ctx context.Context, instanceID string) (map[string]string, error)
	StudySeries(ctx context.Context, studyID string) ([]string, error)
	Series(ctx context.Context, seriesID string) (*orthanc.SeriesInfo, error)
}

// ExtractionRepository archives successful extraction results.
type ExtractionRepository interface {
	Save(ctx context.Context, rec *ExtractionRecord) error
	ListByInstance(ctx context.Context, instanceID string, limit, offset int) ([]*ExtractionRecord, int, error)
}
