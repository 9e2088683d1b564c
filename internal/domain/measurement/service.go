package measurement

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/kingprasham/dicom-c-sub004/internal/platform/dicomtree"
	"github.com/kingprasham/dicom-c-sub004/internal/platform/metrics"
	"github.com/kingprasham/dicom-c-sub004/internal/platform/orthanc"
)

// DefaultConcurrency bounds parallel Orthanc work within one request.
const DefaultConcurrency = 4

// Extractor runs measurement extraction against a TagSource.
type Extractor struct {
	src         TagSource
	logger      zerolog.Logger
	repo        ExtractionRepository
	metrics     *metrics.Metrics
	tracer      trace.Tracer
	concurrency int
	maxDepth    int
}

func NewExtractor(src TagSource, logger zerolog.Logger) *Extractor {
	return &Extractor{
		src:         src,
		logger:      logger.With().Str("component", "extractor").Logger(),
		tracer:      otel.Tracer("measurement"),
		concurrency: DefaultConcurrency,
		maxDepth:    MaxContentDepth,
	}
}

// SetRepository attaches an optional archive for successful results.
func (e *Extractor) SetRepository(repo ExtractionRepository) {
	e.repo = repo
}

// Repository returns the configured archive (may be nil).
func (e *Extractor) Repository() ExtractionRepository {
	return e.repo
}

// SetMetrics attaches optional Prometheus instruments.
func (e *Extractor) SetMetrics(m *metrics.Metrics) {
	e.metrics = m
}

// SetConcurrency sets the worker limit for batch and related-report fan-out.
func (e *Extractor) SetConcurrency(n int) {
	if n > 0 {
		e.concurrency = n
	}
}

// SetMaxDepth sets the Content Sequence recursion limit.
func (e *Extractor) SetMaxDepth(n int) {
	if n > 0 {
		e.maxDepth = n
	}
}

// Extract runs every extraction source for one instance. Failures are
// reported in the result, never returned.
func (e *Extractor) Extract(ctx context.Context, instanceID, studyID string) *Result {
	related := &relatedReports{}
	return e.extract(ctx, instanceID, studyID, related)
}

// ExtractBatch extracts each instance independently with bounded
// parallelism. Related reports for studyID are looked up once and shared.
func (e *Extractor) ExtractBatch(ctx context.Context, instanceIDs []string, studyID string) *BatchResult {
	e.metrics.RecordBatch(len(instanceIDs))

	related := &relatedReports{}
	results := make([]*Result, len(instanceIDs))

	var g errgroup.Group
	g.SetLimit(e.concurrency)
	for i, id := range instanceIDs {
		g.Go(func() error {
			results[i] = e.extract(ctx, id, studyID, related)
			return nil
		})
	}
	_ = g.Wait()

	out := &BatchResult{Success: true, Results: make(map[string]*Result, len(instanceIDs))}
	for i, id := range instanceIDs {
		out.Results[id] = results[i]
	}
	return out
}

// History returns archived extractions for an instance, newest first.
func (e *Extractor) History(ctx context.Context, instanceID string, limit, offset int) ([]*ExtractionRecord, int, error) {
	if e.repo == nil {
		return nil, 0, ErrNoRepository
	}
	recs, total, err := e.repo.ListByInstance(ctx, instanceID, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("list extractions for %s: %w", instanceID, err)
	}
	return recs, total, nil
}

func (e *Extractor) extract(ctx context.Context, instanceID, studyID string, related *relatedReports) (res *Result) {
	ctx, span := e.tracer.Start(ctx, "measurement.Extract", trace.WithAttributes(
		attribute.String("instance_id", instanceID),
		attribute.String("study_id", studyID),
	))
	defer span.End()

	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			e.logger.Error().
				Str("instance_id", instanceID).
				Interface("panic", r).
				Msg("extraction panicked")
			res = Failure(instanceID, fmt.Errorf("extraction failed: %v", r))
		}
		e.metrics.RecordExtraction(res.Success, time.Since(start))
		if !res.Success {
			span.SetAttributes(attribute.String("error", res.Error))
		}
	}()

	res, err := e.run(ctx, instanceID, studyID, related)
	if err != nil {
		e.logger.Warn().
			Err(err).
			Str("instance_id", instanceID).
			Msg("extraction failed")
		return Failure(instanceID, err)
	}

	for _, m := range res.Measurements {
		e.metrics.RecordMeasurement(m.Source)
	}
	e.logger.Info().
		Str("instance_id", instanceID).
		Str("study_id", studyID).
		Str("modality", res.Modality).
		Int("measurements", len(res.Measurements)).
		Dur("duration", time.Since(start)).
		Msg("extraction complete")

	e.archive(ctx, res, studyID)
	return res
}

func (e *Extractor) run(ctx context.Context, instanceID, studyID string, related *relatedReports) (*Result, error) {
	ds, err := e.src.InstanceTags(ctx, instanceID)
	if err != nil {
		return nil, fmt.Errorf("could not retrieve instance tags: %w", err)
	}

	sources := NewSources()
	sources.Metadata = ExtractMetadata(ds)

	modality := ds.String(dicomtree.Modality)
	if IsStructuredReport(modality, ds.String(dicomtree.SOPClassUID)) {
		sources.StructuredReport = append(sources.StructuredReport, e.walk(ds)...)
	}
	sources.GraphicAnnotations = append(sources.GraphicAnnotations, ExtractGraphicAnnotations(ds)...)
	sources.TextAnnotations = append(sources.TextAnnotations, ExtractTextAnnotations(ds)...)
	if ds.Has(dicomtree.SequenceOfUltrasoundRegions) {
		sources.RegionCalibration = ExtractRegionCalibration(ds)
	}

	simplified, err := e.src.SimplifiedTags(ctx, instanceID)
	if err != nil {
		e.logger.Debug().Err(err).Str("instance_id", instanceID).Msg("simplified tags unavailable")
	} else {
		sources.ParsedOverlay = append(sources.ParsedOverlay, ParseOverlayText(simplified)...)
	}

	if studyID != "" {
		sources.StructuredReport = append(sources.StructuredReport, related.get(ctx, e, studyID)...)
	}

	consolidated := Consolidate(sources)
	return &Result{
		Success:      true,
		InstanceID:   instanceID,
		Modality:     modality,
		Measurements: consolidated,
		Raw:          sources,
		Categories:   Categorize(consolidated),
	}, nil
}

func (e *Extractor) walk(ds dicomtree.Dataset) []Measurement {
	w := contentWalker{maxDepth: e.maxDepth}
	return w.walk(ds, nil, 0)
}

func (e *Extractor) archive(ctx context.Context, res *Result, studyID string) {
	if e.repo == nil {
		return
	}
	err := e.repo.Save(ctx, NewExtractionRecord(res, studyID))
	e.metrics.RecordArchiveWrite(err)
	if err != nil {
		e.logger.Error().Err(err).Str("instance_id", res.InstanceID).Msg("failed to archive extraction")
	}
}

// RelatedStructuredReports walks every SR instance of a study. Series and
// instances are fetched in parallel but results keep enumeration order.
// Lookups that fail are skipped.
func (e *Extractor) RelatedStructuredReports(ctx context.Context, studyID string) []Measurement {
	ctx, span := e.tracer.Start(ctx, "measurement.RelatedStructuredReports",
		trace.WithAttributes(attribute.String("study_id", studyID)))
	defer span.End()

	seriesIDs, err := e.src.StudySeries(ctx, studyID)
	if err != nil {
		e.logger.Warn().Err(err).Str("study_id", studyID).Msg("could not list study series")
		return nil
	}

	infos := make([]*orthanc.SeriesInfo, len(seriesIDs))
	var g errgroup.Group
	g.SetLimit(e.concurrency)
	for i, id := range seriesIDs {
		g.Go(func() error {
			defer e.recoverLookup("series_id", id)
			info, err := e.src.Series(ctx, id)
			if err != nil {
				e.logger.Debug().Err(err).Str("series_id", id).Msg("series lookup failed")
				return nil
			}
			infos[i] = info
			return nil
		})
	}
	_ = g.Wait()

	type job struct {
		instanceID string
		slot       *[]Measurement
	}
	var jobs []job
	slots := make([][][]Measurement, len(infos))
	for i, info := range infos {
		if info == nil || info.Modality != "SR" {
			continue
		}
		slots[i] = make([][]Measurement, len(info.Instances))
		for j, inst := range info.Instances {
			jobs = append(jobs, job{instanceID: inst, slot: &slots[i][j]})
		}
	}

	var ig errgroup.Group
	ig.SetLimit(e.concurrency)
	for _, j := range jobs {
		ig.Go(func() error {
			defer e.recoverLookup("instance_id", j.instanceID)
			ds, err := e.src.InstanceTags(ctx, j.instanceID)
			if err != nil {
				e.logger.Debug().Err(err).Str("instance_id", j.instanceID).Msg("related report lookup failed")
				return nil
			}
			*j.slot = e.walk(ds)
			return nil
		})
	}
	_ = ig.Wait()

	var out []Measurement
	for _, series := range slots {
		for _, ms := range series {
			out = append(out, ms...)
		}
	}
	return out
}

// recoverLookup stops a panic in a related-report goroutine. The slot it was
// filling stays empty.
func (e *Extractor) recoverLookup(key, id string) {
	if r := recover(); r != nil {
		e.logger.Error().
			Str(key, id).
			Interface("panic", r).
			Msg("related report lookup panicked")
	}
}

// relatedReports memoises the related-report lookup across a batch.
type relatedReports struct {
	once sync.Once
	ms   []Measurement
}

func (r *relatedReports) get(ctx context.Context, e *Extractor, studyID string) []Measurement {
	r.once.Do(func() {
		r.ms = e.RelatedStructuredReports(ctx, studyID)
	})
	return r.ms
}
