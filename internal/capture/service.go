// Package capture runs the full scan of one shelf photo: detect, read each
// spine, drop duplicates and look the titles up.
package capture

import (
	"context"
	"errors"
	"image"
	"log/slog"
	"math"
	"sort"
	"strings"
	"sync/atomic"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/lehigh-university-libraries/shelfscanner/internal/catalog"
	"github.com/lehigh-university-libraries/shelfscanner/internal/detection"
	"github.com/lehigh-university-libraries/shelfscanner/internal/extraction"
	"github.com/lehigh-university-libraries/shelfscanner/internal/images"
	"github.com/lehigh-university-libraries/shelfscanner/internal/metrics"
	"github.com/lehigh-university-libraries/shelfscanner/internal/models"
)

const (
	DefaultMaxLookupResults = 3
	MaxLookupResultsLimit   = 10

	// detect-only requests are logged once per this many requests
	logSampleEvery = 20
)

// Detector finds and crops spines
type Detector interface {
	Detect(ctx context.Context, img image.Image, minArea, maxDetections int) ([]models.Detection, error)
	DetectAll(ctx context.Context, img image.Image, minArea, maxDetections int) ([]image.Image, []models.Detection, error)
}

// Extractor reads one spine crop. It reports failures in the extraction itself.
type Extractor interface {
	Extract(ctx context.Context, img image.Image) models.Extraction
}

// Catalog looks titles up
type Catalog interface {
	HasAPIKey() bool
	Lookup(ctx context.Context, title, author string) (models.SearchResult, error)
}

// Options bound one capture
type Options struct {
	MinArea          int `validate:"gte=0"`
	MaxDetections    int `validate:"gte=0"`
	MaxLookupResults int
}

// DefaultOptions returns the options used when a request sets none
func DefaultOptions() Options {
	return Options{
		MinArea:          detection.DefaultMinArea,
		MaxDetections:    detection.DefaultMaxDetections,
		MaxLookupResults: DefaultMaxLookupResults,
	}
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate rejects negative limits
func (o Options) Validate() error {
	return validate.Struct(o)
}

func (o Options) clamped() Options {
	o.MaxLookupResults = max(1, min(MaxLookupResultsLimit, o.MaxLookupResults))
	return o
}

// Service owns the model handles and the catalog client
type Service struct {
	detector  *Handle[Detector]
	extractor *Handle[Extractor]
	catalog   Catalog

	requests atomic.Uint64
}

// NewService wires the pipeline. Handles are shared across requests.
func NewService(detector *Handle[Detector], extractor *Handle[Extractor], catalog Catalog) *Service {
	return &Service{detector: detector, extractor: extractor, catalog: catalog}
}

func (s *Service) nextRequestID() uint64 {
	return s.requests.Add(1)
}

// Detect runs detection only
func (s *Service) Detect(ctx context.Context, img image.Image, opts Options) (*models.DetectResult, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	detector, err := s.detector.Get(ctx)
	if err != nil {
		return nil, err
	}

	started := time.Now()
	detections, err := detector.Detect(ctx, img, opts.MinArea, opts.MaxDetections)
	if err != nil {
		return nil, err
	}
	inference := time.Since(started)
	metrics.ObserveStage("detect", inference)

	w, h := images.Size(img)
	result := &models.DetectResult{
		Boxes:       make([]models.DetectedBox, 0, len(detections)),
		Count:       len(detections),
		FrameWidth:  w,
		FrameHeight: h,
		InferenceMs: millis(inference),
	}
	for _, d := range detections {
		result.Boxes = append(result.Boxes, models.NewDetectedBox(d))
	}

	req := s.nextRequestID()
	if req%logSampleEvery == 0 || result.Count == 0 {
		slog.Info("Detected spines",
			"req", req,
			"count", result.Count,
			"min_area", opts.MinArea,
			"max_det", opts.MaxDetections,
			"size", []int{w, h},
			"inference_ms", result.InferenceMs,
			"top_conf", topConfidences(detections, 3),
		)
	}
	return result, nil
}

// Capture runs the whole pipeline on one frame. Only model acquisition and
// detection errors fail the request; extraction and lookup problems are
// reported per spine.
func (s *Service) Capture(ctx context.Context, img image.Image, opts Options) (*models.CaptureResult, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	opts = opts.clamped()

	detector, err := s.detector.Get(ctx)
	if err != nil {
		metrics.RecordCapture("model_unavailable", 0)
		return nil, err
	}
	extractor, err := s.extractor.Get(ctx)
	if err != nil {
		metrics.RecordCapture("model_unavailable", 0)
		return nil, err
	}
	hasKey := s.catalog.HasAPIKey()

	startedTotal := time.Now()
	crops, detections, err := detector.DetectAll(ctx, img, opts.MinArea, opts.MaxDetections)
	if err != nil {
		metrics.RecordCapture("error", 0)
		return nil, err
	}
	detectTime := time.Since(startedTotal)
	metrics.ObserveStage("detect", detectTime)

	startedSpines := time.Now()
	spines := make([]models.SpineResult, 0, len(detections))
	seen := make(map[string]bool)
	for i, det := range detections {
		ext := extractor.Extract(ctx, crops[i])

		if key := extraction.NormalizeTitle(ext.Title); key != "" && !extraction.IsSentinel(key) {
			if seen[key] {
				slog.Info("Dropping duplicate spine", "spine_index", det.Index, "title", ext.Title)
				metrics.RecordExtraction("duplicate")
				continue
			}
			seen[key] = true
		}
		metrics.RecordExtraction(extractionOutcome(ext))

		spines = append(spines, models.SpineResult{
			SpineIndex: det.Index,
			BBox:       det.BBox.Array(),
			Confidence: det.Confidence,
			Extraction: ext,
			Lookup:     s.lookup(ctx, ext, hasKey, opts.MaxLookupResults),
		})
	}
	spineTime := time.Since(startedSpines)
	total := time.Since(startedTotal)
	metrics.ObserveStage("extract_lookup", spineTime)
	metrics.ObserveStage("capture", total)

	w, h := images.Size(img)
	result := &models.CaptureResult{
		ID:          uuid.NewString(),
		Count:       len(spines),
		FrameWidth:  w,
		FrameHeight: h,
		Spines:      spines,
		TimingsMs: models.Timings{
			Detect:        millis(detectTime),
			ExtractLookup: millis(spineTime),
			Total:         millis(total),
		},
	}
	metrics.RecordCapture("ok", result.Count)

	slog.Info("Captured shelf",
		"req", s.nextRequestID(),
		"id", result.ID,
		"count", result.Count,
		"min_area", opts.MinArea,
		"max_det", opts.MaxDetections,
		"max_lookup_results", opts.MaxLookupResults,
		"detect_ms", result.TimingsMs.Detect,
		"extract_lookup_ms", result.TimingsMs.ExtractLookup,
		"total_ms", result.TimingsMs.Total,
	)
	return result, nil
}

// lookup never fails; problems become the Error string of the result
func (s *Service) lookup(ctx context.Context, ext models.Extraction, hasKey bool, limit int) models.Lookup {
	result := models.Lookup{Items: []models.LookupItem{}}

	title := strings.TrimSpace(ext.Title)
	if title == "" || extraction.IsSentinel(title) {
		return result
	}
	if !hasKey {
		metrics.RecordLookup("missing_key")
		msg := catalog.ErrMissingAPIKey.Error()
		result.Error = &msg
		return result
	}

	author := ""
	if ext.Author != nil {
		author = strings.TrimSpace(*ext.Author)
	}

	found, err := s.catalog.Lookup(ctx, title, author)
	if err != nil {
		slog.Warn("Lookup failed", "title", title, "err", err)
		msg := extraction.DescribeError(cause(err))
		result.Error = &msg
		return result
	}

	result.TotalItems = found.TotalItems
	if len(found.Items) > limit {
		found.Items = found.Items[:limit]
	}
	if found.Items != nil {
		result.Items = found.Items
	}
	return result
}

func extractionOutcome(ext models.Extraction) string {
	switch ext.Title {
	case extraction.TitleNoText:
		return "no_text"
	case extraction.TitleCouldNotParse:
		return "unparsed"
	case extraction.TitleExtractionError:
		return "failed"
	default:
		return "title"
	}
}

// cause drops the catalog's own wrapping so the reported type is the client's
func cause(err error) error {
	if next := errors.Unwrap(err); next != nil {
		return next
	}
	return err
}

func topConfidences(detections []models.Detection, n int) []float64 {
	scores := make([]float64, 0, len(detections))
	for _, d := range detections {
		scores = append(scores, math.Round(d.Confidence*1000)/1000)
	}
	sort.Sort(sort.Reverse(sort.Float64Slice(scores)))
	if len(scores) > n {
		scores = scores[:n]
	}
	return scores
}

// millis converts d to milliseconds rounded to two decimals
func millis(d time.Duration) float64 {
	return math.Round(float64(d)/float64(time.Millisecond)*100) / 100
}
