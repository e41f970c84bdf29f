package capture

import (
	"context"
	"errors"
	"fmt"
	"image"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lehigh-university-libraries/shelfscanner/internal/catalog"
	"github.com/lehigh-university-libraries/shelfscanner/internal/extraction"
	"github.com/lehigh-university-libraries/shelfscanner/internal/models"
)

type fakeDetector struct {
	detections []models.Detection
	err        error
}

func (f *fakeDetector) Detect(ctx context.Context, img image.Image, minArea, maxDetections int) ([]models.Detection, error) {
	return f.detections, f.err
}

func (f *fakeDetector) DetectAll(ctx context.Context, img image.Image, minArea, maxDetections int) ([]image.Image, []models.Detection, error) {
	if f.err != nil {
		return nil, nil, f.err
	}
	crops := make([]image.Image, len(f.detections))
	for i := range crops {
		crops[i] = image.NewGray(image.Rect(0, 0, 10, 40))
	}
	return crops, f.detections, nil
}

// fakeExtractor returns its titles in order, one per call
type fakeExtractor struct {
	mu     sync.Mutex
	titles []string
	calls  int
}

func (f *fakeExtractor) Extract(ctx context.Context, img image.Image) models.Extraction {
	f.mu.Lock()
	defer f.mu.Unlock()
	title := f.titles[f.calls]
	f.calls++
	return models.Extraction{Title: title, Confidence: 0.9}
}

type lookupError struct{ msg string }

func (e *lookupError) Error() string { return e.msg }

type fakeCatalog struct {
	key     bool
	failFor map[string]bool
	items   int
	titles  []string
}

func (f *fakeCatalog) HasAPIKey() bool { return f.key }

func (f *fakeCatalog) Lookup(ctx context.Context, title, author string) (models.SearchResult, error) {
	f.titles = append(f.titles, title)
	if f.failFor[title] {
		return models.SearchResult{}, fmt.Errorf("google books search failed: %w", &lookupError{"connection reset"})
	}
	items := make([]models.LookupItem, f.items)
	for i := range items {
		items[i] = models.LookupItem{ID: fmt.Sprintf("%s-%d", title, i)}
	}
	return models.SearchResult{TotalItems: 100, Items: items}, nil
}

func detections(n int) []models.Detection {
	out := make([]models.Detection, n)
	for i := range out {
		out[i] = models.Detection{
			BBox:       models.BBox{X1: i * 50, Y1: 0, X2: i*50 + 40, Y2: 200},
			Confidence: 0.8,
			Index:      i,
		}
	}
	return out
}

func newService(det *fakeDetector, ext *fakeExtractor, cat Catalog) *Service {
	return NewService(Ready[Detector]("detector", det), Ready[Extractor]("extractor", ext), cat)
}

func frame() image.Image {
	return image.NewRGBA(image.Rect(0, 0, 640, 480))
}

func TestCaptureDropsDuplicateTitles(t *testing.T) {
	ext := &fakeExtractor{titles: []string{"Dune", "  DUNE ", "Emma"}}
	cat := &fakeCatalog{key: true, items: 1}
	svc := newService(&fakeDetector{detections: detections(3)}, ext, cat)

	got, err := svc.Capture(context.Background(), frame(), DefaultOptions())
	require.NoError(t, err)

	require.Len(t, got.Spines, 2)
	assert.Equal(t, 2, got.Count)
	assert.Equal(t, 0, got.Spines[0].SpineIndex)
	assert.Equal(t, 2, got.Spines[1].SpineIndex)
	assert.Equal(t, "Emma", got.Spines[1].Extraction.Title)
	assert.Equal(t, []string{"Dune", "Emma"}, cat.titles)
	assert.Equal(t, 640, got.FrameWidth)
	assert.Equal(t, 480, got.FrameHeight)
	assert.NotEmpty(t, got.ID)
}

func TestCaptureKeepsRepeatedSentinels(t *testing.T) {
	ext := &fakeExtractor{titles: []string{extraction.TitleNoText, extraction.TitleNoText}}
	cat := &fakeCatalog{key: true}
	svc := newService(&fakeDetector{detections: detections(2)}, ext, cat)

	got, err := svc.Capture(context.Background(), frame(), DefaultOptions())
	require.NoError(t, err)

	require.Len(t, got.Spines, 2)
	assert.Empty(t, cat.titles, "sentinel titles must not be looked up")
	for _, s := range got.Spines {
		assert.Equal(t, 0, s.Lookup.TotalItems)
		assert.NotNil(t, s.Lookup.Items)
		assert.Empty(t, s.Lookup.Items)
		assert.Nil(t, s.Lookup.Error)
	}
}

func TestCaptureIsolatesLookupFailure(t *testing.T) {
	ext := &fakeExtractor{titles: []string{"Dune", "Emma", "Walden"}}
	cat := &fakeCatalog{key: true, items: 2, failFor: map[string]bool{"Emma": true}}
	svc := newService(&fakeDetector{detections: detections(3)}, ext, cat)

	got, err := svc.Capture(context.Background(), frame(), DefaultOptions())
	require.NoError(t, err)
	require.Len(t, got.Spines, 3)

	failed := got.Spines[1].Lookup
	require.NotNil(t, failed.Error)
	assert.Equal(t, "lookupError: connection reset", *failed.Error)
	assert.Empty(t, failed.Items)
	assert.Equal(t, 0, failed.TotalItems)

	for _, i := range []int{0, 2} {
		ok := got.Spines[i].Lookup
		assert.Nil(t, ok.Error)
		assert.Len(t, ok.Items, 2)
		assert.Equal(t, 100, ok.TotalItems)
	}
}

func TestCaptureMissingAPIKey(t *testing.T) {
	ext := &fakeExtractor{titles: []string{"Dune", extraction.TitleExtractionError}}
	cat := &fakeCatalog{key: false}
	svc := newService(&fakeDetector{detections: detections(2)}, ext, cat)

	got, err := svc.Capture(context.Background(), frame(), DefaultOptions())
	require.NoError(t, err)
	require.Len(t, got.Spines, 2)

	require.NotNil(t, got.Spines[0].Lookup.Error)
	assert.Equal(t, "missing_api_key: "+catalog.MissingAPIKeyMessage, *got.Spines[0].Lookup.Error)
	assert.Nil(t, got.Spines[1].Lookup.Error)
	assert.Empty(t, cat.titles)
}

func TestCaptureLookupResultLimit(t *testing.T) {
	tests := []struct {
		name  string
		limit int
		want  int
	}{
		{"requested", 2, 2},
		{"clamped up", 0, 1},
		{"clamped down", 50, 10},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ext := &fakeExtractor{titles: []string{"Dune"}}
			cat := &fakeCatalog{key: true, items: 20}
			svc := newService(&fakeDetector{detections: detections(1)}, ext, cat)

			opts := DefaultOptions()
			opts.MaxLookupResults = tt.limit
			got, err := svc.Capture(context.Background(), frame(), opts)
			require.NoError(t, err)
			assert.Len(t, got.Spines[0].Lookup.Items, tt.want)
			assert.Equal(t, 100, got.Spines[0].Lookup.TotalItems)
		})
	}
}

type boomError struct{}

func (boomError) Error() string { return "weights not found" }

func TestCaptureModelUnavailable(t *testing.T) {
	calls := 0
	detector := NewHandle("detector", func(ctx context.Context) (Detector, error) {
		calls++
		if calls == 1 {
			return nil, boomError{}
		}
		return &fakeDetector{detections: detections(1)}, nil
	})
	ext := &fakeExtractor{titles: []string{"Dune"}}
	svc := NewService(detector, Ready[Extractor]("extractor", ext), &fakeCatalog{key: true})

	got, err := svc.Capture(context.Background(), frame(), DefaultOptions())
	assert.Nil(t, got)

	var unavailable *ModelUnavailableError
	require.True(t, errors.As(err, &unavailable))
	assert.Equal(t, "detector", unavailable.Component)
	assert.Equal(t, "boomError: weights not found", unavailable.Message())
	assert.Equal(t, 0, ext.calls)

	got, err = svc.Capture(context.Background(), frame(), DefaultOptions())
	require.NoError(t, err, "a failed build must not be memoized")
	assert.Equal(t, 1, got.Count)
	assert.Equal(t, 2, calls)

	_, err = svc.Detect(context.Background(), frame(), DefaultOptions())
	require.NoError(t, err)
	assert.Equal(t, 2, calls, "a built detector is reused")
}

func TestCaptureDetectionError(t *testing.T) {
	boom := errors.New("backend down")
	svc := newService(&fakeDetector{err: boom}, &fakeExtractor{}, &fakeCatalog{key: true})

	_, err := svc.Capture(context.Background(), frame(), DefaultOptions())
	require.ErrorIs(t, err, boom)

	var unavailable *ModelUnavailableError
	assert.False(t, errors.As(err, &unavailable))
}

func TestCaptureRejectsNegativeOptions(t *testing.T) {
	svc := newService(&fakeDetector{}, &fakeExtractor{}, &fakeCatalog{})

	opts := DefaultOptions()
	opts.MinArea = -1
	_, err := svc.Capture(context.Background(), frame(), opts)
	assert.Error(t, err)

	opts = DefaultOptions()
	opts.MaxDetections = -5
	_, err = svc.Detect(context.Background(), frame(), opts)
	assert.Error(t, err)
}

func TestDetect(t *testing.T) {
	svc := newService(&fakeDetector{detections: detections(2)}, &fakeExtractor{}, &fakeCatalog{})

	got, err := svc.Detect(context.Background(), frame(), DefaultOptions())
	require.NoError(t, err)

	assert.Equal(t, 2, got.Count)
	require.Len(t, got.Boxes, 2)
	box := got.Boxes[1]
	assert.Equal(t, [4]int{50, 0, 90, 200}, box.BBox)
	assert.Equal(t, 40, box.W)
	assert.Equal(t, 200, box.H)
	assert.Equal(t, 50, box.X)
	assert.GreaterOrEqual(t, got.InferenceMs, 0.0)
}

func TestMillisRoundsToTwoDecimals(t *testing.T) {
	assert.Equal(t, 1.23, millis(1234567))
	assert.Equal(t, 0.0, millis(0))
}
