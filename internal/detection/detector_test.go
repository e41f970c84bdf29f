package detection

import (
	"context"
	"errors"
	"image"
	"image/color"
	"testing"

	"github.com/lehigh-university-libraries/shelfscanner/internal/config"
	"github.com/lehigh-university-libraries/shelfscanner/internal/gemini"
	"github.com/lehigh-university-libraries/shelfscanner/internal/models"
	"github.com/lehigh-university-libraries/shelfscanner/internal/moondream"
)

type fakeBackend struct {
	detections []models.Detection
	err        error
}

func (f *fakeBackend) Predict(ctx context.Context, img image.Image) ([]models.Detection, error) {
	return f.detections, f.err
}

func frame(w, h int) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.NRGBA{R: uint8(x), G: uint8(y), B: 80, A: 255})
		}
	}
	return img
}

func scored(x1, y1, x2, y2 int, confidence float64) models.Detection {
	d := det(x1, y1, x2, y2)
	d.Confidence = confidence
	return d
}

func TestDetectAll(t *testing.T) {
	backend := &fakeBackend{detections: []models.Detection{
		scored(100, 0, 140, 90, 0.9),
		scored(10, 0, 50, 90, 0.8),
		scored(60, 0, 65, 10, 0.9),   // area 50, too small
		scored(150, 0, 190, 90, 0.1), // below confidence
		scored(20, 100, 60, 190, 0.7),
	}}
	d := NewSpineDetector(backend, 0.15)

	crops, dets, err := d.DetectAll(context.Background(), frame(200, 200), DefaultMinArea, DefaultMaxDetections)
	if err != nil {
		t.Fatalf("DetectAll() error: %v", err)
	}

	want := [][4]int{{10, 0, 50, 90}, {100, 0, 140, 90}, {20, 100, 60, 190}}
	if len(dets) != len(want) || len(crops) != len(want) {
		t.Fatalf("Expected %d detections and crops, got %d and %d", len(want), len(dets), len(crops))
	}
	for i := range want {
		if dets[i].BBox.Array() != want[i] {
			t.Errorf("Detection %d = %v, want %v", i, dets[i].BBox.Array(), want[i])
		}
		if dets[i].Index != i {
			t.Errorf("Detection %d has index %d", i, dets[i].Index)
		}
		b := crops[i].Bounds()
		if b.Dx() != dets[i].BBox.Width() || b.Dy() != dets[i].BBox.Height() {
			t.Errorf("Crop %d is %dx%d, want %dx%d", i, b.Dx(), b.Dy(), dets[i].BBox.Width(), dets[i].BBox.Height())
		}
	}
}

func TestDetectTruncatesAfterOrdering(t *testing.T) {
	backend := &fakeBackend{detections: []models.Detection{
		scored(100, 0, 140, 90, 0.9),
		scored(50, 0, 90, 90, 0.9),
		scored(0, 0, 40, 90, 0.9),
	}}
	dets, err := NewSpineDetector(backend, 0).Detect(context.Background(), frame(200, 100), 0, 2)
	if err != nil {
		t.Fatalf("Detect() error: %v", err)
	}
	if len(dets) != 2 || dets[0].BBox.X1 != 0 || dets[1].BBox.X1 != 50 {
		t.Errorf("Expected the two leftmost spines, got %+v", dets)
	}
}

func TestDetectClampsCropsToFrame(t *testing.T) {
	backend := &fakeBackend{detections: []models.Detection{scored(180, 50, 260, 140, 0.9)}}
	crops, _, err := NewSpineDetector(backend, 0).DetectAll(context.Background(), frame(200, 100), 0, 10)
	if err != nil {
		t.Fatalf("DetectAll() error: %v", err)
	}
	if b := crops[0].Bounds(); b.Dx() != 20 || b.Dy() != 50 {
		t.Errorf("Expected clamped 20x50 crop, got %dx%d", b.Dx(), b.Dy())
	}
}

func TestDetectEmptyAndError(t *testing.T) {
	crops, dets, err := NewSpineDetector(&fakeBackend{}, 0).DetectAll(context.Background(), frame(10, 10), 0, 10)
	if err != nil || len(crops) != 0 || len(dets) != 0 {
		t.Errorf("Expected empty result, got %v %v %v", crops, dets, err)
	}

	boom := errors.New("boom")
	_, _, err = NewSpineDetector(&fakeBackend{err: boom}, 0).DetectAll(context.Background(), frame(10, 10), 0, 10)
	if !errors.Is(err, boom) {
		t.Errorf("Expected wrapped backend error, got %v", err)
	}
}

type fakeMoondream struct {
	objects []moondream.Object
	object  string
}

func (f *fakeMoondream) Detect(ctx context.Context, image []byte, mimeType, object string) ([]moondream.Object, error) {
	f.object = object
	return f.objects, nil
}

func TestMoondreamBackendScalesToPixels(t *testing.T) {
	client := &fakeMoondream{objects: []moondream.Object{{XMin: 0.1, YMin: 0.25, XMax: 0.2, YMax: 1.2}}}
	b := &MoondreamBackend{Client: client, Object: "book spine"}

	dets, err := b.Predict(context.Background(), frame(200, 100))
	if err != nil {
		t.Fatalf("Predict() error: %v", err)
	}
	if client.object != "book spine" {
		t.Errorf("Expected object prompt to be forwarded, got %q", client.object)
	}
	if len(dets) != 1 || dets[0].BBox.Array() != [4]int{20, 25, 40, 100} || dets[0].Confidence != 1 {
		t.Errorf("Unexpected detections %+v", dets)
	}
}

type fakeGemini struct{ boxes []gemini.Box }

func (f *fakeGemini) DetectBoxes(ctx context.Context, model string, image []byte, object string) ([]gemini.Box, error) {
	return f.boxes, nil
}

func TestGeminiBackendScalesGrid(t *testing.T) {
	b := &GeminiBackend{Client: &fakeGemini{boxes: []gemini.Box{
		{YMin: 100, XMin: 500, YMax: 900, XMax: 600, Confidence: 0.6},
	}}}

	dets, err := b.Predict(context.Background(), frame(200, 100))
	if err != nil {
		t.Fatalf("Predict() error: %v", err)
	}
	if len(dets) != 1 || dets[0].BBox.Array() != [4]int{100, 10, 120, 90} || dets[0].Confidence != 0.6 {
		t.Errorf("Unexpected detections %+v", dets)
	}
}

func TestNew(t *testing.T) {
	tests := []struct {
		name    string
		backend string
		key     string
		wantErr bool
	}{
		{"moondream", "moondream", "", false},
		{"edges", "edges", "", false},
		{"gemini without key", "gemini", "", true},
		{"gemini", "gemini", "k", false},
		{"unknown", "yolo", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &config.Config{}
			cfg.Detect.Backend = tt.backend
			cfg.Providers.GeminiAPIKey = tt.key
			_, err := New(context.Background(), cfg)
			if (err != nil) != tt.wantErr {
				t.Errorf("New() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
