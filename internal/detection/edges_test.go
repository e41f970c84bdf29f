package detection

import (
	"context"
	"image"
	"image/color"
	"testing"
)

// stripes paints vertical bands of alternating dark and light colour
func stripes(w, h, width int) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	dark := color.NRGBA{R: 30, G: 30, B: 60, A: 255}
	light := color.NRGBA{R: 230, G: 220, B: 200, A: 255}
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			c := dark
			if (x/width)%2 == 1 {
				c = light
			}
			img.Set(x, y, c)
		}
	}
	return img
}

func TestEdgeBackendSplitsStripes(t *testing.T) {
	dets, err := (&EdgeBackend{}).Predict(context.Background(), stripes(300, 200, 30))
	if err != nil {
		t.Fatalf("Predict() error: %v", err)
	}
	if len(dets) != 10 {
		t.Fatalf("Expected 10 spine strips, got %d: %+v", len(dets), dets)
	}
	for i, d := range dets {
		if w := d.BBox.Width(); w < 25 || w > 35 {
			t.Errorf("Strip %d has width %d", i, w)
		}
		if d.Confidence <= 0 || d.Confidence > 1 {
			t.Errorf("Strip %d has confidence %v", i, d.Confidence)
		}
	}
}

func TestEdgeMapSeesBothEdgeDirections(t *testing.T) {
	// light on the left, dark on the right
	img := image.NewNRGBA(image.Rect(0, 0, 40, 10))
	for y := 0; y < 10; y++ {
		for x := 0; x < 40; x++ {
			c := color.NRGBA{R: 230, G: 220, B: 200, A: 255}
			if x >= 20 {
				c = color.NRGBA{R: 30, G: 30, B: 60, A: 255}
			}
			img.Set(x, y, c)
		}
	}

	profile := columnProfile(edgeMap(img), 0, 10)
	if profile[19] == 0 && profile[20] == 0 {
		t.Fatalf("Expected an edge at the light-to-dark boundary, got %v", profile)
	}
	if profile[5] != 0 || profile[35] != 0 {
		t.Errorf("Expected flat regions to have no edges, got %v", profile)
	}
}

func TestEdgeBackendBlankFrame(t *testing.T) {
	img := image.NewNRGBA(image.Rect(0, 0, 100, 100))
	dets, err := (&EdgeBackend{}).Predict(context.Background(), img)
	if err != nil {
		t.Fatalf("Predict() error: %v", err)
	}
	if len(dets) != 0 {
		t.Errorf("Expected no detections on a blank frame, got %+v", dets)
	}
}

func TestShelfBands(t *testing.T) {
	rows := make([]float64, 100)
	for i := range rows {
		rows[i] = 1
	}
	rows[50] = 40
	rows[51] = 40

	got := shelfBands(rows, 10)
	want := [][2]int{{0, 50}, {52, 100}}
	if len(got) != len(want) {
		t.Fatalf("shelfBands() = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("band %d = %v, want %v", i, got[i], want[i])
		}
	}
}

func TestFindPeaks(t *testing.T) {
	profile := []float64{0, 0, 9, 9, 0, 0, 0, 0, 0, 0, 5, 8, 0, 0, 0}
	got := findPeaks(profile, 4)
	if len(got) != 2 || got[0] != 2 || got[1] != 11 {
		t.Errorf("findPeaks() = %v, want [2 11]", got)
	}
}
