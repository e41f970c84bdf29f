// Package detection finds book spines in a shelf photo and puts them in
// reading order.
package detection

import (
	"context"
	"fmt"
	"image"

	"github.com/lehigh-university-libraries/shelfscanner/internal/images"
	"github.com/lehigh-university-libraries/shelfscanner/internal/models"
)

const (
	// DefaultMinArea drops boxes smaller than this many square pixels
	DefaultMinArea = 250
	// DefaultMaxDetections caps the spines returned for one frame
	DefaultMaxDetections = 50
)

// Backend produces raw spine boxes in pixel coordinates of img
type Backend interface {
	Predict(ctx context.Context, img image.Image) ([]models.Detection, error)
}

// SpineDetector filters, orders and crops what a Backend finds
type SpineDetector struct {
	backend       Backend
	minConfidence float64
}

// NewSpineDetector wraps backend. Detections scoring below minConfidence are dropped.
func NewSpineDetector(backend Backend, minConfidence float64) *SpineDetector {
	return &SpineDetector{backend: backend, minConfidence: minConfidence}
}

// Detect returns the ordered detections without cropping
func (d *SpineDetector) Detect(ctx context.Context, img image.Image, minArea, maxDetections int) ([]models.Detection, error) {
	raw, err := d.backend.Predict(ctx, img)
	if err != nil {
		return nil, fmt.Errorf("spine detection failed: %w", err)
	}

	kept := make([]models.Detection, 0, len(raw))
	for _, det := range raw {
		if det.Confidence < d.minConfidence {
			continue
		}
		if det.BBox.Area() < minArea {
			continue
		}
		kept = append(kept, det)
	}

	ordered := SortReadingOrder(kept)
	if maxDetections >= 0 && len(ordered) > maxDetections {
		ordered = ordered[:maxDetections]
	}
	reindex(ordered)
	return ordered, nil
}

// DetectAll detects spines and returns one crop per detection, aligned by index
func (d *SpineDetector) DetectAll(ctx context.Context, img image.Image, minArea, maxDetections int) ([]image.Image, []models.Detection, error) {
	detections, err := d.Detect(ctx, img, minArea, maxDetections)
	if err != nil {
		return nil, nil, err
	}

	crops := make([]image.Image, len(detections))
	for i, det := range detections {
		crops[i] = images.Crop(img, det.BBox)
	}
	return crops, detections, nil
}
