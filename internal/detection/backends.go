package detection

import (
	"context"
	"fmt"
	"image"

	"github.com/lehigh-university-libraries/shelfscanner/internal/config"
	"github.com/lehigh-university-libraries/shelfscanner/internal/gemini"
	"github.com/lehigh-university-libraries/shelfscanner/internal/images"
	"github.com/lehigh-university-libraries/shelfscanner/internal/models"
	"github.com/lehigh-university-libraries/shelfscanner/internal/moondream"
)

// New builds the spine detector selected by the configuration
func New(ctx context.Context, cfg *config.Config) (*SpineDetector, error) {
	var backend Backend
	switch cfg.Detect.Backend {
	case "moondream":
		backend = &MoondreamBackend{
			Client: moondream.New(cfg.Providers.MoondreamURL, cfg.Providers.MoondreamAPIKey),
			Object: cfg.Detect.Object,
		}
	case "gemini":
		if cfg.Providers.GeminiAPIKey == "" {
			return nil, gemini.ErrMissingAPIKey
		}
		backend = &GeminiBackend{
			Client: gemini.New(cfg.Providers.GeminiAPIKey),
			Model:  cfg.Detect.Model,
			Object: cfg.Detect.Object,
		}
	case "edges":
		backend = &EdgeBackend{}
	default:
		return nil, fmt.Errorf("unsupported detection backend: %s", cfg.Detect.Backend)
	}
	return NewSpineDetector(backend, cfg.Detect.Confidence), nil
}

type moondreamDetector interface {
	Detect(ctx context.Context, image []byte, mimeType, object string) ([]moondream.Object, error)
}

// MoondreamBackend asks the Moondream detect endpoint for spines.
// The endpoint reports no score, so every box has confidence 1.
type MoondreamBackend struct {
	Client moondreamDetector
	Object string
}

func (b *MoondreamBackend) Predict(ctx context.Context, img image.Image) ([]models.Detection, error) {
	data, err := images.EncodeJPEG(img)
	if err != nil {
		return nil, err
	}
	objects, err := b.Client.Detect(ctx, data, "image/jpeg", b.Object)
	if err != nil {
		return nil, err
	}

	w, h := images.Size(img)
	detections := make([]models.Detection, 0, len(objects))
	for i, o := range objects {
		detections = append(detections, models.Detection{
			BBox: models.BBox{
				X1: scale(o.XMin, w),
				Y1: scale(o.YMin, h),
				X2: scale(o.XMax, w),
				Y2: scale(o.YMax, h),
			},
			Confidence: 1.0,
			Index:      i,
		})
	}
	return detections, nil
}

type geminiDetector interface {
	DetectBoxes(ctx context.Context, model string, image []byte, object string) ([]gemini.Box, error)
}

// GeminiBackend asks a Gemini model for box_2d coordinates on a 0-1000 grid
type GeminiBackend struct {
	Client geminiDetector
	Model  string
	Object string
}

func (b *GeminiBackend) Predict(ctx context.Context, img image.Image) ([]models.Detection, error) {
	data, err := images.EncodeJPEG(img)
	if err != nil {
		return nil, err
	}
	boxes, err := b.Client.DetectBoxes(ctx, b.Model, data, b.Object)
	if err != nil {
		return nil, err
	}

	w, h := images.Size(img)
	detections := make([]models.Detection, 0, len(boxes))
	for i, box := range boxes {
		detections = append(detections, models.Detection{
			BBox: models.BBox{
				X1: scale(float64(box.XMin)/1000, w),
				Y1: scale(float64(box.YMin)/1000, h),
				X2: scale(float64(box.XMax)/1000, w),
				Y2: scale(float64(box.YMax)/1000, h),
			},
			Confidence: box.Confidence,
			Index:      i,
		})
	}
	return detections, nil
}

// scale maps a normalized coordinate onto [0, size]
func scale(v float64, size int) int {
	px := int(v*float64(size) + 0.5)
	return max(0, min(size, px))
}
