//go:build tesseract

package ocr

import (
	"context"
	"fmt"
	"strings"

	"github.com/lehigh-university-libraries/shelfscanner/internal/images"
	"github.com/lehigh-university-libraries/shelfscanner/internal/providers"
	"github.com/otiai10/gosseract/v2"
)

// Available reports whether Tesseract support was compiled in
const Available = true

// Query runs Tesseract over the spine crop. The request model selects the
// Tesseract language, e.g. "eng".
func (t *Tesseract) Query(ctx context.Context, req providers.Request) (providers.Response, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	img, err := images.DecodeBytes(req.Image)
	if err != nil {
		return nil, err
	}
	upright, err := images.EncodeJPEG(images.Upright(img))
	if err != nil {
		return nil, err
	}

	client := gosseract.NewClient()
	defer client.Close()

	if err := client.SetLanguage(t.language(req.Model)); err != nil {
		return nil, fmt.Errorf("failed to set language: %w", err)
	}
	if err := client.SetPageSegMode(gosseract.PSM_SINGLE_BLOCK); err != nil {
		return nil, fmt.Errorf("failed to set page segmentation mode: %w", err)
	}
	if err := client.SetImageFromBytes(upright); err != nil {
		return nil, fmt.Errorf("failed to set image: %w", err)
	}

	text, err := client.Text()
	if err != nil {
		return nil, fmt.Errorf("OCR failed: %w", err)
	}

	confidence := 0.0
	boxes, err := client.GetBoundingBoxes(gosseract.RIL_WORD)
	if err == nil && len(boxes) > 0 {
		total := 0.0
		for _, box := range boxes {
			total += box.Confidence
		}
		confidence = total / float64(len(boxes)) / 100.0
	}

	return providers.Response{
		"answer":     strings.TrimSpace(text),
		"confidence": confidence,
	}, nil
}
