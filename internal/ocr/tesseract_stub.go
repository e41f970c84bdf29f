//go:build !tesseract

package ocr

import (
	"context"

	"github.com/lehigh-university-libraries/shelfscanner/internal/providers"
)

// Available reports whether Tesseract support was compiled in
const Available = false

func (t *Tesseract) Query(ctx context.Context, req providers.Request) (providers.Response, error) {
	return nil, ErrNotCompiled
}
