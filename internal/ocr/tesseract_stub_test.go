//go:build !tesseract

package ocr

import (
	"context"
	"errors"
	"testing"

	"github.com/lehigh-university-libraries/shelfscanner/internal/providers"
)

func TestQueryNotCompiled(t *testing.T) {
	if Available {
		t.Fatal("Expected tesseract to be unavailable without the build tag")
	}
	_, err := New("eng").Query(context.Background(), providers.Request{})
	if !errors.Is(err, ErrNotCompiled) {
		t.Errorf("Expected ErrNotCompiled, got %v", err)
	}
}
