package images

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"io"

	"github.com/disintegration/imaging"
	"github.com/lehigh-university-libraries/shelfscanner/internal/models"
)

// JPEGQuality is used when spine crops are sent to a provider
const JPEGQuality = 90

// ErrEmptyImage is returned when an upload carries no bytes
var ErrEmptyImage = errors.New("empty image")

// Decode reads an image and applies its EXIF orientation so that detector
// coordinates match what the user sees.
func Decode(r io.Reader) (image.Image, error) {
	img, err := imaging.Decode(r, imaging.AutoOrientation(true))
	if err != nil {
		return nil, fmt.Errorf("failed to decode image: %w", err)
	}
	return img, nil
}

// DecodeBytes decodes an in-memory image
func DecodeBytes(data []byte) (image.Image, error) {
	if len(data) == 0 {
		return nil, ErrEmptyImage
	}
	return Decode(bytes.NewReader(data))
}

// Open decodes an image file from disk
func Open(path string) (image.Image, error) {
	img, err := imaging.Open(path, imaging.AutoOrientation(true))
	if err != nil {
		return nil, fmt.Errorf("failed to open image %s: %w", path, err)
	}
	return img, nil
}

// Crop cuts the box out of img. The box is clamped to the image bounds.
func Crop(img image.Image, box models.BBox) image.Image {
	b := img.Bounds()
	rect := image.Rect(
		b.Min.X+box.X1, b.Min.Y+box.Y1,
		b.Min.X+box.X2, b.Min.Y+box.Y2,
	).Intersect(b)
	return imaging.Crop(img, rect)
}

// EncodeJPEG serializes img for transport to a vision model
func EncodeJPEG(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.JPEG, imaging.JPEGQuality(JPEGQuality)); err != nil {
		return nil, fmt.Errorf("failed to encode jpeg: %w", err)
	}
	return buf.Bytes(), nil
}

// Upright rotates tall spine crops so their text reads left to right.
// Spines are usually printed top to bottom, which is a 90 degree clockwise turn.
func Upright(img image.Image) image.Image {
	b := img.Bounds()
	if b.Dy() <= b.Dx() {
		return img
	}
	return imaging.Rotate270(img)
}

// Size returns the width and height of img
func Size(img image.Image) (int, int) {
	b := img.Bounds()
	return b.Dx(), b.Dy()
}
