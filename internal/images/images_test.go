package images

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"net/http"
	"net/http/httptest"
	"net/netip"
	"testing"

	"github.com/lehigh-university-libraries/shelfscanner/internal/models"
)

func testImage(w, h int) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.NRGBA{R: uint8(x), G: uint8(y), B: 128, A: 255})
		}
	}
	return img
}

func pngBytes(t *testing.T, img image.Image) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func TestCrop(t *testing.T) {
	img := testImage(100, 50)

	tests := []struct {
		name  string
		box   models.BBox
		wantW int
		wantH int
	}{
		{"inside", models.BBox{X1: 10, Y1: 5, X2: 30, Y2: 45}, 20, 40},
		{"clamped", models.BBox{X1: 90, Y1: 40, X2: 120, Y2: 80}, 10, 10},
		{"negative origin", models.BBox{X1: -10, Y1: -10, X2: 10, Y2: 10}, 10, 10},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w, h := Size(Crop(img, tt.box))
			if w != tt.wantW || h != tt.wantH {
				t.Errorf("Crop() size = %dx%d, want %dx%d", w, h, tt.wantW, tt.wantH)
			}
		})
	}
}

func TestUpright(t *testing.T) {
	w, h := Size(Upright(testImage(20, 80)))
	if w != 80 || h != 20 {
		t.Errorf("Expected tall crop rotated to 80x20, got %dx%d", w, h)
	}

	w, h = Size(Upright(testImage(80, 20)))
	if w != 80 || h != 20 {
		t.Errorf("Expected wide crop untouched, got %dx%d", w, h)
	}
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	data, err := EncodeJPEG(testImage(32, 16))
	if err != nil {
		t.Fatalf("EncodeJPEG() error: %v", err)
	}

	img, err := DecodeBytes(data)
	if err != nil {
		t.Fatalf("DecodeBytes() error: %v", err)
	}
	if w, h := Size(img); w != 32 || h != 16 {
		t.Errorf("Expected 32x16, got %dx%d", w, h)
	}
}

func TestDecodeBytesErrors(t *testing.T) {
	if _, err := DecodeBytes(nil); !errors.Is(err, ErrEmptyImage) {
		t.Errorf("Expected ErrEmptyImage, got %v", err)
	}
	if _, err := DecodeBytes([]byte("not an image")); err == nil {
		t.Error("Expected decode error for garbage input")
	}
}

func TestFetcher(t *testing.T) {
	body := pngBytes(t, testImage(12, 8))
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/missing.png" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "image/png")
		_, _ = w.Write(body)
	}))
	defer srv.Close()

	f := NewFetcher()

	img, err := f.Load(context.Background(), srv.URL+"/shelf.png")
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if w, h := Size(img); w != 12 || h != 8 {
		t.Errorf("Expected 12x8, got %dx%d", w, h)
	}

	if _, err := f.Fetch(context.Background(), srv.URL+"/missing.png"); err == nil {
		t.Error("Expected error for 404 response")
	}
}

func TestPublicFetcherRejectsLoopback(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("Expected no request to reach a loopback server")
	}))
	defer srv.Close()

	_, err := NewPublicFetcher().FetchBytes(context.Background(), srv.URL+"/shelf.png")
	if !errors.Is(err, ErrBlockedAddress) {
		t.Fatalf("Expected ErrBlockedAddress, got %v", err)
	}
}

func TestIsPublicAddr(t *testing.T) {
	tests := []struct {
		addr string
		want bool
	}{
		{"8.8.8.8", true},
		{"2001:4860:4860::8888", true},
		{"127.0.0.1", false},
		{"::1", false},
		{"10.1.2.3", false},
		{"172.16.0.1", false},
		{"192.168.1.10", false},
		{"169.254.169.254", false},
		{"fe80::1", false},
		{"fd00::1", false},
		{"100.64.0.1", false},
		{"0.0.0.0", false},
		{"::ffff:127.0.0.1", false},
		{"224.0.0.1", false},
	}

	for _, tt := range tests {
		t.Run(tt.addr, func(t *testing.T) {
			if got := IsPublicAddr(netip.MustParseAddr(tt.addr)); got != tt.want {
				t.Errorf("IsPublicAddr(%s) = %v, want %v", tt.addr, got, tt.want)
			}
		})
	}
}

func TestIsURL(t *testing.T) {
	if !IsURL("https://example.org/a.jpg") || !IsURL("http://example.org/a.jpg") {
		t.Error("Expected http(s) sources to be URLs")
	}
	if IsURL("/tmp/a.jpg") {
		t.Error("Expected a path not to be a URL")
	}
}
