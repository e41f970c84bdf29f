package extraction

import (
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/lehigh-university-libraries/shelfscanner/internal/config"
	"github.com/lehigh-university-libraries/shelfscanner/internal/providers"
)

type fakeProvider struct {
	response providers.Response
	err      error
	requests []providers.Request
}

func (f *fakeProvider) Query(ctx context.Context, req providers.Request) (providers.Response, error) {
	f.requests = append(f.requests, req)
	return f.response, f.err
}

type timeoutError struct{}

func (timeoutError) Error() string { return "deadline exceeded" }

func spine() image.Image {
	img := image.NewNRGBA(image.Rect(0, 0, 20, 80))
	for y := 0; y < 80; y++ {
		for x := 0; x < 20; x++ {
			img.Set(x, y, color.NRGBA{R: 200, G: 40, B: 40, A: 255})
		}
	}
	return img
}

func TestExtract(t *testing.T) {
	provider := &fakeProvider{response: providers.Response{
		"answer":     ` {"title": "Dune", "author": "Frank Herbert"} `,
		"confidence": 1.7,
	}}
	e := NewExtractor(provider, Settings{Model: "moondream", Temperature: 0.1})

	got := e.Extract(context.Background(), spine())

	if got.Title != "Dune" || got.Author == nil || *got.Author != "Frank Herbert" {
		t.Errorf("Unexpected extraction %+v", got)
	}
	if got.Confidence != 1 {
		t.Errorf("Expected confidence clamped to 1, got %v", got.Confidence)
	}
	if got.RawResponse != `{"title": "Dune", "author": "Frank Herbert"}` {
		t.Errorf("Expected trimmed raw response, got %q", got.RawResponse)
	}

	if len(provider.requests) != 1 {
		t.Fatalf("Expected 1 request, got %d", len(provider.requests))
	}
	req := provider.requests[0]
	if req.Prompt != Prompt || req.MaxTokens != 100 || req.Model != "moondream" || len(req.Image) == 0 {
		t.Errorf("Unexpected request %+v", req)
	}
}

func TestExtractFallbackKeys(t *testing.T) {
	provider := &fakeProvider{response: providers.Response{"text": "Walden", "score": 0.4}}
	got := NewExtractor(provider, Settings{}).Extract(context.Background(), spine())

	if got.Title != "Walden" || got.Confidence != 0.4 {
		t.Errorf("Unexpected extraction %+v", got)
	}
}

func TestExtractBackendFailure(t *testing.T) {
	provider := &fakeProvider{err: timeoutError{}}
	got := NewExtractor(provider, Settings{}).Extract(context.Background(), spine())

	if got.Title != TitleExtractionError {
		t.Errorf("Expected %q, got %q", TitleExtractionError, got.Title)
	}
	if got.Author != nil || got.Confidence != 0 {
		t.Errorf("Expected nil author and zero confidence, got %+v", got)
	}
	if got.RawResponse != "timeoutError: deadline exceeded" {
		t.Errorf("Unexpected raw response %q", got.RawResponse)
	}
}

func TestExtractBatch(t *testing.T) {
	provider := &fakeProvider{response: providers.TextResponse("Emma")}
	got := NewExtractor(provider, Settings{}).ExtractBatch(context.Background(), []image.Image{spine(), spine()})

	if len(got) != 2 || got[0].Title != "Emma" || got[1].Title != "Emma" {
		t.Errorf("Unexpected batch %+v", got)
	}
}

func TestExtractFromPaths(t *testing.T) {
	dir := t.TempDir()

	good := filepath.Join(dir, "a.png")
	f, err := os.Create(good)
	if err != nil {
		t.Fatal(err)
	}
	if err := png.Encode(f, spine()); err != nil {
		t.Fatal(err)
	}
	f.Close()

	bad := filepath.Join(dir, "b.jpg")
	if err := os.WriteFile(bad, []byte("not an image"), 0644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0644); err != nil {
		t.Fatal(err)
	}

	paths, err := CollectImagePaths(dir)
	if err != nil {
		t.Fatalf("CollectImagePaths() error: %v", err)
	}
	if len(paths) != 2 || paths[0] != good || paths[1] != bad {
		t.Fatalf("Unexpected paths %v", paths)
	}

	provider := &fakeProvider{response: providers.TextResponse(`{"title": "Emma", "author": null}`)}
	results := NewExtractor(provider, Settings{}).ExtractFromPaths(context.Background(), paths)

	if len(results) != 2 {
		t.Fatalf("Expected 2 results, got %d", len(results))
	}
	if results[0].SpineIndex != 0 || results[0].Extraction.Title != "Emma" {
		t.Errorf("Unexpected first result %+v", results[0])
	}
	if results[1].SpineIndex != 1 || results[1].Extraction.Title != TitleExtractionError {
		t.Errorf("Expected decode failure for second result, got %+v", results[1])
	}

	if _, err := CollectImagePaths(filepath.Join(dir, "missing")); err == nil {
		t.Error("Expected error for missing path")
	}
}

func TestDescribeError(t *testing.T) {
	if got := DescribeError(timeoutError{}); got != "timeoutError: deadline exceeded" {
		t.Errorf("DescribeError() = %q", got)
	}
	if got := DescribeError(errors.New("boom")); !strings.HasSuffix(got, ": boom") {
		t.Errorf("DescribeError() = %q", got)
	}
}

func TestNewProvider(t *testing.T) {
	tests := []struct {
		name    string
		backend string
		mutate  func(*config.Config)
		wantErr bool
	}{
		{"openai without key", "openai", nil, true},
		{"openai with key", "openai", func(c *config.Config) { c.Providers.OpenAIAPIKey = "k" }, false},
		{"gemini without key", "gemini", nil, true},
		{"moondream", "moondream", nil, false},
		{"unknown", "yolo", nil, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &config.Config{}
			cfg.Extract.Backend = tt.backend
			if tt.mutate != nil {
				tt.mutate(cfg)
			}
			_, err := NewProvider(context.Background(), cfg)
			if (err != nil) != tt.wantErr {
				t.Errorf("NewProvider() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
