package extraction

import (
	"context"
	"fmt"
	"image"
	"log/slog"
	"os"
	"path/filepath"
	"reflect"
	"sort"
	"strings"

	"github.com/lehigh-university-libraries/shelfscanner/internal/images"
	"github.com/lehigh-university-libraries/shelfscanner/internal/models"
	"github.com/lehigh-university-libraries/shelfscanner/internal/providers"
)

// Prompt asks the model for a bare JSON object so the first parse strategy
// usually succeeds.
const Prompt = `Read the text on this book spine. Respond with ONLY a JSON object in this exact format:
{"title": "...", "author": "..."}
Use null for author if it is not visible. Do not add any other text.`

// Settings control generation for each spine query
type Settings struct {
	Model       string
	Temperature float64
	MaxTokens   int
}

// Extractor reads title and author from spine crops with a vision provider
type Extractor struct {
	provider providers.Provider
	settings Settings
}

// NewExtractor wraps provider with the fixed spine prompt
func NewExtractor(provider providers.Provider, settings Settings) *Extractor {
	if settings.MaxTokens <= 0 {
		settings.MaxTokens = 100
	}
	return &Extractor{provider: provider, settings: settings}
}

// Extract reads one spine. Provider failures are reported through the
// extraction itself and never returned as errors.
func (e *Extractor) Extract(ctx context.Context, spine image.Image) models.Extraction {
	data, err := images.EncodeJPEG(spine)
	if err != nil {
		return failed(err)
	}

	response, err := e.provider.Query(ctx, providers.Request{
		Model:       e.settings.Model,
		Prompt:      Prompt,
		Temperature: e.settings.Temperature,
		MaxTokens:   e.settings.MaxTokens,
		Image:       data,
		MIMEType:    "image/jpeg",
	})
	if err != nil {
		slog.Error("Extraction backend failed", "err", err)
		return failed(err)
	}

	answer := response.Answer()
	extraction := ParseResponse(answer)
	extraction.RawResponse = answer
	extraction.Confidence = response.Confidence()
	return extraction
}

// ExtractBatch reads spines in order
func (e *Extractor) ExtractBatch(ctx context.Context, spines []image.Image) []models.Extraction {
	results := make([]models.Extraction, 0, len(spines))
	for _, spine := range spines {
		results = append(results, e.Extract(ctx, spine))
	}
	return results
}

// PathResult pairs an extraction with the spine image it came from
type PathResult struct {
	SpineIndex int               `yaml:"spineindex"`
	ImagePath  string            `yaml:"imagepath"`
	Extraction models.Extraction `yaml:"extraction"`
}

// ExtractFromPaths reads each spine image file. Files that cannot be
// decoded produce an extraction failure for that index.
func (e *Extractor) ExtractFromPaths(ctx context.Context, paths []string) []PathResult {
	results := make([]PathResult, 0, len(paths))
	for i, path := range paths {
		result := PathResult{SpineIndex: i, ImagePath: path}
		img, err := images.Open(path)
		if err != nil {
			result.Extraction = failed(err)
		} else {
			result.Extraction = e.Extract(ctx, img)
		}
		results = append(results, result)
	}
	return results
}

var imageExtensions = map[string]bool{
	".jpg": true, ".jpeg": true, ".png": true, ".webp": true, ".bmp": true,
}

// CollectImagePaths returns path itself, or the sorted image files directly
// inside it when path is a directory.
func CollectImagePaths(path string) ([]string, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("input path not found: %s", path)
	}
	if !info.IsDir() {
		return []string{path}, nil
	}

	entries, err := os.ReadDir(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read directory: %w", err)
	}

	var paths []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if imageExtensions[strings.ToLower(filepath.Ext(entry.Name()))] {
			paths = append(paths, filepath.Join(path, entry.Name()))
		}
	}
	sort.Strings(paths)
	return paths, nil
}

// failed builds the extraction reported when the backend errors
func failed(err error) models.Extraction {
	return models.Extraction{
		Title:       TitleExtractionError,
		Confidence:  0,
		RawResponse: DescribeError(err),
	}
}

// DescribeError formats err as "<type name>: <message>"
func DescribeError(err error) string {
	return errorType(err) + ": " + err.Error()
}

func errorType(err error) string {
	t := reflect.TypeOf(err)
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if t.Name() == "" {
		return "error"
	}
	return t.Name()
}
