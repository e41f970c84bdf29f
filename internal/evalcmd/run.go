// Package evalcmd measures extraction accuracy against a labelled spine set.
package evalcmd

import (
	"context"
	"fmt"
	"image"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/lehigh-university-libraries/shelfscanner/internal/eval/dataset"
	"github.com/lehigh-university-libraries/shelfscanner/internal/eval/metrics"
	"github.com/lehigh-university-libraries/shelfscanner/internal/eval/results"
	"github.com/lehigh-university-libraries/shelfscanner/internal/extraction"
	"github.com/lehigh-university-libraries/shelfscanner/internal/images"
	"github.com/lehigh-university-libraries/shelfscanner/internal/models"
)

// Extractor reads one spine crop
type Extractor interface {
	Extract(ctx context.Context, img image.Image) models.Extraction
}

// Options describe one evaluation run
type Options struct {
	DatasetPath string
	Sample      int
	OutputDir   string
	Concurrency int

	Provider    string
	Model       string
	Temperature float64
}

// Run extracts every sampled spine, prints a summary to out and writes the
// YAML results file. It returns the path of that file.
func Run(ctx context.Context, ext Extractor, opts Options, out io.Writer) (string, error) {
	slog.Info("Starting evaluation run", "dataset", opts.DatasetPath, "provider", opts.Provider, "model", opts.Model)

	loader := dataset.NewLoader(opts.DatasetPath)
	records, err := loader.LoadSample(opts.Sample)
	if err != nil {
		return "", fmt.Errorf("failed to load dataset: %w", err)
	}
	slog.Info("Dataset loaded", "records", len(records))

	evaluated := evaluate(ctx, ext, loader.BaseDir(), records, max(1, opts.Concurrency))

	agg := metrics.AggregateEvaluationResults(evaluated, opts.Provider, opts.Model)
	agg.PrintSummary(out)

	path, err := results.SaveToYAML(opts.OutputDir, results.EvalConfig{
		Provider:    opts.Provider,
		Model:       opts.Model,
		Prompt:      extraction.Prompt,
		Temperature: opts.Temperature,
		DatasetPath: opts.DatasetPath,
	}, agg)
	if err != nil {
		return "", fmt.Errorf("failed to save results: %w", err)
	}

	fmt.Fprintf(out, "\nResults saved to: %s\n", path)
	return path, nil
}

// evaluate keeps results in dataset order regardless of completion order
func evaluate(ctx context.Context, ext Extractor, baseDir string, records []dataset.SpineRecord, concurrency int) []metrics.EvaluationResult {
	evaluated := make([]metrics.EvaluationResult, len(records))

	var wg sync.WaitGroup
	semaphore := make(chan struct{}, concurrency)

	for i, record := range records {
		wg.Add(1)
		go func(idx int, record dataset.SpineRecord) {
			defer wg.Done()
			semaphore <- struct{}{}
			defer func() { <-semaphore }()

			slog.Debug("Processing spine", "image", record.ImagePath, "progress", fmt.Sprintf("%d/%d", idx+1, len(records)))
			evaluated[idx] = processRecord(ctx, ext, baseDir, record)
		}(i, record)
	}

	wg.Wait()
	return evaluated
}

func processRecord(ctx context.Context, ext Extractor, baseDir string, record dataset.SpineRecord) (result metrics.EvaluationResult) {
	result = metrics.EvaluationResult{
		ImagePath: record.ImagePath,
		Title:     record.Title,
		Author:    record.Author,
	}

	started := time.Now()
	defer func() { result.ProcessingTime = time.Since(started) }()

	img, err := images.Open(record.ResolvePath(baseDir))
	if err != nil {
		result.Error = err.Error()
		return result
	}

	result.Extraction = ext.Extract(ctx, img)
	if result.Extraction.Title == extraction.TitleExtractionError {
		result.Error = result.Extraction.RawResponse
		return result
	}

	result.Comparison = metrics.CompareSpine(record.Title, record.Author, result.Extraction)
	return result
}
