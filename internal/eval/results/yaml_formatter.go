package results

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/lehigh-university-libraries/shelfscanner/internal/eval/metrics"
)

// EvalConfig represents the configuration section of the eval YAML
type EvalConfig struct {
	Provider    string  `yaml:"provider"`
	Model       string  `yaml:"model"`
	Prompt      string  `yaml:"prompt"`
	Temperature float64 `yaml:"temperature"`
	DatasetPath string  `yaml:"datasetpath"`
	SampleSize  int     `yaml:"samplesize"`
	Timestamp   string  `yaml:"timestamp"`
}

// EvalResult is one spine in the results file
type EvalResult struct {
	ImagePath      string  `yaml:"imagepath"`
	Title          string  `yaml:"title"`
	Author         string  `yaml:"author,omitempty"`
	ExtractedTitle string  `yaml:"extractedtitle"`
	ExtractedAuthor    string  `yaml:"extractedauthor,omitempty"`
	Confidence     float64 `yaml:"confidence"`
	RawResponse    string  `yaml:"rawresponse,omitempty"`
	TitleScore     float64 `yaml:"titlescore"`
	TitleMethod    string  `yaml:"titlemethod"`
	AuthorScore    float64 `yaml:"authorscore"`
	AuthorMethod   string  `yaml:"authormethod"`
	OverallScore   float64 `yaml:"overallscore"`
	Error          string  `yaml:"error,omitempty"`
}

// EvalSpec represents the complete evaluation file
type EvalSpec struct {
	Config  EvalConfig   `yaml:"config"`
	Summary EvalSummary  `yaml:"summary"`
	Results []EvalResult `yaml:"results"`
}

// EvalSummary repeats the headline numbers of the run
type EvalSummary struct {
	Succeeded       int     `yaml:"succeeded"`
	Failed          int     `yaml:"failed"`
	TitleAccuracy   float64 `yaml:"titleaccuracy"`
	AuthorAccuracy  float64 `yaml:"authoraccuracy"`
	OverallAccuracy float64 `yaml:"overallaccuracy"`
}

// SaveToYAML writes the run to dir/<model>-<timestamp>.yaml and returns the path
func SaveToYAML(dir string, cfg EvalConfig, agg *metrics.AggregateResults) (string, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create %s directory: %w", dir, err)
	}

	if cfg.Timestamp == "" {
		cfg.Timestamp = time.Now().Format("2006-01-02_15-04-05")
	}
	cfg.SampleSize = agg.TotalRecords

	spec := EvalSpec{
		Config: cfg,
		Summary: EvalSummary{
			Succeeded:       agg.SuccessCount,
			Failed:          agg.FailureCount,
			TitleAccuracy:   agg.TitleAccuracy.AverageScore,
			AuthorAccuracy:  agg.AuthorAccuracy.AverageScore,
			OverallAccuracy: agg.OverallAccuracy,
		},
		Results: make([]EvalResult, 0, len(agg.Results)),
	}

	for _, r := range agg.Results {
		entry := EvalResult{
			ImagePath:      r.ImagePath,
			Title:          r.Title,
			Author:         r.Author,
			ExtractedTitle: r.Extraction.Title,
			Confidence:     r.Extraction.Confidence,
			RawResponse:    r.Extraction.RawResponse,
			Error:          r.Error,
		}
		if r.Extraction.Author != nil {
			entry.ExtractedAuthor = *r.Extraction.Author
		}
		if r.Comparison != nil {
			entry.TitleScore = r.Comparison.TitleMatch.Score
			entry.TitleMethod = r.Comparison.TitleMatch.Method
			entry.AuthorScore = r.Comparison.AuthorMatch.Score
			entry.AuthorMethod = r.Comparison.AuthorMatch.Method
			entry.OverallScore = r.Comparison.OverallScore
		}
		spec.Results = append(spec.Results, entry)
	}

	data, err := yaml.Marshal(&spec)
	if err != nil {
		return "", fmt.Errorf("failed to marshal YAML: %w", err)
	}

	// model names like llava:13b or org/model are not safe file names
	safeModel := strings.NewReplacer("/", "_", ":", "_").Replace(cfg.Model)
	filename := filepath.Join(dir, fmt.Sprintf("%s-%s.yaml", safeModel, cfg.Timestamp))
	if err := os.WriteFile(filename, data, 0644); err != nil {
		return "", fmt.Errorf("failed to write YAML file: %w", err)
	}

	return filename, nil
}
