package cmd

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/goccy/go-json"
	"gopkg.in/yaml.v3"

	"github.com/lehigh-university-libraries/shelfscanner/internal/capture"
	"github.com/lehigh-university-libraries/shelfscanner/internal/catalog"
	"github.com/lehigh-university-libraries/shelfscanner/internal/config"
	"github.com/lehigh-university-libraries/shelfscanner/internal/detection"
	"github.com/lehigh-university-libraries/shelfscanner/internal/extraction"
	"github.com/lehigh-university-libraries/shelfscanner/internal/lookupcache"
)

// newCatalog builds the Google Books client, with the badger cache when a
// cache directory is configured. The returned func releases the cache.
func newCatalog(ctx context.Context, cfg *config.Config) (*catalog.Client, func(), error) {
	var cache catalog.Cache
	cleanup := func() {}

	if cfg.Lookup.CacheDir != "" {
		c, err := lookupcache.Open(cfg.Lookup.CacheDir, cfg.Lookup.CacheTTL)
		if err != nil {
			return nil, nil, err
		}
		slog.Info("Lookup cache enabled", "dir", cfg.Lookup.CacheDir, "ttl", cfg.Lookup.CacheTTL)
		cache = c
		cleanup = func() {
			if err := c.Close(); err != nil {
				slog.Error("Unable to close lookup cache", "err", err)
			}
		}
	}

	client, err := catalog.NewFromConfig(ctx, cfg, cache)
	if err != nil {
		cleanup()
		return nil, nil, err
	}
	return client, cleanup, nil
}

// newScanService wires the capture pipeline. Models are built on first use.
func newScanService(cfg *config.Config, books *catalog.Client) *capture.Service {
	detector := capture.NewHandle("detector", func(ctx context.Context) (capture.Detector, error) {
		d, err := detection.New(ctx, cfg)
		if err != nil {
			return nil, err
		}
		slog.Info("Detector ready", "backend", cfg.Detect.Backend, "object", cfg.Detect.Object)
		return d, nil
	})
	extractor := capture.NewHandle("extractor", func(ctx context.Context) (capture.Extractor, error) {
		e, err := extraction.New(ctx, cfg)
		if err != nil {
			return nil, err
		}
		slog.Info("Extractor ready", "backend", cfg.Extract.Backend, "model", cfg.ExtractModel())
		return e, nil
	})

	if !books.HasAPIKey() {
		slog.Warn("GOOGLE_BOOKS_API_KEY is not set, lookups will report missing_api_key")
	}
	return capture.NewService(detector, extractor, books)
}

// writeOutput prints v as indented JSON or YAML
func writeOutput(w io.Writer, format string, v any) error {
	switch strings.ToLower(format) {
	case "json":
		data, err := json.MarshalIndent(v, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to encode JSON: %w", err)
		}
		_, err = fmt.Fprintln(w, string(data))
		return err
	case "yaml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(v); err != nil {
			return fmt.Errorf("failed to encode YAML: %w", err)
		}
		return enc.Close()
	default:
		return fmt.Errorf("unsupported output format: %s (supported: json, yaml)", format)
	}
}
