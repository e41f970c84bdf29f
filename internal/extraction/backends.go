package extraction

import (
	"context"
	"fmt"

	"github.com/lehigh-university-libraries/shelfscanner/internal/config"
	"github.com/lehigh-university-libraries/shelfscanner/internal/gemini"
	"github.com/lehigh-university-libraries/shelfscanner/internal/moondream"
	"github.com/lehigh-university-libraries/shelfscanner/internal/ocr"
	"github.com/lehigh-university-libraries/shelfscanner/internal/ollama"
	"github.com/lehigh-university-libraries/shelfscanner/internal/openai"
	"github.com/lehigh-university-libraries/shelfscanner/internal/providers"
)

// NewProvider builds the configured extraction backend. It fails when the
// backend cannot serve requests, so callers can report the model as
// unavailable up front.
func NewProvider(ctx context.Context, cfg *config.Config) (providers.Provider, error) {
	p := cfg.Providers
	switch cfg.Extract.Backend {
	case "ollama":
		o := ollama.New(p.OllamaURL)
		if err := o.CheckModel(ctx, cfg.ExtractModel()); err != nil {
			return nil, err
		}
		return o, nil
	case "openai":
		if p.OpenAIAPIKey == "" {
			return nil, openai.ErrMissingAPIKey
		}
		return openai.New(p.OpenAIAPIKey, p.OpenAIBaseURL), nil
	case "gemini":
		if p.GeminiAPIKey == "" {
			return nil, gemini.ErrMissingAPIKey
		}
		return gemini.New(p.GeminiAPIKey), nil
	case "moondream":
		return moondream.New(p.MoondreamURL, p.MoondreamAPIKey), nil
	case "tesseract":
		if !ocr.Available {
			return nil, ocr.ErrNotCompiled
		}
		return ocr.New(cfg.ExtractModel()), nil
	default:
		return nil, fmt.Errorf("unsupported extraction backend: %s", cfg.Extract.Backend)
	}
}

// New builds an extractor for the configured backend and model
func New(ctx context.Context, cfg *config.Config) (*Extractor, error) {
	provider, err := NewProvider(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return NewExtractor(provider, Settings{
		Model:       cfg.ExtractModel(),
		Temperature: cfg.Extract.Temperature,
		MaxTokens:   cfg.Extract.MaxTokens,
	}), nil
}
