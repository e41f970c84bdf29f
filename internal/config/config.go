package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// ConfigPathEnvVar points at an optional YAML settings file
const ConfigPathEnvVar = "BOOKSHELF_CONFIG"

const envPrefix = "bookshelf_"

// DefaultConfigPaths are searched when BOOKSHELF_CONFIG is unset
var DefaultConfigPaths = []string{
	"shelfscanner.yaml",
	"secrets/shelfscanner.yaml",
}

// Config holds every runtime setting of the scanner
type Config struct {
	Env         string `koanf:"env" validate:"oneof=development production test"`
	ScanEnabled bool   `koanf:"scan_enabled"`
	LogLevel    string `koanf:"log_level" validate:"oneof=debug info warn error"`
	LogFormat   string `koanf:"log_format" validate:"oneof=text json"`

	Server    ServerConfig    `koanf:"server"`
	Detect    DetectConfig    `koanf:"detect"`
	Extract   ExtractConfig   `koanf:"extract"`
	Lookup    LookupConfig    `koanf:"lookup"`
	Providers ProvidersConfig `koanf:"providers"`
}

type ServerConfig struct {
	AllowedOrigins string `koanf:"allowed_origins"`
	// RateLimit is the number of scan requests allowed per client IP per minute
	RateLimit       int   `koanf:"rate_limit" validate:"gte=0"`
	MaxUploadBytes  int64 `koanf:"max_upload_bytes" validate:"gt=0"`
	SessionCapacity int   `koanf:"session_capacity" validate:"gte=0"`
}

type DetectConfig struct {
	Backend    string  `koanf:"backend" validate:"oneof=moondream gemini edges"`
	Model      string  `koanf:"model"`
	Object     string  `koanf:"object" validate:"required"`
	Confidence float64 `koanf:"confidence" validate:"gte=0,lte=1"`
}

type ExtractConfig struct {
	Backend     string  `koanf:"backend" validate:"oneof=ollama openai gemini moondream tesseract"`
	Model       string  `koanf:"model"`
	Temperature float64 `koanf:"temperature" validate:"gte=0,lte=2"`
	MaxTokens   int     `koanf:"max_tokens" validate:"gt=0"`
}

type LookupConfig struct {
	APIKey     string        `koanf:"api_key"`
	BaseURL    string        `koanf:"base_url"`
	Timeout    time.Duration `koanf:"timeout" validate:"gt=0"`
	MaxResults int           `koanf:"max_results" validate:"min=1,max=40"`
	CacheDir   string        `koanf:"cache_dir"`
	CacheTTL   time.Duration `koanf:"cache_ttl" validate:"gte=0"`
}

type ProvidersConfig struct {
	OllamaURL       string `koanf:"ollama_url" validate:"required"`
	OpenAIAPIKey    string `koanf:"openai_api_key"`
	OpenAIBaseURL   string `koanf:"openai_base_url" validate:"required"`
	GeminiAPIKey    string `koanf:"gemini_api_key"`
	MoondreamAPIKey string `koanf:"moondream_api_key"`
	MoondreamURL    string `koanf:"moondream_url" validate:"required"`
}

func defaultConfig() Config {
	return Config{
		Env:         "development",
		ScanEnabled: true,
		LogLevel:    "info",
		LogFormat:   "text",
		Server: ServerConfig{
			AllowedOrigins:  "*",
			RateLimit:       30,
			MaxUploadBytes:  20 * 1024 * 1024,
			SessionCapacity: 100,
		},
		Detect: DetectConfig{
			Backend:    "moondream",
			Model:      "gemini-2.0-flash",
			Object:     "book spine",
			Confidence: 0.15,
		},
		Extract: ExtractConfig{
			Backend:     "ollama",
			Temperature: 0.1,
			MaxTokens:   100,
		},
		Lookup: LookupConfig{
			Timeout:    10 * time.Second,
			MaxResults: 5,
			CacheTTL:   24 * time.Hour,
		},
		Providers: ProvidersConfig{
			OllamaURL:     "http://localhost:11434",
			OpenAIBaseURL: "https://api.openai.com",
			MoondreamURL:  "https://api.moondream.ai",
		},
	}
}

// Load reads settings from defaults, an optional YAML file and the environment,
// in increasing priority.
func Load() (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(defaultConfig(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	if path := findConfigFile(); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", path, err)
		}
		slog.Debug("Loaded config file", "path", path)
	}

	if err := k.Load(env.ProviderWithValue("", ".", envTransform), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

func findConfigFile() string {
	if path := os.Getenv(ConfigPathEnvVar); path != "" {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	for _, path := range DefaultConfigPaths {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}

// unprefixed variables that keep their conventional names
var envAliases = map[string]string{
	"GOOGLE_BOOKS_API_KEY":  "lookup.api_key",
	"GOOGLE_BOOKS_BASE_URL": "lookup.base_url",
	"OLLAMA_URL":            "providers.ollama_url",
	"OPENAI_API_KEY":        "providers.openai_api_key",
	"OPENAI_BASE_URL":       "providers.openai_base_url",
	"GEMINI_API_KEY":        "providers.gemini_api_key",
	"MOONDREAM_API_KEY":     "providers.moondream_api_key",
	"MOONDREAM_URL":         "providers.moondream_url",
}

var envSections = []string{"server", "detect", "extract", "lookup", "providers"}

// legacy BOOKSHELF_* names mapped onto their sections
var envRenames = map[string]string{
	"allowed_origins": "server.allowed_origins",
	"detect_iou":      "",
	"detect_device":   "",
	"detect_classes":  "",
	"extract_device":  "",
	"model_path":      "",
}

// envTransform maps BOOKSHELF_LOOKUP_MAX_RESULTS to lookup.max_results and
// drops variables that do not belong to the scanner.
func envTransform(key, value string) (string, any) {
	if path, ok := envAliases[key]; ok {
		return path, value
	}

	lower := strings.ToLower(key)
	if !strings.HasPrefix(lower, envPrefix) {
		return "", nil
	}
	lower = strings.TrimPrefix(lower, envPrefix)
	if lower == "config" {
		return "", nil
	}

	path := lower
	if renamed, ok := envRenames[lower]; ok {
		path = renamed
	} else {
		for _, section := range envSections {
			if strings.HasPrefix(lower, section+"_") {
				path = section + "." + strings.TrimPrefix(lower, section+"_")
				break
			}
		}
	}
	if path == "" {
		return "", nil
	}

	switch path {
	case "scan_enabled":
		return path, ParseBool(value)
	case "lookup.timeout", "lookup.cache_ttl":
		if _, err := strconv.Atoi(strings.TrimSpace(value)); err == nil {
			return path, strings.TrimSpace(value) + "s"
		}
	case "env":
		return path, strings.ToLower(strings.TrimSpace(value))
	}
	return path, value
}

var trueValues = map[string]bool{"1": true, "true": true, "yes": true, "y": true, "on": true}

// ParseBool accepts 1/true/yes/y/on in any case; everything else is false
func ParseBool(raw string) bool {
	return trueValues[strings.ToLower(strings.TrimSpace(raw))]
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks field constraints and production guards
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return err
	}
	if c.Env == "production" {
		if len(c.Origins()) == 1 && c.Origins()[0] == "*" {
			return errors.New("BOOKSHELF_ALLOWED_ORIGINS must list explicit origins when BOOKSHELF_ENV=production")
		}
		if !c.HasLookupKey() {
			slog.Warn("GOOGLE_BOOKS_API_KEY is not set, spine lookups will report missing_api_key")
		}
	}
	return nil
}

// Origins splits the comma separated allowed origins; empty means "*"
func (c *Config) Origins() []string {
	raw := strings.TrimSpace(c.Server.AllowedOrigins)
	if raw == "" || raw == "*" {
		return []string{"*"}
	}
	var origins []string
	for _, chunk := range strings.Split(raw, ",") {
		if chunk = strings.TrimSpace(chunk); chunk != "" {
			origins = append(origins, chunk)
		}
	}
	return origins
}

// HasLookupKey reports whether a non-blank Google Books key is configured
func (c *Config) HasLookupKey() bool {
	return strings.TrimSpace(c.Lookup.APIKey) != ""
}

// ExtractModel returns the configured model or the backend's default
func (c *Config) ExtractModel() string {
	if c.Extract.Model != "" {
		return c.Extract.Model
	}
	switch c.Extract.Backend {
	case "openai":
		return "gpt-4o-mini"
	case "gemini":
		return "gemini-2.0-flash"
	case "moondream":
		return "moondream-2"
	case "tesseract":
		return "eng"
	default:
		return "moondream:latest"
	}
}
