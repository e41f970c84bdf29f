// Package moondream is a client for the Moondream vision API, used both
// for spine detection and for reading spine text.
package moondream

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/lehigh-university-libraries/shelfscanner/internal/providers"
)

// Client talks to a Moondream cloud or local station endpoint
type Client struct {
	BaseURL    string
	APIKey     string
	HTTPClient *http.Client
}

// New returns a Moondream client
func New(baseURL, apiKey string) *Client {
	if baseURL == "" {
		baseURL = "https://api.moondream.ai"
	}
	return &Client{
		BaseURL:    strings.TrimRight(baseURL, "/"),
		APIKey:     apiKey,
		HTTPClient: &http.Client{Timeout: time.Minute},
	}
}

// Object is a detected region with coordinates normalized to [0, 1]
type Object struct {
	XMin float64 `json:"x_min"`
	YMin float64 `json:"y_min"`
	XMax float64 `json:"x_max"`
	YMax float64 `json:"y_max"`
}

// Detect returns every region matching object
func (c *Client) Detect(ctx context.Context, image []byte, mimeType, object string) ([]Object, error) {
	var out struct {
		Objects []Object `json:"objects"`
	}
	err := c.post(ctx, "/v1/detect", map[string]any{
		"image_url": dataURL(image, mimeType),
		"object":    object,
		"stream":    false,
	}, &out)
	if err != nil {
		return nil, err
	}
	return out.Objects, nil
}

// Query implements providers.Provider with the /v1/query endpoint
func (c *Client) Query(ctx context.Context, req providers.Request) (providers.Response, error) {
	body := map[string]any{
		"image_url": dataURL(req.Image, req.ImageMIMEType()),
		"question":  req.Prompt,
		"stream":    false,
		"settings": map[string]any{
			"temperature": req.Temperature,
			"max_tokens":  req.MaxTokens,
		},
	}

	var out map[string]any
	if err := c.post(ctx, "/v1/query", body, &out); err != nil {
		return nil, err
	}
	return providers.Response(out), nil
}

func (c *Client) post(ctx context.Context, path string, body any, out any) error {
	requestBody, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to marshal request body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+path, bytes.NewReader(requestBody))
	if err != nil {
		return fmt.Errorf("failed to create new request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.APIKey != "" {
		req.Header.Set("X-Moondream-Auth", c.APIKey)
	}

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(resp.Body)
		return &providers.StatusError{Provider: "moondream", StatusCode: resp.StatusCode, Body: string(b)}
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response body: %w", err)
	}
	return nil
}

func dataURL(image []byte, mimeType string) string {
	return "data:" + mimeType + ";base64," + base64.StdEncoding.EncodeToString(image)
}
