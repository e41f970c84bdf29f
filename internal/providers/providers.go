package providers

import (
	"context"
	"fmt"
	"strconv"
	"strings"
)

// Request is a single vision-language query about one image
type Request struct {
	Model       string
	Prompt      string
	Temperature float64
	MaxTokens   int
	Image       []byte
	MIMEType    string
}

// Response is the loosely typed payload a provider returns. Providers that
// only produce text return {"answer": text}.
type Response map[string]any

// Provider defines the interface for a vision-language backend
type Provider interface {
	Query(ctx context.Context, req Request) (Response, error)
}

// TextResponse wraps plain model output with zero confidence
func TextResponse(text string) Response {
	return Response{"answer": text, "confidence": 0.0}
}

// Answer is the first non-empty of answer, text and output, trimmed
func (r Response) Answer() string {
	for _, key := range []string{"answer", "text", "output"} {
		if v, ok := r[key]; ok && truthy(v) {
			return strings.TrimSpace(stringify(v))
		}
	}
	return ""
}

// Confidence is the first non-zero of confidence, score and probability,
// clamped to [0, 1]. Values that are not numeric count as zero.
func (r Response) Confidence() float64 {
	for _, key := range []string{"confidence", "score", "probability"} {
		v, ok := r[key]
		if !ok || !truthy(v) {
			continue
		}
		return clamp(toFloat(v))
	}
	return 0
}

func clamp(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

func truthy(v any) bool {
	switch t := v.(type) {
	case nil:
		return false
	case string:
		return t != ""
	case bool:
		return t
	case float64:
		return t != 0
	case float32:
		return t != 0
	case int:
		return t != 0
	case int64:
		return t != 0
	case []any:
		return len(t) > 0
	case map[string]any:
		return len(t) > 0
	default:
		return true
	}
}

func stringify(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	default:
		return fmt.Sprint(t)
	}
}

func toFloat(v any) float64 {
	switch t := v.(type) {
	case float64:
		return t
	case float32:
		return float64(t)
	case int:
		return float64(t)
	case int64:
		return float64(t)
	case bool:
		if t {
			return 1
		}
		return 0
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(t), 64)
		if err != nil {
			return 0
		}
		return f
	default:
		return 0
	}
}

// StatusError is returned when a provider answers with a non-200 status
type StatusError struct {
	Provider   string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s: received non-200 status code: %d - %s", e.Provider, e.StatusCode, e.Body)
}

// ImageMIMEType returns the request MIME type, defaulting to JPEG
func (r Request) ImageMIMEType() string {
	if r.MIMEType != "" {
		return r.MIMEType
	}
	return "image/jpeg"
}
