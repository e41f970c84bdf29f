package gemini

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/goccy/go-json"
	"github.com/google/generative-ai-go/genai"
	"github.com/lehigh-university-libraries/shelfscanner/internal/providers"
	"google.golang.org/api/option"
)

// ErrMissingAPIKey is returned when no Gemini key is configured
var ErrMissingAPIKey = errors.New("GEMINI_API_KEY environment variable not set")

// Gemini is a provider for Google Gemini
type Gemini struct {
	APIKey string
}

// New returns a new Gemini provider
func New(apiKey string) *Gemini {
	return &Gemini{APIKey: apiKey}
}

// Query sends the prompt and image as a single multimodal turn
func (g *Gemini) Query(ctx context.Context, req providers.Request) (providers.Response, error) {
	text, err := g.generate(ctx, req, false)
	if err != nil {
		return nil, err
	}
	return providers.TextResponse(text), nil
}

func (g *Gemini) generate(ctx context.Context, req providers.Request, jsonOnly bool) (string, error) {
	if g.APIKey == "" {
		return "", ErrMissingAPIKey
	}

	client, err := genai.NewClient(ctx, option.WithAPIKey(g.APIKey))
	if err != nil {
		return "", fmt.Errorf("failed to create new gemini client: %w", err)
	}
	defer client.Close()

	model := client.GenerativeModel(req.Model)
	model.SetTemperature(float32(req.Temperature))
	if req.MaxTokens > 0 {
		model.SetMaxOutputTokens(int32(req.MaxTokens))
	}
	if jsonOnly {
		model.ResponseMIMEType = "application/json"
	}

	parts := []genai.Part{genai.Text(req.Prompt)}
	if len(req.Image) > 0 {
		parts = append(parts, &genai.Blob{MIMEType: req.ImageMIMEType(), Data: req.Image})
	}

	resp, err := model.GenerateContent(ctx, parts...)
	if err != nil {
		return "", fmt.Errorf("failed to generate content: %w", err)
	}

	if len(resp.Candidates) == 0 {
		return "", fmt.Errorf("no candidates returned from Gemini")
	}

	candidate := resp.Candidates[0]
	if candidate.Content == nil || len(candidate.Content.Parts) == 0 {
		return "", fmt.Errorf("empty content returned from Gemini")
	}

	var sb strings.Builder
	for _, part := range candidate.Content.Parts {
		if txt, ok := part.(genai.Text); ok {
			sb.WriteString(string(txt))
		}
	}
	if sb.Len() == 0 {
		return "", fmt.Errorf("unexpected response format from Gemini")
	}
	return sb.String(), nil
}

// Box is a detection on Gemini's normalized 0-1000 grid
type Box struct {
	YMin       int
	XMin       int
	YMax       int
	XMax       int
	Label      string
	Confidence float64
}

const boxPrompt = `Detect every %s in this photo of a bookshelf.
Return ONLY a JSON array. Each element must be {"box_2d": [ymin, xmin, ymax, xmax], "label": "%s", "confidence": <0..1>}
with coordinates normalized to 0-1000. Return [] if none are visible.`

// DetectBoxes asks the model for bounding boxes of object in the image
func (g *Gemini) DetectBoxes(ctx context.Context, model string, image []byte, object string) ([]Box, error) {
	text, err := g.generate(ctx, providers.Request{
		Model:  model,
		Prompt: fmt.Sprintf(boxPrompt, object, object),
		Image:  image,
	}, true)
	if err != nil {
		return nil, err
	}
	return ParseBoxes(text)
}

// ParseBoxes decodes a box_2d JSON array, tolerating a surrounding code fence
func ParseBoxes(text string) ([]Box, error) {
	text = stripCodeFences(text)

	var raw []struct {
		Box2D      []float64 `json:"box_2d"`
		Label      string    `json:"label"`
		Confidence *float64  `json:"confidence"`
	}
	if err := json.Unmarshal([]byte(text), &raw); err != nil {
		return nil, fmt.Errorf("gemini detect: bad JSON: %w", err)
	}

	boxes := make([]Box, 0, len(raw))
	for _, r := range raw {
		if len(r.Box2D) != 4 {
			continue
		}
		confidence := 1.0
		if r.Confidence != nil {
			confidence = *r.Confidence
		}
		boxes = append(boxes, Box{
			YMin:       int(r.Box2D[0]),
			XMin:       int(r.Box2D[1]),
			YMax:       int(r.Box2D[2]),
			XMax:       int(r.Box2D[3]),
			Label:      r.Label,
			Confidence: confidence,
		})
	}
	return boxes, nil
}

func stripCodeFences(s string) string {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}
