package openai

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/goccy/go-json"
	"github.com/lehigh-university-libraries/shelfscanner/internal/providers"
)

func TestQuery(t *testing.T) {
	var body struct {
		Model    string `json:"model"`
		Messages []struct {
			Content []map[string]any `json:"content"`
		} `json:"messages"`
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer key" {
			t.Errorf("Missing bearer token")
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Error(err)
		}
		_, _ = w.Write([]byte(`{"choices": [{"message": {"content": "Middlemarch"}}]}`))
	}))
	defer srv.Close()

	resp, err := New("key", srv.URL).Query(context.Background(), providers.Request{
		Model:  "gpt-4o-mini",
		Prompt: "read",
		Image:  []byte("img"),
	})
	if err != nil {
		t.Fatalf("Query() error: %v", err)
	}
	if resp.Answer() != "Middlemarch" {
		t.Errorf("Unexpected answer %q", resp.Answer())
	}

	if len(body.Messages) != 1 || len(body.Messages[0].Content) != 2 {
		t.Fatalf("Expected text and image parts, got %+v", body.Messages)
	}
	imagePart, _ := body.Messages[0].Content[1]["image_url"].(map[string]any)
	url, _ := imagePart["url"].(string)
	if !strings.HasPrefix(url, "data:image/jpeg;base64,") {
		t.Errorf("Expected jpeg data URL, got %q", url)
	}
}

func TestQueryErrors(t *testing.T) {
	if _, err := New("", "").Query(context.Background(), providers.Request{}); !errors.Is(err, ErrMissingAPIKey) {
		t.Errorf("Expected ErrMissingAPIKey, got %v", err)
	}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"choices": []}`))
	}))
	defer srv.Close()

	if _, err := New("key", srv.URL).Query(context.Background(), providers.Request{}); err == nil {
		t.Error("Expected error for empty choices")
	}
}
