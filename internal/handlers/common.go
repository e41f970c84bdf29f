package handlers

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/goccy/go-json"

	"github.com/lehigh-university-libraries/shelfscanner/internal/config"
	"github.com/lehigh-university-libraries/shelfscanner/internal/images"
	"github.com/lehigh-university-libraries/shelfscanner/internal/models"
	"github.com/lehigh-university-libraries/shelfscanner/internal/storage"
)

// Searcher is the free-text side of the catalog client
type Searcher interface {
	HasAPIKey() bool
	Search(ctx context.Context, query string, maxResults int) (models.SearchResult, error)
}

type Handler struct {
	cfg          *config.Config
	scanner      Scanner
	books        Searcher
	sessionStore *storage.SessionStore
	fetcher      *images.Fetcher
}

func New(cfg *config.Config, scanner Scanner, books Searcher) *Handler {
	return &Handler{
		cfg:          cfg,
		scanner:      scanner,
		books:        books,
		sessionStore: storage.New(cfg.Server.SessionCapacity),
		fetcher:      images.NewPublicFetcher(),
	}
}

// errorBody is the JSON shape of every error response
type errorBody struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

// Response helpers
func (h *Handler) writeJSON(w http.ResponseWriter, status int, data any) {
	body, err := json.Marshal(data)
	if err != nil {
		slog.Error("Unable to encode JSON response", "err", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if _, err := w.Write(append(body, '\n')); err != nil {
		slog.Error("Unable to write JSON response", "err", err)
	}
}

func (h *Handler) writeError(w http.ResponseWriter, status int, code, message string) {
	if status >= http.StatusInternalServerError {
		slog.Error("Request failed", "error", code, "message", message, "status", status)
	} else {
		slog.Warn("Request rejected", "error", code, "message", message, "status", status)
	}
	h.writeJSON(w, status, errorBody{Error: code, Message: message})
}

// Session helpers
func (h *Handler) getSessionOrError(w http.ResponseWriter, sessionID string) (*models.CaptureSession, bool) {
	session, exists := h.sessionStore.Get(sessionID)
	if !exists {
		h.writeError(w, http.StatusNotFound, "capture_not_found", "no capture with id "+sessionID)
		return nil, false
	}
	return session, true
}
