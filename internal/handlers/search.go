package handlers

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/lehigh-university-libraries/shelfscanner/internal/catalog"
	"github.com/lehigh-university-libraries/shelfscanner/internal/extraction"
)

const (
	defaultSearchResults = 20
	maxSearchResults     = 40
)

func (h *Handler) HandleBookSearch(w http.ResponseWriter, r *http.Request) {
	query := strings.TrimSpace(r.URL.Query().Get("q"))
	if query == "" {
		h.writeError(w, http.StatusBadRequest, "missing_query", "")
		return
	}

	maxResults := defaultSearchResults
	if raw := r.URL.Query().Get("maxResults"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			h.writeError(w, http.StatusBadRequest, "invalid_max_results", err.Error())
			return
		}
		maxResults = n
	}
	maxResults = max(1, min(maxSearchResults, maxResults))

	if !h.books.HasAPIKey() {
		h.writeError(w, http.StatusServiceUnavailable, "missing_api_key", catalog.MissingAPIKeyMessage)
		return
	}

	result, err := h.books.Search(r.Context(), query, maxResults)
	if err != nil {
		h.writeError(w, http.StatusBadGateway, "lookup_failed", extraction.DescribeError(err))
		return
	}
	h.writeJSON(w, http.StatusOK, result)
}
