package handlers

import (
	"net/http"
	"strings"

	"github.com/storepilot/merchant-advisor/internal/application/websearch"
	"github.com/storepilot/merchant-advisor/internal/infrastructure/monitoring/logging"
	"github.com/storepilot/merchant-advisor/pkg/errors"
)

// SearchHandler exposes the web search pipeline directly, mainly for
// debugging what a turn would have retrieved.
type SearchHandler struct {
	aggregator websearch.Aggregator
	logger     logging.Logger
}

// NewSearchHandler creates a new SearchHandler.
func NewSearchHandler(agg websearch.Aggregator, logger logging.Logger) *SearchHandler {
	return &SearchHandler{aggregator: agg, logger: logger.Named("http.search")}
}

// Web handles GET /api/v1/search/web?q=<query>.
func (h *SearchHandler) Web(w http.ResponseWriter, r *http.Request) {
	q := strings.TrimSpace(r.URL.Query().Get("q"))
	if q == "" {
		writeError(w, http.StatusBadRequest, errors.ErrCodeValidation, "query parameter q is required")
		return
	}

	resp, err := h.aggregator.Search(r.Context(), q)
	if err != nil {
		h.logger.Warn("web search failed", logging.String("query", q), logging.Err(err))
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}
