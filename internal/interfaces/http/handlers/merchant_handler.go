package handlers

import (
	"net/http"
	"strings"

	"github.com/storepilot/merchant-advisor/internal/application/resolver"
	"github.com/storepilot/merchant-advisor/internal/domain/merchant"
	"github.com/storepilot/merchant-advisor/internal/infrastructure/monitoring/logging"
	"github.com/storepilot/merchant-advisor/pkg/errors"
)

const searchResultsMax = 50

// MerchantHandler exposes merchant lookup and resolution endpoints.
type MerchantHandler struct {
	resolver resolver.Resolver
	store    merchant.Store
	logger   logging.Logger
}

// NewMerchantHandler creates a new MerchantHandler.
func NewMerchantHandler(res resolver.Resolver, store merchant.Store, logger logging.Logger) *MerchantHandler {
	return &MerchantHandler{resolver: res, store: store, logger: logger.Named("http.merchants")}
}

// resolveResponse mirrors the resolver outcome for API clients.
type resolveResponse struct {
	Kind       string               `json:"kind"`
	MerchantID string               `json:"merchant_id,omitempty"`
	Candidates []merchant.Candidate `json:"candidates,omitempty"`
}

// Resolve handles GET /api/v1/merchants/resolve?q=<free text>.
func (h *MerchantHandler) Resolve(w http.ResponseWriter, r *http.Request) {
	q := strings.TrimSpace(r.URL.Query().Get("q"))
	if q == "" {
		writeError(w, http.StatusBadRequest, errors.ErrCodeValidation, "query parameter q is required")
		return
	}

	res, err := h.resolver.Resolve(r.Context(), q)
	if err != nil {
		h.logger.Error("resolve failed", logging.String("query", q), logging.Err(err))
		writeAppError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, resolveResponse{
		Kind:       res.Kind.String(),
		MerchantID: res.MerchantID,
		Candidates: res.Candidates,
	})
}

// searchResponse is the candidate list returned by Search.
type searchResponse struct {
	Candidates []merchant.Candidate `json:"candidates"`
	Total      int                  `json:"total"`
}

// Search handles GET /api/v1/merchants/search?q=<name fragment>.
func (h *MerchantHandler) Search(w http.ResponseWriter, r *http.Request) {
	q := strings.TrimSpace(r.URL.Query().Get("q"))
	if q == "" {
		writeError(w, http.StatusBadRequest, errors.ErrCodeValidation, "query parameter q is required")
		return
	}

	cands, err := h.store.SearchByName(r.Context(), q)
	if err != nil {
		h.logger.Error("search failed", logging.String("query", q), logging.Err(err))
		writeAppError(w, err)
		return
	}

	if limit := parseLimit(r, searchResultsMax, searchResultsMax); len(cands) > limit {
		cands = cands[:limit]
	}
	if cands == nil {
		cands = []merchant.Candidate{}
	}
	writeJSON(w, http.StatusOK, searchResponse{Candidates: cands, Total: len(cands)})
}

// Get handles GET /api/v1/merchants/{merchantID}, returning the latest
// ingested period for the merchant.
func (h *MerchantHandler) Get(w http.ResponseWriter, r *http.Request) {
	id := merchantIDFromRequest(r)
	if id == "" {
		writeError(w, http.StatusBadRequest, errors.ErrCodeValidation, "merchant id is required")
		return
	}

	rec, err := h.store.GetLatest(r.Context(), id)
	if err != nil {
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}
