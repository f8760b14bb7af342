package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/storepilot/merchant-advisor/internal/application/advisory"
	"github.com/storepilot/merchant-advisor/internal/infrastructure/monitoring/logging"
	"github.com/storepilot/merchant-advisor/pkg/errors"
)

// TurnHandler exposes the conversational turn endpoint.
type TurnHandler struct {
	orchestrator advisory.Orchestrator
	logger       logging.Logger
}

// NewTurnHandler creates a new TurnHandler.
func NewTurnHandler(o advisory.Orchestrator, logger logging.Logger) *TurnHandler {
	return &TurnHandler{orchestrator: o, logger: logger.Named("http.turns")}
}

// Create handles POST /api/v1/turns. The turn itself never fails: a degraded
// turn still returns 200 with its status and error fields filled in. Only a
// malformed request body is rejected.
func (h *TurnHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req advisory.TurnRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, errors.ErrCodeValidation, "invalid request body")
		return
	}
	if req.ThreadID == "" {
		writeError(w, http.StatusBadRequest, errors.ErrCodeValidation, "thread_id is required")
		return
	}

	result := h.orchestrator.RunTurn(r.Context(), req)

	h.logger.Info("turn completed",
		logging.String("thread_id", req.ThreadID),
		logging.String("turn_id", result.TurnID),
		logging.String("status", result.Status.String()),
		logging.String("intent", result.Intent.String()))

	writeJSON(w, http.StatusOK, result)
}
