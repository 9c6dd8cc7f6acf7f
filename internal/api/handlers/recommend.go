// Package handlers implements the HTTP endpoints of the scoring API.
package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/clinscout/backend/internal/contracts"
	"github.com/clinscout/backend/internal/insight"
	"github.com/clinscout/backend/internal/recommend"
	"github.com/clinscout/backend/pkg/logger"
)

// RecommendHandler serves ranked site recommendations.
type RecommendHandler struct {
	engine   *recommend.Engine
	narrator insight.Narrator
	logger   *logger.Logger
}

// NewRecommendHandler creates a new recommendation handler.
func NewRecommendHandler(engine *recommend.Engine, narrator insight.Narrator, log *logger.Logger) *RecommendHandler {
	if narrator == nil {
		narrator = insight.NoopNarrator{}
	}
	return &RecommendHandler{
		engine:   engine,
		narrator: narrator,
		logger:   log,
	}
}

// recommendResponse wraps the recommendation with an optional narrative.
type recommendResponse struct {
	*contracts.Recommendation
	Narrative string `json:"narrative,omitempty"`
}

// Recommend ranks sites for a target trial profile.
// POST /api/recommendations?narrate=true
func (h *RecommendHandler) Recommend(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req contracts.RecommendationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.Profile.TherapeuticArea == "" && len(req.Profile.Conditions) == 0 {
		respondError(w, http.StatusBadRequest, "Profile requires a therapeutic area or conditions")
		return
	}

	rec, err := h.engine.Recommend(ctx, req)
	switch {
	case errors.Is(err, recommend.ErrNoSites):
		respondErrorCode(w, http.StatusNotFound, "no_sites", "No sites in repository")
		return
	case errors.Is(err, recommend.ErrNoCandidates):
		respondErrorCode(w, http.StatusUnprocessableEntity, "no_candidates", "No candidates satisfy constraints")
		return
	case err != nil:
		h.logger.WithError(err).Error("Recommendation failed")
		respondError(w, http.StatusInternalServerError, "Recommendation failed")
		return
	}

	resp := recommendResponse{Recommendation: rec}

	// Narrative generation is a consumer-side nicety: failures are
	// logged and the ranking returned without it.
	if r.URL.Query().Get("narrate") == "true" {
		narrative, err := h.narrator.Narrate(ctx, rec)
		if err != nil {
			h.logger.WithError(err).Warn("Narrative generation failed")
		} else {
			resp.Narrative = narrative
		}
	}

	respondJSON(w, http.StatusOK, resp)
}
