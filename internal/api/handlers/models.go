package handlers

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/clinscout/backend/internal/cluster"
	"github.com/clinscout/backend/internal/contracts"
	"github.com/clinscout/backend/internal/enroll"
	"github.com/clinscout/backend/internal/match"
	"github.com/clinscout/backend/pkg/logger"
)

// ModelHandler serves the batch model outputs: cluster assignments and
// enrollment estimates.
type ModelHandler struct {
	clusters *cluster.Store
	enroll   *enroll.Store
	logger   *logger.Logger
}

// NewModelHandler creates a new model handler.
func NewModelHandler(clusters *cluster.Store, enrollStore *enroll.Store, log *logger.Logger) *ModelHandler {
	return &ModelHandler{
		clusters: clusters,
		enroll:   enrollStore,
		logger:   log,
	}
}

// Clusters returns the latest committed cluster model.
// GET /api/clusters
func (h *ModelHandler) Clusters(w http.ResponseWriter, r *http.Request) {
	model, err := h.clusters.Latest(r.Context())
	if err != nil {
		h.logger.WithError(err).Error("Failed to load cluster model")
		respondError(w, http.StatusInternalServerError, "Failed to load cluster model")
		return
	}
	if model == nil {
		respondError(w, http.StatusNotFound, "No cluster model committed yet")
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"version":     model.Version,
		"computed_at": model.ComputedAt,
		"clusters":    model.Clusters,
		"assignments": model.Assignments,
	})
}

// Enrollment returns the enrollment estimate for one site in one area.
// GET /api/enrollment/{id}?area=Oncology
func (h *ModelHandler) Enrollment(w http.ResponseWriter, r *http.Request) {
	siteID := mux.Vars(r)["id"]
	area := match.ResolveArea(contracts.TargetProfile{TherapeuticArea: r.URL.Query().Get("area")})

	est, err := h.enroll.Estimate(r.Context(), siteID, area)
	if err != nil {
		h.logger.WithError(err).Error("Failed to estimate enrollment")
		respondError(w, http.StatusInternalServerError, "Failed to estimate enrollment")
		return
	}
	if est == nil {
		respondError(w, http.StatusNotFound, "No enrollment statistics available")
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"site_id":  siteID,
		"area":     area,
		"estimate": est,
	})
}
