package handlers

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/clinscout/backend/internal/contracts"
	"github.com/clinscout/backend/internal/insight"
	"github.com/clinscout/backend/internal/match"
	"github.com/clinscout/backend/pkg/logger"
)

// SiteHandler serves site master data and derived per-site views.
type SiteHandler struct {
	sites         contracts.SiteRepository
	metrics       contracts.MetricRepository
	quality       contracts.QualityRepository
	investigators contracts.InvestigatorRepository
	detector      *insight.Detector
	logger        *logger.Logger
}

// NewSiteHandler creates a new site handler.
func NewSiteHandler(
	sites contracts.SiteRepository,
	metrics contracts.MetricRepository,
	quality contracts.QualityRepository,
	investigators contracts.InvestigatorRepository,
	detector *insight.Detector,
	log *logger.Logger,
) *SiteHandler {
	return &SiteHandler{
		sites:         sites,
		metrics:       metrics,
		quality:       quality,
		investigators: investigators,
		detector:      detector,
		logger:        log,
	}
}

// List returns all sites.
// GET /api/sites
func (h *SiteHandler) List(w http.ResponseWriter, r *http.Request) {
	sites, err := h.sites.ListAll(r.Context())
	if err != nil {
		h.logger.WithError(err).Error("Failed to list sites")
		respondError(w, http.StatusInternalServerError, "Failed to list sites")
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"count": len(sites),
		"sites": sites,
	})
}

// Get returns one site.
// GET /api/sites/{id}
func (h *SiteHandler) Get(w http.ResponseWriter, r *http.Request) {
	site, ok := h.loadSite(w, r)
	if !ok {
		return
	}
	respondJSON(w, http.StatusOK, site)
}

// Metrics returns one site's per-area metric rows.
// GET /api/sites/{id}/metrics
func (h *SiteHandler) Metrics(w http.ResponseWriter, r *http.Request) {
	site, ok := h.loadSite(w, r)
	if !ok {
		return
	}

	rows, err := h.metrics.ListBySite(r.Context(), site.ID)
	if err != nil {
		h.logger.WithError(err).Error("Failed to list site metrics")
		respondError(w, http.StatusInternalServerError, "Failed to list site metrics")
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"site_id": site.ID,
		"metrics": rows,
	})
}

// Quality returns one site's per-trial quality scores and their average.
// GET /api/sites/{id}/quality
func (h *SiteHandler) Quality(w http.ResponseWriter, r *http.Request) {
	site, ok := h.loadSite(w, r)
	if !ok {
		return
	}
	ctx := r.Context()

	scores, err := h.quality.ListBySite(ctx, site.ID)
	if err != nil {
		h.logger.WithError(err).Error("Failed to list quality scores")
		respondError(w, http.StatusInternalServerError, "Failed to list quality scores")
		return
	}
	avg, err := h.quality.AverageBySite(ctx, site.ID)
	if err != nil {
		h.logger.WithError(err).Error("Failed to average quality scores")
		respondError(w, http.StatusInternalServerError, "Failed to average quality scores")
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"site_id": site.ID,
		"average": avg,
		"scores":  scores,
	})
}

// Insights returns strengths and weaknesses against same-area peers.
// GET /api/sites/{id}/insights?area=Oncology
func (h *SiteHandler) Insights(w http.ResponseWriter, r *http.Request) {
	site, ok := h.loadSite(w, r)
	if !ok {
		return
	}
	ctx := r.Context()

	area := match.ResolveArea(contracts.TargetProfile{TherapeuticArea: r.URL.Query().Get("area")})

	rows, err := h.metrics.ListBySite(ctx, site.ID)
	if err != nil {
		h.logger.WithError(err).Error("Failed to list site metrics")
		respondError(w, http.StatusInternalServerError, "Failed to list site metrics")
		return
	}
	var own *contracts.SiteMetric
	for i := range rows {
		if rows[i].TherapeuticArea == area {
			own = &rows[i]
			break
		}
	}

	// Investigator findings are area-independent and apply even when the
	// site has no history in the requested area.
	inv, err := h.investigators.SummarizeBySite(ctx, site.ID)
	if err != nil {
		h.logger.WithError(err).Error("Failed to summarize investigators")
		respondError(w, http.StatusInternalServerError, "Failed to summarize investigators")
		return
	}
	strengths, weaknesses := h.detector.DetectInvestigator(inv)

	peerCount := 0
	if own != nil {
		peers, err := h.metrics.ListByArea(ctx, area)
		if err != nil {
			h.logger.WithError(err).Error("Failed to list area peers")
			respondError(w, http.StatusInternalServerError, "Failed to list area peers")
			return
		}
		peerCount = len(peers)
		s, wk := h.detector.Detect(own, peers)
		strengths = append(s, strengths...)
		weaknesses = append(wk, weaknesses...)
	}

	if strengths == nil {
		strengths = []contracts.Finding{}
	}
	if weaknesses == nil {
		weaknesses = []contracts.Finding{}
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"site_id":    site.ID,
		"area":       area,
		"peer_count": peerCount,
		"strengths":  strengths,
		"weaknesses": weaknesses,
	})
}

// Investigators returns the aggregated investigator summary.
// GET /api/sites/{id}/investigators
func (h *SiteHandler) Investigators(w http.ResponseWriter, r *http.Request) {
	site, ok := h.loadSite(w, r)
	if !ok {
		return
	}

	summary, err := h.investigators.SummarizeBySite(r.Context(), site.ID)
	if err != nil {
		h.logger.WithError(err).Error("Failed to summarize investigators")
		respondError(w, http.StatusInternalServerError, "Failed to summarize investigators")
		return
	}
	respondJSON(w, http.StatusOK, summary)
}

func (h *SiteHandler) loadSite(w http.ResponseWriter, r *http.Request) (*contracts.Site, bool) {
	id := mux.Vars(r)["id"]
	site, err := h.sites.GetByID(r.Context(), id)
	if err != nil {
		h.logger.WithError(err).Error("Failed to load site")
		respondError(w, http.StatusInternalServerError, "Failed to load site")
		return nil, false
	}
	if site == nil {
		respondError(w, http.StatusNotFound, "Site not found")
		return nil, false
	}
	return site, true
}
