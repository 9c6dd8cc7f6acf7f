package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/clinscout/backend/internal/scheduler"
	"github.com/clinscout/backend/pkg/database"
	"github.com/clinscout/backend/pkg/logger"
	"github.com/clinscout/backend/pkg/redis"
)

// StatusHandler serves health and operational status.
type StatusHandler struct {
	db     *database.DB
	cache  *redis.Client
	sched  *scheduler.Scheduler
	logger *logger.Logger
}

// NewStatusHandler creates a new status handler. Scheduler may be nil
// when running in API-only mode.
func NewStatusHandler(db *database.DB, cache *redis.Client, sched *scheduler.Scheduler, log *logger.Logger) *StatusHandler {
	return &StatusHandler{
		db:     db,
		cache:  cache,
		sched:  sched,
		logger: log,
	}
}

// Health reports service, database and cache health.
// GET /health
func (h *StatusHandler) Health(w http.ResponseWriter, r *http.Request) {
	resp := map[string]interface{}{
		"status":  "ok",
		"service": "clinscout-api",
	}

	dbHealth, err := h.db.HealthCheck(r.Context())
	if err != nil {
		resp["status"] = "degraded"
		resp["database"] = map[string]interface{}{"healthy": false, "error": err.Error()}
	} else {
		resp["database"] = dbHealth
	}
	resp["cache_enabled"] = h.cache.Enabled()

	status := http.StatusOK
	if resp["status"] != "ok" {
		status = http.StatusServiceUnavailable
	}
	respondJSON(w, status, resp)
}

// Jobs reports the scheduler's job statistics.
// GET /api/jobs
func (h *StatusHandler) Jobs(w http.ResponseWriter, r *http.Request) {
	if h.sched == nil {
		respondError(w, http.StatusNotFound, "Scheduler not running")
		return
	}
	respondJSON(w, http.StatusOK, h.sched.Stats())
}

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{
		"error": message,
	})
}

func respondErrorCode(w http.ResponseWriter, status int, code, message string) {
	respondJSON(w, status, map[string]string{
		"code":  code,
		"error": message,
	})
}
