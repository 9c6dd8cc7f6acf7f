package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/clinscout/backend/internal/api/handlers"
	"github.com/clinscout/backend/pkg/logger"
)

// NewRouter creates and configures the HTTP router.
func NewRouter(
	recommendHandler *handlers.RecommendHandler,
	siteHandler *handlers.SiteHandler,
	modelHandler *handlers.ModelHandler,
	statusHandler *handlers.StatusHandler,
	log *logger.Logger,
) http.Handler {
	r := mux.NewRouter()

	// Health check
	r.HandleFunc("/health", statusHandler.Health).Methods("GET")

	api := r.PathPrefix("/api").Subrouter()

	// Recommendation endpoint
	api.HandleFunc("/recommendations", recommendHandler.Recommend).Methods("POST")

	// Site endpoints
	api.HandleFunc("/sites", siteHandler.List).Methods("GET")
	api.HandleFunc("/sites/{id}", siteHandler.Get).Methods("GET")
	api.HandleFunc("/sites/{id}/metrics", siteHandler.Metrics).Methods("GET")
	api.HandleFunc("/sites/{id}/quality", siteHandler.Quality).Methods("GET")
	api.HandleFunc("/sites/{id}/insights", siteHandler.Insights).Methods("GET")
	api.HandleFunc("/sites/{id}/investigators", siteHandler.Investigators).Methods("GET")

	// Batch model endpoints
	api.HandleFunc("/clusters", modelHandler.Clusters).Methods("GET")
	api.HandleFunc("/enrollment/{id}", modelHandler.Enrollment).Methods("GET")

	// Operational endpoints
	api.HandleFunc("/jobs", statusHandler.Jobs).Methods("GET")

	r.Use(loggingMiddleware(log))
	r.Use(recoveryMiddleware(log))

	return r
}

// loggingMiddleware logs HTTP requests.
func loggingMiddleware(log *logger.Logger) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			next.ServeHTTP(w, r)

			log.WithFields(map[string]interface{}{
				"method":   r.Method,
				"path":     r.URL.Path,
				"duration": time.Since(start),
			}).Debug("HTTP request")
		})
	}
}

// recoveryMiddleware recovers from panics.
func recoveryMiddleware(log *logger.Logger) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if err := recover(); err != nil {
					log.WithFields(map[string]interface{}{
						"error": err,
						"path":  r.URL.Path,
					}).Error("Panic recovered")

					w.Header().Set("Content-Type", "application/json")
					w.WriteHeader(http.StatusInternalServerError)
					json.NewEncoder(w).Encode(map[string]string{
						"error": "Internal server error",
					})
				}
			}()

			next.ServeHTTP(w, r)
		})
	}
}
