package routes

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"roadwatch/internal/handlers"
	"roadwatch/internal/logger"
	"roadwatch/internal/services/detection"
	"roadwatch/internal/store"
)

// SetupRoutes registers the HTTP API, the detection websocket and the
// prometheus scrape endpoint.
func SetupRoutes(
	s *store.Store,
	svc *detection.Service,
	registry *prometheus.Registry,
	logger *logger.Logger,
) http.Handler {
	r := mux.NewRouter()

	// Hazard API
	r.HandleFunc("/hazards", handlers.ReportHazardHandler(s, logger)).Methods(http.MethodPost)
	r.HandleFunc("/hazards/nearby", handlers.NearbyHazardsHandler(s, logger)).Methods(http.MethodGet)
	r.HandleFunc("/hazards/{id}", handlers.GetHazardHandler(s, logger)).Methods(http.MethodGet)
	r.HandleFunc("/hazards/{id}/feedback", handlers.SubmitFeedbackHandler(s, logger)).Methods(http.MethodPost)

	// Crowd and user endpoints
	r.HandleFunc("/crowd/stats", handlers.CrowdStatsHandler(s, logger)).Methods(http.MethodGet)
	r.HandleFunc("/users/{id}/contribution", handlers.UserContributionHandler(s, logger)).Methods(http.MethodGet)

	// Operational endpoints
	r.HandleFunc("/sessions", handlers.SessionsHandler(svc, logger)).Methods(http.MethodGet)
	r.HandleFunc("/health", handlers.HealthHandler(s, svc, logger)).Methods(http.MethodGet)
	r.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))

	// Edge client stream
	r.HandleFunc("/ws/detect/{client_id}", handlers.DetectWebsocketHandler(svc))

	return r
}
