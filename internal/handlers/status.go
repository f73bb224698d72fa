package handlers

import (
	"net/http"

	"roadwatch/internal/logger"
	"roadwatch/internal/services/detection"
	"roadwatch/internal/store"
)

// CrowdStatsHandler summarizes the hazard population.
func CrowdStatsHandler(s *store.Store, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		writeJSON(w, s.Stats(), logger)
	}
}

// HealthHandler reports service liveness plus a few headline numbers.
func HealthHandler(s *store.Store, svc *detection.Service, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		writeJSON(w, map[string]interface{}{
			"status":          "ok",
			"active_sessions": svc.Registry().Count(),
			"hazards":         s.Stats().Total,
		}, logger)
	}
}

// SessionsHandler lists the connected edge clients.
func SessionsHandler(svc *detection.Service, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sessions := svc.Registry().Snapshot()
		w.Header().Set("Content-Type", "application/json")
		writeJSON(w, map[string]interface{}{
			"sessions": sessions,
			"count":    len(sessions),
		}, logger)
	}
}
