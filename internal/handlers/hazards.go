package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"roadwatch/internal/logger"
	"roadwatch/internal/models"
	"roadwatch/internal/store"
)

type reportRequest struct {
	ClassName  string  `json:"class_name"`
	Latitude   float64 `json:"latitude"`
	Longitude  float64 `json:"longitude"`
	Confidence float64 `json:"confidence"`
	ReportedBy string  `json:"reported_by"`
}

// ReportHazardHandler accepts a manual hazard report. Reports close to
// an existing live hazard of the same class merge into it.
func ReportHazardHandler(s *store.Store, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req reportRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "Invalid request body", http.StatusBadRequest)
			return
		}
		if req.ClassName == "" {
			http.Error(w, "class_name is required", http.StatusBadRequest)
			return
		}
		if req.Latitude < -90 || req.Latitude > 90 || req.Longitude < -180 || req.Longitude > 180 {
			http.Error(w, "Invalid coordinates", http.StatusBadRequest)
			return
		}
		if req.Confidence <= 0 || req.Confidence > 1 {
			req.Confidence = 0.5
		}

		h, created, err := s.Upsert(models.HazardCandidate{
			ClassName:  req.ClassName,
			Location:   models.Location{Latitude: req.Latitude, Longitude: req.Longitude},
			Confidence: req.Confidence,
			ReportedBy: req.ReportedBy,
		})
		if err != nil {
			logger.Error("Reporting hazard: %v", err)
			http.Error(w, "Unable to store hazard", http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		if created {
			w.WriteHeader(http.StatusCreated)
		}
		writeJSON(w, h, logger)
	}
}

// NearbyHazardsHandler returns hazards around a point, most trusted first.
func NearbyHazardsHandler(s *store.Store, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		lat, err := strconv.ParseFloat(r.URL.Query().Get("latitude"), 64)
		if err != nil || lat < -90 || lat > 90 {
			http.Error(w, "Invalid latitude", http.StatusBadRequest)
			return
		}
		lon, err := strconv.ParseFloat(r.URL.Query().Get("longitude"), 64)
		if err != nil || lon < -180 || lon > 180 {
			http.Error(w, "Invalid longitude", http.StatusBadRequest)
			return
		}
		radius, err := strconv.ParseFloat(r.URL.Query().Get("radius"), 64)
		if err != nil || radius <= 0 {
			radius = 1000
		}
		includeResolved := r.URL.Query().Get("include_resolved") == "true"

		hazards := s.Nearby(lat, lon, radius, includeResolved)
		w.Header().Set("Content-Type", "application/json")
		writeJSON(w, map[string]interface{}{
			"hazards": hazards,
			"count":   len(hazards),
		}, logger)
	}
}

// GetHazardHandler returns one hazard snapshot by id.
func GetHazardHandler(s *store.Store, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		h, ok := s.Get(mux.Vars(r)["id"])
		if !ok {
			http.Error(w, "Hazard not found", http.StatusNotFound)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		writeJSON(w, h, logger)
	}
}

func writeJSON(w http.ResponseWriter, v interface{}, logger *logger.Logger) {
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Error("Error encoding JSON response: %v", err)
	}
}
