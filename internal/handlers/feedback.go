package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"roadwatch/internal/logger"
	"roadwatch/internal/models"
	"roadwatch/internal/store"
)

type feedbackRequest struct {
	UserID       string   `json:"user_id"`
	FeedbackType string   `json:"feedback_type"`
	Latitude     *float64 `json:"latitude,omitempty"`
	Longitude    *float64 `json:"longitude,omitempty"`
	Confidence   float64  `json:"confidence"`
	Comment      string   `json:"comment,omitempty"`
}

// SubmitFeedbackHandler applies one user's verdict to a hazard.
func SubmitFeedbackHandler(s *store.Store, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req feedbackRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "Invalid request body", http.StatusBadRequest)
			return
		}
		if req.UserID == "" {
			http.Error(w, "user_id is required", http.StatusBadRequest)
			return
		}
		kind, err := models.ParseFeedbackKind(req.FeedbackType)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}

		ev := models.FeedbackEvent{
			HazardID:    mux.Vars(r)["id"],
			UserID:      req.UserID,
			Kind:        kind,
			Confidence:  req.Confidence,
			Comment:     req.Comment,
			SubmittedAt: time.Now().UTC(),
		}
		if req.Latitude != nil && req.Longitude != nil {
			ev.Location = &models.Location{Latitude: *req.Latitude, Longitude: *req.Longitude}
		}

		h, err := s.ApplyFeedback(ev)
		if err != nil {
			switch {
			case errors.Is(err, store.ErrHazardNotFound):
				http.Error(w, "Hazard not found", http.StatusNotFound)
			case errors.Is(err, store.ErrInvalidFeedback):
				http.Error(w, "Invalid feedback", http.StatusBadRequest)
			case errors.Is(err, store.ErrFeedbackTooFar):
				http.Error(w, "Feedback location too far from hazard", http.StatusBadRequest)
			default:
				logger.Error("Applying feedback: %v", err)
				http.Error(w, "Unable to apply feedback", http.StatusInternalServerError)
			}
			return
		}

		w.Header().Set("Content-Type", "application/json")
		writeJSON(w, h, logger)
	}
}

// UserContributionHandler reports a user's feedback count and reputation.
func UserContributionHandler(s *store.Store, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		c, err := s.UserContribution(mux.Vars(r)["id"])
		if err != nil {
			logger.Error("Loading user contribution: %v", err)
			http.Error(w, "Unable to load contribution", http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		writeJSON(w, c, logger)
	}
}
