package repository

import "roadwatch/internal/models"

// HazardRepository defines durable storage for hazard aggregates.
type HazardRepository interface {
	Insert(h *models.Hazard) error
	Update(h *models.Hazard) error
	GetByID(hazardID string) (*models.Hazard, error)
	GetAll() ([]*models.Hazard, error)
}

// FeedbackRepository defines the append-only feedback event log.
type FeedbackRepository interface {
	Append(ev *models.FeedbackEvent) error
	ListByHazard(hazardID string) ([]models.FeedbackEvent, error)
	ListByUser(userID string) ([]models.FeedbackEvent, error)
}
