package memory

import (
	"sync"

	"roadwatch/internal/models"
)

// HazardRepository is a map-backed store used in tests and when the
// service runs without a database file.
type HazardRepository struct {
	mu      sync.Mutex
	hazards map[string]*models.Hazard
}

func NewHazardRepository() *HazardRepository {
	return &HazardRepository{hazards: make(map[string]*models.Hazard)}
}

func (r *HazardRepository) Insert(h *models.Hazard) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.hazards[h.HazardID] = h.Clone()
	return nil
}

func (r *HazardRepository) Update(h *models.Hazard) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.hazards[h.HazardID] = h.Clone()
	return nil
}

func (r *HazardRepository) GetByID(hazardID string) (*models.Hazard, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	h, ok := r.hazards[hazardID]
	if !ok {
		return nil, nil
	}
	return h.Clone(), nil
}

func (r *HazardRepository) GetAll() ([]*models.Hazard, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*models.Hazard, 0, len(r.hazards))
	for _, h := range r.hazards {
		out = append(out, h.Clone())
	}
	return out, nil
}

// FeedbackRepository is the append-only event log kept in memory.
type FeedbackRepository struct {
	mu     sync.Mutex
	events []models.FeedbackEvent
}

func NewFeedbackRepository() *FeedbackRepository {
	return &FeedbackRepository{}
}

func (r *FeedbackRepository) Append(ev *models.FeedbackEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, *ev)
	return nil
}

func (r *FeedbackRepository) ListByHazard(hazardID string) ([]models.FeedbackEvent, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []models.FeedbackEvent
	for _, ev := range r.events {
		if ev.HazardID == hazardID {
			out = append(out, ev)
		}
	}
	return out, nil
}

func (r *FeedbackRepository) ListByUser(userID string) ([]models.FeedbackEvent, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []models.FeedbackEvent
	for _, ev := range r.events {
		if ev.UserID == userID {
			out = append(out, ev)
		}
	}
	return out, nil
}
