package sqlite

import (
	"database/sql"
	"fmt"

	"roadwatch/internal/models"
)

// FeedbackRepository implements repository.FeedbackRepository for SQLite.
// Events are append-only; nothing ever updates or deletes a row.
type FeedbackRepository struct {
	db *DB
}

// NewFeedbackRepository creates a new SQLite feedback repository.
func NewFeedbackRepository(db *DB) *FeedbackRepository {
	return &FeedbackRepository{db: db}
}

// Append adds one feedback event to the log.
func (r *FeedbackRepository) Append(ev *models.FeedbackEvent) error {
	r.db.Lock()
	defer r.db.Unlock()

	var lat, lon interface{}
	if ev.Location != nil {
		lat = ev.Location.Latitude
		lon = ev.Location.Longitude
	}

	_, err := r.db.Conn().Exec(`
		INSERT INTO feedback_events (hazard_id, user_id, kind, latitude, longitude, confidence, comment, submitted_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, ev.HazardID, ev.UserID, ev.Kind, lat, lon, ev.Confidence, ev.Comment, ev.SubmittedAt)
	if err != nil {
		return fmt.Errorf("failed to append feedback: %w", err)
	}

	return nil
}

// ListByHazard retrieves all feedback for one hazard in arrival order.
func (r *FeedbackRepository) ListByHazard(hazardID string) ([]models.FeedbackEvent, error) {
	return r.list(`
		SELECT hazard_id, user_id, kind, latitude, longitude, confidence, comment, submitted_at
		FROM feedback_events WHERE hazard_id = ? ORDER BY id
	`, hazardID)
}

// ListByUser retrieves all feedback submitted by one user in arrival order.
func (r *FeedbackRepository) ListByUser(userID string) ([]models.FeedbackEvent, error) {
	return r.list(`
		SELECT hazard_id, user_id, kind, latitude, longitude, confidence, comment, submitted_at
		FROM feedback_events WHERE user_id = ? ORDER BY id
	`, userID)
}

func (r *FeedbackRepository) list(query string, arg interface{}) ([]models.FeedbackEvent, error) {
	r.db.RLock()
	defer r.db.RUnlock()

	rows, err := r.db.Conn().Query(query, arg)
	if err != nil {
		return nil, fmt.Errorf("failed to query feedback: %w", err)
	}
	defer rows.Close()

	var events []models.FeedbackEvent
	for rows.Next() {
		var ev models.FeedbackEvent
		var lat, lon sql.NullFloat64
		if err := rows.Scan(&ev.HazardID, &ev.UserID, &ev.Kind, &lat, &lon, &ev.Confidence, &ev.Comment, &ev.SubmittedAt); err != nil {
			return nil, fmt.Errorf("failed to scan feedback: %w", err)
		}
		if lat.Valid && lon.Valid {
			ev.Location = &models.Location{Latitude: lat.Float64, Longitude: lon.Float64}
		}
		events = append(events, ev)
	}

	return events, rows.Err()
}
