package sqlite

import (
	"database/sql"
	"encoding/json"
	"fmt"

	"roadwatch/internal/models"
)

// HazardRepository implements repository.HazardRepository for SQLite.
type HazardRepository struct {
	db *DB
}

// NewHazardRepository creates a new SQLite hazard repository.
func NewHazardRepository(db *DB) *HazardRepository {
	return &HazardRepository{db: db}
}

// Insert adds a new hazard record to the database.
func (r *HazardRepository) Insert(h *models.Hazard) error {
	r.db.Lock()
	defer r.db.Unlock()

	contributors, err := json.Marshal(h.Crowd.Contributors)
	if err != nil {
		return fmt.Errorf("failed to encode contributors: %w", err)
	}

	_, err = r.db.Conn().Exec(`
		INSERT INTO hazards (
			hazard_id, class_name, latitude, longitude, initial_confidence,
			severity, status, confirmations, denials, total_feedback,
			confidence_score, contributors, first_seen_at, last_updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, h.HazardID, h.ClassName, h.Location.Latitude, h.Location.Longitude,
		h.InitialConfidence, h.Severity, h.Status, h.Crowd.Confirmations,
		h.Crowd.Denials, h.Crowd.TotalFeedback, h.Crowd.ConfidenceScore,
		string(contributors), h.FirstSeenAt, h.LastUpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert hazard: %w", err)
	}

	return nil
}

// Update rewrites the aggregate columns for an existing hazard.
func (r *HazardRepository) Update(h *models.Hazard) error {
	r.db.Lock()
	defer r.db.Unlock()

	contributors, err := json.Marshal(h.Crowd.Contributors)
	if err != nil {
		return fmt.Errorf("failed to encode contributors: %w", err)
	}

	_, err = r.db.Conn().Exec(`
		UPDATE hazards SET
			initial_confidence = ?, severity = ?, status = ?,
			confirmations = ?, denials = ?, total_feedback = ?,
			confidence_score = ?, contributors = ?, last_updated_at = ?
		WHERE hazard_id = ?
	`, h.InitialConfidence, h.Severity, h.Status, h.Crowd.Confirmations,
		h.Crowd.Denials, h.Crowd.TotalFeedback, h.Crowd.ConfidenceScore,
		string(contributors), h.LastUpdatedAt, h.HazardID)
	if err != nil {
		return fmt.Errorf("failed to update hazard: %w", err)
	}

	return nil
}

// GetByID retrieves a single hazard or nil when absent.
func (r *HazardRepository) GetByID(hazardID string) (*models.Hazard, error) {
	r.db.RLock()
	defer r.db.RUnlock()

	row := r.db.Conn().QueryRow(`
		SELECT hazard_id, class_name, latitude, longitude, initial_confidence,
			severity, status, confirmations, denials, total_feedback,
			confidence_score, contributors, first_seen_at, last_updated_at
		FROM hazards WHERE hazard_id = ?
	`, hazardID)

	h, err := scanHazard(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return h, err
}

// GetAll retrieves every stored hazard, terminal ones included.
func (r *HazardRepository) GetAll() ([]*models.Hazard, error) {
	r.db.RLock()
	defer r.db.RUnlock()

	rows, err := r.db.Conn().Query(`
		SELECT hazard_id, class_name, latitude, longitude, initial_confidence,
			severity, status, confirmations, denials, total_feedback,
			confidence_score, contributors, first_seen_at, last_updated_at
		FROM hazards
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query hazards: %w", err)
	}
	defer rows.Close()

	var hazards []*models.Hazard
	for rows.Next() {
		h, err := scanHazard(rows)
		if err != nil {
			return nil, err
		}
		hazards = append(hazards, h)
	}

	return hazards, rows.Err()
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanHazard(row rowScanner) (*models.Hazard, error) {
	var h models.Hazard
	var contributors string

	err := row.Scan(&h.HazardID, &h.ClassName, &h.Location.Latitude,
		&h.Location.Longitude, &h.InitialConfidence, &h.Severity, &h.Status,
		&h.Crowd.Confirmations, &h.Crowd.Denials, &h.Crowd.TotalFeedback,
		&h.Crowd.ConfidenceScore, &contributors, &h.FirstSeenAt, &h.LastUpdatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan hazard: %w", err)
	}

	if err := json.Unmarshal([]byte(contributors), &h.Crowd.Contributors); err != nil {
		return nil, fmt.Errorf("failed to decode contributors: %w", err)
	}
	if h.Crowd.Contributors == nil {
		h.Crowd.Contributors = make(map[string]map[models.FeedbackKind]bool)
	}

	return &h, nil
}
