package models

import (
	"encoding/json"
	"time"
)

// HazardStatus is the community verification state of a hazard.
type HazardStatus string

const (
	StatusUnverified HazardStatus = "unverified"
	StatusVerified   HazardStatus = "verified"
	StatusDisputed   HazardStatus = "disputed"
	StatusResolved   HazardStatus = "resolved"
	StatusExpired    HazardStatus = "expired"
)

// Terminal reports whether the status can never transition again.
func (s HazardStatus) Terminal() bool {
	return s == StatusResolved || s == StatusExpired
}

// Severity classifies how dangerous a hazard is to traffic.
type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// Location is a GPS fix attached to detections and feedback.
type Location struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	Altitude  float64 `json:"altitude,omitempty"`
	Accuracy  float64 `json:"accuracy,omitempty"`
}

// CrowdIntelligence aggregates community feedback for one hazard.
// Contributors maps userID -> set of feedback kinds already counted,
// which is what makes repeated submissions idempotent.
type CrowdIntelligence struct {
	Confirmations   int
	Denials         int
	TotalFeedback   int
	ConfidenceScore float64
	Contributors    map[string]map[FeedbackKind]bool
}

// Seen reports whether this (user, kind) pair was already counted.
func (ci CrowdIntelligence) Seen(userID string, kind FeedbackKind) bool {
	kinds, ok := ci.Contributors[userID]
	return ok && kinds[kind]
}

// DistinctContributors returns the number of unique users who gave feedback.
func (ci CrowdIntelligence) DistinctContributors() int {
	return len(ci.Contributors)
}

// Clone deep-copies the aggregate so a writer can mutate without
// touching the snapshot readers may still hold.
func (ci CrowdIntelligence) Clone() CrowdIntelligence {
	out := ci
	out.Contributors = make(map[string]map[FeedbackKind]bool, len(ci.Contributors))
	for user, kinds := range ci.Contributors {
		set := make(map[FeedbackKind]bool, len(kinds))
		for k, v := range kinds {
			set[k] = v
		}
		out.Contributors[user] = set
	}
	return out
}

// MarshalJSON exposes the contributor set as a count only.
func (ci CrowdIntelligence) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Confirmations        int     `json:"confirmations"`
		Denials              int     `json:"denials"`
		TotalFeedback        int     `json:"total_feedback"`
		ConfidenceScore      float64 `json:"confidence_score"`
		DistinctContributors int     `json:"distinct_contributors"`
	}{
		Confirmations:        ci.Confirmations,
		Denials:              ci.Denials,
		TotalFeedback:        ci.TotalFeedback,
		ConfidenceScore:      ci.ConfidenceScore,
		DistinctContributors: ci.DistinctContributors(),
	})
}

// Hazard is the durable, crowd-scored record of a detected road condition.
type Hazard struct {
	HazardID          string            `json:"hazard_id"`
	ClassName         string            `json:"class_name"`
	Location          Location          `json:"location"`
	InitialConfidence float64           `json:"initial_confidence"`
	Severity          Severity          `json:"severity"`
	Status            HazardStatus      `json:"status"`
	Crowd             CrowdIntelligence `json:"crowd_intelligence"`
	FirstSeenAt       time.Time         `json:"first_seen_at"`
	LastUpdatedAt     time.Time         `json:"last_updated_at"`
}

// Clone returns a deep copy. Stored hazards are treated as immutable
// snapshots; every mutation clones, edits and swaps.
func (h *Hazard) Clone() *Hazard {
	out := *h
	out.Crowd = h.Crowd.Clone()
	return &out
}

// HazardCandidate is what the ingestor derives from a single detection
// before deduplication against existing hazards.
type HazardCandidate struct {
	ClassName  string
	Location   Location
	Confidence float64
	ReportedBy string
}
