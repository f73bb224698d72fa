package models

import (
	"fmt"
	"time"
)

// FeedbackKind is one user's verdict on a hazard.
type FeedbackKind string

const (
	FeedbackConfirm FeedbackKind = "confirm"
	FeedbackDeny    FeedbackKind = "deny"
	FeedbackUpdate  FeedbackKind = "update"
	FeedbackResolve FeedbackKind = "resolve"
)

// ParseFeedbackKind validates a wire-level feedback_type value.
func ParseFeedbackKind(s string) (FeedbackKind, error) {
	switch FeedbackKind(s) {
	case FeedbackConfirm, FeedbackDeny, FeedbackUpdate, FeedbackResolve:
		return FeedbackKind(s), nil
	}
	return "", fmt.Errorf("unknown feedback type %q", s)
}

// FeedbackEvent is a single append-only feedback record. Events are never
// rewritten; the hazard aggregate holds only counters derived from them.
type FeedbackEvent struct {
	HazardID    string       `json:"hazard_id"`
	UserID      string       `json:"user_id"`
	Kind        FeedbackKind `json:"kind"`
	Location    *Location    `json:"location,omitempty"`
	Confidence  float64      `json:"confidence"`
	Comment     string       `json:"comment,omitempty"`
	SubmittedAt time.Time    `json:"submitted_at"`
}
