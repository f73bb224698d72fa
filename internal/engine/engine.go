package engine

import (
	"time"

	"roadwatch/internal/models"
)

// Config holds the crowd verification policy knobs.
type Config struct {
	VerificationThreshold int           // confirmations needed for promotion
	DenialThreshold       int           // denials needed for demotion
	BaselineWeight        float64       // weight of the detector's own confidence
	MinVerifyScore        float64       // confidence score floor for promotion
	ExpiryWindow          time.Duration // idle time before unverified hazards expire
}

// DefaultConfig returns the production policy defaults.
func DefaultConfig() Config {
	return Config{
		VerificationThreshold: 3,
		DenialThreshold:       5,
		BaselineWeight:        1.0,
		MinVerifyScore:        0.6,
		ExpiryWindow:          24 * time.Hour,
	}
}

// Engine computes hazard state transitions from feedback events. All
// methods are pure: they never mutate their inputs and hold no state
// beyond the policy config, so they are safe to call concurrently as
// long as the caller serializes writes per hazard.
type Engine struct {
	cfg Config
}

// New creates an Engine with the given policy.
func New(cfg Config) *Engine {
	if cfg.VerificationThreshold <= 0 {
		cfg.VerificationThreshold = 3
	}
	if cfg.DenialThreshold <= 0 {
		cfg.DenialThreshold = 5
	}
	if cfg.BaselineWeight <= 0 {
		cfg.BaselineWeight = 1.0
	}
	if cfg.MinVerifyScore <= 0 {
		cfg.MinVerifyScore = 0.6
	}
	if cfg.ExpiryWindow <= 0 {
		cfg.ExpiryWindow = 24 * time.Hour
	}
	return &Engine{cfg: cfg}
}

// NextState applies a single feedback event to the aggregate and returns
// the next aggregate plus the next status. Repeated (user, kind) pairs
// are accepted without changing any counter, which makes client retries
// idempotent.
func (e *Engine) NextState(
	ci models.CrowdIntelligence,
	status models.HazardStatus,
	initialConfidence float64,
	ev models.FeedbackEvent,
) (models.CrowdIntelligence, models.HazardStatus) {
	next := ci.Clone()
	if next.Contributors == nil {
		next.Contributors = make(map[string]map[models.FeedbackKind]bool)
	}

	if next.Seen(ev.UserID, ev.Kind) {
		return next, status
	}

	if next.Contributors[ev.UserID] == nil {
		next.Contributors[ev.UserID] = make(map[models.FeedbackKind]bool)
	}
	next.Contributors[ev.UserID][ev.Kind] = true
	next.TotalFeedback++

	switch ev.Kind {
	case models.FeedbackConfirm:
		next.Confirmations++
	case models.FeedbackDeny:
		next.Denials++
	case models.FeedbackResolve:
		// Human override: terminal regardless of counters, unless the
		// hazard already reached a terminal state.
		next.ConfidenceScore = e.confidence(next, initialConfidence)
		if status.Terminal() {
			return next, status
		}
		return next, models.StatusResolved
	case models.FeedbackUpdate:
		// Recorded for the history, no effect on counters.
	}

	next.ConfidenceScore = e.confidence(next, initialConfidence)
	return next, e.transition(next, status)
}

// confidence blends crowd confirmations with the detector's initial
// confidence: (c + w*init) / (c + d + w), clamped to [0, 1].
func (e *Engine) confidence(ci models.CrowdIntelligence, initialConfidence float64) float64 {
	w := e.cfg.BaselineWeight
	score := (float64(ci.Confirmations) + w*initialConfidence) /
		(float64(ci.Confirmations) + float64(ci.Denials) + w)
	if score < 0 {
		return 0
	}
	if score > 1 {
		return 1
	}
	return score
}

// transition evaluates the status rules in order; first match wins.
func (e *Engine) transition(ci models.CrowdIntelligence, status models.HazardStatus) models.HazardStatus {
	if status.Terminal() {
		return status
	}
	if ci.Denials >= e.cfg.DenialThreshold && ci.Denials > ci.Confirmations {
		return models.StatusDisputed
	}
	if ci.Confirmations >= e.cfg.VerificationThreshold && ci.ConfidenceScore >= e.cfg.MinVerifyScore {
		return models.StatusVerified
	}
	return status
}

// ShouldExpire reports whether an idle hazard should be retired by the
// out-of-band sweep. Only unverified hazards auto-expire.
func (e *Engine) ShouldExpire(h *models.Hazard, now time.Time) bool {
	if h.Status != models.StatusUnverified {
		return false
	}
	return now.Sub(h.LastUpdatedAt) > e.cfg.ExpiryWindow
}
