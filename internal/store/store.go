package store

import (
	"errors"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"roadwatch/internal/engine"
	"roadwatch/internal/geo"
	"roadwatch/internal/logger"
	"roadwatch/internal/metrics"
	"roadwatch/internal/models"
	"roadwatch/internal/publisher"
	"roadwatch/internal/repository"
)

var (
	ErrHazardNotFound  = errors.New("hazard not found")
	ErrInvalidFeedback = errors.New("invalid feedback event")
	ErrFeedbackTooFar  = errors.New("feedback submitted too far from hazard")
)

// entry pairs a per-hazard write lock with an atomically swappable
// snapshot. Writers take mu, clone the snapshot, edit the clone and
// swap it in; readers load the pointer without locking.
type entry struct {
	mu   sync.Mutex
	snap atomic.Pointer[models.Hazard]
}

// Config holds the store policy knobs.
type Config struct {
	SpatialTolerance float64       // meters; detections closer than this merge
	ProximityRadius  float64       // meters; located feedback farther than this is rejected
	SweepInterval    time.Duration // how often the expiry sweep runs
}

// Stats summarizes the hazard population.
type Stats struct {
	Total      int            `json:"total_hazards"`
	ByStatus   map[string]int `json:"by_status"`
	BySeverity map[string]int `json:"by_severity"`
}

// Contribution is a user's standing in the crowd verification system.
type Contribution struct {
	UserID          string  `json:"user_id"`
	FeedbackCount   int     `json:"feedback_count"`
	ReputationScore float64 `json:"reputation_score"`
}

// Store is the authoritative in-memory hazard map, backed by the
// repositories for durability and the publisher for downstream export.
type Store struct {
	cfg      Config
	engine   *engine.Engine
	hazards  repository.HazardRepository
	feedback repository.FeedbackRepository
	pub      publisher.HazardPublisher
	metrics  *metrics.Metrics
	log      *logger.Logger

	mu      sync.RWMutex // guards the entries map, not the hazards
	entries map[string]*entry

	sweepDone chan struct{}
	sweepOnce sync.Once
}

// New builds a store hydrated from the hazard repository.
func New(
	cfg Config,
	eng *engine.Engine,
	hazards repository.HazardRepository,
	feedback repository.FeedbackRepository,
	pub publisher.HazardPublisher,
	m *metrics.Metrics,
	log *logger.Logger,
) (*Store, error) {
	if cfg.SpatialTolerance <= 0 {
		cfg.SpatialTolerance = 15.0
	}
	if cfg.ProximityRadius <= 0 {
		cfg.ProximityRadius = 50.0
	}
	if cfg.SweepInterval <= 0 {
		cfg.SweepInterval = 10 * time.Minute
	}

	s := &Store{
		cfg:       cfg,
		engine:    eng,
		hazards:   hazards,
		feedback:  feedback,
		pub:       pub,
		metrics:   m,
		log:       log,
		entries:   make(map[string]*entry),
		sweepDone: make(chan struct{}),
	}

	existing, err := hazards.GetAll()
	if err != nil {
		return nil, err
	}
	for _, h := range existing {
		e := &entry{}
		e.snap.Store(h)
		s.entries[h.HazardID] = e
		s.metrics.HazardsByStatus.WithLabelValues(string(h.Status)).Inc()
	}
	if len(existing) > 0 {
		log.Info("Hazard store hydrated with %d hazards", len(existing))
	}
	return s, nil
}

// Upsert folds a detection candidate into the map. A candidate within
// SpatialTolerance of a live hazard of the same class reinforces that
// hazard; otherwise a new hazard is created. Returns the resulting
// snapshot and whether a new hazard was created.
func (s *Store) Upsert(c models.HazardCandidate) (*models.Hazard, bool, error) {
	if e := s.findNearbyEntry(c); e != nil {
		e.mu.Lock()
		defer e.mu.Unlock()

		cur := e.snap.Load()
		// Re-check under the lock: the hazard may have gone terminal
		// between the scan and the lock acquisition.
		if !cur.Status.Terminal() && cur.ClassName == c.ClassName &&
			geo.Distance(cur.Location, c.Location) <= s.cfg.SpatialTolerance {
			next := cur.Clone()
			next.LastUpdatedAt = time.Now().UTC()
			if c.Confidence > next.InitialConfidence {
				next.InitialConfidence = c.Confidence
			}
			if err := s.hazards.Update(next); err != nil {
				return nil, false, err
			}
			e.snap.Store(next)
			return next, false, nil
		}
		// Stale match, fall through and create.
	}

	now := time.Now().UTC()
	h := &models.Hazard{
		HazardID:          uuid.New().String(),
		ClassName:         c.ClassName,
		Location:          c.Location,
		InitialConfidence: c.Confidence,
		Severity:          engine.AssessSeverity(c.ClassName, c.Confidence),
		Status:            models.StatusUnverified,
		Crowd: models.CrowdIntelligence{
			ConfidenceScore: c.Confidence,
			Contributors:    map[string]map[models.FeedbackKind]bool{},
		},
		FirstSeenAt:   now,
		LastUpdatedAt: now,
	}
	if err := s.hazards.Insert(h); err != nil {
		return nil, false, err
	}

	e := &entry{}
	e.snap.Store(h)
	s.mu.Lock()
	s.entries[h.HazardID] = e
	s.mu.Unlock()

	s.metrics.HazardsCreated.Inc()
	s.metrics.HazardsByStatus.WithLabelValues(string(models.StatusUnverified)).Inc()
	s.publish(publisher.EventCreated, h)
	s.log.Info("New hazard %s (%s) at %.5f,%.5f conf=%.2f",
		h.HazardID, h.ClassName, h.Location.Latitude, h.Location.Longitude, c.Confidence)
	return h, true, nil
}

// findNearbyEntry scans for a live hazard of the same class within the
// merge tolerance. Best-effort: the match is revalidated under the
// entry lock by the caller.
func (s *Store) findNearbyEntry(c models.HazardCandidate) *entry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, e := range s.entries {
		h := e.snap.Load()
		if h.Status.Terminal() || h.ClassName != c.ClassName {
			continue
		}
		if geo.Distance(h.Location, c.Location) <= s.cfg.SpatialTolerance {
			return e
		}
	}
	return nil
}

// ApplyFeedback runs one feedback event through the verification engine
// and persists the outcome. Unknown hazard ids return ErrHazardNotFound.
// Located feedback must come from within ProximityRadius of the hazard;
// events without a location are accepted as-is.
func (s *Store) ApplyFeedback(ev models.FeedbackEvent) (*models.Hazard, error) {
	if ev.HazardID == "" || ev.UserID == "" {
		return nil, ErrInvalidFeedback
	}

	s.mu.RLock()
	e, ok := s.entries[ev.HazardID]
	s.mu.RUnlock()
	if !ok {
		return nil, ErrHazardNotFound
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	cur := e.snap.Load()
	if ev.Location != nil {
		if d := geo.Distance(cur.Location, *ev.Location); d > s.cfg.ProximityRadius {
			return nil, fmt.Errorf("%w: %.0fm away, limit %.0fm", ErrFeedbackTooFar, d, s.cfg.ProximityRadius)
		}
	}

	crowd, status := s.engine.NextState(cur.Crowd, cur.Status, cur.InitialConfidence, ev)

	next := cur.Clone()
	next.Crowd = crowd
	next.Status = status
	next.Severity = engine.AssessSeverity(next.ClassName, crowd.ConfidenceScore)
	next.LastUpdatedAt = time.Now().UTC()

	if err := s.hazards.Update(next); err != nil {
		return nil, err
	}
	// The aggregate is authoritative; the event log is audit trail. Append
	// only after the update lands so a failed update leaves no orphan event.
	if err := s.feedback.Append(&ev); err != nil {
		s.log.Error("Appending feedback event for hazard %s: %v", next.HazardID, err)
	}
	e.snap.Store(next)

	s.metrics.FeedbackEvents.WithLabelValues(string(ev.Kind)).Inc()
	if next.Status != cur.Status {
		s.metrics.HazardsByStatus.WithLabelValues(string(cur.Status)).Dec()
		s.metrics.HazardsByStatus.WithLabelValues(string(next.Status)).Inc()
		s.publishTransition(next)
		s.log.Info("Hazard %s: %s -> %s (score %.3f, %d confirms / %d denials)",
			next.HazardID, cur.Status, next.Status,
			crowd.ConfidenceScore, crowd.Confirmations, crowd.Denials)
	}
	return next, nil
}

func (s *Store) publishTransition(h *models.Hazard) {
	switch h.Status {
	case models.StatusVerified:
		s.publish(publisher.EventVerified, h)
	case models.StatusDisputed:
		s.publish(publisher.EventDisputed, h)
	case models.StatusResolved:
		s.publish(publisher.EventResolved, h)
	case models.StatusExpired:
		s.publish(publisher.EventExpired, h)
	}
}

func (s *Store) publish(event string, h *models.Hazard) {
	if err := s.pub.Publish(event, h); err != nil {
		s.log.Error("Publishing %s for hazard %s: %v", event, h.HazardID, err)
		return
	}
	s.metrics.PublishedEvents.Inc()
}

// Get returns the current snapshot for a hazard id.
func (s *Store) Get(hazardID string) (*models.Hazard, bool) {
	s.mu.RLock()
	e, ok := s.entries[hazardID]
	s.mu.RUnlock()
	if !ok {
		return nil, false
	}
	return e.snap.Load(), true
}

// Nearby returns hazards within radius meters of the given point,
// sorted by crowd confidence, highest first. Resolved and expired
// hazards are omitted unless includeTerminal is set.
func (s *Store) Nearby(lat, lon, radius float64, includeTerminal bool) []*models.Hazard {
	center := models.Location{Latitude: lat, Longitude: lon}

	s.mu.RLock()
	out := make([]*models.Hazard, 0, len(s.entries))
	for _, e := range s.entries {
		h := e.snap.Load()
		if h.Status.Terminal() && !includeTerminal {
			continue
		}
		if geo.Distance(h.Location, center) <= radius {
			out = append(out, h)
		}
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		return out[i].Crowd.ConfidenceScore > out[j].Crowd.ConfidenceScore
	})
	return out
}

// Stats returns population counts by status and severity.
func (s *Store) Stats() Stats {
	st := Stats{
		ByStatus:   make(map[string]int),
		BySeverity: make(map[string]int),
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, e := range s.entries {
		h := e.snap.Load()
		st.Total++
		st.ByStatus[string(h.Status)]++
		st.BySeverity[string(h.Severity)]++
	}
	return st
}

// UserContribution reports how much feedback a user has given and the
// reputation derived from it: five points per event, capped at 100.
func (s *Store) UserContribution(userID string) (Contribution, error) {
	events, err := s.feedback.ListByUser(userID)
	if err != nil {
		return Contribution{}, err
	}
	score := float64(len(events)) * 5.0
	if score > 100 {
		score = 100
	}
	return Contribution{
		UserID:          userID,
		FeedbackCount:   len(events),
		ReputationScore: score,
	}, nil
}

// Sweep retires unverified hazards that have been idle past the expiry
// window. Exposed so callers can trigger a pass outside the timer.
func (s *Store) Sweep(now time.Time) int {
	s.mu.RLock()
	candidates := make([]*entry, 0)
	for _, e := range s.entries {
		if s.engine.ShouldExpire(e.snap.Load(), now) {
			candidates = append(candidates, e)
		}
	}
	s.mu.RUnlock()

	expired := 0
	for _, e := range candidates {
		e.mu.Lock()
		cur := e.snap.Load()
		if !s.engine.ShouldExpire(cur, now) {
			e.mu.Unlock()
			continue
		}
		next := cur.Clone()
		next.Status = models.StatusExpired
		next.LastUpdatedAt = now
		if err := s.hazards.Update(next); err != nil {
			s.log.Error("Expiring hazard %s: %v", cur.HazardID, err)
			e.mu.Unlock()
			continue
		}
		e.snap.Store(next)
		e.mu.Unlock()

		expired++
		s.metrics.HazardsExpired.Inc()
		s.metrics.HazardsByStatus.WithLabelValues(string(cur.Status)).Dec()
		s.metrics.HazardsByStatus.WithLabelValues(string(models.StatusExpired)).Inc()
		s.publish(publisher.EventExpired, next)
	}
	if expired > 0 {
		s.log.Info("Expiry sweep retired %d hazards", expired)
	}
	return expired
}

// StartSweeper runs the expiry sweep on SweepInterval until Close.
func (s *Store) StartSweeper() {
	go func() {
		ticker := time.NewTicker(s.cfg.SweepInterval)
		defer ticker.Stop()
		for {
			select {
			case <-s.sweepDone:
				return
			case <-ticker.C:
				s.Sweep(time.Now().UTC())
			}
		}
	}()
}

// Close stops the sweeper. Safe to call more than once.
func (s *Store) Close() {
	s.sweepOnce.Do(func() { close(s.sweepDone) })
}
