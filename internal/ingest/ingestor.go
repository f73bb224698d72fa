package ingest

import (
	"roadwatch/internal/logger"
	"roadwatch/internal/metrics"
	"roadwatch/internal/models"
	"roadwatch/internal/store"
)

// SessionContext identifies the edge client a detection result came
// from and where the vehicle was when the frame was captured.
type SessionContext struct {
	ClientID string
	Location *models.Location
}

// Ingestor filters raw detection results and folds the survivors into
// the hazard store.
type Ingestor struct {
	store     *store.Store
	metrics   *metrics.Metrics
	log       *logger.Logger
	threshold float64
}

func New(s *store.Store, m *metrics.Metrics, log *logger.Logger, confidenceThreshold float64) *Ingestor {
	if confidenceThreshold <= 0 {
		confidenceThreshold = 0.25
	}
	return &Ingestor{
		store:     s,
		metrics:   m,
		log:       log,
		threshold: confidenceThreshold,
	}
}

// Ingest processes one detection result and returns the candidates
// that made it into the store. Detections below the confidence
// threshold are dropped, and a frame without a GPS fix cannot map to
// a hazard, so the whole result is skipped.
func (i *Ingestor) Ingest(result *models.DetectionResult, sess SessionContext) []models.HazardCandidate {
	if len(result.Detections) == 0 {
		return nil
	}
	if sess.Location == nil {
		i.log.Warning("Client %s: %d detections dropped, frame %s has no location",
			sess.ClientID, len(result.Detections), result.FrameID)
		return nil
	}

	var accepted []models.HazardCandidate
	for _, d := range result.Detections {
		if d.Confidence < i.threshold {
			continue
		}
		i.metrics.DetectionsTotal.Inc()
		c := models.HazardCandidate{
			ClassName:  d.ClassName,
			Location:   *sess.Location,
			Confidence: d.Confidence,
			ReportedBy: sess.ClientID,
		}
		if _, _, err := i.store.Upsert(c); err != nil {
			i.log.Error("Client %s: ingesting %s detection: %v", sess.ClientID, d.ClassName, err)
			continue
		}
		accepted = append(accepted, c)
	}
	return accepted
}
