package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics bundles the prometheus instruments for the service.
type Metrics struct {
	FramesProcessed prometheus.Counter
	DetectionsTotal prometheus.Counter
	FeedbackEvents  *prometheus.CounterVec
	HazardsByStatus *prometheus.GaugeVec
	ActiveSessions  prometheus.Gauge
	HazardsCreated  prometheus.Counter
	HazardsExpired  prometheus.Counter
	PublishedEvents prometheus.Counter
}

// New registers and returns the service metrics on the given registerer.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		FramesProcessed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "roadwatch_frames_processed_total",
			Help: "Frames received and run through detection.",
		}),
		DetectionsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "roadwatch_detections_total",
			Help: "Detections accepted above the confidence threshold.",
		}),
		FeedbackEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "roadwatch_feedback_events_total",
			Help: "Feedback events applied, labeled by kind.",
		}, []string{"kind"}),
		HazardsByStatus: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "roadwatch_hazards",
			Help: "Current hazards by verification status.",
		}, []string{"status"}),
		ActiveSessions: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "roadwatch_active_sessions",
			Help: "Open websocket detection sessions.",
		}),
		HazardsCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "roadwatch_hazards_created_total",
			Help: "New hazards created by the ingestor.",
		}),
		HazardsExpired: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "roadwatch_hazards_expired_total",
			Help: "Hazards retired by the expiry sweep.",
		}),
		PublishedEvents: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "roadwatch_published_events_total",
			Help: "Hazard events handed to the export publisher.",
		}),
	}

	reg.MustRegister(
		m.FramesProcessed,
		m.DetectionsTotal,
		m.FeedbackEvents,
		m.HazardsByStatus,
		m.ActiveSessions,
		m.HazardsCreated,
		m.HazardsExpired,
		m.PublishedEvents,
	)
	return m
}

// NewTest returns metrics on a throwaway registry for tests.
func NewTest() *Metrics {
	return New(prometheus.NewRegistry())
}
