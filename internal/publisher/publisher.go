package publisher

import "roadwatch/internal/models"

// Event names carried on the export stream.
const (
	EventCreated  = "hazard_created"
	EventVerified = "hazard_verified"
	EventDisputed = "hazard_disputed"
	EventResolved = "hazard_resolved"
	EventExpired  = "hazard_expired"
)

// HazardPublisher exports hazard lifecycle events for downstream consumers.
type HazardPublisher interface {
	Publish(event string, hazard *models.Hazard) error
	Close()
}

// Noop discards every event. Used when no broker is configured.
type Noop struct{}

func (Noop) Publish(string, *models.Hazard) error { return nil }
func (Noop) Close()                               {}
