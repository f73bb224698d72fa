package detection

import "roadwatch/internal/models"

// Detector is the perception model boundary. Implementations run an
// object detector over one encoded frame and return the hits.
type Detector interface {
	Detect(frame []byte) ([]models.Detection, error)
	ModelInfo() map[string]string
}

// NopDetector accepts frames and reports nothing. Used when the
// service runs without a model attached; Name is what the handshake
// advertises to clients.
type NopDetector struct {
	Name string
}

func (NopDetector) Detect([]byte) ([]models.Detection, error) { return nil, nil }

func (d NopDetector) ModelInfo() map[string]string {
	name := d.Name
	if name == "" {
		name = "none"
	}
	return map[string]string{"model": name}
}
