package ingest

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"roadwatch/internal/engine"
	"roadwatch/internal/logger"
	"roadwatch/internal/metrics"
	"roadwatch/internal/models"
	"roadwatch/internal/publisher"
	"roadwatch/internal/repository/memory"
	"roadwatch/internal/store"
)

func testIngestor(t *testing.T) (*Ingestor, *store.Store) {
	t.Helper()
	s, err := store.New(
		store.Config{},
		engine.New(engine.DefaultConfig()),
		memory.NewHazardRepository(),
		memory.NewFeedbackRepository(),
		publisher.Noop{},
		metrics.NewTest(),
		logger.New(t.TempDir()),
	)
	require.NoError(t, err)
	t.Cleanup(s.Close)
	return New(s, metrics.NewTest(), logger.New(t.TempDir()), 0.25), s
}

func result(detections ...models.Detection) *models.DetectionResult {
	return &models.DetectionResult{
		FrameID:        "frame-1",
		Detections:     detections,
		DetectionCount: len(detections),
		Timestamp:      float64(time.Now().Unix()),
	}
}

func TestIngest_CreatesHazard(t *testing.T) {
	ing, s := testIngestor(t)

	accepted := ing.Ingest(result(models.Detection{ClassName: "Pothole", Confidence: 0.8}), SessionContext{
		ClientID: "edge-1",
		Location: &models.Location{Latitude: 52.2297, Longitude: 21.0122},
	})

	require.Len(t, accepted, 1)
	assert.Equal(t, "Pothole", accepted[0].ClassName)
	assert.Equal(t, "edge-1", accepted[0].ReportedBy)
	assert.Equal(t, 1, s.Stats().Total)
}

func TestIngest_FiltersLowConfidence(t *testing.T) {
	ing, s := testIngestor(t)

	ing.Ingest(result(
		models.Detection{ClassName: "Pothole", Confidence: 0.1},
		models.Detection{ClassName: "Debris", Confidence: 0.24},
	), SessionContext{
		ClientID: "edge-1",
		Location: &models.Location{Latitude: 52.2297, Longitude: 21.0122},
	})

	assert.Equal(t, 0, s.Stats().Total)
}

func TestIngest_SkipsWithoutLocation(t *testing.T) {
	ing, s := testIngestor(t)

	ing.Ingest(result(models.Detection{ClassName: "Pothole", Confidence: 0.9}), SessionContext{
		ClientID: "edge-1",
	})

	assert.Equal(t, 0, s.Stats().Total)
}

func TestIngest_DeduplicatesAgainstStore(t *testing.T) {
	ing, s := testIngestor(t)

	sess := SessionContext{
		ClientID: "edge-1",
		Location: &models.Location{Latitude: 52.2297, Longitude: 21.0122},
	}
	ing.Ingest(result(models.Detection{ClassName: "Pothole", Confidence: 0.8}), sess)
	ing.Ingest(result(models.Detection{ClassName: "Pothole", Confidence: 0.6}), sess)

	assert.Equal(t, 1, s.Stats().Total)
}
