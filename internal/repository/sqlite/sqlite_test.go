package sqlite

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"roadwatch/internal/models"
)

func testDB(t *testing.T) *DB {
	t.Helper()

	db, err := New(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func sampleHazard(id string) *models.Hazard {
	now := time.Now().UTC().Truncate(time.Second)
	return &models.Hazard{
		HazardID:          id,
		ClassName:         "Pothole",
		Location:          models.Location{Latitude: 52.2297, Longitude: 21.0122},
		InitialConfidence: 0.7,
		Severity:          models.SeverityHigh,
		Status:            models.StatusUnverified,
		Crowd: models.CrowdIntelligence{
			Contributors: make(map[string]map[models.FeedbackKind]bool),
		},
		FirstSeenAt:   now,
		LastUpdatedAt: now,
	}
}

func TestHazardRepository_InsertAndGet(t *testing.T) {
	db := testDB(t)
	repo := NewHazardRepository(db)

	h := sampleHazard("hz-1")
	require.NoError(t, repo.Insert(h))

	got, err := repo.GetByID("hz-1")
	require.NoError(t, err)
	require.NotNil(t, got)

	assert.Equal(t, "Pothole", got.ClassName)
	assert.Equal(t, models.StatusUnverified, got.Status)
	assert.InDelta(t, 52.2297, got.Location.Latitude, 1e-6)
	assert.InDelta(t, 0.7, got.InitialConfidence, 1e-9)
	assert.NotNil(t, got.Crowd.Contributors)
}

func TestHazardRepository_GetByID_Missing(t *testing.T) {
	db := testDB(t)
	repo := NewHazardRepository(db)

	got, err := repo.GetByID("nope")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestHazardRepository_UpdatePersistsCrowdState(t *testing.T) {
	db := testDB(t)
	repo := NewHazardRepository(db)

	h := sampleHazard("hz-1")
	require.NoError(t, repo.Insert(h))

	h.Status = models.StatusVerified
	h.Crowd.Confirmations = 3
	h.Crowd.TotalFeedback = 3
	h.Crowd.ConfidenceScore = 0.925
	h.Crowd.Contributors["u1"] = map[models.FeedbackKind]bool{models.FeedbackConfirm: true}
	require.NoError(t, repo.Update(h))

	got, err := repo.GetByID("hz-1")
	require.NoError(t, err)
	assert.Equal(t, models.StatusVerified, got.Status)
	assert.Equal(t, 3, got.Crowd.Confirmations)
	assert.InDelta(t, 0.925, got.Crowd.ConfidenceScore, 1e-9)
	assert.True(t, got.Crowd.Seen("u1", models.FeedbackConfirm))
}

func TestHazardRepository_GetAll(t *testing.T) {
	db := testDB(t)
	repo := NewHazardRepository(db)

	require.NoError(t, repo.Insert(sampleHazard("hz-1")))
	require.NoError(t, repo.Insert(sampleHazard("hz-2")))

	all, err := repo.GetAll()
	require.NoError(t, err)
	assert.Len(t, all, 2)
}

func TestFeedbackRepository_AppendAndList(t *testing.T) {
	db := testDB(t)
	hazards := NewHazardRepository(db)
	feedback := NewFeedbackRepository(db)

	require.NoError(t, hazards.Insert(sampleHazard("hz-1")))

	ev := &models.FeedbackEvent{
		HazardID:    "hz-1",
		UserID:      "u1",
		Kind:        models.FeedbackConfirm,
		Location:    &models.Location{Latitude: 52.23, Longitude: 21.01},
		Confidence:  1.0,
		Comment:     "still there",
		SubmittedAt: time.Now().UTC().Truncate(time.Second),
	}
	require.NoError(t, feedback.Append(ev))
	require.NoError(t, feedback.Append(&models.FeedbackEvent{
		HazardID: "hz-1", UserID: "u2", Kind: models.FeedbackDeny,
		SubmittedAt: time.Now().UTC().Truncate(time.Second),
	}))

	byHazard, err := feedback.ListByHazard("hz-1")
	require.NoError(t, err)
	require.Len(t, byHazard, 2)
	assert.Equal(t, models.FeedbackConfirm, byHazard[0].Kind)
	assert.Equal(t, "still there", byHazard[0].Comment)
	require.NotNil(t, byHazard[0].Location)
	assert.InDelta(t, 52.23, byHazard[0].Location.Latitude, 1e-6)
	assert.Nil(t, byHazard[1].Location)

	byUser, err := feedback.ListByUser("u1")
	require.NoError(t, err)
	require.Len(t, byUser, 1)
	assert.Equal(t, "hz-1", byUser[0].HazardID)
}
