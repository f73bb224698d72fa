package handlers

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"roadwatch/internal/engine"
	"roadwatch/internal/ingest"
	"roadwatch/internal/logger"
	"roadwatch/internal/metrics"
	"roadwatch/internal/models"
	"roadwatch/internal/publisher"
	"roadwatch/internal/repository/memory"
	"roadwatch/internal/services/detection"
	"roadwatch/internal/store"
)

func testRouter(t *testing.T) (*mux.Router, *store.Store) {
	t.Helper()
	log := logger.New(t.TempDir())
	m := metrics.NewTest()
	s, err := store.New(
		store.Config{},
		engine.New(engine.DefaultConfig()),
		memory.NewHazardRepository(),
		memory.NewFeedbackRepository(),
		publisher.Noop{},
		m, log,
	)
	require.NoError(t, err)
	t.Cleanup(s.Close)

	svc := detection.NewService(
		detection.NopDetector{},
		ingest.New(s, m, log, 0.25),
		detection.NewRegistry(10),
		m, log,
	)

	r := mux.NewRouter()
	r.HandleFunc("/hazards", ReportHazardHandler(s, log)).Methods(http.MethodPost)
	r.HandleFunc("/hazards/nearby", NearbyHazardsHandler(s, log)).Methods(http.MethodGet)
	r.HandleFunc("/hazards/{id}", GetHazardHandler(s, log)).Methods(http.MethodGet)
	r.HandleFunc("/hazards/{id}/feedback", SubmitFeedbackHandler(s, log)).Methods(http.MethodPost)
	r.HandleFunc("/crowd/stats", CrowdStatsHandler(s, log)).Methods(http.MethodGet)
	r.HandleFunc("/users/{id}/contribution", UserContributionHandler(s, log)).Methods(http.MethodGet)
	r.HandleFunc("/sessions", SessionsHandler(svc, log)).Methods(http.MethodGet)
	r.HandleFunc("/health", HealthHandler(s, svc, log)).Methods(http.MethodGet)
	return r, s
}

func doJSON(t *testing.T, r http.Handler, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func reportHazard(t *testing.T, r http.Handler) models.Hazard {
	t.Helper()
	rec := doJSON(t, r, http.MethodPost, "/hazards", map[string]interface{}{
		"class_name":  "Pothole",
		"latitude":    52.2297,
		"longitude":   21.0122,
		"confidence":  0.8,
		"reported_by": "tester",
	})
	require.Equal(t, http.StatusCreated, rec.Code)
	var h models.Hazard
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&h))
	return h
}

func TestReportHazard(t *testing.T) {
	r, _ := testRouter(t)

	h := reportHazard(t, r)
	assert.NotEmpty(t, h.HazardID)
	assert.Equal(t, "Pothole", h.ClassName)
	assert.Equal(t, models.StatusUnverified, h.Status)

	// Same spot again merges: 200, same id.
	rec := doJSON(t, r, http.MethodPost, "/hazards", map[string]interface{}{
		"class_name": "Pothole",
		"latitude":   52.2297,
		"longitude":  21.0122,
		"confidence": 0.6,
	})
	assert.Equal(t, http.StatusOK, rec.Code)
	var merged models.Hazard
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&merged))
	assert.Equal(t, h.HazardID, merged.HazardID)
}

func TestReportHazard_Validation(t *testing.T) {
	r, _ := testRouter(t)

	rec := doJSON(t, r, http.MethodPost, "/hazards", map[string]interface{}{
		"latitude": 52.0, "longitude": 21.0,
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doJSON(t, r, http.MethodPost, "/hazards", map[string]interface{}{
		"class_name": "Pothole", "latitude": 123.0, "longitude": 21.0,
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGetHazard(t *testing.T) {
	r, _ := testRouter(t)
	h := reportHazard(t, r)

	rec := doJSON(t, r, http.MethodGet, "/hazards/"+h.HazardID, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var got models.Hazard
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&got))
	assert.Equal(t, h.HazardID, got.HazardID)

	rec = doJSON(t, r, http.MethodGet, "/hazards/nope", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestNearbyHazards(t *testing.T) {
	r, _ := testRouter(t)
	reportHazard(t, r)

	rec := doJSON(t, r, http.MethodGet,
		"/hazards/nearby?latitude=52.2297&longitude=21.0122&radius=500", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var resp struct {
		Hazards []models.Hazard `json:"hazards"`
		Count   int             `json:"count"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, 1, resp.Count)

	rec = doJSON(t, r, http.MethodGet, "/hazards/nearby?longitude=21.0122", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doJSON(t, r, http.MethodGet,
		"/hazards/nearby?latitude=91&longitude=21.0122", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSubmitFeedback(t *testing.T) {
	r, _ := testRouter(t)
	h := reportHazard(t, r)

	path := fmt.Sprintf("/hazards/%s/feedback", h.HazardID)
	for i, user := range []string{"alice", "bob", "carol"} {
		rec := doJSON(t, r, http.MethodPost, path, map[string]interface{}{
			"user_id":       user,
			"feedback_type": "confirm",
		})
		require.Equal(t, http.StatusOK, rec.Code, "confirm %d", i)
	}

	rec := doJSON(t, r, http.MethodGet, "/hazards/"+h.HazardID, nil)
	var got models.Hazard
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&got))
	assert.Equal(t, models.StatusVerified, got.Status)
}

func TestSubmitFeedback_Errors(t *testing.T) {
	r, _ := testRouter(t)
	h := reportHazard(t, r)

	path := fmt.Sprintf("/hazards/%s/feedback", h.HazardID)

	rec := doJSON(t, r, http.MethodPost, path, map[string]interface{}{
		"feedback_type": "confirm",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code, "missing user_id")

	rec = doJSON(t, r, http.MethodPost, path, map[string]interface{}{
		"user_id": "alice", "feedback_type": "definitely",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code, "unknown feedback type")

	rec = doJSON(t, r, http.MethodPost, "/hazards/nope/feedback", map[string]interface{}{
		"user_id": "alice", "feedback_type": "confirm",
	})
	assert.Equal(t, http.StatusNotFound, rec.Code)

	// Located feedback from ~250km away is rejected, and not counted.
	rec = doJSON(t, r, http.MethodPost, path, map[string]interface{}{
		"user_id": "alice", "feedback_type": "confirm",
		"latitude": 50.0647, "longitude": 19.9450,
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code, "feedback beyond proximity radius")

	rec = doJSON(t, r, http.MethodGet, "/hazards/"+h.HazardID, nil)
	var got models.Hazard
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&got))
	assert.Equal(t, models.StatusUnverified, got.Status)
}

func TestCrowdStatsAndHealth(t *testing.T) {
	r, _ := testRouter(t)
	reportHazard(t, r)

	rec := doJSON(t, r, http.MethodGet, "/crowd/stats", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var stats store.Stats
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&stats))
	assert.Equal(t, 1, stats.Total)
	assert.Equal(t, 1, stats.ByStatus["unverified"])

	rec = doJSON(t, r, http.MethodGet, "/health", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var health map[string]interface{}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&health))
	assert.Equal(t, "ok", health["status"])
}

func TestUserContribution(t *testing.T) {
	r, _ := testRouter(t)
	h := reportHazard(t, r)

	doJSON(t, r, http.MethodPost, fmt.Sprintf("/hazards/%s/feedback", h.HazardID),
		map[string]interface{}{"user_id": "alice", "feedback_type": "confirm"})

	rec := doJSON(t, r, http.MethodGet, "/users/alice/contribution", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var c store.Contribution
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&c))
	assert.Equal(t, 1, c.FeedbackCount)
	assert.Equal(t, 5.0, c.ReputationScore)
}
