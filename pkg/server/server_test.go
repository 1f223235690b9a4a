package server

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jason-ratigan/college-pickem-prediction-sub001/pkg/engine"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()

	require.NoError(t, engine.CloseDatabase())
	engine.Config.DbPath = filepath.Join(t.TempDir(), "test.db")
	require.NoError(t, engine.InitSchema())
	t.Cleanup(func() { _ = engine.CloseDatabase() })

	return New(engine.NewEngine(), ":0")
}

func doRequest(s *Server, method, path string, body any) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, req)
	return rec
}

func TestHealthEndpoint(t *testing.T) {
	s := newTestServer(t)

	rec := doRequest(s, http.MethodGet, "/api/health", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestGetWeightsInitializesSeason(t *testing.T) {
	s := newTestServer(t)

	rec := doRequest(s, http.MethodGet, "/api/weights/2024", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var weights engine.PredictionWeights
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &weights))
	assert.Equal(t, 1, weights.Version)
	assert.Equal(t, engine.FallbackWeights(), weights.Values)
}

func TestGetWeightsBadSeason(t *testing.T) {
	s := newTestServer(t)

	rec := doRequest(s, http.MethodGet, "/api/weights/banana", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestManualWeightUpdateRoundTrip(t *testing.T) {
	s := newTestServer(t)

	rec := doRequest(s, http.MethodPost, "/api/weights/2024", map[string]any{
		"values":  map[string]float64{"scoring": 0.4},
		"reason":  "offense-heavy conference",
		"actorId": "analyst-7",
	})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doRequest(s, http.MethodGet, "/api/weights/2024/history", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var history []engine.WeightChangeEntry
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &history))
	require.Len(t, history, 2)
	assert.Equal(t, "offense-heavy conference", history[0].Reason)
	assert.True(t, history[0].Manual)
}

func TestManualWeightUpdateRequiresReason(t *testing.T) {
	s := newTestServer(t)

	rec := doRequest(s, http.MethodPost, "/api/weights/2024", map[string]any{
		"values": map[string]float64{"scoring": 0.4},
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestManualWeightUpdateRejectsUnknownCategory(t *testing.T) {
	s := newTestServer(t)

	rec := doRequest(s, http.MethodPost, "/api/weights/2024", map[string]any{
		"values": map[string]float64{"vibes": 0.4},
		"reason": "trust the vibes",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestResetWeights(t *testing.T) {
	s := newTestServer(t)

	rec := doRequest(s, http.MethodPost, "/api/weights/2024", map[string]any{
		"values": map[string]float64{"scoring": 0.5},
		"reason": "experiment",
	})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doRequest(s, http.MethodPost, "/api/weights/2024/reset", map[string]any{
		"reason": "experiment over",
	})
	require.Equal(t, http.StatusOK, rec.Code)

	var weights engine.PredictionWeights
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &weights))
	assert.Equal(t, engine.FallbackWeights(), weights.Values)
}

func TestPredictWithoutDataFails(t *testing.T) {
	s := newTestServer(t)

	rec := doRequest(s, http.MethodGet, "/api/predict/2024/psu/rutgers", nil)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}

func TestRegressionWithoutDataFails(t *testing.T) {
	s := newTestServer(t)

	rec := doRequest(s, http.MethodPost, "/api/regression/2024", nil)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}

func TestAccuracyEmptySeason(t *testing.T) {
	s := newTestServer(t)

	rec := doRequest(s, http.MethodGet, "/api/accuracy/2024", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.EqualValues(t, 0, body["totalGames"])
}
