package httpapi_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/keiba-predict/engine/httpapi"
	"github.com/keiba-predict/engine/prediction"
	"github.com/keiba-predict/engine/store"
)

func newTestServer(t *testing.T, requestsPerMinute int) (*httptest.Server, store.Store) {
	t.Helper()
	s := store.NewMockStore()
	mgr := newTestManager(t)
	f := prediction.New(s, mgr, nil, nil)
	srv := httpapi.NewServer(s, f, requestsPerMinute)
	ts := httptest.NewServer(srv.Router())
	t.Cleanup(ts.Close)
	return ts, s
}

type errorEnvelope struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
		Details string `json:"details"`
	} `json:"error"`
}

func TestRacesTodayReturns200(t *testing.T) {
	ts, _ := newTestServer(t, 100)
	resp, err := http.Get(ts.URL + "/races/today")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestRaceByIDNotFoundProducesEnvelope(t *testing.T) {
	ts, _ := newTestServer(t, 100)
	resp, err := http.Get(ts.URL + "/races/0000000000000000")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	var body errorEnvelope
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "RACE_NOT_FOUND", body.Error.Code)
}

func TestRacesByDateBadDateIsInvalidRequest(t *testing.T) {
	ts, _ := newTestServer(t, 100)
	resp, err := http.Get(ts.URL + "/races/date/not-a-date")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	var body errorEnvelope
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "INVALID_REQUEST", body.Error.Code)
}

func TestCreatePredictionRoundTrip(t *testing.T) {
	ts, _ := newTestServer(t, 100)

	reqBody, _ := json.Marshal(map[string]any{"race_id": "2025012506010911", "is_final": false})
	resp, err := http.Post(ts.URL+"/predictions/", "application/json", bytes.NewReader(reqBody))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var got map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&got))
	assert.Equal(t, "2025012506010911", got["RaceID"])
}

func TestCreatePredictionMissingRaceIDIsInvalidRequest(t *testing.T) {
	ts, _ := newTestServer(t, 100)
	resp, err := http.Post(ts.URL+"/predictions/", "application/json", bytes.NewReader([]byte(`{}`)))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestGetPredictionByIDNotFound(t *testing.T) {
	ts, _ := newTestServer(t, 100)
	resp, err := http.Get(ts.URL + "/predictions/does-not-exist")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	var body errorEnvelope
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "PREDICTION_NOT_FOUND", body.Error.Code)
}

func TestRateLimiterRejectsOverLimit(t *testing.T) {
	ts, _ := newTestServer(t, 1)
	reqBody, _ := json.Marshal(map[string]any{"race_id": "2025012506010911", "is_final": false})

	resp1, err := http.Post(ts.URL+"/predictions/", "application/json", bytes.NewReader(reqBody))
	require.NoError(t, err)
	resp1.Body.Close()
	assert.Equal(t, http.StatusOK, resp1.StatusCode)

	resp2, err := http.Post(ts.URL+"/predictions/", "application/json", bytes.NewReader(reqBody))
	require.NoError(t, err)
	defer resp2.Body.Close()
	assert.Equal(t, http.StatusTooManyRequests, resp2.StatusCode)
	assert.NotEmpty(t, resp2.Header.Get("Retry-After"))

	var body errorEnvelope
	require.NoError(t, json.NewDecoder(resp2.Body).Decode(&body))
	assert.Equal(t, "RATE_LIMIT_EXCEEDED", body.Error.Code)
}

func TestRateLimiterAllowsAgainAfterWindow(t *testing.T) {
	limiter := httpapi.NewRateLimiter(1, 50*time.Millisecond)
	assert.True(t, limiter.Allow())
	assert.False(t, limiter.Allow())
	time.Sleep(60 * time.Millisecond)
	assert.True(t, limiter.Allow())
}
