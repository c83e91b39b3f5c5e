package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/windfleet/turbinewatch/internal/config"
	"github.com/windfleet/turbinewatch/internal/database"
	"github.com/windfleet/turbinewatch/internal/domain"
	"github.com/windfleet/turbinewatch/internal/pipeline"
	"github.com/windfleet/turbinewatch/internal/storage"
)

func setupServer(t *testing.T) (*Server, *storage.Store) {
	t.Helper()

	db, err := database.New(database.Config{
		Path:    filepath.Join(t.TempDir(), "turbine.db"),
		Profile: database.ProfileStandard,
		Name:    "turbine-test",
	})
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, storage.ApplySchema(db.Conn()))

	log := zerolog.Nop()
	store := storage.NewStore(db, false, log)

	cfg := config.DefaultPipeline()
	cfg.Workers = 0
	pipe := pipeline.New(cfg, store.Readings, store.Summaries, store, log)
	runner := pipeline.NewRunner(pipe, log)

	srv := New(Config{Log: log, Port: 0, DB: db, Store: store, Runner: runner})
	return srv, store
}

func doRequest(t *testing.T, srv *Server, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}

func TestHandleHealth(t *testing.T) {
	srv, _ := setupServer(t)

	rec := doRequest(t, srv, http.MethodGet, "/api/health", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "healthy", decodeBody(t, rec)["status"])
}

func TestHandleTurbineSummaries(t *testing.T) {
	srv, store := setupServer(t)
	require.NoError(t, store.Summaries.Insert([]domain.DailySummary{
		{TurbineID: 1, Date: time.Date(2025, 4, 7, 0, 0, 0, 0, time.UTC), DailyTotal: 300, Count: 3},
		{TurbineID: 1, Date: time.Date(2025, 4, 8, 0, 0, 0, 0, time.UTC), DailyTotal: 380, Count: 4},
		{TurbineID: 2, Date: time.Date(2025, 4, 8, 0, 0, 0, 0, time.UTC), DailyTotal: 500, Count: 4},
	}))

	rec := doRequest(t, srv, http.MethodGet, "/api/turbines/1/summaries", "")
	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, float64(1), body["turbine_id"])
	assert.Len(t, body["summaries"], 2)

	rec = doRequest(t, srv, http.MethodGet, "/api/turbines/1/summaries?days=1", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decodeBody(t, rec)["summaries"], 1)

	rec = doRequest(t, srv, http.MethodGet, "/api/turbines/abc/summaries", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doRequest(t, srv, http.MethodGet, "/api/turbines/1/summaries?days=0", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleAnomalies(t *testing.T) {
	srv, store := setupServer(t)
	require.NoError(t, store.Anomalies.Insert([]domain.AnomalyRecord{
		{TurbineID: 1, Date: time.Date(2025, 4, 8, 0, 0, 0, 0, time.UTC), ActualTotal: 380, IsAnomaly: true, Evaluated: true},
		{TurbineID: 2, Date: time.Date(2025, 4, 8, 0, 0, 0, 0, time.UTC), ActualTotal: 500, Evaluated: true},
	}))

	rec := doRequest(t, srv, http.MethodGet, "/api/anomalies?date=2025-04-08", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decodeBody(t, rec)["anomalies"], 2)

	rec = doRequest(t, srv, http.MethodGet, "/api/anomalies", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decodeBody(t, rec)["anomalies"], 1) // only the flagged one

	rec = doRequest(t, srv, http.MethodGet, "/api/anomalies?date=April+8th", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doRequest(t, srv, http.MethodGet, "/api/anomalies?limit=-1", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleIngest(t *testing.T) {
	srv, store := setupServer(t)

	csv := "timestamp,turbine_id,wind_speed,wind_direction,power_output\n" +
		"2025-04-08 00:00:00,1,10,180,100\n" +
		"2025-04-08 00:05:00,1,11,182,90\n"
	path := filepath.Join(t.TempDir(), "2025-04-08.csv")
	require.NoError(t, os.WriteFile(path, []byte(csv), 0644))

	rec := doRequest(t, srv, http.MethodPost, "/api/ingest",
		`{"file":`+jsonString(path)+`,"group":1}`)
	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, "done", body["stage"])
	assert.Equal(t, float64(2), body["rows_kept"])

	n, err := store.Readings.Count()
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestHandleIngest_BadRequests(t *testing.T) {
	srv, _ := setupServer(t)

	rec := doRequest(t, srv, http.MethodPost, "/api/ingest", "{not json")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doRequest(t, srv, http.MethodPost, "/api/ingest", `{"group":1}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doRequest(t, srv, http.MethodPost, "/api/ingest", `{"file":"x.csv","group":9}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleIngest_RejectsBadBatches(t *testing.T) {
	srv, _ := setupServer(t)
	dir := t.TempDir()

	// Missing the power_output column
	schemaPath := filepath.Join(dir, "schema.csv")
	require.NoError(t, os.WriteFile(schemaPath, []byte(
		"timestamp,turbine_id,wind_speed,wind_direction\n2025-04-08 00:00:00,1,10,180\n"), 0644))

	rec := doRequest(t, srv, http.MethodPost, "/api/ingest",
		`{"file":`+jsonString(schemaPath)+`,"group":1}`)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	// Turbine 7 does not belong to group 1
	groupPath := filepath.Join(dir, "group.csv")
	require.NoError(t, os.WriteFile(groupPath, []byte(
		"timestamp,turbine_id,wind_speed,wind_direction,power_output\n2025-04-08 00:00:00,7,10,180,100\n"), 0644))

	rec = doRequest(t, srv, http.MethodPost, "/api/ingest",
		`{"file":`+jsonString(groupPath)+`,"group":1}`)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}

// jsonString JSON-quotes a string value.
func jsonString(s string) string {
	b, _ := json.Marshal(s)
	return string(b)
}
