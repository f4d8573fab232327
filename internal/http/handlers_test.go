package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Mityatc/hospitai/internal/envdata"
	"github.com/Mityatc/hospitai/internal/models"
	"github.com/Mityatc/hospitai/internal/repository"
	"github.com/Mityatc/hospitai/internal/service"
)

var handlerNow = time.Date(2026, 3, 15, 8, 0, 0, 0, time.UTC)

func seedRecords(t *testing.T, store repository.MetricsStore, facilityID string, occupancy float64) {
	t.Helper()

	records := make([]models.DailyRecord, 7)
	start := handlerNow.AddDate(0, 0, -6)
	for i := range records {
		records[i] = models.DailyRecord{
			Date:             start.AddDate(0, 0, i),
			TotalBeds:        200,
			OccupiedBeds:     int(occupancy * 200),
			TotalICUBeds:     20,
			OccupiedICU:      10,
			TotalVentilators: 15,
			VentilatorsUsed:  6,
			StaffOnDuty:      40,
			Pollution:        80,
			Temperature:      24,
			FluCases:         10,
		}
	}
	require.NoError(t, store.SaveRecords(facilityID, records))
}

// memCache is an in-process stand-in for the Redis cycle cache.
type memCache struct {
	data map[string][]byte
}

func newMemCache() *memCache {
	return &memCache{data: make(map[string][]byte)}
}

func (c *memCache) StoreResult(_ context.Context, facilityID string, result interface{}) error {
	data, err := json.Marshal(result)
	if err != nil {
		return err
	}
	c.data[facilityID] = data
	return nil
}

func (c *memCache) GetResult(_ context.Context, facilityID string) ([]byte, error) {
	data, ok := c.data[facilityID]
	if !ok {
		return nil, errors.New("cache miss")
	}
	return data, nil
}

func (c *memCache) PublishAction(context.Context, string, string, string, bool) (string, error) {
	return "1-0", nil
}

func setupRouter(t *testing.T, occupancy float64) (*Router, *service.AgentService) {
	t.Helper()
	return setupRouterWithCache(t, occupancy, nil)
}

func setupRouterWithCache(t *testing.T, occupancy float64, cache service.ResultCache) (*Router, *service.AgentService) {
	t.Helper()

	store := repository.NewMemoryStore()
	seedRecords(t, store, "default", occupancy)

	svc := service.NewAgentService(store, cache, nil, service.Options{
		HistoryDays: 30,
		Clock:       func() time.Time { return handlerNow },
	}, zap.NewNop())

	weather := envdata.NewClient("https://api.openweathermap.org", "", zap.NewNop())

	router := NewRouter(zap.NewNop())
	router.RegisterAgentRoutes(NewAgentHandler(svc, "default", zap.NewNop()))
	router.RegisterDashboardRoutes(NewDashboardHandler(svc, weather, "default", zap.NewNop()))
	router.RegisterHealthRoutes()

	return router, svc
}

func doJSON(t *testing.T, router *Router, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestHealthz(t *testing.T) {
	router, _ := setupRouter(t, 0.60)

	rec := doJSON(t, router, http.MethodGet, "/healthz", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestRunCycleEndpoint(t *testing.T) {
	router, _ := setupRouter(t, 0.85)

	rec := doJSON(t, router, http.MethodPost, "/agent/api/v1/agent/run",
		map[string]any{"autonomous_mode": false})
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		CycleID string `json:"cycle_id"`
		Issues  []struct {
			Type string `json:"type"`
		} `json:"issues"`
		Actions struct {
			Executed []struct {
				ID int64 `json:"id"`
			} `json:"executed"`
			Pending []struct {
				ID int64 `json:"id"`
			} `json:"pending"`
		} `json:"actions"`
		ReasoningText string `json:"reasoning_text"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))

	assert.NotEmpty(t, body.CycleID)
	require.Len(t, body.Issues, 1)
	assert.Equal(t, "capacity_warning", body.Issues[0].Type)
	assert.Empty(t, body.Actions.Executed)
	require.Len(t, body.Actions.Pending, 1)
	assert.Contains(t, body.ReasoningText, "## Agent Reasoning")
}

func TestLastCycleEndpoint_ServedFromCache(t *testing.T) {
	cache := newMemCache()
	router, _ := setupRouterWithCache(t, 0.85, cache)

	run := doJSON(t, router, http.MethodPost, "/agent/api/v1/agent/run",
		map[string]any{"autonomous_mode": false})
	require.Equal(t, http.StatusOK, run.Code)

	var ran struct {
		CycleID string `json:"cycle_id"`
	}
	require.NoError(t, json.Unmarshal(run.Body.Bytes(), &ran))

	rec := doJSON(t, router, http.MethodGet, "/agent/api/v1/agent/last-cycle", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var cached struct {
		CycleID string `json:"cycle_id"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &cached))
	assert.Equal(t, ran.CycleID, cached.CycleID)
}

func TestLastCycleEndpoint_MissFallsBackToSession(t *testing.T) {
	router, _ := setupRouter(t, 0.85)

	rec := doJSON(t, router, http.MethodGet, "/agent/api/v1/agent/last-cycle", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Cached bool `json:"cached"`
		Status struct {
			Initialized bool `json:"initialized"`
		} `json:"agent_status"`
		Pending []models.Action `json:"pending_actions"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.False(t, body.Cached)
	assert.False(t, body.Status.Initialized)
	assert.Empty(t, body.Pending)
}

func TestRunCycleEndpoint_MethodNotAllowed(t *testing.T) {
	router, _ := setupRouter(t, 0.60)

	rec := doJSON(t, router, http.MethodGet, "/agent/api/v1/agent/run", nil)
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestApproveEndpoint(t *testing.T) {
	router, svc := setupRouter(t, 0.85)

	_, err := svc.RunCycle(httptest.NewRequest(http.MethodPost, "/", nil).Context(), "default", nil)
	require.NoError(t, err)
	pending := svc.PendingActions("default")
	require.Len(t, pending, 1)

	rec := doJSON(t, router, http.MethodPost,
		fmt.Sprintf("/agent/api/v1/agent/approve/%d", pending[0].ID), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"approved"`)

	assert.Equal(t, 1, svc.Status("default").ExecutedCount)
}

func TestApproveEndpoint_UnknownID(t *testing.T) {
	router, _ := setupRouter(t, 0.60)

	rec := doJSON(t, router, http.MethodPost, "/agent/api/v1/agent/approve/42", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestApproveEndpoint_BadID(t *testing.T) {
	router, _ := setupRouter(t, 0.60)

	rec := doJSON(t, router, http.MethodPost, "/agent/api/v1/agent/approve/nope", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRejectEndpoint(t *testing.T) {
	router, svc := setupRouter(t, 0.85)

	_, err := svc.RunCycle(httptest.NewRequest(http.MethodPost, "/", nil).Context(), "default", nil)
	require.NoError(t, err)
	pending := svc.PendingActions("default")
	require.Len(t, pending, 1)

	rec := doJSON(t, router, http.MethodPost,
		fmt.Sprintf("/agent/api/v1/agent/reject/%d", pending[0].ID), nil)
	require.Equal(t, http.StatusOK, rec.Code)

	// Rejection is terminal; a second resolution attempt is a 404.
	rec = doJSON(t, router, http.MethodPost,
		fmt.Sprintf("/agent/api/v1/agent/approve/%d", pending[0].ID), nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestStatusEndpoint(t *testing.T) {
	router, _ := setupRouter(t, 0.60)

	rec := doJSON(t, router, http.MethodGet, "/agent/api/v1/agent/status", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var status struct {
		Initialized    bool `json:"initialized"`
		PendingActions int  `json:"pending_actions"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &status))
	assert.False(t, status.Initialized)
	assert.Equal(t, 0, status.PendingActions)
}

func TestAuditLogEndpoint(t *testing.T) {
	router, svc := setupRouter(t, 0.85)

	autonomous := true
	_, err := svc.RunCycle(httptest.NewRequest(http.MethodPost, "/", nil).Context(), "default", &autonomous)
	require.NoError(t, err)

	rec := doJSON(t, router, http.MethodGet, "/agent/api/v1/agent/log", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		AuditLog []struct {
			Action string `json:"action"`
			Auto   bool   `json:"auto"`
		} `json:"audit_log"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Len(t, body.AuditLog, 1)
	assert.True(t, body.AuditLog[0].Auto)
}

func TestSummaryEndpoint(t *testing.T) {
	router, _ := setupRouter(t, 0.85)

	rec := doJSON(t, router, http.MethodGet, "/agent/api/v1/dashboard/summary", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var summary struct {
		Situation struct {
			Metrics struct {
				BedOccupancyPct float64 `json:"bed_occupancy_pct"`
			} `json:"metrics"`
		} `json:"situation"`
		Issues []any `json:"issues"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &summary))
	assert.Equal(t, 85.0, summary.Situation.Metrics.BedOccupancyPct)
	assert.Len(t, summary.Issues, 1)
}

func TestAlertsEndpoint(t *testing.T) {
	router, _ := setupRouter(t, 0.60)

	rec := doJSON(t, router, http.MethodGet, "/agent/api/v1/dashboard/alerts", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"alerts":[]}`, rec.Body.String())
}

func uploadRequest(t *testing.T, filename, content string) *http.Request {
	t.Helper()

	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	part, err := writer.CreateFormFile("file", filename)
	require.NoError(t, err)
	_, err = part.Write([]byte(content))
	require.NoError(t, err)
	require.NoError(t, writer.Close())

	req := httptest.NewRequest(http.MethodPost, "/agent/api/v1/dashboard/upload", &buf)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	return req
}

func TestUploadEndpoint_CSV(t *testing.T) {
	router, svc := setupRouter(t, 0.60)

	csv := "date,total_beds,occupied_beds\n2026-04-01,200,150\n2026-04-02,200,160\n"
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, uploadRequest(t, "metrics.csv", csv))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"record_count":2`)

	// Uploaded days are visible to the next summary.
	summary, err := svc.Summary("default")
	require.NoError(t, err)
	assert.Equal(t, 80.0, summary.Situation.Metrics.BedOccupancyPct)
}

func TestUploadEndpoint_BadData(t *testing.T) {
	router, _ := setupRouter(t, 0.60)

	csv := "date,total_beds\n2026-04-01,200\n"
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, uploadRequest(t, "metrics.csv", csv))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "occupied_beds")
}

func TestUploadEndpoint_UnsupportedExtension(t *testing.T) {
	router, _ := setupRouter(t, 0.60)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, uploadRequest(t, "metrics.txt", "whatever"))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestUploadEndpoint_MissingFile(t *testing.T) {
	router, _ := setupRouter(t, 0.60)

	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	require.NoError(t, writer.Close())

	req := httptest.NewRequest(http.MethodPost, "/agent/api/v1/dashboard/upload", &buf)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestLiveDataEndpoint_NotConfigured(t *testing.T) {
	router, _ := setupRouter(t, 0.60)

	rec := doJSON(t, router, http.MethodGet, "/agent/api/v1/dashboard/live-data?city=delhi", nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestFacilityIDQueryParameter(t *testing.T) {
	router, svc := setupRouter(t, 0.60)

	csv := "date,total_beds,occupied_beds\n2026-04-01,100,95\n"
	req := uploadRequest(t, "metrics.csv", csv)
	req.URL.RawQuery = "facility_id=north-wing"
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	summary, err := svc.Summary("north-wing")
	require.NoError(t, err)
	assert.Equal(t, 95.0, summary.Situation.Metrics.BedOccupancyPct)

	// The default facility is unaffected.
	summary, err = svc.Summary("default")
	require.NoError(t, err)
	assert.Equal(t, 60.0, summary.Situation.Metrics.BedOccupancyPct)
}

func TestRunCycleEndpoint_MalformedBody(t *testing.T) {
	router, _ := setupRouter(t, 0.60)

	req := httptest.NewRequest(http.MethodPost, "/agent/api/v1/agent/run",
		strings.NewReader("{not json"))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
