package httpapi

import (
	"errors"
	"io"
	"net/http"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/Mityatc/hospitai/internal/envdata"
	"github.com/Mityatc/hospitai/internal/ingest"
	"github.com/Mityatc/hospitai/internal/models"
	"github.com/Mityatc/hospitai/internal/service"
)

const maxUploadBytes = 10 << 20

// DashboardHandler serves the read-side endpoints and metric uploads.
type DashboardHandler struct {
	svc               *service.AgentService
	weather           *envdata.Client
	defaultFacilityID string
	logger            *zap.Logger
}

func NewDashboardHandler(svc *service.AgentService, weather *envdata.Client, defaultFacilityID string, logger *zap.Logger) *DashboardHandler {
	return &DashboardHandler{
		svc:               svc,
		weather:           weather,
		defaultFacilityID: defaultFacilityID,
		logger:            logger,
	}
}

// Summary returns the current situation and detected issues.
func (h *DashboardHandler) Summary(w http.ResponseWriter, r *http.Request) {
	facilityID := h.facilityID(r)
	summary, err := h.svc.Summary(facilityID)
	if err != nil {
		h.writeServiceError(w, facilityID, "summary failed", err)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

// Alerts returns only the detected issues.
func (h *DashboardHandler) Alerts(w http.ResponseWriter, r *http.Request) {
	facilityID := h.facilityID(r)
	issues, err := h.svc.Alerts(facilityID)
	if err != nil {
		h.writeServiceError(w, facilityID, "alert evaluation failed", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"alerts": issues})
}

// Upload ingests a CSV or xlsx metrics file from a multipart form.
func (h *DashboardHandler) Upload(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		writeError(w, http.StatusBadRequest, "malformed multipart form")
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "missing file field")
		return
	}
	defer file.Close()

	var records []models.DailyRecord
	switch strings.ToLower(filepath.Ext(header.Filename)) {
	case ".csv":
		records, err = ingest.ParseCSV(file)
	case ".xlsx":
		var data []byte
		data, err = io.ReadAll(io.LimitReader(file, maxUploadBytes))
		if err == nil {
			records, err = ingest.ParseExcel(data)
		}
	default:
		writeError(w, http.StatusBadRequest, "unsupported file type, expected .csv or .xlsx")
		return
	}

	facilityID := h.facilityID(r)
	if err != nil {
		h.writeServiceError(w, facilityID, "upload parsing failed", err)
		return
	}

	if err := h.svc.SaveRecords(facilityID, records); err != nil {
		h.writeServiceError(w, facilityID, "upload save failed", err)
		return
	}

	h.logger.Info("Uploaded daily metrics",
		zap.String("facility_id", facilityID),
		zap.String("filename", header.Filename),
		zap.Int("record_count", len(records)),
	)
	writeJSON(w, http.StatusOK, map[string]any{
		"facility_id":  facilityID,
		"record_count": len(records),
	})
}

// LiveData proxies current weather and air quality for a city. Without a
// configured API key it answers 503.
func (h *DashboardHandler) LiveData(w http.ResponseWriter, r *http.Request) {
	city := strings.ToLower(r.URL.Query().Get("city"))
	if city == "" {
		city = "delhi"
	}

	conditions, err := h.weather.Fetch(city)
	if err != nil {
		if errors.Is(err, envdata.ErrNotConfigured) {
			writeError(w, http.StatusServiceUnavailable, "live data not configured")
			return
		}
		h.logger.Error("Live data fetch failed", zap.String("city", city), zap.Error(err))
		writeError(w, http.StatusBadGateway, "live data unavailable")
		return
	}
	writeJSON(w, http.StatusOK, conditions)
}

func (h *DashboardHandler) facilityID(r *http.Request) string {
	if id := r.URL.Query().Get("facility_id"); id != "" {
		return id
	}
	return h.defaultFacilityID
}

func (h *DashboardHandler) writeServiceError(w http.ResponseWriter, facilityID, msg string, err error) {
	var dataErr *models.DataError
	if errors.As(err, &dataErr) {
		writeError(w, http.StatusBadRequest, dataErr.Error())
		return
	}
	h.logger.Error(msg, zap.String("facility_id", facilityID), zap.Error(err))
	writeError(w, http.StatusInternalServerError, "internal error")
}
