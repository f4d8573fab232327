package httpapi

import (
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/Mityatc/hospitai/internal/agent"
	"github.com/Mityatc/hospitai/internal/models"
	"github.com/Mityatc/hospitai/internal/service"
)

// AgentHandler serves the agent control endpoints: run, approve, reject,
// status, pending queue and audit log.
type AgentHandler struct {
	svc               *service.AgentService
	defaultFacilityID string
	logger            *zap.Logger
}

func NewAgentHandler(svc *service.AgentService, defaultFacilityID string, logger *zap.Logger) *AgentHandler {
	return &AgentHandler{
		svc:               svc,
		defaultFacilityID: defaultFacilityID,
		logger:            logger,
	}
}

type runCycleRequest struct {
	FacilityID     string `json:"facility_id"`
	AutonomousMode *bool  `json:"autonomous_mode"`
}

// RunCycle triggers one decision cycle.
func (h *AgentHandler) RunCycle(w http.ResponseWriter, r *http.Request) {
	var req runCycleRequest
	if err := readBodyJSON(r, 1<<20, &req); err != nil {
		writeError(w, http.StatusBadRequest, "malformed request body")
		return
	}

	facilityID := req.FacilityID
	if facilityID == "" {
		facilityID = h.defaultFacilityID
	}

	output, err := h.svc.RunCycle(r.Context(), facilityID, req.AutonomousMode)
	if err != nil {
		h.writeServiceError(w, facilityID, "cycle failed", err)
		return
	}
	writeJSON(w, http.StatusOK, output)
}

// Approve executes a pending action by ID.
func (h *AgentHandler) Approve(w http.ResponseWriter, r *http.Request, idStr string) {
	h.resolve(w, r, idStr, h.svc.Approve, "approved")
}

// Reject discards a pending action by ID.
func (h *AgentHandler) Reject(w http.ResponseWriter, r *http.Request, idStr string) {
	h.resolve(w, r, idStr, h.svc.Reject, "rejected")
}

func (h *AgentHandler) resolve(w http.ResponseWriter, r *http.Request, idStr string, fn func(string, int64) error, outcome string) {
	id := parseInt64(idStr, -1)
	if id < 0 {
		writeError(w, http.StatusBadRequest, "invalid action id")
		return
	}

	facilityID := h.facilityID(r)
	if err := fn(facilityID, id); err != nil {
		if errors.Is(err, agent.ErrActionNotFound) {
			writeError(w, http.StatusNotFound, "pending action not found")
			return
		}
		h.writeServiceError(w, facilityID, "action resolution failed", err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"action_id": id,
		"outcome":   outcome,
	})
}

// LastCycle serves the cached output of the facility's most recent cycle.
// On a cache miss it falls back to the live session counters and queue.
func (h *AgentHandler) LastCycle(w http.ResponseWriter, r *http.Request) {
	facilityID := h.facilityID(r)

	if data, ok := h.svc.LastCycle(r.Context(), facilityID); ok {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(data)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"cached":          false,
		"agent_status":    h.svc.Status(facilityID),
		"pending_actions": h.svc.PendingActions(facilityID),
	})
}

// Status reports the session counters.
func (h *AgentHandler) Status(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.svc.Status(h.facilityID(r)))
}

// Pending lists the approval queue.
func (h *AgentHandler) Pending(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"pending_actions": h.svc.PendingActions(h.facilityID(r)),
	})
}

// AuditLog returns the audit trail.
func (h *AgentHandler) AuditLog(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"audit_log": h.svc.AuditLog(h.facilityID(r)),
	})
}

func (h *AgentHandler) facilityID(r *http.Request) string {
	if id := r.URL.Query().Get("facility_id"); id != "" {
		return id
	}
	return h.defaultFacilityID
}

func (h *AgentHandler) writeServiceError(w http.ResponseWriter, facilityID, msg string, err error) {
	var dataErr *models.DataError
	if errors.As(err, &dataErr) {
		writeError(w, http.StatusBadRequest, dataErr.Error())
		return
	}
	h.logger.Error(msg, zap.String("facility_id", facilityID), zap.Error(err))
	writeError(w, http.StatusInternalServerError, "internal error")
}
