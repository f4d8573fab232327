// Package service coordinates the decision pipeline: it loads history from
// the store, runs agent cycles per facility, and fans results out to the
// cache and notifier.
package service

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/Mityatc/hospitai/internal/agent"
	"github.com/Mityatc/hospitai/internal/detector"
	"github.com/Mityatc/hospitai/internal/models"
	"github.com/Mityatc/hospitai/internal/repository"
	"github.com/Mityatc/hospitai/internal/snapshot"
)

// ResultCache is the subset of the cycle cache the service needs. Nil-able
// via the interface so Redis stays optional.
type ResultCache interface {
	StoreResult(ctx context.Context, facilityID string, result interface{}) error
	GetResult(ctx context.Context, facilityID string) ([]byte, error)
	PublishAction(ctx context.Context, facilityID string, actionType, description string, auto bool) (string, error)
}

// Notifier pushes executed actions to external channels.
type Notifier interface {
	NotifyExecuted(facilityID string, action models.Action) error
}

// Options configures an AgentService.
type Options struct {
	HistoryDays    int
	AuditLogCap    int
	AutonomousMode bool
	Clock          agent.Clock
}

// CycleOutput is one cycle result with its identifiers and rendered trace.
type CycleOutput struct {
	CycleID    string `json:"cycle_id"`
	FacilityID string `json:"facility_id"`
	agent.CycleResult
	ReasoningText string `json:"reasoning_text"`
}

// DashboardSummary is the read-only facility overview. It evaluates the
// current situation without planning or executing anything.
type DashboardSummary struct {
	FacilityID string           `json:"facility_id"`
	Situation  models.Situation `json:"situation"`
	Issues     []models.Issue   `json:"issues"`
	Assessment string           `json:"assessment"`
	Status     agent.Status     `json:"agent_status"`
}

// AgentService owns one agent session per facility.
type AgentService struct {
	store    repository.MetricsStore
	cache    ResultCache
	notifier Notifier
	opts     Options
	logger   *zap.Logger

	mu       sync.Mutex
	sessions map[string]*agent.Session
}

// NewAgentService creates the service. cache and notifier may be nil.
func NewAgentService(store repository.MetricsStore, cache ResultCache, notifier Notifier, opts Options, logger *zap.Logger) *AgentService {
	if opts.HistoryDays <= 0 {
		opts.HistoryDays = 30
	}
	if opts.Clock == nil {
		opts.Clock = time.Now
	}
	return &AgentService{
		store:    store,
		cache:    cache,
		notifier: notifier,
		opts:     opts,
		logger:   logger,
		sessions: make(map[string]*agent.Session),
	}
}

func (s *AgentService) session(facilityID string) *agent.Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[facilityID]
	if !ok {
		sess = agent.NewSession(facilityID, s.opts.AuditLogCap, s.opts.Clock, s.logger)
		s.sessions[facilityID] = sess
	}
	return sess
}

// RunCycle executes one full cycle for the facility. autonomous overrides the
// configured default mode when non-nil.
func (s *AgentService) RunCycle(ctx context.Context, facilityID string, autonomous *bool) (*CycleOutput, error) {
	records, err := s.store.ListRecent(facilityID, s.opts.HistoryDays)
	if err != nil {
		return nil, err
	}

	mode := s.opts.AutonomousMode
	if autonomous != nil {
		mode = *autonomous
	}

	result, err := s.session(facilityID).RunCycle(records, mode)
	if err != nil {
		return nil, err
	}

	output := &CycleOutput{
		CycleID:       uuid.New().String(),
		FacilityID:    facilityID,
		CycleResult:   *result,
		ReasoningText: agent.RenderTrace(result.ReasoningTrace),
	}

	// Cache and notification failures are logged, not surfaced; the cycle
	// itself already succeeded.
	if s.cache != nil {
		if err := s.cache.StoreResult(ctx, facilityID, output); err != nil {
			s.logger.Warn("Failed to cache cycle result",
				zap.String("facility_id", facilityID), zap.Error(err))
		}
		for _, a := range result.Actions.Executed {
			if _, err := s.cache.PublishAction(ctx, facilityID, string(a.Type), a.Description, a.AutoExecuted); err != nil {
				s.logger.Warn("Failed to publish action event",
					zap.String("facility_id", facilityID), zap.Error(err))
			}
		}
	}
	if s.notifier != nil {
		for _, a := range result.Actions.Executed {
			if err := s.notifier.NotifyExecuted(facilityID, a); err != nil {
				s.logger.Warn("Failed to notify executed action",
					zap.String("facility_id", facilityID),
					zap.Int64("action_id", a.ID), zap.Error(err))
			}
		}
	}

	return output, nil
}

// LastCycle returns the cached JSON of the facility's most recent cycle
// output. ok is false when no cache is configured or the entry is missing or
// expired; callers fall back to the live session view.
func (s *AgentService) LastCycle(ctx context.Context, facilityID string) ([]byte, bool) {
	if s.cache == nil {
		return nil, false
	}
	data, err := s.cache.GetResult(ctx, facilityID)
	if err != nil {
		return nil, false
	}
	return data, true
}

// Approve executes a queued action.
func (s *AgentService) Approve(facilityID string, actionID int64) error {
	return s.session(facilityID).Approve(actionID)
}

// Reject discards a queued action.
func (s *AgentService) Reject(facilityID string, actionID int64) error {
	return s.session(facilityID).Reject(actionID)
}

// Status reports the session counters for the facility.
func (s *AgentService) Status(facilityID string) agent.Status {
	return s.session(facilityID).Status()
}

// PendingActions lists the facility's approval queue.
func (s *AgentService) PendingActions(facilityID string) []models.Action {
	return s.session(facilityID).PendingActions()
}

// AuditLog returns the facility's audit trail.
func (s *AgentService) AuditLog(facilityID string) []models.AuditLogEntry {
	return s.session(facilityID).AuditLog()
}

// Summary evaluates the current situation read-only for dashboards. No
// actions are planned and no session state changes.
func (s *AgentService) Summary(facilityID string) (*DashboardSummary, error) {
	records, err := s.store.ListRecent(facilityID, s.opts.HistoryDays)
	if err != nil {
		return nil, err
	}

	snap, err := snapshot.Build(records, s.opts.Clock())
	if err != nil {
		return nil, err
	}
	issues, err := detector.Detect(snap)
	if err != nil {
		return nil, err
	}

	return &DashboardSummary{
		FacilityID: facilityID,
		Situation:  snap.Situation(),
		Issues:     issues,
		Assessment: assessIssues(issues),
		Status:     s.session(facilityID).Status(),
	}, nil
}

// assessIssues bands the detected issues into a one-line dashboard banner.
// Any critical finding dominates; warnings alone read as elevated.
func assessIssues(issues []models.Issue) string {
	critical := false
	warning := false
	for _, i := range issues {
		switch i.Severity {
		case models.SeverityEmergency, models.SeverityCritical:
			critical = true
		case models.SeverityWarning:
			warning = true
		}
	}
	switch {
	case critical:
		return "🔴 CRITICAL: immediate intervention required"
	case warning:
		return "🟡 ELEVATED: close monitoring recommended"
	default:
		return "🟢 STABLE: hospital operations within normal parameters"
	}
}

// Alerts returns only the currently detected issues for the facility.
func (s *AgentService) Alerts(facilityID string) ([]models.Issue, error) {
	summary, err := s.Summary(facilityID)
	if err != nil {
		return nil, err
	}
	return summary.Issues, nil
}

// SaveRecords stores uploaded daily records for the facility.
func (s *AgentService) SaveRecords(facilityID string, records []models.DailyRecord) error {
	return s.store.SaveRecords(facilityID, records)
}
