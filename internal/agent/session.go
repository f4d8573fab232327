// Package agent owns the per-facility decision state: the approval queue, the
// executed-action history, the audit log and the cycle orchestration.
package agent

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/Mityatc/hospitai/internal/detector"
	"github.com/Mityatc/hospitai/internal/models"
	"github.com/Mityatc/hospitai/internal/planner"
	"github.com/Mityatc/hospitai/internal/snapshot"
)

// ErrActionNotFound is returned by Approve/Reject for an unknown or already
// resolved action reference. It is recoverable and surfaced to the caller as a
// 404-equivalent, never a panic.
var ErrActionNotFound = errors.New("pending action not found")

// Clock supplies timestamps; injected so tests control time deterministically.
type Clock func() time.Time

// Per-phase heuristic confidence constants recorded in the reasoning trace.
const (
	confidencePerception = 0.95
	confidenceReasoning  = 0.85
	confidencePlanning   = 0.80
	confidenceExecution  = 0.90
)

// CycleActions splits the planned actions by how the execution gate resolved
// them.
type CycleActions struct {
	Executed []models.Action `json:"executed"`
	Pending  []models.Action `json:"pending"`
}

// CycleResult is the output of one full perceive→reason→plan→execute cycle.
type CycleResult struct {
	Situation      models.Situation `json:"situation"`
	Issues         []models.Issue   `json:"issues"`
	Actions        CycleActions     `json:"actions"`
	ReasoningTrace []models.Thought `json:"reasoning_trace"`
}

// Status is the session summary exposed by the status endpoint.
type Status struct {
	Initialized    bool `json:"initialized"`
	AutonomousMode bool `json:"autonomous_mode"`
	PendingCount   int  `json:"pending_actions"`
	ExecutedCount  int  `json:"actions_taken"`
}

// Session holds the mutable decision state of one monitored facility. All
// operations serialize through the mutex: concurrent approve/reject calls
// against the same reference cannot both succeed.
type Session struct {
	mu sync.Mutex

	facilityID     string
	autonomousMode bool
	initialized    bool

	nextID       int64
	pending      map[int64]*models.Action
	pendingOrder []int64
	executed     []models.Action

	auditLog []models.AuditLogEntry
	auditCap int
	memory   []models.MemoryEntry
	trace    []models.Thought

	clock  Clock
	logger *zap.Logger
}

// NewSession creates a session for one facility. auditCap bounds the audit
// log (0 means unbounded); the oldest entries are dropped past the cap.
func NewSession(facilityID string, auditCap int, clock Clock, logger *zap.Logger) *Session {
	if clock == nil {
		clock = time.Now
	}
	return &Session{
		facilityID: facilityID,
		pending:    make(map[int64]*models.Action),
		auditCap:   auditCap,
		clock:      clock,
		logger:     logger,
	}
}

// RunCycle runs the full pipeline over the daily series and executes or
// queues the planned actions. Session state is only touched once the series
// builds and the issue scan passes: a failed cycle leaves the mode flag, the
// trace and the memory exactly as the previous cycle left them. The trace is
// then rebuilt from scratch; issues and the snapshot are never carried over.
func (s *Session) RunCycle(records []models.DailyRecord, autonomousMode bool) (*CycleResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.clock()

	trace := make([]models.Thought, 0, 4)
	addThought := func(step, observation, reasoning, conclusion string, confidence float64) {
		trace = append(trace, models.Thought{
			Step:        step,
			Observation: observation,
			Reasoning:   reasoning,
			Conclusion:  conclusion,
			Confidence:  confidence,
			Timestamp:   s.clock(),
		})
	}

	snap, err := snapshot.Build(records, now)
	if err != nil {
		return nil, err
	}
	addThought("PERCEPTION",
		fmt.Sprintf("Gathered metrics: %.1f%% beds, %.1f%% ICU", snap.BedOccupancy*100, snap.ICUOccupancy*100),
		"Collecting state data", "Data captured", confidencePerception)

	issues, err := detector.Detect(snap)
	if err != nil {
		return nil, err
	}
	addThought("REASONING",
		fmt.Sprintf("Identified %d issues", len(issues)),
		"Threshold analysis", issueConclusion(issues), confidenceReasoning)

	s.autonomousMode = autonomousMode
	s.initialized = true

	actions := planner.Plan(issues, s.autonomousMode, now)
	addThought("PLANNING",
		fmt.Sprintf("Generated %d actions", len(actions)),
		"Issue-to-action mapping", planConclusion(actions), confidencePlanning)

	executed, pending := s.execute(actions)
	addThought("EXECUTION",
		fmt.Sprintf("Executed %d, pending %d", len(executed), len(pending)),
		"Autonomy-based execution", "Complete", confidenceExecution)

	s.trace = trace
	s.memory = append(s.memory, models.MemoryEntry{Timestamp: now, IssueCount: len(issues)})

	s.logger.Info("Agent cycle complete",
		zap.String("facility_id", s.facilityID),
		zap.Bool("autonomous_mode", s.autonomousMode),
		zap.Int("issue_count", len(issues)),
		zap.Int("executed", len(executed)),
		zap.Int("pending", len(pending)),
	)

	out := make([]models.Thought, len(trace))
	copy(out, trace)

	return &CycleResult{
		Situation:      snap.Situation(),
		Issues:         issues,
		Actions:        CycleActions{Executed: executed, Pending: pending},
		ReasoningTrace: out,
	}, nil
}

// execute is the gate between planned and executed/pending. An action executes
// immediately iff it is flagged auto_executed, or the session is autonomous
// and the action needs no approval; everything else enters the pending queue
// under a stable, monotonically increasing ID.
func (s *Session) execute(actions []models.Action) (executed, pending []models.Action) {
	executed = []models.Action{}
	pending = []models.Action{}
	for _, a := range actions {
		s.nextID++
		a.ID = s.nextID

		if a.AutoExecuted || (s.autonomousMode && !a.RequiresApproval) {
			a.AutoExecuted = true
			a.Status = models.StatusExecuted
			a.Outcome = "Executed automatically"
			s.executed = append(s.executed, a)
			executed = append(executed, a)
			s.appendAudit(models.AuditLogEntry{
				Timestamp:  s.clock(),
				Action:     a.Description,
				ActionType: a.Type,
				Auto:       true,
			})
			continue
		}

		a.Status = models.StatusPending
		queued := a
		s.pending[a.ID] = &queued
		s.pendingOrder = append(s.pendingOrder, a.ID)
		pending = append(pending, a)
	}
	return executed, pending
}

// Approve transitions a pending action to executed. Unknown or already
// resolved references return ErrActionNotFound.
func (s *Session) Approve(id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	a, ok := s.pending[id]
	if !ok {
		return ErrActionNotFound
	}
	s.removePending(id)

	a.Status = models.StatusExecuted
	a.Outcome = "Approved"
	s.executed = append(s.executed, *a)

	approved := true
	s.appendAudit(models.AuditLogEntry{
		Timestamp:  s.clock(),
		Action:     a.Description,
		ActionType: a.Type,
		Approved:   &approved,
	})

	s.logger.Info("Action approved",
		zap.String("facility_id", s.facilityID),
		zap.Int64("action_id", id),
		zap.String("description", a.Description),
	)
	return nil
}

// Reject removes a pending action. Rejection is terminal.
func (s *Session) Reject(id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	a, ok := s.pending[id]
	if !ok {
		return ErrActionNotFound
	}
	s.removePending(id)
	a.Status = models.StatusRejected

	approved := false
	s.appendAudit(models.AuditLogEntry{
		Timestamp:  s.clock(),
		Action:     a.Description,
		ActionType: a.Type,
		Approved:   &approved,
	})

	s.logger.Info("Action rejected",
		zap.String("facility_id", s.facilityID),
		zap.Int64("action_id", id),
		zap.String("description", a.Description),
	)
	return nil
}

func (s *Session) removePending(id int64) {
	delete(s.pending, id)
	for i, pid := range s.pendingOrder {
		if pid == id {
			s.pendingOrder = append(s.pendingOrder[:i], s.pendingOrder[i+1:]...)
			break
		}
	}
}

// Status reports the session counters.
func (s *Session) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Status{
		Initialized:    s.initialized,
		AutonomousMode: s.autonomousMode,
		PendingCount:   len(s.pending),
		ExecutedCount:  len(s.executed),
	}
}

// PendingActions returns the pending queue in insertion order.
func (s *Session) PendingActions() []models.Action {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.Action, 0, len(s.pendingOrder))
	for _, id := range s.pendingOrder {
		out = append(out, *s.pending[id])
	}
	return out
}

// AuditLog returns a copy of the audit trail.
func (s *Session) AuditLog() []models.AuditLogEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.AuditLogEntry, len(s.auditLog))
	copy(out, s.auditLog)
	return out
}

// Memory returns a copy of the per-cycle memory log.
func (s *Session) Memory() []models.MemoryEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.MemoryEntry, len(s.memory))
	copy(out, s.memory)
	return out
}

// Reset clears all session state. Exposed as an explicit call, never an
// implicit side effect of startup.
func (s *Session) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pending = make(map[int64]*models.Action)
	s.pendingOrder = nil
	s.executed = nil
	s.auditLog = nil
	s.memory = nil
	s.trace = nil
	s.nextID = 0
	s.initialized = false
}

func (s *Session) appendAudit(e models.AuditLogEntry) {
	s.auditLog = append(s.auditLog, e)
	if s.auditCap > 0 && len(s.auditLog) > s.auditCap {
		s.auditLog = s.auditLog[len(s.auditLog)-s.auditCap:]
	}
}

func issueConclusion(issues []models.Issue) string {
	if len(issues) == 0 {
		return "No issues"
	}
	types := make([]string, len(issues))
	for i, is := range issues {
		types[i] = is.Type
	}
	return "Issues: " + strings.Join(types, ", ")
}

func planConclusion(actions []models.Action) string {
	if len(actions) == 0 {
		return "Top: None"
	}
	return "Top: " + actions[0].Description
}

// RenderTrace formats a reasoning trace as a short markdown summary.
func RenderTrace(trace []models.Thought) string {
	var b strings.Builder
	b.WriteString("## Agent Reasoning\n")
	for i, t := range trace {
		fmt.Fprintf(&b, "**%d. %s**: %s (%.0f%%)\n", i+1, t.Step, t.Conclusion, t.Confidence*100)
	}
	return b.String()
}
