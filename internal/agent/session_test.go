package agent

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Mityatc/hospitai/internal/models"
)

var sessionNow = time.Date(2026, 3, 15, 8, 0, 0, 0, time.UTC)

func fixedClock() Clock {
	return func() time.Time { return sessionNow }
}

func newTestSession(t *testing.T) *Session {
	t.Helper()
	return NewSession("facility-1", 0, fixedClock(), zap.NewNop())
}

// history builds a daily series ending today with the given occupancy
// fraction on 200 beds. ICU, ventilators and staffing stay calm.
func history(days int, occupancy float64) []models.DailyRecord {
	records := make([]models.DailyRecord, days)
	start := sessionNow.AddDate(0, 0, -days+1)
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
	return records
}

func TestRunCycle_CalmSeries(t *testing.T) {
	s := newTestSession(t)

	result, err := s.RunCycle(history(7, 0.60), false)
	require.NoError(t, err)

	assert.Empty(t, result.Issues)
	assert.Empty(t, result.Actions.Executed)
	assert.Empty(t, result.Actions.Pending)
	assert.Equal(t, 60.0, result.Situation.Metrics.BedOccupancyPct)

	require.Len(t, result.ReasoningTrace, 4)
	steps := []string{"PERCEPTION", "REASONING", "PLANNING", "EXECUTION"}
	confidences := []float64{0.95, 0.85, 0.80, 0.90}
	for i, thought := range result.ReasoningTrace {
		assert.Equal(t, steps[i], thought.Step)
		assert.Equal(t, confidences[i], thought.Confidence)
		assert.Equal(t, sessionNow, thought.Timestamp)
	}
}

func TestRunCycle_WarningQueuesAlert(t *testing.T) {
	s := newTestSession(t)

	// 85% occupancy raises the bed warning; in supervised mode its alert
	// waits in the queue instead of executing.
	result, err := s.RunCycle(history(7, 0.85), false)
	require.NoError(t, err)

	require.Len(t, result.Issues, 1)
	assert.Equal(t, models.IssueCapacityWarning, result.Issues[0].Type)

	require.Len(t, result.Actions.Pending, 1)
	assert.Empty(t, result.Actions.Executed)
	assert.Equal(t, models.ActionAlert, result.Actions.Pending[0].Type)
	assert.Equal(t, 3, result.Actions.Pending[0].Priority)
}

func TestRunCycle_AutonomousExecutesUngatedActions(t *testing.T) {
	s := newTestSession(t)

	result, err := s.RunCycle(history(7, 0.85), true)
	require.NoError(t, err)

	require.Len(t, result.Actions.Executed, 1)
	assert.Empty(t, result.Actions.Pending)
	assert.Equal(t, models.StatusExecuted, result.Actions.Executed[0].Status)
	assert.Equal(t, "Executed automatically", result.Actions.Executed[0].Outcome)

	log := s.AuditLog()
	require.Len(t, log, 1)
	assert.True(t, log[0].Auto)
	assert.Nil(t, log[0].Approved)
}

func TestRunCycle_AssignsMonotonicIDs(t *testing.T) {
	s := newTestSession(t)

	first, err := s.RunCycle(history(7, 0.85), false)
	require.NoError(t, err)
	require.Len(t, first.Actions.Pending, 1)
	assert.Equal(t, int64(1), first.Actions.Pending[0].ID)

	second, err := s.RunCycle(history(7, 0.85), false)
	require.NoError(t, err)
	require.Len(t, second.Actions.Pending, 1)
	assert.Equal(t, int64(2), second.Actions.Pending[0].ID)

	// Both cycles' actions stay individually addressable.
	assert.Len(t, s.PendingActions(), 2)
}

func TestApprove_MovesActionToExecuted(t *testing.T) {
	s := newTestSession(t)

	result, err := s.RunCycle(history(7, 0.85), false)
	require.NoError(t, err)
	id := result.Actions.Pending[0].ID

	require.NoError(t, s.Approve(id))

	status := s.Status()
	assert.Equal(t, 0, status.PendingCount)
	assert.Equal(t, 1, status.ExecutedCount)

	log := s.AuditLog()
	require.Len(t, log, 1)
	assert.False(t, log[0].Auto)
	require.NotNil(t, log[0].Approved)
	assert.True(t, *log[0].Approved)
}

func TestReject_IsTerminal(t *testing.T) {
	s := newTestSession(t)

	result, err := s.RunCycle(history(7, 0.85), false)
	require.NoError(t, err)
	id := result.Actions.Pending[0].ID

	require.NoError(t, s.Reject(id))

	// A rejected action cannot be approved afterwards.
	assert.ErrorIs(t, s.Approve(id), ErrActionNotFound)
	assert.Equal(t, 0, s.Status().ExecutedCount)

	log := s.AuditLog()
	require.Len(t, log, 1)
	require.NotNil(t, log[0].Approved)
	assert.False(t, *log[0].Approved)
}

func TestApprove_UnknownID(t *testing.T) {
	s := newTestSession(t)
	assert.ErrorIs(t, s.Approve(99), ErrActionNotFound)
	assert.ErrorIs(t, s.Reject(99), ErrActionNotFound)
}

func TestApprove_ConcurrentSingleWinner(t *testing.T) {
	s := newTestSession(t)

	result, err := s.RunCycle(history(7, 0.85), false)
	require.NoError(t, err)
	id := result.Actions.Pending[0].ID

	const attempts = 16
	errs := make(chan error, attempts)
	var wg sync.WaitGroup
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs <- s.Approve(id)
		}()
	}
	wg.Wait()
	close(errs)

	succeeded := 0
	for err := range errs {
		if err == nil {
			succeeded++
		} else {
			assert.ErrorIs(t, err, ErrActionNotFound)
		}
	}
	assert.Equal(t, 1, succeeded)
	assert.Equal(t, 1, s.Status().ExecutedCount)
}

func TestRunCycle_MultiCrisis(t *testing.T) {
	s := newTestSession(t)

	// 95% beds, 93% ICU and a collapsed staffing ratio at once.
	records := history(7, 0.95)
	for i := range records {
		records[i].OccupiedICU = 19
		records[i].StaffOnDuty = 19
	}

	result, err := s.RunCycle(records, false)
	require.NoError(t, err)

	require.Len(t, result.Issues, 3)
	assert.Equal(t, models.IssueCapacityCritical, result.Issues[0].Type)
	assert.Equal(t, models.SeverityEmergency, result.Issues[0].Severity)
	assert.Equal(t, models.IssueCapacityCritical, result.Issues[1].Type)
	assert.Equal(t, models.ResourceICU, result.Issues[1].Resource)
	assert.Equal(t, models.IssueStaffingShortage, result.Issues[2].Type)

	// The ICU alert is an unconditional auto-execute; diversion, surge
	// protocol and staff callback all wait for approval in supervised mode.
	require.Len(t, result.Actions.Executed, 1)
	assert.Equal(t, "URGENT: ICU critical", result.Actions.Executed[0].Description)

	require.Len(t, result.Actions.Pending, 3)
	priorities := make([]int, len(result.Actions.Pending))
	for i, a := range result.Actions.Pending {
		priorities[i] = a.Priority
	}
	assert.Equal(t, []int{5, 5, 4}, priorities)

	// Beds, ICU and staffing flags trip; air, flu and ventilators stay calm.
	assert.True(t, result.Situation.Risk.SurgeRisk)
	assert.Equal(t, 3, result.Situation.Risk.Score)
	assert.Equal(t, "High", result.Situation.Risk.Level)
}

func TestRunCycle_EmptySeriesFails(t *testing.T) {
	s := newTestSession(t)

	_, err := s.RunCycle(nil, false)
	require.Error(t, err)

	var dataErr *models.DataError
	assert.ErrorAs(t, err, &dataErr)
	// A failed cycle never leaves partial state behind.
	status := s.Status()
	assert.Equal(t, 0, status.PendingCount)
	assert.False(t, status.Initialized)
	assert.Empty(t, s.Memory())
}

func TestRunCycle_FailureKeepsPreviousMode(t *testing.T) {
	s := newTestSession(t)

	_, err := s.RunCycle(history(10, 0.50), true)
	require.NoError(t, err)
	require.True(t, s.Status().AutonomousMode)

	// A cycle that fails validation must not flip the autonomy flag.
	_, err = s.RunCycle(nil, false)
	require.Error(t, err)

	status := s.Status()
	assert.True(t, status.AutonomousMode)
	assert.True(t, status.Initialized)
	assert.Len(t, s.Memory(), 1)
}

func TestRunCycle_MemoryAndStatus(t *testing.T) {
	s := newTestSession(t)

	assert.False(t, s.Status().Initialized)

	_, err := s.RunCycle(history(7, 0.60), true)
	require.NoError(t, err)
	_, err = s.RunCycle(history(7, 0.85), true)
	require.NoError(t, err)

	status := s.Status()
	assert.True(t, status.Initialized)
	assert.True(t, status.AutonomousMode)

	memory := s.Memory()
	require.Len(t, memory, 2)
	assert.Equal(t, 0, memory[0].IssueCount)
	assert.Equal(t, 1, memory[1].IssueCount)
}

func TestAuditLogCap(t *testing.T) {
	s := NewSession("facility-1", 3, fixedClock(), zap.NewNop())

	for i := 0; i < 5; i++ {
		_, err := s.RunCycle(history(7, 0.85), true)
		require.NoError(t, err)
	}

	assert.Len(t, s.AuditLog(), 3)
}

func TestReset_ClearsState(t *testing.T) {
	s := newTestSession(t)

	_, err := s.RunCycle(history(7, 0.85), false)
	require.NoError(t, err)

	s.Reset()

	status := s.Status()
	assert.False(t, status.Initialized)
	assert.Equal(t, 0, status.PendingCount)
	assert.Empty(t, s.AuditLog())

	// IDs restart after an explicit reset.
	result, err := s.RunCycle(history(7, 0.85), false)
	require.NoError(t, err)
	assert.Equal(t, int64(1), result.Actions.Pending[0].ID)
}

func TestRenderTrace(t *testing.T) {
	trace := []models.Thought{
		{Step: "PERCEPTION", Conclusion: "Data captured", Confidence: 0.95},
		{Step: "REASONING", Conclusion: "No issues", Confidence: 0.85},
	}

	text := RenderTrace(trace)
	assert.Contains(t, text, "## Agent Reasoning")
	assert.Contains(t, text, "**1. PERCEPTION**: Data captured (95%)")
	assert.Contains(t, text, "**2. REASONING**: No issues (85%)")
}
