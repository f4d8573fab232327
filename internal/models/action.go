package models

import (
	"time"
)

// ActionType enumerates the closed set of interventions the planner can emit.
type ActionType string

const (
	ActionAlert              ActionType = "alert"
	ActionResourceRequest    ActionType = "resource_request"
	ActionStaffCall          ActionType = "staff_call"
	ActionDiversion          ActionType = "diversion"
	ActionSupplyOrder        ActionType = "supply_order"
	ActionProtocolActivation ActionType = "protocol_activation"
)

// Valid reports whether t is one of the declared action types.
func (t ActionType) Valid() bool {
	switch t {
	case ActionAlert, ActionResourceRequest, ActionStaffCall,
		ActionDiversion, ActionSupplyOrder, ActionProtocolActivation:
		return true
	}
	return false
}

// Action lifecycle states. An action is in exactly one state at a time:
// executed and rejected are terminal; pending awaits approve/reject.
const (
	StatusExecuted = "executed"
	StatusPending  = "pending"
	StatusRejected = "rejected"
)

// Action is one planned intervention. ID is a monotonically increasing
// reference assigned by the session when the action enters the pending queue
// or is executed; approve/reject address pending actions by this ID, never by
// list position.
type Action struct {
	ID               int64          `json:"id"`
	Type             ActionType     `json:"action_type"`
	Description      string         `json:"description"`
	Priority         int            `json:"priority"`
	AutoExecuted     bool           `json:"auto_executed"`
	RequiresApproval bool           `json:"requires_approval"`
	Details          map[string]any `json:"details"`
	Outcome          string         `json:"outcome,omitempty"`
	Status           string         `json:"status"`
	CreatedAt        time.Time      `json:"created_at"`
}
