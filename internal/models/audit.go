package models

import (
	"time"
)

// AuditLogEntry is one append-only record of an executed, approved or
// rejected action.
type AuditLogEntry struct {
	Timestamp  time.Time  `json:"timestamp"`
	Action     string     `json:"action"`
	ActionType ActionType `json:"type"`
	Auto       bool       `json:"auto"`
	Approved   *bool      `json:"approved,omitempty"`
}

// Thought is one entry of the per-cycle reasoning trace. Confidence is a fixed
// heuristic constant per phase.
type Thought struct {
	Step        string    `json:"step"`
	Observation string    `json:"observation"`
	Reasoning   string    `json:"reasoning"`
	Conclusion  string    `json:"conclusion"`
	Confidence  float64   `json:"confidence"`
	Timestamp   time.Time `json:"timestamp"`
}

// MemoryEntry is the compact per-cycle record kept in the session memory log.
type MemoryEntry struct {
	Timestamp  time.Time `json:"timestamp"`
	IssueCount int       `json:"issue_count"`
}
