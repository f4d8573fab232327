package models

// Severity of a detected issue. Closed set; anything else is a programming
// error, not data.
type Severity string

const (
	SeverityInfo      Severity = "info"
	SeverityWarning   Severity = "warning"
	SeverityCritical  Severity = "critical"
	SeverityEmergency Severity = "emergency"
)

// Valid reports whether s is one of the declared severities.
func (s Severity) Valid() bool {
	switch s {
	case SeverityInfo, SeverityWarning, SeverityCritical, SeverityEmergency:
		return true
	}
	return false
}

// Issue types produced by the detector.
const (
	IssueCapacityCritical  = "capacity_critical"
	IssueCapacityWarning   = "capacity_warning"
	IssueEquipmentCritical = "equipment_critical"
	IssueStaffingShortage  = "staffing_shortage"
	IssueEnvironmental     = "environmental_alert"
	IssueDiseaseSurge      = "disease_surge"
	IssueTrendAlert        = "trend_alert"
)

// Resource tags an issue refers to.
const (
	ResourceBeds        = "beds"
	ResourceICU         = "icu"
	ResourceVentilators = "ventilators"
	ResourceStaff       = "staff"
	ResourceAirQuality  = "air_quality"
	ResourceFlu         = "flu"
	ResourceCapacity    = "capacity"
)

// Issue is one threshold violation found in a snapshot. Issues are produced
// fresh each cycle and never retained.
type Issue struct {
	Type     string   `json:"type"`
	Resource string   `json:"resource"`
	Severity Severity `json:"severity"`
	Value    float64  `json:"value"`
	Message  string   `json:"message"`
}
