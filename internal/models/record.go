package models

import (
	"fmt"
	"time"
)

// DailyRecord is one day of operational counters for a facility.
// Producers (DB, CSV/Excel upload) deliver these ordered by date ascending.
type DailyRecord struct {
	Date             time.Time `json:"date" db:"metric_date"`
	TotalBeds        int       `json:"total_beds" db:"total_beds"`
	OccupiedBeds     int       `json:"occupied_beds" db:"occupied_beds"`
	TotalICUBeds     int       `json:"total_icu_beds" db:"total_icu_beds"`
	OccupiedICU      int       `json:"occupied_icu" db:"occupied_icu"`
	TotalVentilators int       `json:"total_ventilators" db:"total_ventilators"`
	VentilatorsUsed  int       `json:"ventilators_used" db:"ventilators_used"`
	StaffOnDuty      int       `json:"staff_on_duty" db:"staff_on_duty"`
	Pollution        float64   `json:"pollution" db:"pollution"`
	Temperature      float64   `json:"temperature" db:"temperature"`
	FluCases         int       `json:"flu_cases" db:"flu_cases"`
}

// DataError reports malformed input data. It is raised before any ratio is
// computed; required fields are never silently defaulted.
type DataError struct {
	Field  string
	Reason string
}

func (e *DataError) Error() string {
	return fmt.Sprintf("invalid metrics data: %s: %s", e.Field, e.Reason)
}

// NewDataError creates a DataError for the given field.
func NewDataError(field, reason string) *DataError {
	return &DataError{Field: field, Reason: reason}
}

// Validate checks the record invariants: counts must be non-negative and
// every total_* denominator must be positive.
func (r *DailyRecord) Validate() error {
	totals := []struct {
		field string
		value int
	}{
		{"total_beds", r.TotalBeds},
		{"total_icu_beds", r.TotalICUBeds},
		{"total_ventilators", r.TotalVentilators},
	}
	for _, t := range totals {
		if t.value <= 0 {
			return NewDataError(t.field, "must be > 0")
		}
	}
	counts := []struct {
		field string
		value int
	}{
		{"occupied_beds", r.OccupiedBeds},
		{"occupied_icu", r.OccupiedICU},
		{"ventilators_used", r.VentilatorsUsed},
		{"staff_on_duty", r.StaffOnDuty},
		{"flu_cases", r.FluCases},
	}
	for _, c := range counts {
		if c.value < 0 {
			return NewDataError(c.field, "must be >= 0")
		}
	}
	if r.Pollution < 0 {
		return NewDataError("pollution", "must be >= 0")
	}
	return nil
}
