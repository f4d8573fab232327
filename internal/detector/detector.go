// Package detector classifies a MetricsSnapshot against fixed thresholds into
// an ordered list of issues.
package detector

import (
	"fmt"
	"math"

	"github.com/Mityatc/hospitai/internal/models"
)

// Detection thresholds. Occupancy thresholds are fractions of capacity.
const (
	bedOccupancyWarning  = 0.75
	bedOccupancyCritical = 0.90
	icuOccupancyWarning  = 0.70
	icuOccupancyCritical = 0.85
	ventilatorCritical   = 0.80
	staffRatioMin        = 0.15
	aqiCritical          = 150.0
	fluSurgeThreshold    = 50
)

// Detect returns the issues present in the snapshot. Detection order is fixed
// (beds, ICU, ventilators, staff, AQI, flu, trend) and is the tie-break basis
// for the planner's priority sort. Within beds and within ICU the critical
// band supersedes the warning band; the trend issue is independent and may
// coexist with a beds capacity issue.
func Detect(s *models.MetricsSnapshot) ([]models.Issue, error) {
	if err := checkRatios(s); err != nil {
		return nil, err
	}

	// Non-nil so an all-clear snapshot serializes as an empty list.
	issues := []models.Issue{}

	bedPct := s.BedOccupancy * 100
	switch {
	case s.BedOccupancy >= bedOccupancyCritical:
		issues = append(issues, models.Issue{
			Type:     models.IssueCapacityCritical,
			Resource: models.ResourceBeds,
			Severity: models.SeverityEmergency,
			Value:    round1(bedPct),
			Message:  fmt.Sprintf("CRITICAL: Bed occupancy at %.1f%%", bedPct),
		})
	case s.BedOccupancy >= bedOccupancyWarning:
		issues = append(issues, models.Issue{
			Type:     models.IssueCapacityWarning,
			Resource: models.ResourceBeds,
			Severity: models.SeverityWarning,
			Value:    round1(bedPct),
			Message:  fmt.Sprintf("WARNING: Bed occupancy at %.1f%%", bedPct),
		})
	}

	icuPct := s.ICUOccupancy * 100
	switch {
	case s.ICUOccupancy >= icuOccupancyCritical:
		issues = append(issues, models.Issue{
			Type:     models.IssueCapacityCritical,
			Resource: models.ResourceICU,
			Severity: models.SeverityEmergency,
			Value:    round1(icuPct),
			Message:  fmt.Sprintf("CRITICAL: ICU at %.1f%%", icuPct),
		})
	case s.ICUOccupancy >= icuOccupancyWarning:
		issues = append(issues, models.Issue{
			Type:     models.IssueCapacityWarning,
			Resource: models.ResourceICU,
			Severity: models.SeverityWarning,
			Value:    round1(icuPct),
			Message:  fmt.Sprintf("WARNING: ICU at %.1f%%", icuPct),
		})
	}

	if s.VentilatorUsage >= ventilatorCritical {
		ventPct := s.VentilatorUsage * 100
		issues = append(issues, models.Issue{
			Type:     models.IssueEquipmentCritical,
			Resource: models.ResourceVentilators,
			Severity: models.SeverityCritical,
			Value:    round1(ventPct),
			Message:  fmt.Sprintf("CRITICAL: Ventilator usage at %.1f%%", ventPct),
		})
	}

	if s.StaffRatio < staffRatioMin {
		issues = append(issues, models.Issue{
			Type:     models.IssueStaffingShortage,
			Resource: models.ResourceStaff,
			Severity: models.SeverityCritical,
			Value:    s.StaffRatio,
			Message:  fmt.Sprintf("CRITICAL: Staff ratio %.2f", s.StaffRatio),
		})
	}

	if s.Environment.PollutionAQI >= aqiCritical {
		issues = append(issues, models.Issue{
			Type:     models.IssueEnvironmental,
			Resource: models.ResourceAirQuality,
			Severity: models.SeverityWarning,
			Value:    s.Environment.PollutionAQI,
			Message:  fmt.Sprintf("High AQI (%.0f)", s.Environment.PollutionAQI),
		})
	}

	if s.Environment.FluCases >= fluSurgeThreshold {
		issues = append(issues, models.Issue{
			Type:     models.IssueDiseaseSurge,
			Resource: models.ResourceFlu,
			Severity: models.SeverityWarning,
			Value:    float64(s.Environment.FluCases),
			Message:  fmt.Sprintf("Flu surge: %d cases", s.Environment.FluCases),
		})
	}

	if s.Trends.Direction == models.TrendIncreasing && s.Trends.Velocity == models.VelocityRapid {
		issues = append(issues, models.Issue{
			Type:     models.IssueTrendAlert,
			Resource: models.ResourceCapacity,
			Severity: models.SeverityWarning,
			Value:    float64(s.Trends.BedChange3d),
			Message:  fmt.Sprintf("Rapid increase: +%d beds over 3 days", s.Trends.BedChange3d),
		})
	}

	return issues, nil
}

// checkRatios rejects snapshots carrying NaN or negative ratios. Such values
// mean upstream data corruption and must not be masked.
func checkRatios(s *models.MetricsSnapshot) error {
	ratios := []struct {
		name  string
		value float64
	}{
		{"bed_occupancy", s.BedOccupancy},
		{"icu_occupancy", s.ICUOccupancy},
		{"ventilator_usage", s.VentilatorUsage},
		{"staff_ratio", s.StaffRatio},
	}
	for _, r := range ratios {
		if math.IsNaN(r.value) || r.value < 0 {
			return models.NewDataError(r.name, "ratio is NaN or negative")
		}
	}
	return nil
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}
