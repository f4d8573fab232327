// Package snapshot derives a MetricsSnapshot from the daily metrics series:
// occupancy fractions, trend deltas and the aggregate surge-risk score.
package snapshot

import (
	"fmt"
	"math"
	"time"

	"github.com/Mityatc/hospitai/internal/models"
)

// Surge-risk flag thresholds. The score counts the triggered flags, so it is
// bounded to [0, MaxRiskScore].
const (
	MaxRiskScore = 6

	riskFluAvg7d        = 50.0 // 7-day flu average above this is a flag
	riskPollutionAvg7d  = 100.0
	riskBedOccupancy    = 0.80
	riskICUOccupancy    = 0.75
	riskVentilatorUsage = 0.70
	riskStaffRatioMin   = 1.0 // staff per occupied bed below this is a flag

	// Two or more flags classify the day as surge risk.
	surgeRiskFlags = 2
)

// Build derives the snapshot for the most recent day in records. The series
// must be ordered by date ascending and non-empty; every record is validated
// before any ratio is computed.
func Build(records []models.DailyRecord, now time.Time) (*models.MetricsSnapshot, error) {
	if len(records) == 0 {
		return nil, models.NewDataError("records", "series is empty")
	}
	for i := range records {
		if err := records[i].Validate(); err != nil {
			return nil, fmt.Errorf("record %d: %w", i, err)
		}
	}

	latest := records[len(records)-1]

	snap := &models.MetricsSnapshot{
		Timestamp: now,

		BedOccupancy:    float64(latest.OccupiedBeds) / float64(latest.TotalBeds),
		ICUOccupancy:    float64(latest.OccupiedICU) / float64(latest.TotalICUBeds),
		VentilatorUsage: float64(latest.VentilatorsUsed) / float64(latest.TotalVentilators),
		// The denominator clamp is deliberate: an empty hospital has a defined
		// staffing ratio instead of a division by zero.
		StaffRatio: float64(latest.StaffOnDuty) / float64(max(latest.OccupiedBeds, 1)),

		TotalBeds:     latest.TotalBeds,
		OccupiedBeds:  latest.OccupiedBeds,
		AvailableBeds: latest.TotalBeds - latest.OccupiedBeds,
		TotalICU:      latest.TotalICUBeds,
		OccupiedICU:   latest.OccupiedICU,
		AvailableICU:  latest.TotalICUBeds - latest.OccupiedICU,

		Environment: models.Environment{
			PollutionAQI: latest.Pollution,
			Temperature:  latest.Temperature,
			FluCases:     latest.FluCases,
		},

		Trends:         calculateTrends(records),
		FluAvg7d:       rollingMean(records, 7, func(r models.DailyRecord) float64 { return float64(r.FluCases) }),
		PollutionAvg7d: rollingMean(records, 7, func(r models.DailyRecord) float64 { return r.Pollution }),
	}

	snap.Risk = assessRisk(snap)

	return snap, nil
}

// calculateTrends computes the day-over-day deltas. A delta defaults to 0 when
// the series is shorter than its window; that is expected at series start, not
// an error.
func calculateTrends(records []models.DailyRecord) models.Trends {
	beds := func(r models.DailyRecord) int { return r.OccupiedBeds }
	icu := func(r models.DailyRecord) int { return r.OccupiedICU }
	flu := func(r models.DailyRecord) int { return r.FluCases }

	t := models.Trends{
		BedChange1d: deltaBack(records, 2, beds),
		BedChange3d: deltaBack(records, 3, beds),
		BedChange7d: deltaBack(records, 7, beds),
		ICUChange3d: deltaBack(records, 3, icu),
		FluChange3d: deltaBack(records, 3, flu),
		Direction:   models.TrendStable,
		Velocity:    models.VelocitySlow,
	}

	switch {
	case t.BedChange3d > 20:
		t.Direction = models.TrendIncreasing
		t.Velocity = models.VelocityRapid
	case t.BedChange3d > 10:
		t.Direction = models.TrendIncreasing
		t.Velocity = models.VelocityModerate
	case t.BedChange3d < -20:
		t.Direction = models.TrendDecreasing
		t.Velocity = models.VelocityRapid
	case t.BedChange3d < -10:
		t.Direction = models.TrendDecreasing
		t.Velocity = models.VelocityModerate
	}

	return t
}

// deltaBack returns latest minus the record n positions back (inclusive count,
// so n=2 compares against yesterday), or 0 when the series is too short.
func deltaBack(records []models.DailyRecord, n int, field func(models.DailyRecord) int) int {
	if len(records) < n {
		return 0
	}
	return field(records[len(records)-1]) - field(records[len(records)-n])
}

// rollingMean averages field over the last window records (or fewer when the
// series is shorter).
func rollingMean(records []models.DailyRecord, window int, field func(models.DailyRecord) float64) float64 {
	start := len(records) - window
	if start < 0 {
		start = 0
	}
	var sum float64
	for _, r := range records[start:] {
		sum += field(r)
	}
	return sum / float64(len(records)-start)
}

// assessRisk evaluates the six surge-risk flags against the snapshot.
func assessRisk(s *models.MetricsSnapshot) models.RiskAssessment {
	factors := []models.RiskFactor{
		{Name: "Flu Cases", Value: round1(s.FluAvg7d), Threshold: "> 50", Triggered: s.FluAvg7d > riskFluAvg7d},
		{Name: "Air Quality", Value: round1(s.PollutionAvg7d), Threshold: "> 100 AQI", Triggered: s.PollutionAvg7d > riskPollutionAvg7d},
		{Name: "Bed Occupancy", Value: round1(s.BedOccupancy * 100), Threshold: "> 80%", Triggered: s.BedOccupancy > riskBedOccupancy},
		{Name: "ICU Occupancy", Value: round1(s.ICUOccupancy * 100), Threshold: "> 75%", Triggered: s.ICUOccupancy > riskICUOccupancy},
		{Name: "Ventilator Usage", Value: round1(s.VentilatorUsage * 100), Threshold: "> 70%", Triggered: s.VentilatorUsage > riskVentilatorUsage},
		{Name: "Staff Ratio", Value: round2(s.StaffRatio), Threshold: "< 1.0", Triggered: s.StaffRatio < riskStaffRatioMin},
	}

	score := 0
	for _, f := range factors {
		if f.Triggered {
			score++
		}
	}

	return models.RiskAssessment{
		Score:     score,
		MaxScore:  MaxRiskScore,
		Level:     riskLevel(score),
		SurgeRisk: score >= surgeRiskFlags,
		Factors:   factors,
	}
}

// riskLevel maps the flag count to the categorical band.
func riskLevel(score int) string {
	switch {
	case score <= 0:
		return "Normal"
	case score == 1:
		return "Low"
	case score == 2:
		return "Moderate"
	case score <= 4:
		return "High"
	default:
		return "Critical"
	}
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
