package models

import (
	"math"
	"time"
)

// SituationMetrics is the display form of the snapshot occupancy figures.
// Occupancy and usage are percentages rounded to one decimal; the staff ratio
// stays a ratio, rounded to three.
type SituationMetrics struct {
	BedOccupancyPct    float64 `json:"bed_occupancy_pct"`
	ICUOccupancyPct    float64 `json:"icu_occupancy_pct"`
	VentilatorUsagePct float64 `json:"ventilator_usage_pct"`
	StaffRatio         float64 `json:"staff_ratio"`
	TotalBeds          int     `json:"total_beds"`
	OccupiedBeds       int     `json:"occupied_beds"`
	AvailableBeds      int     `json:"available_beds"`
	TotalICU           int     `json:"total_icu"`
	OccupiedICU        int     `json:"occupied_icu"`
	AvailableICU       int     `json:"available_icu"`
}

// Situation is the rendered snapshot view returned by cycle and dashboard
// endpoints. It carries rounded display values; the raw fractions stay on the
// snapshot itself.
type Situation struct {
	Timestamp   time.Time        `json:"timestamp"`
	Metrics     SituationMetrics `json:"metrics"`
	Trends      Trends           `json:"trends"`
	Environment Environment      `json:"environment"`
	Risk        RiskAssessment   `json:"risk"`
}

// Situation renders the snapshot for API output.
func (s *MetricsSnapshot) Situation() Situation {
	return Situation{
		Timestamp: s.Timestamp,
		Metrics: SituationMetrics{
			BedOccupancyPct:    roundTo(s.BedOccupancy*100, 1),
			ICUOccupancyPct:    roundTo(s.ICUOccupancy*100, 1),
			VentilatorUsagePct: roundTo(s.VentilatorUsage*100, 1),
			StaffRatio:         roundTo(s.StaffRatio, 3),
			TotalBeds:          s.TotalBeds,
			OccupiedBeds:       s.OccupiedBeds,
			AvailableBeds:      s.AvailableBeds,
			TotalICU:           s.TotalICU,
			OccupiedICU:        s.OccupiedICU,
			AvailableICU:       s.AvailableICU,
		},
		Trends:      s.Trends,
		Environment: s.Environment,
		Risk:        s.Risk,
	}
}

func roundTo(v float64, places int) float64 {
	p := math.Pow10(places)
	return math.Round(v*p) / p
}
