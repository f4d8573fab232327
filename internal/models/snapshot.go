package models

import (
	"time"
)

// Trend direction values derived from the 3-day bed delta.
const (
	TrendIncreasing = "increasing"
	TrendDecreasing = "decreasing"
	TrendStable     = "stable"
)

// Trend velocity values.
const (
	VelocityRapid    = "rapid"
	VelocityModerate = "moderate"
	VelocitySlow     = "slow"
)

// Trends holds day-over-day deltas of the series. Deltas default to 0 when the
// series is too short; insufficient history is expected at series start.
type Trends struct {
	BedChange1d int    `json:"bed_change_1d"`
	BedChange3d int    `json:"bed_change_3d"`
	BedChange7d int    `json:"bed_change_7d"`
	ICUChange3d int    `json:"icu_change_3d"`
	FluChange3d int    `json:"flu_change_3d"`
	Direction   string `json:"direction"`
	Velocity    string `json:"velocity"`
}

// Environment holds the external factors of the latest record.
type Environment struct {
	PollutionAQI float64 `json:"pollution_aqi"`
	Temperature  float64 `json:"temperature"`
	FluCases     int     `json:"flu_cases"`
}

// RiskFactor is one entry of the surge-risk breakdown.
type RiskFactor struct {
	Name      string  `json:"name"`
	Value     float64 `json:"value"`
	Threshold string  `json:"threshold"`
	Triggered bool    `json:"triggered"`
}

// RiskAssessment is the aggregate surge classification: the score counts the
// triggered factors, so it is always within [0, MaxScore].
type RiskAssessment struct {
	Score     int          `json:"score"`
	MaxScore  int          `json:"max_score"`
	Level     string       `json:"level"`
	SurgeRisk bool         `json:"surge_risk"`
	Factors   []RiskFactor `json:"factors"`
}

// MetricsSnapshot is the derived state of the most recent day. It is immutable
// once built and recomputed fresh every cycle, never carried across cycles.
//
// Occupancy fields are fractions in [0,1] at full precision; display rounding
// happens only when the situation payload is rendered.
type MetricsSnapshot struct {
	Timestamp time.Time `json:"timestamp"`

	BedOccupancy    float64 `json:"bed_occupancy"`
	ICUOccupancy    float64 `json:"icu_occupancy"`
	VentilatorUsage float64 `json:"ventilator_usage"`
	StaffRatio      float64 `json:"staff_ratio"`

	TotalBeds     int `json:"total_beds"`
	OccupiedBeds  int `json:"occupied_beds"`
	AvailableBeds int `json:"available_beds"`
	TotalICU      int `json:"total_icu"`
	OccupiedICU   int `json:"occupied_icu"`
	AvailableICU  int `json:"available_icu"`

	Trends      Trends      `json:"trends"`
	Environment Environment `json:"environment"`

	// 7-day rolling means feeding the surge-risk flags.
	FluAvg7d       float64 `json:"flu_avg_7d"`
	PollutionAvg7d float64 `json:"pollution_avg_7d"`

	Risk RiskAssessment `json:"risk"`
}
