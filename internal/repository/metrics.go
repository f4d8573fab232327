// Package repository provides persistence for daily facility metrics.
package repository

import (
	"database/sql"
	"fmt"

	"go.uber.org/zap"

	"github.com/Mityatc/hospitai/internal/models"
)

// MetricsStore is the daily-record store used by the service layer. Both the
// Postgres-backed and the in-memory implementations satisfy it.
type MetricsStore interface {
	ListRecent(facilityID string, limit int) ([]models.DailyRecord, error)
	SaveRecords(facilityID string, records []models.DailyRecord) error
}

// MetricsRepository persists daily metrics in PostgreSQL.
type MetricsRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewMetricsRepository creates a new metrics repository.
func NewMetricsRepository(db *sql.DB, logger *zap.Logger) *MetricsRepository {
	return &MetricsRepository{
		db:     db,
		logger: logger,
	}
}

// ListRecent returns up to limit records for the facility, ordered by date
// ascending so the latest day is last.
func (r *MetricsRepository) ListRecent(facilityID string, limit int) ([]models.DailyRecord, error) {
	query := `
		SELECT
			metric_date,
			total_beds,
			occupied_beds,
			total_icu_beds,
			occupied_icu,
			total_ventilators,
			ventilators_used,
			staff_on_duty,
			pollution,
			temperature,
			flu_cases
		FROM daily_metrics
		WHERE facility_id = $1
		ORDER BY metric_date DESC
		LIMIT $2
	`

	rows, err := r.db.Query(query, facilityID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query daily metrics: %w", err)
	}
	defer rows.Close()

	var records []models.DailyRecord
	for rows.Next() {
		var rec models.DailyRecord
		if err := rows.Scan(
			&rec.Date,
			&rec.TotalBeds,
			&rec.OccupiedBeds,
			&rec.TotalICUBeds,
			&rec.OccupiedICU,
			&rec.TotalVentilators,
			&rec.VentilatorsUsed,
			&rec.StaffOnDuty,
			&rec.Pollution,
			&rec.Temperature,
			&rec.FluCases,
		); err != nil {
			return nil, fmt.Errorf("failed to scan daily metrics row: %w", err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate daily metrics rows: %w", err)
	}

	// Query returns newest first for the LIMIT; reverse to date ascending.
	for i, j := 0, len(records)-1; i < j; i, j = i+1, j-1 {
		records[i], records[j] = records[j], records[i]
	}

	return records, nil
}

// SaveRecords upserts records keyed by (facility_id, metric_date). Re-uploads
// of the same day overwrite the previous values.
func (r *MetricsRepository) SaveRecords(facilityID string, records []models.DailyRecord) error {
	if len(records) == 0 {
		return nil
	}

	tx, err := r.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	query := `
		INSERT INTO daily_metrics (
			facility_id, metric_date,
			total_beds, occupied_beds,
			total_icu_beds, occupied_icu,
			total_ventilators, ventilators_used,
			staff_on_duty, pollution, temperature, flu_cases
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		ON CONFLICT (facility_id, metric_date) DO UPDATE SET
			total_beds = EXCLUDED.total_beds,
			occupied_beds = EXCLUDED.occupied_beds,
			total_icu_beds = EXCLUDED.total_icu_beds,
			occupied_icu = EXCLUDED.occupied_icu,
			total_ventilators = EXCLUDED.total_ventilators,
			ventilators_used = EXCLUDED.ventilators_used,
			staff_on_duty = EXCLUDED.staff_on_duty,
			pollution = EXCLUDED.pollution,
			temperature = EXCLUDED.temperature,
			flu_cases = EXCLUDED.flu_cases,
			updated_at = NOW()
	`

	stmt, err := tx.Prepare(query)
	if err != nil {
		return fmt.Errorf("failed to prepare upsert: %w", err)
	}
	defer stmt.Close()

	for _, rec := range records {
		if _, err := stmt.Exec(
			facilityID,
			rec.Date,
			rec.TotalBeds,
			rec.OccupiedBeds,
			rec.TotalICUBeds,
			rec.OccupiedICU,
			rec.TotalVentilators,
			rec.VentilatorsUsed,
			rec.StaffOnDuty,
			rec.Pollution,
			rec.Temperature,
			rec.FluCases,
		); err != nil {
			return fmt.Errorf("failed to upsert daily metrics for %s: %w",
				rec.Date.Format("2006-01-02"), err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit daily metrics: %w", err)
	}

	r.logger.Info("Saved daily metrics",
		zap.String("facility_id", facilityID),
		zap.Int("record_count", len(records)),
	)
	return nil
}
