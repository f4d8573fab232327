// Package ingest parses uploaded CSV and Excel metric files into daily
// records, normalizing headers and filling neutral defaults for optional
// columns.
package ingest

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/Mityatc/hospitai/internal/models"
)

// Canonical column names after header normalization.
const (
	colDate             = "date"
	colTotalBeds        = "total_beds"
	colOccupiedBeds     = "occupied_beds"
	colTotalICUBeds     = "total_icu_beds"
	colOccupiedICU      = "occupied_icu"
	colTotalVentilators = "total_ventilators"
	colVentilatorsUsed  = "ventilators_used"
	colStaffOnDuty      = "staff_on_duty"
	colPollution        = "pollution"
	colTemperature      = "temperature"
	colFluCases         = "flu_cases"
)

// headerAliases maps common spreadsheet header variants onto canonical names.
var headerAliases = map[string]string{
	"metric_date":     colDate,
	"day":             colDate,
	"beds_total":      colTotalBeds,
	"beds_occupied":   colOccupiedBeds,
	"icu_total":       colTotalICUBeds,
	"icu_beds_total":  colTotalICUBeds,
	"icu_occupied":    colOccupiedICU,
	"icu_beds_used":   colOccupiedICU,
	"ventilators":     colTotalVentilators,
	"vents_total":     colTotalVentilators,
	"vents_used":      colVentilatorsUsed,
	"staff":           colStaffOnDuty,
	"staff_count":     colStaffOnDuty,
	"aqi":             colPollution,
	"pollution_aqi":   colPollution,
	"temp":            colTemperature,
	"temperature_c":   colTemperature,
	"flu":             colFluCases,
	"flu_case_count":  colFluCases,
	"influenza_cases": colFluCases,
}

var requiredColumns = []string{colDate, colOccupiedBeds, colTotalBeds}

var dateLayouts = []string{
	"2006-01-02",
	"2006/01/02",
	"01/02/2006",
	time.RFC3339,
}

// ParseCSV reads daily records from CSV content. The first row is the header.
func ParseCSV(r io.Reader) ([]models.DailyRecord, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true

	rows, err := reader.ReadAll()
	if err != nil {
		return nil, models.NewDataError("file", fmt.Sprintf("malformed CSV: %v", err))
	}
	return parseRows(rows)
}

// ParseExcel reads daily records from the first sheet of an xlsx file.
func ParseExcel(data []byte) ([]models.DailyRecord, error) {
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, models.NewDataError("file", fmt.Sprintf("malformed Excel file: %v", err))
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, models.NewDataError("file", "workbook has no sheets")
	}

	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, models.NewDataError("file", fmt.Sprintf("failed to read sheet: %v", err))
	}
	return parseRows(rows)
}

func parseRows(rows [][]string) ([]models.DailyRecord, error) {
	if len(rows) < 2 {
		return nil, models.NewDataError("file", "no data rows found")
	}

	columns, err := mapHeader(rows[0])
	if err != nil {
		return nil, err
	}

	records := make([]models.DailyRecord, 0, len(rows)-1)
	for i, row := range rows[1:] {
		if isEmptyRow(row) {
			continue
		}
		rec, err := parseRow(columns, row, i+2)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	if len(records) == 0 {
		return nil, models.NewDataError("file", "no data rows found")
	}

	sort.Slice(records, func(i, j int) bool {
		return records[i].Date.Before(records[j].Date)
	})
	return records, nil
}

// mapHeader normalizes header cells and resolves aliases. Missing required
// columns fail the whole upload.
func mapHeader(header []string) (map[string]int, error) {
	columns := make(map[string]int, len(header))
	for i, cell := range header {
		name := normalizeHeader(cell)
		if alias, ok := headerAliases[name]; ok {
			name = alias
		}
		if name != "" {
			columns[name] = i
		}
	}
	for _, required := range requiredColumns {
		if _, ok := columns[required]; !ok {
			return nil, models.NewDataError(required, "required column missing")
		}
	}
	return columns, nil
}

func normalizeHeader(cell string) string {
	name := strings.ToLower(strings.TrimSpace(cell))
	name = strings.ReplaceAll(name, " ", "_")
	name = strings.ReplaceAll(name, "-", "_")
	return name
}

func parseRow(columns map[string]int, row []string, rowNum int) (models.DailyRecord, error) {
	var rec models.DailyRecord

	// Tracks which optional values the row actually reported. Defaults apply
	// only to unreported columns; an explicit zero is kept as-is.
	reported := make(map[string]bool, len(columns))

	dateCell := cellValue(columns, row, colDate)
	date, err := parseDate(dateCell)
	if err != nil {
		return rec, models.NewDataError(colDate,
			fmt.Sprintf("row %d: unparseable date %q", rowNum, dateCell))
	}
	rec.Date = date

	intFields := []struct {
		column   string
		target   *int
		required bool
	}{
		{colTotalBeds, &rec.TotalBeds, true},
		{colOccupiedBeds, &rec.OccupiedBeds, true},
		{colTotalICUBeds, &rec.TotalICUBeds, false},
		{colOccupiedICU, &rec.OccupiedICU, false},
		{colTotalVentilators, &rec.TotalVentilators, false},
		{colVentilatorsUsed, &rec.VentilatorsUsed, false},
		{colStaffOnDuty, &rec.StaffOnDuty, false},
		{colFluCases, &rec.FluCases, false},
	}
	for _, field := range intFields {
		cell := cellValue(columns, row, field.column)
		if cell == "" {
			if field.required {
				return rec, models.NewDataError(field.column,
					fmt.Sprintf("row %d: value missing", rowNum))
			}
			continue
		}
		v, err := strconv.Atoi(strings.TrimSpace(cell))
		if err != nil {
			return rec, models.NewDataError(field.column,
				fmt.Sprintf("row %d: not an integer: %q", rowNum, cell))
		}
		*field.target = v
		reported[field.column] = true
	}

	floatFields := []struct {
		column string
		target *float64
	}{
		{colPollution, &rec.Pollution},
		{colTemperature, &rec.Temperature},
	}
	for _, field := range floatFields {
		cell := cellValue(columns, row, field.column)
		if cell == "" {
			continue
		}
		v, err := strconv.ParseFloat(strings.TrimSpace(cell), 64)
		if err != nil {
			return rec, models.NewDataError(field.column,
				fmt.Sprintf("row %d: not a number: %q", rowNum, cell))
		}
		*field.target = v
	}

	applyDefaults(&rec, reported)

	if err := rec.Validate(); err != nil {
		return rec, err
	}
	return rec, nil
}

// applyDefaults fills neutral values for unreported optional columns so a
// beds-only upload does not trigger spurious ICU or staffing alerts. A
// reported zero is real data: zero staff must surface as a staffing
// shortage, not be papered over with the occupancy count.
func applyDefaults(rec *models.DailyRecord, reported map[string]bool) {
	if !reported[colTotalICUBeds] {
		rec.TotalICUBeds = rec.TotalBeds / 10
		if rec.TotalICUBeds < 1 {
			rec.TotalICUBeds = 1
		}
	}
	if !reported[colTotalVentilators] {
		rec.TotalVentilators = rec.TotalICUBeds
	}
	if !reported[colStaffOnDuty] {
		rec.StaffOnDuty = rec.OccupiedBeds
	}
}

func cellValue(columns map[string]int, row []string, column string) string {
	idx, ok := columns[column]
	if !ok || idx >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[idx])
}

func parseDate(cell string) (time.Time, error) {
	if cell == "" {
		return time.Time{}, fmt.Errorf("empty date")
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, cell); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized date format")
}

func isEmptyRow(row []string) bool {
	for _, cell := range row {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}
