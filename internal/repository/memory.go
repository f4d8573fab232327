package repository

import (
	"sort"
	"sync"
	"time"

	"github.com/Mityatc/hospitai/internal/models"
)

// MemoryStore is an in-process MetricsStore used when no database is
// configured. Demo seeding and unit tests run against it.
type MemoryStore struct {
	mu     sync.RWMutex
	byDate map[string]map[time.Time]models.DailyRecord
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		byDate: make(map[string]map[time.Time]models.DailyRecord),
	}
}

// ListRecent returns up to limit records for the facility, date ascending.
func (s *MemoryStore) ListRecent(facilityID string, limit int) ([]models.DailyRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	days := s.byDate[facilityID]
	records := make([]models.DailyRecord, 0, len(days))
	for _, rec := range days {
		records = append(records, rec)
	}
	sort.Slice(records, func(i, j int) bool {
		return records[i].Date.Before(records[j].Date)
	})
	if limit > 0 && len(records) > limit {
		records = records[len(records)-limit:]
	}
	return records, nil
}

// SaveRecords upserts records keyed by date, matching the database store.
func (s *MemoryStore) SaveRecords(facilityID string, records []models.DailyRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	days := s.byDate[facilityID]
	if days == nil {
		days = make(map[time.Time]models.DailyRecord)
		s.byDate[facilityID] = days
	}
	for _, rec := range records {
		days[rec.Date.Truncate(24*time.Hour)] = rec
	}
	return nil
}
