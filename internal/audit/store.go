// Package audit defines the append-only audit trail contract. The trail has
// no update or delete operation anywhere: entries are written once and only
// queried afterwards.
package audit

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"trip-integrity-service/internal/model"
)

// Store is the persistence contract for the audit trail. The production
// implementation lives in the repository layer; MemoryStore backs tests and
// DB-less deployments.
type Store interface {
	Append(ctx context.Context, entry *model.AuditEntry) error
	Search(ctx context.Context, filters model.AuditSearchFilters) ([]model.AuditEntry, int64, error)
	Stats(ctx context.Context, now time.Time) (model.AuditStats, error)
}

// Recorder is the narrow write-side interface handed to components that only
// emit entries.
type Recorder interface {
	Append(ctx context.Context, entry *model.AuditEntry) error
}

// Normalize assigns identity and timestamp to an entry about to be appended.
// Once written these never change.
func Normalize(entry *model.AuditEntry, now time.Time) {
	if entry.ID == uuid.Nil {
		entry.ID = uuid.New()
	}
	if entry.PerformedAt.IsZero() {
		entry.PerformedAt = now
	}
}

// MemoryStore is an in-process Store guarded by a single writer lock, per the
// in-memory option of the concurrency model.
type MemoryStore struct {
	mu      sync.RWMutex
	entries []model.AuditEntry
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (s *MemoryStore) Append(ctx context.Context, entry *model.AuditEntry) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	Normalize(entry, time.Now().UTC())
	s.mu.Lock()
	s.entries = append(s.entries, *entry)
	s.mu.Unlock()
	return nil
}

// Search filters newest-first and paginates by offset. Total reflects the
// full matching count regardless of limit.
func (s *MemoryStore) Search(ctx context.Context, filters model.AuditSearchFilters) ([]model.AuditEntry, int64, error) {
	if err := ctx.Err(); err != nil {
		return nil, 0, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	matched := make([]model.AuditEntry, 0, len(s.entries))
	for i := len(s.entries) - 1; i >= 0; i-- {
		if entryMatches(s.entries[i], filters) {
			matched = append(matched, s.entries[i])
		}
	}

	total := int64(len(matched))
	offset := filters.Offset
	if offset < 0 {
		offset = 0
	}
	if offset >= len(matched) {
		return []model.AuditEntry{}, total, nil
	}
	matched = matched[offset:]
	if filters.Limit > 0 && filters.Limit < len(matched) {
		matched = matched[:filters.Limit]
	}
	return matched, total, nil
}

func entryMatches(entry model.AuditEntry, filters model.AuditSearchFilters) bool {
	if len(filters.OperationTypes) > 0 && !containsOperation(filters.OperationTypes, entry.OperationType) {
		return false
	}
	if len(filters.SeverityLevels) > 0 && !containsLevel(filters.SeverityLevels, entry.SeverityLevel) {
		return false
	}
	if len(filters.EntityTypes) > 0 && !containsString(filters.EntityTypes, entry.EntityType) {
		return false
	}
	if filters.DateFrom != nil && entry.PerformedAt.Before(*filters.DateFrom) {
		return false
	}
	if filters.DateTo != nil && entry.PerformedAt.After(*filters.DateTo) {
		return false
	}
	if filters.SearchText != "" {
		needle := strings.ToLower(filters.SearchText)
		haystack := strings.ToLower(entry.ActionPerformed + " " + entry.EntityDescription + " " + entry.BusinessContext)
		if !strings.Contains(haystack, needle) {
			return false
		}
	}
	return true
}

func containsOperation(list []model.OperationType, v model.OperationType) bool {
	for _, item := range list {
		if item == v {
			return true
		}
	}
	return false
}

func containsLevel(list []model.SeverityLevel, v model.SeverityLevel) bool {
	for _, item := range list {
		if item == v {
			return true
		}
	}
	return false
}

func containsString(list []string, v string) bool {
	for _, item := range list {
		if item == v {
			return true
		}
	}
	return false
}

// Stats aggregates over the full log. The error rate counts ERROR and
// CRITICAL entries against the total, as a percentage, matching what a
// severity-filtered Search would return.
func (s *MemoryStore) Stats(ctx context.Context, now time.Time) (model.AuditStats, error) {
	if err := ctx.Err(); err != nil {
		return model.AuditStats{}, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := model.AuditStats{
		ByOperationType: map[model.OperationType]int64{},
		BySeverity:      map[model.SeverityLevel]int64{},
	}
	startOfDay := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	startOfWeek := startOfDay.AddDate(0, 0, -int(now.Weekday()))

	var errorCount int64
	var qualitySum, confidenceSum float64
	var qualityCount, confidenceCount int64

	for _, entry := range s.entries {
		stats.TotalEntries++
		stats.ByOperationType[entry.OperationType]++
		if entry.SeverityLevel != "" {
			stats.BySeverity[entry.SeverityLevel]++
		}
		if !entry.PerformedAt.Before(startOfDay) {
			stats.EntriesToday++
		}
		if !entry.PerformedAt.Before(startOfWeek) {
			stats.EntriesThisWeek++
		}
		if entry.SeverityLevel == model.LevelError || entry.SeverityLevel == model.LevelCritical {
			errorCount++
		}
		if entry.DataQualityScore != nil {
			qualitySum += *entry.DataQualityScore
			qualityCount++
		}
		if entry.ConfidenceScore != nil {
			confidenceSum += *entry.ConfidenceScore
			confidenceCount++
		}
	}

	if stats.TotalEntries > 0 {
		stats.ErrorRate = float64(errorCount) / float64(stats.TotalEntries) * 100
	}
	if qualityCount > 0 {
		stats.AverageQualityScore = qualitySum / float64(qualityCount)
	}
	if confidenceCount > 0 {
		stats.AverageConfidence = confidenceSum / float64(confidenceCount)
	}
	return stats, nil
}
