package repository

import (
	"context"
	"time"

	"gorm.io/gorm"

	"trip-integrity-service/internal/audit"
	"trip-integrity-service/internal/model"
)

// AuditRepository is the Postgres-backed audit trail store. Only INSERT and
// SELECT statements exist here; the table has no update or delete path.
type AuditRepository struct {
	db *gorm.DB
}

var _ audit.Store = (*AuditRepository)(nil)

func NewAuditRepository(db *gorm.DB) *AuditRepository {
	return &AuditRepository{db: db}
}

func (r *AuditRepository) Append(ctx context.Context, entry *model.AuditEntry) error {
	audit.Normalize(entry, time.Now().UTC())
	return r.db.WithContext(ctx).Create(entry).Error
}

func (r *AuditRepository) Search(ctx context.Context, filters model.AuditSearchFilters) ([]model.AuditEntry, int64, error) {
	query := r.applyFilters(r.db.WithContext(ctx).Model(&model.AuditEntry{}), filters)

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	if filters.Offset > 0 {
		query = query.Offset(filters.Offset)
	}
	if filters.Limit > 0 {
		query = query.Limit(filters.Limit)
	}

	var entries []model.AuditEntry
	if err := query.Order("performed_at DESC, id DESC").Find(&entries).Error; err != nil {
		return nil, 0, err
	}
	return entries, total, nil
}

func (r *AuditRepository) applyFilters(query *gorm.DB, filters model.AuditSearchFilters) *gorm.DB {
	if len(filters.OperationTypes) > 0 {
		query = query.Where("operation_type IN ?", filters.OperationTypes)
	}
	if len(filters.SeverityLevels) > 0 {
		query = query.Where("severity_level IN ?", filters.SeverityLevels)
	}
	if len(filters.EntityTypes) > 0 {
		query = query.Where("entity_type IN ?", filters.EntityTypes)
	}
	if filters.DateFrom != nil {
		query = query.Where("performed_at >= ?", *filters.DateFrom)
	}
	if filters.DateTo != nil {
		query = query.Where("performed_at <= ?", *filters.DateTo)
	}
	if filters.SearchText != "" {
		search := "%" + filters.SearchText + "%"
		query = query.Where(
			"(action_performed ILIKE ? OR entity_description ILIKE ? OR business_context ILIKE ?)",
			search, search, search,
		)
	}
	return query
}

func (r *AuditRepository) Stats(ctx context.Context, now time.Time) (model.AuditStats, error) {
	stats := model.AuditStats{
		ByOperationType: map[model.OperationType]int64{},
		BySeverity:      map[model.SeverityLevel]int64{},
	}
	base := func() *gorm.DB {
		return r.db.WithContext(ctx).Model(&model.AuditEntry{})
	}

	if err := base().Count(&stats.TotalEntries).Error; err != nil {
		return stats, err
	}

	startOfDay := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	startOfWeek := startOfDay.AddDate(0, 0, -int(now.Weekday()))
	if err := base().Where("performed_at >= ?", startOfDay).Count(&stats.EntriesToday).Error; err != nil {
		return stats, err
	}
	if err := base().Where("performed_at >= ?", startOfWeek).Count(&stats.EntriesThisWeek).Error; err != nil {
		return stats, err
	}

	var errorCount int64
	if err := base().
		Where("severity_level IN ?", []model.SeverityLevel{model.LevelError, model.LevelCritical}).
		Count(&errorCount).Error; err != nil {
		return stats, err
	}
	if stats.TotalEntries > 0 {
		stats.ErrorRate = float64(errorCount) / float64(stats.TotalEntries) * 100
	}

	if err := base().
		Where("data_quality_score IS NOT NULL").
		Select("COALESCE(AVG(data_quality_score), 0)").
		Scan(&stats.AverageQualityScore).Error; err != nil {
		return stats, err
	}
	if err := base().
		Where("confidence_score IS NOT NULL").
		Select("COALESCE(AVG(confidence_score), 0)").
		Scan(&stats.AverageConfidence).Error; err != nil {
		return stats, err
	}

	var byOperation []struct {
		OperationType model.OperationType
		Count         int64
	}
	if err := base().Select("operation_type, COUNT(*) AS count").Group("operation_type").Scan(&byOperation).Error; err != nil {
		return stats, err
	}
	for _, row := range byOperation {
		stats.ByOperationType[row.OperationType] = row.Count
	}

	var bySeverity []struct {
		SeverityLevel model.SeverityLevel
		Count         int64
	}
	if err := base().
		Where("severity_level IS NOT NULL").
		Select("severity_level, COUNT(*) AS count").
		Group("severity_level").
		Scan(&bySeverity).Error; err != nil {
		return stats, err
	}
	for _, row := range bySeverity {
		stats.BySeverity[row.SeverityLevel] = row.Count
	}

	return stats, nil
}
