package repository

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"trip-integrity-service/internal/model"
)

type EdgeCaseRepository struct {
	db *gorm.DB
}

func NewEdgeCaseRepository(db *gorm.DB) *EdgeCaseRepository {
	return &EdgeCaseRepository{db: db}
}

func (r *EdgeCaseRepository) Create(ctx context.Context, edgeCase *model.EdgeCase) error {
	return r.db.WithContext(ctx).Create(edgeCase).Error
}

func (r *EdgeCaseRepository) GetByID(ctx context.Context, orgID *uuid.UUID, id uuid.UUID) (*model.EdgeCase, error) {
	query := r.db.WithContext(ctx).
		Model(&model.EdgeCase{}).
		Where("edge_cases.id = ?", id)
	query = applyOrgFilter(query, orgID)

	var edgeCase model.EdgeCase
	if err := query.First(&edgeCase).Error; err != nil {
		return nil, err
	}
	return &edgeCase, nil
}

// HasOpenCase reports whether the trip already carries an unresolved case of
// this type, so repeated scans do not duplicate detections.
func (r *EdgeCaseRepository) HasOpenCase(ctx context.Context, tripID uuid.UUID, caseType model.CaseType) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&model.EdgeCase{}).
		Where("trip_id = ? AND case_type = ? AND resolution_status IN ?", tripID, caseType,
			[]model.ResolutionStatus{model.ResolutionPending, model.ResolutionInProgress}).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// UpdateResolution mutates only resolution_status; everything else about a
// case is immutable once detected.
func (r *EdgeCaseRepository) UpdateResolution(ctx context.Context, id uuid.UUID, status model.ResolutionStatus) error {
	return r.db.WithContext(ctx).
		Model(&model.EdgeCase{}).
		Where("id = ?", id).
		Update("resolution_status", status).Error
}

func (r *EdgeCaseRepository) Recent(ctx context.Context, orgID *uuid.UUID, limit int) ([]model.EdgeCase, error) {
	if limit <= 0 {
		limit = 50
	}
	query := r.db.WithContext(ctx).Model(&model.EdgeCase{})
	query = applyOrgFilter(query, orgID)

	var cases []model.EdgeCase
	if err := query.Order("edge_cases.detected_at DESC").Limit(limit).Find(&cases).Error; err != nil {
		return nil, err
	}
	return cases, nil
}

type EdgeCaseCounts struct {
	Total      int64
	Pending    int64
	BySeverity map[model.Severity]int64
	ByType     map[model.CaseType]int64
}

func (r *EdgeCaseRepository) Counts(ctx context.Context, orgID *uuid.UUID) (EdgeCaseCounts, error) {
	counts := EdgeCaseCounts{
		BySeverity: map[model.Severity]int64{},
		ByType:     map[model.CaseType]int64{},
	}

	base := func() *gorm.DB {
		return applyOrgFilter(r.db.WithContext(ctx).Model(&model.EdgeCase{}), orgID)
	}

	if err := base().Count(&counts.Total).Error; err != nil {
		return counts, err
	}
	if err := base().Where("resolution_status = ?", model.ResolutionPending).Count(&counts.Pending).Error; err != nil {
		return counts, err
	}

	var byType []struct {
		CaseType model.CaseType
		Count    int64
	}
	if err := base().Select("case_type, COUNT(*) AS count").Group("case_type").Scan(&byType).Error; err != nil {
		return counts, err
	}
	for _, row := range byType {
		counts.ByType[row.CaseType] = row.Count
	}

	var bySeverity []struct {
		Severity model.Severity
		Count    int64
	}
	if err := base().Select("severity, COUNT(*) AS count").Group("severity").Scan(&bySeverity).Error; err != nil {
		return counts, err
	}
	for _, row := range bySeverity {
		counts.BySeverity[row.Severity] = row.Count
	}

	return counts, nil
}

func applyOrgFilter(query *gorm.DB, orgID *uuid.UUID) *gorm.DB {
	if orgID == nil {
		return query
	}
	return query.
		Joins("JOIN vehicles v ON v.id = edge_cases.vehicle_id").
		Where("v.organization_id = ?", *orgID)
}
