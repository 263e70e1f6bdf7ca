package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type CaseType string

const (
	CaseTypeMaintenanceTrip  CaseType = "MAINTENANCE_TRIP"
	CaseTypeEmergencyTrip    CaseType = "EMERGENCY_TRIP"
	CaseTypeDataAnomaly      CaseType = "DATA_ANOMALY"
	CaseTypeBreakdownTrip    CaseType = "BREAKDOWN_TRIP"
	CaseTypeUnusualPattern   CaseType = "UNUSUAL_PATTERN"
	CaseTypeRecoveryScenario CaseType = "RECOVERY_SCENARIO"
)

type ResolutionStatus string

const (
	ResolutionPending    ResolutionStatus = "PENDING"
	ResolutionInProgress ResolutionStatus = "IN_PROGRESS"
	ResolutionResolved   ResolutionStatus = "RESOLVED"
	ResolutionDismissed  ResolutionStatus = "DISMISSED"
)

// EdgeCase is a persisted anomaly classification for one trip or vehicle
// pattern. Rows are append-only except for resolution_status: a reviewer
// resolves or dismisses, never deletes.
type EdgeCase struct {
	ID                   uuid.UUID                   `gorm:"type:uuid;primaryKey;default:uuid_generate_v4()" json:"case_id"`
	CaseType             CaseType                    `gorm:"type:edge_case_type;not null" json:"case_type"`
	Severity             Severity                    `gorm:"type:issue_severity;not null" json:"severity"`
	ConfidenceScore      float64                     `gorm:"not null" json:"confidence_score"`
	VehicleID            uuid.UUID                   `gorm:"type:uuid;not null" json:"vehicle_id"`
	VehicleRegistration  string                      `gorm:"type:varchar(32)" json:"vehicle_registration"`
	TripID               *uuid.UUID                  `gorm:"type:uuid" json:"trip_id,omitempty"`
	Description          string                      `gorm:"type:text" json:"description"`
	PatternsDetected     datatypes.JSONSlice[string] `gorm:"type:jsonb" json:"patterns_detected"`
	Context              datatypes.JSONMap           `gorm:"type:jsonb" json:"context"`
	AutoActionsTaken     datatypes.JSONSlice[string] `gorm:"type:jsonb" json:"auto_actions_taken"`
	Recommendations      datatypes.JSONSlice[string] `gorm:"type:jsonb" json:"recommendations"`
	ResolutionStatus     ResolutionStatus            `gorm:"type:resolution_status;not null;default:'PENDING'" json:"resolution_status"`
	RequiresManualReview bool                        `gorm:"not null" json:"requires_manual_review"`
	DetectedAt           time.Time                   `gorm:"autoCreateTime" json:"detected_at"`
	UpdatedAt            time.Time                   `gorm:"autoUpdateTime" json:"-"`
}

func (EdgeCase) TableName() string {
	return "edge_cases"
}

func (e *EdgeCase) BeforeCreate(tx *gorm.DB) error {
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	return nil
}

// CanTransitionTo enforces the reviewer workflow: resolved and dismissed are
// terminal.
func (e *EdgeCase) CanTransitionTo(target ResolutionStatus) bool {
	switch e.ResolutionStatus {
	case ResolutionPending:
		return target == ResolutionInProgress || target == ResolutionResolved || target == ResolutionDismissed
	case ResolutionInProgress:
		return target == ResolutionResolved || target == ResolutionDismissed
	default:
		return false
	}
}

// EdgeCaseOverview is the system-wide dashboard aggregate. ScanIncomplete is
// true when at least one vehicle failed during the scan, so an empty
// RecentDetections list is distinguishable from a clean fleet.
type EdgeCaseOverview struct {
	TotalCasesDetected int64              `json:"total_cases_detected"`
	PendingReviews     int64              `json:"pending_reviews"`
	CasesByType        map[CaseType]int64 `json:"cases_by_type"`
	CasesBySeverity    map[Severity]int64 `json:"cases_by_severity"`
	RecentDetections   []EdgeCase         `json:"recent_detections"`
	ScanIncomplete     bool               `json:"scan_incomplete"`
	FailedVehicles     int                `json:"failed_vehicles"`
}
