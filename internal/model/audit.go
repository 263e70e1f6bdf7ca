package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type OperationType string

const (
	OperationDataCorrection       OperationType = "DATA_CORRECTION"
	OperationValidationCheck      OperationType = "VALIDATION_CHECK"
	OperationEdgeCaseDetection    OperationType = "EDGE_CASE_DETECTION"
	OperationBaselineManagement   OperationType = "BASELINE_MANAGEMENT"
	OperationSequenceMonitoring   OperationType = "SEQUENCE_MONITORING"
	OperationReturnTripValidation OperationType = "RETURN_TRIP_VALIDATION"
)

type SeverityLevel string

const (
	LevelCritical SeverityLevel = "CRITICAL"
	LevelError    SeverityLevel = "ERROR"
	LevelWarning  SeverityLevel = "WARNING"
	LevelInfo     SeverityLevel = "INFO"
)

// AuditEntry is one immutable record of an integrity operation. Entries are
// written once and never updated or deleted.
type AuditEntry struct {
	ID                  uuid.UUID         `gorm:"type:uuid;primaryKey;default:uuid_generate_v4()" json:"id"`
	OperationType       OperationType     `gorm:"type:audit_operation_type;not null" json:"operation_type"`
	OperationCategory   string            `gorm:"type:varchar(64)" json:"operation_category"`
	EntityType          string            `gorm:"type:varchar(64);not null" json:"entity_type"`
	EntityID            string            `gorm:"type:varchar(64);not null" json:"entity_id"`
	EntityDescription   string            `gorm:"type:text" json:"entity_description,omitempty"`
	ActionPerformed     string            `gorm:"type:text;not null" json:"action_performed"`
	PerformerName       *string           `gorm:"type:varchar(255)" json:"performer_name,omitempty"`
	SeverityLevel       SeverityLevel     `gorm:"type:audit_severity_level" json:"severity_level,omitempty"`
	ConfidenceScore     *float64          `json:"confidence_score,omitempty"`
	BusinessContext     string            `gorm:"type:text" json:"business_context,omitempty"`
	ChangesMade         datatypes.JSONMap `gorm:"type:jsonb" json:"changes_made,omitempty"`
	ValidationResults   datatypes.JSONMap `gorm:"type:jsonb" json:"validation_results,omitempty"`
	DataQualityScore    *float64          `json:"data_quality_score,omitempty"`
	OperationDurationMS *int64            `json:"operation_duration_ms,omitempty"`
	PerformedAt         time.Time         `json:"performed_at"`
}

func (AuditEntry) TableName() string {
	return "audit_trail"
}

func (e *AuditEntry) BeforeCreate(tx *gorm.DB) error {
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	return nil
}

// Performer renders the operator name, with null meaning the system itself.
func (e AuditEntry) Performer() string {
	if e.PerformerName == nil || *e.PerformerName == "" {
		return "System"
	}
	return *e.PerformerName
}

type AuditSearchFilters struct {
	OperationTypes []OperationType
	SeverityLevels []SeverityLevel
	EntityTypes    []string
	SearchText     string
	DateFrom       *time.Time
	DateTo         *time.Time
	Limit          int
	Offset         int
}

type AuditSearchResult struct {
	Entries []AuditEntry `json:"entries"`
	Total   int64        `json:"total"`
}

type AuditStats struct {
	TotalEntries        int64                   `json:"total_entries"`
	EntriesToday        int64                   `json:"entries_today"`
	EntriesThisWeek     int64                   `json:"entries_this_week"`
	ErrorRate           float64                 `json:"error_rate"`
	AverageQualityScore float64                 `json:"average_quality_score"`
	AverageConfidence   float64                 `json:"average_confidence"`
	ByOperationType     map[OperationType]int64 `json:"by_operation_type"`
	BySeverity          map[SeverityLevel]int64 `json:"by_severity"`
}
