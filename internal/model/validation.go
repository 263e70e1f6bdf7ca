package model

import "github.com/google/uuid"

type Severity string

const (
	SeverityCritical Severity = "CRITICAL"
	SeverityHigh     Severity = "HIGH"
	SeverityMedium   Severity = "MEDIUM"
	SeverityLow      Severity = "LOW"
)

// SeverityRank orders severities for primary-case selection. Higher is worse.
func SeverityRank(s Severity) int {
	switch s {
	case SeverityCritical:
		return 4
	case SeverityHigh:
		return 3
	case SeverityMedium:
		return 2
	case SeverityLow:
		return 1
	default:
		return 0
	}
}

// ValidationIssue is a rule failure on a single trip field.
type ValidationIssue struct {
	Field        string   `json:"field"`
	Message      string   `json:"message"`
	Severity     Severity `json:"severity"`
	SuggestedFix string   `json:"suggested_fix,omitempty"`
}

// ValidationWarning is advisory only: it carries a recommendation and does not
// affect the quality score.
type ValidationWarning struct {
	Field          string `json:"field"`
	Message        string `json:"message"`
	Recommendation string `json:"recommendation"`
}

type ValidationResult struct {
	TripID       uuid.UUID           `json:"trip_id"`
	SerialNumber string              `json:"serial_number"`
	Score        float64             `json:"score"`
	Errors       []ValidationIssue   `json:"errors"`
	Warnings     []ValidationWarning `json:"warnings"`
}

type DataQualitySummary struct {
	TotalTrips     int     `json:"total_trips"`
	AverageScore   float64 `json:"average_score"`
	CriticalIssues int     `json:"critical_issues"`
	HighIssues     int     `json:"high_issues"`
	MediumIssues   int     `json:"medium_issues"`
	LowIssues      int     `json:"low_issues"`
	Warnings       int     `json:"warnings"`
}
