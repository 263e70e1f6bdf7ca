package model

import "github.com/google/uuid"

type RiskLevel string

const (
	RiskLow    RiskLevel = "LOW"
	RiskMedium RiskLevel = "MEDIUM"
	RiskHigh   RiskLevel = "HIGH"
)

// DataInconsistency describes one field whose recorded value conflicts with
// what the surrounding data implies.
type DataInconsistency struct {
	Field         string  `json:"field"`
	ExpectedValue string  `json:"expected_value"`
	ActualValue   string  `json:"actual_value"`
	Confidence    float64 `json:"confidence"`
}

// RecoveryOption is one plausible correction, ranked by a composite of
// success probability and risk.
type RecoveryOption struct {
	Method             string    `json:"method"`
	Description        string    `json:"description"`
	RiskLevel          RiskLevel `json:"risk_level"`
	SuccessProbability float64   `json:"success_probability"`
	EstimatedAccuracy  float64   `json:"estimated_accuracy"`
}

// DataRecoveryScenario is a decision-support artifact, never a committed
// change: the external write path applies corrections.
type DataRecoveryScenario struct {
	ScenarioID          uuid.UUID           `json:"scenario_id"`
	ScenarioType        string              `json:"scenario_type"`
	VehicleRegistration string              `json:"vehicle_registration"`
	AffectedTrips       []uuid.UUID         `json:"affected_trips"`
	DataInconsistencies []DataInconsistency `json:"data_inconsistencies"`
	RecoveryOptions     []RecoveryOption    `json:"recovery_options"`
	RecommendedAction   string              `json:"recommended_action"`
}
