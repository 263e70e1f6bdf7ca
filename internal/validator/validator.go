package validator

import (
	"fmt"

	"github.com/google/uuid"

	"trip-integrity-service/internal/model"
)

// Penalties holds the score deduction per issue severity. Warnings are
// advisory and never deduct.
type Penalties struct {
	Critical float64
	High     float64
	Medium   float64
	Low      float64
}

func DefaultPenalties() Penalties {
	return Penalties{Critical: 50, High: 20, Medium: 10, Low: 5}
}

// Validator scores individual trip records. It is stateless: the same trip
// and context always produce the same result, and malformed input degrades to
// flagged issues rather than errors.
type Validator struct {
	penalties         Penalties
	odometerGapKM     float64
	routeDeviationPct float64
}

func New(penalties Penalties, odometerGapKM, routeDeviationPct float64) *Validator {
	if odometerGapKM <= 0 {
		odometerGapKM = 50
	}
	if routeDeviationPct <= 0 {
		routeDeviationPct = 50
	}
	return &Validator{
		penalties:         penalties,
		odometerGapKM:     odometerGapKM,
		routeDeviationPct: routeDeviationPct,
	}
}

func (p Penalties) forSeverity(s model.Severity) float64 {
	switch s {
	case model.SeverityCritical:
		return p.Critical
	case model.SeverityHigh:
		return p.High
	case model.SeverityMedium:
		return p.Medium
	case model.SeverityLow:
		return p.Low
	default:
		return 0
	}
}

// Validate scores one trip. prevEndKM is the previous trip's closing odometer
// reading for the same vehicle, nil when unknown (first trip, vehicle swap).
func (v *Validator) Validate(trip model.Trip, prevEndKM *float64) model.ValidationResult {
	result := model.ValidationResult{
		TripID:       trip.ID,
		SerialNumber: trip.SerialNumber,
		Errors:       []model.ValidationIssue{},
		Warnings:     []model.ValidationWarning{},
	}

	v.checkRequiredFields(trip, &result)
	v.checkOdometer(trip, prevEndKM, &result)
	v.checkDates(trip, &result)
	v.checkFuel(trip, &result)
	v.checkExpenses(trip, &result)
	v.checkRoute(trip, &result)

	score := 100.0
	for _, issue := range result.Errors {
		score -= v.penalties.forSeverity(issue.Severity)
	}
	if score < 0 {
		score = 0
	}
	if score > 100 {
		score = 100
	}
	result.Score = score
	return result
}

func (v *Validator) checkRequiredFields(trip model.Trip, result *model.ValidationResult) {
	if trip.VehicleID == uuid.Nil {
		result.Errors = append(result.Errors, model.ValidationIssue{
			Field:    "vehicle_id",
			Message:  "trip is not linked to a vehicle",
			Severity: model.SeverityCritical,
		})
	}
	if trip.DriverID == nil {
		result.Errors = append(result.Errors, model.ValidationIssue{
			Field:        "driver_id",
			Message:      "trip is not linked to a driver",
			Severity:     model.SeverityHigh,
			SuggestedFix: "assign the driver from the duty roster for this date",
		})
	}
	if trip.StartDate == nil {
		result.Errors = append(result.Errors, model.ValidationIssue{
			Field:    "start_date",
			Message:  "start date is missing",
			Severity: model.SeverityHigh,
		})
	}
	if trip.EndDate == nil {
		result.Errors = append(result.Errors, model.ValidationIssue{
			Field:    "end_date",
			Message:  "end date is missing",
			Severity: model.SeverityHigh,
		})
	}
	if trip.GrossWeight == nil {
		result.Errors = append(result.Errors, model.ValidationIssue{
			Field:        "gross_weight",
			Message:      "gross weight is missing",
			Severity:     model.SeverityMedium,
			SuggestedFix: "copy the weighbridge slip value",
		})
	}
}

func (v *Validator) checkOdometer(trip model.Trip, prevEndKM *float64, result *model.ValidationResult) {
	if trip.StartKM == nil {
		result.Errors = append(result.Errors, model.ValidationIssue{
			Field:    "start_km",
			Message:  "opening odometer reading is missing",
			Severity: model.SeverityHigh,
		})
	}
	if trip.EndKM == nil {
		result.Errors = append(result.Errors, model.ValidationIssue{
			Field:    "end_km",
			Message:  "closing odometer reading is missing",
			Severity: model.SeverityHigh,
		})
	}
	if trip.StartKM != nil && trip.EndKM != nil && *trip.EndKM <= *trip.StartKM {
		result.Errors = append(result.Errors, model.ValidationIssue{
			Field:        "end_km",
			Message:      "end_km must exceed start_km",
			Severity:     model.SeverityCritical,
			SuggestedFix: fmt.Sprintf("verify readings: start=%.0f end=%.0f", *trip.StartKM, *trip.EndKM),
		})
	}
	// Gap against the previous trip is a warning, not an error: a vehicle
	// swap or workshop movement between sheets is operationally plausible.
	if prevEndKM != nil && trip.StartKM != nil {
		gap := *trip.StartKM - *prevEndKM
		if gap < 0 {
			gap = -gap
		}
		if gap > v.odometerGapKM {
			result.Warnings = append(result.Warnings, model.ValidationWarning{
				Field:          "start_km",
				Message:        fmt.Sprintf("opening reading differs from previous trip close by %.0f km", gap),
				Recommendation: "confirm the intervening movement or correct the opening reading",
			})
		}
	}
}

func (v *Validator) checkDates(trip model.Trip, result *model.ValidationResult) {
	if trip.StartDate != nil && trip.EndDate != nil && trip.EndDate.Before(*trip.StartDate) {
		result.Errors = append(result.Errors, model.ValidationIssue{
			Field:    "end_date",
			Message:  "end date precedes start date",
			Severity: model.SeverityCritical,
		})
	}
}

func (v *Validator) checkFuel(trip model.Trip, result *model.ValidationResult) {
	if trip.FuelQuantity != nil && *trip.FuelQuantity < 0 {
		result.Errors = append(result.Errors, model.ValidationIssue{
			Field:    "fuel_quantity",
			Message:  "fuel quantity is negative",
			Severity: model.SeverityHigh,
		})
		return
	}
	qty := trip.FuelQuantity != nil && *trip.FuelQuantity > 0
	cost := trip.FuelCost != nil && *trip.FuelCost > 0
	if qty && !cost {
		result.Warnings = append(result.Warnings, model.ValidationWarning{
			Field:          "fuel_cost",
			Message:        "fuel was drawn but no cost is recorded",
			Recommendation: "enter the fuel cost from the pump receipt",
		})
	}
	if cost && !qty {
		result.Warnings = append(result.Warnings, model.ValidationWarning{
			Field:          "fuel_quantity",
			Message:        "fuel cost is recorded but no quantity",
			Recommendation: "enter the litres drawn, or clear the cost if no refueling happened",
		})
	}
	if trip.Refueling && !qty && !cost {
		result.Warnings = append(result.Warnings, model.ValidationWarning{
			Field:          "refueling",
			Message:        "trip is flagged as refueling but carries no fuel data",
			Recommendation: "record quantity and cost, or unset the refueling flag",
		})
	}
}

func (v *Validator) checkExpenses(trip model.Trip, result *model.ValidationResult) {
	fields := []struct {
		name  string
		value *float64
	}{
		{"fuel_cost", trip.FuelCost},
		{"driver_allowance", trip.DriverAllowance},
		{"toll_charges", trip.TollCharges},
		{"other_expenses", trip.OtherExpenses},
	}
	for _, f := range fields {
		if f.value != nil && *f.value < 0 {
			result.Errors = append(result.Errors, model.ValidationIssue{
				Field:    f.name,
				Message:  f.name + " is negative",
				Severity: model.SeverityHigh,
			})
		}
	}
}

func (v *Validator) checkRoute(trip model.Trip, result *model.ValidationResult) {
	if trip.RouteDeviation != nil && *trip.RouteDeviation > v.routeDeviationPct {
		result.Warnings = append(result.Warnings, model.ValidationWarning{
			Field:          "route_deviation",
			Message:        fmt.Sprintf("route deviation of %.0f%% exceeds the expected corridor", *trip.RouteDeviation),
			Recommendation: "check the destination entry and the planned route for this trip",
		})
	}
}

// Summarize aggregates validation results into the dashboard quality summary.
func Summarize(results []model.ValidationResult) model.DataQualitySummary {
	summary := model.DataQualitySummary{TotalTrips: len(results)}
	if len(results) == 0 {
		return summary
	}
	var total float64
	for _, r := range results {
		total += r.Score
		for _, issue := range r.Errors {
			switch issue.Severity {
			case model.SeverityCritical:
				summary.CriticalIssues++
			case model.SeverityHigh:
				summary.HighIssues++
			case model.SeverityMedium:
				summary.MediumIssues++
			case model.SeverityLow:
				summary.LowIssues++
			}
		}
		summary.Warnings += len(r.Warnings)
	}
	summary.AverageScore = total / float64(len(results))
	return summary
}
