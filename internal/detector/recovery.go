package detector

import (
	"fmt"
	"sort"
	"strconv"

	"github.com/google/uuid"

	"trip-integrity-service/internal/model"
)

var riskWeights = map[model.RiskLevel]float64{
	model.RiskLow:    0.10,
	model.RiskMedium: 0.35,
	model.RiskHigh:   0.60,
}

// compositeScore ranks recovery options: success probability discounted by
// the risk of applying the correction.
func compositeScore(opt model.RecoveryOption) float64 {
	return opt.SuccessProbability * (1 - riskWeights[opt.RiskLevel])
}

// AnalyzeRecovery scans a vehicle's trips for internally inconsistent data
// and proposes ranked corrections. An empty slice means no inconsistencies
// were found. Trips must be in chronological order.
func (d *Detector) AnalyzeRecovery(vehicle model.Vehicle, trips []model.Trip) []model.DataRecoveryScenario {
	var scenarios []model.DataRecoveryScenario

	var prev *model.Trip
	for i := range trips {
		trip := trips[i]
		if s, ok := d.odometerConflict(vehicle, trip, nextTrip(trips, i)); ok {
			scenarios = append(scenarios, s)
		}
		if s, ok := d.sequenceGap(vehicle, prev, trip); ok {
			scenarios = append(scenarios, s)
		}
		if s, ok := d.fuelMismatch(vehicle, trip); ok {
			scenarios = append(scenarios, s)
		}
		prev = &trips[i]
	}
	return scenarios
}

func nextTrip(trips []model.Trip, i int) *model.Trip {
	if i+1 < len(trips) {
		return &trips[i+1]
	}
	return nil
}

func (d *Detector) odometerConflict(vehicle model.Vehicle, trip model.Trip, next *model.Trip) (model.DataRecoveryScenario, bool) {
	if trip.StartKM == nil || trip.EndKM == nil || *trip.EndKM > *trip.StartKM {
		return model.DataRecoveryScenario{}, false
	}

	options := []model.RecoveryOption{}
	if candidate, ok := transposedReading(*trip.EndKM, *trip.StartKM); ok {
		options = append(options, model.RecoveryOption{
			Method:             "transposed_digit_correction",
			Description:        fmt.Sprintf("Correct end_km to %.0f (adjacent digits transposed at entry)", candidate),
			RiskLevel:          model.RiskLow,
			SuccessProbability: 80,
			EstimatedAccuracy:  90,
		})
	}
	if next != nil && next.StartKM != nil && *next.StartKM > *trip.StartKM {
		options = append(options, model.RecoveryOption{
			Method:             "next_trip_opening_reading",
			Description:        fmt.Sprintf("Adopt the next trip's opening reading %.0f as this trip's end_km", *next.StartKM),
			RiskLevel:          model.RiskMedium,
			SuccessProbability: 70,
			EstimatedAccuracy:  75,
		})
	}
	options = append(options, model.RecoveryOption{
		Method:             "manual_reentry",
		Description:        "Re-enter both readings from the physical trip sheet",
		RiskLevel:          model.RiskHigh,
		SuccessProbability: 95,
		EstimatedAccuracy:  99,
	})

	scenario := model.DataRecoveryScenario{
		ScenarioID:          uuid.New(),
		ScenarioType:        "odometer_conflict",
		VehicleRegistration: vehicle.Registration,
		AffectedTrips:       []uuid.UUID{trip.ID},
		DataInconsistencies: []model.DataInconsistency{{
			Field:         "end_km",
			ExpectedValue: fmt.Sprintf("> %.0f", *trip.StartKM),
			ActualValue:   fmt.Sprintf("%.0f", *trip.EndKM),
			Confidence:    provenanceConfidence(trip, 95),
		}},
		RecoveryOptions: options,
	}
	d.finalizeScenario(&scenario)
	return scenario, true
}

func (d *Detector) sequenceGap(vehicle model.Vehicle, prev *model.Trip, trip model.Trip) (model.DataRecoveryScenario, bool) {
	if prev == nil || prev.EndKM == nil || trip.StartKM == nil {
		return model.DataRecoveryScenario{}, false
	}
	gap := *trip.StartKM - *prev.EndKM
	if gap < 0 {
		gap = -gap
	}
	// Small gaps are handled as validation warnings; only large ones are
	// worth a recovery proposal.
	if gap <= 100 {
		return model.DataRecoveryScenario{}, false
	}

	scenario := model.DataRecoveryScenario{
		ScenarioID:          uuid.New(),
		ScenarioType:        "sequence_gap",
		VehicleRegistration: vehicle.Registration,
		AffectedTrips:       []uuid.UUID{prev.ID, trip.ID},
		DataInconsistencies: []model.DataInconsistency{{
			Field:         "start_km",
			ExpectedValue: fmt.Sprintf("%.0f", *prev.EndKM),
			ActualValue:   fmt.Sprintf("%.0f", *trip.StartKM),
			Confidence:    provenanceConfidence(trip, 75),
		}},
		RecoveryOptions: []model.RecoveryOption{
			{
				Method:             "confirm_unrecorded_movement",
				Description:        fmt.Sprintf("Accept the %.0f km gap as an unrecorded movement (workshop run, vehicle transfer)", gap),
				RiskLevel:          model.RiskLow,
				SuccessProbability: 65,
				EstimatedAccuracy:  60,
			},
			{
				Method:             "backfill_missing_trip",
				Description:        "Create the missing trip sheet covering the gap before this trip",
				RiskLevel:          model.RiskMedium,
				SuccessProbability: 70,
				EstimatedAccuracy:  80,
			},
			{
				Method:             "align_opening_reading",
				Description:        fmt.Sprintf("Correct start_km to the previous close %.0f", *prev.EndKM),
				RiskLevel:          model.RiskHigh,
				SuccessProbability: 60,
				EstimatedAccuracy:  70,
			},
		},
	}
	d.finalizeScenario(&scenario)
	return scenario, true
}

func (d *Detector) fuelMismatch(vehicle model.Vehicle, trip model.Trip) (model.DataRecoveryScenario, bool) {
	qty := trip.FuelQuantity != nil && *trip.FuelQuantity > 0
	cost := trip.FuelCost != nil && *trip.FuelCost > 0
	if qty == cost {
		return model.DataRecoveryScenario{}, false
	}

	var inconsistency model.DataInconsistency
	var options []model.RecoveryOption
	if qty {
		inconsistency = model.DataInconsistency{
			Field:         "fuel_cost",
			ExpectedValue: fmt.Sprintf("cost for %.1f litres", *trip.FuelQuantity),
			ActualValue:   "0",
			Confidence:    provenanceConfidence(trip, 85),
		}
		options = []model.RecoveryOption{
			{
				Method:             "derive_from_fleet_rate",
				Description:        "Derive the cost from the fleet's average fuel rate for the trip date",
				RiskLevel:          model.RiskLow,
				SuccessProbability: 75,
				EstimatedAccuracy:  85,
			},
			{
				Method:             "pump_receipt_lookup",
				Description:        "Recover the amount from the fuel card or pump receipt",
				RiskLevel:          model.RiskMedium,
				SuccessProbability: 85,
				EstimatedAccuracy:  98,
			},
		}
	} else {
		inconsistency = model.DataInconsistency{
			Field:         "fuel_quantity",
			ExpectedValue: fmt.Sprintf("litres for cost %.2f", *trip.FuelCost),
			ActualValue:   "0",
			Confidence:    provenanceConfidence(trip, 85),
		}
		options = []model.RecoveryOption{
			{
				Method:             "derive_from_fleet_rate",
				Description:        "Derive the litres from the fleet's average fuel rate for the trip date",
				RiskLevel:          model.RiskLow,
				SuccessProbability: 75,
				EstimatedAccuracy:  85,
			},
			{
				Method:             "clear_orphan_cost",
				Description:        "Clear the cost if no refueling actually took place",
				RiskLevel:          model.RiskHigh,
				SuccessProbability: 50,
				EstimatedAccuracy:  60,
			},
		}
	}

	scenario := model.DataRecoveryScenario{
		ScenarioID:          uuid.New(),
		ScenarioType:        "fuel_mismatch",
		VehicleRegistration: vehicle.Registration,
		AffectedTrips:       []uuid.UUID{trip.ID},
		DataInconsistencies: []model.DataInconsistency{inconsistency},
		RecoveryOptions:     options,
	}
	d.finalizeScenario(&scenario)
	return scenario, true
}

// finalizeScenario orders options by composite score and picks the
// recommended action, falling back to manual review when nothing clears the
// minimum score.
func (d *Detector) finalizeScenario(s *model.DataRecoveryScenario) {
	sort.SliceStable(s.RecoveryOptions, func(i, j int) bool {
		return compositeScore(s.RecoveryOptions[i]) > compositeScore(s.RecoveryOptions[j])
	})
	if len(s.RecoveryOptions) > 0 && compositeScore(s.RecoveryOptions[0]) >= d.thresholds.MinRecoveryScore {
		s.RecommendedAction = s.RecoveryOptions[0].Description
		return
	}
	s.RecommendedAction = "Manual review required: no recovery option clears the confidence threshold"
}

// provenanceConfidence demotes confidence for records that entered the system
// as estimates rather than recorded readings.
func provenanceConfidence(trip model.Trip, base float64) float64 {
	if trip.Provenance == model.TripProvenanceEstimated {
		return base * 0.8
	}
	return base
}

// transposedReading looks for an adjacent-digit transposition of the recorded
// end reading that would restore end > start, the most common manual-entry
// slip on odometer columns.
func transposedReading(end, start float64) (float64, bool) {
	digits := []byte(strconv.FormatInt(int64(end), 10))
	for i := 0; i+1 < len(digits); i++ {
		if digits[i] == digits[i+1] {
			continue
		}
		swapped := make([]byte, len(digits))
		copy(swapped, digits)
		swapped[i], swapped[i+1] = swapped[i+1], swapped[i]
		candidate, err := strconv.ParseInt(string(swapped), 10, 64)
		if err != nil {
			continue
		}
		if float64(candidate) > start {
			return float64(candidate), true
		}
	}
	return 0, false
}
