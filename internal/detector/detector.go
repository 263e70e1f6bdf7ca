package detector

import (
	"fmt"
	"sort"
	"strings"

	"gorm.io/datatypes"

	"trip-integrity-service/internal/model"
)

// Thresholds are the tunable limits the pattern detectors score against.
type Thresholds struct {
	DistanceZScore        float64
	OutlierZScore         float64
	EmergencySpeedKPH     float64
	MaintenanceMaxKM      float64
	MaintenanceMinHours   float64
	ReviewConfidenceFloor float64
	MinRecoveryScore      float64
}

func DefaultThresholds() Thresholds {
	return Thresholds{
		DistanceZScore:        3,
		OutlierZScore:         2.5,
		EmergencySpeedKPH:     85,
		MaintenanceMaxKM:      5,
		MaintenanceMinHours:   4,
		ReviewConfidenceFloor: 60,
		MinRecoveryScore:      55,
	}
}

// Detector classifies a vehicle's trip history into anomaly categories. It is
// stateless: baselines are recomputed from the supplied history on each run.
type Detector struct {
	thresholds Thresholds
}

func New(thresholds Thresholds) *Detector {
	return &Detector{thresholds: thresholds}
}

// patternMatch is one detector's vote on a trip. Deviation is a z-score-like
// distance from the baseline; keyword detectors leave it at zero.
type patternMatch struct {
	name           string
	caseType       model.CaseType
	severity       model.Severity
	deviation      float64
	recommendation string
}

var maintenanceKeywords = []string{"service", "servicing", "workshop", "maintenance", "repair", "oil change"}

var breakdownKeywords = []string{"breakdown", "broke down", "towed", "towing", "engine failure", "accident", "puncture"}

// Analyze runs every pattern detector over each trip in the vehicle's history
// and returns one EdgeCase per trip that matched at least one detector.
func (d *Detector) Analyze(vehicle model.Vehicle, trips []model.Trip) []model.EdgeCase {
	base := computeBaseline(trips)

	var cases []model.EdgeCase
	for _, trip := range trips {
		var matches []patternMatch
		matches = append(matches, d.odometerAnomaly(trip, base)...)
		matches = append(matches, d.maintenanceOrBreakdown(trip)...)
		matches = append(matches, d.emergency(trip)...)
		matches = append(matches, d.statisticalOutlier(trip, base)...)
		if len(matches) == 0 {
			continue
		}
		cases = append(cases, d.combine(vehicle, trip, matches))
	}
	return cases
}

func (d *Detector) odometerAnomaly(trip model.Trip, base baseline) []patternMatch {
	dist, ok := trip.Distance()
	if !ok {
		return nil
	}
	if dist <= 0 {
		return []patternMatch{{
			name:           "odometer_reset",
			caseType:       model.CaseTypeDataAnomaly,
			severity:       model.SeverityCritical,
			deviation:      d.thresholds.DistanceZScore,
			recommendation: "verify the odometer readings against the vehicle log",
		}}
	}
	if base.tripCount < minBaselineTrips {
		return nil
	}
	z := zScore(dist, base.distanceMean, base.distanceStd)
	if z <= d.thresholds.DistanceZScore {
		return nil
	}
	severity := model.SeverityHigh
	if z > 2*d.thresholds.DistanceZScore {
		severity = model.SeverityCritical
	}
	return []patternMatch{{
		name:           "distance_outside_history",
		caseType:       model.CaseTypeDataAnomaly,
		severity:       severity,
		deviation:      z,
		recommendation: fmt.Sprintf("distance %.0f km is %.1f standard deviations from this vehicle's history", dist, z),
	}}
}

func (d *Detector) maintenanceOrBreakdown(trip model.Trip) []patternMatch {
	remarks := strings.ToLower(trip.Remarks)
	var matches []patternMatch

	for _, kw := range breakdownKeywords {
		if strings.Contains(remarks, kw) {
			matches = append(matches, patternMatch{
				name:           "breakdown_remarks",
				caseType:       model.CaseTypeBreakdownTrip,
				severity:       model.SeverityHigh,
				recommendation: "open a workshop job card and exclude this trip from efficiency baselines",
			})
			break
		}
	}

	dist, hasDist := trip.Distance()
	dur, hasDur := trip.Duration()
	shortRun := hasDist && dist > 0 && dist <= d.thresholds.MaintenanceMaxKM
	longIdle := hasDur && dur >= d.thresholds.MaintenanceMinHours

	keyword := false
	for _, kw := range maintenanceKeywords {
		if strings.Contains(remarks, kw) {
			keyword = true
			break
		}
	}

	if shortRun && (longIdle || keyword) {
		matches = append(matches, patternMatch{
			name:           "short_distance_high_downtime",
			caseType:       model.CaseTypeMaintenanceTrip,
			severity:       model.SeverityMedium,
			recommendation: "reclassify as a maintenance run so it does not skew trip statistics",
		})
	}
	return matches
}

func (d *Detector) emergency(trip model.Trip) []patternMatch {
	dist, hasDist := trip.Distance()
	dur, hasDur := trip.Duration()
	if !hasDist || !hasDur || dist <= 20 || dur <= 0 {
		return nil
	}
	speed := dist / dur
	if speed <= d.thresholds.EmergencySpeedKPH {
		return nil
	}
	return []patternMatch{{
		name:           "implied_speed_excessive",
		caseType:       model.CaseTypeEmergencyTrip,
		severity:       model.SeverityHigh,
		deviation:      speed / d.thresholds.EmergencySpeedKPH,
		recommendation: fmt.Sprintf("implied average speed %.0f km/h; confirm an emergency dispatch or correct the dates", speed),
	}}
}

func (d *Detector) statisticalOutlier(trip model.Trip, base baseline) []patternMatch {
	if base.tripCount < minBaselineTrips {
		return nil
	}
	var matches []patternMatch
	if eff, ok := trip.FuelEfficiency(); ok {
		if z := zScore(eff, base.efficiencyMean, base.efficiencyStd); z > d.thresholds.OutlierZScore {
			matches = append(matches, patternMatch{
				name:           "fuel_efficiency_outlier",
				caseType:       model.CaseTypeUnusualPattern,
				severity:       model.SeverityMedium,
				deviation:      z,
				recommendation: fmt.Sprintf("fuel efficiency %.1f km/l deviates from the vehicle baseline; check for a missing refueling entry", eff),
			})
		}
	}
	if dist, ok := trip.Distance(); ok && dist > 0 {
		if total := trip.TotalExpenses(); total > 0 {
			perKM := total / dist
			if z := zScore(perKM, base.expenseKMMean, base.expenseKMStd); z > d.thresholds.OutlierZScore {
				matches = append(matches, patternMatch{
					name:           "expense_per_km_outlier",
					caseType:       model.CaseTypeUnusualPattern,
					severity:       model.SeverityMedium,
					deviation:      z,
					recommendation: fmt.Sprintf("expense of %.2f per km is outside the vehicle baseline; review the expense entries", perKM),
				})
			}
		}
	}
	return matches
}

// combine folds all matches on one trip into a single EdgeCase. The primary
// case type comes from the highest-severity match; every matched pattern name
// is retained.
func (d *Detector) combine(vehicle model.Vehicle, trip model.Trip, matches []patternMatch) model.EdgeCase {
	sort.SliceStable(matches, func(i, j int) bool {
		return model.SeverityRank(matches[i].severity) > model.SeverityRank(matches[j].severity)
	})
	primary := matches[0]

	patterns := make([]string, 0, len(matches))
	recommendations := make([]string, 0, len(matches))
	maxDeviation := 0.0
	for _, m := range matches {
		patterns = append(patterns, m.name)
		if m.recommendation != "" {
			recommendations = append(recommendations, m.recommendation)
		}
		if m.deviation > maxDeviation {
			maxDeviation = m.deviation
		}
	}

	confidence := Confidence(len(matches), maxDeviation)
	requiresReview := primary.severity == model.SeverityCritical ||
		primary.severity == model.SeverityHigh ||
		confidence < d.thresholds.ReviewConfidenceFloor

	actions := []string{"classified"}
	if requiresReview {
		actions = append(actions, "queued_for_manual_review")
	}

	tripID := trip.ID
	ctx := datatypes.JSONMap{
		"trip_details": map[string]interface{}{
			"serial_number": trip.SerialNumber,
			"start_km":      floatOrNil(trip.StartKM),
			"end_km":        floatOrNil(trip.EndKM),
			"remarks":       trip.Remarks,
			"provenance":    string(trip.Provenance),
		},
	}

	return model.EdgeCase{
		CaseType:             primary.caseType,
		Severity:             primary.severity,
		ConfidenceScore:      confidence,
		VehicleID:            vehicle.ID,
		VehicleRegistration:  vehicle.Registration,
		TripID:               &tripID,
		Description:          describeCase(primary, trip),
		PatternsDetected:     datatypes.NewJSONSlice(patterns),
		Context:              ctx,
		AutoActionsTaken:     datatypes.NewJSONSlice(actions),
		Recommendations:      datatypes.NewJSONSlice(recommendations),
		ResolutionStatus:     model.ResolutionPending,
		RequiresManualReview: requiresReview,
	}
}

// Confidence maps detector agreement and statistical distance onto 0-100.
// It is monotonically non-decreasing in both arguments.
func Confidence(agreeing int, maxDeviation float64) float64 {
	if agreeing < 1 {
		return 0
	}
	conf := 40 + 15*float64(agreeing-1) + 8*maxDeviation
	if conf > 100 {
		conf = 100
	}
	return conf
}

func describeCase(primary patternMatch, trip model.Trip) string {
	label := strings.ReplaceAll(strings.ToLower(string(primary.caseType)), "_", " ")
	if trip.SerialNumber != "" {
		return fmt.Sprintf("Trip %s classified as %s (%s)", trip.SerialNumber, label, primary.name)
	}
	return fmt.Sprintf("Trip classified as %s (%s)", label, primary.name)
}

func floatOrNil(v *float64) interface{} {
	if v == nil {
		return nil
	}
	return *v
}
