package detector

import (
	"testing"
	"time"

	"github.com/google/uuid"

	"trip-integrity-service/internal/model"
)

func fptr(v float64) *float64 {
	return &v
}

func testVehicle() model.Vehicle {
	return model.Vehicle{
		ID:             uuid.New(),
		OrganizationID: uuid.New(),
		Registration:   "KA01AB1234",
	}
}

// historyTrip builds a plain trip of the given distance with an implied speed
// of 50 km/h so no other detector fires on it.
func historyTrip(startKM, distance float64) model.Trip {
	start := time.Date(2025, 4, 1, 6, 0, 0, 0, time.UTC)
	end := start.Add(time.Duration(distance / 50 * float64(time.Hour)))
	return model.Trip{
		ID:        uuid.New(),
		VehicleID: uuid.New(),
		StartDate: &start,
		EndDate:   &end,
		StartKM:   fptr(startKM),
		EndKM:     fptr(startKM + distance),
	}
}

func TestConfidence(t *testing.T) {
	if got := Confidence(0, 5); got != 0 {
		t.Errorf("Confidence(0, 5) = %.1f, want 0", got)
	}
	if got := Confidence(1, 0); got != 40 {
		t.Errorf("Confidence(1, 0) = %.1f, want 40", got)
	}
	if got := Confidence(5, 10); got != 100 {
		t.Errorf("Confidence(5, 10) = %.1f, want cap at 100", got)
	}
}

func TestConfidence_Monotone(t *testing.T) {
	deviations := []float64{0, 0.5, 1, 2.5, 4, 8}
	for agreeing := 1; agreeing <= 5; agreeing++ {
		prev := -1.0
		for _, dev := range deviations {
			got := Confidence(agreeing, dev)
			if got < prev {
				t.Fatalf("Confidence(%d, %.1f) = %.1f dropped below %.1f", agreeing, dev, got, prev)
			}
			if got < 0 || got > 100 {
				t.Fatalf("Confidence(%d, %.1f) = %.1f out of [0,100]", agreeing, dev, got)
			}
			prev = got
		}
	}
	for dev := 0.0; dev <= 8; dev += 2 {
		if Confidence(3, dev) < Confidence(2, dev) {
			t.Fatalf("confidence decreased when a detector agreed at deviation %.1f", dev)
		}
	}
}

func TestAnalyze_CleanHistoryYieldsNoCases(t *testing.T) {
	d := New(DefaultThresholds())
	trips := []model.Trip{}
	km := 10000.0
	for i := 0; i < 8; i++ {
		trips = append(trips, historyTrip(km, 100))
		km += 100
	}

	cases := d.Analyze(testVehicle(), trips)
	if len(cases) != 0 {
		t.Fatalf("expected no cases, got %d: %+v", len(cases), cases)
	}
}

func TestAnalyze_OdometerReset(t *testing.T) {
	d := New(DefaultThresholds())
	reset := historyTrip(8000, 100)
	reset.EndKM = fptr(8000)
	reset.SerialNumber = "TS-7"

	cases := d.Analyze(testVehicle(), []model.Trip{historyTrip(7800, 100), reset})

	if len(cases) != 1 {
		t.Fatalf("expected 1 case, got %d", len(cases))
	}
	c := cases[0]
	if c.CaseType != model.CaseTypeDataAnomaly {
		t.Errorf("case type = %s, want %s", c.CaseType, model.CaseTypeDataAnomaly)
	}
	if c.Severity != model.SeverityCritical {
		t.Errorf("severity = %s, want CRITICAL", c.Severity)
	}
	if len(c.PatternsDetected) != 1 || c.PatternsDetected[0] != "odometer_reset" {
		t.Errorf("patterns = %v, want [odometer_reset]", c.PatternsDetected)
	}
	if !c.RequiresManualReview {
		t.Error("critical cases must require manual review")
	}
	found := false
	for _, a := range c.AutoActionsTaken {
		if a == "queued_for_manual_review" {
			found = true
		}
	}
	if !found {
		t.Errorf("auto actions %v missing queued_for_manual_review", c.AutoActionsTaken)
	}
}

func TestAnalyze_DistanceOutsideHistory(t *testing.T) {
	d := New(DefaultThresholds())

	// 11 trips from 95 to 105 km plus one 400 km run. Including the outlier
	// the distance z-score works out to about 3.3.
	trips := []model.Trip{}
	km := 50000.0
	for dist := 95.0; dist <= 105; dist++ {
		trips = append(trips, historyTrip(km, dist))
		km += dist
	}
	outlier := historyTrip(km, 400)
	trips = append(trips, outlier)

	cases := d.Analyze(testVehicle(), trips)

	if len(cases) != 1 {
		t.Fatalf("expected 1 case, got %d: %+v", len(cases), cases)
	}
	c := cases[0]
	if c.TripID == nil || *c.TripID != outlier.ID {
		t.Error("case is not attached to the outlier trip")
	}
	if c.CaseType != model.CaseTypeDataAnomaly || c.Severity != model.SeverityHigh {
		t.Errorf("got %s/%s, want DATA_ANOMALY/HIGH", c.CaseType, c.Severity)
	}
	if len(c.PatternsDetected) != 1 || c.PatternsDetected[0] != "distance_outside_history" {
		t.Errorf("patterns = %v", c.PatternsDetected)
	}
}

func TestAnalyze_SmallHistorySkipsStatistics(t *testing.T) {
	d := New(DefaultThresholds())

	// Same outlier but with only three baseline trips: below the minimum
	// history the z-score detectors must stay silent.
	trips := []model.Trip{
		historyTrip(1000, 100),
		historyTrip(1100, 100),
		historyTrip(1200, 400),
	}

	if cases := d.Analyze(testVehicle(), trips); len(cases) != 0 {
		t.Fatalf("expected no cases with a 3-trip history, got %+v", cases)
	}
}

func TestAnalyze_EmergencySpeed(t *testing.T) {
	d := New(DefaultThresholds())
	start := time.Date(2025, 4, 2, 22, 0, 0, 0, time.UTC)
	end := start.Add(2 * time.Hour)
	trip := model.Trip{
		ID:        uuid.New(),
		StartDate: &start,
		EndDate:   &end,
		StartKM:   fptr(3000),
		EndKM:     fptr(3200),
	}

	cases := d.Analyze(testVehicle(), []model.Trip{trip})

	if len(cases) != 1 {
		t.Fatalf("expected 1 case, got %d", len(cases))
	}
	c := cases[0]
	if c.CaseType != model.CaseTypeEmergencyTrip || c.Severity != model.SeverityHigh {
		t.Errorf("got %s/%s, want EMERGENCY_TRIP/HIGH", c.CaseType, c.Severity)
	}
	if len(c.PatternsDetected) != 1 || c.PatternsDetected[0] != "implied_speed_excessive" {
		t.Errorf("patterns = %v", c.PatternsDetected)
	}
}

func TestAnalyze_MaintenanceRun(t *testing.T) {
	d := New(DefaultThresholds())
	start := time.Date(2025, 4, 3, 9, 0, 0, 0, time.UTC)
	end := start.Add(6 * time.Hour)
	trip := model.Trip{
		ID:        uuid.New(),
		StartDate: &start,
		EndDate:   &end,
		StartKM:   fptr(4000),
		EndKM:     fptr(4003),
		Remarks:   "Routine workshop service",
	}

	cases := d.Analyze(testVehicle(), []model.Trip{trip})

	if len(cases) != 1 {
		t.Fatalf("expected 1 case, got %d", len(cases))
	}
	c := cases[0]
	if c.CaseType != model.CaseTypeMaintenanceTrip || c.Severity != model.SeverityMedium {
		t.Errorf("got %s/%s, want MAINTENANCE_TRIP/MEDIUM", c.CaseType, c.Severity)
	}
	if !c.RequiresManualReview {
		t.Error("low-confidence single-pattern match should still be queued for review")
	}
}

func TestAnalyze_PrimaryTypeFollowsSeverity(t *testing.T) {
	d := New(DefaultThresholds())
	start := time.Date(2025, 4, 4, 7, 0, 0, 0, time.UTC)
	end := start.Add(8 * time.Hour)
	trip := model.Trip{
		ID:        uuid.New(),
		StartDate: &start,
		EndDate:   &end,
		StartKM:   fptr(6000),
		EndKM:     fptr(6003),
		Remarks:   "Broke down, towed to workshop",
	}

	cases := d.Analyze(testVehicle(), []model.Trip{trip})

	if len(cases) != 1 {
		t.Fatalf("expected 1 case, got %d", len(cases))
	}
	c := cases[0]
	if c.CaseType != model.CaseTypeBreakdownTrip {
		t.Errorf("primary type = %s, want BREAKDOWN_TRIP (highest severity wins)", c.CaseType)
	}
	if len(c.PatternsDetected) != 2 {
		t.Fatalf("expected both patterns retained, got %v", c.PatternsDetected)
	}
	if c.PatternsDetected[0] != "breakdown_remarks" || c.PatternsDetected[1] != "short_distance_high_downtime" {
		t.Errorf("patterns = %v", c.PatternsDetected)
	}
	if c.ConfidenceScore != Confidence(2, 0) {
		t.Errorf("confidence = %.1f, want %.1f", c.ConfidenceScore, Confidence(2, 0))
	}
}
