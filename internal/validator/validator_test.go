package validator

import (
	"reflect"
	"testing"
	"time"

	"github.com/google/uuid"

	"trip-integrity-service/internal/model"
)

func newValidator() *Validator {
	return New(DefaultPenalties(), 50, 50)
}

func ptr(v float64) *float64 {
	return &v
}

func cleanTrip() model.Trip {
	driverID := uuid.New()
	start := time.Date(2025, 3, 10, 6, 0, 0, 0, time.UTC)
	end := start.Add(9 * time.Hour)
	return model.Trip{
		ID:           uuid.New(),
		SerialNumber: "TS-1001",
		VehicleID:    uuid.New(),
		DriverID:     &driverID,
		StartDate:    &start,
		EndDate:      &end,
		StartKM:      ptr(12000),
		EndKM:        ptr(12450),
		FuelQuantity: ptr(80),
		FuelCost:     ptr(7600),
		GrossWeight:  ptr(16.5),
	}
}

func TestValidate_CleanTripScores100(t *testing.T) {
	result := newValidator().Validate(cleanTrip(), nil)

	if len(result.Errors) != 0 {
		t.Fatalf("expected 0 errors, got %d: %+v", len(result.Errors), result.Errors)
	}
	if result.Score != 100 {
		t.Errorf("expected score 100, got %.1f", result.Score)
	}
}

func TestValidate_OdometerReversal(t *testing.T) {
	trip := cleanTrip()
	trip.StartKM = ptr(1000)
	trip.EndKM = ptr(950)

	result := newValidator().Validate(trip, nil)

	var found *model.ValidationIssue
	for i := range result.Errors {
		if result.Errors[i].Field == "end_km" {
			found = &result.Errors[i]
		}
	}
	if found == nil {
		t.Fatalf("expected an end_km error, got %+v", result.Errors)
	}
	if found.Severity != model.SeverityCritical {
		t.Errorf("expected CRITICAL severity, got %s", found.Severity)
	}
	if found.Message != "end_km must exceed start_km" {
		t.Errorf("unexpected message %q", found.Message)
	}
	if result.Score > 50 {
		t.Errorf("expected score <= 50, got %.1f", result.Score)
	}
}

func TestValidate_ScoreStaysInRange(t *testing.T) {
	// A trip with everything wrong must clamp at zero, never go negative.
	end := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	start := end.Add(24 * time.Hour)
	trip := model.Trip{
		ID:           uuid.New(),
		StartDate:    &start,
		EndDate:      &end,
		StartKM:      ptr(500),
		EndKM:        ptr(400),
		FuelCost:     ptr(-100),
		TollCharges:  ptr(-50),
		FuelQuantity: ptr(-5),
	}

	result := newValidator().Validate(trip, nil)

	if result.Score < 0 || result.Score > 100 {
		t.Fatalf("score %.1f out of [0,100]", result.Score)
	}
	if result.Score != 0 {
		t.Errorf("expected fully broken trip to clamp at 0, got %.1f", result.Score)
	}
}

func TestValidate_MissingFieldsDegradeToIssues(t *testing.T) {
	result := newValidator().Validate(model.Trip{ID: uuid.New(), VehicleID: uuid.New()}, nil)

	if len(result.Errors) == 0 {
		t.Fatal("expected errors for an empty trip")
	}
	fields := map[string]bool{}
	for _, issue := range result.Errors {
		fields[issue.Field] = true
	}
	for _, want := range []string{"driver_id", "start_date", "end_date", "gross_weight", "start_km", "end_km"} {
		if !fields[want] {
			t.Errorf("expected an issue on %s", want)
		}
	}
}

func TestValidate_SequenceGapIsWarningNotError(t *testing.T) {
	trip := cleanTrip()
	prev := ptr(*trip.StartKM - 300)

	result := newValidator().Validate(trip, prev)

	if len(result.Errors) != 0 {
		t.Fatalf("expected no errors, got %+v", result.Errors)
	}
	if len(result.Warnings) != 1 || result.Warnings[0].Field != "start_km" {
		t.Fatalf("expected one start_km warning, got %+v", result.Warnings)
	}
	if result.Score != 100 {
		t.Errorf("warnings must not deduct: got %.1f", result.Score)
	}
}

func TestValidate_FuelMismatchWarns(t *testing.T) {
	trip := cleanTrip()
	trip.FuelCost = nil

	result := newValidator().Validate(trip, nil)

	if len(result.Warnings) != 1 || result.Warnings[0].Field != "fuel_cost" {
		t.Fatalf("expected one fuel_cost warning, got %+v", result.Warnings)
	}
	if result.Warnings[0].Recommendation == "" {
		t.Error("fuel warnings must carry a recommendation")
	}
}

func TestValidate_DateReversalIsCritical(t *testing.T) {
	trip := cleanTrip()
	end := trip.StartDate.Add(-time.Hour)
	trip.EndDate = &end

	result := newValidator().Validate(trip, nil)

	found := false
	for _, issue := range result.Errors {
		if issue.Field == "end_date" && issue.Severity == model.SeverityCritical {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected a critical end_date error, got %+v", result.Errors)
	}
}

func TestValidate_Idempotent(t *testing.T) {
	trip := cleanTrip()
	trip.EndKM = ptr(11000)
	v := newValidator()

	first := v.Validate(trip, ptr(11950))
	second := v.Validate(trip, ptr(11950))

	if !reflect.DeepEqual(first, second) {
		t.Fatalf("repeated validation differs:\n%+v\n%+v", first, second)
	}
}

func TestSummarize(t *testing.T) {
	v := newValidator()

	trips := make([]model.Trip, 0, 10)
	for i := 0; i < 8; i++ {
		trips = append(trips, cleanTrip())
	}
	badOdometer := cleanTrip()
	badOdometer.StartKM = ptr(2000)
	badOdometer.EndKM = ptr(1500)
	trips = append(trips, badOdometer)
	missingDriver := cleanTrip()
	missingDriver.DriverID = nil
	trips = append(trips, missingDriver)

	results := make([]model.ValidationResult, 0, len(trips))
	var sum float64
	for _, trip := range trips {
		r := v.Validate(trip, nil)
		sum += r.Score
		results = append(results, r)
	}

	summary := Summarize(results)

	if summary.TotalTrips != 10 {
		t.Fatalf("expected 10 trips, got %d", summary.TotalTrips)
	}
	want := sum / 10
	if summary.AverageScore != want {
		t.Errorf("average score %.2f != mean of raw scores %.2f", summary.AverageScore, want)
	}
	if summary.CriticalIssues != 1 {
		t.Errorf("expected 1 critical issue, got %d", summary.CriticalIssues)
	}
	if summary.HighIssues != 1 {
		t.Errorf("expected 1 high issue, got %d", summary.HighIssues)
	}
}

func TestSummarize_Empty(t *testing.T) {
	summary := Summarize(nil)
	if summary.TotalTrips != 0 || summary.AverageScore != 0 {
		t.Fatalf("unexpected summary for empty input: %+v", summary)
	}
}
