package service

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"trip-integrity-service/internal/model"
	"trip-integrity-service/internal/repository"
	"trip-integrity-service/internal/validator"
)

// fakeTripSource serves fixtures for service tests and can be told to fail
// for specific vehicles.
type fakeTripSource struct {
	vehicles []model.Vehicle
	trips    map[uuid.UUID][]model.Trip
	listErr  error
	tripsErr map[uuid.UUID]error
}

func (f *fakeTripSource) ListVehicles(ctx context.Context, orgID *uuid.UUID) ([]model.Vehicle, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	if orgID == nil {
		return f.vehicles, nil
	}
	var out []model.Vehicle
	for _, v := range f.vehicles {
		if v.OrganizationID == *orgID {
			out = append(out, v)
		}
	}
	return out, nil
}

func (f *fakeTripSource) GetVehicle(ctx context.Context, id uuid.UUID) (*model.Vehicle, error) {
	for i := range f.vehicles {
		if f.vehicles[i].ID == id {
			v := f.vehicles[i]
			return &v, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (f *fakeTripSource) TripsByVehicle(ctx context.Context, vehicleID uuid.UUID) ([]model.Trip, error) {
	if err := f.tripsErr[vehicleID]; err != nil {
		return nil, err
	}
	return f.trips[vehicleID], nil
}

// fakeCaseStore is an in-memory CaseStore safe for the concurrent fleet scan.
type fakeCaseStore struct {
	mu    sync.Mutex
	cases []model.EdgeCase
}

func (f *fakeCaseStore) Create(ctx context.Context, edgeCase *model.EdgeCase) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if edgeCase.ID == uuid.Nil {
		edgeCase.ID = uuid.New()
	}
	if edgeCase.DetectedAt.IsZero() {
		edgeCase.DetectedAt = time.Now().UTC()
	}
	f.cases = append(f.cases, *edgeCase)
	return nil
}

func (f *fakeCaseStore) GetByID(ctx context.Context, orgID *uuid.UUID, id uuid.UUID) (*model.EdgeCase, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := range f.cases {
		if f.cases[i].ID == id {
			c := f.cases[i]
			return &c, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (f *fakeCaseStore) HasOpenCase(ctx context.Context, tripID uuid.UUID, caseType model.CaseType) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, c := range f.cases {
		if c.TripID == nil || *c.TripID != tripID || c.CaseType != caseType {
			continue
		}
		if c.ResolutionStatus == model.ResolutionPending || c.ResolutionStatus == model.ResolutionInProgress {
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeCaseStore) UpdateResolution(ctx context.Context, id uuid.UUID, status model.ResolutionStatus) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := range f.cases {
		if f.cases[i].ID == id {
			f.cases[i].ResolutionStatus = status
			return nil
		}
	}
	return gorm.ErrRecordNotFound
}

func (f *fakeCaseStore) Recent(ctx context.Context, orgID *uuid.UUID, limit int) ([]model.EdgeCase, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]model.EdgeCase, 0, limit)
	for i := len(f.cases) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, f.cases[i])
	}
	return out, nil
}

func (f *fakeCaseStore) Counts(ctx context.Context, orgID *uuid.UUID) (repository.EdgeCaseCounts, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	counts := repository.EdgeCaseCounts{
		BySeverity: map[model.Severity]int64{},
		ByType:     map[model.CaseType]int64{},
	}
	for _, c := range f.cases {
		counts.Total++
		if c.ResolutionStatus == model.ResolutionPending {
			counts.Pending++
		}
		counts.BySeverity[c.Severity]++
		counts.ByType[c.CaseType]++
	}
	return counts, nil
}

func adminPrincipal() model.Principal {
	return model.Principal{
		UserID: uuid.New(),
		OrgID:  uuid.New(),
		Role:   model.UserRoleFleetAdmin,
		Name:   "Admin",
	}
}

func opsPrincipal(orgID uuid.UUID) model.Principal {
	return model.Principal{
		UserID: uuid.New(),
		OrgID:  orgID,
		Role:   model.UserRoleOpsManager,
		Name:   "Ops Manager",
	}
}

func driverPrincipal() model.Principal {
	return model.Principal{
		UserID: uuid.New(),
		OrgID:  uuid.New(),
		Role:   model.UserRoleDriver,
		Name:   "Driver",
	}
}

func testValidator() *validator.Validator {
	return validator.New(validator.DefaultPenalties(), 50, 50)
}

func nopLogger() zerolog.Logger {
	return zerolog.Nop()
}

func f64(v float64) *float64 {
	return &v
}

// fixtureTrip builds a clean trip of the given odometer span at 50 km/h.
func fixtureTrip(vehicleID uuid.UUID, startKM, endKM float64, day int) model.Trip {
	driverID := uuid.New()
	start := time.Date(2025, 6, day, 6, 0, 0, 0, time.UTC)
	end := start.Add(time.Duration((endKM - startKM) / 50 * float64(time.Hour)))
	return model.Trip{
		ID:          uuid.New(),
		VehicleID:   vehicleID,
		DriverID:    &driverID,
		StartDate:   &start,
		EndDate:     &end,
		StartKM:     f64(startKM),
		EndKM:       f64(endKM),
		GrossWeight: f64(12),
	}
}
