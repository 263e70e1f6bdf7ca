package service

import (
	"context"

	"github.com/google/uuid"

	"trip-integrity-service/internal/model"
	"trip-integrity-service/internal/repository"
)

// TripSource is the read contract over the external record store. The
// repository layer implements it; tests substitute fixtures.
type TripSource interface {
	ListVehicles(ctx context.Context, orgID *uuid.UUID) ([]model.Vehicle, error)
	GetVehicle(ctx context.Context, id uuid.UUID) (*model.Vehicle, error)
	TripsByVehicle(ctx context.Context, vehicleID uuid.UUID) ([]model.Trip, error)
}

// CaseStore persists edge-case detections: append plus resolution-status
// updates, never deletes.
type CaseStore interface {
	Create(ctx context.Context, edgeCase *model.EdgeCase) error
	GetByID(ctx context.Context, orgID *uuid.UUID, id uuid.UUID) (*model.EdgeCase, error)
	HasOpenCase(ctx context.Context, tripID uuid.UUID, caseType model.CaseType) (bool, error)
	UpdateResolution(ctx context.Context, id uuid.UUID, status model.ResolutionStatus) error
	Recent(ctx context.Context, orgID *uuid.UUID, limit int) ([]model.EdgeCase, error)
	Counts(ctx context.Context, orgID *uuid.UUID) (repository.EdgeCaseCounts, error)
}

var (
	_ TripSource = (*repository.TripRepository)(nil)
	_ CaseStore  = (*repository.EdgeCaseRepository)(nil)
)
