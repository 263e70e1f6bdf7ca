package repository

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"trip-integrity-service/internal/model"
)

// TripRepository reads the external trip store. This service never writes
// trips: corrections go through the fleet application's own write path.
type TripRepository struct {
	db *gorm.DB
}

func NewTripRepository(db *gorm.DB) *TripRepository {
	return &TripRepository{db: db}
}

// ListVehicles returns the vehicles visible under the given organization
// filter, nil meaning fleet-wide.
func (r *TripRepository) ListVehicles(ctx context.Context, orgID *uuid.UUID) ([]model.Vehicle, error) {
	query := r.db.WithContext(ctx).Model(&model.Vehicle{})
	if orgID != nil {
		query = query.Where("organization_id = ?", *orgID)
	}
	var vehicles []model.Vehicle
	if err := query.Order("registration ASC").Find(&vehicles).Error; err != nil {
		return nil, err
	}
	return vehicles, nil
}

func (r *TripRepository) GetVehicle(ctx context.Context, id uuid.UUID) (*model.Vehicle, error) {
	var vehicle model.Vehicle
	if err := r.db.WithContext(ctx).First(&vehicle, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &vehicle, nil
}

// TripsByVehicle returns a vehicle's trips in chronological order, the order
// the validator and detector chain odometer readings in.
func (r *TripRepository) TripsByVehicle(ctx context.Context, vehicleID uuid.UUID) ([]model.Trip, error) {
	var trips []model.Trip
	if err := r.db.WithContext(ctx).
		Model(&model.Trip{}).
		Where("vehicle_id = ?", vehicleID).
		Order("start_date ASC NULLS LAST, created_at ASC").
		Preload("Driver").
		Find(&trips).Error; err != nil {
		return nil, err
	}
	return trips, nil
}
