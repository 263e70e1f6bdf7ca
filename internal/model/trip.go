package model

import (
	"time"

	"github.com/google/uuid"
)

// TripProvenance marks how a trip record entered the system. Consumers use it
// instead of guessing from field contents; ESTIMATED data lowers recovery
// confidence downstream.
type TripProvenance string

const (
	TripProvenanceRecorded  TripProvenance = "RECORDED"
	TripProvenanceImported  TripProvenance = "IMPORTED"
	TripProvenanceEstimated TripProvenance = "ESTIMATED"
)

// Trip is the read model over trip sheets. Numeric fields are pointers because
// source records are frequently incomplete; missing values are validation
// findings, not load errors.
type Trip struct {
	ID              uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	SerialNumber    string         `gorm:"type:varchar(32)" json:"serial_number"`
	VehicleID       uuid.UUID      `gorm:"type:uuid;not null" json:"vehicle_id"`
	DriverID        *uuid.UUID     `gorm:"type:uuid" json:"driver_id"`
	StartDate       *time.Time     `gorm:"column:start_date" json:"start_date"`
	EndDate         *time.Time     `gorm:"column:end_date" json:"end_date"`
	StartKM         *float64       `gorm:"column:start_km" json:"start_km"`
	EndKM           *float64       `gorm:"column:end_km" json:"end_km"`
	FuelQuantity    *float64       `gorm:"column:fuel_quantity" json:"fuel_quantity"`
	FuelCost        *float64       `gorm:"column:fuel_cost" json:"fuel_cost"`
	DriverAllowance *float64       `gorm:"column:driver_allowance" json:"driver_allowance"`
	TollCharges     *float64       `gorm:"column:toll_charges" json:"toll_charges"`
	OtherExpenses   *float64       `gorm:"column:other_expenses" json:"other_expenses"`
	GrossWeight     *float64       `gorm:"column:gross_weight" json:"gross_weight"`
	RouteDeviation  *float64       `gorm:"column:route_deviation" json:"route_deviation"`
	Refueling       bool           `gorm:"column:refueling" json:"refueling"`
	Remarks         string         `gorm:"type:text" json:"remarks"`
	Provenance      TripProvenance `gorm:"type:trip_provenance;default:'RECORDED'" json:"provenance"`
	CreatedAt       time.Time      `gorm:"autoCreateTime" json:"created_at"`

	Vehicle *Vehicle `gorm:"foreignKey:VehicleID" json:"vehicle,omitempty"`
	Driver  *Driver  `gorm:"foreignKey:DriverID" json:"driver,omitempty"`
}

func (Trip) TableName() string {
	return "trips"
}

// Distance returns end_km - start_km when both readings are present. The
// second return is false when either reading is missing; a present but
// non-positive distance is still returned so callers can flag it.
func (t Trip) Distance() (float64, bool) {
	if t.StartKM == nil || t.EndKM == nil {
		return 0, false
	}
	return *t.EndKM - *t.StartKM, true
}

// Duration returns the trip duration in hours when both dates are present.
func (t Trip) Duration() (float64, bool) {
	if t.StartDate == nil || t.EndDate == nil {
		return 0, false
	}
	return t.EndDate.Sub(*t.StartDate).Hours(), true
}

// FuelEfficiency returns km per litre when distance and fuel quantity allow it.
func (t Trip) FuelEfficiency() (float64, bool) {
	dist, ok := t.Distance()
	if !ok || dist <= 0 || t.FuelQuantity == nil || *t.FuelQuantity <= 0 {
		return 0, false
	}
	return dist / *t.FuelQuantity, true
}

// TotalExpenses sums the expense fields that are present.
func (t Trip) TotalExpenses() float64 {
	var total float64
	for _, v := range []*float64{t.FuelCost, t.DriverAllowance, t.TollCharges, t.OtherExpenses} {
		if v != nil {
			total += *v
		}
	}
	return total
}

type Vehicle struct {
	ID             uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	OrganizationID uuid.UUID `gorm:"type:uuid;not null" json:"organization_id"`
	Registration   string    `gorm:"type:varchar(32)" json:"registration"`
	Brand          string    `gorm:"type:varchar(64)" json:"brand"`
	Model          string    `gorm:"type:varchar(64)" json:"model"`

	Organization *Organization `gorm:"foreignKey:OrganizationID" json:"-"`
}

func (Vehicle) TableName() string {
	return "vehicles"
}

type Driver struct {
	ID       uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	FullName string    `gorm:"type:varchar(255)" json:"full_name"`
	Phone    string    `gorm:"type:varchar(32)" json:"phone"`
}

func (Driver) TableName() string {
	return "drivers"
}

type Organization struct {
	ID   uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	Name string    `gorm:"type:varchar(255)" json:"name"`
}

func (Organization) TableName() string {
	return "organizations"
}
