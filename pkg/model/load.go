package model

import (
	"time"
)

// LoadStatus is the closed set of load lifecycle states.
type LoadStatus string

const (
	LoadPosted      LoadStatus = "POSTED"
	LoadOpenForBids LoadStatus = "OPEN_FOR_BIDS"
	LoadBooked      LoadStatus = "BOOKED"
	LoadCancelled   LoadStatus = "CANCELLED"
)

// CanTransitionTo reports whether the status transition is allowed by the
// load state machine: POSTED -> OPEN_FOR_BIDS -> BOOKED, with CANCELLED
// reachable from POSTED or OPEN_FOR_BIDS only. A BOOKED load reverts to
// OPEN_FOR_BIDS when a booking cancellation frees allocation.
func (s LoadStatus) CanTransitionTo(next LoadStatus) bool {
	switch s {
	case LoadPosted:
		return next == LoadOpenForBids || next == LoadCancelled
	case LoadOpenForBids:
		return next == LoadBooked || next == LoadCancelled
	case LoadBooked:
		return next == LoadOpenForBids
	default:
		return false
	}
}

// Load is a shipment request needing RequiredTrucks trucks of TruckType.
// Version guards every status write; a stale write surfaces as a conflict
// instead of silently overwriting.
type Load struct {
	ID             string     `json:"id,omitempty" bson:"_id,omitempty" validate:"omitempty,uuid"`
	ShipperID      string     `json:"shipper_id" bson:"shipper_id" validate:"required,min=1,max=64"`
	LoadingCity    string     `json:"loading_city" bson:"loading_city" validate:"required,min=2,max=100"`
	UnloadingCity  string     `json:"unloading_city" bson:"unloading_city" validate:"required,min=2,max=100"`
	LoadingDate    time.Time  `json:"loading_date" bson:"loading_date" validate:"required"`
	ProductType    string     `json:"product_type" bson:"product_type" validate:"required,min=2,max=100"`
	Weight         float64    `json:"weight" bson:"weight" validate:"required,gt=0"`
	WeightUnit     string     `json:"weight_unit" bson:"weight_unit" validate:"required,oneof=KG TON"`
	TruckType      string     `json:"truck_type" bson:"truck_type" validate:"required,min=2,max=50"`
	RequiredTrucks int        `json:"required_trucks" bson:"required_trucks" validate:"required,min=1,max=1000"`
	Status         LoadStatus `json:"status" bson:"status" validate:"omitempty,oneof=POSTED OPEN_FOR_BIDS BOOKED CANCELLED"`
	PostedAt       time.Time  `json:"posted_at" bson:"posted_at" validate:"omitempty"`
	Version        int64      `json:"version" bson:"version"`

	// RemainingTrucks is derived from bookings, never stored.
	RemainingTrucks int `json:"remaining_trucks" bson:"-"`
}
