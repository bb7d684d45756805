package model

import (
	"time"
)

// Transporter is a carrier with a rating used by bid ranking. Truck
// inventory lives in separate TruckCapacity documents so that capacity
// writes contend on the (transporter, truck type) key alone.
type Transporter struct {
	ID          string    `json:"id,omitempty" bson:"_id,omitempty" validate:"omitempty,uuid"`
	CompanyName string    `json:"company_name" bson:"company_name" validate:"required,min=2,max=150"`
	Rating      float64   `json:"rating" bson:"rating" validate:"required,min=0,max=5"`
	CreatedAt   time.Time `json:"created_at" bson:"created_at" validate:"omitempty"`

	// AvailableTrucks is populated on reads for response shaping.
	AvailableTrucks []TruckCapacity `json:"available_trucks,omitempty" bson:"-" validate:"omitempty,dive"`
}

// TruckCapacity is a transporter's free inventory for one truck type —
// the single most contended document in the system. Count never goes
// negative; every count write bumps Version.
type TruckCapacity struct {
	ID            string `json:"id,omitempty" bson:"_id,omitempty"`
	TransporterID string `json:"transporter_id,omitempty" bson:"transporter_id"`
	TruckType     string `json:"truck_type" bson:"truck_type" validate:"required,min=2,max=50"`
	Count         int    `json:"count" bson:"count" validate:"min=0"`
	Version       int64  `json:"version,omitempty" bson:"version"`
}
