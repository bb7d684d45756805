package model

import (
	"time"
)

// BookingStatus is the closed set of booking lifecycle states. CANCELLED
// restores capacity but a cancelled booking is never re-confirmed;
// COMPLETED keeps capacity consumed.
type BookingStatus string

const (
	BookingConfirmed BookingStatus = "CONFIRMED"
	BookingCancelled BookingStatus = "CANCELLED"
	BookingCompleted BookingStatus = "COMPLETED"
)

func (s BookingStatus) CanTransitionTo(next BookingStatus) bool {
	return s == BookingConfirmed && (next == BookingCancelled || next == BookingCompleted)
}

// Booking is the durable record of an accepted bid. AllocatedTrucks is
// deducted from the transporter's capacity exactly once at creation and
// restored exactly once at cancellation.
type Booking struct {
	ID              string        `json:"id,omitempty" bson:"_id,omitempty" validate:"omitempty,uuid"`
	LoadID          string        `json:"load_id" bson:"load_id" validate:"required,uuid"`
	BidID           string        `json:"bid_id" bson:"bid_id" validate:"required,uuid"`
	TransporterID   string        `json:"transporter_id" bson:"transporter_id" validate:"required,uuid"`
	AllocatedTrucks int           `json:"allocated_trucks" bson:"allocated_trucks" validate:"required,min=1"`
	FinalRate       float64       `json:"final_rate" bson:"final_rate" validate:"required,gt=0"`
	Status          BookingStatus `json:"status" bson:"status" validate:"omitempty,oneof=CONFIRMED CANCELLED COMPLETED"`
	BookedAt        time.Time     `json:"booked_at" bson:"booked_at" validate:"omitempty"`
}

// BookingFilter narrows booking listings. Empty fields match everything.
type BookingFilter struct {
	LoadID        string
	TransporterID string
	Status        BookingStatus
}

// AllocationLock is a fail-fast advisory lock serializing booking creation
// and cancellation per load. The unique _id makes concurrent acquisition a
// duplicate-key error rather than a wait.
type AllocationLock struct {
	ID        string    `json:"id" bson:"_id"`
	ExpiresAt time.Time `json:"expires_at" bson:"expires_at"`
	CreatedAt time.Time `json:"created_at" bson:"created_at"`
}
