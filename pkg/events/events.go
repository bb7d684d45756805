// Package events defines the domain events published after state changes
// commit, and the Publisher abstraction the services emit them through.
// Publishing is best-effort: a broker failure is logged, never surfaced to
// the API caller.
package events

import (
	"context"
	"time"
)

const (
	TopicLoads    = "loadboard.loads"
	TopicBids     = "loadboard.bids"
	TopicBookings = "loadboard.bookings"
)

const (
	TypeLoadCancelled    = "load.cancelled"
	TypeBidSubmitted     = "bid.submitted"
	TypeBookingConfirmed = "booking.confirmed"
	TypeBookingCancelled = "booking.cancelled"
)

type LoadCancelled struct {
	LoadID      string    `json:"loadId"`
	ShipperID   string    `json:"shipperId"`
	CancelledAt time.Time `json:"cancelledAt"`
}

type BidSubmitted struct {
	BidID         string    `json:"bidId"`
	LoadID        string    `json:"loadId"`
	TransporterID string    `json:"transporterId"`
	ProposedRate  float64   `json:"proposedRate"`
	TrucksOffered int       `json:"trucksOffered"`
	SubmittedAt   time.Time `json:"submittedAt"`
}

type BookingConfirmed struct {
	BookingID       string    `json:"bookingId"`
	LoadID          string    `json:"loadId"`
	BidID           string    `json:"bidId"`
	TransporterID   string    `json:"transporterId"`
	AllocatedTrucks int       `json:"allocatedTrucks"`
	FinalRate       float64   `json:"finalRate"`
	BookedAt        time.Time `json:"bookedAt"`
}

type BookingCancelled struct {
	BookingID       string    `json:"bookingId"`
	LoadID          string    `json:"loadId"`
	TransporterID   string    `json:"transporterId"`
	AllocatedTrucks int       `json:"allocatedTrucks"`
	CancelledAt     time.Time `json:"cancelledAt"`
}

// Publisher emits a domain event keyed for per-aggregate ordering.
type Publisher interface {
	Publish(ctx context.Context, topic, eventType, key string, payload interface{}) error
	Close() error
}
