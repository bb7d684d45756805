package model

import (
	"time"
)

// BidStatus is the closed set of bid lifecycle states. A bid leaves PENDING
// exactly once; ACCEPTED and REJECTED are terminal.
type BidStatus string

const (
	BidPending  BidStatus = "PENDING"
	BidAccepted BidStatus = "ACCEPTED"
	BidRejected BidStatus = "REJECTED"
)

func (s BidStatus) CanTransitionTo(next BidStatus) bool {
	return s == BidPending && (next == BidAccepted || next == BidRejected)
}

// Bid is a transporter's offer of rate and truck count against a load.
// It references the load and transporter by id only.
type Bid struct {
	ID            string    `json:"id,omitempty" bson:"_id,omitempty" validate:"omitempty,uuid"`
	LoadID        string    `json:"load_id" bson:"load_id" validate:"required,uuid"`
	TransporterID string    `json:"transporter_id" bson:"transporter_id" validate:"required,uuid"`
	ProposedRate  float64   `json:"proposed_rate" bson:"proposed_rate" validate:"required,gt=0"`
	TrucksOffered int       `json:"trucks_offered" bson:"trucks_offered" validate:"required,min=1,max=1000"`
	Status        BidStatus `json:"status" bson:"status" validate:"omitempty,oneof=PENDING ACCEPTED REJECTED"`
	SubmittedAt   time.Time `json:"submitted_at" bson:"submitted_at" validate:"omitempty"`

	// Score is filled by the ranking endpoint only.
	Score float64 `json:"score,omitempty" bson:"-"`
}

// BidFilter narrows bid listings. Nil/empty fields match everything.
type BidFilter struct {
	LoadID        string
	TransporterID string
	Status        BidStatus
}
