package service

import (
	"sort"

	"loadboard/pkg/model"
)

const (
	rateWeight   = 0.7
	ratingWeight = 0.3
	maxRating    = 5.0
)

// Score computes a bid's ranking score from its proposed rate and the
// transporter's rating. Lower rates and higher ratings score higher; the
// rate is guaranteed positive by validation.
func Score(proposedRate, transporterRating float64) float64 {
	return (1/proposedRate)*rateWeight + (transporterRating/maxRating)*ratingWeight
}

// Rank orders bids by descending score. The sort is stable, so bids with
// equal scores keep their submission order. Each bid's Score field is
// filled in place; transporters missing from ratings count as rating 0.
func Rank(bids []*model.Bid, ratings map[string]float64) []*model.Bid {
	for _, bid := range bids {
		bid.Score = Score(bid.ProposedRate, ratings[bid.TransporterID])
	}

	sort.SliceStable(bids, func(i, j int) bool {
		return bids[i].Score > bids[j].Score
	})

	return bids
}
