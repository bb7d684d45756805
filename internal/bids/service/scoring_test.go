package service

import (
	"math"
	"testing"

	"loadboard/pkg/model"
)

func TestScore(t *testing.T) {
	tests := []struct {
		name   string
		rate   float64
		rating float64
		want   float64
	}{
		{"rate 50000 rating 4.5", 50000, 4.5, (1.0/50000)*0.7 + (4.5/5)*0.3},
		{"rate 40000 rating 3.0", 40000, 3.0, (1.0/40000)*0.7 + (3.0/5)*0.3},
		{"zero rating still scores on rate", 1000, 0, (1.0 / 1000) * 0.7},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Score(tt.rate, tt.rating)
			if math.Abs(got-tt.want) > 1e-9 {
				t.Errorf("Score(%v, %v) = %v, want %v", tt.rate, tt.rating, got, tt.want)
			}
		})
	}
}

func TestScore_KnownValue(t *testing.T) {
	// (1/50000)*0.7 + (4.5/5)*0.3 = 0.000014 + 0.27
	got := Score(50000, 4.5)
	if math.Abs(got-0.270014) > 1e-6 {
		t.Errorf("Score(50000, 4.5) = %v, want 0.270014", got)
	}
}

func TestRank_OrdersByScoreNotRate(t *testing.T) {
	// The cheaper bid loses: its transporter's low rating outweighs the
	// rate advantage under the 0.7/0.3 weighting.
	bids := []*model.Bid{
		{ID: "bid-cheap", TransporterID: "t-low", ProposedRate: 40000},
		{ID: "bid-pricey", TransporterID: "t-high", ProposedRate: 50000},
	}
	ratings := map[string]float64{
		"t-low":  3.0,
		"t-high": 4.5,
	}

	ranked := Rank(bids, ratings)

	if ranked[0].ID != "bid-pricey" {
		t.Errorf("expected bid-pricey first, got %s", ranked[0].ID)
	}
	if ranked[0].Score <= ranked[1].Score {
		t.Errorf("expected descending scores, got %v then %v", ranked[0].Score, ranked[1].Score)
	}
}

func TestRank_StableOnEqualScores(t *testing.T) {
	bids := []*model.Bid{
		{ID: "bid-1", TransporterID: "t-1", ProposedRate: 30000},
		{ID: "bid-2", TransporterID: "t-2", ProposedRate: 30000},
		{ID: "bid-3", TransporterID: "t-3", ProposedRate: 30000},
	}
	ratings := map[string]float64{"t-1": 4.0, "t-2": 4.0, "t-3": 4.0}

	ranked := Rank(bids, ratings)

	for i, want := range []string{"bid-1", "bid-2", "bid-3"} {
		if ranked[i].ID != want {
			t.Errorf("position %d: expected %s (submission order), got %s", i, want, ranked[i].ID)
		}
	}
}

func TestRank_MissingRatingCountsAsZero(t *testing.T) {
	bids := []*model.Bid{
		{ID: "bid-unrated", TransporterID: "t-unknown", ProposedRate: 30000},
		{ID: "bid-rated", TransporterID: "t-known", ProposedRate: 30000},
	}
	ratings := map[string]float64{"t-known": 2.0}

	ranked := Rank(bids, ratings)

	if ranked[0].ID != "bid-rated" {
		t.Errorf("expected rated bid first, got %s", ranked[0].ID)
	}
}
