package integration

import (
	"fmt"
	"net/http"
	"os"
	"testing"
	"time"

	"loadboard/test/integration/testutil"
)

// End-to-end walk through the brokering lifecycle against a running server:
// post a load, bid on it, book it truck by truck, then cancel a booking and
// watch the load reopen.
//
// Requires TEST_SERVER_URL to point at a loadboard instance with a clean
// database; skipped otherwise.

func newSuite(t *testing.T) *testutil.Client {
	t.Helper()

	serverURL := os.Getenv("TEST_SERVER_URL")
	if serverURL == "" {
		t.Skip("TEST_SERVER_URL not set, skipping integration tests")
	}

	client := testutil.NewClient(serverURL)
	client.WaitForHealthy(t, 30*time.Second)
	return client
}

type entity struct {
	ID              string  `json:"id"`
	Status          string  `json:"status"`
	RemainingTrucks int     `json:"remaining_trucks"`
	AllocatedTrucks int     `json:"allocated_trucks"`
	Count           int     `json:"count"`
	Score           float64 `json:"score"`
}

func createTransporter(t *testing.T, client *testutil.Client, name string, rating float64, trucks int) string {
	t.Helper()

	resp := client.POST(t, "/api/v1/transporters", map[string]any{
		"company_name": name,
		"rating":       rating,
	})
	testutil.AssertStatusCode(t, resp, http.StatusCreated)

	var transporter entity
	resp.DecodeData(t, &transporter)

	resp = client.PUT(t, "/api/v1/transporters/id/"+transporter.ID+"/capacity", map[string]any{
		"truck_type": "FLATBED",
		"count":      trucks,
	})
	testutil.AssertStatusCode(t, resp, http.StatusOK)

	return transporter.ID
}

func createLoad(t *testing.T, client *testutil.Client, requiredTrucks int) string {
	t.Helper()

	resp := client.POST(t, "/api/v1/loads", map[string]any{
		"shipper_id":      "shipper-integration",
		"loading_city":    "Nagpur",
		"unloading_city":  "Pune",
		"loading_date":    time.Now().Add(48 * time.Hour).Format(time.RFC3339),
		"product_type":    "Steel Coils",
		"weight":          24.0,
		"weight_unit":     "TON",
		"truck_type":      "FLATBED",
		"required_trucks": requiredTrucks,
	})
	testutil.AssertStatusCode(t, resp, http.StatusCreated)

	var load entity
	resp.DecodeData(t, &load)
	return load.ID
}

func submitBid(t *testing.T, client *testutil.Client, loadID, transporterID string, rate float64, trucks int) string {
	t.Helper()

	resp := client.POST(t, "/api/v1/bids", map[string]any{
		"load_id":        loadID,
		"transporter_id": transporterID,
		"proposed_rate":  rate,
		"trucks_offered": trucks,
	})
	testutil.AssertStatusCode(t, resp, http.StatusCreated)

	var bid entity
	resp.DecodeData(t, &bid)
	return bid.ID
}

func getLoad(t *testing.T, client *testutil.Client, loadID string) entity {
	t.Helper()

	resp := client.GET(t, "/api/v1/loads/id/"+loadID)
	testutil.AssertStatusCode(t, resp, http.StatusOK)

	var load entity
	resp.DecodeData(t, &load)
	return load
}

func getCapacity(t *testing.T, client *testutil.Client, transporterID string) int {
	t.Helper()

	resp := client.GET(t, "/api/v1/transporters/id/"+transporterID)
	testutil.AssertStatusCode(t, resp, http.StatusOK)

	var transporter struct {
		AvailableTrucks []entity `json:"available_trucks"`
	}
	resp.DecodeData(t, &transporter)

	total := 0
	for _, capacity := range transporter.AvailableTrucks {
		total += capacity.Count
	}
	return total
}

func TestLoadLifecycle(t *testing.T) {
	client := newSuite(t)

	transporterID := createTransporter(t, client, "Lifecycle Logistics", 4.5, 5)
	loadID := createLoad(t, client, 3)

	if load := getLoad(t, client, loadID); load.Status != "POSTED" {
		t.Fatalf("expected POSTED, got %s", load.Status)
	}

	// First bid moves the load to OPEN_FOR_BIDS.
	firstBid := submitBid(t, client, loadID, transporterID, 50000, 2)
	if load := getLoad(t, client, loadID); load.Status != "OPEN_FOR_BIDS" {
		t.Fatalf("expected OPEN_FOR_BIDS after first bid, got %s", load.Status)
	}

	// Booking 2 of 3 trucks leaves the load open with 1 remaining.
	resp := client.POST(t, "/api/v1/bookings", map[string]any{"bid_id": firstBid})
	testutil.AssertStatusCode(t, resp, http.StatusCreated)

	var firstBooking entity
	resp.DecodeData(t, &firstBooking)
	if firstBooking.AllocatedTrucks != 2 {
		t.Fatalf("expected 2 allocated trucks, got %d", firstBooking.AllocatedTrucks)
	}

	load := getLoad(t, client, loadID)
	if load.Status != "OPEN_FOR_BIDS" || load.RemainingTrucks != 1 {
		t.Fatalf("expected OPEN_FOR_BIDS with 1 remaining, got %s with %d", load.Status, load.RemainingTrucks)
	}
	if capacity := getCapacity(t, client, transporterID); capacity != 3 {
		t.Fatalf("expected 3 trucks left in fleet, got %d", capacity)
	}

	// Booking the last truck fills the load.
	secondBid := submitBid(t, client, loadID, transporterID, 48000, 1)
	resp = client.POST(t, "/api/v1/bookings", map[string]any{"bid_id": secondBid})
	testutil.AssertStatusCode(t, resp, http.StatusCreated)

	load = getLoad(t, client, loadID)
	if load.Status != "BOOKED" || load.RemainingTrucks != 0 {
		t.Fatalf("expected BOOKED with 0 remaining, got %s with %d", load.Status, load.RemainingTrucks)
	}

	// A fully booked load takes no further bids.
	resp = client.POST(t, "/api/v1/bids", map[string]any{
		"load_id":        loadID,
		"transporter_id": transporterID,
		"proposed_rate":  45000,
		"trucks_offered": 1,
	})
	testutil.AssertStatusCode(t, resp, http.StatusConflict)

	// Cancelling the 2-truck booking reopens the load and restores capacity.
	resp = client.POST(t, fmt.Sprintf("/api/v1/bookings/id/%s/cancel", firstBooking.ID), nil)
	testutil.AssertStatusCode(t, resp, http.StatusOK)

	load = getLoad(t, client, loadID)
	if load.Status != "OPEN_FOR_BIDS" || load.RemainingTrucks != 2 {
		t.Fatalf("expected OPEN_FOR_BIDS with 2 remaining after cancellation, got %s with %d", load.Status, load.RemainingTrucks)
	}
	if capacity := getCapacity(t, client, transporterID); capacity != 4 {
		t.Fatalf("expected 4 trucks after restoration, got %d", capacity)
	}
}

func TestBidRanking(t *testing.T) {
	client := newSuite(t)

	cheapCarrier := createTransporter(t, client, "Cheap Carrier", 3.0, 5)
	ratedCarrier := createTransporter(t, client, "Rated Carrier", 4.5, 5)
	loadID := createLoad(t, client, 3)

	submitBid(t, client, loadID, cheapCarrier, 40000, 2)
	pricierBid := submitBid(t, client, loadID, ratedCarrier, 50000, 2)

	resp := client.GET(t, fmt.Sprintf("/api/v1/loads/id/%s/bids/ranked", loadID))
	testutil.AssertStatusCode(t, resp, http.StatusOK)

	var ranked []entity
	resp.DecodeData(t, &ranked)
	if len(ranked) != 2 {
		t.Fatalf("expected 2 ranked bids, got %d", len(ranked))
	}
	if ranked[0].ID != pricierBid {
		t.Fatalf("expected the better-rated transporter's bid first, got %s", ranked[0].ID)
	}
	if ranked[0].Score <= ranked[1].Score {
		t.Fatalf("expected descending scores, got %v then %v", ranked[0].Score, ranked[1].Score)
	}
}

func TestCancelLoadRejectsPendingBids(t *testing.T) {
	client := newSuite(t)

	transporterID := createTransporter(t, client, "Standby Transport", 4.0, 5)
	loadID := createLoad(t, client, 2)
	bidID := submitBid(t, client, loadID, transporterID, 52000, 1)

	resp := client.POST(t, fmt.Sprintf("/api/v1/loads/id/%s/cancel", loadID), nil)
	testutil.AssertStatusCode(t, resp, http.StatusOK)

	load := getLoad(t, client, loadID)
	if load.Status != "CANCELLED" {
		t.Fatalf("expected CANCELLED, got %s", load.Status)
	}

	resp = client.GET(t, "/api/v1/bids/id/"+bidID)
	testutil.AssertStatusCode(t, resp, http.StatusOK)

	var bid entity
	resp.DecodeData(t, &bid)
	if bid.Status != "REJECTED" {
		t.Fatalf("expected pending bid to be REJECTED, got %s", bid.Status)
	}

	// Booking a rejected bid fails.
	resp = client.POST(t, "/api/v1/bookings", map[string]any{"bid_id": bidID})
	testutil.AssertStatusCode(t, resp, http.StatusConflict)
	if body := resp.DecodeError(t); body.Retryable {
		t.Fatal("booking a rejected bid must not be retryable")
	}
}
