package service

import (
	"context"
	"testing"
	"time"

	loaderrors "loadboard/internal/loads/errors"
	"loadboard/internal/loads/validator"
	"loadboard/pkg/config"
	mongotx "loadboard/pkg/db/mongo"
	apperrors "loadboard/pkg/errors"
	"loadboard/pkg/events"
	"loadboard/pkg/logger"
	"loadboard/pkg/model"
)

// ────────────────────────────────────────────────
// Mocks
// ────────────────────────────────────────────────

type mockLoadRepository struct {
	createFunc       func(ctx context.Context, load *model.Load) error
	findByIDFunc     func(ctx context.Context, id string) (*model.Load, error)
	updateStatusFunc func(ctx context.Context, id string, expectedVersion int64, status model.LoadStatus) error
}

func (m *mockLoadRepository) Create(ctx context.Context, load *model.Load) error {
	if m.createFunc != nil {
		return m.createFunc(ctx, load)
	}
	load.ID = "load-1"
	return nil
}

func (m *mockLoadRepository) FindByID(ctx context.Context, id string) (*model.Load, error) {
	if m.findByIDFunc != nil {
		return m.findByIDFunc(ctx, id)
	}
	return nil, loaderrors.ErrNotFound
}

func (m *mockLoadRepository) FindAll(ctx context.Context, shipperID string, status model.LoadStatus, limit int, offset int64) ([]*model.Load, error) {
	return []*model.Load{}, nil
}

func (m *mockLoadRepository) CountBy(ctx context.Context, shipperID string, status model.LoadStatus) (int64, error) {
	return 0, nil
}

func (m *mockLoadRepository) UpdateStatus(ctx context.Context, id string, expectedVersion int64, status model.LoadStatus) error {
	if m.updateStatusFunc != nil {
		return m.updateStatusFunc(ctx, id, expectedVersion, status)
	}
	return nil
}

func (m *mockLoadRepository) ExecuteTransaction(ctx context.Context, fn mongotx.TransactionFunc) error {
	return fn(nil)
}

type mockAllocations struct {
	sum func(ctx context.Context, loadID string) (int, error)
}

func (m *mockAllocations) SumAllocatedByLoad(ctx context.Context, loadID string) (int, error) {
	if m.sum != nil {
		return m.sum(ctx, loadID)
	}
	return 0, nil
}

type mockBidRejecter struct {
	rejected int64
}

func (m *mockBidRejecter) RejectPendingByLoad(ctx context.Context, loadID string) (int64, error) {
	return m.rejected, nil
}

func newTestLoadService(repo *mockLoadRepository, allocations *mockAllocations, bids *mockBidRejecter) LoadService {
	log := logger.New(logger.Config{
		Level:     "error",
		Format:    logger.JSON,
		AddSource: false,
		Service:   "test",
	})
	cfg := &config.Config{Log: log}
	return NewLoadService(repo, allocations, bids, validator.NewLoadValidator(log), events.NewNopPublisher(), cfg)
}

func validLoad() *model.Load {
	return &model.Load{
		ShipperID:      "shipper-1",
		LoadingCity:    "Mumbai",
		UnloadingCity:  "Delhi",
		LoadingDate:    time.Now().Add(48 * time.Hour),
		ProductType:    "Steel coils",
		Weight:         24.5,
		WeightUnit:     "TON",
		TruckType:      "FLATBED",
		RequiredTrucks: 3,
	}
}

// ────────────────────────────────────────────────
// Create
// ────────────────────────────────────────────────

func TestCreate_DefaultsToPosted(t *testing.T) {
	var created *model.Load
	repo := &mockLoadRepository{
		createFunc: func(ctx context.Context, load *model.Load) error {
			load.ID = "load-1"
			created = load
			return nil
		},
	}
	svc := newTestLoadService(repo, &mockAllocations{}, &mockBidRejecter{})

	load := validLoad()
	if err := svc.Create(context.Background(), load); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if created.Status != model.LoadPosted {
		t.Errorf("expected status POSTED, got %s", created.Status)
	}
	if load.RemainingTrucks != 3 {
		t.Errorf("expected remaining trucks 3, got %d", load.RemainingTrucks)
	}
}

func TestCreate_RejectsNonPostedStatus(t *testing.T) {
	svc := newTestLoadService(&mockLoadRepository{}, &mockAllocations{}, &mockBidRejecter{})

	load := validLoad()
	load.Status = model.LoadBooked

	err := svc.Create(context.Background(), load)
	if appErr := apperrors.AsAppError(err); appErr.Code != apperrors.CodeInvalidInput {
		t.Errorf("expected INVALID_INPUT, got %s", appErr.Code)
	}
}

func TestCreate_ValidationFailures(t *testing.T) {
	svc := newTestLoadService(&mockLoadRepository{}, &mockAllocations{}, &mockBidRejecter{})

	tests := []struct {
		name   string
		mutate func(l *model.Load)
	}{
		{"zero required trucks", func(l *model.Load) { l.RequiredTrucks = 0 }},
		{"bad weight unit", func(l *model.Load) { l.WeightUnit = "LBS" }},
		{"past loading date", func(l *model.Load) { l.LoadingDate = time.Now().Add(-time.Hour) }},
		{"missing loading city", func(l *model.Load) { l.LoadingCity = "" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			load := validLoad()
			tt.mutate(load)
			err := svc.Create(context.Background(), load)
			if err == nil {
				t.Fatal("expected validation error, got nil")
			}
			if appErr := apperrors.AsAppError(err); appErr.Code != apperrors.CodeValidation {
				t.Errorf("expected VALIDATION_ERROR, got %s", appErr.Code)
			}
		})
	}
}

// ────────────────────────────────────────────────
// MarkOpenIfPosted
// ────────────────────────────────────────────────

func TestMarkOpenIfPosted_TransitionsPostedLoad(t *testing.T) {
	var gotStatus model.LoadStatus
	repo := &mockLoadRepository{
		findByIDFunc: func(ctx context.Context, id string) (*model.Load, error) {
			return &model.Load{ID: id, Status: model.LoadPosted, Version: 0, RequiredTrucks: 3}, nil
		},
		updateStatusFunc: func(ctx context.Context, id string, expectedVersion int64, status model.LoadStatus) error {
			gotStatus = status
			return nil
		},
	}
	svc := newTestLoadService(repo, &mockAllocations{}, &mockBidRejecter{})

	if err := svc.MarkOpenIfPosted(context.Background(), "load-1"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if gotStatus != model.LoadOpenForBids {
		t.Errorf("expected transition to OPEN_FOR_BIDS, got %s", gotStatus)
	}
}

func TestMarkOpenIfPosted_NoOpWhenAlreadyOpen(t *testing.T) {
	repo := &mockLoadRepository{
		findByIDFunc: func(ctx context.Context, id string) (*model.Load, error) {
			return &model.Load{ID: id, Status: model.LoadOpenForBids, RequiredTrucks: 3}, nil
		},
		updateStatusFunc: func(ctx context.Context, id string, expectedVersion int64, status model.LoadStatus) error {
			t.Error("UpdateStatus must not be called for a non-POSTED load")
			return nil
		},
	}
	svc := newTestLoadService(repo, &mockAllocations{}, &mockBidRejecter{})

	if err := svc.MarkOpenIfPosted(context.Background(), "load-1"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestMarkOpenIfPosted_LostRaceToAnotherBid(t *testing.T) {
	calls := 0
	repo := &mockLoadRepository{
		findByIDFunc: func(ctx context.Context, id string) (*model.Load, error) {
			calls++
			if calls == 1 {
				return &model.Load{ID: id, Status: model.LoadPosted, Version: 0, RequiredTrucks: 3}, nil
			}
			// Re-read after the mismatch sees the other bid's transition.
			return &model.Load{ID: id, Status: model.LoadOpenForBids, Version: 1, RequiredTrucks: 3}, nil
		},
		updateStatusFunc: func(ctx context.Context, id string, expectedVersion int64, status model.LoadStatus) error {
			return loaderrors.ErrVersionMismatch
		},
	}
	svc := newTestLoadService(repo, &mockAllocations{}, &mockBidRejecter{})

	if err := svc.MarkOpenIfPosted(context.Background(), "load-1"); err != nil {
		t.Fatalf("losing the open race to another bid must be a no-op, got: %v", err)
	}
}

// ────────────────────────────────────────────────
// Allocate / Deallocate
// ────────────────────────────────────────────────

func TestAllocate_BooksWhenFullyAllocated(t *testing.T) {
	var gotStatus model.LoadStatus
	repo := &mockLoadRepository{
		findByIDFunc: func(ctx context.Context, id string) (*model.Load, error) {
			return &model.Load{ID: id, Status: model.LoadOpenForBids, Version: 2, RequiredTrucks: 3}, nil
		},
		updateStatusFunc: func(ctx context.Context, id string, expectedVersion int64, status model.LoadStatus) error {
			gotStatus = status
			return nil
		},
	}
	allocations := &mockAllocations{sum: func(ctx context.Context, loadID string) (int, error) { return 3, nil }}
	svc := newTestLoadService(repo, allocations, &mockBidRejecter{})

	if err := svc.Allocate(context.Background(), "load-1", 1); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if gotStatus != model.LoadBooked {
		t.Errorf("expected transition to BOOKED, got %s", gotStatus)
	}
}

func TestAllocate_PartialAllocationKeepsStatus(t *testing.T) {
	repo := &mockLoadRepository{
		findByIDFunc: func(ctx context.Context, id string) (*model.Load, error) {
			return &model.Load{ID: id, Status: model.LoadOpenForBids, RequiredTrucks: 3}, nil
		},
		updateStatusFunc: func(ctx context.Context, id string, expectedVersion int64, status model.LoadStatus) error {
			t.Error("UpdateStatus must not be called for a partial allocation")
			return nil
		},
	}
	allocations := &mockAllocations{sum: func(ctx context.Context, loadID string) (int, error) { return 2, nil }}
	svc := newTestLoadService(repo, allocations, &mockBidRejecter{})

	if err := svc.Allocate(context.Background(), "load-1", 2); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestAllocate_OversellFailsWithExceeded(t *testing.T) {
	repo := &mockLoadRepository{
		findByIDFunc: func(ctx context.Context, id string) (*model.Load, error) {
			return &model.Load{ID: id, Status: model.LoadOpenForBids, RequiredTrucks: 3}, nil
		},
	}
	// 2 already allocated before this attempt; the new 2 pushes the sum to 4.
	allocations := &mockAllocations{sum: func(ctx context.Context, loadID string) (int, error) { return 4, nil }}
	svc := newTestLoadService(repo, allocations, &mockBidRejecter{})

	err := svc.Allocate(context.Background(), "load-1", 2)
	appErr := apperrors.AsAppError(err)
	if appErr.Code != apperrors.CodeAllocationExceeded {
		t.Fatalf("expected ALLOCATION_EXCEEDED, got %s", appErr.Code)
	}
	if appErr.Details["required"] != 2 || appErr.Details["remaining"] != 1 {
		t.Errorf("expected required=2 remaining=1, got %v", appErr.Details)
	}
}

func TestAllocate_StaleVersionSurfacesConflict(t *testing.T) {
	repo := &mockLoadRepository{
		findByIDFunc: func(ctx context.Context, id string) (*model.Load, error) {
			return &model.Load{ID: id, Status: model.LoadOpenForBids, Version: 1, RequiredTrucks: 3}, nil
		},
		updateStatusFunc: func(ctx context.Context, id string, expectedVersion int64, status model.LoadStatus) error {
			return loaderrors.ErrVersionMismatch
		},
	}
	allocations := &mockAllocations{sum: func(ctx context.Context, loadID string) (int, error) { return 3, nil }}
	svc := newTestLoadService(repo, allocations, &mockBidRejecter{})

	err := svc.Allocate(context.Background(), "load-1", 3)
	if !apperrors.IsRetryable(err) {
		t.Fatal("stale version must surface a retryable conflict")
	}
	if appErr := apperrors.AsAppError(err); appErr.Code != apperrors.CodeConflict {
		t.Errorf("expected CONFLICT, got %s", appErr.Code)
	}
}

func TestDeallocate_RevertsBookedLoad(t *testing.T) {
	var gotStatus model.LoadStatus
	repo := &mockLoadRepository{
		findByIDFunc: func(ctx context.Context, id string) (*model.Load, error) {
			return &model.Load{ID: id, Status: model.LoadBooked, Version: 3, RequiredTrucks: 3}, nil
		},
		updateStatusFunc: func(ctx context.Context, id string, expectedVersion int64, status model.LoadStatus) error {
			gotStatus = status
			return nil
		},
	}
	// After the cancellation, only 1 of 3 trucks remains allocated.
	allocations := &mockAllocations{sum: func(ctx context.Context, loadID string) (int, error) { return 1, nil }}
	svc := newTestLoadService(repo, allocations, &mockBidRejecter{})

	if err := svc.Deallocate(context.Background(), "load-1", 2); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if gotStatus != model.LoadOpenForBids {
		t.Errorf("expected revert to OPEN_FOR_BIDS, got %s", gotStatus)
	}
}

func TestDeallocate_NonBookedLoadIsNoOp(t *testing.T) {
	repo := &mockLoadRepository{
		findByIDFunc: func(ctx context.Context, id string) (*model.Load, error) {
			return &model.Load{ID: id, Status: model.LoadOpenForBids, RequiredTrucks: 3}, nil
		},
		updateStatusFunc: func(ctx context.Context, id string, expectedVersion int64, status model.LoadStatus) error {
			t.Error("UpdateStatus must not be called for a non-BOOKED load")
			return nil
		},
	}
	svc := newTestLoadService(repo, &mockAllocations{}, &mockBidRejecter{})

	if err := svc.Deallocate(context.Background(), "load-1", 1); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

// ────────────────────────────────────────────────
// Cancel
// ────────────────────────────────────────────────

func TestCancel_RejectsPendingBids(t *testing.T) {
	var gotStatus model.LoadStatus
	repo := &mockLoadRepository{
		findByIDFunc: func(ctx context.Context, id string) (*model.Load, error) {
			return &model.Load{ID: id, ShipperID: "shipper-1", Status: model.LoadOpenForBids, Version: 1, RequiredTrucks: 3}, nil
		},
		updateStatusFunc: func(ctx context.Context, id string, expectedVersion int64, status model.LoadStatus) error {
			gotStatus = status
			return nil
		},
	}
	svc := newTestLoadService(repo, &mockAllocations{}, &mockBidRejecter{rejected: 2})

	if err := svc.Cancel(context.Background(), "load-1"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if gotStatus != model.LoadCancelled {
		t.Errorf("expected transition to CANCELLED, got %s", gotStatus)
	}
}

func TestCancel_InvalidFromStatus(t *testing.T) {
	tests := []struct {
		name   string
		status model.LoadStatus
	}{
		{"booked load must be cancelled via bookings", model.LoadBooked},
		{"already cancelled", model.LoadCancelled},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := &mockLoadRepository{
				findByIDFunc: func(ctx context.Context, id string) (*model.Load, error) {
					return &model.Load{ID: id, Status: tt.status, RequiredTrucks: 3}, nil
				},
			}
			svc := newTestLoadService(repo, &mockAllocations{}, &mockBidRejecter{})

			err := svc.Cancel(context.Background(), "load-1")
			appErr := apperrors.AsAppError(err)
			if appErr.Code != apperrors.CodeInvalidTransition {
				t.Errorf("expected INVALID_TRANSITION, got %s", appErr.Code)
			}
			if apperrors.IsRetryable(err) {
				t.Error("invalid transition must not be retryable")
			}
		})
	}
}

// ────────────────────────────────────────────────
// RemainingTrucks
// ────────────────────────────────────────────────

func TestRemainingTrucks_DerivedFromActiveBookings(t *testing.T) {
	repo := &mockLoadRepository{
		findByIDFunc: func(ctx context.Context, id string) (*model.Load, error) {
			return &model.Load{ID: id, Status: model.LoadOpenForBids, RequiredTrucks: 3}, nil
		},
	}
	allocations := &mockAllocations{sum: func(ctx context.Context, loadID string) (int, error) { return 2, nil }}
	svc := newTestLoadService(repo, allocations, &mockBidRejecter{})

	got, err := svc.RemainingTrucks(context.Background(), "load-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != 1 {
		t.Errorf("expected 1 remaining truck, got %d", got)
	}
}
