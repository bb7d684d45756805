package service

import (
	"context"
	"testing"

	transportererrors "loadboard/internal/transporters/errors"
	"loadboard/internal/transporters/validator"
	"loadboard/pkg/config"
	apperrors "loadboard/pkg/errors"
	"loadboard/pkg/logger"
	"loadboard/pkg/model"
)

// ────────────────────────────────────────────────
// Mock repositories for testing
// ────────────────────────────────────────────────

type mockTransporterRepository struct {
	createFunc   func(ctx context.Context, t *model.Transporter) error
	findByIDFunc func(ctx context.Context, id string) (*model.Transporter, error)
}

func (m *mockTransporterRepository) Create(ctx context.Context, t *model.Transporter) error {
	if m.createFunc != nil {
		return m.createFunc(ctx, t)
	}
	t.ID = "t-1"
	return nil
}

func (m *mockTransporterRepository) FindByID(ctx context.Context, id string) (*model.Transporter, error) {
	if m.findByIDFunc != nil {
		return m.findByIDFunc(ctx, id)
	}
	return &model.Transporter{ID: id, CompanyName: "Acme Freight", Rating: 4.0}, nil
}

func (m *mockTransporterRepository) FindByIDs(ctx context.Context, ids []string) ([]*model.Transporter, error) {
	return nil, nil
}

func (m *mockTransporterRepository) FindAll(ctx context.Context, limit int, offset int64) ([]*model.Transporter, error) {
	return []*model.Transporter{}, nil
}

func (m *mockTransporterRepository) Count(ctx context.Context) (int64, error) {
	return 0, nil
}

type mockCapacityRepository struct {
	upsertFunc    func(ctx context.Context, c *model.TruckCapacity) (*model.TruckCapacity, error)
	findByKeyFunc func(ctx context.Context, transporterID, truckType string) (*model.TruckCapacity, error)
	reserveFunc   func(ctx context.Context, transporterID, truckType string, amount int) (int, error)
	releaseFunc   func(ctx context.Context, transporterID, truckType string, amount int) error
}

func (m *mockCapacityRepository) Upsert(ctx context.Context, c *model.TruckCapacity) (*model.TruckCapacity, error) {
	if m.upsertFunc != nil {
		return m.upsertFunc(ctx, c)
	}
	out := *c
	out.Version = c.Version + 1
	return &out, nil
}

func (m *mockCapacityRepository) FindByKey(ctx context.Context, transporterID, truckType string) (*model.TruckCapacity, error) {
	if m.findByKeyFunc != nil {
		return m.findByKeyFunc(ctx, transporterID, truckType)
	}
	return nil, transportererrors.ErrCapacityNotFound
}

func (m *mockCapacityRepository) FindByTransporter(ctx context.Context, transporterID string) ([]model.TruckCapacity, error) {
	return []model.TruckCapacity{}, nil
}

func (m *mockCapacityRepository) Reserve(ctx context.Context, transporterID, truckType string, amount int) (int, error) {
	if m.reserveFunc != nil {
		return m.reserveFunc(ctx, transporterID, truckType, amount)
	}
	return amount, nil
}

func (m *mockCapacityRepository) Release(ctx context.Context, transporterID, truckType string, amount int) error {
	if m.releaseFunc != nil {
		return m.releaseFunc(ctx, transporterID, truckType, amount)
	}
	return nil
}

func newTestService(repo *mockTransporterRepository, capRepo *mockCapacityRepository) TransporterService {
	log := logger.New(logger.Config{
		Level:     "error",
		Format:    logger.JSON,
		AddSource: false,
		Service:   "test",
	})
	cfg := &config.Config{Log: log}
	return NewTransporterService(repo, capRepo, validator.NewTransporterValidator(log), cfg)
}

// ────────────────────────────────────────────────
// Tests
// ────────────────────────────────────────────────

func TestCreate_ValidationFails(t *testing.T) {
	svc := newTestService(&mockTransporterRepository{}, &mockCapacityRepository{})

	tests := []struct {
		name        string
		transporter *model.Transporter
	}{
		{"missing company name", &model.Transporter{Rating: 4.0}},
		{"rating above 5", &model.Transporter{CompanyName: "Acme Freight", Rating: 5.5}},
		{"company name too short", &model.Transporter{CompanyName: "A", Rating: 4.0}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := svc.Create(context.Background(), tt.transporter)
			if err == nil {
				t.Fatal("expected validation error, got nil")
			}
			appErr := apperrors.AsAppError(err)
			if appErr.Code != apperrors.CodeValidation {
				t.Errorf("expected code %s, got %s", apperrors.CodeValidation, appErr.Code)
			}
		})
	}
}

func TestCreate_NormalizesCompanyNameAndTruckTypes(t *testing.T) {
	var created *model.Transporter
	repo := &mockTransporterRepository{
		createFunc: func(ctx context.Context, tr *model.Transporter) error {
			tr.ID = "t-1"
			created = tr
			return nil
		},
	}
	var upserted []model.TruckCapacity
	capRepo := &mockCapacityRepository{
		upsertFunc: func(ctx context.Context, c *model.TruckCapacity) (*model.TruckCapacity, error) {
			upserted = append(upserted, *c)
			out := *c
			out.Version = 1
			return &out, nil
		},
	}
	svc := newTestService(repo, capRepo)

	transporter := &model.Transporter{
		CompanyName: "  Acme   Freight ",
		Rating:      4.5,
		AvailableTrucks: []model.TruckCapacity{
			{TruckType: " flatbed ", Count: 5},
		},
	}

	if err := svc.Create(context.Background(), transporter); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if created.CompanyName != "Acme Freight" {
		t.Errorf("expected normalized company name, got %q", created.CompanyName)
	}
	if len(upserted) != 1 {
		t.Fatalf("expected 1 capacity upsert, got %d", len(upserted))
	}
	if upserted[0].TruckType != "FLATBED" {
		t.Errorf("expected truck type FLATBED, got %q", upserted[0].TruckType)
	}
	if upserted[0].TransporterID != "t-1" {
		t.Errorf("expected capacity bound to transporter, got %q", upserted[0].TransporterID)
	}
}

func TestReserve_MapsRepositoryErrors(t *testing.T) {
	tests := []struct {
		name      string
		reserve   func(ctx context.Context, transporterID, truckType string, amount int) (int, error)
		wantCode  string
		retryable bool
	}{
		{
			name: "missing capacity row",
			reserve: func(ctx context.Context, transporterID, truckType string, amount int) (int, error) {
				return 0, transportererrors.ErrCapacityNotFound
			},
			wantCode: apperrors.CodeNotFound,
		},
		{
			name: "shortfall",
			reserve: func(ctx context.Context, transporterID, truckType string, amount int) (int, error) {
				return 2, transportererrors.ErrInsufficientCapacity
			},
			wantCode: apperrors.CodeInsufficientCapacity,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := newTestService(&mockTransporterRepository{}, &mockCapacityRepository{reserveFunc: tt.reserve})

			err := svc.Reserve(context.Background(), "t-1", "FLATBED", 3)
			if err == nil {
				t.Fatal("expected error, got nil")
			}
			appErr := apperrors.AsAppError(err)
			if appErr.Code != tt.wantCode {
				t.Errorf("expected code %s, got %s", tt.wantCode, appErr.Code)
			}
			if apperrors.IsRetryable(err) != tt.retryable {
				t.Errorf("expected retryable=%v", tt.retryable)
			}
		})
	}
}

func TestReserve_ShortfallCarriesCounts(t *testing.T) {
	capRepo := &mockCapacityRepository{
		reserveFunc: func(ctx context.Context, transporterID, truckType string, amount int) (int, error) {
			return 2, transportererrors.ErrInsufficientCapacity
		},
	}
	svc := newTestService(&mockTransporterRepository{}, capRepo)

	err := svc.Reserve(context.Background(), "t-1", "FLATBED", 3)
	appErr := apperrors.AsAppError(err)
	if appErr.Details["required"] != 3 {
		t.Errorf("expected required=3, got %v", appErr.Details["required"])
	}
	if appErr.Details["available"] != 2 {
		t.Errorf("expected available=2, got %v", appErr.Details["available"])
	}
}

func TestReserve_NonPositiveAmount(t *testing.T) {
	svc := newTestService(&mockTransporterRepository{}, &mockCapacityRepository{})

	for _, amount := range []int{0, -1} {
		err := svc.Reserve(context.Background(), "t-1", "FLATBED", amount)
		if appErr := apperrors.AsAppError(err); appErr.Code != apperrors.CodeInvalidInput {
			t.Errorf("amount %d: expected INVALID_INPUT, got %s", amount, appErr.Code)
		}
	}
}

func TestAvailableCapacity_MissingRowIsZero(t *testing.T) {
	svc := newTestService(&mockTransporterRepository{}, &mockCapacityRepository{})

	count, err := svc.AvailableCapacity(context.Background(), "t-1", "FLATBED")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if count != 0 {
		t.Errorf("expected 0 for missing capacity row, got %d", count)
	}
}

func TestUpdateTrucks_UnknownTransporter(t *testing.T) {
	repo := &mockTransporterRepository{
		findByIDFunc: func(ctx context.Context, id string) (*model.Transporter, error) {
			return nil, transportererrors.ErrNotFound
		},
	}
	svc := newTestService(repo, &mockCapacityRepository{})

	_, err := svc.UpdateTrucks(context.Background(), "missing", "FLATBED", 5)
	if appErr := apperrors.AsAppError(err); appErr.Code != apperrors.CodeNotFound {
		t.Errorf("expected NOT_FOUND, got %s", appErr.Code)
	}
}

func TestUpdateTrucks_RejectsNegativeCount(t *testing.T) {
	svc := newTestService(&mockTransporterRepository{}, &mockCapacityRepository{})

	_, err := svc.UpdateTrucks(context.Background(), "t-1", "FLATBED", -1)
	if appErr := apperrors.AsAppError(err); appErr.Code != apperrors.CodeValidation {
		t.Errorf("expected VALIDATION_ERROR, got %s", appErr.Code)
	}
}
