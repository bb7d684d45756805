package service

import (
	"context"
	"errors"
	"sync"

	transportererrors "loadboard/internal/transporters/errors"
	"loadboard/internal/transporters/repository"
	"loadboard/internal/transporters/validator"
	"loadboard/pkg/config"
	apperrors "loadboard/pkg/errors"
	"loadboard/pkg/model"
	"loadboard/pkg/sanitizer"
)

// TransporterService is the capacity ledger: it owns transporter profiles
// and their per-truck-type inventory. Reserve and Release are called by the
// booking flow with a session context so they commit with the booking.
type TransporterService interface {
	Create(ctx context.Context, transporter *model.Transporter) error
	GetByID(ctx context.Context, id string) (*model.Transporter, error)
	GetByIDs(ctx context.Context, ids []string) (map[string]*model.Transporter, error)
	GetAll(ctx context.Context, limit int, offset int64) ([]*model.Transporter, int64, error)
	UpdateTrucks(ctx context.Context, transporterID, truckType string, count int) (*model.TruckCapacity, error)
	AvailableCapacity(ctx context.Context, transporterID, truckType string) (int, error)
	Reserve(ctx context.Context, transporterID, truckType string, amount int) error
	Release(ctx context.Context, transporterID, truckType string, amount int) error
}

type transporterService struct {
	repo         repository.TransporterRepository
	capacityRepo repository.CapacityRepository
	validator    *validator.TransporterValidator
	cfg          *config.Config
}

func NewTransporterService(
	repo repository.TransporterRepository,
	capacityRepo repository.CapacityRepository,
	validator *validator.TransporterValidator,
	cfg *config.Config,
) TransporterService {
	return &transporterService{
		repo:         repo,
		capacityRepo: capacityRepo,
		validator:    validator,
		cfg:          cfg,
	}
}

func (s *transporterService) Create(ctx context.Context, transporter *model.Transporter) error {
	transporter.CompanyName = sanitizer.NormalizeCompanyName(transporter.CompanyName)

	if err := s.validator.Validate(transporter); err != nil {
		s.cfg.Log.Warn("Transporter validation failed", "error", err)
		return apperrors.Validation("Transporter validation failed", map[string]any{"error": err.Error()})
	}

	if err := s.repo.Create(ctx, transporter); err != nil {
		s.cfg.Log.Error("Failed to create transporter", "error", err)
		return apperrors.Internal("Failed to create transporter", err)
	}

	// Initial inventory may be declared inline at registration.
	for i := range transporter.AvailableTrucks {
		capacity := &transporter.AvailableTrucks[i]
		capacity.TransporterID = transporter.ID
		capacity.TruckType = sanitizer.NormalizeTruckType(capacity.TruckType)

		if err := s.validator.ValidateCapacity(capacity); err != nil {
			return apperrors.Validation("Truck capacity validation failed", map[string]any{"error": err.Error()})
		}

		updated, err := s.capacityRepo.Upsert(ctx, capacity)
		if err != nil {
			s.cfg.Log.Error("Failed to declare capacity",
				"transporter_id", transporter.ID,
				"truck_type", capacity.TruckType,
				"error", err,
			)
			return apperrors.Internal("Failed to declare truck capacity", err)
		}
		*capacity = *updated
	}

	s.cfg.Log.Info("Transporter created successfully",
		"id", transporter.ID,
		"company_name", transporter.CompanyName,
		"truck_types", len(transporter.AvailableTrucks),
	)
	return nil
}

func (s *transporterService) GetByID(ctx context.Context, id string) (*model.Transporter, error) {
	if id == "" {
		return nil, apperrors.InvalidInput("Transporter ID cannot be empty")
	}

	transporter, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, transportererrors.ErrNotFound) {
			return nil, apperrors.NotFoundWithID("Transporter", id)
		}
		return nil, apperrors.Internal("Failed to retrieve transporter", err)
	}

	capacities, err := s.capacityRepo.FindByTransporter(ctx, id)
	if err != nil {
		return nil, apperrors.Internal("Failed to retrieve truck capacities", err)
	}
	transporter.AvailableTrucks = capacities

	return transporter, nil
}

func (s *transporterService) GetByIDs(ctx context.Context, ids []string) (map[string]*model.Transporter, error) {
	if len(ids) == 0 {
		return map[string]*model.Transporter{}, nil
	}

	transporters, err := s.repo.FindByIDs(ctx, ids)
	if err != nil {
		return nil, apperrors.Internal("Failed to retrieve transporters", err)
	}

	byID := make(map[string]*model.Transporter, len(transporters))
	for _, t := range transporters {
		byID[t.ID] = t
	}
	return byID, nil
}

func (s *transporterService) GetAll(ctx context.Context, limit int, offset int64) ([]*model.Transporter, int64, error) {
	var count int64
	var transporters []*model.Transporter
	var errCount, errFind error
	var wg sync.WaitGroup
	wg.Add(2)

	go func() {
		defer wg.Done()
		count, errCount = s.repo.Count(ctx)
		if errCount != nil {
			s.cfg.Log.Error("Failed to count transporters", "error", errCount)
			errCount = apperrors.Internal("Failed to count transporters", errCount)
		}
	}()

	go func() {
		defer wg.Done()
		transporters, errFind = s.repo.FindAll(ctx, limit, offset)
		if errFind != nil {
			s.cfg.Log.Error("Failed to list transporters", "error", errFind)
			errFind = apperrors.Internal("Failed to retrieve transporters", errFind)
		}
	}()

	wg.Wait()
	if errCount != nil {
		return nil, 0, errCount
	}
	if errFind != nil {
		return nil, 0, errFind
	}

	return transporters, count, nil
}

// UpdateTrucks replaces the declared free count for one truck type. It is
// the transporter's own inventory adjustment, distinct from Reserve/Release
// which the booking flow drives.
func (s *transporterService) UpdateTrucks(ctx context.Context, transporterID, truckType string, count int) (*model.TruckCapacity, error) {
	if _, err := s.repo.FindByID(ctx, transporterID); err != nil {
		if errors.Is(err, transportererrors.ErrNotFound) {
			return nil, apperrors.NotFoundWithID("Transporter", transporterID)
		}
		return nil, apperrors.Internal("Failed to retrieve transporter", err)
	}

	capacity := &model.TruckCapacity{
		TransporterID: transporterID,
		TruckType:     sanitizer.NormalizeTruckType(truckType),
		Count:         count,
	}

	if err := s.validator.ValidateCapacity(capacity); err != nil {
		s.cfg.Log.Warn("Capacity validation failed", "transporter_id", transporterID, "error", err)
		return nil, apperrors.Validation("Truck capacity validation failed", map[string]any{"error": err.Error()})
	}

	updated, err := s.capacityRepo.Upsert(ctx, capacity)
	if err != nil {
		s.cfg.Log.Error("Failed to update truck capacity",
			"transporter_id", transporterID,
			"truck_type", capacity.TruckType,
			"error", err,
		)
		return nil, apperrors.Internal("Failed to update truck capacity", err)
	}

	s.cfg.Log.Info("Truck capacity updated",
		"transporter_id", transporterID,
		"truck_type", updated.TruckType,
		"count", updated.Count,
	)
	return updated, nil
}

// AvailableCapacity returns the current free count, treating a missing row
// as zero. Callers use it for advisory checks only; Reserve is the
// authoritative gate.
func (s *transporterService) AvailableCapacity(ctx context.Context, transporterID, truckType string) (int, error) {
	capacity, err := s.capacityRepo.FindByKey(ctx, transporterID, sanitizer.NormalizeTruckType(truckType))
	if err != nil {
		if errors.Is(err, transportererrors.ErrCapacityNotFound) {
			return 0, nil
		}
		return 0, apperrors.Internal("Failed to retrieve truck capacity", err)
	}
	return capacity.Count, nil
}

func (s *transporterService) Reserve(ctx context.Context, transporterID, truckType string, amount int) error {
	if amount <= 0 {
		return apperrors.InvalidInput("Reserve amount must be positive")
	}

	available, err := s.capacityRepo.Reserve(ctx, transporterID, sanitizer.NormalizeTruckType(truckType), amount)
	if err != nil {
		if errors.Is(err, transportererrors.ErrCapacityNotFound) {
			return apperrors.NotFound("Truck capacity").WithDetails(map[string]any{
				"transporter_id": transporterID,
				"truck_type":     truckType,
			})
		}
		if errors.Is(err, transportererrors.ErrInsufficientCapacity) {
			return apperrors.InsufficientCapacity(amount, available)
		}
		return apperrors.Internal("Failed to reserve truck capacity", err)
	}

	s.cfg.Log.Debug("Capacity reserved",
		"transporter_id", transporterID,
		"truck_type", truckType,
		"amount", amount,
	)
	return nil
}

func (s *transporterService) Release(ctx context.Context, transporterID, truckType string, amount int) error {
	if amount <= 0 {
		return apperrors.InvalidInput("Release amount must be positive")
	}

	if err := s.capacityRepo.Release(ctx, transporterID, sanitizer.NormalizeTruckType(truckType), amount); err != nil {
		return apperrors.Internal("Failed to release truck capacity", err)
	}

	s.cfg.Log.Debug("Capacity released",
		"transporter_id", transporterID,
		"truck_type", truckType,
		"amount", amount,
	)
	return nil
}
