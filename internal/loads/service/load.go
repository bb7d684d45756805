package service

import (
	"context"
	"errors"
	"sync"
	"time"

	loaderrors "loadboard/internal/loads/errors"
	"loadboard/internal/loads/repository"
	"loadboard/internal/loads/validator"
	"loadboard/pkg/config"
	apperrors "loadboard/pkg/errors"
	"loadboard/pkg/events"
	"loadboard/pkg/model"
	"loadboard/pkg/sanitizer"

	"go.mongodb.org/mongo-driver/mongo"
)

// AllocationReader reports trucks allocated to a load by non-cancelled
// bookings. An absent sum (no bookings yet) reads as zero.
type AllocationReader interface {
	SumAllocatedByLoad(ctx context.Context, loadID string) (int, error)
}

// BidRejecter moves every PENDING bid on a load to REJECTED. Used by load
// cancellation so no stale bid survives a dead load.
type BidRejecter interface {
	RejectPendingByLoad(ctx context.Context, loadID string) (int64, error)
}

// LoadService is the allocation tracker: it owns the load state machine and
// derives remaining trucks from booking allocations. Allocate and
// Deallocate are invoked by the booking flow with a session context.
type LoadService interface {
	Create(ctx context.Context, load *model.Load) error
	GetByID(ctx context.Context, id string) (*model.Load, error)
	GetAll(ctx context.Context, shipperID string, status model.LoadStatus, limit int, offset int64) ([]*model.Load, int64, error)
	RemainingTrucks(ctx context.Context, loadID string) (int, error)
	MarkOpenIfPosted(ctx context.Context, loadID string) error
	Allocate(ctx context.Context, loadID string, amount int) error
	Deallocate(ctx context.Context, loadID string, amount int) error
	Cancel(ctx context.Context, loadID string) error
}

type loadService struct {
	repo        repository.LoadRepository
	allocations AllocationReader
	bids        BidRejecter
	validator   *validator.LoadValidator
	publisher   events.Publisher
	cfg         *config.Config
}

func NewLoadService(
	repo repository.LoadRepository,
	allocations AllocationReader,
	bids BidRejecter,
	validator *validator.LoadValidator,
	publisher events.Publisher,
	cfg *config.Config,
) LoadService {
	return &loadService{
		repo:        repo,
		allocations: allocations,
		bids:        bids,
		validator:   validator,
		publisher:   publisher,
		cfg:         cfg,
	}
}

func (s *loadService) Create(ctx context.Context, load *model.Load) error {
	load.LoadingCity = sanitizer.NormalizeCity(load.LoadingCity)
	load.UnloadingCity = sanitizer.NormalizeCity(load.UnloadingCity)
	load.ProductType = sanitizer.TrimAndNormalize(load.ProductType)
	load.TruckType = sanitizer.NormalizeTruckType(load.TruckType)
	if load.Status == "" {
		load.Status = model.LoadPosted
	}

	if load.Status != model.LoadPosted {
		return apperrors.InvalidInput("A load can only be created in POSTED status")
	}

	if err := s.validator.Validate(load); err != nil {
		s.cfg.Log.Warn("Load validation failed", "error", err)
		return apperrors.Validation("Load validation failed", map[string]any{"error": err.Error()})
	}

	if err := s.repo.Create(ctx, load); err != nil {
		s.cfg.Log.Error("Failed to create load", "error", err)
		return apperrors.Internal("Failed to create load", err)
	}

	load.RemainingTrucks = load.RequiredTrucks

	s.cfg.Log.Info("Load created successfully",
		"id", load.ID,
		"shipper_id", load.ShipperID,
		"truck_type", load.TruckType,
		"required_trucks", load.RequiredTrucks,
	)
	return nil
}

func (s *loadService) GetByID(ctx context.Context, id string) (*model.Load, error) {
	if id == "" {
		return nil, apperrors.InvalidInput("Load ID cannot be empty")
	}

	load, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, loaderrors.ErrNotFound) {
			return nil, apperrors.NotFoundWithID("Load", id)
		}
		return nil, apperrors.Internal("Failed to retrieve load", err)
	}

	allocated, err := s.allocations.SumAllocatedByLoad(ctx, id)
	if err != nil {
		return nil, apperrors.Internal("Failed to compute allocated trucks", err)
	}
	load.RemainingTrucks = remaining(load.RequiredTrucks, allocated)

	return load, nil
}

func (s *loadService) GetAll(ctx context.Context, shipperID string, status model.LoadStatus, limit int, offset int64) ([]*model.Load, int64, error) {
	if status != "" && status != model.LoadPosted && status != model.LoadOpenForBids &&
		status != model.LoadBooked && status != model.LoadCancelled {
		return nil, 0, apperrors.InvalidInput("Unknown load status filter: " + string(status))
	}

	var count int64
	var loads []*model.Load
	var errCount, errFind error
	var wg sync.WaitGroup
	wg.Add(2)

	go func() {
		defer wg.Done()
		count, errCount = s.repo.CountBy(ctx, shipperID, status)
		if errCount != nil {
			s.cfg.Log.Error("Failed to count loads", "error", errCount)
			errCount = apperrors.Internal("Failed to count loads", errCount)
		}
	}()

	go func() {
		defer wg.Done()
		loads, errFind = s.repo.FindAll(ctx, shipperID, status, limit, offset)
		if errFind != nil {
			s.cfg.Log.Error("Failed to list loads", "error", errFind)
			errFind = apperrors.Internal("Failed to retrieve loads", errFind)
		}
	}()

	wg.Wait()
	if errCount != nil {
		return nil, 0, errCount
	}
	if errFind != nil {
		return nil, 0, errFind
	}

	return loads, count, nil
}

func (s *loadService) RemainingTrucks(ctx context.Context, loadID string) (int, error) {
	load, err := s.GetByID(ctx, loadID)
	if err != nil {
		return 0, err
	}
	return load.RemainingTrucks, nil
}

// MarkOpenIfPosted transitions POSTED -> OPEN_FOR_BIDS on first bid. A
// no-op for any other status; if a concurrent writer moved the load first,
// the transition is re-checked once so racing first bids both succeed.
func (s *loadService) MarkOpenIfPosted(ctx context.Context, loadID string) error {
	load, err := s.repo.FindByID(ctx, loadID)
	if err != nil {
		if errors.Is(err, loaderrors.ErrNotFound) {
			return apperrors.NotFoundWithID("Load", loadID)
		}
		return apperrors.Internal("Failed to retrieve load", err)
	}

	if load.Status != model.LoadPosted {
		return nil
	}

	err = s.repo.UpdateStatus(ctx, loadID, load.Version, model.LoadOpenForBids)
	if err == nil {
		s.cfg.Log.Info("Load opened for bids", "id", loadID)
		return nil
	}
	if !errors.Is(err, loaderrors.ErrVersionMismatch) {
		return apperrors.Internal("Failed to open load for bids", err)
	}

	current, findErr := s.repo.FindByID(ctx, loadID)
	if findErr != nil {
		return apperrors.Internal("Failed to re-read load", findErr)
	}
	if current.Status == model.LoadPosted {
		return apperrors.ConcurrencyConflict("Load", loadID)
	}
	return nil
}

// Allocate finalizes an allocation already persisted in the surrounding
// transaction: it re-sums active bookings (the new one included), guards
// the no-oversell invariant, and moves the load to BOOKED when the sum
// meets requiredTrucks.
func (s *loadService) Allocate(ctx context.Context, loadID string, amount int) error {
	load, err := s.repo.FindByID(ctx, loadID)
	if err != nil {
		if errors.Is(err, loaderrors.ErrNotFound) {
			return apperrors.NotFoundWithID("Load", loadID)
		}
		return apperrors.Internal("Failed to retrieve load", err)
	}

	allocated, err := s.allocations.SumAllocatedByLoad(ctx, loadID)
	if err != nil {
		return apperrors.Internal("Failed to compute allocated trucks", err)
	}

	if allocated > load.RequiredTrucks {
		remainingBefore := remaining(load.RequiredTrucks, allocated-amount)
		return apperrors.AllocationExceeded(amount, remainingBefore)
	}

	if allocated < load.RequiredTrucks {
		return nil
	}

	if !load.Status.CanTransitionTo(model.LoadBooked) {
		return apperrors.InvalidTransition("Load", string(load.Status), "book")
	}
	if err := s.repo.UpdateStatus(ctx, loadID, load.Version, model.LoadBooked); err != nil {
		if errors.Is(err, loaderrors.ErrVersionMismatch) {
			return apperrors.ConcurrencyConflict("Load", loadID)
		}
		return apperrors.Internal("Failed to mark load booked", err)
	}

	s.cfg.Log.Info("Load fully allocated", "id", loadID, "required_trucks", load.RequiredTrucks)
	return nil
}

// Deallocate reverts a BOOKED load to OPEN_FOR_BIDS when a cancellation in
// the surrounding transaction dropped the active allocation below
// requiredTrucks.
func (s *loadService) Deallocate(ctx context.Context, loadID string, amount int) error {
	load, err := s.repo.FindByID(ctx, loadID)
	if err != nil {
		if errors.Is(err, loaderrors.ErrNotFound) {
			return apperrors.NotFoundWithID("Load", loadID)
		}
		return apperrors.Internal("Failed to retrieve load", err)
	}

	if load.Status != model.LoadBooked {
		return nil
	}

	allocated, err := s.allocations.SumAllocatedByLoad(ctx, loadID)
	if err != nil {
		return apperrors.Internal("Failed to compute allocated trucks", err)
	}
	if remaining(load.RequiredTrucks, allocated) == 0 {
		return nil
	}

	if err := s.repo.UpdateStatus(ctx, loadID, load.Version, model.LoadOpenForBids); err != nil {
		if errors.Is(err, loaderrors.ErrVersionMismatch) {
			return apperrors.ConcurrencyConflict("Load", loadID)
		}
		return apperrors.Internal("Failed to reopen load", err)
	}

	s.cfg.Log.Info("Load reopened for bids", "id", loadID, "freed_trucks", amount)
	return nil
}

// Cancel moves a POSTED or OPEN_FOR_BIDS load to CANCELLED and rejects all
// its PENDING bids in one transaction. A BOOKED load must be cancelled via
// its bookings instead.
func (s *loadService) Cancel(ctx context.Context, loadID string) error {
	load, err := s.repo.FindByID(ctx, loadID)
	if err != nil {
		if errors.Is(err, loaderrors.ErrNotFound) {
			return apperrors.NotFoundWithID("Load", loadID)
		}
		return apperrors.Internal("Failed to retrieve load", err)
	}

	if !load.Status.CanTransitionTo(model.LoadCancelled) {
		return apperrors.InvalidTransition("Load", string(load.Status), "cancel")
	}

	var rejected int64
	err = s.repo.ExecuteTransaction(ctx, func(sessCtx mongo.SessionContext) error {
		if err := s.repo.UpdateStatus(sessCtx, loadID, load.Version, model.LoadCancelled); err != nil {
			if errors.Is(err, loaderrors.ErrVersionMismatch) {
				return apperrors.ConcurrencyConflict("Load", loadID)
			}
			return apperrors.Internal("Failed to cancel load", err)
		}

		var rejectErr error
		rejected, rejectErr = s.bids.RejectPendingByLoad(sessCtx, loadID)
		if rejectErr != nil {
			return apperrors.Internal("Failed to reject pending bids", rejectErr)
		}
		return nil
	})
	if err != nil {
		s.cfg.Log.Error("Failed to cancel load", "id", loadID, "error", err)
		return err
	}

	s.publishCancelled(ctx, load)

	s.cfg.Log.Info("Load cancelled", "id", loadID, "rejected_bids", rejected)
	return nil
}

func (s *loadService) publishCancelled(ctx context.Context, load *model.Load) {
	err := s.publisher.Publish(ctx, events.TopicLoads, events.TypeLoadCancelled, load.ID, events.LoadCancelled{
		LoadID:      load.ID,
		ShipperID:   load.ShipperID,
		CancelledAt: time.Now().UTC(),
	})
	if err != nil {
		s.cfg.Log.Warn("Failed to publish load cancelled event", "id", load.ID, "error", err)
	}
}

func remaining(required, allocated int) int {
	if allocated >= required {
		return 0
	}
	return required - allocated
}
