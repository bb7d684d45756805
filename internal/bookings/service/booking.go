package service

import (
	"context"
	"errors"
	"sync"
	"time"

	bidservice "loadboard/internal/bids/service"
	bookingerrors "loadboard/internal/bookings/errors"
	"loadboard/internal/bookings/repository"
	"loadboard/internal/bookings/validator"
	loadservice "loadboard/internal/loads/service"
	transporterservice "loadboard/internal/transporters/service"
	"loadboard/pkg/config"
	apperrors "loadboard/pkg/errors"
	"loadboard/pkg/events"
	"loadboard/pkg/model"

	"go.mongodb.org/mongo-driver/mongo"
)

// BookingService turns accepted bids into bookings. Create and Cancel run
// their capacity and status writes inside one Mongo transaction so a
// failure at any step leaves nothing half-applied. Conflicts surface as
// retryable errors; the caller decides whether to retry.
type BookingService interface {
	Create(ctx context.Context, bidID string, requestedTrucks int) (*model.Booking, error)
	GetByID(ctx context.Context, id string) (*model.Booking, error)
	GetAll(ctx context.Context, filter model.BookingFilter, limit int, offset int64) ([]*model.Booking, int64, error)
	Cancel(ctx context.Context, bookingID string) (*model.Booking, error)
	Complete(ctx context.Context, bookingID string) (*model.Booking, error)
}

type bookingService struct {
	repo         repository.BookingRepository
	locks        repository.AllocationLockRepository
	bids         bidservice.BidService
	loads        loadservice.LoadService
	transporters transporterservice.TransporterService
	validator    *validator.BookingValidator
	publisher    events.Publisher
	cfg          *config.Config
}

func NewBookingService(
	repo repository.BookingRepository,
	locks repository.AllocationLockRepository,
	bids bidservice.BidService,
	loads loadservice.LoadService,
	transporters transporterservice.TransporterService,
	validator *validator.BookingValidator,
	publisher events.Publisher,
	cfg *config.Config,
) BookingService {
	return &bookingService{
		repo:         repo,
		locks:        locks,
		bids:         bids,
		loads:        loads,
		transporters: transporters,
		validator:    validator,
		publisher:    publisher,
		cfg:          cfg,
	}
}

// Create books a pending bid. requestedTrucks of 0 books the bid's full
// offer; anything above the offer is rejected. The flow holds the load's
// allocation lock across the transaction that checks remaining demand,
// deducts transporter capacity, accepts the bid, persists the booking,
// and re-derives the load status.
func (s *bookingService) Create(ctx context.Context, bidID string, requestedTrucks int) (*model.Booking, error) {
	if bidID == "" {
		return nil, apperrors.InvalidInput("Bid ID cannot be empty")
	}
	if requestedTrucks < 0 {
		return nil, apperrors.InvalidInput("Allocated trucks cannot be negative")
	}

	bid, err := s.bids.GetByID(ctx, bidID)
	if err != nil {
		return nil, err
	}
	if bid.Status != model.BidPending {
		return nil, apperrors.InvalidTransition("Bid", string(bid.Status), "book")
	}

	if requestedTrucks == 0 {
		requestedTrucks = bid.TrucksOffered
	}
	if requestedTrucks > bid.TrucksOffered {
		return nil, apperrors.InvalidInput("Allocated trucks cannot exceed the bid's offer")
	}

	load, err := s.loads.GetByID(ctx, bid.LoadID)
	if err != nil {
		return nil, err
	}
	if load.Status == model.LoadCancelled || load.Status == model.LoadBooked {
		return nil, apperrors.InvalidTransition("Load", string(load.Status), "book against")
	}

	booking := &model.Booking{
		LoadID:          bid.LoadID,
		BidID:           bid.ID,
		TransporterID:   bid.TransporterID,
		AllocatedTrucks: requestedTrucks,
		FinalRate:       bid.ProposedRate,
		Status:          model.BookingConfirmed,
	}
	if err := s.validator.Validate(booking); err != nil {
		s.cfg.Log.Warn("Booking validation failed", "bid_id", bidID, "error", err)
		return nil, apperrors.Validation("Booking validation failed", map[string]any{"error": err.Error()})
	}

	unlock, err := s.acquireLock(ctx, bid.LoadID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	err = s.repo.ExecuteTransaction(ctx, func(sc mongo.SessionContext) error {
		remaining, err := s.loads.RemainingTrucks(sc, bid.LoadID)
		if err != nil {
			return err
		}
		if requestedTrucks > remaining {
			return apperrors.AllocationExceeded(requestedTrucks, remaining)
		}

		if err := s.transporters.Reserve(sc, bid.TransporterID, load.TruckType, requestedTrucks); err != nil {
			return err
		}

		if err := s.bids.Accept(sc, bid.ID); err != nil {
			return err
		}

		if err := s.repo.Create(sc, booking); err != nil {
			return apperrors.Internal("Failed to create booking", err)
		}

		return s.loads.Allocate(sc, bid.LoadID, requestedTrucks)
	})
	if err != nil {
		return nil, err
	}

	s.publishConfirmed(ctx, booking)

	s.cfg.Log.Info("Booking confirmed",
		"id", booking.ID,
		"load_id", booking.LoadID,
		"bid_id", booking.BidID,
		"allocated_trucks", booking.AllocatedTrucks,
	)
	return booking, nil
}

func (s *bookingService) GetByID(ctx context.Context, id string) (*model.Booking, error) {
	if id == "" {
		return nil, apperrors.InvalidInput("Booking ID cannot be empty")
	}

	booking, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, bookingerrors.ErrNotFound) {
			return nil, apperrors.NotFoundWithID("Booking", id)
		}
		return nil, apperrors.Internal("Failed to retrieve booking", err)
	}

	return booking, nil
}

func (s *bookingService) GetAll(ctx context.Context, filter model.BookingFilter, limit int, offset int64) ([]*model.Booking, int64, error) {
	var count int64
	var bookings []*model.Booking
	var errCount, errFind error
	var wg sync.WaitGroup
	wg.Add(2)

	go func() {
		defer wg.Done()
		count, errCount = s.repo.CountBy(ctx, filter)
		if errCount != nil {
			s.cfg.Log.Error("Failed to count bookings", "error", errCount)
			errCount = apperrors.Internal("Failed to count bookings", errCount)
		}
	}()

	go func() {
		defer wg.Done()
		bookings, errFind = s.repo.FindAll(ctx, filter, limit, offset)
		if errFind != nil {
			s.cfg.Log.Error("Failed to list bookings", "error", errFind)
			errFind = apperrors.Internal("Failed to retrieve bookings", errFind)
		}
	}()

	wg.Wait()
	if errCount != nil {
		return nil, 0, errCount
	}
	if errFind != nil {
		return nil, 0, errFind
	}

	return bookings, count, nil
}

// Cancel restores the booking's trucks to the transporter and re-opens the
// load if it had been fully booked. Restoration happens exactly once: the
// conditional CONFIRMED->CANCELLED write fails for an already-cancelled or
// completed booking before any capacity moves.
func (s *bookingService) Cancel(ctx context.Context, bookingID string) (*model.Booking, error) {
	if bookingID == "" {
		return nil, apperrors.InvalidInput("Booking ID cannot be empty")
	}

	booking, err := s.GetByID(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	if !booking.Status.CanTransitionTo(model.BookingCancelled) {
		return nil, apperrors.InvalidTransition("Booking", string(booking.Status), "cancel")
	}

	load, err := s.loads.GetByID(ctx, booking.LoadID)
	if err != nil {
		return nil, err
	}

	unlock, err := s.acquireLock(ctx, booking.LoadID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	err = s.repo.ExecuteTransaction(ctx, func(sc mongo.SessionContext) error {
		if err := s.transition(sc, bookingID, model.BookingCancelled, "cancel"); err != nil {
			return err
		}

		if err := s.transporters.Release(sc, booking.TransporterID, load.TruckType, booking.AllocatedTrucks); err != nil {
			return err
		}

		return s.loads.Deallocate(sc, booking.LoadID, booking.AllocatedTrucks)
	})
	if err != nil {
		return nil, err
	}

	booking.Status = model.BookingCancelled
	s.publishCancelled(ctx, booking)

	s.cfg.Log.Info("Booking cancelled",
		"id", booking.ID,
		"load_id", booking.LoadID,
		"restored_trucks", booking.AllocatedTrucks,
	)
	return booking, nil
}

// Complete closes out a delivered booking. Capacity stays consumed.
func (s *bookingService) Complete(ctx context.Context, bookingID string) (*model.Booking, error) {
	if bookingID == "" {
		return nil, apperrors.InvalidInput("Booking ID cannot be empty")
	}

	if err := s.transition(ctx, bookingID, model.BookingCompleted, "complete"); err != nil {
		return nil, err
	}

	s.cfg.Log.Info("Booking completed", "id", bookingID)
	return s.GetByID(ctx, bookingID)
}

// transition moves a booking out of CONFIRMED. A lost race reports the
// booking's actual status.
func (s *bookingService) transition(ctx context.Context, bookingID string, to model.BookingStatus, action string) error {
	err := s.repo.UpdateStatus(ctx, bookingID, model.BookingConfirmed, to)
	if err == nil {
		return nil
	}
	if errors.Is(err, bookingerrors.ErrNotFound) {
		return apperrors.NotFoundWithID("Booking", bookingID)
	}
	if !errors.Is(err, bookingerrors.ErrStatusChanged) {
		return apperrors.Internal("Failed to update booking status", err)
	}

	booking, findErr := s.repo.FindByID(ctx, bookingID)
	if findErr != nil {
		return apperrors.Internal("Failed to re-read booking", findErr)
	}
	return apperrors.InvalidTransition("Booking", string(booking.Status), action)
}

// acquireLock takes the load's allocation lock outside the transaction so
// a concurrent booking attempt fails fast instead of aborting mid-flight.
func (s *bookingService) acquireLock(ctx context.Context, loadID string) (func(), error) {
	lock, err := s.locks.Acquire(ctx, loadID)
	if err != nil {
		if errors.Is(err, bookingerrors.ErrLockHeld) {
			return nil, apperrors.ConcurrencyConflict("Load", loadID)
		}
		return nil, apperrors.Internal("Failed to acquire allocation lock", err)
	}

	return func() {
		if err := s.locks.Release(context.WithoutCancel(ctx), lock.ID); err != nil {
			s.cfg.Log.Error("Failed to release allocation lock", "lock_id", lock.ID, "error", err)
		}
	}, nil
}

func (s *bookingService) publishConfirmed(ctx context.Context, booking *model.Booking) {
	err := s.publisher.Publish(ctx, events.TopicBookings, events.TypeBookingConfirmed, booking.LoadID, events.BookingConfirmed{
		BookingID:       booking.ID,
		LoadID:          booking.LoadID,
		BidID:           booking.BidID,
		TransporterID:   booking.TransporterID,
		AllocatedTrucks: booking.AllocatedTrucks,
		FinalRate:       booking.FinalRate,
		BookedAt:        booking.BookedAt,
	})
	if err != nil {
		s.cfg.Log.Warn("Failed to publish booking confirmed event", "id", booking.ID, "error", err)
	}
}

func (s *bookingService) publishCancelled(ctx context.Context, booking *model.Booking) {
	err := s.publisher.Publish(ctx, events.TopicBookings, events.TypeBookingCancelled, booking.LoadID, events.BookingCancelled{
		BookingID:       booking.ID,
		LoadID:          booking.LoadID,
		TransporterID:   booking.TransporterID,
		AllocatedTrucks: booking.AllocatedTrucks,
		CancelledAt:     time.Now().UTC(),
	})
	if err != nil {
		s.cfg.Log.Warn("Failed to publish booking cancelled event", "id", booking.ID, "error", err)
	}
}
