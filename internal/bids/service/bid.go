package service

import (
	"context"
	"errors"
	"sync"

	biderrors "loadboard/internal/bids/errors"
	"loadboard/internal/bids/repository"
	"loadboard/internal/bids/validator"
	loadservice "loadboard/internal/loads/service"
	transporterservice "loadboard/internal/transporters/service"
	"loadboard/pkg/config"
	apperrors "loadboard/pkg/errors"
	"loadboard/pkg/events"
	"loadboard/pkg/model"
)

// BidService owns the bid state machine. Submit performs advisory capacity
// checks only; the booking flow re-checks authoritatively because both the
// load and the transporter inventory may change between submission and
// acceptance. Accept is invoked by the booking flow inside its transaction.
type BidService interface {
	Submit(ctx context.Context, bid *model.Bid) error
	GetByID(ctx context.Context, id string) (*model.Bid, error)
	GetAll(ctx context.Context, filter model.BidFilter, limit int, offset int64) ([]*model.Bid, int64, error)
	Reject(ctx context.Context, bidID string) (*model.Bid, error)
	Accept(ctx context.Context, bidID string) error
	RankForLoad(ctx context.Context, loadID string) ([]*model.Bid, error)
}

type bidService struct {
	repo         repository.BidRepository
	loads        loadservice.LoadService
	transporters transporterservice.TransporterService
	validator    *validator.BidValidator
	publisher    events.Publisher
	cfg          *config.Config
}

func NewBidService(
	repo repository.BidRepository,
	loads loadservice.LoadService,
	transporters transporterservice.TransporterService,
	validator *validator.BidValidator,
	publisher events.Publisher,
	cfg *config.Config,
) BidService {
	return &bidService{
		repo:         repo,
		loads:        loads,
		transporters: transporters,
		validator:    validator,
		publisher:    publisher,
		cfg:          cfg,
	}
}

func (s *bidService) Submit(ctx context.Context, bid *model.Bid) error {
	if bid.Status == "" {
		bid.Status = model.BidPending
	}
	if bid.Status != model.BidPending {
		return apperrors.InvalidInput("A bid can only be created in PENDING status")
	}

	if err := s.validator.Validate(bid); err != nil {
		s.cfg.Log.Warn("Bid validation failed", "error", err)
		return apperrors.Validation("Bid validation failed", map[string]any{"error": err.Error()})
	}

	load, err := s.loads.GetByID(ctx, bid.LoadID)
	if err != nil {
		return err
	}
	if load.Status == model.LoadCancelled || load.Status == model.LoadBooked {
		return apperrors.InvalidTransition("Load", string(load.Status), "bid on")
	}

	if _, err := s.transporters.GetByID(ctx, bid.TransporterID); err != nil {
		return err
	}

	// Advisory checks; booking re-verifies both under its transaction.
	available, err := s.transporters.AvailableCapacity(ctx, bid.TransporterID, load.TruckType)
	if err != nil {
		return err
	}
	if bid.TrucksOffered > available {
		return apperrors.InsufficientCapacity(bid.TrucksOffered, available)
	}
	if bid.TrucksOffered > load.RemainingTrucks {
		return apperrors.AllocationExceeded(bid.TrucksOffered, load.RemainingTrucks)
	}

	if err := s.repo.Create(ctx, bid); err != nil {
		s.cfg.Log.Error("Failed to create bid", "load_id", bid.LoadID, "error", err)
		return apperrors.Internal("Failed to create bid", err)
	}

	if err := s.loads.MarkOpenIfPosted(ctx, bid.LoadID); err != nil {
		s.cfg.Log.Error("Failed to open load for bids", "load_id", bid.LoadID, "error", err)
		return err
	}

	s.publishSubmitted(ctx, bid)

	s.cfg.Log.Info("Bid submitted",
		"id", bid.ID,
		"load_id", bid.LoadID,
		"transporter_id", bid.TransporterID,
		"trucks_offered", bid.TrucksOffered,
	)
	return nil
}

func (s *bidService) GetByID(ctx context.Context, id string) (*model.Bid, error) {
	if id == "" {
		return nil, apperrors.InvalidInput("Bid ID cannot be empty")
	}

	bid, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, biderrors.ErrNotFound) {
			return nil, apperrors.NotFoundWithID("Bid", id)
		}
		return nil, apperrors.Internal("Failed to retrieve bid", err)
	}

	return bid, nil
}

func (s *bidService) GetAll(ctx context.Context, filter model.BidFilter, limit int, offset int64) ([]*model.Bid, int64, error) {
	var count int64
	var bids []*model.Bid
	var errCount, errFind error
	var wg sync.WaitGroup
	wg.Add(2)

	go func() {
		defer wg.Done()
		count, errCount = s.repo.CountBy(ctx, filter)
		if errCount != nil {
			s.cfg.Log.Error("Failed to count bids", "error", errCount)
			errCount = apperrors.Internal("Failed to count bids", errCount)
		}
	}()

	go func() {
		defer wg.Done()
		bids, errFind = s.repo.FindAll(ctx, filter, limit, offset)
		if errFind != nil {
			s.cfg.Log.Error("Failed to list bids", "error", errFind)
			errFind = apperrors.Internal("Failed to retrieve bids", errFind)
		}
	}()

	wg.Wait()
	if errCount != nil {
		return nil, 0, errCount
	}
	if errFind != nil {
		return nil, 0, errFind
	}

	return bids, count, nil
}

func (s *bidService) Reject(ctx context.Context, bidID string) (*model.Bid, error) {
	if bidID == "" {
		return nil, apperrors.InvalidInput("Bid ID cannot be empty")
	}

	if err := s.transition(ctx, bidID, model.BidRejected, "reject"); err != nil {
		return nil, err
	}

	s.cfg.Log.Info("Bid rejected", "id", bidID)
	return s.GetByID(ctx, bidID)
}

func (s *bidService) Accept(ctx context.Context, bidID string) error {
	return s.transition(ctx, bidID, model.BidAccepted, "accept")
}

// transition moves a bid out of PENDING. The conditional write means a
// lost race reports the bid's actual status, not a generic failure.
func (s *bidService) transition(ctx context.Context, bidID string, to model.BidStatus, action string) error {
	err := s.repo.UpdateStatus(ctx, bidID, model.BidPending, to)
	if err == nil {
		return nil
	}
	if errors.Is(err, biderrors.ErrNotFound) {
		return apperrors.NotFoundWithID("Bid", bidID)
	}
	if !errors.Is(err, biderrors.ErrStatusChanged) {
		return apperrors.Internal("Failed to update bid status", err)
	}

	bid, findErr := s.repo.FindByID(ctx, bidID)
	if findErr != nil {
		return apperrors.Internal("Failed to re-read bid", findErr)
	}
	return apperrors.InvalidTransition("Bid", string(bid.Status), action)
}

// RankForLoad scores the load's pending bids and returns them best first.
func (s *bidService) RankForLoad(ctx context.Context, loadID string) ([]*model.Bid, error) {
	if _, err := s.loads.GetByID(ctx, loadID); err != nil {
		return nil, err
	}

	bids, err := s.repo.FindPendingByLoad(ctx, loadID)
	if err != nil {
		return nil, apperrors.Internal("Failed to retrieve pending bids", err)
	}
	if len(bids) == 0 {
		return []*model.Bid{}, nil
	}

	ids := make([]string, 0, len(bids))
	seen := make(map[string]bool, len(bids))
	for _, bid := range bids {
		if !seen[bid.TransporterID] {
			seen[bid.TransporterID] = true
			ids = append(ids, bid.TransporterID)
		}
	}

	transporters, err := s.transporters.GetByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}

	ratings := make(map[string]float64, len(transporters))
	for id, transporter := range transporters {
		ratings[id] = transporter.Rating
	}

	return Rank(bids, ratings), nil
}

func (s *bidService) publishSubmitted(ctx context.Context, bid *model.Bid) {
	err := s.publisher.Publish(ctx, events.TopicBids, events.TypeBidSubmitted, bid.LoadID, events.BidSubmitted{
		BidID:         bid.ID,
		LoadID:        bid.LoadID,
		TransporterID: bid.TransporterID,
		ProposedRate:  bid.ProposedRate,
		TrucksOffered: bid.TrucksOffered,
		SubmittedAt:   bid.SubmittedAt,
	})
	if err != nil {
		s.cfg.Log.Warn("Failed to publish bid submitted event", "id", bid.ID, "error", err)
	}
}
