package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	biderrors "loadboard/internal/bids/errors"
	"loadboard/pkg/config"
	"loadboard/pkg/model"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	CollectionName = "Bids"
)

type BidRepository interface {
	Create(ctx context.Context, bid *model.Bid) error
	FindByID(ctx context.Context, id string) (*model.Bid, error)
	FindAll(ctx context.Context, filter model.BidFilter, limit int, offset int64) ([]*model.Bid, error)
	CountBy(ctx context.Context, filter model.BidFilter) (int64, error)
	FindPendingByLoad(ctx context.Context, loadID string) ([]*model.Bid, error)
	UpdateStatus(ctx context.Context, id string, from, to model.BidStatus) error
	RejectPendingByLoad(ctx context.Context, loadID string) (int64, error)
}

type mongoBidRepository struct {
	cfg        *config.Config
	collection *mongo.Collection
}

func NewMongoBidRepository(cfg *config.Config) BidRepository {
	db := cfg.Client.Mongo.Database(cfg.MongoDatabaseName)
	return &mongoBidRepository{
		cfg:        cfg,
		collection: db.Collection(CollectionName),
	}
}

// withTimeout wraps the context with a timeout unless already inside a
// transaction, where wrapping the SessionContext would break transaction
// semantics.
func withTimeout(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if _, ok := ctx.(mongo.SessionContext); ok {
		return ctx, func() {}
	}

	deadline, hasDeadline := ctx.Deadline()
	if !hasDeadline {
		return context.WithTimeout(ctx, timeout)
	}

	remaining := time.Until(deadline)
	if remaining < timeout {
		return context.WithTimeout(ctx, remaining)
	}

	return context.WithTimeout(ctx, timeout)
}

func (r *mongoBidRepository) Create(ctx context.Context, bid *model.Bid) error {
	ctx, cancel := withTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	if bid.ID == "" {
		bid.ID = uuid.New().String()
	}
	bid.SubmittedAt = time.Now().UTC().Truncate(time.Millisecond)

	if _, err := r.collection.InsertOne(ctx, bid); err != nil {
		return fmt.Errorf("failed to create bid: %w", err)
	}

	return nil
}

func (r *mongoBidRepository) FindByID(ctx context.Context, id string) (*model.Bid, error) {
	ctx, cancel := withTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	var bid model.Bid
	err := r.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&bid)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, biderrors.ErrNotFound
		}
		return nil, fmt.Errorf("failed to find bid: %w", err)
	}

	return &bid, nil
}

func (r *mongoBidRepository) FindAll(ctx context.Context, filter model.BidFilter, limit int, offset int64) ([]*model.Bid, error) {
	ctx, cancel := withTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	opts := options.Find().
		SetSort(bson.D{{Key: "submitted_at", Value: 1}}).
		SetLimit(int64(limit)).
		SetSkip(offset)

	cursor, err := r.collection.Find(ctx, buildBidFilter(filter), opts)
	if err != nil {
		return nil, fmt.Errorf("failed to find bids: %w", err)
	}
	defer cursor.Close(ctx)

	var bids []*model.Bid
	if err = cursor.All(ctx, &bids); err != nil {
		return nil, fmt.Errorf("failed to decode bids: %w", err)
	}

	return bids, nil
}

func (r *mongoBidRepository) CountBy(ctx context.Context, filter model.BidFilter) (int64, error) {
	ctx, cancel := withTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	count, err := r.collection.CountDocuments(ctx, buildBidFilter(filter))
	if err != nil {
		return 0, fmt.Errorf("failed to count bids: %w", err)
	}

	return count, nil
}

func buildBidFilter(filter model.BidFilter) bson.M {
	query := bson.M{}
	if filter.LoadID != "" {
		query["load_id"] = filter.LoadID
	}
	if filter.TransporterID != "" {
		query["transporter_id"] = filter.TransporterID
	}
	if filter.Status != "" {
		query["status"] = filter.Status
	}
	return query
}

// FindPendingByLoad returns pending bids in submission order, the stable
// input order the ranker ties break on.
func (r *mongoBidRepository) FindPendingByLoad(ctx context.Context, loadID string) ([]*model.Bid, error) {
	ctx, cancel := withTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	filter := bson.M{
		"load_id": loadID,
		"status":  model.BidPending,
	}
	opts := options.Find().SetSort(bson.D{{Key: "submitted_at", Value: 1}})

	cursor, err := r.collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to find pending bids: %w", err)
	}
	defer cursor.Close(ctx)

	var bids []*model.Bid
	if err = cursor.All(ctx, &bids); err != nil {
		return nil, fmt.Errorf("failed to decode pending bids: %w", err)
	}

	return bids, nil
}

// UpdateStatus moves a bid out of `from` only if it is still there: the
// status acts as the bid's version, so a bid leaves PENDING exactly once
// even under races.
func (r *mongoBidRepository) UpdateStatus(ctx context.Context, id string, from, to model.BidStatus) error {
	ctx, cancel := withTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	filter := bson.M{
		"_id":    id,
		"status": from,
	}
	update := bson.M{
		"$set": bson.M{"status": to},
	}

	result, err := r.collection.UpdateOne(ctx, filter, update)
	if err != nil {
		return fmt.Errorf("failed to update bid status: %w", err)
	}

	if result.MatchedCount == 0 {
		count, countErr := r.collection.CountDocuments(ctx, bson.M{"_id": id})
		if countErr != nil {
			return fmt.Errorf("failed to check bid existence: %w", countErr)
		}
		if count == 0 {
			return biderrors.ErrNotFound
		}
		return biderrors.ErrStatusChanged
	}

	return nil
}

func (r *mongoBidRepository) RejectPendingByLoad(ctx context.Context, loadID string) (int64, error) {
	ctx, cancel := withTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	filter := bson.M{
		"load_id": loadID,
		"status":  model.BidPending,
	}
	update := bson.M{
		"$set": bson.M{"status": model.BidRejected},
	}

	result, err := r.collection.UpdateMany(ctx, filter, update)
	if err != nil {
		return 0, fmt.Errorf("failed to reject pending bids: %w", err)
	}

	return result.ModifiedCount, nil
}
