package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	loaderrors "loadboard/internal/loads/errors"
	"loadboard/pkg/config"
	mongotx "loadboard/pkg/db/mongo"
	"loadboard/pkg/model"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	CollectionName = "Loads"
)

type LoadRepository interface {
	Create(ctx context.Context, load *model.Load) error
	FindByID(ctx context.Context, id string) (*model.Load, error)
	FindAll(ctx context.Context, shipperID string, status model.LoadStatus, limit int, offset int64) ([]*model.Load, error)
	CountBy(ctx context.Context, shipperID string, status model.LoadStatus) (int64, error)
	UpdateStatus(ctx context.Context, id string, expectedVersion int64, status model.LoadStatus) error
	ExecuteTransaction(ctx context.Context, fn mongotx.TransactionFunc) error
}

type mongoLoadRepository struct {
	cfg        *config.Config
	collection *mongo.Collection
	txManager  mongotx.TransactionManager
}

func NewMongoLoadRepository(cfg *config.Config) LoadRepository {
	db := cfg.Client.Mongo.Database(cfg.MongoDatabaseName)
	return &mongoLoadRepository{
		cfg:        cfg,
		collection: db.Collection(CollectionName),
		txManager:  mongotx.NewTransactionManager(cfg.Client.Mongo),
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

func (r *mongoLoadRepository) Create(ctx context.Context, load *model.Load) error {
	ctx, cancel := withTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	if load.ID == "" {
		load.ID = uuid.New().String()
	}
	load.PostedAt = time.Now().UTC().Truncate(time.Millisecond)
	load.Version = 0

	if _, err := r.collection.InsertOne(ctx, load); err != nil {
		return fmt.Errorf("failed to create load: %w", err)
	}

	return nil
}

func (r *mongoLoadRepository) FindByID(ctx context.Context, id string) (*model.Load, error) {
	ctx, cancel := withTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	var load model.Load
	err := r.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&load)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, loaderrors.ErrNotFound
		}
		return nil, fmt.Errorf("failed to find load: %w", err)
	}

	return &load, nil
}

func (r *mongoLoadRepository) FindAll(ctx context.Context, shipperID string, status model.LoadStatus, limit int, offset int64) ([]*model.Load, error) {
	ctx, cancel := withTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	opts := options.Find().
		SetSort(bson.D{{Key: "posted_at", Value: -1}}).
		SetLimit(int64(limit)).
		SetSkip(offset)

	cursor, err := r.collection.Find(ctx, buildLoadFilter(shipperID, status), opts)
	if err != nil {
		return nil, fmt.Errorf("failed to find loads: %w", err)
	}
	defer cursor.Close(ctx)

	var loads []*model.Load
	if err = cursor.All(ctx, &loads); err != nil {
		return nil, fmt.Errorf("failed to decode loads: %w", err)
	}

	return loads, nil
}

func (r *mongoLoadRepository) CountBy(ctx context.Context, shipperID string, status model.LoadStatus) (int64, error) {
	ctx, cancel := withTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	count, err := r.collection.CountDocuments(ctx, buildLoadFilter(shipperID, status))
	if err != nil {
		return 0, fmt.Errorf("failed to count loads: %w", err)
	}

	return count, nil
}

func buildLoadFilter(shipperID string, status model.LoadStatus) bson.M {
	filter := bson.M{}
	if shipperID != "" {
		filter["shipper_id"] = shipperID
	}
	if status != "" {
		filter["status"] = status
	}
	return filter
}

// UpdateStatus writes the new status only if the document still carries
// expectedVersion, bumping the version in the same update. A matched count
// of zero on an existing document means a concurrent writer got there
// first.
func (r *mongoLoadRepository) UpdateStatus(ctx context.Context, id string, expectedVersion int64, status model.LoadStatus) error {
	ctx, cancel := withTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	filter := bson.M{
		"_id":     id,
		"version": expectedVersion,
	}
	update := bson.M{
		"$set": bson.M{"status": status},
		"$inc": bson.M{"version": 1},
	}

	result, err := r.collection.UpdateOne(ctx, filter, update)
	if err != nil {
		return fmt.Errorf("failed to update load status: %w", err)
	}

	if result.MatchedCount == 0 {
		count, countErr := r.collection.CountDocuments(ctx, bson.M{"_id": id})
		if countErr != nil {
			return fmt.Errorf("failed to check load existence: %w", countErr)
		}
		if count == 0 {
			return loaderrors.ErrNotFound
		}
		return loaderrors.ErrVersionMismatch
	}

	return nil
}

func (r *mongoLoadRepository) ExecuteTransaction(ctx context.Context, fn mongotx.TransactionFunc) error {
	return r.txManager.ExecuteTransaction(ctx, fn)
}
