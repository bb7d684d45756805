package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	transportererrors "loadboard/internal/transporters/errors"
	"loadboard/pkg/config"
	"loadboard/pkg/model"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	CollectionName = "Transporters"
)

type TransporterRepository interface {
	Create(ctx context.Context, transporter *model.Transporter) error
	FindByID(ctx context.Context, id string) (*model.Transporter, error)
	FindByIDs(ctx context.Context, ids []string) ([]*model.Transporter, error)
	FindAll(ctx context.Context, limit int, offset int64) ([]*model.Transporter, error)
	Count(ctx context.Context) (int64, error)
}

type mongoTransporterRepository struct {
	cfg        *config.Config
	collection *mongo.Collection
}

func NewMongoTransporterRepository(cfg *config.Config) TransporterRepository {
	db := cfg.Client.Mongo.Database(cfg.MongoDatabaseName)
	return &mongoTransporterRepository{
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

func (r *mongoTransporterRepository) Create(ctx context.Context, transporter *model.Transporter) error {
	ctx, cancel := withTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	if transporter.ID == "" {
		transporter.ID = uuid.New().String()
	}
	transporter.CreatedAt = time.Now().UTC().Truncate(time.Millisecond)

	if _, err := r.collection.InsertOne(ctx, transporter); err != nil {
		return fmt.Errorf("failed to create transporter: %w", err)
	}

	return nil
}

func (r *mongoTransporterRepository) FindByID(ctx context.Context, id string) (*model.Transporter, error) {
	ctx, cancel := withTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	var transporter model.Transporter
	err := r.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&transporter)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, transportererrors.ErrNotFound
		}
		return nil, fmt.Errorf("failed to find transporter: %w", err)
	}

	return &transporter, nil
}

func (r *mongoTransporterRepository) FindByIDs(ctx context.Context, ids []string) ([]*model.Transporter, error) {
	ctx, cancel := withTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	cursor, err := r.collection.Find(ctx, bson.M{"_id": bson.M{"$in": ids}})
	if err != nil {
		return nil, fmt.Errorf("failed to find transporters: %w", err)
	}
	defer cursor.Close(ctx)

	var transporters []*model.Transporter
	if err = cursor.All(ctx, &transporters); err != nil {
		return nil, fmt.Errorf("failed to decode transporters: %w", err)
	}

	return transporters, nil
}

func (r *mongoTransporterRepository) FindAll(ctx context.Context, limit int, offset int64) ([]*model.Transporter, error) {
	ctx, cancel := withTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	opts := options.Find().
		SetSort(bson.D{{Key: "created_at", Value: 1}}).
		SetLimit(int64(limit)).
		SetSkip(offset)

	cursor, err := r.collection.Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to find transporters: %w", err)
	}
	defer cursor.Close(ctx)

	var transporters []*model.Transporter
	if err = cursor.All(ctx, &transporters); err != nil {
		return nil, fmt.Errorf("failed to decode transporters: %w", err)
	}

	return transporters, nil
}

func (r *mongoTransporterRepository) Count(ctx context.Context) (int64, error) {
	ctx, cancel := withTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	count, err := r.collection.CountDocuments(ctx, bson.M{})
	if err != nil {
		return 0, fmt.Errorf("failed to count transporters: %w", err)
	}

	return count, nil
}
