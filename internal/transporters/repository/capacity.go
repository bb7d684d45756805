package repository

import (
	"context"
	"errors"
	"fmt"

	transportererrors "loadboard/internal/transporters/errors"
	"loadboard/pkg/config"
	"loadboard/pkg/model"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	CapacityCollectionName = "Truck_capacities"
)

// CapacityRepository owns the per-(transporter, truck type) inventory rows.
// Reserve and Release are the only paths that change count during booking
// flows; both are single conditional updates so two racing reservations of
// the last trucks can never both succeed.
type CapacityRepository interface {
	Upsert(ctx context.Context, capacity *model.TruckCapacity) (*model.TruckCapacity, error)
	FindByKey(ctx context.Context, transporterID, truckType string) (*model.TruckCapacity, error)
	FindByTransporter(ctx context.Context, transporterID string) ([]model.TruckCapacity, error)
	Reserve(ctx context.Context, transporterID, truckType string, amount int) (int, error)
	Release(ctx context.Context, transporterID, truckType string, amount int) error
}

type mongoCapacityRepository struct {
	cfg        *config.Config
	collection *mongo.Collection
}

func NewMongoCapacityRepository(cfg *config.Config) CapacityRepository {
	db := cfg.Client.Mongo.Database(cfg.MongoDatabaseName)
	return &mongoCapacityRepository{
		cfg:        cfg,
		collection: db.Collection(CapacityCollectionName),
	}
}

// Upsert replaces the declared count for a truck type, creating the row if
// the transporter never declared that type before. Every write bumps the
// version.
func (r *mongoCapacityRepository) Upsert(ctx context.Context, capacity *model.TruckCapacity) (*model.TruckCapacity, error) {
	ctx, cancel := withTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	filter := bson.M{
		"transporter_id": capacity.TransporterID,
		"truck_type":     capacity.TruckType,
	}
	update := bson.M{
		"$set":         bson.M{"count": capacity.Count},
		"$inc":         bson.M{"version": 1},
		"$setOnInsert": bson.M{"_id": uuid.New().String()},
	}

	opts := options.FindOneAndUpdate().
		SetUpsert(true).
		SetReturnDocument(options.After)

	var updated model.TruckCapacity
	if err := r.collection.FindOneAndUpdate(ctx, filter, update, opts).Decode(&updated); err != nil {
		return nil, fmt.Errorf("failed to upsert capacity: %w", err)
	}

	return &updated, nil
}

func (r *mongoCapacityRepository) FindByKey(ctx context.Context, transporterID, truckType string) (*model.TruckCapacity, error) {
	ctx, cancel := withTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	filter := bson.M{
		"transporter_id": transporterID,
		"truck_type":     truckType,
	}

	var capacity model.TruckCapacity
	err := r.collection.FindOne(ctx, filter).Decode(&capacity)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, transportererrors.ErrCapacityNotFound
		}
		return nil, fmt.Errorf("failed to find capacity: %w", err)
	}

	return &capacity, nil
}

func (r *mongoCapacityRepository) FindByTransporter(ctx context.Context, transporterID string) ([]model.TruckCapacity, error) {
	ctx, cancel := withTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	opts := options.Find().SetSort(bson.D{{Key: "truck_type", Value: 1}})

	cursor, err := r.collection.Find(ctx, bson.M{"transporter_id": transporterID}, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to find capacities: %w", err)
	}
	defer cursor.Close(ctx)

	var capacities []model.TruckCapacity
	if err = cursor.All(ctx, &capacities); err != nil {
		return nil, fmt.Errorf("failed to decode capacities: %w", err)
	}

	return capacities, nil
}

// Reserve decrements count by amount in a single conditional update: the
// filter admits the row only while count >= amount, so the check and the
// decrement are indivisible. On failure the current count is re-read to
// tell a missing row from a genuine shortfall; the returned int is the
// available count observed at that moment.
func (r *mongoCapacityRepository) Reserve(ctx context.Context, transporterID, truckType string, amount int) (int, error) {
	ctx, cancel := withTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	filter := bson.M{
		"transporter_id": transporterID,
		"truck_type":     truckType,
		"count":          bson.M{"$gte": amount},
	}
	update := bson.M{
		"$inc": bson.M{"count": -amount, "version": 1},
	}

	result, err := r.collection.UpdateOne(ctx, filter, update)
	if err != nil {
		return 0, fmt.Errorf("failed to reserve capacity: %w", err)
	}

	if result.MatchedCount == 0 {
		capacity, findErr := r.FindByKey(ctx, transporterID, truckType)
		if findErr != nil {
			if errors.Is(findErr, transportererrors.ErrCapacityNotFound) {
				return 0, transportererrors.ErrCapacityNotFound
			}
			return 0, findErr
		}
		return capacity.Count, transportererrors.ErrInsufficientCapacity
	}

	return amount, nil
}

// Release increments count by amount, creating the row with count = amount
// when the transporter has no row for that truck type.
func (r *mongoCapacityRepository) Release(ctx context.Context, transporterID, truckType string, amount int) error {
	ctx, cancel := withTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	filter := bson.M{
		"transporter_id": transporterID,
		"truck_type":     truckType,
	}
	update := bson.M{
		"$inc":         bson.M{"count": amount, "version": 1},
		"$setOnInsert": bson.M{"_id": uuid.New().String()},
	}

	opts := options.Update().SetUpsert(true)

	if _, err := r.collection.UpdateOne(ctx, filter, update, opts); err != nil {
		return fmt.Errorf("failed to release capacity: %w", err)
	}

	return nil
}
