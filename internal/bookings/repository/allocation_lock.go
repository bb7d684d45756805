package repository

import (
	"context"
	"fmt"
	"time"

	bookingerrors "loadboard/internal/bookings/errors"
	"loadboard/pkg/config"
	"loadboard/pkg/model"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
)

const (
	LockCollectionName = "Allocation_locks"
)

// AllocationLockRepository manages the per-load advisory locks that
// serialize allocation changes. Acquisition is fail-fast: the unique _id
// turns contention into a duplicate-key error instead of a wait.
type AllocationLockRepository interface {
	Acquire(ctx context.Context, loadID string) (*model.AllocationLock, error)
	Release(ctx context.Context, lockID string) error
}

type mongoAllocationLockRepository struct {
	cfg        *config.Config
	collection *mongo.Collection
}

func NewAllocationLockRepository(cfg *config.Config) AllocationLockRepository {
	db := cfg.Client.Mongo.Database(cfg.MongoDatabaseName)
	return &mongoAllocationLockRepository{
		cfg:        cfg,
		collection: db.Collection(LockCollectionName),
	}
}

func LockID(loadID string) string {
	return "allocation_lock_" + loadID
}

// Acquire takes the load's lock outside any transaction so contention is
// visible immediately. ExpiresAt backs a TTL index that reaps locks
// orphaned by a crashed process.
func (r *mongoAllocationLockRepository) Acquire(ctx context.Context, loadID string) (*model.AllocationLock, error) {
	ctx, cancel := withTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	now := time.Now().UTC()
	lock := &model.AllocationLock{
		ID:        LockID(loadID),
		ExpiresAt: now.Add(r.cfg.AllocationLockTTL),
		CreatedAt: now,
	}

	if _, err := r.collection.InsertOne(ctx, lock); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return nil, bookingerrors.ErrLockHeld
		}
		return nil, fmt.Errorf("failed to acquire allocation lock: %w", err)
	}

	return lock, nil
}

func (r *mongoAllocationLockRepository) Release(ctx context.Context, lockID string) error {
	ctx, cancel := withTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	if _, err := r.collection.DeleteOne(ctx, bson.M{"_id": lockID}); err != nil {
		return fmt.Errorf("failed to release allocation lock: %w", err)
	}

	return nil
}
