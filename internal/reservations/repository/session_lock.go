package repository

import (
	"context"
	"time"

	reserrors "coursebook/internal/reservations/errors"
	"coursebook/pkg/config"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
)

const (
	SessionLockCollectionName = "Session_locks"
)

// SessionLockRepository provides advisory per-session locks via unique _id
// inserts. A duplicate key on insert means another request holds the lock.
type SessionLockRepository interface {
	Acquire(ctx context.Context, sessionID string) error
	Release(ctx context.Context, sessionID string) error
}

type sessionLock struct {
	ID        string    `bson:"_id"`
	CreatedAt time.Time `bson:"created_at"`
}

type mongoSessionLockRepository struct {
	collection *mongo.Collection
}

func NewMongoSessionLockRepository(cfg *config.Config) SessionLockRepository {
	db := cfg.Client.Mongo.Database(cfg.MongoDatabaseName)
	return &mongoSessionLockRepository{
		collection: db.Collection(SessionLockCollectionName),
	}
}

func (r *mongoSessionLockRepository) Acquire(ctx context.Context, sessionID string) error {
	_, err := r.collection.InsertOne(ctx, sessionLock{
		ID:        sessionID,
		CreatedAt: time.Now().UTC(),
	})
	if mongo.IsDuplicateKeyError(err) {
		return reserrors.ErrLockHeld
	}
	return err
}

func (r *mongoSessionLockRepository) Release(ctx context.Context, sessionID string) error {
	_, err := r.collection.DeleteOne(ctx, bson.M{"_id": sessionID})
	return err
}
