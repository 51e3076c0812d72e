package repository

import (
	"context"
	"time"

	reserrors "coursebook/internal/reservations/errors"
	"coursebook/pkg/config"

	"go.mongodb.org/mongo-driver/mongo"
)

const (
	SeatReleaseCollectionName = "Seat_releases"
)

// ReleaseGuardRepository dedupes seat releases. Each release carries a
// caller-supplied key (usually the booking or intent id); recording the same
// key twice hits the unique _id and the second release becomes a no-op.
type ReleaseGuardRepository interface {
	Record(ctx context.Context, releaseKey string, spots int) error
}

type seatRelease struct {
	ID         string    `bson:"_id"`
	Spots      int       `bson:"spots"`
	ReleasedAt time.Time `bson:"released_at"`
}

type mongoReleaseGuardRepository struct {
	collection *mongo.Collection
}

func NewMongoReleaseGuardRepository(cfg *config.Config) ReleaseGuardRepository {
	db := cfg.Client.Mongo.Database(cfg.MongoDatabaseName)
	return &mongoReleaseGuardRepository{
		collection: db.Collection(SeatReleaseCollectionName),
	}
}

func (r *mongoReleaseGuardRepository) Record(ctx context.Context, releaseKey string, spots int) error {
	_, err := r.collection.InsertOne(ctx, seatRelease{
		ID:         releaseKey,
		Spots:      spots,
		ReleasedAt: time.Now().UTC(),
	})
	if mongo.IsDuplicateKeyError(err) {
		return reserrors.ErrDuplicateRelease
	}
	return err
}
