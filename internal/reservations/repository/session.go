package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	reserrors "coursebook/internal/reservations/errors"
	"coursebook/pkg/config"
	mongotx "coursebook/pkg/db/mongo"
	"coursebook/pkg/model"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	SessionCollectionName = "Sessions"
)

type SessionRepository interface {
	Create(ctx context.Context, session *model.Session) error
	FindByID(ctx context.Context, id string) (*model.Session, error)
	FindAll(ctx context.Context, limit int, offset int64) ([]*model.Session, error)
	Count(ctx context.Context) (int64, error)
	ConfirmSeats(ctx context.Context, sessionID string, spots int) (*model.Session, error)
	ReleaseSeats(ctx context.Context, sessionID string, spots int) (*model.Session, error)
	UpdateStatus(ctx context.Context, sessionID, from, to string) (*model.Session, error)
	ExecuteTransaction(ctx context.Context, fn mongotx.TransactionFunc) error
}

type mongoSessionRepository struct {
	cfg        *config.Config
	collection *mongo.Collection
	txManager  mongotx.TransactionManager
}

func NewMongoSessionRepository(cfg *config.Config) SessionRepository {
	db := cfg.Client.Mongo.Database(cfg.MongoDatabaseName)
	return &mongoSessionRepository{
		cfg:        cfg,
		collection: db.Collection(SessionCollectionName),
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

func (r *mongoSessionRepository) Create(ctx context.Context, session *model.Session) error {
	ctx, cancel := withTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	session.CreatedAt = time.Now().UTC().Truncate(time.Millisecond)
	_, err := r.collection.InsertOne(ctx, session)
	if err != nil {
		return fmt.Errorf("failed to create session: %w", err)
	}
	return nil
}

func (r *mongoSessionRepository) FindByID(ctx context.Context, id string) (*model.Session, error) {
	ctx, cancel := withTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	var session model.Session
	err := r.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&session)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, reserrors.ErrSessionNotFound
		}
		return nil, fmt.Errorf("failed to find session: %w", err)
	}

	return &session, nil
}

func (r *mongoSessionRepository) FindAll(ctx context.Context, limit int, offset int64) ([]*model.Session, error) {
	ctx, cancel := withTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	opts := options.Find().
		SetSort(bson.D{{Key: "start_time", Value: 1}}).
		SetLimit(int64(limit)).
		SetSkip(offset)

	cursor, err := r.collection.Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}
	defer cursor.Close(ctx)

	sessions := []*model.Session{}
	if err := cursor.All(ctx, &sessions); err != nil {
		return nil, fmt.Errorf("failed to decode sessions: %w", err)
	}

	return sessions, nil
}

func (r *mongoSessionRepository) Count(ctx context.Context) (int64, error) {
	ctx, cancel := withTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	count, err := r.collection.CountDocuments(ctx, bson.M{})
	if err != nil {
		return 0, fmt.Errorf("failed to count sessions: %w", err)
	}
	return count, nil
}

// ConfirmSeats atomically adds spots to current_bookings if and only if the
// session is scheduled and the result stays within max_capacity. The guard
// and the increment run as a single findAndModify, so two confirms racing
// for the last seat cannot both pass.
func (r *mongoSessionRepository) ConfirmSeats(ctx context.Context, sessionID string, spots int) (*model.Session, error) {
	ctx, cancel := withTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	filter := bson.M{
		"_id":    sessionID,
		"status": model.SessionScheduled,
		"$expr": bson.M{
			"$lte": bson.A{
				bson.M{"$add": bson.A{"$current_bookings", spots}},
				"$max_capacity",
			},
		},
	}
	update := bson.M{"$inc": bson.M{"current_bookings": spots}}
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var session model.Session
	err := r.collection.FindOneAndUpdate(ctx, filter, update, opts).Decode(&session)
	if err == nil {
		return &session, nil
	}
	if !errors.Is(err, mongo.ErrNoDocuments) {
		return nil, fmt.Errorf("failed to confirm seats: %w", err)
	}

	return nil, r.classifyConfirmFailure(ctx, sessionID)
}

// classifyConfirmFailure distinguishes why the guarded update matched
// nothing: missing session, terminal session, or insufficient capacity.
func (r *mongoSessionRepository) classifyConfirmFailure(ctx context.Context, sessionID string) error {
	session, err := r.FindByID(ctx, sessionID)
	if err != nil {
		return err
	}
	if session.Status != model.SessionScheduled {
		return reserrors.ErrSessionTerminal
	}
	return reserrors.ErrCapacityExceeded
}

// ReleaseSeats subtracts spots from current_bookings, clamped at zero. Uses
// an aggregation pipeline update so the clamp happens server side.
func (r *mongoSessionRepository) ReleaseSeats(ctx context.Context, sessionID string, spots int) (*model.Session, error) {
	ctx, cancel := withTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	update := mongo.Pipeline{
		{{Key: "$set", Value: bson.M{
			"current_bookings": bson.M{
				"$max": bson.A{0, bson.M{"$subtract": bson.A{"$current_bookings", spots}}},
			},
		}}},
	}
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var session model.Session
	err := r.collection.FindOneAndUpdate(ctx, bson.M{"_id": sessionID}, update, opts).Decode(&session)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, reserrors.ErrSessionNotFound
		}
		return nil, fmt.Errorf("failed to release seats: %w", err)
	}

	return &session, nil
}

// UpdateStatus moves the session from one status to another. The previous
// status is part of the filter, so concurrent transitions cannot skip steps.
func (r *mongoSessionRepository) UpdateStatus(ctx context.Context, sessionID, from, to string) (*model.Session, error) {
	ctx, cancel := withTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	filter := bson.M{"_id": sessionID, "status": from}
	update := bson.M{"$set": bson.M{"status": to}}
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var session model.Session
	err := r.collection.FindOneAndUpdate(ctx, filter, update, opts).Decode(&session)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, reserrors.ErrSessionNotFound
		}
		return nil, fmt.Errorf("failed to update session status: %w", err)
	}

	return &session, nil
}

func (r *mongoSessionRepository) ExecuteTransaction(ctx context.Context, fn mongotx.TransactionFunc) error {
	return r.txManager.ExecuteTransaction(ctx, fn)
}
