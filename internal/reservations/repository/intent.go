package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	reserrors "coursebook/internal/reservations/errors"
	"coursebook/pkg/config"
	"coursebook/pkg/model"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	IntentCollectionName = "Booking_intents"
)

// IntentRepository stores time-boxed seat holds. Expiry is lazy: every query
// filters on expires_at, and a background sweep deletes the leftovers.
type IntentRepository interface {
	Create(ctx context.Context, intent *model.BookingIntent) error
	FindActiveByID(ctx context.Context, id string, now time.Time) (*model.BookingIntent, error)
	FindActiveBySession(ctx context.Context, sessionID string, now time.Time) ([]*model.BookingIntent, error)
	TallyActiveSpots(ctx context.Context, sessionID string, now time.Time) (int, int, error)
	Extend(ctx context.Context, id string, now time.Time, ttl time.Duration) (*model.BookingIntent, error)
	DeleteActive(ctx context.Context, id string, now time.Time) (*model.BookingIntent, error)
	FindExpired(ctx context.Context, now time.Time, limit int) ([]*model.BookingIntent, error)
	DeleteByID(ctx context.Context, id string) error
	DeleteBySession(ctx context.Context, sessionID string) ([]*model.BookingIntent, error)
}

type mongoIntentRepository struct {
	cfg        *config.Config
	collection *mongo.Collection
}

func NewMongoIntentRepository(cfg *config.Config) IntentRepository {
	db := cfg.Client.Mongo.Database(cfg.MongoDatabaseName)
	return &mongoIntentRepository{
		cfg:        cfg,
		collection: db.Collection(IntentCollectionName),
	}
}

func (r *mongoIntentRepository) Create(ctx context.Context, intent *model.BookingIntent) error {
	ctx, cancel := withTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	_, err := r.collection.InsertOne(ctx, intent)
	if err != nil {
		return fmt.Errorf("failed to create intent: %w", err)
	}
	return nil
}

func (r *mongoIntentRepository) FindActiveByID(ctx context.Context, id string, now time.Time) (*model.BookingIntent, error) {
	ctx, cancel := withTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	filter := bson.M{"_id": id, "expires_at": bson.M{"$gt": now}}

	var intent model.BookingIntent
	err := r.collection.FindOne(ctx, filter).Decode(&intent)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, r.classifyMiss(ctx, id)
		}
		return nil, fmt.Errorf("failed to find intent: %w", err)
	}

	return &intent, nil
}

// classifyMiss distinguishes an intent that never existed from one that is
// present but past its expiry.
func (r *mongoIntentRepository) classifyMiss(ctx context.Context, id string) error {
	count, err := r.collection.CountDocuments(ctx, bson.M{"_id": id})
	if err != nil {
		return fmt.Errorf("failed to find intent: %w", err)
	}
	if count > 0 {
		return reserrors.ErrIntentExpired
	}
	return reserrors.ErrIntentNotFound
}

func (r *mongoIntentRepository) FindActiveBySession(ctx context.Context, sessionID string, now time.Time) ([]*model.BookingIntent, error) {
	ctx, cancel := withTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	filter := bson.M{"session_id": sessionID, "expires_at": bson.M{"$gt": now}}
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}})

	cursor, err := r.collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to list intents: %w", err)
	}
	defer cursor.Close(ctx)

	intents := []*model.BookingIntent{}
	if err := cursor.All(ctx, &intents); err != nil {
		return nil, fmt.Errorf("failed to decode intents: %w", err)
	}

	return intents, nil
}

// TallyActiveSpots returns the number of unexpired intents for a session and
// the total spots they hold.
func (r *mongoIntentRepository) TallyActiveSpots(ctx context.Context, sessionID string, now time.Time) (int, int, error) {
	ctx, cancel := withTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: bson.M{
			"session_id": sessionID,
			"expires_at": bson.M{"$gt": now},
		}}},
		{{Key: "$group", Value: bson.M{
			"_id":   nil,
			"count": bson.M{"$sum": 1},
			"spots": bson.M{"$sum": "$spots"},
		}}},
	}

	cursor, err := r.collection.Aggregate(ctx, pipeline)
	if err != nil {
		return 0, 0, fmt.Errorf("failed to tally intents: %w", err)
	}
	defer cursor.Close(ctx)

	var results []struct {
		Count int `bson:"count"`
		Spots int `bson:"spots"`
	}
	if err := cursor.All(ctx, &results); err != nil {
		return 0, 0, fmt.Errorf("failed to decode intent tally: %w", err)
	}
	if len(results) == 0 {
		return 0, 0, nil
	}

	return results[0].Count, results[0].Spots, nil
}

// Extend pushes the expiry of a still-active intent forward by the full TTL.
// An expired intent cannot be revived.
func (r *mongoIntentRepository) Extend(ctx context.Context, id string, now time.Time, ttl time.Duration) (*model.BookingIntent, error) {
	ctx, cancel := withTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	filter := bson.M{"_id": id, "expires_at": bson.M{"$gt": now}}
	update := bson.M{"$set": bson.M{"expires_at": now.Add(ttl)}}
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var intent model.BookingIntent
	err := r.collection.FindOneAndUpdate(ctx, filter, update, opts).Decode(&intent)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, r.classifyMiss(ctx, id)
		}
		return nil, fmt.Errorf("failed to extend intent: %w", err)
	}

	return &intent, nil
}

// DeleteActive removes a still-active intent and returns it. The expiry
// filter makes destruction race-safe against the sweep: exactly one caller
// observes the active document.
func (r *mongoIntentRepository) DeleteActive(ctx context.Context, id string, now time.Time) (*model.BookingIntent, error) {
	ctx, cancel := withTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	filter := bson.M{"_id": id, "expires_at": bson.M{"$gt": now}}

	var intent model.BookingIntent
	err := r.collection.FindOneAndDelete(ctx, filter).Decode(&intent)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, r.classifyMiss(ctx, id)
		}
		return nil, fmt.Errorf("failed to delete intent: %w", err)
	}

	return &intent, nil
}

func (r *mongoIntentRepository) FindExpired(ctx context.Context, now time.Time, limit int) ([]*model.BookingIntent, error) {
	ctx, cancel := withTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	filter := bson.M{"expires_at": bson.M{"$lte": now}}
	opts := options.Find().SetSort(bson.D{{Key: "expires_at", Value: 1}}).SetLimit(int64(limit))

	cursor, err := r.collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to list expired intents: %w", err)
	}
	defer cursor.Close(ctx)

	intents := []*model.BookingIntent{}
	if err := cursor.All(ctx, &intents); err != nil {
		return nil, fmt.Errorf("failed to decode expired intents: %w", err)
	}

	return intents, nil
}

func (r *mongoIntentRepository) DeleteByID(ctx context.Context, id string) error {
	ctx, cancel := withTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	_, err := r.collection.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return fmt.Errorf("failed to delete intent: %w", err)
	}
	return nil
}

// DeleteBySession removes every intent for a session, active or not, and
// returns the removed active ones. Used when a session is cancelled.
func (r *mongoIntentRepository) DeleteBySession(ctx context.Context, sessionID string) ([]*model.BookingIntent, error) {
	ctx, cancel := withTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	intents, err := r.FindActiveBySession(ctx, sessionID, time.Now().UTC())
	if err != nil {
		return nil, err
	}

	_, err = r.collection.DeleteMany(ctx, bson.M{"session_id": sessionID})
	if err != nil {
		return nil, fmt.Errorf("failed to delete session intents: %w", err)
	}

	return intents, nil
}
