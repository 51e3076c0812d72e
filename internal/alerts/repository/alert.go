package repository

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"time"

	alertserrors "coursebook/internal/alerts/errors"
	"coursebook/pkg/config"
	"coursebook/pkg/model"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	AlertCollectionName = "Admin_alerts"
)

// AlertFilter narrows listings. Zero values mean no constraint.
type AlertFilter struct {
	Status    string
	Severity  string
	Type      string
	SessionID string
	Search    string
}

type AlertRepository interface {
	Create(ctx context.Context, alert *model.Alert) error
	FindByID(ctx context.Context, id string) (*model.Alert, error)
	FindAll(ctx context.Context, filter AlertFilter, limit int, offset int64) ([]*model.Alert, error)
	Count(ctx context.Context, filter AlertFilter) (int64, error)
	Acknowledge(ctx context.Context, id string, at time.Time) (*model.Alert, error)
	Resolve(ctx context.Context, id string, at time.Time, resolvedBy, note string) (*model.Alert, error)
}

type mongoAlertRepository struct {
	cfg        *config.Config
	collection *mongo.Collection
}

func NewMongoAlertRepository(cfg *config.Config) AlertRepository {
	db := cfg.Client.Mongo.Database(cfg.MongoDatabaseName)
	return &mongoAlertRepository{
		cfg:        cfg,
		collection: db.Collection(AlertCollectionName),
	}
}

func withTimeout(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if _, ok := ctx.(mongo.SessionContext); ok {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, timeout)
}

func (r *mongoAlertRepository) Create(ctx context.Context, alert *model.Alert) error {
	ctx, cancel := withTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	alert.CreatedAt = time.Now().UTC().Truncate(time.Millisecond)
	_, err := r.collection.InsertOne(ctx, alert)
	if err != nil {
		return fmt.Errorf("failed to create alert: %w", err)
	}
	return nil
}

func (r *mongoAlertRepository) FindByID(ctx context.Context, id string) (*model.Alert, error) {
	ctx, cancel := withTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	var alert model.Alert
	err := r.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&alert)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, alertserrors.ErrNotFound
		}
		return nil, fmt.Errorf("failed to find alert: %w", err)
	}

	return &alert, nil
}

func buildFilter(filter AlertFilter) bson.M {
	query := bson.M{}
	if filter.Status != "" {
		query["status"] = filter.Status
	}
	if filter.Severity != "" {
		query["severity"] = filter.Severity
	}
	if filter.Type != "" {
		query["type"] = filter.Type
	}
	if filter.SessionID != "" {
		query["session_id"] = filter.SessionID
	}
	if filter.Search != "" {
		pattern := primitive.Regex{Pattern: regexp.QuoteMeta(filter.Search), Options: "i"}
		query["$or"] = bson.A{
			bson.M{"message": pattern},
			bson.M{"identity": pattern},
		}
	}
	return query
}

func (r *mongoAlertRepository) FindAll(ctx context.Context, filter AlertFilter, limit int, offset int64) ([]*model.Alert, error) {
	ctx, cancel := withTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	opts := options.Find().
		SetSort(bson.D{{Key: "created_at", Value: -1}}).
		SetLimit(int64(limit)).
		SetSkip(offset)

	cursor, err := r.collection.Find(ctx, buildFilter(filter), opts)
	if err != nil {
		return nil, fmt.Errorf("failed to list alerts: %w", err)
	}
	defer cursor.Close(ctx)

	alerts := []*model.Alert{}
	if err := cursor.All(ctx, &alerts); err != nil {
		return nil, fmt.Errorf("failed to decode alerts: %w", err)
	}

	return alerts, nil
}

func (r *mongoAlertRepository) Count(ctx context.Context, filter AlertFilter) (int64, error) {
	ctx, cancel := withTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	count, err := r.collection.CountDocuments(ctx, buildFilter(filter))
	if err != nil {
		return 0, fmt.Errorf("failed to count alerts: %w", err)
	}
	return count, nil
}

// Acknowledge moves an unread alert to acknowledged. The status filter
// makes any other starting state a no-match, reported as ErrNotFound to the
// caller for classification against the current document.
func (r *mongoAlertRepository) Acknowledge(ctx context.Context, id string, at time.Time) (*model.Alert, error) {
	ctx, cancel := withTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	filter := bson.M{"_id": id, "status": model.AlertUnread}
	update := bson.M{"$set": bson.M{
		"status":          model.AlertAcknowledged,
		"acknowledged_at": at,
	}}
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var alert model.Alert
	err := r.collection.FindOneAndUpdate(ctx, filter, update, opts).Decode(&alert)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, alertserrors.ErrNotFound
		}
		return nil, fmt.Errorf("failed to acknowledge alert: %w", err)
	}

	return &alert, nil
}

// Resolve moves an unread or acknowledged alert to resolved. Resolved is
// terminal, so a second resolve matches nothing.
func (r *mongoAlertRepository) Resolve(ctx context.Context, id string, at time.Time, resolvedBy, note string) (*model.Alert, error) {
	ctx, cancel := withTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	filter := bson.M{
		"_id":    id,
		"status": bson.M{"$in": bson.A{model.AlertUnread, model.AlertAcknowledged}},
	}
	update := bson.M{"$set": bson.M{
		"status":          model.AlertResolved,
		"resolved_at":     at,
		"resolved_by":     resolvedBy,
		"resolution_note": note,
	}}
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var alert model.Alert
	err := r.collection.FindOneAndUpdate(ctx, filter, update, opts).Decode(&alert)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, alertserrors.ErrNotFound
		}
		return nil, fmt.Errorf("failed to resolve alert: %w", err)
	}

	return &alert, nil
}
