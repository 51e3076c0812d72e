package repository

import (
	"context"
	"errors"
	"fmt"

	reserrors "coursebook/internal/reservations/errors"
	"coursebook/pkg/config"
	"coursebook/pkg/model"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	ReportCollectionName = "Cancellation_reports"
)

// ReportRepository persists cancellation reports keyed by session id, one
// report per session ever.
type ReportRepository interface {
	Upsert(ctx context.Context, report *model.CancellationReport) error
	FindBySessionID(ctx context.Context, sessionID string) (*model.CancellationReport, error)
}

type mongoReportRepository struct {
	cfg        *config.Config
	collection *mongo.Collection
}

func NewMongoReportRepository(cfg *config.Config) ReportRepository {
	db := cfg.Client.Mongo.Database(cfg.MongoDatabaseName)
	return &mongoReportRepository{
		cfg:        cfg,
		collection: db.Collection(ReportCollectionName),
	}
}

func (r *mongoReportRepository) Upsert(ctx context.Context, report *model.CancellationReport) error {
	ctx, cancel := withTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	filter := bson.M{"_id": report.SessionID}
	opts := options.Replace().SetUpsert(true)

	_, err := r.collection.ReplaceOne(ctx, filter, report, opts)
	if err != nil {
		return fmt.Errorf("failed to upsert cancellation report: %w", err)
	}
	return nil
}

func (r *mongoReportRepository) FindBySessionID(ctx context.Context, sessionID string) (*model.CancellationReport, error) {
	ctx, cancel := withTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	var report model.CancellationReport
	err := r.collection.FindOne(ctx, bson.M{"_id": sessionID}).Decode(&report)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, reserrors.ErrReportNotFound
		}
		return nil, fmt.Errorf("failed to find cancellation report: %w", err)
	}

	return &report, nil
}
