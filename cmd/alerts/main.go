package main

import (
	"context"
	"errors"

	"coursebook/internal/alerts/detector"
	"coursebook/internal/alerts/handler"
	"coursebook/internal/alerts/repository"
	"coursebook/internal/alerts/service"
	reshandler "coursebook/internal/reservations/handler"
	"coursebook/pkg/app"
	"coursebook/pkg/config"
	"coursebook/pkg/events"
	"coursebook/pkg/kafka"
	kafkaconfig "coursebook/pkg/kafka/config"
	kafkamiddleware "coursebook/pkg/kafka/middleware"
	"coursebook/pkg/logger"
)

const (
	ServiceName   = "alerts"
	consumerGroup = "alerts-detector"
)

func main() {
	cfg := config.Load(ServiceName)
	cfg.SetMongo()
	defer cfg.GracefulShutdown()

	cfg.Log.Info("Starting Alerts service")

	alertRepo := repository.NewMongoAlertRepository(cfg)
	alertService := service.NewAlertService(alertRepo, cfg)

	cooldown := detector.NewCooldownStore(cfg.AlertCooldown)
	activity := detector.NewActivityWindow(cfg.DuplicateWindow)
	anomalyDetector := detector.New(alertService, cooldown, activity, cfg)

	consumer := startConsumer(cfg, anomalyDetector)

	serverApp := app.NewApplication(cfg)
	serverApp.RegisterWorker(cooldown)
	serverApp.RegisterWorker(consumer)
	serverApp.SetApp(
		handler.NewAlertHandler(alertService, cfg.Log),
		reshandler.NewHealthHandler(cfg.Client.Mongo, cfg.Log),
	)
	serverApp.Run()
}

// consumerWorker adapts the blocking Kafka consumer to the application's
// worker lifecycle.
type consumerWorker struct {
	consumer *kafka.Consumer
	cancel   context.CancelFunc
	done     chan struct{}
	log      *logger.Logger
}

func (w *consumerWorker) Stop() {
	w.cancel()
	if err := w.consumer.Close(); err != nil {
		w.log.Error("Failed to close Kafka consumer", "error", err)
	}
	<-w.done
}

func startConsumer(cfg *config.Config, anomalyDetector *detector.Detector) *consumerWorker {
	kafkaCfg := kafkaconfig.Load()

	consumer, err := kafka.NewConsumer(kafkaCfg, events.Topic, consumerGroup, events.DLQTopic, func(ctx context.Context, msg kafka.Message) error {
		var evt events.Event
		if err := msg.DecodeValue(&evt); err != nil {
			return kafka.NewPermanentError("malformed event payload", err)
		}
		return anomalyDetector.HandleEvent(ctx, evt)
	})
	if err != nil {
		cfg.Log.Fatal("Failed to create Kafka consumer", "error", err)
	}
	consumer.Use(kafkamiddleware.LoggingConsumerMiddleware(cfg.Log))

	ctx, cancel := context.WithCancel(context.Background())
	worker := &consumerWorker{
		consumer: consumer,
		cancel:   cancel,
		done:     make(chan struct{}),
		log:      cfg.Log,
	}

	go func() {
		defer close(worker.done)
		if err := consumer.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
			cfg.Log.Error("Kafka consumer stopped", "error", err)
		}
	}()

	cfg.Log.Info("Anomaly detector consuming booking events", "topic", events.Topic, "group", consumerGroup)
	return worker
}
