package main

import (
	"coursebook/internal/reservations/broadcast"
	"coursebook/internal/reservations/handler"
	"coursebook/internal/reservations/repository"
	"coursebook/internal/reservations/service"
	"coursebook/internal/reservations/sweeper"
	"coursebook/internal/reservations/validator"
	"coursebook/pkg/app"
	"coursebook/pkg/client"
	"coursebook/pkg/config"
	"coursebook/pkg/events"
	"coursebook/pkg/kafka"
	kafkaconfig "coursebook/pkg/kafka/config"
	kafkamiddleware "coursebook/pkg/kafka/middleware"
)

const ServiceName = "reservations"

func main() {
	cfg := config.Load(ServiceName)
	cfg.SetMongo()
	defer cfg.GracefulShutdown()

	cfg.Log.Info("Starting Reservations service")

	kafkaCfg := kafkaconfig.Load()
	producer, err := kafka.NewProducer(kafkaCfg, events.Topic, events.DLQTopic)
	if err != nil {
		cfg.Log.Fatal("Failed to create Kafka producer", "error", err)
	}
	producer.Use(kafkamiddleware.LoggingProducerMiddleware(cfg.Log))
	defer func() {
		if err := producer.Close(); err != nil {
			cfg.Log.Error("Failed to close Kafka producer", "error", err)
		}
	}()

	hub := broadcast.NewHub(cfg)
	publisher := events.NewFanout(hub, events.NewKafkaPublisher(producer, cfg.Log))

	router, intentService := initServices(cfg, hub, publisher)

	sweep := sweeper.New(cfg.IntentSweepInterval, intentService.SweepExpired, cfg.Log)
	sweep.Start()

	serverApp := app.NewApplication(cfg)
	serverApp.RegisterWorker(sweep)
	serverApp.Mount("/ws/availability", hub.Handler())
	serverApp.SetApp(router, handler.NewHealthHandler(cfg.Client.Mongo, cfg.Log))
	serverApp.Run()
}

func initServices(cfg *config.Config, hub *broadcast.Hub, publisher events.Publisher) (*handler.Router, service.IntentService) {
	reservationValidator := validator.NewReservationValidator(cfg.Log)

	sessionRepo := repository.NewMongoSessionRepository(cfg)
	intentRepo := repository.NewMongoIntentRepository(cfg)
	bookingRepo := repository.NewMongoBookingRepository(cfg)
	lockRepo := repository.NewMongoSessionLockRepository(cfg)
	guardRepo := repository.NewMongoReleaseGuardRepository(cfg)
	reportRepo := repository.NewMongoReportRepository(cfg)

	ledger := service.NewCapacityLedger(sessionRepo, intentRepo, guardRepo, publisher, cfg)
	intentService := service.NewIntentService(
		intentRepo,
		sessionRepo,
		bookingRepo,
		lockRepo,
		ledger,
		reservationValidator,
		publisher,
		cfg,
	)
	sessionService := service.NewSessionService(sessionRepo, bookingRepo, ledger, reservationValidator, cfg)
	cancellationService := service.NewCancellationService(
		sessionRepo,
		intentRepo,
		bookingRepo,
		reportRepo,
		ledger,
		client.NewPaymentClient(cfg.PaymentBaseURL),
		client.NewNotificationClient(cfg.NotificationBaseURL),
		reservationValidator,
		publisher,
		cfg,
	)

	router := handler.NewRouter(
		handler.NewSessionHandler(sessionService, cfg.Log),
		handler.NewIntentHandler(intentService, cfg.Log),
		handler.NewCancellationHandler(cancellationService, cfg.Log),
	)

	cfg.Log.Info("Reservation services initialized", "database", cfg.MongoDatabaseName)
	return router, intentService
}
