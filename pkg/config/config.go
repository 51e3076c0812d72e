package config

import (
	"fmt"
	"os"
	"regexp"
	"strconv"
	"time"

	"coursebook/pkg/client"
	"coursebook/pkg/logger"
)

// Session booking statuses shared across services.
const (
	Pending   = "pending"
	Confirmed = "confirmed"
	Cancelled = "cancelled"
	Completed = "completed"
)

type Config struct {
	MongoURI          string
	MongoDatabaseName string
	MongoConnTimeout  time.Duration

	Port string

	RateLimitRequests int
	RateLimitWindow   time.Duration

	RequestTimeout time.Duration
	IdempotencyTTL time.Duration
	MaxRequestSize int

	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration

	MaxSessionCapacity     int
	IntentTTL              time.Duration
	IntentSweepInterval    time.Duration
	NearlyFullThreshold    int
	LargeGroupThreshold    int
	DuplicateWindow        time.Duration
	AlertCooldown          time.Duration
	SuspiciousSessionCount int
	CancelWorkers          int

	PaymentBaseURL      string
	NotificationBaseURL string

	Log    *logger.Logger
	Client *client.Client
}

func Load(serviceName string) *Config {
	cfg := &Config{
		MongoURI:          getEnvStr(EnvMongoURI, DefaultMongoURI),
		MongoDatabaseName: getEnvStr(EnvMongoDatabaseName, DefaultMongoDatabaseName),
		MongoConnTimeout:  getEnvDuration(EnvMongoConnTimeout, DefaultMongoConnTimeout),

		Port: getEnvStr(EnvPort, DefaultPort),

		RateLimitRequests: getEnvNum(EnvRateLimitRequests, DefaultRateLimitRequests),
		RateLimitWindow:   getEnvDuration(EnvRateLimitWindow, DefaultRateLimitWindow),

		RequestTimeout: getEnvDuration(EnvRequestTimeout, DefaultRequestTimeout),
		IdempotencyTTL: getEnvDuration(EnvIdempotencyTTL, DefaultIdempotencyTTL),
		MaxRequestSize: getEnvNum(EnvMaxRequestSize, DefaultMaxRequestSize),

		ReadTimeout:     getEnvDuration(EnvReadTimeout, DefaultReadTimeout),
		WriteTimeout:    getEnvDuration(EnvWriteTimeout, DefaultWriteTimeout),
		IdleTimeout:     getEnvDuration(EnvIdleTimeout, DefaultIdleTimeout),
		ShutdownTimeout: getEnvDuration(EnvShutdownTimeout, DefaultShutdownTimeout),

		MaxSessionCapacity:     getEnvNum(EnvMaxSessionCapacity, DefaultMaxSessionCapacity),
		IntentTTL:              getEnvDuration(EnvIntentTTL, DefaultIntentTTL),
		IntentSweepInterval:    getEnvDuration(EnvIntentSweepInterval, DefaultIntentSweepInterval),
		NearlyFullThreshold:    getEnvNum(EnvNearlyFullThreshold, DefaultNearlyFullThreshold),
		LargeGroupThreshold:    getEnvNum(EnvLargeGroupThreshold, DefaultLargeGroupThreshold),
		DuplicateWindow:        getEnvDuration(EnvDuplicateWindow, DefaultDuplicateWindow),
		AlertCooldown:          getEnvDuration(EnvAlertCooldown, DefaultAlertCooldown),
		SuspiciousSessionCount: getEnvNum(EnvSuspiciousSessionCount, DefaultSuspiciousSessionCount),
		CancelWorkers:          getEnvNum(EnvCancelWorkers, DefaultCancelWorkers),

		PaymentBaseURL:      getEnvStr(EnvPaymentBaseURL, DefaultPaymentBaseURL),
		NotificationBaseURL: getEnvStr(EnvNotificationBaseURL, DefaultNotificationBaseURL),

		Log: logger.New(logger.Config{
			Level:     getEnvStr(EnvLogLevel, DefaultLogLevel),
			Format:    logger.JSON,
			AddSource: true,
			Service:   serviceName,
		}),
		Client: client.NewClient(),
	}

	if err := cfg.Validate(); err != nil {
		cfg.Log.Fatal(err.Error())
	}
	cfg.LogConfiguration()
	return cfg
}

func (cfg *Config) SetMongo() {
	cfg.Client.SetMongo(cfg.Log, cfg.MongoURI, cfg.MongoConnTimeout)
}

func (cfg *Config) Validate() error {
	var errors []string

	if port, err := strconv.Atoi(cfg.Port); err != nil || port < 1 || port > 65535 {
		errors = append(errors, fmt.Sprintf("Port must be between 1 and 65535, got: %s", cfg.Port))
	}

	if cfg.MongoURI == "" {
		errors = append(errors, "MongoURI cannot be empty")
	} else if !regexp.MustCompile(`^mongodb(\+srv)?://`).MatchString(cfg.MongoURI) {
		errors = append(errors, fmt.Sprintf("MongoURI must start with 'mongodb://' or 'mongodb+srv://', got: %s", cfg.MongoURI))
	}

	if cfg.MongoDatabaseName == "" {
		errors = append(errors, "MongoDatabaseName cannot be empty")
	}

	if cfg.MongoConnTimeout <= 0 {
		errors = append(errors, fmt.Sprintf("MongoConnTimeout must be positive, got: %s", cfg.MongoConnTimeout))
	}
	if cfg.RateLimitWindow <= 0 {
		errors = append(errors, fmt.Sprintf("RateLimitWindow must be positive, got: %s", cfg.RateLimitWindow))
	}
	if cfg.RequestTimeout <= 0 {
		errors = append(errors, fmt.Sprintf("RequestTimeout must be positive, got: %s", cfg.RequestTimeout))
	}
	if cfg.IdempotencyTTL <= 0 {
		errors = append(errors, fmt.Sprintf("IdempotencyTTL must be positive, got: %s", cfg.IdempotencyTTL))
	}
	if cfg.ReadTimeout <= 0 {
		errors = append(errors, fmt.Sprintf("ReadTimeout must be positive, got: %s", cfg.ReadTimeout))
	}
	if cfg.WriteTimeout <= 0 {
		errors = append(errors, fmt.Sprintf("WriteTimeout must be positive, got: %s", cfg.WriteTimeout))
	}
	if cfg.IdleTimeout <= 0 {
		errors = append(errors, fmt.Sprintf("IdleTimeout must be positive, got: %s", cfg.IdleTimeout))
	}
	if cfg.ShutdownTimeout <= 0 {
		errors = append(errors, fmt.Sprintf("ShutdownTimeout must be positive, got: %s", cfg.ShutdownTimeout))
	}

	if cfg.RateLimitRequests <= 0 {
		errors = append(errors, fmt.Sprintf("RateLimitRequests must be positive, got: %d", cfg.RateLimitRequests))
	}
	if cfg.MaxRequestSize <= 0 {
		errors = append(errors, fmt.Sprintf("MaxRequestSize must be positive, got: %d", cfg.MaxRequestSize))
	}

	if cfg.MaxSessionCapacity < 1 || cfg.MaxSessionCapacity > DefaultMaxSessionCapacity {
		errors = append(errors, fmt.Sprintf("MaxSessionCapacity must be between 1 and %d, got: %d", DefaultMaxSessionCapacity, cfg.MaxSessionCapacity))
	}
	if cfg.IntentTTL <= 0 {
		errors = append(errors, fmt.Sprintf("IntentTTL must be positive, got: %s", cfg.IntentTTL))
	}
	if cfg.IntentSweepInterval <= 0 {
		errors = append(errors, fmt.Sprintf("IntentSweepInterval must be positive, got: %s", cfg.IntentSweepInterval))
	}
	if cfg.NearlyFullThreshold < 0 {
		errors = append(errors, fmt.Sprintf("NearlyFullThreshold cannot be negative, got: %d", cfg.NearlyFullThreshold))
	}
	if cfg.LargeGroupThreshold < 1 {
		errors = append(errors, fmt.Sprintf("LargeGroupThreshold must be positive, got: %d", cfg.LargeGroupThreshold))
	}
	if cfg.DuplicateWindow <= 0 {
		errors = append(errors, fmt.Sprintf("DuplicateWindow must be positive, got: %s", cfg.DuplicateWindow))
	}
	if cfg.AlertCooldown <= 0 {
		errors = append(errors, fmt.Sprintf("AlertCooldown must be positive, got: %s", cfg.AlertCooldown))
	}
	if cfg.SuspiciousSessionCount < 2 {
		errors = append(errors, fmt.Sprintf("SuspiciousSessionCount must be at least 2, got: %d", cfg.SuspiciousSessionCount))
	}
	if cfg.CancelWorkers < 1 {
		errors = append(errors, fmt.Sprintf("CancelWorkers must be positive, got: %d", cfg.CancelWorkers))
	}

	if len(errors) > 0 {
		errMsg := "Configuration validation failed:\n"
		for i, err := range errors {
			errMsg += fmt.Sprintf("  %d. %s\n", i+1, err)
		}
		return fmt.Errorf("%s", errMsg)
	}

	return nil
}

func (cfg *Config) LogConfiguration() {
	cfg.Log.Info("Configuration loaded successfully",
		"mongo_uri", redactMongoURI(cfg.MongoURI),
		"mongo_database", cfg.MongoDatabaseName,
		"mongo_conn_timeout", cfg.MongoConnTimeout,
		"port", cfg.Port,
		"rate_limit_requests", cfg.RateLimitRequests,
		"rate_limit_window", cfg.RateLimitWindow,
		"request_timeout", cfg.RequestTimeout,
		"idempotency_ttl", cfg.IdempotencyTTL,
		"max_request_size", cfg.MaxRequestSize,
		"read_timeout", cfg.ReadTimeout,
		"write_timeout", cfg.WriteTimeout,
		"idle_timeout", cfg.IdleTimeout,
		"shutdown_timeout", cfg.ShutdownTimeout,
		"max_session_capacity", cfg.MaxSessionCapacity,
		"intent_ttl", cfg.IntentTTL,
		"intent_sweep_interval", cfg.IntentSweepInterval,
		"nearly_full_threshold", cfg.NearlyFullThreshold,
		"large_group_threshold", cfg.LargeGroupThreshold,
		"duplicate_window", cfg.DuplicateWindow,
		"alert_cooldown", cfg.AlertCooldown,
		"suspicious_session_count", cfg.SuspiciousSessionCount,
		"cancel_workers", cfg.CancelWorkers,
		"payment_base_url", cfg.PaymentBaseURL,
		"notification_base_url", cfg.NotificationBaseURL,
	)
}

func redactMongoURI(uri string) string {
	credentialRegex := regexp.MustCompile(`(mongodb(\+srv)?://)[^:]+:[^@]+@`)
	return credentialRegex.ReplaceAllString(uri, "${1}***:***@")
}

func getEnvStr(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getEnvNum(key string, fallback int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return fallback
}

func (cfg *Config) GracefulShutdown() {
	cfg.Client.GracefulShutdown()
}

func NormalizePaginationLimit(limit int) int {
	if limit <= 0 {
		limit = 10
	} else if limit > DefaultPaginationLimit {
		limit = DefaultPaginationLimit
	}
	return limit
}

func NormalizeOffset(offset int64) int64 {
	return max(0, offset)
}
