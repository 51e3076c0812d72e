package config

const (
	EnvMongoURI          = "MONGO_URI"
	EnvMongoDatabaseName = "MONGO_DATABASE_NAME"
	EnvMongoConnTimeout  = "MONGO_CONN_TIMEOUT"

	EnvPort     = "PORT"
	EnvLogLevel = "LOG_LEVEL"

	EnvRateLimitRequests = "RATE_LIMIT_REQUESTS"
	EnvRateLimitWindow   = "RATE_LIMIT_WINDOW"

	EnvRequestTimeout = "REQUEST_TIMEOUT"
	EnvIdempotencyTTL = "IDEMPOTENCY_TTL"
	EnvMaxRequestSize = "MAX_REQUEST_SIZE"

	EnvReadTimeout     = "READ_TIMEOUT"
	EnvWriteTimeout    = "WRITE_TIMEOUT"
	EnvIdleTimeout     = "IDLE_TIMEOUT"
	EnvShutdownTimeout = "SHUTDOWN_TIMEOUT"

	EnvMaxSessionCapacity     = "MAX_SESSION_CAPACITY"
	EnvIntentTTL              = "INTENT_TTL"
	EnvIntentSweepInterval    = "INTENT_SWEEP_INTERVAL"
	EnvNearlyFullThreshold    = "NEARLY_FULL_THRESHOLD"
	EnvLargeGroupThreshold    = "LARGE_GROUP_THRESHOLD"
	EnvDuplicateWindow        = "DUPLICATE_WINDOW"
	EnvAlertCooldown          = "ALERT_COOLDOWN"
	EnvSuspiciousSessionCount = "SUSPICIOUS_SESSION_COUNT"
	EnvCancelWorkers          = "CANCEL_WORKERS"

	EnvPaymentBaseURL      = "PAYMENT_BASE_URL"
	EnvNotificationBaseURL = "NOTIFICATION_BASE_URL"
)
