package config

import "time"

const (
	DefaultMongoURI          = "mongodb://localhost:27017"
	DefaultMongoDatabaseName = "coursebook"
	DefaultMongoConnTimeout  = 10 * time.Second

	DefaultPort     = "8080"
	DefaultLogLevel = "info"

	DefaultRateLimitRequests = 20
	DefaultRateLimitWindow   = 1 * time.Minute

	DefaultRequestTimeout = 30 * time.Second
	DefaultIdempotencyTTL = 24 * time.Hour
	DefaultMaxRequestSize = 1 * 1024 * 1024 // 1MB

	DefaultReadTimeout     = 15 * time.Second
	DefaultWriteTimeout    = 15 * time.Second
	DefaultIdleTimeout     = 60 * time.Second
	DefaultShutdownTimeout = 30 * time.Second

	// MaxSessionCapacity is the business ceiling on seats per session.
	// Sessions are clamped to this value at creation regardless of input.
	DefaultMaxSessionCapacity = 12

	// DefaultIntentTTL is how long a booking intent holds seats without a
	// confirmed payment.
	DefaultIntentTTL           = 300 * time.Second
	DefaultIntentSweepInterval = 30 * time.Second

	// DefaultNearlyFullThreshold triggers availability:urgent broadcasts and
	// SessionNearlyFull alerts when remaining seats drop to this value or below.
	DefaultNearlyFullThreshold = 3

	// DefaultLargeGroupThreshold is the spot count at or above which a single
	// booking or intent raises a LargeGroupBooking alert.
	DefaultLargeGroupThreshold = 5

	// DefaultDuplicateWindow is the lookback for DuplicateBookingAttempt and
	// SuspiciousBookingPattern rules.
	DefaultDuplicateWindow = 10 * time.Minute

	// DefaultAlertCooldown suppresses identical alerts (type+session+identity)
	// after the first emission.
	DefaultAlertCooldown = 1 * time.Hour

	// DefaultSuspiciousSessionCount is the distinct-session threshold for the
	// SuspiciousBookingPattern rule.
	DefaultSuspiciousSessionCount = 3

	// DefaultCancelWorkers bounds the refund/notification fan-out during a
	// session cancellation.
	DefaultCancelWorkers = 4

	DefaultPaymentBaseURL      = "http://localhost:8091"
	DefaultNotificationBaseURL = "http://localhost:8092"

	DefaultPaginationLimit = 100
)
