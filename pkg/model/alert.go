package model

import "time"

// Alert types emitted by the anomaly rules.
const (
	AlertDuplicateBookingAttempt  = "duplicate_booking_attempt"
	AlertSuspiciousBookingPattern = "suspicious_booking_pattern"
	AlertLargeGroupBooking        = "large_group_booking"
	AlertSessionNearlyFull        = "session_nearly_full"
	AlertCapacityExceeded         = "capacity_exceeded"
	AlertPaymentMismatch          = "payment_mismatch"
)

// Alert severities.
const (
	SeverityLow      = "low"
	SeverityMedium   = "medium"
	SeverityHigh     = "high"
	SeverityCritical = "critical"
)

// Alert statuses. Allowed transitions: unread -> acknowledged -> resolved,
// or unread -> resolved directly. Resolved is terminal; alerts are never
// re-opened.
const (
	AlertUnread       = "unread"
	AlertAcknowledged = "acknowledged"
	AlertResolved     = "resolved"
)

type Alert struct {
	ID             string         `json:"id,omitempty" bson:"_id,omitempty"`
	Type           string         `json:"type" bson:"type"`
	Severity       string         `json:"severity" bson:"severity"`
	Status         string         `json:"status" bson:"status"`
	SessionID      string         `json:"session_id,omitempty" bson:"session_id,omitempty"`
	Identity       string         `json:"identity,omitempty" bson:"identity,omitempty"`
	Message        string         `json:"message" bson:"message"`
	Metadata       map[string]any `json:"metadata,omitempty" bson:"metadata,omitempty"`
	CreatedAt      time.Time      `json:"created_at" bson:"created_at"`
	AcknowledgedAt *time.Time     `json:"acknowledged_at,omitempty" bson:"acknowledged_at,omitempty"`
	ResolvedAt     *time.Time     `json:"resolved_at,omitempty" bson:"resolved_at,omitempty"`
	ResolvedBy     string         `json:"resolved_by,omitempty" bson:"resolved_by,omitempty"`
	ResolutionNote string         `json:"resolution_note,omitempty" bson:"resolution_note,omitempty"`
}
