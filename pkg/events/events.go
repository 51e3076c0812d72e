// Package events defines the domain events emitted after every accepted
// capacity mutation. Events are published post-commit and fire-and-forget:
// delivery never blocks or rolls back the mutation that produced them.
package events

import (
	"context"
	"time"

	"coursebook/pkg/model"

	"github.com/google/uuid"
)

type Type string

const (
	TypeIntentCreated    Type = "intent.created"
	TypeIntentCancelled  Type = "intent.cancelled"
	TypeIntentExpired    Type = "intent.expired"
	TypeBookingConfirmed Type = "booking.confirmed"
	TypeBookingRejected  Type = "booking.rejected"
	TypeSeatsReleased    Type = "seats.released"
	TypeSessionCancelled Type = "session.cancelled"
	TypePaymentRecorded  Type = "payment.recorded"
)

// Event carries the post-commit availability snapshot plus whatever identity
// and payment context the mutation had. Keyed by session id on the wire so
// per-session ordering survives partitioning.
type Event struct {
	ID         string    `json:"id"`
	Type       Type      `json:"type"`
	SessionID  string    `json:"session_id"`
	OccurredAt time.Time `json:"occurred_at"`

	Availability *model.Availability `json:"availability,omitempty"`

	IntentID  string     `json:"intent_id,omitempty"`
	BookingID string     `json:"booking_id,omitempty"`
	HolderKey string     `json:"holder_key,omitempty"`
	Spots     int        `json:"spots,omitempty"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`

	ContactEmail string `json:"contact_email,omitempty"`
	RemoteIP     string `json:"remote_ip,omitempty"`

	AmountCents   int64 `json:"amount_cents,omitempty"`
	ExpectedCents int64 `json:"expected_cents,omitempty"`

	Reason string `json:"reason,omitempty"`
}

func New(t Type, sessionID string) Event {
	return Event{
		ID:         uuid.New().String(),
		Type:       t,
		SessionID:  sessionID,
		OccurredAt: time.Now().UTC(),
	}
}

// Publisher delivers one committed event. Implementations must not block the
// mutation path; failures are logged, never returned to the mutating caller.
type Publisher interface {
	Publish(ctx context.Context, evt Event)
}

// Fanout delivers each event to every registered publisher in order.
type Fanout struct {
	publishers []Publisher
}

func NewFanout(publishers ...Publisher) *Fanout {
	return &Fanout{publishers: publishers}
}

func (f *Fanout) Publish(ctx context.Context, evt Event) {
	for _, p := range f.publishers {
		p.Publish(ctx, evt)
	}
}

// PublisherFunc adapts a function to the Publisher interface.
type PublisherFunc func(ctx context.Context, evt Event)

func (fn PublisherFunc) Publish(ctx context.Context, evt Event) {
	fn(ctx, evt)
}
