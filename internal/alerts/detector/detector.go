// Package detector inspects the booking event stream for anomalies and
// raises admin alerts. Detection is stateless against the database: the
// duplicate and fan-out rules run on an in-memory sliding window, so a
// restart forgets history at the cost of a few missed repeats.
package detector

import (
	"context"
	"fmt"

	"coursebook/pkg/config"
	"coursebook/pkg/events"
	"coursebook/pkg/model"
)

// AlertSink receives raised alerts. Satisfied by the alert service.
type AlertSink interface {
	Raise(ctx context.Context, alert *model.Alert) error
}

type Detector struct {
	sink     AlertSink
	cooldown *CooldownStore
	activity *ActivityWindow
	cfg      *config.Config
}

func New(sink AlertSink, cooldown *CooldownStore, activity *ActivityWindow, cfg *config.Config) *Detector {
	return &Detector{
		sink:     sink,
		cooldown: cooldown,
		activity: activity,
		cfg:      cfg,
	}
}

// HandleEvent runs every rule that applies to the event type. Rules are
// independent; one booking can raise several alerts.
func (d *Detector) HandleEvent(ctx context.Context, evt events.Event) error {
	switch evt.Type {
	case events.TypeBookingConfirmed:
		d.checkBookingPatterns(ctx, evt)
		d.checkLargeGroup(ctx, evt)
		d.checkCapacity(ctx, evt)
	case events.TypePaymentRecorded:
		d.checkPaymentMismatch(ctx, evt)
	case events.TypeBookingRejected:
		d.checkConfirmRejected(ctx, evt)
		d.checkCapacity(ctx, evt)
	case events.TypeSeatsReleased, events.TypeIntentExpired:
		d.checkCapacity(ctx, evt)
	}
	return nil
}

// identity resolves who acted: contact email when known, then holder key,
// then the remote address.
func identity(evt events.Event) string {
	switch {
	case evt.ContactEmail != "":
		return evt.ContactEmail
	case evt.HolderKey != "":
		return evt.HolderKey
	default:
		return evt.RemoteIP
	}
}

func (d *Detector) checkBookingPatterns(ctx context.Context, evt events.Event) {
	who := identity(evt)
	if who == "" {
		return
	}

	sessionHits, distinctSessions := d.activity.Record(who, evt.SessionID, evt.OccurredAt)

	if sessionHits >= 2 {
		d.raise(ctx, evt, &model.Alert{
			Type:     model.AlertDuplicateBookingAttempt,
			Severity: model.SeverityMedium,
			Identity: who,
			Message:  fmt.Sprintf("Repeated booking by %s for the same session within %s", who, d.cfg.DuplicateWindow),
			Metadata: map[string]any{
				"attempts": sessionHits,
			},
		})
	}

	if distinctSessions >= d.cfg.SuspiciousSessionCount {
		d.raise(ctx, evt, &model.Alert{
			Type:     model.AlertSuspiciousBookingPattern,
			Severity: model.SeverityHigh,
			Identity: who,
			Message:  fmt.Sprintf("%s booked %d different sessions within %s", who, distinctSessions, d.cfg.DuplicateWindow),
			Metadata: map[string]any{
				"distinct_sessions": distinctSessions,
			},
		})
	}
}

func (d *Detector) checkLargeGroup(ctx context.Context, evt events.Event) {
	if evt.Spots < d.cfg.LargeGroupThreshold {
		return
	}

	d.raise(ctx, evt, &model.Alert{
		Type:     model.AlertLargeGroupBooking,
		Severity: model.SeverityLow,
		Identity: identity(evt),
		Message:  fmt.Sprintf("Single booking for %d spots", evt.Spots),
		Metadata: map[string]any{
			"spots": evt.Spots,
		},
	})
}

// checkConfirmRejected raises the critical capacity alert whenever the
// ledger turned a confirm away: demand hit the seat cap.
func (d *Detector) checkConfirmRejected(ctx context.Context, evt events.Event) {
	if evt.Reason != "capacity_exceeded" {
		return
	}

	alert := &model.Alert{
		Type:     model.AlertCapacityExceeded,
		Severity: model.SeverityCritical,
		Identity: identity(evt),
		Message:  fmt.Sprintf("Confirm for %d spots rejected at capacity", evt.Spots),
		Metadata: map[string]any{
			"spots":     evt.Spots,
			"intent_id": evt.IntentID,
		},
	}
	if avail := evt.Availability; avail != nil {
		alert.Metadata["current"] = avail.Current
		alert.Metadata["max"] = avail.Max
	}
	d.raise(ctx, evt, alert)
}

func (d *Detector) checkCapacity(ctx context.Context, evt events.Event) {
	avail := evt.Availability
	if avail == nil {
		return
	}

	if avail.Current > avail.Max {
		d.raise(ctx, evt, &model.Alert{
			Type:     model.AlertCapacityExceeded,
			Severity: model.SeverityCritical,
			Message:  fmt.Sprintf("Session holds %d confirmed seats over a capacity of %d", avail.Current, avail.Max),
			Metadata: map[string]any{
				"current": avail.Current,
				"max":     avail.Max,
			},
		})
		return
	}

	if evt.Type == events.TypeBookingConfirmed && avail.Remaining <= d.cfg.NearlyFullThreshold {
		d.raise(ctx, evt, &model.Alert{
			Type:     model.AlertSessionNearlyFull,
			Severity: model.SeverityLow,
			Message:  fmt.Sprintf("Session has %d of %d seats left", avail.Remaining, avail.Max),
			Metadata: map[string]any{
				"remaining": avail.Remaining,
				"max":       avail.Max,
			},
		})
	}
}

func (d *Detector) checkPaymentMismatch(ctx context.Context, evt events.Event) {
	if evt.AmountCents == evt.ExpectedCents {
		return
	}

	d.raise(ctx, evt, &model.Alert{
		Type:     model.AlertPaymentMismatch,
		Severity: model.SeverityHigh,
		Identity: identity(evt),
		Message:  fmt.Sprintf("Recorded payment of %d cents, expected %d", evt.AmountCents, evt.ExpectedCents),
		Metadata: map[string]any{
			"amount_cents":   evt.AmountCents,
			"expected_cents": evt.ExpectedCents,
			"booking_id":     evt.BookingID,
		},
	})
}

func (d *Detector) raise(ctx context.Context, evt events.Event, alert *model.Alert) {
	key := alert.Type + ":" + evt.SessionID + ":" + alert.Identity
	if !d.cooldown.TryAcquire(key) {
		d.cfg.Log.Debug("Alert suppressed by cooldown", "type", alert.Type, "session_id", evt.SessionID, "identity", alert.Identity)
		return
	}

	alert.SessionID = evt.SessionID
	alert.Status = model.AlertUnread

	if err := d.sink.Raise(ctx, alert); err != nil {
		d.cfg.Log.Error("Failed to raise alert", "type", alert.Type, "session_id", evt.SessionID, "error", err)
	}
}
