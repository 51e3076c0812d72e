package model

import "time"

// Booking statuses.
const (
	BookingPending   = "pending"
	BookingConfirmed = "confirmed"
	BookingCancelled = "cancelled"
	BookingCompleted = "completed"
)

// Payment statuses tracked per booking.
const (
	PaymentUnpaid   = "unpaid"
	PaymentPaid     = "paid"
	PaymentRefunded = "refunded"
)

type Booking struct {
	ID            string    `json:"id,omitempty" bson:"_id,omitempty" validate:"omitempty,uuid4"`
	SessionID     string    `json:"session_id" bson:"session_id" validate:"required"`
	ContactName   string    `json:"contact_name" bson:"contact_name" validate:"required,min=2,max=100"`
	ContactEmail  string    `json:"contact_email" bson:"contact_email" validate:"required,email"`
	Spots         int       `json:"spots" bson:"spots" validate:"required,min=1,max=12"`
	Status        string    `json:"status" bson:"status" validate:"required,oneof=pending confirmed cancelled completed"`
	PaymentStatus string    `json:"payment_status" bson:"payment_status" validate:"required,oneof=unpaid paid refunded"`
	AmountCents   int64     `json:"amount_cents" bson:"amount_cents" validate:"min=0"`
	RemoteIP      string    `json:"remote_ip,omitempty" bson:"remote_ip,omitempty"`
	CreatedAt     time.Time `json:"created_at" bson:"created_at"`
}
