package model

import "time"

// BookingIntent is a time-boxed soft hold on seats. It reserves capacity
// optimistically; the ledger's confirm is the single source of truth when
// intents race for the last seat. Destroyed on confirm, explicit cancel, or
// expiry sweep.
type BookingIntent struct {
	ID        string    `json:"id,omitempty" bson:"_id,omitempty" validate:"omitempty,uuid4"`
	SessionID string    `json:"session_id" bson:"session_id" validate:"required"`
	HolderKey string    `json:"holder_key" bson:"holder_key" validate:"required,min=3,max=200"`
	Spots     int       `json:"spots" bson:"spots" validate:"required,min=1,max=12"`
	CreatedAt time.Time `json:"created_at" bson:"created_at"`
	ExpiresAt time.Time `json:"expires_at" bson:"expires_at"`
}

// Active reports whether the hold still counts against session capacity.
func (i *BookingIntent) Active(now time.Time) bool {
	return now.Before(i.ExpiresAt)
}
