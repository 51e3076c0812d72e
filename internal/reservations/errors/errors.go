package errors

import "errors"

var (
	ErrSessionNotFound = errors.New("session not found")

	ErrIntentNotFound = errors.New("booking intent not found")

	ErrBookingNotFound = errors.New("booking not found")

	ErrReportNotFound = errors.New("cancellation report not found")

	ErrCapacityExceeded = errors.New("session capacity exceeded")

	ErrLockHeld = errors.New("session lock held by another request")

	ErrDuplicateRelease = errors.New("seat release already recorded")

	ErrIntentExpired = errors.New("booking intent expired")

	ErrSessionTerminal = errors.New("session is in a terminal state")
)
