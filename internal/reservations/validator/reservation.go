package validator

import (
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"coursebook/pkg/logger"
	"coursebook/pkg/model"

	"github.com/go-playground/validator/v10"
)

type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

func (v ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", v.Field, v.Message)
}

type ValidationErrors []ValidationError

func (v ValidationErrors) Error() string {
	if len(v) == 0 {
		return ""
	}
	var messages []string
	for _, err := range v {
		messages = append(messages, err.Error())
	}
	return fmt.Sprintf("validation failed: %d error(s): [%s]", len(v), strings.Join(messages, "; "))
}

type ReservationValidator struct {
	validate *validator.Validate
	logger   *logger.Logger
}

func NewReservationValidator(log *logger.Logger) *ReservationValidator {
	v := validator.New()

	if err := v.RegisterValidation("cancel_reason", validateCancelReason); err != nil {
		log.Fatal("Failed to register 'cancel_reason' validator",
			"error", err,
		)
	}

	log.Info("Reservation validator initialized successfully")

	return &ReservationValidator{
		validate: v,
		logger:   log,
	}
}

func validateCancelReason(fl validator.FieldLevel) bool {
	return slices.Contains(model.CancellationReasons, fl.Field().String())
}

func (v *ReservationValidator) ValidateSession(session *model.Session) error {
	if err := v.validate.Struct(session); err != nil {
		var validationErrs validator.ValidationErrors
		if errors.As(err, &validationErrs) {
			return v.translateValidationErrors(validationErrs)
		}
		return err
	}

	if session.StartTime.Before(time.Now()) {
		return ValidationErrors{
			ValidationError{
				Field:   "StartTime",
				Message: "start_time cannot be in the past",
			},
		}
	}

	if session.CurrentBookings > session.MaxCapacity {
		return ValidationErrors{
			ValidationError{
				Field:   "CurrentBookings",
				Message: fmt.Sprintf("current_bookings (%d) exceeds max_capacity (%d)", session.CurrentBookings, session.MaxCapacity),
			},
		}
	}

	return nil
}

func (v *ReservationValidator) ValidateIntent(intent *model.BookingIntent) error {
	if err := v.validate.Struct(intent); err != nil {
		var validationErrs validator.ValidationErrors
		if errors.As(err, &validationErrs) {
			return v.translateValidationErrors(validationErrs)
		}
		return err
	}
	return nil
}

func (v *ReservationValidator) ValidateBooking(booking *model.Booking) error {
	if err := v.validate.Struct(booking); err != nil {
		var validationErrs validator.ValidationErrors
		if errors.As(err, &validationErrs) {
			return v.translateValidationErrors(validationErrs)
		}
		return err
	}
	return nil
}

// CancellationRequest is operator input for cancelling a session.
type CancellationRequest struct {
	Reason            string `json:"reason" validate:"required,cancel_reason"`
	Details           string `json:"details" validate:"max=1000"`
	ProcessRefunds    bool   `json:"process_refunds"`
	SendNotifications bool   `json:"send_notifications"`
}

func (v *ReservationValidator) ValidateCancellation(req *CancellationRequest) error {
	if err := v.validate.Struct(req); err != nil {
		var validationErrs validator.ValidationErrors
		if errors.As(err, &validationErrs) {
			return v.translateValidationErrors(validationErrs)
		}
		return err
	}

	if model.ReasonRequiresDetails(req.Reason) && strings.TrimSpace(req.Details) == "" {
		return ValidationErrors{
			ValidationError{
				Field:   "Details",
				Message: fmt.Sprintf("details are required when reason is %q", req.Reason),
			},
		}
	}

	return nil
}

func (v *ReservationValidator) translateValidationErrors(errs validator.ValidationErrors) ValidationErrors {
	var validationErrors ValidationErrors

	for _, err := range errs {
		message := err.Error()

		switch err.Tag() {
		case "required":
			message = fmt.Sprintf("%s is required", err.Field())
		case "min":
			message = fmt.Sprintf("%s must be at least %s", err.Field(), err.Param())
		case "max":
			message = fmt.Sprintf("%s must be at most %s", err.Field(), err.Param())
		case "uuid4":
			message = fmt.Sprintf("%s must be a valid UUID", err.Field())
		case "email":
			message = fmt.Sprintf("%s must be a valid email address", err.Field())
		case "oneof":
			message = fmt.Sprintf("%s must be one of: %s", err.Field(), err.Param())
		case "gtfield":
			message = fmt.Sprintf("%s must be after %s", err.Field(), err.Param())
		case "cancel_reason":
			message = fmt.Sprintf("%s must be one of: %s", err.Field(), strings.Join(model.CancellationReasons, " "))
		}

		validationErrors = append(validationErrors, ValidationError{
			Field:   err.Field(),
			Message: message,
		})
	}

	return validationErrors
}
