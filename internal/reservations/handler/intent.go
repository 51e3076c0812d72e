package handler

import (
	"encoding/json"
	"net"
	"net/http"

	"coursebook/internal/reservations/service"
	httputil "coursebook/pkg/http"
	"coursebook/pkg/logger"
	"coursebook/pkg/model"

	"github.com/julienschmidt/httprouter"
)

type IntentHandler struct {
	service service.IntentService
	log     *logger.Logger
}

func NewIntentHandler(service service.IntentService, log *logger.Logger) *IntentHandler {
	return &IntentHandler{
		service: service,
		log:     log,
	}
}

func (h *IntentHandler) Create(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	var intent model.BookingIntent
	if err := json.NewDecoder(r.Body).Decode(&intent); err != nil {
		if writeErr := httputil.WriteJSON(w, http.StatusBadRequest, httputil.ErrorResponse{
			Error: "Invalid request body",
		}); writeErr != nil {
			h.log.Error("failed to write JSON response", "handler", "Create", "operation", "WriteJSON", "error", writeErr)
		}
		return
	}

	if err := h.service.Create(r.Context(), &intent); err != nil {
		if writeErr := httputil.WriteError(w, err); writeErr != nil {
			h.log.Error("failed to write error response", "handler", "Create", "operation", "WriteError", "error", writeErr)
		}
		return
	}

	if err := httputil.WriteCreated(w, intent); err != nil {
		h.log.Error("failed to write created response", "handler", "Create", "operation", "WriteCreated", "error", err)
	}
}

func (h *IntentHandler) Cancel(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	if err := h.service.Cancel(r.Context(), ps.ByName("id")); err != nil {
		if writeErr := httputil.WriteError(w, err); writeErr != nil {
			h.log.Error("failed to write error response", "handler", "Cancel", "operation", "WriteError", "error", writeErr)
		}
		return
	}

	httputil.WriteNoContent(w)
}

func (h *IntentHandler) Extend(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	intent, err := h.service.Extend(r.Context(), ps.ByName("id"))
	if err != nil {
		if writeErr := httputil.WriteError(w, err); writeErr != nil {
			h.log.Error("failed to write error response", "handler", "Extend", "operation", "WriteError", "error", writeErr)
		}
		return
	}

	if err := httputil.WriteSuccess(w, intent); err != nil {
		h.log.Error("failed to write success response", "handler", "Extend", "operation", "WriteSuccess", "error", err)
	}
}

func (h *IntentHandler) ListBySession(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	intents, err := h.service.GetActiveBySession(r.Context(), ps.ByName("id"))
	if err != nil {
		if writeErr := httputil.WriteError(w, err); writeErr != nil {
			h.log.Error("failed to write error response", "handler", "ListBySession", "operation", "WriteError", "error", writeErr)
		}
		return
	}

	if err := httputil.WriteSuccess(w, intents); err != nil {
		h.log.Error("failed to write success response", "handler", "ListBySession", "operation", "WriteSuccess", "error", err)
	}
}

type confirmRequest struct {
	ContactName  string `json:"contact_name"`
	ContactEmail string `json:"contact_email"`
	AmountCents  int64  `json:"amount_cents"`
}

func (h *IntentHandler) Confirm(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	var req confirmRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		if writeErr := httputil.WriteJSON(w, http.StatusBadRequest, httputil.ErrorResponse{
			Error: "Invalid request body",
		}); writeErr != nil {
			h.log.Error("failed to write JSON response", "handler", "Confirm", "operation", "WriteJSON", "error", writeErr)
		}
		return
	}

	booking := &model.Booking{
		ContactName:  req.ContactName,
		ContactEmail: req.ContactEmail,
		AmountCents:  req.AmountCents,
		RemoteIP:     remoteIP(r),
	}

	booking, err := h.service.ConfirmBooking(r.Context(), ps.ByName("id"), booking)
	if err != nil {
		if writeErr := httputil.WriteError(w, err); writeErr != nil {
			h.log.Error("failed to write error response", "handler", "Confirm", "operation", "WriteError", "error", writeErr)
		}
		return
	}

	if err := httputil.WriteCreated(w, booking); err != nil {
		h.log.Error("failed to write created response", "handler", "Confirm", "operation", "WriteCreated", "error", err)
	}
}

func remoteIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
