package handler

import (
	"encoding/json"
	"net/http"

	"coursebook/internal/reservations/service"
	"coursebook/internal/reservations/validator"
	httputil "coursebook/pkg/http"
	"coursebook/pkg/logger"

	"github.com/julienschmidt/httprouter"
)

type CancellationHandler struct {
	service service.CancellationService
	log     *logger.Logger
}

func NewCancellationHandler(service service.CancellationService, log *logger.Logger) *CancellationHandler {
	return &CancellationHandler{
		service: service,
		log:     log,
	}
}

func (h *CancellationHandler) Cancel(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	var req validator.CancellationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		if writeErr := httputil.WriteJSON(w, http.StatusBadRequest, httputil.ErrorResponse{
			Error: "Invalid request body",
		}); writeErr != nil {
			h.log.Error("failed to write JSON response", "handler", "Cancel", "operation", "WriteJSON", "error", writeErr)
		}
		return
	}

	report, err := h.service.Cancel(r.Context(), ps.ByName("id"), &req)
	if err != nil {
		if writeErr := httputil.WriteError(w, err); writeErr != nil {
			h.log.Error("failed to write error response", "handler", "Cancel", "operation", "WriteError", "error", writeErr)
		}
		return
	}

	if err := httputil.WriteSuccess(w, report); err != nil {
		h.log.Error("failed to write success response", "handler", "Cancel", "operation", "WriteSuccess", "error", err)
	}
}

func (h *CancellationHandler) GetReport(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	report, err := h.service.GetReport(r.Context(), ps.ByName("id"))
	if err != nil {
		if writeErr := httputil.WriteError(w, err); writeErr != nil {
			h.log.Error("failed to write error response", "handler", "GetReport", "operation", "WriteError", "error", writeErr)
		}
		return
	}

	if err := httputil.WriteSuccess(w, report); err != nil {
		h.log.Error("failed to write success response", "handler", "GetReport", "operation", "WriteSuccess", "error", err)
	}
}
