package handler

import (
	"encoding/json"
	"net/http"

	"coursebook/internal/alerts/repository"
	"coursebook/internal/alerts/service"
	apperrors "coursebook/pkg/errors"
	httputil "coursebook/pkg/http"
	"coursebook/pkg/logger"

	"github.com/julienschmidt/httprouter"
)

type AlertHandler struct {
	service service.AlertService
	log     *logger.Logger
}

func NewAlertHandler(service service.AlertService, log *logger.Logger) *AlertHandler {
	return &AlertHandler{
		service: service,
		log:     log,
	}
}

func (h *AlertHandler) GetAll(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	limit, offset, err := httputil.ExtractLimitOffset(r)
	if err != nil {
		if writeErr := httputil.WriteError(w, err); writeErr != nil {
			h.log.Error("failed to write error response", "handler", "GetAll", "operation", "WriteError", "error", writeErr)
		}
		return
	}

	query := r.URL.Query()
	filter := repository.AlertFilter{
		Status:    query.Get("status"),
		Severity:  query.Get("severity"),
		Type:      query.Get("type"),
		SessionID: query.Get("session_id"),
		Search:    query.Get("search"),
	}

	alerts, total, err := h.service.GetAll(r.Context(), filter, limit, offset)
	if err != nil {
		if writeErr := httputil.WriteError(w, err); writeErr != nil {
			h.log.Error("failed to write error response", "handler", "GetAll", "operation", "WriteError", "error", writeErr)
		}
		return
	}

	if err := httputil.WritePaginated(w, alerts, total, limit, offset); err != nil {
		h.log.Error("failed to write paginated response", "handler", "GetAll", "operation", "WritePaginated", "error", err)
	}
}

func (h *AlertHandler) GetByID(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	alert, err := h.service.GetByID(r.Context(), ps.ByName("id"))
	if err != nil {
		if writeErr := httputil.WriteError(w, err); writeErr != nil {
			h.log.Error("failed to write error response", "handler", "GetByID", "operation", "WriteError", "error", writeErr)
		}
		return
	}

	if err := httputil.WriteSuccess(w, alert); err != nil {
		h.log.Error("failed to write success response", "handler", "GetByID", "operation", "WriteSuccess", "error", err)
	}
}

func (h *AlertHandler) Acknowledge(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	alert, err := h.service.Acknowledge(r.Context(), ps.ByName("id"))
	if err != nil {
		if writeErr := httputil.WriteError(w, err); writeErr != nil {
			h.log.Error("failed to write error response", "handler", "Acknowledge", "operation", "WriteError", "error", writeErr)
		}
		return
	}

	if err := httputil.WriteSuccess(w, alert); err != nil {
		h.log.Error("failed to write success response", "handler", "Acknowledge", "operation", "WriteSuccess", "error", err)
	}
}

// resolveRequest keeps the note as a pointer so an absent field can be told
// apart from an explicitly empty note, which is allowed.
type resolveRequest struct {
	ResolvedBy     string  `json:"resolved_by"`
	ResolutionNote *string `json:"resolution_note"`
}

func (h *AlertHandler) Resolve(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	var req resolveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		if writeErr := httputil.WriteJSON(w, http.StatusBadRequest, httputil.ErrorResponse{
			Error: "Invalid request body",
		}); writeErr != nil {
			h.log.Error("failed to write JSON response", "handler", "Resolve", "operation", "WriteJSON", "error", writeErr)
		}
		return
	}

	if req.ResolutionNote == nil {
		if writeErr := httputil.WriteError(w, apperrors.InvalidInput("resolution_note is required")); writeErr != nil {
			h.log.Error("failed to write error response", "handler", "Resolve", "operation", "WriteError", "error", writeErr)
		}
		return
	}

	alert, err := h.service.Resolve(r.Context(), ps.ByName("id"), req.ResolvedBy, *req.ResolutionNote)
	if err != nil {
		if writeErr := httputil.WriteError(w, err); writeErr != nil {
			h.log.Error("failed to write error response", "handler", "Resolve", "operation", "WriteError", "error", writeErr)
		}
		return
	}

	if err := httputil.WriteSuccess(w, alert); err != nil {
		h.log.Error("failed to write success response", "handler", "Resolve", "operation", "WriteSuccess", "error", err)
	}
}

func (h *AlertHandler) RegisterRoutes(router *httprouter.Router) {
	router.GET("/api/v1/alerts", h.GetAll)
	router.GET("/api/v1/alerts/id/:id", h.GetByID)
	router.POST("/api/v1/alerts/id/:id/acknowledge", h.Acknowledge)
	router.POST("/api/v1/alerts/id/:id/resolve", h.Resolve)
}
