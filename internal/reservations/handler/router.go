package handler

import (
	"github.com/julienschmidt/httprouter"
)

// Router bundles the reservation handlers into one route surface.
type Router struct {
	sessions      *SessionHandler
	intents       *IntentHandler
	cancellations *CancellationHandler
}

func NewRouter(sessions *SessionHandler, intents *IntentHandler, cancellations *CancellationHandler) *Router {
	return &Router{
		sessions:      sessions,
		intents:       intents,
		cancellations: cancellations,
	}
}

func (rt *Router) RegisterRoutes(router *httprouter.Router) {
	router.POST("/api/v1/sessions", rt.sessions.Create)
	router.GET("/api/v1/sessions", rt.sessions.GetAll)
	router.GET("/api/v1/sessions/id/:id", rt.sessions.GetByID)
	router.PATCH("/api/v1/sessions/id/:id/status", rt.sessions.UpdateStatus)
	router.GET("/api/v1/sessions/id/:id/availability", rt.sessions.GetAvailability)
	router.GET("/api/v1/sessions/id/:id/bookings", rt.sessions.ListBookings)
	router.GET("/api/v1/sessions/id/:id/intents", rt.intents.ListBySession)
	router.POST("/api/v1/sessions/id/:id/cancel", rt.cancellations.Cancel)
	router.GET("/api/v1/sessions/id/:id/cancellation", rt.cancellations.GetReport)

	router.POST("/api/v1/intents", rt.intents.Create)
	router.DELETE("/api/v1/intents/id/:id", rt.intents.Cancel)
	router.POST("/api/v1/intents/id/:id/extend", rt.intents.Extend)
	router.POST("/api/v1/intents/id/:id/confirm", rt.intents.Confirm)
}
