package router // router defines how HTTP routes are registered for the API

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/fairdraw/internal/handler"
	"github.com/iliyamo/fairdraw/internal/middleware"
	"github.com/iliyamo/fairdraw/internal/model"
)

// RegisterEvents registers the event endpoints under /v1/events.  Reading
// an event is open to every signed-in user; managing it needs the ORGANIZER
// role (ownership is checked by the service); taking part needs ENTRANT.
// cache is applied to the waitlist map only, the one read that is costly
// and tolerates staleness.  entrantLimit guards the waitlist actions and is
// expected to be keyed per user and event.
func RegisterEvents(e *echo.Echo, h *handler.EventHandler, jwtSecret string, limit, entrantLimit, cache echo.MiddlewareFunc) {
	auth := middleware.JWTAuth(jwtSecret)

	// ---- Shared ----
	g := e.Group("/v1/events", auth, middleware.RequireRole(anyRole...), limit)
	g.GET("/:id", h.Get)
	g.GET("/:id/stream", h.Stream)

	// ---- Organizer ----
	org := e.Group("/v1/events", auth, middleware.RequireRole(model.RoleOrganizer), limit)
	org.GET("", h.List)
	org.POST("", h.Create)
	org.PATCH("/:id/state", h.SetState)
	org.POST("/:id/draw", h.Draw)
	org.POST("/:id/broadcast", h.Broadcast)
	org.GET("/:id/waitlist/map", h.WaitlistMap, cache)

	// ---- Entrant ----
	ent := e.Group("/v1/events", auth, middleware.RequireRole(model.RoleEntrant), entrantLimit)
	ent.POST("/:id/waitlist", h.Join)
	ent.DELETE("/:id/waitlist", h.Leave)
	ent.POST("/:id/accept", h.Accept)
	ent.POST("/:id/decline", h.Decline)
}
