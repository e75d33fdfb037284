package router

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/fairdraw/internal/handler"
	"github.com/iliyamo/fairdraw/internal/middleware"
	"github.com/iliyamo/fairdraw/internal/model"
)

// RegisterNotifications registers the caller's inbox and the admin delivery
// log.  Every route requires a valid JWT.
func RegisterNotifications(e *echo.Echo, h *handler.NotificationHandler, jwtSecret string, limit echo.MiddlewareFunc) {
	g := e.Group(
		"/v1/notifications",
		middleware.JWTAuth(jwtSecret),
		middleware.RequireRole(anyRole...),
		limit,
	)
	g.GET("", h.List)
	g.POST("/:id/read", h.MarkRead)

	admin := e.Group(
		"/v1/admin",
		middleware.JWTAuth(jwtSecret),
		middleware.RequireRole(model.RoleAdmin),
		limit,
	)
	admin.GET("/notifications", h.AdminLog)
}
