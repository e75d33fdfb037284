package router // package router defines how HTTP routes are registered for the API

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/fairdraw/internal/handler"
	"github.com/iliyamo/fairdraw/internal/middleware"
	"github.com/iliyamo/fairdraw/internal/model"
)

// anyRole admits every authenticated user.
var anyRole = []string{model.RoleOrganizer, model.RoleEntrant, model.RoleAdmin}

// RegisterRoutes registers routes that do not require authentication.
// Currently it exposes only the health check.
func RegisterRoutes(e *echo.Echo, h *handler.HealthHandler) {
	e.GET("/healthz", h.Check)
}

// RegisterAuth registers the authentication routes.  Token operations live
// under /v1/auth without a session; /v1/me needs a valid access token.
// limit is the rate limiter applied to every route registered here.
func RegisterAuth(e *echo.Echo, a *handler.AuthHandler, jwtSecret string, limit echo.MiddlewareFunc) {
	g := e.Group("/v1/auth", limit)
	g.POST("/register", a.Register)
	g.POST("/login", a.Login)
	// rotates the refresh token
	g.POST("/refresh", a.Refresh)
	g.POST("/refresh-access", a.RefreshAccess)
	// logout accepts either a refresh token in the body or a bearer token,
	// so it sits outside the JWT group
	g.POST("/logout", a.Logout)

	me := e.Group(
		"/v1/me",
		middleware.JWTAuth(jwtSecret),
		middleware.RequireRole(anyRole...),
		limit,
	)
	me.GET("", a.Me)
	me.PATCH("/preferences", a.UpdatePreferences)
}
