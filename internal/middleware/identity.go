package middleware

// identity.go holds the accessors for the caller identity stored by JWTAuth.
// Handlers, the rate limiter and the response cache all key on it.

import "github.com/labstack/echo/v4"

// UserID returns the authenticated user id, or "" for anonymous requests.
func UserID(c echo.Context) string {
    if s, ok := c.Get(ctxUserID).(string); ok {
        return s
    }
    return ""
}

// Role returns the authenticated user's role, or "".
func Role(c echo.Context) string {
    if s, ok := c.Get(ctxRole).(string); ok {
        return s
    }
    return ""
}

// keyUser is UserID with a placeholder for anonymous callers, for use in
// Redis keys.
func keyUser(c echo.Context) string {
    if id := UserID(c); id != "" {
        return id
    }
    return "anon"
}
