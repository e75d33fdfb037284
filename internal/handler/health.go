package handler // declare the package name; contains HTTP handlers

import (
    "context"
    "database/sql"
    "net/http"
    "time"

    "github.com/labstack/echo/v4"
    "github.com/redis/go-redis/v9"
)

// HealthHandler reports whether the service and its backing stores are up.
// Load balancers only look at the status code: MySQL down is fatal, Redis
// down is reported but tolerated because caching and rate limiting degrade
// to pass-through.
type HealthHandler struct {
    DB    *sql.DB
    Redis *redis.Client // may be nil
}

func NewHealthHandler(db *sql.DB, rdb *redis.Client) *HealthHandler {
    return &HealthHandler{DB: db, Redis: rdb}
}

// Check pings each dependency with a short deadline.
func (h *HealthHandler) Check(c echo.Context) error {
    ctx, cancel := context.WithTimeout(c.Request().Context(), 2*time.Second)
    defer cancel()

    status := http.StatusOK
    out := echo.Map{"status": "ok", "db": "up", "redis": "disabled"}
    if err := h.DB.PingContext(ctx); err != nil {
        status = http.StatusServiceUnavailable
        out["status"], out["db"] = "degraded", "down"
    }
    if h.Redis != nil {
        out["redis"] = "up"
        if err := h.Redis.Ping(ctx).Err(); err != nil {
            out["redis"] = "down"
        }
    }
    return c.JSON(status, out)
}
