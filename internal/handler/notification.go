package handler // handler defines http handlers

import (
    "net/http"
    "strconv"

    "github.com/labstack/echo/v4"

    "github.com/iliyamo/fairdraw/internal/middleware"
    "github.com/iliyamo/fairdraw/internal/repository"
)

// NotificationHandler exposes entrant inboxes and the admin delivery log.
type NotificationHandler struct {
    Inbox *repository.InboxRepo
    Log   *repository.NotificationLogRepo
}

// NewNotificationHandler wires the inbox and log repositories.
func NewNotificationHandler(inbox *repository.InboxRepo, log *repository.NotificationLogRepo) *NotificationHandler {
    return &NotificationHandler{Inbox: inbox, Log: log}
}

// List returns the caller's inbox in delivery order.
func (h *NotificationHandler) List(c echo.Context) error {
    ctx, cancel := withTimeout(c)
    defer cancel()

    items, err := h.Inbox.List(ctx, middleware.UserID(c))
    if err != nil {
        return fail(c, err)
    }
    unread := 0
    for _, n := range items {
        if !n.Read {
            unread++
        }
    }
    return c.JSON(http.StatusOK, echo.Map{"items": items, "unread": unread})
}

// MarkRead flags one of the caller's notifications as read.
func (h *NotificationHandler) MarkRead(c echo.Context) error {
    ctx, cancel := withTimeout(c)
    defer cancel()

    found, err := h.Inbox.MarkRead(ctx, middleware.UserID(c), c.Param("id"))
    if err != nil {
        return fail(c, err)
    }
    if !found {
        return c.JSON(http.StatusNotFound, echo.Map{"error": "notification not found"})
    }
    return c.NoContent(http.StatusNoContent)
}

// AdminLog lists recent deliveries, newest first.  ?limit caps the page.
func (h *NotificationHandler) AdminLog(c echo.Context) error {
    limit := 0
    if s := c.QueryParam("limit"); s != "" {
        n, err := strconv.Atoi(s)
        if err != nil || n <= 0 {
            return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid limit"})
        }
        limit = n
    }
    ctx, cancel := withTimeout(c)
    defer cancel()

    entries, err := h.Log.List(ctx, limit)
    if err != nil {
        return fail(c, err)
    }
    return c.JSON(http.StatusOK, echo.Map{"items": entries})
}
