package handler // handler defines http handlers

import (
    "context"
    "encoding/json"
    "fmt"
    "net/http"
    "strconv"
    "strings"
    "time"

    "github.com/labstack/echo/v4"

    "github.com/iliyamo/fairdraw/internal/lottery"
    "github.com/iliyamo/fairdraw/internal/middleware"
    "github.com/iliyamo/fairdraw/internal/model"
    "github.com/iliyamo/fairdraw/internal/service"
)

// EventSubscriber streams snapshots of an event as it changes.
type EventSubscriber interface {
    Subscribe(ctx context.Context, id string) (<-chan *model.Event, func())
}

// EventHandler serves organizer and entrant event endpoints.
type EventHandler struct {
    Svc  *service.LotteryService
    Feed EventSubscriber // nil disables the stream endpoint
}

// NewEventHandler constructs an EventHandler and panics if svc is nil.
func NewEventHandler(svc *service.LotteryService, feed EventSubscriber) *EventHandler {
    if svc == nil {
        panic("nil service passed to NewEventHandler")
    }
    return &EventHandler{Svc: svc, Feed: feed}
}

// ----- DTOs -----

type createEventReq struct {
    Title            string `json:"title" validate:"required,max=255"`
    Description      string `json:"description" validate:"max=4000"`
    Capacity         *int   `json:"capacity" validate:"required,min=0"`
    WaitingListLimit *int   `json:"waiting_list_limit" validate:"omitempty,min=0"`
    Geolocation      bool   `json:"geolocation"`
}

type stateReq struct {
    State string `json:"state" validate:"required,oneof=DRAFT PUBLISHED CLOSED"`
}

type broadcastReq struct {
    Audience string `json:"audience" validate:"required,oneof=WAITING INVITED ENROLLED CANCELLED"`
    Title    string `json:"title" validate:"max=255"`
    Message  string `json:"message" validate:"required,max=2000"`
}

type joinReq struct {
    Lat *float64 `json:"lat" validate:"required_with=Lng"`
    Lng *float64 `json:"lng" validate:"required_with=Lat"`
}

type counts struct {
    Waiting   int `json:"waiting"`
    Invited   int `json:"invited"`
    Enrolled  int `json:"enrolled"`
    Cancelled int `json:"cancelled"`
}

// eventView is what a caller sees of an event.  Membership lists are only
// shown to the owning organizer; everyone else gets counts and their own
// standing.
type eventView struct {
    ID               string         `json:"id"`
    Title            string         `json:"title"`
    Description      string         `json:"description,omitempty"`
    OrganizerID      string         `json:"organizer_id"`
    State            string         `json:"state"`
    Capacity         int            `json:"capacity"`
    WaitingListLimit *int           `json:"waiting_list_limit,omitempty"`
    Geolocation      bool           `json:"geolocation"`
    Counts           counts         `json:"counts"`
    Status           lottery.Status `json:"status"`
    JoinButton       lottery.Button `json:"join_button"`
    Version          uint64         `json:"version"`
    Waiting          []string       `json:"waiting,omitempty"`
    Invited          []string       `json:"invited,omitempty"`
    Enrolled         []string       `json:"enrolled,omitempty"`
    Cancelled        []string       `json:"cancelled,omitempty"`
}

func viewOf(ev *model.Event, caller string) eventView {
    ev.EnsureSets()
    v := eventView{
        ID:               ev.ID,
        Title:            ev.Title,
        Description:      ev.Description,
        OrganizerID:      ev.OrganizerID,
        State:            string(ev.State),
        Capacity:         ev.Capacity,
        WaitingListLimit: ev.WaitingListLimit,
        Geolocation:      ev.Geolocation,
        Counts: counts{
            Waiting:   ev.Waiting.Len(),
            Invited:   ev.Invited.Len(),
            Enrolled:  ev.Enrolled.Len(),
            Cancelled: ev.Cancelled.Len(),
        },
        Status:     lottery.StatusOf(ev, caller),
        JoinButton: lottery.JoinButton(ev, caller),
        Version:    ev.Version,
    }
    if caller != "" && caller == ev.OrganizerID {
        v.Waiting = ev.Waiting.Sorted()
        v.Invited = ev.Invited.Sorted()
        v.Enrolled = ev.Enrolled.Sorted()
        v.Cancelled = ev.Cancelled.Sorted()
    }
    return v
}

// Create registers a new event owned by the caller.
func (h *EventHandler) Create(c echo.Context) error {
    var req createEventReq
    if ok, err := bindValid(c, &req); !ok {
        return err
    }
    ctx, cancel := withTimeout(c)
    defer cancel()

    ev, err := h.Svc.CreateEvent(ctx, middleware.UserID(c), service.EventInput{
        Title:            strings.TrimSpace(req.Title),
        Description:      req.Description,
        Capacity:         *req.Capacity,
        WaitingListLimit: req.WaitingListLimit,
        Geolocation:      req.Geolocation,
    })
    if err != nil {
        return fail(c, err)
    }
    return c.JSON(http.StatusCreated, viewOf(ev, middleware.UserID(c)))
}

// Get returns the event together with the caller's status and join button.
func (h *EventHandler) Get(c echo.Context) error {
    ctx, cancel := withTimeout(c)
    defer cancel()

    ev, err := h.Svc.GetEvent(ctx, c.Param("id"))
    if err != nil {
        return fail(c, err)
    }
    return c.JSON(http.StatusOK, viewOf(ev, middleware.UserID(c)))
}

type eventSummary struct {
    ID        string    `json:"id"`
    Title     string    `json:"title"`
    State     string    `json:"state"`
    Capacity  int       `json:"capacity"`
    Version   uint64    `json:"version"`
    CreatedAt time.Time `json:"created_at"`
}

// List returns the caller's own events without membership.
func (h *EventHandler) List(c echo.Context) error {
    ctx, cancel := withTimeout(c)
    defer cancel()

    evs, err := h.Svc.ListEvents(ctx, middleware.UserID(c))
    if err != nil {
        return fail(c, err)
    }
    items := make([]eventSummary, 0, len(evs))
    for _, ev := range evs {
        items = append(items, eventSummary{ev.ID, ev.Title, string(ev.State), ev.Capacity, ev.Version, ev.CreatedAt})
    }
    return c.JSON(http.StatusOK, echo.Map{"items": items})
}

// SetState publishes or closes an event.
func (h *EventHandler) SetState(c echo.Context) error {
    var req stateReq
    if err := c.Bind(&req); err != nil {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
    }
    req.State = strings.ToUpper(strings.TrimSpace(req.State))
    if err := c.Validate(&req); err != nil {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": validationMessage(err)})
    }
    ctx, cancel := withTimeout(c)
    defer cancel()

    ev, err := h.Svc.SetState(ctx, middleware.UserID(c), c.Param("id"), model.EventState(req.State))
    if err != nil {
        return fail(c, err)
    }
    return c.JSON(http.StatusOK, viewOf(ev, middleware.UserID(c)))
}

// Draw runs the lottery and reports who was notified.
func (h *EventHandler) Draw(c echo.Context) error {
    ctx, cancel := withTimeout(c)
    defer cancel()

    sum, err := h.Svc.Draw(ctx, middleware.UserID(c), c.Param("id"))
    if err != nil {
        return fail(c, err)
    }
    return c.JSON(http.StatusOK, echo.Map{
        "outcome":       sum.Result.Outcome,
        "winners":       nonNil(sum.Result.Winners),
        "invited":       nonNil(sum.Result.Invited),
        "notifications": reportJSON(sum.Report),
        "event":         viewOf(sum.Event, middleware.UserID(c)),
    })
}

// Broadcast sends an organizer message to one audience of the event.
func (h *EventHandler) Broadcast(c echo.Context) error {
    var req broadcastReq
    if err := c.Bind(&req); err != nil {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
    }
    req.Audience = strings.ToUpper(strings.TrimSpace(req.Audience))
    if err := c.Validate(&req); err != nil {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": validationMessage(err)})
    }
    ctx, cancel := withTimeout(c)
    defer cancel()

    sum, err := h.Svc.Broadcast(ctx, middleware.UserID(c), c.Param("id"), service.Audience(req.Audience), req.Title, req.Message)
    if err != nil {
        return fail(c, err)
    }
    out := reportJSON(sum.Report)
    out["skipped"] = sum.Skipped
    return c.JSON(http.StatusOK, out)
}

// WaitlistMap returns the bucketed join locations of the event.  Entrants
// keep their location after being drawn or cancelled, so they still count.
func (h *EventHandler) WaitlistMap(c echo.Context) error {
    resolution := -1
    if s := c.QueryParam("resolution"); s != "" {
        n, err := strconv.Atoi(s)
        if err != nil || n < 0 || n > 6 {
            return c.JSON(http.StatusBadRequest, echo.Map{"error": "resolution must be 0..6"})
        }
        resolution = n
    }
    ctx, cancel := withTimeout(c)
    defer cancel()

    areas, err := h.Svc.WaitlistMap(ctx, middleware.UserID(c), c.Param("id"), resolution)
    if err != nil {
        return fail(c, err)
    }
    if areas == nil {
        areas = []model.AreaStats{}
    }
    return c.JSON(http.StatusOK, echo.Map{"areas": areas})
}

// Join puts the caller on the waiting list.  The body is optional and
// carries the caller's location for geolocation events.
func (h *EventHandler) Join(c echo.Context) error {
    var req joinReq
    if c.Request().ContentLength != 0 {
        if ok, err := bindValid(c, &req); !ok {
            return err
        }
    }
    var loc *model.Location
    if req.Lat != nil && req.Lng != nil {
        loc = &model.Location{Lat: *req.Lat, Lng: *req.Lng}
    }
    ctx, cancel := withTimeout(c)
    defer cancel()

    ev, err := h.Svc.Join(ctx, c.Param("id"), middleware.UserID(c), loc)
    if err != nil {
        return fail(c, err)
    }
    return c.JSON(http.StatusOK, viewOf(ev, middleware.UserID(c)))
}

// Leave takes the caller off the waiting list.
func (h *EventHandler) Leave(c echo.Context) error {
    ctx, cancel := withTimeout(c)
    defer cancel()

    ev, err := h.Svc.Leave(ctx, c.Param("id"), middleware.UserID(c))
    if err != nil {
        return fail(c, err)
    }
    return c.JSON(http.StatusOK, viewOf(ev, middleware.UserID(c)))
}

// Accept enrolls the caller if they hold an invitation.
func (h *EventHandler) Accept(c echo.Context) error {
    ctx, cancel := withTimeout(c)
    defer cancel()

    ev, accepted, err := h.Svc.Accept(ctx, c.Param("id"), middleware.UserID(c))
    if err != nil {
        return fail(c, err)
    }
    outcome := "accepted"
    if !accepted {
        outcome = "not_invited"
        if lottery.StatusOf(ev, middleware.UserID(c)) == lottery.StatusEnrolled {
            outcome = "already_enrolled"
        }
    }
    return c.JSON(http.StatusOK, echo.Map{
        "outcome": outcome,
        "event":   viewOf(ev, middleware.UserID(c)),
    })
}

// Decline gives up the caller's invitation; a waiting entrant may take it.
func (h *EventHandler) Decline(c echo.Context) error {
    ctx, cancel := withTimeout(c)
    defer cancel()

    sum, err := h.Svc.Decline(ctx, c.Param("id"), middleware.UserID(c))
    if err != nil {
        return fail(c, err)
    }
    return c.JSON(http.StatusOK, echo.Map{
        "outcome":       sum.Result.Outcome,
        "notifications": reportJSON(sum.Report),
        "event":         viewOf(sum.Event, middleware.UserID(c)),
    })
}

// streamPing keeps idle proxies from closing the stream.
const streamPing = 25 * time.Second

// Stream pushes the caller's view of the event as server-sent events,
// starting with the current state and then once per change.
func (h *EventHandler) Stream(c echo.Context) error {
    if h.Feed == nil {
        return c.JSON(http.StatusServiceUnavailable, echo.Map{"error": "live updates unavailable"})
    }
    id := c.Param("id")
    caller := middleware.UserID(c)
    ctx := c.Request().Context()

    // Subscribe before the first load so no change slips in between.
    updates, stop := h.Feed.Subscribe(ctx, id)
    defer stop()

    loadCtx, cancel := withTimeout(c)
    ev, err := h.Svc.GetEvent(loadCtx, id)
    cancel()
    if err != nil {
        return fail(c, err)
    }

    w := c.Response()
    w.Header().Set(echo.HeaderContentType, "text/event-stream")
    w.Header().Set("Cache-Control", "no-cache")
    w.Header().Set("Connection", "keep-alive")
    w.WriteHeader(http.StatusOK)
    if err := writeSSE(w, viewOf(ev, caller)); err != nil {
        return nil
    }

    ping := time.NewTicker(streamPing)
    defer ping.Stop()
    for {
        select {
        case <-ctx.Done():
            return nil
        case ev, ok := <-updates:
            if !ok {
                return nil
            }
            if err := writeSSE(w, viewOf(ev, caller)); err != nil {
                return nil
            }
        case <-ping.C:
            if _, err := fmt.Fprint(w, ": ping\n\n"); err != nil {
                return nil
            }
            w.Flush()
        }
    }
}

func writeSSE(w *echo.Response, v eventView) error {
    b, err := json.Marshal(v)
    if err != nil {
        return err
    }
    if _, err := fmt.Fprintf(w, "event: event\ndata: %s\n\n", b); err != nil {
        return err
    }
    w.Flush()
    return nil
}

func nonNil(s []string) []string {
    if s == nil {
        return []string{}
    }
    return s
}
