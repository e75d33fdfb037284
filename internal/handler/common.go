package handler // handler defines http handlers

import (
    "context"
    "errors"
    "fmt"
    "net/http"
    "strconv"
    "strings"
    "time"

    "github.com/go-playground/validator/v10"
    "github.com/labstack/echo/v4"

    "github.com/iliyamo/fairdraw/internal/lottery"
    "github.com/iliyamo/fairdraw/internal/middleware"
    "github.com/iliyamo/fairdraw/internal/model"
    "github.com/iliyamo/fairdraw/internal/repository"
    "github.com/iliyamo/fairdraw/internal/service"
)

// requestTimeout bounds the database work of a single request.
const requestTimeout = 5 * time.Second

// RequestValidator adapts go-playground/validator to echo.Validator.
type RequestValidator struct {
    v *validator.Validate
}

// NewRequestValidator returns a validator suitable for e.Validator.
func NewRequestValidator() *RequestValidator {
    return &RequestValidator{v: validator.New(validator.WithRequiredStructEnabled())}
}

// Validate runs the struct tags of i.
func (rv *RequestValidator) Validate(i interface{}) error {
    return rv.v.Struct(i)
}

// bindValid binds the request body into req and validates it.  On failure it
// writes the 400 response itself and returns false.
func bindValid(c echo.Context, req interface{}) (bool, error) {
    if err := c.Bind(req); err != nil {
        return false, c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
    }
    if err := c.Validate(req); err != nil {
        return false, c.JSON(http.StatusBadRequest, echo.Map{"error": validationMessage(err)})
    }
    return true, nil
}

// validationMessage renders the first failed field as "field: rule".
func validationMessage(err error) string {
    var verrs validator.ValidationErrors
    if errors.As(err, &verrs) && len(verrs) > 0 {
        fe := verrs[0]
        field := strings.ToLower(fe.Field()[:1]) + fe.Field()[1:]
        if fe.Param() != "" {
            return fmt.Sprintf("%s: %s=%s", field, fe.Tag(), fe.Param())
        }
        return fmt.Sprintf("%s: %s", field, fe.Tag())
    }
    return "invalid body"
}

// withTimeout derives the per-request database context.
func withTimeout(c echo.Context) (context.Context, context.CancelFunc) {
    return context.WithTimeout(c.Request().Context(), requestTimeout)
}

// callerID returns the authenticated user id as a uint64.
func callerID(c echo.Context) (uint64, bool) {
    id, err := strconv.ParseUint(middleware.UserID(c), 10, 64)
    if err != nil || id == 0 {
        return 0, false
    }
    return id, true
}

// errorStatus maps domain and persistence errors onto HTTP statuses.
func errorStatus(err error) (int, string) {
    switch {
    case errors.Is(err, repository.ErrEventNotFound):
        return http.StatusNotFound, "event not found"
    case errors.Is(err, repository.ErrForbidden):
        return http.StatusForbidden, "forbidden"
    case errors.Is(err, repository.ErrVersionConflict):
        return http.StatusConflict, "event changed concurrently, try again"
    case errors.Is(err, lottery.ErrAlreadyParticipating),
        errors.Is(err, lottery.ErrWaitlistFull),
        errors.Is(err, lottery.ErrNotWaiting),
        errors.Is(err, service.ErrEventClosed):
        return http.StatusConflict, err.Error()
    case errors.Is(err, lottery.ErrEmptyEntrantID),
        errors.Is(err, lottery.ErrLocationRequired),
        errors.Is(err, model.ErrInvalidLocation),
        errors.Is(err, model.ErrInvalidCapacity),
        errors.Is(err, service.ErrInvalidState),
        errors.Is(err, service.ErrInvalidAudience),
        errors.Is(err, service.ErrEmptyMessage):
        return http.StatusBadRequest, err.Error()
    }
    return http.StatusInternalServerError, "internal error"
}

// fail writes err as a JSON error response.  Unmapped errors are logged.
func fail(c echo.Context, err error) error {
    status, msg := errorStatus(err)
    if status == http.StatusInternalServerError {
        c.Logger().Errorf("%s %s: %v", c.Request().Method, c.Path(), err)
    }
    return c.JSON(status, echo.Map{"error": msg})
}

// reportJSON renders a fan-out report.
func reportJSON(r service.Report) echo.Map {
    return echo.Map{"delivered": r.Delivered(), "failed": r.Failed()}
}
