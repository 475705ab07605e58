package http

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"

	"github.com/taskmaster/tracker/internal/domain/datewindow"
	"github.com/taskmaster/tracker/internal/domain/entities"
	"github.com/taskmaster/tracker/internal/infrastructure/logger"
)

const contextKeyUser = "user"

// CustomValidator wraps the validator
type CustomValidator struct {
	validator *validator.Validate
}

// NewValidator creates the request validator used by echo
func NewValidator() *CustomValidator {
	return &CustomValidator{validator: validator.New()}
}

// Validate validates structs
func (cv *CustomValidator) Validate(i interface{}) error {
	return cv.validator.Struct(i)
}

// MessageResponse is a plain acknowledgement
type MessageResponse struct {
	Message string `json:"message"`
}

// ErrorResponse is the body of every failed request
type ErrorResponse struct {
	Message string `json:"message"`
	Reason  string `json:"reason,omitempty"`
	Details string `json:"details,omitempty"`
}

// SetCurrentUser stores the authenticated user on the request context
func SetCurrentUser(c echo.Context, user *entities.User) {
	c.Set(contextKeyUser, user)
}

// CurrentUser returns the authenticated user, or nil outside authenticated routes
func CurrentUser(c echo.Context) *entities.User {
	user, _ := c.Get(contextKeyUser).(*entities.User)
	return user
}

// BearerToken extracts the ID token from the Authorization header. Streaming
// clients that cannot set headers may pass it as the token query parameter.
func BearerToken(c echo.Context) string {
	authHeader := c.Request().Header.Get(echo.HeaderAuthorization)
	if token, ok := strings.CutPrefix(authHeader, "Bearer "); ok {
		return strings.TrimSpace(token)
	}
	return c.QueryParam("token")
}

// StatusFor maps an application error to its HTTP status
func StatusFor(err error) int {
	var validationErrs validator.ValidationErrors
	if errors.As(err, &validationErrs) {
		return http.StatusBadRequest
	}

	kind, ok := entities.KindOf(err)
	if !ok {
		return http.StatusInternalServerError
	}
	switch kind {
	case entities.KindValidation:
		return http.StatusBadRequest
	case entities.KindAuth:
		return http.StatusUnauthorized
	case entities.KindNotFound:
		return http.StatusNotFound
	case entities.KindTransport:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// ErrorHandler renders echo and application errors as ErrorResponse bodies
func ErrorHandler(logger *logger.Logger) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		var (
			code = StatusFor(err)
			body = ErrorResponse{Message: http.StatusText(code)}
		)

		var he *echo.HTTPError
		var appErr *entities.Error
		var validationErrs validator.ValidationErrors
		switch {
		case errors.As(err, &he):
			code = he.Code
			body.Message = fmt.Sprint(he.Message)
			if he.Internal != nil {
				err = fmt.Errorf("%v, %v", err, he.Internal)
			}
		case errors.As(err, &validationErrs):
			body.Message = "validation failed"
			body.Details = validationErrs.Error()
		case errors.As(err, &appErr) && code != http.StatusInternalServerError:
			body.Message = appErr.Message
			body.Reason = appErr.Reason
		}

		if code >= http.StatusInternalServerError {
			logger.WithError(err).Errorw("Request failed", "path", c.Request().URL.Path, "status", code)
		}

		if !c.Response().Committed {
			if c.Request().Method == http.MethodHead {
				err = c.NoContent(code)
			} else {
				err = c.JSON(code, body)
			}
			if err != nil {
				logger.Errorw("Error sending response", "error", err)
			}
		}
	}
}

// requestError reports a malformed request body or query
func requestError(op string, err error) error {
	return entities.NewValidationError(op, err)
}

// parseDay reads a "YYYY-MM-DD" parameter as a day in loc, defaulting to today
func parseDay(value string, loc *time.Location, now time.Time) (time.Time, error) {
	if value == "" {
		return datewindow.DayBounds(now.In(loc)).Start, nil
	}
	return datewindow.ParseDateKey(value, loc)
}

// parseMonth reads a "YYYY-MM" parameter, defaulting to the current month
func parseMonth(value string, loc *time.Location, now time.Time) (datewindow.Range, error) {
	if value == "" {
		return datewindow.MonthBounds(now.In(loc)), nil
	}
	month, err := datewindow.ParseMonth(value, loc)
	if err != nil {
		return datewindow.Range{}, err
	}
	return datewindow.MonthBounds(month), nil
}

// parseDateRange reads either month=YYYY-MM or from=YYYY-MM-DD&to=YYYY-MM-DD
func parseDateRange(c echo.Context, loc *time.Location, now time.Time) (datewindow.Range, error) {
	from, to := c.QueryParam("from"), c.QueryParam("to")
	if from == "" && to == "" {
		return parseMonth(c.QueryParam("month"), loc, now)
	}
	if from == "" || to == "" {
		return datewindow.Range{}, errors.New("from and to must be given together")
	}

	start, err := datewindow.ParseDateKey(from, loc)
	if err != nil {
		return datewindow.Range{}, err
	}
	end, err := datewindow.ParseDateKey(to, loc)
	if err != nil {
		return datewindow.Range{}, err
	}
	if end.Before(start) {
		return datewindow.Range{}, errors.New("to must not be before from")
	}
	return datewindow.Range{Start: start, End: datewindow.DayBounds(end).End}, nil
}
