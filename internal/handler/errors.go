package handler

import (
	"errors"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"

	"github.com/iliyamo/auth-user-service/internal/repository"
)

// APIError is an error with a fixed HTTP status and a stable code.
type APIError struct {
	Status  int
	Code    string
	Message string
	Err     error
}

func (e *APIError) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *APIError) Unwrap() error { return e.Err }

func validationError(msg string) *APIError {
	return &APIError{Status: http.StatusBadRequest, Code: "validation_error", Message: msg}
}

// codeForStatus names the error code used for a bare status.
func codeForStatus(status int) string {
	switch status {
	case http.StatusBadRequest, http.StatusRequestEntityTooLarge, http.StatusUnsupportedMediaType:
		return "validation_error"
	case http.StatusUnauthorized:
		return "unauthorized"
	case http.StatusForbidden:
		return "forbidden"
	case http.StatusNotFound:
		return "not_found"
	case http.StatusMethodNotAllowed:
		return "method_not_allowed"
	case http.StatusConflict:
		return "conflict"
	case http.StatusServiceUnavailable:
		return "unavailable"
	}
	if status >= 500 {
		return "internal_error"
	}
	return "bad_request"
}

// toAPIError maps any error returned by a handler onto the taxonomy.
func toAPIError(err error) *APIError {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr
	}
	switch {
	case errors.Is(err, repository.ErrUserNotFound):
		return &APIError{Status: http.StatusNotFound, Code: "not_found", Message: "user not found", Err: err}
	case errors.Is(err, repository.ErrEmailExists):
		return &APIError{Status: http.StatusConflict, Code: "email_exists", Message: "a user with this email already exists", Err: err}
	case errors.Is(err, repository.ErrGoogleIDTaken):
		return &APIError{Status: http.StatusConflict, Code: "conflict", Message: "google account already linked to another user", Err: err}
	case errors.Is(err, repository.ErrInvalidSort),
		errors.Is(err, repository.ErrInvalidFilter),
		errors.Is(err, repository.ErrInvalidUser):
		return &APIError{Status: http.StatusBadRequest, Code: "validation_error", Message: err.Error(), Err: err}
	}
	var he *echo.HTTPError
	if errors.As(err, &he) {
		msg := http.StatusText(he.Code)
		if s, ok := he.Message.(string); ok && s != "" {
			msg = s
		}
		return &APIError{Status: he.Code, Code: codeForStatus(he.Code), Message: msg, Err: err}
	}
	return &APIError{Status: http.StatusInternalServerError, Code: "internal_error", Message: "internal server error", Err: err}
}

// ErrorHandler renders every error as {error, message}.  Responses under
// /api/auth also carry success:false.  Server errors are logged with the
// request id; clients only see a generic message.
func ErrorHandler(log logrus.FieldLogger) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}
		apiErr := toAPIError(err)
		if apiErr.Status >= 500 {
			log.WithError(err).WithFields(logrus.Fields{
				"request_id": c.Response().Header().Get(echo.HeaderXRequestID),
				"method":     c.Request().Method,
				"uri":        c.Request().RequestURI,
			}).Error("request failed")
		}

		body := echo.Map{"error": apiErr.Code, "message": apiErr.Message}
		if strings.HasPrefix(c.Request().URL.Path, "/api/auth") {
			body["success"] = false
		}
		var werr error
		if c.Request().Method == http.MethodHead {
			werr = c.NoContent(apiErr.Status)
		} else {
			werr = c.JSON(apiErr.Status, body)
		}
		if werr != nil {
			log.WithError(werr).Warn("write error response")
		}
	}
}
