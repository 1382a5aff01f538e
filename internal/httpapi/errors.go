package httpapi

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/archivecast/podgen/internal/apperr"
)

// errorEnvelope is the uniform error body (§6.1: "{error, message?}").
type errorEnvelope struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

// statusFor maps an apperr.Code to its HTTP status. This is the sole place
// in the module that performs that mapping (§4.9).
func statusFor(code apperr.Code) int {
	switch code {
	case apperr.CodeInput:
		return http.StatusBadRequest
	case apperr.CodeNotFound:
		return http.StatusNotFound
	case apperr.CodeUnauthorized:
		return http.StatusUnauthorized
	case apperr.CodeRateLimited:
		return http.StatusTooManyRequests
	case apperr.CodeUpstreamFailure, apperr.CodeTimeout:
		return http.StatusServiceUnavailable
	case apperr.CodeStore:
		return http.StatusInternalServerError
	default:
		return http.StatusInternalServerError
	}
}

// respondError writes the uniform error envelope for any error returned by
// a component call. Typed apperr.Errors map to their status and surface
// their message; anything else is an unclassified internal error.
func respondError(c echo.Context, err error) error {
	if appErr, ok := apperr.As(err); ok {
		status := statusFor(appErr.Code)
		return c.JSON(status, errorEnvelope{Error: string(appErr.Code), Message: appErr.Message})
	}
	return c.JSON(http.StatusInternalServerError, errorEnvelope{Error: "internal_error", Message: err.Error()})
}
