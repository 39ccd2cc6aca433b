package middleware

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/fieldforce/mrtracker/internal/platform/apperr"
)

// ErrorResponse is the body of every error response.
type ErrorResponse struct {
	Detail string `json:"detail"`
}

// ErrorHandler renders every handler, middleware and routing error as
// {"detail": "..."}. Errors that are not *echo.HTTPError are classified
// through apperr. 5xx causes are logged and never returned to the client.
func ErrorHandler(logger zerolog.Logger) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}

		var he *echo.HTTPError
		if !errors.As(err, &he) {
			he, _ = apperr.HTTP(err).(*echo.HTTPError)
		}

		code := he.Code
		detail := messageOf(he)
		if code >= http.StatusInternalServerError {
			cause := err
			if he.Internal != nil {
				cause = he.Internal
			}
			logger.Error().Err(cause).Str("request_id", RequestIDFrom(c)).Int("status", code).Msg("request failed")
			detail = "Internal server error"
		}

		var respErr error
		if c.Request().Method == http.MethodHead {
			respErr = c.NoContent(code)
		} else {
			respErr = c.JSON(code, ErrorResponse{Detail: detail})
		}
		if respErr != nil {
			logger.Error().Err(respErr).Msg("write error response")
		}
	}
}

func messageOf(he *echo.HTTPError) string {
	switch m := he.Message.(type) {
	case string:
		return m
	case error:
		return m.Error()
	case nil:
		return http.StatusText(he.Code)
	default:
		return fmt.Sprint(m)
	}
}
