package middleware

import (
	"time"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/fieldforce/mrtracker/internal/platform/auth"
)

// Logger writes one line per request. Errors are handed to the echo error
// handler first so the logged status is the one the client received.
func Logger(logger zerolog.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)
			if err != nil {
				c.Error(err)
			}

			res := c.Response()
			evt := logger.WithLevel(levelFor(res.Status))
			if err != nil {
				evt = evt.Err(err)
			}
			if uid := auth.UserIDFromContext(c.Request().Context()); uid != 0 {
				evt = evt.Int64("user_id", uid)
			}
			evt.Str("request_id", RequestIDFrom(c)).
				Str("method", c.Request().Method).
				Str("path", c.Request().URL.Path).
				Str("route", c.Path()).
				Int("status", res.Status).
				Int64("bytes_out", res.Size).
				Dur("latency", time.Since(start)).
				Str("remote_ip", c.RealIP()).
				Msg("request")
			return err
		}
	}
}

func levelFor(status int) zerolog.Level {
	switch {
	case status >= 500:
		return zerolog.ErrorLevel
	case status >= 400:
		return zerolog.WarnLevel
	default:
		return zerolog.InfoLevel
	}
}
