package middleware

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
)

const defaultBodyLimit = 1 << 20

// BodyLimit rejects request bodies larger than limit with 413. The limit is
// "1M", "512K", "1G" or a bare byte count; anything else means 1 MB.
func BodyLimit(limit string) echo.MiddlewareFunc {
	n := parseLimit(limit)
	inner := echomw.BodyLimitWithConfig(echomw.BodyLimitConfig{
		Limit: strconv.FormatInt(n, 10),
	})

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		h := inner(next)
		return func(c echo.Context) error {
			err := h(c)
			if errors.Is(err, echo.ErrStatusRequestEntityTooLarge) {
				return echo.NewHTTPError(http.StatusRequestEntityTooLarge,
					fmt.Sprintf("Request body exceeds maximum allowed size of %d bytes.", n))
			}
			return err
		}
	}
}

func parseLimit(s string) int64 {
	s = strings.ToUpper(strings.TrimSpace(s))
	s = strings.TrimSuffix(s, "B")

	var unit int64 = 1
	switch {
	case strings.HasSuffix(s, "G"):
		unit = 1 << 30
	case strings.HasSuffix(s, "M"):
		unit = 1 << 20
	case strings.HasSuffix(s, "K"):
		unit = 1 << 10
	}
	if unit > 1 {
		s = s[:len(s)-1]
	}

	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil || n <= 0 {
		return defaultBodyLimit
	}
	return n * unit
}
