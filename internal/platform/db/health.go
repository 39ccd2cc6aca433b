package db

import (
	"context"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/echo/v4"
)

const healthPingTimeout = 3 * time.Second

// PoolUsage is the connection pool section of /health/db.
type PoolUsage struct {
	Open  int32 `json:"open"`
	Idle  int32 `json:"idle"`
	InUse int32 `json:"in_use"`
	Max   int32 `json:"max"`
}

// DBHealth is the body of /health/db.
type DBHealth struct {
	Status    string     `json:"status"`
	LatencyMS int64      `json:"latency_ms"`
	Error     string     `json:"error,omitempty"`
	Pool      *PoolUsage `json:"pool,omitempty"`
}

type pinger interface {
	Ping(ctx context.Context) error
}

// HealthHandler pings the database and reports pool usage. It answers 503
// when the ping fails or times out.
func HealthHandler(pool *pgxpool.Pool) echo.HandlerFunc {
	return healthHandler(pool, func() *PoolUsage {
		st := pool.Stat()
		return &PoolUsage{
			Open:  st.TotalConns(),
			Idle:  st.IdleConns(),
			InUse: st.AcquiredConns(),
			Max:   st.MaxConns(),
		}
	})
}

func healthHandler(p pinger, usage func() *PoolUsage) echo.HandlerFunc {
	return func(c echo.Context) error {
		ctx, cancel := context.WithTimeout(c.Request().Context(), healthPingTimeout)
		defer cancel()

		start := time.Now()
		err := p.Ping(ctx)
		out := DBHealth{
			Status:    "ok",
			LatencyMS: time.Since(start).Milliseconds(),
			Pool:      usage(),
		}
		if err != nil {
			out.Status = "unavailable"
			out.Error = err.Error()
			return c.JSON(http.StatusServiceUnavailable, out)
		}
		return c.JSON(http.StatusOK, out)
	}
}
