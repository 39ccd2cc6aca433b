package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
)

type fakeClock struct{ t time.Time }

func (f *fakeClock) now() time.Time          { return f.t }
func (f *fakeClock) advance(d time.Duration) { f.t = f.t.Add(d) }

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)}
}

func hit(t *testing.T, mw echo.MiddlewareFunc, ip string) (*httptest.ResponseRecorder, error) {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, "/api/visits/doctor-visits", nil)
	req.RemoteAddr = ip + ":40000"
	rec := httptest.NewRecorder()
	c := echo.New().NewContext(req, rec)
	err := mw(func(c echo.Context) error { return c.NoContent(http.StatusOK) })(c)
	return rec, err
}

func TestRateLimit_BurstThenThrottle(t *testing.T) {
	clock := newFakeClock()
	mw := rateLimit(newLimiter(RateLimitConfig{RequestsPerSecond: 2, BurstSize: 3}, clock.now))

	for i := 0; i < 3; i++ {
		rec, err := hit(t, mw, "10.0.0.1")
		if err != nil {
			t.Fatalf("request %d: unexpected error: %v", i+1, err)
		}
		if got := rec.Header().Get("X-RateLimit-Remaining"); got != []string{"2", "1", "0"}[i] {
			t.Errorf("request %d: remaining = %s", i+1, got)
		}
	}

	rec, err := hit(t, mw, "10.0.0.1")
	he, ok := err.(*echo.HTTPError)
	if !ok || he.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %v", err)
	}
	if rec.Header().Get("Retry-After") != "1" {
		t.Errorf("expected Retry-After 1, got %q", rec.Header().Get("Retry-After"))
	}
	if msg, _ := he.Message.(string); !strings.HasPrefix(msg, "Request was throttled.") {
		t.Errorf("unexpected message %v", he.Message)
	}
	if rec.Header().Get("X-RateLimit-Limit") != "3" {
		t.Errorf("expected limit header 3, got %q", rec.Header().Get("X-RateLimit-Limit"))
	}

	clock.advance(500 * time.Millisecond)
	if _, err := hit(t, mw, "10.0.0.1"); err != nil {
		t.Errorf("expected a refilled token after 500ms, got %v", err)
	}
}

func TestRateLimit_PerClient(t *testing.T) {
	clock := newFakeClock()
	mw := rateLimit(newLimiter(RateLimitConfig{RequestsPerSecond: 1, BurstSize: 1}, clock.now))

	if _, err := hit(t, mw, "10.0.0.1"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := hit(t, mw, "10.0.0.1"); err == nil {
		t.Fatal("expected second request from the same client to be throttled")
	}
	if _, err := hit(t, mw, "10.0.0.2"); err != nil {
		t.Errorf("another client should have its own bucket: %v", err)
	}
}

func TestRateLimit_ZeroRateNeverRefills(t *testing.T) {
	clock := newFakeClock()
	mw := rateLimit(newLimiter(RateLimitConfig{RequestsPerSecond: 0, BurstSize: 1}, clock.now))

	hit(t, mw, "10.0.0.1")
	clock.advance(5 * time.Minute)
	rec, err := hit(t, mw, "10.0.0.1")
	if err == nil {
		t.Fatal("expected throttling with a zero refill rate")
	}
	if rec.Header().Get("Retry-After") != "1" {
		t.Errorf("expected Retry-After 1, got %q", rec.Header().Get("Retry-After"))
	}
}

func TestLimiter_SweepsIdleBuckets(t *testing.T) {
	clock := newFakeClock()
	l := newLimiter(RateLimitConfig{RequestsPerSecond: 1, BurstSize: 5, IdleTTL: time.Minute}, clock.now)

	l.take("10.0.0.1")
	l.take("10.0.0.2")
	clock.advance(30 * time.Second)
	l.take("10.0.0.2")
	if l.size() != 2 {
		t.Fatalf("expected 2 buckets, got %d", l.size())
	}

	clock.advance(40 * time.Second)
	l.take("10.0.0.3")
	if l.size() != 2 {
		t.Errorf("expected the idle bucket to be dropped, got %d buckets", l.size())
	}
}

func TestDefaultRateLimitConfig(t *testing.T) {
	cfg := DefaultRateLimitConfig()
	if cfg.RequestsPerSecond <= 0 || cfg.BurstSize <= 0 || cfg.IdleTTL <= 0 {
		t.Errorf("unexpected defaults %+v", cfg)
	}
}
