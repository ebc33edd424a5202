package httpx

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestRateLimiter_WindowReset(t *testing.T) {
	now := time.Date(2025, 8, 23, 0, 0, 0, 0, time.UTC)
	rl := NewRateLimiter(2, time.Minute)
	rl.now = func() time.Time { return now }

	ctx := context.Background()
	for i := 0; i < 2; i++ {
		if ok, _ := rl.Allow(ctx, "a"); !ok {
			t.Fatalf("expected request %d to pass", i)
		}
	}
	if ok, _ := rl.Allow(ctx, "a"); ok {
		t.Fatalf("expected third request to be limited")
	}
	if ok, _ := rl.Allow(ctx, "b"); !ok {
		t.Fatalf("expected other key to pass")
	}

	now = now.Add(time.Minute + time.Second)
	if ok, _ := rl.Allow(ctx, "a"); !ok {
		t.Fatalf("expected window reset")
	}
}

func TestRateLimit_Middleware(t *testing.T) {
	rl := NewRateLimiter(1, time.Minute)
	h := RateLimit(rl, "public", nil, true)(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	for i, want := range []int{http.StatusOK, http.StatusTooManyRequests} {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/public/slots", nil)
		req.RemoteAddr = "10.0.0.1:1234"
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		if rec.Code != want {
			t.Fatalf("request %d: expected %d, got %d", i, want, rec.Code)
		}
	}
}
