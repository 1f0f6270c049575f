package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func TestRateLimiterBlocksAfterBurst(t *testing.T) {
	limiter := NewRateLimiter(map[string]RateLimit{
		"rpc": {RatePerSecond: 1, Burst: 1},
	}, nil)
	handler := limiter.Middleware("rpc")(okHandler())

	req := httptest.NewRequest(http.MethodPost, "/", nil)
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)
	if res.Code != http.StatusOK {
		t.Fatalf("expected first request to succeed, got %d", res.Code)
	}

	res = httptest.NewRecorder()
	handler.ServeHTTP(res, req)
	if res.Code != http.StatusTooManyRequests {
		t.Fatalf("expected second request to be rate limited, got %d", res.Code)
	}
}

func TestRateLimiterSeparatesRoutes(t *testing.T) {
	limiter := NewRateLimiter(map[string]RateLimit{
		"rpc": {RatePerSecond: 1, Burst: 1},
		"ws":  {RatePerSecond: 1, Burst: 1},
	}, nil)
	rpcHandler := limiter.Middleware("rpc")(okHandler())
	wsHandler := limiter.Middleware("ws")(okHandler())

	req := httptest.NewRequest(http.MethodPost, "/", nil)
	res := httptest.NewRecorder()
	rpcHandler.ServeHTTP(res, req)
	if res.Code != http.StatusOK {
		t.Fatalf("expected rpc request to succeed, got %d", res.Code)
	}

	wsReq := httptest.NewRequest(http.MethodGet, "/ws/events", nil)
	wsRes := httptest.NewRecorder()
	wsHandler.ServeHTTP(wsRes, wsReq)
	if wsRes.Code != http.StatusOK {
		t.Fatalf("expected first ws request to succeed, got %d", wsRes.Code)
	}
}

func TestRateLimiterSeparatesClients(t *testing.T) {
	limiter := NewRateLimiter(map[string]RateLimit{
		"rpc": {RatePerSecond: 1, Burst: 1},
	}, nil)
	handler := limiter.Middleware("rpc")(okHandler())

	reqA := httptest.NewRequest(http.MethodPost, "/", nil)
	reqA.Header.Set("X-API-Key", "tenant-A")
	resA := httptest.NewRecorder()
	handler.ServeHTTP(resA, reqA)
	if resA.Code != http.StatusOK {
		t.Fatalf("expected tenant A request to succeed, got %d", resA.Code)
	}

	reqB := httptest.NewRequest(http.MethodPost, "/", nil)
	reqB.Header.Set("X-API-Key", "tenant-B")
	resB := httptest.NewRecorder()
	handler.ServeHTTP(resB, reqB)
	if resB.Code != http.StatusOK {
		t.Fatalf("expected tenant B request to succeed, got %d", resB.Code)
	}
}

func TestRateLimiterUnknownRoutePassesThrough(t *testing.T) {
	limiter := NewRateLimiter(nil, nil)
	handler := limiter.Middleware("missing")(okHandler())
	for i := 0; i < 3; i++ {
		res := httptest.NewRecorder()
		handler.ServeHTTP(res, httptest.NewRequest(http.MethodGet, "/", nil))
		if res.Code != http.StatusOK {
			t.Fatalf("request %d: expected pass through, got %d", i, res.Code)
		}
	}
}

func TestRateLimiterCustomRejectAndRetryAfter(t *testing.T) {
	limiter := NewRateLimiter(map[string]RateLimit{
		"rpc": {RatePerSecond: 0.5, Burst: 1},
	}, nil)
	var gotRetry time.Duration
	limiter.SetRejectHandler(func(w http.ResponseWriter, _ *http.Request, retryAfter time.Duration) {
		gotRetry = retryAfter
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"error":"slow down"}`))
	})
	handler := limiter.Middleware("rpc")(okHandler())

	req := httptest.NewRequest(http.MethodPost, "/", nil)
	handler.ServeHTTP(httptest.NewRecorder(), req)
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)
	if res.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d", res.Code)
	}
	if res.Header().Get("Retry-After") != "2" {
		t.Fatalf("unexpected Retry-After %q", res.Header().Get("Retry-After"))
	}
	if gotRetry != 2*time.Second {
		t.Fatalf("unexpected retry duration %v", gotRetry)
	}
	if res.Body.String() != `{"error":"slow down"}` {
		t.Fatalf("custom reject not used: %s", res.Body.String())
	}
}
