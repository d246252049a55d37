package httpmiddleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func requestFrom(addr string) *http.Request {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = addr
	return req
}

func TestRateLimit_UnderLimit(t *testing.T) {
	handler := RateLimit(RateLimitConfig{Max: 5, Window: time.Minute})(okHandler())

	for i := range 5 {
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, requestFrom("192.168.1.1:12345"))

		assert.Equal(t, http.StatusOK, w.Code, "request %d should pass", i+1)
		assert.Equal(t, "5", w.Header().Get("X-RateLimit-Limit"))
		assert.Equal(t, 4-i, mustAtoi(t, w.Header().Get("X-RateLimit-Remaining")))
	}
}

func TestRateLimit_OverLimit(t *testing.T) {
	handler := RateLimit(RateLimitConfig{Max: 2, Window: time.Minute})(okHandler())

	for range 2 {
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, requestFrom("10.0.0.1:9999"))
		require.Equal(t, http.StatusOK, w.Code)
	}

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, requestFrom("10.0.0.1:9999"))

	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))
	assert.Equal(t, "0", w.Header().Get("X-RateLimit-Remaining"))
	// One token refills every 30s.
	retryAfter := mustAtoi(t, w.Header().Get("Retry-After"))
	assert.Greater(t, retryAfter, 0)
	assert.LessOrEqual(t, retryAfter, 30)

	var body map[string]any
	require.NoError(t, json.NewDecoder(w.Body).Decode(&body))
	assert.Equal(t, float64(429), body["code"])
	assert.Equal(t, "rate limit exceeded", body["message"])
}

func TestRateLimit_DifferentIPs(t *testing.T) {
	handler := RateLimit(RateLimitConfig{Max: 1, Window: time.Minute})(okHandler())

	w1 := httptest.NewRecorder()
	handler.ServeHTTP(w1, requestFrom("10.0.0.1:1234"))
	assert.Equal(t, http.StatusOK, w1.Code)

	w2 := httptest.NewRecorder()
	handler.ServeHTTP(w2, requestFrom("10.0.0.2:1234"))
	assert.Equal(t, http.StatusOK, w2.Code)

	w3 := httptest.NewRecorder()
	handler.ServeHTTP(w3, requestFrom("10.0.0.1:5678"))
	assert.Equal(t, http.StatusTooManyRequests, w3.Code)
}

func TestRateLimit_CustomKeyFunc(t *testing.T) {
	handler := RateLimit(RateLimitConfig{
		Max:    1,
		Window: time.Minute,
		KeyFunc: func(r *http.Request) string {
			return r.PathValue("storeID")
		},
	})(okHandler())

	mux := http.NewServeMux()
	mux.Handle("GET /stores/{storeID}", handler)

	do := func(path string) int {
		w := httptest.NewRecorder()
		mux.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
		return w.Code
	}

	assert.Equal(t, http.StatusOK, do("/stores/a"))
	assert.Equal(t, http.StatusTooManyRequests, do("/stores/a"))
	assert.Equal(t, http.StatusOK, do("/stores/b"))
}

func TestRateLimit_Refill(t *testing.T) {
	rl := newRateLimiter(RateLimitConfig{Max: 2, Window: time.Second})
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

	_, _, ok := rl.allow("k", now)
	require.True(t, ok)
	_, _, ok = rl.allow("k", now)
	require.True(t, ok)

	_, retryAfter, ok := rl.allow("k", now)
	require.False(t, ok)
	assert.InDelta(t, 500*time.Millisecond, retryAfter, float64(time.Millisecond))

	_, _, ok = rl.allow("k", now.Add(500*time.Millisecond))
	assert.True(t, ok)
}

func TestRateLimit_Cleanup(t *testing.T) {
	rl := newRateLimiter(RateLimitConfig{Max: 1, Window: time.Minute})
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

	rl.allow("old", now)
	rl.allow("fresh", now.Add(50*time.Second))

	rl.cleanup(now.Add(90 * time.Second))

	assert.NotContains(t, rl.entries, "old")
	assert.Contains(t, rl.entries, "fresh")
}

func TestClientIP(t *testing.T) {
	tests := []struct {
		name      string
		headers   map[string]string
		remote    string
		want      string
		forwarded string
	}{
		{name: "remote addr", remote: "192.168.1.1:4444", want: "192.168.1.1", forwarded: "192.168.1.1"},
		{
			name:      "x-forwarded-for first entry",
			headers:   map[string]string{"X-Forwarded-For": "203.0.113.50, 70.41.3.18"},
			remote:    "192.168.1.1:4444",
			want:      "192.168.1.1",
			forwarded: "203.0.113.50",
		},
		{
			name:      "x-real-ip",
			headers:   map[string]string{"X-Real-IP": "198.51.100.7"},
			remote:    "192.168.1.1:4444",
			want:      "192.168.1.1",
			forwarded: "198.51.100.7",
		},
		{
			name:      "empty first forwarded entry",
			headers:   map[string]string{"X-Forwarded-For": " , 70.41.3.18"},
			remote:    "192.168.1.1:4444",
			want:      "192.168.1.1",
			forwarded: "192.168.1.1",
		},
		{name: "remote without port", remote: "unix", want: "unix", forwarded: "unix"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := requestFrom(tt.remote)
			for k, v := range tt.headers {
				req.Header.Set(k, v)
			}
			assert.Equal(t, tt.want, ClientIP(req))
			assert.Equal(t, tt.forwarded, ForwardedClientIP(req))
		})
	}
}

func TestRateLimit_IgnoresSpoofedForwardedFor(t *testing.T) {
	handler := RateLimit(RateLimitConfig{Max: 1, Window: time.Minute})(okHandler())

	for i, xff := range []string{"203.0.113.1", "203.0.113.2"} {
		req := requestFrom("10.0.0.1:1234")
		req.Header.Set("X-Forwarded-For", xff)
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, req)

		want := http.StatusOK
		if i > 0 {
			want = http.StatusTooManyRequests
		}
		assert.Equal(t, want, w.Code, "request with X-Forwarded-For %s", xff)
	}
}

func TestRateLimit_TrustedForwardedFor(t *testing.T) {
	handler := RateLimit(RateLimitConfig{
		Max:     1,
		Window:  time.Minute,
		KeyFunc: ForwardedClientIP,
	})(okHandler())

	for _, xff := range []string{"203.0.113.1", "203.0.113.2"} {
		req := requestFrom("10.0.0.1:1234")
		req.Header.Set("X-Forwarded-For", xff)
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, req)
		assert.Equal(t, http.StatusOK, w.Code, "request with X-Forwarded-For %s", xff)
	}
}
