package httpx

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func doRequest(h http.Handler, remoteAddr string, headers map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest("GET", "/", nil)
	req.RemoteAddr = remoteAddr
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestRateLimit_BlocksAfterBurst(t *testing.T) {
	h := Chain(okHandler(), RateLimitByIP(RateLimitConfig{
		RequestsPerWindow: 3,
		Window:            time.Minute,
		Burst:             3,
	}))

	for i := range 3 {
		rec := doRequest(h, "192.0.2.1:1000", nil)
		require.Equal(t, http.StatusOK, rec.Code, "request %d should pass", i)
	}

	rec := doRequest(h, "192.0.2.1:1000", nil)
	require.Equal(t, http.StatusTooManyRequests, rec.Code)
	require.NotEmpty(t, rec.Header().Get("Retry-After"))
	require.Equal(t, "3", rec.Header().Get("X-RateLimit-Limit"))
}

func TestRateLimit_KeysAreIndependent(t *testing.T) {
	h := Chain(okHandler(), RateLimitByIP(RateLimitConfig{
		RequestsPerWindow: 1,
		Window:            time.Minute,
		Burst:             1,
	}))

	require.Equal(t, http.StatusOK, doRequest(h, "192.0.2.1:1000", nil).Code)
	require.Equal(t, http.StatusTooManyRequests, doRequest(h, "192.0.2.1:1001", nil).Code)

	// a different IP has its own bucket
	require.Equal(t, http.StatusOK, doRequest(h, "192.0.2.2:1000", nil).Code)
}

func TestIPKeyExtractor(t *testing.T) {
	tests := []struct {
		name       string
		remoteAddr string
		headers    map[string]string
		want       string
	}{
		{"plain remote addr", "192.0.2.1:1000", nil, "192.0.2.1"},
		{"x-forwarded-for wins", "10.0.0.1:1000",
			map[string]string{"X-Forwarded-For": "203.0.113.9, 10.0.0.1"}, "203.0.113.9"},
		{"x-real-ip fallback", "10.0.0.1:1000",
			map[string]string{"X-Real-IP": "203.0.113.9"}, "203.0.113.9"},
		{"no port", "192.0.2.1", nil, "192.0.2.1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest("GET", "/", nil)
			req.RemoteAddr = tt.remoteAddr
			for k, v := range tt.headers {
				req.Header.Set(k, v)
			}
			require.Equal(t, tt.want, IPKeyExtractor(req))
		})
	}
}

func TestChain_Order(t *testing.T) {
	var order []string
	tag := func(name string) Middleware {
		return func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				order = append(order, name)
				next.ServeHTTP(w, r)
			})
		}
	}

	h := Chain(okHandler(), tag("outer"), tag("inner"))
	doRequest(h, "192.0.2.1:1000", nil)

	require.Equal(t, []string{"outer", "inner"}, order)
}
