package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/netip"
	"strings"
	"testing"
	"time"

	"github.com/yy184292-glitch/vlp-saas-sub000/internal/logger"
)

var okHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
})

func wrap(mw func(http.Handler) http.Handler) http.Handler {
	return logger.RequestLogging(logger.Discard())(mw(okHandler))
}

func TestSecurityHeaders(t *testing.T) {
	tests := []struct {
		environment string
		wantHSTS    bool
	}{
		{"dev", false},
		{"test", false},
		{"staging", true},
		{"prod", true},
	}
	for _, tt := range tests {
		t.Run(tt.environment, func(t *testing.T) {
			rec := httptest.NewRecorder()
			wrap(SecurityHeaders(tt.environment)).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/admin/x", nil))

			if rec.Header().Get("X-Content-Type-Options") != "nosniff" {
				t.Error("missing X-Content-Type-Options")
			}
			if rec.Header().Get("X-Frame-Options") != "DENY" {
				t.Error("missing X-Frame-Options")
			}
			if got := rec.Header().Get("Strict-Transport-Security") != ""; got != tt.wantHSTS {
				t.Errorf("HSTS present = %v, want %v", got, tt.wantHSTS)
			}
		})
	}
}

func TestRequestSizeLimit(t *testing.T) {
	tests := []struct {
		name       string
		body       string
		wantStatus int
	}{
		{"within limit", "small", http.StatusOK},
		{"at limit", strings.Repeat("x", 10), http.StatusOK},
		{"over limit", strings.Repeat("x", 11), http.StatusRequestEntityTooLarge},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodPost, "/admin/x", strings.NewReader(tt.body))
			wrap(RequestSizeLimit(10)).ServeHTTP(rec, req)

			if rec.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", rec.Code, tt.wantStatus)
			}
			if rec.Header().Get(MaxRequestSizeHeader) != "10" {
				t.Errorf("%s = %q", MaxRequestSizeHeader, rec.Header().Get(MaxRequestSizeHeader))
			}
		})
	}
}

func TestRateLimit(t *testing.T) {
	h := wrap(RateLimit(1, 2))

	var statuses []int
	for i := 0; i < 3; i++ {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/admin/x", nil))
		statuses = append(statuses, rec.Code)
		if rec.Code == http.StatusTooManyRequests && rec.Header().Get("Retry-After") == "" {
			t.Error("429 without Retry-After")
		}
	}

	if statuses[0] != http.StatusOK || statuses[1] != http.StatusOK || statuses[2] != http.StatusTooManyRequests {
		t.Errorf("statuses = %v, want burst of 2 then 429", statuses)
	}

	disabled := wrap(RateLimit(0, 0))
	for i := 0; i < 10; i++ {
		rec := httptest.NewRecorder()
		disabled.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/admin/x", nil))
		if rec.Code != http.StatusOK {
			t.Fatalf("disabled limiter rejected request %d", i)
		}
	}
}

type stubLimiter struct {
	allowed    bool
	retryAfter time.Duration
	err        error
	keys       []string
}

func (s *stubLimiter) Allow(_ context.Context, key string) (bool, time.Duration, error) {
	s.keys = append(s.keys, key)
	return s.allowed, s.retryAfter, s.err
}

func TestClientRateLimit(t *testing.T) {
	tests := []struct {
		name       string
		limiter    *stubLimiter
		wantStatus int
		wantRetry  string
	}{
		{"allowed", &stubLimiter{allowed: true}, http.StatusOK, ""},
		{"denied", &stubLimiter{retryAfter: 1500 * time.Millisecond}, http.StatusTooManyRequests, "2"},
		{"limiter error lets the request through", &stubLimiter{err: errors.New("redis down")}, http.StatusOK, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodGet, "/admin/x", nil)
			req.RemoteAddr = "198.51.100.4:5555"
			wrap(ClientRateLimit(tt.limiter)).ServeHTTP(rec, req)

			if rec.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", rec.Code, tt.wantStatus)
			}
			if got := rec.Header().Get("Retry-After"); got != tt.wantRetry {
				t.Errorf("Retry-After = %q, want %q", got, tt.wantRetry)
			}
			if len(tt.limiter.keys) != 1 || tt.limiter.keys[0] != "198.51.100.4" {
				t.Errorf("limiter keys = %v", tt.limiter.keys)
			}
		})
	}
}

func TestNewCORS(t *testing.T) {
	if _, err := NewCORS([]string{"*"}); err != nil {
		t.Errorf("wildcard: %v", err)
	}
	if _, err := NewCORS([]string{"https://app.example.com"}); err != nil {
		t.Errorf("explicit origin: %v", err)
	}
	if _, err := NewCORS([]string{"not an origin"}); err == nil {
		t.Error("expected an error for an invalid origin")
	}
}

func TestParseTrustedProxies(t *testing.T) {
	got, err := ParseTrustedProxies([]string{"10.1.2.3/8", " 192.0.2.9 ", "", "2001:db8::1"})
	if err != nil {
		t.Fatal(err)
	}
	want := []string{"10.0.0.0/8", "192.0.2.9/32", "2001:db8::1/128"}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i].String() != want[i] {
			t.Errorf("prefix %d = %s, want %s", i, got[i], want[i])
		}
	}

	for _, bad := range []string{"10.0.0.0/33", "proxy.internal", "300.1.1.1"} {
		if _, err := ParseTrustedProxies([]string{bad}); err == nil {
			t.Errorf("%q accepted", bad)
		}
	}
}

func TestTrustedRealIP(t *testing.T) {
	trusted, err := ParseTrustedProxies([]string{"10.0.0.0/8"})
	if err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name       string
		trusted    []netip.Prefix
		remoteAddr string
		header     http.Header
		want       string
	}{
		{
			name:       "no trusted proxies ignores headers",
			remoteAddr: "10.0.0.5:4000",
			header:     http.Header{"X-Forwarded-For": {"203.0.113.7"}},
			want:       "10.0.0.5:4000",
		},
		{
			name:       "untrusted peer ignores headers",
			trusted:    trusted,
			remoteAddr: "198.51.100.4:5555",
			header:     http.Header{"X-Forwarded-For": {"203.0.113.7"}, "X-Real-Ip": {"203.0.113.8"}},
			want:       "198.51.100.4:5555",
		},
		{
			name:       "trusted peer uses forwarded for",
			trusted:    trusted,
			remoteAddr: "10.0.0.5:4000",
			header:     http.Header{"X-Forwarded-For": {"203.0.113.7"}},
			want:       "203.0.113.7",
		},
		{
			name:       "rightmost untrusted hop wins",
			trusted:    trusted,
			remoteAddr: "10.0.0.5:4000",
			header:     http.Header{"X-Forwarded-For": {"1.1.1.1, 203.0.113.7", "10.0.0.9"}},
			want:       "203.0.113.7",
		},
		{
			name:       "all hops trusted uses the leftmost",
			trusted:    trusted,
			remoteAddr: "10.0.0.5:4000",
			header:     http.Header{"X-Forwarded-For": {"10.9.9.9, 10.0.0.9"}},
			want:       "10.9.9.9",
		},
		{
			name:       "real ip when forwarded for is absent",
			trusted:    trusted,
			remoteAddr: "10.0.0.5:4000",
			header:     http.Header{"X-Real-Ip": {"203.0.113.8"}},
			want:       "203.0.113.8",
		},
		{
			name:       "malformed forwarded for keeps the peer",
			trusted:    trusted,
			remoteAddr: "10.0.0.5:4000",
			header:     http.Header{"X-Forwarded-For": {"203.0.113.7, not-an-ip"}},
			want:       "10.0.0.5:4000",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got string
			h := logger.RequestLogging(logger.Discard())(TrustedRealIP(tt.trusted)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				got = r.RemoteAddr
			})))

			req := httptest.NewRequest(http.MethodGet, "/admin/x", nil)
			req.RemoteAddr = tt.remoteAddr
			for k, v := range tt.header {
				req.Header[k] = v
			}
			h.ServeHTTP(httptest.NewRecorder(), req)

			if got != tt.want {
				t.Errorf("RemoteAddr = %q, want %q", got, tt.want)
			}
		})
	}
}
