package middleware

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"net/netip"
	"strconv"
	"strings"
	"time"

	"github.com/jub0bs/cors"
	"golang.org/x/time/rate"

	"github.com/yy184292-glitch/vlp-saas-sub000/internal/apperrors"
	"github.com/yy184292-glitch/vlp-saas-sub000/internal/logger"
	"github.com/yy184292-glitch/vlp-saas-sub000/internal/response"
)

// MaxRequestSizeHeader tells clients the largest body the proxy accepts.
const MaxRequestSizeHeader = "Vlp-Max-Request-Size"

// CORS returns a CORS middleware using the provided pre-built middleware instance.
func CORS(middleware *cors.Middleware) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return middleware.Wrap(next)
	}
}

// NewCORS builds the CORS middleware for the allowed origins. "*" allows any origin.
func NewCORS(allowedOrigins []string) (*cors.Middleware, error) {
	return cors.NewMiddleware(cors.Config{
		Origins:        allowedOrigins,
		Methods:        []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete},
		RequestHeaders: []string{"Authorization", "Content-Type", "X-Request-Id"},
		ResponseHeaders: []string{
			"Retry-After",
			"X-Cache",
			MaxRequestSizeHeader,
		},
		MaxAgeInSeconds: 300,
	})
}

func SecurityHeaders(environment string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {

			w.Header().Set("X-Content-Type-Options", "nosniff")

			// for legacy support
			w.Header().Set("X-Frame-Options", "DENY")

			w.Header().Set("Content-Security-Policy", "default-src 'none'; frame-ancestors 'none';")

			w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")

			if environment == "prod" || environment == "staging" {
				w.Header().Set("Strict-Transport-Security", "max-age=31536000; includeSubDomains")
			}

			next.ServeHTTP(w, r)
		})
	}
}

// RequestSizeLimit limits the size of request bodies and adds the limit as a header for client awareness
func RequestSizeLimit(maxBytes int64) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {

			w.Header().Set(MaxRequestSizeHeader, strconv.FormatInt(maxBytes, 10))

			// Check Content-Length header first (if present)
			if r.ContentLength > maxBytes {
				reqLogger := logger.ContextRequestLogger(r.Context())

				reqLogger.Warn("Request size limit exceeded",
					slog.Int64("content_length", r.ContentLength),
					slog.Int64("max_bytes", maxBytes),
				)

				logger.ContextWithLogAttrs(r.Context(),
					slog.Int64("content_length", r.ContentLength),
					slog.Int64("max_bytes", maxBytes),
				)

				errorMsg := fmt.Sprintf("Request body exceeds maximum size of %d bytes", maxBytes)
				response.RespondWithError(w, r, http.StatusRequestEntityTooLarge,
					apperrors.ErrCodeRequestTooLarge, errorMsg)
				return
			}

			// bodies without a Content-Length are cut off when read by the proxy handler
			r.Body = http.MaxBytesReader(w, r.Body, maxBytes)

			next.ServeHTTP(w, r)
		})
	}
}

// RateLimit limits requests per second across all clients. If requestsPerSecond <= 0, rate limiting is disabled.
func RateLimit(requestsPerSecond int32, burst int32) func(http.Handler) http.Handler {
	if requestsPerSecond <= 0 {
		return func(next http.Handler) http.Handler {
			return next
		}
	}

	limiter := rate.NewLimiter(rate.Limit(requestsPerSecond), int(burst))

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !limiter.Allow() {
				reqLogger := logger.ContextRequestLogger(r.Context())

				reqLogger.Warn("Rate limit exceeded",
					slog.String("rate_limit", "global"),
					slog.Float64("limit_rps", float64(limiter.Limit())),
					slog.Int("burst", limiter.Burst()),
				)

				logger.ContextWithLogAttrs(r.Context(),
					slog.String("rate_limit", "global"),
				)

				response.RespondWithRateLimit(w, r, time.Second)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// ClientLimiter counts requests per client key.
// Allow reports whether the request may proceed and, if not, how long until the client's window resets.
type ClientLimiter interface {
	Allow(ctx context.Context, key string) (allowed bool, retryAfter time.Duration, err error)
}

// ClientRateLimit applies limiter per client address. Use after TrustedRealIP so a request relayed by a
// trusted proxy is counted against the original caller.
// A limiter error lets the request through.
func ClientRateLimit(limiter ClientLimiter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := ClientKey(r)

			allowed, retryAfter, err := limiter.Allow(r.Context(), key)
			if err != nil {
				logger.ContextRequestLogger(r.Context()).Warn("client rate limiter unavailable, allowing request",
					slog.String("client", key),
					slog.String("error", err.Error()),
				)
				logger.ContextWithLogAttrs(r.Context(),
					slog.String("rate_limit", "skipped"),
				)
				next.ServeHTTP(w, r)
				return
			}

			if !allowed {
				logger.ContextRequestLogger(r.Context()).Warn("Client rate limit exceeded",
					slog.String("client", key),
					slog.Duration("retry_after", retryAfter),
				)
				logger.ContextWithLogAttrs(r.Context(),
					slog.String("rate_limit", "client"),
				)
				response.RespondWithRateLimit(w, r, retryAfter)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// ClientKey returns the client address of r without its port.
func ClientKey(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// ParseTrustedProxies parses CIDR prefixes or bare addresses (treated as a single host).
func ParseTrustedProxies(entries []string) ([]netip.Prefix, error) {
	var prefixes []netip.Prefix
	for _, e := range entries {
		e = strings.TrimSpace(e)
		if e == "" {
			continue
		}
		if strings.Contains(e, "/") {
			p, err := netip.ParsePrefix(e)
			if err != nil {
				return nil, fmt.Errorf("invalid trusted proxy %q: %w", e, err)
			}
			prefixes = append(prefixes, p.Masked())
			continue
		}
		addr, err := netip.ParseAddr(e)
		if err != nil {
			return nil, fmt.Errorf("invalid trusted proxy %q: %w", e, err)
		}
		addr = addr.Unmap()
		prefixes = append(prefixes, netip.PrefixFrom(addr, addr.BitLen()))
	}
	return prefixes, nil
}

// TrustedRealIP replaces r.RemoteAddr with the address reported in X-Forwarded-For or X-Real-IP,
// but only when the connecting peer is one of trusted. Requests from any other peer keep their socket
// address, so the headers cannot be used to pick a rate limit bucket.
//
// X-Forwarded-For is read right to left and the first address that is not itself a trusted proxy wins.
func TrustedRealIP(trusted []netip.Prefix) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if len(trusted) == 0 {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			peer, ok := parseAddr(ClientKey(r))
			if ok && isTrusted(trusted, peer) {
				if client, ok := forwardedClient(r.Header, trusted); ok {
					logger.ContextWithLogAttrs(r.Context(), slog.String("client", client.String()))
					r.RemoteAddr = client.String()
				}
			}
			next.ServeHTTP(w, r)
		})
	}
}

func forwardedClient(h http.Header, trusted []netip.Prefix) (netip.Addr, bool) {
	var hops []string
	for _, v := range h.Values("X-Forwarded-For") {
		hops = append(hops, strings.Split(v, ",")...)
	}
	if len(hops) > 0 {
		var last netip.Addr
		for i := len(hops) - 1; i >= 0; i-- {
			addr, ok := parseAddr(hops[i])
			if !ok {
				return netip.Addr{}, false
			}
			if !isTrusted(trusted, addr) {
				return addr, true
			}
			last = addr
		}
		// every hop is a trusted proxy
		return last, true
	}
	return parseAddr(h.Get("X-Real-IP"))
}

func parseAddr(s string) (netip.Addr, bool) {
	addr, err := netip.ParseAddr(strings.TrimSpace(s))
	if err != nil {
		return netip.Addr{}, false
	}
	return addr.Unmap(), true
}

func isTrusted(trusted []netip.Prefix, addr netip.Addr) bool {
	for _, p := range trusted {
		if p.Contains(addr) {
			return true
		}
	}
	return false
}
