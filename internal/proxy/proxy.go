// Package proxy implements the edge proxy that sits in front of the administrative api.
//
// Requests to /admin/* are forwarded once to the upstream. Successful responses may be served
// from a short lived cache, callers are held to a fixed window quota, and an upstream 429 is
// passed through marked as coming from the upstream so clients can tell the two limits apart.
package proxy

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/netip"
	"net/url"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/gregjones/httpcache"
	"github.com/jub0bs/cors"

	"github.com/yy184292-glitch/vlp-saas-sub000/internal/apperrors"
	"github.com/yy184292-glitch/vlp-saas-sub000/internal/config"
	"github.com/yy184292-glitch/vlp-saas-sub000/internal/logger"
	"github.com/yy184292-glitch/vlp-saas-sub000/internal/middleware"
	"github.com/yy184292-glitch/vlp-saas-sub000/internal/response"
	"github.com/yy184292-glitch/vlp-saas-sub000/internal/version"
)

const (
	ShutdownTimeout = 10 * time.Second

	CacheHeader = "X-Cache"
	adminPrefix = "/admin"
)

// hopHeaders are not forwarded in either direction.
var hopHeaders = []string{
	"Connection",
	"Keep-Alive",
	"Proxy-Authenticate",
	"Proxy-Authorization",
	"Te",
	"Trailer",
	"Transfer-Encoding",
	"Upgrade",
}

type Server struct {
	cfg        *config.ProxyConfig
	upstream   *url.URL
	httpClient *http.Client
	cache      *ResponseCache
	cacheStore httpcache.Cache
	limiter    middleware.ClientLimiter
	trusted    []netip.Prefix
	logger     *slog.Logger
	router     *chi.Mux
}

type Option func(*Server)

// WithHTTPClient sets the client used for upstream requests. Its Timeout is ignored in favour of
// the configured upstream timeout.
func WithHTTPClient(c *http.Client) Option {
	return func(s *Server) {
		s.httpClient = c
	}
}

// WithCacheStore sets the storage behind the response cache (default in memory).
func WithCacheStore(store httpcache.Cache) Option {
	return func(s *Server) {
		s.cacheStore = store
	}
}

// WithClientLimiter sets the per-client limiter (default in memory).
func WithClientLimiter(l middleware.ClientLimiter) Option {
	return func(s *Server) {
		s.limiter = l
	}
}

func NewServer(cfg *config.ProxyConfig, logger *slog.Logger, opts ...Option) (*Server, error) {
	upstream, err := url.Parse(strings.TrimRight(cfg.UpstreamURL, "/"))
	if err != nil || upstream.Host == "" {
		return nil, fmt.Errorf("invalid upstream url %q", cfg.UpstreamURL)
	}

	s := &Server{
		cfg:        cfg,
		upstream:   upstream,
		httpClient: &http.Client{},
		logger:     logger,
		router:     chi.NewRouter(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.limiter == nil {
		s.limiter = NewMemoryLimiter(cfg.ClientRateLimit, cfg.ClientRateWindow)
	}
	s.cache = NewResponseCache(s.cacheStore, cfg.CacheTTL, cfg.CacheMethods, logger)

	s.trusted, err = middleware.ParseTrustedProxies(cfg.TrustedProxies)
	if err != nil {
		return nil, err
	}

	origins := cfg.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	corsMiddleware, err := middleware.NewCORS(origins)
	if err != nil {
		return nil, fmt.Errorf("failed to create CORS middleware: %w", err)
	}

	s.setupMiddleware()
	s.registerRoutes(corsMiddleware)
	return s, nil
}

func (s *Server) Handler() http.Handler {
	return s.router
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	serverAddr := fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port)

	httpServer := &http.Server{
		Addr:         serverAddr,
		Handler:      s.router,
		ReadTimeout:  s.cfg.ReadTimeout,
		WriteTimeout: s.cfg.WriteTimeout,
		IdleTimeout:  s.cfg.IdleTimeout,
	}

	serveErr := make(chan error, 1)
	go func() {
		s.logger.Info("proxy listening",
			slog.String("environment", s.cfg.Environment),
			slog.String("address", serverAddr),
			slog.String("upstream", s.upstream.String()),
		)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case err := <-serveErr:
		if err != nil {
			return fmt.Errorf("server failed to start: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	s.logger.Info("proxy shutting down")

	// force an exit if the server does not shut down within the timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), ShutdownTimeout)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown error: %w", err)
	}
	return nil
}

func (s *Server) setupMiddleware() {
	s.router.Use(chimiddleware.RequestID)
	s.router.Use(logger.RequestLogging(s.logger))
	s.router.Use(middleware.TrustedRealIP(s.trusted))
	s.router.Use(chimiddleware.Recoverer)
	s.router.Use(middleware.SecurityHeaders(s.cfg.Environment))
	s.router.Use(middleware.RateLimit(s.cfg.RateLimitRPS, s.cfg.RateLimitBurst))
}

func (s *Server) registerRoutes(corsMiddleware *cors.Middleware) {
	s.router.Get("/health/live", s.liveness)

	s.router.Group(func(r chi.Router) {
		r.Use(middleware.CORS(corsMiddleware))
		r.Use(middleware.RequestSizeLimit(s.cfg.MaxRequestSize))
		r.Use(middleware.ClientRateLimit(s.limiter))

		r.HandleFunc(adminPrefix+"/*", s.forward)
	})

	s.router.NotFound(func(w http.ResponseWriter, r *http.Request) {
		response.RespondWithError(w, r, http.StatusNotFound, apperrors.ErrCodeResourceNotFound, "Not found")
	})
	s.router.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		response.RespondWithError(w, r, http.StatusMethodNotAllowed, apperrors.ErrCodeMethodNotAllowed, "Method not allowed")
	})
}

func (s *Server) liveness(w http.ResponseWriter, r *http.Request) {
	response.RespondWithJSON(w, http.StatusOK, map[string]string{
		"status":  "ok",
		"version": version.Get().Version,
	})
}

// forward makes exactly one upstream attempt for the request.
func (s *Server) forward(w http.ResponseWriter, r *http.Request) {
	reqLogger := logger.ContextRequestLogger(r.Context())

	body, err := io.ReadAll(r.Body)
	if err != nil {
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			response.RespondWithError(w, r, http.StatusRequestEntityTooLarge, apperrors.ErrCodeRequestTooLarge,
				fmt.Sprintf("Request body exceeds maximum size of %d bytes", maxBytesErr.Limit))
			return
		}
		response.RespondWithError(w, r, http.StatusBadRequest, apperrors.ErrCodeInvalidRequest, "could not read request body")
		return
	}

	target := s.upstreamURL(r)
	authorization := r.Header.Get("Authorization")
	if s.cfg.UpstreamToken != "" {
		authorization = "Bearer " + s.cfg.UpstreamToken
	}

	cacheable := s.cache.Cacheable(r.Method)
	var cacheKey string
	if cacheable {
		cacheKey = s.cache.Key(r.Method, target.RequestURI(), authorization, body)
		if entry, ok := s.cache.lookup(cacheKey); ok {
			logger.ContextWithLogAttrs(r.Context(), slog.String("cache", "hit"))
			copyHeader(w.Header(), entry.Header)
			w.Header().Set(CacheHeader, "HIT")
			w.WriteHeader(entry.Status)
			_, _ = w.Write(entry.Body)
			return
		}
	}

	ctx, cancel := r.Context(), context.CancelFunc(func() {})
	if s.cfg.UpstreamTimeout > 0 {
		ctx, cancel = context.WithTimeout(r.Context(), s.cfg.UpstreamTimeout)
	}
	defer cancel()

	upstreamReq, err := http.NewRequestWithContext(ctx, r.Method, target.String(), bytes.NewReader(body))
	if err != nil {
		response.RespondWithError(w, r, http.StatusInternalServerError, apperrors.ErrCodeInternalError, "could not build upstream request")
		return
	}
	copyHeader(upstreamReq.Header, r.Header)
	// let the transport negotiate compression so bodies can be inspected
	upstreamReq.Header.Del("Accept-Encoding")
	upstreamReq.Header.Del("Authorization")
	if authorization != "" {
		upstreamReq.Header.Set("Authorization", authorization)
	}
	upstreamReq.Header.Set("X-Forwarded-For", middleware.ClientKey(r))
	if requestID := chimiddleware.GetReqID(r.Context()); requestID != "" {
		upstreamReq.Header.Set(chimiddleware.RequestIDHeader, requestID)
	}

	res, err := s.httpClient.Do(upstreamReq)
	if err != nil {
		s.upstreamFailure(w, r, err)
		return
	}
	defer res.Body.Close()

	resBody, err := io.ReadAll(res.Body)
	if err != nil {
		s.upstreamFailure(w, r, err)
		return
	}

	logger.ContextWithLogAttrs(r.Context(), slog.Int("upstream_status", res.StatusCode))

	if res.StatusCode == http.StatusTooManyRequests {
		reqLogger.Warn("upstream rate limit",
			slog.String("upstream_path", s.upstreamURL(r).Path),
			slog.String("retry_after", res.Header.Get("Retry-After")),
		)
		writeUpstreamRateLimit(w, res, resBody)
		return
	}

	copyHeader(w.Header(), res.Header)
	w.Header().Del("Content-Length")
	if cacheable {
		logger.ContextWithLogAttrs(r.Context(), slog.String("cache", "miss"))
		w.Header().Set(CacheHeader, "MISS")
		if res.StatusCode == http.StatusOK {
			stored := res.Header.Clone()
			for _, h := range hopHeaders {
				stored.Del(h)
			}
			stored.Del("Content-Length")
			s.cache.save(cacheKey, res.StatusCode, stored, resBody)
		}
	}
	w.WriteHeader(res.StatusCode)
	_, _ = w.Write(resBody)
}

func (s *Server) upstreamURL(r *http.Request) *url.URL {
	u := *s.upstream
	u.Path = s.upstream.Path + strings.TrimPrefix(r.URL.Path, adminPrefix)
	u.RawPath = ""
	u.RawQuery = r.URL.RawQuery
	return &u
}

// upstreamFailure maps a failed upstream attempt to 504 on timeout and 502 otherwise.
// Nothing is written when the caller went away.
func (s *Server) upstreamFailure(w http.ResponseWriter, r *http.Request, err error) {
	reqLogger := logger.ContextRequestLogger(r.Context())

	if r.Context().Err() != nil {
		reqLogger.Info("caller cancelled request", slog.String("upstream_path", s.upstreamURL(r).Path))
		return
	}

	var netErr net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()) {
		reqLogger.Warn("upstream timed out",
			slog.String("upstream_path", s.upstreamURL(r).Path),
			slog.Duration("timeout", s.cfg.UpstreamTimeout),
		)
		response.RespondWithError(w, r, http.StatusGatewayTimeout, apperrors.ErrCodeUpstreamTimeout, "The upstream service did not respond in time")
		return
	}

	reqLogger.Error("upstream unavailable",
		slog.String("upstream_path", s.upstreamURL(r).Path),
		slog.String("error", err.Error()),
	)
	response.RespondWithError(w, r, http.StatusBadGateway, apperrors.ErrCodeUpstreamUnavailable, "The upstream service is unavailable")
}

// writeUpstreamRateLimit forwards an upstream 429 with its status and Retry-After.
// A JSON object body gains "upstream": true; any other body is wrapped in the proxy's error shape.
func writeUpstreamRateLimit(w http.ResponseWriter, res *http.Response, body []byte) {
	copyHeader(w.Header(), res.Header)
	w.Header().Del("Content-Length")
	w.Header().Set("Content-Type", "application/json; charset=utf-8")

	var obj map[string]any
	if err := json.Unmarshal(body, &obj); err == nil && obj != nil {
		obj["upstream"] = true
		if data, err := json.Marshal(obj); err == nil {
			w.WriteHeader(http.StatusTooManyRequests)
			_, _ = w.Write(data)
			return
		}
	}

	message := strings.TrimSpace(string(body))
	if message == "" {
		message = http.StatusText(http.StatusTooManyRequests)
	}
	data, _ := json.Marshal(response.ErrorResponse{
		ErrorCode: apperrors.ErrCodeRateLimitExceeded,
		Message:   message,
		Upstream:  true,
	})
	w.WriteHeader(http.StatusTooManyRequests)
	_, _ = w.Write(data)
}

func copyHeader(dst, src http.Header) {
	for k, vv := range src {
		dst[k] = append([]string(nil), vv...)
	}
	for _, h := range hopHeaders {
		dst.Del(h)
	}
}
