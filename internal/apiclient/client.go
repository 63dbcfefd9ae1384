// Package apiclient is the single path through which the back office talks to the vlp api.
//
// Every call goes through Client.Do, which resolves the url against the configured base url and api prefix,
// attaches the stored bearer credential and normalises the outcome into one of three error kinds
// (see errors.go). The client never retries and never redirects to login: interpreting a failure is left to the caller.
//
// Response bodies are untyped at this level. The generic helpers in decode.go validate a payload against a
// named JSON Schema before it is unmarshalled into a caller type.
package apiclient

import (
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/yy184292-glitch/vlp-saas-sub000/internal/credentials"
	"github.com/yy184292-glitch/vlp-saas-sub000/internal/schemas"
	"github.com/yy184292-glitch/vlp-saas-sub000/internal/version"
)

// DefaultAPIPrefix is prepended to relative paths that are not already prefixed.
const DefaultAPIPrefix = "/api/v1"

// Client handles communication with the vlp api.
// It is safe for concurrent use; the only shared state is the credential store.
type Client struct {
	baseURL    string
	prefix     string
	httpClient *http.Client
	store      credentials.Store
	timeout    time.Duration
	logger     *slog.Logger
	userAgent  string
	schemas    *schemas.Registry
}

type Option func(*Client)

// WithAPIPrefix overrides the versioned prefix (default /api/v1).
func WithAPIPrefix(prefix string) Option {
	return func(c *Client) {
		c.prefix = prefix
	}
}

func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

// WithCredentialStore sets where the bearer token is read from and written to.
// The default is a process-local memory store.
func WithCredentialStore(store credentials.Store) Option {
	return func(c *Client) {
		c.store = store
	}
}

// WithTimeout sets the default budget for each request. Zero means no timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		c.timeout = d
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

func WithUserAgent(userAgent string) Option {
	return func(c *Client) {
		c.userAgent = userAgent
	}
}

// WithSchemas sets the registry used by Decode (default schemas.Default()).
func WithSchemas(registry *schemas.Registry) Option {
	return func(c *Client) {
		c.schemas = registry
	}
}

// New never fails: a missing or malformed base url is reported as a *ConfigError by the first call that needs it.
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		prefix:     DefaultAPIPrefix,
		httpClient: &http.Client{},
		store:      credentials.NewMemoryStore(),
		logger:     slog.Default(),
		userAgent:  version.UserAgent("vlp-apiclient"),
	}
	for _, opt := range opts {
		opt(c)
	}

	c.prefix = "/" + strings.Trim(c.prefix, "/")
	if c.prefix == "/" {
		c.prefix = ""
	}
	if c.httpClient == nil {
		c.httpClient = &http.Client{}
	}
	if c.logger == nil {
		c.logger = slog.Default()
	}
	return c
}

// BaseURL returns the configured base url with trailing slashes removed.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// APIPrefix returns the normalised versioned prefix.
func (c *Client) APIPrefix() string {
	return c.prefix
}

// Store returns the credential store used by the client.
func (c *Client) Store() credentials.Store {
	return c.store
}

// ResolveURL turns path into an absolute url. The cases are checked in order:
//
//  1. an absolute http(s) url is returned unchanged
//  2. a path that already starts with the api prefix is appended to the base url
//  3. anything else is appended to base url + prefix
//
// An unconfigured base url is an error for every case, including absolute urls.
func (c *Client) ResolveURL(path string) (string, error) {
	if err := c.checkBaseURL(); err != nil {
		return "", err
	}

	if isAbsoluteURL(path) {
		if _, err := url.Parse(path); err != nil {
			return "", &ConfigError{Reason: "invalid absolute url " + path, Err: err}
		}
		return path, nil
	}

	if c.hasPrefix(path) {
		return c.baseURL + path, nil
	}

	return c.baseURL + c.prefix + "/" + strings.TrimLeft(path, "/"), nil
}

func (c *Client) checkBaseURL() error {
	if c.baseURL == "" {
		return &ConfigError{Reason: "api base url is not configured (set VLP_API_BASE_URL)", Err: ErrNotConfigured}
	}

	u, err := url.Parse(c.baseURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return &ConfigError{Reason: "api base url must be an absolute http(s) url, got " + c.baseURL, Err: ErrInvalidBaseURL}
	}
	return nil
}

// hasPrefix reports whether path starts with the prefix at a segment boundary,
// so /api/v1x is not mistaken for /api/v1.
func (c *Client) hasPrefix(path string) bool {
	if c.prefix == "" {
		return strings.HasPrefix(path, "/")
	}
	if !strings.HasPrefix(path, c.prefix) {
		return false
	}
	rest := path[len(c.prefix):]
	return rest == "" || rest[0] == '/' || rest[0] == '?' || rest[0] == '#'
}

func isAbsoluteURL(path string) bool {
	lower := strings.ToLower(path)
	return strings.HasPrefix(lower, "http://") || strings.HasPrefix(lower, "https://")
}
