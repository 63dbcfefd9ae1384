package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net/netip"
	"net/url"
	"strings"
	"time"

	"github.com/Netflix/go-env"
	"github.com/joho/godotenv"
)

// ClientConfig configures the api client used by vlpctl.
//
// API_BASE_URL has no default: a missing base URL is reported by the client as a configuration error
// when the first request is attempted.
type ClientConfig struct {
	Environment     string        `env:"ENVIRONMENT,default=dev"`
	LogLevel        string        `env:"LOG_LEVEL,default=info"`
	APIBaseURL      string        `env:"VLP_API_BASE_URL"`
	APIPrefix       string        `env:"VLP_API_PREFIX,default=/api/v1"`
	RequestTimeout  time.Duration `env:"VLP_REQUEST_TIMEOUT,default=15s"`
	CredentialStore string        `env:"VLP_CREDENTIAL_STORE,default=sqlite"`
	CredentialSlot  string        `env:"VLP_CREDENTIAL_SLOT,default=access_token"`
	CredentialDB    string        `env:"VLP_CREDENTIAL_DB,default=vlp-credentials.db"`
	CredentialKey   string        `env:"VLP_CREDENTIAL_KEY"`
	PostgresURL     string        `env:"VLP_POSTGRES_URL"`
	ValkeyURI       string        `env:"VLP_VALKEY_URI"`
}

// ProxyConfig configures the edge proxy that sits in front of the administrative upstream.
type ProxyConfig struct {
	Environment      string        `env:"ENVIRONMENT,default=dev"`
	LogLevel         string        `env:"LOG_LEVEL,default=debug"`
	Host             string        `env:"HOST,default=0.0.0.0"`
	Port             int           `env:"PORT,default=8081"`
	ReadTimeout      time.Duration `env:"READ_TIMEOUT,default=15s"`
	WriteTimeout     time.Duration `env:"WRITE_TIMEOUT,default=15s"`
	IdleTimeout      time.Duration `env:"IDLE_TIMEOUT,default=60s"`
	UpstreamURL      string        `env:"UPSTREAM_URL,required=true"`
	UpstreamToken    string        `env:"UPSTREAM_TOKEN"`
	UpstreamTimeout  time.Duration `env:"UPSTREAM_TIMEOUT,default=15s"`
	CacheTTL         time.Duration `env:"CACHE_TTL,default=30s"`
	CacheMethods     []string      `env:"CACHE_METHODS,default=GET|POST,separator=|"`
	ClientRateLimit  int           `env:"CLIENT_RATE_LIMIT,default=10"`
	ClientRateWindow time.Duration `env:"CLIENT_RATE_WINDOW,default=60s"`
	RateLimitRPS     int32         `env:"RATE_LIMIT_RPS,default=100"`
	RateLimitBurst   int32         `env:"RATE_LIMIT_BURST,default=20"`
	MaxRequestSize   int64         `env:"MAX_REQUEST_SIZE,default=65536"` // 64KB
	AllowedOrigins   []string      `env:"ALLOWED_ORIGINS,separator=|"`
	RedisURL         string        `env:"REDIS_URL"`
	TrustedProxies   []string      `env:"TRUSTED_PROXIES,separator=|"` // CIDRs or addresses whose X-Forwarded-For is honoured
}

var validEnvs = map[string]bool{
	"dev":     true,
	"test":    true,
	"perf":    true,
	"prod":    true,
	"staging": true,
}

// ValidCredentialStores lists the credential backends accepted by VLP_CREDENTIAL_STORE.
var ValidCredentialStores = map[string]bool{
	"memory":   true,
	"sqlite":   true,
	"postgres": true,
	"valkey":   true,
}

var validCacheMethods = map[string]bool{
	"GET":  true,
	"HEAD": true,
	"POST": true,
}

// LoadDotEnv loads environment variables from the supplied files (default .env).
// Variables already present in the environment are not overridden and a missing file is not an error.
func LoadDotEnv(filenames ...string) error {
	if len(filenames) == 0 {
		filenames = []string{".env"}
	}
	for _, f := range filenames {
		if err := godotenv.Load(f); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return fmt.Errorf("failed to load %s: %w", f, err)
		}
	}
	return nil
}

func NewClientConfig() (*ClientConfig, error) {
	var cfg ClientConfig

	_, err := env.UnmarshalFromEnviron(&cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to unmarshal environment variables: %w", err)
	}

	if err := validateClientConfig(&cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return &cfg, nil
}

func validateClientConfig(cfg *ClientConfig) error {
	if !validEnvs[cfg.Environment] {
		return fmt.Errorf("invalid environment '%s'. Valid environments: dev, test, perf, staging, prod", cfg.Environment)
	}

	if cfg.APIBaseURL != "" {
		if err := validateBaseURL("VLP_API_BASE_URL", cfg.APIBaseURL); err != nil {
			return err
		}
	}

	if !strings.HasPrefix(cfg.APIPrefix, "/") {
		return fmt.Errorf("VLP_API_PREFIX must start with '/', got %q", cfg.APIPrefix)
	}

	if cfg.RequestTimeout < 0 {
		return fmt.Errorf("request timeout must not be negative, got %v", cfg.RequestTimeout)
	}

	if !ValidCredentialStores[cfg.CredentialStore] {
		return fmt.Errorf("invalid VLP_CREDENTIAL_STORE '%s'. Valid stores: memory, sqlite, postgres, valkey", cfg.CredentialStore)
	}
	if cfg.CredentialSlot == "" {
		return fmt.Errorf("VLP_CREDENTIAL_SLOT cannot be empty")
	}

	switch cfg.CredentialStore {
	case "sqlite":
		if cfg.CredentialDB == "" {
			return fmt.Errorf("VLP_CREDENTIAL_DB is required for the sqlite credential store")
		}
	case "postgres":
		if cfg.PostgresURL == "" {
			return fmt.Errorf("VLP_POSTGRES_URL is required for the postgres credential store")
		}
	case "valkey":
		if cfg.ValkeyURI == "" {
			return fmt.Errorf("VLP_VALKEY_URI is required for the valkey credential store")
		}
	}

	return nil
}

func NewProxyConfig() (*ProxyConfig, error) {
	var cfg ProxyConfig

	_, err := env.UnmarshalFromEnviron(&cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to unmarshal environment variables: %w", err)
	}

	for i, m := range cfg.CacheMethods {
		cfg.CacheMethods[i] = strings.ToUpper(strings.TrimSpace(m))
	}
	for i, o := range cfg.AllowedOrigins {
		cfg.AllowedOrigins[i] = strings.TrimSpace(o)
	}

	if err := validateProxyConfig(&cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return &cfg, nil
}

func validateProxyConfig(cfg *ProxyConfig) error {
	if !validEnvs[cfg.Environment] {
		return fmt.Errorf("invalid environment '%s'. Valid environments: dev, test, perf, staging, prod", cfg.Environment)
	}

	if cfg.Port < 1 || cfg.Port > 65535 {
		return fmt.Errorf("port must be between 1 and 65535, got %d", cfg.Port)
	}

	if cfg.ReadTimeout <= 0 {
		return fmt.Errorf("read timeout must be positive, got %v", cfg.ReadTimeout)
	}
	if cfg.WriteTimeout <= 0 {
		return fmt.Errorf("write timeout must be positive, got %v", cfg.WriteTimeout)
	}
	if cfg.IdleTimeout <= 0 {
		return fmt.Errorf("idle timeout must be positive, got %v", cfg.IdleTimeout)
	}
	if cfg.UpstreamTimeout <= 0 {
		return fmt.Errorf("upstream timeout must be positive, got %v", cfg.UpstreamTimeout)
	}

	if err := validateBaseURL("UPSTREAM_URL", cfg.UpstreamURL); err != nil {
		return err
	}

	if cfg.CacheTTL < 0 {
		return fmt.Errorf("CACHE_TTL must not be negative, got %v", cfg.CacheTTL)
	}
	for _, m := range cfg.CacheMethods {
		if !validCacheMethods[m] {
			return fmt.Errorf("CACHE_METHODS contains unsupported method %q (GET, HEAD, POST)", m)
		}
	}

	if cfg.ClientRateLimit < 0 {
		return fmt.Errorf("CLIENT_RATE_LIMIT must be 0 (disabled) or greater, got %d", cfg.ClientRateLimit)
	}
	if cfg.ClientRateLimit > 0 && cfg.ClientRateWindow <= 0 {
		return fmt.Errorf("CLIENT_RATE_WINDOW must be positive when CLIENT_RATE_LIMIT is set, got %v", cfg.ClientRateWindow)
	}

	if cfg.MaxRequestSize < 1 {
		return fmt.Errorf("MAX_REQUEST_SIZE must be at least 1 byte")
	}

	for _, p := range cfg.TrustedProxies {
		p = strings.TrimSpace(p)
		if _, err := netip.ParsePrefix(p); err == nil {
			continue
		}
		if _, err := netip.ParseAddr(p); err != nil {
			return fmt.Errorf("TRUSTED_PROXIES entry %q is not an IP address or CIDR", p)
		}
	}

	if cfg.Environment == "prod" || cfg.Environment == "staging" {
		if len(cfg.AllowedOrigins) == 0 {
			return fmt.Errorf("ALLOWED_ORIGINS must be set in %v", cfg.Environment)
		}
		if cfg.AllowedOrigins[0] == "*" {
			return fmt.Errorf("ALLOWED_ORIGINS must not be set to '*' in %v", cfg.Environment)
		}
	}

	// default to all origins when not in prod/staging
	if len(cfg.AllowedOrigins) == 0 {
		cfg.AllowedOrigins = []string{"*"}
	}

	return nil
}

// validateBaseURL checks that raw is an absolute http(s) URL with a host.
func validateBaseURL(name, raw string) error {
	u, err := url.ParseRequestURI(raw)
	if err != nil {
		return fmt.Errorf("%s is not a valid URL: %s", name, raw)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("%s does not include a valid scheme (http or https): %s", name, raw)
	}
	if u.Hostname() == "" {
		return fmt.Errorf("%s does not include a host: %s", name, raw)
	}
	return nil
}
