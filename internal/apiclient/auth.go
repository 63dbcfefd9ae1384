package apiclient

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/text/unicode/norm"

	"github.com/yy184292-glitch/vlp-saas-sub000/internal/credentials"
	"github.com/yy184292-glitch/vlp-saas-sub000/internal/schemas"
)

var ErrNoCredentialStore = errors.New("no credential store configured")

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type LoginResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type,omitempty"`
	UserID      string `json:"user_id,omitempty"`
	StoreID     string `json:"store_id,omitempty"`
	Role        string `json:"role,omitempty"`
}

// RegisterOwnerRequest registers the first administrator of an existing store.
type RegisterOwnerRequest struct {
	Email    string    `json:"email"`
	Password string    `json:"password"`
	Name     string    `json:"name"`
	StoreID  uuid.UUID `json:"store_id"`
}

// RegisterInviteRequest registers a staff member using an invite code.
type RegisterInviteRequest struct {
	InviteCode string `json:"invite_code"`
	Email      string `json:"email"`
	Password   string `json:"password"`
	Name       string `json:"name"`
}

type CurrentUser struct {
	ID      string `json:"id"`
	Email   string `json:"email"`
	StoreID string `json:"store_id"`
	Role    string `json:"role"`
}

type HealthStatus struct {
	Status   string `json:"status"`
	Service  string `json:"service,omitempty"`
	Version  string `json:"version,omitempty"`
	Database string `json:"database,omitempty"`
}

type TokenStatus int

const (
	TokenMissing TokenStatus = iota
	TokenOpaque              // present but not a JWT, expiry unknown
	TokenExpired
	TokenValid
)

func (s TokenStatus) String() string {
	switch s {
	case TokenMissing:
		return "missing"
	case TokenOpaque:
		return "opaque"
	case TokenExpired:
		return "expired"
	case TokenValid:
		return "valid"
	default:
		return fmt.Sprintf("TokenStatus(%d)", int(s))
	}
}

// Login authenticates with the api and writes the returned access token to the credential store.
func (c *Client) Login(ctx context.Context, email, password string) (*LoginResponse, error) {
	if c.store == nil {
		return nil, ErrNoCredentialStore
	}

	loginReq := LoginRequest{
		Email:    strings.TrimSpace(email),
		Password: password,
	}

	res, err := Post[LoginResponse](ctx, c, "/auth/login", loginReq, schemas.LoginResponse)
	if err != nil {
		return nil, err
	}

	if err := c.store.Set(ctx, res.AccessToken); err != nil {
		return nil, fmt.Errorf("store access token: %w", err)
	}
	return &res, nil
}

// Logout forgets the stored credential. The api keeps no session so no request is made.
func (c *Client) Logout(ctx context.Context) error {
	if c.store == nil {
		return ErrNoCredentialStore
	}
	if err := c.store.Clear(ctx); err != nil {
		return fmt.Errorf("clear access token: %w", err)
	}
	return nil
}

func (c *Client) RegisterOwner(ctx context.Context, req RegisterOwnerRequest) error {
	req.Email = strings.TrimSpace(req.Email)
	_, err := Post[map[string]any](ctx, c, "/auth/register-owner", req, schemas.Created)
	return err
}

// RegisterInvite normalises the invite code (NFKC, trimmed, upper case) so codes typed with
// full-width characters or stray spaces still match.
func (c *Client) RegisterInvite(ctx context.Context, req RegisterInviteRequest) error {
	req.InviteCode = NormalizeInviteCode(req.InviteCode)
	req.Email = strings.TrimSpace(req.Email)
	_, err := Post[map[string]any](ctx, c, "/auth/register-invite", req, schemas.Created)
	return err
}

func NormalizeInviteCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(norm.NFKC.String(code)))
}

// Me returns the user the stored credential belongs to.
func (c *Client) Me(ctx context.Context) (*CurrentUser, error) {
	user, err := Get[CurrentUser](ctx, c, "/users/me", nil, schemas.CurrentUser)
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// CredentialStatus inspects the stored token without contacting the api.
// JWT expiry is read without verifying the signature.
func (c *Client) CredentialStatus(ctx context.Context) TokenStatus {
	token := c.credential(ctx)
	if token == "" {
		return TokenMissing
	}
	exp, ok := credentials.TokenExpiry(token)
	if !ok {
		if credentials.IsJWT(token) {
			// a JWT without exp does not expire
			return TokenValid
		}
		return TokenOpaque
	}
	if !time.Now().Before(exp) {
		return TokenExpired
	}
	return TokenValid
}

// Health calls the unversioned /health endpoint of the api.
func (c *Client) Health(ctx context.Context) (*HealthStatus, error) {
	if err := c.checkBaseURL(); err != nil {
		return nil, err
	}
	status, err := Request[HealthStatus](ctx, c, http.MethodGet, c.baseURL+"/health", nil, schemas.Health)
	if err != nil {
		return nil, err
	}
	return &status, nil
}
