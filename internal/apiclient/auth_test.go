package apiclient

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/yy184292-glitch/vlp-saas-sub000/internal/credentials"
)

func TestLoginThenProtectedCall(t *testing.T) {
	var protectedAuth string
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/v1/auth/login", func(w http.ResponseWriter, r *http.Request) {
		var req LoginRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Email != "owner@example.com" || req.Password != "pw" {
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte(`{"detail":"Invalid credentials"}`))
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"access_token":"abc123"}`))
	})
	mux.HandleFunc("GET /api/v1/cars", func(w http.ResponseWriter, r *http.Request) {
		protectedAuth = r.Header.Get("Authorization")
		_, _ = w.Write([]byte(`[]`))
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	store := credentials.NewMemoryStore()
	c := newTestClient(t, server.URL, WithCredentialStore(store))
	ctx := context.Background()

	res, err := c.Login(ctx, " owner@example.com ", "pw")
	if err != nil {
		t.Fatalf("Login() error = %v", err)
	}
	if res.AccessToken != "abc123" {
		t.Errorf("AccessToken = %q", res.AccessToken)
	}

	stored, _ := store.Get(ctx)
	if stored != "abc123" {
		t.Fatalf("store contains %q, want abc123", stored)
	}

	if _, err := c.Do(ctx, http.MethodGet, "/cars", nil); err != nil {
		t.Fatal(err)
	}
	if protectedAuth != "Bearer abc123" {
		t.Errorf("Authorization = %q, want Bearer abc123", protectedAuth)
	}

	if err := c.Logout(ctx); err != nil {
		t.Fatal(err)
	}
	if stored, _ := store.Get(ctx); stored != "" {
		t.Errorf("store should be empty after logout, got %q", stored)
	}
}

func TestLoginFailures(t *testing.T) {
	tests := []struct {
		name       string
		status     int
		body       string
		store      credentials.Store
		wantStatus int
		wantDecode bool
		wantErr    error
	}{
		{
			name:       "invalid credentials",
			status:     http.StatusUnauthorized,
			body:       `{"detail":"Invalid credentials"}`,
			store:      credentials.NewMemoryStore(),
			wantStatus: http.StatusUnauthorized,
		},
		{
			name:       "response without token",
			status:     http.StatusOK,
			body:       `{"token_type":"bearer"}`,
			store:      credentials.NewMemoryStore(),
			wantDecode: true,
		},
		{
			name:    "store write failure",
			status:  http.StatusOK,
			body:    `{"access_token":"abc123"}`,
			store:   failingStore{},
			wantErr: errors.New("storage unavailable"),
		},
		{
			name:    "no store",
			status:  http.StatusOK,
			body:    `{"access_token":"abc123"}`,
			store:   nil,
			wantErr: ErrNoCredentialStore,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer server.Close()

			c := newTestClient(t, server.URL, WithCredentialStore(tt.store))
			_, err := c.Login(context.Background(), "a@example.com", "pw")
			if err == nil {
				t.Fatal("expected an error")
			}

			switch {
			case tt.wantStatus != 0:
				if code, ok := StatusCode(err); !ok || code != tt.wantStatus {
					t.Errorf("StatusCode = %d, %v", code, ok)
				}
			case tt.wantDecode:
				var de *DecodeError
				if !errors.As(err, &de) {
					t.Errorf("expected *DecodeError, got %T", err)
				}
			case errors.Is(tt.wantErr, ErrNoCredentialStore):
				if !errors.Is(err, ErrNoCredentialStore) {
					t.Errorf("expected ErrNoCredentialStore, got %v", err)
				}
			}
		})
	}
}

func TestRegisterInviteNormalisesCode(t *testing.T) {
	var got RegisterInviteRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v1/auth/register-invite" {
			t.Errorf("path = %s", r.URL.Path)
		}
		_ = json.NewDecoder(r.Body).Decode(&got)
		_, _ = w.Write([]byte(`{"created":true}`))
	}))
	defer server.Close()

	c := newTestClient(t, server.URL)
	err := c.RegisterInvite(context.Background(), RegisterInviteRequest{
		InviteCode: "  ａｂｃ１２３xyz ",
		Email:      "staff@example.com",
		Password:   "pw",
		Name:       "Staff",
	})
	if err != nil {
		t.Fatalf("RegisterInvite() error = %v", err)
	}
	if got.InviteCode != "ABC123XYZ" {
		t.Errorf("invite_code = %q, want ABC123XYZ", got.InviteCode)
	}
}

func TestMe(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v1/users/me" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		_, _ = w.Write([]byte(`{"id":"u1","email":"owner@example.com","store_id":"s1","role":"admin"}`))
	}))
	defer server.Close()

	me, err := newTestClient(t, server.URL).Me(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if me.Role != "admin" || me.Email != "owner@example.com" {
		t.Errorf("got %+v", me)
	}
}

func TestHealthIsNotVersioned(t *testing.T) {
	var gotPath string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		_, _ = w.Write([]byte(`{"status":"ok","service":"vlp-api","database":"connected"}`))
	}))
	defer server.Close()

	status, err := newTestClient(t, server.URL).Health(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if gotPath != "/health" {
		t.Errorf("path = %q, want /health", gotPath)
	}
	if status.Status != "ok" {
		t.Errorf("status = %+v", status)
	}

	if _, err := New("").Health(context.Background()); !errors.Is(err, ErrNotConfigured) {
		t.Errorf("expected ErrNotConfigured, got %v", err)
	}
}

func TestCredentialStatus(t *testing.T) {
	sign := func(claims jwt.Claims) string {
		s, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("k"))
		if err != nil {
			t.Fatal(err)
		}
		return s
	}

	tests := []struct {
		name  string
		token string
		want  TokenStatus
	}{
		{"missing", "", TokenMissing},
		{"opaque", "abc123", TokenOpaque},
		{"expired", sign(jwt.RegisteredClaims{ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Minute))}), TokenExpired},
		{"valid", sign(jwt.RegisteredClaims{ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour))}), TokenValid},
		{"jwt without exp", sign(jwt.RegisteredClaims{Subject: "u1"}), TokenValid},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := credentials.NewMemoryStore()
			_ = store.Set(context.Background(), tt.token)

			c := newTestClient(t, "http://localhost", WithCredentialStore(store))
			if got := c.CredentialStatus(context.Background()); got != tt.want {
				t.Errorf("CredentialStatus() = %v, want %v", got, tt.want)
			}
		})
	}
}
