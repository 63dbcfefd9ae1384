package main

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
)

// setupEnv points vlpctl at baseURL with a sqlite credential store that persists across invocations.
func setupEnv(t *testing.T, baseURL string) []string {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("ENVIRONMENT", "test")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("VLP_API_BASE_URL", baseURL)
	t.Setenv("VLP_API_PREFIX", "/api/v1")
	t.Setenv("VLP_REQUEST_TIMEOUT", "5s")
	t.Setenv("VLP_CREDENTIAL_STORE", "sqlite")
	t.Setenv("VLP_CREDENTIAL_SLOT", "access_token")
	t.Setenv("VLP_CREDENTIAL_DB", filepath.Join(dir, "credentials.db"))
	t.Setenv("VLP_CREDENTIAL_KEY", "")
	t.Setenv(passwordEnv, "")
	return []string{"--env-file", filepath.Join(dir, "missing.env")}
}

func run(t *testing.T, global []string, args ...string) (code int, stdout, stderr string) {
	t.Helper()
	var out, errOut bytes.Buffer
	code = execute(t.Context(), append(append([]string{}, global...), args...), &out, &errOut)
	return code, out.String(), errOut.String()
}

func newAPI(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/v1/auth/login", func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Email    string `json:"email"`
			Password string `json:"password"`
		}
		_ = json.NewDecoder(r.Body).Decode(&req)
		if req.Password != "secret" {
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = io.WriteString(w, `{"detail":"Invalid credentials"}`)
			return
		}
		_, _ = io.WriteString(w, `{"access_token":"tok-1","token_type":"bearer","role":"admin"}`)
	})
	mux.HandleFunc("GET /api/v1/users/me", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer tok-1" {
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = io.WriteString(w, `{"detail":"Not authenticated"}`)
			return
		}
		_, _ = io.WriteString(w, `{"id":"u-1","email":"owner@example.com","store_id":"s-1","role":"admin"}`)
	})
	mux.HandleFunc("GET /api/v1/cars", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		_, _ = io.WriteString(w, `{"detail":"Forbidden"}`)
	})
	mux.HandleFunc("POST /api/v1/echo", func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"query":"`+r.URL.RawQuery+`","body":`+string(body)+`}`)
	})
	mux.HandleFunc("GET /api/v1/inventory/items", func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `[{"id":"0b7f6f2e-2a8d-4c55-9d1b-8c6a1f3e9a10","store_id":"5f0c6c1e-6d7f-4bb0-9a7e-31d1b0b4e6d2",`+
			`"name":"Engine oil `+r.URL.Query().Get("q")+`","cost_price":"800","sale_price":"1500","qty_on_hand":"12.5"}]`)
	})
	mux.HandleFunc("GET /api/v1/reports/profit-monthly", func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		_, _ = io.WriteString(w, `{"date_from":"`+q.Get("date_from")+`","date_to":"`+q.Get("date_to")+`",`+
			`"rows":[{"month":"2024-01-01","sales":100000,"cost":60000,"profit":40000}]}`)
	})
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"status":"ok"}`)
	})
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return server
}

func TestLoginWhoamiLogout(t *testing.T) {
	server := newAPI(t)
	global := setupEnv(t, server.URL)

	code, _, stderr := run(t, global, "whoami")
	if code != 1 || !strings.Contains(stderr, "not logged in") {
		t.Fatalf("whoami before login: code %d, stderr %q", code, stderr)
	}

	code, stdout, stderr := run(t, global, "login", "--email", " owner@example.com ", "--password", "secret")
	if code != 0 {
		t.Fatalf("login: code %d, stderr %q", code, stderr)
	}
	if want := "Logged in as owner@example.com (admin)\n"; stdout != want {
		t.Errorf("login output = %q, want %q", stdout, want)
	}

	code, stdout, stderr = run(t, global, "whoami")
	if code != 0 {
		t.Fatalf("whoami: code %d, stderr %q", code, stderr)
	}
	var who map[string]any
	if err := json.Unmarshal([]byte(stdout), &who); err != nil {
		t.Fatalf("whoami output is not JSON: %v\n%s", err, stdout)
	}
	if who["email"] != "owner@example.com" || who["credential"] != "opaque" {
		t.Errorf("whoami = %v", who)
	}

	if code, _, stderr = run(t, global, "logout"); code != 0 {
		t.Fatalf("logout: code %d, stderr %q", code, stderr)
	}
	if code, _, _ = run(t, global, "whoami"); code != 1 {
		t.Errorf("whoami after logout: code %d, want 1", code)
	}
}

func TestLoginPasswordFromEnvironment(t *testing.T) {
	server := newAPI(t)
	global := setupEnv(t, server.URL)

	code, _, stderr := run(t, global, "login", "--email", "owner@example.com")
	if code != 1 || !strings.Contains(stderr, passwordEnv) {
		t.Errorf("login without a password: code %d, stderr %q", code, stderr)
	}

	t.Setenv(passwordEnv, "secret")
	if code, _, stderr = run(t, global, "login", "--email", "owner@example.com"); code != 0 {
		t.Errorf("login with %s: code %d, stderr %q", passwordEnv, code, stderr)
	}
}

func TestProfilesUseSeparateSlots(t *testing.T) {
	server := newAPI(t)
	global := setupEnv(t, server.URL)

	if code, _, stderr := run(t, global, "--profile", "work", "login", "--email", "a@example.com", "--password", "secret"); code != 0 {
		t.Fatalf("login: code %d, stderr %q", code, stderr)
	}
	if code, _, _ := run(t, global, "--profile", "work", "whoami"); code != 0 {
		t.Errorf("whoami in the logged in profile failed")
	}
	if code, _, _ := run(t, global, "whoami"); code != 1 {
		t.Errorf("default profile should not see the other profile's token")
	}
}

func TestErrorsShowUserMessages(t *testing.T) {
	server := newAPI(t)
	global := setupEnv(t, server.URL)

	tests := []struct {
		name string
		args []string
		want string
	}{
		{"wrong password", []string{"login", "--email", "a@example.com", "--password", "nope"}, "Your session is not valid. Please log in again."},
		{"forbidden", []string{"cars", "list"}, "You don't have permission to access this resource."},
		{"client side validation", []string{"cars", "list", "--limit", "500"}, "limit must be between 0 (server default) and 200"},
		{"bad id", []string{"billing", "get", "not-a-uuid"}, "invalid id"},
		{"bad date", []string{"expenses", "list", "--from", "2024-13-01"}, "invalid argument"},
		{"export needs a range", []string{"expenses", "export"}, "both start and end dates are required"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, stdout, stderr := run(t, global, tt.args...)
			if code != 1 {
				t.Fatalf("code = %d, want 1 (stdout %q)", code, stdout)
			}
			if !strings.Contains(stderr, tt.want) {
				t.Errorf("stderr = %q, want it to contain %q", stderr, tt.want)
			}
		})
	}
}

func TestInventoryAndReportCommands(t *testing.T) {
	server := newAPI(t)
	global := setupEnv(t, server.URL)

	code, stdout, stderr := run(t, global, "inventory", "list", "--query", "0W-20")
	if code != 0 {
		t.Fatalf("inventory list: code %d, stderr %q", code, stderr)
	}
	var items []map[string]any
	if err := json.Unmarshal([]byte(stdout), &items); err != nil {
		t.Fatalf("output is not JSON: %v\n%s", err, stdout)
	}
	if len(items) != 1 || items[0]["name"] != "Engine oil 0W-20" || items[0]["qty_on_hand"] != "12.5" {
		t.Errorf("items = %v", items)
	}

	code, stdout, stderr = run(t, global, "reports", "monthly", "--from", "2024-01-01", "--to", "2024-03-31")
	if code != 0 {
		t.Fatalf("reports monthly: code %d, stderr %q", code, stderr)
	}
	var rep struct {
		Rows []struct {
			Month  string `json:"month"`
			Profit int    `json:"profit"`
		} `json:"rows"`
	}
	if err := json.Unmarshal([]byte(stdout), &rep); err != nil {
		t.Fatalf("output is not JSON: %v\n%s", err, stdout)
	}
	if len(rep.Rows) != 1 || rep.Rows[0].Month != "2024-01-01" || rep.Rows[0].Profit != 40000 {
		t.Errorf("report = %s", stdout)
	}

	if code, _, stderr = run(t, global, "inventory", "moves", "create", "transfer", "0b7f6f2e-2a8d-4c55-9d1b-8c6a1f3e9a10",
		"--store-id", "5f0c6c1e-6d7f-4bb0-9a7e-31d1b0b4e6d2", "--qty", "1"); code != 1 || !strings.Contains(stderr, "unknown move type") {
		t.Errorf("bad move type: code %d, stderr %q", code, stderr)
	}
}

func TestRequestCommand(t *testing.T) {
	server := newAPI(t)
	global := setupEnv(t, server.URL)

	code, stdout, stderr := run(t, global, "request", "post", "/echo", "-p", "a=1", "-p", "a=2", "--data", `{"x":true}`)
	if code != 0 {
		t.Fatalf("code %d, stderr %q", code, stderr)
	}
	var got struct {
		Query string         `json:"query"`
		Body  map[string]any `json:"body"`
	}
	if err := json.Unmarshal([]byte(stdout), &got); err != nil {
		t.Fatalf("output is not JSON: %v\n%s", err, stdout)
	}
	if got.Query != "a=1&a=2" || got.Body["x"] != true {
		t.Errorf("echo = %+v", got)
	}

	if code, _, stderr = run(t, global, "request", "TRACE", "/echo"); code != 1 || !strings.Contains(stderr, "unsupported method") {
		t.Errorf("TRACE: code %d, stderr %q", code, stderr)
	}
}

func TestHealthAndConfiguration(t *testing.T) {
	server := newAPI(t)
	global := setupEnv(t, server.URL)

	code, stdout, _ := run(t, global, "health")
	if code != 0 || !strings.Contains(stdout, `"status": "ok"`) {
		t.Errorf("health: code %d, stdout %q", code, stdout)
	}

	t.Setenv("VLP_API_BASE_URL", "")
	code, _, stderr := run(t, global, "health")
	if code != 1 || !strings.Contains(stderr, "The client is not configured") {
		t.Errorf("health without a base url: code %d, stderr %q", code, stderr)
	}

	t.Setenv("VLP_CREDENTIAL_STORE", "floppy")
	if code, _, _ = run(t, global, "health"); code != 1 {
		t.Errorf("invalid credential store accepted")
	}
	if code, stdout, _ = run(t, global, "version"); code != 0 || !strings.Contains(stdout, `"version"`) {
		t.Errorf("version should not need configuration: code %d, stdout %q", code, stdout)
	}
}

func TestParseParams(t *testing.T) {
	q, err := parseParams([]string{"q=a=b", "empty="})
	if err != nil {
		t.Fatal(err)
	}
	if q.Get("q") != "a=b" || !q.Has("empty") {
		t.Errorf("params = %v", q)
	}

	if _, err := parseParams([]string{"novalue"}); err == nil {
		t.Error("expected an error for a param without '='")
	}
	if q, _ := parseParams(nil); q != nil {
		t.Errorf("no params should give nil, got %v", q)
	}
}
