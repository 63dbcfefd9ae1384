package response

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/yy184292-glitch/vlp-saas-sub000/internal/apperrors"
)

func TestRespondWithRateLimit(t *testing.T) {
	tests := []struct {
		name       string
		retryAfter time.Duration
		wantHeader string
		wantSecs   int
	}{
		{"rounds up fractions", 1500 * time.Millisecond, "2", 2},
		{"minimum one second", 0, "1", 1},
		{"whole seconds", 30 * time.Second, "30", 30},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := httptest.NewRecorder()
			RespondWithRateLimit(rr, httptest.NewRequest(http.MethodGet, "/", nil), tt.retryAfter)

			if rr.Code != http.StatusTooManyRequests {
				t.Fatalf("got status %d, want %d", rr.Code, http.StatusTooManyRequests)
			}
			if got := rr.Header().Get("Retry-After"); got != tt.wantHeader {
				t.Errorf("Retry-After = %q, want %q", got, tt.wantHeader)
			}

			var body ErrorResponse
			if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
				t.Fatalf("decode body: %v", err)
			}
			if body.ErrorCode != apperrors.ErrCodeRateLimitExceeded {
				t.Errorf("error_code = %q", body.ErrorCode)
			}
			if body.RetryAfter != tt.wantSecs {
				t.Errorf("retry_after = %d, want %d", body.RetryAfter, tt.wantSecs)
			}
			if body.Message == "" {
				t.Error("expected a wait hint message")
			}
		})
	}
}

func TestRespondWithJSONNoContent(t *testing.T) {
	rr := httptest.NewRecorder()
	RespondWithJSON(rr, http.StatusNoContent, map[string]string{"ignored": "yes"})

	if rr.Code != http.StatusNoContent {
		t.Errorf("got status %d, want 204", rr.Code)
	}
	if rr.Body.Len() != 0 {
		t.Errorf("204 response should have no body, got %q", rr.Body.String())
	}
}
