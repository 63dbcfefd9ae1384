package apiclient

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"
)

var (
	ErrNotConfigured  = errors.New("api client is not configured")
	ErrInvalidBaseURL = errors.New("invalid api base url")
)

// ConfigError is returned before any network attempt when the client cannot build a request url.
type ConfigError struct {
	Reason string
	Err    error
}

func (e *ConfigError) Error() string {
	return "configuration error: " + e.Reason
}

func (e *ConfigError) Unwrap() error {
	return e.Err
}

// RequestError represents a response outside 2xx.
// Payload holds the best-effort parsed body: a JSON value, the raw text, or nil.
type RequestError struct {
	Method     string
	URL        string
	StatusCode int
	Header     http.Header
	Payload    any
	Raw        []byte
}

func (e *RequestError) Error() string {
	return fmt.Sprintf("%s %s: status %d - %s", e.Method, e.URL, e.StatusCode, e.Message())
}

// Message returns the server supplied message, falling back to the status text.
func (e *RequestError) Message() string {
	if msg := e.serverMessage(); msg != "" {
		return msg
	}
	return http.StatusText(e.StatusCode)
}

// serverMessage extracts a message from the payload, accepting {message}, FastAPI's {detail}
// (a string, or a list of {msg} validation errors) and {error}. A text payload is used as is.
func (e *RequestError) serverMessage() string {
	switch p := e.Payload.(type) {
	case map[string]any:
		if s, ok := p["message"].(string); ok && s != "" {
			return s
		}
		switch d := p["detail"].(type) {
		case string:
			if d != "" {
				return d
			}
		case []any:
			var msgs []string
			for _, item := range d {
				if m, ok := item.(map[string]any); ok {
					if s, ok := m["msg"].(string); ok && s != "" {
						msgs = append(msgs, s)
					}
				}
			}
			if len(msgs) > 0 {
				return strings.Join(msgs, "; ")
			}
		}
		if s, ok := p["error"].(string); ok && s != "" {
			return s
		}
	case string:
		return strings.TrimSpace(p)
	}
	return ""
}

// ErrorCode returns the error_code field of the payload when present.
func (e *RequestError) ErrorCode() string {
	if p, ok := e.Payload.(map[string]any); ok {
		if s, ok := p["error_code"].(string); ok {
			return s
		}
	}
	return ""
}

// Upstream reports whether the edge proxy marked this error as coming from its upstream.
func (e *RequestError) Upstream() bool {
	if p, ok := e.Payload.(map[string]any); ok {
		if b, ok := p["upstream"].(bool); ok {
			return b
		}
	}
	return false
}

// RetryAfter returns the wait hint from the Retry-After header or the retry_after payload field.
func (e *RequestError) RetryAfter() (time.Duration, bool) {
	if e.Header != nil {
		if v := e.Header.Get("Retry-After"); v != "" {
			if secs, err := strconv.Atoi(v); err == nil && secs >= 0 {
				return time.Duration(secs) * time.Second, true
			}
		}
	}
	if p, ok := e.Payload.(map[string]any); ok {
		if secs, ok := p["retry_after"].(float64); ok && secs >= 0 {
			return time.Duration(secs) * time.Second, true
		}
	}
	return 0, false
}

// UserMessage returns a message suitable for showing to an end user.
func (e *RequestError) UserMessage() string {
	switch e.StatusCode {
	case http.StatusUnauthorized:
		return "Your session is not valid. Please log in again."
	case http.StatusForbidden:
		return "You don't have permission to access this resource."
	case http.StatusNotFound:
		return "The requested resource was not found."
	case http.StatusBadRequest, http.StatusConflict, http.StatusUnprocessableEntity:
		// use server message for validation errors if available
		if msg := e.serverMessage(); msg != "" {
			return msg
		}
		return "Invalid request. Please check your input and try again."
	case http.StatusTooManyRequests:
		if d, ok := e.RetryAfter(); ok && d > 0 {
			return fmt.Sprintf("Too many requests. Please wait %d seconds before retrying.", int(d.Seconds()))
		}
		return "Too many requests. Please try again in a few moments."
	}
	if e.StatusCode >= 500 {
		return "The service is temporarily unavailable. Please try again later."
	}
	return "An error occurred. Please try again."
}

// TransportError is a failure with no HTTP status: the connection failed, the caller cancelled,
// or the timeout budget ran out.
type TransportError struct {
	Method   string
	URL      string
	Err      error
	Timeout  bool
	Canceled bool
}

func (e *TransportError) Error() string {
	switch {
	case e.Timeout:
		return fmt.Sprintf("%s %s: request timed out: %v", e.Method, e.URL, e.Err)
	case e.Canceled:
		return fmt.Sprintf("%s %s: request canceled: %v", e.Method, e.URL, e.Err)
	default:
		return fmt.Sprintf("%s %s: network error: %v", e.Method, e.URL, e.Err)
	}
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

func (e *TransportError) UserMessage() string {
	switch {
	case e.Timeout:
		return "The request timed out. Please try again."
	case e.Canceled:
		return "The request was cancelled."
	default:
		return "Unable to connect. Please check your internet connection and try again."
	}
}

// DecodeError is returned when a successful response does not match the expected schema or type.
type DecodeError struct {
	Schema string
	Err    error
}

func (e *DecodeError) Error() string {
	if e.Schema == "" {
		return fmt.Sprintf("decode response: %v", e.Err)
	}
	return fmt.Sprintf("decode response (schema %s): %v", e.Schema, e.Err)
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}

// IsTimeout reports whether err is a transport error caused by a timeout.
func IsTimeout(err error) bool {
	var te *TransportError
	return errors.As(err, &te) && te.Timeout
}

// IsCanceled reports whether err is a transport error caused by the caller cancelling.
func IsCanceled(err error) bool {
	var te *TransportError
	return errors.As(err, &te) && te.Canceled
}

// StatusCode returns the HTTP status of a request error. ok is false for every other error kind.
func StatusCode(err error) (code int, ok bool) {
	var re *RequestError
	if errors.As(err, &re) {
		return re.StatusCode, true
	}
	return 0, false
}

// UserMessage returns an end user message for any error returned by the client.
func UserMessage(err error) string {
	var (
		re *RequestError
		te *TransportError
		ce *ConfigError
		de *DecodeError
	)
	switch {
	case err == nil:
		return ""
	case errors.As(err, &re):
		return re.UserMessage()
	case errors.As(err, &te):
		return te.UserMessage()
	case errors.As(err, &ce):
		return "The client is not configured: " + ce.Reason
	case errors.As(err, &de):
		return "The service returned an unexpected response. Please try again later."
	default:
		return "An error occurred. Please try again."
	}
}
