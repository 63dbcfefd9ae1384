package apiclient

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
	"net/url"
	"strings"
	"time"
)

// RequestOptions are the per-call settings for Do. The zero value is a plain request.
//
// Body may be nil, []byte, string or io.Reader (sent as is), or any other value, which is JSON encoded.
// Header values set here take precedence over the defaults the client adds.
// Timeout overrides the client's default budget for this call.
type RequestOptions struct {
	Header  http.Header
	Query   url.Values
	Body    any
	Timeout time.Duration
}

// Response is a successful (2xx) response.
// Payload is the parsed JSON body, the raw text when the body is not JSON, or nil when there is no body.
type Response struct {
	StatusCode int
	Header     http.Header
	Raw        []byte
	Payload    any
	NoContent  bool
}

// Do performs exactly one HTTP request.
//
// The error is a *ConfigError when the url cannot be built, a *RequestError for a non-2xx status
// and a *TransportError when no status was received.
func (c *Client) Do(ctx context.Context, method, path string, opts *RequestOptions) (*Response, error) {
	if opts == nil {
		opts = &RequestOptions{}
	}
	if method == "" {
		method = http.MethodGet
	}

	target, err := c.ResolveURL(path)
	if err != nil {
		return nil, err
	}
	if len(opts.Query) > 0 {
		target = appendQuery(target, opts.Query)
	}

	body, err := encodeBody(opts.Body)
	if err != nil {
		return nil, fmt.Errorf("encode request body for %s %s: %w", method, target, err)
	}

	timeout := c.timeout
	if opts.Timeout > 0 {
		timeout = opts.Timeout
	}
	reqCtx := ctx
	if timeout > 0 {
		var cancel context.CancelFunc
		reqCtx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	req, err := http.NewRequestWithContext(reqCtx, method, target, body)
	if err != nil {
		return nil, &ConfigError{Reason: fmt.Sprintf("cannot build request for %s", target), Err: err}
	}
	c.setHeaders(reqCtx, req, opts.Header)

	start := time.Now()
	res, err := c.httpClient.Do(req)
	if err != nil {
		return nil, c.transportError(ctx, reqCtx, method, target, err)
	}
	defer res.Body.Close()

	raw, err := io.ReadAll(res.Body)
	if err != nil {
		return nil, c.transportError(ctx, reqCtx, method, target, err)
	}

	c.logger.LogAttrs(ctx, slog.LevelDebug, "api request",
		slog.String("method", method),
		slog.String("url", target),
		slog.Int("status", res.StatusCode),
		slog.Duration("duration", time.Since(start)),
	)

	if res.StatusCode < 200 || res.StatusCode > 299 {
		return nil, &RequestError{
			Method:     method,
			URL:        target,
			StatusCode: res.StatusCode,
			Header:     res.Header,
			Payload:    parsePayload(raw),
			Raw:        raw,
		}
	}

	if res.StatusCode == http.StatusNoContent {
		return &Response{StatusCode: res.StatusCode, Header: res.Header, NoContent: true}, nil
	}

	return &Response{
		StatusCode: res.StatusCode,
		Header:     res.Header,
		Raw:        raw,
		Payload:    parsePayload(raw),
	}, nil
}

// setHeaders fills in the defaults without overriding anything the caller supplied.
func (c *Client) setHeaders(ctx context.Context, req *http.Request, callerHeader http.Header) {
	for k, v := range callerHeader {
		req.Header[http.CanonicalHeaderKey(k)] = append([]string(nil), v...)
	}

	setDefault := func(key, value string) {
		if req.Header.Get(key) == "" {
			req.Header.Set(key, value)
		}
	}
	setDefault("Content-Type", "application/json")
	setDefault("Accept", "application/json")
	if c.userAgent != "" {
		setDefault("User-Agent", c.userAgent)
	}

	if req.Header.Get("Authorization") != "" {
		return
	}
	if token := c.credential(ctx); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
}

// credential reads the stored token. Failures are logged and treated as no credential.
func (c *Client) credential(ctx context.Context) string {
	if c.store == nil {
		c.logger.Warn("no credential store configured, sending request without credential")
		return ""
	}
	token, err := c.store.Get(ctx)
	if err != nil {
		c.logger.Warn("failed to read credential, sending request without it",
			slog.String("error", err.Error()),
		)
		return ""
	}
	return strings.TrimSpace(token)
}

// transportError classifies err. reqCtx is the context the request ran under (possibly with the timeout applied);
// ctx is the caller's context.
func (c *Client) transportError(ctx, reqCtx context.Context, method, target string, err error) *TransportError {
	te := &TransportError{Method: method, URL: target, Err: err}

	switch {
	case errors.Is(ctx.Err(), context.Canceled):
		te.Canceled = true
	case errors.Is(ctx.Err(), context.DeadlineExceeded):
		te.Timeout = true
	case errors.Is(reqCtx.Err(), context.DeadlineExceeded):
		te.Timeout = true
	default:
		var netErr net.Error
		if errors.As(err, &netErr) && netErr.Timeout() {
			te.Timeout = true
		}
	}

	c.logger.Debug("api transport error",
		slog.String("method", method),
		slog.String("url", target),
		slog.Bool("timeout", te.Timeout),
		slog.Bool("canceled", te.Canceled),
		slog.String("error", err.Error()),
	)
	return te
}

func encodeBody(body any) (io.Reader, error) {
	switch b := body.(type) {
	case nil:
		return nil, nil
	case []byte:
		return bytes.NewReader(b), nil
	case json.RawMessage:
		return bytes.NewReader(b), nil
	case string:
		return strings.NewReader(b), nil
	case io.Reader:
		return b, nil
	default:
		data, err := json.Marshal(b)
		if err != nil {
			return nil, err
		}
		return bytes.NewReader(data), nil
	}
}

// parsePayload tries JSON first whatever the declared content type, then raw text, then nil.
func parsePayload(raw []byte) any {
	if len(bytes.TrimSpace(raw)) == 0 {
		return nil
	}
	var v any
	if err := json.Unmarshal(raw, &v); err == nil {
		return v
	}
	return string(raw)
}

func appendQuery(target string, query url.Values) string {
	sep := "?"
	if strings.Contains(target, "?") {
		sep = "&"
	}
	return target + sep + query.Encode()
}
