package apiclient

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/url"

	"github.com/yy184292-glitch/vlp-saas-sub000/internal/schemas"
)

var (
	errEmptyBody = errors.New("response has no body")
	errNotJSON   = errors.New("response body is not JSON")
)

// Decode converts a successful response into T.
//
// When schema is empty a body-less or non-JSON response yields the zero T and no error.
// When a schema is named the body must be JSON that validates against it; anything else is a *DecodeError.
func Decode[T any](c *Client, resp *Response, schema string) (T, error) {
	var out T

	if resp == nil || resp.NoContent || resp.Payload == nil {
		if schema != "" {
			return out, &DecodeError{Schema: schema, Err: errEmptyBody}
		}
		return out, nil
	}

	if !json.Valid(resp.Raw) {
		if schema != "" {
			return out, &DecodeError{Schema: schema, Err: errNotJSON}
		}
		return out, nil
	}

	if schema != "" {
		registry, err := c.schemaRegistry()
		if err != nil {
			return out, &DecodeError{Schema: schema, Err: err}
		}
		if err := registry.Validate(schema, resp.Raw); err != nil {
			return out, &DecodeError{Schema: schema, Err: err}
		}
	}

	if err := json.Unmarshal(resp.Raw, &out); err != nil {
		return out, &DecodeError{Schema: schema, Err: err}
	}
	return out, nil
}

func (c *Client) schemaRegistry() (*schemas.Registry, error) {
	if c.schemas != nil {
		return c.schemas, nil
	}
	return schemas.Default()
}

// Request calls Do and decodes the response with Decode.
func Request[T any](ctx context.Context, c *Client, method, path string, opts *RequestOptions, schema string) (T, error) {
	resp, err := c.Do(ctx, method, path, opts)
	if err != nil {
		var zero T
		return zero, err
	}
	return Decode[T](c, resp, schema)
}

func Get[T any](ctx context.Context, c *Client, path string, query url.Values, schema string) (T, error) {
	return Request[T](ctx, c, http.MethodGet, path, &RequestOptions{Query: query}, schema)
}

func Post[T any](ctx context.Context, c *Client, path string, body any, schema string) (T, error) {
	return Request[T](ctx, c, http.MethodPost, path, &RequestOptions{Body: body}, schema)
}

func Put[T any](ctx context.Context, c *Client, path string, body any, schema string) (T, error) {
	return Request[T](ctx, c, http.MethodPut, path, &RequestOptions{Body: body}, schema)
}

func Patch[T any](ctx context.Context, c *Client, path string, body any, schema string) (T, error) {
	return Request[T](ctx, c, http.MethodPatch, path, &RequestOptions{Body: body}, schema)
}

// Delete sends a DELETE and discards any body.
func Delete(ctx context.Context, c *Client, path string) error {
	_, err := c.Do(ctx, http.MethodDelete, path, nil)
	return err
}
