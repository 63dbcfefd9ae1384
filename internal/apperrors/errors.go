package apperrors

// ErrorCode is the machine readable part of the {error_code, message} error payload
// written by the edge proxy.
type ErrorCode string

const (
	ErrCodeInternalError       ErrorCode = "internal_error"
	ErrCodeInvalidRequest      ErrorCode = "invalid_request"
	ErrCodeMethodNotAllowed    ErrorCode = "method_not_allowed"
	ErrCodeRateLimitExceeded   ErrorCode = "rate_limit_exceeded"
	ErrCodeRequestTooLarge     ErrorCode = "request_too_large"
	ErrCodeResourceNotFound    ErrorCode = "resource_not_found"
	ErrCodeUpstreamTimeout     ErrorCode = "upstream_timeout"
	ErrCodeUpstreamUnavailable ErrorCode = "upstream_unavailable"
)
