package ai

import (
	"context"
	"encoding/json"
	"github.com/myrjola/dossier/internal/errors"
	"github.com/sashabaranov/go-openai"
	"io"
	"net"
	"net/http"
)

// Failure kinds surfaced by providers. Callers treat them the same way but log them apart.
var (
	ErrAuth              = errors.NewSentinel("provider rejected credential")
	ErrRateLimited       = errors.NewSentinel("provider rate limited")
	ErrTimeout           = errors.NewSentinel("provider timed out")
	ErrMalformedResponse = errors.NewSentinel("provider returned malformed response")
	ErrUnavailable       = errors.NewSentinel("provider unavailable")
	ErrUnknownProvider   = errors.NewSentinel("unknown provider")
)

// ProviderError carries the failure kind together with the underlying cause.
type ProviderError struct {
	Provider string
	Op       string
	Kind     error
	Err      error
}

func (e *ProviderError) Error() string {
	if e.Err == nil {
		return e.Provider + " " + e.Op + ": " + e.Kind.Error()
	}
	return e.Provider + " " + e.Op + ": " + e.Kind.Error() + ": " + e.Err.Error()
}

func (e *ProviderError) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

// Kind returns a short label for the failure kind of err, suitable for log attributes and metric labels.
func Kind(err error) string {
	switch {
	case err == nil:
		return "none"
	case errors.Is(err, ErrAuth):
		return "auth"
	case errors.Is(err, ErrRateLimited):
		return "rate_limited"
	case errors.Is(err, ErrTimeout):
		return "timeout"
	case errors.Is(err, ErrMalformedResponse):
		return "malformed_response"
	default:
		return "unavailable"
	}
}

// classify maps a transport or API error onto one of the failure kinds.
func classify(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return ErrTimeout
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return ErrTimeout
	}
	if status := httpStatus(err); status != 0 {
		return classifyStatus(status)
	}
	var syntaxErr *json.SyntaxError
	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &syntaxErr) || errors.As(err, &typeErr) || errors.Is(err, io.ErrUnexpectedEOF) {
		return ErrMalformedResponse
	}
	return ErrUnavailable
}

func classifyStatus(status int) error {
	switch status {
	case http.StatusUnauthorized, http.StatusForbidden:
		return ErrAuth
	case http.StatusTooManyRequests:
		return ErrRateLimited
	case http.StatusRequestTimeout, http.StatusGatewayTimeout:
		return ErrTimeout
	default:
		return ErrUnavailable
	}
}

// httpStatus returns the HTTP status the vendor answered with, or 0 when no response was received.
func httpStatus(err error) int {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return apiErr.HTTPStatusCode
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return reqErr.HTTPStatusCode
	}
	return 0
}
