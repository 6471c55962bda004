package providers

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	openai "github.com/openai/openai-go/v3"
)

// ErrorKind groups provider failures by what the user can do about them.
type ErrorKind string

const (
	KindAuth       ErrorKind = "auth"
	KindRateLimit  ErrorKind = "rate_limit"
	KindQuota      ErrorKind = "quota"
	KindBadRequest ErrorKind = "bad_request"
	KindServer     ErrorKind = "server"
	KindUnknown    ErrorKind = "unknown"
)

// APIError is a non-2xx response from a provider API.
type APIError struct {
	Provider   string
	StatusCode int
	Code       string // provider error code, e.g. "insufficient_quota"
	Type       string
	Message    string
	RetryAfter time.Duration
	Kind       ErrorKind
}

func (e *APIError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s error (status %d)", e.Provider, e.StatusCode)
	if e.Code != "" {
		fmt.Fprintf(&b, " [%s]", e.Code)
	}
	if e.Message != "" {
		b.WriteString(": ")
		b.WriteString(e.Message)
	}
	return b.String()
}

// AsAPIError extracts an *APIError from err's chain.
func AsAPIError(err error) (*APIError, bool) {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr, true
	}
	return nil, false
}

// kindFor classifies a response by status and error code. Quota exhaustion
// arrives as a 429 but is not retryable, so the code wins over the status.
func kindFor(status int, code, typ string) ErrorKind {
	if code == "insufficient_quota" || typ == "insufficient_quota" {
		return KindQuota
	}
	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return KindAuth
	case status == http.StatusTooManyRequests:
		return KindRateLimit
	case status >= 500:
		return KindServer
	case status >= 400:
		return KindBadRequest
	}
	return KindUnknown
}

func mapOpenAIError(err error) error {
	var apiErr *openai.Error
	if !errors.As(err, &apiErr) {
		return err
	}

	out := &APIError{
		Provider:   OpenAIName,
		StatusCode: apiErr.StatusCode,
		Code:       apiErr.Code,
		Type:       apiErr.Type,
		Message:    apiErr.Message,
	}
	out.Kind = kindFor(out.StatusCode, out.Code, out.Type)
	if apiErr.Response != nil {
		out.RetryAfter = parseRetryAfter(apiErr.Response.Header.Get("Retry-After"))
	}
	return out
}

// parseRetryAfter reads a Retry-After header given in seconds or as an HTTP date.
func parseRetryAfter(v string) time.Duration {
	v = strings.TrimSpace(v)
	if v == "" {
		return 0
	}
	if secs, err := strconv.Atoi(v); err == nil && secs > 0 {
		return time.Duration(secs) * time.Second
	}
	if t, err := http.ParseTime(v); err == nil {
		if d := time.Until(t); d > 0 {
			return d
		}
	}
	return 0
}
