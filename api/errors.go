package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/jekyllbuildr/buildr/auth"
	"github.com/jekyllbuildr/buildr/resilience"
)

// Sentinel errors returned by the client.
var (
	// ErrUnexpectedStatus matches every non-2xx response.
	ErrUnexpectedStatus = errors.New("api: unexpected status")

	// ErrUnauthorized means the service rejected the credential (401/403).
	ErrUnauthorized = errors.New("api: unauthorized")

	// ErrNotFound means the endpoint does not exist (404), usually a wrong API URL.
	ErrNotFound = errors.New("api: not found")

	// ErrDecode means a 2xx body was not the expected JSON.
	ErrDecode = errors.New("api: cannot decode response")
)

// StatusError is a non-2xx response.
type StatusError struct {
	Method  string
	Path    string
	Code    int
	Message string

	// Wait is the server's Retry-After, zero when absent.
	Wait time.Duration
}

func (e *StatusError) Error() string {
	msg := e.Message
	if msg == "" {
		msg = http.StatusText(e.Code)
	}
	return fmt.Sprintf("api: %s %s: status %d: %s", e.Method, e.Path, e.Code, msg)
}

// Is matches ErrUnexpectedStatus and the status-specific sentinels.
func (e *StatusError) Is(target error) bool {
	switch target {
	case ErrUnexpectedStatus:
		return true
	case ErrUnauthorized:
		return e.Code == http.StatusUnauthorized || e.Code == http.StatusForbidden
	case ErrNotFound:
		return e.Code == http.StatusNotFound
	}
	return false
}

// Temporary reports whether retrying may succeed.
func (e *StatusError) Temporary() bool {
	return e.Code >= 500 || e.Code == http.StatusRequestTimeout || e.Code == http.StatusTooManyRequests
}

// RetryAfter implements resilience.RetryAfterHint.
func (e *StatusError) RetryAfter() time.Duration {
	return e.Wait
}

// classify turns a non-2xx response into an error. Client errors that
// retrying cannot fix are marked permanent.
func classify(method, path string, resp *http.Response, body []byte) error {
	err := &StatusError{
		Method:  method,
		Path:    path,
		Code:    resp.StatusCode,
		Message: errorMessage(body),
		Wait:    retryAfter(resp.Header.Get("Retry-After"), time.Now()),
	}
	if err.Temporary() {
		return err
	}
	return resilience.Permanent(err)
}

// retryAfter parses a Retry-After header given in seconds or as an HTTP date.
func retryAfter(v string, now time.Time) time.Duration {
	if v == "" {
		return 0
	}
	if secs, err := strconv.Atoi(v); err == nil {
		if secs < 0 {
			return 0
		}
		return time.Duration(secs) * time.Second
	}
	if t, err := http.ParseTime(v); err == nil && t.After(now) {
		return t.Sub(now)
	}
	return 0
}

// errorMessage extracts {"error": "..."} or {"message": "..."} from a body.
func errorMessage(body []byte) string {
	var payload struct {
		Error   string `json:"error"`
		Message string `json:"message"`
	}
	if json.Unmarshal(body, &payload) == nil {
		if payload.Error != "" {
			return payload.Error
		}
		if payload.Message != "" {
			return payload.Message
		}
	}
	text := strings.TrimSpace(string(body))
	if len(text) > 200 {
		text = text[:200]
	}
	if strings.HasPrefix(text, "<") {
		return ""
	}
	return text
}

// authFailure reports whether err came from the token source rather than the network.
func authFailure(err error) bool {
	return errors.Is(err, auth.ErrNotLoggedIn) ||
		errors.Is(err, auth.ErrLoginTimeout) ||
		errors.Is(err, auth.ErrTokenExpired) ||
		errors.Is(err, auth.ErrTokenMalformed) ||
		errors.Is(err, auth.ErrMissingToken)
}

var _ resilience.RetryAfterHint = (*StatusError)(nil)
