package aroflo

import (
	"errors"
	"fmt"
	"strings"
)

// ErrUnsupported marks operations the API accepts but never applies.
var ErrUnsupported = errors.New("operation not supported by the AroFlo API")

// ConfigError reports missing or invalid credentials. It is returned before
// any request is attempted and is never retried.
type ConfigError struct {
	Missing []string
	Reason  string
}

func (e *ConfigError) Error() string {
	if len(e.Missing) > 0 {
		return fmt.Sprintf("missing credentials: set %s", strings.Join(e.Missing, ", "))
	}
	return "invalid configuration: " + e.Reason
}

// APIError is a well-formed response carrying an application error.
type APIError struct {
	Zone    string
	Status  string
	Message string
}

func (e *APIError) Error() string {
	if e.Status != "" {
		return fmt.Sprintf("aroflo api error (zone %s, status %s): %s", e.Zone, e.Status, e.Message)
	}
	return fmt.Sprintf("aroflo api error (zone %s): %s", e.Zone, e.Message)
}

// TransportError wraps the last network, HTTP status or decoding failure
// once every attempt is used up.
type TransportError struct {
	Zone     string
	Attempts int
	Err      error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("aroflo request to zone %s failed after %d attempt(s): %v", e.Zone, e.Attempts, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// StatusError is a non-2xx HTTP response.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("http status %d: %s", e.StatusCode, e.Body)
}

// Temporary reports whether the status is worth another attempt.
func (e *StatusError) Temporary() bool {
	return e.StatusCode == 429 || e.StatusCode >= 500
}
