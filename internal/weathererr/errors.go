// Package weathererr defines the error kinds surfaced by the weather client.
// Callers branch on kind with errors.As (or the Is* helpers): a not-found
// error means "try a different spelling", an API error means "try again
// later", a validation error means the upstream contract is broken.
package weathererr

import (
	"errors"
	"fmt"
)

// ConfigError reports invalid or missing configuration. It is returned before
// any network attempt, at construction time of the client or its config.
type ConfigError struct {
	Msg string
	Err error
}

func (e *ConfigError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("config: %s: %v", e.Msg, e.Err)
	}
	return "config: " + e.Msg
}

func (e *ConfigError) Unwrap() error { return e.Err }

// CityNotFoundError reports that the upstream explicitly said the requested
// location does not exist. Never retried, never cached.
type CityNotFoundError struct {
	City string
}

func (e *CityNotFoundError) Error() string {
	return fmt.Sprintf("city not found: %q", e.City)
}

// APIError reports any upstream or network failure other than not-found:
// non-2xx responses, connection errors, timeouts, and bodies that are not
// valid JSON. StatusCode is zero when no HTTP response was received.
type APIError struct {
	Msg        string
	StatusCode int
	Err        error
}

func (e *APIError) Error() string {
	switch {
	case e.StatusCode != 0 && e.Err != nil:
		return fmt.Sprintf("weather api: %s (HTTP %d): %v", e.Msg, e.StatusCode, e.Err)
	case e.StatusCode != 0:
		return fmt.Sprintf("weather api: %s (HTTP %d)", e.Msg, e.StatusCode)
	case e.Err != nil:
		return fmt.Sprintf("weather api: %s: %v", e.Msg, e.Err)
	default:
		return "weather api: " + e.Msg
	}
}

func (e *APIError) Unwrap() error { return e.Err }

// ValidationError reports that the upstream call succeeded but the decoded
// payload does not match the expected schema (missing or mistyped fields).
// Distinct from APIError: it signals a contract mismatch, not a transient
// failure.
type ValidationError struct {
	Field string
	Msg   string
}

func (e *ValidationError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("invalid weather payload: field %s: %s", e.Field, e.Msg)
	}
	return "invalid weather payload: " + e.Msg
}

// IsConfig reports whether err is (or wraps) a ConfigError.
func IsConfig(err error) bool {
	var e *ConfigError
	return errors.As(err, &e)
}

// IsCityNotFound reports whether err is (or wraps) a CityNotFoundError.
func IsCityNotFound(err error) bool {
	var e *CityNotFoundError
	return errors.As(err, &e)
}

// IsAPI reports whether err is (or wraps) an APIError.
func IsAPI(err error) bool {
	var e *APIError
	return errors.As(err, &e)
}

// IsValidation reports whether err is (or wraps) a ValidationError.
func IsValidation(err error) bool {
	var e *ValidationError
	return errors.As(err, &e)
}
