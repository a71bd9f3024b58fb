package weathererr

import (
	"errors"
	"fmt"
	"strings"
	"testing"
)

// TestKindsAreDisjoint verifies each error kind matches only its own helper,
// so callers can branch reliably.
func TestKindsAreDisjoint(t *testing.T) {
	tests := []struct {
		name    string
		err     error
		matches func(error) bool
		others  []func(error) bool
	}{
		{
			name:    "config",
			err:     &ConfigError{Msg: "API key is required"},
			matches: IsConfig,
			others:  []func(error) bool{IsCityNotFound, IsAPI, IsValidation},
		},
		{
			name:    "city not found",
			err:     &CityNotFoundError{City: "Atlantis"},
			matches: IsCityNotFound,
			others:  []func(error) bool{IsConfig, IsAPI, IsValidation},
		},
		{
			name:    "api",
			err:     &APIError{Msg: "unexpected response", StatusCode: 502},
			matches: IsAPI,
			others:  []func(error) bool{IsConfig, IsCityNotFound, IsValidation},
		},
		{
			name:    "validation",
			err:     &ValidationError{Field: "main.temp", Msg: "missing temperature"},
			matches: IsValidation,
			others:  []func(error) bool{IsConfig, IsCityNotFound, IsAPI},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if !tc.matches(tc.err) {
				t.Errorf("helper for %s did not match its own error", tc.name)
			}
			for i, other := range tc.others {
				if other(tc.err) {
					t.Errorf("helper %d matched %s error, want disjoint kinds", i, tc.name)
				}
			}
		})
	}
}

// TestHelpers_MatchWrappedErrors verifies errors.As matching survives %w wrapping.
func TestHelpers_MatchWrappedErrors(t *testing.T) {
	wrapped := fmt.Errorf("fetch weather for atlantis: %w", &CityNotFoundError{City: "atlantis"})
	if !IsCityNotFound(wrapped) {
		t.Error("IsCityNotFound() = false for wrapped error, want true")
	}

	doubly := fmt.Errorf("exhausted retries: %w", fmt.Errorf("attempt 3: %w", &APIError{Msg: "upstream", StatusCode: 503}))
	if !IsAPI(doubly) {
		t.Error("IsAPI() = false for doubly wrapped error, want true")
	}
}

// TestAPIError_Unwrap verifies the underlying cause stays reachable.
func TestAPIError_Unwrap(t *testing.T) {
	cause := errors.New("connection refused")
	err := &APIError{Msg: "http request failed", Err: cause}
	if !errors.Is(err, cause) {
		t.Error("errors.Is(err, cause) = false, want true")
	}
}

// TestErrorMessages verifies messages carry their context.
func TestErrorMessages(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{&CityNotFoundError{City: "Atlantis"}, "Atlantis"},
		{&APIError{Msg: "unexpected response", StatusCode: 502}, "502"},
		{&ValidationError{Field: "main.temp", Msg: "missing temperature"}, "main.temp"},
		{&ConfigError{Msg: "API key is required"}, "API key"},
	}
	for _, tc := range tests {
		if got := tc.err.Error(); !strings.Contains(got, tc.want) {
			t.Errorf("Error() = %q, want substring %q", got, tc.want)
		}
	}
}
