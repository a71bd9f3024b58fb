package validation

import (
	"errors"
	"testing"
)

// TestValidateLocation covers trimming, length bounds and the allowed
// character set.
func TestValidateLocation(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		minLen  int
		maxLen  int
		want    string
		wantErr error
	}{
		{"simple city", "Seattle", 2, 100, "Seattle", nil},
		{"trims whitespace", "  Seattle  ", 2, 100, "Seattle", nil},
		{"city with comma", "Portland, OR", 2, 100, "Portland, OR", nil},
		{"hyphenated city", "Winston-Salem", 2, 100, "Winston-Salem", nil},
		{"unicode letters", "São Paulo", 2, 100, "São Paulo", nil},
		{"digits allowed", "District 9", 2, 100, "District 9", nil},
		{"empty", "", 2, 100, "", ErrLocationEmpty},
		{"whitespace only", "   ", 2, 100, "", ErrLocationEmpty},
		{"too short", "A", 2, 100, "", ErrLocationTooShort},
		{"too long", longLocation(101), 2, 100, "", ErrLocationTooLong},
		{"disallowed punctuation", "Seattle;DROP", 2, 100, "", ErrLocationInvalidChars},
		{"angle brackets", "<script>", 2, 100, "", ErrLocationInvalidChars},
		{"rune bound counts runes not bytes", "São", 3, 100, "São", nil},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := ValidateLocation(tc.input, tc.minLen, tc.maxLen)
			if !errors.Is(err, tc.wantErr) {
				t.Fatalf("ValidateLocation(%q) error = %v, want %v", tc.input, err, tc.wantErr)
			}
			if got != tc.want {
				t.Errorf("ValidateLocation(%q) = %q, want %q", tc.input, got, tc.want)
			}
		})
	}
}

// TestValidateLocation_ZeroBoundsDisableLengthChecks verifies zero min/max
// skip the length checks entirely.
func TestValidateLocation_ZeroBoundsDisableLengthChecks(t *testing.T) {
	got, err := ValidateLocation("A", 0, 0)
	if err != nil {
		t.Fatalf("ValidateLocation() error = %v", err)
	}
	if got != "A" {
		t.Errorf("ValidateLocation() = %q, want %q", got, "A")
	}
}

func longLocation(n int) string {
	r := make([]rune, n)
	for i := range r {
		r[i] = 'a'
	}
	return string(r)
}
