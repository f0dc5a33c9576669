package wms

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// BasketIDLength is the length of a normalized basket identifier:
// 'B' followed by nine zero-padded digits.
const BasketIDLength = 10

// MaxBasketNumber is the largest numeric basket identity.
const MaxBasketNumber = 999_999_999

var (
	digitsRe = regexp.MustCompile(`^\d+$`)
	basketRe = regexp.MustCompile(`^[bB](\d{1,9})$`)
)

// NormalizeBasketID converts a raw basket token into the canonical
// 10-character form "B%09d". Accepted inputs are a bare number
// ("5" -> "B000000005") or a 'B'/'b' prefix followed by up to nine digits
// ("b5", "B000000005"). Anything else is a format error.
func NormalizeBasketID(value string) (string, error) {
	s := strings.TrimSpace(value)
	if s == "" {
		return "", fmt.Errorf("basket id is required")
	}

	if digitsRe.MatchString(s) {
		n, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return "", fmt.Errorf("invalid basket number %q: %w", s, err)
		}
		return FormatBasketNumber(n)
	}

	if m := basketRe.FindStringSubmatch(s); m != nil {
		n, err := strconv.ParseInt(m[1], 10, 64)
		if err != nil {
			return "", fmt.Errorf("invalid basket number %q: %w", s, err)
		}
		return FormatBasketNumber(n)
	}

	return "", fmt.Errorf("invalid basket id/number format: %q", s)
}

// FormatBasketNumber renders a numeric basket identity in canonical form.
// Numbers outside [0, MaxBasketNumber] are rejected.
func FormatBasketNumber(n int64) (string, error) {
	if n < 0 || n > MaxBasketNumber {
		return "", fmt.Errorf("basket number must be 0..%d, got %d", MaxBasketNumber, n)
	}
	return fmt.Sprintf("B%09d", n), nil
}

// IsNormalizedBasketID reports whether s is already in canonical form.
// Used by the QR listener to validate raw scanner payloads cheaply.
func IsNormalizedBasketID(s string) bool {
	if len(s) != BasketIDLength || s[0] != 'B' {
		return false
	}
	return digitsRe.MatchString(s[1:])
}
