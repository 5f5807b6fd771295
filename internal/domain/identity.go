package domain

import (
	"fmt"
	"strings"
)

type Identity string

const (
	minIdentityDigits = 8
	maxIdentityDigits = 15
)

// NormalizeIdentity strips common phone-number punctuation and requires the
// remainder to be a plain digit string.
func NormalizeIdentity(raw string) (Identity, error) {
	digits, err := phoneDigits(raw)
	if err != nil {
		return "", err
	}
	return checkedIdentity(raw, digits)
}

// NormalizeTarget is NormalizeIdentity for message recipients written in
// national format. With a non-empty countryCode, a leading trunk 0 is
// replaced by the code and a bare leading 8 gets the code prepended.
func NormalizeTarget(raw, countryCode string) (Identity, error) {
	digits, err := phoneDigits(raw)
	if err != nil {
		return "", err
	}

	if countryCode != "" {
		switch {
		case strings.HasPrefix(digits, "0"):
			digits = countryCode + digits[1:]
		case strings.HasPrefix(digits, "8"):
			digits = countryCode + digits
		}
	}

	return checkedIdentity(raw, digits)
}

// ValidateCountryCode accepts an empty code or 1 to 3 digits without a
// leading zero.
func ValidateCountryCode(code string) error {
	if code == "" {
		return nil
	}
	if len(code) > 3 || code[0] == '0' || strings.Trim(code, "0123456789") != "" {
		return fmt.Errorf("invalid country code %q", code)
	}
	return nil
}

func phoneDigits(raw string) (string, error) {
	var b strings.Builder
	for _, r := range strings.TrimSpace(raw) {
		switch {
		case r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == ' ' || r == '+' || r == '-' || r == '(' || r == ')' || r == '.':
			continue
		default:
			return "", fmt.Errorf("%w: unexpected character %q", ErrInvalidIdentity, r)
		}
	}
	return b.String(), nil
}

func checkedIdentity(raw, digits string) (Identity, error) {
	if len(digits) < minIdentityDigits || len(digits) > maxIdentityDigits {
		return "", fmt.Errorf("%w: %q must have %d to %d digits", ErrInvalidIdentity, raw, minIdentityDigits, maxIdentityDigits)
	}
	return Identity(digits), nil
}

func (id Identity) String() string {
	return string(id)
}
