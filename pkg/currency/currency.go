package currency

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// ErrInvalidCode is returned when a currency code is not three upper-case letters.
var ErrInvalidCode = errors.New("invalid currency code")

var codePattern = regexp.MustCompile(`^[A-Z]{3}$`)

// Code represents a currency code (e.g., "USD", "EUR").
type Code string

// Common currency codes
const (
	USD Code = "USD" // US Dollar
	EUR Code = "EUR" // Euro
	IDR Code = "IDR" // Indonesian Rupiah
	SGD Code = "SGD" // Singapore Dollar
	JPY Code = "JPY" // Japanese Yen
	GBP Code = "GBP" // British Pound
)

// String implements fmt.Stringer.
func (c Code) String() string {
	return string(c)
}

// IsValid reports whether c is a well-formed currency code.
func (c Code) IsValid() bool {
	return codePattern.MatchString(string(c))
}

// ParseCode normalizes s to upper case and validates it. The result never
// shares memory with s, so it is safe to keep codes parsed from buffers the
// caller reuses.
func ParseCode(s string) (Code, error) {
	c := Code(strings.Clone(strings.ToUpper(strings.TrimSpace(s))))
	if err := ValidateCode(c); err != nil {
		return "", err
	}
	return c, nil
}

// ValidateCode returns ErrInvalidCode when c is malformed.
func ValidateCode(c Code) error {
	if !c.IsValid() {
		return fmt.Errorf("%w: %q", ErrInvalidCode, string(c))
	}
	return nil
}

// Pair is an ordered (source, target) currency combination for which
// rates are quoted. A rate on a pair reads "1 Source = value Target".
type Pair struct {
	Source Code `json:"source"`
	Target Code `json:"target"`
}

// NewPair builds a pair from raw codes, validating both sides.
func NewPair(source, target string) (Pair, error) {
	s, err := ParseCode(source)
	if err != nil {
		return Pair{}, fmt.Errorf("source: %w", err)
	}
	t, err := ParseCode(target)
	if err != nil {
		return Pair{}, fmt.Errorf("target: %w", err)
	}
	return Pair{Source: s, Target: t}, nil
}

// IsZero reports whether the pair has not been set.
func (p Pair) IsZero() bool {
	return p.Source == "" && p.Target == ""
}

func (p Pair) String() string {
	return string(p.Source) + "/" + string(p.Target)
}
