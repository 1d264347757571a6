package postcode

import (
	"errors"
	"regexp"
	"strings"
	"unicode"
)

// Canonical is a validated UK postcode: uppercase with exactly one space before the
// inward code, e.g. "BN1 1AB".
type Canonical string

func (c Canonical) String() string { return string(c) }

var (
	ErrEmpty     = errors.New("empty")
	ErrMalformed = errors.New("malformed")
)

// Outward code (1-2 letters, digit, optional letter/digit), optional whitespace,
// inward code (digit, two letters).
var pattern = regexp.MustCompile(`^[A-Za-z]{1,2}\d[A-Za-z\d]?\s*\d[A-Za-z]{2}$`)

func Validate(raw string) (Canonical, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return "", ErrEmpty
	}
	if !pattern.MatchString(trimmed) {
		return "", ErrMalformed
	}
	compact := strings.ToUpper(stripSpace(trimmed))
	return Canonical(compact[:len(compact)-3] + " " + compact[len(compact)-3:]), nil
}

// FormatInput normalises partially typed input for display. It never rejects.
func FormatInput(raw string) string {
	compact := []rune(strings.ToUpper(stripSpace(raw)))
	if len(compact) <= 3 {
		return string(compact)
	}
	return string(compact[:len(compact)-3]) + " " + string(compact[len(compact)-3:])
}

func stripSpace(s string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		return r
	}, s)
}
