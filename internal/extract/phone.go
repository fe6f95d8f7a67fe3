package extract

import (
	"fmt"
	"regexp"
	"strings"
)

// DefaultPhoneStripPattern removes everything except digits and plus signs.
const DefaultPhoneStripPattern = `[^0-9+]`

const (
	minPhoneDigits = 6
	maxPhoneDigits = 15
)

// PhoneNormalizer canonicalizes raw phone strings to a digits-plus form used
// as the fallback dedup key. It is a length heuristic, not locale-aware
// validation.
type PhoneNormalizer struct {
	strip *regexp.Regexp
}

// NewPhoneNormalizer compiles the strip pattern; an empty pattern selects the
// default.
func NewPhoneNormalizer(pattern string) (*PhoneNormalizer, error) {
	if pattern == "" {
		pattern = DefaultPhoneStripPattern
	}
	strip, err := regexp.Compile(pattern)
	if err != nil {
		return nil, fmt.Errorf("compile phone strip pattern: %w", err)
	}
	return &PhoneNormalizer{strip: strip}, nil
}

// Normalize strips every character except digits and a leading "+", rewrites
// a leading "00" to "+", and accepts only numbers with 6 to 15 digits.
// Invalid input yields the empty string.
func (n *PhoneNormalizer) Normalize(raw string) string {
	stripped := n.strip.ReplaceAllString(strings.TrimSpace(raw), "")
	if stripped == "" {
		return ""
	}

	hasPlus := strings.HasPrefix(stripped, "+")
	digits := strings.ReplaceAll(stripped, "+", "")
	if strings.HasPrefix(digits, "00") {
		digits = digits[2:]
		hasPlus = true
	}

	count := len(digits)
	if count < minPhoneDigits || count > maxPhoneDigits {
		return ""
	}
	for _, r := range digits {
		if r < '0' || r > '9' {
			return ""
		}
	}

	if hasPlus {
		return "+" + digits
	}
	return digits
}
