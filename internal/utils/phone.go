package utils

import (
	"strings"
)

// NormalizePhone reduces a phone number to its ten-digit national form.
// All non-digit characters are stripped. An input in international form
// (leading "+") may carry a country prefix, in which case the trailing ten
// digits are kept. Returns the digits and true on success; empty string and
// false when the input does not reduce to exactly ten digits.
func NormalizePhone(raw string) (string, bool) {
	trimmed := strings.TrimSpace(raw)
	var digits strings.Builder
	for _, r := range trimmed {
		if r >= '0' && r <= '9' {
			digits.WriteRune(r)
		}
	}
	s := digits.String()
	if len(s) == 10 {
		return s, true
	}
	if strings.HasPrefix(trimmed, "+") && len(s) > 10 {
		return s[len(s)-10:], true
	}
	return "", false
}
