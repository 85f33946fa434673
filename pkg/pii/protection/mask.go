package protection

import (
	"strings"
	"unicode"
)

// MaskValue applies format-aware masking. Emails keep their domain with the
// local part masked; digit runs keep separators and reveal only the last
// four digits; other strings reveal first and last character above length 4.
// Masking is irreversible by contract, even though deterministic.
func MaskValue(value string) string {
	if looksLikeEmail(value) {
		return maskEmail(value)
	}
	if looksLikeDigitRun(value) {
		return maskDigitRun(value)
	}
	return maskGeneric(value)
}

func looksLikeEmail(value string) bool {
	at := strings.Index(value, "@")
	return at > 0 && at < len(value)-1 && strings.Contains(value[at:], ".")
}

// looksLikeDigitRun reports whether the value is digits with optional
// separator punctuation, like card or account numbers.
func looksLikeDigitRun(value string) bool {
	digits := 0
	for _, r := range value {
		switch {
		case unicode.IsDigit(r):
			digits++
		case r == '-' || r == ' ' || r == '.' || r == '(' || r == ')' || r == '+':
		default:
			return false
		}
	}
	return digits >= 4
}

func maskEmail(email string) string {
	at := strings.Index(email, "@")
	local := email[:at]
	domain := email[at:]
	return strings.Repeat("*", len(local)) + domain
}

func maskDigitRun(value string) string {
	// Count digits so the last four can stay visible.
	total := 0
	for _, r := range value {
		if unicode.IsDigit(r) {
			total++
		}
	}

	var masked strings.Builder
	seen := 0
	for _, r := range value {
		if unicode.IsDigit(r) {
			seen++
			if seen > total-4 {
				masked.WriteRune(r)
			} else {
				masked.WriteRune('X')
			}
		} else {
			masked.WriteRune(r)
		}
	}
	return masked.String()
}

func maskGeneric(value string) string {
	runes := []rune(value)
	if len(runes) <= 4 {
		return strings.Repeat("*", len(runes))
	}
	return string(runes[0]) + strings.Repeat("*", len(runes)-2) + string(runes[len(runes)-1])
}
