package validators

import (
	"strings"
	"unicode"
)

// SanitizeString trims, drops control characters and truncates to maxLen bytes
// without splitting a rune.
func SanitizeString(input string, maxLen int) string {
	cleaned := strings.Map(func(r rune) rune {
		if unicode.IsControl(r) {
			return -1
		}
		return r
	}, strings.TrimSpace(input))
	if maxLen <= 0 || len(cleaned) <= maxLen {
		return cleaned
	}
	cut := maxLen
	for cut > 0 && !utf8RuneStart(cleaned[cut]) {
		cut--
	}
	return cleaned[:cut]
}

// NormalizeCurrency upper-cases an ISO 4217 alpha code.
func NormalizeCurrency(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

func utf8RuneStart(b byte) bool {
	return b&0xC0 != 0x80
}
