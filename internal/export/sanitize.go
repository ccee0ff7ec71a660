package export

import (
	"strings"
	"unicode"
)

// SanitizeTitle strips control characters and replaces anything outside a
// conservative filename-safe set. Uploaded filenames flow into EDL titles
// and download names, so they are never trusted as-is.
func SanitizeTitle(s string, maxLen int) string {
	var b strings.Builder
	for _, r := range s {
		if unicode.IsControl(r) {
			continue
		}
		if isAllowedTitleRune(r) {
			b.WriteRune(r)
		} else {
			b.WriteRune('_')
		}
	}

	cleaned := strings.TrimSpace(b.String())
	if maxLen > 0 {
		runes := []rune(cleaned)
		if len(runes) > maxLen {
			cleaned = string(runes[:maxLen])
		}
	}
	if cleaned == "" {
		cleaned = "untitled"
	}
	return cleaned
}

func isAllowedTitleRune(r rune) bool {
	if unicode.IsLetter(r) || unicode.IsDigit(r) {
		return true
	}
	switch r {
	case ' ', '-', '_', '.', ',', '(', ')':
		return true
	default:
		return false
	}
}
