package services

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

var (
	controlCharsRegex    = regexp.MustCompile(`[\x00-\x08\x0B-\x0C\x0E-\x1F\x7F]`)
	zeroWidthRegex       = regexp.MustCompile(`[\x{200B}-\x{200F}\x{FEFF}]`)
	excessiveSpacesRegex = regexp.MustCompile(`\s+`)
)

// TextSanitizer prepares untrusted text for log output. It is never applied to
// text that is sent to the model or returned to clients.
type TextSanitizer struct{}

func NewTextSanitizer() *TextSanitizer {
	return &TextSanitizer{}
}

// SanitizeText removes control and zero-width characters and collapses
// whitespace runs into single spaces.
func (ts *TextSanitizer) SanitizeText(text string) string {
	if text == "" {
		return ""
	}

	// Control characters except \t, \n and \r
	sanitized := controlCharsRegex.ReplaceAllString(text, "")

	// Zero-width characters and BOMs
	sanitized = zeroWidthRegex.ReplaceAllString(sanitized, "")

	// Collapse whitespace runs
	sanitized = excessiveSpacesRegex.ReplaceAllString(sanitized, " ")

	return strings.TrimSpace(sanitized)
}

// Preview returns at most maxRunes runes of the sanitized text, with "..."
// appended when it was cut.
func (ts *TextSanitizer) Preview(text string, maxRunes int) string {
	clean := ts.SanitizeText(text)
	if maxRunes <= 0 || utf8.RuneCountInString(clean) <= maxRunes {
		return clean
	}

	runes := []rune(clean)
	return string(runes[:maxRunes]) + "..."
}
