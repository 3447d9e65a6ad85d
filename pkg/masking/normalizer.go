// Package masking prepares raw input for the transform pipeline: Unicode
// normalization, locked-span extraction, and placeholder masking/unmasking.
// Offsets into the normalized text are the canonical coordinate space for
// every downstream stage.
package masking

import (
	"regexp"
	"strings"

	"golang.org/x/text/unicode/norm"
)

var (
	// Zero-width space/joiners, BOM, soft hyphen, word joiner, Mongolian vowel separator.
	invisibleChars = regexp.MustCompile(`[\x{200B}\x{200C}\x{200D}\x{FEFF}\x{00AD}\x{2060}\x{180E}]`)
	controlChars   = regexp.MustCompile("[\x00-\x08\x0B\x0C\x0E-\x1F\x7F]")
	runsOfBlanks   = regexp.MustCompile("[ \t]{2,}")
	runsOfNewlines = regexp.MustCompile("\n{3,}")
)

// Normalize canonicalizes raw input text. It is pure and idempotent:
// NFC normalization, invisible and control character removal, newline
// canonicalization, whitespace collapse (newlines preserved), and trim.
func Normalize(text string) string {
	if text == "" {
		return ""
	}

	result := norm.NFC.String(text)
	result = invisibleChars.ReplaceAllString(result, "")
	result = controlChars.ReplaceAllString(result, "")
	result = strings.ReplaceAll(result, "\r\n", "\n")
	result = strings.ReplaceAll(result, "\r", "\n")
	result = runsOfBlanks.ReplaceAllString(result, " ")
	result = runsOfNewlines.ReplaceAllString(result, "\n\n")
	return strings.TrimSpace(result)
}
