// Package identifier normalizes the phone numbers and email addresses the
// message store and the address book use so that entries from either source
// compare equal.
package identifier

import (
	"strings"
	"unicode"
)

// Normalize canonicalizes a handle identifier.
//
// Email addresses pass through unchanged, as do textual identifiers such as
// carrier short codes ("Amazon", "Google"). Phone numbers are reduced to
// their digits, and numbers longer than 10 digits keep only the last 10 so
// that "+1 (555) 123-4567" and "5551234567" collapse to the same key. That
// is a NANP assumption and a known limitation for international numbers.
func Normalize(id string) string {
	if strings.Contains(id, "@") {
		return id
	}

	// Textual identifiers start with a non-digit word character.
	runes := []rune(id)
	if len(runes) > 0 && !unicode.IsDigit(runes[0]) && (unicode.IsLetter(runes[0]) || runes[0] == '_') {
		return id
	}

	var b strings.Builder
	b.Grow(len(id))
	for _, r := range id {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}

	digits := b.String()
	if len(digits) > 10 {
		digits = digits[len(digits)-10:]
	}
	return digits
}
