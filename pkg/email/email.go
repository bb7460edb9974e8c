// Package email normalizes and sanity-checks email addresses at trust boundaries.
package email

import (
	"net/mail"
	"strings"
	"unicode"
)

// Normalize trims and lowercases an address for storage and lookup.
func Normalize(address string) string {
	return strings.ToLower(strings.TrimSpace(address))
}

// IsValid reports whether address is a bare RFC 5322 address with a domain part.
func IsValid(address string) bool {
	parsed, err := mail.ParseAddress(address)
	if err != nil || parsed.Address != address {
		return false
	}
	at := strings.LastIndexByte(address, '@')
	return at > 0 && at < len(address)-1
}

// DeriveUsername builds a username from the address's local part, keeping
// letters, digits, dots, dashes and underscores.
func DeriveUsername(address string) string {
	localPart := address
	if at := strings.IndexByte(address, '@'); at > 0 {
		localPart = address[:at]
	}
	localPart, _, _ = strings.Cut(localPart, "+")

	var b strings.Builder
	for _, r := range localPart {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || r == '.' || r == '-' || r == '_' {
			b.WriteRune(unicode.ToLower(r))
		}
	}
	return b.String()
}
