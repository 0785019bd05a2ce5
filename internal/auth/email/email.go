// Package email derives account attributes from email addresses.
package email

import (
	"strings"
	"unicode"
)

const (
	minUsernameLength     = 3
	maxUsernameBaseLength = 40
)

// LocalPart returns everything before the last '@'.
func LocalPart(address string) string {
	if i := strings.LastIndexByte(address, '@'); i >= 0 {
		return address[:i]
	}
	return address
}

// Domain returns everything after the last '@', or "" when there is none.
// Logs carry the domain instead of the address.
func Domain(address string) string {
	if i := strings.LastIndexByte(address, '@'); i >= 0 {
		return strings.ToLower(address[i+1:])
	}
	return ""
}

// UsernameBase lowercases the local part and keeps letters, digits, '_',
// '.' and '-'. Short results are padded with "user".
func UsernameBase(address string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(LocalPart(address)) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '_', r == '.', r == '-':
			b.WriteRune(r)
		}
	}
	base := b.String()
	if len(base) > maxUsernameBaseLength {
		base = base[:maxUsernameBaseLength]
	}
	if len(base) < minUsernameLength {
		base += "user"
	}
	return base
}

// DeriveName guesses a first and last name from the local part, splitting
// on '.', '_', '-' and '+'. "jane.doe" gives ("Jane", "Doe").
func DeriveName(address string) (first, last string) {
	parts := strings.FieldsFunc(LocalPart(address), func(r rune) bool {
		return r == '.' || r == '_' || r == '-' || r == '+'
	})
	if len(parts) == 0 {
		return "User", ""
	}
	first = capitalize(parts[0])
	if len(parts) > 1 {
		last = capitalize(parts[len(parts)-1])
	}
	return first, last
}

func capitalize(s string) string {
	runes := []rune(strings.ToLower(s))
	runes[0] = unicode.ToUpper(runes[0])
	return string(runes)
}
