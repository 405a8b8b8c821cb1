// Package ident validates client identifiers. A client ID names a card bundle
// and doubles as its directory name and URL path segment, so the accepted
// alphabet is deliberately narrow.
package ident

import "regexp"

const (
	// MinLength and MaxLength bound the accepted client ID length, inclusive.
	MinLength = 3
	MaxLength = 63
)

// First and last character must be alphanumeric; interior characters may also
// be hyphen or underscore. Case-insensitive.
var clientIDPattern = regexp.MustCompile(`^(?i)[a-z0-9]([a-z0-9_-]{0,61}[a-z0-9])?$`)

// Valid reports whether id is an acceptable client identifier.
// Pure and total; performs no I/O.
func Valid(id string) bool {
	if len(id) < MinLength || len(id) > MaxLength {
		return false
	}
	return clientIDPattern.MatchString(id)
}
