// Package casemap normalizes nicknames and channel names for lookups.
package casemap

import (
	"strings"

	"golang.org/x/text/cases"
)

// rfc1459 treats {}|^ as the lower-case forms of []\~
var rfc1459 = strings.NewReplacer("[", "{", "]", "}", "\\", "|", "~", "^")

// Fold returns the lookup key for an IRC name.
func Fold(name string) string {
	// Casers carry state, so a fresh one is used per call.
	return rfc1459.Replace(cases.Fold().String(strings.TrimSpace(name)))
}

// Equal reports whether two names refer to the same nick or channel.
func Equal(a, b string) bool {
	return Fold(a) == Fold(b)
}
