package core

import (
	"strings"

	"golang.org/x/text/cases"
)

// NormalizeAccountID is the single comparison key for account ids. Ids that
// round-trip through spreadsheet cells come back with stray whitespace or a
// different casing, so every lookup goes through this function.
func NormalizeAccountID(id string) string {
	id = strings.TrimSpace(id)
	if id == "" {
		return ""
	}
	// A Caser keeps state, so one is built per call.
	return cases.Fold().String(id)
}

// SameAccount reports whether two ids refer to the same account.
func SameAccount(a, b string) bool {
	return NormalizeAccountID(a) == NormalizeAccountID(b)
}
