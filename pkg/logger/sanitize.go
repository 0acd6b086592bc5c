// Package logger holds logging helpers that keep personal data out of the
// log stream. Passport numbers and names are personal data; they may appear
// in query strings and must never be logged verbatim.
package logger

import "strings"

// SanitizedPassport masks a passport number for logging, keeping only the
// first two characters (e.g. "E1*******").
func SanitizedPassport(passport string) string {
	if len(passport) <= 2 {
		return strings.Repeat("*", len(passport))
	}
	return passport[:2] + strings.Repeat("*", len(passport)-2)
}

// sensitiveParams are query parameters whose values identify a person or
// carry credentials.
var sensitiveParams = []string{
	"passport",
	"key",
	"keys",
	"name",
	"q",
	"token",
	"secret",
	"auth",
}

// SanitizeQueryString reports whether a query string contains sensitive
// parameters and should be redacted wholesale from logs.
func SanitizeQueryString(rawQuery string) bool {
	if rawQuery == "" {
		return false
	}
	query := strings.ToLower(rawQuery)
	for _, pair := range strings.Split(query, "&") {
		param, _, _ := strings.Cut(pair, "=")
		for _, sensitive := range sensitiveParams {
			if param == sensitive {
				return true
			}
		}
	}
	return false
}
