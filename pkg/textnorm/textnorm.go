// Package textnorm normalizes passport numbers and person names so that
// lookups match regardless of case, spacing, separators, or diacritics.
package textnorm

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// foldDiacritics decomposes characters and strips combining marks,
// so "Nguyễn" becomes "Nguyen".
var foldDiacritics = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// RemoveDiacritics strips accent marks from text. The Vietnamese đ/Đ are not
// combining-mark compositions, so they are mapped explicitly.
func RemoveDiacritics(s string) string {
	if s == "" {
		return ""
	}
	out, _, err := transform.String(foldDiacritics, s)
	if err != nil {
		out = s
	}
	out = strings.ReplaceAll(out, "đ", "d")
	out = strings.ReplaceAll(out, "Đ", "D")
	return out
}

// Passport normalizes a passport number for exact matching: uppercase,
// trimmed, with spaces and common separators removed.
func Passport(s string) string {
	if s == "" {
		return ""
	}
	s = strings.ToUpper(strings.TrimSpace(s))
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		switch r {
		case ' ', '\t', '-', '_', '.':
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// IsPassportShaped reports whether a search key looks like a passport number:
// at least 5 characters after normalization, all alphanumeric.
func IsPassportShaped(key string) bool {
	n := Passport(key)
	if len(n) < 5 {
		return false
	}
	for _, r := range n {
		if !unicode.IsLetter(r) && !unicode.IsDigit(r) {
			return false
		}
	}
	return true
}

// Name normalizes a person name for substring search: diacritics folded,
// lowercased, all whitespace removed. Removing (rather than collapsing)
// spaces lets "hewu" match "He Wuyang".
func Name(s string) string {
	if s == "" {
		return ""
	}
	s = RemoveDiacritics(s)
	s = strings.ToLower(s)
	return strings.Join(strings.Fields(s), "")
}

// SplitKeys splits free text containing multiple lookup keys on commas,
// semicolons, newlines, and tabs.
func SplitKeys(text string) []string {
	parts := strings.FieldsFunc(text, func(r rune) bool {
		switch r {
		case ',', ';', '\n', '\r', '\t':
			return true
		}
		return false
	})
	keys := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			keys = append(keys, p)
		}
	}
	return keys
}
