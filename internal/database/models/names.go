package models

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var (
	folder = cases.Fold()
	lower  = cases.Lower(language.Und)
)

// Capitalize upper-cases the first letter of name and lower-cases the rest,
// so "ny-ÅLESUND" becomes "Ny-ålesund".
func Capitalize(name string) string {
	name = strings.TrimSpace(name)
	first, size := utf8.DecodeRuneInString(name)
	if first == utf8.RuneError {
		return name
	}
	return string(unicode.ToTitle(first)) + lower.String(name[size:])
}

// NameKey returns the case-folded form of a name. Unique indexes are placed
// on this column so that "Oslo" and "OSLO" collide.
func NameKey(name string) string {
	return folder.String(strings.TrimSpace(name))
}

// Slugify lowercases s, strips diacritics and joins alphanumeric runs with dashes.
func Slugify(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	plain, _, err := transform.String(t, s)
	if err != nil {
		plain = s
	}

	var b strings.Builder
	dash := false
	for _, r := range strings.ToLower(plain) {
		switch {
		case r < unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r)):
			b.WriteRune(r)
			dash = false
		case r == '_' || unicode.IsSpace(r) || r == '-' || unicode.IsPunct(r):
			if b.Len() > 0 && !dash {
				b.WriteByte('-')
				dash = true
			}
		}
	}
	return strings.TrimSuffix(b.String(), "-")
}
